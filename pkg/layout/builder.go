package layout

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/Mindburn-Labs/degreeplan/pkg/document"
)

// ErrSectionNotFound is returned when the document lacks the requirements header.
var ErrSectionNotFound = errors.New("layout: requirements section not found")

// DefaultStep is the pixel width of one indentation level.
const DefaultStep = 40

var (
	indentRe        = regexp.MustCompile(`(?:margin|padding)-left:\s?(-?\d{1,3})`)
	courseCodeRe    = regexp.MustCompile(`^[A-Z]{4}\d{4}[A-Z]?`)
	globalHeaderRe  = regexp.MustCompile(`^Th(?:e|is) (.*?) requires(?: the)? completion of (\d{1,3}) units.*?:?$`)
	alternativeRe   = regexp.MustCompile(`^(?:Either|Or):?$`)
	principalRe     = regexp.MustCompile(`^(?:A maximum of |A minimum of )?\d{1,3} units`)
	coreqRe         = regexp.MustCompile(`^This specialisation must be taken in conjunction with`)
	consistOfRe     = regexp.MustCompile(`^The \d{1,3} units must (?:consist of|include):$`)
	backToTopClass  = "back-to-top"
	defaultEndTag   = "h2"
	syntheticBlock  = "p"
	indentStyleForm = "margin-left: %dpx;"
)

// Builder turns the blocks of one requirements section into a Tree.
type Builder struct {
	step   int
	endTag string
	logger *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithStep sets the indentation step in pixels.
func WithStep(px int) Option {
	return func(b *Builder) {
		if px > 0 {
			b.step = px
		}
	}
}

// WithEndTag sets the tag that closes the section.
func WithEndTag(tag string) Option {
	return func(b *Builder) {
		if tag != "" {
			b.endTag = tag
		}
	}
}

// NewBuilder returns a Builder with the default 40px step and h2 end marker.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		step:   DefaultStep,
		endTag: defaultEndTag,
		logger: slog.Default().With("component", "layout"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// state is the cursor of one Build call.
type state struct {
	tree          *Tree
	currentParent NodeID
	currentMargin int

	processingPrincipal bool
	principalIndent     int

	processingAlternative bool
	alternativeIndent     int
}

// Build reads the blocks following the block whose id is headerID, up to the
// next end tag.
func (b *Builder) Build(doc *document.Document, headerID string) (*Tree, error) {
	start := -1
	for i, blk := range doc.Blocks {
		if blk.ID == headerID {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("%w: no %q header in %s", ErrSectionNotFound, headerID, doc.Ref)
	}

	queue := make([]document.Block, 0, len(doc.Blocks)-start)
	for _, blk := range doc.Blocks[start+1:] {
		if blk.Tag == b.endTag {
			break
		}
		queue = append(queue, blk)
	}

	st := &state{tree: NewTree()}
	st.currentParent = st.tree.Root()

	for i := 0; i < len(queue); i++ {
		blk := queue[i]
		if blk.HasClass(backToTopClass) {
			continue
		}
		margin := b.normalize(b.indent(blk, st.currentMargin))

		if st.processingPrincipal && margin <= st.principalIndent {
			st.processingPrincipal = false
			st.principalIndent = 0
		}
		if st.processingAlternative && (margin <= st.alternativeIndent || blk.Blank()) {
			st.processingAlternative = false
			st.alternativeIndent = 0
			st.currentParent = st.tree.Root()
		}

		if len(blk.Lines) > 1 {
			var rest []document.Block
			blk, rest = b.split(blk, margin)
			queue = append(queue[:i+1], append(rest, queue[i+1:]...)...)
		}

		b.place(st, blk, margin)
	}
	return st.tree, nil
}

// indent reads the raw left margin of a block.
func (b *Builder) indent(blk document.Block, current int) int {
	if blk.Style != "" {
		if m := indentRe.FindStringSubmatch(blk.Style); m != nil {
			v, err := strconv.Atoi(m[1])
			if err == nil {
				return v
			}
		}
		return current
	}
	if blk.Tag == "table" {
		return current
	}
	return 0
}

// normalize rounds positive margins up to the next multiple of the step.
func (b *Builder) normalize(px int) int {
	if px <= 0 {
		return px
	}
	return ((px + b.step - 1) / b.step) * b.step
}

// split keeps the first line in blk and returns the remaining lines as
// sibling blocks. A run of bare course codes under a non-course line is
// pushed one level deeper.
func (b *Builder) split(blk document.Block, margin int) (document.Block, []document.Block) {
	var lines [][]string
	for _, l := range blk.Lines {
		if strings.TrimSpace(strings.Join(l, "")) != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		blk.Lines = nil
		return blk, nil
	}
	first := blk
	first.Lines = lines[:1]

	tail := lines[1:]
	childMargin := margin
	if len(tail) > 1 && !courseCodeRe.MatchString(first.Text()) && allCourseCodes(tail) {
		childMargin = margin + b.step
	}
	rest := make([]document.Block, 0, len(tail))
	for _, l := range tail {
		rest = append(rest, document.Block{
			Tag:   syntheticBlock,
			Style: fmt.Sprintf(indentStyleForm, childMargin),
			Lines: [][]string{l},
		})
	}
	return first, rest
}

func allCourseCodes(lines [][]string) bool {
	for _, l := range lines {
		if !courseCodeRe.MatchString(strings.Join(l, " ")) {
			return false
		}
	}
	return true
}

// place attaches the block to the tree according to its structural role.
func (b *Builder) place(st *state, blk document.Block, margin int) {
	text := blk.Text()
	t := st.tree

	switch {
	case margin < 0 || blk.Blank():
		st.currentParent = t.Root()
		margin = 0
	case globalHeaderRe.MatchString(text):
		t.AppendChild(t.Root(), t.NewNode(blk.Strings(), margin))
	case alternativeRe.MatchString(text):
		n := t.NewNode(blk.Strings(), margin)
		t.AppendChild(t.Root(), n)
		st.currentParent = n
		st.alternativeIndent = margin
		st.processingAlternative = true
	case principalRe.MatchString(text) || coreqRe.MatchString(text):
		st.processingPrincipal = true
		st.principalIndent = margin
		t.AppendChild(st.currentParent, t.NewNode(blk.Strings(), margin))
	case consistOfRe.MatchString(text):
		b.logger.Debug("dropping pass-through line", "text", text)
	default:
		n := t.NewNode(blk.Strings(), margin)
		parent := st.currentParent
		if st.processingPrincipal && margin > st.principalIndent {
			if last := t.LastChild(parent); last != NoNode {
				parent = last
			}
		}
		t.AppendChild(parent, n)
	}
	st.currentMargin = margin
}
