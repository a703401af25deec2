// Package classifier interprets a layout tree as a typed requirement tree.
//
// Each paragraph is matched against an ordered rule table; the first rule
// that matches builds the node. Paragraphs no rule recognises become
// "unknown" leaves so one odd sentence never sinks a whole plan. Rules that
// name another plan (a major, minor or specialisation) fetch that plan's
// page and classify it recursively, splicing the result in place.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Mindburn-Labs/degreeplan/pkg/catalog"
	"github.com/Mindburn-Labs/degreeplan/pkg/coursefilter"
	"github.com/Mindburn-Labs/degreeplan/pkg/document"
	"github.com/Mindburn-Labs/degreeplan/pkg/layout"
	"github.com/Mindburn-Labs/degreeplan/pkg/requirement"
)

var (
	// ErrEmptyRequirements is returned when a requirements section yields no nodes.
	ErrEmptyRequirements = errors.New("classifier: requirements section is empty")
	// ErrSubplanCycle is returned when a subplan refers back to a plan being classified.
	ErrSubplanCycle = errors.New("classifier: cyclic subplan reference")
	// ErrNoSource is returned when a subplan is referenced but no source is configured.
	ErrNoSource = errors.New("classifier: no document source for subplans")
)

// Header ids that open the requirements section of a page.
const (
	ProgramHeaderID = "program-requirements"
	SubplanHeaderID = "requirements"
)

// Classifier turns plan documents into requirement trees.
type Classifier struct {
	source        document.Source
	builder       *layout.Builder
	colleges      map[string][]string
	programHeader string
	subplanHeader string
	logger        *slog.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithBuilder sets the layout builder used for every page.
func WithBuilder(b *layout.Builder) Option {
	return func(c *Classifier) { c.builder = b }
}

// WithColleges replaces the college to subject-area table.
func WithColleges(colleges map[string][]string) Option {
	return func(c *Classifier) {
		if len(colleges) > 0 {
			c.colleges = colleges
		}
	}
}

// WithHeaderIDs sets the section ids for programs and subplans.
func WithHeaderIDs(program, subplan string) Option {
	return func(c *Classifier) {
		if program != "" {
			c.programHeader = program
		}
		if subplan != "" {
			c.subplanHeader = subplan
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Classifier) { c.logger = l }
}

// New returns a Classifier that fetches subplans from src. src may be nil
// when no document references a subplan.
func New(src document.Source, opts ...Option) *Classifier {
	c := &Classifier{
		source:        src,
		builder:       layout.NewBuilder(),
		colleges:      DefaultColleges(),
		programHeader: ProgramHeaderID,
		subplanHeader: SubplanHeaderID,
		logger:        slog.Default().With("component", "classifier"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result is the outcome of one top-level classification run.
type Result struct {
	Root *requirement.Order
	// Registry is the run's course registry, grown by every explicit list.
	Registry *catalog.Registry
	// Tree is the layout tree of the top-level document.
	Tree *layout.Tree
	// Unknown holds the verbatim text of every unrecognised paragraph.
	Unknown []string
	// Subplans lists the documents resolved during the run, in order.
	Subplans []document.Ref
}

// Classify runs the whole pipeline over doc. reg seeds the course registry;
// it is cloned so the caller's copy is never extended.
func (c *Classifier) Classify(ctx context.Context, doc *document.Document, reg *catalog.Registry) (*Result, error) {
	r := c.newRun(ctx, reg)
	headerID := c.programHeader
	if doc.Ref.Kind.IsSubplan() {
		headerID = c.subplanHeader
	}
	r.stack = append(r.stack, doc.Ref.Key())
	root, tree, err := r.classifyDocument(doc, headerID)
	if err != nil {
		return nil, err
	}
	return &Result{Root: root, Registry: r.reg, Tree: tree, Unknown: r.unknown, Subplans: r.subplans}, nil
}

// ClassifyTree classifies an already built layout tree. doc supplies the plan
// code and subplan links.
func (c *Classifier) ClassifyTree(ctx context.Context, tree *layout.Tree, doc *document.Document, reg *catalog.Registry) (*Result, error) {
	r := c.newRun(ctx, reg)
	r.stack = append(r.stack, doc.Ref.Key())
	root, err := r.newScope(doc, tree).root()
	if err != nil {
		return nil, err
	}
	return &Result{Root: root, Registry: r.reg, Tree: tree, Unknown: r.unknown, Subplans: r.subplans}, nil
}

func (c *Classifier) newRun(ctx context.Context, reg *catalog.Registry) *run {
	if reg == nil {
		reg = catalog.NewRegistry()
	} else {
		reg = reg.Clone()
	}
	return &run{c: c, ctx: ctx, reg: reg}
}

// run is the state shared by one top-level classification and every subplan
// it resolves.
type run struct {
	c        *Classifier
	ctx      context.Context
	reg      *catalog.Registry
	stack    []string
	unknown  []string
	subplans []document.Ref
}

func (r *run) classifyDocument(doc *document.Document, headerID string) (*requirement.Order, *layout.Tree, error) {
	tree, err := r.c.builder.Build(doc, headerID)
	if err != nil {
		return nil, nil, err
	}
	root, err := r.newScope(doc, tree).root()
	if err != nil {
		return nil, nil, err
	}
	return root, tree, nil
}

func (r *run) newScope(doc *document.Document, tree *layout.Tree) *scope {
	return &scope{run: r, doc: doc, tree: tree, consumed: make(map[layout.NodeID]bool)}
}

// scope classifies the layout tree of one document.
type scope struct {
	run      *run
	doc      *document.Document
	tree     *layout.Tree
	consumed map[layout.NodeID]bool
}

func (s *scope) code() string { return s.doc.Ref.Code }

func (s *scope) root() (*requirement.Order, error) {
	children, err := s.classifySiblings(s.tree.Children(s.tree.Root()))
	if err != nil {
		return nil, err
	}
	if len(children) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyRequirements, s.doc.Ref)
	}
	return requirement.NewContainer(s.code(), requirement.CategoryPlan, s.doc.Ref.Title, requirement.OpAnd, children...), nil
}

// classifySiblings classifies a run of sibling nodes. A global header adopts
// every following sibling up to the next global header.
func (s *scope) classifySiblings(ids []layout.NodeID) ([]*requirement.Order, error) {
	var out []*requirement.Order
	for i := 0; i < len(ids); i++ {
		id := ids[i]
		if s.consumed[id] {
			continue
		}
		text := s.tree.Text(id)
		if m := find(globalTitleRe, text); m != nil {
			end := i + 1
			for end < len(ids) && !globalTitleRe.MatchString(s.tree.Text(ids[end])) {
				end++
			}
			orders, err := s.globalWith(id, text, m, ids[i+1:end])
			if err != nil {
				return nil, err
			}
			out = append(out, orders...)
			i = end - 1
			continue
		}
		orders, err := s.classifyNode(id)
		if err != nil {
			return nil, err
		}
		out = append(out, orders...)
	}
	return out, nil
}

// classifyNode applies the paragraph rules to one node.
func (s *scope) classifyNode(id layout.NodeID) ([]*requirement.Order, error) {
	text := s.tree.Text(id)
	for _, r := range paragraphRules {
		if m := find(r.re, text); m != nil {
			return r.build(s, id, text, m)
		}
	}
	return s.unknown(text), nil
}

func (s *scope) unknown(text string) []*requirement.Order {
	s.run.unknown = append(s.run.unknown, text)
	s.run.c.logger.WarnContext(s.run.ctx, "unrecognised requirement", "plan", s.code(), "text", text)
	return []*requirement.Order{
		requirement.NewLeaf(s.code(), requirement.CategoryUnknown, text, requirement.OpExactly, 0, nil),
	}
}

func (s *scope) leaf(cat requirement.Category, text string, op requirement.Operator, units int, f coursefilter.Filter) []*requirement.Order {
	return []*requirement.Order{requirement.NewLeaf(s.code(), cat, text, op, units, f)}
}

// list builds an explicit filter and records its codes in the run registry.
func (s *scope) list(codes []string) *coursefilter.List {
	l := coursefilter.NewList(codes...)
	l.Courses(s.run.reg)
	return l
}

// childText flattens the node's descendants. A childless node instead takes
// the following siblings that start with a subject area and consumes them.
func (s *scope) childText(id layout.NodeID) string {
	if !s.tree.IsLeaf(id) {
		return s.tree.SubtreeText(id)
	}
	var parts []string
	for sib := s.tree.Next(id); sib != layout.NoNode; sib = s.tree.Next(sib) {
		text := s.tree.Text(sib)
		if !areaPrefixRe.MatchString(text) {
			break
		}
		parts = append(parts, text)
		s.consumed[sib] = true
	}
	return strings.Join(parts, " ")
}

// childLines lists child paragraphs, or consumed area-prefixed siblings.
func (s *scope) childLines(id layout.NodeID) []string {
	if !s.tree.IsLeaf(id) {
		return s.tree.ChildLines(id)
	}
	var lines []string
	for sib := s.tree.Next(id); sib != layout.NoNode; sib = s.tree.Next(sib) {
		if s.consumed[sib] || !s.tree.IsLeaf(sib) {
			break
		}
		text := s.tree.Text(sib)
		if text == "" || find(globalTitleRe, text) != nil || startsRequirement(text) {
			break
		}
		lines = append(lines, text)
		s.consumed[sib] = true
	}
	return lines
}

// startsRequirement reports whether any paragraph rule recognises text.
func startsRequirement(text string) bool {
	for _, r := range paragraphRules {
		if r.re.MatchString(text) {
			return true
		}
	}
	return false
}

func (s *scope) global(id layout.NodeID, text string, m match) ([]*requirement.Order, error) {
	return s.globalWith(id, text, m, nil)
}

// globalWith builds a global-requirement container over the header's own
// children and the adopted siblings. Course codes listed after "from the
// following courses" in the header become a compulsory set carrying the
// header's units.
func (s *scope) globalWith(id layout.NodeID, text string, m match, adopted []layout.NodeID) ([]*requirement.Order, error) {
	units := m.units()
	op := requirement.OpAtLeast
	switch strings.ToLower(m["title"]) {
	case "major", "minor", "specialisation":
		op = requirement.OpExactly
	}

	var children []*requirement.Order
	if loc := followingRe.FindStringIndex(m["tail"]); loc != nil {
		codes := courseCodeRe.FindAllString(m["tail"][loc[1]:], -1)
		if len(codes) > 0 {
			children = append(children, requirement.NewLeaf(s.code(), requirement.CategoryCompulsorySet, text,
				requirement.OpExactly, units, s.list(codes)))
		}
	}
	own, err := s.classifySiblings(s.tree.Children(id))
	if err != nil {
		return nil, err
	}
	children = append(children, own...)
	rest, err := s.classifySiblings(adopted)
	if err != nil {
		return nil, err
	}
	children = append(children, rest...)

	if len(children) == 0 {
		return s.leaf(requirement.CategoryGlobal, text, op, units, nil), nil
	}
	container := requirement.NewContainer(s.code(), requirement.CategoryGlobal, text, requirement.OpAnd, children...)
	container.Threshold = &requirement.Threshold{Operator: op, Units: units}
	return []*requirement.Order{container}, nil
}

func (s *scope) passThrough(id layout.NodeID, _ string, _ match) ([]*requirement.Order, error) {
	return s.classifySiblings(s.tree.Children(id))
}

func (s *scope) progression(_ layout.NodeID, text string, _ match) ([]*requirement.Order, error) {
	return s.leaf(requirement.CategoryProgression, text, requirement.OpExactly, 0, nil), nil
}

// principal applies the principal rules to a unit-bearing paragraph.
func (s *scope) principal(id layout.NodeID, text string, _ match) ([]*requirement.Order, error) {
	for _, r := range principalRules {
		if m := find(r.re, text); m != nil {
			return r.build(s, id, text, m)
		}
	}
	return s.unknown(text), nil
}

// alternatives builds an OR over the Either block and the Or blocks that
// immediately follow it at the same indent. An Or further down starts a set
// of its own.
func (s *scope) alternatives(id layout.NodeID, text string, _ match) ([]*requirement.Order, error) {
	groups := [][]layout.NodeID{s.tree.Children(id)}
	indent := s.tree.Node(id).Indent
	for sib := s.tree.Next(id); sib != layout.NoNode; sib = s.tree.Next(sib) {
		if s.consumed[sib] || s.tree.Node(sib).Indent != indent || !orLiteralRe.MatchString(s.tree.Text(sib)) {
			break
		}
		s.consumed[sib] = true
		groups = append(groups, s.tree.Children(sib))
	}

	set := requirement.NewContainer(s.code(), requirement.CategoryAlternativeSets, text, requirement.OpOr)
	for _, g := range groups {
		children, err := s.classifySiblings(g)
		if err != nil {
			return nil, err
		}
		if len(children) == 0 {
			continue
		}
		set.Append(requirement.NewContainer(s.code(), requirement.CategoryAlternative, "", requirement.OpAnd, children...))
	}
	if len(set.Children) == 0 {
		return s.unknown(text), nil
	}
	return []*requirement.Order{set}, nil
}

func (s *scope) repeatedCourse(_ layout.NodeID, text string, m match) ([]*requirement.Order, error) {
	return s.leaf(requirement.CategoryRepeatedCourse, text, m.operator(), m.units(), s.list([]string{m["code"]})), nil
}

func (s *scope) singleCourse(_ layout.NodeID, text string, m match) ([]*requirement.Order, error) {
	return s.leaf(requirement.CategorySingleCourse, text, requirement.OpExactly, m.units(), s.list([]string{m["code"]})), nil
}

func (s *scope) compulsorySet(id layout.NodeID, text string, m match) ([]*requirement.Order, error) {
	inline := courseCodeRe.FindAllString(text, -1)
	child := s.childText(id)
	codes := append(inline, courseCodeRe.FindAllString(child, -1)...)
	return s.leaf(requirement.CategoryCompulsorySet, joinText(text, child), requirement.OpExactly, m.units(), s.list(codes)), nil
}

func (s *scope) singleArea(_ layout.NodeID, text string, m match) ([]*requirement.Order, error) {
	cat := requirement.CategorySingleAreaMin
	if m["max"] != "" {
		cat = requirement.CategorySingleAreaMax
	}
	return s.leaf(cat, text, m.operator(), m.units(), coursefilter.NewPattern([]string{m["area"]}, nil)), nil
}

func (s *scope) multipleAreas(id layout.NodeID, text string, m match) ([]*requirement.Order, error) {
	cat := requirement.CategoryMultipleAreasMin
	if m["max"] != "" {
		cat = requirement.CategoryMultipleAreasMax
	}
	child := s.childText(id)
	areas := areaCodeRe.FindAllString(child, -1)
	return s.leaf(cat, joinText(text, child), m.operator(), m.units(), coursefilter.NewPattern(areas, nil)), nil
}

func (s *scope) courseSet(id layout.NodeID, text string, m match) ([]*requirement.Order, error) {
	child := s.childText(id)
	codes := courseCodeRe.FindAllString(child, -1)
	return s.leaf(requirement.CategoryCourseSet, joinText(text, child), m.operator(), m.units(), s.list(codes)), nil
}

func (s *scope) singleSubplan(_ layout.NodeID, text string, m match) ([]*requirement.Order, error) {
	kind, _ := document.ParseKind(m["kind"])
	sub, err := s.resolve(m["title"], kind)
	if err != nil {
		return nil, err
	}
	sub.Category = requirement.CategorySingleSubplan
	sub.Text = text
	return []*requirement.Order{sub}, nil
}

func (s *scope) subplanChoice(id layout.NodeID, text string, m match) ([]*requirement.Order, error) {
	kind, _ := document.ParseKind(m["kind"])
	return s.choice(id, text, kind, requirement.CategorySubplanChoice)
}

func (s *scope) specialisationCoreq(_ layout.NodeID, text string, m match) ([]*requirement.Order, error) {
	sub, err := s.resolve(m["title"], document.KindMajor)
	if err != nil {
		return nil, err
	}
	sub.Category = requirement.CategorySpecialisationCoreq
	sub.Text = text
	return []*requirement.Order{sub}, nil
}

func (s *scope) specialisationChoice(id layout.NodeID, text string, _ match) ([]*requirement.Order, error) {
	return s.choice(id, text, document.KindMajor, requirement.CategorySpecialisationChoice)
}

// choice resolves every listed title into an OR container.
func (s *scope) choice(id layout.NodeID, text string, kind document.Kind, cat requirement.Category) ([]*requirement.Order, error) {
	titles := s.childLines(id)
	if len(titles) == 0 {
		return s.unknown(text), nil
	}
	set := requirement.NewContainer(s.code(), cat, text, requirement.OpOr)
	for _, title := range titles {
		sub, err := s.resolve(title, kind)
		if err != nil {
			return nil, err
		}
		set.Append(sub)
	}
	return []*requirement.Order{set}, nil
}

func (s *scope) globalLevel(_ layout.NodeID, text string, m match) ([]*requirement.Order, error) {
	var levels []string
	for _, sub := range levelDigitRe.FindAllStringSubmatch(text, -1) {
		levels = append(levels, sub[1])
	}
	areas := areaCodeRe.FindAllString(m["area"], -1)
	return s.leaf(requirement.CategoryGlobalByLevel, text, m.operator(), m.units(), coursefilter.NewPattern(areas, levels)), nil
}

func (s *scope) globalCollege(_ layout.NodeID, text string, m match) ([]*requirement.Order, error) {
	areas, ok := s.run.c.colleges[strings.TrimSpace(m["college"])]
	if !ok {
		return s.unknown(text), nil
	}
	return s.leaf(requirement.CategoryGlobalByCollege, text, requirement.OpAtLeast, m.units(), coursefilter.NewPattern(areas, nil)), nil
}

func (s *scope) electives(_ layout.NodeID, text string, m match) ([]*requirement.Order, error) {
	return s.leaf(requirement.CategoryElectives, text, requirement.OpExactly, m.units(), coursefilter.Any()), nil
}

func joinText(head, child string) string {
	if child == "" {
		return head
	}
	return head + " " + child
}

// resolve fetches the subplan called title and classifies it in its own
// scope. The subplan shares the run's registry and unknown list.
func (s *scope) resolve(title string, kind document.Kind) (*requirement.Order, error) {
	ref, err := s.doc.SubplanRef(title, kind)
	if err != nil {
		return nil, err
	}
	key := ref.Key()
	for _, k := range s.run.stack {
		if k == key {
			return nil, fmt.Errorf("%w: %s via %s", ErrSubplanCycle, ref, strings.Join(s.run.stack, " -> "))
		}
	}
	if s.run.c.source == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSource, ref)
	}
	if err := s.run.ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := s.run.c.source.Fetch(s.run.ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("resolve subplan %q: %w", title, err)
	}
	if doc.Ref.Title == "" {
		doc.Ref.Title = title
	}
	s.run.c.logger.DebugContext(s.run.ctx, "resolved subplan", "plan", s.code(), "subplan", ref.String())
	s.run.subplans = append(s.run.subplans, ref)

	s.run.stack = append(s.run.stack, key)
	defer func() { s.run.stack = s.run.stack[:len(s.run.stack)-1] }()
	root, _, err := s.run.classifyDocument(doc, s.run.c.subplanHeader)
	if err != nil {
		return nil, fmt.Errorf("classify subplan %s: %w", ref, err)
	}
	return root, nil
}
