// Package document models a study-plan page as an ordered sequence of
// styled text blocks plus the named link lists used to reach subplans.
package document

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	// ErrLinkNotFound is returned when a subplan title is missing from its link list.
	ErrLinkNotFound = errors.New("document: subplan link not found")
	// ErrStudyBlockNotFound is returned when a page has no requirements block.
	ErrStudyBlockNotFound = errors.New("document: requirements block not found")
)

// Kind is the type of plan a document describes.
type Kind string

const (
	KindProgram        Kind = "program"
	KindMajor          Kind = "major"
	KindMinor          Kind = "minor"
	KindSpecialisation Kind = "specialisation"
)

// ParseKind normalizes singular or plural kind names.
func ParseKind(s string) (Kind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "s")
	switch k := Kind(s); k {
	case KindProgram, KindMajor, KindMinor, KindSpecialisation:
		return k, true
	}
	return "", false
}

// LinkSection is the id of the heading whose following list links to plans of this kind.
func (k Kind) LinkSection() string {
	return string(k) + "s"
}

// IsSubplan reports whether plans of this kind are embedded in a program.
func (k Kind) IsSubplan() bool {
	return k == KindMajor || k == KindMinor || k == KindSpecialisation
}

// Ref identifies a document to fetch.
type Ref struct {
	URL   string `json:"url,omitempty"`
	Kind  Kind   `json:"kind"`
	Code  string `json:"code"`
	Year  string `json:"year,omitempty"`
	Title string `json:"title,omitempty"`
}

func (r Ref) String() string {
	if r.URL != "" {
		return r.URL
	}
	return fmt.Sprintf("%s/%s", r.Kind, r.Code)
}

// Key identifies the referenced document for caching and cycle detection.
func (r Ref) Key() string {
	if r.Code != "" {
		return fmt.Sprintf("%s/%s/%s", r.Year, r.Kind, r.Code)
	}
	return r.URL
}

var planPathRe = regexp.MustCompile(`/?(?:(?P<year>\d{4})/)?(?P<kind>[a-z]+)/(?P<code>[A-Z\d-]+)$`)

// ParseRef derives kind, code and year from a plan URL such as
// https://host/2019/major/COMP-MAJ.
func ParseRef(raw string) (Ref, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Ref{}, fmt.Errorf("parse plan url %q: %w", raw, err)
	}
	m := planPathRe.FindStringSubmatch(u.Path)
	if m == nil {
		return Ref{}, fmt.Errorf("plan url %q has no /<kind>/<CODE> path", raw)
	}
	kind, ok := ParseKind(m[planPathRe.SubexpIndex("kind")])
	if !ok {
		return Ref{}, fmt.Errorf("plan url %q: unknown kind %q", raw, m[planPathRe.SubexpIndex("kind")])
	}
	return Ref{
		URL:  raw,
		Kind: kind,
		Code: m[planPathRe.SubexpIndex("code")],
		Year: m[planPathRe.SubexpIndex("year")],
	}, nil
}

// Block is one top-level element of the requirements section.
type Block struct {
	Tag   string     `json:"tag"`
	ID    string     `json:"id,omitempty"`
	Class []string   `json:"class,omitempty"`
	Style string     `json:"style,omitempty"`
	Lines [][]string `json:"lines,omitempty"`
}

// Strings flattens every line into one sequence.
func (b Block) Strings() []string {
	var out []string
	for _, l := range b.Lines {
		out = append(out, l...)
	}
	return out
}

// Text joins every string with single spaces.
func (b Block) Text() string {
	return strings.Join(b.Strings(), " ")
}

// Blank reports whether the block carries no text.
func (b Block) Blank() bool {
	for _, l := range b.Lines {
		for _, s := range l {
			if strings.TrimSpace(s) != "" {
				return false
			}
		}
	}
	return true
}

// HasClass reports whether the block carries the named class.
func (b Block) HasClass(name string) bool {
	for _, c := range b.Class {
		if c == name {
			return true
		}
	}
	return false
}

// Paragraph builds a single-line paragraph block. Useful for hand-built documents.
func Paragraph(style string, strs ...string) Block {
	return Block{Tag: "p", Style: style, Lines: [][]string{strs}}
}

// Heading builds an h2 block with the given id.
func Heading(id, text string) Block {
	return Block{Tag: "h2", ID: id, Lines: [][]string{{text}}}
}

// Document is a fetched plan page.
type Document struct {
	Ref    Ref     `json:"ref"`
	Blocks []Block `json:"blocks"`
	// Links maps a heading id to the titles and hrefs listed after it.
	Links map[string]map[string]string `json:"links,omitempty"`
}

// SubplanRef resolves a subplan title of the given kind to an absolute document reference.
func (d *Document) SubplanRef(title string, kind Kind) (Ref, error) {
	section := kind.LinkSection()
	href, ok := d.Links[section][strings.TrimSpace(title)]
	if !ok {
		return Ref{}, fmt.Errorf("%w: %q in %q of %s", ErrLinkNotFound, title, section, d.Ref)
	}
	abs, err := resolveURL(d.Ref.URL, href)
	if err != nil {
		return Ref{}, err
	}
	ref, err := ParseRef(abs)
	if err != nil {
		ref = Ref{URL: abs, Kind: kind}
	}
	ref.Title = title
	return ref, nil
}

// resolveURL keeps the scheme and host of base and takes only the path of href.
func resolveURL(base, href string) (string, error) {
	h, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse subplan href %q: %w", href, err)
	}
	if base == "" {
		return h.String(), nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse document url %q: %w", base, err)
	}
	return (&url.URL{Scheme: b.Scheme, Host: b.Host, Path: h.Path}).String(), nil
}
