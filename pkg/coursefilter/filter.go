// Package coursefilter selects the courses a requirement draws from.
package coursefilter

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/Mindburn-Labs/degreeplan/pkg/catalog"
)

// Filter resolves to an ordered list of course codes.
type Filter interface {
	// Courses resolves the filter against reg. List filters record their
	// codes in reg as a side effect.
	Courses(reg *catalog.Registry) []string
	// Match reports whether a single code satisfies the filter.
	Match(code string) bool
	String() string
}

// List is an explicit list of course codes.
type List struct {
	codes []string
}

// NewList returns a filter over codes, kept verbatim.
func NewList(codes ...string) *List {
	out := make([]string, len(codes))
	copy(out, codes)
	return &List{codes: out}
}

// Codes returns the listed codes.
func (l *List) Codes() []string {
	out := make([]string, len(l.codes))
	copy(out, l.codes)
	return out
}

// Courses returns the codes in order, duplicates included, and adds unseen
// ones to reg.
func (l *List) Courses(reg *catalog.Registry) []string {
	if reg != nil {
		for _, c := range l.codes {
			reg.Add(c)
		}
	}
	return l.Codes()
}

func (l *List) Match(code string) bool {
	for _, c := range l.codes {
		if c == code {
			return true
		}
	}
	return false
}

func (l *List) String() string {
	return "[" + strings.Join(l.codes, " ") + "]"
}

// MarshalJSON tags the variant.
func (l *List) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind  string   `json:"kind"`
		Codes []string `json:"codes"`
	}{"list", l.codes})
}

// Pattern matches codes by subject area and leading level digit. An empty
// constraint matches anything.
type Pattern struct {
	areas  []string
	levels []string
	re     *regexp.Regexp
}

// NewPattern builds a pattern filter. areas are four-letter subject codes and
// levels are single digits.
func NewPattern(areas, levels []string) *Pattern {
	p := &Pattern{areas: dedupe(areas), levels: dedupe(levels)}
	p.re = regexp.MustCompile("^" + p.expr() + "$")
	return p
}

// Any matches every course code.
func Any() *Pattern { return NewPattern(nil, nil) }

// Areas returns the subject-area constraint.
func (p *Pattern) Areas() []string { return append([]string(nil), p.areas...) }

// Levels returns the level-digit constraint.
func (p *Pattern) Levels() []string { return append([]string(nil), p.levels...) }

// IsAny reports whether the pattern has no constraint at all.
func (p *Pattern) IsAny() bool { return len(p.areas) == 0 && len(p.levels) == 0 }

func (p *Pattern) expr() string {
	area := `[A-Z]{4}`
	if len(p.areas) > 0 {
		area = "(?:" + strings.Join(quoteAll(p.areas), "|") + ")"
	}
	level := `\d`
	if len(p.levels) > 0 {
		level = "[" + strings.Join(quoteAll(p.levels), "") + "]"
	}
	return area + level + `\d{3}[A-Z]?`
}

// Courses returns every registry code the pattern matches, in registry order.
func (p *Pattern) Courses(reg *catalog.Registry) []string {
	if reg == nil {
		return nil
	}
	var out []string
	for _, c := range reg.Codes() {
		if p.re.MatchString(c) {
			out = append(out, c)
		}
	}
	return out
}

func (p *Pattern) Match(code string) bool { return p.re.MatchString(code) }

func (p *Pattern) String() string {
	if p.IsAny() {
		return ".*"
	}
	return p.expr()
}

// MarshalJSON tags the variant.
func (p *Pattern) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind   string   `json:"kind"`
		Areas  []string `json:"areas,omitempty"`
		Levels []string `json:"levels,omitempty"`
	}{"pattern", p.areas, p.levels})
}

// Describe renders a filter for logs and text dumps.
func Describe(f Filter) string {
	if f == nil {
		return "None"
	}
	return f.String()
}

// Unmarshal decodes the tagged JSON form produced by MarshalJSON.
func Unmarshal(data []byte) (Filter, error) {
	var v struct {
		Kind   string   `json:"kind"`
		Codes  []string `json:"codes"`
		Areas  []string `json:"areas"`
		Levels []string `json:"levels"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode course filter: %w", err)
	}
	switch v.Kind {
	case "list":
		return NewList(v.Codes...), nil
	case "pattern":
		return NewPattern(v.Areas, v.Levels), nil
	}
	return nil, fmt.Errorf("decode course filter: unknown kind %q", v.Kind)
}

func quoteAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = regexp.QuoteMeta(s)
	}
	return out
}

func dedupe(in []string) []string {
	var out []string
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
