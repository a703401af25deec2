// Package minizinc compiles a requirement tree into MiniZinc declarations and
// data for the course-planning solver.
//
// Compilation runs in four stages. The tree is linearised into a token
// stream with sequential list indices, qualification scopes are recovered
// from the bracket structure of that stream, the constraint expression is
// rendered, and the course universe is closed over its requisite relations
// before the declarations and data are written.
package minizinc

import (
	"fmt"
	"strings"

	"github.com/Mindburn-Labs/degreeplan/pkg/catalog"
	"github.com/Mindburn-Labs/degreeplan/pkg/coursefilter"
	"github.com/Mindburn-Labs/degreeplan/pkg/requirement"
)

// TokenKind is the type of one linearised token.
type TokenKind int

const (
	TokenOpen TokenKind = iota
	TokenClose
	TokenAnd
	TokenOr
	// TokenLeaf is a standalone requirement over course list Index.
	TokenLeaf
	// TokenQual is a qualification scoping over the lists that follow it.
	TokenQual
	// TokenTrue stands for a requirement the solver cannot check.
	TokenTrue
)

// Token is one element of the linearised tree.
type Token struct {
	Kind  TokenKind
	Index int
}

// Entry is the payload behind one list index.
type Entry struct {
	Index int
	Node  *requirement.Order
	// Courses is the resolved course list. Empty for unit-sum qualifications.
	Courses []string
	// Qualification marks entries that scope over other lists.
	Qualification bool
	// Membership marks level and college qualifications, which restrict
	// which courses count instead of summing units.
	Membership bool
}

// Operator returns the comparison applied to the entry's units.
func (e Entry) Operator() requirement.Operator {
	if e.Node.Threshold != nil {
		return e.Node.Threshold.Operator
	}
	return e.Node.Operator
}

// Units returns the entry's unit value in source credit units.
func (e Entry) Units() int {
	if e.Node.Threshold != nil {
		return e.Node.Threshold.Units
	}
	return e.Node.UnitValue
}

// Program is a linearised requirement tree.
type Program struct {
	Tokens []Token
	// Entries is indexed by list index minus one.
	Entries []Entry
}

// Entry returns the entry for a 1-based list index.
func (p *Program) Entry(index int) Entry { return p.Entries[index-1] }

// Linearize renders root as a token stream. Every container is bracketed and
// its children are joined by its operator. A container with a threshold
// opens with a qualification token followed by an AND. Explicit lists are
// resolved before patterns so pattern lists can leave out courses already
// listed by name.
func Linearize(root *requirement.Order, reg *catalog.Registry) (*Program, error) {
	if root == nil {
		return nil, fmt.Errorf("linearize: nil tree")
	}
	if reg == nil {
		reg = catalog.NewRegistry()
	}
	p := &Program{}
	p.render(root)

	named := make(map[string]bool)
	for i := range p.Entries {
		e := &p.Entries[i]
		if l, ok := e.Node.Filter.(*coursefilter.List); ok && !e.Qualification {
			e.Courses = l.Courses(reg)
			for _, c := range e.Courses {
				named[c] = true
			}
		}
	}
	for i := range p.Entries {
		e := &p.Entries[i]
		pat, ok := e.Node.Filter.(*coursefilter.Pattern)
		if !ok {
			continue
		}
		for _, c := range pat.Courses(reg) {
			if e.Membership || !named[c] {
				e.Courses = append(e.Courses, c)
			}
		}
	}
	return p, nil
}

func (p *Program) render(o *requirement.Order) {
	if o.IsLeaf() {
		p.renderLeaf(o)
		return
	}
	p.Tokens = append(p.Tokens, Token{Kind: TokenOpen})
	join := TokenAnd
	if o.Operator == requirement.OpOr {
		join = TokenOr
	}
	if o.Threshold != nil {
		p.Tokens = append(p.Tokens, Token{Kind: TokenQual, Index: p.add(Entry{Node: o, Qualification: true})})
		if len(o.Children) > 0 {
			p.Tokens = append(p.Tokens, Token{Kind: TokenAnd})
		}
	}
	for i, c := range o.Children {
		if i > 0 {
			p.Tokens = append(p.Tokens, Token{Kind: join})
		}
		p.render(c)
	}
	p.Tokens = append(p.Tokens, Token{Kind: TokenClose})
}

func (p *Program) renderLeaf(o *requirement.Order) {
	switch {
	case o.IsQualification():
		p.Tokens = append(p.Tokens, Token{Kind: TokenQual, Index: p.add(Entry{Node: o, Qualification: true, Membership: true})})
	case o.Filter == nil, !carriesList(o.Category):
		p.Tokens = append(p.Tokens, Token{Kind: TokenTrue})
	default:
		p.Tokens = append(p.Tokens, Token{Kind: TokenLeaf, Index: p.add(Entry{Node: o})})
	}
}

func (p *Program) add(e Entry) int {
	e.Index = len(p.Entries) + 1
	p.Entries = append(p.Entries, e)
	return e.Index
}

// carriesList reports whether leaves of this category become course lists.
func carriesList(c requirement.Category) bool {
	switch c {
	case requirement.CategoryElectives, requirement.CategoryProgression, requirement.CategoryUnknown:
		return false
	}
	return true
}

// Lists returns the entries that are standalone course lists, in index order.
func (p *Program) Lists() []Entry {
	var out []Entry
	for _, e := range p.Entries {
		if !e.Qualification {
			out = append(out, e)
		}
	}
	return out
}

// String renders the token stream for inspection, one token per word.
func (p *Program) String() string {
	parts := make([]string, 0, len(p.Tokens))
	for _, t := range p.Tokens {
		switch t.Kind {
		case TokenOpen:
			parts = append(parts, "(")
		case TokenClose:
			parts = append(parts, ")")
		case TokenAnd:
			parts = append(parts, "AND")
		case TokenOr:
			parts = append(parts, "OR")
		case TokenTrue:
			parts = append(parts, "true")
		case TokenLeaf:
			e := p.Entry(t.Index)
			parts = append(parts, fmt.Sprintf("#%d%s%d%s", t.Index, e.Operator(), e.Units(), coursefilter.Describe(e.Node.Filter)))
		case TokenQual:
			e := p.Entry(t.Index)
			parts = append(parts, fmt.Sprintf("#%d%s%d:", t.Index, e.Operator(), e.Units()))
		}
	}
	return strings.Join(parts, " ")
}
