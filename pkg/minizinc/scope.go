package minizinc

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnbalancedScope signals a token stream whose brackets do not pair up.
// Linearize never produces one, so it always indicates a rendering defect.
var ErrUnbalancedScope = errors.New("minizinc: unbalanced qualification scope")

// Scope is the half-open range [Start, End) of list indices a qualification
// applies to.
type Scope struct {
	Qual  int
	Start int
	End   int
}

// Contains reports whether list index i falls inside the scope.
func (s Scope) Contains(i int) bool { return i >= s.Start && i < s.End && i != s.Qual }

// RecoverScopes finds, for every qualification token, the list indices
// between it and the close of its enclosing group. A qualification with
// nothing after it widens to its whole group. Scopes are returned sorted by
// their start index.
func RecoverScopes(p *Program) ([]Scope, error) {
	if err := checkBalance(p.Tokens); err != nil {
		return nil, err
	}
	var scopes []Scope
	for pos, t := range p.Tokens {
		if t.Kind != TokenQual {
			continue
		}
		lo, hi, err := span(p.Tokens, pos, t.Index)
		if err != nil {
			return nil, err
		}
		if lo == 0 {
			open, err := enclosingOpen(p.Tokens, pos)
			if err != nil {
				return nil, err
			}
			if lo, hi, err = span(p.Tokens, open, t.Index); err != nil {
				return nil, err
			}
		}
		s := Scope{Qual: t.Index, Start: t.Index + 1, End: t.Index + 1}
		if lo != 0 {
			s.Start, s.End = lo, hi+1
		}
		scopes = append(scopes, s)
	}
	sort.SliceStable(scopes, func(i, j int) bool { return scopes[i].Start < scopes[j].Start })
	return scopes, nil
}

func checkBalance(tokens []Token) error {
	depth := 0
	for i, t := range tokens {
		switch t.Kind {
		case TokenOpen:
			depth++
		case TokenClose:
			depth--
			if depth < 0 {
				return fmt.Errorf("%w: unmatched close at token %d", ErrUnbalancedScope, i)
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("%w: %d unclosed groups", ErrUnbalancedScope, depth)
	}
	return nil
}

// span returns the lowest and highest list index after position pos up to
// the close of the group containing pos, ignoring skip. Both are zero when
// the range holds no list.
func span(tokens []Token, pos, skip int) (lo, hi int, err error) {
	depth := 0
	for i := pos + 1; i < len(tokens); i++ {
		t := tokens[i]
		switch t.Kind {
		case TokenOpen:
			depth++
		case TokenClose:
			if depth == 0 {
				return lo, hi, nil
			}
			depth--
		case TokenLeaf, TokenQual:
			if t.Index == skip {
				continue
			}
			if lo == 0 {
				lo = t.Index
			}
			hi = t.Index
		}
	}
	return 0, 0, fmt.Errorf("%w: group after token %d never closes", ErrUnbalancedScope, pos)
}

func enclosingOpen(tokens []Token, pos int) (int, error) {
	depth := 0
	for i := pos - 1; i >= 0; i-- {
		switch tokens[i].Kind {
		case TokenClose:
			depth++
		case TokenOpen:
			if depth == 0 {
				return i, nil
			}
			depth--
		}
	}
	return 0, fmt.Errorf("%w: token %d has no enclosing group", ErrUnbalancedScope, pos)
}
