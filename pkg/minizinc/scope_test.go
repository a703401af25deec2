package minizinc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/degreeplan/pkg/coursefilter"
	"github.com/Mindburn-Labs/degreeplan/pkg/requirement"
)

func course(code string, units int) *requirement.Order {
	return requirement.NewLeaf("MCOMP", requirement.CategorySingleCourse, code, requirement.OpExactly, units, coursefilter.NewList(code))
}

func and(children ...*requirement.Order) *requirement.Order {
	return requirement.NewContainer("MCOMP", requirement.CategoryAlternative, "", requirement.OpAnd, children...)
}

func threshold(op requirement.Operator, units int, children ...*requirement.Order) *requirement.Order {
	c := requirement.NewContainer("MCOMP", requirement.CategoryGlobal, "", requirement.OpAnd, children...)
	c.Threshold = &requirement.Threshold{Operator: op, Units: units}
	return c
}

func level(digit string, units int) *requirement.Order {
	return requirement.NewLeaf("MCOMP", requirement.CategoryGlobalByLevel, "", requirement.OpAtLeast, units,
		coursefilter.NewPattern(nil, []string{digit}))
}

func TestLinearizeNumbersDepthFirst(t *testing.T) {
	root := and(course("COMP1100", 6), threshold(requirement.OpAtLeast, 12, course("COMP1110", 6), course("COMP2100", 6)))
	prog, err := Linearize(root, nil)
	require.NoError(t, err)

	assert.Equal(t, "( #1==6[COMP1100] AND ( #2>=12: AND #3==6[COMP1110] AND #4==6[COMP2100] ) )", prog.String())
	require.Len(t, prog.Entries, 4)
	assert.True(t, prog.Entry(2).Qualification)
	assert.False(t, prog.Entry(2).Membership)
	assert.Len(t, prog.Lists(), 3)
}

func TestLinearizeRendersUncheckableLeavesAsTrue(t *testing.T) {
	root := and(
		requirement.NewLeaf("MCOMP", requirement.CategoryElectives, "", requirement.OpExactly, 24, coursefilter.Any()),
		requirement.NewLeaf("MCOMP", requirement.CategoryProgression, "", requirement.OpExactly, 0, nil),
		requirement.NewLeaf("MCOMP", requirement.CategoryUnknown, "", requirement.OpExactly, 0, nil),
	)
	prog, err := Linearize(root, nil)
	require.NoError(t, err)
	assert.Equal(t, "( true AND true AND true )", prog.String())
	assert.Empty(t, prog.Entries)
}

func TestRecoverScopesQualificationInNestedGroup(t *testing.T) {
	root := and(
		course("COMP1100", 6),
		and(level("8", 24), course("COMP8001", 6), course("COMP8002", 6), course("COMP8003", 6), course("COMP8004", 6)),
		course("COMP1110", 6),
	)
	prog, err := Linearize(root, nil)
	require.NoError(t, err)

	scopes, err := RecoverScopes(prog)
	require.NoError(t, err)
	require.Len(t, scopes, 1)
	assert.Equal(t, Scope{Qual: 2, Start: 3, End: 7}, scopes[0])
	assert.False(t, scopes[0].Contains(1))
	assert.True(t, scopes[0].Contains(6))
	assert.False(t, scopes[0].Contains(7))
}

func TestRecoverScopesWidensTrailingQualification(t *testing.T) {
	root := and(course("COMP1100", 6), course("COMP1110", 6), level("8", 12))
	prog, err := Linearize(root, nil)
	require.NoError(t, err)

	scopes, err := RecoverScopes(prog)
	require.NoError(t, err)
	require.Len(t, scopes, 1)
	assert.Equal(t, Scope{Qual: 3, Start: 1, End: 3}, scopes[0])
}

func TestRecoverScopesSortsByStart(t *testing.T) {
	root := requirement.NewContainer("MCOMP", requirement.CategoryAlternativeSets, "", requirement.OpOr,
		and(course("COMP1100", 6), level("8", 12)),
		and(level("6", 12), course("COMP6250", 6)),
	)
	prog, err := Linearize(root, nil)
	require.NoError(t, err)

	scopes, err := RecoverScopes(prog)
	require.NoError(t, err)
	require.Len(t, scopes, 2)
	assert.Equal(t, Scope{Qual: 2, Start: 1, End: 2}, scopes[0])
	assert.Equal(t, Scope{Qual: 3, Start: 4, End: 5}, scopes[1])
}

func TestRecoverScopesRejectsUnbalancedStreams(t *testing.T) {
	tests := []struct {
		name   string
		tokens []Token
	}{
		{"unclosed", []Token{{Kind: TokenOpen}, {Kind: TokenQual, Index: 1}, {Kind: TokenAnd}, {Kind: TokenLeaf, Index: 2}}},
		{"stray close", []Token{{Kind: TokenClose}, {Kind: TokenOpen}}},
		{"qualification outside any group", []Token{{Kind: TokenQual, Index: 1}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := RecoverScopes(&Program{Tokens: tc.tokens})
			require.ErrorIs(t, err, ErrUnbalancedScope)
		})
	}
}
