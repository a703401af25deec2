package minizinc

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/degreeplan/pkg/catalog"
	"github.com/Mindburn-Labs/degreeplan/pkg/coursefilter"
	"github.com/Mindburn-Labs/degreeplan/pkg/requirement"
)

func sampleCatalog() *catalog.Catalog {
	prereqs := [][]string{
		{"COMP6710"},
		{"COMP6730", "COMP6720"},
		{"COMP1100", "COMP1110", "COMP1130"},
	}
	return catalog.New("1.0.0",
		catalog.Course{Code: "COMP6442", Units: []int{1}, Semesters: []string{"odd_first", "even_first"}, Prerequisites: prereqs, Incompatible: []string{"COMP2100"}},
		catalog.Course{Code: "COMP6710", Units: []int{1}, Semesters: []string{"odd_first"}, Corequisite: "COMP6711"},
		catalog.Course{Code: "COMP8715", Units: []int{1, 2}, Semesters: []string{"odd_second"}},
		catalog.Course{Code: "COMP2100", Prerequisites: [][]string{{"COMP1110"}}},
	)
}

func TestCloseDisjunctivePrerequisites(t *testing.T) {
	c := Close([]string{"COMP6442"}, sampleCatalog())

	assert.Subset(t, c.Grad, []string{"COMP6710", "COMP6730", "COMP6720", "COMP1100", "COMP1110", "COMP1130"})
	assert.Contains(t, c.Grad, "COMP6711", "corequisite of a pulled-in prerequisite")
	assert.Equal(t, []string{"COMP2100"}, c.Undergrad)
	assert.Equal(t, "COMP6442", c.Grad[0])
	assert.LessOrEqual(t, c.Passes, len(c.Grad)+len(c.Undergrad))
}

func TestCloseDeduplicatesSeed(t *testing.T) {
	c := Close([]string{"COMP8715", "COMP8715", ""}, sampleCatalog())
	assert.Equal(t, []string{"COMP8715"}, c.Grad)
	assert.Empty(t, c.Undergrad)
	assert.Equal(t, 1, c.Passes)
}

func emit(t *testing.T, root *requirement.Order, opts Options) *Model {
	t.Helper()
	m, err := NewEmitter(sampleCatalog()).Emit(context.Background(), root, nil, opts)
	require.NoError(t, err)
	return m
}

func TestEmitScopesQualificationToEnclosingGroup(t *testing.T) {
	root := and(
		course("COMP1100", 6),
		threshold(requirement.OpAtLeast, 24,
			course("COMP8001", 6), course("COMP8002", 6), course("COMP8003", 6), course("COMP8004", 6)),
		course("COMP1110", 6),
	)
	m := emit(t, root, Options{})

	assert.Equal(t,
		"( requirement_node(takes, list1, 0, 1) /\\ ( unit_sum(list3) + unit_sum(list4) + unit_sum(list5) + unit_sum(list6) >= 4 /\\ "+
			"requirement_node(takes, list3, 0, 1) /\\ requirement_node(takes, list4, 0, 1) /\\ requirement_node(takes, list5, 0, 1) /\\ "+
			"requirement_node(takes, list6, 0, 1) ) /\\ requirement_node(takes, list7, 0, 1) )",
		m.Constraint)
	assert.NotContains(t, m.Declarations, "list2;")
}

func TestEmitExactHeaderIsLowerBound(t *testing.T) {
	root := and(
		threshold(requirement.OpExactly, 48, course("COMP1100", 24), course("COMP1110", 24)),
		threshold(requirement.OpAtMost, 12, course("COMP2100", 6), course("COMP2120", 6)),
	)
	m := emit(t, root, Options{Focus: 1})

	assert.Contains(t, m.Constraint, "unit_sum(list2) + unit_sum(list3) >= 8 /\\ ")
	assert.Contains(t, m.Constraint, "unit_sum(list5) + unit_sum(list6) <= 2 /\\ ")
	assert.NotContains(t, m.Constraint, " = 8")
	assert.Contains(t, m.Declarations, "constraint (unit_sum(list2) + unit_sum(list3) >= 8);\n\n")
	assert.Equal(t, requirement.OpExactly, root.Children[0].Threshold.Operator)
}

func TestEmitMembershipQualification(t *testing.T) {
	root := and(
		course("COMP1100", 6),
		and(level("8", 24), course("COMP8001", 6), course("COMP8002", 6), course("COMP8003", 6), course("COMP8004", 6)),
		course("COMP1110", 6),
	)
	m := emit(t, root, Options{})

	assert.Contains(t, m.Constraint,
		"level_criteria(takes, array2set(list3) union array2set(list4) union array2set(list5) union array2set(list6), qual2, 1, 4)")
	assert.NotContains(t, m.Constraint, "array2set(list1)")
	assert.NotContains(t, m.Constraint, "array2set(list7)")
	assert.Contains(t, m.Declarations, "array[1..4] of courses: qual2;\n")
	assert.Contains(t, m.Data, "qual2 = [COMP8001, COMP8002, COMP8003, COMP8004];\n")
	assert.Contains(t, m.Data, "level8 = [COMP8001, COMP8002, COMP8003, COMP8004];\n")
}

func TestEmitDeclarationsAndData(t *testing.T) {
	root := and(
		requirement.NewLeaf("MCOMP", requirement.CategoryCompulsorySet, "", requirement.OpExactly, 12,
			coursefilter.NewList("COMP6442", "COMP8715")),
		requirement.NewLeaf("MCOMP", requirement.CategoryElectives, "", requirement.OpExactly, 24, coursefilter.Any()),
	)
	m := emit(t, root, Options{Preferences: map[string]float64{"COMP8715": 0.8}})

	decl := m.Declarations
	assert.True(t, strings.HasPrefix(decl, "include \"general.mzn\";\n\n"))
	for _, want := range []string{
		"enum courses;\n",
		"set of courses: grad_courses;\n",
		"set of courses: undergrad_courses;\n",
		"array[grad_courses, 1..3, 1..3] of courses: prereq;\n",
		"array[grad_courses, 1..1, 1..1] of courses: corequisite;\n",
		"array[grad_courses, 1..1, 1..3] of courses: incompat;\n",
		"array[grad_courses] of int: preference;\n",
		"array[1..2] of courses: list1;\n",
		"constraint ( requirement_node(takes, list1, 0, 2) /\\ true );\n",
		"solve maximize sum(c in grad_courses where takes[c] != 0)(preference[c]);\n",
	} {
		assert.Contains(t, decl, want)
	}
	assert.NotContains(t, decl, "old_plan")

	data := m.Data
	grad := m.Closure.Grad
	require.Equal(t, []string{"COMP6442", "COMP8715", "COMP6710", "COMP6730", "COMP6720", "COMP1100", "COMP1110", "COMP1130", "COMP6711"}, grad)
	assert.Contains(t, data, "start_semester = 1;\nno_of_grad_courses = 9;\n")
	assert.Contains(t, data, "preference = [3, 4, 3, 3, 3, 3, 3, 3, 3];\n")
	assert.Contains(t, data, "courses = {COMP6442, COMP8715, COMP6710, COMP6730, COMP6720, COMP1100, COMP1110, COMP1130, COMP6711, None, COMP2100};\n")
	assert.Contains(t, data, "undergrad_courses = {None, COMP2100};\n")
	assert.Contains(t, data, "semesters = {odd_first, even_first, odd_second};\n")
	assert.Contains(t, data, "list1 = [COMP6442, COMP8715];\n")
	assert.Contains(t, data, "prereq = array3d(grad_courses, 1..3, 1..3, [COMP6710, None, None, COMP6730, COMP6720, None, COMP1100, COMP1110, COMP1130, ")
	assert.Contains(t, data, "corequisite = array3d(grad_courses, 1..1, 1..1, [None, None, COMP6711, ")
	assert.Contains(t, data, "incompat = array3d(grad_courses, 1..1, 1..3, [COMP2100, None, None, None, None, None, ")
	assert.Contains(t, data, "time_unit_available = [{1}, {1, 2}, {1}, {1}, ")
	assert.Contains(t, data, "offered_semester = [{odd_first, even_first}, {odd_second}, {odd_first}, {}, ")
}

func TestEmitReplanningGoal(t *testing.T) {
	root := and(requirement.NewLeaf("MCOMP", requirement.CategoryCompulsorySet, "", requirement.OpExactly, 12,
		coursefilter.NewList("COMP8715", "COMP1100")))
	m := emit(t, root, Options{
		OldPlan:   map[string]int{"COMP8715": 2, "COMP1100": 1},
		Undesired: []string{"COMP1100"},
	})

	assert.Contains(t, m.Declarations, "array[grad_courses] of -1..4: old_plan;\n")
	assert.Contains(t, m.Declarations, "solve minimize sum(c in grad_courses where old_plan[c] > 0)")
	assert.True(t, strings.HasPrefix(m.Data, "old_plan = [2, -1];\n\n"))
}

func TestEmitFocusAddsStandaloneConstraint(t *testing.T) {
	root := requirement.NewContainer("MCOMP", requirement.CategoryAlternativeSets, "", requirement.OpOr,
		threshold(requirement.OpAtLeast, 12, course("COMP8001", 6), course("COMP8002", 6)),
		threshold(requirement.OpAtLeast, 12, course("COMP8003", 6), course("COMP8004", 6)),
	)
	m := emit(t, root, Options{Focus: 2})
	assert.Contains(t, m.Declarations, "constraint (unit_sum(list5) + unit_sum(list6) >= 2);\n\n")

	_, err := NewEmitter(sampleCatalog()).Emit(context.Background(), root, nil, Options{Focus: 3})
	require.ErrorIs(t, err, ErrFocusOutOfRange)
}

func TestPatternListsSkipNamedCourses(t *testing.T) {
	reg := catalog.NewRegistry("COMP6442", "COMP6710", "MATH6005")
	root := and(
		course("COMP6442", 6),
		requirement.NewLeaf("MCOMP", requirement.CategorySingleAreaMin, "", requirement.OpAtLeast, 12,
			coursefilter.NewPattern([]string{"COMP"}, nil)),
	)
	m, err := NewEmitter(sampleCatalog()).Emit(context.Background(), root, reg, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"COMP6710"}, m.Program.Entry(2).Courses)
	assert.Contains(t, m.Constraint, "requirement_node(takes, list2, 1, 2)")
}

func TestLibraryDefinesPredicates(t *testing.T) {
	lib := Library()
	for _, name := range []string{"unit_sum", "requirement_node", "level_criteria", "takes"} {
		assert.Contains(t, lib, name)
	}
}
