package minizinc

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Mindburn-Labs/degreeplan/pkg/catalog"
	"github.com/Mindburn-Labs/degreeplan/pkg/coursefilter"
	"github.com/Mindburn-Labs/degreeplan/pkg/requirement"
)

// ErrFocusOutOfRange is returned when Options.Focus names no qualification.
var ErrFocusOutOfRange = errors.New("minizinc: focus index out of range")

const (
	// LibraryName is the file every generated model includes.
	LibraryName = "general.mzn"
	// NoneCourse pads fixed-width relation arrays.
	NoneCourse = "None"

	DefaultPreferenceScale = 5
	DefaultPreference      = 3
	DefaultStartSemester   = 1

	// creditsPerUnit converts source credit units to native solver units.
	creditsPerUnit = 6
)

//go:embed general.mzn
var library string

// Library returns the shared predicate library generated models include.
func Library() string { return library }

// Options tune one compilation.
type Options struct {
	// Preferences maps course codes to a preference in [0, 1].
	Preferences map[string]float64
	// OldPlan maps course codes to the semester a previous plan placed them in.
	OldPlan map[string]int
	// Undesired lists courses to drop from OldPlan. A non-empty list switches
	// the goal to minimal deviation from OldPlan.
	Undesired []string
	// Focus is a 1-based index into the sorted qualification scopes. That
	// qualification is also emitted as a standalone constraint. Zero disables
	// it, so the first qualification is only repeated when Focus is 1.
	Focus int
	// StartSemester defaults to 1.
	StartSemester int
	// PreferenceScale defaults to 5.
	PreferenceScale float64
	// DefaultPreference applies to courses without a preference. Defaults to 3.
	DefaultPreference int
}

func (o Options) withDefaults() Options {
	if o.StartSemester == 0 {
		o.StartSemester = DefaultStartSemester
	}
	if o.PreferenceScale == 0 {
		o.PreferenceScale = DefaultPreferenceScale
	}
	if o.DefaultPreference == 0 {
		o.DefaultPreference = DefaultPreference
	}
	return o
}

// Replanning reports whether the options describe an incremental re-plan.
func (o Options) Replanning() bool { return len(o.Undesired) > 0 }

// Model is a compiled requirement tree.
type Model struct {
	Declarations string
	Data         string
	Program      *Program
	Scopes       []Scope
	Closure      Closure
	// Constraint is the rendered requirement expression.
	Constraint string
}

// Emitter compiles requirement trees against one set of course relations.
type Emitter struct {
	rel    Relations
	logger *slog.Logger
}

// NewEmitter returns an emitter reading requisite data from rel.
func NewEmitter(rel Relations) *Emitter {
	if rel == nil {
		rel = catalog.New("")
	}
	return &Emitter{rel: rel, logger: slog.Default().With("component", "minizinc")}
}

// Emit compiles root. reg resolves pattern filters; it is extended with any
// explicitly listed course it lacks.
func (e *Emitter) Emit(ctx context.Context, root *requirement.Order, reg *catalog.Registry, opts Options) (*Model, error) {
	opts = opts.withDefaults()

	prog, err := Linearize(root, reg)
	if err != nil {
		return nil, err
	}
	scopes, err := RecoverScopes(prog)
	if err != nil {
		return nil, err
	}
	if opts.Focus < 0 || opts.Focus > len(scopes) {
		return nil, fmt.Errorf("%w: %d of %d", ErrFocusOutOfRange, opts.Focus, len(scopes))
	}

	w := &writer{prog: prog, scopes: scopes, opts: opts, rel: e.rel}
	m := &Model{Program: prog, Scopes: scopes, Constraint: w.constraint()}

	var seed []string
	for _, l := range prog.Lists() {
		seed = append(seed, l.Courses...)
	}
	m.Closure = Close(seed, e.rel)
	w.closure = m.Closure

	m.Declarations = w.declarations(m.Constraint)
	m.Data = w.data()

	e.logger.DebugContext(ctx, "compiled model",
		"plan", root.Code,
		"lists", len(prog.Lists()),
		"qualifications", len(scopes),
		"grad_courses", len(m.Closure.Grad),
		"undergrad_courses", len(m.Closure.Undergrad),
	)
	return m, nil
}

type writer struct {
	prog    *Program
	scopes  []Scope
	opts    Options
	rel     Relations
	closure Closure
}

func (w *writer) scopeOf(qual int) Scope {
	for _, s := range w.scopes {
		if s.Qual == qual {
			return s
		}
	}
	return Scope{Qual: qual, Start: qual + 1, End: qual + 1}
}

// constraint renders the token stream as one MiniZinc expression.
func (w *writer) constraint() string {
	parts := make([]string, 0, len(w.prog.Tokens))
	for _, t := range w.prog.Tokens {
		switch t.Kind {
		case TokenOpen:
			parts = append(parts, "(")
		case TokenClose:
			parts = append(parts, ")")
		case TokenAnd:
			parts = append(parts, `/\`)
		case TokenOr:
			parts = append(parts, `\/`)
		case TokenTrue:
			parts = append(parts, "true")
		case TokenLeaf:
			en := w.prog.Entry(t.Index)
			parts = append(parts, fmt.Sprintf("requirement_node(takes, list%d, %d, %d)", t.Index, symbol(en.Operator()), native(en.Units())))
		case TokenQual:
			parts = append(parts, w.qualification(w.scopeOf(t.Index)))
		}
	}
	return strings.Join(parts, " ")
}

// qualification renders a qualification over the plain course lists of its
// scope.
func (w *writer) qualification(s Scope) string {
	en := w.prog.Entry(s.Qual)
	var lists []int
	for i := s.Start; i < s.End && i <= len(w.prog.Entries); i++ {
		inner := w.prog.Entry(i)
		if !s.Contains(i) || inner.Qualification {
			continue
		}
		if !en.Membership && inner.Units() == 0 {
			continue
		}
		lists = append(lists, i)
	}

	if en.Membership {
		pool := fmt.Sprintf("array2set(qual%d)", s.Qual)
		if len(lists) > 0 {
			sets := make([]string, len(lists))
			for i, l := range lists {
				sets[i] = fmt.Sprintf("array2set(list%d)", l)
			}
			pool = strings.Join(sets, " union ")
		}
		return fmt.Sprintf("level_criteria(takes, %s, qual%d, %d, %d)", pool, s.Qual, symbol(en.Operator()), native(en.Units()))
	}

	if len(lists) == 0 {
		return "true"
	}
	sums := make([]string, len(lists))
	for i, l := range lists {
		sums[i] = fmt.Sprintf("unit_sum(list%d)", l)
	}
	return fmt.Sprintf("%s %s %d", strings.Join(sums, " + "), comparison(en.Operator()), native(en.Units()))
}

func (w *writer) declarations(constraint string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "include %q;\n\n", LibraryName)

	b.WriteString("enum courses;\n")
	b.WriteString("set of courses: grad_courses;\n")
	b.WriteString("set of courses: undergrad_courses;\n")
	b.WriteString("enum semesters;\n\n")
	b.WriteString("int: start_semester;\n")
	b.WriteString("int: no_of_grad_courses;\n\n")

	fmt.Fprintf(&b, "array[grad_courses, 1..%d, 1..%d] of courses: prereq;\n", catalog.MaxPrereqAlternatives, catalog.MaxPrereqConjuncts)
	b.WriteString("array[grad_courses, 1..1, 1..1] of courses: corequisite;\n")
	fmt.Fprintf(&b, "array[grad_courses, 1..1, 1..%d] of courses: incompat;\n", catalog.MaxIncompatible)
	b.WriteString("array[grad_courses] of set of int: time_unit_available;\n")
	b.WriteString("array[grad_courses] of set of semesters: offered_semester;\n\n")

	if w.opts.Replanning() {
		b.WriteString("array[grad_courses] of -1..4: old_plan;\n")
	}
	b.WriteString("array[grad_courses] of int: preference;\n\n")

	for _, en := range w.prog.Entries {
		switch {
		case en.Membership:
			fmt.Fprintf(&b, "array[1..%d] of courses: qual%d;\n", len(w.qualCourses(en)), en.Index)
		case !en.Qualification:
			fmt.Fprintf(&b, "array[1..%d] of courses: list%d;\n", len(en.Courses), en.Index)
		}
	}
	fmt.Fprintf(&b, "array[1..%d] of courses: level8;\n\n", len(w.level8()))

	if w.opts.Focus > 0 {
		fmt.Fprintf(&b, "constraint (%s);\n\n", w.qualification(w.scopes[w.opts.Focus-1]))
	}
	fmt.Fprintf(&b, "constraint %s;\n\n", constraint)

	if w.opts.Replanning() {
		b.WriteString("solve minimize sum(c in grad_courses where old_plan[c] > 0)(abs(old_plan[c] - takes[c])) + sum(c in grad_courses where old_plan[c] == -1)(abs(takes[c]));\n")
	} else {
		b.WriteString("solve maximize sum(c in grad_courses where takes[c] != 0)(preference[c]);\n")
	}
	return b.String()
}

func (w *writer) data() string {
	grad := w.closure.Grad
	var b strings.Builder

	if w.opts.Replanning() {
		undesired := make(map[string]bool, len(w.opts.Undesired))
		for _, c := range w.opts.Undesired {
			undesired[c] = true
		}
		vals := make([]string, len(grad))
		for i, c := range grad {
			v := w.opts.OldPlan[c]
			if undesired[c] {
				v = -1
			}
			vals[i] = fmt.Sprint(v)
		}
		fmt.Fprintf(&b, "old_plan = %s;\n\n", array(vals))
	}

	fmt.Fprintf(&b, "start_semester = %d;\n", w.opts.StartSemester)
	fmt.Fprintf(&b, "no_of_grad_courses = %d;\n\n", len(grad))

	prefs := make([]string, len(grad))
	for i, c := range grad {
		p := w.opts.DefaultPreference
		if v, ok := w.opts.Preferences[c]; ok {
			p = int(v * w.opts.PreferenceScale)
		}
		prefs[i] = fmt.Sprint(p)
	}
	fmt.Fprintf(&b, "preference = %s;\n\n", array(prefs))

	all := append(append(append([]string{}, grad...), NoneCourse), w.closure.Undergrad...)
	fmt.Fprintf(&b, "courses = %s;\n\n", set(all))
	fmt.Fprintf(&b, "grad_courses = %s;\n\n", set(grad))
	fmt.Fprintf(&b, "undergrad_courses = %s;\n\n", set(append([]string{NoneCourse}, w.closure.Undergrad...)))
	fmt.Fprintf(&b, "semesters = %s;\n\n", set(w.semesters()))

	for _, en := range w.prog.Entries {
		switch {
		case en.Membership:
			fmt.Fprintf(&b, "qual%d = %s;\n", en.Index, array(w.qualCourses(en)))
		case !en.Qualification:
			fmt.Fprintf(&b, "list%d = %s;\n", en.Index, array(en.Courses))
		}
	}
	fmt.Fprintf(&b, "level8 = %s;\n\n", array(w.level8()))

	var prereq, coreq, incompat []string
	for _, c := range grad {
		alts := w.rel.Prerequisites(c)
		for j := 0; j < catalog.MaxPrereqAlternatives; j++ {
			var conj []string
			if j < len(alts) {
				conj = alts[j]
			}
			prereq = append(prereq, pad(conj, catalog.MaxPrereqConjuncts)...)
		}
		coreq = append(coreq, pad([]string{w.rel.Corequisite(c)}, 1)...)
		incompat = append(incompat, pad(w.rel.Incompatible(c), catalog.MaxIncompatible)...)
	}
	fmt.Fprintf(&b, "prereq = array3d(grad_courses, 1..%d, 1..%d, %s);\n\n", catalog.MaxPrereqAlternatives, catalog.MaxPrereqConjuncts, array(prereq))
	fmt.Fprintf(&b, "corequisite = array3d(grad_courses, 1..1, 1..1, %s);\n\n", array(coreq))
	fmt.Fprintf(&b, "incompat = array3d(grad_courses, 1..1, 1..%d, %s);\n\n", catalog.MaxIncompatible, array(incompat))

	units := make([]string, len(grad))
	offered := make([]string, len(grad))
	for i, c := range grad {
		u := w.rel.Units(c)
		if len(u) == 0 {
			u = []int{1}
		}
		strs := make([]string, len(u))
		for k, v := range u {
			strs[k] = fmt.Sprint(v)
		}
		units[i] = set(strs)
		offered[i] = set(w.rel.Semesters(c))
	}
	fmt.Fprintf(&b, "time_unit_available = %s;\n\n", array(units))
	fmt.Fprintf(&b, "offered_semester = %s;\n", array(offered))
	return b.String()
}

// qualCourses lists the graduate courses a membership qualification accepts.
func (w *writer) qualCourses(en Entry) []string {
	return matching(w.closure.Grad, en.Node.Filter)
}

func (w *writer) level8() []string {
	return matching(w.closure.Grad, coursefilter.NewPattern(nil, []string{"8"}))
}

// semesters lists every offering label of the graduate courses, first seen first.
func (w *writer) semesters() []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range w.closure.Grad {
		for _, s := range w.rel.Semesters(c) {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

func matching(codes []string, f coursefilter.Filter) []string {
	var out []string
	for _, c := range codes {
		if f != nil && f.Match(c) {
			out = append(out, c)
		}
	}
	return out
}

func pad(codes []string, width int) []string {
	out := make([]string, width)
	for i := range out {
		out[i] = NoneCourse
		if i < len(codes) && codes[i] != "" {
			out[i] = codes[i]
		}
	}
	return out
}

func array(items []string) string { return "[" + strings.Join(items, ", ") + "]" }

func set(items []string) string { return "{" + strings.Join(items, ", ") + "}" }

// symbol encodes an operator for requirement_node and level_criteria.
func symbol(op requirement.Operator) int {
	switch op {
	case requirement.OpAtLeast:
		return 1
	case requirement.OpAtMost:
		return -1
	}
	return 0
}

// comparison picks the relation for a qualification's unit sum. Lists may
// name the same course, so an exact header is checked as a lower bound.
func comparison(op requirement.Operator) string {
	if op == requirement.OpAtMost {
		return string(op)
	}
	return string(requirement.OpAtLeast)
}

func native(units int) int { return units / creditsPerUnit }
