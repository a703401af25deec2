// Package audit checks a finished plan against a requirement tree.
//
// The tree is compiled once into a CEL boolean expression in which every
// unit-bearing requirement is an integer variable holding the units the plan
// achieves toward it. Evaluating a plan binds those variables and runs the
// program.
package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/Mindburn-Labs/degreeplan/pkg/coursefilter"
	"github.com/Mindburn-Labs/degreeplan/pkg/requirement"
)

var (
	// ErrNotBoolean is returned when a compiled expression yields a non-boolean.
	ErrNotBoolean = errors.New("audit: expression did not evaluate to a boolean")
	// ErrEmptyTree is returned when there is nothing to compile.
	ErrEmptyTree = errors.New("audit: empty requirement tree")
)

// Plan maps course codes to the credit units taken.
type Plan map[string]int

// Check is a compiled requirement tree.
type Check struct {
	expr    string
	vars    []binding
	program cel.Program
}

type binding struct {
	name      string
	node      *requirement.Order
	operator  requirement.Operator
	units     int
	filters   []coursefilter.Filter
	threshold bool
}

// Compile builds the CEL program for root.
func Compile(root *requirement.Order) (*Check, error) {
	if root == nil {
		return nil, ErrEmptyTree
	}
	c := &Check{}
	c.expr = c.render(root)

	opts := make([]cel.EnvOption, 0, len(c.vars))
	for _, v := range c.vars {
		opts = append(opts, cel.Variable(v.name, cel.IntType))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	ast, issues := env.Compile(c.expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile: %w", issues.Err())
	}
	prg, err := env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(100000),
	)
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	c.program = prg
	return c, nil
}

// Expression returns the compiled CEL source.
func (c *Check) Expression() string { return c.expr }

func (c *Check) render(o *requirement.Order) string {
	if o.IsLeaf() {
		if !checked(o) {
			return "true"
		}
		name := c.bind(binding{node: o, operator: o.Operator, units: o.UnitValue, filters: []coursefilter.Filter{o.Filter}})
		return fmt.Sprintf("%s %s %d", name, o.Operator, o.UnitValue)
	}

	join := " && "
	if o.Operator == requirement.OpOr {
		join = " || "
	}
	parts := make([]string, 0, len(o.Children)+1)
	if o.Threshold != nil {
		var filters []coursefilter.Filter
		for _, leaf := range o.Leaves() {
			if leaf.Filter != nil {
				filters = append(filters, leaf.Filter)
			}
		}
		if len(filters) > 0 {
			name := c.bind(binding{node: o, operator: o.Threshold.Operator, units: o.Threshold.Units, filters: filters, threshold: true})
			parts = append(parts, fmt.Sprintf("%s %s %d", name, o.Threshold.Operator, o.Threshold.Units))
		}
	}
	for _, child := range o.Children {
		parts = append(parts, c.render(child))
	}
	if len(parts) == 0 {
		return "true"
	}
	return "(" + strings.Join(parts, join) + ")"
}

// checked reports whether a leaf gets its own binding. Electives and
// uncheckable leaves still count toward an enclosing threshold.
func checked(o *requirement.Order) bool {
	if o.Filter == nil {
		return false
	}
	switch o.Category {
	case requirement.CategoryElectives, requirement.CategoryProgression, requirement.CategoryUnknown:
		return false
	}
	return true
}

func (c *Check) bind(b binding) string {
	prefix := "r"
	if b.threshold {
		prefix = "t"
	}
	b.name = fmt.Sprintf("%s%d", prefix, len(c.vars)+1)
	c.vars = append(c.vars, b)
	return b.name
}

// achieved sums the units of planned courses matched by any of the filters.
func (b binding) achieved(plan Plan) int {
	total := 0
	for code, units := range plan {
		for _, f := range b.filters {
			if f.Match(code) {
				total += units
				break
			}
		}
	}
	return total
}

func (b binding) satisfied(achieved int) bool {
	switch b.operator {
	case requirement.OpAtLeast:
		return achieved >= b.units
	case requirement.OpAtMost:
		return achieved <= b.units
	}
	return achieved == b.units
}

// Outcome is the result for one unit-bearing requirement.
type Outcome struct {
	Name      string
	Text      string
	Category  requirement.Category
	Operator  requirement.Operator
	Required  int
	Achieved  int
	Satisfied bool
}

// Report is the result of checking one plan.
type Report struct {
	Satisfied bool
	Outcomes  []Outcome
}

// Failed returns the outcomes that were not met.
func (r *Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.Satisfied {
			out = append(out, o)
		}
	}
	return out
}

// Evaluate checks plan against the compiled tree.
func (c *Check) Evaluate(ctx context.Context, plan Plan) (*Report, error) {
	input := make(map[string]any, len(c.vars))
	report := &Report{Outcomes: make([]Outcome, 0, len(c.vars))}
	for _, v := range c.vars {
		got := v.achieved(plan)
		input[v.name] = int64(got)
		report.Outcomes = append(report.Outcomes, Outcome{
			Name:      v.name,
			Text:      v.node.Text,
			Category:  v.node.Category,
			Operator:  v.operator,
			Required:  v.units,
			Achieved:  got,
			Satisfied: v.satisfied(got),
		})
	}

	out, _, err := c.program.ContextEval(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("eval: %w", err)
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return nil, ErrNotBoolean
	}
	report.Satisfied = ok
	return report, nil
}
