// Package requirement defines the typed AND/OR tree a plan's rules classify into.
package requirement

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Mindburn-Labs/degreeplan/pkg/coursefilter"
)

// ErrInvalidTree is returned by Validate.
var ErrInvalidTree = errors.New("requirement: invalid tree")

// ContainerUnits marks a node whose unit value is not meaningful.
const ContainerUnits = -1

// Operator combines a unit value with filter membership, or children with each other.
type Operator string

const (
	OpExactly Operator = "=="
	OpAtMost  Operator = "<="
	OpAtLeast Operator = ">="
	OpAnd     Operator = "AND"
	OpOr      Operator = "OR"
)

// IsContainer reports whether the operator joins children.
func (o Operator) IsContainer() bool { return o == OpAnd || o == OpOr }

// Valid reports whether o is one of the five operators.
func (o Operator) Valid() bool {
	switch o {
	case OpExactly, OpAtMost, OpAtLeast, OpAnd, OpOr:
		return true
	}
	return false
}

// MinMax picks at-least or at-most from a rule's qualifier, exactly otherwise.
func MinMax(minimum, maximum bool) Operator {
	switch {
	case maximum:
		return OpAtMost
	case minimum:
		return OpAtLeast
	}
	return OpExactly
}

// Category records which rule produced a node.
type Category string

const (
	CategoryPlan                  Category = "plan"
	CategoryGlobal                Category = "global-requirement"
	CategorySingleCourse          Category = "single-compulsory-course"
	CategoryCompulsorySet         Category = "compulsory-course-set"
	CategorySingleAreaMin         Category = "single-area-min"
	CategorySingleAreaMax         Category = "single-area-max"
	CategoryMultipleAreasMin      Category = "multiple-areas-min"
	CategoryMultipleAreasMax      Category = "multiple-areas-max"
	CategoryCourseSet             Category = "single-course-set"
	CategoryRepeatedCourse        Category = "course-repeated-multiple-times"
	CategorySingleSubplan         Category = "single-subplan"
	CategorySubplanChoice         Category = "subplan-choice"
	CategorySpecialisationCoreq   Category = "specialisation-corequisite"
	CategorySpecialisationChoice  Category = "specialisation-corequisite-choice"
	CategoryGlobalByLevel         Category = "global-by-level"
	CategoryGlobalByCollege       Category = "global-by-college"
	CategoryElectives             Category = "electives"
	CategoryProgression           Category = "progression-placeholder"
	CategoryAlternativeSets       Category = "alternative-sets"
	CategoryAlternative           Category = "alternative"
	CategoryUnknown               Category = "unknown"
)

// IsQualification reports whether nodes of this category constrain the
// requirements around them instead of standing alone.
func (c Category) IsQualification() bool {
	return c == CategoryGlobalByLevel || c == CategoryGlobalByCollege
}

// Threshold is a unit total a container's children must reach together.
type Threshold struct {
	Operator Operator `json:"operator"`
	Units    int      `json:"units"`
}

// Order is one node of the logical tree.
type Order struct {
	Code      string
	Category  Category
	Text      string
	UnitValue int
	Operator  Operator
	Filter    coursefilter.Filter
	// Threshold is set on global-requirement containers.
	Threshold *Threshold
	Children  []*Order

	parent *Order
}

// NewLeaf returns a leaf requirement.
func NewLeaf(code string, cat Category, text string, op Operator, units int, f coursefilter.Filter) *Order {
	return &Order{Code: code, Category: cat, Text: text, Operator: op, UnitValue: units, Filter: f}
}

// NewContainer returns an AND or OR node over children.
func NewContainer(code string, cat Category, text string, op Operator, children ...*Order) *Order {
	o := &Order{Code: code, Category: cat, Text: text, Operator: op, UnitValue: ContainerUnits}
	for _, c := range children {
		o.Append(c)
	}
	return o
}

// Append attaches child as the last child of o.
func (o *Order) Append(child *Order) {
	child.parent = o
	o.Children = append(o.Children, child)
}

// Parent returns the enclosing node, or nil at the root.
func (o *Order) Parent() *Order { return o.parent }

// IsLeaf reports whether the node is a unit-bearing requirement.
func (o *Order) IsLeaf() bool { return !o.Operator.IsContainer() }

// IsQualification reports whether the node scopes over its neighbours.
func (o *Order) IsQualification() bool {
	if o.Threshold != nil {
		return true
	}
	return o.IsLeaf() && o.Category.IsQualification() && o.Filter != nil
}

// Walk visits o and its descendants depth first. Returning false from fn
// skips the node's children.
func (o *Order) Walk(fn func(*Order) bool) {
	if !fn(o) {
		return
	}
	for _, c := range o.Children {
		c.Walk(fn)
	}
}

// Leaves returns every leaf under o in order.
func (o *Order) Leaves() []*Order {
	var out []*Order
	o.Walk(func(n *Order) bool {
		if n.IsLeaf() {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Validate checks the shape rules of every node: leaves have no children and
// a non-negative unit value; containers have unit value -1 and at least one
// child; thresholds only sit on AND containers.
func (o *Order) Validate() error {
	var errs []error
	o.Walk(func(n *Order) bool {
		if err := n.validateNode(); err != nil {
			errs = append(errs, err)
		}
		return true
	})
	return errors.Join(errs...)
}

func (o *Order) validateNode() error {
	switch {
	case !o.Operator.Valid():
		return fmt.Errorf("%w: %q has unknown operator %q", ErrInvalidTree, o.Text, o.Operator)
	case o.Operator.IsContainer() && o.UnitValue != ContainerUnits:
		return fmt.Errorf("%w: container %q has unit value %d", ErrInvalidTree, o.Text, o.UnitValue)
	case o.Operator.IsContainer() && len(o.Children) == 0:
		return fmt.Errorf("%w: container %q has no children", ErrInvalidTree, o.Text)
	case !o.Operator.IsContainer() && len(o.Children) > 0:
		return fmt.Errorf("%w: leaf %q has children", ErrInvalidTree, o.Text)
	case !o.Operator.IsContainer() && o.UnitValue < 0:
		return fmt.Errorf("%w: leaf %q has negative unit value", ErrInvalidTree, o.Text)
	case o.Threshold != nil && o.Operator != OpAnd:
		return fmt.Errorf("%w: threshold on %s node %q", ErrInvalidTree, o.Operator, o.Text)
	}
	for _, c := range o.Children {
		if c.parent != o {
			return fmt.Errorf("%w: child %q of %q has a stale parent link", ErrInvalidTree, c.Text, o.Text)
		}
	}
	return nil
}

// String renders the tree one node per line, indented by depth.
func (o *Order) String() string {
	var b strings.Builder
	var walk func(*Order, int)
	walk = func(n *Order, depth int) {
		b.WriteString(strings.Repeat("  ", depth))
		if n.Operator.IsContainer() {
			fmt.Fprintf(&b, "%s [%s]", n.Operator, n.Category)
			if n.Threshold != nil {
				fmt.Fprintf(&b, " %s%d units", n.Threshold.Operator, n.Threshold.Units)
			}
		} else {
			fmt.Fprintf(&b, "%s%d units %s [%s]", n.Operator, n.UnitValue, coursefilter.Describe(n.Filter), n.Category)
		}
		b.WriteByte('\n')
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	walk(o, 0)
	return b.String()
}
