// Package catalog holds the externally curated course data the planner reads:
// the course registry, requisite relations and offering calendars.
package catalog

import (
	"errors"
	"regexp"
)

var (
	// ErrInvalidCatalog is returned when catalog data fails validation.
	ErrInvalidCatalog = errors.New("catalog: invalid catalog")
	// ErrUnsupportedVersion is returned for catalog files of an unknown format version.
	ErrUnsupportedVersion = errors.New("catalog: unsupported catalog version")
)

// Relation widths fixed by the solver library.
const (
	MaxPrereqAlternatives = 3
	MaxPrereqConjuncts    = 3
	MaxIncompatible       = 3
)

var courseCodeRe = regexp.MustCompile(`^[A-Z]{4}\d{4}[A-Z]?$`)

// IsCourseCode reports whether s is a well-formed course code such as COMP6442.
func IsCourseCode(s string) bool { return courseCodeRe.MatchString(s) }

// Course is the curated data for one course.
type Course struct {
	Code string `json:"code" yaml:"code"`
	// Units lists the unit values the course is offered at, in native solver units.
	Units     []int    `json:"units,omitempty" yaml:"units,omitempty"`
	Semesters []string `json:"semesters,omitempty" yaml:"semesters,omitempty"`
	// Prerequisites is a disjunction of conjunctions.
	Prerequisites [][]string `json:"prerequisites,omitempty" yaml:"prerequisites,omitempty"`
	Corequisite   string     `json:"corequisite,omitempty" yaml:"corequisite,omitempty"`
	Incompatible  []string   `json:"incompatible,omitempty" yaml:"incompatible,omitempty"`
}

// Catalog is a read-only lookup over curated course data.
type Catalog struct {
	Version string
	order   []string
	courses map[string]Course
}

// New builds a catalog from courses, keeping their order. A repeated code
// replaces the earlier entry in place.
func New(version string, courses ...Course) *Catalog {
	c := &Catalog{Version: version, courses: make(map[string]Course, len(courses))}
	for _, course := range courses {
		if _, ok := c.courses[course.Code]; !ok {
			c.order = append(c.order, course.Code)
		}
		c.courses[course.Code] = course
	}
	return c
}

// Codes lists every known code in catalog order.
func (c *Catalog) Codes() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Courses lists every course in catalog order.
func (c *Catalog) Courses() []Course {
	out := make([]Course, 0, len(c.order))
	for _, code := range c.order {
		out = append(out, c.courses[code])
	}
	return out
}

// Course looks up one course.
func (c *Catalog) Course(code string) (Course, bool) {
	course, ok := c.courses[code]
	return course, ok
}

// Prerequisites returns the disjunctive prerequisite groups of code.
func (c *Catalog) Prerequisites(code string) [][]string {
	return c.courses[code].Prerequisites
}

// Corequisite returns the single corequisite of code, or "".
func (c *Catalog) Corequisite(code string) string {
	return c.courses[code].Corequisite
}

// Incompatible returns the courses that exclude code.
func (c *Catalog) Incompatible(code string) []string {
	return c.courses[code].Incompatible
}

// Units returns the offered unit values of code.
func (c *Catalog) Units(code string) []int {
	return c.courses[code].Units
}

// Semesters returns the semester labels code is offered in.
func (c *Catalog) Semesters(code string) []string {
	return c.courses[code].Semesters
}

// NewRegistry seeds a run-scoped registry with every catalog code.
func (c *Catalog) NewRegistry() *Registry {
	return NewRegistry(c.order...)
}
