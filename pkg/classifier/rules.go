package classifier

import (
	"regexp"
	"strconv"

	"github.com/Mindburn-Labs/degreeplan/pkg/layout"
	"github.com/Mindburn-Labs/degreeplan/pkg/requirement"
)

const minMax = `^(?P<min>A minimum of )?(?P<max>A maximum of )?`

var (
	courseCodeRe  = regexp.MustCompile(`[A-Z]{4}\d{4}[A-Z]?`)
	areaCodeRe    = regexp.MustCompile(`[A-Z]{4}`)
	areaPrefixRe  = regexp.MustCompile(`^[A-Z]{4}`)
	levelDigitRe  = regexp.MustCompile(`(\d)000`)
	orLiteralRe   = regexp.MustCompile(`^Or:?$`)
	followingRe   = regexp.MustCompile(`from the following (?:compulsory )?course\(?s?\)?`)
	globalTitleRe = regexp.MustCompile(`^Th(?:e|is) (?P<title>.*?) requires(?: the)? completion of (?P<units>\d{1,3}) units(?P<tail>.*?):?$`)
)

// match holds the named groups of one regexp match.
type match map[string]string

func (m match) units() int {
	n, _ := strconv.Atoi(m["units"])
	return n
}

// operator reads the optional minimum/maximum qualifier.
func (m match) operator() requirement.Operator {
	return requirement.MinMax(m["min"] != "", m["max"] != "")
}

func find(re *regexp.Regexp, text string) match {
	sub := re.FindStringSubmatch(text)
	if sub == nil {
		return nil
	}
	m := match{}
	for i, name := range re.SubexpNames() {
		if name != "" {
			m[name] = sub[i]
		}
	}
	return m
}

// rule pairs a matcher with the constructor applied when it wins.
type rule struct {
	name  string
	re    *regexp.Regexp
	build func(s *scope, id layout.NodeID, text string, m match) ([]*requirement.Order, error)
}

// paragraphRules dispatch a layout node. The first matching rule wins; the
// unknown fallback applies when none do.
//
// principalRules classify a single principal requirement. Order matters:
// the repeated-course rule shares its prefix with the single-course rule.
//
// Both tables refer back into the dispatcher, so they are assembled in init.
var paragraphRules, principalRules []rule

func init() {
	paragraphRules = []rule{
		{"global", globalTitleRe, (*scope).global},
		{"pass-through", regexp.MustCompile(`^The \d{1,3} units must (?:consist of|include):$`), (*scope).passThrough},
		{"principal", regexp.MustCompile(`^(?:A maximum of |A minimum of )?\d{1,3} units(?: (?:may|must|that) come)? from(?: the)?(?: completion of)?`), (*scope).principal},
		{"progression", regexp.MustCompile(`^(?:Students must achieve|Students who do not achieve)`), (*scope).progression},
		{"specialisation-corequisite", regexp.MustCompile(`^This specialisation must be taken in conjunction with`), (*scope).principal},
		{"alternative-sets", regexp.MustCompile(`^(?:Either|Or):?$`), (*scope).alternatives},
	}

	principalRules = []rule{
		{"single-course-multi", regexp.MustCompile(minMax + `(?P<units>\d{1,3}) units from(?: the)? completion of (?P<code>[A-Z]{4}\d{4}[A-Z]?).*?, which (?:may|must) be completed more than once(?P<topic>, in a different topic in each instance)?(?P<consecutive>, in consecutive semesters)?`), (*scope).repeatedCourse},
		{"single-course", regexp.MustCompile(`^(?P<units>\d{1,3}) units from(?: the)? completion of (?P<code>[A-Z]{4}\d{4}[A-Z]?)`), (*scope).singleCourse},
		{"compulsory-set", regexp.MustCompile(`^(?P<units>\d{1,3}) units from(?: the)? completion of the following (?:compulsory )?course\(?s\)?`), (*scope).compulsorySet},
		{"single-area", regexp.MustCompile(minMax + `(?P<units>\d{1,3}) units from(?: the)? completion of(?: further)? courses from the subject area (?P<area>[A-Z]{4})\b`), (*scope).singleArea},
		{"multiple-areas", regexp.MustCompile(minMax + `(?P<units>\d{1,3}) units from(?: the)? completion of courses from the following subject areas`), (*scope).multipleAreas},
		{"single-set", regexp.MustCompile(minMax + `(?P<units>\d{1,3}) units(?: may come| must come)? from(?: the)? completion of.*? courses? from the following(?: list)?`), (*scope).courseSet},
		{"single-set-2", regexp.MustCompile(minMax + `(?P<units>\d{1,3}) units(?: may come| must come)? from(?: one of)?(?: the)? following.*? courses?`), (*scope).courseSet},
		{"single-subplan", regexp.MustCompile(`^\d{1,3} units from(?: the)? completion of the (?P<title>.*?) (?P<kind>major|minor|specialisation)`), (*scope).singleSubplan},
		{"subplan-choice", regexp.MustCompile(`^\d{1,3} units from(?: the)? completion of one of the following (?:.*?)(?P<kind>majors|minors|specialisations)`), (*scope).subplanChoice},
		{"specialisation-corequisite", regexp.MustCompile(`^This specialisation must be taken in conjunction with the (?P<title>.*?) major`), (*scope).specialisationCoreq},
		{"specialisation-corequisite-choice", regexp.MustCompile(`^This specialisation must be taken in conjunction with a major from the following list`), (*scope).specialisationChoice},
		{"global-level", regexp.MustCompile(minMax + `(?P<units>\d{1,3}) units(?: (?:may|must|that) come)? from(?: the)?(?: completion of)?(?: further)? (?P<level>\d)0{3}-(?:level)?.*? courses(?P<area> from the subject area [A-Z]{4}.*)?`), (*scope).globalLevel},
		{"global-college", regexp.MustCompile(`^A minimum of (?P<units>\d{1,3}) units must come from completion of courses offered by the ANU College of (?P<college>[A-Z].*?)\.?$`), (*scope).globalCollege},
		{"electives", regexp.MustCompile(`^(?P<units>\d{1,3}) units from(?: the)? completion of elective courses offered by ANU`), (*scope).electives},
	}
}

// RuleNames lists the principal rules in priority order.
func RuleNames() []string {
	out := make([]string, len(principalRules))
	for i, r := range principalRules {
		out[i] = r.name
	}
	return out
}

// DefaultColleges maps college names to the subject areas they teach.
func DefaultColleges() map[string][]string {
	return map[string][]string{
		"Engineering and Computer Science": {"ENGN", "COMP"},
	}
}
