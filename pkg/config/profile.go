package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile tunes how pages are read and how models are emitted.
type Profile struct {
	Name string `yaml:"name" json:"name"`

	Layout     LayoutProfile       `yaml:"layout" json:"layout"`
	Colleges   map[string][]string `yaml:"colleges" json:"colleges"`
	Preference PreferenceProfile   `yaml:"preference" json:"preference"`

	StartSemester int `yaml:"start_semester" json:"start_semester"`
}

// LayoutProfile locates the requirements section of a page.
type LayoutProfile struct {
	IndentStep      int    `yaml:"indent_step" json:"indent_step"`
	ProgramHeaderID string `yaml:"program_header_id" json:"program_header_id"`
	SubplanHeaderID string `yaml:"subplan_header_id" json:"subplan_header_id"`
	EndTag          string `yaml:"end_tag" json:"end_tag"`
}

// PreferenceProfile scales user preferences into solver weights.
type PreferenceProfile struct {
	Scale   float64 `yaml:"scale" json:"scale"`
	Default int     `yaml:"default" json:"default"`
}

// DefaultProfile returns the profile for programsandcourses pages.
func DefaultProfile() *Profile {
	return &Profile{
		Name: "default",
		Layout: LayoutProfile{
			IndentStep:      40,
			ProgramHeaderID: "program-requirements",
			SubplanHeaderID: "requirements",
			EndTag:          "h2",
		},
		Colleges: map[string][]string{
			"Engineering and Computer Science": {"ENGN", "COMP"},
		},
		Preference:    PreferenceProfile{Scale: 5, Default: 3},
		StartSemester: 1,
	}
}

// LoadProfile reads a YAML profile. Fields the file leaves unset keep their
// defaults.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", path, err)
	}

	profile := DefaultProfile()
	if err := yaml.Unmarshal(data, profile); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", path, err)
	}
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("profile %q: %w", path, err)
	}
	return profile, nil
}

// LoadProfileOrDefault returns the default profile when path is empty.
func LoadProfileOrDefault(path string) (*Profile, error) {
	if path == "" {
		return DefaultProfile(), nil
	}
	return LoadProfile(path)
}

// Validate rejects values the pipeline cannot use.
func (p *Profile) Validate() error {
	switch {
	case p.Layout.IndentStep <= 0:
		return fmt.Errorf("indent_step must be positive, got %d", p.Layout.IndentStep)
	case p.Layout.ProgramHeaderID == "" || p.Layout.SubplanHeaderID == "":
		return fmt.Errorf("header ids must be set")
	case p.Preference.Scale <= 0:
		return fmt.Errorf("preference scale must be positive, got %v", p.Preference.Scale)
	case p.StartSemester < 1:
		return fmt.Errorf("start_semester must be at least 1, got %d", p.StartSemester)
	}
	return nil
}
