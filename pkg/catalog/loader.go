package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// SupportedVersions is the catalog format range this build reads.
const SupportedVersions = "^1.0.0"

const schemaURL = "mem://degreeplan/catalog.schema.json"

const catalogSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["version", "courses"],
  "properties": {
    "version": {"type": "string"},
    "courses": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["code"],
        "additionalProperties": false,
        "properties": {
          "code": {"$ref": "#/$defs/code"},
          "units": {"type": "array", "items": {"type": "integer", "minimum": 0}},
          "semesters": {"type": "array", "items": {"type": "string", "pattern": "^[a-z_]+$"}},
          "prerequisites": {
            "type": "array",
            "maxItems": 3,
            "items": {"type": "array", "minItems": 1, "maxItems": 3, "items": {"$ref": "#/$defs/code"}}
          },
          "corequisite": {"$ref": "#/$defs/code"},
          "incompatible": {"type": "array", "maxItems": 3, "items": {"$ref": "#/$defs/code"}}
        }
      }
    }
  },
  "$defs": {
    "code": {"type": "string", "pattern": "^[A-Z]{4}[0-9]{4}[A-Z]?$"}
  }
}`

// file is the on-disk catalog layout.
type file struct {
	Version string   `json:"version" yaml:"version"`
	Courses []Course `json:"courses" yaml:"courses"`
}

var compiledSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, strings.NewReader(catalogSchema)); err != nil {
		panic(fmt.Sprintf("catalog schema: %v", err))
	}
	return c.MustCompile(schemaURL)
}

// LoadFile reads a YAML or JSON catalog file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %q: %w", path, err)
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load catalog %q: %w", path, err)
	}
	return cat, nil
}

// Parse decodes, validates and version-checks catalog bytes. JSON is a subset
// of YAML so both formats go through the YAML decoder.
func Parse(data []byte) (*Catalog, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	// The schema validator expects encoding/json value types.
	asJSON, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	var doc any
	if err := json.Unmarshal(asJSON, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	var f file
	if err := json.Unmarshal(asJSON, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if err := checkVersion(f.Version); err != nil {
		return nil, err
	}
	return New(f.Version, f.Courses...), nil
}

func checkVersion(v string) error {
	version, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrUnsupportedVersion, v, err)
	}
	constraint, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return fmt.Errorf("catalog version constraint: %w", err)
	}
	if !constraint.Check(version) {
		return fmt.Errorf("%w: %s does not satisfy %s", ErrUnsupportedVersion, v, SupportedVersions)
	}
	return nil
}

// Marshal renders a catalog in the YAML file layout.
func Marshal(c *Catalog) ([]byte, error) {
	out, err := yaml.Marshal(file{Version: c.Version, Courses: c.Courses()})
	if err != nil {
		return nil, fmt.Errorf("marshal catalog: %w", err)
	}
	return out, nil
}
