package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/akl/internal/compiler"
	"github.com/roach88/akl/internal/engine"
	"github.com/roach88/akl/internal/kb"
	"github.com/roach88/akl/internal/render"
)

// Scenario defines one document test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config overrides engine and render settings.
	Config ScenarioConfig `yaml:"config,omitempty"`

	// Document is the embedded op list, in the same syntax as a YAML
	// document file's document: key.
	Document yaml.Node `yaml:"document,omitempty"`

	// Source names a .cue or .yaml document file instead of Document.
	// Relative paths are resolved against the scenario's directory.
	Source string `yaml:"source,omitempty"`

	// Assertions validate the output and final knowledge base.
	Assertions []Assertion `yaml:"assertions"`

	// RunID is an optional fixed run id. Defaults to "scenario-<name>".
	RunID string `yaml:"run_id,omitempty"`

	// path is the scenario file, used in compile errors.
	path string
}

// ScenarioConfig holds per-scenario engine settings. Zero values keep the
// engine defaults.
type ScenarioConfig struct {
	MaxPasses int    `yaml:"max_passes,omitempty"`
	Rebind    string `yaml:"rebind,omitempty"`
	Lookups   string `yaml:"lookups,omitempty"`
	Style     string `yaml:"style,omitempty"`
}

// Assertion validates the rendered output or the final knowledge base.
type Assertion struct {
	// Type specifies the assertion type; see the package documentation.
	Type string `yaml:"type"`

	// Expect is the full expected output (output_equals).
	Expect string `yaml:"expect,omitempty"`

	// Text is the expected substring (output_contains).
	Text string `yaml:"text,omitempty"`

	// Name is the entity name (resolve, attribute) or the raw placeholder
	// name (fragment_error).
	Name string `yaml:"name,omitempty"`

	// Key is the attribute key (attribute, entities_with).
	Key string `yaml:"key,omitempty"`

	// Value is the expected attribute value (attribute) or convergence
	// flag (converged).
	Value *string `yaml:"value,omitempty"`

	// Entity is the expected id (resolve).
	Entity int64 `yaml:"entity,omitempty"`

	// Entities is the expected reverse index, most recent first (entities_with).
	Entities []int64 `yaml:"entities,omitempty"`

	// Missing expects a NameNotFound (resolve) or AttributeNotFound (attribute).
	Missing bool `yaml:"missing,omitempty"`

	// Count is the expected number of passes (passes).
	Count int `yaml:"count,omitempty"`

	// Code is the expected error code (fragment_error, run_error).
	Code string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertOutputEquals   = "output_equals"
	AssertOutputContains = "output_contains"
	AssertResolve        = "resolve"
	AssertAttribute      = "attribute"
	AssertEntitiesWith   = "entities_with"
	AssertPasses         = "passes"
	AssertConverged      = "converged"
	AssertFragmentError  = "fragment_error"
	AssertRunError       = "run_error"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the source path relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	scenario.path = path

	if scenario.Source != "" && !filepath.IsAbs(scenario.Source) && basePath != "" {
		scenario.Source = filepath.Join(basePath, scenario.Source)
	}
	if scenario.Source != "" {
		if _, err := os.Stat(scenario.Source); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: source file not found: %s", scenario.Source)
		}
	}

	return scenario, nil
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// compile turns the embedded document or source file into an op stream.
func (s *Scenario) compile() (*compiler.Document, error) {
	if s.Source != "" {
		src, err := os.ReadFile(s.Source)
		if err != nil {
			return nil, fmt.Errorf("read source: %w", err)
		}
		return compiler.Compile(s.Source, src)
	}
	name := s.path
	if name == "" {
		name = s.Name
	}
	doc, err := compiler.CompileYAMLNode(name, &s.Document)
	if err != nil {
		return nil, err
	}
	doc.Source = name
	return doc, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	hasDocument := s.Document.Kind != 0
	if hasDocument == (s.Source != "") {
		return fmt.Errorf("exactly one of document or source is required")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.Config.MaxPasses < 0 {
		return fmt.Errorf("config.max_passes must be non-negative")
	}
	if _, ok := kb.ParseRebindPolicy(s.Config.Rebind); !ok {
		return fmt.Errorf("config.rebind: unknown policy %q", s.Config.Rebind)
	}
	if _, ok := engine.ParseLookupPolicy(s.Config.Lookups); !ok {
		return fmt.Errorf("config.lookups: unknown policy %q", s.Config.Lookups)
	}
	if _, err := render.ForStyle(s.Config.Style); err != nil {
		return fmt.Errorf("config.style: %w", err)
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertOutputEquals:
	case AssertOutputContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for output_contains", index)
		}
	case AssertResolve:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for resolve", index)
		}
		if a.Entity == 0 && !a.Missing {
			return fmt.Errorf("assertions[%d]: entity or missing is required for resolve", index)
		}
	case AssertAttribute:
		if a.Name == "" || a.Key == "" {
			return fmt.Errorf("assertions[%d]: name and key are required for attribute", index)
		}
		if a.Value == nil && !a.Missing {
			return fmt.Errorf("assertions[%d]: value or missing is required for attribute", index)
		}
	case AssertEntitiesWith:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for entities_with", index)
		}
	case AssertPasses:
		if a.Count < 1 {
			return fmt.Errorf("assertions[%d]: count must be positive for passes", index)
		}
	case AssertConverged:
		if a.Value == nil {
			return fmt.Errorf("assertions[%d]: value is required for converged", index)
		}
		if *a.Value != "true" && *a.Value != "false" {
			return fmt.Errorf("assertions[%d]: converged value must be true or false", index)
		}
	case AssertFragmentError:
		if a.Name == "" || a.Code == "" {
			return fmt.Errorf("assertions[%d]: name and code are required for fragment_error", index)
		}
	case AssertRunError:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for run_error", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
