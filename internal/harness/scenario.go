package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/querybuilder/internal/queryir"
)

// Scenario defines one conversion check.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Operation is envelope, prepare, legacy, entries or composite.
	Operation string `yaml:"operation"`

	// Panel overrides the panel declared in Source. Optional.
	Panel string `yaml:"panel,omitempty"`

	// Source is a CUE query definition (envelope and prepare).
	Source string `yaml:"source,omitempty"`

	// Legacy is a nested v3 composite query (legacy).
	Legacy map[string]any `yaml:"legacy,omitempty"`

	// Entries is a flat name -> builder entry map (entries). Kinds tags
	// entries explicitly; without it kinds are migrated from the names.
	Entries map[string]any    `yaml:"entries,omitempty"`
	Kinds   map[string]string `yaml:"kinds,omitempty"`

	// Composite is a v5 composite query converted back to the legacy
	// shape and out again (composite).
	Composite map[string]any `yaml:"composite,omitempty"`

	// Range is the request window in epoch milliseconds (prepare).
	Range *TimeRange `yaml:"range,omitempty"`

	// Variables are dashboard variable values sent with the request (prepare).
	Variables map[string]any `yaml:"variables,omitempty"`

	// Assertions validate the converted output.
	Assertions []Assertion `yaml:"assertions"`
}

// TimeRange is a request window in epoch milliseconds.
type TimeRange struct {
	Start int64 `yaml:"start"`
	End   int64 `yaml:"end"`
}

// Assertion checks one property of the output.
type Assertion struct {
	Type string `yaml:"type"`

	// Names is the expected envelope name order (names).
	Names []string `yaml:"names,omitempty"`

	// Kinds is the expected envelope type order (kinds).
	Kinds []string `yaml:"kinds,omitempty"`

	// RequestType is the expected request type (request_type).
	RequestType string `yaml:"request_type,omitempty"`

	// Name and Legend select an envelope and its expected legend (legend).
	Name   string `yaml:"name,omitempty"`
	Legend string `yaml:"legend,omitempty"`

	// Count is the expected number of validation problems (problems).
	Count int `yaml:"count,omitempty"`
}

// Operations.
const (
	OpEnvelope  = "envelope"
	OpPrepare   = "prepare"
	OpLegacy    = "legacy"
	OpEntries   = "entries"
	OpComposite = "composite"
)

// Assertion types.
const (
	AssertNames       = "names"
	AssertKinds       = "kinds"
	AssertRequestType = "request_type"
	AssertLegend      = "legend"
	AssertProblems    = "problems"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos do not silently drop checks.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch s.Operation {
	case OpEnvelope, OpPrepare:
		if s.Source == "" {
			return fmt.Errorf("source is required for %s", s.Operation)
		}
		if s.Legacy != nil {
			return fmt.Errorf("legacy is only used by %s", OpLegacy)
		}
	case OpLegacy:
		if len(s.Legacy) == 0 {
			return fmt.Errorf("legacy is required for %s", OpLegacy)
		}
		if s.Source != "" {
			return fmt.Errorf("source is not used by %s", OpLegacy)
		}
	case OpEntries:
		if len(s.Entries) == 0 {
			return fmt.Errorf("entries is required for %s", OpEntries)
		}
	case OpComposite:
		if len(s.Composite) == 0 {
			return fmt.Errorf("composite is required for %s", OpComposite)
		}
	case "":
		return fmt.Errorf("operation is required")
	default:
		return fmt.Errorf("unknown operation %q", s.Operation)
	}

	if s.Kinds != nil && s.Operation != OpEntries {
		return fmt.Errorf("kinds is only used by %s", OpEntries)
	}
	if s.Operation != OpEntries && s.Operation != OpComposite && (s.Entries != nil || s.Composite != nil) {
		return fmt.Errorf("entries and composite are only used by %s and %s", OpEntries, OpComposite)
	}
	if s.Operation == OpPrepare && s.Range == nil {
		return fmt.Errorf("range is required for %s", OpPrepare)
	}
	if s.Range != nil && s.Range.End < s.Range.Start {
		return fmt.Errorf("range end precedes start")
	}
	if s.Panel != "" {
		if _, ok := queryir.ParsePanelType(s.Panel); !ok {
			return fmt.Errorf("unknown panel %q", s.Panel)
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], s.Operation); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion, operation string) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertNames:
		if len(a.Names) == 0 {
			return fmt.Errorf("assertions[%d]: names list is required for names", index)
		}
	case AssertKinds:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for kinds", index)
		}
	case AssertRequestType:
		if operation != OpPrepare {
			return fmt.Errorf("assertions[%d]: request_type only applies to %s", index, OpPrepare)
		}
		if a.RequestType == "" {
			return fmt.Errorf("assertions[%d]: request_type is required", index)
		}
	case AssertLegend:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for legend", index)
		}
	case AssertProblems:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for problems", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
