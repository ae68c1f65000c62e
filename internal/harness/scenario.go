package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario drives a compiled program through a sequence of host steps and
// checks its outputs after each one.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Program is the path of the CUE program (file or package directory).
	// Relative paths are resolved against the scenario file's directory.
	Program string `yaml:"program"`

	// Inputs are the root definition inputs given at activation.
	Inputs map[string]any `yaml:"inputs,omitempty"`

	// Steps run in order; each step that emits or updates inputs is one
	// instant.
	Steps []Step `yaml:"steps"`

	// Assertions validate the complete trace after the last step.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one host action followed by output checks.
type Step struct {
	// Emit sends a value out of a host-driven application of main.
	Emit *EmitStep `yaml:"emit,omitempty"`

	// Inputs updates root definition inputs.
	Inputs map[string]any `yaml:"inputs,omitempty"`

	// Expect maps "app.port" (an output of an application of main) or
	// "out.name" (a root output) to its expected value after the step.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// EmitStep names a host-driven application and the value it emits.
type EmitStep struct {
	App   string `yaml:"app"`
	Value any    `yaml:"value"`
}

// Assertion validates the trace.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check a port was written with value
	// - "trace_order": Check ports were first written in order
	// - "trace_count": Check a port was written exactly N times
	// - "instant_count": Check exactly N instants completed
	Type string `yaml:"type"`

	// Port is "app.port" (used by trace_contains, trace_count).
	Port string `yaml:"port,omitempty"`

	// Value is the expected value (used by trace_contains).
	Value any `yaml:"value,omitempty"`

	// Ports is the expected write order (used by trace_order).
	Ports []string `yaml:"ports,omitempty"`

	// Count is the expected number of writes or instants.
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertInstantCount  = "instant_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
//
// The program path is resolved against the scenario file's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the program path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "expects:" vs "expect:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Program != "" && !filepath.IsAbs(scenario.Program) && basePath != "" {
		scenario.Program = filepath.Join(basePath, scenario.Program)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Program == "" {
		return fmt.Errorf("program is required")
	}
	if _, err := os.Stat(s.Program); os.IsNotExist(err) {
		return fmt.Errorf("program not found: %s", s.Program)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Emit != nil && step.Inputs != nil {
			return fmt.Errorf("steps[%d]: emit and inputs are mutually exclusive", i)
		}
		if step.Emit == nil && step.Inputs == nil && len(step.Expect) == 0 {
			return fmt.Errorf("steps[%d]: needs emit, inputs or expect", i)
		}
		if step.Emit != nil && step.Emit.App == "" {
			return fmt.Errorf("steps[%d].emit: app is required", i)
		}
		for key := range step.Expect {
			if _, _, err := splitPort(key); err != nil {
				return fmt.Errorf("steps[%d].expect: %w", i, err)
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if _, _, err := splitPort(a.Port); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertTraceOrder:
		if len(a.Ports) == 0 {
			return fmt.Errorf("assertions[%d]: ports list is required for trace_order", index)
		}
		for _, p := range a.Ports {
			if _, _, err := splitPort(p); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	case AssertTraceCount:
		if _, _, err := splitPort(a.Port); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertInstantCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for instant_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// splitPort splits "owner.name" into its parts.
func splitPort(ref string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(ref, ".")
	if !ok || owner == "" || name == "" || strings.Contains(name, ".") {
		return "", "", fmt.Errorf("port %q must have the form app.port or out.name", ref)
	}
	return owner, name, nil
}
