package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/rindel/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string             `json:"scenario_name"`
	Instants     []ir.InstantRecord `json:"instants"`
	Trace        []ir.StreamWrite   `json:"trace"`
}

// object converts a TraceSnapshot to an IRObject for canonical JSON
// serialization.
func (s *TraceSnapshot) object() ir.IRObject {
	instants := make(ir.IRArray, len(s.Instants))
	for i, rec := range s.Instants {
		instants[i] = ir.IRObject{
			"instant": ir.IRInt(rec.Instant),
			"tasks":   ir.IRInt(rec.Tasks),
		}
	}
	trace := make(ir.IRArray, len(s.Trace))
	for i, w := range s.Trace {
		trace[i] = w.Object()
	}
	return ir.IRObject{
		"scenario_name": ir.IRString(s.ScenarioName),
		"instants":      instants,
		"trace":         trace,
	}
}

// Snapshot returns the canonical golden bytes of a result.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Instants:     result.Instants,
		Trace:        result.Trace,
	}
	return ir.MarshalCanonical(snapshot.object())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...RunOption) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}

// WriteGolden writes the golden file for a result under dir, creating dir
// if needed. It returns the path written.
func WriteGolden(dir, scenarioName string, result *Result) (string, error) {
	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create golden dir: %w", err)
	}
	path := filepath.Join(dir, scenarioName+".golden")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write golden file: %w", err)
	}
	return path, nil
}

// CompareGolden reports whether a result matches the golden file under dir.
// A missing golden file is an error.
func CompareGolden(dir, scenarioName string, result *Result) (bool, error) {
	want, err := os.ReadFile(filepath.Join(dir, scenarioName+".golden"))
	if err != nil {
		return false, fmt.Errorf("read golden file: %w", err)
	}
	got, err := Snapshot(scenarioName, result)
	if err != nil {
		return false, err
	}
	return string(want) == string(got), nil
}
