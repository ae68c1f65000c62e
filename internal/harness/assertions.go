package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/rindel/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string           // Assertion type for categorization
	Expected string           // Human-readable expected outcome
	Actual   string           // Human-readable actual outcome
	Trace    []ir.StreamWrite // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, w := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] @%d %s.%s = %s\n", w.Seq, w.Instant, w.Application, w.Port, formatValue(w.Value))
	}
	return buf.String()
}

// writesTo returns the trace entries for one "app.port" reference.
func writesTo(trace []ir.StreamWrite, port string) []ir.StreamWrite {
	app, name, err := splitPort(port)
	if err != nil {
		return nil
	}
	var out []ir.StreamWrite
	for _, w := range trace {
		if w.Application == app && w.Port == name {
			out = append(out, w)
		}
	}
	return out
}

// assertTraceContains checks that the port was written with the value at
// least once.
func assertTraceContains(trace []ir.StreamWrite, a Assertion) error {
	want, err := ir.FromGo(a.Value)
	if err != nil {
		return fmt.Errorf("trace_contains %s: %w", a.Port, err)
	}

	writes := writesTo(trace, a.Port)
	for _, w := range writes {
		if valuesEqual(w.Value, want) {
			return nil
		}
	}

	seen := make([]string, len(writes))
	for i, w := range writes {
		seen[i] = formatValue(w.Value)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s written with %s", a.Port, formatValue(want)),
		Actual:   fmt.Sprintf("written with [%s]", strings.Join(seen, ", ")),
		Trace:    trace,
	}
}

// assertTraceOrder checks that the ports were first written in the given
// order. Ports don't need to be consecutive.
func assertTraceOrder(trace []ir.StreamWrite, a Assertion) error {
	positions := make(map[string]int)
	for i, w := range trace {
		key := w.Application + "." + w.Port
		if _, ok := positions[key]; !ok {
			positions[key] = i + 1 // 1-indexed for readability
		}
	}

	for _, port := range a.Ports {
		if positions[port] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all ports written: %v", a.Ports),
				Actual:   fmt.Sprintf("never written: %s", port),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Ports); i++ {
		prev, curr := a.Ports[i-1], a.Ports[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("ports first written in order: %v", a.Ports),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that the port was written exactly Count times.
func assertTraceCount(trace []ir.StreamWrite, a Assertion) error {
	count := len(writesTo(trace, a.Port))
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%s written %d times", a.Port, a.Count),
			Actual:   fmt.Sprintf("written %d times", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertInstantCount checks how many instants completed.
func assertInstantCount(result *Result, a Assertion) error {
	if len(result.Instants) != a.Count {
		return &AssertionError{
			Type:     AssertInstantCount,
			Expected: fmt.Sprintf("%d instants", a.Count),
			Actual:   fmt.Sprintf("%d instants", len(result.Instants)),
			Trace:    result.Trace,
		}
	}
	return nil
}

// EvaluateAssertions runs every assertion against the result and returns
// the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertInstantCount:
			err = assertInstantCount(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
