package harness

import (
	"github.com/roach88/rindel/internal/ir"
)

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expect clause and assertion matched.
	Pass bool `json:"pass"`

	// Errors contains mismatch messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Steps holds the observed value of every expected port after each step.
	Steps []StepResult `json:"steps"`

	// Trace contains every stream write in order.
	Trace []ir.StreamWrite `json:"trace"`

	// Instants lists the completed instants in order.
	Instants []ir.InstantRecord `json:"instants"`

	// Digest is the trace digest; equal scenarios give equal digests.
	Digest string `json:"digest"`
}

// StepResult records what one step observed.
type StepResult struct {
	Step    int                   `json:"step"`
	Instant int64                 `json:"instant"` // Clock reading after the step
	Outputs map[string]ir.IRValue `json:"outputs,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Errors:   []string{},
		Steps:    []StepResult{},
		Trace:    []ir.StreamWrite{},
		Instants: []ir.InstantRecord{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
