package store

import (
	"context"
	"fmt"

	"github.com/roach88/rindel/internal/ir"
)

// RunState is a stored run reassembled for inspection and verification.
type RunState struct {
	Run      ir.RunRecord
	Instants []ir.InstantRecord
	Writes   []ir.StreamWrite

	// LastInstant is the last completed instant, 0 if none completed.
	LastInstant int64

	// PendingWrites counts writes stamped after LastInstant: outputs set
	// while activating, or by a pump that never finished.
	PendingWrites int

	// Digest is the trace digest of Writes; it equals the digest of the
	// live run that recorded them.
	Digest string
}

// GetRunState retrieves everything recorded for a run.
func (s *Store) GetRunState(ctx context.Context, runID string) (RunState, error) {
	var state RunState
	var err error

	if state.Run, err = s.ReadRun(ctx, runID); err != nil {
		return state, fmt.Errorf("get run state: %w", err)
	}
	if state.Instants, err = s.ReadInstants(ctx, runID); err != nil {
		return state, fmt.Errorf("get run state: %w", err)
	}
	if state.Writes, err = s.ReadWrites(ctx, runID); err != nil {
		return state, fmt.Errorf("get run state: %w", err)
	}

	if n := len(state.Instants); n > 0 {
		state.LastInstant = state.Instants[n-1].Instant
	}
	for _, w := range state.Writes {
		if w.Instant > state.LastInstant {
			state.PendingWrites++
		}
	}

	if state.Digest, err = ir.TraceDigest(state.Writes); err != nil {
		return state, fmt.Errorf("get run state: %w", err)
	}
	return state, nil
}

// VerifyDigest reports whether the stored trace of a run hashes to want.
func (s *Store) VerifyDigest(ctx context.Context, runID, want string) (bool, error) {
	writes, err := s.ReadWrites(ctx, runID)
	if err != nil {
		return false, fmt.Errorf("verify digest: %w", err)
	}
	got, err := ir.TraceDigest(writes)
	if err != nil {
		return false, fmt.Errorf("verify digest: %w", err)
	}
	return got == want, nil
}
