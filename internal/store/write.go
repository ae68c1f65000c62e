package store

import (
	"context"
	"fmt"

	"github.com/roach88/rindel/internal/ir"
)

// CreateRun inserts a run record and returns it with its store-assigned
// sequence number. Creating a run whose ID already exists returns the
// existing record unchanged.
func (s *Store) CreateRun(ctx context.Context, run ir.RunRecord) (ir.RunRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return run, fmt.Errorf("create run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, program, program_hash, seq)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM runs))
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.Program, run.ProgramHash)
	if err != nil {
		return run, fmt.Errorf("create run: %w", err)
	}

	stored, err := scanRun(tx.QueryRowContext(ctx, `
		SELECT id, program, program_hash, seq FROM runs WHERE id = ?
	`, run.ID))
	if err != nil {
		return run, fmt.Errorf("create run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return run, fmt.Errorf("create run: commit: %w", err)
	}
	return stored, nil
}

// WriteStreamWrite appends one stream write to a run.
// Uses ON CONFLICT DO NOTHING for idempotency - rewriting the same seq is
// silently ignored.
//
// Note: The run must exist (foreign key constraint).
func (s *Store) WriteStreamWrite(ctx context.Context, runID string, w ir.StreamWrite) error {
	value, err := marshalValue(w.Value)
	if err != nil {
		return fmt.Errorf("write stream write: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO stream_writes
		(run_id, seq, instant, activation, application, port, value)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		runID,
		w.Seq,
		w.Instant,
		w.Activation,
		w.Application,
		w.Port,
		value,
	)
	if err != nil {
		return fmt.Errorf("write stream write: %w", err)
	}
	return nil
}

// WriteInstant records a completed instant of a run.
// Uses ON CONFLICT DO NOTHING for idempotency.
//
// Note: The run must exist (foreign key constraint).
func (s *Store) WriteInstant(ctx context.Context, runID string, rec ir.InstantRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO instants (run_id, instant, tasks)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
	`, runID, rec.Instant, rec.Tasks)
	if err != nil {
		return fmt.Errorf("write instant: %w", err)
	}
	return nil
}
