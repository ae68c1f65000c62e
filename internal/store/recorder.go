package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/rindel/internal/ir"
)

// Recorder writes a runtime's trace to a Store as it happens.
// It satisfies engine.Observer.
//
// Observer callbacks cannot fail, so storage errors are logged, counted,
// and the first one is kept for Err. Recording continues after a failure;
// the run is then incomplete and its digest will not verify.
type Recorder struct {
	store  *Store
	ctx    context.Context
	run    ir.RunRecord
	logger *slog.Logger

	mu       sync.Mutex
	err      error
	failures int
}

// NewRecorder creates the run and returns a recorder appending to it.
func NewRecorder(ctx context.Context, s *Store, run ir.RunRecord, logger *slog.Logger) (*Recorder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	stored, err := s.CreateRun(ctx, run)
	if err != nil {
		return nil, err
	}
	return &Recorder{
		store:  s,
		ctx:    ctx,
		run:    stored,
		logger: logger.With("run", stored.ID),
	}, nil
}

// Run returns the stored run record.
func (r *Recorder) Run() ir.RunRecord { return r.run }

// StreamWritten implements engine.Observer.
func (r *Recorder) StreamWritten(w ir.StreamWrite) {
	if err := r.store.WriteStreamWrite(r.ctx, r.run.ID, w); err != nil {
		r.fail(err, "seq", w.Seq, "application", w.Application, "port", w.Port)
	}
}

// InstantCompleted implements engine.Observer.
func (r *Recorder) InstantCompleted(rec ir.InstantRecord) {
	if err := r.store.WriteInstant(r.ctx, r.run.ID, rec); err != nil {
		r.fail(err, "instant", rec.Instant)
	}
}

func (r *Recorder) fail(err error, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures++
	if r.err == nil {
		r.err = err
	}
	r.logger.Error("trace write failed", append(args, "error", err)...)
}

// Err returns the first storage error, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Failures returns how many writes were lost.
func (r *Recorder) Failures() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failures
}
