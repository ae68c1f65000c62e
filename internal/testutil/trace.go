package testutil

import (
	"sync"

	"github.com/roach88/rindel/internal/ir"
)

// TraceRecorder collects stream writes and completed instants in memory.
// It satisfies engine.Observer.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex,
// so a recorder may be inspected from a test goroutine while a runtime runs.
type TraceRecorder struct {
	mu       sync.Mutex
	writes   []ir.StreamWrite
	instants []ir.InstantRecord
}

// NewTraceRecorder creates an empty recorder.
func NewTraceRecorder() *TraceRecorder {
	return &TraceRecorder{}
}

// StreamWritten records one output write.
func (r *TraceRecorder) StreamWritten(w ir.StreamWrite) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, w)
}

// InstantCompleted records one completed pump.
func (r *TraceRecorder) InstantCompleted(rec ir.InstantRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instants = append(r.instants, rec)
}

// Writes returns a copy of the recorded writes in order.
func (r *TraceRecorder) Writes() []ir.StreamWrite {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ir.StreamWrite(nil), r.writes...)
}

// Instants returns a copy of the recorded instants in order.
func (r *TraceRecorder) Instants() []ir.InstantRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ir.InstantRecord(nil), r.instants...)
}

// WritesTo returns the values written to one application port, in order.
func (r *TraceRecorder) WritesTo(application, port string) []ir.IRValue {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ir.IRValue
	for _, w := range r.writes {
		if w.Application == application && w.Port == port {
			out = append(out, w.Value)
		}
	}
	return out
}

// Digest returns the trace digest of the recorded writes.
func (r *TraceRecorder) Digest() string {
	return ir.MustTraceDigest(r.Writes())
}

// Reset clears everything recorded so far.
func (r *TraceRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = nil
	r.instants = nil
}
