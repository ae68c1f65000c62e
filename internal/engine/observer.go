package engine

import (
	"fmt"

	"github.com/roach88/rindel/internal/ir"
)

// Observer receives every native output write and every completed instant.
// Observers run synchronously on the runtime's logical thread.
type Observer interface {
	StreamWritten(w ir.StreamWrite)
	InstantCompleted(rec ir.InstantRecord)
}

type nopObserver struct{}

func (nopObserver) StreamWritten(ir.StreamWrite)      {}
func (nopObserver) InstantCompleted(ir.InstantRecord) {}

// Observers fans out to several observers in order.
type Observers []Observer

// StreamWritten implements Observer.
func (o Observers) StreamWritten(w ir.StreamWrite) {
	for _, obs := range o {
		obs.StreamWritten(w)
	}
}

// InstantCompleted implements Observer.
func (o Observers) InstantCompleted(rec ir.InstantRecord) {
	for _, obs := range o {
		obs.InstantCompleted(rec)
	}
}

// TraceValue converts a stream value to an IR value for recording.
// Closures and other values outside the IR are recorded by description.
func TraceValue(v Value) ir.IRValue {
	if c, ok := v.(*Closure); ok {
		return ir.IRString(c.String())
	}
	iv, err := ir.FromGo(v)
	if err != nil {
		return ir.IRString(fmt.Sprintf("<%T>", v))
	}
	return iv
}
