package engine

import "fmt"

// Value is an opaque stream value. Values crossing the trace boundary must
// be representable as IR values; closures are recorded by description.
type Value = any

// Stream holds the latest value of one port within one activation together
// with the instant it last changed.
//
// A stream changed in instant i exactly when its last-changed instant is i.
// Streams never carry a dirty flag that needs resetting between instants.
type Stream struct {
	latest      Value
	lastChanged Instant // zero until the first write
}

func newStream() *Stream {
	return &Stream{}
}

// Latest returns the most recent value, or nil when the stream is unset.
func (s *Stream) Latest() Value {
	return s.latest
}

// LastChanged returns the instant of the last write and whether the stream
// has ever been written.
func (s *Stream) LastChanged() (Instant, bool) {
	return s.lastChanged, s.lastChanged != 0
}

// ChangedAt reports whether the stream was written during instant i.
func (s *Stream) ChangedAt(i Instant) bool {
	return s.lastChanged != 0 && s.lastChanged == i
}

// set writes a value at instant at. Writes never move a stream backwards.
func (s *Stream) set(v Value, at Instant) {
	if at < s.lastChanged {
		panic(fmt.Sprintf("engine: stream written at instant %d after instant %d", at, s.lastChanged))
	}
	s.latest = v
	s.lastChanged = at
}
