// Package engine implements the rindel activation and propagation engine.
//
// Hosts compose definitions into graphs: native definitions (opaque,
// externally supplied primitives) and user definitions (a contained graph of
// native applications and nested user definitions). Ports are tagged with a
// tempo, connections join an output port to an input port in the same or a
// strictly nested scope, and the runtime keeps every downstream stream
// consistent whenever an input changes.
//
// ARCHITECTURE:
//
// Single Logical Thread:
// All graph mutation, activation and pumping happen on one goroutine. The
// Runtime is not safe for concurrent use; independent runtimes may run in
// parallel.
//
// Propagation Flow:
//  1. A native reports outputs with NativeContext.SetOutputs
//  2. The output stream is stamped with the current instant and the value
//     flows along every outgoing connection, fanning out into every live
//     activation reachable through the connection's scope path
//  3. Each delivery enqueues a task for the downstream native application,
//     keyed by its topological priority string
//  4. Pump drains the queue in priority order, collapsing duplicate tasks,
//     and gathers each application's inputs from its activation's streams
//  5. When the queue is empty the instant ends and the clock advances
//
// Streams carry no dirty bits: a stream changed this instant exactly when its
// last-changed instant equals the current instant. Event-tempo inputs are
// therefore never observed as present after the instant they occurred in.
//
// Structural edits are validated before any state is mutated, re-derive the
// topological order of the affected root definition, and are rejected with a
// fatal ReentrantMutation while the scheduler is draining.
package engine
