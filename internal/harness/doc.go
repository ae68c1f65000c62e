// Package harness runs scenario tests against compiled programs.
//
// A scenario names a CUE program, the inputs main is activated with, and a
// list of host steps. Each step either emits a value from a host-driven
// application (a "source" or "counter" native) or updates main's inputs,
// then checks output values. Assertions check the complete trace.
//
// # Scenario Format
//
//	name: count_clicks
//	description: "Every click bumps the displayed count"
//	program: ../programs/count_clicks.cue
//	inputs: {}
//	steps:
//	  - expect:
//	      show.text: "0"
//	  - emit: { app: clicks, value: true }
//	    expect:
//	      count.count: 1
//	      show.text: "1"
//	assertions:
//	  - type: trace_count
//	    port: show.text
//	    count: 2
//
// Expect keys are "app.port" for an output of an application of main, or
// "out.name" for one of main's own outputs.
//
// # Assertion Types
//
//   - trace_contains: the port was written with the value at least once
//   - trace_order: the ports were first written in the listed order
//   - trace_count: the port was written exactly count times
//   - instant_count: exactly count instants completed
//
// # Deterministic Testing
//
// Every scenario runs on a fresh runtime whose clock and write sequence
// start at zero, so identical scenarios produce byte-identical traces.
// Traces are compared against golden files with goldie.
package harness
