// Package natives provides a small catalog of native definitions and a
// registry that builds them by name from program configuration.
//
// Host-driven natives (source, counter) implement Emitter so that hosts,
// scenarios and the CLI can push values into a running graph. The engine
// never imports this package.
package natives
