// Package store provides SQLite-backed durable storage for runtime traces.
//
// The store implements an append-only log with:
//   - Runs: one row per recorded execution of a program
//   - Instants: completed pumps with their task counts
//   - Stream Writes: every native output write, in write order
//
// # Critical Patterns
//
// Logical Identity and Time
//   - All ordering uses seq and instant INTEGER columns (logical clock),
//     NEVER timestamps
//   - Run IDs are UUIDv7 in production and fixed in tests
//
// Deterministic Query Results
//   - Every query has an ORDER BY on logical columns
//   - A stored trace yields the same digest as the live run that wrote it
//
// Idempotent Writes
//   - Inserts use ON CONFLICT DO NOTHING on their natural keys
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Values are stored as RFC 8785 canonical JSON produced by internal/ir.
package store
