// Package store provides SQLite-backed storage for learning run logs.
//
// A run records which machine was learned and how (closing strategy,
// counterexample handler, equivalence procedure, seed). Each round stores
// the hypothesis that was built, and each handled counterexample is kept
// in order so a run can be replayed against a scripted equivalence oracle.
//
// # Ordering
//
//   - Rounds and counterexamples are keyed and ordered by (run_id, round)
//   - Runs are listed by started_at, then id COLLATE BINARY
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Run ids are UUIDv7 unless a generator is supplied with WithIDGenerator.
package store
