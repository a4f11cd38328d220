// Package store provides SQLite-backed storage for akl run logs.
//
// A run record captures everything one Coordinator.Run did:
//   - Operations: the op stream in document order, as canonical JSON
//   - Passes: per-pass fingerprints and convergence data
//   - Labels and Fragments: the final pass output
//   - Entities: the final pass's knowledge base snapshot
//
// The log exists for audit, trace and replay. It is never used to seed a
// run: every run rebuilds its tables from an empty store.
//
// # Critical Patterns
//
// Logical Order:
//   - Runs are ordered by seq INTEGER assigned at write time, NEVER timestamps
//   - Child rows are ordered by their index within the run
//
// Atomic Writes:
//   - A run and all of its child rows are written in one transaction
//   - Writing the same run id twice is a no-op
//
// # Database Configuration
//
// Connection settings travel in the DSN (WAL journal, synchronous=NORMAL,
// 5s busy timeout, foreign keys on). Schema upgrades are numbered by
// PRAGMA user_version and applied by Open.
//
// Op arguments are stored as RFC 8785 canonical JSON via internal/ir.
package store
