// Package store provides the SQLite-backed analysis ledger.
//
// Each analysed program becomes a run; each classified access dimension
// becomes a decision row keyed by a content-addressed site id, so the same
// program analysed twice yields the same site ids and verdict history can
// be compared across builds.
//
// # Ordering
//
// Runs carry a logical seq assigned at write time, never a timestamp.
// Every query ends in ORDER BY over a unique key:
//   - runs: seq ASC, id COLLATE BINARY ASC
//   - decisions: run_id COLLATE BINARY ASC, seq ASC
//
// Filter values are always bound as query parameters.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Program hashes and site ids are computed in internal/ir/hash.go using
// canonical JSON and SHA-256 with domain separation.
package store
