// Package exec is a reference interpreter for lowered programs.
//
// It runs a program over flat float64 buffers so tests and the CLI can
// observe the effect of bounds instrumentation: an unguarded access past
// the end of a buffer corrupts a neighbouring element or faults, while a
// guarded one stops with a *BoundsError before touching memory.
//
// Execution is sequential and deterministic. Parallel and vectorized
// loops run in iteration order, and every statement counts against a step
// quota.
package exec
