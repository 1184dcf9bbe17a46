// Package walker traverses a lowered loop nest and records every buffer
// access together with the variable ranges in force at that point.
//
// Each access yields one Site per dimension. A site carries the index
// expression, the buffer's extent in that dimension, their intervals, and
// enough context (the persistent scope, the enclosing statement, whether
// the access provably executes) for the decision engine and the emitter
// to do their work without re-walking the tree.
//
// Scoping follows the loop structure:
//   - every loop kind (serial, parallel, vectorized, unrolled) binds its
//     variable to [min, min+extent-1], derived from the loop's own bounds,
//     so split and fused loops are bounded by their split factors;
//   - let statements bind their variable to the interval of their value,
//     which is how a split rebuilds the original index (i = io*8 + ii);
//   - branch conditions narrow variables and expressions inside the
//     branch;
//   - a producer fused into its consumer with compute_at keeps the
//     consumer's scope, so outer loop variables stay visible.
package walker
