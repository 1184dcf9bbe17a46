// Package instrument is the bounds-checking pass.
//
// When enabled, Instrument walks the tree, classifies every buffer access
// and then:
//   - fails the build with a *check.ViolationError if any access is
//     provably out of bounds;
//   - leaves provably safe accesses untouched;
//   - wraps the statement performing each undecided access in a runtime
//     guard: let bindings for its non-trivial indices followed by a bounds
//     Assert over the unproven halves of 0 <= idx < extent.
//
// The pass never mutates its input. Subtrees without guards are shared
// between input and output. Guarded accesses are marked Checked, so running
// the pass again adds nothing.
package instrument
