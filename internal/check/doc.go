// Package check classifies buffer accesses from their index intervals.
//
// Per dimension the verdict is:
//   - Safe when 0 <= lo and hi <= extent-1 are both provable;
//   - Unsafe when a tight endpoint provably leaves [0, extent) and the
//     access provably executes, so every run of the program would fault;
//   - Undecided otherwise, including every comparison the symbolic
//     engine cannot settle.
//
// An access is Unsafe if any dimension is, Undecided if any dimension is,
// and Safe only when every dimension is. The element lane count of the
// buffer plays no part: extents count elements.
package check
