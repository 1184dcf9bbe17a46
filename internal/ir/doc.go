// Package ir defines the lowered loop-nest IR that the bounds-checking pass
// reads and rewrites.
//
// This package contains type definitions, constructors and printers only.
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Expr and Stmt are closed sets of variants sealed by unexported marker
//     methods. Consumers switch exhaustively over the concrete types.
//   - Nodes are immutable once built. Passes produce new trees and share
//     unchanged subtrees.
//   - Access nodes (Load, Store) point at their *Buffer, so the declared
//     shape and element type travel with every access.
//   - Canonical encodings carry no floats; FloatImm is encoded as a string.
package ir
