// Package interval is the range arithmetic engine of the bounds checker.
//
// It computes, for an integer index expression, a conservative closed
// interval [Lo, Hi] that contains every value the expression can take given
// the ranges of the variables in scope.
//
// Bounds are symbolic: each is either unknown (an infinite endpoint) or a
// polynomial with integer coefficients over non-negative atoms. Atoms are
// size parameters such as n, or opaque non-negative subterms such as
// ((n + 7) div 8). Because every atom is non-negative, the sign of a
// polynomial whose coefficients all share a sign is known, and that is the
// only symbolic reasoning the engine needs.
//
// Evaluation never fails. Anything the engine cannot bound (loads, calls,
// float arithmetic, integer overflow, products of two unknown-sign ranges)
// degrades to an unknown endpoint, which callers treat as "cannot prove".
package interval
