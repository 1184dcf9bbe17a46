package ir

// FloorDiv is the integer semantics of OpDiv: the quotient rounded towards
// negative infinity. The caller guarantees c != 0.
func FloorDiv(a, c int64) int64 {
	q := a / c
	if a%c != 0 && (a < 0) != (c < 0) {
		q--
	}
	return q
}

// FloorMod is the integer semantics of OpMod. The result has the sign of c.
func FloorMod(a, c int64) int64 {
	return a - FloorDiv(a, c)*c
}
