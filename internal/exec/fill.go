package exec

import (
	"fmt"
	"strconv"
	"strings"
)

// Fill builds n values from a pattern:
//
//	zeros      0 0 0 ...
//	ones       1 1 1 ...
//	ramp       0 1 2 ...
//	mod:K      0 1 ... K-1 0 1 ...
//	const:V    V V V ...
func Fill(pattern string, n int) ([]float64, error) {
	out := make([]float64, n)
	name, arg, hasArg := strings.Cut(pattern, ":")
	switch name {
	case "zeros":
	case "ones":
		for i := range out {
			out[i] = 1
		}
	case "ramp":
		for i := range out {
			out[i] = float64(i)
		}
	case "mod":
		k, err := strconv.Atoi(arg)
		if !hasArg || err != nil || k <= 0 {
			return nil, fmt.Errorf("fill %q: want mod:K with K > 0", pattern)
		}
		for i := range out {
			out[i] = float64(i % k)
		}
	case "const":
		v, err := strconv.ParseFloat(arg, 64)
		if !hasArg || err != nil {
			return nil, fmt.Errorf("fill %q: want const:V", pattern)
		}
		for i := range out {
			out[i] = v
		}
	default:
		return nil, fmt.Errorf("unknown fill pattern %q", pattern)
	}
	return out, nil
}
