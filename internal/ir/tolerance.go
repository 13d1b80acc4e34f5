package ir

import (
	"math"
	"strings"
)

// DefaultToleranceDivisor sets the fallback window: |value| / 10000.
const DefaultToleranceDivisor = 10000

// Tolerances resolves the symmetric matching window for every numeric
// parameter of p.
//
// Resolution order per name:
//  1. an explicit entry for the exact name
//  2. the explicit entry whose key is the longest suffix of the name
//     (a "speed" entry covers "ps1speed", "bw2speed", ...)
//  3. |value| / DefaultToleranceDivisor
//
// Non-numeric parameters get no entry; they always match exactly.
func Tolerances(p Point, explicit map[string]float64) map[string]float64 {
	out := make(map[string]float64, p.Len())
	for _, pair := range p.Pairs() {
		v, ok := Numeric(pair.Value)
		if !ok {
			continue
		}
		if tol, ok := explicit[pair.Name]; ok {
			out[pair.Name] = math.Abs(tol)
			continue
		}
		if tol, ok := suffixTolerance(pair.Name, explicit); ok {
			out[pair.Name] = tol
			continue
		}
		out[pair.Name] = math.Abs(v) / DefaultToleranceDivisor
	}
	return out
}

// suffixTolerance finds the longest explicit key that ends name.
func suffixTolerance(name string, explicit map[string]float64) (float64, bool) {
	best := ""
	for key := range explicit {
		if key == "" || !strings.HasSuffix(name, key) {
			continue
		}
		if len(key) > len(best) || (len(key) == len(best) && key < best) {
			best = key
		}
	}
	if best == "" {
		return 0, false
	}
	return math.Abs(explicit[best]), true
}
