// Package slices contains generic helpers for slices that are missing from
// the standard library at the supported Go version.
package slices

// Map applies f to every element of l.
func Map[L ~[]X, X, Y any](l L, f func(X) Y) []Y {
	r := make([]Y, len(l))
	for i, x := range l {
		r[i] = f(x)
	}
	return r
}
