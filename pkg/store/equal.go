package store

import "reflect"

// Equal reports whether a and b are equal. Comparable values use ==;
// slices, maps and values holding them use reflect.DeepEqual.
func Equal[T any](a, b T) bool {
	if t := reflect.TypeOf(a); t != nil && t.Comparable() {
		if eq, ok := compare(a, b); ok {
			return eq
		}
	}
	return reflect.DeepEqual(a, b)
}

// compare applies == and reports ok=false when an interface field holds an
// uncomparable value.
func compare(a, b any) (eq, ok bool) {
	defer func() {
		if recover() != nil {
			eq, ok = false, false
		}
	}()
	return a == b, true
}

// Shallow reports whether two slices hold equal elements at every index.
// Useful with WithEquality for selectors returning freshly built slices.
func Shallow[E comparable](a, b []E) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
