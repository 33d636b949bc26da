package tap

import "reflect"

// Deps is a dependency array for Memo, Effect and Child.
//
// A nil Deps means "no dependency array": the memo recomputes and the effect
// runs on every pass. An empty, non-nil Deps{} means "never changes".
type Deps []any

// SameValue is the shallow identity comparison applied to each dependency.
//
// Comparable values use ==. Maps, pointers, channels and unsafe pointers
// compare by identity, slices by data pointer and length. Functions are
// never equal unless both are nil, and values that are not comparable (for
// example a struct holding a slice) are always treated as changed.
func SameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Func:
		return va.IsNil() && vb.IsNil()
	case reflect.Map, reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	}
	if va.Comparable() && vb.Comparable() {
		return a == b
	}
	return false
}

// depsEqual reports whether two dependency arrays are shallowly equal.
// A nil array on either side never matches.
func depsEqual(prev, next Deps) bool {
	if prev == nil || next == nil {
		return false
	}
	if len(prev) != len(next) {
		return false
	}
	for i := range prev {
		if !SameValue(prev[i], next[i]) {
			return false
		}
	}
	return true
}

// clone copies deps so later mutation of the caller's slice cannot change
// what was recorded. nil stays nil.
func (d Deps) clone() Deps {
	if d == nil {
		return nil
	}
	out := make(Deps, len(d))
	copy(out, d)
	return out
}
