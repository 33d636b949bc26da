package tapstore

import (
	"reflect"

	"github.com/roach88/tap/internal/tap"
)

// Placeholder returns a facade with the shape of a real one over the zero
// state, standing in for a scope that is not available yet (no thread
// selected, no composer attached). Every func field of A fails with an
// *tap.UnsupportedOperationError naming context: returned as the trailing
// error when the action has one, panicked otherwise. Call always returns it.
//
// A must be a struct; its methods (if any) are not replaced.
func Placeholder[S, A any](context string) *Api[S, A] {
	var state S
	var actions A

	v := reflect.ValueOf(&actions).Elem()
	if v.Kind() == reflect.Struct {
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() || f.Type.Kind() != reflect.Func {
				continue
			}
			v.Field(i).Set(unsupported(f.Name, context, f.Type))
		}
	}

	return newApi(state, actions)
}

func unsupported(action, context string, ft reflect.Type) reflect.Value {
	return reflect.MakeFunc(ft, func([]reflect.Value) []reflect.Value {
		err := &tap.UnsupportedOperationError{Action: action, Context: context}

		n := ft.NumOut()
		if n == 0 || ft.Out(n-1) != errorType {
			panic(err)
		}

		out := make([]reflect.Value, n)
		for i := 0; i < n-1; i++ {
			out[i] = reflect.Zero(ft.Out(i))
		}
		errValue := reflect.New(errorType).Elem()
		errValue.Set(reflect.ValueOf(err))
		out[n-1] = errValue
		return out
	})
}
