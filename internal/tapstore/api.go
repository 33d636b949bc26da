package tapstore

import (
	"fmt"
	"reflect"
	"sort"
	"sync/atomic"

	"github.com/roach88/tap/internal/tap"
)

// Output is the return convention of store resources: the state snapshot of
// the pass plus the stable facade.
type Output[S, A any] struct {
	State S
	Api   *Api[S, A]
}

type binding[S, A any] struct {
	state   S
	actions A
}

// Api is a stable forwarding facade over the latest committed state and
// actions of one instance.
//
// Actions is the typed way in. Keys, Has and Call form a dispatch table over
// the func-typed fields and the methods of A for callers that only know
// action names (scripts, scenario files).
//
// Thread-safety: reads are safe from any goroutine.
type Api[S, A any] struct {
	latest atomic.Pointer[binding[S, A]]
}

func newApi[S, A any](state S, actions A) *Api[S, A] {
	api := &Api[S, A]{}
	api.bind(state, actions)
	return api
}

func (a *Api[S, A]) bind(state S, actions A) {
	a.latest.Store(&binding[S, A]{state: state, actions: actions})
}

// UseApi returns the facade of the calling instance. The facade is created on
// the first pass and rebound to state and actions after every commit.
func UseApi[S, A any](c *tap.Ctx, state S, actions A) *Api[S, A] {
	api := tap.Memo(c, func() *Api[S, A] {
		return newApi(state, actions)
	}, tap.Deps{})

	tap.Effect(c, func() tap.Cleanup {
		api.bind(state, actions)
		return nil
	}, nil)

	return api
}

// State returns the latest committed state.
func (a *Api[S, A]) State() S {
	return a.latest.Load().state
}

// Actions returns the latest committed actions.
func (a *Api[S, A]) Actions() A {
	return a.latest.Load().actions
}

// Keys returns the action names, sorted.
func (a *Api[S, A]) Keys() []string {
	table := dispatchTable(reflect.ValueOf(a.Actions()))
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Has reports whether an action named name exists.
func (a *Api[S, A]) Has(name string) bool {
	_, ok := dispatchTable(reflect.ValueOf(a.Actions()))[name]
	return ok
}

// Call invokes the action named name. Arguments are converted to the
// parameter types where that is lossless in intent (numeric kinds, named
// string types, nil for nillable types). A trailing error result is returned
// as err and removed from the results; a panic inside the action is returned
// as err too.
func (a *Api[S, A]) Call(name string, args ...any) (results []any, err error) {
	fn, ok := dispatchTable(reflect.ValueOf(a.Actions()))[name]
	if !ok {
		return nil, fmt.Errorf("unknown action %q", name)
	}

	in, err := convertArgs(name, fn.Type(), args)
	if err != nil {
		return nil, err
	}

	defer func() {
		if rec := recover(); rec != nil {
			results = nil
			if e, ok := rec.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("action %s panicked: %v", name, rec)
		}
	}()

	out := fn.Call(in)

	results = make([]any, 0, len(out))
	for i, v := range out {
		if i == len(out)-1 && v.Type() == errorType {
			if !v.IsNil() {
				err = v.Interface().(error)
			}
			break
		}
		results = append(results, v.Interface())
	}
	return results, err
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// dispatchTable collects the callable actions of v: non-nil exported func
// fields of a struct, then its methods.
func dispatchTable(v reflect.Value) map[string]reflect.Value {
	table := map[string]reflect.Value{}
	if !v.IsValid() {
		return table
	}
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return table
		}
		v = v.Elem()
	}

	if v.Kind() == reflect.Struct {
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			fv := v.Field(i)
			if !f.IsExported() || fv.Kind() != reflect.Func || fv.IsNil() {
				continue
			}
			table[f.Name] = fv
		}
	}

	for i := 0; i < v.NumMethod(); i++ {
		name := v.Type().Method(i).Name
		if _, ok := table[name]; !ok {
			table[name] = v.Method(i)
		}
	}
	return table
}

func convertArgs(name string, ft reflect.Type, args []any) ([]reflect.Value, error) {
	n := ft.NumIn()
	if ft.IsVariadic() {
		if len(args) < n-1 {
			return nil, fmt.Errorf("action %s: want at least %d arguments, got %d", name, n-1, len(args))
		}
	} else if len(args) != n {
		return nil, fmt.Errorf("action %s: want %d arguments, got %d", name, n, len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		var pt reflect.Type
		if ft.IsVariadic() && i >= n-1 {
			pt = ft.In(n - 1).Elem()
		} else {
			pt = ft.In(i)
		}
		v, err := convertArg(arg, pt)
		if err != nil {
			return nil, fmt.Errorf("action %s: argument %d: %w", name, i, err)
		}
		in[i] = v
	}
	return in, nil
}

func convertArg(arg any, t reflect.Type) (reflect.Value, error) {
	if arg == nil {
		switch t.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("nil is not a valid %s", t)
	}

	v := reflect.ValueOf(arg)
	if v.Type().AssignableTo(t) {
		return v, nil
	}
	if isNumeric(v.Kind()) && isNumeric(t.Kind()) {
		return v.Convert(t), nil
	}
	if v.Kind() == reflect.String && t.Kind() == reflect.String {
		return v.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", arg, t)
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
