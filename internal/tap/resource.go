package tap

// definition is the type-erased form of a Resource shared by every instance
// created from it. Its pointer identity is the resource "type": a slot or
// list entry that receives an element of a different definition gets a fresh
// instance.
type definition struct {
	name   string
	render func(c *Ctx, props any) any
}

// Resource is a reusable resource definition: a function describing one
// evaluation pass of a stateful unit. Construct with New.
type Resource[P, R any] struct {
	def *definition
}

// New defines a resource. fn runs inside an evaluation pass and may call the
// primitives (State, Ref, Memo, Effect) and the composition functions
// (Child, Inline, Children) through c, always in the same order.
//
// fn reports failure by panicking; the pass is aborted and the panic surfaces
// as an *EvaluationError to whoever triggered the update.
func New[P, R any](name string, fn func(c *Ctx, props P) R) *Resource[P, R] {
	return &Resource[P, R]{
		def: &definition{
			name: name,
			render: func(c *Ctx, props any) any {
				return fn(c, cast[P](props))
			},
		},
	}
}

// Name returns the resource name used in paths, logs and events.
func (r *Resource[P, R]) Name() string { return r.def.name }

// With creates an element of r with the given props.
func (r *Resource[P, R]) With(props P) Element[P, R] {
	return Element[P, R]{res: r, Props: props}
}

// Keyed creates an element carrying a list key, for Children.
func (r *Resource[P, R]) Keyed(key string, props P) Element[P, R] {
	return Element[P, R]{res: r, Props: props, Key: key}
}

// Element is a resource definition bound to props (and, in lists, a key).
// Elements are plain values; creating one evaluates nothing.
type Element[P, R any] struct {
	res   *Resource[P, R]
	Props P
	Key   string
}

// Resource returns the definition the element was created from.
func (e Element[P, R]) Resource() *Resource[P, R] { return e.res }

// cast converts an erased value back to T. A nil interface becomes the zero
// value of T, so interface-typed props and results round-trip.
func cast[T any](v any) T {
	if v == nil {
		var zero T
		return zero
	}
	return v.(T)
}
