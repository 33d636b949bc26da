package tapstore

import "github.com/roach88/tap/internal/tap"

// Query selects an entry of a Lookup by position or by key.
type Query struct {
	key     string
	index   int
	byIndex bool
}

// ByIndex selects the entry at position i.
func ByIndex(i int) Query { return Query{index: i, byIndex: true} }

// ByKey selects the entry with key.
func ByKey(key string) Query { return Query{key: key} }

// Lookup is a keyed list of store resources with facade access.
type Lookup[S, A any] struct {
	list *tap.List[Output[S, A]]
}

// LookupResources evaluates els as a keyed list (see tap.Children) and
// returns their states plus a facade accessor.
func LookupResources[P, S, A any](c *tap.Ctx, els []tap.Element[P, Output[S, A]]) *Lookup[S, A] {
	return &Lookup[S, A]{list: tap.Children(c, els)}
}

// States returns the entry states in order.
func (l *Lookup[S, A]) States() []S {
	out := make([]S, 0, l.list.Len())
	for _, e := range l.list.Entries() {
		out = append(out, e.Value.State)
	}
	return out
}

// Keys returns the entry keys in order.
func (l *Lookup[S, A]) Keys() []string {
	return l.list.Keys()
}

// Len returns the number of entries.
func (l *Lookup[S, A]) Len() int {
	return l.list.Len()
}

// Api returns the facade of the selected entry, or a
// *tap.MissingResourceError.
func (l *Lookup[S, A]) Api(q Query) (*Api[S, A], error) {
	var (
		out Output[S, A]
		err error
	)
	if q.byIndex {
		out, err = l.list.At(q.index)
	} else {
		out, err = l.list.Get(q.key)
	}
	if err != nil {
		return nil, err
	}
	return out.Api, nil
}
