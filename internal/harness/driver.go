package harness

import (
	"bytes"
	"errors"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/roach88/tap/internal/tap"
	"github.com/roach88/tap/internal/tapstore"
)

// errBadProps marks scenario input that cannot be applied at all, as
// opposed to an action failing at runtime.
var errBadProps = errors.New("invalid scenario input")

// driver is the untyped view of a mounted demo store.
type driver interface {
	State() any
	UpdateInput(props map[string]any) error
	Call(step Step, args []any) error
	FlushSync() error
	Close() error
}

// caller is satisfied by *tapstore.Api for any state and action types.
type caller interface {
	Call(name string, args ...any) ([]any, error)
}

type demo struct {
	start func(props map[string]any, opts []tap.Option) (driver, error)
}

var demos = map[string]demo{
	"counter": storeDemo(Counter, nil),
	"todos":   storeDemo(Todos, todoItem),
	"ticker":  storeDemo(Ticker, nil),
}

func demoNames() []string {
	names := make([]string, 0, len(demos))
	for name := range demos {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// storeDemo adapts a store resource to driver. item resolves list item
// calls; nil means the resource has no items.
func storeDemo[P, S, A any](
	res *tap.Resource[P, tapstore.Output[S, A]],
	item func(A, tapstore.Query) (caller, error),
) demo {
	return demo{start: func(props map[string]any, opts []tap.Option) (driver, error) {
		p, err := decodeProps[P](props)
		if err != nil {
			return nil, err
		}
		st, err := tapstore.AsStore(res.With(p), opts...)
		if err != nil {
			return nil, err
		}
		return &storeDriver[P, S, A]{store: st, item: item}, nil
	}}
}

type storeDriver[P, S, A any] struct {
	store *tapstore.Store[P, S, A]
	item  func(A, tapstore.Query) (caller, error)
}

func (d *storeDriver[P, S, A]) State() any {
	return d.store.State()
}

func (d *storeDriver[P, S, A]) UpdateInput(props map[string]any) error {
	p, err := decodeProps[P](props)
	if err != nil {
		return err
	}
	return d.store.UpdateInput(p)
}

func (d *storeDriver[P, S, A]) Call(step Step, args []any) error {
	var target caller = d.store.Api()

	if step.Item != "" || step.Index != nil {
		if d.item == nil {
			return fmt.Errorf("resource has no items")
		}
		q := tapstore.ByKey(step.Item)
		if step.Index != nil {
			q = tapstore.ByIndex(*step.Index)
		}
		c, err := d.item(d.store.Api().Actions(), q)
		if err != nil {
			return err
		}
		target = c
	}

	_, err := target.Call(step.Call, args...)
	return err
}

func (d *storeDriver[P, S, A]) FlushSync() error {
	return d.store.FlushSync()
}

func (d *storeDriver[P, S, A]) Close() error {
	return d.store.Close()
}

func todoItem(a TodosActions, q tapstore.Query) (caller, error) {
	if a.items == nil || a.items.Current == nil {
		return nil, fmt.Errorf("todos not mounted")
	}
	api, err := a.items.Current.Api(q)
	if err != nil {
		return nil, err
	}
	return api, nil
}

// decodeProps converts scenario props into P, rejecting unknown fields.
func decodeProps[P any](props map[string]any) (P, error) {
	var p P
	if props == nil {
		return p, nil
	}

	raw, err := json.Marshal(props)
	if err != nil {
		return p, fmt.Errorf("%w: encode props: %v", errBadProps, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return p, fmt.Errorf("%w: decode props as %T: %v", errBadProps, p, err)
	}
	return p, nil
}

// callArgs normalizes scenario arguments for Api.Call: whole numbers become
// int64, everything else passes through.
func callArgs(args []any) ([]any, error) {
	out := make([]any, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case json.Number:
			n, err := v.Int64()
			if err != nil {
				return nil, fmt.Errorf("argument %d: %s is not an integer", i, v)
			}
			out[i] = n
		case float64:
			if v != float64(int64(v)) {
				return nil, fmt.Errorf("argument %d: %v is not an integer", i, v)
			}
			out[i] = int64(v)
		case int:
			out[i] = int64(v)
		default:
			out[i] = arg
		}
	}
	return out, nil
}
