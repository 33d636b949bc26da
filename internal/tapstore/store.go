package tapstore

import (
	"fmt"

	"github.com/roach88/tap/internal/tap"
)

// Store is the external store contract over one store resource: the latest
// facade, subscription to commits and synchronous flush.
type Store[P, S, A any] struct {
	root *tap.Root[P, Output[S, A]]
}

// AsStore creates the root instance of el and wraps it. The first pass runs
// before AsStore returns.
func AsStore[P, S, A any](el tap.Element[P, Output[S, A]], opts ...tap.Option) (*Store[P, S, A], error) {
	root, err := tap.CreateResource(el, opts...)
	if err != nil {
		return nil, fmt.Errorf("as store: %w", err)
	}
	return &Store[P, S, A]{root: root}, nil
}

// Api returns the facade of the root instance. It is the same pointer for
// the whole life of the store.
func (s *Store[P, S, A]) Api() *Api[S, A] {
	return s.root.State().Api
}

// State returns the latest committed state.
func (s *Store[P, S, A]) State() S {
	return s.root.State().State
}

// Subscribe registers fn to run after every flush that committed.
func (s *Store[P, S, A]) Subscribe(fn func()) (unsubscribe func()) {
	return s.root.Subscribe(fn)
}

// FlushSync applies pending updates before returning.
func (s *Store[P, S, A]) FlushSync() error {
	return s.root.FlushSync()
}

// UpdateInput replaces the props of the root instance.
func (s *Store[P, S, A]) UpdateInput(props P) error {
	return s.root.UpdateInput(props)
}

// Close tears the store down.
func (s *Store[P, S, A]) Close() error {
	return s.root.Close()
}

// Err reports the last failure of a scheduled flush.
func (s *Store[P, S, A]) Err() error {
	return s.root.Err()
}

// Root exposes the underlying root.
func (s *Store[P, S, A]) Root() *tap.Root[P, Output[S, A]] {
	return s.root
}

// UseStore is AsStore from inside a resource. The store is an independent
// root created on the first pass (and again when el switches to another
// resource), sharing the scheduler, observer, clock and IDs of the calling
// root. Its input is updated with el.Props after every commit of the caller
// and it is closed when the caller is torn down.
//
// The caller is not re-evaluated when the store changes; combine with
// UseSubscribable for that.
func UseStore[P, S, A any](c *tap.Ctx, el tap.Element[P, Output[S, A]]) *Store[P, S, A] {
	inherited := tap.Inherit(c)
	log := c.Logger()

	st := tap.Memo(c, func() *Store[P, S, A] {
		st, err := AsStore(el, inherited...)
		if err != nil {
			panic(err)
		}
		return st
	}, tap.Deps{el.Resource()})

	tap.Effect(c, func() tap.Cleanup {
		return func() {
			if err := st.Close(); err != nil {
				log.Warn("close nested store failed", "error", err)
			}
		}
	}, tap.Deps{st})

	tap.Effect(c, func() tap.Cleanup {
		if err := st.UpdateInput(el.Props); err != nil {
			panic(err)
		}
		return nil
	}, nil)

	return st
}
