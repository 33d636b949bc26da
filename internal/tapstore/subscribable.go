package tapstore

import "github.com/roach88/tap/internal/tap"

// Subscribable is anything exposing a current value and change
// notifications. *Store satisfies it.
type Subscribable[S any] interface {
	State() S
	Subscribe(fn func()) (unsubscribe func())
}

// UseSubscribable mirrors src into a state cell of the calling instance, so
// the instance is re-evaluated whenever src notifies. It resubscribes when
// src changes; a nil src yields the zero value.
func UseSubscribable[S any](c *tap.Ctx, src Subscribable[S]) S {
	value, set := tap.StateFunc(c, func() S {
		var zero S
		if src == nil {
			return zero
		}
		return src.State()
	})

	tap.Effect(c, func() tap.Cleanup {
		if src == nil {
			return nil
		}
		set.Set(src.State())
		return tap.Cleanup(src.Subscribe(func() {
			set.Set(src.State())
		}))
	}, tap.Deps{src})

	return value
}
