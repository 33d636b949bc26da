package tapstore

import (
	"sync"

	"github.com/roach88/tap/internal/tap"
)

// EventCallback receives the payload of an emitted event.
type EventCallback func(payload any)

// EventActions are the actions of the EventManager facade.
type EventActions struct {
	// On registers cb for event and returns a function removing it.
	On func(event string, cb EventCallback) (unsubscribe func())

	// Emit delivers payload to the callbacks of event. Delivery is posted to
	// the owning root, so callbacks run at the end of the next flush (the
	// current one when called from an effect) and observe its committed
	// state. FlushSync delivers pending events before returning.
	Emit func(event string, payload any)
}

type eventListener struct {
	cb EventCallback
}

// eventRegistry keeps callbacks per event in registration order.
type eventRegistry struct {
	mu        sync.Mutex
	listeners map[string][]*eventListener
}

func newEventRegistry() *eventRegistry {
	return &eventRegistry{listeners: map[string][]*eventListener{}}
}

func (r *eventRegistry) on(event string, cb EventCallback) func() {
	l := &eventListener{cb: cb}

	r.mu.Lock()
	r.listeners[event] = append(r.listeners[event], l)
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			ls := r.listeners[event]
			for i, cur := range ls {
				if cur == l {
					ls = append(ls[:i:i], ls[i+1:]...)
					break
				}
			}
			if len(ls) == 0 {
				delete(r.listeners, event)
				return
			}
			r.listeners[event] = ls
		})
	}
}

func (r *eventRegistry) snapshot(event string) []*eventListener {
	r.mu.Lock()
	defer r.mu.Unlock()
	ls := r.listeners[event]
	out := make([]*eventListener, len(ls))
	copy(out, ls)
	return out
}

// EventManager is a store resource implementing a small publish/subscribe
// hub. Listeners live for the lifetime of the instance.
var EventManager = tap.New("events", func(c *tap.Ctx, _ struct{}) Output[struct{}, EventActions] {
	reg, _ := tap.StateFunc(c, newEventRegistry)
	post := c.Post()

	actions := tap.Memo(c, func() EventActions {
		return EventActions{
			On: reg.on,
			Emit: func(event string, payload any) {
				if len(reg.snapshot(event)) == 0 {
					return
				}
				post(func() {
					for _, l := range reg.snapshot(event) {
						l.cb(payload)
					}
				})
			},
		}
	}, tap.Deps{reg})

	return Output[struct{}, EventActions]{
		State: struct{}{},
		Api:   UseApi(c, struct{}{}, actions),
	}
})
