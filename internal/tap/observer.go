package tap

// EventKind names a runtime event.
type EventKind string

const (
	// EventCreate is emitted when an instance commits for the first time.
	EventCreate EventKind = "create"
	// EventPass is emitted when an instance starts an evaluation pass.
	EventPass EventKind = "pass"
	// EventSkip is emitted when a child is reused because its dependencies
	// did not change and it has no pending state.
	EventSkip EventKind = "skip"
	// EventCommit is emitted when an evaluated instance commits its output.
	EventCommit EventKind = "commit"
	// EventEffect is emitted after an effect body ran.
	EventEffect EventKind = "effect"
	// EventCleanup is emitted after an effect cleanup ran.
	EventCleanup EventKind = "cleanup"
	// EventTeardown is emitted when an instance is destroyed.
	EventTeardown EventKind = "teardown"
	// EventNotify is emitted when a root notifies its subscribers.
	EventNotify EventKind = "notify"
	// EventError is emitted when a flush fails.
	EventError EventKind = "error"
)

// Event describes one step of the runtime, in the order it happened.
type Event struct {
	Seq      int64     `json:"seq"`
	Kind     EventKind `json:"kind"`
	Instance string    `json:"instance,omitempty"`
	Resource string    `json:"resource,omitempty"`
	Key      string    `json:"key,omitempty"`
	Path     string    `json:"path,omitempty"`
	// Slot is the ledger index for effect and cleanup events, -1 otherwise.
	Slot   int    `json:"slot"`
	Detail string `json:"detail,omitempty"`
}

// Observer receives runtime events. Observe is called synchronously on the
// goroutine driving the root and must not call back into the root.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe calls f(e).
func (f ObserverFunc) Observe(e Event) { f(e) }

// MultiObserver fans events out to several observers in order.
type MultiObserver []Observer

// Observe forwards e to every non-nil observer.
func (m MultiObserver) Observe(e Event) {
	for _, o := range m {
		if o != nil {
			o.Observe(e)
		}
	}
}
