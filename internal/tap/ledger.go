package tap

import "fmt"

// slotKind is the kind of a ledger slot. The kind at every index is fixed by
// the first pass of an instance.
type slotKind uint8

const (
	slotState slotKind = iota + 1
	slotRef
	slotMemo
	slotEffect
	slotChild
	slotList
)

func (k slotKind) String() string {
	switch k {
	case slotState:
		return "state"
	case slotRef:
		return "ref"
	case slotMemo:
		return "memo"
	case slotEffect:
		return "effect"
	case slotChild:
		return "child"
	case slotList:
		return "list"
	default:
		return fmt.Sprintf("slotKind(%d)", uint8(k))
	}
}

// slot is one persistent cell of an instance ledger.
type slot interface {
	kind() slotKind
}

// ledger is the ordered slot array of one instance, walked by a cursor that
// is reset to 0 at the start of every pass.
//
// INVARIANTS:
//   - once sealed (first commit), len(slots) never changes
//   - the kind at each index never changes
type ledger struct {
	slots  []slot
	cursor int
	sealed bool
}

// next returns the slot at the cursor and advances it. On the first pass a
// missing slot is created with create; afterwards any shape difference is a
// StructuralViolation and aborts the pass before anything is appended.
func (l *ledger) next(f *fiber, kind slotKind, create func() slot) slot {
	i := l.cursor
	l.cursor++

	if i < len(l.slots) {
		s := l.slots[i]
		if s.kind() != kind {
			panic(violation(f, i, "slot kind changed between passes: was %s, now %s", s.kind(), kind))
		}
		return s
	}

	if l.sealed {
		panic(violation(f, i, "pass used more slots than its previous pass (%d)", len(l.slots)))
	}

	s := create()
	l.slots = append(l.slots, s)
	return s
}

// verify checks the final cursor against the committed slot count.
func (l *ledger) verify(f *fiber) {
	if l.sealed && l.cursor != len(l.slots) {
		panic(violation(f, l.cursor, "pass used fewer slots than its previous pass (%d < %d)", l.cursor, len(l.slots)))
	}
}

type stateCell struct {
	fiber  *fiber
	value  any
	setter any // *Setter[T], stable for the instance lifetime
}

func (*stateCell) kind() slotKind { return slotState }

type refCell struct {
	ref any // *RefObject[T]
}

func (*refCell) kind() slotKind { return slotRef }

type memoCell struct {
	value    any
	deps     Deps
	computed bool
}

func (*memoCell) kind() slotKind { return slotMemo }

// effectRun is an effect recorded during a pass whose dependencies changed.
// It is only executed if the pass commits.
type effectRun struct {
	body func() Cleanup
	deps Deps
}

type effectCell struct {
	fiber   *fiber
	index   int
	deps    Deps
	cleanup Cleanup
	mounted bool
	pending *effectRun
}

func (*effectCell) kind() slotKind { return slotEffect }

func (e *effectCell) abort() { e.pending = nil }
