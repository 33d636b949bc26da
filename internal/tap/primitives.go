package tap

// Setter writes a state cell. Its pointer is stable for the lifetime of the
// instance, so it can be captured once by effects and callbacks.
//
// Writes never evaluate synchronously: they queue an update on the owning
// root and schedule a flush. Updates are applied in call order at the start
// of the next pass.
type Setter[T any] struct {
	cell *stateCell
}

// Set replaces the value.
func (s *Setter[T]) Set(v T) {
	s.Update(func(T) T { return v })
}

// Update computes the next value from the latest value of the cell,
// including updates queued before it in the same batch.
func (s *Setter[T]) Update(fn func(prev T) T) {
	s.cell.fiber.root.enqueue(update{
		cell: s.cell,
		fn: func(prev any) any {
			return fn(cast[T](prev))
		},
	})
}

// RefObject is a mutable box whose Current field persists across passes.
// Reads and writes are immediate and never schedule a pass.
type RefObject[T any] struct {
	Current T
}

// Cleanup undoes an effect. It runs before the effect body runs again and
// once when the instance is torn down.
type Cleanup func()

// State returns the value of the next state cell, creating it with initial on
// the first pass.
func State[T any](c *Ctx, initial T) (T, *Setter[T]) {
	return StateFunc(c, func() T { return initial })
}

// StateFunc is State with a lazy initializer, invoked exactly once per
// instance.
func StateFunc[T any](c *Ctx, init func() T) (T, *Setter[T]) {
	c.check()
	f := c.f
	i := f.ledger.cursor
	cell := f.ledger.next(f, slotState, func() slot {
		cell := &stateCell{fiber: f, value: init()}
		cell.setter = &Setter[T]{cell: cell}
		return cell
	}).(*stateCell)

	setter, ok := cell.setter.(*Setter[T])
	if !ok {
		panic(violation(f, i, "state slot changed type: was %T", cell.setter))
	}
	return cast[T](cell.value), setter
}

// Ref returns the ref stored in the next slot, created with initial on the
// first pass.
func Ref[T any](c *Ctx, initial T) *RefObject[T] {
	return RefFunc(c, func() T { return initial })
}

// RefFunc is Ref with a lazy initializer.
func RefFunc[T any](c *Ctx, init func() T) *RefObject[T] {
	c.check()
	f := c.f
	i := f.ledger.cursor
	cell := f.ledger.next(f, slotRef, func() slot {
		return &refCell{ref: &RefObject[T]{Current: init()}}
	}).(*refCell)

	ref, ok := cell.ref.(*RefObject[T])
	if !ok {
		panic(violation(f, i, "ref slot changed type: was %T", cell.ref))
	}
	return ref
}

// Memo returns the value computed by compute, recomputing only when deps
// differ from the previous pass by SameValue. When they do not, the exact
// previously returned value is returned again.
//
// nil deps recompute on every pass; an empty non-nil Deps computes once.
func Memo[T any](c *Ctx, compute func() T, deps Deps) T {
	c.check()
	f := c.f
	i := f.ledger.cursor
	cell := f.ledger.next(f, slotMemo, func() slot {
		return &memoCell{}
	}).(*memoCell)

	if cell.computed && deps != nil && depsEqual(cell.deps, deps) {
		return slotValue[T](f, i, cell.value)
	}

	v := compute()
	cell.value = v
	cell.deps = deps.clone()
	cell.computed = true
	return v
}

// Effect records body to run after the pass commits. It runs on the first
// commit and again on every commit whose deps differ from the ones it last
// ran with, after the cleanup it returned last time. nil deps run it after
// every commit.
//
// Effects of child instances run before those of their parent; within one
// instance they run in slot order.
func Effect(c *Ctx, body func() Cleanup, deps Deps) {
	c.check()
	f := c.f
	i := f.ledger.cursor
	cell := f.ledger.next(f, slotEffect, func() slot {
		return &effectCell{fiber: f, index: i}
	}).(*effectCell)

	if cell.mounted && deps != nil && depsEqual(cell.deps, deps) {
		return
	}
	cell.pending = &effectRun{body: body, deps: deps.clone()}
	f.effects = append(f.effects, cell)
}

// slotValue converts a stored slot value back to T, failing with a
// StructuralViolation when the slot was created for another type.
func slotValue[T any](f *fiber, i int, v any) T {
	if v == nil {
		var zero T
		return zero
	}
	out, ok := v.(T)
	if !ok {
		panic(violation(f, i, "slot changed type: holds %T", v))
	}
	return out
}
