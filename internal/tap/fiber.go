package tap

// fiber is one resource instance: its identity, its ledger and its last
// committed output. Every field is owned by the goroutine flushing the root.
type fiber struct {
	root   *root
	def    *definition
	parent *fiber
	id     string
	key    string
	path   string

	ledger ledger

	// committed
	props     any
	state     any
	committed bool
	dead      bool

	// dirty is set when a state cell of this instance or of a descendant
	// changed since the last commit.
	dirty bool

	// staged by the running pass
	evaluating bool
	passCtx    *Ctx
	nextProps  any
	pending    any
	effects    []*effectCell
	composites []composite
}

// composite is a ledger slot owning child instances. It stages the children
// used by a pass and applies them at commit.
type composite interface {
	commitTo(b *commitBatch)
	abort()
}

// commitBatch collects what a successful pass leaves for the effect phase.
type commitBatch struct {
	effects []*effectCell
	removed []*fiber
}

func (r *root) spawn(def *definition, parent *fiber, key, path string) *fiber {
	return &fiber{
		root:   r,
		def:    def,
		parent: parent,
		id:     r.opts.ids.Generate(),
		key:    key,
		path:   path,
		dirty:  true,
	}
}

// markDirty flags f and its ancestors for re-evaluation.
func (f *fiber) markDirty() {
	for p := f; p != nil && !p.dirty; p = p.parent {
		p.dirty = true
	}
}

// evaluate runs one pass of f with props. A panic inside the resource
// function is re-raised as *EvaluationError unless it already is one or is a
// *StructuralViolation; the root recovers it and aborts the whole pass.
func (f *fiber) evaluate(props any) (out any) {
	if f.evaluating {
		panic(violation(f, -1, "instance re-entered while its pass is running"))
	}

	c := &Ctx{f: f}
	f.evaluating = true
	f.passCtx = c
	f.ledger.cursor = 0
	f.effects = f.effects[:0]
	f.composites = f.composites[:0]
	f.root.touched = append(f.root.touched, f)

	detail := "update"
	if !f.committed {
		detail = "mount"
	}
	f.root.emit(EventPass, f, -1, detail)

	defer func() {
		f.evaluating = false
		f.passCtx = nil
		if rec := recover(); rec != nil {
			panic(f.wrapPanic(rec, "pass"))
		}
	}()

	out = f.def.render(c, props)
	f.ledger.verify(f)

	f.nextProps = props
	f.pending = out
	return out
}

// wrapPanic converts a recovered value into the error the runtime surfaces.
func (f *fiber) wrapPanic(rec any, phase string) error {
	switch err := rec.(type) {
	case *StructuralViolation:
		return err
	case *EvaluationError:
		return err
	case error:
		return &EvaluationError{Resource: f.def.name, Path: f.path, Phase: phase, Value: rec, Err: err}
	default:
		return &EvaluationError{Resource: f.def.name, Path: f.path, Phase: phase, Value: rec}
	}
}

// abort drops everything the failed pass staged on f. Slot values already
// written in place by the pass are kept.
func (f *fiber) abort() {
	for _, cell := range f.effects {
		cell.abort()
	}
	for _, c := range f.composites {
		c.abort()
	}
	f.effects = f.effects[:0]
	f.composites = f.composites[:0]
	f.evaluating = false
	f.passCtx = nil
	f.nextProps = nil
	f.pending = nil
}

// commitTo publishes the staged pass of f, children first, and hands its
// effects and removed children to b.
func (f *fiber) commitTo(b *commitBatch) {
	for _, c := range f.composites {
		c.commitTo(b)
	}
	f.composites = f.composites[:0]

	if !f.ledger.sealed {
		f.ledger.slots = f.ledger.slots[:f.ledger.cursor]
		f.ledger.sealed = true
	}

	f.props = f.nextProps
	f.state = f.pending
	f.nextProps = nil
	f.pending = nil
	f.dirty = false

	detail := "update"
	if !f.committed {
		f.committed = true
		detail = "mount"
		f.root.emit(EventCreate, f, -1, "")
	}
	f.root.emit(EventCommit, f, -1, detail)

	b.effects = append(b.effects, f.effects...)
	f.effects = f.effects[:0]
}

// teardown destroys f: its children first, then its own effect cleanups in
// slot order. Cleanup panics are collected, never stop the teardown.
func (f *fiber) teardown(errs *[]error) {
	if f.dead {
		return
	}
	f.dead = true

	for _, s := range f.ledger.slots {
		switch cell := s.(type) {
		case *childCell:
			if cell.fiber != nil {
				cell.fiber.teardown(errs)
			}
		case *listCell:
			for _, key := range cell.order {
				cell.entries[key].teardown(errs)
			}
		}
	}

	for _, s := range f.ledger.slots {
		if cell, ok := s.(*effectCell); ok {
			cell.runCleanup(errs)
		}
	}

	if f.committed {
		f.root.emit(EventTeardown, f, -1, "")
	}
}

// runCleanup runs the recorded cleanup of e once.
func (e *effectCell) runCleanup(errs *[]error) {
	cleanup := e.cleanup
	e.cleanup = nil
	if cleanup == nil {
		return
	}
	if err := e.call("cleanup", func() { cleanup() }); err != nil {
		*errs = append(*errs, err)
	}
	e.fiber.root.emit(EventCleanup, e.fiber, e.index, "")
}

// runBody runs the pending body of e, recording its cleanup and deps.
func (e *effectCell) runBody(errs *[]error) {
	run := e.pending
	e.pending = nil
	if run == nil || e.fiber.dead {
		return
	}

	var cleanup Cleanup
	err := e.call("effect", func() { cleanup = run.body() })
	e.cleanup = cleanup
	e.deps = run.deps
	e.mounted = true
	if err != nil {
		*errs = append(*errs, err)
	}
	e.fiber.root.emit(EventEffect, e.fiber, e.index, "")
}

func (e *effectCell) call(phase string, fn func()) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = e.fiber.wrapPanic(rec, phase)
		}
	}()
	fn()
	return nil
}
