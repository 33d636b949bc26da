package tap

// Child evaluates el as a nested instance owned by the next ledger slot and
// returns its output.
//
// The instance persists across passes as long as the slot keeps receiving
// elements of the same resource; a different resource replaces it (the old
// instance is torn down at commit). It is re-evaluated when it has pending
// state or when deps differ from the previous pass, and reused otherwise.
// nil deps mean Deps{el.Props}.
func Child[P, R any](c *Ctx, el Element[P, R], deps Deps) R {
	c.check()
	if el.res == nil {
		panic(violation(c.f, c.f.ledger.cursor, "child element has no resource"))
	}
	if deps == nil {
		deps = Deps{el.Props}
	}
	return cast[R](c.f.child(el.res.def, el.Props, deps, false))
}

// Inline is Child without dependency tracking: the nested instance is
// re-evaluated on every pass of its parent.
func Inline[P, R any](c *Ctx, el Element[P, R]) R {
	c.check()
	if el.res == nil {
		panic(violation(c.f, c.f.ledger.cursor, "inline element has no resource"))
	}
	return cast[R](c.f.child(el.res.def, el.Props, nil, true))
}

// Children reconciles a keyed list of elements against the previous pass.
//
// Entries are matched by Key: a matched entry keeps its instance and all its
// slots wherever it moved, unmatched old entries are torn down at commit,
// new keys get fresh instances. A matched entry is re-evaluated only when it
// has pending state or its props differ by SameValue. Keys must be non-empty
// and unique.
func Children[P, R any](c *Ctx, els []Element[P, R]) *List[R] {
	c.check()
	items := make([]listItem, len(els))
	for i, el := range els {
		if el.res == nil {
			panic(violation(c.f, c.f.ledger.cursor, "list entry %d has no resource", i))
		}
		items[i] = listItem{key: el.Key, def: el.res.def, props: el.Props}
	}

	keys, outs := c.f.list(items)

	l := &List[R]{
		entries: make([]Entry[R], len(keys)),
		index:   make(map[string]int, len(keys)),
	}
	for i, key := range keys {
		l.entries[i] = Entry[R]{Key: key, Value: cast[R](outs[i])}
		l.index[key] = i
	}
	return l
}

// Entry is one element of a List.
type Entry[R any] struct {
	Key   string
	Value R
}

// List is the output of Children, in input order.
type List[R any] struct {
	entries []Entry[R]
	index   map[string]int
}

// Len returns the number of entries.
func (l *List[R]) Len() int { return len(l.entries) }

// Entries returns the entries in order. The slice must not be modified.
func (l *List[R]) Entries() []Entry[R] { return l.entries }

// Keys returns the entry keys in order.
func (l *List[R]) Keys() []string {
	keys := make([]string, len(l.entries))
	for i, e := range l.entries {
		keys[i] = e.Key
	}
	return keys
}

// Values returns the entry outputs in order.
func (l *List[R]) Values() []R {
	values := make([]R, len(l.entries))
	for i, e := range l.entries {
		values[i] = e.Value
	}
	return values
}

// At returns the output at position i.
func (l *List[R]) At(i int) (R, error) {
	if i < 0 || i >= len(l.entries) {
		var zero R
		return zero, &MissingResourceError{Index: i, ByIndex: true, Len: len(l.entries)}
	}
	return l.entries[i].Value, nil
}

// Get returns the output of the entry with key.
func (l *List[R]) Get(key string) (R, error) {
	i, ok := l.index[key]
	if !ok {
		var zero R
		return zero, &MissingResourceError{Key: key, Len: len(l.entries)}
	}
	return l.entries[i].Value, nil
}

type childCell struct {
	fiber *fiber
	deps  Deps

	staged     *fiber
	stagedDeps Deps
}

func (*childCell) kind() slotKind { return slotChild }

func (c *childCell) commitTo(b *commitBatch) {
	if c.staged == nil {
		return
	}
	if c.fiber != nil && c.fiber != c.staged {
		b.removed = append(b.removed, c.fiber)
	}
	c.fiber = c.staged
	c.deps = c.stagedDeps
	c.staged = nil
	c.stagedDeps = nil
	c.fiber.commitTo(b)
}

func (c *childCell) abort() {
	c.staged = nil
	c.stagedDeps = nil
}

func (f *fiber) child(def *definition, props any, deps Deps, always bool) any {
	cell := f.ledger.next(f, slotChild, func() slot {
		return &childCell{}
	}).(*childCell)

	target := cell.fiber
	fresh := target == nil || target.def != def
	if fresh {
		target = f.root.spawn(def, f, "", f.path+"/"+def.name)
	}

	if !fresh && !always && !target.dirty && depsEqual(cell.deps, deps) {
		f.root.emit(EventSkip, target, -1, "")
		return target.state
	}

	out := target.evaluate(props)
	cell.staged = target
	cell.stagedDeps = deps.clone()
	f.composites = append(f.composites, cell)
	return out
}

type listItem struct {
	key   string
	def   *definition
	props any
}

type listCell struct {
	entries map[string]*fiber
	order   []string

	staged *listStage
}

type listStage struct {
	entries   map[string]*fiber
	order     []string
	evaluated []*fiber
}

func (*listCell) kind() slotKind { return slotList }

func (l *listCell) commitTo(b *commitBatch) {
	st := l.staged
	if st == nil {
		return
	}
	l.staged = nil

	for _, key := range l.order {
		old := l.entries[key]
		if st.entries[key] != old {
			b.removed = append(b.removed, old)
		}
	}
	l.entries = st.entries
	l.order = st.order

	for _, child := range st.evaluated {
		child.commitTo(b)
	}
}

func (l *listCell) abort() { l.staged = nil }

// list reconciles items against the committed entries of the next slot and
// returns the keys and outputs in item order.
func (f *fiber) list(items []listItem) ([]string, []any) {
	i := f.ledger.cursor
	cell := f.ledger.next(f, slotList, func() slot {
		return &listCell{entries: map[string]*fiber{}}
	}).(*listCell)

	st := &listStage{
		entries: make(map[string]*fiber, len(items)),
		order:   make([]string, 0, len(items)),
	}
	outs := make([]any, 0, len(items))

	for n, it := range items {
		if it.key == "" {
			panic(violation(f, i, "list entry %d has an empty key", n))
		}
		if _, dup := st.entries[it.key]; dup {
			panic(violation(f, i, "duplicate list key %q", it.key))
		}

		target := cell.entries[it.key]
		fresh := target == nil || target.def != it.def
		if fresh {
			target = f.root.spawn(it.def, f, it.key, f.path+"/"+it.key)
		}

		var out any
		if !fresh && !target.dirty && SameValue(target.props, it.props) {
			f.root.emit(EventSkip, target, -1, "")
			out = target.state
		} else {
			out = target.evaluate(it.props)
			st.evaluated = append(st.evaluated, target)
		}

		st.entries[it.key] = target
		st.order = append(st.order, it.key)
		outs = append(outs, out)
	}

	cell.staged = st
	f.composites = append(f.composites, cell)
	return st.order, outs
}
