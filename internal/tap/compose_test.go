package tap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Child / Inline
// ============================================================================

func TestChild_SkippedWhileDepsUnchanged(t *testing.T) {
	rec := &recorder{}
	renders := 0
	child := New("child", func(c *Ctx, label string) string {
		renders++
		return "child:" + label
	})

	type parentOut struct {
		Child string
		Tick  int
		Set   *Setter[int]
	}
	parent := New("parent", func(c *Ctx, label string) parentOut {
		tick, set := State(c, 0)
		return parentOut{Child: Child(c, child.With(label), nil), Tick: tick, Set: set}
	})

	root, err := CreateResource(parent.With("a"), testOptions(rec)...)
	require.NoError(t, err)

	root.State().Set.Set(1)
	require.NoError(t, root.FlushSync())
	assert.Equal(t, 1, renders, "same props: child reused")
	assert.Equal(t, "child:a", root.State().Child)
	assert.Equal(t, 1, rec.count(EventSkip, "parent/child"))

	require.NoError(t, root.UpdateInput("b"))
	assert.Equal(t, 2, renders)
	assert.Equal(t, "child:b", root.State().Child)
}

func TestChild_StateChangeReevaluatesAncestors(t *testing.T) {
	parentRenders := 0
	counter := newCounter()
	parent := New("parent", func(c *Ctx, _ int) counterOut {
		parentRenders++
		return Child(c, counter.With(5), nil)
	})

	root, err := CreateResource(parent.With(0), testOptions(nil)...)
	require.NoError(t, err)

	root.State().Set.Set(6)
	require.NoError(t, root.FlushSync())

	assert.Equal(t, 6, root.State().Value)
	assert.Equal(t, 2, parentRenders)
}

func TestChild_ResourceChangeReplacesInstance(t *testing.T) {
	var log []string
	named := func(name string) *Resource[int, string] {
		return New(name, func(c *Ctx, _ int) string {
			Effect(c, func() Cleanup {
				log = append(log, name+" mount")
				return func() { log = append(log, name+" unmount") }
			}, Deps{})
			return name
		})
	}
	first, second := named("first"), named("second")

	parent := New("parent", func(c *Ctx, useSecond bool) string {
		if useSecond {
			return Child(c, second.With(0), nil)
		}
		return Child(c, first.With(0), nil)
	})

	root, err := CreateResource(parent.With(false), testOptions(nil)...)
	require.NoError(t, err)
	require.NoError(t, root.UpdateInput(true))

	assert.Equal(t, "second", root.State())
	assert.Equal(t, []string{"first mount", "first unmount", "second mount"}, log)
}

func TestInline_AlwaysReevaluates(t *testing.T) {
	renders := 0
	child := New("inline", func(c *Ctx, p int) int {
		renders++
		return p
	})
	parent := New("parent", func(c *Ctx, p int) int {
		return Inline(c, child.With(1))
	})

	root, err := CreateResource(parent.With(0), testOptions(nil)...)
	require.NoError(t, err)
	require.NoError(t, root.UpdateInput(0))
	require.NoError(t, root.UpdateInput(0))

	assert.Equal(t, 3, renders)
}

func TestChild_NestedPaths(t *testing.T) {
	var paths []string
	leaf := New("leaf", func(c *Ctx, _ int) int {
		paths = append(paths, c.Path())
		return 0
	})
	mid := New("mid", func(c *Ctx, _ int) int {
		paths = append(paths, c.Path())
		return Child(c, leaf.With(0), nil)
	})
	top := New("top", func(c *Ctx, _ int) int {
		paths = append(paths, c.Path())
		return Child(c, mid.With(0), nil)
	})

	_, err := CreateResource(top.With(0), testOptions(nil)...)
	require.NoError(t, err)
	assert.Equal(t, []string{"top", "top/mid", "top/mid/leaf"}, paths)
}

// ============================================================================
// Children (keyed lists)
// ============================================================================

type itemOut struct {
	Key   string
	Count int
}

type listFixture struct {
	inits     map[string]int
	teardowns map[string]int
	setters   map[string]*Setter[int]
	list      *Resource[[]string, []itemOut]
}

func newListFixture() *listFixture {
	fx := &listFixture{
		inits:     map[string]int{},
		teardowns: map[string]int{},
		setters:   map[string]*Setter[int]{},
	}
	item := New("item", func(c *Ctx, _ struct{}) itemOut {
		key := c.Key()
		n, set := StateFunc(c, func() int {
			fx.inits[key]++
			return 0
		})
		fx.setters[key] = set
		Effect(c, func() Cleanup {
			return func() { fx.teardowns[key]++ }
		}, Deps{})
		return itemOut{Key: key, Count: n}
	})
	fx.list = New("list", func(c *Ctx, keys []string) []itemOut {
		els := make([]Element[struct{}, itemOut], len(keys))
		for i, k := range keys {
			els[i] = item.Keyed(k, struct{}{})
		}
		return Children(c, els).Values()
	})
	return fx
}

func TestChildren_Reconciliation(t *testing.T) {
	fx := newListFixture()
	root, err := CreateResource(fx.list.With([]string{"a", "b", "c"}), testOptions(nil)...)
	require.NoError(t, err)

	fx.setters["b"].Set(5)
	require.NoError(t, root.FlushSync())

	require.NoError(t, root.UpdateInput([]string{"b", "c", "d"}))

	assert.Equal(t, []itemOut{{"b", 5}, {"c", 0}, {"d", 0}}, root.State())
	assert.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1, "d": 1}, fx.inits)
	assert.Equal(t, map[string]int{"a": 1}, fx.teardowns)

	require.NoError(t, root.Close())
	assert.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1, "d": 1}, fx.teardowns)
}

func TestChildren_Reorder(t *testing.T) {
	fx := newListFixture()
	root, err := CreateResource(fx.list.With([]string{"a", "b"}), testOptions(nil)...)
	require.NoError(t, err)

	fx.setters["a"].Set(1)
	require.NoError(t, root.FlushSync())
	require.NoError(t, root.UpdateInput([]string{"b", "a"}))

	assert.Equal(t, []itemOut{{"b", 0}, {"a", 1}}, root.State())
	assert.Empty(t, fx.teardowns)
}

func TestChildren_SetterOnRemovedEntryIsDropped(t *testing.T) {
	rec := &recorder{}
	fx := newListFixture()
	root, err := CreateResource(fx.list.With([]string{"a", "b"}), testOptions(rec)...)
	require.NoError(t, err)

	require.NoError(t, root.UpdateInput([]string{"b"}))
	passes := rec.count(EventPass, "list")

	fx.setters["a"].Set(9)
	require.NoError(t, root.FlushSync())
	assert.Equal(t, passes, rec.count(EventPass, "list"))
	assert.Equal(t, 1, rec.count(EventTeardown, "list/a"))
}

func TestChildren_KeyValidation(t *testing.T) {
	item := New("item", func(c *Ctx, _ int) int { return 0 })

	dup := New("dup", func(c *Ctx, _ int) int {
		Children(c, []Element[int, int]{item.Keyed("x", 0), item.Keyed("x", 1)})
		return 0
	})
	_, err := CreateResource(dup.With(0), testOptions(nil)...)
	require.Error(t, err)
	assert.True(t, IsStructuralViolation(err))
	assert.Contains(t, err.Error(), `duplicate list key "x"`)

	empty := New("empty", func(c *Ctx, _ int) int {
		Children(c, []Element[int, int]{item.With(0)})
		return 0
	})
	_, err = CreateResource(empty.With(0), testOptions(nil)...)
	assert.True(t, IsStructuralViolation(err))
}

func TestList_Lookups(t *testing.T) {
	item := New("item", func(c *Ctx, n int) int { return n * 10 })
	var list *List[int]
	res := New("list", func(c *Ctx, _ int) int {
		list = Children(c, []Element[int, int]{item.Keyed("one", 1), item.Keyed("two", 2)})
		return list.Len()
	})

	_, err := CreateResource(res.With(0), testOptions(nil)...)
	require.NoError(t, err)

	assert.Equal(t, []string{"one", "two"}, list.Keys())
	assert.Equal(t, []int{10, 20}, list.Values())
	assert.Equal(t, []Entry[int]{{Key: "one", Value: 10}, {Key: "two", Value: 20}}, list.Entries())

	v, err := list.At(1)
	require.NoError(t, err)
	assert.Equal(t, 20, v)

	v, err = list.Get("one")
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	_, err = list.At(2)
	assert.True(t, IsMissingResource(err))
	var me *MissingResourceError
	require.ErrorAs(t, err, &me)
	assert.True(t, me.ByIndex)
	assert.Equal(t, 2, me.Index)
	assert.Equal(t, 2, me.Len)

	_, err = list.Get("three")
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "three", me.Key)
	assert.Equal(t, ErrCodeMissingResource, CodeOf(err))
}
