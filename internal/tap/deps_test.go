package tap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSameValue(t *testing.T) {
	slice := []int{1, 2, 3}
	m := map[string]int{"a": 1}
	p := &struct{ n int }{1}
	fn := func() {}

	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"equal ints", 1, 1, true},
		{"different ints", 1, 2, false},
		{"different types", 1, int64(1), false},
		{"equal strings", "a", "a", true},
		{"both nil", nil, nil, true},
		{"nil and value", nil, 0, false},
		{"same slice", slice, slice, true},
		{"resliced", slice, slice[:2], false},
		{"equal contents different slices", []int{1}, []int{1}, false},
		{"same map", m, m, true},
		{"different maps", map[string]int{}, map[string]int{}, false},
		{"same pointer", p, p, true},
		{"different pointers", &struct{ n int }{1}, &struct{ n int }{1}, false},
		{"funcs never equal", fn, fn, false},
		{"comparable structs", struct{ A int }{1}, struct{ A int }{1}, true},
		{"non-comparable structs", struct{ A []int }{slice}, struct{ A []int }{slice}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SameValue(tt.a, tt.b))
		})
	}
}

func TestDepsEqual(t *testing.T) {
	assert.False(t, depsEqual(nil, nil), "nil deps never match")
	assert.False(t, depsEqual(Deps{}, nil))
	assert.True(t, depsEqual(Deps{}, Deps{}))
	assert.True(t, depsEqual(Deps{1, "a"}, Deps{1, "a"}))
	assert.False(t, depsEqual(Deps{1}, Deps{1, 2}), "length change")
	assert.False(t, depsEqual(Deps{1, "a"}, Deps{1, "b"}))
}

func TestDeps_Clone(t *testing.T) {
	assert.Nil(t, Deps(nil).clone())

	empty := Deps{}.clone()
	assert.NotNil(t, empty)
	assert.Len(t, empty, 0)

	orig := Deps{1, 2}
	cp := orig.clone()
	orig[0] = 9
	assert.Equal(t, Deps{1, 2}, cp)
}
