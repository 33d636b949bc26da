package canon

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"negative int64", int64(-100), "-100"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"array", []any{1, "a", true}, `[1,"a",true]`},
		{"integral json number", json.Number("7"), "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := map[string]any{
		"zebra": 1,
		"alpha": map[string]any{"b": 1, "a": 2},
		"beta":  3,
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":{"a":2,"b":1},"beta":3,"zebra":1}`, string(result))
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// U+10000 encodes as the surrogate pair 0xD800 0xDC00, which sorts
	// before U+E000 in UTF-16 but after it in UTF-8.
	obj := map[string]any{
		"\uE000":     1,
		"\U00010000": 2,
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(result))
}

func TestMarshalCanonicalStrings(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no html escaping", "<a&b>", `"<a&b>"`},
		{"nfc normalized", "e\u0301", "\"\u00e9\""},
		{"line separator literal", "a\u2028b", "\"a\u2028b\""},
		{"escaped backslash before u2028 text", `\u2028`, `"\\u2028"`},
		{"control chars escaped", "a\nb", `"a\nb"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalRejects(t *testing.T) {
	tests := []struct {
		name  string
		input any
	}{
		{"nil", nil},
		{"float64", 1.5},
		{"float json number", json.Number("1.5")},
		{"nested float", map[string]any{"a": []any{1.25}}},
		{"nil pointer", (*struct{})(nil)},
		{"nil slice", []int(nil)},
		{"channel", make(chan int)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MarshalCanonical(tt.input)
			assert.Error(t, err)
		})
	}
}

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Skip  string `json:"skip,omitempty"`
}

func TestMarshalCanonicalStructs(t *testing.T) {
	result, err := MarshalCanonical(sample{Name: "n", Count: 2})
	require.NoError(t, err)
	assert.Equal(t, `{"count":2,"name":"n"}`, string(result))

	result, err = MarshalCanonical([]sample{{Name: "a"}, {Name: "b", Count: 1}})
	require.NoError(t, err)
	assert.Equal(t, `[{"count":0,"name":"a"},{"count":1,"name":"b"}]`, string(result))
}

func TestDigest(t *testing.T) {
	a, err := Digest(DomainEvent, map[string]any{"k": 1})
	require.NoError(t, err)
	assert.Len(t, a, 64)

	same, err := Digest(DomainEvent, map[string]any{"k": 1})
	require.NoError(t, err)
	assert.Equal(t, a, same)

	other, err := Digest(DomainSnapshot, map[string]any{"k": 1})
	require.NoError(t, err)
	assert.NotEqual(t, a, other, "domain separation")

	_, err = Digest(DomainEvent, 1.5)
	assert.ErrorContains(t, err, "digest tap/event/v1")
}
