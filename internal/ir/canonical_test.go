package ir

import (
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
		{"string", String("hello"), `"hello"`},
		{"empty string", "", `""`},
		{"integral number", Number(42), "42"},
		{"fractional number", Number(0.5), "0.5"},
		{"negative int", -100, "-100"},
		{"bool true", Bool(true), "true"},
		{"null", nil, "null"},
		{"empty list", List{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"list", Strings("a", "b"), `["a","b"]`},
		{"no html escaping", "<a&b>", `"<a&b>"`},
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

func TestMarshalCanonicalStruct(t *testing.T) {
	type spec struct {
		Name     string  `json:"name"`
		Disabled bool    `json:"disabled"`
		Limit    *int    `json:"limit,omitempty"`
		Step     float64 `json:"step"`
	}

	result, err := MarshalCanonical(spec{Name: "A", Step: 60})
	require.NoError(t, err)
	assert.Equal(t, `{"disabled":false,"name":"A","step":60}`, string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// e + combining acute accent normalizes to the precomposed form.
	result, err := MarshalCanonical("e\u0301")
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(result))
}

func TestMarshalCanonicalUTF16KeyOrder(t *testing.T) {
	// U+FF61 sorts before U+1F600 in UTF-8 but after it in UTF-16.
	obj := map[string]any{"\U0001F600": 1, "｡": 2}
	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":1,\"｡\":2}", string(result))
}

func TestMarshalCanonicalUnsupported(t *testing.T) {
	_, err := MarshalCanonical(make(chan int))
	require.Error(t, err)
}
