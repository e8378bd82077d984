package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	// Compile-time check: every operand type satisfies Value.
	values := []Value{Null{}, String("a"), Number(1.5), Bool(true), List{String("x")}}
	assert.Len(t, values, 5)
}

func TestUnmarshalValue(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Value
	}{
		{"string", `"GET"`, String("GET")},
		{"integer", `200`, Number(200)},
		{"float", `1.5`, Number(1.5)},
		{"bool", `true`, Bool(true)},
		{"null", `null`, Null{}},
		{"empty input", ``, Null{}},
		{"list", `["a", 2, false]`, List{String("a"), Number(2), Bool(false)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := UnmarshalValue([]byte(tt.input))
			require.NoError(t, err)
			assert.True(t, Equal(tt.expected, v), "got %#v", v)
		})
	}
}

func TestUnmarshalValueRejectsObjects(t *testing.T) {
	_, err := UnmarshalValue([]byte(`{"a":1}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "objects are not valid operands")
}

func TestValueMarshalJSON(t *testing.T) {
	b, err := json.Marshal(List{String("a"), Number(3), Number(0.25), Bool(true), Null{}})
	require.NoError(t, err)
	assert.Equal(t, `["a",3,0.25,true,null]`, string(b))
}

func TestText(t *testing.T) {
	assert.Equal(t, "abc", Text(String("abc")))
	assert.Equal(t, "20", Text(Number(20)))
	assert.Equal(t, "0.5", Text(Number(0.5)))
	assert.Equal(t, "false", Text(Bool(false)))
	assert.Equal(t, "a,b", Text(Strings("a", "b")))
	assert.Equal(t, "", Text(Null{}))
	assert.Equal(t, "", Text(nil))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(String("a"), String("a")))
	assert.False(t, Equal(String("1"), Number(1)))
	assert.True(t, Equal(nil, Null{}))
	assert.True(t, Equal(Strings("a", "b"), List{String("a"), String("b")}))
	assert.False(t, Equal(Strings("a", "b"), Strings("b", "a")))
	assert.False(t, Equal(Strings("a"), String("a")))
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, IsEmpty(nil))
	assert.True(t, IsEmpty(Null{}))
	assert.True(t, IsEmpty(String("")))
	assert.True(t, IsEmpty(List{}))
	assert.False(t, IsEmpty(Number(0)))
	assert.False(t, IsEmpty(Bool(false)))
}
