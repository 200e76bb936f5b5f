package value

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type answer int

const (
	answerNo answer = iota
	answerYes
)

func (a answer) String() string {
	if a == answerYes {
		return "Yes"
	}
	return "No"
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name        string
		left, right any
		want        bool
	}{
		{"ints", 1, 1, true},
		{"int and int64", 1, int64(1), true},
		{"int16 and int", int16(1), 1, true},
		{"int and decimal", 1, decimal.RequireFromString("1.0"), true},
		{"float and decimal", 2.5, decimal.RequireFromString("2.50"), true},
		{"bool and string", true, "true", true},
		{"string and bool", "true", true, false},
		{"string and True", "True", true, true},
		{"string and int", "1", 1, true},
		{"int and string", 1, "1", true},
		{"int and junk", 1, "one", false},
		{"nil and nil", nil, nil, true},
		{"nil and value", nil, 0, false},
		{"enum and name", answerYes, "Yes", true},
		{"enum and number", answerYes, 1, true},
		{"blank string", "", Emptiness("blank"), true},
		{"empty left", Emptiness("empty"), []any{}, true},
		{"empty nil", Emptiness("empty"), nil, false},
		{"time and string", time.Date(2020, 1, 2, 0, 0, 0, 0, time.Local), "2020-01-02", true},
		{"slices", []any{1, 2}, []any{1, 2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.left, tt.right))
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name        string
		left, right any
		want        int
	}{
		{"ints", 1, 2, -1},
		{"negative decimal", decimal.RequireFromString("-10.5"), 0, -1},
		{"int and float", 3, 2.5, 1},
		{"strings", "b", "a", 1},
		{"int and numeric string", 10, "9", 1},
		{"bools", false, true, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := Compare(tt.left, tt.right)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("nil never orders", func(t *testing.T) {
		_, ok, err := Compare(nil, 1)
		require.NoError(t, err)
		assert.False(t, ok)
	})
	t.Run("junk string", func(t *testing.T) {
		_, _, err := Compare(1, "abc")
		assert.EqualError(t, err, "Input string 'abc' was not in a correct format")
	})
}

func TestContains(t *testing.T) {
	tests := []struct {
		name        string
		left, right any
		want        bool
	}{
		{"substring", "hello world", "lo w", true},
		{"missing substring", "hello", "z", false},
		{"int slice", []int{1, 2, 3, 4, 5}, 3, true},
		{"int slice missing", []int{1, 2, 3, 4, 5}, 6, false},
		{"int slice string", []int{1, 2, 3, 4, 5}, "1", false},
		{"long slice int", []int64{1, 2}, 1, true},
		{"long slice decimal", []int64{1, 2}, decimal.RequireFromString("1.0"), true},
		{"double slice decimal", []float64{1.5, 5}, decimal.RequireFromString("5.00"), true},
		{"double slice int", []float64{1.5, 5}, 3, false},
		{"byte slice int", []byte{1, 2, 3, 0x30}, 1, false},
		{"byte slice string", []byte{1, 2, 3, 0x30}, "0", false},
		{"byte slice byte", []byte{1, 2, 3, 0x30}, byte(1), true},
		{"bool slice string", []bool{true, false}, "true", false},
		{"bool slice bool", []bool{true, false}, false, true},
		{"string slice", []string{"apple", "pear"}, "pear", true},
		{"map key", map[string]any{"a": 1}, "a", true},
		{"nil left", nil, 1, false},
		{"nil right", []any{nil}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Contains(tt.left, tt.right))
		})
	}
}

func TestStartsEndsWith(t *testing.T) {
	assert.True(t, StartsWith("apple", "app"))
	assert.True(t, EndsWith("apple", "ple"))
	assert.True(t, StartsWith([]bool{true, false}, "true"))
	assert.True(t, StartsWith([]int{1, 2}, 1))
	assert.False(t, StartsWith([]string{"banana", "apple"}, "apple"))
	assert.True(t, EndsWith([]string{"banana", "apple"}, "apple"))
	assert.False(t, EndsWith([]int{}, 1))
	assert.False(t, StartsWith(nil, 1))
}

func TestHasKeyValue(t *testing.T) {
	m := map[string]any{"bob": "0", "alice": 2}
	assert.True(t, HasKey(m, "bob"))
	assert.False(t, HasKey(m, "carol"))
	assert.True(t, HasValue(m, "0"))
	assert.False(t, HasValue(m, "bob"))
	assert.True(t, HasValue(m, int64(2)))
	assert.False(t, HasKey([]any{"bob"}, "bob"))

	ints := map[int]string{1: "one"}
	assert.True(t, HasKey(ints, 1))
	assert.True(t, HasKey(ints, int64(1)))
	assert.False(t, HasKey(ints, 1.5))
}
