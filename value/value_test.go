package value

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodgify/dotliquid/culture"
	"github.com/lodgify/dotliquid/naming"
)

// testState resolves paths from a flat map.
type testState struct {
	vars map[string]any
	conv naming.Convention
}

func newState(vars map[string]any) *testState {
	return &testState{vars: vars, conv: naming.Ruby{}}
}

func (s *testState) Get(path string) (any, error)  { return s.vars[path], nil }
func (s *testState) Context() context.Context      { return context.Background() }
func (s *testState) Convention() naming.Convention { return s.conv }

func TestIsTruthy(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{nil, false},
		{false, false},
		{true, true},
		{0, true},
		{"", true},
		{"false", true},
		{[]any{}, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsTruthy(tt.in), "IsTruthy(%#v)", tt.in)
	}
}

func TestRange(t *testing.T) {
	r := Range{From: 1, To: 5}
	assert.Equal(t, []any{1, 2, 3, 4, 5}, slices.Collect(r.Enumerate()))
	assert.Equal(t, 5, r.Len())
	assert.Equal(t, 0, Range{From: 3, To: 1}.Len())
}

func TestEnumerate(t *testing.T) {
	t.Run("slice", func(t *testing.T) {
		got, ok := ToSlice([]int{1, 2})
		require.True(t, ok)
		assert.Equal(t, []any{1, 2}, got)
	})
	t.Run("map is ordered by key", func(t *testing.T) {
		got, ok := ToSlice(map[string]any{"b": 2, "a": 1})
		require.True(t, ok)
		assert.Equal(t, []any{KeyValue{"a", 1}, KeyValue{"b", 2}}, got)
	})
	t.Run("int keys sort numerically", func(t *testing.T) {
		got, ok := ToSlice(map[int]string{10: "x", 2: "y"})
		require.True(t, ok)
		assert.Equal(t, []any{KeyValue{2, "y"}, KeyValue{10, "x"}}, got)
	})
	t.Run("string is not enumerable", func(t *testing.T) {
		_, ok := Enumerate("abc")
		assert.False(t, ok)
		assert.False(t, IsEnumerable("abc"))
	})
}

func TestLen(t *testing.T) {
	n, ok := Len("héllo")
	require.True(t, ok)
	assert.Equal(t, 5, n)

	n, ok = Len(map[string]int{"a": 1})
	require.True(t, ok)
	assert.Equal(t, 1, n)

	_, ok = Len(42)
	assert.False(t, ok)
}

func TestEmptiness(t *testing.T) {
	empty := Emptiness("empty")
	assert.True(t, empty.Matches(""))
	assert.True(t, empty.Matches([]any{}))
	assert.True(t, empty.Matches(map[string]any{}))
	assert.False(t, empty.Matches(nil))
	assert.False(t, empty.Matches("x"))
	assert.False(t, empty.Matches(0))
	assert.Equal(t, "empty", empty.String())
}

func TestForce(t *testing.T) {
	s := newState(map[string]any{"x": 3})
	v, err := Force(s, Lazy(func(s State) (any, error) { return s.Get("x") }))
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	_, err = Force(s, func() (any, error) { return nil, errors.New("boom") })
	assert.EqualError(t, err, "boom")

	v, err = Force(s, "plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", v)
}

type liquidized struct{}

func (liquidized) ToLiquid() any { return "converted" }

type opaque struct{ Name string }

type listed struct{ Name, Secret string }

func (listed) LiquidMembers() []string { return []string{"Name"} }

type money struct{ cents int }

func TestNormalize(t *testing.T) {
	var reg Registry
	RegisterSafeType(&reg, func(m money) any { return m.cents })

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"string", "x", "x"},
		{"int", 3, 3},
		{"decimal", decimal.NewFromInt(2), decimal.NewFromInt(2)},
		{"time", time.Unix(0, 0).UTC(), time.Unix(0, 0).UTC()},
		{"uuid", uuid.Nil, uuid.Nil},
		{"slice", []string{"a"}, []string{"a"}},
		{"liquidizable", liquidized{}, "converted"},
		{"anonymous struct", struct{ A int }{1}, struct{ A int }{1}},
		{"safe type", money{cents: 150}, 150},
		{"key value", KeyValue{"k", 1}, KeyValue{"k", 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in, &reg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("allowlisted", func(t *testing.T) {
		got, err := Normalize(listed{Name: "n", Secret: "s"}, &reg)
		require.NoError(t, err)
		require.IsType(t, &DropProxy{}, got)
		s := newState(nil)
		v, err := Member(s, got, "name")
		require.NoError(t, err)
		assert.Equal(t, "n", v)
		v, err = Member(s, got, "secret")
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("opaque struct", func(t *testing.T) {
		_, err := Normalize(opaque{Name: "x"}, &reg)
		var invalid *InvalidObjectError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "Object 'value.opaque' is invalid because it is neither a built-in type nor explicitly convertible", err.Error())
	})
}

func TestRegistrySnapshot(t *testing.T) {
	var reg Registry
	snap := reg.Snapshot()
	RegisterSafeType(&reg, func(m money) any { return m.cents })

	_, err := Normalize(money{1}, snap)
	assert.Error(t, err)
	_, err = Normalize(money{1}, &reg)
	assert.NoError(t, err)
}

type temperature float64

func TestFormat(t *testing.T) {
	fr := culture.MustParse("fr-FR")
	var reg Registry
	RegisterValueType(&reg, func(t temperature) any { return "warm" })

	tests := []struct {
		name string
		in   any
		c    *culture.Culture
		want string
	}{
		{"nil", nil, nil, ""},
		{"bool", true, nil, "true"},
		{"int", 42, nil, "42"},
		{"decimal", decimal.RequireFromString("1.50"), nil, "1.5"},
		{"decimal fr", decimal.RequireFromString("1.5"), fr, "1,5"},
		{"float", 2.25, nil, "2.25"},
		{"slice", []any{"a", 1, true}, nil, "a1true"},
		{"range", Range{1, 3}, nil, "123"},
		{"map", map[string]any{"lambda": "Hello", "alpha": "bet"}, nil, "[alpha, bet][lambda, Hello]"},
		{"value type", temperature(30), nil, "warm"},
		{"drop", &struct{ Drop }{}, nil, ""},
		{"liquidizable", liquidized{}, nil, ""},
		{"symbol", Emptiness("blank"), nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.in, tt.c, &reg))
		})
	}
}
