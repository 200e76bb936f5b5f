package dotliquid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodgify/dotliquid/parser"
	"github.com/lodgify/dotliquid/value"
)

func evalCond(t *testing.T, c *Context, left, op, right string) bool {
	t.Helper()
	ok, err := c.evalCondition(&parser.Condition{Left: left, Operator: op, Right: right})
	require.NoError(t, err, "%s %s %s", left, op, right)
	return ok
}

func assertCond(t *testing.T, c *Context, want bool, left, op, right string) {
	t.Helper()
	assert.Equal(t, want, evalCond(t, c, left, op, right), "%s %s %s", left, op, right)
}

func TestConditionDefaultOperators(t *testing.T) {
	c := NewContext(RenderParams{})
	for _, tt := range []struct {
		left, op, right string
		want            bool
	}{
		{"1", "==", "1", true},
		{"1", "!=", "2", true},
		{"1", "<>", "2", true},
		{"1", "<", "2", true},
		{"2", ">", "1", true},
		{"1", ">=", "1", true},
		{"2", ">=", "1", true},
		{"1", "<=", "2", true},
		{"1", "<=", "1", true},
		{"1", "==", "2", false},
		{"1", "!=", "1", false},
		{"1", "<>", "1", false},
		{"1", "<", "0", false},
		{"2", ">", "4", false},
		{"1", ">=", "3", false},
		{"1", "<=", "0", false},
	} {
		assertCond(t, c, tt.want, tt.left, tt.op, tt.right)
	}
}

func TestConditionContains(t *testing.T) {
	c := NewContext(RenderParams{})
	for _, right := range []string{"'o'", "'b'", "'bo'", "'ob'", "'bob'"} {
		assertCond(t, c, true, "'bob'", "contains", right)
	}
	for _, right := range []string{"'bob2'", "'a'", "'---'"} {
		assertCond(t, c, false, "'bob'", "contains", right)
	}

	c.Set("array", []int{1, 2, 3, 4, 5})
	assertCond(t, c, true, "array", "contains", "1")
	assertCond(t, c, true, "array", "contains", "5")
	assertCond(t, c, false, "array", "contains", "0")
	assertCond(t, c, false, "array", "contains", "6")
	assertCond(t, c, false, "array", "contains", "'1'")

	c.Set("fruits", []string{"Apple", "Orange", "Banana"})
	assertCond(t, c, true, "fruits", "contains", "'Apple'")
	assertCond(t, c, false, "fruits", "contains", "'apple'")
	assertCond(t, c, false, "fruits", "contains", "'Orang'")

	assertCond(t, c, false, "not_assigned", "contains", "0")
	assertCond(t, c, false, "0", "contains", "not_assigned")
}

func TestConditionStartsAndEndsWith(t *testing.T) {
	c := NewContext(RenderParams{})
	for _, right := range []string{"'d'", "'da'", "'dave'"} {
		assertCond(t, c, true, "'dave'", "startswith", right)
	}
	assertCond(t, c, false, "'dave'", "startswith", "'ave'")
	for _, right := range []string{"'e'", "'ve'", "'dave'"} {
		assertCond(t, c, true, "'dave'", "endswith", right)
	}
	assertCond(t, c, false, "'dave'", "endswith", "'dav'")

	c.Set("array", []int{1, 2, 3, 4, 5})
	assertCond(t, c, true, "array", "startsWith", "1")
	assertCond(t, c, false, "array", "startswith", "0")
	assertCond(t, c, true, "array", "ends_with", "5")
	assertCond(t, c, false, "array", "endswith", "0")

	assertCond(t, c, false, "not_assigned", "startswith", "0")
	assertCond(t, c, false, "0", "endswith", "not_assigned")
}

func TestConditionDictionary(t *testing.T) {
	c := NewContext(RenderParams{})
	c.Set("dictionary", map[string]string{"dave": "0", "bob": "4"})
	assertCond(t, c, true, "dictionary", "haskey", "'bob'")
	assertCond(t, c, false, "dictionary", "haskey", "'0'")
	assertCond(t, c, true, "dictionary", "hasvalue", "'0'")
	assertCond(t, c, false, "dictionary", "hasvalue", "'bob'")
	assertCond(t, c, true, "dictionary", "contains", "'dave'")
}

func TestConditionChains(t *testing.T) {
	c := NewContext(RenderParams{})
	cond := &parser.Condition{Left: "1", Operator: "==", Right: "2"}
	ok, err := c.evalCondition(cond)
	require.NoError(t, err)
	assert.False(t, ok)

	cond.Join, cond.Next = "or", &parser.Condition{Left: "2", Operator: "==", Right: "1"}
	ok, err = c.evalCondition(cond)
	require.NoError(t, err)
	assert.False(t, ok)

	cond.Next.Join, cond.Next.Next = "or", &parser.Condition{Left: "1", Operator: "==", Right: "1"}
	ok, err = c.evalCondition(cond)
	require.NoError(t, err)
	assert.True(t, ok)

	and := &parser.Condition{Left: "1", Operator: "==", Right: "1", Join: "and",
		Next: &parser.Condition{Left: "2", Operator: "==", Right: "1"}}
	ok, err = c.evalCondition(and)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConditionTruthiness(t *testing.T) {
	c := NewContext(RenderParams{})
	c.Set("zero", 0)
	c.Set("blank_string", "")
	c.Set("list", []any{})
	for _, name := range []string{"zero", "blank_string", "list", "true"} {
		ok, err := c.evalCondition(&parser.Condition{Left: name})
		require.NoError(t, err)
		assert.True(t, ok, name)
	}
	for _, name := range []string{"false", "nil", "missing"} {
		ok, err := c.evalCondition(&parser.Condition{Left: name})
		require.NoError(t, err)
		assert.False(t, ok, name)
	}
}

func TestConditionUnknownOperator(t *testing.T) {
	c := NewContext(RenderParams{})
	_, err := c.evalCondition(&parser.Condition{Left: "1", Operator: "=!", Right: "2"})
	require.Error(t, err)
	assert.Equal(t, ErrArgument, KindOf(err))
	assert.ErrorContains(t, err, "Unknown operator =!")
}

func TestConditionCustomOperator(t *testing.T) {
	e := New()
	e.RegisterOperator("starts_with", func(l, r any) (bool, error) {
		return strings.HasPrefix(value.ToString(l), value.ToString(r)), nil
	})
	e.RegisterOperator("IsMultipleOf", func(l, r any) (bool, error) {
		a, err := value.AsInt32(l)
		if err != nil {
			return false, err
		}
		b, err := value.AsInt32(r)
		if err != nil {
			return false, err
		}
		return a%b == 0, nil
	})
	c := e.NewContext(RenderParams{})

	assertCond(t, c, true, "'bob'", "starts_with", "'b'")
	assertCond(t, c, false, "'bob'", "starts_with", "'o'")
	assertCond(t, c, true, "16", "IsMultipleOf", "4")
	assertCond(t, c, true, "2147483646", "IsMultipleOf", "2")
	assertCond(t, c, false, "16", "IsMultipleOf", "5")
	assertCond(t, c, true, "16", "ismultipleof", "4")
	assertCond(t, c, true, "16", "is_multiple_of", "4")

	_, err := c.evalCondition(&parser.Condition{Left: "2147483648", Operator: "IsMultipleOf", Right: "2"})
	require.Error(t, err)
	assert.ErrorIs(t, err, value.ErrOverflow)

	e.UnregisterOperator("IsMultipleOf")
	c = e.NewContext(RenderParams{})
	_, err = c.evalCondition(&parser.Condition{Left: "16", Operator: "IsMultipleOf", Right: "4"})
	require.Error(t, err)
	assert.Equal(t, ErrArgument, KindOf(err))
}

func TestConditionInTemplate(t *testing.T) {
	tmpl := MustParse("{% if a == 1 and b contains 'x' or c %}yes{% else %}no{% endif %}")
	out, err := tmpl.Render(map[string]any{"a": 1, "b": "xyz"})
	require.NoError(t, err)
	assert.Equal(t, "yes", out)

	// a == 1 and (b contains 'x' or c)
	out, err = tmpl.Render(map[string]any{"a": 2, "b": "xyz", "c": true})
	require.NoError(t, err)
	assert.Equal(t, "no", out)
}
