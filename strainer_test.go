package dotliquid

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodgify/dotliquid/naming"
	"github.com/lodgify/dotliquid/value"
)

type wordFilters struct{}

func (wordFilters) Shout(s string) string { return strings.ToUpper(s) + "!" }

func (wordFilters) Shift(s string, n int) string {
	if n < 0 || n > len(s) {
		return s
	}
	return s[n:] + s[:n]
}

func (wordFilters) Pad(s string, width int, fill ...string) string {
	f := " "
	if len(fill) > 0 {
		f = fill[0]
	}
	for len(s) < width {
		s += f
	}
	return s
}

func (wordFilters) unexported(s string) string { return s }

func testStrainer(conv naming.Convention, sources ...filterSource) *strainer {
	return newStrainer(conv, append([]filterSource{receiverSource(wordFilters{})}, sources...))
}

func TestStrainerDispatchesByName(t *testing.T) {
	s := testStrainer(naming.Ruby{})

	out, err := s.invoke(nil, "shout", []any{"hi"})
	require.NoError(t, err)
	assert.Equal(t, "HI!", out)

	out, err = s.invoke(nil, "shift", []any{"abcd", 1})
	require.NoError(t, err)
	assert.Equal(t, "bcda", out)

	assert.True(t, s.respondTo("pad"))
	assert.False(t, s.respondTo("unexported"))
}

func TestStrainerNamingConvention(t *testing.T) {
	s := testStrainer(naming.CSharp{}, funcSource("DoubleUp", func(s string) string { return s + s }))
	out, err := s.invoke(nil, "DoubleUp", []any{"ab"})
	require.NoError(t, err)
	assert.Equal(t, "abab", out)

	out, err = s.invoke(nil, "doubleUp", []any{"ab"})
	require.NoError(t, err)
	assert.Equal(t, "abab", out)

	r := testStrainer(naming.Ruby{}, funcSource("DoubleUp", func(s string) string { return s + s }))
	out, err = r.invoke(nil, "double_up", []any{"ab"})
	require.NoError(t, err)
	assert.Equal(t, "abab", out)
}

func TestStrainerArity(t *testing.T) {
	s := testStrainer(naming.Ruby{})

	// Missing trailing arguments are zero values.
	out, err := s.invoke(nil, "shift", []any{"abcd"})
	require.NoError(t, err)
	assert.Equal(t, "abcd", out)

	out, err = s.invoke(nil, "pad", []any{"ab", 4})
	require.NoError(t, err)
	assert.Equal(t, "ab  ", out)

	out, err = s.invoke(nil, "pad", []any{"ab", 4, "."})
	require.NoError(t, err)
	assert.Equal(t, "ab..", out)

	_, err = s.invoke(nil, "shout", []any{"a", "b", "c"})
	require.Error(t, err)
	assert.Equal(t, ErrArgument, KindOf(err))
	assert.Contains(t, err.Error(), "Wrong number of arguments (3) for filter 'shout'")
}

func TestStrainerLaterRegistrationWins(t *testing.T) {
	s := testStrainer(naming.Ruby{}, funcSource("shout", func(s string) string { return s + "?" }))
	out, err := s.invoke(nil, "shout", []any{"hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi?", out)
}

func TestStrainerPrefersExactArity(t *testing.T) {
	s := testStrainer(naming.Ruby{},
		funcSource("shift", func(s string) string { return "one" }),
	)
	out, err := s.invoke(nil, "shift", []any{"abcd", 2})
	require.NoError(t, err)
	assert.Equal(t, "cdab", out)

	out, err = s.invoke(nil, "shift", []any{"abcd"})
	require.NoError(t, err)
	assert.Equal(t, "one", out)
}

func TestStrainerInjectsContext(t *testing.T) {
	var got *Context
	s := testStrainer(naming.Ruby{}, funcSource("whoami", func(c *Context, s string) string {
		got = c
		return s
	}))
	ctx := &Context{}
	out, err := s.invoke(ctx, "whoami", []any{"me"})
	require.NoError(t, err)
	assert.Equal(t, "me", out)
	assert.Same(t, ctx, got)
}

func TestStrainerErrorResults(t *testing.T) {
	boom := errors.New("boom")
	s := testStrainer(naming.Ruby{},
		funcSource("fail", func(s string) (string, error) { return "", boom }),
		funcSource("explode", func(s string) string { panic(boom) }),
	)
	_, err := s.invoke(nil, "fail", []any{"x"})
	assert.ErrorIs(t, err, boom)

	_, err = s.invoke(nil, "explode", []any{"x"})
	assert.ErrorIs(t, err, boom)
}

func TestStrainerUnknownFilter(t *testing.T) {
	s := testStrainer(naming.Ruby{})
	_, err := s.invoke(nil, "sht", []any{"x"})
	var le *Error
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrFilterNotFound, le.Kind)
	assert.Equal(t, "sht", le.Message)
	assert.Subset(t, le.Suggestions, []string{"shout", "shift"})
}

func TestStrainerRejectsUnusableFuncs(t *testing.T) {
	for name, fn := range map[string]any{
		"no input":     func() string { return "" },
		"no result":    func(string) {},
		"second value": func(string) (string, string) { return "", "" },
	} {
		_, ok := newFilterFunc(name, reflect.ValueOf(fn))
		assert.False(t, ok, name)
	}
	assert.Panics(t, func() { receiverSource(nil) })
	assert.Panics(t, func() { funcSource("x", 42) })
}

func TestConvertArg(t *testing.T) {
	convert := func(v any, target any) any {
		t.Helper()
		rv, err := convertArg(v, reflect.TypeOf(target))
		require.NoError(t, err)
		return rv.Interface()
	}

	assert.Equal(t, "5", convert(5, ""))
	assert.Equal(t, int64(7), convert(7, int64(0)))
	assert.Equal(t, 2.5, convert("2.5", 0.0))
	assert.Equal(t, true, convert("x", false))
	assert.Equal(t, []any{"a"}, convert("a", []any(nil)))
	assert.Equal(t, []any{1, 2}, convert([]any{1, 2}, []any(nil)))
	assert.True(t, decimal.RequireFromString("1.50").Equal(convert("1.50", decimal.Decimal{}).(decimal.Decimal)))
	assert.Equal(t, 2020, convert("2020-01-02", time.Time{}).(time.Time).Year())
	assert.Equal(t, "", convert(nil, ""))

	_, err := convertArg(300, reflect.TypeFor[int8]())
	assert.ErrorIs(t, err, value.ErrOverflow)

	_, err = convertArg("abc", reflect.TypeFor[decimal.Decimal]())
	assert.EqualError(t, err, "Input string 'abc' was not in a correct format")

	_, err = convertArg(struct{}{}, reflect.TypeFor[map[string]any]())
	assert.Equal(t, ErrArgument, KindOf(err))
}
