package value

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodgify/dotliquid/naming"
)

type textDrop struct {
	Drop
	Label string
}

func (d *textDrop) Text() string       { return "text1" }
func (d *textDrop) Array() []string    { return []string{"text1", "text2"} }
func (d *textDrop) ProductID() int     { return 1 }
func (d *textDrop) Fail() (any, error) { return nil, errors.New("failed") }
func (d *textDrop) callMeNot() string  { return "protected" }

type catchallDrop struct{ Drop }

func (catchallDrop) BeforeMethod(name string) any { return "method: " + name }

func TestDropMembers(t *testing.T) {
	s := newState(nil)
	d := &textDrop{Label: "lbl"}
	tests := []struct {
		name string
		want any
	}{
		{"text", "text1"},
		{"array", []string{"text1", "text2"}},
		{"label", "lbl"},
		{"product_id", 1},
		{"call_me_not", nil},
		{"state", nil},
		{"set_context", nil},
		{"unknown", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Member(s, d, tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("error result", func(t *testing.T) {
		_, err := Member(s, d, "fail")
		assert.EqualError(t, err, "failed")
	})

	t.Run("go name under ruby convention", func(t *testing.T) {
		got, err := Member(s, d, "ProductID")
		require.NoError(t, err)
		assert.Equal(t, "Missing property. Did you mean 'product_id'?", got)
	})

	t.Run("csharp convention", func(t *testing.T) {
		cs := &testState{conv: naming.CSharp{}}
		got, err := Member(cs, d, "ProductID")
		require.NoError(t, err)
		assert.Equal(t, 1, got)
		got, err = Member(cs, d, "product_id")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

type brokenDrop struct {
	Drop
	counts map[string]int
}

func (d *brokenDrop) Boom() int {
	d.counts["boom"]++
	return d.counts["boom"]
}

func (d *brokenDrop) BeforeMethod(name string) any { panic("no member " + name) }

type brokenIndex struct{}

func (brokenIndex) ContainsKey(any) bool { return true }

func (brokenIndex) Get(context.Context, any) (any, error) { panic(errors.New("index down")) }

func TestHostPanicsBecomeErrors(t *testing.T) {
	s := newState(nil)

	_, err := Member(s, &brokenDrop{}, "boom")
	assert.ErrorContains(t, err, "assignment to entry in nil map")

	_, err = Member(s, &brokenDrop{}, "other")
	assert.EqualError(t, err, "no member other")

	_, ok, err := Index(s, brokenIndex{}, "k")
	assert.True(t, ok)
	assert.EqualError(t, err, "index down")

	_, err = Force(s, Lazy(func(State) (any, error) { panic("lazy down") }))
	assert.EqualError(t, err, "lazy down")

	v, err := Force(s, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, v)
}

func TestDropBeforeMethod(t *testing.T) {
	got, err := Member(newState(nil), &catchallDrop{}, "unknown")
	require.NoError(t, err)
	assert.Equal(t, "method: unknown", got)
}

func TestDropContext(t *testing.T) {
	d := &textDrop{}
	s := newState(map[string]any{"bar": "carrot"})
	var aware ContextAware = d
	aware.SetContext(s)
	v, err := d.State().Get("bar")
	require.NoError(t, err)
	assert.Equal(t, "carrot", v)
	assert.True(t, IsDrop(d))
	assert.False(t, IsDrop(struct{}{}))
}

func TestDropProxyConvert(t *testing.T) {
	p := NewDropProxy(listed{Name: "n"}, []string{"Name"}, func(v any) any { return v.(listed).Name + "!" })
	assert.Equal(t, "n!", p.ToValueType())
	assert.Equal(t, "n!", Format(p, nil, nil))
	assert.Equal(t, listed{Name: "n"}, p.Target())
}

type virtualList struct{ items []any }

func (l virtualList) ContainsKey(key any) bool {
	i, ok := key.(int)
	return ok && i >= 0 && i < len(l.items)
}

func (l virtualList) Get(_ context.Context, key any) (any, error) {
	return l.items[key.(int)], nil
}

func TestIndex(t *testing.T) {
	s := newState(nil)

	t.Run("map", func(t *testing.T) {
		v, ok, err := Index(s, map[string]any{"Name": "x"}, "name")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "x", v)
	})
	t.Run("map exact under csharp", func(t *testing.T) {
		cs := &testState{conv: naming.CSharp{}}
		_, ok, err := Index(cs, map[string]any{"Name": "x"}, "name")
		require.NoError(t, err)
		assert.False(t, ok)
	})
	t.Run("slice with whole float", func(t *testing.T) {
		v, ok, err := Index(s, []string{"a", "b"}, 1.0)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "b", v)
	})
	t.Run("negative index", func(t *testing.T) {
		v, ok, err := Index(s, []string{"a", "b"}, -1)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "b", v)
	})
	t.Run("out of range", func(t *testing.T) {
		_, ok, err := Index(s, []string{"a"}, 5)
		require.NoError(t, err)
		assert.False(t, ok)
	})
	t.Run("fractional key", func(t *testing.T) {
		_, ok, _ := Index(s, []string{"a", "b"}, 0.5)
		assert.False(t, ok)
	})
	t.Run("anonymous struct", func(t *testing.T) {
		v, ok, err := Index(s, struct{ Title string }{"t"}, "title")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "t", v)
	})
	t.Run("indexable", func(t *testing.T) {
		l := virtualList{items: []any{1, "Second", 3}}
		v, ok, err := Index(s, l, 1)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "Second", v)
		_, ok, _ = Index(s, l, 7)
		assert.False(t, ok)
	})
	t.Run("drop is always found", func(t *testing.T) {
		v, ok, err := Index(s, &textDrop{}, "nothing")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Nil(t, v)
	})
}

func TestIndexMemoizesLazyValues(t *testing.T) {
	s := newState(nil)
	calls := 0
	counter := func() any {
		calls++
		return calls
	}

	m := map[string]any{"c": counter}
	for range 2 {
		v, ok, err := Index(s, m, "c")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 1, v)
	}

	list := []any{counter}
	for range 2 {
		v, _, err := Index(s, list, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, v)
	}

	anon := &struct{ Lazy any }{Lazy: counter}
	for range 2 {
		v, _, err := Index(s, anon, "lazy")
		require.NoError(t, err)
		assert.Equal(t, 3, v)
	}
	assert.Equal(t, 3, calls)
}
