package dotliquid

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/lodgify/dotliquid/filesystem"
	"github.com/lodgify/dotliquid/lexer"
)

func cachingEngine(files map[string]string) (*Engine, *CachingFileSystem) {
	m := fstest.MapFS{}
	for name, src := range files {
		m["_"+name+".liquid"] = &fstest.MapFile{Data: []byte(src)}
	}
	cache := NewCachingFileSystem(filesystem.NewEmbedded(m, "."))
	return New(WithFileSystem(cache)), cache
}

func TestCachingFileSystemIncludes(t *testing.T) {
	e, cache := cachingEngine(map[string]string{"item": "[{{ i }}]"})
	tmpl, err := e.Parse("{% for i in (1..3) %}{% include 'item' %}{% endfor %}")
	require.NoError(t, err)

	out, err := tmpl.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "[1][2][3]", out)
	assert.Equal(t, 1, cache.Len())
	assert.EqualValues(t, 2, cache.Hits())
}

func TestCachingFileSystemExtends(t *testing.T) {
	e, cache := cachingEngine(map[string]string{
		"simple": "before {% block thing %}{% endblock %} after",
	})
	tmpl, err := e.Parse("{% extends 'simple' %}{% block thing %}yeah{% endblock %}")
	require.NoError(t, err)

	for range 2 {
		out, err := tmpl.Render(nil)
		require.NoError(t, err)
		assert.Equal(t, "before yeah after", out)
	}
	assert.EqualValues(t, 1, cache.Hits())
}

func TestCachingFileSystemKeysOnSyntax(t *testing.T) {
	e, cache := cachingEngine(map[string]string{"title": "{{ 'my title' | capitalize }}"})
	tmpl, err := e.Parse("{% include 'title' %}")
	require.NoError(t, err)

	out, err := tmpl.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "My Title", out)

	out, err = tmpl.RenderParams(RenderParams{SyntaxCompatibility: lexer.DotLiquid22})
	require.NoError(t, err)
	assert.Equal(t, "My title", out)
	assert.Equal(t, 2, cache.Len())
}

func TestCachingFileSystemEvict(t *testing.T) {
	e, cache := cachingEngine(map[string]string{"aa": "A", "bb": "B"})
	tmpl, err := e.Parse("{% include 'aa' %}{% include 'bb' %}")
	require.NoError(t, err)
	_, err = tmpl.Render(nil)
	require.NoError(t, err)
	require.Equal(t, 2, cache.Len())

	cache.Evict("aa")
	assert.Equal(t, 1, cache.Len())
	cache.Evict("nope")
	assert.Equal(t, 1, cache.Len())
	cache.Reset()
	assert.Equal(t, 0, cache.Len())
}

func TestCachingFileSystemMissingFile(t *testing.T) {
	e, cache := cachingEngine(nil)
	tmpl, err := e.Parse("{% include 'nope' %}")
	require.NoError(t, err)

	out, err := tmpl.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "Liquid error: Template file 'nope' not found", out)
	assert.Equal(t, 0, cache.Len())
}

func TestCachingFileSystemConcurrentRenders(t *testing.T) {
	e, cache := cachingEngine(map[string]string{"item": "{{ n }}"})
	tmpl, err := e.Parse("{% include 'item' %}")
	require.NoError(t, err)
	tmpl.MakeThreadSafe()

	var g errgroup.Group
	for i := range 16 {
		g.Go(func() error {
			out, err := tmpl.Render(map[string]any{"n": i})
			if err != nil {
				return err
			}
			assert.Equal(t, strconv.Itoa(i), out)
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 1, cache.Len())
}

func TestCachingFileSystemWatch(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "_greeting.liquid")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0o644))

	local := filesystem.NewLocal(dir)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w, err := filesystem.NewWatcher(ctx, local, nil)
	require.NoError(t, err)
	defer w.Close()

	cache := NewCachingFileSystem(local)
	cache.Watch(w)
	e := New(WithFileSystem(cache))
	tmpl, err := e.Parse("{% include 'greeting' %}")
	require.NoError(t, err)

	out, err := tmpl.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	require.NoError(t, os.WriteFile(file, []byte("goodbye"), 0o644))
	require.Eventually(t, func() bool { return cache.Len() == 0 }, 5*time.Second, 10*time.Millisecond)

	out, err = tmpl.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "goodbye", out)
}
