package dotliquid

import (
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/lodgify/dotliquid/filesystem"
	"github.com/lodgify/dotliquid/lexer"
	"github.com/lodgify/dotliquid/value"
)

// CachingFileSystem wraps a file system and keeps the templates it parses
// for include and extends, so a partial is read and parsed once per name
// and syntax level. Concurrent renders share in-flight loads.
//
// Entries live until Evict or Reset, or until a Watcher attached with
// Watch reports a change to the file.
type CachingFileSystem struct {
	fs filesystem.FileSystem

	mu      sync.RWMutex
	entries map[cacheKey]*Template
	loads   singleflight.Group
	hits    atomic.Int64
}

type cacheKey struct {
	name  string
	level lexer.SyntaxCompatibility
}

// NewCachingFileSystem returns a cache in front of fs.
func NewCachingFileSystem(fs filesystem.FileSystem) *CachingFileSystem {
	return &CachingFileSystem{fs: fs, entries: map[cacheKey]*Template{}}
}

// ReadTemplateFile implements filesystem.FileSystem by reading through to
// the wrapped file system.
func (c *CachingFileSystem) ReadTemplateFile(s value.State, templateName string) (string, error) {
	return c.fs.ReadTemplateFile(s, templateName)
}

// GetTemplate implements TemplateFileSystem.
func (c *CachingFileSystem) GetTemplate(ctx *Context, templateName string) (*Template, error) {
	name, err := c.resolve(ctx, templateName)
	if err != nil {
		return nil, err
	}
	key := cacheKey{name: name, level: ctx.syntax}

	c.mu.RLock()
	t, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return t, nil
	}

	v, err, _ := c.loads.Do(name+"\x00"+ctx.syntax.String(), func() (any, error) {
		source, err := c.fs.ReadTemplateFile(ctx, templateName)
		if err != nil {
			return nil, err
		}
		root, err := parseSource(name, source, ctx.syntax, ctx.cfg.tags)
		if err != nil {
			return nil, err
		}
		t := newTemplate(ctx.cfg.engine, name, source, ctx.syntax, root)
		c.mu.Lock()
		c.entries[key] = t
		c.mu.Unlock()
		ctx.logger.Debug("template cached", "name", name)
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Template), nil
}

// resolve returns the name a template is cached under.
func (c *CachingFileSystem) resolve(ctx *Context, templateName string) (string, error) {
	if r, ok := c.fs.(filesystem.Resolver); ok {
		return r.TemplateName(ctx, templateName)
	}
	v, err := ctx.Lookup(templateName, false)
	if err != nil {
		return "", err
	}
	if v == nil {
		return strings.Trim(templateName, `'"`), nil
	}
	return value.ToString(v), nil
}

// Evict drops the cached templates of name at every syntax level.
func (c *CachingFileSystem) Evict(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.name == name {
			delete(c.entries, k)
		}
	}
}

// Reset drops every cached template.
func (c *CachingFileSystem) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Len returns the number of cached templates.
func (c *CachingFileSystem) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Hits returns the number of lookups served from the cache.
func (c *CachingFileSystem) Hits() int64 {
	return c.hits.Load()
}

// Watch evicts the templates w reports as changed.
func (c *CachingFileSystem) Watch(w *filesystem.Watcher) {
	w.OnChange(c.Evict)
}
