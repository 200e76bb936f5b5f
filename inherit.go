package dotliquid

import (
	"io"
	"reflect"
	"strings"

	"github.com/lodgify/dotliquid/filesystem"
	"github.com/lodgify/dotliquid/parser"
	"github.com/lodgify/dotliquid/value"
)

// TemplateFileSystem is implemented by file systems that hand out parsed
// templates, typically from a cache. A nil template with a nil error
// falls back to ReadTemplateFile.
type TemplateFileSystem interface {
	filesystem.FileSystem
	GetTemplate(ctx *Context, templateName string) (*Template, error)
}

// loadTemplate reads and parses the template an include or extends tag
// names.
func (c *Context) loadTemplate(templateName string) (*Template, error) {
	fs := c.FileSystem()
	if tfs, ok := fs.(TemplateFileSystem); ok {
		t, err := tfs.GetTemplate(c, templateName)
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}
	}
	source, err := fs.ReadTemplateFile(c, templateName)
	if err != nil {
		return nil, err
	}
	name := strings.Trim(templateName, `'"`)
	root, err := parseSource(name, source, c.syntax, c.cfg.tags)
	if err != nil {
		return nil, err
	}
	return &Template{engine: c.cfg.engine, name: name, source: source, level: c.syntax, root: root}, nil
}

// withTemplate renders a partial or parent template, pointing error
// reports at it.
func (c *Context) withTemplate(t *Template, w io.Writer) error {
	name, source := c.name, c.source
	c.name, c.source = t.name, t.source
	defer func() { c.name, c.source = name, source }()
	return c.RenderAll(w, t.root.Children)
}

func (c *Context) renderInclude(w io.Writer, n *parser.Include) error {
	t, err := c.loadTemplate(n.Template)
	if err != nil {
		return err
	}
	short := strings.Trim(n.Template, `'"`)

	var v any
	if n.Variable != "" {
		v, err = c.Lookup(n.Variable, true)
	} else {
		v, err = c.Lookup(short, false)
	}
	if err != nil {
		return err
	}

	return c.Stack(nil, func() error {
		for _, a := range n.Attributes {
			av, err := c.Get(a.Value)
			if err != nil {
				return err
			}
			c.Set(a.Key, av)
		}
		if items, ok := includeItems(v); ok {
			for _, item := range items {
				c.Set(short, item)
				if err := c.withTemplate(t, w); err != nil {
					return err
				}
			}
			return nil
		}
		c.Set(short, v)
		return c.withTemplate(t, w)
	})
}

// includeItems returns the items an include renders the partial for, once
// each. Maps count as a single value.
func includeItems(v any) ([]any, bool) {
	if !value.IsEnumerable(v) || isMap(v) {
		return nil, false
	}
	return value.ToSlice(v)
}

func isMap(v any) bool {
	return v != nil && reflect.TypeOf(v).Kind() == reflect.Map
}

// blockState tracks the overrides of the blocks of a template hierarchy
// during one render.
type blockState struct {
	parents   map[*parser.Block]*parser.Block
	nodeLists map[*parser.Block][]parser.Stmt
}

func newBlockState() *blockState {
	return &blockState{
		parents:   map[*parser.Block]*parser.Block{},
		nodeLists: map[*parser.Block][]parser.Stmt{},
	}
}

// nodeList returns the body b renders with: the overriding body if any.
func (bs *blockState) nodeList(b *parser.Block) []parser.Stmt {
	if bs != nil {
		if nl, ok := bs.nodeLists[b]; ok {
			return nl
		}
	}
	return b.Body
}

// addParent makes body the super of b, or of the root-most ancestor of b
// when b already has one.
func (bs *blockState) addParent(b *parser.Block, body []parser.Stmt) {
	if parent, ok := bs.parents[b]; ok {
		bs.addParent(parent, body)
		return
	}
	bs.parents[b] = &parser.Block{Name: b.Name, Body: body}
}

const (
	blockStateKey = "blockstate"
	extendsKey    = "extends"
)

// findBlockState returns the block state of the innermost scope that has
// one.
func (c *Context) findBlockState() *blockState {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if bs, ok := c.scopes[i][blockStateKey].(*blockState); ok {
			return bs
		}
	}
	return nil
}

// orphans holds the blocks an extending template defines that its parent
// does not, for the grandparent to pick up.
type orphans struct {
	blocks []*parser.Block
}

func (c *Context) renderExtends(w io.Writer, n *parser.Extends) error {
	t, err := c.loadTemplate(n.Template)
	if err != nil {
		return err
	}
	parentBlocks := findBlocks(t.root.Children, nil)
	var pending []*parser.Block
	if o, ok := c.scopes[len(c.scopes)-1][extendsKey].(*orphans); ok {
		pending = o.blocks
	}
	bs := c.findBlockState()
	if bs == nil {
		bs = newBlockState()
	}
	extending := isExtending(t.root)

	return c.Stack(nil, func() error {
		c.Set(blockStateKey, bs)
		next := &orphans{}
		c.Set(extendsKey, next)

		for _, b := range append(n.Blocks(), pending...) {
			pb := findBlock(parentBlocks, b.Name)
			if pb == nil {
				if extending {
					next.blocks = append(next.blocks, b)
				}
				continue
			}
			if parent, ok := bs.parents[b]; ok {
				bs.parents[pb] = parent
			}
			bs.addParent(pb, bs.nodeList(pb))
			bs.nodeLists[pb] = bs.nodeList(b)
		}
		return c.withTemplate(t, w)
	})
}

func findBlock(blocks []*parser.Block, name string) *parser.Block {
	for _, b := range blocks {
		if b.Name == name {
			return b
		}
	}
	return nil
}

func isExtending(root *parser.Template) bool {
	for _, n := range root.Children {
		if _, ok := n.(*parser.Extends); ok {
			return true
		}
	}
	return false
}

// findBlocks collects the blocks nested anywhere in nodes.
func findBlocks(nodes []parser.Stmt, out []*parser.Block) []*parser.Block {
	for _, n := range nodes {
		switch n := n.(type) {
		case *parser.Block:
			out = append(out, n)
			out = findBlocks(n.Body, out)
		case *parser.Extends:
			out = findBlocks(n.Body, out)
		case *parser.If:
			for _, b := range n.Blocks {
				out = findBlocks(b.Body, out)
			}
		case *parser.Case:
			for _, when := range n.Whens {
				out = findBlocks(when.Body, out)
			}
			out = findBlocks(n.Else, out)
		case *parser.For:
			out = findBlocks(n.Body, out)
			out = findBlocks(n.Else, out)
		case *parser.TableRow:
			out = findBlocks(n.Body, out)
		case *parser.Capture:
			out = findBlocks(n.Body, out)
		case *parser.IfChanged:
			out = findBlocks(n.Body, out)
		case *parser.CustomTag:
			out = findBlocks(n.Body, out)
		}
	}
	return out
}

func (c *Context) renderBlock(w io.Writer, b *parser.Block) error {
	bs := c.findBlockState()
	return c.Stack(nil, func() error {
		c.Set("block", &blockDrop{ctx: c, block: b})
		return c.RenderAll(w, bs.nodeList(b))
	})
}

// blockDrop is the block variable inside a block. block.super renders
// the overridden parent block.
type blockDrop struct {
	value.Drop
	ctx   *Context
	block *parser.Block
}

// Super renders the parent of the block.
func (d *blockDrop) Super() (string, error) {
	bs := d.ctx.findBlockState()
	if bs == nil {
		return "", nil
	}
	parent := bs.parents[d.block]
	if parent == nil {
		return "", nil
	}
	var sb strings.Builder
	if err := d.ctx.renderBlock(&sb, parent); err != nil {
		return "", err
	}
	return sb.String(), nil
}
