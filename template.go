package dotliquid

import (
	"context"
	"errors"
	"io"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/lodgify/dotliquid/culture"
	"github.com/lodgify/dotliquid/lexer"
	"github.com/lodgify/dotliquid/naming"
	"github.com/lodgify/dotliquid/parser"
)

// RenderParams carries the inputs of one render. Zero fields defer to the
// engine settings.
type RenderParams struct {
	// LocalVariables are the variables of the render.
	LocalVariables map[string]any
	// Registers are merged into the template registers.
	Registers map[string]any
	// Filters are filter receivers added for this render only.
	Filters []any

	ErrorsOutputMode    ErrorsOutputMode
	MaxIterations       int
	Timeout             time.Duration
	Culture             *culture.Culture
	NamingConvention    naming.Convention
	SyntaxCompatibility lexer.SyntaxCompatibility

	// Context bounds the render. Cancelling it aborts the render at the
	// next node.
	Context context.Context
}

// Template is a parsed template.
//
// By default a template keeps state between renders: variables assigned
// by one render are visible to the next, and Errors reports the errors of
// the last render. Renders of such a template are serialized. After
// MakeThreadSafe, every render starts from a clean state and renders may
// run concurrently.
type Template struct {
	engine *Engine
	name   string
	source string
	level  lexer.SyntaxCompatibility
	root   *parser.Template

	mu              sync.Mutex
	registers       map[string]any
	assigns         map[string]any
	instanceAssigns map[string]any
	errors          []error
	threadSafe      bool
}

func newTemplate(e *Engine, name, source string, level lexer.SyntaxCompatibility, root *parser.Template) *Template {
	return &Template{
		engine:          e,
		name:            name,
		source:          source,
		level:           level,
		root:            root,
		registers:       map[string]any{},
		assigns:         map[string]any{},
		instanceAssigns: map[string]any{},
	}
}

// Name returns the name the template was parsed with.
func (t *Template) Name() string { return t.name }

// Source returns the template source.
func (t *Template) Source() string { return t.source }

// Root returns the node tree of the template.
func (t *Template) Root() *parser.Template { return t.root }

// Registers returns the registers kept between renders.
func (t *Template) Registers() map[string]any { return t.registers }

// Assigns returns the variables every render of the template sees.
func (t *Template) Assigns() map[string]any { return t.assigns }

// InstanceAssigns returns the variables assigned by previous renders.
func (t *Template) InstanceAssigns() map[string]any { return t.instanceAssigns }

// Errors returns the errors of the last render.
func (t *Template) Errors() []error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.errors
}

// MakeThreadSafe stops the template from keeping state between renders.
func (t *Template) MakeThreadSafe() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.threadSafe = true
}

// IsThreadSafe reports whether MakeThreadSafe was called.
func (t *Template) IsThreadSafe() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.threadSafe
}

// Render renders the template with vars as local variables.
func (t *Template) Render(vars map[string]any) (string, error) {
	return t.RenderParams(RenderParams{LocalVariables: vars})
}

// RenderParams renders the template to a string.
func (t *Template) RenderParams(p RenderParams) (string, error) {
	var sb strings.Builder
	err := t.RenderTo(&sb, p)
	return sb.String(), err
}

// RenderTo renders the template to w. Non-fatal errors are handled
// according to the errors output mode; the returned error is the first
// fatal one, or in rethrow mode the first error of any kind.
func (t *Template) RenderTo(w io.Writer, p RenderParams) error {
	cfg := t.engine.snapshot()
	var envs []map[string]any
	if p.LocalVariables != nil {
		envs = append(envs, p.LocalVariables)
	}

	t.mu.Lock()
	threadSafe := t.threadSafe
	if threadSafe {
		t.mu.Unlock()
	} else {
		defer t.mu.Unlock()
	}

	var c *Context
	if threadSafe {
		c = newContext(cfg, p, envs, map[string]any{}, maps.Clone(p.Registers))
	} else {
		envs = append(envs, t.assigns)
		maps.Copy(t.registers, p.Registers)
		c = newContext(cfg, p, envs, t.instanceAssigns, t.registers)
	}
	if p.SyntaxCompatibility == 0 {
		c.syntax = t.level
	}
	c.name, c.source = t.name, t.source

	start := time.Now()
	err := c.RenderAll(w, t.root.Children)
	if !threadSafe {
		t.errors = c.errors
	}
	err = renderResult(err)
	cfg.logger.Debug("template rendered", "name", t.name, "errors", len(c.errors),
		"iterations", c.budget.consumed(), "elapsed", time.Since(start), "err", err)
	return err
}

// renderResult unwraps rethrown errors and ends the render quietly at a
// break or continue outside of any loop.
func renderResult(err error) error {
	if err == nil || errors.Is(err, errBreak) || errors.Is(err, errContinue) {
		return nil
	}
	var r *rethrown
	if errors.As(err, &r) {
		return r.error
	}
	return err
}
