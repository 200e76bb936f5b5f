package dotliquid

import (
	"context"
	"errors"
	"log/slog"
	"maps"

	"github.com/lodgify/dotliquid/culture"
	"github.com/lodgify/dotliquid/filesystem"
	"github.com/lodgify/dotliquid/lexer"
	"github.com/lodgify/dotliquid/naming"
	"github.com/lodgify/dotliquid/value"
)

// maxScopes bounds the nesting of scopes.
const maxScopes = 80

// Context is the state of one render: the scope stack, the environments,
// the registers, the filters and the errors recorded so far.
//
// Variables are looked up in the scopes, innermost first, and then in the
// environments in order. Environments are read-mostly: assign and capture
// write the outermost scope, Set writes the innermost one.
//
// A Context is not safe for concurrent use.
type Context struct {
	cfg          *config
	environments []map[string]any
	scopes       []map[string]any // innermost last
	registers    map[string]any
	errors       []error
	budget       *budget
	strainer     *strainer
	convention   naming.Convention
	syntax       lexer.SyntaxCompatibility
	culture      *culture.Culture
	rubyDates    bool
	errorsMode   ErrorsOutputMode
	fileSystem   filesystem.FileSystem
	logger       *slog.Logger
	registry     *value.Registry
	ctx          context.Context

	// name and source of the template being rendered, for error reports
	name, source string
}

// NewContext creates a context using the settings of the Default engine
// and p. It is meant for hosts and tests that evaluate expressions or
// filters without a template.
func NewContext(p RenderParams) *Context {
	return Default.NewContext(p)
}

// NewContext creates a context using the settings of e and p.
// LocalVariables, if any, become the only environment.
func (e *Engine) NewContext(p RenderParams) *Context {
	var envs []map[string]any
	if p.LocalVariables != nil {
		envs = append(envs, p.LocalVariables)
	}
	return newContext(e.snapshot(), p, envs, map[string]any{}, p.Registers)
}

func newContext(cfg *config, p RenderParams, environments []map[string]any, outerScope, registers map[string]any) *Context {
	if registers == nil {
		registers = map[string]any{}
	}
	if outerScope == nil {
		outerScope = map[string]any{}
	}
	c := &Context{
		cfg:          cfg,
		environments: environments,
		scopes:       []map[string]any{outerScope},
		registers:    registers,
		convention:   cfg.convention,
		syntax:       cfg.syntax,
		culture:      cfg.culture,
		rubyDates:    cfg.rubyDates,
		errorsMode:   cfg.errorsMode,
		fileSystem:   cfg.fileSystem,
		logger:       cfg.logger,
		registry:     cfg.registry,
		ctx:          p.Context,
	}
	if p.NamingConvention != nil {
		c.convention = p.NamingConvention
	}
	if p.SyntaxCompatibility != 0 {
		c.syntax = p.SyntaxCompatibility
	}
	if p.Culture != nil {
		c.culture = p.Culture
	}
	if p.ErrorsOutputMode != ErrorsDefault {
		c.errorsMode = p.ErrorsOutputMode
	}
	if c.ctx == nil {
		c.ctx = context.Background()
	}
	maxIterations, timeout := cfg.maxIterations, cfg.timeout
	if p.MaxIterations != 0 {
		maxIterations = p.MaxIterations
	}
	if p.Timeout != 0 {
		timeout = p.Timeout
	}
	c.budget = newBudget(c.ctx, maxIterations, timeout)
	c.strainer = newStrainer(c.convention, cfg.filters)
	for _, f := range p.Filters {
		c.strainer.extend(receiverSource(f))
	}
	c.squashInstanceAssignsWithEnvironments()
	return c
}

// squashInstanceAssignsWithEnvironments overwrites outer scope variables
// with environment variables of the same name.
func (c *Context) squashInstanceAssignsWithEnvironments() {
	outer := c.scopes[0]
	tmp := map[string]any{}
	for k := range outer {
		for _, env := range c.environments {
			if v, ok := lookupKey(c.convention, env, k); ok {
				tmp[k] = v
				break
			}
		}
	}
	maps.Copy(outer, tmp)
}

// Get resolves a variable reference or literal. A variable that cannot
// be found is recorded as an error and resolves to nil.
func (c *Context) Get(path string) (any, error) {
	return c.resolve(path, true)
}

// Lookup is Get with control over whether a missing variable is recorded
// as an error.
func (c *Context) Lookup(path string, notify bool) (any, error) {
	return c.resolve(path, notify)
}

// HasKey reports whether path resolves to a non-nil value.
func (c *Context) HasKey(path string) (bool, error) {
	v, err := c.resolve(path, false)
	return v != nil, err
}

// Set assigns a variable in the innermost scope.
func (c *Context) Set(name string, v any) {
	setKey(c.convention, c.scopes[len(c.scopes)-1], name, v)
}

// setOuter assigns a variable in the outermost scope, where template
// assigns live.
func (c *Context) setOuter(name string, v any) {
	setKey(c.convention, c.scopes[0], name, v)
}

// Push adds a scope to the stack.
func (c *Context) Push(scope map[string]any) error {
	if len(c.scopes) > maxScopes {
		return NewError(ErrStackLevel, "Nesting too deep")
	}
	if scope == nil {
		scope = map[string]any{}
	}
	c.scopes = append(c.scopes, scope)
	return nil
}

// Pop removes the innermost scope. The outermost scope cannot be popped.
func (c *Context) Pop() (map[string]any, error) {
	if len(c.scopes) == 1 {
		return nil, NewError(ErrContext, "Cannot pop the outermost scope")
	}
	scope := c.scopes[len(c.scopes)-1]
	c.scopes = c.scopes[:len(c.scopes)-1]
	return scope, nil
}

// Merge copies the variables of scope into the innermost scope.
func (c *Context) Merge(scope map[string]any) {
	inner := c.scopes[len(c.scopes)-1]
	for k, v := range scope {
		setKey(c.convention, inner, k, v)
	}
}

// Stack runs fn with scope pushed on the stack. A nil scope pushes an empty
// one.
func (c *Context) Stack(scope map[string]any, fn func() error) error {
	if err := c.Push(scope); err != nil {
		return err
	}
	defer c.Pop()
	return fn()
}

// ClearInstanceAssigns empties the innermost scope.
func (c *Context) ClearInstanceAssigns() {
	clear(c.scopes[len(c.scopes)-1])
}

// Scopes returns the scope stack, innermost first.
func (c *Context) Scopes() []map[string]any {
	out := make([]map[string]any, len(c.scopes))
	for i, s := range c.scopes {
		out[len(c.scopes)-1-i] = s
	}
	return out
}

// Environments returns the environments in lookup order.
func (c *Context) Environments() []map[string]any { return c.environments }

// Registers returns the registers, host state that templates cannot
// assign.
func (c *Context) Registers() map[string]any { return c.registers }

// Errors returns the errors recorded so far.
func (c *Context) Errors() []error { return c.errors }

// Context implements value.State.
func (c *Context) Context() context.Context { return c.ctx }

// Convention implements value.State.
func (c *Context) Convention() naming.Convention { return c.convention }

// Culture returns the culture numbers are parsed and formatted with.
func (c *Context) Culture() *culture.Culture { return c.culture }

// SyntaxCompatibility returns the syntax compatibility level in effect.
func (c *Context) SyntaxCompatibility() lexer.SyntaxCompatibility { return c.syntax }

// UseRubyDateFormat reports whether the date filter takes strftime
// formats.
func (c *Context) UseRubyDateFormat() bool { return c.rubyDates }

// FileSystem returns the file system for include and extends: the
// "file_system" register if set, the engine file system otherwise.
func (c *Context) FileSystem() filesystem.FileSystem {
	if fs, ok := c.registers["file_system"].(filesystem.FileSystem); ok {
		return fs
	}
	return c.fileSystem
}

// Logger returns the logger of the engine.
func (c *Context) Logger() *slog.Logger { return c.logger }

// RestartTimeout restarts the render timeout.
func (c *Context) RestartTimeout() { c.budget.restart() }

// CheckTimeout fails when the render timed out or was cancelled.
func (c *Context) CheckTimeout() error { return c.budget.check() }

// AddFilter registers fn as the filter name for this render only.
func (c *Context) AddFilter(name string, fn any) {
	c.strainer.extend(funcSource(name, fn))
}

// AddFilters registers the exported methods of each receiver as filters
// for this render only.
func (c *Context) AddFilters(receivers ...any) {
	for _, r := range receivers {
		c.strainer.extend(receiverSource(r))
	}
}

// Invoke calls the filter name with args, the first of which is the filter
// input. An unknown filter fails from DotLiquid22 on; earlier levels pass
// the input through.
func (c *Context) Invoke(name string, args []any) (any, error) {
	if c.strainer.respondTo(name) {
		return c.strainer.invoke(c, name, args)
	}
	if c.syntax >= lexer.DotLiquid22 {
		return nil, &Error{Kind: ErrFilterNotFound, Message: name, Suggestions: c.strainer.suggest(name)}
	}
	c.logger.Debug("unknown filter passed through", "filter", name)
	if len(args) == 0 {
		return nil, nil
	}
	return args[0], nil
}

// rethrown marks an error that went through HandleError in rethrow mode,
// so enclosing nodes do not record it again.
type rethrown struct{ error }

func (r *rethrown) Unwrap() error { return r.error }

// HandleError applies the errors output mode to an error raised while
// rendering a node. Fatal errors are returned as they are. Other errors
// are recorded, then either returned (rethrow), dropped (suppress) or
// turned into an inline message (display).
func (c *Context) HandleError(err error) (string, error) {
	var r *rethrown
	if errors.As(err, &r) {
		return "", err
	}
	kind := KindOf(err)
	if kind.Fatal() {
		return "", err
	}
	c.errors = append(c.errors, err)
	c.logger.Debug("render error", "kind", kind.String(), "err", err)

	switch c.errorsMode {
	case ErrorsSuppress:
		return "", nil
	case ErrorsRethrow:
		return "", &rethrown{err}
	}
	if kind == ErrSyntax {
		return "Liquid syntax error: " + message(err), nil
	}
	return "Liquid error: " + message(err), nil
}

// lookupKey finds key in m, falling back to a convention-aware comparison
// when the convention folds case.
func lookupKey(conv naming.Convention, m map[string]any, key string) (any, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	if !conv.CaseInsensitive() {
		return nil, false
	}
	for k, v := range m {
		if conv.KeyEqual(k, key) {
			return v, true
		}
	}
	return nil, false
}

// setKey writes key into m, replacing an existing key the convention
// considers equal.
func setKey(conv naming.Convention, m map[string]any, key string, v any) {
	if _, ok := m[key]; !ok && conv.CaseInsensitive() {
		for k := range m {
			if conv.KeyEqual(k, key) {
				m[k] = v
				return
			}
		}
	}
	m[key] = v
}
