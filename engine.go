package dotliquid

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/lodgify/dotliquid/culture"
	"github.com/lodgify/dotliquid/filesystem"
	"github.com/lodgify/dotliquid/lexer"
	"github.com/lodgify/dotliquid/naming"
	"github.com/lodgify/dotliquid/parser"
	"github.com/lodgify/dotliquid/value"
)

// ErrorsOutputMode determines what happens to non-fatal render errors.
type ErrorsOutputMode int

const (
	// ErrorsDefault defers to the engine setting.
	ErrorsDefault ErrorsOutputMode = iota
	// ErrorsDisplay writes "Liquid error: ..." in place of the failing
	// node and continues.
	ErrorsDisplay
	// ErrorsRethrow aborts the render with the first error.
	ErrorsRethrow
	// ErrorsSuppress writes nothing and continues. Errors are still
	// collected on the template.
	ErrorsSuppress
)

func (m ErrorsOutputMode) String() string {
	switch m {
	case ErrorsDisplay:
		return "display"
	case ErrorsRethrow:
		return "rethrow"
	case ErrorsSuppress:
		return "suppress"
	default:
		return "default"
	}
}

// ParseErrorsOutputMode parses "display", "rethrow" or "suppress".
func ParseErrorsOutputMode(s string) (ErrorsOutputMode, error) {
	switch s {
	case "display", "":
		return ErrorsDisplay, nil
	case "rethrow":
		return ErrorsRethrow, nil
	case "suppress":
		return ErrorsSuppress, nil
	}
	return 0, fmt.Errorf("unknown errors output mode %q", s)
}

// Tag is the render half of a host-registered tag.
type Tag interface {
	Render(ctx *Context, w io.Writer) error
}

// TagFactory creates a tag from its markup. Block tags also receive their
// parsed body, which the tag renders with Context.RenderAll.
type TagFactory func(name, markup string, body []parser.Stmt) (Tag, error)

// Engine holds the configuration shared by the templates it parses:
// naming convention, syntax level, file system, culture, filters, tags,
// operators and safe types.
//
// An Engine is safe for concurrent use. Every render takes a snapshot of
// the configuration when it starts, so changes made while a template
// renders apply from the next render on.
type Engine struct {
	mu            sync.RWMutex
	convention    naming.Convention
	syntax        lexer.SyntaxCompatibility
	fileSystem    filesystem.FileSystem
	culture       *culture.Culture
	errorsMode    ErrorsOutputMode
	maxIterations int
	timeout       time.Duration
	rubyDates     bool
	logger        *slog.Logger
	filters       []filterSource
	safelists     map[string][]filterSource
	tags          map[string]parser.TagSpec
	operators     []operator
	registry      *value.Registry
}

// Default is the engine used by the package-level functions.
var Default = New()

// Option configures an Engine.
type Option func(*Engine)

// WithNamingConvention sets the naming convention.
func WithNamingConvention(c naming.Convention) Option {
	return func(e *Engine) { e.convention = c }
}

// WithSyntaxCompatibility sets the syntax compatibility level.
func WithSyntaxCompatibility(level lexer.SyntaxCompatibility) Option {
	return func(e *Engine) { e.syntax = level }
}

// WithFileSystem sets the file system used by include and extends.
func WithFileSystem(fs filesystem.FileSystem) Option {
	return func(e *Engine) { e.fileSystem = fs }
}

// WithCulture sets the culture used to parse and format numbers.
func WithCulture(c *culture.Culture) Option {
	return func(e *Engine) { e.culture = c }
}

// WithErrorsOutputMode sets the errors output mode.
func WithErrorsOutputMode(m ErrorsOutputMode) Option {
	return func(e *Engine) { e.errorsMode = m }
}

// WithMaxIterations bounds the number of loop iterations of a render. Zero
// means unbounded.
func WithMaxIterations(n int) Option {
	return func(e *Engine) { e.maxIterations = n }
}

// WithTimeout bounds the duration of a render. Zero means unbounded.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithRubyDateFormat makes the date filter take strftime formats instead
// of .NET format strings.
func WithRubyDateFormat(ruby bool) Option {
	return func(e *Engine) { e.rubyDates = ruby }
}

// WithLogger sets the logger. Events are logged at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an engine with the standard filters and operators.
func New(opts ...Option) *Engine {
	e := &Engine{
		convention: naming.Ruby{},
		syntax:     lexer.DotLiquid20,
		fileSystem: filesystem.Blank{},
		culture:    culture.Invariant(),
		errorsMode: ErrorsDisplay,
		logger:     slog.New(slog.DiscardHandler),
		safelists:  make(map[string][]filterSource),
		tags:       make(map[string]parser.TagSpec),
		registry:   &value.Registry{},
	}
	registerStandardFilters(e)
	registerStandardOperators(e)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Parse parses a template with the settings of the engine.
func (e *Engine) Parse(source string) (*Template, error) {
	return e.ParseNamed("", source)
}

// ParseNamed parses a template and records its name for error messages.
func (e *Engine) ParseNamed(name, source string) (*Template, error) {
	e.mu.RLock()
	level, tags, logger := e.syntax, e.tags, e.logger
	e.mu.RUnlock()
	root, err := parseSource(name, source, level, tags)
	if err != nil {
		logger.Debug("template parse failed", "name", name, "err", err)
		return nil, err
	}
	logger.Debug("template parsed", "name", name, "nodes", len(root.Children))
	return newTemplate(e, name, source, level, root), nil
}

// parseSource parses source and turns parser errors into *Error values.
func parseSource(name, source string, level lexer.SyntaxCompatibility, tags map[string]parser.TagSpec) (*parser.Template, error) {
	root, err := parser.Parse(source, parser.Config{Level: level, Tags: tags})
	if err != nil {
		if pe, ok := err.(*parser.Error); ok {
			return nil, NewError(ErrSyntax, pe.Msg).WithSpan(pe.Span).WithName(name).WithSource(source)
		}
		return nil, err
	}
	return root, nil
}

// Parse parses a template with the Default engine.
func Parse(source string) (*Template, error) {
	return Default.Parse(source)
}

// MustParse is like Parse but panics if the template cannot be parsed.
func MustParse(source string) *Template {
	t, err := Default.Parse(source)
	if err != nil {
		panic(err)
	}
	return t
}

// SetNamingConvention sets the naming convention.
func (e *Engine) SetNamingConvention(c naming.Convention) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.convention = c
}

// NamingConvention returns the naming convention.
func (e *Engine) NamingConvention() naming.Convention {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.convention
}

// SetSyntaxCompatibility sets the syntax compatibility level of templates
// parsed from now on.
func (e *Engine) SetSyntaxCompatibility(level lexer.SyntaxCompatibility) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.syntax = level
}

// SyntaxCompatibility returns the default syntax compatibility level.
func (e *Engine) SyntaxCompatibility() lexer.SyntaxCompatibility {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.syntax
}

// SetFileSystem sets the file system used by include and extends.
func (e *Engine) SetFileSystem(fs filesystem.FileSystem) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fileSystem = fs
}

// FileSystem returns the file system used by include and extends.
func (e *Engine) FileSystem() filesystem.FileSystem {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.fileSystem
}

// SetCulture sets the default culture.
func (e *Engine) SetCulture(c *culture.Culture) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.culture = c
}

// SetErrorsOutputMode sets the default errors output mode.
func (e *Engine) SetErrorsOutputMode(m ErrorsOutputMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errorsMode = m
}

// SetMaxIterations sets the default iteration bound.
func (e *Engine) SetMaxIterations(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.maxIterations = n
}

// SetTimeout sets the default render timeout.
func (e *Engine) SetTimeout(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timeout = d
}

// SetRubyDateFormat selects strftime (true) or .NET (false) date formats.
func (e *Engine) SetRubyDateFormat(ruby bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rubyDates = ruby
}

// RubyDateFormat reports whether strftime date formats are the default.
func (e *Engine) RubyDateFormat() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rubyDates
}

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.logger
}

// RegisterFilter registers the exported methods of each receiver as
// filters. A method is found under the names the naming convention
// derives from its Go name: with the Ruby convention, StripHTML is
// strip_html.
//
// A filter takes the input value as its first argument, optionally
// preceded by a *Context, and returns a value or a value and an error.
// Filters registered later take precedence over earlier ones with the same
// name and number of arguments.
func (e *Engine) RegisterFilter(receivers ...any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range receivers {
		e.filters = append(e.filters, receiverSource(r))
	}
}

// RegisterFilterFunc registers fn as the filter name. It panics if fn is
// not a function.
func (e *Engine) RegisterFilterFunc(name string, fn any) {
	src := funcSource(name, fn)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filters = append(e.filters, src)
}

// RegisterSafelist registers a named filter set that templates enable
// with {% param using='name' %}.
func (e *Engine) RegisterSafelist(name string, receivers ...any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range receivers {
		e.safelists[name] = append(e.safelists[name], receiverSource(r))
	}
}

// RegisterTag registers a tag without a body.
func (e *Engine) RegisterTag(name string, factory TagFactory) {
	e.registerTag(name, false, factory)
}

// RegisterBlockTag registers a tag whose body ends with "end" + name.
func (e *Engine) RegisterBlockTag(name string, factory TagFactory) {
	e.registerTag(name, true, factory)
}

func (e *Engine) registerTag(name string, block bool, factory TagFactory) {
	e.mu.Lock()
	defer e.mu.Unlock()
	tags := maps.Clone(e.tags)
	tags[name] = parser.TagSpec{
		Block: block,
		Build: func(name, markup string, body []parser.Stmt) (any, error) {
			return factory(name, markup, body)
		},
	}
	e.tags = tags
}

// RegisterOperator registers a condition operator. The name is matched
// under the naming convention, and later registrations take precedence.
func (e *Engine) RegisterOperator(name string, fn OperatorFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.operators = append(e.operators, operator{name: name, fn: fn})
}

// UnregisterOperator removes the operators registered under name.
func (e *Engine) UnregisterOperator(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.operators = slices.DeleteFunc(slices.Clone(e.operators), func(o operator) bool { return o.name == name })
}

// Registry returns the safe type registry of the engine.
func (e *Engine) Registry() *value.Registry {
	return e.registry
}

// RegisterSafeType makes values of type T usable in templates; they are
// replaced by fn(value) when read.
func RegisterSafeType[T any](e *Engine, fn func(T) any) {
	value.RegisterSafeType(e.registry, fn)
}

// AllowMembers makes the named members of T visible to templates.
func AllowMembers[T any](e *Engine, members ...string) {
	value.AllowMembers[T](e.registry, members...)
}

// RegisterValueType sets how values of type T are written to the output.
func RegisterValueType[T any](e *Engine, fn func(T) any) {
	value.RegisterValueType(e.registry, fn)
}

// config is the immutable view of an engine used by one render.
type config struct {
	engine        *Engine
	convention    naming.Convention
	syntax        lexer.SyntaxCompatibility
	fileSystem    filesystem.FileSystem
	culture       *culture.Culture
	errorsMode    ErrorsOutputMode
	maxIterations int
	timeout       time.Duration
	rubyDates     bool
	logger        *slog.Logger
	filters       []filterSource
	safelists     map[string][]filterSource
	tags          map[string]parser.TagSpec
	operators     []operator
	registry      *value.Registry
}

func (e *Engine) snapshot() *config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return &config{
		engine:        e,
		convention:    e.convention,
		syntax:        e.syntax,
		fileSystem:    e.fileSystem,
		culture:       e.culture,
		errorsMode:    e.errorsMode,
		maxIterations: e.maxIterations,
		timeout:       e.timeout,
		rubyDates:     e.rubyDates,
		logger:        e.logger,
		filters:       slices.Clip(e.filters),
		safelists:     maps.Clone(e.safelists),
		tags:          e.tags,
		operators:     slices.Clip(e.operators),
		registry:      e.registry.Snapshot(),
	}
}

// isFunc reports whether v is a non-nil function value.
func isFunc(v any) bool {
	return v != nil && reflect.TypeOf(v).Kind() == reflect.Func
}
