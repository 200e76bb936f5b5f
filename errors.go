package dotliquid

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lodgify/dotliquid/filesystem"
	"github.com/lodgify/dotliquid/lexer"
)

// ErrorKind describes the type of error.
type ErrorKind int

const (
	ErrRuntime ErrorKind = iota
	ErrSyntax
	ErrVariableNotFound
	ErrFilterNotFound
	ErrContext
	ErrStackLevel
	ErrArgument
	ErrFileSystem
	ErrRender
	ErrMaximumIterations
	ErrTimeout
	ErrCancelled
	ErrInterrupt
)

func (k ErrorKind) String() string {
	switch k {
	case ErrSyntax:
		return "syntax error"
	case ErrVariableNotFound:
		return "variable not found"
	case ErrFilterNotFound:
		return "filter not found"
	case ErrContext:
		return "context error"
	case ErrStackLevel:
		return "stack level error"
	case ErrArgument:
		return "argument error"
	case ErrFileSystem:
		return "file system error"
	case ErrRender:
		return "render error"
	case ErrMaximumIterations:
		return "maximum iterations exceeded"
	case ErrTimeout:
		return "timeout"
	case ErrCancelled:
		return "cancelled"
	case ErrInterrupt:
		return "interrupt"
	default:
		return "error"
	}
}

// Fatal reports whether errors of this kind always abort the render,
// whatever the errors output mode.
func (k ErrorKind) Fatal() bool {
	switch k {
	case ErrInterrupt, ErrTimeout, ErrCancelled, ErrRender, ErrMaximumIterations:
		return true
	}
	return false
}

// Error represents an error that occurred while parsing or rendering a
// template.
type Error struct {
	Kind    ErrorKind
	Message string
	Span    *lexer.Span
	Name    string // template name
	Source  string // template source (for error display)
	Cause   error

	// Suggestions holds the names of registered filters close to an unknown
	// one.
	Suggestions []string
}

func (e *Error) Error() string {
	if e.Name != "" && e.Span != nil {
		return fmt.Sprintf("%s: %s (at %s line %d)", e.Kind, e.Message, e.Name, e.Span.StartLine)
	}
	if e.Span != nil {
		return fmt.Sprintf("%s: %s (at line %d)", e.Kind, e.Message, e.Span.StartLine)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the cause of the error.
func (e *Error) Unwrap() error { return e.Cause }

// Is matches errors of the same kind, so errors.Is(err, &Error{Kind: k})
// tests the kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Kind == e.Kind
}

// Format implements fmt.Formatter. The %+v verb adds a source excerpt and
// the chain of causes.
func (e *Error) Format(f fmt.State, verb rune) {
	switch verb {
	case 'v':
		if f.Flag('+') {
			var b strings.Builder
			writeReport(&b, e)
			fmt.Fprint(f, b.String())
			return
		}
		fmt.Fprint(f, e.Error())
	case 's':
		fmt.Fprint(f, e.Error())
	case 'q':
		fmt.Fprintf(f, "%q", e.Error())
	}
}

// NewError creates a new error.
func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Errorf creates a new error with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithSpan adds span information to an error.
func (e *Error) WithSpan(span lexer.Span) *Error {
	e.Span = &span
	return e
}

// WithName adds template name to an error.
func (e *Error) WithName(name string) *Error {
	e.Name = name
	return e
}

// WithSource adds source to an error.
func (e *Error) WithSource(source string) *Error {
	e.Source = source
	return e
}

// WithCause records the error that caused e.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// InterruptError unwinds rendering up to the innermost loop. Break and
// continue are the interrupts the standard tags raise; host code may raise
// its own, which then abort the render.
type InterruptError struct {
	Message string
}

func (e *InterruptError) Error() string { return e.Message }

var (
	errBreak    = &InterruptError{Message: "break"}
	errContinue = &InterruptError{Message: "continue"}
)

// KindOf returns the kind of err. Errors not created by this package are
// runtime errors, except for interrupts and context cancellation.
func KindOf(err error) ErrorKind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	var ie *InterruptError
	if errors.As(err, &ie) {
		return ErrInterrupt
	}
	var fe *filesystem.Error
	if errors.As(err, &fe) {
		return ErrFileSystem
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, context.Canceled):
		return ErrCancelled
	}
	return ErrRuntime
}

// message returns the text embedded in "Liquid error: %s".
func message(err error) string {
	var le *Error
	if errors.As(err, &le) {
		return le.Message
	}
	return err.Error()
}

func syntaxError(format string, args ...any) *Error {
	return Errorf(ErrSyntax, format, args...)
}
