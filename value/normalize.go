package value

import (
	"fmt"
	"iter"
	"maps"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvalidObjectError is returned by Normalize for host values that are not
// allowed in templates.
type InvalidObjectError struct {
	Value any
}

func (e *InvalidObjectError) Error() string {
	return fmt.Sprintf("Object '%s' is invalid because it is neither a built-in type nor explicitly convertible", typeName(e.Value))
}

// Registry holds the host-type registrations consulted by Normalize and
// by output formatting. A zero Registry is ready to use.
type Registry struct {
	mu         sync.RWMutex
	safe       map[reflect.Type]func(any) any
	valueTypes map[reflect.Type]func(any) any
}

// RegisterSafeType makes values of type T usable in templates. The value
// is replaced by fn(value) when it is read.
func RegisterSafeType[T any](r *Registry, fn func(T) any) {
	r.setSafe(reflect.TypeFor[T](), func(v any) any { return fn(v.(T)) })
}

// AllowMembers makes values of type T usable in templates through a
// DropProxy exposing the named Go methods and fields.
func AllowMembers[T any](r *Registry, members ...string) {
	r.setSafe(reflect.TypeFor[T](), func(v any) any { return NewDropProxy(v, members, nil) })
}

// RegisterValueType sets how values of type T are written to the output.
func RegisterValueType[T any](r *Registry, fn func(T) any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.valueTypes == nil {
		r.valueTypes = map[reflect.Type]func(any) any{}
	}
	r.valueTypes[reflect.TypeFor[T]()] = func(v any) any { return fn(v.(T)) }
}

func (r *Registry) setSafe(t reflect.Type, fn func(any) any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.safe == nil {
		r.safe = map[reflect.Type]func(any) any{}
	}
	r.safe[t] = fn
}

// SafeTypeTransformer returns the transform registered for t.
func (r *Registry) SafeTypeTransformer(t reflect.Type) (func(any) any, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.safe[t]
	return fn, ok
}

// ValueTypeTransformer returns the output transform registered for t.
func (r *Registry) ValueTypeTransformer(t reflect.Type) (func(any) any, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.valueTypes[t]
	return fn, ok
}

// Snapshot returns a copy that later registrations on r do not affect.
func (r *Registry) Snapshot() *Registry {
	if r == nil {
		return &Registry{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &Registry{safe: maps.Clone(r.safe), valueTypes: maps.Clone(r.valueTypes)}
}

// Normalize prepares a host value for use in a template.
//
// Liquidizable values are replaced by their ToLiquid result. Built-in
// kinds, collections, lazy values, anonymous structs, drops and
// Enumerable values are returned unchanged. Registered safe types are transformed and Allowlisted values are
// wrapped in a DropProxy. Anything else is an *InvalidObjectError.
func Normalize(v any, r *Registry) (any, error) {
	if v == nil {
		return nil, nil
	}
	if l, ok := v.(Liquidizable); ok {
		return l.ToLiquid(), nil
	}
	switch v.(type) {
	case string, bool, decimal.Decimal, time.Time, time.Duration, uuid.UUID,
		Range, KeyValue, Symbol, iter.Seq[any]:
		return v, nil
	case Enumerable, Indexable, dropper:
		return v, nil
	}
	if IsLazy(v) {
		return v, nil
	}
	t := reflect.TypeOf(v)
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128,
		reflect.Slice, reflect.Array, reflect.Map:
		return v, nil
	}
	if isAnonymous(t) {
		return v, nil
	}
	if fn, ok := r.SafeTypeTransformer(t); ok {
		return fn(v), nil
	}
	if a, ok := v.(Allowlisted); ok {
		return NewDropProxy(v, a.LiquidMembers(), nil), nil
	}
	return nil, &InvalidObjectError{Value: v}
}

func isAnonymous(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct && t.Name() == ""
}
