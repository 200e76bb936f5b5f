// Package value provides the value model of the template engine.
//
// Template values are plain Go values held in an any: nil, booleans, the
// integer and floating point kinds, decimal.Decimal, strings, time.Time,
// time.Duration, uuid.UUID, slices, arrays and maps. Host types take part
// in rendering by implementing one or more capability interfaces:
//
//   - Liquidizable: the value is replaced by what ToLiquid returns.
//   - Indexable: keyed access with arbitrary keys.
//   - ContextAware: receives the active render state when it is read.
//   - MethodMissing: intercepts member lookups that matched nothing.
//   - Allowlisted: exposes only the listed members through a DropProxy.
//   - Enumerable: can be iterated by for loops and filters.
//
// Types that embed Drop expose their exported methods and fields to
// templates under the active naming convention.
//
// Before a value read out of a scope is handed to the renderer it goes
// through Normalize, which rejects host values that opted in to none of
// the above.
//
// # Example
//
//	type ProductDrop struct {
//	    value.Drop
//	    name string
//	}
//
//	func (p *ProductDrop) Name() string { return p.name }
//
//	// {{ product.name }} renders the result of Name.
package value

import (
	"context"
	"iter"
	"reflect"
	"slices"
	"sort"
	"unicode/utf8"

	"github.com/lodgify/dotliquid/naming"
)

// State is the part of a render context visible to host values.
type State interface {
	// Get resolves a variable path or literal, like {{ path }} would.
	Get(path string) (any, error)

	// Context returns the context.Context of the render.
	Context() context.Context

	// Convention returns the naming convention in effect.
	Convention() naming.Convention
}

// Liquidizable is implemented by host values that stand in for another
// value in templates. The result of ToLiquid is used as-is.
type Liquidizable interface {
	ToLiquid() any
}

// ValueTypeConvertible is implemented by values that render as another
// value. It is applied only when the value is written to the output.
type ValueTypeConvertible interface {
	ToValueType() any
}

// Indexable is implemented by host values with keyed access.
//
// Keys are passed as resolved: integers for {{ x[0] }}, strings for
// {{ x.name }} and {{ x['name'] }}. Get is only called for keys that
// ContainsKey accepted.
type Indexable interface {
	ContainsKey(key any) bool
	Get(ctx context.Context, key any) (any, error)
}

// ContextAware values receive the render state whenever they are read
// out of a scope or a container.
type ContextAware interface {
	SetContext(s State)
}

// MethodMissing is implemented by drops that answer member names that
// match none of their methods or fields.
type MethodMissing interface {
	BeforeMethod(name string) any
}

// Allowlisted is implemented by host types that expose only the named Go
// methods and fields. Normalize wraps such values in a DropProxy.
type Allowlisted interface {
	LiquidMembers() []string
}

// Enumerable is implemented by host values that can be iterated.
type Enumerable interface {
	Enumerate() iter.Seq[any]
}

// Equaler lets host types define equality with other values.
type Equaler interface {
	Equal(other any) bool
}

// Lazy is a value computed on first access. The container holding it is
// updated with the result, so the function runs at most once per slot.
type Lazy func(s State) (any, error)

// Range is an inclusive integer range such as (1..5). Its elements are
// produced on demand.
type Range struct {
	From, To int
}

// Enumerate implements Enumerable.
func (r Range) Enumerate() iter.Seq[any] {
	return func(yield func(any) bool) {
		for i := r.From; i <= r.To; i++ {
			if !yield(i) {
				return
			}
		}
	}
}

// Len returns the number of elements in the range.
func (r Range) Len() int {
	if r.To < r.From {
		return 0
	}
	return r.To - r.From + 1
}

// KeyValue is a map entry as seen by a for loop over a map. Index 0 or
// Key selects the key, index 1 or Value selects the value.
type KeyValue struct {
	Key   any
	Value any
}

// Symbol is a predicate that compares equal to the values it accepts.
// The literals blank and empty resolve to the emptiness symbol.
type Symbol struct {
	name string
	fn   func(any) bool
}

// Emptiness returns the symbol that the literals blank and empty stand for.
// It matches enumerable values without elements, including the empty
// string, and never matches nil.
func Emptiness(name string) Symbol {
	return Symbol{name: name, fn: isEmpty}
}

// Matches reports whether v satisfies the symbol's predicate.
func (s Symbol) Matches(v any) bool {
	if s.fn == nil {
		return false
	}
	return s.fn(v)
}

// String returns the literal the symbol was created from.
func (s Symbol) String() string { return s.name }

func isEmpty(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	n, ok := Len(v)
	return ok && n == 0
}

// IsTruthy reports whether v counts as true in a condition. Only nil and
// false are false.
func IsTruthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	}
	return true
}

// IsLazy reports whether v is a function that is evaluated on access.
func IsLazy(v any) bool {
	switch v.(type) {
	case Lazy, func(State) (any, error), func(State) any, func() any, func() (any, error):
		return true
	}
	return false
}

// Force evaluates v if it is lazy and returns it unchanged otherwise.
func Force(s State, v any) (any, error) {
	if !IsLazy(v) {
		return v, nil
	}
	return guard(func() (any, error) { return force(s, v) })
}

func force(s State, v any) (any, error) {
	switch f := v.(type) {
	case Lazy:
		return f(s)
	case func(State) (any, error):
		return f(s)
	case func(State) any:
		return f(s), nil
	case func() any:
		return f(), nil
	case func() (any, error):
		return f()
	}
	return v, nil
}

// IsEnumerable reports whether Enumerate can iterate v. Strings are not
// enumerable.
func IsEnumerable(v any) bool {
	switch v.(type) {
	case nil, string:
		return false
	case Enumerable, iter.Seq[any]:
		return true
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return true
	}
	return false
}

// Enumerate returns the elements of an enumerable value. Maps yield
// KeyValue entries ordered by key.
func Enumerate(v any) (iter.Seq[any], bool) {
	switch v := v.(type) {
	case nil, string:
		return nil, false
	case Enumerable:
		return v.Enumerate(), true
	case iter.Seq[any]:
		return v, true
	case []any:
		return slices.Values(v), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return func(yield func(any) bool) {
			for i := 0; i < rv.Len(); i++ {
				if !yield(rv.Index(i).Interface()) {
					return
				}
			}
		}, true
	case reflect.Map:
		keys := sortedKeys(rv)
		return func(yield func(any) bool) {
			for _, k := range keys {
				if !yield(KeyValue{Key: k.Interface(), Value: rv.MapIndex(k).Interface()}) {
					return
				}
			}
		}, true
	}
	return nil, false
}

// ToSlice collects the elements of an enumerable value. A nil result with
// false means v is not enumerable.
func ToSlice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	seq, ok := Enumerate(v)
	if !ok {
		return nil, false
	}
	return slices.Collect(seq), true
}

// Len returns the number of elements of a collection, or the number of
// characters of a string.
func Len(v any) (int, bool) {
	switch v := v.(type) {
	case nil:
		return 0, false
	case string:
		return utf8.RuneCountInString(v), true
	case Range:
		return v.Len(), true
	case interface{ Len() int }:
		return v.Len(), true
	case Enumerable:
		n := 0
		for range v.Enumerate() {
			n++
		}
		return n, true
	case iter.Seq[any]:
		n := 0
		for range v {
			n++
		}
		return n, true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len(), true
	}
	return 0, false
}

func sortedKeys(rv reflect.Value) []reflect.Value {
	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.CanInt() && b.CanInt() {
			return a.Int() < b.Int()
		}
		return ToString(a.Interface()) < ToString(b.Interface())
	})
	return keys
}
