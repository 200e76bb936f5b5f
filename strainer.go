package dotliquid

import (
	"fmt"
	"reflect"
	"slices"
	"time"

	"github.com/sahilm/fuzzy"
	"github.com/shopspring/decimal"

	"github.com/lodgify/dotliquid/naming"
	"github.com/lodgify/dotliquid/value"
)

// filterSource is a filter receiver or a single named filter function.
type filterSource struct {
	name string
	fn   reflect.Value
	recv reflect.Value
}

func receiverSource(r any) filterSource {
	if r == nil {
		panic("dotliquid: nil filter receiver")
	}
	return filterSource{recv: reflect.ValueOf(r)}
}

func funcSource(name string, fn any) filterSource {
	if !isFunc(fn) {
		panic(fmt.Sprintf("dotliquid: filter %q is not a function", name))
	}
	return filterSource{name: name, fn: reflect.ValueOf(fn)}
}

// filterFunc is one callable filter.
type filterFunc struct {
	name    string
	fn      reflect.Value
	withCtx bool
	params  int // parameters including the input, excluding the context
}

var (
	contextType = reflect.TypeFor[*Context]()
	errorType   = reflect.TypeFor[error]()
)

func newFilterFunc(name string, fn reflect.Value) (filterFunc, bool) {
	t := fn.Type()
	switch t.NumOut() {
	case 1:
	case 2:
		if t.Out(1) != errorType {
			return filterFunc{}, false
		}
	default:
		return filterFunc{}, false
	}
	f := filterFunc{name: name, fn: fn, params: t.NumIn()}
	if t.NumIn() > 0 && t.In(0) == contextType {
		f.withCtx = true
		f.params--
	}
	if f.params == 0 && !t.IsVariadic() {
		return filterFunc{}, false
	}
	return f, true
}

func (f filterFunc) exact(n int) bool {
	return n == f.params && !f.fn.Type().IsVariadic()
}

func (f filterFunc) accepts(n int) bool {
	if f.fn.Type().IsVariadic() {
		return n >= f.params-1
	}
	return n <= f.params
}

// strainer dispatches filter invocations by name.
type strainer struct {
	conv  naming.Convention
	funcs []filterFunc
}

func newStrainer(conv naming.Convention, sources ...[]filterSource) *strainer {
	s := &strainer{conv: conv}
	for _, list := range sources {
		for _, src := range list {
			s.extend(src)
		}
	}
	return s
}

func (s *strainer) extend(src filterSource) {
	if src.fn.IsValid() {
		if f, ok := newFilterFunc(src.name, src.fn); ok {
			s.funcs = append(s.funcs, f)
		}
		return
	}
	t := src.recv.Type()
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if !m.IsExported() {
			continue
		}
		if f, ok := newFilterFunc(m.Name, src.recv.Method(i)); ok {
			s.funcs = append(s.funcs, f)
		}
	}
}

// lookup finds the filter for name called with n arguments, input
// included. Later registrations win; an exact arity match is preferred
// over one that leaves optional parameters out.
func (s *strainer) lookup(name string, n int) (filterFunc, bool) {
	var fallback *filterFunc
	for i := len(s.funcs) - 1; i >= 0; i-- {
		f := &s.funcs[i]
		if !s.conv.OperatorEqual(name, f.name) {
			continue
		}
		if f.exact(n) {
			return *f, true
		}
		if fallback == nil && f.accepts(n) {
			fallback = f
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return filterFunc{}, false
}

func (s *strainer) respondTo(name string) bool {
	return slices.ContainsFunc(s.funcs, func(f filterFunc) bool {
		return s.conv.OperatorEqual(name, f.name)
	})
}

// suggest returns the registered names closest to an unknown filter name.
func (s *strainer) suggest(name string) []string {
	seen := map[string]bool{}
	var names []string
	for _, f := range s.funcs {
		n := s.conv.MemberName(f.name)
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	var out []string
	for _, m := range fuzzy.Find(name, names) {
		out = append(out, m.Str)
		if len(out) == 3 {
			break
		}
	}
	return out
}

// invoke calls the filter name with args, the first of which is the
// filter input.
func (s *strainer) invoke(ctx *Context, name string, args []any) (any, error) {
	f, ok := s.lookup(name, len(args))
	if !ok {
		if s.respondTo(name) {
			return nil, Errorf(ErrArgument, "Wrong number of arguments (%d) for filter '%s'", len(args), name)
		}
		return nil, &Error{Kind: ErrFilterNotFound, Message: name, Suggestions: s.suggest(name)}
	}

	t := f.fn.Type()
	in := make([]reflect.Value, 0, t.NumIn())
	if f.withCtx {
		in = append(in, reflect.ValueOf(ctx))
	}
	for i := len(in); i < t.NumIn(); i++ {
		pt := t.In(i)
		argIdx := i
		if f.withCtx {
			argIdx--
		}
		if t.IsVariadic() && i == t.NumIn()-1 {
			et := pt.Elem()
			for _, a := range args[min(argIdx, len(args)):] {
				v, err := convertArg(a, et)
				if err != nil {
					return nil, err
				}
				in = append(in, v)
			}
			break
		}
		if argIdx >= len(args) {
			in = append(in, reflect.Zero(pt))
			continue
		}
		v, err := convertArg(args[argIdx], pt)
		if err != nil {
			return nil, err
		}
		in = append(in, v)
	}

	out, err := call(f.fn, in)
	if err != nil {
		return nil, err
	}
	if len(out) == 2 && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	return out[0].Interface(), nil
}

// call invokes fn, turning a panic inside the filter into an error so a
// faulty filter fails its own node only.
func call(fn reflect.Value, in []reflect.Value) (out []reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("%v", r)
		}
	}()
	return fn.Call(in), nil
}

var (
	anyType     = reflect.TypeFor[any]()
	decimalType = reflect.TypeFor[decimal.Decimal]()
	timeType    = reflect.TypeFor[time.Time]()
	sliceType   = reflect.TypeFor[[]any]()
)

// convertArg converts a template value to the parameter type of a filter.
func convertArg(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		if t == anyType {
			return rv, nil
		}
		return rv.Convert(t), nil
	}
	switch t {
	case decimalType:
		if s, ok := v.(string); ok {
			d, err := decimal.NewFromString(s)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("Input string '%s' was not in a correct format", s)
			}
			return reflect.ValueOf(d), nil
		}
		if d, ok := value.ToDecimal(v); ok {
			return reflect.ValueOf(d), nil
		}
	case timeType:
		tm, err := value.ToTime(v)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(tm), nil
	case sliceType:
		if items, ok := value.ToSlice(v); ok {
			return reflect.ValueOf(items), nil
		}
		return reflect.ValueOf([]any{v}), nil
	}
	switch t.Kind() {
	case reflect.String:
		return reflect.ValueOf(value.ToString(v)).Convert(t), nil
	case reflect.Bool:
		return reflect.ValueOf(value.IsTruthy(v)).Convert(t), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := value.AsInt64(v)
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.New(t).Elem()
		if out.OverflowInt(i) {
			return reflect.Value{}, value.ErrOverflow
		}
		out.SetInt(i)
		return out, nil
	case reflect.Float32, reflect.Float64:
		f, err := value.ToFloat(v)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(f).Convert(t), nil
	}
	if rv.Type().ConvertibleTo(t) {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, Errorf(ErrArgument, "Object of type '%s' cannot be converted to type '%s'", rv.Type(), t)
}
