package value

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/lodgify/dotliquid/naming"
)

// Drop is embedded by host types that expose their exported methods and
// fields to templates. Methods must take no arguments and return one
// value, or a value and an error.
//
// Members are found under the naming convention of the render: with the
// Ruby convention, ProductID is product_id; with the C# convention it is
// ProductID. A member that matches nothing is passed to BeforeMethod.
//
// A drop never writes itself to the output.
type Drop struct {
	state State
}

// SetContext implements ContextAware.
func (d *Drop) SetContext(s State) { d.state = s }

// State returns the render state the drop was last read in, or nil.
func (d *Drop) State() State { return d.state }

func (d *Drop) isDrop() {}

type dropper interface{ isDrop() }

// IsDrop reports whether v embeds Drop or is a DropProxy.
func IsDrop(v any) bool {
	_, ok := v.(dropper)
	return ok
}

// members declared by Drop itself, hidden from templates.
var dropMethods = map[string]bool{
	"SetContext":   true,
	"State":        true,
	"BeforeMethod": true,
}

// DropProxy exposes the allow-listed members of a host value.
type DropProxy struct {
	Drop
	target  any
	allowed map[string]bool
	convert func(any) any
}

// NewDropProxy wraps target so that only the named Go members are visible.
// If convert is not nil, the proxy renders as convert(target).
func NewDropProxy(target any, allowed []string, convert func(any) any) *DropProxy {
	p := &DropProxy{target: target, allowed: map[string]bool{}, convert: convert}
	for _, name := range allowed {
		p.allowed[name] = true
	}
	return p
}

// Target returns the wrapped value.
func (p *DropProxy) Target() any { return p.target }

// ToValueType implements ValueTypeConvertible.
func (p *DropProxy) ToValueType() any {
	if p.convert == nil {
		return p
	}
	return p.convert(p.target)
}

type member struct {
	goName string
	method int
	field  []int
}

type memberKey struct {
	t      reflect.Type
	csharp bool
}

var memberCache sync.Map // memberKey -> map[string]member

func membersOf(t reflect.Type, conv naming.Convention) map[string]member {
	key := memberKey{t: t, csharp: !conv.CaseInsensitive()}
	if m, ok := memberCache.Load(key); ok {
		return m.(map[string]member)
	}
	m := map[string]member{}
	for i := 0; i < t.NumMethod(); i++ {
		meth := t.Method(i)
		if dropMethods[meth.Name] || !meth.IsExported() || !isGetter(meth.Type) {
			continue
		}
		m[conv.MemberName(meth.Name)] = member{goName: meth.Name, method: i}
	}
	st := t
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	if st.Kind() == reflect.Struct {
		for _, f := range reflect.VisibleFields(st) {
			if !f.IsExported() || f.Anonymous {
				continue
			}
			name := conv.MemberName(f.Name)
			if _, dup := m[name]; !dup {
				m[name] = member{goName: f.Name, method: -1, field: f.Index}
			}
		}
	}
	actual, _ := memberCache.LoadOrStore(key, m)
	return actual.(map[string]member)
}

// isGetter reports whether a method type (with receiver) takes no
// arguments and returns T or (T, error).
func isGetter(mt reflect.Type) bool {
	if mt.NumIn() != 1 {
		return false
	}
	switch mt.NumOut() {
	case 1:
		return true
	case 2:
		return mt.Out(1) == reflect.TypeFor[error]()
	}
	return false
}

// Member returns the member name of a drop or DropProxy under the
// convention of s. Drops always answer: unknown members yield the result
// of BeforeMethod, or nil.
func Member(s State, v any, name string) (any, error) {
	return guard(func() (any, error) { return lookupMember(s, v, name) })
}

// guard calls host code, turning a panic into an error.
func guard(fn func() (any, error)) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("%v", r)
		}
	}()
	return fn()
}

func lookupMember(s State, v any, name string) (any, error) {
	target, allowed := v, map[string]bool(nil)
	if p, ok := v.(*DropProxy); ok {
		target, allowed = p.target, p.allowed
	}
	if target == nil {
		return nil, nil
	}
	conv := s.Convention()
	rv := reflect.ValueOf(target)
	members := membersOf(rv.Type(), conv)
	m, ok := members[name]
	if !ok || (allowed != nil && !allowed[m.goName]) {
		if mm, ok := v.(MethodMissing); ok {
			if res := mm.BeforeMethod(name); res != nil {
				return res, nil
			}
		}
		return missingMember(members, conv, name), nil
	}
	if m.method >= 0 {
		out := rv.Method(m.method).Call(nil)
		if len(out) == 2 && !out[1].IsNil() {
			return nil, out[1].Interface().(error)
		}
		return out[0].Interface(), nil
	}
	fv := rv
	if fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			return nil, nil
		}
		fv = fv.Elem()
	}
	f, err := fv.FieldByIndexErr(m.field)
	if err != nil {
		return nil, nil
	}
	return f.Interface(), nil
}

// missingMember points Ruby-convention templates that use a Go member name
// verbatim to the name they should use.
func missingMember(members map[string]member, conv naming.Convention, name string) any {
	if !conv.CaseInsensitive() {
		return nil
	}
	for tname, m := range members {
		if m.goName == name && tname != name {
			return fmt.Sprintf("Missing property. Did you mean '%s'?", tname)
		}
	}
	return nil
}
