package value

import (
	"reflect"
)

// Index looks key up in container the way a path segment is resolved.
//
// It tries, in order: map keys (string keys compared under the naming
// convention of s), sequence positions for integer-like keys (negative
// positions count from the end), exported fields of anonymous structs,
// drop members and Indexable access. The second result reports whether
// the key was found.
//
// A lazy value found in a map, a slice or an addressable struct field is
// evaluated and the slot is overwritten with its result, so the function
// runs at most once.
func Index(s State, container, key any) (any, bool, error) {
	if container == nil || key == nil {
		return nil, false, nil
	}

	rv := reflect.ValueOf(container)
	switch rv.Kind() {
	case reflect.Map:
		k, ok := findMapKey(s, rv, key)
		if !ok {
			break
		}
		v := rv.MapIndex(k).Interface()
		if IsLazy(v) {
			res, err := Force(s, v)
			if err != nil {
				return nil, true, err
			}
			storeResult(res, func(nv reflect.Value) { rv.SetMapIndex(k, nv) }, rv.Type().Elem())
			v = res
		}
		return v, true, nil

	case reflect.Slice, reflect.Array:
		i, ok := integerKey(key)
		if !ok {
			break
		}
		if i < 0 {
			i += rv.Len()
		}
		if i < 0 || i >= rv.Len() {
			return nil, false, nil
		}
		slot := rv.Index(i)
		v := slot.Interface()
		if IsLazy(v) {
			res, err := Force(s, v)
			if err != nil {
				return nil, true, err
			}
			if slot.CanSet() {
				storeResult(res, slot.Set, slot.Type())
			}
			v = res
		}
		return v, true, nil
	}

	if name, ok := key.(string); ok && isAnonymous(rv.Type()) {
		sv := rv
		if sv.Kind() == reflect.Pointer {
			sv = sv.Elem()
		}
		if f, ok := structField(s, sv, name); ok {
			v := f.Interface()
			if IsLazy(v) {
				res, err := Force(s, v)
				if err != nil {
					return nil, true, err
				}
				if f.CanSet() {
					storeResult(res, f.Set, f.Type())
				}
				v = res
			}
			return v, true, nil
		}
	}

	if IsDrop(container) {
		name, ok := key.(string)
		if !ok {
			name = ToString(key)
		}
		v, err := Member(s, container, name)
		return v, true, err
	}

	if ix, ok := container.(Indexable); ok {
		found := false
		v, err := guard(func() (any, error) {
			if found = ix.ContainsKey(key); !found {
				return nil, nil
			}
			return ix.Get(s.Context(), key)
		})
		if err != nil {
			return nil, true, err
		}
		return v, found, nil
	}
	return nil, false, nil
}

// storeResult writes a computed lazy result back into its slot when the
// slot's type can hold it.
func storeResult(res any, set func(reflect.Value), t reflect.Type) {
	var nv reflect.Value
	if res == nil {
		switch t.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func:
			nv = reflect.Zero(t)
		default:
			return
		}
	} else {
		nv = reflect.ValueOf(res)
		if !nv.Type().AssignableTo(t) {
			return
		}
	}
	set(nv)
}

func findMapKey(s State, rv reflect.Value, key any) (reflect.Value, bool) {
	k, ok := mapKey(rv, key)
	if !ok {
		return reflect.Value{}, false
	}
	if rv.MapIndex(k).IsValid() {
		return k, true
	}
	if k.Kind() != reflect.String {
		return reflect.Value{}, false
	}
	conv := s.Convention()
	if !conv.CaseInsensitive() {
		return reflect.Value{}, false
	}
	want := k.String()
	it := rv.MapRange()
	for it.Next() {
		if conv.KeyEqual(it.Key().String(), want) {
			return it.Key(), true
		}
	}
	return reflect.Value{}, false
}

func structField(s State, sv reflect.Value, name string) (reflect.Value, bool) {
	if f := sv.FieldByName(name); f.IsValid() && f.CanInterface() {
		return f, true
	}
	conv := s.Convention()
	t := sv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.IsExported() && conv.MemberName(f.Name) == name {
			return sv.Field(i), true
		}
	}
	return reflect.Value{}, false
}
