package value

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Equal compares two values the way the == operator does.
//
// A Symbol on either side decides with its predicate. Otherwise the right
// operand is converted to the type of the left operand before comparing,
// which makes equality order sensitive: true == 'true' holds because the
// string converts to a boolean, while 'true' == true does not because the
// boolean converts to the string "True". Failed conversions compare as
// unequal.
func Equal(left, right any) bool {
	if s, ok := left.(Symbol); ok {
		return s.Matches(right)
	}
	if s, ok := right.(Symbol); ok {
		return s.Matches(left)
	}
	if left == nil || right == nil {
		return left == nil && right == nil
	}
	if e, ok := left.(Equaler); ok {
		return e.Equal(right)
	}

	switch l := left.(type) {
	case string:
		return l == ToString(right)
	case bool:
		switch r := right.(type) {
		case bool:
			return l == r
		case string:
			b, ok := parseBool(r)
			return ok && l == b
		}
		if IsNumber(right) {
			d, _ := ToDecimal(right)
			return l == !d.IsZero()
		}
		return false
	case time.Time:
		r, err := ToTime(right)
		return err == nil && l.Equal(r)
	case uuid.UUID:
		r, ok := toUUID(right)
		return ok && l == r
	}

	if IsNumber(left) {
		if s, ok := right.(string); ok {
			if st, ok := left.(fmt.Stringer); ok && IsInteger(left) {
				if st.String() == s {
					return true
				}
			}
			n, err := ParseNumber(s)
			if err != nil {
				return false
			}
			right = n
		}
		if b, ok := right.(bool); ok {
			d, _ := ToDecimal(left)
			return !d.IsZero() == b
		}
		return numericEqual(left, right)
	}

	if reflect.TypeOf(left) == reflect.TypeOf(right) && reflect.TypeOf(left).Comparable() {
		return safeEqual(left, right)
	}
	return reflect.DeepEqual(left, right)
}

func safeEqual(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = reflect.DeepEqual(a, b)
		}
	}()
	return a == b
}

func numericEqual(a, b any) bool {
	if isFloat(a) && isFloat(b) {
		fa, _ := ToFloat(a)
		fb, _ := ToFloat(b)
		return fa == fb
	}
	da, ok := ToDecimal(a)
	if !ok {
		return false
	}
	db, ok := ToDecimal(b)
	if !ok {
		return false
	}
	return da.Equal(db)
}

// Compare orders two values for <, <=, > and >=. It reports false when
// either side is nil, in which case every ordering test fails. Operands
// that cannot be converted to a common type produce an error.
func Compare(left, right any) (int, bool, error) {
	if left == nil || right == nil {
		return 0, false, nil
	}
	switch l := left.(type) {
	case string:
		return strings.Compare(l, ToString(right)), true, nil
	case time.Time:
		r, err := ToTime(right)
		if err != nil {
			return 0, false, err
		}
		return l.Compare(r), true, nil
	case bool:
		r, ok := right.(bool)
		if !ok {
			if s, isStr := right.(string); isStr {
				r, ok = parseBool(s)
			}
		}
		if !ok {
			return 0, false, castError(right, "Boolean")
		}
		switch {
		case l == r:
			return 0, true, nil
		case !l:
			return -1, true, nil
		}
		return 1, true, nil
	}
	if IsNumber(left) {
		if !IsNumber(right) {
			s, ok := right.(string)
			if !ok {
				return 0, false, castError(right, typeName(left))
			}
			n, err := ParseNumber(s)
			if err != nil {
				return 0, false, err
			}
			right = n
		}
		if isFloat(left) || isFloat(right) {
			fl, _ := ToFloat(left)
			fr, _ := ToFloat(right)
			switch {
			case fl < fr:
				return -1, true, nil
			case fl > fr:
				return 1, true, nil
			}
			return 0, true, nil
		}
		dl, _ := ToDecimal(left)
		dr, _ := ToDecimal(right)
		return dl.Cmp(dr), true, nil
	}
	return 0, false, fmt.Errorf("Object of type '%s' cannot be compared with '%s'", typeName(left), typeName(right))
}

// elementEqual is the equality used for membership tests on sequences and
// map values. It does not convert between strings, booleans and numbers,
// and only widens between the int, int32, int64, unsigned, float and
// decimal kinds. Bytes and 16-bit integers match their own type only.
func elementEqual(elem, want any) bool {
	if elem == nil || want == nil {
		return elem == nil && want == nil
	}
	if e, ok := elem.(Equaler); ok {
		return e.Equal(want)
	}
	if widens(elem) && widens(want) {
		return numericEqual(elem, want)
	}
	if t, ok := elem.(time.Time); ok {
		w, ok := want.(time.Time)
		return ok && t.Equal(w)
	}
	te, tw := reflect.TypeOf(elem), reflect.TypeOf(want)
	if te != tw {
		return false
	}
	if te.Comparable() {
		return safeEqual(elem, want)
	}
	return reflect.DeepEqual(elem, want)
}

func widens(v any) bool {
	if _, ok := v.(decimal.Decimal); ok {
		return true
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Int, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// Contains implements the contains operator: substring test on strings,
// key test on maps and element test on other collections.
func Contains(left, right any) bool {
	if left == nil || right == nil {
		return false
	}
	if s, ok := left.(string); ok {
		return strings.Contains(s, ToString(right))
	}
	if isMap(left) {
		return HasKey(left, right)
	}
	seq, ok := Enumerate(left)
	if !ok {
		return false
	}
	for e := range seq {
		if elementEqual(e, right) {
			return true
		}
	}
	return false
}

// StartsWith implements the startsWith operator: prefix test on strings,
// first element equality on collections.
func StartsWith(left, right any) bool {
	if left == nil || right == nil {
		return false
	}
	if s, ok := left.(string); ok {
		return strings.HasPrefix(s, ToString(right))
	}
	if isMap(left) {
		return false
	}
	seq, ok := Enumerate(left)
	if !ok {
		return false
	}
	for e := range seq {
		return Equal(e, right)
	}
	return false
}

// EndsWith implements the endsWith operator: suffix test on strings, last
// element equality on collections.
func EndsWith(left, right any) bool {
	if left == nil || right == nil {
		return false
	}
	if s, ok := left.(string); ok {
		return strings.HasSuffix(s, ToString(right))
	}
	if isMap(left) {
		return false
	}
	items, ok := ToSlice(left)
	if !ok || len(items) == 0 {
		return false
	}
	return Equal(items[len(items)-1], right)
}

// HasKey reports whether the map left has the key right.
func HasKey(left, right any) bool {
	if left == nil || right == nil || !isMap(left) {
		return false
	}
	rv := reflect.ValueOf(left)
	key, ok := mapKey(rv, right)
	if !ok {
		return false
	}
	return rv.MapIndex(key).IsValid()
}

// HasValue reports whether one of the values of the map left equals right.
func HasValue(left, right any) bool {
	if left == nil || right == nil || !isMap(left) {
		return false
	}
	iter := reflect.ValueOf(left).MapRange()
	for iter.Next() {
		if elementEqual(iter.Value().Interface(), right) {
			return true
		}
	}
	return false
}

func isMap(v any) bool {
	return v != nil && reflect.TypeOf(v).Kind() == reflect.Map
}

// mapKey converts key to the key type of the map rv. String-keyed maps
// accept any key through its string form.
func mapKey(rv reflect.Value, key any) (reflect.Value, bool) {
	kt := rv.Type().Key()
	kv := reflect.ValueOf(key)
	if kv.Type().AssignableTo(kt) {
		return kv, true
	}
	if kt.Kind() == reflect.String {
		return reflect.ValueOf(ToString(key)).Convert(kt), true
	}
	if kt.Kind() == reflect.Interface {
		return kv, kv.Type().Implements(kt)
	}
	if IsNumber(key) && kv.Type().ConvertibleTo(kt) {
		switch kt.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if _, ok := integerKey(key); !ok {
				return reflect.Value{}, false
			}
		}
		return kv.Convert(kt), true
	}
	return reflect.Value{}, false
}
