package value

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	decimalType = reflect.TypeOf(decimal.Decimal{})
	timeType    = reflect.TypeOf(time.Time{})
)

// ErrOverflow is returned when a number does not fit the requested width.
var ErrOverflow = errors.New("Value was either too large or too small")

// IsNumber reports whether v is of an integer, floating point or decimal
// kind. Named integer types such as enums count as numbers.
func IsNumber(v any) bool {
	if v == nil {
		return false
	}
	if _, ok := v.(decimal.Decimal); ok {
		return true
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// IsInteger reports whether v is of an integer kind.
func IsInteger(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func isFloat(v any) bool {
	if v == nil {
		return false
	}
	k := reflect.ValueOf(v).Kind()
	return k == reflect.Float32 || k == reflect.Float64
}

// ToDecimal converts a number to a decimal. Infinite and NaN floats are
// not representable and report false.
func ToDecimal(v any) (decimal.Decimal, bool) {
	if d, ok := v.(decimal.Decimal); ok {
		return d, true
	}
	if v == nil {
		return decimal.Zero, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return decimal.NewFromInt(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(rv.Uint()), 0), true
	case reflect.Float32:
		f := rv.Float()
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat32(float32(f)), true
	case reflect.Float64:
		f := rv.Float()
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(f), true
	}
	return decimal.Zero, false
}

// ToFloat converts a number, or a string holding a number, to a float64.
func ToFloat(v any) (float64, error) {
	switch v := v.(type) {
	case nil:
		return 0, nil
	case decimal.Decimal:
		return v.InexactFloat64(), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, formatError(v)
		}
		return f, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	}
	return 0, castError(v, "Double")
}

// ParseNumber parses an invariant-culture number. Integers that fit in
// 64 bits are returned as int (int64 when they do not fit 32 bits, so the
// width of a literal is kept), everything else as a decimal.
func ParseNumber(s string) (any, error) {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		if i >= math.MinInt32 && i <= math.MaxInt32 {
			return int(i), nil
		}
		return i, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, formatError(s)
	}
	return d, nil
}

// ToNumber converts v to a number. Numbers are returned unchanged, strings
// are parsed with ParseNumber and nil becomes 0.
func ToNumber(v any) (any, error) {
	switch v := v.(type) {
	case nil:
		return 0, nil
	case string:
		return ParseNumber(v)
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}
	if IsNumber(v) {
		return v, nil
	}
	return nil, castError(v, "Decimal")
}

// ToInt converts v to an int. Fractions are rounded half to even.
func ToInt(v any) (int, error) {
	i, err := AsInt64(v)
	if err != nil {
		return 0, err
	}
	if int64(int(i)) != i {
		return 0, ErrOverflow
	}
	return int(i), nil
}

// AsInt64 converts v to a 64-bit integer.
func AsInt64(v any) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case string:
		n, err := ParseNumber(x)
		if err != nil {
			return 0, err
		}
		return AsInt64(n)
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case decimal.Decimal:
		r := x.RoundBank(0)
		if !r.BigInt().IsInt64() {
			return 0, fmt.Errorf("%w for an Int64", ErrOverflow)
		}
		return r.IntPart(), nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("%w for an Int64", ErrOverflow)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		f := math.RoundToEven(rv.Float())
		if f < math.MinInt64 || f >= math.MaxInt64 || math.IsNaN(f) {
			return 0, fmt.Errorf("%w for an Int64", ErrOverflow)
		}
		return int64(f), nil
	}
	return 0, castError(v, "Int64")
}

// AsInt32 converts v to a 32-bit integer. Values outside the 32-bit range
// fail with ErrOverflow instead of being truncated.
func AsInt32(v any) (int32, error) {
	i, err := AsInt64(v)
	if err != nil {
		return 0, err
	}
	if i < math.MinInt32 || i > math.MaxInt32 {
		return 0, fmt.Errorf("%w for an Int32", ErrOverflow)
	}
	return int32(i), nil
}

// integerKey returns the index a sequence key selects. Floats and
// decimals are accepted when they have no fractional part.
func integerKey(key any) (int, bool) {
	if key == nil {
		return 0, false
	}
	if d, ok := key.(decimal.Decimal); ok {
		if !d.Equal(d.Truncate(0)) || !d.BigInt().IsInt64() {
			return 0, false
		}
		return int(d.IntPart()), true
	}
	rv := reflect.ValueOf(key)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if rv.Uint() > math.MaxInt32 {
			return 0, false
		}
		return int(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
			return 0, false
		}
		return int(f), true
	}
	return 0, false
}

// ToString converts v to text the way values are coerced for comparisons
// and string filters. Booleans are written True and False; use Format for
// output.
func ToString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "True"
		}
		return "False"
	case decimal.Decimal:
		return v.String()
	case float64:
		return formatFloat(v, 64)
	case float32:
		return formatFloat(float64(v), 32)
	case time.Time:
		return v.Format(DefaultTimeLayout)
	case fmt.Stringer:
		return v.String()
	case error:
		return v.Error()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return formatFloat(rv.Float(), 64)
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return ToString(rv.Bool())
	}
	return fmt.Sprint(v)
}

// DefaultTimeLayout is the layout times are written with when no date
// format is given.
const DefaultTimeLayout = "2006-01-02 15:04:05 -0700"

// ToTime converts a time or a date string to a time.Time. The words now
// and today are understood.
func ToTime(v any) (time.Time, error) {
	switch v := v.(type) {
	case time.Time:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		switch strings.ToLower(s) {
		case "now", "today":
			return time.Now(), nil
		}
		t, err := dateparse.ParseLocal(s)
		if err != nil {
			return time.Time{}, fmt.Errorf("String '%s' was not recognized as a valid DateTime", v)
		}
		return t, nil
	}
	if IsInteger(v) {
		i, _ := AsInt64(v)
		return time.Unix(i, 0), nil
	}
	return time.Time{}, castError(v, "DateTime")
}

func toUUID(v any) (uuid.UUID, bool) {
	switch v := v.(type) {
	case uuid.UUID:
		return v, true
	case string:
		u, err := uuid.Parse(v)
		return u, err == nil
	}
	return uuid.Nil, false
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case math.IsNaN(f):
		return "NaN"
	}
	return strconv.FormatFloat(f, 'f', -1, bits)
}

func formatError(s string) error {
	return fmt.Errorf("Input string '%s' was not in a correct format", s)
}

func castError(v any, target string) error {
	return fmt.Errorf("Unable to cast object of type '%s' to type '%s'", typeName(v), target)
}

func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}
