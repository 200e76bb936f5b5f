package value

import (
	"errors"
	"math"
	"reflect"

	"github.com/shopspring/decimal"
)

// ErrDivideByZero is returned by Div and Mod for a zero divisor.
var ErrDivideByZero = errors.New("Attempted to divide by zero.")

type numKind int

const (
	kindInt numKind = iota
	kindLong
	kindFloat
	kindDecimal
)

// kindOf classifies an operand. int64 and the wide unsigned types are
// longs, as are ints that do not fit 32 bits.
func kindOf(v any) numKind {
	if _, ok := v.(decimal.Decimal); ok {
		return kindDecimal
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Float32, reflect.Float64:
		return kindFloat
	case reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return kindLong
	}
	i, err := AsInt64(v)
	if err != nil || i < math.MinInt32 || i > math.MaxInt32 {
		return kindLong
	}
	return kindInt
}

func operands(a, b any) (any, any, numKind, error) {
	x, err := ToNumber(a)
	if err != nil {
		return nil, nil, 0, err
	}
	y, err := ToNumber(b)
	if err != nil {
		return nil, nil, 0, err
	}
	return x, y, max(kindOf(x), kindOf(y)), nil
}

// arith applies an operation to two numeric operands after widening both
// to the wider kind: int, long, float, decimal in that order. Integer
// results that leave the 32-bit range become longs.
func arith(a, b any, ints func(x, y int64) (int64, error), floats func(x, y float64) float64, decs func(x, y decimal.Decimal) (decimal.Decimal, error)) (any, error) {
	x, y, k, err := operands(a, b)
	if err != nil {
		return nil, err
	}
	switch k {
	case kindInt, kindLong:
		i, _ := AsInt64(x)
		j, _ := AsInt64(y)
		r, err := ints(i, j)
		if err != nil {
			return nil, err
		}
		if k == kindInt && r >= math.MinInt32 && r <= math.MaxInt32 {
			return int(r), nil
		}
		return r, nil
	case kindFloat:
		f, _ := ToFloat(x)
		g, _ := ToFloat(y)
		return floats(f, g), nil
	}
	d, _ := ToDecimal(x)
	e, _ := ToDecimal(y)
	return decs(d, e)
}

// Add returns a + b.
func Add(a, b any) (any, error) {
	return arith(a, b,
		func(x, y int64) (int64, error) { return x + y, nil },
		func(x, y float64) float64 { return x + y },
		func(x, y decimal.Decimal) (decimal.Decimal, error) { return x.Add(y), nil })
}

// Sub returns a - b.
func Sub(a, b any) (any, error) {
	return arith(a, b,
		func(x, y int64) (int64, error) { return x - y, nil },
		func(x, y float64) float64 { return x - y },
		func(x, y decimal.Decimal) (decimal.Decimal, error) { return x.Sub(y), nil })
}

// Mul returns a * b.
func Mul(a, b any) (any, error) {
	return arith(a, b,
		func(x, y int64) (int64, error) { return x * y, nil },
		func(x, y float64) float64 { return x * y },
		func(x, y decimal.Decimal) (decimal.Decimal, error) { return x.Mul(y), nil })
}

// Div returns a / b. Division of two integers truncates.
func Div(a, b any) (any, error) {
	return arith(a, b,
		func(x, y int64) (int64, error) {
			if y == 0 {
				return 0, ErrDivideByZero
			}
			return x / y, nil
		},
		func(x, y float64) float64 { return x / y },
		func(x, y decimal.Decimal) (decimal.Decimal, error) {
			if y.IsZero() {
				return decimal.Zero, ErrDivideByZero
			}
			return x.Div(y), nil
		})
}

// Mod returns the remainder of a / b.
func Mod(a, b any) (any, error) {
	return arith(a, b,
		func(x, y int64) (int64, error) {
			if y == 0 {
				return 0, ErrDivideByZero
			}
			return x % y, nil
		},
		math.Mod,
		func(x, y decimal.Decimal) (decimal.Decimal, error) {
			if y.IsZero() {
				return decimal.Zero, ErrDivideByZero
			}
			return x.Mod(y), nil
		})
}

// Neg returns -a.
func Neg(a any) (any, error) {
	return Sub(0, a)
}
