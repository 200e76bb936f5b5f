package value

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArithmetic(t *testing.T) {
	dec := decimal.RequireFromString
	tests := []struct {
		name string
		op   func(a, b any) (any, error)
		a, b any
		want any
	}{
		{"add ints", Add, 1, 2, 3},
		{"add overflow widens", Add, math.MaxInt32, 1, int64(math.MaxInt32) + 1},
		{"add strings", Add, "1", "2", 3},
		{"add float", Add, 1, 0.5, 1.5},
		{"add decimal", Add, 1, dec("0.25"), dec("1.25")},
		{"sub", Sub, 5, 7, -2},
		{"mul", Mul, 3, int64(4), int64(12)},
		{"div ints truncates", Div, 7, 2, 3},
		{"div float", Div, 7, 2.0, 3.5},
		{"mod", Mod, 7, 3, 1},
		{"mod float", Mod, 7.5, 2, 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.op(tt.a, tt.b)
			require.NoError(t, err)
			if d, ok := tt.want.(decimal.Decimal); ok {
				require.IsType(t, decimal.Decimal{}, got)
				assert.True(t, d.Equal(got.(decimal.Decimal)), "got %v", got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDivideByZero(t *testing.T) {
	_, err := Div(1, 0)
	assert.ErrorIs(t, err, ErrDivideByZero)
	_, err = Mod(decimal.NewFromInt(1), 0)
	assert.ErrorIs(t, err, ErrDivideByZero)
}

func TestArithmeticRejectsJunk(t *testing.T) {
	_, err := Add(1, "abc")
	assert.EqualError(t, err, "Input string 'abc' was not in a correct format")
}

func TestIntWidths(t *testing.T) {
	i, err := AsInt32(int64(2147483647))
	require.NoError(t, err)
	assert.Equal(t, int32(2147483647), i)

	_, err = AsInt32(int64(2147483648))
	assert.ErrorIs(t, err, ErrOverflow)

	l, err := AsInt64(int64(2147483648))
	require.NoError(t, err)
	assert.Equal(t, int64(2147483648), l)

	n, err := ToInt(decimal.RequireFromString("2.5"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = ToInt("12")
	require.NoError(t, err)
	assert.Equal(t, 12, n)
}

func TestParseNumber(t *testing.T) {
	v, err := ParseNumber("100")
	require.NoError(t, err)
	assert.Equal(t, 100, v)

	v, err = ParseNumber("2147483648")
	require.NoError(t, err)
	assert.Equal(t, int64(2147483648), v)

	v, err = ParseNumber("100.00")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(v.(decimal.Decimal)))
}
