package value

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lodgify/dotliquid/culture"
)

// Format writes v as text for the output of {{ }}.
//
// Drops and Liquidizable values write nothing. Registered value-type
// transforms and ValueTypeConvertible are applied first. Booleans are
// lower case, numbers use the decimal separator of c, and collections are
// written as the concatenation of their elements.
func Format(v any, c *culture.Culture, r *Registry) string {
	var b strings.Builder
	writeValue(&b, v, c, r)
	return b.String()
}

func writeValue(b *strings.Builder, v any, c *culture.Culture, r *Registry) {
	if v == nil {
		return
	}
	if fn, ok := r.ValueTypeTransformer(reflect.TypeOf(v)); ok {
		v = fn(v)
		if v == nil {
			return
		}
	}
	if vc, ok := v.(ValueTypeConvertible); ok {
		if nv := vc.ToValueType(); !safeEqual(nv, v) {
			writeValue(b, nv, c, r)
			return
		}
	}
	if c == nil {
		c = culture.Invariant()
	}

	switch v := v.(type) {
	case Liquidizable, dropper, Symbol:
		return
	case string:
		b.WriteString(v)
		return
	case bool:
		if v {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
		return
	case decimal.Decimal:
		b.WriteString(c.FormatDecimal(v))
		return
	case float64:
		b.WriteString(c.FormatFloat(v))
		return
	case float32:
		b.WriteString(c.FormatFloat(float64(v)))
		return
	case time.Time:
		b.WriteString(v.Format(DefaultTimeLayout))
		return
	case KeyValue:
		b.WriteByte('[')
		writeValue(b, v.Key, c, r)
		b.WriteString(", ")
		writeValue(b, v.Value, c, r)
		b.WriteByte(']')
		return
	case []byte:
		for _, e := range v {
			fmt.Fprint(b, e)
		}
		return
	case fmt.Stringer:
		b.WriteString(v.String())
		return
	}

	if seq, ok := Enumerate(v); ok {
		for e := range seq {
			writeValue(b, e, c, r)
		}
		return
	}
	b.WriteString(ToString(v))
}
