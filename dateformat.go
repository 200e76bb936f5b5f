package dotliquid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// standardDateFormats maps the single-letter .NET standard date formats to
// their invariant culture patterns.
var standardDateFormats = map[byte]string{
	'd': "MM/dd/yyyy",
	'D': "dddd, dd MMMM yyyy",
	'f': "dddd, dd MMMM yyyy HH:mm",
	'F': "dddd, dd MMMM yyyy HH:mm:ss",
	'g': "MM/dd/yyyy HH:mm",
	'G': "MM/dd/yyyy HH:mm:ss",
	'm': "MMMM dd",
	'M': "MMMM dd",
	'o': "yyyy'-'MM'-'dd'T'HH':'mm':'ss'.'fffffffK",
	'O': "yyyy'-'MM'-'dd'T'HH':'mm':'ss'.'fffffffK",
	'r': "ddd, dd MMM yyyy HH':'mm':'ss 'GMT'",
	'R': "ddd, dd MMM yyyy HH':'mm':'ss 'GMT'",
	's': "yyyy'-'MM'-'dd'T'HH':'mm':'ss",
	't': "HH:mm",
	'T': "HH:mm:ss",
	'u': "yyyy'-'MM'-'dd HH':'mm':'ss'Z'",
	'U': "dddd, dd MMMM yyyy HH:mm:ss",
	'y': "yyyy MMMM",
	'Y': "yyyy MMMM",
}

var errDateFormat = errors.New("Input string was not in a correct format.")

// formatDotNetDate formats t with a .NET date format string, either one of
// the standard single-letter formats or a custom pattern such as
// "yyyy-MM-dd HH:mm". Month and day names are English.
func formatDotNetDate(t time.Time, format string) (string, error) {
	if len(format) == 1 {
		pattern, ok := standardDateFormats[format[0]]
		if !ok {
			return "", errDateFormat
		}
		switch format[0] {
		case 'r', 'R', 'u', 'U':
			t = t.UTC()
		}
		format = pattern
	}

	var b strings.Builder
	for i := 0; i < len(format); {
		ch := format[i]
		n := repeat(format, i)
		switch ch {
		case 'd':
			switch n {
			case 1:
				b.WriteString(strconv.Itoa(t.Day()))
			case 2:
				pad(&b, t.Day(), 2)
			case 3:
				b.WriteString(t.Weekday().String()[:3])
			default:
				b.WriteString(t.Weekday().String())
			}
		case 'f', 'F':
			if n > 7 {
				return "", errDateFormat
			}
			digits := fmt.Sprintf("%09d", t.Nanosecond())[:n]
			if ch == 'F' {
				digits = strings.TrimRight(digits, "0")
			}
			b.WriteString(digits)
		case 'g':
			if t.Year() > 0 {
				b.WriteString("A.D.")
			} else {
				b.WriteString("B.C.")
			}
		case 'h':
			h := t.Hour() % 12
			if h == 0 {
				h = 12
			}
			pad(&b, h, min(n, 2))
		case 'H':
			pad(&b, t.Hour(), min(n, 2))
		case 'K':
			_, off := t.Zone()
			if off == 0 && t.Location() == time.UTC {
				b.WriteByte('Z')
			} else {
				b.WriteString(offset(off, 3))
			}
			n = 1
		case 'm':
			pad(&b, t.Minute(), min(n, 2))
		case 'M':
			switch n {
			case 1, 2:
				pad(&b, int(t.Month()), n)
			case 3:
				b.WriteString(t.Month().String()[:3])
			default:
				b.WriteString(t.Month().String())
			}
		case 's':
			pad(&b, t.Second(), min(n, 2))
		case 't':
			ampm := "AM"
			if t.Hour() >= 12 {
				ampm = "PM"
			}
			if n == 1 {
				ampm = ampm[:1]
			}
			b.WriteString(ampm)
		case 'y':
			switch n {
			case 1:
				b.WriteString(strconv.Itoa(t.Year() % 100))
			case 2:
				pad(&b, t.Year()%100, 2)
			default:
				pad(&b, t.Year(), n)
			}
		case 'z':
			_, off := t.Zone()
			b.WriteString(offset(off, min(n, 3)))
		case '\'', '"':
			end := strings.IndexByte(format[i+1:], ch)
			if end < 0 {
				return "", errDateFormat
			}
			b.WriteString(format[i+1 : i+1+end])
			n = end + 2
		case '\\':
			if i+1 >= len(format) {
				return "", errDateFormat
			}
			b.WriteByte(format[i+1])
			n = 2
		case '%':
			// %d and friends: a single custom specifier on its own.
			n = 1
		default:
			b.WriteByte(ch)
			n = 1
		}
		i += n
	}
	return b.String(), nil
}

// repeat counts the occurrences of format[i] starting at i.
func repeat(format string, i int) int {
	n := 1
	for i+n < len(format) && format[i+n] == format[i] {
		n++
	}
	return n
}

func pad(b *strings.Builder, v, width int) {
	s := strconv.Itoa(v)
	for i := len(s); i < width; i++ {
		b.WriteByte('0')
	}
	b.WriteString(s)
}

// offset writes a UTC offset in seconds as +h, +hh or +hh:mm.
func offset(secs, width int) string {
	sign := "+"
	if secs < 0 {
		sign = "-"
		secs = -secs
	}
	h, m := secs/3600, secs%3600/60
	switch width {
	case 1:
		return sign + strconv.Itoa(h)
	case 2:
		return fmt.Sprintf("%s%02d", sign, h)
	}
	return fmt.Sprintf("%s%02d:%02d", sign, h, m)
}
