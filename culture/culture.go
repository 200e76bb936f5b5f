// Package culture provides culture-aware number parsing, number and currency
// formatting and text casing, keyed by BCP 47 language tags.
package culture

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Culture is an immutable set of formatting conventions.
type Culture struct {
	name    string
	tag     language.Tag
	decimal string
	group   string
}

var (
	invariant = &Culture{tag: language.Und, decimal: ".", group: ","}

	cacheMu sync.RWMutex
	cache   = map[string]*Culture{}
)

// Invariant returns the culture-independent conventions ("." decimal
// separator, "," group separator).
func Invariant() *Culture { return invariant }

// Parse returns the culture for a language tag such as "en-US" or "fr-FR".
// The empty string yields the invariant culture.
func Parse(name string) (*Culture, error) {
	if name == "" {
		return invariant, nil
	}
	cacheMu.RLock()
	c, ok := cache[name]
	cacheMu.RUnlock()
	if ok {
		return c, nil
	}

	tag, err := language.Parse(name)
	if err != nil {
		return nil, fmt.Errorf("Culture '%s' is not supported", name)
	}
	if _, conf := tag.Base(); conf == language.No {
		return nil, fmt.Errorf("Culture '%s' is not supported", name)
	}
	c = &Culture{name: name, tag: tag}
	c.decimal, c.group = separators(tag)

	cacheMu.Lock()
	cache[name] = c
	cacheMu.Unlock()
	return c, nil
}

// MustParse is like Parse but panics on unsupported names.
func MustParse(name string) *Culture {
	c, err := Parse(name)
	if err != nil {
		panic(err)
	}
	return c
}

// separators derives the decimal and group separators from the way the
// culture prints 1234.5.
func separators(tag language.Tag) (dec, group string) {
	s := message.NewPrinter(tag).Sprint(number.Decimal(1234.5))
	i1 := strings.IndexByte(s, '1')
	i2 := strings.IndexByte(s, '2')
	i4 := strings.IndexByte(s, '4')
	i5 := strings.LastIndexByte(s, '5')
	if i1 < 0 || i2 < 0 || i4 < 0 || i5 < 0 || i2 < i1 || i5 < i4 {
		return ".", ","
	}
	dec, group = s[i4+1:i5], s[i1+1:i2]
	if dec == "" {
		dec = "."
	}
	return dec, group
}

// Name returns the tag the culture was parsed from ("" for invariant).
func (c *Culture) Name() string { return c.name }

// Tag returns the language tag.
func (c *Culture) Tag() language.Tag { return c.tag }

// DecimalSeparator returns the decimal separator.
func (c *Culture) DecimalSeparator() string { return c.decimal }

// GroupSeparator returns the digit group separator.
func (c *Culture) GroupSeparator() string { return c.group }

func (c *Culture) normalize(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if c.group != "" && c.group != c.decimal {
		s = strings.ReplaceAll(s, c.group, "")
	}
	if c.decimal != "." {
		if strings.Contains(s, ".") {
			return "", false
		}
		s = strings.ReplaceAll(s, c.decimal, ".")
	}
	return s, true
}

// ParseDecimal parses a number written with the culture's separators. Group
// separators are accepted anywhere in the integral part.
func (c *Culture) ParseDecimal(s string) (decimal.Decimal, bool) {
	n, ok := c.normalize(s)
	if !ok {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(n)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParseFloat parses a float written with the culture's separators.
func (c *Culture) ParseFloat(s string) (float64, bool) {
	n, ok := c.normalize(s)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(n, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// FormatDecimal formats d without trailing zeros or grouping.
func (c *Culture) FormatDecimal(d decimal.Decimal) string {
	return c.localize(d.String())
}

// FormatFloat formats f with the shortest representation.
func (c *Culture) FormatFloat(f float64) string {
	return c.localize(strconv.FormatFloat(f, 'f', -1, 64))
}

func (c *Culture) localize(s string) string {
	if c.decimal == "." {
		return s
	}
	return strings.Replace(s, ".", c.decimal, 1)
}

// FormatNumber formats f with grouping and the given number of fraction
// digits.
func (c *Culture) FormatNumber(f float64, digits int) string {
	p := message.NewPrinter(c.tag)
	return p.Sprint(number.Decimal(f, number.Scale(digits)))
}

// FormatCurrency formats amount in the currency with the given ISO code,
// or in the culture's own currency when code is empty. The invariant
// culture has no currency and uses the generic sign ¤.
func (c *Culture) FormatCurrency(amount float64, code string) (string, error) {
	unit, conf := currency.FromTag(c.tag)
	ok := conf != language.No
	if code != "" {
		u, err := currency.ParseISO(code)
		if err != nil {
			return "", fmt.Errorf("currency '%s' is not supported", code)
		}
		unit, ok = u, true
	}
	if !ok || (code == "" && c == invariant) {
		return "¤" + c.FormatNumber(amount, 2), nil
	}
	scale, _ := currency.Standard.Rounding(unit)
	sym := message.NewPrinter(c.tag).Sprint(currency.Symbol(unit))
	return sym + c.FormatNumber(amount, scale), nil
}

// Upper maps s to upper case.
func (c *Culture) Upper(s string) string { return cases.Upper(c.tag).String(s) }

// Lower maps s to lower case.
func (c *Culture) Lower(s string) string { return cases.Lower(c.tag).String(s) }

// Title maps the first letter of every word to title case.
func (c *Culture) Title(s string) string { return cases.Title(c.tag).String(s) }
