package dotliquid

import (
	"cmp"
	"html"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/ncruces/go-strftime"
	"github.com/shopspring/decimal"

	"github.com/lodgify/dotliquid/culture"
	"github.com/lodgify/dotliquid/lexer"
	"github.com/lodgify/dotliquid/value"
)

// StandardFilters holds the filters every engine starts with. Each
// exported method is a filter named after the method under the naming
// convention: StripHtml is strip_html with the Ruby convention.
//
// String filters return nil for a nil input.
type StandardFilters struct{}

func registerStandardFilters(e *Engine) {
	e.filters = append(e.filters, receiverSource(StandardFilters{}))
	e.safelists["ShopifyFilters"] = []filterSource{
		receiverSource(ShopifyFilters{}),
		funcSource("hmac_sha1", hmacSha1),
		funcSource("hmac_sha256", hmacSha256),
	}
	e.safelists["ExtendedFilters"] = []filterSource{receiverSource(ExtendedFilters{})}
}

// Size returns the number of characters of a string or elements of a
// collection, and 0 for anything else.
func (StandardFilters) Size(input any) int {
	n, _ := value.Len(input)
	return n
}

// Downcase converts a string to lower case.
func (StandardFilters) Downcase(c *Context, input any) any {
	if input == nil {
		return nil
	}
	return c.culture.Lower(value.ToString(input))
}

// Upcase converts a string to upper case.
func (StandardFilters) Upcase(c *Context, input any) any {
	if input == nil {
		return nil
	}
	return c.culture.Upper(value.ToString(input))
}

// Capitalize title-cases every word before DotLiquid21. From DotLiquid21
// on it upper-cases the first letter and leaves the rest alone.
func (StandardFilters) Capitalize(c *Context, input any) any {
	if input == nil {
		return nil
	}
	s := value.ToString(input)
	if strings.TrimSpace(s) == "" {
		return s
	}
	if c.syntax >= lexer.DotLiquid21 {
		return upcaseFirst(c.culture, s)
	}
	return c.culture.Title(s)
}

// upcaseFirst upper-cases the first non-space character of s.
func upcaseFirst(cu *culture.Culture, s string) string {
	i := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) })
	if i < 0 {
		return s
	}
	_, n := utf8.DecodeRuneInString(s[i:])
	return s[:i] + cu.Upper(s[i:i+n]) + s[i+n:]
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// Escape escapes the HTML special characters of a string.
func (StandardFilters) Escape(input any) any {
	if input == nil {
		return nil
	}
	return htmlEscaper.Replace(value.ToString(input))
}

// H is an alias of Escape.
func (f StandardFilters) H(input any) any { return f.Escape(input) }

// EscapeOnce escapes a string without escaping the entities it already
// contains.
func (StandardFilters) EscapeOnce(input any) any {
	if input == nil {
		return nil
	}
	return htmlEscaper.Replace(html.UnescapeString(value.ToString(input)))
}

// UrlEncode percent-encodes a string for use in a query string.
func (StandardFilters) UrlEncode(input any) any {
	if input == nil {
		return nil
	}
	return url.QueryEscape(value.ToString(input))
}

// UrlDecode reverses UrlEncode. Malformed input is returned unchanged.
func (StandardFilters) UrlDecode(input any) any {
	if input == nil {
		return nil
	}
	s := value.ToString(input)
	out, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return out
}

var stripPolicy = bluemonday.StrictPolicy()

// StripHtml removes tags, comments and the content of script and style
// elements.
func (StandardFilters) StripHtml(input any) any {
	if input == nil {
		return nil
	}
	return html.UnescapeString(stripPolicy.Sanitize(value.ToString(input)))
}

// StripNewlines removes line breaks.
func (StandardFilters) StripNewlines(input any) any {
	if input == nil {
		return nil
	}
	return strings.NewReplacer("\r\n", "", "\n", "").Replace(value.ToString(input))
}

var lineBreak = regexp.MustCompile(`\r?\n`)

// NewlineToBr inserts an HTML line break before every line break.
func (StandardFilters) NewlineToBr(input any) any {
	if input == nil {
		return nil
	}
	return lineBreak.ReplaceAllString(value.ToString(input), "<br />$0")
}

// Strip removes leading and trailing whitespace.
func (StandardFilters) Strip(input any) any {
	if input == nil {
		return nil
	}
	return strings.TrimSpace(value.ToString(input))
}

// Lstrip removes leading whitespace.
func (StandardFilters) Lstrip(input any) any {
	if input == nil {
		return nil
	}
	return strings.TrimLeftFunc(value.ToString(input), unicode.IsSpace)
}

// Rstrip removes trailing whitespace.
func (StandardFilters) Rstrip(input any) any {
	if input == nil {
		return nil
	}
	return strings.TrimRightFunc(value.ToString(input), unicode.IsSpace)
}

// Truncate shortens a string to length characters, the ellipsis
// included. The defaults are 50 and "...".
func (StandardFilters) Truncate(input, length, ellipsis any) (any, error) {
	if input == nil {
		return nil, nil
	}
	s := value.ToString(input)
	n, err := intArg(length, 50)
	if err != nil {
		return nil, err
	}
	tail := stringArg(ellipsis, "...")
	runes := []rune(s)
	if len(runes) <= n {
		return s, nil
	}
	keep := max(n-utf8.RuneCountInString(tail), 0)
	return string(runes[:keep]) + tail, nil
}

// Truncatewords keeps the first words words of a string, 15 by default,
// and appends the ellipsis when words were dropped.
func (StandardFilters) Truncatewords(input, words, ellipsis any) (any, error) {
	if input == nil {
		return nil, nil
	}
	s := value.ToString(input)
	n, err := intArg(words, 15)
	if err != nil {
		return nil, err
	}
	n = max(n, 1)
	fields := strings.Fields(s)
	if len(fields) <= n {
		return s, nil
	}
	return strings.Join(fields[:n], " ") + stringArg(ellipsis, "..."), nil
}

// Split divides a string on pattern, dropping empty parts. An empty
// pattern splits the string into characters.
func (StandardFilters) Split(input any, pattern string) []string {
	s := value.ToString(input)
	if s == "" {
		return []string{}
	}
	if pattern == "" {
		out := make([]string, 0, len(s))
		for _, r := range s {
			out = append(out, string(r))
		}
		return out
	}
	return slices.DeleteFunc(strings.Split(s, pattern), func(p string) bool { return p == "" })
}

// Join joins the elements of a collection with glue, a space by default.
func (StandardFilters) Join(input, glue any) any {
	if input == nil {
		return nil
	}
	if !value.IsEnumerable(input) {
		return input
	}
	items := flatten(input)
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = value.ToString(item)
	}
	return strings.Join(parts, stringArg(glue, " "))
}

// Sort sorts a collection, or the hashes of a collection by property.
// Nested collections are flattened and nil sorts last.
func (StandardFilters) Sort(c *Context, input any, property string) ([]any, error) {
	return c.sortBy(input, property, compareValues)
}

// SortNatural is Sort with case-insensitive string comparison.
func (StandardFilters) SortNatural(c *Context, input any, property string) ([]any, error) {
	return c.sortBy(input, property, func(a, b any) int {
		return strings.Compare(strings.ToLower(value.ToString(a)), strings.ToLower(value.ToString(b)))
	})
}

func (c *Context) sortBy(input any, property string, compare func(a, b any) int) ([]any, error) {
	items := slices.Clone(flatten(input))
	keys := items
	if property != "" {
		keys = make([]any, len(items))
		for i, item := range items {
			k, err := c.property(item, property)
			if err != nil {
				return nil, err
			}
			keys[i] = k
		}
	}
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(i, j int) int {
		a, b := keys[i], keys[j]
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return 1
		case b == nil:
			return -1
		}
		return compare(a, b)
	})
	out := make([]any, len(items))
	for i, j := range idx {
		out[i] = items[j]
	}
	return out, nil
}

func compareValues(a, b any) int {
	if n, ok, err := value.Compare(a, b); err == nil && ok {
		return n
	}
	return cmp.Compare(value.ToString(a), value.ToString(b))
}

// Map returns the value of property for each element of a collection.
func (StandardFilters) Map(c *Context, input any, property string) ([]any, error) {
	items := flatten(input)
	out := make([]any, 0, len(items))
	for _, item := range items {
		v, err := c.property(item, property)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Uniq removes duplicate elements, or elements with a duplicate property
// value, keeping the first of each.
func (StandardFilters) Uniq(c *Context, input any, property string) ([]any, error) {
	if input == nil {
		return nil, nil
	}
	var seen, out []any
	for _, item := range flatten(input) {
		key := item
		if property != "" {
			k, err := c.property(item, property)
			if err != nil {
				return nil, err
			}
			key = k
		}
		if slices.ContainsFunc(seen, func(s any) bool { return value.Equal(s, key) }) {
			continue
		}
		seen = append(seen, key)
		out = append(out, item)
	}
	return out, nil
}

// Compact removes nil elements, or elements whose property is nil.
func (StandardFilters) Compact(c *Context, input any, property string) ([]any, error) {
	var out []any
	for _, item := range flatten(input) {
		v := item
		if property != "" {
			k, err := c.property(item, property)
			if err != nil {
				return nil, err
			}
			v = k
		}
		if v != nil {
			out = append(out, item)
		}
	}
	return out, nil
}

// Reverse reverses a collection. Other values are returned unchanged.
func (StandardFilters) Reverse(input any) any {
	if !value.IsEnumerable(input) {
		return input
	}
	items := slices.Clone(flatten(input))
	slices.Reverse(items)
	return items
}

// Concat joins two collections.
func (StandardFilters) Concat(input, other any) ([]any, error) {
	if other != nil && !value.IsEnumerable(other) {
		return nil, NewError(ErrArgument, "concat filter requires an array argument")
	}
	return append(slices.Clone(flatten(input)), flatten(other)...), nil
}

// Where keeps the elements whose property equals target, or is truthy
// when no target is given.
func (StandardFilters) Where(c *Context, input any, property string, target any) ([]any, error) {
	var out []any
	for _, item := range flatten(input) {
		v, err := c.property(item, property)
		if err != nil {
			return nil, err
		}
		if (target == nil && value.IsTruthy(v)) || (target != nil && value.Equal(v, target)) {
			out = append(out, item)
		}
	}
	return out, nil
}

// First returns the first element of a collection or the first character
// of a string.
func (StandardFilters) First(input any) any {
	items, ok := elements(input)
	if !ok || len(items) == 0 {
		return nil
	}
	return items[0]
}

// Last returns the last element of a collection or the last character of
// a string.
func (StandardFilters) Last(input any) any {
	items, ok := elements(input)
	if !ok || len(items) == 0 {
		return nil
	}
	return items[len(items)-1]
}

// Slice returns length elements or characters starting at start, one by
// default. A negative start counts from the end. A start past the end
// yields nil.
func (StandardFilters) Slice(input, start, length any) (any, error) {
	if input == nil {
		return nil, nil
	}
	from, err := intArg(start, 0)
	if err != nil {
		return nil, err
	}
	n, err := intArg(length, 1)
	if err != nil {
		return nil, err
	}

	s, isString := input.(string)
	var items []any
	var size int
	if isString {
		size = utf8.RuneCountInString(s)
	} else {
		var ok bool
		if items, ok = value.ToSlice(input); !ok {
			return input, nil
		}
		size = len(items)
	}
	if from < 0 {
		from = max(from+size, 0)
	}
	if from > size {
		return nil, nil
	}
	end := from + min(max(n, 0), size-from)
	if isString {
		return string([]rune(s)[from:end]), nil
	}
	return items[from:end], nil
}

// Replace replaces every occurrence of search. Before DotLiquid22 search
// is a regular expression and replacement may refer to its groups.
func (StandardFilters) Replace(c *Context, input any, search, replacement string) (any, error) {
	if input == nil {
		return nil, nil
	}
	s := value.ToString(input)
	if s == "" || search == "" {
		return s, nil
	}
	if c.syntax >= lexer.DotLiquid22 {
		return strings.ReplaceAll(s, search, replacement), nil
	}
	re, err := regexp.Compile(search)
	if err != nil {
		return nil, Errorf(ErrArgument, "Invalid pattern '%s'", search).WithCause(err)
	}
	return re.ReplaceAllString(s, replacement), nil
}

// ReplaceFirst replaces the first occurrence of search, with the same
// pattern rules as Replace.
func (StandardFilters) ReplaceFirst(c *Context, input any, search, replacement string) (any, error) {
	if input == nil {
		return nil, nil
	}
	s := value.ToString(input)
	if s == "" || search == "" {
		return s, nil
	}
	if c.syntax >= lexer.DotLiquid22 {
		return strings.Replace(s, search, replacement, 1), nil
	}
	re, err := regexp.Compile(search)
	if err != nil {
		return nil, Errorf(ErrArgument, "Invalid pattern '%s'", search).WithCause(err)
	}
	loc := re.FindStringSubmatchIndex(s)
	if loc == nil {
		return s, nil
	}
	repl := re.ExpandString(nil, replacement, s, loc)
	return s[:loc[0]] + string(repl) + s[loc[1]:], nil
}

// Remove removes every occurrence of a substring.
func (StandardFilters) Remove(input any, search string) any {
	if input == nil {
		return nil
	}
	return strings.ReplaceAll(value.ToString(input), search, "")
}

// RemoveFirst removes the first occurrence of a substring.
func (StandardFilters) RemoveFirst(input any, search string) any {
	if input == nil {
		return nil
	}
	return strings.Replace(value.ToString(input), search, "", 1)
}

// Append adds a string to the end.
func (StandardFilters) Append(input any, suffix string) string {
	return value.ToString(input) + suffix
}

// Prepend adds a string to the start.
func (StandardFilters) Prepend(input any, prefix string) string {
	return prefix + value.ToString(input)
}

// Default returns fallback when input is nil, false, or empty.
func (StandardFilters) Default(input, fallback any) any {
	switch v := input.(type) {
	case nil:
		return fallback
	case bool:
		if !v {
			return fallback
		}
	case string:
		if v == "" {
			return fallback
		}
	default:
		if value.IsEnumerable(v) {
			if n, ok := value.Len(v); ok && n == 0 {
				return fallback
			}
		}
	}
	return input
}

// Date formats a date, or a string or Unix timestamp holding one. The
// format is a .NET format string, or a strftime one when Ruby date
// formats are enabled. Input that is not a date is returned unchanged.
func (StandardFilters) Date(c *Context, input any, format string) (any, error) {
	if input == nil {
		return nil, nil
	}
	t, err := value.ToTime(input)
	if err != nil {
		return input, nil
	}
	if c.rubyDates {
		if format == "" {
			format = "%m/%d/%Y %H:%M:%S"
		}
		return strftime.Format(format, t), nil
	}
	if format == "" {
		format = "G"
	}
	out, err := formatDotNetDate(t, format)
	if err != nil {
		return nil, NewError(ErrArgument, err.Error())
	}
	return out, nil
}

// Plus adds operand to input. Before DotLiquid21 a string input is
// concatenated with the operand instead.
func (StandardFilters) Plus(c *Context, input, operand any) (any, error) {
	if s, ok := input.(string); ok && c.syntax < lexer.DotLiquid21 {
		return s + value.ToString(operand), nil
	}
	return c.arith(value.Add, input, operand)
}

// Minus subtracts operand from input.
func (StandardFilters) Minus(c *Context, input, operand any) (any, error) {
	return c.arith(value.Sub, input, operand)
}

// Times multiplies input by operand. Before DotLiquid21 a string input
// with an integer operand is repeated instead.
func (StandardFilters) Times(c *Context, input, operand any) (any, error) {
	if s, ok := input.(string); ok && c.syntax < lexer.DotLiquid21 && value.IsInteger(operand) {
		n, err := value.ToInt(operand)
		if err != nil {
			return nil, err
		}
		return strings.Repeat(s, max(n, 0)), nil
	}
	return c.arith(value.Mul, input, operand)
}

// DividedBy divides input by operand. Integer division truncates.
func (StandardFilters) DividedBy(c *Context, input, operand any) (any, error) {
	return c.arith(value.Div, input, operand)
}

// Modulo returns the remainder of input divided by operand.
func (StandardFilters) Modulo(c *Context, input, operand any) (any, error) {
	return c.arith(value.Mod, input, operand)
}

// Round rounds to places decimal places, 0 by default, half away from
// zero.
func (StandardFilters) Round(c *Context, input, places any) (any, error) {
	d, err := c.decimal(input)
	if err != nil {
		return nil, err
	}
	p, err := intArg(places, 0)
	if err != nil {
		return nil, err
	}
	return d.Round(int32(p)), nil
}

// Ceil rounds up to an integer.
func (StandardFilters) Ceil(c *Context, input any) (any, error) {
	d, err := c.decimal(input)
	if err != nil {
		return nil, err
	}
	return d.Ceil(), nil
}

// Floor rounds down to an integer.
func (StandardFilters) Floor(c *Context, input any) (any, error) {
	d, err := c.decimal(input)
	if err != nil {
		return nil, err
	}
	return d.Floor(), nil
}

// Abs returns the absolute value.
func (StandardFilters) Abs(c *Context, input any) (any, error) {
	n, err := c.number(input)
	if err != nil {
		return nil, err
	}
	if sign, ok, err := value.Compare(n, 0); err == nil && ok && sign < 0 {
		return value.Neg(n)
	}
	return n, nil
}

// AtLeast returns the larger of input and limit.
func (StandardFilters) AtLeast(c *Context, input, limit any) (any, error) {
	return c.clamp(input, limit, 1)
}

// AtMost returns the smaller of input and limit.
func (StandardFilters) AtMost(c *Context, input, limit any) (any, error) {
	return c.clamp(input, limit, -1)
}

func (c *Context) clamp(input, limit any, keep int) (any, error) {
	a, err := c.number(input)
	if err != nil {
		return nil, err
	}
	b, err := c.number(limit)
	if err != nil {
		return nil, err
	}
	n, _, err := value.Compare(a, b)
	if err != nil {
		return nil, err
	}
	if n*keep >= 0 {
		return a, nil
	}
	return b, nil
}

// Currency formats a number as an amount of money in the currency of the
// context culture, or of the culture named by languageTag. Input that is
// not a number is returned unchanged.
func (StandardFilters) Currency(c *Context, input any, languageTag string) (any, error) {
	if input == nil {
		return nil, nil
	}
	d, err := c.decimal(input)
	if err != nil {
		return input, nil
	}
	cu := c.culture
	if languageTag != "" {
		if cu, err = culture.Parse(languageTag); err != nil {
			return nil, NewError(ErrArgument, err.Error())
		}
	}
	return cu.FormatCurrency(d.InexactFloat64(), "")
}

// number converts a filter operand to a number. Strings are parsed with
// the invariant culture first and the context culture second.
func (c *Context) number(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return value.ToNumber(v)
	}
	if n, err := value.ParseNumber(s); err == nil {
		return n, nil
	}
	if d, ok := c.culture.ParseDecimal(s); ok {
		return d, nil
	}
	return value.ParseNumber(s)
}

func (c *Context) decimal(v any) (decimal.Decimal, error) {
	n, err := c.number(v)
	if err != nil {
		return decimal.Zero, err
	}
	d, ok := value.ToDecimal(n)
	if !ok {
		return decimal.Zero, Errorf(ErrArgument, "'%s' is not a number", value.ToString(v))
	}
	return d, nil
}

func (c *Context) arith(op func(a, b any) (any, error), input, operand any) (any, error) {
	a, err := c.number(input)
	if err != nil {
		return nil, err
	}
	b, err := c.number(operand)
	if err != nil {
		return nil, err
	}
	return op(a, b)
}

// property reads a member or key of a collection element for the
// filters that take a property name.
func (c *Context) property(item any, name string) (any, error) {
	item, _, err := c.liquidize(item, true)
	if err != nil || item == nil {
		return nil, err
	}
	v, found, err := value.Index(c, item, name)
	if err != nil || !found {
		return nil, err
	}
	if v, err = value.Force(c, v); err != nil {
		return nil, err
	}
	v, _, err = c.liquidize(v, true)
	return v, err
}

// flatten returns the elements of a collection with nested collections
// expanded in place. Maps and scalars count as single elements; nil is
// an empty collection.
func flatten(v any) []any {
	if v == nil {
		return nil
	}
	if isMap(v) || !value.IsEnumerable(v) {
		return []any{v}
	}
	items, _ := value.ToSlice(v)
	var out []any
	for _, item := range items {
		if item != nil && !isMap(item) && value.IsEnumerable(item) {
			out = append(out, flatten(item)...)
			continue
		}
		out = append(out, item)
	}
	return out
}

func intArg(v any, def int) (int, error) {
	if v == nil {
		return def, nil
	}
	return value.ToInt(v)
}

func stringArg(v any, def string) string {
	if v == nil {
		return def
	}
	return value.ToString(v)
}
