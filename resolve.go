package dotliquid

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/lodgify/dotliquid/culture"
	"github.com/lodgify/dotliquid/lexer"
	"github.com/lodgify/dotliquid/value"
)

// resolve evaluates a literal or a variable reference.
func (c *Context) resolve(key string, notify bool) (any, error) {
	switch key {
	case "", "nil", "null":
		return nil, nil
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "blank", "empty":
		return value.Emptiness(key), nil
	}

	switch key[0] {
	case '\'', '"':
		if len(key) >= 2 && key[len(key)-1] == key[0] {
			return key[1 : len(key)-1], nil
		}
	case '(':
		if from, to, ok := splitRange(key); ok {
			return c.resolveRange(from, to)
		}
	default:
		if isIntegerLiteral(key) {
			return parseIntegerLiteral(key)
		}
		if isNumericLiteral(key) {
			return c.parseNumericLiteral(key)
		}
	}
	return c.variable(key, notify)
}

// splitRange splits "(a..b)" into its bounds. Neither bound may contain
// white space.
func splitRange(key string) (string, string, bool) {
	if len(key) < 6 || key[len(key)-1] != ')' {
		return "", "", false
	}
	inner := key[1 : len(key)-1]
	// The first bound is as long as possible.
	i := strings.LastIndex(inner, "..")
	if i <= 0 || i+2 >= len(inner) {
		return "", "", false
	}
	from, to := inner[:i], inner[i+2:]
	if strings.ContainsFunc(from+to, isSpace) {
		return "", "", false
	}
	return from, to, true
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' || r == '\v'
}

func (c *Context) resolveRange(from, to string) (any, error) {
	bounds := [2]int{}
	for i, markup := range [2]string{from, to} {
		v, err := c.resolve(markup, true)
		if err != nil {
			return nil, err
		}
		n, err := value.AsInt32(v)
		if err != nil {
			return nil, err
		}
		bounds[i] = int(n)
	}
	return value.Range{From: bounds[0], To: bounds[1]}, nil
}

// isIntegerLiteral matches an optionally signed run of digits.
func isIntegerLiteral(s string) bool {
	if s[0] == '+' || s[0] == '-' {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// parseIntegerLiteral returns an int for literals in the 32-bit range and
// an int64 beyond it.
func parseIntegerLiteral(s string) (any, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, Errorf(ErrRuntime, "Value '%s' was either too large or too small for an Int64.", s).WithCause(err)
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return n, nil
	}
	return int(n), nil
}

// isNumericLiteral matches a sign, a digit and then at least one more
// digit, dot or comma.
func isNumericLiteral(s string) bool {
	if s[0] == '+' || s[0] == '-' {
		s = s[1:]
	}
	if len(s) < 2 || s[0] < '0' || s[0] > '9' {
		return false
	}
	for i := 1; i < len(s); i++ {
		switch ch := s[i]; {
		case ch >= '0' && ch <= '9', ch == '.', ch == ',':
		default:
			return false
		}
	}
	return true
}

// parseNumericLiteral parses with the render culture first and the
// invariant culture second, preferring decimal over float64 precision.
func (c *Context) parseNumericLiteral(s string) (any, error) {
	inv := culture.Invariant()
	if d, ok := c.culture.ParseDecimal(s); ok {
		return d, nil
	}
	if d, ok := inv.ParseDecimal(s); ok {
		return d, nil
	}
	if f, ok := c.culture.ParseFloat(s); ok {
		return f, nil
	}
	if f, ok := inv.ParseFloat(s); ok {
		return f, nil
	}
	return nil, Errorf(ErrRuntime, "Input string '%s' was not in a correct format.", s)
}

// variable walks a variable reference segment by segment.
func (c *Context) variable(markup string, notify bool) (any, error) {
	v, found, err := c.walk(markup)
	if err != nil {
		return nil, err
	}
	if !found {
		if notify {
			c.errors = append(c.errors, Errorf(ErrVariableNotFound, "Variable '%s' not found", markup))
		}
		return nil, nil
	}
	return v, nil
}

func (c *Context) walk(markup string) (any, bool, error) {
	var (
		cur   any
		first = true
	)
	for part, err := range lexer.PathSegments(markup, c.syntax) {
		if err != nil {
			var pe *lexer.PathError
			if errors.As(err, &pe) {
				return nil, false, syntaxError("%s", pe.Error())
			}
			return nil, false, err
		}
		bracketed := part[0] == '['
		var key any = part
		if bracketed {
			k, err := c.resolve(part[1:len(part)-1], true)
			if err != nil {
				return nil, false, err
			}
			key = k
		}

		if first {
			first = false
			name := value.ToString(key)
			v, found, err := c.findVariable(name)
			if err != nil || !found {
				return nil, false, err
			}
			cur = v
			continue
		}

		next, found, err := c.member(cur, key, bracketed)
		if err != nil || !found {
			return nil, false, err
		}
		cur = next
	}
	if first {
		return nil, false, nil
	}
	return cur, true, nil
}

// findVariable looks name up in the scopes, innermost first, and then in
// the environments.
func (c *Context) findVariable(name string) (any, bool, error) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if v, ok := lookupKey(c.convention, c.scopes[i], name); ok {
			return c.prepare(c.scopes[i], name, v)
		}
	}
	for _, env := range c.environments {
		v, found, err := value.Index(c, env, name)
		if err != nil {
			return nil, false, err
		}
		if found {
			return c.liquidize(v, true)
		}
	}
	return nil, false, nil
}

// prepare forces lazy scope values, storing the result back in the scope.
func (c *Context) prepare(scope map[string]any, name string, v any) (any, bool, error) {
	if value.IsLazy(v) {
		res, err := value.Force(c, v)
		if err != nil {
			return nil, true, err
		}
		setKey(c.convention, scope, name, res)
		v = res
	}
	return c.liquidize(v, true)
}

// member resolves one path segment after the first. KeyValue entries
// answer 0, 1, Key, Value and their own key. Unbracketed size, first and
// last work on any collection without such a key.
func (c *Context) member(obj, key any, bracketed bool) (any, bool, error) {
	if kv, ok := obj.(value.KeyValue); ok {
		switch {
		case isIndex(key, 0) || key == "Key":
			return c.liquidize(kv.Key, true)
		case isIndex(key, 1) || key == "Value" || value.Equal(key, kv.Key):
			return c.liquidize(kv.Value, true)
		}
	}

	v, found, err := value.Index(c, obj, key)
	if err != nil {
		return nil, true, err
	}
	if found {
		return c.liquidize(v, true)
	}

	name, isName := key.(string)
	if bracketed || !isName {
		return nil, false, nil
	}
	conv := c.convention
	switch {
	case conv.OperatorEqual(name, "size"):
		if n, ok := value.Len(obj); ok {
			return n, true, nil
		}
	case conv.OperatorEqual(name, "first"):
		if items, ok := elements(obj); ok {
			if len(items) == 0 {
				return nil, true, nil
			}
			return c.liquidize(items[0], true)
		}
	case conv.OperatorEqual(name, "last"):
		if items, ok := elements(obj); ok {
			if len(items) == 0 {
				return nil, true, nil
			}
			return c.liquidize(items[len(items)-1], true)
		}
	}
	return nil, false, nil
}

// elements returns the items of a collection, or the characters of a
// string.
func elements(v any) ([]any, bool) {
	if s, ok := v.(string); ok {
		items := make([]any, 0, len(s))
		for _, r := range s {
			items = append(items, string(r))
		}
		return items, true
	}
	return value.ToSlice(v)
}

func isIndex(key any, i int64) bool {
	if !value.IsInteger(key) {
		return false
	}
	n, err := value.AsInt64(key)
	return err == nil && n == i
}

// liquidize normalizes v and hands the render state to context-aware
// values.
func (c *Context) liquidize(v any, found bool) (any, bool, error) {
	nv, err := value.Normalize(v, c.registry)
	if err != nil {
		var ioe *value.InvalidObjectError
		if errors.As(err, &ioe) {
			return nil, found, NewError(ErrSyntax, ioe.Error()).WithCause(err)
		}
		return nil, found, err
	}
	if ca, ok := nv.(value.ContextAware); ok {
		ca.SetContext(c)
	}
	return nv, found, nil
}
