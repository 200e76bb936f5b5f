package dotliquid

import (
	"strings"

	"github.com/lodgify/dotliquid/parser"
	"github.com/lodgify/dotliquid/value"
)

// OperatorFunc implements a condition operator such as == or contains.
// It receives the resolved operands.
type OperatorFunc func(left, right any) (bool, error)

type operator struct {
	name string
	fn   OperatorFunc
}

func registerStandardOperators(e *Engine) {
	eq := func(l, r any) (bool, error) { return value.Equal(l, r), nil }
	ne := func(l, r any) (bool, error) { return !value.Equal(l, r), nil }
	e.operators = []operator{
		{"==", eq},
		{"!=", ne},
		{"<>", ne},
		{"<", ordered(func(c int) bool { return c < 0 })},
		{">", ordered(func(c int) bool { return c > 0 })},
		{"<=", ordered(func(c int) bool { return c <= 0 })},
		{">=", ordered(func(c int) bool { return c >= 0 })},
		{"contains", predicate(value.Contains)},
		{"startsWith", predicate(value.StartsWith)},
		{"endsWith", predicate(value.EndsWith)},
		{"hasKey", predicate(value.HasKey)},
		{"hasValue", predicate(value.HasValue)},
	}
}

func ordered(test func(int) bool) OperatorFunc {
	return func(l, r any) (bool, error) {
		c, ok, err := value.Compare(l, r)
		if err != nil || !ok {
			return false, err
		}
		return test(c), nil
	}
}

func predicate(fn func(l, r any) bool) OperatorFunc {
	return func(l, r any) (bool, error) { return fn(l, r), nil }
}

// findOperator returns the operator registered under name. Names match
// exactly, by their lower case form or under the naming convention.
// Later registrations win.
func (c *Context) findOperator(name string) (OperatorFunc, bool) {
	ops := c.cfg.operators
	for i := len(ops) - 1; i >= 0; i-- {
		o := ops[i]
		if o.name == name || strings.ToLower(o.name) == name || c.convention.OperatorEqual(name, o.name) {
			return o.fn, true
		}
	}
	return nil, false
}

// evalCondition evaluates a chain of conditions. Chains group to the
// right: a or b and c is a or (b and c). Every link is evaluated.
func (c *Context) evalCondition(cond *parser.Condition) (bool, error) {
	if cond == nil {
		return true, nil
	}
	result, err := c.interpretCondition(cond)
	if err != nil {
		return false, err
	}
	if cond.Next == nil {
		return result, nil
	}
	rest, err := c.evalCondition(cond.Next)
	if err != nil {
		return false, err
	}
	switch cond.Join {
	case "or":
		return result || rest, nil
	case "and":
		return result && rest, nil
	}
	return result, nil
}

func (c *Context) interpretCondition(cond *parser.Condition) (bool, error) {
	if cond.Operator == "" {
		v, err := c.resolve(cond.Left, false)
		if err != nil {
			return false, err
		}
		return value.IsTruthy(v), nil
	}
	left, err := c.resolve(cond.Left, false)
	if err != nil {
		return false, err
	}
	right, err := c.resolve(cond.Right, false)
	if err != nil {
		return false, err
	}
	fn, ok := c.findOperator(cond.Operator)
	if !ok {
		return false, Errorf(ErrArgument, "Unknown operator %s", cond.Operator)
	}
	return fn(left, right)
}
