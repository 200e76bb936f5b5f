package dotliquid

import (
	"errors"
	"io"
	"strings"

	"github.com/lodgify/dotliquid/parser"
	"github.com/lodgify/dotliquid/value"
)

// evalVariable resolves v.Name and runs it through the filter pipeline.
// Filter arguments are resolved each time the pipeline runs.
func (c *Context) evalVariable(v *parser.Variable) (any, error) {
	if v == nil || v.Name == "" {
		return nil, nil
	}
	out, err := c.Get(v.Name)
	if err != nil {
		return nil, err
	}
	for _, f := range v.Filters {
		args := make([]any, 1, len(f.Args)+1)
		args[0] = out
		for _, a := range f.Args {
			av, err := c.Get(a)
			if err != nil {
				return nil, err
			}
			args = append(args, av)
		}
		out, err = c.Invoke(f.Name, args)
		if err != nil {
			return nil, wrapFilterNotFound(err, f.Name, v.Markup)
		}
	}
	if vc, ok := out.(value.ValueTypeConvertible); ok {
		out = vc.ToValueType()
	}
	return out, nil
}

func wrapFilterNotFound(err error, name, markup string) error {
	var le *Error
	if !errors.As(err, &le) || le.Kind != ErrFilterNotFound {
		return err
	}
	return &Error{
		Kind:        ErrFilterNotFound,
		Message:     "Error - Filter '" + name + "' in '" + strings.TrimSpace(markup) + "' could not be found.",
		Cause:       err,
		Suggestions: le.Suggestions,
	}
}

// renderVariable writes the value of {{ v }}.
func (c *Context) renderVariable(w io.Writer, v *parser.Variable) error {
	out, err := c.evalVariable(v)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	_, err = io.WriteString(w, value.Format(out, c.culture, c.registry))
	return err
}
