package dotliquid

import (
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strings"

	"github.com/lodgify/dotliquid/culture"
	"github.com/lodgify/dotliquid/lexer"
	"github.com/lodgify/dotliquid/parser"
	"github.com/lodgify/dotliquid/value"
)

// RenderAll renders nodes in order. A node that fails is replaced by the
// outcome of HandleError; rendering stops at fatal errors and, in rethrow
// mode, at the first error.
func (c *Context) RenderAll(w io.Writer, nodes []parser.Stmt) error {
	for _, n := range nodes {
		if err := c.budget.check(); err != nil {
			return err
		}
		err := c.renderNode(w, n)
		if err == nil {
			continue
		}
		msg, err := c.HandleError(c.annotate(err, n.Span()))
		if err != nil {
			return err
		}
		if _, err := io.WriteString(w, msg); err != nil {
			return err
		}
	}
	return nil
}

// annotate records the location of the failing node on errors raised
// without one.
func (c *Context) annotate(err error, span lexer.Span) error {
	le, ok := err.(*Error)
	if !ok || le.Span != nil || le.Kind.Fatal() {
		return err
	}
	cp := *le
	cp.Span = &span
	if cp.Name == "" {
		cp.Name = c.name
	}
	if cp.Source == "" {
		cp.Source = c.source
	}
	return &cp
}

func (c *Context) renderNode(w io.Writer, n parser.Stmt) error {
	switch n := n.(type) {
	case *parser.Text:
		_, err := io.WriteString(w, n.Text)
		return err
	case *parser.Output:
		return c.renderVariable(w, n.Var)
	case *parser.If:
		return c.renderIf(w, n)
	case *parser.Case:
		return c.renderCase(w, n)
	case *parser.For:
		return c.renderFor(w, n)
	case *parser.TableRow:
		return c.renderTableRow(w, n)
	case *parser.Assign:
		v, err := c.evalVariable(n.Value)
		if err != nil {
			return err
		}
		c.setOuter(n.Name, v)
		return nil
	case *parser.Capture:
		var sb strings.Builder
		if err := c.RenderAll(&sb, n.Body); err != nil {
			return err
		}
		c.setOuter(n.Name, sb.String())
		return nil
	case *parser.Counter:
		return c.renderCounter(w, n)
	case *parser.Cycle:
		return c.renderCycle(w, n)
	case *parser.Block:
		return c.renderBlock(w, n)
	case *parser.Extends:
		return c.renderExtends(w, n)
	case *parser.Include:
		return c.renderInclude(w, n)
	case *parser.Raw:
		if n.Hidden {
			return nil
		}
		_, err := io.WriteString(w, n.Text)
		return err
	case *parser.IfChanged:
		return c.renderIfChanged(w, n)
	case *parser.Break:
		return errBreak
	case *parser.Continue:
		return errContinue
	case *parser.Param:
		return c.applyParam(n)
	case *parser.CustomTag:
		tag, ok := n.Impl.(Tag)
		if !ok {
			return Errorf(ErrRuntime, "Tag '%s' cannot be rendered", n.Name)
		}
		return tag.Render(c, w)
	}
	return Errorf(ErrRuntime, "unsupported node %T", n)
}

func (c *Context) renderIf(w io.Writer, n *parser.If) error {
	return c.Stack(nil, func() error {
		for i, b := range n.Blocks {
			ok, err := c.evalCondition(b.Cond)
			if err != nil {
				return err
			}
			if n.Unless && i == 0 {
				ok = !ok
			}
			if ok {
				return c.RenderAll(w, b.Body)
			}
		}
		return nil
	})
}

// renderCase renders the body of every matching value, so a body listed
// with two matching values renders twice.
func (c *Context) renderCase(w io.Writer, n *parser.Case) error {
	return c.Stack(nil, func() error {
		matched := false
		for _, when := range n.Whens {
			for _, v := range when.Values {
				ok, err := c.evalCondition(&parser.Condition{Left: n.Subject, Operator: "==", Right: v})
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				matched = true
				if err := c.RenderAll(w, when.Body); err != nil {
					return err
				}
			}
		}
		if !matched && n.HasElse {
			return c.RenderAll(w, n.Else)
		}
		return nil
	})
}

// register returns the named register as a map, creating it if needed.
func (c *Context) register(name string) map[string]any {
	m, ok := c.registers[name].(map[string]any)
	if !ok {
		m = map[string]any{}
		c.registers[name] = m
	}
	return m
}

// intAttr resolves an integer attribute such as limit or cols. A missing
// or nil attribute is zero.
func (c *Context) intAttr(markup string) (int, error) {
	v, err := c.Get(markup)
	if err != nil {
		return 0, err
	}
	n, err := value.AsInt32(v)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// pollEvery is how many elements are enumerated between timeout checks
// while a loop collection is gathered.
const pollEvery = 1024

// window gathers the elements of coll from index from up to, but not
// including, index to; a negative to means no upper bound. Only as many
// elements as the iteration budget can still pay for, plus one, are kept,
// so an oversized collection fails on its first unaffordable iteration
// instead of being materialized. length is the number of elements in the
// window when it is known in full.
func (c *Context) window(coll any, from, to int, reversed bool) (items []any, length int, err error) {
	keep := -1
	if left := c.budget.left(); left >= 0 && left < math.MaxInt32 {
		keep = int(left) + 1
	}
	from = max(from, 0)
	if r, ok := coll.(value.Range); ok {
		items, length = rangeWindow(r, from, to, keep, reversed)
		return items, length, nil
	}
	seq, ok := value.Enumerate(coll)
	if !ok {
		return nil, 0, nil
	}
	i := 0
	for item := range seq {
		if to >= 0 && i >= to {
			break
		}
		if i%pollEvery == pollEvery-1 {
			if err := c.budget.check(); err != nil {
				return nil, 0, err
			}
		}
		i++
		if i <= from {
			continue
		}
		if keep >= 0 && len(items) == keep {
			if !reversed {
				// The budget runs out inside this window.
				return items, len(items), nil
			}
			items = items[1:]
		}
		items = append(items, item)
		length++
	}
	if reversed {
		slices.Reverse(items)
	}
	return items, length, nil
}

// rangeWindow is window for an integer range, computed without
// enumerating it.
func rangeWindow(r value.Range, from, to, keep int, reversed bool) ([]any, int) {
	n := r.Len()
	start := min(from, n)
	end := n
	if to >= 0 {
		end = min(end, max(to, start))
	}
	length := end - start
	count := length
	if keep >= 0 {
		count = min(count, keep)
	}
	items := make([]any, count)
	for k := range items {
		if reversed {
			items[k] = r.From + end - 1 - k
		} else {
			items[k] = r.From + start + k
		}
	}
	return items, length
}

func (c *Context) renderFor(w io.Writer, n *parser.For) error {
	continues := c.register("for")
	coll, err := c.Get(n.Collection)
	if err != nil {
		return err
	}
	if !value.IsEnumerable(coll) {
		return c.RenderAll(w, n.Else)
	}

	from := 0
	if off, ok := n.Attr("offset"); ok {
		if off == "continue" {
			from, _ = value.ToInt(continues[n.Name()])
		} else if from, err = c.intAttr(off); err != nil {
			return err
		}
	}
	to := -1
	if lim, ok := n.Attr("limit"); ok {
		limit, err := c.intAttr(lim)
		if err != nil {
			return err
		}
		to = from + limit
	}
	segment, length, err := c.window(coll, from, to, n.Reversed)
	if err != nil {
		return err
	}
	continues[n.Name()] = from + length
	if length == 0 {
		return c.RenderAll(w, n.Else)
	}

	return c.Stack(nil, func() error {
		for i, item := range segment {
			if err := c.budget.check(); err != nil {
				return err
			}
			if err := c.budget.consume(1); err != nil {
				return err
			}
			c.Set(n.Var, item)
			c.Set("forloop", map[string]any{
				"name":    n.Name(),
				"length":  length,
				"index":   i + 1,
				"index0":  i,
				"rindex":  length - i,
				"rindex0": length - i - 1,
				"first":   i == 0,
				"last":    i == length-1,
			})
			err := c.RenderAll(w, n.Body)
			switch {
			case errors.Is(err, errBreak):
				return nil
			case errors.Is(err, errContinue):
				continue
			case err != nil:
				return err
			}
		}
		return nil
	})
}

func (c *Context) renderTableRow(w io.Writer, n *parser.TableRow) error {
	coll, err := c.Get(n.Collection)
	if err != nil {
		return err
	}
	if !value.IsEnumerable(coll) {
		return nil
	}
	from := 0
	if off, ok := n.Attr("offset"); ok {
		if from, err = c.intAttr(off); err != nil {
			return err
		}
	}
	to := -1
	if lim, ok := n.Attr("limit"); ok {
		limit, err := c.intAttr(lim)
		if err != nil {
			return err
		}
		to = from + limit
	}
	items, length, err := c.window(coll, from, to, false)
	if err != nil {
		return err
	}
	cols := 0
	if markup, ok := n.Attr("cols"); ok {
		if cols, err = c.intAttr(markup); err != nil {
			return err
		}
	}

	row, col := 1, 0
	if _, err := io.WriteString(w, "<tr class=\"row1\">\n"); err != nil {
		return err
	}
	err = c.Stack(nil, func() error {
		for i, item := range items {
			if err := c.budget.check(); err != nil {
				return err
			}
			if err := c.budget.consume(1); err != nil {
				return err
			}
			c.Set(n.Var, item)
			c.Set("tablerowloop", map[string]any{
				"length":    length,
				"index":     i + 1,
				"index0":    i,
				"col":       col + 1,
				"col0":      col,
				"rindex":    length - i,
				"rindex0":   length - i - 1,
				"first":     i == 0,
				"last":      i == length-1,
				"col_first": col == 0,
				"col_last":  col == cols-1,
			})
			col++
			var sb strings.Builder
			if err := c.RenderAll(&sb, n.Body); err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "<td class=\"col%d\">%s</td>", col, sb.String()); err != nil {
				return err
			}
			if col == cols && i != length-1 {
				col = 0
				row++
				if _, err := fmt.Fprintf(w, "</tr>\n<tr class=\"row%d\">", row); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, "</tr>\n")
	return err
}

// renderCounter implements increment, which writes the counter and then
// adds one, and decrement, which subtracts one and then writes it.
// Counters live in the outermost scope.
func (c *Context) renderCounter(w io.Writer, n *parser.Counter) error {
	cur, _ := lookupKey(c.convention, c.scopes[0], n.Name)
	v, err := value.ToInt(cur)
	if err != nil {
		return err
	}
	if n.Step < 0 {
		v--
		c.setOuter(n.Name, v)
		_, err = fmt.Fprint(w, v)
		return err
	}
	c.setOuter(n.Name, v+1)
	_, err = fmt.Fprint(w, v)
	return err
}

func (c *Context) renderCycle(w io.Writer, n *parser.Cycle) error {
	cycles := c.register("cycle")
	return c.Stack(nil, func() error {
		group, err := c.Get(n.Group)
		if err != nil {
			return err
		}
		key := value.ToString(group)
		i, _ := cycles[key].(int)
		if i >= len(n.Values) {
			i = 0
		}
		v, err := c.Get(n.Values[i])
		if err != nil {
			return err
		}
		if _, err := io.WriteString(w, value.Format(v, c.culture, c.registry)); err != nil {
			return err
		}
		i++
		if i >= len(n.Values) {
			i = 0
		}
		cycles[key] = i
		return nil
	})
}

func (c *Context) renderIfChanged(w io.Writer, n *parser.IfChanged) error {
	return c.Stack(nil, func() error {
		var sb strings.Builder
		if err := c.RenderAll(&sb, n.Body); err != nil {
			return err
		}
		out := sb.String()
		if prev, ok := c.registers["ifchanged"].(string); ok && prev == out {
			return nil
		}
		c.registers["ifchanged"] = out
		_, err := io.WriteString(w, out)
		return err
	})
}

// applyParam changes a render setting for the rest of the render.
func (c *Context) applyParam(n *parser.Param) error {
	v, err := c.Get(n.Value)
	if err != nil {
		return err
	}
	s := value.ToString(v)
	switch n.Key {
	case parser.ParamDateFormat:
		switch strings.ToLower(s) {
		case "ruby":
			c.rubyDates = true
		case "dotnet":
			c.rubyDates = false
		default:
			return syntaxError("Date format '%s' is not supported. Valid values are 'ruby' and 'dotnet'", s)
		}
	case parser.ParamSyntax:
		level, err := lexer.ParseSyntax(s)
		if err != nil {
			return syntaxError("%s", err.Error())
		}
		c.syntax = level
	case parser.ParamCulture:
		cu, err := culture.Parse(s)
		if err != nil {
			return syntaxError("%s", err.Error())
		}
		c.culture = cu
	case parser.ParamUsing:
		list, ok := c.cfg.safelists[s]
		if !ok {
			return syntaxError("Filter set '%s' is not available", s)
		}
		for _, src := range list {
			c.strainer.extend(src)
		}
	}
	c.logger.Debug("param applied", "key", n.Key, "value", s)
	return nil
}
