package parser

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Fragment patterns shared by every tag grammar.
const (
	quotedString         = `"[^"]*"|'[^']*'`
	quotedFragment       = `"[^"]*"|'[^']*'|(?:[^\s,\|'"]|"[^"]*"|'[^']*')+`
	quotedAssignFragment = `"[^"]*"|'[^']*'|(?:[^\s\|'"]|"[^"]*"|'[^']*')+`
)

var (
	variableName    = regexp.MustCompile(`(?s)\s*(` + quotedAssignFragment + `)(.*)`)
	filterSeparator = regexp.MustCompile(`(?s)\|\s*(.*)`)
	filterStage     = regexp.MustCompile(`(?:\s+|` + quotedFragment + `|,)+`)
	filterName      = regexp.MustCompile(`\s*(\w+)`)
	filterArg       = regexp.MustCompile(`(?::|,)\s*(` + quotedFragment + `)`)
	tagAttribute    = regexp.MustCompile(`(\w+)\s*:\s*(` + quotedFragment + `)`)
	conditionSyntax = regexp.MustCompile(`(` + quotedFragment + `)\s*([=!<>a-zA-Z_]+)?\s*(` + quotedFragment + `)?`)
	isQuoted        = regexp.MustCompile(`^(?:` + quotedString + `)$`)
)

// ParseVariable parses output markup into a variable reference and its
// filters. Empty filter stages are ignored.
func ParseVariable(markup string) *Variable {
	v := &Variable{Markup: markup}
	m := variableName.FindStringSubmatch(markup)
	if m == nil {
		return v
	}
	v.Name = m[1]
	f := filterSeparator.FindStringSubmatch(m[2])
	if f == nil {
		return v
	}
	for _, stage := range filterStage.FindAllString(f[0], -1) {
		name := filterName.FindStringSubmatch(stage)
		if name == nil {
			continue
		}
		filter := Filter{Name: name[1]}
		for _, arg := range filterArg.FindAllStringSubmatch(stage, -1) {
			filter.Args = append(filter.Args, arg[1])
		}
		v.Filters = append(v.Filters, filter)
	}
	return v
}

// ScanAttributes returns every `key: value` pair in markup.
func ScanAttributes(markup string) []Attribute {
	var attrs []Attribute
	for _, m := range tagAttribute.FindAllStringSubmatch(markup, -1) {
		attrs = append(attrs, Attribute{Key: m[1], Value: m[2]})
	}
	return attrs
}

// Unquote strips matching single or double quotes.
func Unquote(s string) string {
	if isQuoted.MatchString(s) {
		return s[1 : len(s)-1]
	}
	return s
}

type fragment struct {
	text       string
	start, end int
}

// fragments splits markup on whitespace, keeping quoted strings whole.
func fragments(markup string) []fragment {
	var out []fragment
	start := -1
	flush := func(end int) {
		if start >= 0 {
			out = append(out, fragment{markup[start:end], start, end})
			start = -1
		}
	}
	for i := 0; i < len(markup); i++ {
		c := markup[i]
		switch {
		case c == '\'' || c == '"':
			if start < 0 {
				start = i
			}
			if j := strings.IndexByte(markup[i+1:], c); j >= 0 {
				i += j + 1
			}
		case unicode.IsSpace(rune(c)):
			flush(i)
		default:
			if start < 0 {
				start = i
			}
		}
	}
	flush(len(markup))
	return out
}

// ParseCondition parses an if/unless condition such as
// `a == 1 or b contains 'x' and c`. Conditions group to the right: the
// condition above reads `a == 1 or (b contains 'x' and c)`.
func ParseCondition(markup string) (*Condition, error) {
	var exprs, ops []string
	exprStart := -1
	var exprEnd int
	for _, f := range fragments(markup) {
		if f.text == "and" || f.text == "or" {
			if exprStart < 0 {
				return nil, fmt.Errorf("unexpected %q", f.text)
			}
			exprs = append(exprs, markup[exprStart:exprEnd])
			ops = append(ops, f.text)
			exprStart = -1
			continue
		}
		if exprStart < 0 {
			exprStart = f.start
		}
		exprEnd = f.end
	}
	if exprStart < 0 {
		return nil, fmt.Errorf("missing condition")
	}
	exprs = append(exprs, markup[exprStart:exprEnd])

	var cond *Condition
	for i := len(exprs) - 1; i >= 0; i-- {
		m := conditionSyntax.FindStringSubmatch(exprs[i])
		if m == nil {
			return nil, fmt.Errorf("invalid condition %q", exprs[i])
		}
		c := &Condition{Left: m[1], Operator: m[2], Right: m[3]}
		if cond != nil {
			c.Join = ops[i]
			c.Next = cond
		}
		cond = c
	}
	return cond, nil
}

// splitValues splits a comma separated list of fragments, dropping empty
// entries.
func splitValues(markup string) []string {
	var out []string
	for _, part := range strings.Split(markup, ",") {
		m := quotedFragmentOnly.FindString(part)
		if m != "" {
			out = append(out, m)
		}
	}
	return out
}

var quotedFragmentOnly = regexp.MustCompile(quotedFragment)
