// Package parser builds the node tree of a Liquid template from its
// tokens.
package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lodgify/dotliquid/lexer"
)

const maxDepth = 150

var (
	tagHead     = regexp.MustCompile(`(?s)^(\w+)\s*(.*)$`)
	rawEnd      = regexp.MustCompile(`(?s)^(.*)\{%-?\s*(\w+)\s*(.*)?-?%\}$`)
	caseSyntax  = regexp.MustCompile(`(` + quotedFragment + `)`)
	whenSyntax  = regexp.MustCompile(`(?s)^\s*(` + quotedFragment + `)(?:(?:\s+or\s+|\s*,\s*)((?:` + quotedFragment + `).*))?`)
	forSyntax   = regexp.MustCompile(`^(\w+)\s+in\s+((?:` + quotedFragment + `)+)\s*(reversed)?`)
	rowSyntax   = regexp.MustCompile(`^(\w+)\s+in\s+((?:` + quotedFragment + `)+)`)
	assignSyn   = regexp.MustCompile(`(?s)^\s*([\w\-\.\[\]]+)\s*=\s*(.*?)\s*$`)
	nameSyntax  = regexp.MustCompile(`(\w+)`)
	cycleNamed  = regexp.MustCompile(`(?s)^(` + quotedFragment + `)\s*:\s*(.*)`)
	cycleSimple = regexp.MustCompile(`^(?:` + quotedFragment + `)+`)
	extendsSyn  = regexp.MustCompile(`^(` + quotedFragment + `)`)
	includeSyn  = regexp.MustCompile(`((?:` + quotedFragment + `)+)(\s+(?:with|for)\s+((?:` + quotedFragment + `)+))?`)
)

// Param keys, lower case with underscores removed.
const (
	ParamDateFormat = "dateformat"
	ParamSyntax     = "syntax"
	ParamCulture    = "culture"
	ParamUsing      = "using"
)

// Error is a template syntax error.
type Error struct {
	Msg  string
	Span Span
}

func (e *Error) Error() string {
	return e.Msg
}

// TagSpec describes a host-registered tag.
type TagSpec struct {
	// Block tags own a body closed by "end" + name.
	Block bool
	// Build creates the tag implementation from its markup and, for block
	// tags, its parsed body. A returned error is reported as a syntax error.
	Build func(name, markup string, body []Stmt) (any, error)
}

// Config controls parsing.
type Config struct {
	Level lexer.SyntaxCompatibility
	Tags  map[string]TagSpec
}

// Parser turns tokens into a node tree.
type Parser struct {
	tokens   []lexer.Token
	pos      int
	cfg      Config
	depth    int
	extended bool
	lastSpan Span
}

// delimiter is the tag that ended a body.
type delimiter struct {
	name   string
	markup string
	tok    lexer.Token
}

// Parse parses template source.
func Parse(source string, cfg Config) (*Template, error) {
	p := &Parser{tokens: lexer.Tokenize(source, cfg.Level), cfg: cfg}
	t, err := p.parse()
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (p *Parser) parse() (*Template, *Error) {
	children, _, err := p.subparse("", nil)
	if err != nil {
		return nil, err
	}
	return &Template{Children: children, span: p.expandSpan(Span{StartLine: 1})}, nil
}

func (p *Parser) advance() *lexer.Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	tok := &p.tokens[p.pos]
	p.lastSpan = tok.Span
	p.pos++
	return tok
}

func (p *Parser) expandSpan(start Span) Span {
	return Span{
		StartLine:   start.StartLine,
		StartCol:    start.StartCol,
		StartOffset: start.StartOffset,
		EndLine:     p.lastSpan.EndLine,
		EndCol:      p.lastSpan.EndCol,
		EndOffset:   p.lastSpan.EndOffset,
	}
}

func (p *Parser) errorf(span Span, format string, args ...any) *Error {
	return &Error{Msg: fmt.Sprintf(format, args...), Span: span}
}

func syntaxHelp(tag, usage string) string {
	return fmt.Sprintf("Syntax Error in '%s' tag - Valid syntax: %s", tag, usage)
}

// subparse collects nodes until a tag accepted by stop or the end of input.
// owner names the enclosing block tag, or is empty at the top level.
func (p *Parser) subparse(owner string, stop func(name string) bool) ([]Stmt, *delimiter, *Error) {
	var stmts []Stmt
	for {
		tok := p.advance()
		if tok == nil {
			break
		}
		switch tok.Type {
		case lexer.TokenText:
			stmts = append(stmts, &Text{Text: tok.Value, span: tok.Span})

		case lexer.TokenVariable:
			if !tok.Terminated {
				return nil, nil, p.errorf(tok.Span, "Variable '%s' was not properly terminated with regexp: }}", tok.Value)
			}
			markup := tok.Markup
			if p.cfg.Level.Strict() {
				markup = strings.TrimLeft(markup, "{")
			}
			stmts = append(stmts, &Output{Var: ParseVariable(markup), span: tok.Span})

		case lexer.TokenTag:
			m := tagHead.FindStringSubmatch(tok.Markup)
			if !tok.Terminated || m == nil {
				return nil, nil, p.errorf(tok.Span, "Tag '%s' was not properly terminated with regexp: %%}", tok.Value)
			}
			name, markup := m[1], strings.TrimSpace(m[2])
			if stop != nil && stop(name) {
				if err := checkBlocks(stmts, tok.Span); err != nil {
					return nil, nil, err
				}
				return stmts, &delimiter{name: name, markup: markup, tok: *tok}, nil
			}
			if name == "extends" {
				if owner != "" || p.extended || !blank(stmts) {
					return nil, nil, p.errorf(tok.Span, "Liquid Error - 'extends' must be the first tag in an extending template")
				}
				ext, err := p.parseExtends(markup, *tok)
				if err != nil {
					return nil, nil, err
				}
				return append(stmts, ext), nil, nil
			}
			stmt, err := p.parseTag(owner, name, markup, *tok)
			if err != nil {
				return nil, nil, err
			}
			stmts = append(stmts, stmt)
		}
	}
	if owner != "" {
		return nil, nil, p.errorf(p.lastSpan, "%s tag was never closed", owner)
	}
	if err := checkBlocks(stmts, p.lastSpan); err != nil {
		return nil, nil, err
	}
	return stmts, nil, nil
}

// blank reports whether stmts holds only whitespace text.
func blank(stmts []Stmt) bool {
	for _, s := range stmts {
		t, ok := s.(*Text)
		if !ok || strings.TrimSpace(t.Text) != "" {
			return false
		}
	}
	return true
}

// checkBlocks rejects sibling blocks sharing a name.
func checkBlocks(stmts []Stmt, span Span) *Error {
	seen := map[string]bool{}
	for _, s := range stmts {
		b, ok := s.(*Block)
		if !ok {
			continue
		}
		if seen[b.Name] {
			return &Error{Msg: fmt.Sprintf("Liquid Error - Block '%s' already defined", b.Name), Span: b.span}
		}
		seen[b.Name] = true
	}
	return nil
}

func (p *Parser) parseTag(owner, name, markup string, tok lexer.Token) (Stmt, *Error) {
	p.depth++
	if p.depth > maxDepth {
		return nil, p.errorf(tok.Span, "Nesting too deep")
	}
	defer func() { p.depth-- }()

	if spec, ok := p.cfg.Tags[name]; ok {
		return p.parseCustom(spec, name, markup, tok)
	}

	switch name {
	case "if", "unless":
		return p.parseIf(name, markup, tok)
	case "case":
		return p.parseCase(markup, tok)
	case "for":
		return p.parseFor(markup, tok)
	case "tablerow":
		return p.parseTableRow(markup, tok)
	case "assign":
		m := assignSyn.FindStringSubmatch(markup)
		if m == nil {
			return nil, p.errorf(tok.Span, "%s", syntaxHelp("assign", "assign [var] = [source]"))
		}
		return &Assign{Name: m[1], Value: ParseVariable(m[2]), span: tok.Span}, nil
	case "capture":
		m := nameSyntax.FindStringSubmatch(markup)
		if m == nil {
			return nil, p.errorf(tok.Span, "%s", syntaxHelp("capture", "capture [var]"))
		}
		body, err := p.body(name, tok)
		if err != nil {
			return nil, err
		}
		return &Capture{Name: m[1], Body: body, span: p.expandSpan(tok.Span)}, nil
	case "increment":
		return &Counter{Name: markup, Step: 1, span: tok.Span}, nil
	case "decrement":
		return &Counter{Name: markup, Step: -1, span: tok.Span}, nil
	case "cycle":
		return p.parseCycle(markup, tok)
	case "block":
		m := nameSyntax.FindStringSubmatch(markup)
		if m == nil {
			return nil, p.errorf(tok.Span, "%s", syntaxHelp("block", "block [name]"))
		}
		body, err := p.body(name, tok)
		if err != nil {
			return nil, err
		}
		return &Block{Name: m[1], Body: body, span: p.expandSpan(tok.Span)}, nil
	case "include":
		return p.parseInclude(markup, tok)
	case "raw", "comment", "literal":
		if name == "raw" && markup != "" {
			return nil, p.errorf(tok.Span, "%s", syntaxHelp("raw", "raw"))
		}
		text, err := p.rawBody(name, tok)
		if err != nil {
			return nil, err
		}
		return &Raw{Text: text, Hidden: name == "comment", span: p.expandSpan(tok.Span)}, nil
	case "ifchanged":
		body, err := p.body(name, tok)
		if err != nil {
			return nil, err
		}
		return &IfChanged{Body: body, span: p.expandSpan(tok.Span)}, nil
	case "break":
		return &Break{span: tok.Span}, nil
	case "continue":
		return &Continue{span: tok.Span}, nil
	case "param":
		return p.parseParam(markup, tok)
	}

	switch {
	case owner != "" && name == "else":
		return nil, p.errorf(tok.Span, "%s tag does not expect else tag", owner)
	case owner != "" && name == "end":
		return nil, p.errorf(tok.Span, "'end' is not a valid delimiter for %s tags. use end%s", owner, owner)
	}
	return nil, p.errorf(tok.Span, "Unknown tag '%s'", name)
}

// body parses a block body closed by "end" + name.
func (p *Parser) body(name string, tok lexer.Token) ([]Stmt, *Error) {
	end := "end" + name
	body, _, err := p.subparse(name, func(n string) bool { return n == end })
	return body, err
}

func (p *Parser) parseCustom(spec TagSpec, name, markup string, tok lexer.Token) (Stmt, *Error) {
	var body []Stmt
	if spec.Block {
		var err *Error
		if body, err = p.body(name, tok); err != nil {
			return nil, err
		}
	}
	tag := &CustomTag{Name: name, Markup: markup, Body: body, span: p.expandSpan(tok.Span)}
	if spec.Build != nil {
		impl, err := spec.Build(name, markup, body)
		if err != nil {
			return nil, p.errorf(tok.Span, "%s", err.Error())
		}
		tag.Impl = impl
	}
	return tag, nil
}

func (p *Parser) parseIf(name, markup string, tok lexer.Token) (Stmt, *Error) {
	stmt := &If{Unless: name == "unless"}
	end := "end" + name
	stop := func(n string) bool { return n == end || n == "elsif" || n == "else" }

	var cond *Condition
	var perr error
	if cond, perr = ParseCondition(markup); perr != nil {
		return nil, p.errorf(tok.Span, "%s", syntaxHelp(name, name+" [condition]"))
	}
	for {
		body, d, err := p.subparse(name, stop)
		if err != nil {
			return nil, err
		}
		stmt.Blocks = append(stmt.Blocks, CondBlock{Cond: cond, Body: body})
		switch d.name {
		case end:
			stmt.span = p.expandSpan(tok.Span)
			return stmt, nil
		case "elsif":
			if cond, perr = ParseCondition(d.markup); perr != nil {
				return nil, p.errorf(d.tok.Span, "%s", syntaxHelp(name, name+" [condition]"))
			}
		default:
			cond = nil
		}
	}
}

func (p *Parser) parseCase(markup string, tok lexer.Token) (Stmt, *Error) {
	m := caseSyntax.FindStringSubmatch(markup)
	if m == nil {
		return nil, p.errorf(tok.Span, "Syntax Error in 'case' - Valid syntax: case [condition]")
	}
	stmt := &Case{Subject: m[1]}
	stop := func(n string) bool { return n == "endcase" || n == "when" || n == "else" }

	// Nodes before the first when are never rendered.
	_, d, err := p.subparse("case", stop)
	if err != nil {
		return nil, err
	}
	for d.name != "endcase" {
		var values []string
		inElse := d.name == "else"
		if !inElse {
			rest := d.markup
			for rest != "" {
				w := whenSyntax.FindStringSubmatch(rest)
				if w == nil {
					return nil, p.errorf(d.tok.Span, "Syntax Error in tag 'case' - Valid when condition: {%% when [condition] [or condition2...] %%}")
				}
				values = append(values, w[1])
				rest = w[2]
			}
			if len(values) == 0 {
				return nil, p.errorf(d.tok.Span, "Syntax Error in tag 'case' - Valid when condition: {%% when [condition] [or condition2...] %%}")
			}
		}
		body, next, err := p.subparse("case", stop)
		if err != nil {
			return nil, err
		}
		if inElse {
			stmt.Else = append(stmt.Else, body...)
			stmt.HasElse = true
		} else {
			stmt.Whens = append(stmt.Whens, When{Values: values, Body: body})
		}
		d = next
	}
	stmt.span = p.expandSpan(tok.Span)
	return stmt, nil
}

func (p *Parser) parseFor(markup string, tok lexer.Token) (Stmt, *Error) {
	m := forSyntax.FindStringSubmatch(markup)
	if m == nil {
		return nil, p.errorf(tok.Span, "Syntax Error in 'for loop' - Valid syntax: for [item] in [collection]")
	}
	stmt := &For{
		Var:        m[1],
		Collection: m[2],
		Reversed:   m[3] != "",
		Attributes: ScanAttributes(markup),
	}
	stop := func(n string) bool { return n == "endfor" || n == "else" }
	body, d, err := p.subparse("for", stop)
	if err != nil {
		return nil, err
	}
	stmt.Body = body
	if d.name == "else" {
		if stmt.Else, err = p.body("for", tok); err != nil {
			return nil, err
		}
	}
	stmt.span = p.expandSpan(tok.Span)
	return stmt, nil
}

func (p *Parser) parseTableRow(markup string, tok lexer.Token) (Stmt, *Error) {
	m := rowSyntax.FindStringSubmatch(markup)
	if m == nil {
		return nil, p.errorf(tok.Span, "Syntax Error in 'tablerow loop' - Valid syntax: tablerow [item] in [collection] cols=3")
	}
	body, err := p.body("tablerow", tok)
	if err != nil {
		return nil, err
	}
	return &TableRow{
		Var:        m[1],
		Collection: m[2],
		Attributes: ScanAttributes(markup),
		Body:       body,
		span:       p.expandSpan(tok.Span),
	}, nil
}

func (p *Parser) parseCycle(markup string, tok lexer.Token) (Stmt, *Error) {
	if m := cycleNamed.FindStringSubmatch(markup); m != nil {
		return &Cycle{Group: m[1], Values: splitValues(m[2]), span: tok.Span}, nil
	}
	if cycleSimple.MatchString(markup) {
		values := splitValues(markup)
		return &Cycle{Group: "'" + strings.Join(values, "") + "'", Values: values, span: tok.Span}, nil
	}
	return nil, p.errorf(tok.Span, "Syntax Error in 'cycle' - Valid syntax: cycle [name :] var [, var2, var3 ...]")
}

func (p *Parser) parseExtends(markup string, tok lexer.Token) (Stmt, *Error) {
	m := extendsSyn.FindStringSubmatch(markup)
	if m == nil {
		return nil, p.errorf(tok.Span, "Syntax Error in 'extends' - Valid syntax: extends [template]")
	}
	p.extended = true
	body, _, err := p.subparse("", nil)
	if err != nil {
		return nil, err
	}
	return &Extends{Template: m[1], Body: body, span: p.expandSpan(tok.Span)}, nil
}

func (p *Parser) parseInclude(markup string, tok lexer.Token) (Stmt, *Error) {
	m := includeSyn.FindStringSubmatch(markup)
	if m == nil {
		return nil, p.errorf(tok.Span, "Syntax Error in 'include' - Valid syntax: include [template]")
	}
	return &Include{
		Template:   m[1],
		Variable:   m[3],
		Attributes: ScanAttributes(markup),
		span:       tok.Span,
	}, nil
}

func (p *Parser) parseParam(markup string, tok lexer.Token) (Stmt, *Error) {
	usage := syntaxHelp("param", "param [key] = [value]")
	key, value, ok := strings.Cut(markup, "=")
	key, value = strings.TrimSpace(key), strings.TrimSpace(value)
	if !ok || key == "" || value == "" {
		return nil, p.errorf(tok.Span, "%s", usage)
	}
	norm := strings.ToLower(strings.ReplaceAll(key, "_", ""))
	switch norm {
	case ParamDateFormat, ParamSyntax, ParamCulture, ParamUsing:
	default:
		return nil, p.errorf(tok.Span, "%s", usage)
	}
	return &Param{Key: norm, Value: value, span: tok.Span}, nil
}

// rawBody consumes tokens up to the matching end tag and returns their
// source text. An end tag may be glued to text before it, as in
// `{% foo {% endraw %}`.
func (p *Parser) rawBody(name string, tok lexer.Token) (string, *Error) {
	end := "end" + name
	var sb strings.Builder
	for {
		t := p.advance()
		if t == nil {
			return "", p.errorf(tok.Span, "%s tag was never closed", name)
		}
		if t.Type == lexer.TokenTag && t.Terminated {
			if m := rawEnd.FindStringSubmatch(t.Value); m != nil && m[2] == end {
				sb.WriteString(m[1])
				return sb.String(), nil
			}
		}
		sb.WriteString(t.Value)
	}
}
