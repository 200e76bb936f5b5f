package parser

import "github.com/lodgify/dotliquid/lexer"

// Span represents a location range in source code.
type Span = lexer.Span

// Node is the interface implemented by all tree nodes.
type Node interface {
	node()
	Span() Span
}

// Stmt is a renderable node.
type Stmt interface {
	Node
	stmt()
}

// Template is the root of a parsed template.
type Template struct {
	Children []Stmt
	span     Span
}

func (t *Template) node()      {}
func (t *Template) Span() Span { return t.span }

// Text outputs literal template text.
type Text struct {
	Text string
	span Span
}

func (t *Text) node()      {}
func (t *Text) stmt()      {}
func (t *Text) Span() Span { return t.span }

// Filter is one stage of a filter pipeline. Args are unresolved variable
// references, evaluated each time the filter runs.
type Filter struct {
	Name string
	Args []string
}

// Variable is a variable reference followed by a filter pipeline, as in
// `product.title | upcase | truncate: 10`.
type Variable struct {
	Markup  string
	Name    string
	Filters []Filter
}

// Output is a `{{ ... }}` segment.
type Output struct {
	Var  *Variable
	span Span
}

func (o *Output) node()      {}
func (o *Output) stmt()      {}
func (o *Output) Span() Span { return o.span }

// Condition is a comparison leaf, optionally chained to the condition on
// its right with "and" or "or". An empty Operator tests Left for
// truthiness.
type Condition struct {
	Left     string
	Operator string
	Right    string
	Join     string
	Next     *Condition
}

// CondBlock pairs a condition with the body rendered when it holds. A nil
// Cond is an else branch.
type CondBlock struct {
	Cond *Condition
	Body []Stmt
}

// If is an if or unless tag. For unless, the first block is negated.
type If struct {
	Blocks []CondBlock
	Unless bool
	span   Span
}

func (i *If) node()      {}
func (i *If) stmt()      {}
func (i *If) Span() Span { return i.span }

// When is one branch of a case tag. It matches when any value equals the
// case subject.
type When struct {
	Values []string
	Body   []Stmt
}

// Case is a case/when/else tag.
type Case struct {
	Subject string
	Whens   []When
	Else    []Stmt
	HasElse bool
	span    Span
}

func (c *Case) node()      {}
func (c *Case) stmt()      {}
func (c *Case) Span() Span { return c.span }

// Attribute is a `key: value` pair from tag markup.
type Attribute struct {
	Key   string
	Value string
}

// For is a for loop.
type For struct {
	Var        string
	Collection string
	Reversed   bool
	Attributes []Attribute
	Body       []Stmt
	Else       []Stmt
	span       Span
}

func (f *For) node()      {}
func (f *For) stmt()      {}
func (f *For) Span() Span { return f.span }

// Name identifies the loop for `offset: continue` bookkeeping.
func (f *For) Name() string { return f.Var + "-" + f.Collection }

// Attr returns the markup of the named attribute.
func (f *For) Attr(key string) (string, bool) { return attr(f.Attributes, key) }

// TableRow is a tablerow loop.
type TableRow struct {
	Var        string
	Collection string
	Attributes []Attribute
	Body       []Stmt
	span       Span
}

func (t *TableRow) node()      {}
func (t *TableRow) stmt()      {}
func (t *TableRow) Span() Span { return t.span }

// Attr returns the markup of the named attribute.
func (t *TableRow) Attr(key string) (string, bool) { return attr(t.Attributes, key) }

func attr(attrs []Attribute, key string) (string, bool) {
	for _, a := range attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// Assign writes the result of a variable expression.
type Assign struct {
	Name  string
	Value *Variable
	span  Span
}

func (a *Assign) node()      {}
func (a *Assign) stmt()      {}
func (a *Assign) Span() Span { return a.span }

// Capture renders its body into a variable.
type Capture struct {
	Name string
	Body []Stmt
	span Span
}

func (c *Capture) node()      {}
func (c *Capture) stmt()      {}
func (c *Capture) Span() Span { return c.span }

// Counter is an increment or decrement tag.
type Counter struct {
	Name string
	Step int
	span Span
}

func (c *Counter) node()      {}
func (c *Counter) stmt()      {}
func (c *Counter) Span() Span { return c.span }

// Cycle outputs its values in turn. Group is a variable reference naming
// the cycle group.
type Cycle struct {
	Group  string
	Values []string
	span   Span
}

func (c *Cycle) node()      {}
func (c *Cycle) stmt()      {}
func (c *Cycle) Span() Span { return c.span }

// Block is a named, overridable region.
type Block struct {
	Name string
	Body []Stmt
	span Span
}

func (b *Block) node()      {}
func (b *Block) stmt()      {}
func (b *Block) Span() Span { return b.span }

// Extends makes the template inherit from another one. Body holds every
// node following the tag; only its blocks take effect.
type Extends struct {
	Template string
	Body     []Stmt
	span     Span
}

func (e *Extends) node()      {}
func (e *Extends) stmt()      {}
func (e *Extends) Span() Span { return e.span }

// Blocks returns the top-level blocks of the extending template.
func (e *Extends) Blocks() []*Block {
	var out []*Block
	for _, s := range e.Body {
		if b, ok := s.(*Block); ok {
			out = append(out, b)
		}
	}
	return out
}

// Include renders another template in place.
type Include struct {
	Template   string
	Variable   string
	Attributes []Attribute
	span       Span
}

func (i *Include) node()      {}
func (i *Include) stmt()      {}
func (i *Include) Span() Span { return i.span }

// Raw outputs its body verbatim. Comment blocks are Raw nodes with Hidden
// set.
type Raw struct {
	Text   string
	Hidden bool
	span   Span
}

func (r *Raw) node()      {}
func (r *Raw) stmt()      {}
func (r *Raw) Span() Span { return r.span }

// IfChanged outputs its body when it differs from the last rendering.
type IfChanged struct {
	Body []Stmt
	span Span
}

func (i *IfChanged) node()      {}
func (i *IfChanged) stmt()      {}
func (i *IfChanged) Span() Span { return i.span }

// Break leaves the innermost loop.
type Break struct{ span Span }

func (b *Break) node()      {}
func (b *Break) stmt()      {}
func (b *Break) Span() Span { return b.span }

// Continue skips to the next loop iteration.
type Continue struct{ span Span }

func (c *Continue) node()      {}
func (c *Continue) stmt()      {}
func (c *Continue) Span() Span { return c.span }

// Param changes a render setting. Key is lower case without underscores.
type Param struct {
	Key   string
	Value string
	span  Span
}

func (p *Param) node()      {}
func (p *Param) stmt()      {}
func (p *Param) Span() Span { return p.span }

// CustomTag is a host-registered tag. Impl is whatever the tag's Build
// function returned.
type CustomTag struct {
	Name   string
	Markup string
	Body   []Stmt
	Impl   any
	span   Span
}

func (c *CustomTag) node()      {}
func (c *CustomTag) stmt()      {}
func (c *CustomTag) Span() Span { return c.span }
