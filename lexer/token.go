package lexer

import "fmt"

// TokenType classifies template segments.
type TokenType int

const (
	TokenText TokenType = iota
	TokenVariable
	TokenTag
)

func (t TokenType) String() string {
	switch t {
	case TokenText:
		return "text"
	case TokenVariable:
		return "variable"
	case TokenTag:
		return "tag"
	default:
		return "unknown"
	}
}

// Span represents a location range in source code. Lines are 1-indexed,
// columns 0-indexed.
type Span struct {
	StartLine   int
	StartCol    int
	StartOffset int
	EndLine     int
	EndCol      int
	EndOffset   int
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d", s.StartLine, s.StartCol)
}

// Token is one segment of a template.
type Token struct {
	Type TokenType
	// Value is the segment exactly as written, delimiters included.
	Value string
	// Markup is the content between the delimiters with whitespace-control
	// markers removed. Empty for text.
	Markup string
	// Terminated is false for an output or tag segment that is missing its
	// closing delimiter.
	Terminated bool
	Span       Span
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)", t.Type, t.Value)
}
