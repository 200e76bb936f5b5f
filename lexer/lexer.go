// Package lexer splits Liquid template source into text, output and tag
// segments, and splits variable references into path segments.
package lexer

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	literalShorthand = regexp.MustCompile(`^(?:\{\{\{\s?)(.*?)(?:\s*\}\}\})$`)
	commentShorthand = regexp.MustCompile(`^(?:\{\s?#\s?)(.*?)(?:\s*#\s?\})$`)
)

// Lexer tokenizes Liquid template source.
type Lexer struct {
	source string
	level  SyntaxCompatibility

	pos       int
	line      int
	col       int
	posOffset int

	tokens   []Token
	trimNext bool
}

// New creates a Lexer for the given source.
func New(source string, level SyntaxCompatibility) *Lexer {
	if !level.Strict() {
		source = ExpandShorthands(source)
	}
	return &Lexer{source: source, level: level, line: 1}
}

// Tokenize returns all tokens of source.
func Tokenize(source string, level SyntaxCompatibility) []Token {
	return New(source, level).All()
}

// ExpandShorthands rewrites the legacy `{{{ x }}}` literal and `{# x #}`
// comment shorthands when they span the whole source.
func ExpandShorthands(source string) string {
	if m := literalShorthand.FindStringSubmatch(source); m != nil {
		source = "{% literal %}" + m[1] + "{% endliteral %}"
	}
	if m := commentShorthand.FindStringSubmatch(source); m != nil {
		source = "{% comment %}" + m[1] + "{% endcomment %}"
	}
	return source
}

// Source returns the source being tokenized, after shorthand expansion.
func (l *Lexer) Source() string { return l.source }

// All tokenizes the whole source.
func (l *Lexer) All() []Token {
	src := l.source
	for l.pos < len(src) {
		start := nextStart(src, l.pos)
		if start < 0 {
			l.emitText(l.pos, len(src))
			break
		}
		if start > l.pos {
			l.emitText(l.pos, start)
		}
		var end int
		var terminated bool
		typ := TokenVariable
		if src[start+1] == '{' {
			end, terminated = l.scanVariable(start)
		} else {
			typ = TokenTag
			end, terminated = l.scanTag(start)
		}
		l.emitMarkup(typ, start, end, terminated)
	}
	return l.tokens
}

func nextStart(src string, from int) int {
	for i := from; i+1 < len(src); i++ {
		if src[i] == '{' && (src[i+1] == '{' || src[i+1] == '%') {
			return i
		}
	}
	return -1
}

// skipQuoted returns the index just past the quoted string starting at i,
// or i+1 when the quote is never closed.
func skipQuoted(src string, i int) int {
	q := src[i]
	if j := strings.IndexByte(src[i+1:], q); j >= 0 {
		return i + 1 + j + 1
	}
	return i + 1
}

func (l *Lexer) scanVariable(start int) (int, bool) {
	src := l.source
	for i := start + 2; i < len(src); {
		switch src[i] {
		case '\'', '"':
			i = skipQuoted(src, i)
		case '}':
			if i+1 < len(src) && src[i+1] == '}' {
				return i + 2, true
			}
			return i + 1, false
		default:
			i++
		}
	}
	return start + 2, false
}

func (l *Lexer) scanTag(start int) (int, bool) {
	src := l.source
	for i := start + 2; i+1 < len(src); {
		switch src[i] {
		case '\'', '"':
			i = skipQuoted(src, i)
		case '%':
			if src[i+1] == '}' {
				return i + 2, true
			}
			i++
		default:
			i++
		}
	}
	return start + 2, false
}

func (l *Lexer) span(start, end int) Span {
	s := Span{StartOffset: start, EndOffset: end}
	l.advance(start)
	s.StartLine, s.StartCol = l.line, l.col
	l.advance(end)
	s.EndLine, s.EndCol = l.line, l.col
	return s
}

func (l *Lexer) advance(to int) {
	for ; l.posOffset < to; l.posOffset++ {
		if l.source[l.posOffset] == '\n' {
			l.line++
			l.col = 0
		} else {
			l.col++
		}
	}
}

func (l *Lexer) emitText(start, end int) {
	text := l.source[start:end]
	if l.trimNext {
		text = l.trimLeading(text)
		l.trimNext = false
	}
	sp := l.span(start, end)
	l.pos = end
	if text == "" {
		return
	}
	l.tokens = append(l.tokens, Token{Type: TokenText, Value: text, Terminated: true, Span: sp})
}

func (l *Lexer) emitMarkup(typ TokenType, start, end int, terminated bool) {
	value := l.source[start:end]
	l.trimNext = false
	tok := Token{Type: typ, Value: value, Terminated: terminated, Span: l.span(start, end)}
	l.pos = end

	if terminated {
		markup := value[2 : len(value)-2]
		if strings.HasPrefix(markup, "-") {
			markup = markup[1:]
			l.trimPrevious()
		}
		if strings.HasSuffix(markup, "-") {
			markup = markup[:len(markup)-1]
			l.trimNext = true
		}
		tok.Markup = strings.TrimSpace(markup)
	} else {
		tok.Markup = strings.TrimSpace(value[2:])
	}
	l.tokens = append(l.tokens, tok)
}

func (l *Lexer) trimPrevious() {
	n := len(l.tokens)
	if n == 0 || l.tokens[n-1].Type != TokenText {
		return
	}
	var text string
	if l.level.Strict() {
		text = strings.TrimRightFunc(l.tokens[n-1].Value, unicode.IsSpace)
	} else {
		text = strings.TrimRight(l.tokens[n-1].Value, " \t")
	}
	if text == "" {
		l.tokens = l.tokens[:n-1]
		return
	}
	l.tokens[n-1].Value = text
}

func (l *Lexer) trimLeading(text string) string {
	if l.level.Strict() {
		return strings.TrimLeftFunc(text, unicode.IsSpace)
	}
	text = strings.TrimLeft(text, " \t")
	text = strings.TrimPrefix(text, "\r")
	return strings.TrimPrefix(text, "\n")
}
