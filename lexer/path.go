package lexer

import (
	"fmt"
	"iter"
	"regexp"
	"unicode"
	"unicode/utf8"
)

var legacyPath = regexp.MustCompile(`\[[^\]]+\]|[\p{L}\p{Nd}\p{Pc}\-]+\??`)

// PathError reports a variable reference the strict scanner rejected.
type PathError struct {
	Markup string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("Variable '%s' was not properly terminated", e.Markup)
}

// PathSegments splits a variable reference such as `a.b[c][0]` into its
// segments ("a", "b", "[c]", "[0]") using the tokenizer of the given level.
func PathSegments(markup string, level SyntaxCompatibility) iter.Seq2[string, error] {
	if level.Strict() {
		return StrictPathSegments(markup)
	}
	return LegacyPathSegments(markup)
}

// LegacyPathSegments scans markup with the legacy regular expression.
// Characters that match neither a name nor a bracket are skipped.
func LegacyPathSegments(markup string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, m := range legacyPath.FindAllString(markup, -1) {
			if !yield(m, nil) {
				return
			}
		}
	}
}

func isNameRune(r rune) bool {
	return r == '_' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// StrictPathSegments scans markup segment by segment. Bracketed segments
// run to the matching closing bracket outside a quoted string. Anything that
// is not a name, a bracket or a dot between them fails with a *PathError.
func StrictPathSegments(markup string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		fail := func() { yield("", &PathError{Markup: markup}) }
		i := 0
		for i < len(markup) {
			c := markup[i]
			switch {
			case c == '[':
				end := closingBracket(markup, i)
				if end < 0 {
					fail()
					return
				}
				if !yield(markup[i:end+1], nil) {
					return
				}
				i = end + 1
			default:
				j := i
				for j < len(markup) {
					r, size := utf8.DecodeRuneInString(markup[j:])
					if !isNameRune(r) {
						break
					}
					j += size
				}
				if j == i {
					fail()
					return
				}
				if !yield(markup[i:j], nil) {
					return
				}
				i = j
			}
			if i >= len(markup) {
				return
			}
			switch markup[i] {
			case '[':
			case '.':
				i++
				if i >= len(markup) || markup[i] == '.' || markup[i] == '[' {
					fail()
					return
				}
			default:
				fail()
				return
			}
		}
	}
}

// closingBracket returns the index of the ] matching the [ at open.
// Brackets nest; quoted strings are skipped.
func closingBracket(s string, open int) int {
	depth := 0
	for i := open + 1; i < len(s); i++ {
		switch s[i] {
		case '\'', '"':
			j := indexFrom(s, i+1, s[i])
			if j < 0 {
				return -1
			}
			i = j
		case '[':
			depth++
		case ']':
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return -1
}

func indexFrom(s string, from int, c byte) int {
	for i := from; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}
