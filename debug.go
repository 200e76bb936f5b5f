package dotliquid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// excerptContext is the number of source lines shown around the failing
// line.
const excerptContext = 2

// writeReport writes the %+v form of err: the message, the failing source
// lines with a marker under the span, filter suggestions and the causes.
func writeReport(b *strings.Builder, err *Error) {
	b.WriteString(err.Error())
	if err.Source != "" && err.Span != nil {
		writeExcerpt(b, err)
	}
	if len(err.Suggestions) > 0 {
		fmt.Fprintf(b, "\n  = help: did you mean %s?", quoteList(err.Suggestions))
	}
	for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
		b.WriteString("\n  = caused by: ")
		if le, ok := cause.(*Error); ok {
			b.WriteString(le.Error())
			continue
		}
		b.WriteString(cause.Error())
	}
}

func writeExcerpt(b *strings.Builder, err *Error) {
	lines := strings.Split(err.Source, "\n")
	line := min(max(err.Span.StartLine, 1), len(lines))
	first, last := max(line-excerptContext, 1), min(line+excerptContext, len(lines))
	width := len(strconv.Itoa(last))
	gutter := strings.Repeat(" ", width)

	name := err.Name
	if name == "" {
		name = "<template>"
	}
	fmt.Fprintf(b, "\n%s--> %s:%d:%d\n%s |", gutter, name, line, err.Span.StartCol+1, gutter)
	for n := first; n <= last; n++ {
		fmt.Fprintf(b, "\n%*d | %s", width, n, lines[n-1])
		if n != line || err.Span.EndLine != err.Span.StartLine {
			continue
		}
		marks := max(err.Span.EndCol-err.Span.StartCol, 1)
		fmt.Fprintf(b, "\n%s | %s%s %s", gutter, strings.Repeat(" ", err.Span.StartCol), strings.Repeat("^", marks), err.Kind)
	}
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "'" + n + "'"
	}
	if len(quoted) == 1 {
		return quoted[0]
	}
	return strings.Join(quoted[:len(quoted)-1], ", ") + " or " + quoted[len(quoted)-1]
}
