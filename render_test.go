package dotliquid

import (
	"context"
	"io"
	"iter"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodgify/dotliquid/parser"
	"github.com/lodgify/dotliquid/value"
)

type greetTag struct{ who string }

func (t *greetTag) Render(c *Context, w io.Writer) error {
	v, err := c.Get(t.who)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, "hello "+value.ToString(v))
	return err
}

type upcaseTag struct{ body []parser.Stmt }

func (t *upcaseTag) Render(c *Context, w io.Writer) error {
	var sb strings.Builder
	if err := c.RenderAll(&sb, t.body); err != nil {
		return err
	}
	_, err := io.WriteString(w, strings.ToUpper(sb.String()))
	return err
}

type funcTag func(c *Context, w io.Writer) error

func (f funcTag) Render(c *Context, w io.Writer) error { return f(c, w) }

func TestCustomTags(t *testing.T) {
	e := New()
	e.RegisterTag("greet", func(name, markup string, _ []parser.Stmt) (Tag, error) {
		return &greetTag{who: strings.TrimSpace(markup)}, nil
	})
	e.RegisterBlockTag("upcase", func(name, markup string, body []parser.Stmt) (Tag, error) {
		return &upcaseTag{body: body}, nil
	})

	tmpl, err := e.Parse("{% greet name %}, {% upcase %}{% greet 'you' %}{% endupcase %}")
	require.NoError(t, err)
	out, err := tmpl.Render(map[string]any{"name": "world"})
	require.NoError(t, err)
	assert.Equal(t, "hello world, HELLO YOU", out)

	_, err = e.Parse("{% upcase %}never closed")
	require.Error(t, err)
	assert.ErrorContains(t, err, "upcase tag was never closed")

	_, err = New().Parse("{% greet name %}")
	require.Error(t, err)
	assert.ErrorContains(t, err, "Unknown tag 'greet'")
}

func TestCustomTagFactoryError(t *testing.T) {
	e := New()
	e.RegisterTag("strict", func(name, markup string, _ []parser.Stmt) (Tag, error) {
		if markup != "" {
			return nil, Errorf(ErrSyntax, "Syntax Error in '%s' tag - Valid syntax: %s", name, name)
		}
		return funcTag(func(*Context, io.Writer) error { return nil }), nil
	})
	_, err := e.Parse("{% strict %}")
	require.NoError(t, err)
	_, err = e.Parse("{% strict nope %}")
	require.Error(t, err)
	assert.ErrorContains(t, err, "Valid syntax: strict")
}

func TestBreakOutsideLoopEndsRender(t *testing.T) {
	out, err := MustParse("a{% break %}b").Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "a", out)
}

func TestBreakInNestedLoops(t *testing.T) {
	tmpl := MustParse("{% for i in (1..3) %}{% for j in (1..3) %}{% if j == 2 %}{% break %}{% endif %}{{ i }}{{ j }} {% endfor %}{% endfor %}")
	out, err := tmpl.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "11 21 31 ", out)
}

func TestHostInterruptAbortsRender(t *testing.T) {
	e := New()
	stop := &InterruptError{Message: "stop"}
	e.RegisterTag("stop", func(string, string, []parser.Stmt) (Tag, error) {
		return funcTag(func(*Context, io.Writer) error { return stop }), nil
	})
	tmpl, err := e.Parse("a{% for i in (1..3) %}{{ i }}{% stop %}{% endfor %}b")
	require.NoError(t, err)

	out, err := tmpl.Render(nil)
	require.ErrorIs(t, err, stop)
	assert.Equal(t, ErrInterrupt, KindOf(err))
	assert.Equal(t, "a1", out)
}

func TestMaximumIterations(t *testing.T) {
	e := New(WithMaxIterations(5))
	tmpl, err := e.Parse("{% for i in (1..10) %}{{ i }}{% endfor %}")
	require.NoError(t, err)

	out, err := tmpl.Render(nil)
	require.Error(t, err)
	assert.Equal(t, ErrMaximumIterations, KindOf(err))
	assert.Equal(t, "12345", out)

	out, err = tmpl.RenderParams(RenderParams{MaxIterations: 20})
	require.NoError(t, err)
	assert.Equal(t, "12345678910", out)
}

// endless enumerates 1, 2, 3 and so on without end.
type endless struct{}

func (endless) Enumerate() iter.Seq[any] {
	return func(yield func(any) bool) {
		for i := 1; yield(i); i++ {
		}
	}
}

func TestMaximumIterationsBoundsLargeCollections(t *testing.T) {
	for _, tt := range []struct {
		name, source, want string
	}{
		{"range", "{% for i in (1..2000000000) %}{{ i }} {% endfor %}", "1 2 3 "},
		{"reversed range", "{% for i in (1..2000000000) reversed %}{{ i }} {% endfor %}", "2000000000 1999999999 1999999998 "},
		{"offset and limit", "{% for i in (1..2000000000) offset:10 limit:1000000000 %}{{ i }} {% endfor %}", "11 12 13 "},
		{"table row", "{% tablerow i in (1..2000000000) %}{{ i }}{% endtablerow %}", `<tr class="row1">` + "\n" + `<td class="col1">1</td><td class="col2">2</td><td class="col3">3</td>`},
		{"enumerable", "{% for i in numbers %}{{ i }} {% endfor %}", "1 2 3 "},
	} {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := MustParse(tt.source)
			var before, after runtime.MemStats
			runtime.ReadMemStats(&before)
			start := time.Now()
			out, err := tmpl.RenderParams(RenderParams{
				LocalVariables: map[string]any{"numbers": endless{}},
				MaxIterations:  3,
			})
			elapsed := time.Since(start)
			runtime.ReadMemStats(&after)

			require.Error(t, err)
			assert.Equal(t, ErrMaximumIterations, KindOf(err))
			assert.Equal(t, tt.want, out)
			assert.Less(t, elapsed, time.Second)
			assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(16<<20))
		})
	}
}

func TestTimeoutWhileGatheringCollection(t *testing.T) {
	tmpl := MustParse("{% for i in numbers reversed %}{{ i }}{% endfor %}")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	out, err := tmpl.RenderParams(RenderParams{
		LocalVariables: map[string]any{"numbers": endless{}},
		MaxIterations:  3,
		Context:        ctx,
	})
	require.Error(t, err)
	assert.Equal(t, ErrTimeout, KindOf(err))
	assert.Empty(t, out)
}

type panickyDrop struct {
	value.Drop
	seen map[string]bool
}

func (d *panickyDrop) Visit() bool {
	d.seen["visit"] = true
	return true
}

func TestPanickingDropFailsItsNodeOnly(t *testing.T) {
	tmpl := MustParse("a{{ d.visit }}b{% if d.visit %}c{% endif %}")
	var (
		out string
		err error
	)
	require.NotPanics(t, func() {
		out, err = tmpl.Render(map[string]any{"d": &panickyDrop{}})
	})
	require.NoError(t, err)
	assert.Equal(t, "aLiquid error: assignment to entry in nil mapbLiquid error: assignment to entry in nil map", out)
	require.Len(t, tmpl.Errors(), 2)
	assert.Equal(t, ErrRuntime, KindOf(tmpl.Errors()[0]))
}

func TestMaximumIterationsCountsTableRows(t *testing.T) {
	tmpl := MustParse("{% tablerow i in (1..10) %}{{ i }}{% endtablerow %}")
	_, err := tmpl.RenderParams(RenderParams{MaxIterations: 3})
	require.Error(t, err)
	assert.Equal(t, ErrMaximumIterations, KindOf(err))
}

func TestMaximumIterationsIsNotHandledByErrorsMode(t *testing.T) {
	tmpl := MustParse("{% for i in (1..10) %}{% endfor %}")
	_, err := tmpl.RenderParams(RenderParams{MaxIterations: 3, ErrorsOutputMode: ErrorsSuppress})
	require.Error(t, err)
	assert.Equal(t, ErrMaximumIterations, KindOf(err))
}

func TestTimeout(t *testing.T) {
	e := New(WithTimeout(20 * time.Millisecond))
	e.RegisterTag("nap", func(string, string, []parser.Stmt) (Tag, error) {
		return funcTag(func(*Context, io.Writer) error {
			time.Sleep(5 * time.Millisecond)
			return nil
		}), nil
	})
	tmpl, err := e.Parse("{% for i in (1..1000) %}{% nap %}{% endfor %}")
	require.NoError(t, err)

	_, err = tmpl.Render(nil)
	require.Error(t, err)
	assert.Equal(t, ErrTimeout, KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRestartTimeout(t *testing.T) {
	e := New(WithTimeout(30 * time.Millisecond))
	e.RegisterTag("nap", func(string, string, []parser.Stmt) (Tag, error) {
		return funcTag(func(c *Context, _ io.Writer) error {
			time.Sleep(10 * time.Millisecond)
			c.RestartTimeout()
			return nil
		}), nil
	})
	tmpl, err := e.Parse("{% for i in (1..6) %}{% nap %}{{ i }}{% endfor %}")
	require.NoError(t, err)

	out, err := tmpl.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "123456", out)
}

func TestCancelledRender(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := MustParse("a{{ 'b' }}").RenderParams(RenderParams{Context: ctx})
	require.Error(t, err)
	assert.Equal(t, ErrCancelled, KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out)
}

func TestContextDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()
	_, err := MustParse("{{ 'b' }}").RenderParams(RenderParams{Context: ctx})
	require.Error(t, err)
	assert.Equal(t, ErrTimeout, KindOf(err))
}

func TestRenderErrorsCarryLocation(t *testing.T) {
	e := New()
	tmpl, err := e.ParseNamed("page", "line one\n{% if 1 =! 2 %}x{% endif %}")
	require.NoError(t, err)

	out, err := tmpl.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "line one\nLiquid error: Unknown operator =!", out)

	errs := tmpl.Errors()
	require.Len(t, errs, 1)
	var le *Error
	require.ErrorAs(t, errs[0], &le)
	assert.Equal(t, "page", le.Name)
	require.NotNil(t, le.Span)
	assert.Equal(t, 2, le.Span.StartLine)
}
