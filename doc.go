// Package dotliquid implements the Liquid template language with the
// DotLiquid dialect: whitespace control, the param tag, named filter sets,
// .NET and Ruby date formats, culture-aware number formatting and three
// syntax compatibility levels.
//
// # Quick Start
//
//	tmpl, err := dotliquid.Parse("Hello {{ name | upcase }}!")
//	if err != nil {
//	    return err
//	}
//	out, _ := tmpl.Render(map[string]any{"name": "world"})
//	fmt.Println(out) // Hello WORLD!
//
// # Template Syntax
//
//   - Output: {{ product.title | escape }}
//   - Tags: {% if user %}...{% elsif guest %}...{% else %}...{% endif %}
//   - Whitespace control: {%- ... -%} and {{- ... -}}
//   - Comments: {% comment %}...{% endcomment %}
//
// The standard tags are assign, capture, increment, decrement, cycle, if,
// unless, case, for, tablerow, break, continue, ifchanged, raw, comment,
// literal, include, extends, block and param.
//
// # Engine Configuration
//
// An Engine holds the settings shared by the templates it parses. The
// package-level Parse and MustParse use Default.
//
//	e := dotliquid.New(
//	    dotliquid.WithSyntaxCompatibility(lexer.DotLiquid22),
//	    dotliquid.WithNamingConvention(naming.CSharp{}),
//	    dotliquid.WithFileSystem(filesystem.NewLocal("templates")),
//	    dotliquid.WithTimeout(time.Second),
//	)
//
// Every render snapshots the engine, so changing it while templates render
// is safe. RenderParams overrides most settings for a single render.
//
// # Custom Filters
//
// Filters are the exported methods of a receiver. The naming convention
// maps method names to filter names, so with the default Ruby convention
// Money is money and StripHTML is strip_html:
//
//	type moneyFilters struct{}
//
//	func (moneyFilters) Money(input float64) string {
//	    return fmt.Sprintf(" %.2f$ ", input)
//	}
//
//	e.RegisterFilter(moneyFilters{})
//	// {{ price | money }}
//
// A filter may take a *Context first and may return an error as its
// second result. RegisterFilterFunc registers a single function, and
// RegisterSafelist registers a filter set that templates enable with
// {% param using = 'Name' %}.
//
// # Error Handling
//
// Parse errors are returned by Parse as *Error values of kind ErrSyntax.
// Errors raised while rendering a node are handled according to the
// errors output mode: written inline as "Liquid error: ..." (the default),
// dropped, or returned. Template.Errors reports them either way.
//
// Exceeding the iteration budget or the timeout, cancelling the render's
// context and host interrupts always abort the render:
//
//	_, err := tmpl.RenderParams(dotliquid.RenderParams{MaxIterations: 1000})
//	if dotliquid.KindOf(err) == dotliquid.ErrMaximumIterations {
//	    // ...
//	}
//
// Formatting an *Error with %+v prints the failing source line.
//
// # Values
//
// Templates read maps, slices, strings, numbers, booleans, time.Time,
// decimal.Decimal and uuid.UUID directly. Other host types must opt in by
// embedding value.Drop, implementing value.Liquidizable or
// value.Allowlisted, or being registered with RegisterSafeType or
// AllowMembers.
//
// # Template Inheritance
//
// A template extends another and overrides its blocks:
//
//	{% extends 'base' %}
//	{% block title %}Products - {{ block.super }}{% endblock %}
//
// Partials for include and extends come from the engine's file system.
// CachingFileSystem keeps parsed partials between renders.
package dotliquid
