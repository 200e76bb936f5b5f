package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"golang.org/x/sync/errgroup"

	"github.com/lodgify/dotliquid"
	"github.com/lodgify/dotliquid/culture"
	"github.com/lodgify/dotliquid/filesystem"
	"github.com/lodgify/dotliquid/lexer"
	"github.com/lodgify/dotliquid/naming"
)

type renderCmd struct {
	Vars          string            `help:"YAML or JSON file with the template variables." type:"existingfile"`
	Set           map[string]string `help:"Set a variable. Values are read as YAML scalars."                         mapsep:"none" placeholder:"KEY=VALUE"`
	IncludeDir    string            `help:"Directory of partials for include and extends."                         type:"existingdir"`
	Syntax        string            `default:"DotLiquid20"                                                         help:"Syntax compatibility level."`
	Naming        string            `default:"ruby"                                                                enum:"ruby,csharp"                 help:"Naming convention of filters and members."`
	Culture       string            `help:"Culture of number and date formatting, e.g. en-US."`
	Errors        string            `default:"display"                                                             enum:"display,rethrow,suppress"    help:"What to do with render errors."`
	RubyDates     bool              `help:"Use strftime formats in the date filter."`
	Timeout       time.Duration     `help:"Abort a render that takes longer."`
	MaxIterations int               `help:"Abort a render after this many loop iterations."                        name:"max-iterations"`
	Out           string            `help:"Write each result to a file in this directory instead of stdout."       type:"path"`
	Jobs          int               `default:"4"                                                                   help:"Templates rendered at once." short:"j"`

	Templates []string `arg:"" help:"Template files." type:"existingfile"`
}

// engine builds the engine the flags describe.
func (r *renderCmd) engine(logger *slog.Logger) (*dotliquid.Engine, error) {
	level, err := lexer.ParseSyntax(r.Syntax)
	if err != nil {
		return nil, err
	}
	conv, ok := naming.Parse(r.Naming)
	if !ok {
		return nil, fmt.Errorf("unknown naming convention %q", r.Naming)
	}
	cult, err := culture.Parse(r.Culture)
	if err != nil {
		return nil, err
	}
	mode, err := dotliquid.ParseErrorsOutputMode(r.Errors)
	if err != nil {
		return nil, err
	}

	var fs filesystem.FileSystem = filesystem.Blank{}
	if r.IncludeDir != "" {
		fs = dotliquid.NewCachingFileSystem(filesystem.NewLocal(r.IncludeDir))
	}
	return dotliquid.New(
		dotliquid.WithSyntaxCompatibility(level),
		dotliquid.WithNamingConvention(conv),
		dotliquid.WithCulture(cult),
		dotliquid.WithErrorsOutputMode(mode),
		dotliquid.WithRubyDateFormat(r.RubyDates),
		dotliquid.WithTimeout(r.Timeout),
		dotliquid.WithMaxIterations(r.MaxIterations),
		dotliquid.WithFileSystem(fs),
		dotliquid.WithLogger(logger),
	), nil
}

// variables loads --vars and applies --set on top.
func (r *renderCmd) variables() (map[string]any, error) {
	vars := map[string]any{}
	if r.Vars != "" {
		data, err := os.ReadFile(r.Vars)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &vars); err != nil {
			return nil, fmt.Errorf("%s: %w", r.Vars, err)
		}
		if vars == nil {
			vars = map[string]any{}
		}
	}
	for k, v := range r.Set {
		var parsed any
		if err := yaml.Unmarshal([]byte(v), &parsed); err != nil || parsed == nil {
			parsed = v
		}
		vars[k] = parsed
	}
	return vars, nil
}

// outputPath is the file the result of template is written to with --out.
func (r *renderCmd) outputPath(template string) string {
	base := filepath.Base(template)
	if ext := filepath.Ext(base); ext == ".liquid" {
		base = strings.TrimSuffix(base, ext)
	} else {
		base += ".out"
	}
	return filepath.Join(r.Out, base)
}

func (r *renderCmd) Run(ctx context.Context, logger *slog.Logger, s streams) error {
	e, err := r.engine(logger)
	if err != nil {
		return err
	}
	vars, err := r.variables()
	if err != nil {
		return err
	}
	if r.Out != "" {
		if err := os.MkdirAll(r.Out, 0o755); err != nil {
			return err
		}
	}

	results := make([]string, len(r.Templates))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.Jobs, 1))
	for i, path := range r.Templates {
		g.Go(func() error {
			out, err := r.renderFile(ctx, e, path, vars)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if r.Out == "" {
				results[i] = out
				return nil
			}
			dst := r.outputPath(path)
			logger.Info("writing", "template", path, "file", dst)
			return os.WriteFile(dst, []byte(out), 0o644)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, out := range results {
		if _, err := io.WriteString(s.Out, out); err != nil {
			return err
		}
	}
	return nil
}

func (r *renderCmd) renderFile(ctx context.Context, e *dotliquid.Engine, path string, vars map[string]any) (string, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	tmpl, err := e.ParseNamed(path, string(source))
	if err != nil {
		return "", err
	}
	tmpl.MakeThreadSafe()
	return tmpl.RenderParams(dotliquid.RenderParams{LocalVariables: vars, Context: ctx})
}
