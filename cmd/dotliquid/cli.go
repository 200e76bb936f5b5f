package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/alecthomas/kong"
	"github.com/pkg/profile"
)

const envPrefix = "DOTLIQUID_"

// streams are the writers commands print to.
type streams struct {
	Out io.Writer
	Err io.Writer
}

// globals are the flags shared by every command.
type globals struct {
	LogLevel string `default:"warn" enum:"debug,info,warn,error" help:"Set log level." name:"log-level"`
	Profile  string `default:"none" enum:"none,cpu,mem"          help:"Write a cpu or mem profile to the working directory."`
}

// CLI is the command line of dotliquid.
type CLI struct {
	Globals globals `embed:""`

	Render renderCmd `cmd:"" help:"Render templates."`
	Tokens tokensCmd `cmd:"" help:"Print the token stream of a template."`
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelWarn
	}
	return l
}

// startProfile starts the profiler selected with --profile and returns
// the function that stops it.
func (g *globals) startProfile() func() {
	var mode func(*profile.Profile)
	switch g.Profile {
	case "cpu":
		mode = profile.CPUProfile
	case "mem":
		mode = profile.MemProfile
	default:
		return func() {}
	}
	p := profile.Start(mode, profile.ProfilePath("."), profile.Quiet, profile.NoShutdownHook)
	return p.Stop
}

// run parses args and executes the selected command. exit is called by
// kong for --help and usage errors.
func run(ctx context.Context, s streams, exit func(int), args ...string) error {
	var cli CLI

	parser, err := kong.New(&cli,
		kong.Name("dotliquid"),
		kong.Description("Render Liquid templates."),
		kong.UsageOnError(),
		kong.Exit(exit),
		kong.Writers(s.Out, s.Err),
		kong.DefaultEnvars(envPrefix[:len(envPrefix)-1]),
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true, Summary: true}),
	)
	if err != nil {
		return err
	}

	ktx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(s.Err, &slog.HandlerOptions{Level: parseLevel(cli.Globals.LogLevel)}))
	defer cli.Globals.startProfile()()

	return ktx.Run(&cli.Globals, logger, s)
}
