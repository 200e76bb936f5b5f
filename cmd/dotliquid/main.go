// Command dotliquid renders Liquid templates from the command line.
package main

import (
	"context"
	"log/slog"
	"os"
)

func main() {
	err := run(context.Background(), streams{Out: os.Stdout, Err: os.Stderr}, os.Exit, os.Args[1:]...)
	if err != nil {
		slog.Error("run failed", slog.Any("error", err))
		os.Exit(1)
	}
}
