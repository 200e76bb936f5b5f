package main

import (
	"fmt"
	"os"

	"github.com/lodgify/dotliquid/lexer"
)

type tokensCmd struct {
	Syntax string `default:"DotLiquid20" help:"Syntax compatibility level."`

	Template string `arg:"" help:"Template file." type:"existingfile"`
}

func (t *tokensCmd) Run(s streams) error {
	level, err := lexer.ParseSyntax(t.Syntax)
	if err != nil {
		return err
	}
	source, err := os.ReadFile(t.Template)
	if err != nil {
		return err
	}
	for _, tok := range lexer.Tokenize(string(source), level) {
		if _, err := fmt.Fprintf(s.Out, "%s\t%s\t%q\n", tok.Span, tok.Type, tok.Value); err != nil {
			return err
		}
	}
	return nil
}
