package lexer

import (
	"fmt"
	"strings"
)

// SyntaxCompatibility selects among the historically shipped parsing and
// formatting behaviors.
type SyntaxCompatibility int

const (
	DotLiquid20 SyntaxCompatibility = 20
	DotLiquid21 SyntaxCompatibility = 21
	DotLiquid22 SyntaxCompatibility = 22
)

func (s SyntaxCompatibility) String() string {
	switch s {
	case DotLiquid20:
		return "DotLiquid20"
	case DotLiquid21:
		return "DotLiquid21"
	case DotLiquid22:
		return "DotLiquid22"
	default:
		return fmt.Sprintf("SyntaxCompatibility(%d)", int(s))
	}
}

// Strict reports whether the level uses the strict tokenizers.
func (s SyntaxCompatibility) Strict() bool { return s >= DotLiquid22 }

// ParseSyntax parses "DotLiquid20", "dotliquid22", "22" and the like.
func ParseSyntax(name string) (SyntaxCompatibility, error) {
	n := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), "dotliquid")
	switch n {
	case "20":
		return DotLiquid20, nil
	case "21":
		return DotLiquid21, nil
	case "22":
		return DotLiquid22, nil
	}
	return 0, fmt.Errorf("Syntax '%s' is not supported", name)
}
