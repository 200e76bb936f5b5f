// Package naming implements the naming conventions that decide how names
// written in a template map onto registered filters, operators, hash keys
// and drop members.
package naming

import (
	"strings"

	"github.com/iancoleman/strcase"
)

// Convention compares template-side names with host-side names.
type Convention interface {
	// OperatorEqual reports whether used, as written in a template, refers
	// to the registered name.
	OperatorEqual(used, registered string) bool

	// KeyEqual compares two hash keys.
	KeyEqual(a, b string) bool

	// MemberName returns the template-side name of a Go identifier.
	MemberName(goName string) string

	// CaseInsensitive reports whether KeyEqual folds case.
	CaseInsensitive() bool
}

// Ruby is the default convention: snake_case names, case-insensitive keys.
type Ruby struct{}

// OperatorEqual implements Convention.
func (Ruby) OperatorEqual(used, registered string) bool {
	if used == registered {
		return true
	}
	return used == strings.ToLower(registered) || used == strcase.ToSnake(registered)
}

// KeyEqual implements Convention.
func (Ruby) KeyEqual(a, b string) bool { return strings.EqualFold(a, b) }

// MemberName implements Convention.
func (Ruby) MemberName(goName string) string { return strcase.ToSnake(goName) }

// CaseInsensitive implements Convention.
func (Ruby) CaseInsensitive() bool { return true }

// CSharp accepts PascalCase and camelCase names and compares keys exactly.
type CSharp struct{}

// OperatorEqual implements Convention.
func (CSharp) OperatorEqual(used, registered string) bool {
	switch used {
	case registered, strings.ToLower(registered):
		return true
	}
	return used == strcase.ToCamel(registered) || used == strcase.ToLowerCamel(registered)
}

// KeyEqual implements Convention.
func (CSharp) KeyEqual(a, b string) bool { return a == b }

// MemberName implements Convention.
func (CSharp) MemberName(goName string) string { return goName }

// CaseInsensitive implements Convention.
func (CSharp) CaseInsensitive() bool { return false }

// Parse returns the convention with the given name ("ruby" or "csharp").
func Parse(name string) (Convention, bool) {
	switch strings.ToLower(name) {
	case "ruby", "":
		return Ruby{}, true
	case "csharp", "c#", "dotnet":
		return CSharp{}, true
	}
	return nil, false
}

// Name returns the canonical name of a convention.
func Name(c Convention) string {
	switch c.(type) {
	case CSharp, *CSharp:
		return "csharp"
	default:
		return "ruby"
	}
}
