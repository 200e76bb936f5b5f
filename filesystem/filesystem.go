// Package filesystem provides the template sources used by the include and
// extends tags.
//
// A template name as written in a tag ({% include 'product' %} or
// {% include product_template %}) is resolved against the render state
// before a file system looks it up, so names may come from variables.
package filesystem

import (
	"fmt"
	"regexp"

	"github.com/lodgify/dotliquid/value"
)

// DefaultPattern maps a template name to its file name. Partials live in
// files named after the template with a leading underscore.
const DefaultPattern = "_%s.liquid"

// FileSystem reads template sources.
type FileSystem interface {
	// ReadTemplateFile returns the source of the template named by
	// templateName, a variable reference or quoted literal.
	ReadTemplateFile(s value.State, templateName string) (string, error)
}

// Resolver is implemented by file systems that can tell the resolved name
// of a template without reading it. Caches key their entries on it.
type Resolver interface {
	TemplateName(s value.State, templateName string) (string, error)
}

// Error is returned for unreadable or illegal templates.
type Error struct {
	Message string
	Cause   error
}

func (e *Error) Error() string { return e.Message }

// Unwrap returns the underlying I/O error, if any.
func (e *Error) Unwrap() error { return e.Cause }

func errorf(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// Blank refuses every include. It is the default file system.
type Blank struct{}

// ReadTemplateFile implements FileSystem.
func (Blank) ReadTemplateFile(value.State, string) (string, error) {
	return "", errorf("Error - This liquid context does not allow includes.")
}

var legalName = regexp.MustCompile(`^[^./][a-zA-Z0-9_/]+$`)

// resolveName evaluates a template name against the render state and
// checks that it is a legal relative path.
func resolveName(s value.State, templateName string) (string, error) {
	v, err := s.Get(templateName)
	if err != nil {
		return "", err
	}
	name, ok := v.(string)
	if !ok || !legalName.MatchString(name) {
		return "", errorf("Illegal template name '%s'", templateName)
	}
	return name, nil
}
