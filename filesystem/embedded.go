package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/lodgify/dotliquid/value"
)

// Embedded reads templates from an fs.FS, typically an embed.FS compiled
// into the host binary. Naming follows Local.
type Embedded struct {
	FS      fs.FS
	Root    string
	Pattern string
}

// NewEmbedded returns an Embedded file system reading below root in fsys.
func NewEmbedded(fsys fs.FS, root string) *Embedded {
	return &Embedded{FS: fsys, Root: root, Pattern: DefaultPattern}
}

// TemplateName implements Resolver.
func (e *Embedded) TemplateName(s value.State, templateName string) (string, error) {
	return resolveName(s, templateName)
}

// ReadTemplateFile implements FileSystem.
func (e *Embedded) ReadTemplateFile(s value.State, templateName string) (string, error) {
	name, err := resolveName(s, templateName)
	if err != nil {
		return "", err
	}
	pattern := e.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	dir, file := path.Split(name)
	full := path.Join(e.Root, dir, fmt.Sprintf(pattern, file))
	if !fs.ValidPath(full) {
		return "", errorf("Illegal template path '%s'", full)
	}
	data, err := fs.ReadFile(e.FS, full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &Error{Message: fmt.Sprintf("Template file '%s' not found", name), Cause: err}
		}
		return "", &Error{Message: err.Error(), Cause: err}
	}
	return string(data), nil
}
