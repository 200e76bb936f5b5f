package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/lodgify/dotliquid/value"
)

// Local reads templates from a directory on disk.
//
// A template named "product" is read from Root/_product.liquid and
// "shop/product" from Root/shop/_product.liquid. Names are relative to
// Root and may not leave it.
type Local struct {
	Root    string
	Pattern string
}

// NewLocal returns a Local file system rooted at root using DefaultPattern.
func NewLocal(root string) *Local {
	return &Local{Root: root, Pattern: DefaultPattern}
}

// TemplateName implements Resolver.
func (l *Local) TemplateName(s value.State, templateName string) (string, error) {
	return resolveName(s, templateName)
}

// ReadTemplateFile implements FileSystem.
func (l *Local) ReadTemplateFile(s value.State, templateName string) (string, error) {
	name, err := resolveName(s, templateName)
	if err != nil {
		return "", err
	}
	full, err := l.FullPath(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &Error{Message: fmt.Sprintf("Template file '%s' not found", name), Cause: err}
		}
		return "", &Error{Message: err.Error(), Cause: err}
	}
	return string(data), nil
}

// FullPath returns the file that holds the template with the given
// resolved name.
func (l *Local) FullPath(name string) (string, error) {
	if !legalName.MatchString(name) {
		return "", errorf("Illegal template name '%s'", name)
	}
	root, err := filepath.Abs(l.Root)
	if err != nil {
		return "", &Error{Message: err.Error(), Cause: err}
	}
	dir, file := path.Split(name)
	full := filepath.Join(root, filepath.FromSlash(dir), fmt.Sprintf(l.pattern(), file))
	if rel, err := filepath.Rel(root, full); err != nil || strings.HasPrefix(rel, "..") {
		return "", errorf("Illegal template path '%s'", full)
	}
	return full, nil
}

// NameOf is the inverse of FullPath: it returns the template name stored
// in file, or false if the file does not follow the pattern.
func (l *Local) NameOf(file string) (string, bool) {
	root, err := filepath.Abs(l.Root)
	if err != nil {
		return "", false
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	dir, base := path.Split(filepath.ToSlash(rel))
	return unpattern(l.pattern(), dir, base)
}

func (l *Local) pattern() string {
	if l.Pattern == "" {
		return DefaultPattern
	}
	return l.Pattern
}

// unpattern strips the literal prefix and suffix of pattern from base.
func unpattern(pattern, dir, base string) (string, bool) {
	prefix, suffix, ok := strings.Cut(pattern, "%s")
	if !ok || !strings.HasPrefix(base, prefix) || !strings.HasSuffix(base, suffix) {
		return "", false
	}
	name := strings.TrimSuffix(strings.TrimPrefix(base, prefix), suffix)
	if name == "" {
		return "", false
	}
	return dir + name, true
}
