// Package testutil loads the data-driven rendering cases of the test
// suite.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Case is one rendering case: a template, its variables and the expected
// output or error.
type Case struct {
	Name     string         `yaml:"name"`
	Template string         `yaml:"template"`
	Vars     map[string]any `yaml:"vars"`
	Want     string         `yaml:"want"`
	// WantError, when set, is a substring of the expected render error.
	WantError string `yaml:"error"`
	// Partials are served to include and extends by name.
	Partials map[string]string `yaml:"partials"`
	Options  Options           `yaml:"options"`
	Skip     string            `yaml:"skip"`
}

// Options are the engine and render settings of a case. Empty fields
// keep the defaults.
type Options struct {
	Syntax     string `yaml:"syntax"`
	Naming     string `yaml:"naming"`
	Culture    string `yaml:"culture"`
	Errors     string `yaml:"errors"`
	RubyDates  bool   `yaml:"ruby_dates"`
	ThreadSafe bool   `yaml:"thread_safe"`
	Renders    int    `yaml:"renders"`
}

// LoadCases reads the cases of one YAML file, a list of Case documents.
// Cases without a name are named after their position.
func LoadCases(path string) ([]Case, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cases []Case
	if err := yaml.Unmarshal(content, &cases); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for i := range cases {
		if cases[i].Name == "" {
			cases[i].Name = fmt.Sprintf("case%d", i)
		}
	}
	return cases, nil
}

// GlobCases loads every case file matching pattern, keyed by file name
// without extension.
func GlobCases(pattern string) (map[string][]Case, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]Case, len(paths))
	for _, p := range paths {
		cases, err := LoadCases(p)
		if err != nil {
			return nil, err
		}
		out[strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))] = cases
	}
	return out, nil
}

// Diff returns a readable comparison of want and got, or "" when they
// are equal. Missing trailing newlines are marked with ⏎.
func Diff(want, got string) string {
	if want == got {
		return ""
	}
	mark := func(s string) string {
		if strings.HasSuffix(s, "\n") {
			return s
		}
		return s + "⏎\n"
	}
	return fmt.Sprintf("--- want\n%s--- got\n%s", mark(want), mark(got))
}
