package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	exit := func(code int) { t.Fatalf("unexpected exit %d: %s", code, errOut.String()) }
	err := run(context.Background(), streams{Out: &out, Err: &errOut}, exit, args...)
	return out.String(), errOut.String(), err
}

func TestRenderCommand(t *testing.T) {
	dir := t.TempDir()
	vars := writeFile(t, dir, "vars.yaml", "user:\n  name: tobi\nitems: [1, 2, 3]\n")
	tmpl := writeFile(t, dir, "page.liquid", "Hi {{ user.name | upcase }}{% for i in items %} {{ i | plus: n }}{% endfor %}")

	out, _, err := runCLI(t, "render", "--vars", vars, "--set", "n=10", tmpl)
	require.NoError(t, err)
	assert.Equal(t, "Hi TOBI 11 12 13", out)
}

func TestRenderCommandJSONVars(t *testing.T) {
	dir := t.TempDir()
	vars := writeFile(t, dir, "vars.json", `{"price": 1000.5}`)
	tmpl := writeFile(t, dir, "price.liquid", "{{ price | currency }}")

	out, _, err := runCLI(t, "render", "--vars", vars, "--culture", "en-US", tmpl)
	require.NoError(t, err)
	assert.Equal(t, "$1,000.50", out)
}

func TestRenderCommandIncludes(t *testing.T) {
	dir := t.TempDir()
	partials := filepath.Join(dir, "partials")
	writeFile(t, partials, "_greeting.liquid", "hello {{ who }}")
	tmpl := writeFile(t, dir, "page.liquid", "{% include 'greeting' who: 'you' %}!")

	out, _, err := runCLI(t, "render", "--include-dir", partials, tmpl)
	require.NoError(t, err)
	assert.Equal(t, "hello you!", out)
}

func TestRenderCommandOrderAndOutDir(t *testing.T) {
	dir := t.TempDir()
	var templates []string
	for _, name := range []string{"a", "b", "c", "d"} {
		templates = append(templates, writeFile(t, dir, name+".liquid", "{{ '"+name+"' }}"))
	}

	out, _, err := runCLI(t, append([]string{"render", "-j", "2"}, templates...)...)
	require.NoError(t, err)
	assert.Equal(t, "abcd", out)

	outDir := filepath.Join(dir, "out")
	out, _, err = runCLI(t, append([]string{"render", "--out", outDir}, templates...)...)
	require.NoError(t, err)
	assert.Empty(t, out)
	data, err := os.ReadFile(filepath.Join(outDir, "c"))
	require.NoError(t, err)
	assert.Equal(t, "c", string(data))
}

func TestRenderCommandErrorsMode(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeFile(t, dir, "div.liquid", "a{{ 1 | divided_by: 0 }}b")

	out, _, err := runCLI(t, "render", tmpl)
	require.NoError(t, err)
	assert.Equal(t, "aLiquid error: Attempted to divide by zero.b", out)

	out, _, err = runCLI(t, "render", "--errors", "suppress", tmpl)
	require.NoError(t, err)
	assert.Equal(t, "ab", out)

	_, _, err = runCLI(t, "render", "--errors", "rethrow", tmpl)
	require.Error(t, err)
	assert.ErrorContains(t, err, "Attempted to divide by zero.")
}

func TestRenderCommandSyntax(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeFile(t, dir, "title.liquid", "{{ 'my title' | capitalize }}")

	out, _, err := runCLI(t, "render", tmpl)
	require.NoError(t, err)
	assert.Equal(t, "My Title", out)

	out, _, err = runCLI(t, "render", "--syntax", "DotLiquid22", tmpl)
	require.NoError(t, err)
	assert.Equal(t, "My title", out)

	_, _, err = runCLI(t, "render", "--syntax", "DotLiquid99", tmpl)
	assert.ErrorContains(t, err, "Syntax 'DotLiquid99' is not supported")
}

func TestRenderCommandEnvironment(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeFile(t, dir, "title.liquid", "{{ 'my title' | capitalize }}")
	t.Setenv("DOTLIQUID_SYNTAX", "DotLiquid22")

	out, _, err := runCLI(t, "render", tmpl)
	require.NoError(t, err)
	assert.Equal(t, "My title", out)
}

func TestRenderCommandLogging(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeFile(t, dir, "page.liquid", "{{ 'x' }}")

	_, logs, err := runCLI(t, "--log-level", "debug", "render", tmpl)
	require.NoError(t, err)
	assert.Contains(t, logs, "template rendered")
}

func TestTokensCommand(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeFile(t, dir, "page.liquid", "a{{ b }}\n{% if c %}d{% endif %}")

	out, _, err := runCLI(t, "tokens", tmpl)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "1:0\ttext\t\"a\"", lines[0])
	assert.Equal(t, "1:1\tvariable\t\"{{ b }}\"", lines[1])
	assert.Equal(t, "2:0\ttag\t\"{% if c %}\"", lines[3])
}
