package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const headerSource = "import { css } from \"@bakecss/core\";\n" +
	"export const size = 3;\n" +
	"export const header = css`font-size: ${size}em;`;\n" +
	"export const unused = expensive();\n"

// writeProject writes files under a temp directory and returns it.
func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

type errorResponse struct {
	Status string `json:"status"`
	Error  struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details BuildErrorDetails `json:"details"`
	} `json:"error"`
}

func TestCompile_Text(t *testing.T) {
	dir := writeProject(t, map[string]string{"src/a.js": headerSource})

	out, err := execute(t, "compile", filepath.Join(dir, "src", "a.js"), "--only", "header")
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled")
	assert.Contains(t, out, "1 rule(s)")
	assert.Contains(t, out, ".header_")
	assert.Contains(t, out, "font-size: 3em;")
}

func TestCompile_JSON(t *testing.T) {
	dir := writeProject(t, map[string]string{"src/a.js": headerSource})

	out, err := execute(t, "--format", "json", "compile", filepath.Join(dir, "src", "a.js"), "--only", "header")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			File    string `json:"file"`
			Code    string `json:"code"`
			CSSText string `json:"css_text"`
			Rules   []struct {
				Selector string `json:"selector"`
				CSSText  string `json:"css_text"`
			} `json:"rules"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, strings.HasSuffix(resp.Data.File, "/src/a.js"), resp.Data.File)
	require.Len(t, resp.Data.Rules, 1)
	assert.Equal(t, "font-size: 3em;", resp.Data.Rules[0].CSSText)
	assert.NotContains(t, resp.Data.Code, "font-size")
}

func TestCompile_WritesOutputFiles(t *testing.T) {
	dir := writeProject(t, map[string]string{"src/a.js": headerSource})
	codePath := filepath.Join(dir, "out", "a.js")
	cssPath := filepath.Join(dir, "out", "a.css")
	require.NoError(t, os.MkdirAll(filepath.Dir(codePath), 0755))

	out, err := execute(t, "compile", filepath.Join(dir, "src", "a.js"), "--only", "header", "-o", codePath, "--out-css", cssPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote code to "+codePath)
	assert.Contains(t, out, "Wrote CSS to "+cssPath)

	code, err := os.ReadFile(codePath)
	require.NoError(t, err)
	assert.Contains(t, string(code), "export const header = \"header_")

	css, err := os.ReadFile(cssPath)
	require.NoError(t, err)
	assert.Contains(t, string(css), "font-size: 3em;")
	assert.Contains(t, string(css), "/*# sourceMappingURL=a.css.map */")
	_, err = os.Stat(cssPath + ".map")
	assert.NoError(t, err)
}

func TestCompile_BuildError(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"src/a.js": "import { css } from \"@bakecss/core\";\n" +
			"import { c } from \"./missing\";\n" +
			"export const box = css`color: ${c};`;\n",
	})

	out, err := execute(t, "--format", "json", "compile", filepath.Join(dir, "src", "a.js"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp errorResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "RESOLUTION_FAILED", resp.Error.Code)
}

func TestCompile_EvalErrorText(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"src/a.js": "import { css } from \"@bakecss/core\";\n" +
			"const boom = () => { throw new Error(\"bad color\"); };\n" +
			"export const header = css`color: ${boom()};`;\n",
	})

	out, err := execute(t, "compile", filepath.Join(dir, "src", "a.js"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Compilation failed")
	assert.Contains(t, out, "EVAL_FAILED")
	assert.Contains(t, out, "bad color")
	assert.Contains(t, out, "> 3 | export const header")
}

func TestCompile_MissingFile(t *testing.T) {
	out, err := execute(t, "--format", "json", "compile", filepath.Join(t.TempDir(), "nope.js"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp errorResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestCompile_Config(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"src/a.js":     headerSource,
		"bakecss.yaml": "mode: async\nconcurrency: 2\n",
		"invalid.yaml": "mode: parallel\n",
	})
	file := filepath.Join(dir, "src", "a.js")

	out, err := execute(t, "compile", file, "--only", "header", "--config", filepath.Join(dir, "bakecss.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "font-size: 3em;")

	out, err = execute(t, "--format", "json", "compile", file, "--config", filepath.Join(dir, "invalid.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	var resp errorResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, ErrCodeConfig, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "mode")
}

func TestCompile_CacheDatabase(t *testing.T) {
	dir := writeProject(t, map[string]string{"src/a.js": headerSource})
	db := filepath.Join(dir, "cache.db")
	file := filepath.Join(dir, "src", "a.js")

	_, err := execute(t, "compile", file, "--only", "header", "--cache-db", db)
	require.NoError(t, err)

	out, err := execute(t, "--format", "json", "cache", "stats", "--cache-db", db)
	require.NoError(t, err)
	var stats struct {
		Data CacheStatsResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Positive(t, stats.Data.Entries)
	assert.Positive(t, stats.Data.Files)

	// A second run is served from the database.
	out, err = execute(t, "compile", file, "--only", "header", "--cache-db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "font-size: 3em;")

	out, err = execute(t, "cache", "clear", "--cache-db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Removed")

	out, err = execute(t, "cache", "stats", "--cache-db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Entries: 0")
}

func TestCache_NoDatabase(t *testing.T) {
	_, err := execute(t, "cache", "stats")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestShake(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"src/a.js": "const heavy = compute();\nexport const x = 1;\nexport const y = heavy;\n",
	})
	file := filepath.Join(dir, "src", "a.js")

	out, err := execute(t, "shake", file, "--only", "x")
	require.NoError(t, err)
	assert.Contains(t, out, "export const x = 1;")
	assert.NotContains(t, out, "compute")

	out, err = execute(t, "--format", "json", "shake", file, "--only", "y", "--cjs")
	require.NoError(t, err)
	var resp struct {
		Data ShakeResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, []string{"y"}, resp.Data.Only)
	assert.Contains(t, resp.Data.Code, "compute")
	assert.NotContains(t, resp.Data.Code, "export const")
}

func TestShake_Eval(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"src/a.js": "let scale = 1;\nscale = 2;\nexport const gap = scale * 4;\nexport const label = \"wide\";\n",
	})
	file := filepath.Join(dir, "src", "a.js")

	out, err := execute(t, "--format", "json", "shake", file, "--only", "gap", "--eval")
	require.NoError(t, err)
	var resp struct {
		Data struct {
			Only   []string       `json:"only"`
			Values map[string]any `json:"values"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, []string{"gap"}, resp.Data.Only)
	assert.Equal(t, float64(8), resp.Data.Values["gap"])
	assert.NotContains(t, resp.Data.Values, "label")

	out, err = execute(t, "shake", file, "--only", "gap", "--eval")
	require.NoError(t, err)
	assert.Contains(t, out, "scale = 2;")
	assert.Contains(t, out, "Values:")
	assert.Contains(t, out, `"gap": 8`)
}

func TestExports(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"src/index.js": "export * from \"./a\";\nexport const own = 1;\n",
		"src/a.js":     "export const x = 1;\nexport default 2;\n",
	})

	out, err := execute(t, "--format", "json", "exports", filepath.Join(dir, "src", "index.js"))
	require.NoError(t, err)
	var resp struct {
		Data ExportsResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, []string{"own", "x"}, resp.Data.Exports)

	out, err = execute(t, "exports", filepath.Join(dir, "src", "index.js"))
	require.NoError(t, err)
	assert.Contains(t, out, "2 export(s)")
}
