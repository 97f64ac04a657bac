package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bakecss/internal/entrypoint"
	"github.com/roach88/bakecss/internal/processor"
	"github.com/roach88/bakecss/internal/shaker"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestDefault_IsValid(t *testing.T) {
	opts := Default()
	require.NoError(t, opts.Validate())
	assert.Equal(t, ModeSync, opts.Mode)
	assert.True(t, opts.Features.SideEffects)
	assert.Equal(t, processor.DefaultSlug, opts.ClassNameSlug)
	assert.Equal(t, entrypoint.DefaultRules(), opts.Rules)
}

func TestValidate_CollectsErrors(t *testing.T) {
	opts := Default()
	opts.Mode = "parallel"
	opts.Preprocessor = "sass"
	opts.UnknownExport = "explode"
	opts.Concurrency = 0
	opts.LogLevel = "loud"
	opts.Rules = entrypoint.Rules{{Action: "compile"}}
	opts.Tags = []processor.TagSpec{{Module: "m", Name: "n", Kind: "less"}}
	opts.Extensions = []string{"js"}

	err := opts.Validate()
	require.Error(t, err)
	for _, want := range []string{"mode", "preprocessor", "unknown_export", "concurrency", "log_level", "rules", "tags[0]", "extensions[0]"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLevel(t *testing.T) {
	opts := Default()
	opts.LogLevel = "debug"
	l, err := opts.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, l)

	opts.LogLevel = ""
	l, err = opts.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, l)
}

func TestParseYAML(t *testing.T) {
	opts, err := ParseYAML([]byte(`
mode: async
concurrency: 4
preprocessor: none
unknown_export: skip
features:
  side_effects: false
rules:
  - action: shaker
  - test: {regex: "vendor"}
    action: passthrough
tags:
  - {module: "my-css", name: css, kind: css}
`))
	require.NoError(t, err)
	assert.Equal(t, ModeAsync, opts.Mode)
	assert.Equal(t, 4, opts.Concurrency)
	assert.Equal(t, "none", opts.Preprocessor)
	assert.Equal(t, shaker.PolicySkip, opts.UnknownExport)
	assert.False(t, opts.Features.SideEffects)
	require.Len(t, opts.Rules, 2)
	assert.Equal(t, entrypoint.ActionPassthrough, opts.Rules[1].Action)
	assert.Equal(t, "vendor", opts.Rules[1].Test.Regex)
	assert.Equal(t, []processor.TagSpec{{Module: "my-css", Name: "css", Kind: processor.KindCSS}}, opts.Tags)
	assert.Equal(t, DefaultMaxActions, opts.MaxActions)
	require.NoError(t, opts.Validate())
}

func TestParseYAML_Empty(t *testing.T) {
	opts, err := ParseYAML(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), opts)
}

func TestParseYAML_UnknownField(t *testing.T) {
	_, err := ParseYAML([]byte("bogus: 1\n"))
	assert.Error(t, err)
}

func TestParseCUE(t *testing.T) {
	opts, err := ParseCUE("bakecss.cue", []byte(`
mode:        "async"
concurrency: 2
rules: [{action: "shaker"}, {test: {ext: [".ts"]}, action: "passthrough"}]
features: side_effects: false
`))
	require.NoError(t, err)
	assert.Equal(t, ModeAsync, opts.Mode)
	assert.Equal(t, 2, opts.Concurrency)
	assert.False(t, opts.Features.SideEffects)
	require.Len(t, opts.Rules, 2)
	assert.Equal(t, []string{".ts"}, opts.Rules[1].Test.Ext)

	// schema defaults
	assert.Equal(t, "douceur", opts.Preprocessor)
	assert.Equal(t, shaker.PolicyError, opts.UnknownExport)
	assert.Equal(t, DefaultMaxActions, opts.MaxActions)
	assert.Equal(t, "production", opts.NodeEnv)
	assert.Equal(t, processor.DefaultSlug, opts.ClassNameSlug)
	assert.Equal(t, processor.DefaultTags(), opts.Tags)
	require.NoError(t, opts.Validate())
}

func TestParseCUE_SchemaViolations(t *testing.T) {
	cases := map[string]string{
		"bad mode":    `mode: "parallel"`,
		"bad bound":   `concurrency: 0`,
		"closed":      `bogus: 1`,
		"bad action":  `rules: [{action: "compile"}]`,
		"bad ext":     `extensions: ["js"]`,
		"syntax":      `mode: `,
		"bad feature": `features: side_effects: "yes"`,
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCUE("bad.cue", []byte(src))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile_ByExtension(t *testing.T) {
	dir := t.TempDir()
	yml := writeFile(t, dir, "bakecss.yml", "mode: async\n")
	cue := writeFile(t, dir, "bakecss.cue", `mode: "async"`)
	txt := writeFile(t, dir, "bakecss.toml", `mode = "async"`)

	for _, p := range []string{yml, cue} {
		opts, err := LoadFile(p)
		require.NoError(t, err, p)
		assert.Equal(t, ModeAsync, opts.Mode)
	}
	_, err := LoadFile(txt)
	assert.ErrorContains(t, err, "unsupported extension")

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"BAKECSS_MODE":           "async",
		"BAKECSS_CONCURRENCY":    "3",
		"BAKECSS_MAX_ACTIONS":    "50",
		"BAKECSS_CACHE_DB":       "/tmp/cache.db",
		"BAKECSS_SIDE_EFFECTS":   "false",
		"BAKECSS_EXTENSIONS":     ".js, .ts",
		"BAKECSS_UNKNOWN_EXPORT": "ignore",
		"BAKECSS_NODE_ENV":       "test",
	}
	opts := Default()
	require.NoError(t, opts.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))
	assert.Equal(t, ModeAsync, opts.Mode)
	assert.Equal(t, 3, opts.Concurrency)
	assert.Equal(t, 50, opts.MaxActions)
	assert.Equal(t, "/tmp/cache.db", opts.CacheDB)
	assert.False(t, opts.Features.SideEffects)
	assert.Equal(t, []string{".js", ".ts"}, opts.Extensions)
	assert.Equal(t, shaker.PolicyIgnore, opts.UnknownExport)
	assert.Equal(t, "test", opts.NodeEnv)
}

func TestApplyEnv_BadNumber(t *testing.T) {
	opts := Default()
	err := opts.ApplyEnv(func(k string) (string, bool) {
		if k == "BAKECSS_CONCURRENCY" {
			return "many", true
		}
		return "", false
	})
	assert.ErrorContains(t, err, "BAKECSS_CONCURRENCY")
}

func TestLoad_DotEnvAndProcessEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "BAKECSS_MODE=async\nBAKECSS_NODE_ENV=staging\n")
	cfg := writeFile(t, dir, "bakecss.yaml", "concurrency: 5\n")
	t.Setenv("BAKECSS_NODE_ENV", "development")

	opts, err := Load(cfg, dir)
	require.NoError(t, err)
	assert.Equal(t, 5, opts.Concurrency)
	assert.Equal(t, ModeAsync, opts.Mode)
	assert.Equal(t, "development", opts.NodeEnv)
}

func TestLoad_NoFiles(t *testing.T) {
	opts, err := Load("", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, ModeSync, opts.Mode)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "bakecss.yaml", "concurrency: 0\n")
	_, err := Load(cfg, dir)
	assert.ErrorContains(t, err, "invalid config")
}
