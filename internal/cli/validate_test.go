package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runValidateCommand(t *testing.T, format, path string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})
	err := cmd.Execute()
	return buf.String(), err
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestValidateValidConfig(t *testing.T) {
	path := writeConfig(t, "bakecss.yaml", "mode: async\nunknown_export: skip\n")

	out, err := runValidateCommand(t, "text", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Config valid")
	assert.Contains(t, out, "mode: async")
}

func TestValidateValidConfigJSON(t *testing.T) {
	path := writeConfig(t, "bakecss.yaml", "concurrency: 4\n")

	out, err := runValidateCommand(t, "json", path)
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Valid  bool `json:"valid"`
			Config struct {
				Concurrency int `json:"concurrency"`
			} `json:"config"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 4, resp.Data.Config.Concurrency)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	path := writeConfig(t, "bakecss.yaml", "mode: parallel\nconcurrency: 0\n")

	out, err := runValidateCommand(t, "text", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "mode: must be sync or async")
	assert.Contains(t, out, "concurrency: must be at least 1")
	assert.Contains(t, err.Error(), "2 error(s)")
}

func TestValidateUnknownField(t *testing.T) {
	path := writeConfig(t, "bakecss.yaml", "moed: async\n")

	_, err := runValidateCommand(t, "text", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateMissingFile(t *testing.T) {
	out, err := runValidateCommand(t, "json", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeConfig, resp.Error.Code)
}
