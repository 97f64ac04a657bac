package harness

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const headerSource = "import { css } from \"@bakecss/core\";\n" +
	"export const size = 3;\n" +
	"export const header = css`font-size: ${size}em;`;\n" +
	"export const unused = expensive();\n"

func headerScenario(assertions ...Assertion) *Scenario {
	return &Scenario{
		Name:        "header",
		Description: "header extraction",
		Entry:       "/src/a.js",
		Only:        []string{"header"},
		Files:       map[string]string{"/src/a.js": headerSource},
		Assertions:  assertions,
	}
}

func TestRun_Passes(t *testing.T) {
	scenario := headerScenario(
		Assertion{Type: AssertCSSContains, Value: "font-size: 3em;"},
		Assertion{Type: AssertRuleCount, Count: 1},
		Assertion{Type: AssertShakenNotContains, Value: "expensive"},
		Assertion{Type: AssertIdempotent},
	)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Output.Selectors, 1)
	assert.True(t, strings.HasPrefix(result.Output.Selectors[0], ".header_"))
	assert.Positive(t, result.Output.Parses)
}

func TestRun_ReportsFailedAssertion(t *testing.T) {
	scenario := headerScenario(
		Assertion{Type: AssertCSSContains, Value: "color: red;"},
	)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Assertion failed: css_contains")
	assert.Contains(t, result.Errors[0], `css to contain "color: red;"`)
}

func TestRun_UnexpectedCompileFailure(t *testing.T) {
	scenario := headerScenario(Assertion{Type: AssertRuleCount, Count: 0})
	scenario.Only = []string{"footer"}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, "UNKNOWN_EXPORT", result.Output.ErrorCode)
	assert.Contains(t, result.Errors[0], "compile failed")
}

func TestRun_ExpectedCompileFailure(t *testing.T) {
	scenario := headerScenario(Assertion{Type: AssertErrorCode, Code: "UNKNOWN_EXPORT"})
	scenario.Only = []string{"footer"}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_UnknownExportPolicy(t *testing.T) {
	scenario := headerScenario(Assertion{Type: AssertRuleCount, Count: 0})
	scenario.Only = []string{"footer"}
	scenario.UnknownExport = "ignore"

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.Empty(t, result.Output.ErrorCode)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := Run(ctx, headerScenario(Assertion{Type: AssertErrorCode, Code: "CANCELLED"}))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_AsyncMode(t *testing.T) {
	scenario := headerScenario(Assertion{Type: AssertCSSContains, Value: "font-size: 3em;"})
	scenario.Mode = "async"

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}
