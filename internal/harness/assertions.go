package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/bakecss/internal/workflow"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Context  string // Text the assertion inspected, if any
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if e.Context != "" {
		fmt.Fprintf(&buf, "\nInspected:\n")
		for _, line := range strings.Split(strings.TrimRight(e.Context, "\n"), "\n") {
			fmt.Fprintf(&buf, "  | %s\n", line)
		}
	}
	return buf.String()
}

// AssertionContext provides what assertions need beyond the output.
type AssertionContext struct {
	Ctx      context.Context
	Scenario *Scenario
	Run      *workflow.Run

	// Compile recompiles the entry on the same Run (idempotent).
	Compile func(ctx context.Context) Output
}

// assertContains checks that text contains (or, when negate is set, does
// not contain) the assertion's value.
func assertContains(kind, text string, assertion Assertion, negate bool) error {
	found := strings.Contains(text, assertion.Value)
	if found != negate {
		return nil
	}
	expected := fmt.Sprintf("%s to contain %q", kind, assertion.Value)
	actual := "not found"
	if negate {
		expected = fmt.Sprintf("%s not to contain %q", kind, assertion.Value)
		actual = "found"
	}
	return &AssertionError{
		Type:     assertion.Type,
		Expected: expected,
		Actual:   actual,
		Context:  text,
	}
}

// assertShaken checks the shaken ES module cached for the assertion's file.
func assertShaken(actx *AssertionContext, assertion Assertion, negate bool) error {
	file := assertion.File
	if file == "" {
		file = actx.Scenario.Entry
	}
	res, ok := actx.Run.Shaken(file)
	if !ok {
		return &AssertionError{
			Type:     assertion.Type,
			Expected: fmt.Sprintf("a transform result for %s", file),
			Actual:   "file was not processed",
		}
	}
	return assertContains("shaken "+file, res.ESM, assertion, negate)
}

func assertRuleCount(out Output, assertion Assertion) error {
	if len(out.Selectors) == assertion.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertRuleCount,
		Expected: fmt.Sprintf("%d rules", assertion.Count),
		Actual:   fmt.Sprintf("%d rules: %v", len(out.Selectors), out.Selectors),
	}
}

func assertDependency(out Output, assertion Assertion) error {
	if slices.Contains(out.Dependencies, assertion.File) {
		return nil
	}
	return &AssertionError{
		Type:     AssertDependency,
		Expected: fmt.Sprintf("%s among dependencies", assertion.File),
		Actual:   fmt.Sprintf("dependencies: %v", out.Dependencies),
	}
}

func assertErrorCode(out Output, assertion Assertion) error {
	if out.ErrorCode == assertion.Code {
		return nil
	}
	actual := "compilation succeeded"
	if out.Failed() {
		actual = fmt.Sprintf("code %q: %s", out.ErrorCode, out.Error)
	}
	return &AssertionError{
		Type:     AssertErrorCode,
		Expected: fmt.Sprintf("error code %s", assertion.Code),
		Actual:   actual,
	}
}

func assertExports(actx *AssertionContext, assertion Assertion) error {
	file := assertion.File
	if file == "" {
		file = actx.Scenario.Entry
	}
	names, err := actx.Run.Exports(actx.Ctx, file)
	if err != nil {
		return fmt.Errorf("exports of %s: %w", file, err)
	}
	want := slices.Clone(assertion.Names)
	slices.Sort(want)
	if slices.Equal(names, want) {
		return nil
	}
	return &AssertionError{
		Type:     AssertExports,
		Expected: fmt.Sprintf("exports %v", want),
		Actual:   fmt.Sprintf("exports %v", names),
	}
}

// assertIdempotent recompiles the entry and checks the output is unchanged
// and that nothing was parsed again.
func assertIdempotent(actx *AssertionContext, first Output) error {
	before := actx.Run.Parses()
	second := actx.Compile(actx.Ctx)
	var diffs []string
	if second.CSSText != first.CSSText {
		diffs = append(diffs, "css_text changed")
	}
	if second.Code != first.Code {
		diffs = append(diffs, "code changed")
	}
	if !slices.Equal(second.Dependencies, first.Dependencies) {
		diffs = append(diffs, "dependencies changed")
	}
	if second.ErrorCode != first.ErrorCode {
		diffs = append(diffs, "error code changed")
	}
	if !first.Failed() && second.Parses != before {
		diffs = append(diffs, fmt.Sprintf("parsed %d more files", second.Parses-before))
	}
	if len(diffs) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertIdempotent,
		Expected: "identical output with no additional parses",
		Actual:   strings.Join(diffs, "; "),
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string
	out := result.Output

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertCSSContains:
			err = assertContains("css", out.CSSText, assertion, false)
		case AssertCodeContains:
			err = assertContains("code", out.Code, assertion, false)
		case AssertCodeNotContains:
			err = assertContains("code", out.Code, assertion, true)
		case AssertShakenContains, AssertShakenNotContains:
			if actx == nil || actx.Run == nil {
				err = fmt.Errorf("assertion[%d]: %s requires a run", i, assertion.Type)
			} else {
				err = assertShaken(actx, assertion, assertion.Type == AssertShakenNotContains)
			}
		case AssertRuleCount:
			err = assertRuleCount(out, assertion)
		case AssertDependency:
			err = assertDependency(out, assertion)
		case AssertErrorCode:
			err = assertErrorCode(out, assertion)
		case AssertExports:
			if actx == nil || actx.Run == nil {
				err = fmt.Errorf("assertion[%d]: exports requires a run", i)
			} else {
				err = assertExports(actx, assertion)
			}
		case AssertIdempotent:
			if actx == nil || actx.Run == nil || actx.Compile == nil {
				err = fmt.Errorf("assertion[%d]: idempotent requires a run", i)
			} else {
				err = assertIdempotent(actx, out)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
