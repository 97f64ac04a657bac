package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/bakecss/internal/ir"
)

// Snapshot serializes the observable output of a scenario as canonical
// JSON. Parse counts are left out; they depend on cache state, not on
// what was compiled.
func Snapshot(scenario *Scenario, result *Result) ([]byte, error) {
	out := result.Output
	snapshot := map[string]any{
		"scenario_name": scenario.Name,
		"entry":         scenario.Entry,
		"only":          ir.NewExportSet(scenario.Only...),
		"css_text":      out.CSSText,
		"code":          out.Code,
		"dependencies":  nonNil(out.Dependencies),
		"selectors":     nonNil(out.Selectors),
	}
	if out.ErrorCode != "" {
		snapshot["error_code"] = out.ErrorCode
	}
	return ir.MarshalCanonical(snapshot)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file named after the scenario. The fixture directory defaults to
// testdata/golden; opts override it.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...goldie.Option) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario, result, opts...)
}

// AssertGolden compares an already computed result against its golden file.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result, opts ...goldie.Option) error {
	t.Helper()

	data, err := Snapshot(scenario, result)
	if err != nil {
		return err
	}
	g := goldie.New(t, append([]goldie.Option{
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	}, opts...)...)
	g.Assert(t, scenario.Name, data)
	return nil
}

// UpdateGolden writes the snapshot of result as the scenario's golden file.
func UpdateGolden(t *testing.T, scenario *Scenario, result *Result, opts ...goldie.Option) error {
	t.Helper()

	data, err := Snapshot(scenario, result)
	if err != nil {
		return err
	}
	g := goldie.New(t, append([]goldie.Option{
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	}, opts...)...)
	return g.Update(t, scenario.Name, data)
}
