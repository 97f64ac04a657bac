package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/bakecss/internal/config"
	"github.com/roach88/bakecss/internal/engine"
	"github.com/roach88/bakecss/internal/shaker"
	"github.com/roach88/bakecss/internal/testutil"
	"github.com/roach88/bakecss/internal/workflow"
)

// RunID is the fixed run identifier used by every scenario.
const RunID = "harness"

// Harness is the execution context of one scenario.
type Harness struct {
	scenario *Scenario
	run      *workflow.Run
	logger   *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh in-memory project and Run, with no
// persistent store. A compile failure is recorded in the output; it only
// fails the scenario when no error_code assertion expects it.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	h, err := newHarness(scenario)
	if err != nil {
		return nil, err
	}
	defer h.run.Close()

	result := NewResult()
	result.Output = h.compile(ctx)
	if result.Output.Failed() && !scenario.wants(AssertErrorCode) {
		result.AddError(fmt.Sprintf("compile failed: %s", result.Output.Error))
	}

	actx := &AssertionContext{
		Ctx:      ctx,
		Scenario: scenario,
		Run:      h.run,
		Compile:  h.compile,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	h.logger.Debug("scenario finished",
		"pass", result.Pass,
		"errors", len(result.Errors),
		"parses", result.Output.Parses,
	)
	return result, nil
}

func newHarness(scenario *Scenario) (*Harness, error) {
	cfg := config.Default()
	if scenario.Mode != "" {
		cfg.Mode = config.Mode(scenario.Mode)
	}
	if scenario.UnknownExport != "" {
		cfg.UnknownExport = shaker.Policy(scenario.UnknownExport)
	}

	project := testutil.NewMemFS(scenario.Files)
	run, err := workflow.NewRun(workflow.Options{
		Config:   cfg,
		Resolver: project,
		Reader:   project,
		RunIDs:   testutil.NewFixedRunID(RunID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return &Harness{
		scenario: scenario,
		run:      run,
		logger:   slog.With("scenario", scenario.Name),
	}, nil
}

// compile compiles the entry once and snapshots the outcome.
func (h *Harness) compile(ctx context.Context) Output {
	res, err := h.run.Compile(ctx, h.scenario.Entry, h.scenario.Only...)
	out := Output{Parses: h.run.Parses()}
	if err != nil {
		out.Error = err.Error()
		if code, ok := engine.CodeOf(err); ok {
			out.ErrorCode = string(code)
		} else if errors.Is(err, context.Canceled) {
			out.ErrorCode = "CANCELLED"
		}
		return out
	}

	out.CSSText = res.CSSText
	out.Code = res.Code
	out.Dependencies = append([]string{}, res.Dependencies...)
	out.Selectors = make([]string, 0, len(res.Rules))
	for _, rule := range res.Rules {
		out.Selectors = append(out.Selectors, rule.Selector)
	}
	return out
}
