package workflow

import (
	"context"
	"fmt"

	"github.com/roach88/bakecss/internal/engine"
	"github.com/roach88/bakecss/internal/extract"
	"github.com/roach88/bakecss/internal/processor"
)

// evalFile runs the root's shaken code in the sandbox and computes every
// preval value. A root without a preval export passes through unchanged.
func (q *request) evalFile(ctx context.Context, a *engine.Action, next engine.Next) error {
	if out, ok := q.run.outputs.Get(q.outputKey); ok {
		q.log.Debug("output cache hit")
		q.result = out
		return nil
	}
	res, ok := q.run.codes.Get(q.root, a.Only)
	if !ok {
		return fmt.Errorf("evalFile %s: no transform result for %s", q.root, a.Only)
	}
	if !res.HasPreval {
		q.log.Debug("no build-time values, passing through")
		q.result = q.passthrough()
		q.run.outputs.Add(q.outputKey, q.result)
		return nil
	}
	preval, err := q.run.eval.EvalPreval(ctx, q.root, res.Code)
	if err != nil {
		return buildError(q.root, err)
	}
	q.preval = preval
	return next(engine.NewAction(engine.ActionCollect, a.Entrypoint, nil))
}

// collect turns the computed values into CSS rules and rewrites the
// source for runtime.
func (q *request) collect(ctx context.Context, a *engine.Action, next engine.Next) error {
	f, err := q.run.parseFile(q.root, q.source)
	if err != nil {
		return err
	}
	opts := q.run.parseCfg.Processor()
	templates, err := processor.Detect(f, opts)
	if err != nil {
		return buildError(q.root, err)
	}
	collected, err := processor.Collect(f, templates, q.preval.Lookup, opts)
	if err != nil {
		return buildError(q.root, err)
	}
	if len(collected.Rules) == 0 {
		q.result = q.passthrough()
		q.run.outputs.Add(q.outputKey, q.result)
		return nil
	}
	q.collected = collected
	return next(engine.NewAction(engine.ActionExtract, a.Entrypoint, nil))
}

// extract builds the stylesheet and its source map.
func (q *request) extract(ctx context.Context, a *engine.Action, next engine.Next) error {
	deps, err := q.dependencies()
	if err != nil {
		return err
	}
	out, err := extract.Extract(extract.Input{
		File:         q.root,
		Source:       q.source,
		Rules:        q.collected.Rules,
		Dependencies: deps,
	}, q.run.pp)
	if err != nil {
		return &engine.BuildError{
			Code:    engine.ErrCodeMalformedOutput,
			File:    q.root,
			Message: err.Error(),
			Err:     err,
		}
	}
	q.result = &Result{
		Code:         q.collected.Code,
		CSSText:      out.CSSText,
		SourceMap:    out.SourceMap,
		Dependencies: out.Dependencies,
		Replacements: q.collected.Replacements,
		Rules:        out.Rules,
	}
	q.run.outputs.Add(q.outputKey, q.result)
	return nil
}
