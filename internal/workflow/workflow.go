package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/bakecss/internal/engine"
	"github.com/roach88/bakecss/internal/entrypoint"
	"github.com/roach88/bakecss/internal/evaluator"
	"github.com/roach88/bakecss/internal/ir"
	"github.com/roach88/bakecss/internal/processor"
)

// Result is the output of compiling one file.
type Result struct {
	// Code is the file with every style template replaced by its runtime
	// value, or the original code when the file has nothing to extract.
	Code string `json:"code"`

	CSSText   string `json:"css_text"`
	SourceMap string `json:"source_map,omitempty"`

	// Dependencies lists the files whose code contributed to the result.
	Dependencies []string `json:"dependencies"`

	Replacements []ir.Replacement `json:"replacements"`
	Rules        []ir.Rule        `json:"rules"`
}

// request is one call into a Run: a queue, a registry and the state the
// evaluation stages pass along.
type request struct {
	run      *Run
	id       string
	root     string
	source   string
	registry *entrypoint.Registry
	sched    *engine.Scheduler
	imports  *importGraph
	log      *slog.Logger

	preval    evaluator.Preval
	collected *processor.Collected
	outputKey string
	result    *Result
}

func (r *Run) newRequest(ctx context.Context, root string) (*request, error) {
	q := &request{
		run:      r,
		id:       fmt.Sprintf("%s/%d", r.id, r.requests.Add(1)),
		root:     root,
		registry: entrypoint.NewRegistry(ctx, r.matcher),
		imports:  newImportGraph(root),
	}
	q.log = r.log.With("request", q.id, "root", root)
	q.sched = engine.New(q.handlers(),
		engine.WithMaxActions(r.cfg.MaxActions),
		engine.WithRunID(q.id),
		engine.WithClock(r.clock),
	)
	source, err := r.read(ctx, root)
	if err != nil {
		return nil, err
	}
	q.source = source
	return q, nil
}

func (q *request) handlers() map[engine.ActionType]engine.Handler {
	return map[engine.ActionType]engine.Handler{
		engine.ActionProcessEntrypoint:  q.processEntrypoint,
		engine.ActionExplodeReexports:   q.explodeReexports,
		engine.ActionGetExports:         q.getExports,
		engine.ActionTransform:          q.transform,
		engine.ActionResolveImports:     q.resolveImports,
		engine.ActionProcessImports:     q.processImports,
		engine.ActionAddToCodeCache:     q.addToCodeCache,
		engine.ActionFinalizeEntrypoint: q.finalizeEntrypoint,
		engine.ActionEvalFile:           q.evalFile,
		engine.ActionCollect:            q.collect,
		engine.ActionExtract:            q.extract,
	}
}

func (q *request) close() {
	q.log.Debug("request closed", "processed", q.run.processed.RunHistorySize(q.id))
	q.run.processed.Clear(q.id)
	q.run.record(q.sched)
}

// process runs the processing stages for the root and the files it
// imports. It returns false when the rules ignore the root.
func (q *request) process(ctx context.Context, only ir.ExportSet) (bool, error) {
	ep, _ := q.registry.Create(nil, q.root, q.source, only, q.run.parseCfg)
	if ep == nil {
		return false, nil
	}
	if err := q.sched.Enqueue(engine.NewAction(engine.ActionProcessEntrypoint, ep, nil)); err != nil {
		return false, err
	}
	if err := q.sched.Drain(ctx); err != nil {
		return false, err
	}
	files, imports := q.imports.size()
	q.log.Debug("processing drained",
		"entrypoints", q.registry.Created(),
		"files", files,
		"imports", imports,
		"process_dispatches", q.sched.Dispatched(engine.ActionProcessEntrypoint),
		"merged", q.sched.Merged(),
	)
	return true, nil
}

func (q *request) detached(ctx context.Context, only ir.ExportSet) *entrypoint.Entrypoint {
	ep := entrypoint.Detached(ctx, q.root)
	ep.Only = only
	return ep
}

func (q *request) passthrough() *Result {
	return &Result{Code: q.source}
}

// Compile processes file for the exports only, evaluates its build-time
// values and extracts its CSS. An empty only compiles every export.
func (r *Run) Compile(ctx context.Context, file string, only ...string) (*Result, error) {
	q, err := r.newRequest(ctx, file)
	if err != nil {
		return nil, err
	}
	defer q.close()

	requested := requestedOnly(only)
	rootOnly := requested.Union(ir.NewExportSet(ir.PrevalExport))
	ok, err := q.process(ctx, rootOnly)
	if err != nil {
		return nil, err
	}
	if !ok {
		q.log.Debug("root ignored by rules")
		return q.passthrough(), nil
	}

	q.outputKey = file + "\x00" + ir.ContentHash(q.source) + "\x00" + requested.Key()
	if err := q.sched.Enqueue(engine.NewAction(engine.ActionEvalFile, q.detached(ctx, rootOnly), nil)); err != nil {
		return nil, err
	}
	if err := q.sched.Drain(ctx); err != nil {
		return nil, err
	}
	if q.result == nil {
		return nil, fmt.Errorf("compile %s: evaluation produced no result", file)
	}
	q.log.Info("compiled",
		"rules", len(q.result.Rules),
		"dependencies", len(q.result.Dependencies),
		"parses", r.Parses(),
	)
	return q.result, nil
}

// Transform processes file for only and returns its shaken code without
// evaluating it. An empty only keeps every export.
func (r *Run) Transform(ctx context.Context, file string, only ...string) (*ir.TransformResult, error) {
	q, err := r.newRequest(ctx, file)
	if err != nil {
		return nil, err
	}
	defer q.close()

	set := requestedOnly(only)
	ok, err := q.process(ctx, set)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &ir.TransformResult{
			File:        file,
			Only:        set,
			Code:        q.source,
			ESM:         q.source,
			ContentHash: ir.ContentHash(q.source),
			Evaluator:   string(entrypoint.ActionIgnore),
		}, nil
	}
	res, found := r.codes.Get(file, set)
	if !found {
		return nil, fmt.Errorf("transform %s: no result for %s", file, set)
	}
	return res, nil
}

// Exports returns the export names of file, with wildcard re-exports
// expanded.
func (r *Run) Exports(ctx context.Context, file string) ([]string, error) {
	q, err := r.newRequest(ctx, file)
	if err != nil {
		return nil, err
	}
	defer q.close()

	var names []string
	done := func(got []string) error {
		names = append([]string(nil), got...)
		return nil
	}
	payload := &engine.GetExportsPayload{
		Callbacks: []engine.ExportsCallback{done},
		Visited:   map[string]bool{},
	}
	ep := entrypoint.Detached(ctx, file)
	if err := q.sched.Enqueue(engine.NewAction(engine.ActionGetExports, ep, payload)); err != nil {
		return nil, err
	}
	if err := q.sched.Drain(ctx); err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Values evaluates file shaken down to only and returns its exports. An
// empty only evaluates every export.
func (r *Run) Values(ctx context.Context, file string, only ...string) (ir.Object, error) {
	res, err := r.Transform(ctx, file, only...)
	if err != nil {
		return nil, err
	}
	values, err := r.eval.Exports(ctx, file, res.Code)
	if err != nil {
		return nil, buildError(file, err)
	}
	return values, nil
}

func requestedOnly(only []string) ir.ExportSet {
	set := ir.NewExportSet(only...)
	if set.IsEmpty() {
		return ir.NewExportSet(ir.Wildcard)
	}
	return set
}
