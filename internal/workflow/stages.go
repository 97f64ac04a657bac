package workflow

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/bakecss/internal/engine"
	"github.com/roach88/bakecss/internal/entrypoint"
	"github.com/roach88/bakecss/internal/ir"
	"github.com/roach88/bakecss/internal/jsast"
	"github.com/roach88/bakecss/internal/processor"
	"github.com/roach88/bakecss/internal/shaker"
)

// transformPayload carries the parsed file from explodeReexports to
// transform so it is parsed once.
type transformPayload struct {
	File *jsast.File
}

func finalize(ep *entrypoint.Entrypoint) *engine.Action {
	return engine.NewAction(engine.ActionFinalizeEntrypoint, ep, nil)
}

func (q *request) processEntrypoint(ctx context.Context, a *engine.Action, next engine.Next) error {
	ep := a.Entrypoint
	if a.Aborted() {
		return next(finalize(ep))
	}
	only := ep.Only.Union(a.Only)
	ep.Only = only
	if ep.Cyclic {
		q.run.cycles.Add(1)
		ep.Log.Debug("processing entrypoint inside its own import chain", "stack", ep.Stack)
	}

	if _, ok := q.run.cached(ctx, ep.Name, ep.Code, only); ok {
		ep.Log.Debug("code cache hit", "only", []string(only))
		if err := q.linkCached(ep.Name); err != nil {
			return err
		}
		return next(finalize(ep))
	}
	if q.run.processed.WouldCycle(q.id, ep.Name, only.Key()) {
		ep.Log.Debug("already processed in request", "only", []string(only))
		return next(finalize(ep))
	}
	q.run.processed.Record(q.id, ep.Name, only.Key())
	ep.Start()
	return next(engine.NewAction(engine.ActionExplodeReexports, ep, nil))
}

// explodeReexports replaces every `export * from "m"` of the file with the
// names m exports, once getExports has reported them all.
func (q *request) explodeReexports(ctx context.Context, a *engine.Action, next engine.Next) error {
	ep := a.Entrypoint
	if a.Aborted() {
		return next(finalize(ep))
	}
	f, err := q.run.parseFile(ep.Name, ep.Code)
	if err != nil {
		return err
	}
	toTransform := engine.NewAction(engine.ActionTransform, ep, &transformPayload{File: f})
	sources := shaker.WildcardSources(f)
	if len(sources) == 0 {
		return next(toTransform)
	}

	names := make(map[string][]string, len(sources))
	pending := len(sources)
	for _, spec := range sources {
		target, err := q.run.resolve(ctx, ep.Name, spec, ep.Chain())
		if err != nil {
			return buildError(ep.Name, err)
		}
		done := func(exported []string) error {
			names[spec] = exported
			pending--
			if pending > 0 {
				return nil
			}
			n, err := shaker.ExplodeReexports(f, names)
			if err != nil {
				return buildError(ep.Name, err)
			}
			ep.Log.Debug("re-exports exploded", "wildcards", n)
			return next(toTransform)
		}
		payload := &engine.GetExportsPayload{
			Callbacks: []engine.ExportsCallback{done},
			Visited:   map[string]bool{ep.Name: true},
		}
		if err := next(engine.NewAction(engine.ActionGetExports, entrypoint.Detached(ctx, target), payload)); err != nil {
			return err
		}
	}
	return nil
}

// getExports reports the export names of a file to every waiting callback.
// Wildcard re-exports are followed; files already visited contribute
// nothing, which ends cycles.
func (q *request) getExports(ctx context.Context, a *engine.Action, next engine.Next) error {
	p, ok := a.Payload.(*engine.GetExportsPayload)
	if !ok {
		return fmt.Errorf("getExports %s: missing payload", a.Entrypoint.Name)
	}
	file := a.Entrypoint.Name
	fire := func(names []string) error {
		for _, cb := range p.Callbacks {
			if err := cb(names); err != nil {
				return err
			}
		}
		return nil
	}

	code, err := q.run.read(ctx, file)
	if err != nil {
		return err
	}
	key := file + "\x00" + ir.ContentHash(code)
	if names, ok := q.run.exportNames.Get(key); ok {
		return fire(names)
	}
	f, err := q.run.parseFile(file, code)
	if err != nil {
		return err
	}
	collected := ir.NewExportSet(f.ExportNames()...)
	sources := shaker.WildcardSources(f)
	if len(sources) == 0 {
		names := collected.Names()
		q.run.exportNames.Add(key, names)
		return fire(names)
	}

	visited := maps.Clone(p.Visited)
	if visited == nil {
		visited = make(map[string]bool)
	}
	visited[file] = true
	var targets []string
	for _, spec := range sources {
		target, err := q.run.resolve(ctx, file, spec, a.Stack)
		if err != nil {
			return buildError(file, err)
		}
		if visited[target] || slices.Contains(targets, target) {
			continue
		}
		targets = append(targets, target)
	}
	if len(targets) == 0 {
		return fire(collected.Names())
	}

	pending := len(targets)
	for _, target := range targets {
		done := func(names []string) error {
			collected = collected.Union(ir.NewExportSet(names...).Without(ir.DefaultExport))
			pending--
			if pending > 0 {
				return nil
			}
			return fire(collected.Names())
		}
		payload := &engine.GetExportsPayload{Callbacks: []engine.ExportsCallback{done}, Visited: visited}
		if err := next(engine.NewAction(engine.ActionGetExports, entrypoint.Detached(ctx, target), payload)); err != nil {
			return err
		}
	}
	return nil
}

// transform prepares the file for evaluation, shakes it down to the
// requested exports and schedules the files it still imports.
func (q *request) transform(ctx context.Context, a *engine.Action, next engine.Next) error {
	ep := a.Entrypoint
	if a.Aborted() {
		return next(finalize(ep))
	}
	var f *jsast.File
	if p, ok := a.Payload.(*transformPayload); ok && p.File != nil {
		f = p.File
	} else {
		var err error
		if f, err = q.run.parseFile(ep.Name, ep.Code); err != nil {
			return err
		}
	}

	only := ep.Only.Union(a.Only)
	if ep.Evaluator == entrypoint.ActionPassthrough {
		only = ir.NewExportSet(ir.Wildcard)
	}
	templates, err := processor.Detect(f, ep.Config.Processor())
	if err != nil {
		return buildError(ep.Name, err)
	}
	hasPreval, err := processor.Prepare(f, templates)
	if err != nil {
		return buildError(ep.Name, err)
	}
	shakeOnly := only
	if !hasPreval {
		shakeOnly = shakeOnly.Without(ir.PrevalExport)
	}
	shaken, err := shaker.Shake(f, shaker.Options{
		Only:          shakeOnly,
		UnknownExport: ep.Config.UnknownExport,
		SideEffects:   ep.Config.SideEffects,
	})
	if err != nil {
		return buildError(ep.Name, err)
	}

	// PrintCommonJS rewrites the tree, so ESM is printed first.
	esm := f.PrintESM()
	result := &ir.TransformResult{
		File:        ep.Name,
		Only:        only,
		Code:        f.PrintCommonJS(),
		ESM:         esm,
		Imports:     shaken.Imports,
		ContentHash: ir.ContentHash(ep.Code),
		HasPreval:   hasPreval && slices.Contains(shaken.Exports, ir.PrevalExport),
		Evaluator:   string(ep.Evaluator),
	}
	ep.Log.Debug("transformed",
		"only", []string(only),
		"deleted", shaken.Deleted,
		"imports", len(shaken.Imports),
	)

	toCache := engine.NewAction(engine.ActionAddToCodeCache, ep, &engine.CodeCachePayload{Result: result})
	toCache.Only = only
	if err := next(toCache); err != nil {
		return err
	}
	if !result.IsEmpty() && len(shaken.Imports) > 0 {
		payload := &engine.ResolveImportsPayload{Imports: shaken.Imports}
		if err := next(engine.NewAction(engine.ActionResolveImports, ep, payload)); err != nil {
			return err
		}
	}
	return next(finalize(ep))
}

func (q *request) addToCodeCache(ctx context.Context, a *engine.Action, next engine.Next) error {
	if a.Aborted() {
		a.Entrypoint.Log.Debug("code cache write skipped for aborted entrypoint")
		return nil
	}
	p, ok := a.Payload.(*engine.CodeCachePayload)
	if !ok || p.Result == nil {
		return fmt.Errorf("addToCodeCache %s: missing result", a.Entrypoint.Name)
	}
	res := p.Result
	q.run.codes.Put(res.File, res.Only, res)
	if q.run.store != nil {
		if err := q.run.store.Put(ctx, res); err != nil {
			q.log.Warn("store write failed", "file", res.File, "error", err)
		}
	}
	return nil
}

func (q *request) finalizeEntrypoint(ctx context.Context, a *engine.Action, next engine.Next) error {
	ep := a.Entrypoint
	if successor := ep.SupersededWith(); successor != nil {
		return next(engine.NewAction(engine.ActionProcessEntrypoint, successor, nil))
	}
	if ep.Aborted() {
		ep.Log.Debug("aborted entrypoint finalized")
		return nil
	}
	q.registry.Retire(ep)
	return nil
}
