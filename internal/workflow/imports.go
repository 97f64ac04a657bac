package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/bakecss/internal/cache"
	"github.com/roach88/bakecss/internal/config"
	"github.com/roach88/bakecss/internal/engine"
	"github.com/roach88/bakecss/internal/ir"
)

// importSet converts the names a file reads from a specifier into the
// export set requested from the target.
func importSet(names []string) ir.ExportSet {
	if len(names) == 0 {
		return ir.NewExportSet(ir.SideEffectExport)
	}
	return ir.NewExportSet(names...)
}

// resolveImports resolves every remaining import of a file. All of them
// are attempted; failures are reported together.
func (q *request) resolveImports(ctx context.Context, a *engine.Action, next engine.Next) error {
	ep := a.Entrypoint
	if a.Aborted() {
		return next(finalize(ep))
	}
	p, ok := a.Payload.(*engine.ResolveImportsPayload)
	if !ok {
		return fmt.Errorf("resolveImports %s: missing payload", ep.Name)
	}
	specs := make([]string, 0, len(p.Imports))
	for spec := range p.Imports {
		specs = append(specs, spec)
	}
	sort.Strings(specs)

	chain := ep.Chain()
	paths := make([]string, len(specs))
	errs := make([]error, len(specs))
	resolveOne := func(ctx context.Context, i int) {
		paths[i], errs[i] = q.run.resolve(ctx, ep.Name, specs[i], chain)
	}

	if q.run.cfg.Mode == config.ModeAsync && len(specs) > 1 {
		unlock := q.run.locks.Lock(ep.Name)
		var g errgroup.Group
		g.SetLimit(q.run.cfg.Concurrency)
		for i := range specs {
			g.Go(func() error {
				resolveOne(ctx, i)
				return nil
			})
		}
		_ = g.Wait()
		unlock()
	} else {
		for i := range specs {
			resolveOne(ctx, i)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := errors.Join(errs...); err != nil {
		return engine.NewBuildError(engine.ErrCodeResolutionFailed, ep.Name, err)
	}

	resolved := make([]engine.ResolvedImport, len(specs))
	for i, spec := range specs {
		only := importSet(p.Imports[spec])
		r := q.run.resolved.Put(ep.Name, spec, cache.Resolved{Path: paths[i], Only: only})
		resolved[i] = engine.ResolvedImport{Specifier: spec, Path: r.Path, Only: only}
	}
	ep.Log.Debug("imports resolved", "count", len(resolved))
	return next(engine.NewAction(engine.ActionProcessImports, ep, &engine.ProcessImportsPayload{Imports: resolved}))
}

// processImports creates a child entrypoint for every resolved import.
// A file the run already shook for other names is requested for the union,
// so its widest cached result keeps growing.
func (q *request) processImports(ctx context.Context, a *engine.Action, next engine.Next) error {
	ep := a.Entrypoint
	if a.Aborted() {
		return next(finalize(ep))
	}
	p, ok := a.Payload.(*engine.ProcessImportsPayload)
	if !ok {
		return fmt.Errorf("processImports %s: missing payload", ep.Name)
	}
	if q.run.cfg.Mode == config.ModeAsync && len(p.Imports) > 1 {
		if err := q.prefetch(ctx, p.Imports); err != nil {
			return err
		}
	}

	for _, imp := range p.Imports {
		if err := q.imports.link(ep.Name, imp.Path); err != nil {
			return err
		}
		code, err := q.run.read(ctx, imp.Path)
		if err != nil {
			return err
		}
		only := imp.Only
		if latest, ok := q.run.codes.Latest(imp.Path); ok && !latest.Only.Covers(only) &&
			latest.ContentHash == ir.ContentHash(code) {
			only = only.Union(latest.Only)
		}
		child, created := q.registry.Create(ep, imp.Path, code, only, q.run.parseCfg)
		if child == nil || !created {
			continue
		}
		if err := next(engine.NewAction(engine.ActionProcessEntrypoint, child, nil)); err != nil {
			return err
		}
	}
	return nil
}

// prefetch reads the imported files concurrently so the loop in
// processImports finds them cached.
func (q *request) prefetch(ctx context.Context, imports []engine.ResolvedImport) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(q.run.cfg.Concurrency)
	for _, imp := range imports {
		g.Go(func() error {
			_, err := q.run.read(gctx, imp.Path)
			return err
		})
	}
	return g.Wait()
}
