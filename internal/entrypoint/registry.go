package entrypoint

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/bakecss/internal/ir"
)

// Registry holds the live entrypoints of one request queue.
type Registry struct {
	mu      sync.Mutex
	ctx     context.Context
	rules   *Matcher
	live    map[string]*Entrypoint
	created int
}

// NewRegistry returns a registry whose entrypoints are cancelled with ctx.
func NewRegistry(ctx context.Context, rules *Matcher) *Registry {
	return &Registry{
		ctx:   ctx,
		rules: rules,
		live:  make(map[string]*Entrypoint),
	}
}

// Create requests the file path for the exports only on behalf of parent,
// which is nil for the root request.
//
// The returned bool is false when the caller has nothing to schedule: the
// file is ignored by the rules, or the request was folded into the live
// entrypoint for the path.
func (r *Registry) Create(parent *Entrypoint, path, code string, only ir.ExportSet, cfg ParseConfig) (*Entrypoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	action := r.rules.Match(path, code)
	if action == ActionIgnore {
		slog.Debug("entrypoint ignored by rules", "file", path)
		return nil, false
	}

	if ep, ok := r.live[path]; ok {
		switch {
		case ep.Only.Covers(only):
			ep.RefCount++
			return ep, false
		case !ep.started:
			ep.Only = ep.Only.Union(only)
			ep.RefCount++
			ep.Log.Debug("entrypoint merged", "only", []string(ep.Only))
			return ep, false
		default:
			next := r.supersede(ep, only)
			if parent != nil && slices.Contains(parent.Chain(), path) {
				next.Cyclic = true
				next.Log.Debug("cyclic entrypoint", "stack", parent.Chain())
			}
			return next, false
		}
	}

	var stack []string
	if parent != nil {
		stack = parent.Chain()
	}
	ep := newEntrypoint(r.ctx, path, code, only, stack)
	ep.Evaluator = action
	ep.Config = cfg
	if slices.Contains(stack, path) {
		ep.Cyclic = true
		ep.Log.Debug("cyclic entrypoint", "stack", stack)
	}
	r.live[path] = ep
	r.created++
	return ep, true
}

// supersede replaces a started entrypoint with one covering both requests.
// The old entrypoint is cancelled; its finalization schedules the new one.
func (r *Registry) supersede(old *Entrypoint, only ir.ExportSet) *Entrypoint {
	next := newEntrypoint(r.ctx, old.Name, old.Code, old.Only.Union(only), old.Stack)
	next.Evaluator = old.Evaluator
	next.Config = old.Config
	next.Cyclic = old.Cyclic
	next.RefCount = old.RefCount + 1
	next.Generation = old.Generation + 1
	old.supersededWith = next
	old.Abort()
	r.live[old.Name] = next
	r.created++
	next.Log.Debug("entrypoint superseded", "generation", next.Generation, "only", []string(next.Only))
	return next
}

// Retire removes ep from the live set once its result is committed. A
// superseded entrypoint is not live and retiring it is a no-op.
func (r *Registry) Retire(ep *Entrypoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.live[ep.Name] == ep {
		delete(r.live, ep.Name)
		ep.retired = true
	}
	ep.cancel()
}

// Live returns the live entrypoint for path.
func (r *Registry) Live(path string) (*Entrypoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ep, ok := r.live[path]
	return ep, ok
}

// Created returns how many entrypoints the registry has made, including
// superseding ones.
func (r *Registry) Created() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created
}
