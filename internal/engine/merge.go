package engine

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/bakecss/internal/ir"
)

// ErrMergeTypeMismatch reports an attempt to merge actions of different
// types. It indicates a bug in the caller.
var ErrMergeTypeMismatch = errors.New("merge of actions with different types")

// merge folds next into queued, which stays in the queue.
func merge(queued, next *Action) error {
	if queued.Type != next.Type {
		return fmt.Errorf("%w: %s and %s", ErrMergeTypeMismatch, queued.Type, next.Type)
	}
	switch queued.Type {
	case ActionProcessEntrypoint, ActionTransform, ActionFinalizeEntrypoint:
		mergeEntrypoint(queued, next)
	case ActionResolveImports:
		return mergeResolveImports(queued, next)
	case ActionProcessImports:
		return mergeProcessImports(queued, next)
	case ActionGetExports:
		return mergeGetExports(queued, next)
	case ActionAddToCodeCache:
		mergeCodeCache(queued, next)
	}
	queued.RefCount += next.RefCount
	return nil
}

func mergeEntrypoint(queued, next *Action) {
	queued.Only = queued.Only.Union(next.Only)
	if next.Entrypoint.Generation > queued.Entrypoint.Generation {
		queued.Entrypoint = next.Entrypoint
		queued.Abort = next.Abort
	}
}

func mergeResolveImports(queued, next *Action) error {
	a, ok1 := queued.Payload.(*ResolveImportsPayload)
	b, ok2 := next.Payload.(*ResolveImportsPayload)
	if !ok1 || !ok2 {
		return fmt.Errorf("merge %s: unexpected payload %T", queued.Type, next.Payload)
	}
	if a.Imports == nil {
		a.Imports = make(map[string][]string)
	}
	for spec, names := range b.Imports {
		a.Imports[spec] = ir.NewExportSet(append(slices.Clone(a.Imports[spec]), names...)...)
	}
	queued.Only = queued.Only.Union(next.Only)
	return nil
}

func mergeProcessImports(queued, next *Action) error {
	a, ok1 := queued.Payload.(*ProcessImportsPayload)
	b, ok2 := next.Payload.(*ProcessImportsPayload)
	if !ok1 || !ok2 {
		return fmt.Errorf("merge %s: unexpected payload %T", queued.Type, next.Payload)
	}
	byPath := make(map[string]int, len(a.Imports))
	for i, imp := range a.Imports {
		byPath[imp.Path] = i
	}
	for _, imp := range b.Imports {
		if i, ok := byPath[imp.Path]; ok {
			a.Imports[i].Only = a.Imports[i].Only.Union(imp.Only)
			continue
		}
		byPath[imp.Path] = len(a.Imports)
		a.Imports = append(a.Imports, imp)
	}
	queued.Only = queued.Only.Union(next.Only)
	return nil
}

func mergeGetExports(queued, next *Action) error {
	a, ok1 := queued.Payload.(*GetExportsPayload)
	b, ok2 := next.Payload.(*GetExportsPayload)
	if !ok1 || !ok2 {
		return fmt.Errorf("merge %s: unexpected payload %T", queued.Type, next.Payload)
	}
	a.Callbacks = append(a.Callbacks, b.Callbacks...)
	return nil
}

// mergeCodeCache keeps a wildcard result over any other. Otherwise the
// export sets are unioned and the result computed for the larger set wins.
func mergeCodeCache(queued, next *Action) {
	switch {
	case queued.Only.IsWildcard():
		return
	case next.Only.IsWildcard():
		queued.Only = next.Only
		queued.Payload = next.Payload
		queued.Entrypoint = next.Entrypoint
		queued.Abort = next.Abort
		return
	}
	if len(next.resultOnly()) > len(queued.resultOnly()) {
		queued.Payload = next.Payload
		queued.Entrypoint = next.Entrypoint
		queued.Abort = next.Abort
	}
	queued.Only = queued.Only.Union(next.Only)
}

func (a *Action) resultOnly() ir.ExportSet {
	if p, ok := a.Payload.(*CodeCachePayload); ok && p.Result != nil {
		return p.Result.Only
	}
	return a.Only
}
