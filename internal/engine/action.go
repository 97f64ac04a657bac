package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/bakecss/internal/entrypoint"
	"github.com/roach88/bakecss/internal/ir"
)

// ActionType names a pipeline stage.
type ActionType string

const (
	ActionProcessEntrypoint  ActionType = "processEntrypoint"
	ActionExplodeReexports   ActionType = "explodeReexports"
	ActionTransform          ActionType = "transform"
	ActionResolveImports     ActionType = "resolveImports"
	ActionProcessImports     ActionType = "processImports"
	ActionGetExports         ActionType = "getExports"
	ActionEvalFile           ActionType = "evalFile"
	ActionCollect            ActionType = "collect"
	ActionExtract            ActionType = "extract"
	ActionAddToCodeCache     ActionType = "addToCodeCache"
	ActionFinalizeEntrypoint ActionType = "finalizeEntrypoint"
)

// weights order action types in the queue. A higher weight runs first.
var weights = map[ActionType]int{
	ActionAddToCodeCache:     0,
	ActionFinalizeEntrypoint: 1,
	ActionExtract:            2,
	ActionCollect:            3,
	ActionEvalFile:           4,
	ActionProcessEntrypoint:  5,
	ActionTransform:          6,
	ActionExplodeReexports:   7,
	ActionProcessImports:     8,
	ActionResolveImports:     9,
	ActionGetExports:         10,
}

// Weight returns the queue priority of t.
func (t ActionType) Weight() int {
	return weights[t]
}

// Valid reports whether t is a known action type.
func (t ActionType) Valid() bool {
	_, ok := weights[t]
	return ok
}

// ActionTypes returns every action type in ascending weight.
func ActionTypes() []ActionType {
	out := make([]ActionType, len(weights))
	for t, w := range weights {
		out[w] = t
	}
	return out
}

// Action is one unit of pipeline work for an entrypoint.
type Action struct {
	Type       ActionType
	Entrypoint *entrypoint.Entrypoint

	// Only is the export set the action works for. Merges union it.
	Only ir.ExportSet

	// Payload is one of the *Payload types, or nil.
	Payload any

	// Stack is the entrypoint chain that scheduled the action.
	Stack []string

	RefCount int

	// Abort is cancelled when the action's work is no longer wanted.
	Abort context.Context

	// Seq is stamped on enqueue and breaks every remaining tie.
	Seq int64
}

// NewAction builds an action for ep, inheriting its export set, stack and
// cancellation.
func NewAction(t ActionType, ep *entrypoint.Entrypoint, payload any) *Action {
	return &Action{
		Type:       t,
		Entrypoint: ep,
		Only:       ep.Only,
		Payload:    payload,
		Stack:      ep.Chain(),
		RefCount:   1,
		Abort:      ep.Context(),
	}
}

// Key identifies the work an action stands for. Two queued actions with
// the same key are merged. Export lookups also key on their visited set, so
// only traversals that would prune the same files share one lookup.
func (a *Action) Key() string {
	key := string(a.Type) + "\x00" + a.Entrypoint.Name
	if p, ok := a.Payload.(*GetExportsPayload); ok && len(p.Visited) > 0 {
		visited := make([]string, 0, len(p.Visited))
		for file, seen := range p.Visited {
			if seen {
				visited = append(visited, file)
			}
		}
		sort.Strings(visited)
		key += "\x00" + strings.Join(visited, "\x01")
	}
	return key
}

// Aborted reports whether the action's work is no longer wanted. Work
// queued by an entrypoint that has since retired is still wanted.
func (a *Action) Aborted() bool {
	if a.Abort == nil || a.Abort.Err() == nil {
		return false
	}
	return a.Entrypoint == nil || !a.Entrypoint.Retired()
}

func (a *Action) String() string {
	return fmt.Sprintf("%s(%s %s)", a.Type, a.Entrypoint.Name, a.Only)
}

// ResolveImportsPayload lists the names requested from each specifier.
type ResolveImportsPayload struct {
	Imports map[string][]string
}

// ResolvedImport is an import specifier with its target and the exports
// requested from it.
type ResolvedImport struct {
	Specifier string
	Path      string
	Only      ir.ExportSet
}

// ProcessImportsPayload lists the resolved imports of a file.
type ProcessImportsPayload struct {
	Imports []ResolvedImport
}

// ExportsCallback receives the export names of a file.
type ExportsCallback func(names []string) error

// GetExportsPayload collects the callbacks waiting for a file's export
// names and the files already visited on the way.
type GetExportsPayload struct {
	Callbacks []ExportsCallback
	Visited   map[string]bool
}

// CodeCachePayload is a transform result ready to be cached.
type CodeCachePayload struct {
	Result *ir.TransformResult
}
