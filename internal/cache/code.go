// Package cache holds the transform results, resolutions and file contents
// shared by the requests of one compilation run.
package cache

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/roach88/bakecss/internal/ir"
)

// CodeCache maps (file, export token) to the transform result that covers
// the token. Writes only add or replace entries.
type CodeCache struct {
	mu      sync.RWMutex
	entries map[string]map[string]*ir.TransformResult
}

// NewCodeCache returns an empty cache.
func NewCodeCache() *CodeCache {
	return &CodeCache{entries: make(map[string]map[string]*ir.TransformResult)}
}

// Put records result for every token of only.
func (c *CodeCache) Put(file string, only ir.ExportSet, result *ir.TransformResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tokens := c.entries[file]
	if tokens == nil {
		tokens = make(map[string]*ir.TransformResult)
		c.entries[file] = tokens
	}
	for _, tok := range only {
		tokens[tok] = result
	}
}

// Get returns a result satisfying a request for only, if the cache holds
// one. A wildcard request is satisfied only by a wildcard entry. Otherwise
// every requested token needs an entry: one result covering them all is
// returned as is, and results split across entries are combined. The
// side-effect token is covered by any result for the file.
func (c *CodeCache) Get(file string, only ir.ExportSet) (*ir.TransformResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return get(file, c.entries[file], only)
}

// Widest returns a result covering every token cached for file.
func (c *CodeCache) Widest(file string) (*ir.TransformResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tokens := c.entries[file]
	if _, ok := tokens[ir.Wildcard]; !ok && len(tokens) > 0 {
		all := ir.NewExportSet(slices.Collect(maps.Keys(tokens))...)
		if r, ok := get(file, tokens, all); ok {
			return r, true
		}
	}
	return anyResult(tokens)
}

func get(file string, tokens map[string]*ir.TransformResult, only ir.ExportSet) (*ir.TransformResult, bool) {
	if tokens == nil || only.IsEmpty() {
		return nil, false
	}
	if only.IsWildcard() {
		r, ok := tokens[ir.Wildcard]
		return r, ok
	}
	if r, ok := tokens[ir.Wildcard]; ok {
		return r, true
	}

	names := only.Without(ir.SideEffectExport)
	if names.IsEmpty() {
		return anyResult(tokens)
	}
	for _, tok := range names {
		r, ok := tokens[tok]
		if !ok {
			return nil, false
		}
		if r.Only.Covers(names) {
			return r, true
		}
	}
	r, ok := combine(file, names, tokens)
	if ok {
		slog.Debug("code cache results combined", "file", file, "only", []string(only))
	}
	return r, ok
}

// combine builds one result for names out of the entries recorded for
// each of them. Every distinct entry runs in its own module scope and the
// combined module re-exports each name from the entry computed for it.
// Entries computed from different source text are not combined.
func combine(file string, names ir.ExportSet, tokens map[string]*ir.TransformResult) (*ir.TransformResult, bool) {
	var parts []*ir.TransformResult
	index := make(map[*ir.TransformResult]int)
	for _, tok := range names {
		r := tokens[tok]
		if _, ok := index[r]; ok {
			continue
		}
		if len(parts) > 0 && r.ContentHash != parts[0].ContentHash {
			return nil, false
		}
		index[r] = len(parts)
		parts = append(parts, r)
	}

	out := &ir.TransformResult{
		File:        file,
		Only:        names,
		Imports:     make(map[string][]string),
		ContentHash: parts[0].ContentHash,
		Evaluator:   parts[0].Evaluator,
	}
	var code, esm strings.Builder
	for i, r := range parts {
		fmt.Fprintf(&code, "var _bake_part%d = (function () {\nvar module = { exports: {} };\nvar exports = module.exports;\n%s\nreturn module.exports;\n})();\n", i, r.Code)
		fmt.Fprintf(&esm, "// exports: %s\n%s\n", strings.Join(r.Only, ", "), r.ESM)
		for spec, used := range r.Imports {
			merged := ir.NewExportSet(append(slices.Clone(out.Imports[spec]), used...)...)
			if merged == nil {
				merged = ir.ExportSet{}
			}
			out.Imports[spec] = merged
		}
	}
	for _, tok := range names {
		r := tokens[tok]
		fmt.Fprintf(&code, "exports[%s] = _bake_part%d[%s];\n", strconv.Quote(tok), index[r], strconv.Quote(tok))
		if tok == ir.PrevalExport && r.HasPreval {
			out.HasPreval = true
		}
	}
	out.Code = code.String()
	out.ESM = esm.String()
	return out, true
}

// Latest returns the widest result recorded for file.
func (c *CodeCache) Latest(file string) (*ir.TransformResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return anyResult(c.entries[file])
}

// Files returns how many files have entries.
func (c *CodeCache) Files() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func anyResult(tokens map[string]*ir.TransformResult) (*ir.TransformResult, bool) {
	if r, ok := tokens[ir.Wildcard]; ok {
		return r, true
	}
	var widest *ir.TransformResult
	for _, r := range tokens {
		if widest == nil || len(r.Only) > len(widest.Only) ||
			len(r.Only) == len(widest.Only) && r.Only.Key() < widest.Only.Key() {
			widest = r
		}
	}
	return widest, widest != nil
}

// Resolved is the target of an import specifier and the names requested
// from it.
type Resolved struct {
	Path string
	Only ir.ExportSet
}

type resolveKey struct {
	file      string
	specifier string
}

// ResolveCache maps (importer, specifier) to its resolution.
type ResolveCache struct {
	mu      sync.RWMutex
	entries map[resolveKey]Resolved
}

// NewResolveCache returns an empty cache.
func NewResolveCache() *ResolveCache {
	return &ResolveCache{entries: make(map[resolveKey]Resolved)}
}

// Put records a resolution, merging the requested names into any earlier
// entry for the same target.
func (c *ResolveCache) Put(file, specifier string, r Resolved) Resolved {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := resolveKey{file, specifier}
	if prev, ok := c.entries[key]; ok && prev.Path == r.Path {
		r.Only = prev.Only.Union(r.Only)
	}
	c.entries[key] = r
	return r
}

// Get returns the resolution of specifier from file.
func (c *ResolveCache) Get(file, specifier string) (Resolved, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.entries[resolveKey{file, specifier}]
	return r, ok
}
