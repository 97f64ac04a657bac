// Package entrypoint models a request to process one file for a set of
// exports, and the registry that keeps at most one live request per file.
package entrypoint

import (
	"context"
	"log/slog"
	"slices"

	"github.com/roach88/bakecss/internal/ir"
	"github.com/roach88/bakecss/internal/processor"
	"github.com/roach88/bakecss/internal/shaker"
)

// ParseConfig holds the per-file processing options.
type ParseConfig struct {
	Tags          []processor.TagSpec
	Slug          string
	UnknownExport shaker.Policy
	SideEffects   bool
}

// Processor returns the processor options for the file.
func (c ParseConfig) Processor() processor.Options {
	return processor.Options{Tags: c.Tags, Slug: c.Slug}
}

// Entrypoint is a request to process the file Name for the exports Only.
type Entrypoint struct {
	Name      string
	Code      string
	Only      ir.ExportSet
	Evaluator Action
	Config    ParseConfig
	Log       *slog.Logger

	// Stack lists the names of the entrypoints that led here, root first.
	Stack []string

	RefCount   int
	Generation int

	// Cyclic is set when Name already appears in Stack.
	Cyclic bool

	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	retired bool

	supersededWith *Entrypoint
}

func newEntrypoint(parent context.Context, name, code string, only ir.ExportSet, stack []string) *Entrypoint {
	ctx, cancel := context.WithCancel(parent)
	return &Entrypoint{
		Name:     name,
		Code:     code,
		Only:     only,
		Log:      slog.With("file", name),
		Stack:    stack,
		RefCount: 1,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Detached returns an entrypoint that belongs to no registry. It names a
// file for work that does not process it, such as listing its exports.
func Detached(ctx context.Context, name string) *Entrypoint {
	return newEntrypoint(ctx, name, "", ir.NewExportSet(ir.Wildcard), nil)
}

// Context is cancelled when the entrypoint is aborted or superseded.
func (e *Entrypoint) Context() context.Context { return e.ctx }

// Aborted reports whether the entrypoint's work should be skipped. A
// retired entrypoint is finished, not aborted: work it queued before
// retiring still runs.
func (e *Entrypoint) Aborted() bool { return e.ctx.Err() != nil && !e.retired }

// Retired reports whether the registry released the entrypoint after it
// finished.
func (e *Entrypoint) Retired() bool { return e.retired }

// Abort cancels the entrypoint.
func (e *Entrypoint) Abort() { e.cancel() }

// Started reports whether processing has begun.
func (e *Entrypoint) Started() bool { return e.started }

// Start marks the entrypoint as being processed. Requests arriving after
// this supersede it instead of merging into it.
func (e *Entrypoint) Start() { e.started = true }

// SupersededWith returns the entrypoint that replaced e, or nil.
func (e *Entrypoint) SupersededWith() *Entrypoint { return e.supersededWith }

// Chain returns Stack followed by the entrypoint's own name.
func (e *Entrypoint) Chain() []string {
	return append(slices.Clone(e.Stack), e.Name)
}
