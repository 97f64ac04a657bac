// Package workflow wires the pipeline stages into the action scheduler.
//
// A Run holds what the requests of one compilation share: the file, code,
// resolution and export-name caches, the sandbox, and the optional
// persistent store. Each Compile, Transform or Exports call is a request
// with its own queue and entrypoint registry.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/roach88/bakecss/internal/cache"
	"github.com/roach88/bakecss/internal/config"
	"github.com/roach88/bakecss/internal/engine"
	"github.com/roach88/bakecss/internal/entrypoint"
	"github.com/roach88/bakecss/internal/evaluator"
	"github.com/roach88/bakecss/internal/extract"
	"github.com/roach88/bakecss/internal/ir"
	"github.com/roach88/bakecss/internal/jsast"
	"github.com/roach88/bakecss/internal/resolver"
	"github.com/roach88/bakecss/internal/store"
)

const (
	exportNamesCacheSize = 1024
	moduleCacheSize      = 512
	outputCacheSize      = 256
)

// Options configure a Run.
type Options struct {
	// Config holds the compiler options. Nil selects config.Default.
	Config *config.Options

	Resolver resolver.Resolver
	Reader   cache.Reader

	// Store persists transform results across runs. Optional.
	Store *store.Store

	// RunIDs names the run. Nil selects UUIDv7 identifiers.
	RunIDs engine.RunIDGenerator
}

// Run is one compilation run.
type Run struct {
	id  string
	cfg *config.Options
	log *slog.Logger

	matcher  *entrypoint.Matcher
	parseCfg entrypoint.ParseConfig
	resolver resolver.Resolver
	pp       extract.Preprocessor
	store    *store.Store

	files       *cache.FileCache
	codes       *cache.CodeCache
	resolved    *cache.ResolveCache
	exportNames *lru.Cache[string, []string]
	modules     *lru.Cache[string, string]
	outputs     *lru.Cache[string, *Result]
	locks       *cache.KeyedMutex
	processed   *engine.CycleDetector
	clock       *engine.Clock
	eval        *evaluator.Context

	requests atomic.Int64
	parses   atomic.Int64
	cycles   atomic.Int64

	mu         sync.Mutex
	dispatched map[engine.ActionType]int
}

// NewRun validates the options and creates the shared state of a run.
func NewRun(opts Options) (*Run, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if opts.Resolver == nil || opts.Reader == nil {
		return nil, errors.New("workflow: resolver and reader are required")
	}
	matcher, err := cfg.Rules.Compile()
	if err != nil {
		return nil, err
	}
	pp, err := extract.NewPreprocessor(cfg.Preprocessor)
	if err != nil {
		return nil, err
	}
	files, err := cache.NewFileCache(opts.Reader, cache.DefaultFileCacheSize)
	if err != nil {
		return nil, err
	}
	names, err := lru.New[string, []string](exportNamesCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create export names cache: %w", err)
	}
	modules, err := lru.New[string, string](moduleCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create module cache: %w", err)
	}
	outputs, err := lru.New[string, *Result](outputCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create output cache: %w", err)
	}
	ids := opts.RunIDs
	if ids == nil {
		ids = engine.UUIDv7Generator{}
	}

	r := &Run{
		id:      ids.Generate(),
		cfg:     cfg,
		matcher: matcher,
		parseCfg: entrypoint.ParseConfig{
			Tags:          cfg.Tags,
			Slug:          cfg.ClassNameSlug,
			UnknownExport: cfg.UnknownExport,
			SideEffects:   cfg.Features.SideEffects,
		},
		resolver:    opts.Resolver,
		pp:          pp,
		store:       opts.Store,
		files:       files,
		codes:       cache.NewCodeCache(),
		resolved:    cache.NewResolveCache(),
		exportNames: names,
		modules:     modules,
		outputs:     outputs,
		locks:       cache.NewKeyedMutex(),
		processed:   engine.NewCycleDetector(),
		clock:       engine.NewClock(),
		dispatched:  make(map[engine.ActionType]int),
	}
	r.log = slog.With("run", r.id)
	r.eval, err = evaluator.New(evaluator.Options{
		Loader:  evaluator.LoaderFunc(r.load),
		NodeEnv: cfg.NodeEnv,
	})
	if err != nil {
		return nil, err
	}
	r.log.Debug("run created", "mode", cfg.Mode, "store", opts.Store != nil)
	return r, nil
}

// ID returns the run identifier.
func (r *Run) ID() string { return r.id }

// Parses returns how many times the run has parsed a file.
func (r *Run) Parses() int64 { return r.parses.Load() }

// Cycles returns how many entrypoints were requested from inside their own
// import chain.
func (r *Run) Cycles() int64 { return r.cycles.Load() }

// Dispatched returns how many actions of type t the run's requests have
// dispatched.
func (r *Run) Dispatched(t engine.ActionType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dispatched[t]
}

// Shaken returns the widest transform result cached for file.
func (r *Run) Shaken(file string) (*ir.TransformResult, bool) {
	return r.codes.Latest(file)
}

func (r *Run) record(s *engine.Scheduler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range engine.ActionTypes() {
		r.dispatched[t] += s.Dispatched(t)
	}
}

// Close drops the sandbox and every module it evaluated.
func (r *Run) Close() {
	r.eval.Close()
}

func (r *Run) parseFile(name, code string) (*jsast.File, error) {
	r.parses.Add(1)
	f, err := jsast.Parse(name, code)
	if err != nil {
		return nil, buildError(name, err)
	}
	return f, nil
}

func (r *Run) read(ctx context.Context, file string) (string, error) {
	code, err := r.files.Read(ctx, file)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", engine.NewBuildError(engine.ErrCodeResolutionFailed, file, err)
	}
	return code, nil
}

// resolve maps specifier to a path through the resolution cache.
func (r *Run) resolve(ctx context.Context, importer, specifier string, chain []string) (string, error) {
	if res, ok := r.resolved.Get(importer, specifier); ok {
		return res.Path, nil
	}
	p, err := r.resolver.Resolve(ctx, specifier, importer, chain)
	if err != nil {
		return "", err
	}
	r.resolved.Put(importer, specifier, cache.Resolved{Path: p})
	return p, nil
}

// cached returns a code cache entry satisfying only, re-seeding the cache
// from the store on a miss.
func (r *Run) cached(ctx context.Context, file, code string, only ir.ExportSet) (*ir.TransformResult, bool) {
	if res, ok := r.codes.Get(file, only); ok {
		return res, true
	}
	if r.store == nil {
		return nil, false
	}
	results, err := r.store.Load(ctx, file, ir.ContentHash(code))
	if err != nil {
		r.log.Warn("store load failed", "file", file, "error", err)
		return nil, false
	}
	for _, res := range results {
		r.codes.Put(file, res.Only, res)
	}
	if len(results) > 0 {
		r.log.Debug("code cache seeded from store", "file", file, "results", len(results))
	}
	return r.codes.Get(file, only)
}

// load supplies modules to the sandbox: a shaken result covering every
// name cached for the file when it went through the pipeline, the file as
// written otherwise.
func (r *Run) load(ctx context.Context, importer, specifier string) (evaluator.Module, error) {
	p, err := r.resolve(ctx, importer, specifier, nil)
	if err != nil {
		return evaluator.Module{}, err
	}
	if res, ok := r.codes.Widest(p); ok {
		return evaluator.Module{Path: p, Code: res.Code}, nil
	}
	code, err := r.files.Read(ctx, p)
	if err != nil {
		return evaluator.Module{}, err
	}
	key := p + "\x00" + ir.ContentHash(code)
	if converted, ok := r.modules.Get(key); ok {
		return evaluator.Module{Path: p, Code: converted}, nil
	}
	converted := r.commonJS(p, code)
	r.modules.Add(key, converted)
	return evaluator.Module{Path: p, Code: converted}, nil
}

// commonJS prepares a file that was not shaken for the sandbox. Code the
// parser rejects is handed over unchanged.
func (r *Run) commonJS(file, code string) string {
	if strings.EqualFold(path.Ext(file), ".json") {
		return "module.exports = " + code + ";"
	}
	f, err := jsast.Parse(file, code)
	if err != nil {
		r.log.Debug("loading module as written", "file", file, "error", err)
		return code
	}
	return f.PrintCommonJS()
}
