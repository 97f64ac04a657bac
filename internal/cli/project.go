package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/bakecss/internal/config"
	"github.com/roach88/bakecss/internal/resolver"
	"github.com/roach88/bakecss/internal/store"
	"github.com/roach88/bakecss/internal/workflow"
)

// Error codes for CLI responses. Build failures use the build error code
// itself (RESOLUTION_FAILED, EVAL_FAILED, ...).
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeConfig      = "E010" // Config load or validation failed
	ErrCodeCache       = "E011" // Cache database error
)

// ProjectOptions are the flags shared by commands that build a Run.
type ProjectOptions struct {
	Config  string // config file path (.yaml, .yml or .cue)
	CacheDB string // SQLite cache path; overrides the config
	Async   bool   // force async mode
}

func addProjectFlags(cmd *cobra.Command, opts *ProjectOptions) {
	cmd.Flags().StringVar(&opts.Config, "config", "", "config file (.yaml, .yml or .cue)")
	cmd.Flags().StringVar(&opts.CacheDB, "cache-db", "", "persistent transform cache database")
	cmd.Flags().BoolVar(&opts.Async, "async", false, "resolve and read files concurrently")
}

// project is a Run over the real file system plus the store it may own.
type project struct {
	file  string
	cfg   *config.Options
	run   *workflow.Run
	store *store.Store
}

func (p *project) Close() {
	p.run.Close()
	if p.store != nil {
		if err := p.store.Close(); err != nil {
			slog.Warn("closing cache database", "error", err)
		}
	}
}

// commandError pairs a CLI error code with the underlying failure.
type commandError struct {
	Code string
	Err  error
}

func (e *commandError) Error() string { return e.Err.Error() }
func (e *commandError) Unwrap() error { return e.Err }

// loadConfig reads the config file, the .env file next to it (or in the
// working directory) and BAKECSS_* variables.
func loadConfig(opts *ProjectOptions) (*config.Options, error) {
	dir := "."
	if opts.Config != "" {
		dir = filepath.Dir(opts.Config)
	}
	cfg, err := config.Load(opts.Config, dir)
	if err != nil {
		return nil, &commandError{Code: ErrCodeConfig, Err: err}
	}
	if cfg.LogLevel != "" {
		if level, err := cfg.Level(); err == nil && level < logLevel.Level() {
			logLevel.Set(level)
		}
	}
	if opts.Async {
		cfg.Mode = config.ModeAsync
	}
	if opts.CacheDB != "" {
		cfg.CacheDB = opts.CacheDB
	}
	return cfg, nil
}

// openProject builds a Run for compiling file. Paths are resolved against
// the root of the file system.
func openProject(opts *ProjectOptions, file string) (*project, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, &commandError{Code: ErrCodeNotFound, Err: err}
	}
	if info, err := os.Stat(abs); err != nil {
		return nil, &commandError{Code: ErrCodeNotFound, Err: fmt.Errorf("file not found: %s", file)}
	} else if info.IsDir() {
		return nil, &commandError{Code: ErrCodeNotFound, Err: fmt.Errorf("not a file: %s", file)}
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	p := &project{file: filepath.ToSlash(abs), cfg: cfg}
	if cfg.CacheDB != "" {
		if p.store, err = store.Open(cfg.CacheDB); err != nil {
			return nil, &commandError{Code: ErrCodeCache, Err: err}
		}
	}

	root := os.DirFS("/")
	node := resolver.NewNode(root)
	if len(cfg.Extensions) > 0 {
		node.Extensions = cfg.Extensions
	}
	p.run, err = workflow.NewRun(workflow.Options{
		Config:   cfg,
		Resolver: node,
		Reader:   resolver.FSReader{FS: root},
		Store:    p.store,
	})
	if err != nil {
		if p.store != nil {
			_ = p.store.Close()
		}
		return nil, &commandError{Code: ErrCodeConfig, Err: err}
	}
	return p, nil
}
