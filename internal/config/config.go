// Package config loads compiler options from YAML or CUE files, a .env file
// and BAKECSS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/bakecss/internal/entrypoint"
	"github.com/roach88/bakecss/internal/extract"
	"github.com/roach88/bakecss/internal/processor"
	"github.com/roach88/bakecss/internal/shaker"
)

// Mode selects how a request schedules file system work.
type Mode string

const (
	// ModeSync resolves and reads inline on the scheduler goroutine.
	ModeSync Mode = "sync"

	// ModeAsync fans resolution and reads out to worker goroutines.
	ModeAsync Mode = "async"
)

// Defaults for fields left unset.
const (
	DefaultConcurrency = 8
	DefaultMaxActions  = 10000
	DefaultNodeEnv     = "production"
	DefaultLogLevel    = "info"
)

// Features toggles optional behavior.
type Features struct {
	// SideEffects keeps side-effect imports ("import './x'") as roots of
	// the shaken file.
	SideEffects bool `yaml:"side_effects" json:"side_effects"`
}

// Options configure a compiler.
type Options struct {
	Rules         entrypoint.Rules    `yaml:"rules" json:"rules,omitempty"`
	Tags          []processor.TagSpec `yaml:"tags" json:"tags,omitempty"`
	ClassNameSlug string              `yaml:"class_name_slug" json:"class_name_slug"`
	Preprocessor  string              `yaml:"preprocessor" json:"preprocessor"`
	UnknownExport shaker.Policy       `yaml:"unknown_export" json:"unknown_export"`
	Features      Features            `yaml:"features" json:"features"`
	Mode          Mode                `yaml:"mode" json:"mode"`
	Concurrency   int                 `yaml:"concurrency" json:"concurrency"`
	MaxActions    int                 `yaml:"max_actions" json:"max_actions"`
	CacheDB       string              `yaml:"cache_db" json:"cache_db"`
	LogLevel      string              `yaml:"log_level" json:"log_level"`
	NodeEnv       string              `yaml:"node_env" json:"node_env"`
	Extensions    []string            `yaml:"extensions" json:"extensions,omitempty"`
}

// Default returns the options used when nothing is configured.
func Default() *Options {
	return &Options{
		Rules:         entrypoint.DefaultRules(),
		Tags:          processor.DefaultTags(),
		ClassNameSlug: processor.DefaultSlug,
		Preprocessor:  extract.PreprocessorDouceur,
		UnknownExport: shaker.PolicyError,
		Features:      Features{SideEffects: true},
		Mode:          ModeSync,
		Concurrency:   DefaultConcurrency,
		MaxActions:    DefaultMaxActions,
		LogLevel:      DefaultLogLevel,
		NodeEnv:       DefaultNodeEnv,
	}
}

// Validate checks enum fields, bounds and rule patterns. All problems are
// reported together.
func (o *Options) Validate() error {
	var errs []error
	switch o.Mode {
	case ModeSync, ModeAsync:
	default:
		errs = append(errs, fmt.Errorf("mode: must be sync or async, got %q", o.Mode))
	}
	if _, err := extract.NewPreprocessor(o.Preprocessor); err != nil {
		errs = append(errs, fmt.Errorf("preprocessor: %w", err))
	}
	if !o.UnknownExport.Valid() {
		errs = append(errs, fmt.Errorf("unknown_export: invalid policy %q", o.UnknownExport))
	}
	if o.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency: must be at least 1, got %d", o.Concurrency))
	}
	if o.MaxActions < 0 {
		errs = append(errs, fmt.Errorf("max_actions: must not be negative, got %d", o.MaxActions))
	}
	if _, err := o.Level(); err != nil {
		errs = append(errs, err)
	}
	if _, err := o.Rules.Compile(); err != nil {
		errs = append(errs, fmt.Errorf("rules: %w", err))
	}
	for i, t := range o.Tags {
		if t.Kind != processor.KindCSS && t.Kind != processor.KindStyled {
			errs = append(errs, fmt.Errorf("tags[%d]: invalid kind %q", i, t.Kind))
		}
		if t.Module == "" || t.Name == "" {
			errs = append(errs, fmt.Errorf("tags[%d]: module and name are required", i))
		}
	}
	for i, ext := range o.Extensions {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Errorf("extensions[%d]: %q must start with a dot", i, ext))
		}
	}
	return errors.Join(errs...)
}

// Level parses LogLevel.
func (o *Options) Level() (slog.Level, error) {
	var l slog.Level
	if o.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(o.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

// ProcessorOptions returns the template detection options.
func (o *Options) ProcessorOptions() processor.Options {
	return processor.Options{Tags: o.Tags, Slug: o.ClassNameSlug}
}
