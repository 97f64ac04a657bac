package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/bakecss/internal/processor"
	"github.com/roach88/bakecss/internal/shaker"
)

//go:embed schema.cue
var schemaCUE string

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BAKECSS_"

// Lookup reads one environment variable.
type Lookup func(key string) (string, bool)

// Load builds options from defaults, the file at path (if any), the .env
// file in dir (if present) and the process environment, in increasing
// precedence. Process variables win over .env entries.
func Load(path, dir string) (*Options, error) {
	opts := Default()
	if path != "" {
		loaded, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		opts = loaded
	}

	dotenv, err := ReadDotEnv(filepath.Join(dir, ".env"))
	if err != nil {
		return nil, err
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := opts.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return opts, nil
}

// LoadFile reads a .yaml, .yml or .cue file on top of the defaults.
func LoadFile(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".cue":
		return ParseCUE(path, data)
	default:
		return nil, fmt.Errorf("config %s: unsupported extension %q", path, ext)
	}
}

// ParseYAML decodes YAML over Default(). Unknown keys are rejected.
func ParseYAML(data []byte) (*Options, error) {
	opts := Default()
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(opts); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse yaml config: %w", err)
	}
	fillDefaults(opts)
	return opts, nil
}

// ParseCUE unifies the file with the embedded #Config schema and decodes
// the result. The schema supplies defaults for missing fields.
func ParseCUE(name string, data []byte) (*Options, error) {
	cctx := cuecontext.New()
	schema := cctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}
	val := cctx.CompileBytes(data, cue.Filename(name))
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("parse cue config: %w", err)
	}
	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(val)
	if err := unified.Validate(); err != nil {
		return nil, fmt.Errorf("validate cue config: %w", err)
	}
	var opts Options
	if err := unified.Decode(&opts); err != nil {
		return nil, fmt.Errorf("decode cue config: %w", err)
	}
	fillDefaults(&opts)
	return &opts, nil
}

// fillDefaults restores list defaults a file left empty.
func fillDefaults(o *Options) {
	d := Default()
	if len(o.Rules) == 0 {
		o.Rules = d.Rules
	}
	if len(o.Tags) == 0 {
		o.Tags = processor.DefaultTags()
	}
}

// ReadDotEnv parses a .env file. A missing file yields an empty map.
func ReadDotEnv(path string) (map[string]string, error) {
	env, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	slog.Debug("loaded dotenv", "path", path, "keys", len(env))
	return env, nil
}

// ApplyEnv overrides fields from BAKECSS_* variables.
func (o *Options) ApplyEnv(lookup Lookup) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
		return nil
	}

	var mode, policy string
	str("MODE", &mode)
	if mode != "" {
		o.Mode = Mode(mode)
	}
	str("UNKNOWN_EXPORT", &policy)
	if policy != "" {
		o.UnknownExport = shaker.Policy(policy)
	}
	str("CLASS_NAME_SLUG", &o.ClassNameSlug)
	str("PREPROCESSOR", &o.Preprocessor)
	str("CACHE_DB", &o.CacheDB)
	str("LOG_LEVEL", &o.LogLevel)
	str("NODE_ENV", &o.NodeEnv)
	if v, ok := lookup(EnvPrefix + "EXTENSIONS"); ok {
		o.Extensions = nil
		for _, ext := range strings.Split(v, ",") {
			if ext = strings.TrimSpace(ext); ext != "" {
				o.Extensions = append(o.Extensions, ext)
			}
		}
	}
	if v, ok := lookup(EnvPrefix + "SIDE_EFFECTS"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sSIDE_EFFECTS: %w", EnvPrefix, err)
		}
		o.Features.SideEffects = b
	}
	if err := num("CONCURRENCY", &o.Concurrency); err != nil {
		return err
	}
	return num("MAX_ACTIONS", &o.MaxActions)
}
