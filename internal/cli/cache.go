package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/bakecss/internal/store"
)

// CacheOptions holds flags for the cache commands.
type CacheOptions struct {
	*RootOptions
	Config  string
	CacheDB string
}

// CacheClearResult is the JSON payload of cache clear.
type CacheClearResult struct {
	Database string `json:"database"`
	Removed  int64  `json:"removed"`
}

// CacheStatsResult is the JSON payload of cache stats.
type CacheStatsResult struct {
	Database string `json:"database"`
	store.Stats
}

// NewCacheCommand creates the cache command and its subcommands.
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CacheOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the persistent transform cache",
	}
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "config file naming the cache database")
	cmd.PersistentFlags().StringVar(&opts.CacheDB, "cache-db", "", "cache database path")

	cmd.AddCommand(&cobra.Command{
		Use:           "stats",
		Short:         "Show cache entry counts and size",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheStats(opts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "clear",
		Short:         "Remove every cached transform result",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheClear(opts, cmd)
		},
	})
	return cmd
}

// openCache opens the database named by --cache-db or by the config.
func openCache(opts *CacheOptions) (*store.Store, string, error) {
	path := opts.CacheDB
	if path == "" {
		cfg, err := loadConfig(&ProjectOptions{Config: opts.Config})
		if err != nil {
			return nil, "", err
		}
		path = cfg.CacheDB
	}
	if path == "" {
		return nil, "", &commandError{Code: ErrCodeCache, Err: errors.New("no cache database: pass --cache-db or set cache_db")}
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, "", &commandError{Code: ErrCodeCache, Err: err}
	}
	return st, path, nil
}

func runCacheStats(opts *CacheOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, path, err := openCache(opts)
	if err != nil {
		return formatter.Fail("Cache stats", err)
	}
	defer st.Close()

	stats, err := st.Stats(contextOf(cmd))
	if err != nil {
		return formatter.Fail("Cache stats", &commandError{Code: ErrCodeCache, Err: err})
	}

	if formatter.Format == "json" {
		return formatter.Success(CacheStatsResult{Database: path, Stats: stats})
	}
	fmt.Fprintf(formatter.Writer, "Cache: %s\n", path)
	fmt.Fprintf(formatter.Writer, "  Entries: %d\n", stats.Entries)
	fmt.Fprintf(formatter.Writer, "  Files:   %d\n", stats.Files)
	fmt.Fprintf(formatter.Writer, "  Bytes:   %d\n", stats.Bytes)
	return nil
}

func runCacheClear(opts *CacheOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, path, err := openCache(opts)
	if err != nil {
		return formatter.Fail("Cache clear", err)
	}
	defer st.Close()

	removed, err := st.Clear(contextOf(cmd))
	if err != nil {
		return formatter.Fail("Cache clear", &commandError{Code: ErrCodeCache, Err: err})
	}

	if formatter.Format == "json" {
		return formatter.Success(CacheClearResult{Database: path, Removed: removed})
	}
	fmt.Fprintf(formatter.Writer, "✓ Removed %d cache entr(ies) from %s\n", removed, path)
	return nil
}
