package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/bakecss/internal/ir"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - transform_cache table
const currentSchemaVersion = 1

// Store is a SQLite-backed transform cache.
type Store struct {
	db *sql.DB
}

// Stats summarizes the cache contents.
type Stats struct {
	Entries int   `json:"entries"`
	Files   int   `json:"files"`
	Bytes   int64 `json:"bytes"`
}

// Open creates or opens a cache database at path.
// Applies required pragmas and the schema; safe to call repeatedly.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put stores result under every token of its export set. A row already
// present for a token is replaced.
func (s *Store) Put(ctx context.Context, result *ir.TransformResult) error {
	if result == nil || result.File == "" {
		return errors.New("put: result has no file")
	}
	data, err := marshalResult(result)
	if err != nil {
		return fmt.Errorf("put %s: %w", result.File, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put %s: %w", result.File, err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM transform_cache`).Scan(&seq); err != nil {
		return fmt.Errorf("put %s: next seq: %w", result.File, err)
	}

	for _, token := range tokens(result.Only) {
		key, err := ir.CacheKey(result.File, token, result.ContentHash)
		if err != nil {
			return fmt.Errorf("put %s: %w", result.File, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO transform_cache
			(cache_key, file, token, content_hash, only_key, result, cache_version, engine_version, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(cache_key) DO UPDATE SET
				only_key = excluded.only_key,
				result = excluded.result,
				cache_version = excluded.cache_version,
				engine_version = excluded.engine_version,
				seq = excluded.seq
		`,
			key,
			result.File,
			token,
			result.ContentHash,
			result.Only.Key(),
			data,
			ir.CacheVersion,
			ir.EngineVersion,
			seq,
		)
		if err != nil {
			return fmt.Errorf("put %s [%s]: %w", result.File, token, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put %s: commit: %w", result.File, err)
	}
	slog.Debug("transform cached", "file", result.File, "only", result.Only.Key())
	return nil
}

// Get returns the result stored for (file, token) at contentHash.
func (s *Store) Get(ctx context.Context, file, token, contentHash string) (*ir.TransformResult, bool, error) {
	key, err := ir.CacheKey(file, token, contentHash)
	if err != nil {
		return nil, false, err
	}
	var data string
	err = s.db.QueryRowContext(ctx, `
		SELECT result FROM transform_cache
		WHERE cache_key = ? AND cache_version = ?
	`, key, ir.CacheVersion).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s [%s]: %w", file, token, err)
	}
	result, err := unmarshalResult(data)
	if err != nil {
		return nil, false, fmt.Errorf("get %s [%s]: %w", file, token, err)
	}
	return result, true, nil
}

// Load returns every distinct result stored for file at contentHash,
// oldest first.
func (s *Store) Load(ctx context.Context, file, contentHash string) ([]*ir.TransformResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT only_key, MIN(result) FROM transform_cache
		WHERE file = ? AND content_hash = ? AND cache_version = ?
		GROUP BY only_key
		ORDER BY MIN(seq) ASC, only_key ASC
	`, file, contentHash, ir.CacheVersion)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", file, err)
	}
	defer rows.Close()

	var out []*ir.TransformResult
	for rows.Next() {
		var onlyKey, data string
		if err := rows.Scan(&onlyKey, &data); err != nil {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
		result, err := unmarshalResult(data)
		if err != nil {
			return nil, fmt.Errorf("load %s [%s]: %w", file, onlyKey, err)
		}
		out = append(out, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load %s: %w", file, err)
	}
	return out, nil
}

// Stats reports the number of rows, distinct files and stored bytes.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT file), COALESCE(SUM(LENGTH(result)), 0)
		FROM transform_cache
	`).Scan(&st.Entries, &st.Files, &st.Bytes)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}

// Clear deletes every row and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transform_cache`)
	if err != nil {
		return 0, fmt.Errorf("clear: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear: %w", err)
	}
	return n, nil
}

func tokens(only ir.ExportSet) []string {
	if only.IsWildcard() || only.IsEmpty() {
		return []string{ir.Wildcard}
	}
	return only.Names()
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and records the schema
// version.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
