package cache

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/emberfx/graphc/internal/ir"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema
const currentSchemaVersion = 1

// Store is the on-disk artifact cache. Compiled artifacts are stored
// under their aggregated dependency-hash key; a key miss means the
// artifact is stale (some transitive dependency changed) and must be
// recompiled.
//
// Uses SQLite with WAL mode. SQLite supports one writer at a time;
// the connection pool is limited to a single connection to avoid
// SQLITE_BUSY on concurrent compile workers.
type Store struct {
	db *sql.DB
}

// Open creates or opens the artifact cache at the given path.
// Idempotent; applies pragmas and schema migrations automatically.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to cache database: %w", err)
	}

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

// Get fetches the artifact stored under a cache key. The second return
// is false on a miss.
func (s *Store) Get(ctx context.Context, key ir.Hash) ([]byte, bool, error) {
	var artifact []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT artifact FROM artifacts WHERE cache_key = ?`, string(key)).Scan(&artifact)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	return artifact, true, nil
}

// Put stores an artifact under its cache key, replacing any previous
// entry for the same key.
func (s *Store) Put(ctx context.Context, key ir.Hash, identity string, usage ir.UsageKind, artifact []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (cache_key, identity, usage, artifact) VALUES (?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET identity = excluded.identity, usage = excluded.usage, artifact = excluded.artifact`,
		string(key), identity, usage.String(), artifact)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Invalidate drops every artifact rooted at the given identity.
// Used when an asset is deleted rather than edited (edits change the
// key and age out naturally).
func (s *Store) Invalidate(ctx context.Context, identity string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE identity = ?`, identity)
	if err != nil {
		return 0, fmt.Errorf("cache invalidate: %w", err)
	}
	return res.RowsAffected()
}

// Flush drops all cached artifacts.
func (s *Store) Flush(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM artifacts`)
	if err != nil {
		return 0, fmt.Errorf("cache flush: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of cached artifacts.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM artifacts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("cache count: %w", err)
	}
	return n, nil
}

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

// applySchema creates tables if they don't exist and records the
// schema version. Idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	err := db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if err == sql.ErrNoRows {
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, currentSchemaVersion); err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("cache schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}
	return nil
}
