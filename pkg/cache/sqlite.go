package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	_ "modernc.org/sqlite" // pure-Go driver
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteCache implements Backend on a single SQLite file, so values survive restarts
// without any external service.
type SQLiteCache struct {
	db    *sql.DB
	table string
}

// NewSQLiteCache opens (or creates) the database at path and ensures the table exists.
// Use ":memory:" for a throwaway database.
func NewSQLiteCache(path string, opts ...SQLiteOption) (*SQLiteCache, error) {
	cfg := &SQLiteConfig{Path: path, Table: "kv"}
	for _, opt := range opts {
		opt(cfg)
	}
	if !tableName.MatchString(cfg.Table) {
		return nil, fmt.Errorf("sqlite: invalid table name %q", cfg.Table)
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// one writer; also keeps ":memory:" on a single shared connection
	db.SetMaxOpenConns(1)

	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		k TEXT PRIMARY KEY,
		v BLOB NOT NULL,
		updated_at INTEGER NOT NULL DEFAULT (strftime('%%s','now'))
	)`, cfg.Table)
	if _, err := db.Exec(stmt); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	return &SQLiteCache{db: db, table: cfg.Table}, nil
}

func (s *SQLiteCache) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	q := fmt.Sprintf("SELECT v FROM %s WHERE k = ?", s.table)
	if err := s.db.QueryRowContext(ctx, q, key).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	return v, nil
}

func (s *SQLiteCache) Set(ctx context.Context, key string, value []byte) error {
	q := fmt.Sprintf(`INSERT INTO %s (k, v, updated_at) VALUES (?, ?, strftime('%%s','now'))
		ON CONFLICT(k) DO UPDATE SET v = excluded.v, updated_at = excluded.updated_at`, s.table)
	_, err := s.db.ExecContext(ctx, q, key, value)
	return err
}

func (s *SQLiteCache) Delete(ctx context.Context, keys ...string) error {
	q := fmt.Sprintf("DELETE FROM %s WHERE k = ?", s.table)
	for _, key := range keys {
		if _, err := s.db.ExecContext(ctx, q, key); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteCache) Close() error {
	return s.db.Close()
}
