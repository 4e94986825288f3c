package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/rs/zerolog"

	// Package sqlite3 provides interface to SQLite3 databases.
	_ "github.com/mattn/go-sqlite3"
)

const (
	dbDriver = "sqlite3"
	kvTable  = "kv"
	colKey   = "key"
	colValue = "value"
	colTime  = "updated_at"
)

// SQLiteStore persists values in a single key/value table.
type SQLiteStore struct {
	db     *sql.DB
	hub    *hub
	log    zerolog.Logger
	mu     sync.Mutex
	closed bool
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path string, log zerolog.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open(dbDriver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at path %q: %w", path, err)
	}

	pragmas := []string{
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA synchronous = NORMAL;`,
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if _, err := db.Exec(`
    CREATE TABLE IF NOT EXISTS kv (
        key TEXT PRIMARY KEY,
        value JSON NOT NULL,
        updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
    );`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create kv table: %w", err)
	}

	return &SQLiteStore{
		db:  db,
		hub: newHub(),
		log: log.With().Str("component", "store").Logger(),
	}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, defaults Values) (Values, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}

	stored, err := s.read(ctx, s.db, defaults.Keys())
	if err != nil {
		return nil, err
	}

	out := make(Values, len(defaults))
	for k, def := range defaults {
		if v, ok := stored[k]; ok {
			out[k] = v
			continue
		}
		out[k] = clone(def)
	}
	return out, nil
}

func (s *SQLiteStore) Set(ctx context.Context, values Values) (err error) {
	if s.isClosed() {
		return ErrClosed
	}
	if len(values) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.log.Error().Err(rbErr).Msg("transaction rollback failed")
			}
		}
	}()

	prev, err := s.read(ctx, tx, values.Keys())
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for k, v := range values {
		query := squirrel.
			Insert(kvTable).
			Columns(colKey, colValue, colTime).
			Values(k, string(v), now).
			Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
			RunWith(tx)
		if _, err = query.ExecContext(ctx); err != nil {
			return fmt.Errorf("failed to write key %q: %w", k, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	s.hub.publish(diff(prev, values))
	return nil
}

func (s *SQLiteStore) Subscribe(fn func(Changes)) func() {
	return s.hub.subscribe(fn)
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.hub.close()
	return s.db.Close()
}

func (s *SQLiteStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *SQLiteStore) read(ctx context.Context, runner squirrel.BaseRunner, keys []string) (Values, error) {
	out := make(Values, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	rows, err := squirrel.
		Select(colKey, colValue).
		From(kvTable).
		Where(squirrel.Eq{colKey: keys}).
		RunWith(runner).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query values: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key   string
			value string
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		out[key] = json.RawMessage(value)
	}
	return out, rows.Err()
}
