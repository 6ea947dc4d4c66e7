package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// migrations[i] brings the schema to version i+1.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS exercise_stats (
		device TEXT NOT NULL,
		exercise_id TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		mistakes INTEGER NOT NULL DEFAULT 0,
		completions INTEGER NOT NULL DEFAULT 0,
		last_played_at TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (device, exercise_id)
	);`,
}

// SchemaVersion is the latest schema understood by Migrate.
var SchemaVersion = len(migrations)

// SQLite keeps the per-device arrays in a single key/value table, used by the
// CLI where no Redis is around.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and migrates it.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

// DB exposes the handle so other device tables (stats) share the file.
func (s *SQLite) DB() *sql.DB { return s.db }

func (s *SQLite) Close() error { return s.db.Close() }

var _ Store = (*SQLite)(nil)

// Migrate applies every migration above the recorded schema version.
func Migrate(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("migrate: db is nil")
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY);`); err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}
	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations;`).Scan(&current); err != nil {
		return fmt.Errorf("migrate: read current version: %w", err)
	}
	if current >= SchemaVersion {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migrate: begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for v := current + 1; v <= SchemaVersion; v++ {
		if _, err := tx.Exec(migrations[v-1]); err != nil {
			return fmt.Errorf("migrate: apply version %d: %w", v, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations(version) VALUES (?);`, v); err != nil {
			return fmt.Errorf("migrate: record schema version %d: %w", v, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit transaction: %w", err)
	}
	return nil
}

func (s *SQLite) List(ctx context.Context, device string) ([]Record, error) {
	if err := checkDevice(device); err != nil {
		return nil, err
	}
	return s.load(ctx, s.db, Key(device))
}

func (s *SQLite) Append(ctx context.Context, device string, rec Record) error {
	if err := checkDevice(device); err != nil {
		return err
	}
	return s.update(ctx, Key(device), func(recs []Record) ([]Record, error) {
		return append(recs, rec), nil
	})
}

func (s *SQLite) MarkMirrored(ctx context.Context, device, id, backendID string) error {
	if err := checkDevice(device); err != nil {
		return err
	}
	return s.update(ctx, Key(device), func(recs []Record) ([]Record, error) {
		next, changed, err := markMirrored(recs, id, backendID)
		if err != nil || !changed {
			return nil, err
		}
		return next, nil
	})
}

func (s *SQLite) Rename(ctx context.Context, device, id, name string) error {
	if err := checkDevice(device); err != nil {
		return err
	}
	return s.update(ctx, Key(device), func(recs []Record) ([]Record, error) {
		return renamed(recs, id, name)
	})
}

func (s *SQLite) Delete(ctx context.Context, device, id string) error {
	if err := checkDevice(device); err != nil {
		return err
	}
	return s.update(ctx, Key(device), func(recs []Record) ([]Record, error) {
		return without(recs, id)
	})
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLite) load(ctx context.Context, q queryer, key string) ([]Record, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return decode([]byte(raw))
}

func (s *SQLite) update(ctx context.Context, key string, fn func([]Record) ([]Record, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	recs, err := s.load(ctx, tx, key)
	if err != nil {
		return err
	}
	next, err := fn(recs)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}
	b, err := json.Marshal(next)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(b), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return tx.Commit()
}
