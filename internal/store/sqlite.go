package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the production Store backend: a single-table, pure-Go
// embedded database. PRAGMA synchronous=FULL keeps the "durable before
// return" invariant even across an abrupt power loss.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or attaches to a SQLite-backed store at path. Use
// ":memory:" for tests.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	db.SetMaxOpenConns(1) // single-writer discipline; sqlite serializes anyway
	if _, err := db.Exec(`PRAGMA synchronous=FULL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: pragma: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		namespace TEXT NOT NULL,
		key TEXT NOT NULL,
		value BLOB NOT NULL,
		PRIMARY KEY (namespace, key)
	)`); err != nil {
		db.Close()
		return nil, classifyCorruption(err)
	}
	return &SQLiteStore{db: db, logger: slog.Default().With("component", "store")}, nil
}

func classifyCorruption(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "corrupt") || strings.Contains(msg, "not a database") {
		return fmt.Errorf("%w: %v", ErrCorruptedPartition, err)
	}
	return err
}

func validateKey(key string) error {
	if len(key) == 0 || len(key) > MaxKeyBytes {
		return fmt.Errorf("store: key %q exceeds %d bytes", key, MaxKeyBytes)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE namespace = ? AND key = ?`, namespace, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classifyCorruption(err)
	}
	return value, nil
}

func (s *SQLiteStore) Put(ctx context.Context, namespace, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classifyCorruption(err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM kv WHERE namespace = ? AND key = ?)`, namespace, key,
	).Scan(&exists); err != nil {
		return classifyCorruption(err)
	}
	if !exists {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM kv`).Scan(&count); err != nil {
			return classifyCorruption(err)
		}
		if count >= MaxStoreEntries {
			return ErrCapacityExceeded
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO kv (namespace, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value`,
		namespace, key, value,
	); err != nil {
		return classifyCorruption(err)
	}
	if err := tx.Commit(); err != nil {
		return classifyCorruption(err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, namespace, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE namespace = ? AND key = ?`, namespace, key)
	if err != nil {
		return classifyCorruption(err)
	}
	return nil
}

// Iterate returns a pull-style iterator over every key in namespace. The
// returned closer must be called once iteration is done (or abandoned) to
// release the underlying rows.
func (s *SQLiteStore) Iterate(ctx context.Context, namespace string) (func() (string, []byte, bool), func(), error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM kv WHERE namespace = ?`, namespace)
	if err != nil {
		return nil, nil, classifyCorruption(err)
	}
	next := func() (string, []byte, bool) {
		if !rows.Next() {
			return "", nil, false
		}
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return "", nil, false
		}
		return key, value, true
	}
	closer := func() { rows.Close() }
	return next, closer, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
