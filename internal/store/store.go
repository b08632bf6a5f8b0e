// Package store is the durable, transactional state behind every Download:
// SQLite via modernc.org/sqlite (no cgo), schema-managed with
// golang-migrate, serialising writers per the spec's transaction
// requirement while readers of other downloads proceed unblocked.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store is the embedded relational store backing spec §4.1.
type Store struct {
	db *sql.DB
}

// Open creates the database directory if needed, opens the SQLite file in
// WAL mode, and runs pending migrations.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create database directory: %w", err)
		}
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("store: connect sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.runMigrations(); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error or panic.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(tx)
}

// execContexter is the subset of *sql.Tx used by batched write helpers.
type execContexter interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// withTxDB is withTx specialised for the common "prepare one statement,
// exec it in a loop" batch-write shape used throughout this package.
func (s *Store) withTxDB(ctx context.Context, fn func(execer execContexter) error) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return fn(tx)
	})
}
