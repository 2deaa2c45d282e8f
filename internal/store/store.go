// Package store provides the SQLite-backed lesson library and progress
// store for Voxloop.
//
// A single [sql.DB] handle backs channel, lesson, sentence and progress
// repositories. [New] opens (or creates) the database file and runs
// [Migrate] so all required tables exist.
//
// Usage:
//
//	st, err := store.New(ctx, "voxloop.db")
//	if err != nil { … }
//	defer st.Close()
//
//	_ = st.SaveLesson(ctx, lsn)
//	p, _ := st.LoadProgress(ctx, lsn.ID)
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/voxloop/voxloop/internal/session"
)

// Compile-time interface check.
var _ session.ProgressStore = (*Store)(nil)

// Store is the SQLite-backed persistence layer. All methods are safe for
// concurrent use; SQLite serialises writers internally.
type Store struct {
	db *sql.DB
}

// New opens the SQLite database at path, creating the file if needed, and
// runs [Migrate]. Foreign keys are enabled on every connection.
func New(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database file is still reachable and writable enough to
// answer a query. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// tx runs fn inside a transaction, rolling back on error.
func (s *Store) tx(ctx context.Context, fn func(*sql.Tx) error) error {
	t, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	if err := fn(t); err != nil {
		_ = t.Rollback()
		return err
	}
	if err := t.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}
