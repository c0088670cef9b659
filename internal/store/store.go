// Package store is the local SQLite database: persisted session metadata
// and the outbox of swipe decisions awaiting delivery.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/knowzhq/knowz/internal/store/migrations"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Store owns the database handle and its repositories.
type Store struct {
	db       *sql.DB
	Metadata *MetadataRepository
	Outbox   *OutboxRepository
}

// Open opens (creating if needed) the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := MemoryPath
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{
		db:       db,
		Metadata: NewMetadataRepository(db),
		Outbox:   NewOutboxRepository(db),
	}, nil
}

// RunMigrations applies the embedded goose migrations to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// WithTx runs fn inside a transaction; repositories built from tx join it.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
	return WithTx(ctx, s.db, fn)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
