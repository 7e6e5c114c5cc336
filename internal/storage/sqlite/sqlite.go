// Package sqlite implements the relation store on SQLite. The database
// runs in WAL mode with foreign keys enabled; every write path is a single
// transaction and transient errors (busy/locked/IO) are retried with
// backoff at this boundary.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/dupescan/dupescan/internal/storage"
)

// SQLiteStore implements the storage.Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	retry  storage.RetryConfig
	logger *slog.Logger
}

var _ storage.Store = (*SQLiteStore)(nil)

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithRetryConfig overrides the transient-error retry policy.
func WithRetryConfig(cfg storage.RetryConfig) Option {
	return func(s *SQLiteStore) { s.retry = cfg }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *SQLiteStore) { s.logger = l }
}

// New creates a new SQLite relation store at the given path, creating the
// parent directory and schema as needed.
func New(path string, opts ...Option) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// WAL for concurrent readers during write transactions. The delete
	// cascade depends on foreign keys being ON.
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		retry:  storage.DefaultRetryConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// classify maps driver errors onto the store's error kinds so that callers
// and the retry policy can distinguish retryable failures from permanent
// ones.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrIoErr:
			return fmt.Errorf("%w: %v", storage.ErrTransient, err)
		case sqlite3.ErrConstraint:
			return fmt.Errorf("%w: %v", storage.ErrConstraintViolation, err)
		}
	}
	return err
}
