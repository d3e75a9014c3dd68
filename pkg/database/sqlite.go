package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"

	_ "modernc.org/sqlite"
)

type SQLiteDriver struct {
	path string
	db   *sql.DB
}

func NewSQLiteDriver(cfg Config) (*SQLiteDriver, error) {
	path := cfg.Path
	if path == "" {
		path = cfg.Name
	}

	if path == "" {
		return nil, fmt.Errorf("sqlite database path is required")
	}

	return &SQLiteDriver{
		path: path,
	}, nil
}

func (s *SQLiteDriver) Type() string {
	return "sqlite"
}

// Connect opens the database file read-only. A missing file is an error
// rather than silently creating an empty database.
func (s *SQLiteDriver) Connect(ctx context.Context) error {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return fmt.Errorf("sqlite database file %s: %w", s.path, os.ErrNotExist)
	}

	db, err := sql.Open("sqlite", s.dsn())
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	return nil
}

// dsn is a read-only SQLite URI for the file. The path is percent-encoded so
// '?', '#' and '%' in file names are not read as URI syntax.
func (s *SQLiteDriver) dsn() string {
	return "file:" + (&url.URL{Path: s.path}).EscapedPath() + "?mode=ro"
}

func (s *SQLiteDriver) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteDriver) Version(ctx context.Context) (string, error) {
	if s.db == nil {
		return "", ErrNotConnected
	}

	var version string
	err := s.db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version)
	if err != nil {
		return "", fmt.Errorf("failed to get sqlite version: %w", err)
	}

	return version, nil
}

func (s *SQLiteDriver) ListTables(ctx context.Context) ([]string, error) {
	if s.db == nil {
		return nil, ErrNotConnected
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return scanStrings(rows)
}

func (s *SQLiteDriver) Columns(ctx context.Context, table string) ([]string, error) {
	if s.db == nil {
		return nil, ErrNotConnected
	}

	rows, err := s.db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return nil, fmt.Errorf("failed to describe table: %w", err)
	}

	cols, err := scanStrings(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to describe table: %w", err)
	}
	if len(cols) == 0 {
		return nil, ErrTableNotFound
	}
	return cols, nil
}

func (s *SQLiteDriver) SelectAll(ctx context.Context, table string) (*sql.Rows, error) {
	return selectAll(ctx, s.db, table, '"')
}

func (s *SQLiteDriver) Path() string {
	return s.path
}
