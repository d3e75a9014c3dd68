package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrTableNotFound is returned by Columns when the catalog has no columns for
// the requested table.
var ErrTableNotFound = errors.New("table not found")

// ErrNotConnected is returned when a query is issued before Connect.
var ErrNotConnected = errors.New("database not connected")

var ErrUnsupportedType = errors.New("unsupported database type")

// Driver is a single database session. Implementations hold at most one open
// connection and are not safe for concurrent use.
type Driver interface {
	Type() string
	Connect(ctx context.Context) error
	Close() error
	Version(ctx context.Context) (string, error)
	ListTables(ctx context.Context) ([]string, error)
	Columns(ctx context.Context, table string) ([]string, error)
	SelectAll(ctx context.Context, table string) (*sql.Rows, error)
}

type Config struct {
	Type           string
	Host           string
	Port           int
	Name           string
	User           string
	Password       string
	URL            string
	Path           string // For SQLite file path
	ConnectTimeout time.Duration
}

func (c Config) addr() string {
	if c.Path != "" {
		return c.Path
	}
	return fmt.Sprintf("%s:%d/%s", c.Host, c.Port, c.Name)
}

// ConnectError reports a session that could not be established.
type ConnectError struct {
	Type string
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s %s: %v", e.Type, e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// Open builds the driver for cfg.Type and connects it.
func Open(ctx context.Context, cfg Config) (Driver, error) {
	driver, err := NewDriver(cfg)
	if err != nil {
		return nil, &ConnectError{Type: cfg.Type, Addr: cfg.addr(), Err: err}
	}

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	if err := driver.Connect(ctx); err != nil {
		return nil, &ConnectError{Type: driver.Type(), Addr: cfg.addr(), Err: err}
	}
	return driver, nil
}

// QuoteIdentifier wraps name in quote, doubling any embedded quote characters.
func QuoteIdentifier(name string, quote byte) (string, error) {
	if name == "" {
		return "", errors.New("empty identifier")
	}
	if strings.IndexByte(name, 0) >= 0 {
		return "", fmt.Errorf("identifier %q contains NUL", name)
	}
	q := string(quote)
	return q + strings.ReplaceAll(name, q, q+q) + q, nil
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func selectAll(ctx context.Context, db *sql.DB, table string, quote byte) (*sql.Rows, error) {
	if db == nil {
		return nil, ErrNotConnected
	}
	ident, err := QuoteIdentifier(table, quote)
	if err != nil {
		return nil, err
	}
	return db.QueryContext(ctx, "SELECT * FROM "+ident)
}
