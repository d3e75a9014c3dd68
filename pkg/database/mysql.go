package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"
)

type MySQLDriver struct {
	cfg Config
	db  *sql.DB
}

func NewMySQLDriver(cfg Config) (*MySQLDriver, error) {
	if cfg.Port == 0 {
		cfg.Port = 3306
	}
	return &MySQLDriver{
		cfg: cfg,
	}, nil
}

func (m *MySQLDriver) Type() string {
	return "mysql"
}

// DSN returns the go-sql-driver data source name. DATETIME values are left as
// raw text so they export exactly as the server renders them.
func (m *MySQLDriver) DSN() string {
	if m.cfg.URL != "" {
		return m.cfg.URL
	}

	c := mysql.NewConfig()
	c.User = m.cfg.User
	c.Passwd = m.cfg.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	c.DBName = m.cfg.Name
	c.Timeout = m.cfg.ConnectTimeout
	return c.FormatDSN()
}

func (m *MySQLDriver) Connect(ctx context.Context) error {
	db, err := sql.Open("mysql", m.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	m.db = db
	return nil
}

func (m *MySQLDriver) Close() error {
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	return err
}

func (m *MySQLDriver) Version(ctx context.Context) (string, error) {
	if m.db == nil {
		return "", ErrNotConnected
	}

	var version string
	if err := m.db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version); err != nil {
		return "", fmt.Errorf("failed to get mysql version: %w", err)
	}
	return version, nil
}

func (m *MySQLDriver) ListTables(ctx context.Context) ([]string, error) {
	if m.db == nil {
		return nil, ErrNotConnected
	}

	rows, err := m.db.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return scanStrings(rows)
}

func (m *MySQLDriver) Columns(ctx context.Context, table string) ([]string, error) {
	if m.db == nil {
		return nil, ErrNotConnected
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = DATABASE()
		AND table_name = ?
		ORDER BY ordinal_position`, table)
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

func (m *MySQLDriver) SelectAll(ctx context.Context, table string) (*sql.Rows, error) {
	return selectAll(ctx, m.db, table, '`')
}

func (m *MySQLDriver) Config() Config {
	return m.cfg
}
