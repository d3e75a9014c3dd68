package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
)

type PostgresDriver struct {
	cfg Config
	db  *sql.DB
}

func NewPostgresDriver(cfg Config) (*PostgresDriver, error) {
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	return &PostgresDriver{
		cfg: cfg,
	}, nil
}

func (p *PostgresDriver) Type() string {
	return "postgres"
}

func (p *PostgresDriver) ConnectionString() string {
	if p.cfg.URL != "" {
		return p.cfg.URL
	}

	q := url.Values{}
	q.Set("sslmode", "disable")
	if secs := int(p.cfg.ConnectTimeout.Seconds()); secs > 0 {
		q.Set("connect_timeout", strconv.Itoa(secs))
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.cfg.User, p.cfg.Password),
		Host:     p.cfg.Host + ":" + strconv.Itoa(p.cfg.Port),
		Path:     "/" + p.cfg.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func (p *PostgresDriver) Connect(ctx context.Context) error {
	db, err := sql.Open("postgres", p.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	p.db = db
	return nil
}

func (p *PostgresDriver) Close() error {
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

func (p *PostgresDriver) Version(ctx context.Context) (string, error) {
	if p.db == nil {
		return "", ErrNotConnected
	}

	var version string
	err := p.db.QueryRowContext(ctx, "SELECT version()").Scan(&version)
	if err != nil {
		return "", fmt.Errorf("failed to get postgres version: %w", err)
	}

	parts := strings.Fields(version)
	if len(parts) >= 2 {
		return parts[1], nil
	}
	return version, nil
}

func (p *PostgresDriver) ListTables(ctx context.Context) ([]string, error) {
	if p.db == nil {
		return nil, ErrNotConnected
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = current_schema()
		AND table_type = 'BASE TABLE'`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return scanStrings(rows)
}

func (p *PostgresDriver) Columns(ctx context.Context, table string) ([]string, error) {
	if p.db == nil {
		return nil, ErrNotConnected
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = current_schema()
		AND table_name = $1
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

func (p *PostgresDriver) SelectAll(ctx context.Context, table string) (*sql.Rows, error) {
	return selectAll(ctx, p.db, table, '"')
}

func (p *PostgresDriver) Config() Config {
	return p.cfg
}
