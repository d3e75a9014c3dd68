package database

import (
	"fmt"
	"strings"
)

func NewDriver(cfg Config) (Driver, error) {
	switch strings.ToLower(cfg.Type) {
	case "mysql", "mariadb", "":
		return NewMySQLDriver(cfg)
	case "postgres", "postgresql", "pg":
		return NewPostgresDriver(cfg)
	case "sqlite", "sqlite3":
		return NewSQLiteDriver(cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, cfg.Type)
	}
}
