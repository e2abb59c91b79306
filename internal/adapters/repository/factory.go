package repository

import (
	"context"
	"fmt"
	"strings"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// NormalizeDriver maps driver aliases onto the canonical names.
func NormalizeDriver(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", DriverSQLite, "sqlite3":
		return DriverSQLite
	case DriverPostgres, "postgresql", "pg":
		return DriverPostgres
	case DriverMemory, "mem":
		return DriverMemory
	default:
		return strings.ToLower(strings.TrimSpace(raw))
	}
}

// Open builds the store for driver. The dsn is a file path for sqlite and
// a connection string for postgres; memory ignores it.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch d := NormalizeDriver(driver); d {
	case DriverSQLite:
		return NewSQLiteStore(ctx, dsn)
	case DriverPostgres:
		return NewPostgresStore(ctx, dsn)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w %q (supported: %s, %s, %s)", ErrUnknownDriver, d, DriverSQLite, DriverPostgres, DriverMemory)
	}
}
