// Package repository holds the Bun backed record store for identity
// accounts. SQLite and PostgreSQL are supported.
package repository

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite     = "sqlite"
	DriverSQLiteShim = "sqliteshim"
	DriverPostgres   = "postgres"
)

// Open returns a *bun.DB for the given driver and DSN.
//   - sqlite: pure Go modernc driver
//   - sqliteshim: whichever SQLite driver the build provides
//   - postgres: pgx stdlib driver
func Open(driver, dsn string) (*bun.DB, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverSQLite:
		return openSQLite("sqlite", dsn)
	case DriverSQLiteShim:
		return openSQLite(sqliteshim.ShimName, dsn)
	case DriverPostgres, "pgx":
		sqldb, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func openSQLite(driverName, dsn string) (*bun.DB, error) {
	if dsn == "" {
		dsn = ":memory:"
	}

	sqldb, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// sqlite allows a single writer, one connection also keeps :memory:
	// databases alive across calls.
	sqldb.SetMaxOpenConns(1)

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}
