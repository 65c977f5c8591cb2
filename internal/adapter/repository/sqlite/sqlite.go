// Package sqlite opens a SQLite database with the pure-Go modernc.org/sqlite
// driver and stores the URL snapshot in it.
package sqlite

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/shortlink/internal/adapter/repository/sqlrepo"

	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

//go:embed schema.sql
var schema string

var pragmas = []string{
	"PRAGMA busy_timeout = 5000",
	"PRAGMA journal_mode = WAL",
	"PRAGMA foreign_keys = ON",
}

func init() {
	sqlx.BindDriver(driverName, sqlx.QUESTION)
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a private in-memory database.
func Open(ctx context.Context, path string) (*sqlx.DB, error) {
	const op = "sqlite.Open"

	db, err := sqlx.ConnectContext(ctx, driverName, path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open database: %w", op, err)
	}

	// One connection: SQLite serialises writers anyway, and an in-memory
	// database exists only on the connection that created it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: failed to set %q: %w", op, pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: failed to apply schema: %w", op, err)
	}

	return db, nil
}

// NewURLRepository returns the snapshot repository over a database opened by Open.
func NewURLRepository(db *sqlx.DB) *sqlrepo.URLRepository {
	return sqlrepo.NewURLRepository(db)
}
