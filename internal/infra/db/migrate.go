package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

var schema = map[string][]string{
	DriverSQLite: {
		`
CREATE TABLE IF NOT EXISTS disruptions (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    disruption TEXT NOT NULL,
    link       TEXT NOT NULL,
    posted     INTEGER NOT NULL DEFAULT 0,
    date       TEXT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_disruptions_posted ON disruptions(posted)`,
	},
	DriverPostgres: {
		`
CREATE TABLE IF NOT EXISTS disruptions (
    id         BIGSERIAL PRIMARY KEY,
    disruption TEXT NOT NULL,
    link       TEXT NOT NULL,
    posted     BOOLEAN NOT NULL DEFAULT FALSE,
    date       TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE INDEX IF NOT EXISTS idx_disruptions_posted ON disruptions(posted) WHERE posted = FALSE`,
	},
}

// uniqueKey backs insert-or-ignore. Databases created before the constraint
// existed may hold duplicates, in which case the index cannot be built: new
// rows are then kept unique by the NOT EXISTS guard in RecordSeen, and
// Unposted collapses the duplicates already stored.
const uniqueKey = `CREATE UNIQUE INDEX IF NOT EXISTS idx_disruptions_key ON disruptions(disruption, link)`

// MigrateUp creates the disruptions table for driver if it does not exist.
func MigrateUp(ctx context.Context, db *sql.DB, driver string, logger *slog.Logger) error {
	stmts, ok := schema[driver]
	if !ok {
		return fmt.Errorf("migrate: unsupported driver %q", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, uniqueKey); err != nil {
		logger.Warn("unique disruption key not created, existing rows contain duplicates",
			slog.String("driver", driver),
			slog.Any("error", err))
	}
	return nil
}
