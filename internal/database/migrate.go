package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// Migrate creates the application tables if they do not exist yet. Every
// statement is idempotent so it is safe to run on each start.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	for i, stmt := range d.Schema() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	slog.Info("database migrations applied", "driver", d.DriverName(), "statements", len(d.Schema()))
	return nil
}
