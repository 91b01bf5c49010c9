// AngelaMos | 2026
// migrate.go

package core

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/skyline-backend/internal/config"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrate applies every embedded migration for the database dialect that
// has not been recorded in schema_migrations. Each file runs in its own
// transaction together with its bookkeeping row.
func (d *Database) Migrate(ctx context.Context) (int, error) {
	dir := "migrations/postgres"
	if d.Driver == config.DriverSQLite {
		dir = "migrations/sqlite"
	}

	if _, err := d.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename   TEXT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL
		)`); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return 0, fmt.Errorf("read migrations: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	var done []string
	if err := d.DB.SelectContext(ctx, &done, "SELECT filename FROM schema_migrations"); err != nil {
		return 0, fmt.Errorf("list applied migrations: %w", err)
	}

	applied := make(map[string]struct{}, len(done))
	for _, name := range done {
		applied[name] = struct{}{}
	}

	count := 0
	for _, name := range files {
		if _, ok := applied[name]; ok {
			continue
		}

		content, err := fs.ReadFile(migrationsFS, path.Join(dir, name))
		if err != nil {
			return count, fmt.Errorf("read migration %s: %w", name, err)
		}

		err = InTx(ctx, d.DB, func(tx *sqlx.Tx) error {
			for _, stmt := range splitStatements(string(content)) {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("exec: %w", err)
				}
			}

			_, err := tx.ExecContext(ctx,
				tx.Rebind("INSERT INTO schema_migrations (filename, applied_at) VALUES (?, ?)"),
				name, time.Now().UTC(),
			)
			return err
		})
		if err != nil {
			return count, fmt.Errorf("apply migration %s: %w", name, err)
		}

		slog.Info("migration applied", "file", name, "driver", d.Driver)
		count++
	}

	return count, nil
}

func splitStatements(script string) []string {
	parts := strings.Split(script, ";")
	stmts := make([]string, 0, len(parts))
	for _, part := range parts {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}
