// AngelaMos | 2026
// db.go

// Package testutil builds throwaway stores for package tests.
package testutil

import (
	"context"
	"testing"

	"github.com/carterperez-dev/skyline-backend/internal/config"
	"github.com/carterperez-dev/skyline-backend/internal/core"
)

// NewDB returns a migrated in-memory SQLite database that is closed when
// the test ends.
func NewDB(t testing.TB) *core.Database {
	t.Helper()

	ctx := context.Background()
	db, err := core.NewDatabase(ctx, config.DatabaseConfig{
		Driver: config.DriverSQLite,
		URL:    ":memory:",
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close() //nolint:errcheck // test teardown
	})

	if _, err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return db
}
