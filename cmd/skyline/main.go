// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/carterperez-dev/skyline-backend/internal/config"
	"github.com/carterperez-dev/skyline-backend/internal/core"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "skyline",
		Short:         "Account, license and entitlement backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(
		&configPath,
		"config",
		"config.yaml",
		"path to config file",
	)

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newKeysCmd())
	cmd.AddCommand(newAdminCmd())
	cmd.AddCommand(newSessionsCmd())

	return cmd
}

// bootstrap loads config, installs the default logger and opens the
// database. Callers own the returned database.
func bootstrap(ctx context.Context) (*config.Config, *slog.Logger, *core.Database, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, nil, nil, err
	}

	if cfg.Database.AutoMigrate {
		applied, err := db.Migrate(ctx)
		if err != nil {
			_ = db.Close() //nolint:errcheck // cleanup on migration failure
			return nil, nil, nil, fmt.Errorf("auto migrate: %w", err)
		}
		if applied > 0 {
			logger.Info("migrations applied", "count", applied)
		}
	}

	return cfg, logger, db, nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
