// AngelaMos | 2026
// commands.go

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/carterperez-dev/skyline-backend/internal/auth"
	"github.com/carterperez-dev/skyline-backend/internal/ipban"
	"github.com/carterperez-dev/skyline-backend/internal/license"
	"github.com/carterperez-dev/skyline-backend/internal/user"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			_, logger, db, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // process exits right after

			applied, err := db.Migrate(ctx)
			if err != nil {
				return err
			}

			logger.Info("migrations complete", "applied", applied, "driver", db.Driver)
			return nil
		},
	}
}

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage license keys",
	}

	cmd.AddCommand(newKeysGenerateCmd())
	return cmd
}

func newKeysGenerateCmd() *cobra.Command {
	var (
		days  int
		count int
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Mint a batch of unredeemed license keys",
		Example: `  skyline keys generate --days 30 --count 10
  skyline keys generate --days 0 --count 1   # lifetime`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, logger, db, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // process exits right after

			svc := license.NewService(db.DB, license.NewRepository(db.DB), license.Config{
				Prefix:   cfg.License.Prefix,
				MaxBatch: cfg.License.MaxBatch,
			})

			codes, err := svc.GenerateBatch(ctx, days, count)
			if err != nil {
				return err
			}

			logger.Info("license keys generated", "count", len(codes), "days", days)
			return printJSON(codes)
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "days each key grants (0 = lifetime)")
	cmd.Flags().IntVar(&count, "count", 1, "number of keys to mint")

	return cmd
}

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Operator tasks that bypass the HTTP API",
	}

	cmd.AddCommand(newSetRoleCmd())
	cmd.AddCommand(newBanAddressCmd())
	return cmd
}

func newSetRoleCmd() *cobra.Command {
	var (
		uid  int64
		role string
	)

	cmd := &cobra.Command{
		Use:     "set-role",
		Short:   "Change an identity's role",
		Example: `  skyline admin set-role --uid 1 --role admin`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			_, logger, db, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // process exits right after

			users := user.NewService(db.DB, user.NewRepository(db.DB))
			if err := users.SetRole(ctx, uid, role); err != nil {
				return err
			}

			logger.Info("role changed", "uid", uid, "role", role)
			return nil
		},
	}

	cmd.Flags().Int64Var(&uid, "uid", 0, "identity to change (required)")
	cmd.Flags().StringVar(&role, "role", user.RoleAdmin, "member or admin")
	_ = cmd.MarkFlagRequired("uid") //nolint:errcheck // flag is defined above

	return cmd
}

func newBanAddressCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "ban-ip <address>",
		Short: "Ban a client address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			_, logger, db, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // process exits right after

			bans := ipban.NewService(ipban.NewRepository(db.DB))
			if err := bans.Ban(ctx, args[0], reason); err != nil {
				return err
			}

			logger.Info("address banned", "ip", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded with the ban")
	return cmd
}

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage bearer sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete expired sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, logger, db, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // process exits right after

			users := user.NewService(db.DB, user.NewRepository(db.DB))
			bans := ipban.NewService(ipban.NewRepository(db.DB))
			sessions := auth.NewService(
				auth.NewRepository(db.DB),
				users,
				bans,
				auth.ServiceConfig{SessionTTL: cfg.Auth.SessionTTL},
			)

			n, err := sessions.PurgeExpired(ctx)
			if err != nil {
				return err
			}

			logger.Info("expired sessions purged", "count", n)
			return nil
		},
	})

	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
