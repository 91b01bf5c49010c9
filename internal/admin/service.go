// AngelaMos | 2026
// service.go

package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/skyline-backend/internal/auth"
	"github.com/carterperez-dev/skyline-backend/internal/core"
	"github.com/carterperez-dev/skyline-backend/internal/entitlement"
	"github.com/carterperez-dev/skyline-backend/internal/ipban"
	"github.com/carterperez-dev/skyline-backend/internal/license"
	"github.com/carterperez-dev/skyline-backend/internal/payment"
	"github.com/carterperez-dev/skyline-backend/internal/user"
)

type Service struct {
	db    *sqlx.DB
	users *user.Service
	bans  *ipban.Service
	keys  *license.Service
}

func NewService(
	db *sqlx.DB,
	users *user.Service,
	bans *ipban.Service,
	keys *license.Service,
) *Service {
	return &Service{
		db:    db,
		users: users,
		bans:  bans,
		keys:  keys,
	}
}

// GrantOrRevoke changes uid's entitlement by days; -1 revokes outright.
func (s *Service) GrantOrRevoke(
	ctx context.Context,
	uid int64,
	days int,
) (entitlement.State, error) {
	state, err := s.users.Grant(ctx, uid, days)
	if err != nil {
		return entitlement.State{}, err
	}

	slog.Info("admin entitlement change",
		"uid", uid,
		"days", days,
		"status", state.Status,
	)
	return state, nil
}

func (s *Service) Ban(ctx context.Context, uid int64, reason string) error {
	if err := s.users.SetBan(ctx, uid, true, reason); err != nil {
		return err
	}
	slog.Info("identity banned", "uid", uid)
	return nil
}

func (s *Service) Unban(ctx context.Context, uid int64) error {
	if err := s.users.SetBan(ctx, uid, false, ""); err != nil {
		return err
	}
	slog.Info("identity unbanned", "uid", uid)
	return nil
}

// Delete removes the identity and every session it holds. Redeemed keys
// and orders keep pointing at the old uid.
func (s *Service) Delete(ctx context.Context, uid int64) error {
	err := core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := auth.NewRepository(tx).DeleteByUser(ctx, uid); err != nil {
			return err
		}
		return user.NewRepository(tx).Delete(ctx, uid)
	})
	if err != nil {
		return err
	}

	slog.Info("identity deleted", "uid", uid)
	return nil
}

// ChangeIdentityID moves an identity to newUID and rewrites every table
// that refers to it, all in one transaction.
func (s *Service) ChangeIdentityID(ctx context.Context, oldUID, newUID int64) error {
	if oldUID <= 0 || newUID <= 0 {
		return core.ValidationError("uids must be positive")
	}
	if oldUID == newUID {
		return core.ValidationError("new uid must differ from the old uid")
	}

	now := s.users.Now()
	err := core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		users := user.NewRepository(tx)

		exists, err := users.ExistsByUID(ctx, oldUID)
		if err != nil {
			return err
		}
		if !exists {
			return core.NotFoundError("user")
		}

		taken, err := users.ExistsByUID(ctx, newUID)
		if err != nil {
			return err
		}
		if taken {
			return uidTakenError()
		}

		if err := users.ChangeUID(ctx, oldUID, newUID, now); err != nil {
			if errors.Is(err, core.ErrDuplicateKey) {
				return uidTakenError()
			}
			return err
		}

		if _, err := auth.NewRepository(tx).ReassignUser(ctx, oldUID, newUID); err != nil {
			return err
		}
		if _, err := license.NewRepository(tx).ReassignRedeemer(ctx, oldUID, newUID); err != nil {
			return err
		}
		if _, err := payment.NewRepository(tx).ReassignUser(ctx, oldUID, newUID); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("change uid %d to %d: %w", oldUID, newUID, err)
	}

	slog.Info("identity uid changed", "old_uid", oldUID, "new_uid", newUID)
	return nil
}

func uidTakenError() error {
	return core.ConflictError("UID_TAKEN", "the new uid is already in use")
}

func (s *Service) BanAddress(ctx context.Context, ip, reason string) error {
	return s.bans.Ban(ctx, ip, reason)
}

func (s *Service) UnbanAddress(ctx context.Context, ip string) (bool, error) {
	return s.bans.Unban(ctx, ip)
}

func (s *Service) ListAddressBans(ctx context.Context) ([]ipban.Ban, error) {
	return s.bans.List(ctx)
}

func (s *Service) ListIdentities(
	ctx context.Context,
	params user.ListUsersParams,
) ([]user.User, int, error) {
	return s.users.ListUsers(ctx, params)
}

func (s *Service) GenerateKeys(
	ctx context.Context,
	durationDays, count int,
) ([]string, error) {
	codes, err := s.keys.GenerateBatch(ctx, durationDays, count)
	if err != nil {
		return nil, err
	}

	slog.Info("license keys generated",
		"count", len(codes),
		"duration_days", durationDays,
	)
	return codes, nil
}

func (s *Service) ListKeys(ctx context.Context, limit int) ([]license.Key, error) {
	return s.keys.List(ctx, limit)
}

func (s *Service) Now() time.Time {
	return s.users.Now()
}
