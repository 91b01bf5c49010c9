// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/skyline-backend/internal/auth"
	"github.com/carterperez-dev/skyline-backend/internal/core"
	"github.com/carterperez-dev/skyline-backend/internal/entitlement"
)

const maxCreateAttempts = 5

type Service struct {
	db   *sqlx.DB
	repo Repository
	now  func() time.Time
}

func NewService(db *sqlx.DB, repo Repository) *Service {
	return &Service{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) GetByUID(
	ctx context.Context,
	uid int64,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByUID(ctx, uid)
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) GetByEmail(
	ctx context.Context,
	email string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

// Create inserts a member with no entitlement. uid assignment can collide
// with a concurrent registration; the loser retries with the next free uid.
func (s *Service) Create(
	ctx context.Context,
	nu auth.NewUser,
) (*auth.UserInfo, error) {
	now := s.now()
	user := &User{
		Email:              normalizeEmail(nu.Email),
		DisplayName:        strings.TrimSpace(nu.DisplayName),
		PasswordHash:       nu.PasswordHash,
		Role:               RoleMember,
		SubscriptionStatus: entitlement.StatusInactive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if nu.DeviceToken != "" {
		user.DeviceToken = &nu.DeviceToken
	}
	if nu.IP != "" {
		user.LastIP = &nu.IP
	}

	var err error
	for range maxCreateAttempts {
		err = s.repo.Create(ctx, user)
		if err == nil {
			return toUserInfo(user), nil
		}
		if !errors.Is(err, core.ErrDuplicateKey) {
			return nil, err
		}

		taken, existsErr := s.repo.ExistsByEmail(ctx, user.Email)
		if existsErr != nil {
			return nil, existsErr
		}
		if taken {
			return nil, err
		}
	}

	return nil, fmt.Errorf("create user: %w: %w", core.ErrUnavailable, err)
}

func (s *Service) EmailExists(
	ctx context.Context,
	email string,
) (bool, error) {
	return s.repo.ExistsByEmail(ctx, normalizeEmail(email))
}

func (s *Service) UpdatePassword(
	ctx context.Context,
	uid int64,
	passwordHash string,
) error {
	return s.repo.UpdatePassword(ctx, uid, passwordHash, s.now())
}

func (s *Service) UpdateLastIP(ctx context.Context, uid int64, ip string) error {
	return s.repo.UpdateLastIP(ctx, uid, ip, s.now())
}

func (s *Service) GetUser(ctx context.Context, uid int64) (*User, error) {
	return s.repo.GetByUID(ctx, uid)
}

func (s *Service) GetMe(ctx context.Context, uid int64) (*User, error) {
	if uid == 0 {
		return nil, fmt.Errorf("get me: %w", core.ErrUnauthenticated)
	}

	return s.repo.GetByUID(ctx, uid)
}

func (s *Service) ListUsers(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	return s.repo.List(ctx, params)
}

// Grant applies a day count to uid: -1 revokes, 0 grants lifetime, anything
// else extends. A lost version race reruns the whole transaction.
func (s *Service) Grant(
	ctx context.Context,
	uid int64,
	days int,
) (entitlement.State, error) {
	ctx, span := core.StartSpan(ctx, "user.Grant",
		attribute.Int64("user.uid", uid),
		attribute.Int("grant.days", days),
	)
	defer span.End()

	g, err := entitlement.NormalizeGrant(days)
	if err != nil {
		return entitlement.State{}, err
	}

	var state entitlement.State
	err = core.RetryOnConflict(ctx, func() error {
		return core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
			var applyErr error
			state, applyErr = ApplyGrant(ctx, NewRepository(tx), uid, g, s.now())
			return applyErr
		})
	})
	if err != nil {
		core.SetSpanError(ctx, err)
		return entitlement.State{}, err
	}

	return state, nil
}

func (s *Service) SetBan(
	ctx context.Context,
	uid int64,
	banned bool,
	reason string,
) error {
	var r *string
	if banned {
		trimmed := strings.TrimSpace(reason)
		if trimmed != "" {
			r = &trimmed
		}
	}
	return s.repo.SetBan(ctx, uid, banned, r, s.now())
}

func (s *Service) SetRole(ctx context.Context, uid int64, role string) error {
	if !ValidRole(role) {
		return fmt.Errorf(
			"set role: invalid role %q: %w",
			role,
			core.ErrInvalidInput,
		)
	}
	return s.repo.SetRole(ctx, uid, role, s.now())
}

func (s *Service) Now() time.Time {
	return s.now()
}

// ApplyGrant reads the current entitlement through repo and writes the next
// one with a version check. repo is normally bound to a transaction that
// also holds whatever triggered the grant.
func ApplyGrant(
	ctx context.Context,
	repo Repository,
	uid int64,
	g entitlement.Grant,
	now time.Time,
) (entitlement.State, error) {
	u, err := repo.GetByUID(ctx, uid)
	if err != nil {
		return entitlement.State{}, err
	}

	next := entitlement.Apply(u.SubscriptionExpires, g, now)

	err = repo.UpdateEntitlement(
		ctx,
		uid,
		next.Status,
		next.Expires,
		u.EntitlementVersion,
		now,
	)
	if err != nil {
		return entitlement.State{}, err
	}

	return next, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toUserInfo(u *User) *auth.UserInfo {
	return &auth.UserInfo{
		UID:                 u.UID,
		Email:               u.Email,
		DisplayName:         u.DisplayName,
		PasswordHash:        u.PasswordHash,
		DeviceToken:         u.DeviceToken,
		Role:                u.Role,
		SubscriptionStatus:  u.SubscriptionStatus,
		SubscriptionExpires: u.SubscriptionExpires,
		IsBanned:            u.IsBanned,
		CreatedAt:           u.CreatedAt,
	}
}

var _ auth.UserProvider = (*Service)(nil)
