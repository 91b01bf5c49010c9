// AngelaMos | 2026
// service.go

package license

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/skyline-backend/internal/core"
	"github.com/carterperez-dev/skyline-backend/internal/entitlement"
	"github.com/carterperez-dev/skyline-backend/internal/user"
)

const (
	DefaultPrefix   = "skyline"
	DefaultMaxBatch = 50
	DefaultListSize = 100

	codeLength      = 16
	maxCodeAttempts = 5
	maxListSize     = 1000
)

type Config struct {
	Prefix   string
	MaxBatch int
}

type Service struct {
	db       *sqlx.DB
	repo     Repository
	prefix   string
	maxBatch int
	now      func() time.Time
}

func NewService(db *sqlx.DB, repo Repository, cfg Config) *Service {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.MaxBatch < 1 {
		cfg.MaxBatch = DefaultMaxBatch
	}

	return &Service{
		db:       db,
		repo:     repo,
		prefix:   cfg.Prefix,
		maxBatch: cfg.MaxBatch,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GenerateBatch mints count fresh codes worth durationDays each (0 is
// lifetime). count is clamped to [1, MaxBatch]. The batch is all or nothing.
func (s *Service) GenerateBatch(
	ctx context.Context,
	durationDays, count int,
) ([]string, error) {
	if durationDays < 0 || durationDays > entitlement.MaxGrantDays {
		return nil, core.ValidationError(fmt.Sprintf(
			"duration_days must be between 0 and %d", entitlement.MaxGrantDays,
		))
	}

	count = max(1, min(count, s.maxBatch))
	now := s.now()
	codes := make([]string, 0, count)

	err := core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		keys := NewRepository(tx)
		for range count {
			code, err := s.insertFreshCode(ctx, keys, durationDays, now)
			if err != nil {
				return err
			}
			codes = append(codes, code)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("generate keys: %w", err)
	}

	return codes, nil
}

func (s *Service) insertFreshCode(
	ctx context.Context,
	keys Repository,
	durationDays int,
	now time.Time,
) (string, error) {
	for range maxCodeAttempts {
		suffix, err := core.RandomString(core.AlphanumericAlphabet, codeLength)
		if err != nil {
			return "", err
		}

		code := s.prefix + suffix
		inserted, err := keys.InsertIfAbsent(ctx, code, durationDays, now)
		if err != nil {
			return "", err
		}
		if inserted {
			return code, nil
		}
	}

	return "", fmt.Errorf("no unused code after %d attempts: %w", maxCodeAttempts, core.ErrConflict)
}

type RedeemResult struct {
	ExpiresAt *time.Time
	Lifetime  bool
}

// Redeem claims code for uid and applies its duration in one transaction.
// Exactly one of any number of concurrent callers succeeds for a code; the
// rest see ALREADY_USED.
func (s *Service) Redeem(
	ctx context.Context,
	uid int64,
	code string,
) (*RedeemResult, error) {
	ctx, span := core.StartSpan(ctx, "license.Redeem",
		attribute.Int64("user.uid", uid),
	)
	defer span.End()

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, core.ValidationError("code is required")
	}

	var result RedeemResult
	err := core.RetryOnConflict(ctx, func() error {
		return core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
			keys := NewRepository(tx)
			now := s.now()

			days, err := keys.Claim(ctx, code, uid, now)
			if errors.Is(err, core.ErrNotFound) {
				return unclaimableError(ctx, keys, code)
			}
			if err != nil {
				return err
			}

			g, err := entitlement.NormalizeGrant(days)
			if err != nil {
				return err
			}

			state, err := user.ApplyGrant(ctx, user.NewRepository(tx), uid, g, now)
			if err != nil {
				return err
			}

			result = RedeemResult{
				ExpiresAt: state.Expires,
				Lifetime:  entitlement.IsLifetime(days),
			}
			return nil
		})
	})
	if err != nil {
		core.SetSpanError(ctx, err)
		return nil, err
	}

	return &result, nil
}

func unclaimableError(ctx context.Context, keys Repository, code string) error {
	exists, err := keys.Exists(ctx, code)
	if err != nil {
		return err
	}
	if !exists {
		return core.NotFoundError("license key")
	}
	return core.ConflictError("ALREADY_USED", "license key has already been used")
}

func (s *Service) List(ctx context.Context, limit int) ([]Key, error) {
	if limit < 1 {
		limit = DefaultListSize
	}
	limit = min(limit, maxListSize)

	return s.repo.List(ctx, limit)
}
