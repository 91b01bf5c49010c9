// AngelaMos | 2026
// repository.go

package license

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/skyline-backend/internal/core"
)

type Key struct {
	ID           int64      `db:"id"            json:"id"`
	Code         string     `db:"code"          json:"code"`
	DurationDays int        `db:"duration_days" json:"duration_days"`
	RedeemedBy   *int64     `db:"redeemed_by"   json:"redeemed_by"`
	RedeemedAt   *time.Time `db:"redeemed_at"   json:"redeemed_at"`
	CreatedAt    time.Time  `db:"created_at"    json:"created_at"`
}

type Repository interface {
	InsertIfAbsent(ctx context.Context, code string, durationDays int, now time.Time) (bool, error)
	Claim(ctx context.Context, code string, uid int64, now time.Time) (int, error)
	Exists(ctx context.Context, code string) (bool, error)
	List(ctx context.Context, limit int) ([]Key, error)
	ReassignRedeemer(ctx context.Context, oldUID, newUID int64) (int64, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

// InsertIfAbsent reports false when the code already exists.
func (r *repository) InsertIfAbsent(
	ctx context.Context,
	code string,
	durationDays int,
	now time.Time,
) (bool, error) {
	query := r.db.Rebind(`
		INSERT INTO license_keys (code, duration_days, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (code) DO NOTHING`)

	result, err := r.db.ExecContext(ctx, query, code, durationDays, now)
	if err != nil {
		return false, fmt.Errorf("insert license key: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert license key: %w", err)
	}

	return rows == 1, nil
}

// Claim marks an unredeemed key as redeemed by uid and returns its duration.
// Only one caller can ever win a given code; everyone else gets
// core.ErrNotFound and must look at Exists to tell why.
func (r *repository) Claim(
	ctx context.Context,
	code string,
	uid int64,
	now time.Time,
) (int, error) {
	query := r.db.Rebind(`
		UPDATE license_keys
		SET redeemed_by = ?, redeemed_at = ?
		WHERE code = ? AND redeemed_by IS NULL
		RETURNING duration_days`)

	var days int
	err := r.db.GetContext(ctx, &days, query, uid, now, code)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("claim license key: %w", core.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("claim license key: %w", err)
	}

	return days, nil
}

func (r *repository) Exists(ctx context.Context, code string) (bool, error) {
	var n int
	query := r.db.Rebind(`SELECT COUNT(*) FROM license_keys WHERE code = ?`)
	if err := r.db.GetContext(ctx, &n, query, code); err != nil {
		return false, fmt.Errorf("check license key: %w", err)
	}
	return n > 0, nil
}

func (r *repository) List(ctx context.Context, limit int) ([]Key, error) {
	query := r.db.Rebind(`
		SELECT id, code, duration_days, redeemed_by, redeemed_at, created_at
		FROM license_keys
		ORDER BY created_at DESC, id DESC
		LIMIT ?`)

	keys := []Key{}
	if err := r.db.SelectContext(ctx, &keys, query, limit); err != nil {
		return nil, fmt.Errorf("list license keys: %w", err)
	}
	return keys, nil
}

func (r *repository) ReassignRedeemer(
	ctx context.Context,
	oldUID, newUID int64,
) (int64, error) {
	query := r.db.Rebind(`
		UPDATE license_keys
		SET redeemed_by = ?
		WHERE redeemed_by = ?`)

	result, err := r.db.ExecContext(ctx, query, newUID, oldUID)
	if err != nil {
		return 0, fmt.Errorf("reassign license keys: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reassign license keys: %w", err)
	}

	return rows, nil
}
