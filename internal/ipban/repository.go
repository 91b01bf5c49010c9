// AngelaMos | 2026
// repository.go

package ipban

import (
	"context"
	"fmt"
	"time"

	"github.com/carterperez-dev/skyline-backend/internal/core"
)

type Ban struct {
	ID        int64     `db:"id"         json:"id"`
	IP        string    `db:"ip"         json:"ip"`
	Reason    *string   `db:"reason"     json:"reason"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Repository interface {
	Exists(ctx context.Context, ip string) (bool, error)
	Upsert(ctx context.Context, ip string, reason *string, now time.Time) error
	Delete(ctx context.Context, ip string) (int64, error)
	List(ctx context.Context) ([]Ban, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Exists(ctx context.Context, ip string) (bool, error) {
	var n int
	query := r.db.Rebind(`SELECT COUNT(*) FROM ip_bans WHERE ip = ?`)
	if err := r.db.GetContext(ctx, &n, query, ip); err != nil {
		return false, fmt.Errorf("check ip ban: %w", err)
	}
	return n > 0, nil
}

// Upsert keeps the original created_at when the address is already banned
// and only refreshes the reason.
func (r *repository) Upsert(
	ctx context.Context,
	ip string,
	reason *string,
	now time.Time,
) error {
	query := r.db.Rebind(`
		INSERT INTO ip_bans (ip, reason, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (ip) DO UPDATE SET reason = excluded.reason`)

	if _, err := r.db.ExecContext(ctx, query, ip, reason, now); err != nil {
		return fmt.Errorf("upsert ip ban: %w", err)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, ip string) (int64, error) {
	query := r.db.Rebind(`DELETE FROM ip_bans WHERE ip = ?`)

	result, err := r.db.ExecContext(ctx, query, ip)
	if err != nil {
		return 0, fmt.Errorf("delete ip ban: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete ip ban: %w", err)
	}

	return rows, nil
}

func (r *repository) List(ctx context.Context) ([]Ban, error) {
	query := `
		SELECT id, ip, reason, created_at
		FROM ip_bans
		ORDER BY created_at DESC, id DESC`

	bans := []Ban{}
	if err := r.db.SelectContext(ctx, &bans, query); err != nil {
		return nil, fmt.Errorf("list ip bans: %w", err)
	}
	return bans, nil
}
