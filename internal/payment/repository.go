// AngelaMos | 2026
// repository.go

package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/carterperez-dev/skyline-backend/internal/core"
)

type Order struct {
	ID        int64     `db:"id"`
	OrderID   string    `db:"order_id"`
	UserUID   int64     `db:"user_uid"`
	PlanID    string    `db:"plan_id"`
	Days      int       `db:"days"`
	CreatedAt time.Time `db:"created_at"`
}

type Repository interface {
	Insert(ctx context.Context, order *Order) error
	ListByUser(ctx context.Context, uid int64) ([]Order, error)
	ReassignUser(ctx context.Context, oldUID, newUID int64) (int64, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

// Insert records a confirmed order. A replayed order id yields
// core.ErrDuplicateKey.
func (r *repository) Insert(ctx context.Context, order *Order) error {
	query := r.db.Rebind(`
		INSERT INTO payment_orders (order_id, user_uid, plan_id, days, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`)

	err := r.db.GetContext(ctx, &order.ID, query,
		order.OrderID,
		order.UserUID,
		order.PlanID,
		order.Days,
		order.CreatedAt,
	)
	if err != nil {
		if core.IsUniqueViolation(err) {
			return fmt.Errorf("insert order: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

func (r *repository) ListByUser(ctx context.Context, uid int64) ([]Order, error) {
	query := r.db.Rebind(`
		SELECT id, order_id, user_uid, plan_id, days, created_at
		FROM payment_orders
		WHERE user_uid = ?
		ORDER BY created_at DESC, id DESC`)

	orders := []Order{}
	if err := r.db.SelectContext(ctx, &orders, query, uid); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (r *repository) ReassignUser(
	ctx context.Context,
	oldUID, newUID int64,
) (int64, error) {
	query := r.db.Rebind(`UPDATE payment_orders SET user_uid = ? WHERE user_uid = ?`)

	result, err := r.db.ExecContext(ctx, query, newUID, oldUID)
	if err != nil {
		return 0, fmt.Errorf("reassign orders: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reassign orders: %w", err)
	}

	return rows, nil
}
