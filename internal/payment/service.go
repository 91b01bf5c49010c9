// AngelaMos | 2026
// service.go

package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/skyline-backend/internal/core"
	"github.com/carterperez-dev/skyline-backend/internal/entitlement"
	"github.com/carterperez-dev/skyline-backend/internal/user"
)

type Service struct {
	db       *sqlx.DB
	repo     Repository
	plans    *entitlement.Plans
	verifier Verifier
	now      func() time.Time
}

func NewService(
	db *sqlx.DB,
	repo Repository,
	plans *entitlement.Plans,
	verifier Verifier,
) *Service {
	if verifier == nil {
		verifier = SimulatedVerifier{}
	}

	return &Service{
		db:       db,
		repo:     repo,
		plans:    plans,
		verifier: verifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type ConfirmResult struct {
	OrderID   string
	PlanID    string
	Days      int
	ExpiresAt *time.Time
}

// Confirm turns a verified order into entitlement days for uid. The order
// row and the grant commit together, so an order id pays out at most once.
func (s *Service) Confirm(
	ctx context.Context,
	uid int64,
	orderID, planID string,
) (*ConfirmResult, error) {
	ctx, span := core.StartSpan(ctx, "payment.Confirm",
		attribute.Int64("user.uid", uid),
		attribute.String("payment.plan", planID),
	)
	defer span.End()

	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, core.ValidationError("order_id is required")
	}

	plan, days, err := s.plans.Days(planID)
	if err != nil {
		return nil, core.ValidationError(fmt.Sprintf("unknown plan %q", planID))
	}

	g, err := entitlement.NormalizeGrant(days)
	if err != nil {
		return nil, err
	}

	verified, err := s.verifier.Verify(ctx, orderID, uid, plan)
	if err != nil {
		return nil, fmt.Errorf("verify payment: %w", err)
	}
	if !verified {
		return nil, core.NewAppError(
			core.ErrForbidden,
			"payment could not be verified",
			http.StatusPaymentRequired,
			"PAYMENT_NOT_VERIFIED",
		)
	}

	result := &ConfirmResult{OrderID: orderID, PlanID: plan, Days: days}
	err = core.RetryOnConflict(ctx, func() error {
		return core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
			now := s.now()

			err := NewRepository(tx).Insert(ctx, &Order{
				OrderID:   orderID,
				UserUID:   uid,
				PlanID:    plan,
				Days:      days,
				CreatedAt: now,
			})
			if errors.Is(err, core.ErrDuplicateKey) {
				return core.ConflictError(
					"ORDER_ALREADY_CONFIRMED",
					"this order has already been confirmed",
				)
			}
			if err != nil {
				return err
			}

			state, err := user.ApplyGrant(ctx, user.NewRepository(tx), uid, g, now)
			if err != nil {
				return err
			}

			result.ExpiresAt = state.Expires
			return nil
		})
	})
	if err != nil {
		core.SetSpanError(ctx, err)
		return nil, err
	}

	return result, nil
}

func (s *Service) Orders(ctx context.Context, uid int64) ([]Order, error) {
	return s.repo.ListByUser(ctx, uid)
}
