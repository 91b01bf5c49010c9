// AngelaMos | 2026
// dto.go

package payment

import (
	"time"
)

type ConfirmRequest struct {
	OrderID string `json:"order_id" validate:"required,max=128"`
	PlanID  string `json:"plan_id"  validate:"max=64"`
}

type ConfirmResponse struct {
	OrderID             string     `json:"order_id"`
	PlanID              string     `json:"plan_id"`
	Days                int        `json:"days"`
	SubscriptionExpires *time.Time `json:"subscription_expires"`
}

type OrderResponse struct {
	OrderID   string    `json:"order_id"`
	PlanID    string    `json:"plan_id"`
	Days      int       `json:"days"`
	CreatedAt time.Time `json:"created_at"`
}

func ToOrderResponseList(orders []Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, OrderResponse{
			OrderID:   o.OrderID,
			PlanID:    o.PlanID,
			Days:      o.Days,
			CreatedAt: o.CreatedAt,
		})
	}
	return out
}
