// AngelaMos | 2026
// dto.go

package license

import (
	"time"
)

type RedeemRequest struct {
	Code string `json:"code" validate:"required,max=128"`
}

type RedeemResponse struct {
	SubscriptionExpires *time.Time `json:"subscription_expires"`
	Lifetime            bool       `json:"lifetime"`
}
