// AngelaMos | 2026
// dto.go

package admin

import (
	"time"
)

type SubscriptionRequest struct {
	UID  int64 `json:"uid"  validate:"required,gt=0"`
	Days *int  `json:"days" validate:"required"`
}

type SubscriptionResponse struct {
	UID                 int64      `json:"uid"`
	SubscriptionStatus  string     `json:"subscription_status"`
	SubscriptionExpires *time.Time `json:"subscription_expires"`
}

type BanRequest struct {
	UID    int64  `json:"uid"    validate:"required,gt=0"`
	Reason string `json:"reason" validate:"max=500"`
}

type ChangeUIDRequest struct {
	OldUID int64 `json:"old_uid"`
	NewUID int64 `json:"new_uid"`
}

type AddressBanRequest struct {
	IP     string `json:"ip"     validate:"required,ip"`
	Reason string `json:"reason" validate:"max=500"`
}

type GenerateKeysRequest struct {
	DurationDays *int `json:"duration_days" validate:"required,gte=0"`
	Count        int  `json:"count"`
}

type GenerateKeysResponse struct {
	Codes        []string `json:"codes"`
	DurationDays int      `json:"duration_days"`
}

type PurgeSessionsResponse struct {
	Purged int64 `json:"purged"`
}
