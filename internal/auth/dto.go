// AngelaMos | 2026
// dto.go

package auth

import (
	"time"
)

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=128"`
}

type RegisterRequest struct {
	Email        string `json:"email"         validate:"required,email,max=255"`
	Password     string `json:"password"      validate:"required,min=8,max=128"`
	DisplayName  string `json:"display_name"  validate:"required,min=1,max=64"`
	CaptchaToken string `json:"captcha_token" validate:"max=4096"`
}

type CheckEmailRequest struct {
	Email string `json:"email" validate:"max=255"`
}

const (
	EmailReasonInvalid = "invalid"
	EmailReasonDomain  = "domain"
	EmailReasonTaken   = "taken"
)

type CheckEmailResponse struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

type UserResponse struct {
	UID                 int64      `json:"uid"`
	Email               string     `json:"email"`
	DisplayName         string     `json:"display_name"`
	DeviceToken         *string    `json:"device_token"`
	Role                string     `json:"role"`
	SubscriptionStatus  string     `json:"subscription_status"`
	SubscriptionExpires *time.Time `json:"subscription_expires"`
	CreatedAt           time.Time  `json:"created_at"`
}

type SessionResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

type AuthResponse struct {
	User    UserResponse    `json:"user"`
	Session SessionResponse `json:"session"`
}

func toUserResponse(u *UserInfo) UserResponse {
	return UserResponse{
		UID:                 u.UID,
		Email:               u.Email,
		DisplayName:         u.DisplayName,
		DeviceToken:         u.DeviceToken,
		Role:                u.Role,
		SubscriptionStatus:  u.SubscriptionStatus,
		SubscriptionExpires: u.SubscriptionExpires,
		CreatedAt:           u.CreatedAt,
	}
}
