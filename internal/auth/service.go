// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/skyline-backend/internal/core"
	"github.com/carterperez-dev/skyline-backend/internal/middleware"
)

const (
	DefaultSessionTTL = 30 * 24 * time.Hour

	deviceTokenPrefix = "HWID-"
	deviceTokenLength = 12
)

type UserInfo struct {
	UID                 int64
	Email               string
	DisplayName         string
	PasswordHash        string
	DeviceToken         *string
	Role                string
	SubscriptionStatus  string
	SubscriptionExpires *time.Time
	IsBanned            bool
	CreatedAt           time.Time
}

type NewUser struct {
	Email        string
	DisplayName  string
	PasswordHash string
	DeviceToken  string
	IP           string
}

type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*UserInfo, error)
	GetByUID(ctx context.Context, uid int64) (*UserInfo, error)
	Create(ctx context.Context, nu NewUser) (*UserInfo, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UpdatePassword(ctx context.Context, uid int64, passwordHash string) error
	UpdateLastIP(ctx context.Context, uid int64, ip string) error
}

type AddressBanChecker interface {
	IsBanned(ctx context.Context, ip string) (bool, error)
}

// ServiceConfig carries the optional collaborators. A nil Human or Domains
// skips that registration check.
type ServiceConfig struct {
	SessionTTL time.Duration
	Human      HumanVerifier
	Domains    DomainChecker
	Clock      func() time.Time
}

type Service struct {
	repo       Repository
	users      UserProvider
	bans       AddressBanChecker
	human      HumanVerifier
	domains    DomainChecker
	sessionTTL time.Duration
	validate   *validator.Validate
	now        func() time.Time
}

func NewService(
	repo Repository,
	users UserProvider,
	bans AddressBanChecker,
	cfg ServiceConfig,
) *Service {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	clock := cfg.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}

	return &Service{
		repo:       repo,
		users:      users,
		bans:       bans,
		human:      cfg.Human,
		domains:    cfg.Domains,
		sessionTTL: ttl,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		now:        clock,
	}
}

// CreateSession issues a fresh bearer token for uid. The caller gets the
// raw token once; only its hash is kept.
func (s *Service) CreateSession(
	ctx context.Context,
	uid int64,
	ipAddress, userAgent string,
) (string, time.Time, error) {
	token, err := core.GenerateSessionToken()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate session token: %w", err)
	}

	now := s.now()
	session := &Session{
		TokenHash: core.HashToken(token),
		UserUID:   uid,
		ExpiresAt: now.Add(s.sessionTTL),
		CreatedAt: now,
		IPAddress: ipAddress,
		UserAgent: truncate(userAgent, 512),
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return "", time.Time{}, err
	}

	return token, session.ExpiresAt, nil
}

// ResolveSession maps a bearer token to its principal. Every refusal is the
// same ErrUnauthenticated, whether the token is malformed, unknown, expired
// or owned by a banned identity.
func (s *Service) ResolveSession(
	ctx context.Context,
	token string,
) (*middleware.Principal, error) {
	if !core.IsWellFormedSessionToken(token) {
		return nil, fmt.Errorf("resolve session: %w", core.ErrUnauthenticated)
	}

	session, err := core.RetryRead(ctx, func() (*Session, error) {
		return s.repo.FindByHash(ctx, core.HashToken(token))
	})
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("resolve session: %w", core.ErrUnauthenticated)
		}
		return nil, err
	}

	if session.IsExpired(s.now()) {
		return nil, fmt.Errorf("resolve session: %w", core.ErrUnauthenticated)
	}

	user, err := core.RetryRead(ctx, func() (*UserInfo, error) {
		return s.users.GetByUID(ctx, session.UserUID)
	})
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("resolve session: %w", core.ErrUnauthenticated)
		}
		return nil, err
	}

	if user.IsBanned {
		return nil, fmt.Errorf("resolve session: %w", core.ErrUnauthenticated)
	}

	return &middleware.Principal{
		UID:   user.UID,
		Email: user.Email,
		Role:  user.Role,
	}, nil
}

func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	if err := s.checkAddress(ctx, ipAddress); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // timing attack prevention - always verify to prevent enumeration
			_, _, _ = core.VerifyPasswordTimingSafe(req.Password, nil)
			return nil, core.InvalidCredentialsError()
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	valid, newHash, err := core.VerifyPasswordTimingSafe(
		req.Password,
		&user.PasswordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		return nil, core.InvalidCredentialsError()
	}

	if user.IsBanned {
		return nil, core.AccountBannedError()
	}

	if newHash != "" {
		if err := s.users.UpdatePassword(ctx, user.UID, newHash); err != nil {
			slog.Warn("password rehash failed", "uid", user.UID, "error", err)
		}
	}

	if ipAddress != "" {
		if err := s.users.UpdateLastIP(ctx, user.UID, ipAddress); err != nil {
			slog.Warn("record last ip failed", "uid", user.UID, "error", err)
		}
	}

	return s.createAuthResponse(ctx, user, userAgent, ipAddress)
}

func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	if s.human != nil {
		ok, err := s.human.Verify(ctx, req.CaptchaToken, ipAddress)
		if err != nil {
			return nil, fmt.Errorf("verify captcha: %w", err)
		}
		if !ok {
			return nil, core.ValidationError("captcha verification failed")
		}
	}

	email := normalizeEmail(req.Email)
	if reason := s.checkEmailShape(ctx, email); reason != "" {
		return nil, core.ValidationError(emailReasonMessage(reason))
	}

	if err := s.checkAddress(ctx, ipAddress); err != nil {
		return nil, err
	}

	taken, err := s.users.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return nil, core.DuplicateError("email")
	}

	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	deviceToken, err := core.RandomString(core.SessionTokenAlphabet, deviceTokenLength)
	if err != nil {
		return nil, fmt.Errorf("generate device token: %w", err)
	}

	user, err := s.users.Create(ctx, NewUser{
		Email:        email,
		DisplayName:  req.DisplayName,
		PasswordHash: passwordHash,
		DeviceToken:  deviceTokenPrefix + deviceToken,
		IP:           ipAddress,
	})
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, core.DuplicateError("email")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return s.createAuthResponse(ctx, user, userAgent, ipAddress)
}

// CheckEmail reports whether email could be registered right now.
func (s *Service) CheckEmail(
	ctx context.Context,
	email string,
) (*CheckEmailResponse, error) {
	email = normalizeEmail(email)

	if reason := s.checkEmailShape(ctx, email); reason != "" {
		return &CheckEmailResponse{OK: false, Reason: reason}, nil
	}

	taken, err := s.users.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return &CheckEmailResponse{OK: false, Reason: EmailReasonTaken}, nil
	}

	return &CheckEmailResponse{OK: true}, nil
}

// Logout deletes the session behind token. Unknown tokens are not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	if !core.IsWellFormedSessionToken(token) {
		return nil
	}

	if _, err := s.repo.DeleteByHash(ctx, core.HashToken(token)); err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	return nil
}

func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.now())
}

func (s *Service) checkAddress(ctx context.Context, ip string) error {
	if s.bans == nil || ip == "" {
		return nil
	}

	banned, err := s.bans.IsBanned(ctx, ip)
	if err != nil {
		return fmt.Errorf("check address ban: %w", err)
	}
	if banned {
		return core.AddressBannedError()
	}

	return nil
}

// checkEmailShape returns an empty reason when email is syntactically valid
// and, if a DomainChecker is configured, its domain accepts mail.
func (s *Service) checkEmailShape(ctx context.Context, email string) string {
	if err := s.validate.Var(email, "required,email,max=255"); err != nil {
		return EmailReasonInvalid
	}

	if s.domains == nil {
		return ""
	}

	domain := email[strings.LastIndexByte(email, '@')+1:]
	ok, err := s.domains.HasMailDomain(ctx, domain)
	if err != nil {
		slog.Debug("email domain lookup failed", "domain", domain, "error", err)
		return EmailReasonDomain
	}
	if !ok {
		return EmailReasonDomain
	}

	return ""
}

func (s *Service) createAuthResponse(
	ctx context.Context,
	user *UserInfo,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	token, expiresAt, err := s.CreateSession(ctx, user.UID, ipAddress, userAgent)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &AuthResponse{
		User: toUserResponse(user),
		Session: SessionResponse{
			Token:     token,
			TokenType: "Bearer",
			ExpiresAt: expiresAt,
		},
	}, nil
}

func emailReasonMessage(reason string) string {
	if reason == EmailReasonDomain {
		return "email domain is not valid"
	}
	return "invalid email"
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var _ middleware.SessionResolver = (*Service)(nil)
