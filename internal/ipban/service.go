// AngelaMos | 2026
// service.go

package ipban

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/carterperez-dev/skyline-backend/internal/core"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// IsBanned looks the address up in canonical form. An empty address is
// never banned.
func (s *Service) IsBanned(ctx context.Context, ip string) (bool, error) {
	canonical, ok := Canonical(ip)
	if !ok {
		return false, nil
	}

	return core.RetryRead(ctx, func() (bool, error) {
		return s.repo.Exists(ctx, canonical)
	})
}

func (s *Service) Ban(ctx context.Context, ip, reason string) error {
	canonical, ok := Canonical(ip)
	if !ok {
		return fmt.Errorf("ban address %q: %w", ip, core.ErrInvalidInput)
	}

	var r *string
	if trimmed := strings.TrimSpace(reason); trimmed != "" {
		r = &trimmed
	}

	return s.repo.Upsert(ctx, canonical, r, s.now())
}

// Unban reports whether a ban was actually removed.
func (s *Service) Unban(ctx context.Context, ip string) (bool, error) {
	canonical, ok := Canonical(ip)
	if !ok {
		return false, fmt.Errorf("unban address %q: %w", ip, core.ErrInvalidInput)
	}

	n, err := s.repo.Delete(ctx, canonical)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Service) List(ctx context.Context) ([]Ban, error) {
	return s.repo.List(ctx)
}

// Canonical normalizes an address so "::ffff:10.0.0.1" and "10.0.0.1" hit
// the same row.
func Canonical(ip string) (string, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return "", false
	}
	return addr.Unmap().WithZone("").String(), true
}
