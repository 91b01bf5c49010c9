// AngelaMos | 2026
// entitlement.go

package entitlement

import (
	"fmt"
	"time"

	"github.com/carterperez-dev/skyline-backend/internal/core"
)

const (
	// LifetimeDays is what a zero-day grant turns into.
	LifetimeDays = 3650

	// RevokeDays is the admin sentinel for removing access outright.
	RevokeDays = -1

	// MaxGrantDays bounds a single grant so expiry arithmetic stays far
	// away from time.Time overflow.
	MaxGrantDays = 36500

	Day = 24 * time.Hour
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Extend returns the expiry after granting days on top of current. A lapsed
// or missing expiry restarts from now; a live one is extended in place.
func Extend(current *time.Time, days int, now time.Time) time.Time {
	baseline := now
	if current != nil && current.After(now) {
		baseline = *current
	}
	return baseline.Add(time.Duration(days) * Day)
}

// Grant is a normalized request to change an entitlement.
type Grant struct {
	Days   int
	Revoke bool
}

// NormalizeGrant maps the wire-level day count onto a Grant: -1 revokes,
// 0 becomes LifetimeDays, anything else passes through when in range.
func NormalizeGrant(days int) (Grant, error) {
	switch {
	case days == RevokeDays:
		return Grant{Revoke: true}, nil
	case days == 0:
		return Grant{Days: LifetimeDays}, nil
	case days < RevokeDays:
		return Grant{}, fmt.Errorf(
			"grant of %d days: %w", days, core.ErrInvalidInput,
		)
	case days > MaxGrantDays:
		return Grant{}, fmt.Errorf(
			"grant of %d days exceeds %d: %w", days, MaxGrantDays, core.ErrInvalidInput,
		)
	default:
		return Grant{Days: days}, nil
	}
}

// IsLifetime reports whether a stored key duration is the lifetime sentinel.
func IsLifetime(durationDays int) bool {
	return durationDays == 0
}

// State is the (status, expiry) pair a grant produces.
type State struct {
	Status  string
	Expires *time.Time
}

// Apply computes the next entitlement state. Expiries are kept in UTC.
func Apply(current *time.Time, g Grant, now time.Time) State {
	if g.Revoke {
		return State{Status: StatusInactive}
	}

	next := Extend(current, g.Days, now).UTC()
	return State{Status: StatusActive, Expires: &next}
}

// IsActive reports whether an entitlement grants access at now.
func IsActive(status string, expires *time.Time, now time.Time) bool {
	return status == StatusActive && expires != nil && expires.After(now)
}
