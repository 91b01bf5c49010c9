// AngelaMos | 2026
// entitlement_test.go

package entitlement

import (
	"errors"
	"testing"
	"time"

	"github.com/carterperez-dev/skyline-backend/internal/core"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ptr(t time.Time) *time.Time { return &t }

// ---------------------------------------------------------------------------
// Extend
// ---------------------------------------------------------------------------

func TestExtend(t *testing.T) {
	tests := []struct {
		name    string
		current *time.Time
		days    int
		want    time.Time
	}{
		{
			name:    "nil expiry starts from now",
			current: nil,
			days:    30,
			want:    testNow.Add(30 * Day),
		},
		{
			name:    "past expiry restarts from now",
			current: ptr(testNow.Add(-90 * Day)),
			days:    30,
			want:    testNow.Add(30 * Day),
		},
		{
			name:    "expiry equal to now restarts from now",
			current: ptr(testNow),
			days:    7,
			want:    testNow.Add(7 * Day),
		},
		{
			name:    "future expiry is extended in place",
			current: ptr(testNow.Add(10 * Day)),
			days:    30,
			want:    testNow.Add(40 * Day),
		},
		{
			name:    "zero days is not special",
			current: ptr(testNow.Add(10 * Day)),
			days:    0,
			want:    testNow.Add(10 * Day),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extend(tt.current, tt.days, testNow)
			if !got.Equal(tt.want) {
				t.Errorf("Extend() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtendNeverShortens(t *testing.T) {
	current := testNow.Add(400 * Day)
	for days := 1; days <= 3650; days *= 3 {
		got := Extend(&current, days, testNow)
		if got.Before(current) {
			t.Fatalf("Extend(%d) = %v shortened expiry %v", days, got, current)
		}
	}
}

// ---------------------------------------------------------------------------
// NormalizeGrant / Apply
// ---------------------------------------------------------------------------

func TestNormalizeGrant(t *testing.T) {
	tests := []struct {
		days    int
		want    Grant
		wantErr bool
	}{
		{days: -1, want: Grant{Revoke: true}},
		{days: 0, want: Grant{Days: LifetimeDays}},
		{days: 30, want: Grant{Days: 30}},
		{days: MaxGrantDays, want: Grant{Days: MaxGrantDays}},
		{days: -2, wantErr: true},
		{days: MaxGrantDays + 1, wantErr: true},
	}

	for _, tt := range tests {
		got, err := NormalizeGrant(tt.days)
		if tt.wantErr {
			if !errors.Is(err, core.ErrInvalidInput) {
				t.Errorf("NormalizeGrant(%d) error = %v, want ErrInvalidInput", tt.days, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeGrant(%d) unexpected error: %v", tt.days, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeGrant(%d) = %+v, want %+v", tt.days, got, tt.want)
		}
	}
}

func TestZeroDaysMatchesLifetime(t *testing.T) {
	current := testNow.Add(5 * Day)

	zero, err := NormalizeGrant(0)
	if err != nil {
		t.Fatalf("NormalizeGrant(0): %v", err)
	}

	got := Apply(&current, zero, testNow)
	want := Extend(&current, LifetimeDays, testNow)

	if got.Expires == nil || !got.Expires.Equal(want) {
		t.Fatalf("zero-day grant = %v, want %v", got.Expires, want)
	}
	if got.Status != StatusActive {
		t.Errorf("status = %q, want %q", got.Status, StatusActive)
	}
}

func TestApplyRevoke(t *testing.T) {
	current := testNow.Add(100 * Day)

	got := Apply(&current, Grant{Revoke: true}, testNow)
	if got.Status != StatusInactive {
		t.Errorf("status = %q, want %q", got.Status, StatusInactive)
	}
	if got.Expires != nil {
		t.Errorf("expires = %v, want nil", got.Expires)
	}
}

func TestIsActive(t *testing.T) {
	future := testNow.Add(Day)
	past := testNow.Add(-Day)

	if !IsActive(StatusActive, &future, testNow) {
		t.Error("active with future expiry should be active")
	}
	if IsActive(StatusActive, &past, testNow) {
		t.Error("lapsed expiry should not be active")
	}
	if IsActive(StatusInactive, &future, testNow) {
		t.Error("inactive status should not be active")
	}
	if IsActive(StatusActive, nil, testNow) {
		t.Error("nil expiry should not be active")
	}
}

// ---------------------------------------------------------------------------
// Plans
// ---------------------------------------------------------------------------

func TestPlans(t *testing.T) {
	plans := NewPlans(map[string]int{
		"1_month":  30,
		"3_months": 90,
		"forever":  3650,
	}, "1_month")

	tests := []struct {
		planID  string
		wantID  string
		want    int
		wantErr bool
	}{
		{planID: "3_months", wantID: "3_months", want: 90},
		{planID: "FOREVER", wantID: "forever", want: 3650},
		{planID: "", wantID: "1_month", want: 30},
		{planID: "weekly", wantErr: true},
	}

	for _, tt := range tests {
		id, days, err := plans.Days(tt.planID)
		if tt.wantErr {
			if !errors.Is(err, core.ErrInvalidInput) {
				t.Errorf("Days(%q) error = %v, want ErrInvalidInput", tt.planID, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Days(%q) unexpected error: %v", tt.planID, err)
			continue
		}
		if id != tt.wantID || days != tt.want {
			t.Errorf("Days(%q) = (%q, %d), want (%q, %d)", tt.planID, id, days, tt.wantID, tt.want)
		}
	}
}
