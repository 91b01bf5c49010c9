// AngelaMos | 2026
// verifier.go

package payment

import (
	"context"
	"time"
)

// Verifier decides whether the money for an order has actually arrived.
type Verifier interface {
	Verify(ctx context.Context, orderID string, uid int64, planID string) (bool, error)
}

// SimulatedVerifier approves every order after Delay. It stands in for a
// gateway callback in demo deployments.
type SimulatedVerifier struct {
	Delay time.Duration
}

func (v SimulatedVerifier) Verify(
	ctx context.Context,
	_ string,
	_ int64,
	_ string,
) (bool, error) {
	if v.Delay <= 0 {
		return true, nil
	}

	timer := time.NewTimer(v.Delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
