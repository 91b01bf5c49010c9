// AngelaMos | 2026
// plans.go

package entitlement

import (
	"fmt"
	"strings"

	"github.com/carterperez-dev/skyline-backend/internal/core"
)

// Plans maps purchasable plan ids to the days they grant.
type Plans struct {
	days        map[string]int
	defaultPlan string
}

func NewPlans(days map[string]int, defaultPlan string) *Plans {
	copied := make(map[string]int, len(days))
	for id, d := range days {
		copied[strings.ToLower(id)] = d
	}
	return &Plans{days: copied, defaultPlan: strings.ToLower(defaultPlan)}
}

// Days resolves a plan id. An empty id selects the default plan; an unknown
// one is rejected rather than silently sold as the default.
func (p *Plans) Days(planID string) (string, int, error) {
	id := strings.ToLower(strings.TrimSpace(planID))
	if id == "" {
		id = p.defaultPlan
	}

	days, ok := p.days[id]
	if !ok {
		return "", 0, fmt.Errorf("unknown plan %q: %w", planID, core.ErrInvalidInput)
	}

	return id, days, nil
}
