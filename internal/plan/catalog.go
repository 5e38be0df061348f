package plan

import (
	"context"
	"sync"

	"github.com/dukerupert/skadi/internal/domain"
)

// MemoryCatalog is an in-memory domain.PlanCatalog. Holds a copy of the
// given plans so later mutation by the caller cannot affect lookups.
type MemoryCatalog struct {
	mu    sync.RWMutex
	plans map[string]domain.Plan
}

// Compile-time check to ensure MemoryCatalog implements domain.PlanCatalog.
var _ domain.PlanCatalog = (*MemoryCatalog)(nil)

// NewMemoryCatalog returns a catalog over the given plans.
// Panics if no plans are provided: the engine is useless without at least
// one subscribable tier.
func NewMemoryCatalog(plans ...domain.Plan) *MemoryCatalog {
	if len(plans) == 0 {
		panic("plan: at least one plan is required")
	}

	byID := make(map[string]domain.Plan, len(plans))
	for _, p := range plans {
		byID[p.ID] = p
	}

	return &MemoryCatalog{plans: byID}
}

// Plan returns a copy of the plan with the given id.
func (c *MemoryCatalog) Plan(ctx context.Context, id string) (*domain.Plan, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.plans[id]
	if !ok {
		return nil, domain.NotFound("plan.lookup", "plan", id)
	}
	return &p, nil
}
