package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Plan is a priced subscription tier with a remote-processor counterpart.
type Plan struct {
	ID       string
	StripeID string
	Name     string

	// Price is the recurring charge per billing period.
	Price decimal.Decimal

	// Rank orders plans for upgrade/downgrade classification independent of
	// price. Two plans at the same price can still rank differently
	// (e.g. a legacy tier priced to match a smaller current tier).
	Rank int
}

// IsUpgradeFrom reports whether moving from other to p is an upgrade.
// Rank wins when the plans rank differently; price breaks the tie.
func (p Plan) IsUpgradeFrom(other Plan) bool {
	if p.Rank != other.Rank {
		return p.Rank > other.Rank
	}
	return p.Price.GreaterThan(other.Price)
}

// PlanCatalog looks plans up by identifier. The catalog is an external
// collaborator; the engine never enumerates it.
type PlanCatalog interface {
	Plan(ctx context.Context, id string) (*Plan, error)
}
