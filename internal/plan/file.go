package plan

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/skadi/internal/domain"
)

type planFileEntry struct {
	ID       string `json:"id"`
	StripeID string `json:"stripe_id"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	Rank     int    `json:"rank"`
}

// LoadFile reads a plan catalog from a JSON file. Prices are decimal
// strings ("49.00"), never floats.
func LoadFile(path string) (*MemoryCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan catalog: %w", err)
	}

	var entries []planFileEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing plan catalog %s: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("plan catalog %s defines no plans", path)
	}

	plans := make([]domain.Plan, 0, len(entries))
	for _, e := range entries {
		if e.ID == "" || e.StripeID == "" {
			return nil, fmt.Errorf("plan catalog %s: every plan needs an id and a stripe_id", path)
		}
		price, err := decimal.NewFromString(e.Price)
		if err != nil {
			return nil, fmt.Errorf("plan catalog %s: plan %s has invalid price %q: %w", path, e.ID, e.Price, err)
		}
		plans = append(plans, domain.Plan{
			ID:       e.ID,
			StripeID: e.StripeID,
			Name:     e.Name,
			Price:    price,
			Rank:     e.Rank,
		})
	}

	return NewMemoryCatalog(plans...), nil
}
