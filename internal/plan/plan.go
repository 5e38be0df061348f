// Package plan classifies plan transitions and resolves plans for the
// reconciler. Classification is pure: no remote calls, no catalog access.
package plan

import (
	"github.com/dukerupert/skadi/internal/domain"
)

// Change is the kind of transition a requested plan diff represents.
type Change int

const (
	ChangeNone Change = iota
	ChangeNewSubscription
	ChangeUpgrade
	ChangeDowngrade
	ChangeCancellation
)

// String returns the change kind for logs and metrics labels.
func (c Change) String() string {
	switch c {
	case ChangeNone:
		return "none"
	case ChangeNewSubscription:
		return "new_subscription"
	case ChangeUpgrade:
		return "upgrade"
	case ChangeDowngrade:
		return "downgrade"
	case ChangeCancellation:
		return "cancellation"
	default:
		return "unknown"
	}
}

// Classify determines the transition kind between an old and new plan.
// Nil means "no plan". Total over all inputs; an unrecognized plan id is
// the caller's contract violation, resolved before this point.
func Classify(old, new *domain.Plan) Change {
	switch {
	case old == nil && new == nil:
		return ChangeNone
	case old == nil:
		return ChangeNewSubscription
	case new == nil:
		return ChangeCancellation
	case old.ID == new.ID:
		return ChangeNone
	case new.IsUpgradeFrom(*old):
		return ChangeUpgrade
	default:
		return ChangeDowngrade
	}
}

// IsUpgrade reports whether the change is billed-forward: a brand new
// subscription is treated as an upgrade for hook purposes.
func (c Change) IsUpgrade() bool {
	return c == ChangeUpgrade || c == ChangeNewSubscription
}

// Difference is the presentation-layer label for a prospective plan move.
type Difference string

const (
	DifferenceStartTrial Difference = "start_trial"
	DifferenceUpgrade    Difference = "upgrade"
	DifferenceDowngrade  Difference = "downgrade"
)

// Describe labels the move from the current plan to a target plan for
// display purposes. A record with no plan that has never been persisted
// starts a trial when free trials are enabled; otherwise any move from
// "no plan" reads as an upgrade.
func Describe(current *domain.Plan, target domain.Plan, persisted, freeTrial bool) Difference {
	if current == nil {
		if !persisted && freeTrial {
			return DifferenceStartTrial
		}
		return DifferenceUpgrade
	}
	if target.IsUpgradeFrom(*current) {
		return DifferenceUpgrade
	}
	return DifferenceDowngrade
}
