package domain

import "context"

// SubscriptionStore persists subscription records. Implementations must
// call SnapshotPlan on records they hand out so the reconciler can diff the
// requested state against what was loaded.
type SubscriptionStore interface {
	// Get retrieves a record by its local identifier.
	Get(ctx context.Context, id string) (*Subscription, error)

	// GetByStripeID retrieves a record by its remote customer id.
	// Used by the webhook surface to locate the affected subscriber.
	GetByStripeID(ctx context.Context, stripeID string) (*Subscription, error)

	// GetByCustomerID retrieves the record owned by an account.
	GetByCustomerID(ctx context.Context, customerID string) (*Subscription, error)

	// Save writes the record. Callers must not save a record whose Errors
	// are non-empty; a failed reconcile means "do not persist".
	Save(ctx context.Context, sub *Subscription) error
}
