package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Subscription is the local billing record for one subscriber. It mirrors
// the remote processor's customer/subscription state: StripeID, the card
// display fields and CurrentPrice are caches of remote truth, refreshed by
// the reconciler after each successful remote mutation.
//
// The record is mutated only by the reconciler during an update attempt.
// Everything else reads it.
type Subscription struct {
	ID         string
	CustomerID string // owning account identifier, opaque to this package

	// StripeID is the remote customer id (cus_...). Empty until the first
	// remote customer creation succeeds.
	StripeID string

	// PlanID references the active plan. Nil means no active plan, either
	// never subscribed or cancelled.
	PlanID *string

	// CurrentPrice mirrors the remote subscription's active price.
	// Non-nil exactly when PlanID is non-nil.
	CurrentPrice *decimal.Decimal

	// CouponID records the coupon applied on the last successful update.
	CouponID string

	// Card display fields, refreshed whenever a payment source is attached.
	LastFour    string
	ExpiryMonth int64
	ExpiryYear  int64
	CardType    string

	CreatedAt time.Time
	UpdatedAt time.Time

	// CardToken is the one-time tokenized card reference produced by the
	// client-side tokenization step. Write-once, never persisted.
	CardToken string

	// Coupon is the coupon code supplied with this update attempt.
	// Transient, never persisted (CouponID records the applied value).
	Coupon string

	// Errors accumulates user-facing validation failures from the current
	// update attempt. A record with errors must not be saved.
	Errors ValidationErrors

	prevPlanID *string
}

// NewSubscription creates a fresh record for an owning account: no plan,
// no remote customer. The plan baseline is snapshotted immediately so the
// first update attempt classifies as a plan change.
func NewSubscription(customerID string) *Subscription {
	s := &Subscription{CustomerID: customerID}
	s.SnapshotPlan()
	return s
}

// SnapshotPlan records the current plan as the baseline the next update
// attempt is diffed against. Stores call this after loading a record;
// the reconciler calls it after a successful attempt.
func (s *Subscription) SnapshotPlan() {
	if s.PlanID == nil {
		s.prevPlanID = nil
	} else {
		id := *s.PlanID
		s.prevPlanID = &id
	}
}

// PreviousPlanID returns the plan reference as of the last snapshot.
// Nil means the record had no plan at the start of this attempt.
func (s *Subscription) PreviousPlanID() *string {
	return s.prevPlanID
}

// PlanChanged reports whether PlanID differs from its snapshot.
func (s *Subscription) PlanChanged() bool {
	if s.PlanID == nil || s.prevPlanID == nil {
		return s.PlanID != s.prevPlanID
	}
	return *s.PlanID != *s.prevPlanID
}

// ConsumeTransients clears the single-use inputs. Called when an update
// attempt completes, success or failure, so a retried attempt cannot
// silently reuse a stale token or coupon.
func (s *Subscription) ConsumeTransients() {
	s.CardToken = ""
	s.Coupon = ""
}

// Cancelled reports whether the record is in the terminal cancelled state:
// no active plan but remote history retained.
func (s *Subscription) Cancelled() bool {
	return s.PlanID == nil && s.StripeID != ""
}

// Owner is the entity a subscription bills on behalf of. The hosting
// application supplies the concrete type; this engine only needs enough
// to describe the owner to the payment processor.
type Owner interface {
	// ID is a stable identifier, used when the owner has no display name.
	ID() string

	// Name is the display name, may be empty.
	Name() string

	// Email receives processor receipts and dunning notices.
	Email() string
}

// OwnerSource resolves the owning entity for a record. Supplied by the
// hosting application at construction time.
type OwnerSource interface {
	Owner(sub *Subscription) (Owner, error)
}

// OwnerSourceFunc adapts a function to the OwnerSource interface.
type OwnerSourceFunc func(sub *Subscription) (Owner, error)

func (f OwnerSourceFunc) Owner(sub *Subscription) (Owner, error) {
	return f(sub)
}

// OwnerDescription derives the customer description sent to the processor:
// the owner's display name, falling back to its identifier.
func OwnerDescription(o Owner) string {
	if name := o.Name(); name != "" {
		return name
	}
	return o.ID()
}
