package billing

import (
	"context"
)

// Gateway is a thin typed adapter over the remote payment processor's
// customer, subscription and payment-source operations. The reconciler is
// the only mutating caller; the webhook surface uses it for signature
// verification.
//
// No retry or timeout policy lives here beyond what the SDK provides.
// A call either returns or fails with a typed error (see errors.go).
type Gateway interface {
	// CreateCustomer creates a remote customer with an initial payment
	// source attached. The returned Customer carries the default card's
	// display details.
	CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error)

	// GetCustomer retrieves an existing remote customer, including its
	// default payment source.
	GetCustomer(ctx context.Context, customerID string) (*Customer, error)

	// AttachCardToken attaches a tokenized card as the customer's new
	// default payment source and returns the resulting card details.
	AttachCardToken(ctx context.Context, customerID, token string) (*Card, error)

	// UpdateSubscription moves the customer's subscription to the given
	// plan, creating one if none is active. Coupon and TrialEnd are
	// mutually exclusive; supplying both is a request error.
	UpdateSubscription(ctx context.Context, params UpdateSubscriptionParams) error

	// CancelSubscription cancels the customer's active subscription
	// immediately. The remote customer itself is retained.
	CancelSubscription(ctx context.Context, customerID string) error

	// ChargeCustomer resolves the remote customer id a charge belongs to.
	// Dispute webhook payloads carry only a charge reference.
	ChargeCustomer(ctx context.Context, chargeID string) (string, error)

	// VerifyWebhookSignature verifies that a webhook request is authentic.
	VerifyWebhookSignature(payload []byte, signature string, secret string) error
}

// CreateCustomerParams contains parameters for creating a remote customer.
type CreateCustomerParams struct {
	// Description identifies the owner in the processor dashboard
	// (display name, falling back to owner id).
	Description string

	// Email receives processor receipts.
	Email string

	// CardToken is the one-time token from client-side tokenization.
	CardToken string
}

// UpdateSubscriptionParams contains parameters for a plan change.
type UpdateSubscriptionParams struct {
	// CustomerID is the remote customer id (cus_...).
	CustomerID string

	// PlanStripeID is the processor-side price/plan identifier.
	PlanStripeID string

	// Prorate controls mid-cycle charge adjustment. Policy flag only;
	// the math is the processor's.
	Prorate bool

	// Coupon is a processor coupon code passed through verbatim.
	// Empty means no coupon. Mutually exclusive with TrialEnd.
	Coupon string

	// TrialEnd delays billing start to the given epoch second.
	// Zero means no trial override. Mutually exclusive with Coupon.
	TrialEnd int64
}

// Customer is the processor's representation of a billable party.
type Customer struct {
	ID    string
	Email string

	// Card is the default payment source's display details, nil when the
	// customer has no default source.
	Card *Card
}

// Card holds cached display fields for a payment source. The underlying
// card data never transits this system.
type Card struct {
	LastFour string
	ExpMonth int64
	ExpYear  int64
	Brand    string
}
