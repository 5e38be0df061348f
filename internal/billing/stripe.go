package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/charge"
	"github.com/stripe/stripe-go/v83/customer"
	stripesub "github.com/stripe/stripe-go/v83/subscription"
	"github.com/stripe/stripe-go/v83/webhook"
)

// StripeGateway implements Gateway using the Stripe API.
type StripeGateway struct{}

// Compile-time check to ensure StripeGateway implements Gateway.
var _ Gateway = (*StripeGateway)(nil)

// NewStripeGateway creates a Stripe-backed gateway. The API key is set
// process-wide, matching how the SDK's package-level bindings operate.
func NewStripeGateway(apiKey string) *StripeGateway {
	stripe.Key = apiKey
	return &StripeGateway{}
}

// CreateCustomer creates a Stripe customer with the card token attached as
// its initial default source.
func (g *StripeGateway) CreateCustomer(ctx context.Context, p CreateCustomerParams) (*Customer, error) {
	params := &stripe.CustomerParams{
		Description: stripe.String(p.Description),
		Email:       stripe.String(p.Email),
		Source:      stripe.String(p.CardToken),
	}
	params.Context = ctx
	params.AddExpand("default_source")

	cust, err := customer.New(params)
	if err != nil {
		return nil, classifyError(err)
	}

	return customerFromStripe(cust), nil
}

// GetCustomer retrieves a Stripe customer with its default source expanded.
func (g *StripeGateway) GetCustomer(ctx context.Context, customerID string) (*Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	params.AddExpand("default_source")

	cust, err := customer.Get(customerID, params)
	if err != nil {
		return nil, classifyError(err)
	}
	if cust.Deleted {
		return nil, ErrCustomerNotFound
	}

	return customerFromStripe(cust), nil
}

// AttachCardToken replaces the customer's default payment source with the
// tokenized card and returns the resulting card details.
func (g *StripeGateway) AttachCardToken(ctx context.Context, customerID, token string) (*Card, error) {
	params := &stripe.CustomerParams{
		Source: stripe.String(token),
	}
	params.Context = ctx
	params.AddExpand("default_source")

	cust, err := customer.Update(customerID, params)
	if err != nil {
		return nil, classifyError(err)
	}

	card := cardFromSource(cust.DefaultSource)
	if card == nil {
		return nil, &RequestError{Message: "No default payment source after attach."}
	}
	return card, nil
}

// UpdateSubscription moves the customer onto the given plan. If the customer
// has an active subscription its item is swapped; otherwise a new
// subscription is created. Coupon and TrialEnd are mutually exclusive.
func (g *StripeGateway) UpdateSubscription(ctx context.Context, p UpdateSubscriptionParams) error {
	if p.Coupon != "" && p.TrialEnd != 0 {
		return &RequestError{Message: "Coupon and trial end cannot be combined."}
	}

	existing, err := g.activeSubscription(ctx, p.CustomerID)
	if err != nil && !errors.Is(err, ErrNoActiveSubscription) {
		return err
	}

	prorationBehavior := "none"
	if p.Prorate {
		prorationBehavior = "create_prorations"
	}

	if existing == nil {
		params := &stripe.SubscriptionParams{
			Customer: stripe.String(p.CustomerID),
			Items: []*stripe.SubscriptionItemsParams{
				{Price: stripe.String(p.PlanStripeID)},
			},
		}
		params.Context = ctx
		applyCouponOrTrial(params, p)

		_, err = stripesub.New(params)
		return classifyError(err)
	}

	params := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{
			{
				ID:    stripe.String(existing.Items.Data[0].ID),
				Price: stripe.String(p.PlanStripeID),
			},
		},
		ProrationBehavior: stripe.String(prorationBehavior),
	}
	params.Context = ctx
	applyCouponOrTrial(params, p)

	_, err = stripesub.Update(existing.ID, params)
	return classifyError(err)
}

// CancelSubscription cancels the customer's active subscription immediately.
func (g *StripeGateway) CancelSubscription(ctx context.Context, customerID string) error {
	existing, err := g.activeSubscription(ctx, customerID)
	if err != nil {
		return err
	}

	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx

	_, err = stripesub.Cancel(existing.ID, params)
	return classifyError(err)
}

// ChargeCustomer retrieves a charge and returns its customer id.
func (g *StripeGateway) ChargeCustomer(ctx context.Context, chargeID string) (string, error) {
	params := &stripe.ChargeParams{}
	params.Context = ctx

	ch, err := charge.Get(chargeID, params)
	if err != nil {
		return "", classifyError(err)
	}
	if ch.Customer == nil {
		return "", ErrCustomerNotFound
	}
	return ch.Customer.ID, nil
}

// VerifyWebhookSignature verifies a Stripe webhook signature.
func (g *StripeGateway) VerifyWebhookSignature(payload []byte, signature string, secret string) error {
	if _, err := webhook.ConstructEvent(payload, signature, secret); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWebhookSignature, err)
	}
	return nil
}

// activeSubscription finds the customer's current non-canceled subscription.
func (g *StripeGateway) activeSubscription(ctx context.Context, customerID string) (*stripe.Subscription, error) {
	listParams := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
	}
	listParams.Context = ctx

	iter := stripesub.List(listParams)
	for iter.Next() {
		sub := iter.Subscription()
		if sub.Status == stripe.SubscriptionStatusCanceled {
			continue
		}
		if len(sub.Items.Data) == 0 {
			continue
		}
		return sub, nil
	}
	if err := iter.Err(); err != nil {
		return nil, classifyError(err)
	}

	return nil, ErrNoActiveSubscription
}

// applyCouponOrTrial sets exactly one of the discount or trial-end override.
// Exclusivity is validated by the caller.
func applyCouponOrTrial(params *stripe.SubscriptionParams, p UpdateSubscriptionParams) {
	if p.TrialEnd != 0 {
		params.TrialEnd = stripe.Int64(p.TrialEnd)
		return
	}
	if p.Coupon != "" {
		params.Discounts = []*stripe.SubscriptionDiscountParams{
			{Coupon: stripe.String(p.Coupon)},
		}
	}
}

// customerFromStripe maps a Stripe customer to the gateway's view of it.
func customerFromStripe(cust *stripe.Customer) *Customer {
	return &Customer{
		ID:    cust.ID,
		Email: cust.Email,
		Card:  cardFromSource(cust.DefaultSource),
	}
}

// cardFromSource extracts card display fields from an expanded default
// source. Returns nil when the customer has no card source.
func cardFromSource(src *stripe.PaymentSource) *Card {
	if src == nil || src.Card == nil {
		return nil
	}
	return &Card{
		LastFour: src.Card.Last4,
		ExpMonth: src.Card.ExpMonth,
		ExpYear:  src.Card.ExpYear,
		Brand:    string(src.Card.Brand),
	}
}

// classifyError maps a Stripe SDK error onto the gateway's taxonomy.
// Card rejections become CardError, malformed/rejected requests become
// RequestError, everything else passes through unclassified.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var sErr *stripe.Error
	if errors.As(err, &sErr) {
		msg := sErr.Msg
		if msg == "" {
			msg = "The payment processor rejected the request."
		}

		switch sErr.Type {
		case stripe.ErrorTypeCard:
			return &CardError{
				Message:     msg,
				Code:        string(sErr.Code),
				DeclineCode: string(sErr.DeclineCode),
				Err:         err,
			}
		case stripe.ErrorTypeInvalidRequest:
			return &RequestError{
				Message: msg,
				Code:    string(sErr.Code),
				Err:     err,
			}
		}
	}

	return err
}
