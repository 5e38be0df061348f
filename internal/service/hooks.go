package service

import (
	"github.com/dukerupert/skadi/internal/domain"
	"github.com/shopspring/decimal"
)

// Hooks is the fixed set of lifecycle extension points the reconciler
// invokes around each transition. The hosting application reacts to
// transitions (send emails, provision features) without the engine knowing
// about any of it.
//
// Hooks must not fail the transaction: an error raised inside a hook is an
// integration bug in the host, not a remote-payment failure, and the
// reconciler makes no attempt to catch it.
//
// Embed NoopHooks and override what you need:
//
//	type appHooks struct {
//	    service.NoopHooks
//	    mailer *email.Sender
//	}
//
//	func (h *appHooks) FinalizeNewSubscription(sub *domain.Subscription) {
//	    h.mailer.SendWelcome(sub.CustomerID)
//	}
type Hooks interface {
	// Invoked before any plan-change work begins.
	PrepareForPlanChange(sub *domain.Subscription)

	// Invoked before a first-time subscription is created remotely.
	PrepareForNewSubscription(sub *domain.Subscription)

	// Invoked before an upgrade (new subscriptions count as upgrades).
	PrepareForUpgrade(sub *domain.Subscription)

	// Invoked before a downgrade.
	PrepareForDowngrade(sub *domain.Subscription)

	// Invoked before the remote subscription is cancelled.
	PrepareForCancellation(sub *domain.Subscription)

	// Invoked before a new payment source is attached.
	PrepareForCardUpdate(sub *domain.Subscription)

	// Invoked once after the entire plan-change branch succeeds,
	// regardless of which sub-path ran.
	FinalizePlanChange(sub *domain.Subscription)

	// Invoked after a first-time subscription fully succeeds.
	FinalizeNewSubscription(sub *domain.Subscription)

	// Invoked immediately after remote customer creation, before the plan
	// is applied. Receives the new remote customer id and the plan price.
	FinalizeNewCustomer(sub *domain.Subscription, customerID string, price decimal.Decimal)

	// Invoked after a successful upgrade.
	FinalizeUpgrade(sub *domain.Subscription)

	// Invoked after a successful downgrade.
	FinalizeDowngrade(sub *domain.Subscription)

	// Invoked after a successful cancellation.
	FinalizeCancellation(sub *domain.Subscription)

	// Invoked after a payment source was attached and the card display
	// fields refreshed.
	FinalizeCardUpdate(sub *domain.Subscription)

	// Invoked by the host before a cancellation request is applied,
	// carrying the raw request parameters (e.g. which features to keep
	// on the free tier).
	BeforeCancellation(sub *domain.Subscription, params map[string]string)

	// Invoked when the processor rejects the payment instrument.
	CardWasDeclined(sub *domain.Subscription)

	// Invoked when the processor rejects the request itself
	// (unknown coupon, bad plan).
	InvalidCoupon(sub *domain.Subscription)

	// Webhook notifications, dispatched by the event router.
	PaymentSucceeded(sub *domain.Subscription, amount decimal.Decimal)
	ChargeFailed(sub *domain.Subscription)
	ChargeDisputed(sub *domain.Subscription)
}

// NoopHooks implements Hooks with empty methods.
type NoopHooks struct{}

// Compile-time check to ensure NoopHooks implements Hooks.
var _ Hooks = (*NoopHooks)(nil)

func (NoopHooks) PrepareForPlanChange(*domain.Subscription)                         {}
func (NoopHooks) PrepareForNewSubscription(*domain.Subscription)                    {}
func (NoopHooks) PrepareForUpgrade(*domain.Subscription)                            {}
func (NoopHooks) PrepareForDowngrade(*domain.Subscription)                          {}
func (NoopHooks) PrepareForCancellation(*domain.Subscription)                       {}
func (NoopHooks) PrepareForCardUpdate(*domain.Subscription)                         {}
func (NoopHooks) FinalizePlanChange(*domain.Subscription)                           {}
func (NoopHooks) FinalizeNewSubscription(*domain.Subscription)                      {}
func (NoopHooks) FinalizeNewCustomer(*domain.Subscription, string, decimal.Decimal) {}
func (NoopHooks) FinalizeUpgrade(*domain.Subscription)                              {}
func (NoopHooks) FinalizeDowngrade(*domain.Subscription)                            {}
func (NoopHooks) FinalizeCancellation(*domain.Subscription)                         {}
func (NoopHooks) FinalizeCardUpdate(*domain.Subscription)                           {}
func (NoopHooks) BeforeCancellation(*domain.Subscription, map[string]string)        {}
func (NoopHooks) CardWasDeclined(*domain.Subscription)                              {}
func (NoopHooks) InvalidCoupon(*domain.Subscription)                                {}
func (NoopHooks) PaymentSucceeded(*domain.Subscription, decimal.Decimal)            {}
func (NoopHooks) ChargeFailed(*domain.Subscription)                                 {}
func (NoopHooks) ChargeDisputed(*domain.Subscription)                               {}
