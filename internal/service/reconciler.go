package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukerupert/skadi/internal/billing"
	"github.com/dukerupert/skadi/internal/coupon"
	"github.com/dukerupert/skadi/internal/domain"
	"github.com/dukerupert/skadi/internal/plan"
	"github.com/dukerupert/skadi/internal/telemetry"
)

// genericRemoteErrorMessage is shown for remote failures the engine cannot
// classify, and for client-side integration defects. Deliberately vague:
// the underlying error is for logs, not subscribers.
const genericRemoteErrorMessage = "Something went wrong on this page, please try refreshing and contact support if this error persists."

// Config holds process-wide reconciliation policy, set once at startup.
type Config struct {
	// Prorate enables mid-cycle charge adjustment on plan changes.
	// The math belongs to the processor; this is only the flag.
	Prorate bool

	// FreeTrial controls whether a never-persisted record with no plan is
	// described as starting a trial.
	FreeTrial bool

	// Coupons maps recognized promotional codes to directives.
	// Defaults to coupon.DefaultPolicy.
	Coupons coupon.Policy
}

// Reconciler owns the subscription update orchestration: it classifies the
// requested change, sequences the remote calls, applies results to the
// local record and maps remote failures to validation errors.
//
// Reconcile is synchronous and must not run concurrently for the same
// record; the hosting application serializes attempts per record.
type Reconciler struct {
	gateway billing.Gateway
	catalog domain.PlanCatalog
	owners  domain.OwnerSource
	hooks   Hooks
	config  Config
	logger  *slog.Logger

	// now is swapped in tests to pin trial-end timestamps.
	now func() time.Time
}

// NewReconciler creates a Reconciler. A nil hooks falls back to NoopHooks;
// a nil coupon policy falls back to the default promotional codes.
func NewReconciler(gateway billing.Gateway, catalog domain.PlanCatalog, owners domain.OwnerSource, hooks Hooks, config Config, logger *slog.Logger) *Reconciler {
	if hooks == nil {
		hooks = NoopHooks{}
	}
	if config.Coupons == nil {
		config.Coupons = coupon.DefaultPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Reconciler{
		gateway: gateway,
		catalog: catalog,
		owners:  owners,
		hooks:   hooks,
		config:  config,
		logger:  logger,
		now:     time.Now,
	}
}

// Reconcile applies the record's requested state (new PlanID and/or
// CardToken and/or Coupon) to the remote processor, then to the record
// itself. Invoked before the record is persisted.
//
// On success the record carries the new snapshot (price, card digest,
// remote customer id) and may be saved. On failure the record's fields are
// unchanged apart from an appended validation error, and the returned
// error means "do not save". Transient inputs are consumed either way.
func (r *Reconciler) Reconcile(ctx context.Context, sub *domain.Subscription) error {
	start := time.Now()
	defer sub.ConsumeTransients()
	sub.Errors.Clear()

	// Decide on a staged copy, commit only on full success. Hooks and
	// error attachment operate on the live record; field mutation does not.
	staged := *sub

	var err error
	var outcome string
	switch {
	case sub.PlanChanged():
		err = r.reconcilePlanChange(ctx, sub, &staged)
		outcome = "plan_change"
	case sub.CardToken != "":
		err = r.reconcileCardUpdate(ctx, sub, &staged)
		outcome = "card_update"
	default:
		// Nothing requested. Idempotent no-op.
		return nil
	}

	if telemetry.Business != nil {
		result := "success"
		if err != nil {
			result = "failure"
		}
		telemetry.Business.ReconcileAttempts.WithLabelValues(outcome, result).Inc()
		telemetry.Business.ReconcileDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		r.logger.Warn("reconcile failed",
			"subscription_id", sub.ID,
			"kind", outcome,
			"error", err,
		)
		return err
	}

	errs := sub.Errors
	*sub = staged
	sub.Errors = errs
	sub.SnapshotPlan()

	r.logger.Info("reconcile succeeded",
		"subscription_id", sub.ID,
		"kind", outcome,
	)
	return nil
}

// reconcilePlanChange handles Step 2 of the update flow: the record's plan
// differs from its snapshot.
func (r *Reconciler) reconcilePlanChange(ctx context.Context, sub, staged *domain.Subscription) error {
	const op = "subscription.plan_change"

	r.hooks.PrepareForPlanChange(sub)

	oldPlan, err := r.resolvePlan(ctx, sub.PreviousPlanID())
	if err != nil {
		return r.planLookupFailure(sub, err, op)
	}
	newPlan, err := r.resolvePlan(ctx, sub.PlanID)
	if err != nil {
		return r.planLookupFailure(sub, err, op)
	}

	change := plan.Classify(oldPlan, newPlan)

	if sub.StripeID != "" {
		return r.planChangeExisting(ctx, sub, staged, newPlan, change)
	}
	return r.planChangeFirstTime(ctx, sub, staged, newPlan, change)
}

// planChangeExisting is path A: the record already has a remote customer.
func (r *Reconciler) planChangeExisting(ctx context.Context, sub, staged *domain.Subscription, newPlan *domain.Plan, change plan.Change) error {
	const op = "subscription.plan_change"

	if _, err := r.gateway.GetCustomer(ctx, sub.StripeID); err != nil {
		return r.remoteFailure(sub, err, op)
	}

	if sub.CardToken != "" {
		r.hooks.PrepareForCardUpdate(sub)
		card, err := r.gateway.AttachCardToken(ctx, sub.StripeID, sub.CardToken)
		if err != nil {
			return r.remoteFailure(sub, err, op)
		}
		applyCard(staged, card)
		r.hooks.FinalizeCardUpdate(sub)
	}

	if newPlan != nil {
		price := newPlan.Price
		staged.CurrentPrice = &price

		if change == plan.ChangeDowngrade {
			r.hooks.PrepareForDowngrade(sub)
		}
		if change.IsUpgrade() {
			r.hooks.PrepareForUpgrade(sub)
		}

		if err := r.applyPlan(ctx, sub, staged, sub.StripeID, newPlan); err != nil {
			return err
		}

		if change == plan.ChangeDowngrade {
			r.hooks.FinalizeDowngrade(sub)
		}
		if change.IsUpgrade() {
			r.hooks.FinalizeUpgrade(sub)
		}
	} else {
		r.hooks.PrepareForCancellation(sub)

		staged.CurrentPrice = nil
		staged.CouponID = ""

		if err := r.gateway.CancelSubscription(ctx, sub.StripeID); err != nil {
			return r.remoteFailure(sub, err, op)
		}

		r.hooks.FinalizeCancellation(sub)
	}

	r.hooks.FinalizePlanChange(sub)
	return nil
}

// planChangeFirstTime is path B: no remote customer exists yet. The remote
// customer id reaches the record only after the entire sequence succeeds.
func (r *Reconciler) planChangeFirstTime(ctx context.Context, sub, staged *domain.Subscription, newPlan *domain.Plan, change plan.Change) error {
	const op = "subscription.first_subscription"

	if newPlan == nil {
		// No remote customer and no plan selected. Cannot occur given the
		// plan-change guard; normalize the record and move on.
		staged.PlanID = nil
		staged.CurrentPrice = nil
		r.hooks.FinalizePlanChange(sub)
		return nil
	}

	price := newPlan.Price
	staged.CurrentPrice = &price

	r.hooks.PrepareForNewSubscription(sub)
	r.hooks.PrepareForUpgrade(sub)

	// A missing token on a first subscription is a client-side integration
	// defect (tokenization script not loaded), not a remote rejection.
	// No remote call is made.
	if sub.CardToken == "" {
		sub.Errors.AddBase(genericRemoteErrorMessage)
		return domain.Invalid(op, "missing card token")
	}

	owner, err := r.owners.Owner(sub)
	if err != nil {
		sub.Errors.AddBase(genericRemoteErrorMessage)
		return domain.Internal(err, op, "failed to resolve subscription owner")
	}

	cust, err := r.gateway.CreateCustomer(ctx, billing.CreateCustomerParams{
		Description: domain.OwnerDescription(owner),
		Email:       owner.Email(),
		CardToken:   sub.CardToken,
	})
	if err != nil {
		return r.remoteFailure(sub, err, op)
	}

	r.hooks.FinalizeNewCustomer(sub, cust.ID, newPlan.Price)

	if err := r.applyPlan(ctx, sub, staged, cust.ID, newPlan); err != nil {
		return err
	}

	staged.StripeID = cust.ID
	applyCard(staged, cust.Card)

	r.hooks.FinalizeNewSubscription(sub)
	r.hooks.FinalizeUpgrade(sub)
	r.hooks.FinalizePlanChange(sub)
	return nil
}

// reconcileCardUpdate is the card-only path: no plan change, but a new
// payment token is present. No plan or price fields are touched.
func (r *Reconciler) reconcileCardUpdate(ctx context.Context, sub, staged *domain.Subscription) error {
	const op = "subscription.card_update"

	r.hooks.PrepareForCardUpdate(sub)

	if sub.StripeID == "" {
		sub.Errors.AddBase(genericRemoteErrorMessage)
		return domain.Invalid(op, "no remote customer to attach card to")
	}

	if _, err := r.gateway.GetCustomer(ctx, sub.StripeID); err != nil {
		return r.remoteFailure(sub, err, op)
	}

	card, err := r.gateway.AttachCardToken(ctx, sub.StripeID, sub.CardToken)
	if err != nil {
		return r.remoteFailure(sub, err, op)
	}
	applyCard(staged, card)

	r.hooks.FinalizeCardUpdate(sub)
	return nil
}

// applyPlan performs the remote plan update for the given customer,
// carrying either a trial-end override (recognized promotional coupon) or
// the coupon code verbatim. The two are mutually exclusive on the wire.
func (r *Reconciler) applyPlan(ctx context.Context, sub, staged *domain.Subscription, customerID string, p *domain.Plan) error {
	const op = "subscription.apply_plan"

	params := billing.UpdateSubscriptionParams{
		CustomerID:   customerID,
		PlanStripeID: p.StripeID,
		Prorate:      r.config.Prorate,
	}

	if directive, ok := r.config.Coupons.Resolve(sub.Coupon); ok {
		params.TrialEnd = directive.TrialEnd(r.now())
	} else if sub.Coupon != "" {
		params.Coupon = sub.Coupon
	}

	if err := r.gateway.UpdateSubscription(ctx, params); err != nil {
		return r.remoteFailure(sub, err, op)
	}

	if sub.Coupon != "" {
		staged.CouponID = sub.Coupon
	}
	return nil
}

// DescribeDifference labels what moving to the target plan would mean for
// this record: start a trial, upgrade, or downgrade. Used by presentation
// layers; makes no remote calls.
func (r *Reconciler) DescribeDifference(ctx context.Context, sub *domain.Subscription, targetPlanID string) (plan.Difference, error) {
	target, err := r.catalog.Plan(ctx, targetPlanID)
	if err != nil {
		return "", err
	}

	current, err := r.resolvePlan(ctx, sub.PlanID)
	if err != nil {
		return "", err
	}

	persisted := sub.ID != ""
	return plan.Describe(current, *target, persisted, r.config.FreeTrial), nil
}

// NotifyCancellation runs the pre-cancellation hook with caller-supplied
// parameters, typically an exit survey or reason. It does not change any
// state; callers still clear the plan and reconcile.
func (r *Reconciler) NotifyCancellation(sub *domain.Subscription, params map[string]string) {
	r.hooks.BeforeCancellation(sub, params)
}

// resolvePlan looks up an optional plan reference. Nil in, nil out.
func (r *Reconciler) resolvePlan(ctx context.Context, id *string) (*domain.Plan, error) {
	if id == nil {
		return nil, nil
	}
	return r.catalog.Plan(ctx, *id)
}

// remoteFailure maps a gateway error onto the record and the failure hooks.
// Request rejections and card declines carry the processor's message;
// anything else gets the generic message. The record's persisted fields are
// untouched in every case.
func (r *Reconciler) remoteFailure(sub *domain.Subscription, err error, op string) error {
	switch {
	case billing.IsRequestError(err):
		msg := billing.UserMessage(err)
		sub.Errors.AddBase(msg)
		r.hooks.InvalidCoupon(sub)
		return domain.Payment(err, op, msg)

	case billing.IsCardError(err):
		msg := billing.UserMessage(err)
		sub.Errors.AddBase(msg)
		r.hooks.CardWasDeclined(sub)
		return domain.Payment(err, op, msg)

	default:
		// Unclassified failures are the ones worth an alert: declines and
		// request rejections are routine, these are not.
		telemetry.CaptureError(err, map[string]interface{}{
			"op":              op,
			"subscription_id": sub.ID,
		})
		sub.Errors.AddBase(genericRemoteErrorMessage)
		return domain.Internal(err, op, "remote billing call failed")
	}
}

// planLookupFailure covers catalog resolution errors. An unknown plan id
// reaching this point is a caller contract violation, surfaced like any
// other non-persistable failure.
func (r *Reconciler) planLookupFailure(sub *domain.Subscription, err error, op string) error {
	sub.Errors.AddBase(genericRemoteErrorMessage)
	return domain.WrapError(err, domain.EINVALID, op, "failed to resolve plan")
}

// applyCard refreshes the staged record's card display fields.
func applyCard(staged *domain.Subscription, card *billing.Card) {
	if card == nil {
		return
	}
	staged.LastFour = card.LastFour
	staged.ExpiryMonth = card.ExpMonth
	staged.ExpiryYear = card.ExpYear
	staged.CardType = card.Brand
}
