package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/skadi/internal/billing"
	"github.com/dukerupert/skadi/internal/domain"
	"github.com/dukerupert/skadi/internal/plan"
)

// recordingHooks captures lifecycle calls in order.
type recordingHooks struct {
	NoopHooks
	Calls []string

	NewCustomerID    string
	NewCustomerPrice decimal.Decimal
}

func (h *recordingHooks) record(name string) { h.Calls = append(h.Calls, name) }

func (h *recordingHooks) PrepareForPlanChange(*domain.Subscription)      { h.record("PrepareForPlanChange") }
func (h *recordingHooks) PrepareForNewSubscription(*domain.Subscription) { h.record("PrepareForNewSubscription") }
func (h *recordingHooks) PrepareForUpgrade(*domain.Subscription)         { h.record("PrepareForUpgrade") }
func (h *recordingHooks) PrepareForDowngrade(*domain.Subscription)       { h.record("PrepareForDowngrade") }
func (h *recordingHooks) PrepareForCancellation(*domain.Subscription)    { h.record("PrepareForCancellation") }
func (h *recordingHooks) PrepareForCardUpdate(*domain.Subscription)      { h.record("PrepareForCardUpdate") }
func (h *recordingHooks) FinalizePlanChange(*domain.Subscription)        { h.record("FinalizePlanChange") }
func (h *recordingHooks) FinalizeNewSubscription(*domain.Subscription)   { h.record("FinalizeNewSubscription") }
func (h *recordingHooks) FinalizeUpgrade(*domain.Subscription)           { h.record("FinalizeUpgrade") }
func (h *recordingHooks) FinalizeDowngrade(*domain.Subscription)         { h.record("FinalizeDowngrade") }
func (h *recordingHooks) FinalizeCancellation(*domain.Subscription)      { h.record("FinalizeCancellation") }
func (h *recordingHooks) FinalizeCardUpdate(*domain.Subscription)        { h.record("FinalizeCardUpdate") }
func (h *recordingHooks) CardWasDeclined(*domain.Subscription)           { h.record("CardWasDeclined") }
func (h *recordingHooks) InvalidCoupon(*domain.Subscription)             { h.record("InvalidCoupon") }

func (h *recordingHooks) FinalizeNewCustomer(_ *domain.Subscription, customerID string, price decimal.Decimal) {
	h.record("FinalizeNewCustomer")
	h.NewCustomerID = customerID
	h.NewCustomerPrice = price
}

func (h *recordingHooks) count(name string) int {
	n := 0
	for _, c := range h.Calls {
		if c == name {
			n++
		}
	}
	return n
}

type testOwner struct{ id, name, email string }

func (o testOwner) ID() string    { return o.id }
func (o testOwner) Name() string  { return o.name }
func (o testOwner) Email() string { return o.email }

func testOwners() domain.OwnerSource {
	return domain.OwnerSourceFunc(func(sub *domain.Subscription) (domain.Owner, error) {
		return testOwner{id: sub.CustomerID, name: "Freya Vanir", email: "freya@example.com"}, nil
	})
}

func testCatalog(t *testing.T) *plan.MemoryCatalog {
	t.Helper()
	return plan.NewMemoryCatalog(
		domain.Plan{ID: "basic", StripeID: "price_basic", Name: "Basic", Price: decimal.NewFromInt(10), Rank: 1},
		domain.Plan{ID: "pro", StripeID: "price_pro", Name: "Pro", Price: decimal.NewFromInt(50), Rank: 2},
	)
}

func newTestReconciler(t *testing.T, gateway billing.Gateway, hooks Hooks, config Config) *Reconciler {
	t.Helper()
	return NewReconciler(gateway, testCatalog(t), testOwners(), hooks, config, nil)
}

func strPtr(s string) *string { return &s }

func TestReconcile_FirstSubscription(t *testing.T) {
	gateway := billing.NewMockGateway()
	hooks := &recordingHooks{}
	r := newTestReconciler(t, gateway, hooks, Config{})

	sub := domain.NewSubscription("acct_1")
	sub.PlanID = strPtr("pro")
	sub.CardToken = "tok_visa"

	err := r.Reconcile(context.Background(), sub)
	require.NoError(t, err)

	assert.NotEmpty(t, sub.StripeID, "remote customer id should be recorded")
	require.NotNil(t, sub.CurrentPrice)
	assert.True(t, sub.CurrentPrice.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, "4242", sub.LastFour)
	assert.Equal(t, int64(12), sub.ExpiryMonth)
	assert.Equal(t, int64(2030), sub.ExpiryYear)
	assert.Equal(t, "Visa", sub.CardType)

	require.Len(t, gateway.SubscriptionUpdates, 1)
	update := gateway.SubscriptionUpdates[0]
	assert.Equal(t, sub.StripeID, update.CustomerID)
	assert.Equal(t, "price_pro", update.PlanStripeID)
	assert.Empty(t, update.Coupon)
	assert.Zero(t, update.TrialEnd)

	assert.Equal(t, sub.StripeID, hooks.NewCustomerID)
	assert.True(t, hooks.NewCustomerPrice.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, []string{
		"PrepareForPlanChange",
		"PrepareForNewSubscription",
		"PrepareForUpgrade",
		"FinalizeNewCustomer",
		"FinalizeNewSubscription",
		"FinalizeUpgrade",
		"FinalizePlanChange",
	}, hooks.Calls)

	assert.False(t, sub.Errors.Any())
	assert.False(t, sub.PlanChanged(), "baseline should be re-snapshotted after success")
	assert.Empty(t, sub.CardToken, "token is single-use")
}

func TestReconcile_FirstSubscriptionMissingToken(t *testing.T) {
	gateway := billing.NewMockGateway()
	hooks := &recordingHooks{}
	r := newTestReconciler(t, gateway, hooks, Config{})

	sub := domain.NewSubscription("acct_1")
	sub.PlanID = strPtr("basic")

	err := r.Reconcile(context.Background(), sub)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.EINVALID))

	assert.Empty(t, gateway.CallLog, "no remote call without a card token")
	assert.Empty(t, sub.StripeID)
	assert.Nil(t, sub.CurrentPrice)
	require.Len(t, sub.Errors.Base, 1)
	assert.Contains(t, sub.Errors.Base[0], "please try refreshing")
}

func TestReconcile_RecognizedCouponDelaysFirstCharge(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	gateway := billing.NewMockGateway()
	r := newTestReconciler(t, gateway, nil, Config{})
	r.now = func() time.Time { return now }

	sub := domain.NewSubscription("acct_1")
	sub.PlanID = strPtr("basic")
	sub.CardToken = "tok_visa"
	sub.Coupon = "2MONTHSFREE"

	err := r.Reconcile(context.Background(), sub)
	require.NoError(t, err)

	require.Len(t, gateway.SubscriptionUpdates, 1)
	update := gateway.SubscriptionUpdates[0]
	assert.Empty(t, update.Coupon, "recognized codes are not forwarded")
	assert.Equal(t, now.AddDate(0, 2, 0).Unix(), update.TrialEnd)

	assert.Equal(t, "2MONTHSFREE", sub.CouponID)
	assert.Empty(t, sub.Coupon, "coupon is single-use")
}

func TestReconcile_RecognizedCouponDelaysChargeOnPlanChange(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	gateway := billing.NewMockGateway()
	gateway.Customers["cus_existing"] = &billing.Customer{ID: "cus_existing", Email: "freya@example.com"}
	r := newTestReconciler(t, gateway, nil, Config{})
	r.now = func() time.Time { return now }

	basicPrice := decimal.NewFromInt(10)
	sub := &domain.Subscription{
		ID:           "sub_1",
		CustomerID:   "acct_1",
		StripeID:     "cus_existing",
		PlanID:       strPtr("basic"),
		CurrentPrice: &basicPrice,
		LastFour:     "4242",
	}
	sub.SnapshotPlan()
	sub.PlanID = strPtr("pro")
	sub.Coupon = "2MONTHSFREE"

	err := r.Reconcile(context.Background(), sub)
	require.NoError(t, err)

	require.Len(t, gateway.SubscriptionUpdates, 1)
	update := gateway.SubscriptionUpdates[0]
	assert.Equal(t, "cus_existing", update.CustomerID)
	assert.Equal(t, "price_pro", update.PlanStripeID)
	assert.Empty(t, update.Coupon, "recognized codes are not forwarded")
	assert.Equal(t, now.AddDate(0, 2, 0).Unix(), update.TrialEnd)

	require.NotNil(t, sub.CurrentPrice)
	assert.True(t, sub.CurrentPrice.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, "2MONTHSFREE", sub.CouponID)
	assert.Empty(t, sub.Coupon, "coupon is single-use")
}

func TestReconcile_UnrecognizedCouponPassesThrough(t *testing.T) {
	gateway := billing.NewMockGateway()
	r := newTestReconciler(t, gateway, nil, Config{})

	sub := domain.NewSubscription("acct_1")
	sub.PlanID = strPtr("basic")
	sub.CardToken = "tok_visa"
	sub.Coupon = "SAVE20"

	err := r.Reconcile(context.Background(), sub)
	require.NoError(t, err)

	require.Len(t, gateway.SubscriptionUpdates, 1)
	update := gateway.SubscriptionUpdates[0]
	assert.Equal(t, "SAVE20", update.Coupon)
	assert.Zero(t, update.TrialEnd)
	assert.Equal(t, "SAVE20", sub.CouponID)
}

func TestReconcile_InvalidCouponRejection(t *testing.T) {
	gateway := billing.NewMockGateway()
	gateway.UpdateSubscriptionFunc = func(ctx context.Context, params billing.UpdateSubscriptionParams) error {
		return &billing.RequestError{Message: "No such coupon: BOGUS", Code: "resource_missing"}
	}
	hooks := &recordingHooks{}
	r := newTestReconciler(t, gateway, hooks, Config{})

	sub := domain.NewSubscription("acct_1")
	sub.PlanID = strPtr("basic")
	sub.CardToken = "tok_visa"
	sub.Coupon = "BOGUS"

	err := r.Reconcile(context.Background(), sub)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.EPAYMENT))

	assert.Equal(t, 1, hooks.count("InvalidCoupon"))
	assert.Zero(t, hooks.count("CardWasDeclined"))
	assert.Zero(t, hooks.count("FinalizePlanChange"))

	require.Len(t, sub.Errors.Base, 1)
	assert.Equal(t, "No such coupon: BOGUS", sub.Errors.Base[0])

	// Remote customer creation happened, but nothing was committed locally.
	assert.Empty(t, sub.StripeID)
	assert.Nil(t, sub.CurrentPrice)
	assert.Empty(t, sub.CouponID)
	assert.Empty(t, sub.LastFour)
}

func TestReconcile_CardDeclinedOnFirstSubscription(t *testing.T) {
	gateway := billing.NewMockGateway()
	gateway.CreateCustomerFunc = func(ctx context.Context, params billing.CreateCustomerParams) (*billing.Customer, error) {
		return nil, &billing.CardError{Message: "Your card was declined.", Code: "card_declined", DeclineCode: "generic_decline"}
	}
	hooks := &recordingHooks{}
	r := newTestReconciler(t, gateway, hooks, Config{})

	sub := domain.NewSubscription("acct_1")
	sub.PlanID = strPtr("basic")
	sub.CardToken = "tok_chargeDeclined"

	err := r.Reconcile(context.Background(), sub)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.EPAYMENT))

	assert.Equal(t, 1, hooks.count("CardWasDeclined"))
	assert.Zero(t, hooks.count("InvalidCoupon"))

	require.Len(t, sub.Errors.Base, 1)
	assert.Equal(t, "Your card was declined.", sub.Errors.Base[0])
	assert.Empty(t, sub.StripeID)
	assert.Nil(t, sub.CurrentPrice)
}

func TestReconcile_UnclassifiedRemoteFailure(t *testing.T) {
	gateway := billing.NewMockGateway()
	gateway.UpdateSubscriptionFunc = func(ctx context.Context, params billing.UpdateSubscriptionParams) error {
		return errors.New("connection reset by peer")
	}
	hooks := &recordingHooks{}
	r := newTestReconciler(t, gateway, hooks, Config{})

	sub := domain.NewSubscription("acct_1")
	sub.PlanID = strPtr("basic")
	sub.CardToken = "tok_visa"

	err := r.Reconcile(context.Background(), sub)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.EINTERNAL))

	assert.Zero(t, hooks.count("InvalidCoupon"))
	assert.Zero(t, hooks.count("CardWasDeclined"))
	require.Len(t, sub.Errors.Base, 1)
	assert.Contains(t, sub.Errors.Base[0], "please try refreshing")
}

func TestReconcile_Upgrade(t *testing.T) {
	gateway := billing.NewMockGateway()
	gateway.Customers["cus_existing"] = &billing.Customer{ID: "cus_existing", Email: "freya@example.com"}
	hooks := &recordingHooks{}
	r := newTestReconciler(t, gateway, hooks, Config{Prorate: true})

	basicPrice := decimal.NewFromInt(10)
	sub := &domain.Subscription{
		ID:           "sub_1",
		CustomerID:   "acct_1",
		StripeID:     "cus_existing",
		PlanID:       strPtr("basic"),
		CurrentPrice: &basicPrice,
		LastFour:     "4242",
	}
	sub.SnapshotPlan()
	sub.PlanID = strPtr("pro")

	err := r.Reconcile(context.Background(), sub)
	require.NoError(t, err)

	require.NotNil(t, sub.CurrentPrice)
	assert.True(t, sub.CurrentPrice.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, "cus_existing", sub.StripeID)

	require.Len(t, gateway.SubscriptionUpdates, 1)
	update := gateway.SubscriptionUpdates[0]
	assert.Equal(t, "cus_existing", update.CustomerID)
	assert.Equal(t, "price_pro", update.PlanStripeID)
	assert.True(t, update.Prorate)

	assert.Equal(t, []string{
		"PrepareForPlanChange",
		"PrepareForUpgrade",
		"FinalizeUpgrade",
		"FinalizePlanChange",
	}, hooks.Calls)
}

func TestReconcile_Downgrade(t *testing.T) {
	gateway := billing.NewMockGateway()
	gateway.Customers["cus_existing"] = &billing.Customer{ID: "cus_existing", Email: "freya@example.com"}
	hooks := &recordingHooks{}
	r := newTestReconciler(t, gateway, hooks, Config{})

	proPrice := decimal.NewFromInt(50)
	sub := &domain.Subscription{
		ID:           "sub_1",
		CustomerID:   "acct_1",
		StripeID:     "cus_existing",
		PlanID:       strPtr("pro"),
		CurrentPrice: &proPrice,
	}
	sub.SnapshotPlan()
	sub.PlanID = strPtr("basic")

	err := r.Reconcile(context.Background(), sub)
	require.NoError(t, err)

	require.NotNil(t, sub.CurrentPrice)
	assert.True(t, sub.CurrentPrice.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 1, hooks.count("PrepareForDowngrade"))
	assert.Equal(t, 1, hooks.count("FinalizeDowngrade"))
	assert.Zero(t, hooks.count("PrepareForUpgrade"))
}

func TestReconcile_Cancellation(t *testing.T) {
	gateway := billing.NewMockGateway()
	gateway.Customers["cus_existing"] = &billing.Customer{ID: "cus_existing", Email: "freya@example.com"}
	hooks := &recordingHooks{}
	r := newTestReconciler(t, gateway, hooks, Config{})

	proPrice := decimal.NewFromInt(50)
	sub := &domain.Subscription{
		ID:           "sub_1",
		CustomerID:   "acct_1",
		StripeID:     "cus_existing",
		PlanID:       strPtr("pro"),
		CurrentPrice: &proPrice,
		CouponID:     "SAVE20",
		LastFour:     "4242",
	}
	sub.SnapshotPlan()
	sub.PlanID = nil

	err := r.Reconcile(context.Background(), sub)
	require.NoError(t, err)

	assert.Equal(t, []string{"cus_existing"}, gateway.Cancellations)
	assert.Nil(t, sub.PlanID)
	assert.Nil(t, sub.CurrentPrice)
	assert.Empty(t, sub.CouponID)
	assert.Equal(t, "cus_existing", sub.StripeID, "remote history is retained")
	assert.Equal(t, "4242", sub.LastFour, "card digest is retained")
	assert.True(t, sub.Cancelled())

	assert.Equal(t, []string{
		"PrepareForPlanChange",
		"PrepareForCancellation",
		"FinalizeCancellation",
		"FinalizePlanChange",
	}, hooks.Calls)
}

func TestReconcile_CardUpdateOnly(t *testing.T) {
	gateway := billing.NewMockGateway()
	gateway.Customers["cus_existing"] = &billing.Customer{ID: "cus_existing", Email: "freya@example.com"}
	gateway.AttachCardTokenFunc = func(ctx context.Context, customerID, token string) (*billing.Card, error) {
		return &billing.Card{LastFour: "1881", ExpMonth: 6, ExpYear: 2031, Brand: "Mastercard"}, nil
	}
	hooks := &recordingHooks{}
	r := newTestReconciler(t, gateway, hooks, Config{})

	basicPrice := decimal.NewFromInt(10)
	sub := &domain.Subscription{
		ID:           "sub_1",
		CustomerID:   "acct_1",
		StripeID:     "cus_existing",
		PlanID:       strPtr("basic"),
		CurrentPrice: &basicPrice,
		LastFour:     "4242",
	}
	sub.SnapshotPlan()
	sub.CardToken = "tok_mastercard"

	err := r.Reconcile(context.Background(), sub)
	require.NoError(t, err)

	assert.Equal(t, "1881", sub.LastFour)
	assert.Equal(t, "Mastercard", sub.CardType)
	assert.Empty(t, gateway.SubscriptionUpdates, "plan is untouched on a card-only update")
	assert.Equal(t, []string{"PrepareForCardUpdate", "FinalizeCardUpdate"}, hooks.Calls)
}

func TestReconcile_CardDeclinedOnCardUpdate(t *testing.T) {
	gateway := billing.NewMockGateway()
	gateway.Customers["cus_existing"] = &billing.Customer{ID: "cus_existing", Email: "freya@example.com"}
	gateway.AttachCardTokenFunc = func(ctx context.Context, customerID, token string) (*billing.Card, error) {
		return nil, &billing.CardError{Message: "Your card has expired.", Code: "expired_card"}
	}
	hooks := &recordingHooks{}
	r := newTestReconciler(t, gateway, hooks, Config{})

	sub := &domain.Subscription{
		ID:         "sub_1",
		CustomerID: "acct_1",
		StripeID:   "cus_existing",
		LastFour:   "4242",
	}
	sub.SnapshotPlan()
	sub.CardToken = "tok_expired"

	err := r.Reconcile(context.Background(), sub)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.EPAYMENT))

	assert.Equal(t, 1, hooks.count("CardWasDeclined"))
	assert.Equal(t, "4242", sub.LastFour, "card digest unchanged on decline")
	require.Len(t, sub.Errors.Base, 1)
	assert.Equal(t, "Your card has expired.", sub.Errors.Base[0])
}

func TestReconcile_CardUpdateWithoutRemoteCustomer(t *testing.T) {
	gateway := billing.NewMockGateway()
	r := newTestReconciler(t, gateway, nil, Config{})

	sub := domain.NewSubscription("acct_1")
	sub.CardToken = "tok_visa"

	err := r.Reconcile(context.Background(), sub)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.EINVALID))
	assert.Empty(t, gateway.CallLog)
	require.Len(t, sub.Errors.Base, 1)
}

func TestReconcile_NoChangeIsNoOp(t *testing.T) {
	gateway := billing.NewMockGateway()
	hooks := &recordingHooks{}
	r := newTestReconciler(t, gateway, hooks, Config{})

	basicPrice := decimal.NewFromInt(10)
	sub := &domain.Subscription{
		ID:           "sub_1",
		CustomerID:   "acct_1",
		StripeID:     "cus_existing",
		PlanID:       strPtr("basic"),
		CurrentPrice: &basicPrice,
	}
	sub.SnapshotPlan()

	err := r.Reconcile(context.Background(), sub)
	require.NoError(t, err)
	assert.Empty(t, gateway.CallLog)
	assert.Empty(t, hooks.Calls)
}

func TestReconcile_ReassigningSamePlanIsNoOp(t *testing.T) {
	gateway := billing.NewMockGateway()
	r := newTestReconciler(t, gateway, nil, Config{})

	basicPrice := decimal.NewFromInt(10)
	sub := &domain.Subscription{
		ID:           "sub_1",
		CustomerID:   "acct_1",
		StripeID:     "cus_existing",
		PlanID:       strPtr("basic"),
		CurrentPrice: &basicPrice,
	}
	sub.SnapshotPlan()
	sub.PlanID = strPtr("basic")

	err := r.Reconcile(context.Background(), sub)
	require.NoError(t, err)
	assert.Empty(t, gateway.CallLog)
}

func TestReconcile_PlanAndCardTogetherOnExistingCustomer(t *testing.T) {
	gateway := billing.NewMockGateway()
	gateway.Customers["cus_existing"] = &billing.Customer{ID: "cus_existing", Email: "freya@example.com"}
	hooks := &recordingHooks{}
	r := newTestReconciler(t, gateway, hooks, Config{})

	basicPrice := decimal.NewFromInt(10)
	sub := &domain.Subscription{
		ID:           "sub_1",
		CustomerID:   "acct_1",
		StripeID:     "cus_existing",
		PlanID:       strPtr("basic"),
		CurrentPrice: &basicPrice,
	}
	sub.SnapshotPlan()
	sub.PlanID = strPtr("pro")
	sub.CardToken = "tok_visa"

	err := r.Reconcile(context.Background(), sub)
	require.NoError(t, err)

	assert.Equal(t, 1, hooks.count("FinalizeCardUpdate"))
	assert.Equal(t, 1, hooks.count("FinalizeUpgrade"))
	assert.Equal(t, "4242", sub.LastFour, "token attached before the plan change")
	require.NotNil(t, sub.CurrentPrice)
	assert.True(t, sub.CurrentPrice.Equal(decimal.NewFromInt(50)))
}

func TestReconcile_FailureLeavesNoPartialState(t *testing.T) {
	gateway := billing.NewMockGateway()
	gateway.Customers["cus_existing"] = &billing.Customer{ID: "cus_existing", Email: "freya@example.com"}
	gateway.UpdateSubscriptionFunc = func(ctx context.Context, params billing.UpdateSubscriptionParams) error {
		return &billing.CardError{Message: "Your card was declined."}
	}
	r := newTestReconciler(t, gateway, nil, Config{})

	basicPrice := decimal.NewFromInt(10)
	sub := &domain.Subscription{
		ID:           "sub_1",
		CustomerID:   "acct_1",
		StripeID:     "cus_existing",
		PlanID:       strPtr("basic"),
		CurrentPrice: &basicPrice,
		CouponID:     "SAVE20",
		LastFour:     "4242",
	}
	sub.SnapshotPlan()
	sub.PlanID = strPtr("pro")
	sub.Coupon = "NEWCODE"

	err := r.Reconcile(context.Background(), sub)
	require.Error(t, err)

	require.NotNil(t, sub.CurrentPrice)
	assert.True(t, sub.CurrentPrice.Equal(basicPrice), "price unchanged on failure")
	assert.Equal(t, "SAVE20", sub.CouponID, "applied coupon unchanged on failure")
	assert.Equal(t, "4242", sub.LastFour)
	assert.True(t, sub.PlanChanged(), "baseline is not advanced on failure")
	assert.Empty(t, sub.Coupon, "transients consumed even on failure")
}

func TestReconcile_PriceAndPlanStayPaired(t *testing.T) {
	gateway := billing.NewMockGateway()
	gateway.Customers["cus_existing"] = &billing.Customer{ID: "cus_existing", Email: "freya@example.com"}
	r := newTestReconciler(t, gateway, nil, Config{})

	// Subscribe, then cancel. The pairing must hold at both rest states.
	sub := domain.NewSubscription("acct_1")
	sub.PlanID = strPtr("basic")
	sub.CardToken = "tok_visa"
	require.NoError(t, r.Reconcile(context.Background(), sub))
	assert.Equal(t, sub.PlanID == nil, sub.CurrentPrice == nil)

	sub.PlanID = nil
	require.NoError(t, r.Reconcile(context.Background(), sub))
	assert.Equal(t, sub.PlanID == nil, sub.CurrentPrice == nil)
}

func TestDescribeDifference(t *testing.T) {
	r := newTestReconciler(t, billing.NewMockGateway(), nil, Config{FreeTrial: true})

	t.Run("new record with trials enabled starts a trial", func(t *testing.T) {
		sub := domain.NewSubscription("acct_1")
		diff, err := r.DescribeDifference(context.Background(), sub, "basic")
		require.NoError(t, err)
		assert.Equal(t, plan.DifferenceStartTrial, diff)
	})

	t.Run("persisted record without a plan upgrades", func(t *testing.T) {
		sub := &domain.Subscription{ID: "sub_1", CustomerID: "acct_1"}
		sub.SnapshotPlan()
		diff, err := r.DescribeDifference(context.Background(), sub, "basic")
		require.NoError(t, err)
		assert.Equal(t, plan.DifferenceUpgrade, diff)
	})

	t.Run("higher ranked plan is an upgrade", func(t *testing.T) {
		sub := &domain.Subscription{ID: "sub_1", CustomerID: "acct_1", PlanID: strPtr("basic")}
		sub.SnapshotPlan()
		diff, err := r.DescribeDifference(context.Background(), sub, "pro")
		require.NoError(t, err)
		assert.Equal(t, plan.DifferenceUpgrade, diff)
	})

	t.Run("lower ranked plan is a downgrade", func(t *testing.T) {
		sub := &domain.Subscription{ID: "sub_1", CustomerID: "acct_1", PlanID: strPtr("pro")}
		sub.SnapshotPlan()
		diff, err := r.DescribeDifference(context.Background(), sub, "basic")
		require.NoError(t, err)
		assert.Equal(t, plan.DifferenceDowngrade, diff)
	})
}
