package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSubscription(t *testing.T) {
	sub := NewSubscription("acct_1")

	assert.Equal(t, "acct_1", sub.CustomerID)
	assert.Nil(t, sub.PlanID)
	assert.Empty(t, sub.StripeID)
	assert.False(t, sub.PlanChanged())
	assert.False(t, sub.Cancelled())
}

func TestPlanChanged(t *testing.T) {
	t.Run("assigning a plan to a fresh record", func(t *testing.T) {
		sub := NewSubscription("acct_1")
		planID := "basic"
		sub.PlanID = &planID
		assert.True(t, sub.PlanChanged())
	})

	t.Run("clearing the plan", func(t *testing.T) {
		planID := "basic"
		sub := &Subscription{CustomerID: "acct_1", PlanID: &planID}
		sub.SnapshotPlan()
		sub.PlanID = nil
		assert.True(t, sub.PlanChanged())
	})

	t.Run("switching plans", func(t *testing.T) {
		planID := "basic"
		sub := &Subscription{CustomerID: "acct_1", PlanID: &planID}
		sub.SnapshotPlan()
		target := "pro"
		sub.PlanID = &target
		assert.True(t, sub.PlanChanged())
	})

	t.Run("reassigning the same plan id is not a change", func(t *testing.T) {
		planID := "basic"
		sub := &Subscription{CustomerID: "acct_1", PlanID: &planID}
		sub.SnapshotPlan()
		same := "basic"
		sub.PlanID = &same
		assert.False(t, sub.PlanChanged())
	})

	t.Run("never-snapshotted record treats its plan as pending", func(t *testing.T) {
		// A zero-value record has a nil baseline, so a set plan reads as
		// a requested change until something snapshots it.
		planID := "basic"
		sub := &Subscription{CustomerID: "acct_1", PlanID: &planID}
		assert.True(t, sub.PlanChanged())
		assert.Nil(t, sub.PreviousPlanID())
	})

	t.Run("snapshot resets the baseline", func(t *testing.T) {
		sub := NewSubscription("acct_1")
		planID := "basic"
		sub.PlanID = &planID
		sub.SnapshotPlan()
		assert.False(t, sub.PlanChanged())
	})
}

func TestSnapshotPlanCopiesTheReference(t *testing.T) {
	planID := "basic"
	sub := &Subscription{CustomerID: "acct_1", PlanID: &planID}
	sub.SnapshotPlan()

	// Mutating through the original pointer must not move the baseline.
	planID = "pro"
	prev := sub.PreviousPlanID()
	assert.NotNil(t, prev)
	assert.Equal(t, "basic", *prev)
	assert.True(t, sub.PlanChanged())
}

func TestConsumeTransients(t *testing.T) {
	sub := NewSubscription("acct_1")
	sub.CardToken = "tok_visa"
	sub.Coupon = "TESTDRIVE"
	sub.CouponID = "TESTDRIVE"

	sub.ConsumeTransients()

	assert.Empty(t, sub.CardToken)
	assert.Empty(t, sub.Coupon)
	assert.Equal(t, "TESTDRIVE", sub.CouponID)
}

func TestCancelled(t *testing.T) {
	planID := "basic"

	assert.False(t, NewSubscription("acct_1").Cancelled(), "never subscribed")
	assert.False(t, (&Subscription{PlanID: &planID, StripeID: "cus_1"}).Cancelled(), "active")
	assert.True(t, (&Subscription{StripeID: "cus_1"}).Cancelled(), "plan cleared, remote history retained")
}

type staticOwner struct {
	id    string
	name  string
	email string
}

func (o staticOwner) ID() string    { return o.id }
func (o staticOwner) Name() string  { return o.name }
func (o staticOwner) Email() string { return o.email }

func TestOwnerDescription(t *testing.T) {
	assert.Equal(t, "Freya Vanir", OwnerDescription(staticOwner{id: "u1", name: "Freya Vanir"}))
	assert.Equal(t, "u1", OwnerDescription(staticOwner{id: "u1"}))
}

func TestValidationErrors(t *testing.T) {
	var v ValidationErrors
	assert.False(t, v.Any())
	assert.Equal(t, "validation failed", v.Error())

	v.AddBase("card was declined")
	v.AddField("coupon", "is invalid")

	assert.True(t, v.Any())
	assert.Equal(t, "card was declined", v.Error())
	assert.Equal(t, []string{"is invalid"}, v.Fields["coupon"])

	v.Clear()
	assert.False(t, v.Any())
	assert.Empty(t, v.Base)
	assert.Empty(t, v.Fields)
}
