package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// MockGateway is a mock billing gateway for testing.
// Simulates successful remote flows without calling the Stripe API.
type MockGateway struct {
	// CreateCustomerFunc allows customizing customer creation behavior
	CreateCustomerFunc func(ctx context.Context, params CreateCustomerParams) (*Customer, error)

	// GetCustomerFunc allows customizing customer retrieval behavior
	GetCustomerFunc func(ctx context.Context, customerID string) (*Customer, error)

	// AttachCardTokenFunc allows customizing source attachment behavior
	AttachCardTokenFunc func(ctx context.Context, customerID, token string) (*Card, error)

	// UpdateSubscriptionFunc allows customizing plan application behavior
	UpdateSubscriptionFunc func(ctx context.Context, params UpdateSubscriptionParams) error

	// CancelSubscriptionFunc allows customizing cancellation behavior
	CancelSubscriptionFunc func(ctx context.Context, customerID string) error

	// ChargeCustomerFunc allows customizing charge-to-customer resolution
	ChargeCustomerFunc func(ctx context.Context, chargeID string) (string, error)

	// VerifyWebhookSignatureFunc allows customizing webhook verification
	VerifyWebhookSignatureFunc func(payload []byte, signature string, secret string) error

	// ChargeCustomers maps charge ids to customer ids for ChargeCustomer
	ChargeCustomers map[string]string

	// Customers stores created customers for retrieval
	Customers map[string]*Customer

	// SubscriptionUpdates records every UpdateSubscription call for
	// parameter assertions
	SubscriptionUpdates []UpdateSubscriptionParams

	// Cancellations records customer ids whose subscriptions were canceled
	Cancellations []string

	// CallLog tracks method calls for test assertions
	CallLog []string
}

// Compile-time check to ensure MockGateway implements Gateway.
var _ Gateway = (*MockGateway)(nil)

// NewMockGateway creates a new mock billing gateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		Customers:       make(map[string]*Customer),
		ChargeCustomers: make(map[string]string),
		CallLog:         []string{},
	}
}

// CreateCustomer creates a mock customer with a default test card.
func (m *MockGateway) CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("CreateCustomer(%s)", params.Email))

	if m.CreateCustomerFunc != nil {
		return m.CreateCustomerFunc(ctx, params)
	}

	cust := &Customer{
		ID:    "cus_" + uuid.New().String()[:8],
		Email: params.Email,
		Card: &Card{
			LastFour: "4242",
			ExpMonth: 12,
			ExpYear:  2030,
			Brand:    "Visa",
		},
	}

	m.Customers[cust.ID] = cust
	return cust, nil
}

// GetCustomer retrieves a mock customer.
func (m *MockGateway) GetCustomer(ctx context.Context, customerID string) (*Customer, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("GetCustomer(%s)", customerID))

	if m.GetCustomerFunc != nil {
		return m.GetCustomerFunc(ctx, customerID)
	}

	cust, exists := m.Customers[customerID]
	if !exists {
		return nil, ErrCustomerNotFound
	}
	return cust, nil
}

// AttachCardToken attaches a mock card and returns its display details.
func (m *MockGateway) AttachCardToken(ctx context.Context, customerID, token string) (*Card, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("AttachCardToken(%s, %s)", customerID, token))

	if m.AttachCardTokenFunc != nil {
		return m.AttachCardTokenFunc(ctx, customerID, token)
	}

	card := &Card{
		LastFour: "4242",
		ExpMonth: 12,
		ExpYear:  2030,
		Brand:    "Visa",
	}
	if cust, exists := m.Customers[customerID]; exists {
		cust.Card = card
	}
	return card, nil
}

// UpdateSubscription records a mock plan application.
func (m *MockGateway) UpdateSubscription(ctx context.Context, params UpdateSubscriptionParams) error {
	m.CallLog = append(m.CallLog, fmt.Sprintf("UpdateSubscription(%s, %s)", params.CustomerID, params.PlanStripeID))
	m.SubscriptionUpdates = append(m.SubscriptionUpdates, params)

	if m.UpdateSubscriptionFunc != nil {
		return m.UpdateSubscriptionFunc(ctx, params)
	}

	if params.Coupon != "" && params.TrialEnd != 0 {
		return &RequestError{Message: "Coupon and trial end cannot be combined."}
	}
	return nil
}

// CancelSubscription records a mock cancellation.
func (m *MockGateway) CancelSubscription(ctx context.Context, customerID string) error {
	m.CallLog = append(m.CallLog, fmt.Sprintf("CancelSubscription(%s)", customerID))
	m.Cancellations = append(m.Cancellations, customerID)

	if m.CancelSubscriptionFunc != nil {
		return m.CancelSubscriptionFunc(ctx, customerID)
	}
	return nil
}

// ChargeCustomer resolves a mock charge to its customer id.
func (m *MockGateway) ChargeCustomer(ctx context.Context, chargeID string) (string, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("ChargeCustomer(%s)", chargeID))

	if m.ChargeCustomerFunc != nil {
		return m.ChargeCustomerFunc(ctx, chargeID)
	}

	customerID, exists := m.ChargeCustomers[chargeID]
	if !exists {
		return "", ErrCustomerNotFound
	}
	return customerID, nil
}

// VerifyWebhookSignature verifies a mock webhook signature.
func (m *MockGateway) VerifyWebhookSignature(payload []byte, signature string, secret string) error {
	m.CallLog = append(m.CallLog, "VerifyWebhookSignature")

	if m.VerifyWebhookSignatureFunc != nil {
		return m.VerifyWebhookSignatureFunc(payload, signature, secret)
	}
	return nil
}
