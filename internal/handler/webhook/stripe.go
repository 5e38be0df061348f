package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v83"

	"github.com/dukerupert/skadi/internal/billing"
	"github.com/dukerupert/skadi/internal/domain"
	"github.com/dukerupert/skadi/internal/handler"
	"github.com/dukerupert/skadi/internal/service"
	"github.com/dukerupert/skadi/internal/telemetry"
)

// EventRouter maps Stripe webhook events onto subscription notification
// hooks. It locates the affected record by remote customer id and invokes
// the matching hook; it never mutates the record itself.
type EventRouter struct {
	store   domain.SubscriptionStore
	hooks   service.Hooks
	gateway billing.Gateway
}

// NewEventRouter creates an event router. A nil hooks falls back to
// service.NoopHooks.
func NewEventRouter(store domain.SubscriptionStore, hooks service.Hooks, gateway billing.Gateway) *EventRouter {
	if hooks == nil {
		hooks = service.NoopHooks{}
	}
	return &EventRouter{
		store:   store,
		hooks:   hooks,
		gateway: gateway,
	}
}

// Route dispatches a verified event. Unhandled event kinds and events for
// unknown customers are logged and dropped; both are normal operation, not
// failures.
func (er *EventRouter) Route(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "invoice.payment_succeeded":
		return er.handleInvoicePaymentSucceeded(ctx, event)

	case "charge.failed":
		return er.handleChargeFailed(ctx, event)

	case "charge.dispute.created":
		return er.handleChargeDisputed(ctx, event)

	default:
		log.Printf("Unhandled event type: %s", event.Type)
		return nil
	}
}

// handleInvoicePaymentSucceeded notifies the host that a periodic charge
// cleared, carrying the amount actually paid.
func (er *EventRouter) handleInvoicePaymentSucceeded(ctx context.Context, event stripe.Event) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return domain.WrapError(err, domain.EINVALID, "webhook.invoice_payment_succeeded", "failed to parse invoice")
	}

	if invoice.Customer == nil || invoice.Customer.ID == "" {
		log.Printf("Invoice %s has no customer, skipping", invoice.ID)
		return nil
	}

	sub, err := er.subscriptionFor(ctx, invoice.Customer.ID)
	if err != nil || sub == nil {
		return err
	}

	// AmountPaid is in the currency's smallest unit. The shift assumes a
	// two-decimal currency, the same conversion the billing records use
	// everywhere; zero-decimal currencies (JPY) are not supported.
	amount := decimal.New(invoice.AmountPaid, -2)
	er.hooks.PaymentSucceeded(sub, amount)

	log.Printf("Payment succeeded for customer %s (invoice: %s, amount: %s)",
		invoice.Customer.ID, invoice.ID, amount)
	return nil
}

// handleChargeFailed notifies the host that a charge attempt failed.
func (er *EventRouter) handleChargeFailed(ctx context.Context, event stripe.Event) error {
	var ch stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
		return domain.WrapError(err, domain.EINVALID, "webhook.charge_failed", "failed to parse charge")
	}

	if ch.Customer == nil || ch.Customer.ID == "" {
		log.Printf("Charge %s has no customer, skipping", ch.ID)
		return nil
	}

	sub, err := er.subscriptionFor(ctx, ch.Customer.ID)
	if err != nil || sub == nil {
		return err
	}

	er.hooks.ChargeFailed(sub)

	log.Printf("Charge failed for customer %s (charge: %s)", ch.Customer.ID, ch.ID)
	return nil
}

// handleChargeDisputed notifies the host that a charge was disputed.
// Dispute payloads reference a charge, not a customer, so the charge is
// resolved through the gateway first.
func (er *EventRouter) handleChargeDisputed(ctx context.Context, event stripe.Event) error {
	const op = "webhook.charge_disputed"

	var dispute stripe.Dispute
	if err := json.Unmarshal(event.Data.Raw, &dispute); err != nil {
		return domain.WrapError(err, domain.EINVALID, op, "failed to parse dispute")
	}

	if dispute.Charge == nil || dispute.Charge.ID == "" {
		log.Printf("Dispute %s has no charge reference, skipping", dispute.ID)
		return nil
	}

	customerID, err := er.gateway.ChargeCustomer(ctx, dispute.Charge.ID)
	if err != nil {
		return domain.WrapError(err, domain.EINTERNAL, op, "failed to resolve disputed charge")
	}

	sub, err := er.subscriptionFor(ctx, customerID)
	if err != nil || sub == nil {
		return err
	}

	er.hooks.ChargeDisputed(sub)

	log.Printf("Charge disputed for customer %s (dispute: %s)", customerID, dispute.ID)
	return nil
}

// subscriptionFor locates the record for a remote customer id. A missing
// record is not an error: events can arrive for customers created outside
// this system, or after local deletion.
func (er *EventRouter) subscriptionFor(ctx context.Context, stripeID string) (*domain.Subscription, error) {
	sub, err := er.store.GetByStripeID(ctx, stripeID)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			log.Printf("No subscription for remote customer %s, skipping", stripeID)
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}

// StripeHandler handles Stripe webhook events
type StripeHandler struct {
	gateway billing.Gateway
	router  *EventRouter
	config  StripeWebhookConfig
}

// StripeWebhookConfig contains configuration for Stripe webhook handling
type StripeWebhookConfig struct {
	// WebhookSecret is the webhook signing secret from Stripe dashboard
	WebhookSecret string
}

// NewStripeHandler creates a new Stripe webhook handler
func NewStripeHandler(gateway billing.Gateway, router *EventRouter, config StripeWebhookConfig) *StripeHandler {
	return &StripeHandler{
		gateway: gateway,
		router:  router,
		config:  config,
	}
}

// HandleWebhook processes incoming Stripe webhook events
//
// Usage in main.go or router:
//
//	stripeHandler := webhook.NewStripeHandler(gateway, eventRouter, webhook.StripeWebhookConfig{
//	    WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
//	})
//	http.HandleFunc("/webhooks/stripe", stripeHandler.HandleWebhook)
//
// Stripe CLI testing:
//
//	stripe listen --forward-to localhost:3000/webhooks/stripe
//	stripe trigger invoice.payment_succeeded
func (h *StripeHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	// Only accept POST requests
	if r.Method != http.MethodPost {
		log.Printf("[WEBHOOK] Rejected: method %s not allowed", r.Method)
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "", "Method not allowed"))
		return
	}

	// Read the request body
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("[WEBHOOK] Error reading payload: %v", err)
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "", "Error reading request body"))
		return
	}

	// Get the signature from headers
	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		log.Printf("[WEBHOOK] Missing Stripe-Signature header")
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "", "Missing signature"))
		return
	}

	// Verify the webhook signature
	if err := h.gateway.VerifyWebhookSignature(payload, signature, h.config.WebhookSecret); err != nil {
		log.Printf("[WEBHOOK] Signature verification failed: %v", err)
		handler.ErrorResponse(w, r, domain.Errorf(domain.EUNAUTHORIZED, "", "Invalid signature"))
		return
	}

	// Parse the event
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Printf("[WEBHOOK] Error parsing webhook JSON: %v", err)
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "", "Invalid JSON"))
		return
	}

	log.Printf("[WEBHOOK] Received Stripe event: %s (ID: %s)", event.Type, event.ID)

	if telemetry.Business != nil {
		telemetry.Business.WebhookReceived.WithLabelValues(string(event.Type)).Inc()
	}

	defer func() {
		if telemetry.Business != nil {
			duration := time.Since(startTime).Seconds()
			telemetry.Business.WebhookLatency.WithLabelValues(string(event.Type)).Observe(duration)
		}
	}()

	if err := h.router.Route(r.Context(), event); err != nil {
		// Logged and acked. Stripe retries on non-2xx; a malformed or
		// unresolvable event will not improve on retry.
		log.Printf("[WEBHOOK] Error processing event %s: %v", event.ID, err)
		if telemetry.Business != nil {
			telemetry.Business.WebhookFailed.WithLabelValues(string(event.Type), domain.ErrorCode(err)).Inc()
		}
	} else if telemetry.Business != nil {
		telemetry.Business.WebhookProcessed.WithLabelValues(string(event.Type)).Inc()
	}

	// Always return 200 to acknowledge receipt
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"received": true}`))
}
