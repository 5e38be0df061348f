package routes

import (
	"net/http"

	"github.com/dukerupert/skadi/internal/handler/api"
)

// APIDeps contains the handlers for the subscription API routes.
type APIDeps struct {
	SubscriptionHandler *api.SubscriptionHandler
}

// WebhookDeps contains the handlers for incoming webhook routes.
type WebhookDeps struct {
	StripeHandler http.HandlerFunc
}
