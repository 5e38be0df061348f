package routes

import (
	"github.com/dukerupert/skadi/internal/router"
)

// RegisterAPIRoutes registers the subscription lifecycle API.
func RegisterAPIRoutes(r *router.Router, deps APIDeps) {
	r.Get("/api/subscriptions/{customerID}", deps.SubscriptionHandler.Get)
	r.Put("/api/subscriptions/{customerID}", deps.SubscriptionHandler.Update)
	r.Delete("/api/subscriptions/{customerID}/plan", deps.SubscriptionHandler.Cancel)
	r.Get("/api/subscriptions/{customerID}/changes/{planID}", deps.SubscriptionHandler.Preview)
}
