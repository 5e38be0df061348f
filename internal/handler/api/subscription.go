package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/skadi/internal/domain"
	"github.com/dukerupert/skadi/internal/handler"
	"github.com/dukerupert/skadi/internal/service"
)

// SubscriptionHandler exposes the subscription lifecycle over HTTP. Every
// mutation goes through the reconciler; the handler never writes remote
// state or local plan fields directly.
type SubscriptionHandler struct {
	store      domain.SubscriptionStore
	reconciler *service.Reconciler
	owners     *OwnerRegistry
	logger     *slog.Logger
}

func NewSubscriptionHandler(store domain.SubscriptionStore, reconciler *service.Reconciler, owners *OwnerRegistry, logger *slog.Logger) *SubscriptionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionHandler{
		store:      store,
		reconciler: reconciler,
		owners:     owners,
		logger:     logger,
	}
}

type updateRequest struct {
	// PlanID selects the target plan. Omitted or null leaves the current
	// plan alone (card-only update); cancellation has its own endpoint.
	PlanID    *string    `json:"plan_id"`
	CardToken string     `json:"card_token"`
	Coupon    string     `json:"coupon"`
	Owner     *ownerBody `json:"owner"`
}

type ownerBody struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type cardView struct {
	LastFour    string `json:"last_four"`
	ExpiryMonth int64  `json:"expiry_month"`
	ExpiryYear  int64  `json:"expiry_year"`
	Brand       string `json:"brand"`
}

type subscriptionView struct {
	ID           string    `json:"id"`
	CustomerID   string    `json:"customer_id"`
	PlanID       *string   `json:"plan_id"`
	CurrentPrice *string   `json:"current_price"`
	CouponID     string    `json:"coupon_id,omitempty"`
	Card         *cardView `json:"card,omitempty"`
	Cancelled    bool      `json:"cancelled"`
}

func viewOf(sub *domain.Subscription) subscriptionView {
	v := subscriptionView{
		ID:         sub.ID,
		CustomerID: sub.CustomerID,
		PlanID:     sub.PlanID,
		CouponID:   sub.CouponID,
		Cancelled:  sub.Cancelled(),
	}
	if sub.CurrentPrice != nil {
		price := sub.CurrentPrice.String()
		v.CurrentPrice = &price
	}
	if sub.LastFour != "" {
		v.Card = &cardView{
			LastFour:    sub.LastFour,
			ExpiryMonth: sub.ExpiryMonth,
			ExpiryYear:  sub.ExpiryYear,
			Brand:       sub.CardType,
		}
	}
	return v
}

// Get handles GET /api/subscriptions/{customerID}.
func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	customerID := r.PathValue("customerID")
	sub, err := h.store.GetByCustomerID(r.Context(), customerID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, viewOf(sub))
}

// Update handles PUT /api/subscriptions/{customerID}. A record is created
// on first contact; plan and card changes reconcile against the remote
// processor before anything is persisted.
func (h *SubscriptionHandler) Update(w http.ResponseWriter, r *http.Request) {
	customerID := r.PathValue("customerID")

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.ErrorResponse(w, r, domain.Invalid("api.SubscriptionHandler.Update", "invalid request body"))
		return
	}

	sub, err := h.loadOrCreate(r, customerID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if req.PlanID != nil {
		planID := *req.PlanID
		sub.PlanID = &planID
	}
	sub.CardToken = req.CardToken
	sub.Coupon = req.Coupon

	if req.Owner != nil {
		h.owners.Register(customerID, req.Owner.Name, req.Owner.Email)
		defer h.owners.Forget(customerID)
	}

	h.reconcile(w, r, sub)
}

// Cancel handles DELETE /api/subscriptions/{customerID}/plan. Query
// parameters are passed through to the cancellation hook so callers can
// attach a reason or survey answers.
func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	customerID := r.PathValue("customerID")
	sub, err := h.store.GetByCustomerID(r.Context(), customerID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	params := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	h.reconciler.NotifyCancellation(sub, params)

	sub.PlanID = nil
	h.reconcile(w, r, sub)
}

// Preview handles GET /api/subscriptions/{customerID}/changes/{planID}.
// It describes what switching to the target plan would mean without
// touching remote or local state.
func (h *SubscriptionHandler) Preview(w http.ResponseWriter, r *http.Request) {
	customerID := r.PathValue("customerID")
	planID := r.PathValue("planID")

	sub, err := h.store.GetByCustomerID(r.Context(), customerID)
	if err != nil {
		if !domain.IsCode(err, domain.ENOTFOUND) {
			handler.ErrorResponse(w, r, err)
			return
		}
		sub = domain.NewSubscription(customerID)
	}

	diff, err := h.reconciler.DescribeDifference(r.Context(), sub, planID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"plan_id":    planID,
		"difference": string(diff),
	})
}

// reconcile runs the state machine and persists on success. Failures are
// answered with the record's accumulated user-facing messages.
func (h *SubscriptionHandler) reconcile(w http.ResponseWriter, r *http.Request, sub *domain.Subscription) {
	if err := h.reconciler.Reconcile(r.Context(), sub); err != nil {
		h.logger.Warn("subscription update rejected",
			"customer_id", sub.CustomerID,
			"error", err,
		)
		h.reconcileError(w, r, sub, err)
		return
	}

	if err := h.store.Save(r.Context(), sub); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, viewOf(sub))
}

// reconcileError maps a failed reconcile to a response. The status comes
// from the error's domain code; the body carries the messages the
// reconciler accumulated on the record.
func (h *SubscriptionHandler) reconcileError(w http.ResponseWriter, r *http.Request, sub *domain.Subscription, err error) {
	if !sub.Errors.Any() {
		handler.ErrorResponse(w, r, err)
		return
	}

	status := handler.ErrorCodeToHTTPStatus(domain.ErrorCode(err))
	respondJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"code":     domain.ErrorCode(err),
			"message":  sub.Errors.Base[0],
			"messages": sub.Errors.Base,
		},
	})
}

func (h *SubscriptionHandler) loadOrCreate(r *http.Request, customerID string) (*domain.Subscription, error) {
	sub, err := h.store.GetByCustomerID(r.Context(), customerID)
	if err == nil {
		return sub, nil
	}
	if domain.IsCode(err, domain.ENOTFOUND) {
		return domain.NewSubscription(customerID), nil
	}
	return nil, err
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
