package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/skadi/internal/domain"
)

// SubscriptionService implements domain.SubscriptionStore using PostgreSQL.
type SubscriptionService struct {
	pool *pgxpool.Pool
}

// Compile-time check to ensure SubscriptionService implements domain.SubscriptionStore.
var _ domain.SubscriptionStore = (*SubscriptionService)(nil)

// NewSubscriptionService creates a new SubscriptionService instance.
func NewSubscriptionService(pool *pgxpool.Pool) *SubscriptionService {
	return &SubscriptionService{pool: pool}
}

const subscriptionColumns = `
	id::text, customer_id, stripe_id, plan_id, current_price::text,
	coupon_id, last_four, expiry_month, expiry_year, card_type,
	created_at, updated_at`

// Get retrieves a record by its local identifier.
func (s *SubscriptionService) Get(ctx context.Context, id string) (*domain.Subscription, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT`+subscriptionColumns+`
		 FROM subscriptions WHERE id = $1`, id)
	return s.scan(row, "subscription.get", id)
}

// GetByStripeID retrieves a record by its remote customer id.
func (s *SubscriptionService) GetByStripeID(ctx context.Context, stripeID string) (*domain.Subscription, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT`+subscriptionColumns+`
		 FROM subscriptions WHERE stripe_id = $1 AND stripe_id <> ''`, stripeID)
	return s.scan(row, "subscription.get_by_stripe_id", stripeID)
}

// GetByCustomerID retrieves the record owned by an account.
func (s *SubscriptionService) GetByCustomerID(ctx context.Context, customerID string) (*domain.Subscription, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT`+subscriptionColumns+`
		 FROM subscriptions WHERE customer_id = $1`, customerID)
	return s.scan(row, "subscription.get_by_customer_id", customerID)
}

// Save writes the record, inserting when it has no id yet. Records with
// accumulated validation errors are refused.
func (s *SubscriptionService) Save(ctx context.Context, sub *domain.Subscription) error {
	const op = "subscription.save"

	if sub.Errors.Any() {
		return domain.Invalid(op, "cannot save a record with validation errors")
	}

	var price *string
	if sub.CurrentPrice != nil {
		v := sub.CurrentPrice.String()
		price = &v
	}

	now := time.Now()

	if sub.ID == "" {
		err := s.pool.QueryRow(ctx,
			`INSERT INTO subscriptions (
				customer_id, stripe_id, plan_id, current_price, coupon_id,
				last_four, expiry_month, expiry_year, card_type, created_at, updated_at
			) VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $10)
			RETURNING id::text`,
			sub.CustomerID, sub.StripeID, sub.PlanID, price, sub.CouponID,
			sub.LastFour, sub.ExpiryMonth, sub.ExpiryYear, sub.CardType, now,
		).Scan(&sub.ID)
		if err != nil {
			return domain.Internal(err, op, "failed to insert subscription")
		}
		sub.CreatedAt = now
		sub.UpdatedAt = now
		return nil
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE subscriptions SET
			stripe_id = $2, plan_id = $3, current_price = $4::numeric, coupon_id = $5,
			last_four = $6, expiry_month = $7, expiry_year = $8, card_type = $9,
			updated_at = $10
		 WHERE id = $1`,
		sub.ID, sub.StripeID, sub.PlanID, price, sub.CouponID,
		sub.LastFour, sub.ExpiryMonth, sub.ExpiryYear, sub.CardType, now,
	)
	if err != nil {
		return domain.Internal(err, op, "failed to update subscription")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(op, "subscription", sub.ID)
	}
	sub.UpdatedAt = now
	return nil
}

// scan reads one row into a record and snapshots its plan baseline so the
// reconciler can diff later mutations against the loaded state.
func (s *SubscriptionService) scan(row pgx.Row, op, identifier string) (*domain.Subscription, error) {
	var sub domain.Subscription
	var price *string

	err := row.Scan(
		&sub.ID, &sub.CustomerID, &sub.StripeID, &sub.PlanID, &price,
		&sub.CouponID, &sub.LastFour, &sub.ExpiryMonth, &sub.ExpiryYear, &sub.CardType,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound(op, "subscription", identifier)
		}
		return nil, domain.Internal(err, op, "failed to scan subscription")
	}

	if price != nil {
		d, err := decimal.NewFromString(*price)
		if err != nil {
			return nil, domain.Internal(err, op, "invalid stored price")
		}
		sub.CurrentPrice = &d
	}

	sub.SnapshotPlan()
	return &sub, nil
}
