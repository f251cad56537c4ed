// AngelaMos | 2026
// repository.go

package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/marketplace-access/internal/core"
)

type Repository interface {
	// WithTx runs fn against a repository bound to one transaction.
	WithTx(ctx context.Context, fn func(repo Repository) error) error
	InsertProviderEvent(ctx context.Context, event ProviderEvent) error
	GetByUserID(ctx context.Context, userID string) (*Subscription, error)
	GetByStripeSubscriptionID(
		ctx context.Context,
		stripeSubscriptionID string,
	) (*Subscription, error)
	Upsert(ctx context.Context, sub *Subscription) error
	ListLapsed(ctx context.Context, cutoff time.Time) ([]Subscription, error)
}

type repository struct {
	db   core.DBTX
	root *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db, root: db}
}

func (r *repository) WithTx(
	ctx context.Context,
	fn func(repo Repository) error,
) error {
	if r.root == nil {
		return fn(r)
	}
	return core.InTx(ctx, r.root, func(tx *sqlx.Tx) error {
		return fn(&repository{db: tx})
	})
}

func (r *repository) InsertProviderEvent(
	ctx context.Context,
	event ProviderEvent,
) error {
	query := `
		INSERT INTO billing_provider_events
			(provider, provider_event_id, event_type, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider, provider_event_id) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query,
		event.Provider,
		event.ProviderEventID,
		event.EventType,
		event.Payload,
	)
	if err != nil {
		return fmt.Errorf("insert provider event: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert provider event: %w", err)
	}
	if n == 0 {
		return ErrDuplicateProviderEvent
	}

	return nil
}

const subscriptionColumns = `
	id, user_id, tier, status, provider, stripe_customer_id,
	stripe_subscription_id, current_period_end, created_at, updated_at`

func (r *repository) GetByUserID(
	ctx context.Context,
	userID string,
) (*Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1
		FOR UPDATE`

	var sub Subscription
	err := r.db.GetContext(ctx, &sub, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get subscription: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}

	return &sub, nil
}

func (r *repository) GetByStripeSubscriptionID(
	ctx context.Context,
	stripeSubscriptionID string,
) (*Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE stripe_subscription_id = $1
		FOR UPDATE`

	var sub Subscription
	err := r.db.GetContext(ctx, &sub, query, stripeSubscriptionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf(
			"get subscription by stripe id: %w",
			core.ErrNotFound,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription by stripe id: %w", err)
	}

	return &sub, nil
}

func (r *repository) Upsert(ctx context.Context, sub *Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}

	query := `
		INSERT INTO subscriptions
			(id, user_id, tier, status, provider, stripe_customer_id,
			 stripe_subscription_id, current_period_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			tier = EXCLUDED.tier,
			status = EXCLUDED.status,
			provider = EXCLUDED.provider,
			stripe_customer_id = EXCLUDED.stripe_customer_id,
			stripe_subscription_id = EXCLUDED.stripe_subscription_id,
			current_period_end = EXCLUDED.current_period_end,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	row := struct {
		ID        string    `db:"id"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}{}

	err := r.db.GetContext(ctx, &row, query,
		sub.ID,
		sub.UserID,
		sub.Tier,
		sub.Status,
		sub.Provider,
		sub.StripeCustomerID,
		sub.StripeSubscriptionID,
		sub.CurrentPeriodEnd,
	)
	if err != nil {
		if isUnknownUser(err) {
			return fmt.Errorf("upsert subscription: %w", core.ErrNotFound)
		}
		return fmt.Errorf("upsert subscription: %w", err)
	}

	sub.ID = row.ID
	sub.CreatedAt = row.CreatedAt
	sub.UpdatedAt = row.UpdatedAt
	return nil
}

// ListLapsed returns past_due subscriptions whose period ended before cutoff.
func (r *repository) ListLapsed(
	ctx context.Context,
	cutoff time.Time,
) ([]Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE status = $1
		  AND current_period_end IS NOT NULL
		  AND current_period_end < $2
		ORDER BY current_period_end`

	var subs []Subscription
	if err := r.db.SelectContext(ctx, &subs, query, StatusPastDue, cutoff); err != nil {
		return nil, fmt.Errorf("list lapsed subscriptions: %w", err)
	}

	return subs, nil
}

// isUnknownUser matches a user_id that references no user or is not a uuid.
func isUnknownUser(err error) bool {
	return core.IsPgCode(err, core.PgForeignKeyViolation, core.PgInvalidTextRep)
}
