// AngelaMos | 2026
// entity.go

package billing

import (
	"errors"
	"time"

	"github.com/carterperez-dev/marketplace-access/internal/access"
)

const ProviderStripe = "stripe"

type Status string

const (
	StatusActive   Status = "active"
	StatusTrialing Status = "trialing"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
)

var ErrDuplicateProviderEvent = errors.New("duplicate provider event")

// Subscription is the billing record behind a user's tier. There is at most
// one per user.
type Subscription struct {
	ID                   string     `db:"id"`
	UserID               string     `db:"user_id"`
	Tier                 string     `db:"tier"`
	Status               Status     `db:"status"`
	Provider             string     `db:"provider"`
	StripeCustomerID     string     `db:"stripe_customer_id"`
	StripeSubscriptionID string     `db:"stripe_subscription_id"`
	CurrentPeriodEnd     *time.Time `db:"current_period_end"`
	CreatedAt            time.Time  `db:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at"`
}

// EffectiveTier is the tier the user is entitled to right now. A past_due
// subscription keeps its tier until the lapse job cancels it.
func (s *Subscription) EffectiveTier() access.Tier {
	switch s.Status {
	case StatusActive, StatusTrialing, StatusPastDue:
		return access.NormalizeTier(s.Tier)
	default:
		return access.TierFree
	}
}

type ProviderEvent struct {
	Provider        string `db:"provider"`
	ProviderEventID string `db:"provider_event_id"`
	EventType       string `db:"event_type"`
	Payload         []byte `db:"payload"`
}
