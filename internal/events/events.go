// AngelaMos | 2026
// events.go

package events

import (
	"context"
	"time"

	"github.com/carterperez-dev/marketplace-access/internal/access"
)

const (
	TypeTierChanged = "tier.changed"

	SourceAdmin   = "admin"
	SourceBilling = "billing"
	SourceLapsed  = "lapsed"
)

// TierChanged is emitted once per effective tier change of a user.
type TierChanged struct {
	EventID      string      `json:"event_id"`
	UserID       string      `json:"user_id"`
	PreviousTier access.Tier `json:"previous_tier"`
	NewTier      access.Tier `json:"new_tier"`
	Source       string      `json:"source"`
	OccurredAt   time.Time   `json:"occurred_at"`
}

// Direction reports upgrade, downgrade or none.
func (e TierChanged) Direction() string {
	switch {
	case e.NewTier.Rank() > e.PreviousTier.Rank():
		return "upgrade"
	case e.NewTier.Rank() < e.PreviousTier.Rank():
		return "downgrade"
	default:
		return "none"
	}
}

type Publisher interface {
	PublishTierChanged(ctx context.Context, event TierChanged) error
	Close() error
}

type NopPublisher struct{}

func (NopPublisher) PublishTierChanged(context.Context, TierChanged) error {
	return nil
}

func (NopPublisher) Close() error {
	return nil
}
