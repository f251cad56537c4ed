// AngelaMos | 2026
// service.go

package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"

	"github.com/carterperez-dev/marketplace-access/internal/access"
	"github.com/carterperez-dev/marketplace-access/internal/core"
	"github.com/carterperez-dev/marketplace-access/internal/events"
	"github.com/carterperez-dev/marketplace-access/internal/user"
)

type Result string

const (
	ResultApplied   Result = "applied"
	ResultDuplicate Result = "duplicate"
	ResultIgnored   Result = "ignored"
)

// TierWriter is the user service's single tier write path.
type TierWriter interface {
	SetTier(
		ctx context.Context,
		id string,
		tier access.Tier,
		source string,
	) (*user.User, error)
}

type Service struct {
	repo        Repository
	users       TierWriter
	catalog     *access.Catalog
	gracePeriod time.Duration
}

func NewService(
	repo Repository,
	users TierWriter,
	catalog *access.Catalog,
	gracePeriod time.Duration,
) *Service {
	if catalog == nil {
		catalog = access.DefaultCatalog()
	}
	return &Service{
		repo:        repo,
		users:       users,
		catalog:     catalog,
		gracePeriod: gracePeriod,
	}
}

// change is the subscription state a provider event asks for.
type change struct {
	userID               string
	tier                 access.Tier
	status               Status
	customerID           string
	stripeSubscriptionID string
	periodEnd            *time.Time
}

// HandleStripeEvent records the event once and applies the subscription
// change it carries. The user's tier is synced after the transaction
// commits; replays skip the write but still sync, which heals a sync that
// failed the first time.
func (s *Service) HandleStripeEvent(
	ctx context.Context,
	evt stripe.Event,
	payload []byte,
) (Result, error) {
	evtType := string(evt.Type)
	result := ResultIgnored
	var userID string

	err := s.repo.WithTx(ctx, func(repo Repository) error {
		duplicate := false
		err := repo.InsertProviderEvent(ctx, ProviderEvent{
			Provider:        ProviderStripe,
			ProviderEventID: evt.ID,
			EventType:       evtType,
			Payload:         payload,
		})
		switch {
		case errors.Is(err, ErrDuplicateProviderEvent):
			duplicate = true
		case err != nil:
			return err
		}

		c, err := s.decode(ctx, repo, evt)
		if err != nil {
			return err
		}
		if c == nil {
			if duplicate {
				result = ResultDuplicate
			}
			return nil
		}
		userID = c.userID

		if duplicate {
			result = ResultDuplicate
			return nil
		}

		if err := apply(ctx, repo, c); err != nil {
			return err
		}
		result = ResultApplied
		return nil
	})
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "stripe: event references unknown user",
			"event_id", evt.ID,
			"event_type", evtType,
			"user_id", userID,
		)
		return ResultIgnored, nil
	}
	if err != nil {
		core.SetSpanError(ctx, err)
		return "", fmt.Errorf("handle stripe event %s: %w", evt.ID, err)
	}

	if userID != "" {
		if err := s.syncTier(ctx, userID); err != nil {
			core.SetSpanError(ctx, err)
			return result, fmt.Errorf("handle stripe event %s: %w", evt.ID, err)
		}
	}

	return result, nil
}

func (s *Service) decode(
	ctx context.Context,
	repo Repository,
	evt stripe.Event,
) (*change, error) {
	if evt.Data == nil {
		return nil, nil
	}

	switch string(evt.Type) {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &session); err != nil {
			slog.ErrorContext(ctx, "stripe: invalid checkout session payload", "error", err)
			return nil, nil
		}
		userID := strings.TrimSpace(session.Metadata["user_id"])
		tier, err := access.ParseTier(session.Metadata["tier"])
		if userID == "" || err != nil {
			slog.WarnContext(ctx, "stripe: checkout session missing user_id or tier metadata",
				"session_id", session.ID,
			)
			return nil, nil
		}
		c := &change{userID: userID, tier: tier, status: StatusActive}
		if session.Customer != nil {
			c.customerID = session.Customer.ID
		}
		if session.Subscription != nil {
			c.stripeSubscriptionID = session.Subscription.ID
		}
		return c, nil

	case "customer.subscription.created", "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(evt.Data.Raw, &sub); err != nil {
			slog.ErrorContext(ctx, "stripe: invalid subscription payload", "error", err)
			return nil, nil
		}
		return s.subscriptionChange(ctx, repo, &sub, false)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(evt.Data.Raw, &sub); err != nil {
			slog.ErrorContext(ctx, "stripe: invalid subscription payload", "error", err)
			return nil, nil
		}
		return s.subscriptionChange(ctx, repo, &sub, true)

	case "invoice.payment_failed":
		var invoice stripe.Invoice
		if err := json.Unmarshal(evt.Data.Raw, &invoice); err != nil {
			slog.ErrorContext(ctx, "stripe: invalid invoice payload", "error", err)
			return nil, nil
		}
		if invoice.Subscription == nil || invoice.Subscription.ID == "" {
			return nil, nil
		}
		existing, err := repo.GetByStripeSubscriptionID(ctx, invoice.Subscription.ID)
		if errors.Is(err, core.ErrNotFound) {
			slog.WarnContext(ctx, "stripe: payment failed for unknown subscription",
				"stripe_subscription_id", invoice.Subscription.ID,
			)
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &change{
			userID:               existing.UserID,
			tier:                 access.NormalizeTier(existing.Tier),
			status:               StatusPastDue,
			customerID:           existing.StripeCustomerID,
			stripeSubscriptionID: existing.StripeSubscriptionID,
			periodEnd:            existing.CurrentPeriodEnd,
		}, nil
	}

	return nil, nil
}

func (s *Service) subscriptionChange(
	ctx context.Context,
	repo Repository,
	sub *stripe.Subscription,
	deleted bool,
) (*change, error) {
	var existing *Subscription
	if sub.ID != "" {
		found, err := repo.GetByStripeSubscriptionID(ctx, sub.ID)
		switch {
		case err == nil:
			existing = found
		case !errors.Is(err, core.ErrNotFound):
			return nil, err
		}
	}

	userID := strings.TrimSpace(sub.Metadata["user_id"])
	if userID == "" && existing != nil {
		userID = existing.UserID
	}
	if userID == "" {
		slog.WarnContext(ctx, "stripe: subscription missing user_id metadata",
			"stripe_subscription_id", sub.ID,
		)
		return nil, nil
	}

	c := &change{userID: userID, stripeSubscriptionID: sub.ID}
	if sub.Customer != nil {
		c.customerID = sub.Customer.ID
	}
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		c.periodEnd = &end
	}

	if deleted {
		c.status = StatusCanceled
		c.tier = access.TierFree
		return c, nil
	}

	tier, err := access.ParseTier(sub.Metadata["tier"])
	if err != nil {
		if existing == nil {
			slog.WarnContext(ctx, "stripe: subscription missing tier metadata",
				"stripe_subscription_id", sub.ID,
			)
			return nil, nil
		}
		tier = access.NormalizeTier(existing.Tier)
	}
	c.tier = tier

	switch sub.Status {
	case stripe.SubscriptionStatusActive:
		c.status = StatusActive
	case stripe.SubscriptionStatusTrialing:
		c.status = StatusTrialing
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		c.status = StatusPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		c.status = StatusCanceled
		c.tier = access.TierFree
	default:
		return nil, nil
	}

	return c, nil
}

func apply(ctx context.Context, repo Repository, c *change) error {
	sub, err := repo.GetByUserID(ctx, c.userID)
	switch {
	case errors.Is(err, core.ErrNotFound):
		sub = &Subscription{UserID: c.userID}
	case err != nil:
		return err
	}

	sub.Tier = string(c.tier)
	sub.Status = c.status
	sub.Provider = ProviderStripe
	if c.customerID != "" {
		sub.StripeCustomerID = c.customerID
	}
	if c.stripeSubscriptionID != "" {
		sub.StripeSubscriptionID = c.stripeSubscriptionID
	}
	if c.periodEnd != nil {
		sub.CurrentPeriodEnd = c.periodEnd
	}

	return repo.Upsert(ctx, sub)
}

// syncTier writes the subscription's effective tier to the user.
func (s *Service) syncTier(ctx context.Context, userID string) error {
	sub, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("sync tier: %w", err)
	}

	_, err = s.users.SetTier(ctx, userID, sub.EffectiveTier(), events.SourceBilling)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "billing event for unknown user", "user_id", userID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("sync tier: %w", err)
	}
	return nil
}

// DowngradeLapsed cancels past_due subscriptions whose period ended more than
// the grace period before now and moves their users to free.
func (s *Service) DowngradeLapsed(ctx context.Context, now time.Time) (int, error) {
	lapsed, err := s.repo.ListLapsed(ctx, now.Add(-s.gracePeriod))
	if err != nil {
		return 0, fmt.Errorf("downgrade lapsed: %w", err)
	}

	downgraded := 0
	for i := range lapsed {
		sub := lapsed[i]
		sub.Status = StatusCanceled
		sub.Tier = string(access.TierFree)

		if err := s.repo.Upsert(ctx, &sub); err != nil {
			return downgraded, fmt.Errorf("downgrade lapsed: %w", err)
		}

		if _, err := s.users.SetTier(ctx, sub.UserID, access.TierFree, events.SourceLapsed); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				continue
			}
			return downgraded, fmt.Errorf("downgrade lapsed: %w", err)
		}

		downgraded++
	}

	return downgraded, nil
}

type SubscriptionView struct {
	Tier             access.Tier `json:"tier"`
	PlanTier         access.Tier `json:"plan_tier"`
	Status           string      `json:"status"`
	Provider         string      `json:"provider,omitempty"`
	CurrentPeriodEnd *time.Time  `json:"current_period_end,omitempty"`
}

// GetSubscription reports the user's subscription. Users who never paid are
// on free with status "none".
func (s *Service) GetSubscription(
	ctx context.Context,
	userID string,
) (*SubscriptionView, error) {
	sub, err := s.repo.GetByUserID(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return &SubscriptionView{
			Tier:     access.TierFree,
			PlanTier: access.TierFree,
			Status:   "none",
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}

	return &SubscriptionView{
		Tier:             sub.EffectiveTier(),
		PlanTier:         access.NormalizeTier(sub.Tier),
		Status:           string(sub.Status),
		Provider:         sub.Provider,
		CurrentPeriodEnd: sub.CurrentPeriodEnd,
	}, nil
}

func (s *Service) Plans() []Plan {
	return BuildPlans(s.catalog)
}
