// AngelaMos | 2026
// service_test.go

package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"

	"github.com/carterperez-dev/marketplace-access/internal/access"
	"github.com/carterperez-dev/marketplace-access/internal/core"
	"github.com/carterperez-dev/marketplace-access/internal/events"
	"github.com/carterperez-dev/marketplace-access/internal/user"
)

type memRepo struct {
	mu     sync.Mutex
	events map[string]bool
	subs   map[string]Subscription
	failOn string
}

func newMemRepo() *memRepo {
	return &memRepo{
		events: make(map[string]bool),
		subs:   make(map[string]Subscription),
	}
}

func (m *memRepo) WithTx(ctx context.Context, fn func(Repository) error) error {
	m.mu.Lock()
	eventsSnap := make(map[string]bool, len(m.events))
	for k, v := range m.events {
		eventsSnap[k] = v
	}
	subsSnap := make(map[string]Subscription, len(m.subs))
	for k, v := range m.subs {
		subsSnap[k] = v
	}
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.events = eventsSnap
		m.subs = subsSnap
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memRepo) InsertProviderEvent(_ context.Context, e ProviderEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := e.Provider + ":" + e.ProviderEventID
	if m.events[key] {
		return ErrDuplicateProviderEvent
	}
	m.events[key] = true
	return nil
}

func (m *memRepo) GetByUserID(_ context.Context, userID string) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[userID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &sub, nil
}

func (m *memRepo) GetByStripeSubscriptionID(_ context.Context, id string) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.subs {
		if sub.StripeSubscriptionID == id {
			cp := sub
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (m *memRepo) Upsert(_ context.Context, sub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.failOn {
	case "upsert":
		return errors.New("db down")
	case "no-user":
		return fmt.Errorf("upsert subscription: %w", core.ErrNotFound)
	}
	if sub.ID == "" {
		sub.ID = "sub-row-" + sub.UserID
	}
	m.subs[sub.UserID] = *sub
	return nil
}

func (m *memRepo) ListLapsed(_ context.Context, cutoff time.Time) ([]Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Subscription
	for _, sub := range m.subs {
		if sub.Status == StatusPastDue && sub.CurrentPeriodEnd != nil && sub.CurrentPeriodEnd.Before(cutoff) {
			out = append(out, sub)
		}
	}
	return out, nil
}

type tierCall struct {
	userID string
	tier   access.Tier
	source string
}

type fakeUsers struct {
	mu      sync.Mutex
	calls   []tierCall
	tiers   map[string]access.Tier
	changes int
	missing map[string]bool
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{tiers: make(map[string]access.Tier), missing: make(map[string]bool)}
}

func (f *fakeUsers) SetTier(
	_ context.Context,
	id string,
	tier access.Tier,
	source string,
) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing[id] {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	f.calls = append(f.calls, tierCall{id, tier, source})
	if f.tiers[id] != tier {
		f.changes++
	}
	f.tiers[id] = tier
	return &user.User{ID: id, Tier: string(tier)}, nil
}

func stripeEvent(id, typ, object string) stripe.Event {
	return stripe.Event{
		ID:   id,
		Type: stripe.EventType(typ),
		Data: &stripe.EventData{Raw: json.RawMessage(object)},
	}
}

const checkoutCompleted = `{
	"id": "cs_1",
	"object": "checkout.session",
	"customer": "cus_1",
	"subscription": "sub_1",
	"metadata": {"user_id": "u1", "tier": "pro"}
}`

func newTestService() (*Service, *memRepo, *fakeUsers) {
	repo := newMemRepo()
	users := newFakeUsers()
	return NewService(repo, users, nil, 72*time.Hour), repo, users
}

func TestHandleStripeEvent_CheckoutActivatesTier(t *testing.T) {
	svc, repo, users := newTestService()
	ctx := context.Background()

	result, err := svc.HandleStripeEvent(ctx, stripeEvent("evt_1", "checkout.session.completed", checkoutCompleted), nil)
	require.NoError(t, err)
	assert.Equal(t, ResultApplied, result)

	sub := repo.subs["u1"]
	assert.Equal(t, StatusActive, sub.Status)
	assert.Equal(t, "pro", sub.Tier)
	assert.Equal(t, "cus_1", sub.StripeCustomerID)
	assert.Equal(t, "sub_1", sub.StripeSubscriptionID)

	require.Len(t, users.calls, 1)
	assert.Equal(t, tierCall{"u1", access.TierPro, events.SourceBilling}, users.calls[0])
}

func TestHandleStripeEvent_ReplayIsIdempotent(t *testing.T) {
	svc, repo, users := newTestService()
	ctx := context.Background()
	evt := stripeEvent("evt_1", "checkout.session.completed", checkoutCompleted)

	_, err := svc.HandleStripeEvent(ctx, evt, nil)
	require.NoError(t, err)

	result, err := svc.HandleStripeEvent(ctx, evt, nil)
	require.NoError(t, err)
	assert.Equal(t, ResultDuplicate, result)

	assert.Len(t, repo.subs, 1)
	assert.Equal(t, 1, users.changes, "a replay must not change the tier again")
	assert.Equal(t, access.TierPro, users.tiers["u1"])
}

func TestHandleStripeEvent_SubscriptionLifecycle(t *testing.T) {
	svc, repo, users := newTestService()
	ctx := context.Background()

	_, err := svc.HandleStripeEvent(ctx, stripeEvent("evt_1", "checkout.session.completed", checkoutCompleted), nil)
	require.NoError(t, err)

	// plan change without metadata falls back to the stored user
	updated := `{"id": "sub_1", "status": "active", "customer": "cus_1",
		"current_period_end": 1798761600, "metadata": {"tier": "enterprise"}}`
	_, err = svc.HandleStripeEvent(ctx, stripeEvent("evt_2", "customer.subscription.updated", updated), nil)
	require.NoError(t, err)
	assert.Equal(t, access.TierEnterprise, users.tiers["u1"])
	require.NotNil(t, repo.subs["u1"].CurrentPeriodEnd)
	assert.Equal(t, int64(1798761600), repo.subs["u1"].CurrentPeriodEnd.Unix())

	failed := `{"id": "in_1", "subscription": "sub_1"}`
	_, err = svc.HandleStripeEvent(ctx, stripeEvent("evt_3", "invoice.payment_failed", failed), nil)
	require.NoError(t, err)
	assert.Equal(t, StatusPastDue, repo.subs["u1"].Status)
	assert.Equal(t, access.TierEnterprise, users.tiers["u1"], "past_due keeps the tier during grace")

	deleted := `{"id": "sub_1", "status": "canceled", "customer": "cus_1"}`
	_, err = svc.HandleStripeEvent(ctx, stripeEvent("evt_4", "customer.subscription.deleted", deleted), nil)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, repo.subs["u1"].Status)
	assert.Equal(t, access.TierFree, users.tiers["u1"])
}

func TestHandleStripeEvent_Ignored(t *testing.T) {
	tests := []struct {
		name   string
		typ    string
		object string
	}{
		{"unhandled type", "charge.refunded", `{"id": "ch_1"}`},
		{"unknown tier", "checkout.session.completed", `{"id": "cs_1", "metadata": {"user_id": "u1", "tier": "gold"}}`},
		{"missing user", "checkout.session.completed", `{"id": "cs_1", "metadata": {"tier": "pro"}}`},
		{"incomplete subscription", "customer.subscription.created",
			`{"id": "sub_9", "status": "incomplete", "metadata": {"user_id": "u1", "tier": "pro"}}`},
		{"invoice for unknown subscription", "invoice.payment_failed", `{"id": "in_1", "subscription": "sub_404"}`},
		{"malformed payload", "customer.subscription.updated", `{"id": 5}`},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, users := newTestService()

			result, err := svc.HandleStripeEvent(
				context.Background(),
				stripeEvent(fmt.Sprintf("evt_%d", i), tt.typ, tt.object),
				nil,
			)
			require.NoError(t, err)
			assert.Equal(t, ResultIgnored, result)
			assert.Empty(t, repo.subs)
			assert.Empty(t, users.calls)
		})
	}
}

func TestHandleStripeEvent_FailedWriteRollsBackEventRecord(t *testing.T) {
	svc, repo, users := newTestService()
	ctx := context.Background()
	evt := stripeEvent("evt_1", "checkout.session.completed", checkoutCompleted)

	repo.failOn = "upsert"
	_, err := svc.HandleStripeEvent(ctx, evt, nil)
	require.Error(t, err)
	assert.Empty(t, repo.events)
	assert.Empty(t, users.calls)

	repo.failOn = ""
	result, err := svc.HandleStripeEvent(ctx, evt, nil)
	require.NoError(t, err)
	assert.Equal(t, ResultApplied, result, "stripe's retry must be processed, not deduplicated")
}

func TestHandleStripeEvent_UnknownUserDoesNotFail(t *testing.T) {
	svc, _, users := newTestService()
	users.missing["u1"] = true

	result, err := svc.HandleStripeEvent(
		context.Background(),
		stripeEvent("evt_1", "checkout.session.completed", checkoutCompleted),
		nil,
	)
	require.NoError(t, err)
	assert.Equal(t, ResultApplied, result)
}

func TestHandleStripeEvent_UserRowMissing(t *testing.T) {
	svc, repo, users := newTestService()
	repo.failOn = "no-user"

	result, err := svc.HandleStripeEvent(
		context.Background(),
		stripeEvent("evt_1", "checkout.session.completed", checkoutCompleted),
		nil,
	)
	require.NoError(t, err)
	assert.Equal(t, ResultIgnored, result)
	assert.Empty(t, repo.events)
	assert.Empty(t, users.calls)
}

func TestDowngradeLapsed(t *testing.T) {
	svc, repo, users := newTestService()
	ctx := context.Background()
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)

	longAgo := now.Add(-96 * time.Hour)
	recent := now.Add(-24 * time.Hour)
	repo.subs["lapsed"] = Subscription{UserID: "lapsed", Tier: "pro", Status: StatusPastDue, CurrentPeriodEnd: &longAgo}
	repo.subs["grace"] = Subscription{UserID: "grace", Tier: "pro", Status: StatusPastDue, CurrentPeriodEnd: &recent}
	repo.subs["paying"] = Subscription{UserID: "paying", Tier: "basic", Status: StatusActive, CurrentPeriodEnd: &longAgo}

	n, err := svc.DowngradeLapsed(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, StatusCanceled, repo.subs["lapsed"].Status)
	assert.Equal(t, StatusPastDue, repo.subs["grace"].Status)
	assert.Equal(t, StatusActive, repo.subs["paying"].Status)
	require.Len(t, users.calls, 1)
	assert.Equal(t, tierCall{"lapsed", access.TierFree, events.SourceLapsed}, users.calls[0])
}

func TestGetSubscription(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	view, err := svc.GetSubscription(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, access.TierFree, view.Tier)
	assert.Equal(t, "none", view.Status)

	repo.subs["u1"] = Subscription{UserID: "u1", Tier: "pro", Status: StatusCanceled, Provider: ProviderStripe}
	view, err = svc.GetSubscription(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, access.TierFree, view.Tier)
	assert.Equal(t, access.TierPro, view.PlanTier)
}

func TestSubscriptionEffectiveTier(t *testing.T) {
	tests := []struct {
		status Status
		tier   string
		want   access.Tier
	}{
		{StatusActive, "pro", access.TierPro},
		{StatusTrialing, "basic", access.TierBasic},
		{StatusPastDue, "enterprise", access.TierEnterprise},
		{StatusCanceled, "enterprise", access.TierFree},
		{Status("weird"), "pro", access.TierFree},
		{StatusActive, "platinum", access.TierFree},
	}

	for _, tt := range tests {
		sub := Subscription{Status: tt.status, Tier: tt.tier}
		assert.Equal(t, tt.want, sub.EffectiveTier(), "%s/%s", tt.status, tt.tier)
	}
}

func TestBuildPlans(t *testing.T) {
	plans := BuildPlans(access.DefaultCatalog())
	require.Len(t, plans, 4)

	for i, p := range plans {
		assert.Equal(t, i, p.Rank)
		assert.Equal(t, access.UpgradePath(p.Tier), p.CheckoutPath)
		if i > 0 {
			assert.Subset(t, p.Includes, plans[i-1].Includes, "higher tiers include lower tiers")
		}
	}

	pro := plans[2]
	keys := make([]string, 0, len(pro.Unlocks))
	for _, f := range pro.Unlocks {
		keys = append(keys, f.Key)
	}
	assert.ElementsMatch(t, []string{"ai-matching", "market-insights"}, keys)

	assert.NotContains(t, plans[3].Includes, "user-management")
}
