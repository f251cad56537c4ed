// AngelaMos | 2026
// service_test.go

package user

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/marketplace-access/internal/access"
	"github.com/carterperez-dev/marketplace-access/internal/core"
	"github.com/carterperez-dev/marketplace-access/internal/events"
)

type memRepo struct {
	mu          sync.Mutex
	users       map[string]*User
	tierWrites  int
	signupRows  []SignupCount
	failUpdates error
	racingTier  string
}

func newMemRepo(users ...*User) *memRepo {
	r := &memRepo{users: make(map[string]*User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *memRepo) Create(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return core.ErrDuplicateKey
		}
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.IsDeleted() {
		return nil, core.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email && !u.IsDeleted() {
			cp := *u
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (r *memRepo) Update(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[u.ID]
	if !ok {
		return core.ErrNotFound
	}
	stored.Name = u.Name
	stored.Role = u.Role
	return nil
}

func (r *memRepo) UpdateTier(_ context.Context, id, tier string) (TierWrite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdates != nil {
		return TierWrite{}, r.failUpdates
	}
	stored, ok := r.users[id]
	if !ok {
		return TierWrite{}, core.ErrNotFound
	}
	if r.racingTier != "" {
		stored.Tier = r.racingTier
	}
	r.tierWrites++
	previous := stored.Tier
	stored.Tier = tier
	stored.UpdatedAt = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	return TierWrite{PreviousTier: previous, UpdatedAt: stored.UpdatedAt}, nil
}

func (r *memRepo) UpdatePassword(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[id].PasswordHash = hash
	return nil
}

func (r *memRepo) IncrementTokenVersion(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[id].TokenVersion++
	return nil
}

func (r *memRepo) SoftDelete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return core.ErrNotFound
	}
	now := time.Now()
	u.DeletedAt = &now
	return nil
}

func (r *memRepo) List(_ context.Context, params ListUsersParams) ([]User, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []User
	for _, u := range r.users {
		if params.Role != "" && u.Role != params.Role {
			continue
		}
		if params.Tier != "" && u.Tier != params.Tier {
			continue
		}
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (r *memRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	return err == nil, nil
}

func (r *memRepo) CountSignupsByRole(context.Context, time.Time, time.Time) ([]SignupCount, error) {
	return r.signupRows, nil
}

type memCache struct {
	mu      sync.Mutex
	tiers   map[string]access.Tier
	getErr  error
	deletes int
}

func newMemCache() *memCache {
	return &memCache{tiers: make(map[string]access.Tier)}
}

func (c *memCache) Get(_ context.Context, id string) (access.Tier, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return "", false, c.getErr
	}
	t, ok := c.tiers[id]
	return t, ok, nil
}

func (c *memCache) Set(_ context.Context, id string, tier access.Tier) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tiers[id] = tier
	return nil
}

func (c *memCache) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	delete(c.tiers, id)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.TierChanged
	err    error
}

func (p *recordingPublisher) PublishTierChanged(_ context.Context, e events.TierChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func engineer(tier string) *User {
	return &User{ID: "u1", Email: "eng@example.com", Name: "eng", Role: "engineer", Tier: tier}
}

func TestSetTier_ChangePublishesOnceAndInvalidatesCache(t *testing.T) {
	repo := newMemRepo(engineer("free"))
	cache := newMemCache()
	pub := &recordingPublisher{}
	svc := NewService(repo, cache, pub)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "u1", access.TierFree))

	u, err := svc.SetTier(ctx, "u1", access.TierPro, events.SourceBilling)
	require.NoError(t, err)
	assert.Equal(t, "pro", u.Tier)

	require.Len(t, pub.events, 1)
	e := pub.events[0]
	assert.Equal(t, access.TierFree, e.PreviousTier)
	assert.Equal(t, access.TierPro, e.NewTier)
	assert.Equal(t, events.SourceBilling, e.Source)
	assert.NotEmpty(t, e.EventID)

	_, cached, err := cache.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, cached)

	tier, err := svc.CurrentTier(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, access.TierPro, tier)
}

func TestSetTier_SameTierIsNoop(t *testing.T) {
	repo := newMemRepo(engineer("basic"))
	pub := &recordingPublisher{}
	svc := NewService(repo, nil, pub)

	_, err := svc.SetTier(context.Background(), "u1", access.TierBasic, events.SourceAdmin)
	require.NoError(t, err)

	assert.Zero(t, repo.tierWrites)
	assert.Empty(t, pub.events)
}

func TestSetTier_CanonicalizesStoredValueWithoutEvent(t *testing.T) {
	repo := newMemRepo(engineer(" PRO "))
	pub := &recordingPublisher{}
	svc := NewService(repo, nil, pub)

	u, err := svc.SetTier(context.Background(), "u1", access.TierPro, events.SourceAdmin)
	require.NoError(t, err)

	assert.Equal(t, "pro", u.Tier)
	assert.Equal(t, 1, repo.tierWrites)
	assert.Empty(t, pub.events)
}

func TestSetTier_EventCarriesTierReplacedByWrite(t *testing.T) {
	repo := newMemRepo(engineer("free"))
	repo.racingTier = "basic"
	pub := &recordingPublisher{}
	svc := NewService(repo, nil, pub)

	_, err := svc.SetTier(context.Background(), "u1", access.TierPro, events.SourceBilling)
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	assert.Equal(t, access.TierBasic, pub.events[0].PreviousTier)
	assert.Equal(t, access.TierPro, pub.events[0].NewTier)
}

func TestSetTier_ConcurrentWriteToSameTierPublishesNothing(t *testing.T) {
	repo := newMemRepo(engineer("free"))
	repo.racingTier = "pro"
	pub := &recordingPublisher{}
	svc := NewService(repo, nil, pub)

	u, err := svc.SetTier(context.Background(), "u1", access.TierPro, events.SourceAdmin)
	require.NoError(t, err)
	assert.Equal(t, "pro", u.Tier)
	assert.Empty(t, pub.events)
}

func TestSetTier_RejectsInvalidTier(t *testing.T) {
	svc := NewService(newMemRepo(engineer("free")), nil, nil)

	_, err := svc.SetTier(context.Background(), "u1", access.Tier("gold"), events.SourceAdmin)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestSetTier_PublishFailureDoesNotFailWrite(t *testing.T) {
	repo := newMemRepo(engineer("free"))
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewService(repo, nil, pub)

	u, err := svc.SetTier(context.Background(), "u1", access.TierEnterprise, events.SourceBilling)
	require.NoError(t, err)
	assert.Equal(t, "enterprise", u.Tier)
	assert.Len(t, pub.events, 1)
}

func TestSetTier_RepositoryErrorPublishesNothing(t *testing.T) {
	repo := newMemRepo(engineer("free"))
	repo.failUpdates = errors.New("db down")
	pub := &recordingPublisher{}
	svc := NewService(repo, nil, pub)

	_, err := svc.SetTier(context.Background(), "u1", access.TierPro, events.SourceBilling)
	require.Error(t, err)
	assert.Empty(t, pub.events)
}

func TestUpdateUserTier_StrictParsing(t *testing.T) {
	repo := newMemRepo(engineer("pro"))
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.UpdateUserTier(ctx, "u1", "platinum")
	require.ErrorIs(t, err, core.ErrInvalidInput)

	u, err := svc.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "pro", u.Tier, "a rejected tier must not downgrade the account")

	u, err = svc.UpdateUserTier(ctx, "u1", "Enterprise")
	require.NoError(t, err)
	assert.Equal(t, "enterprise", u.Tier)
}

func TestCurrentTier_ReadThroughCache(t *testing.T) {
	repo := newMemRepo(engineer("basic"))
	cache := newMemCache()
	svc := NewService(repo, cache, nil)
	ctx := context.Background()

	tier, err := svc.CurrentTier(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, access.TierBasic, tier)

	cached, ok, err := cache.Get(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, access.TierBasic, cached)
}

func TestCurrentTier_CacheFailureFallsBackToRepository(t *testing.T) {
	cache := newMemCache()
	cache.getErr = errors.New("redis down")
	svc := NewService(newMemRepo(engineer("enterprise")), cache, nil)

	tier, err := svc.CurrentTier(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, access.TierEnterprise, tier)
}

func TestCurrentTier_UnknownStoredTierIsFree(t *testing.T) {
	svc := NewService(newMemRepo(engineer("diamond")), nil, nil)

	tier, err := svc.CurrentTier(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, access.TierFree, tier)
}

func TestCreate_OnlySignupRoles(t *testing.T) {
	svc := NewService(newMemRepo(), nil, nil)
	ctx := context.Background()

	info, err := svc.Create(ctx, "New@Example.com", "hash", "new", access.RoleClient)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", info.Email)
	assert.Equal(t, "client", info.Role)
	assert.Equal(t, "free", info.Tier)

	_, err = svc.Create(ctx, "root@example.com", "hash", "root", access.RoleAdmin)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestUpdateUserRole_BumpsTokenVersion(t *testing.T) {
	repo := newMemRepo(engineer("free"))
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	u, err := svc.UpdateUserRole(ctx, "u1", "client")
	require.NoError(t, err)
	assert.Equal(t, "client", u.Role)
	assert.Equal(t, 1, repo.users["u1"].TokenVersion)

	_, err = svc.UpdateUserRole(ctx, "u1", "client")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.users["u1"].TokenVersion)

	_, err = svc.UpdateUserRole(ctx, "u1", "wizard")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestListUsers_ValidatesFilters(t *testing.T) {
	repo := newMemRepo(engineer("pro"))
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	users, total, err := svc.ListUsers(ctx, ListUsersParams{Role: "Engineer", Tier: "PRO"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, users, 1)

	_, _, err = svc.ListUsers(ctx, ListUsersParams{Tier: "gold"})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, _, err = svc.ListUsers(ctx, ListUsersParams{Role: "wizard"})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestSignupsByRole_FillsMissingRoles(t *testing.T) {
	repo := newMemRepo()
	repo.signupRows = []SignupCount{
		{Role: "engineer", Count: 7},
		{Role: "CLIENT", Count: 2},
		{Role: "legacy", Count: 9},
	}
	svc := NewService(repo, nil, nil)

	counts, err := svc.SignupsByRole(context.Background(), time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)

	assert.Equal(t, map[access.Role]int{
		access.RoleEngineer:   7,
		access.RoleClient:     2,
		access.RoleEnterprise: 0,
		access.RoleAdmin:      0,
	}, counts)
}

func TestToUserResponse_IncludesLanding(t *testing.T) {
	resolver := access.NewResolver(nil)

	resp := ToUserResponse(&User{ID: "u1", Role: "enterprise", Tier: "basic"}, resolver)
	assert.Equal(t, "/enterprise", resp.LandingPath)
	assert.Equal(t, access.TierBasic, resp.Tier)

	resp = ToUserResponse(&User{ID: "u2", Role: "unknown", Tier: "pro"}, resolver)
	assert.Equal(t, access.AuthEntryPath, resp.LandingPath)
}
