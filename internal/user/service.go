// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/marketplace-access/internal/access"
	"github.com/carterperez-dev/marketplace-access/internal/auth"
	"github.com/carterperez-dev/marketplace-access/internal/core"
	"github.com/carterperez-dev/marketplace-access/internal/events"
	"github.com/carterperez-dev/marketplace-access/internal/metrics"
)

type Service struct {
	repo      Repository
	cache     TierCache
	publisher events.Publisher
	now       func() time.Time
}

// NewService wires the user service. A nil cache or publisher disables that
// concern.
func NewService(
	repo Repository,
	cache TierCache,
	publisher events.Publisher,
) *Service {
	if cache == nil {
		cache = noopTierCache{}
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		now:       time.Now,
	}
}

func (s *Service) GetByID(
	ctx context.Context,
	id string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) GetByEmail(
	ctx context.Context,
	email string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

// Create registers a new account on the free tier. Only signup roles are
// accepted; admins are promoted by another admin.
func (s *Service) Create(
	ctx context.Context,
	email, passwordHash, name string,
	role access.Role,
) (*auth.UserInfo, error) {
	if !isSignupRole(role) {
		return nil, fmt.Errorf(
			"create user: role %q not allowed at signup: %w",
			role,
			core.ErrInvalidInput,
		)
	}

	user := &User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(email),
		PasswordHash: passwordHash,
		Name:         name,
		Role:         string(role),
		Tier:         string(access.TierFree),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) IncrementTokenVersion(
	ctx context.Context,
	userID string,
) error {
	return s.repo.IncrementTokenVersion(ctx, userID)
}

func (s *Service) UpdatePassword(
	ctx context.Context,
	userID, passwordHash string,
) error {
	return s.repo.UpdatePassword(ctx, userID, passwordHash)
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateUser(
	ctx context.Context,
	id string,
	req UpdateUserRequest,
) (*User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = *req.Name
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// UpdateUserRole changes the role and bumps the token version, so sessions
// issued for the old role (and its dashboard shell) stop working.
func (s *Service) UpdateUserRole(
	ctx context.Context,
	id, role string,
) (*User, error) {
	parsed, ok := access.ParseRole(role)
	if !ok {
		return nil, fmt.Errorf(
			"update role: invalid role %q: %w",
			role,
			core.ErrInvalidInput,
		)
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if user.AccessRole() == parsed {
		return user, nil
	}

	user.Role = string(parsed)

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	if err := s.repo.IncrementTokenVersion(ctx, id); err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}

	return user, nil
}

// UpdateUserTier is the admin override. Unknown tiers are rejected rather
// than normalized so a typo never downgrades a paying account.
func (s *Service) UpdateUserTier(
	ctx context.Context,
	id, tier string,
) (*User, error) {
	parsed, err := access.ParseTier(tier)
	if err != nil {
		return nil, fmt.Errorf("update tier: %w: %w", err, core.ErrInvalidInput)
	}

	return s.SetTier(ctx, id, parsed, events.SourceAdmin)
}

// SetTier is the single write path for a user's subscription tier. Writing
// the tier the user already has is a no-op. A real change invalidates the
// cached tier and publishes exactly one TierChanged event.
func (s *Service) SetTier(
	ctx context.Context,
	id string,
	tier access.Tier,
	source string,
) (*User, error) {
	if !tier.Valid() {
		return nil, fmt.Errorf(
			"set tier: invalid tier %q: %w",
			tier,
			core.ErrInvalidInput,
		)
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if user.Tier == string(tier) {
		return user, nil
	}

	written, err := s.repo.UpdateTier(ctx, id, string(tier))
	if err != nil {
		return nil, err
	}
	previous := access.NormalizeTier(written.PreviousTier)
	user.Tier = string(tier)
	user.UpdatedAt = written.UpdatedAt

	if err := s.cache.Delete(ctx, id); err != nil {
		slog.WarnContext(ctx, "tier cache invalidation failed",
			"user_id", id,
			"error", err,
		)
	}

	if previous == tier {
		return user, nil
	}

	event := events.TierChanged{
		EventID:      uuid.New().String(),
		UserID:       id,
		PreviousTier: previous,
		NewTier:      tier,
		Source:       source,
		OccurredAt:   s.now().UTC(),
	}
	metrics.RecordTierChange(source, event.Direction())
	core.AddSpanEvent(ctx, "tier.changed",
		attribute.String("tier.previous", string(previous)),
		attribute.String("tier.new", string(tier)),
		attribute.String("tier.source", source),
	)

	if err := s.publisher.PublishTierChanged(ctx, event); err != nil {
		slog.ErrorContext(ctx, "publish tier change failed",
			"user_id", id,
			"event_id", event.EventID,
			"error", err,
		)
	}

	slog.InfoContext(ctx, "tier changed",
		"user_id", id,
		"from", previous,
		"to", tier,
		"source", source,
	)

	return user, nil
}

// CurrentTier reads through the tier cache. A cache failure falls back to
// the database.
func (s *Service) CurrentTier(
	ctx context.Context,
	userID string,
) (access.Tier, error) {
	tier, ok, err := s.cache.Get(ctx, userID)
	if err != nil {
		slog.WarnContext(ctx, "tier cache read failed",
			"user_id", userID,
			"error", err,
		)
	}
	if ok {
		return tier, nil
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("current tier: %w", err)
	}

	tier = user.AccessTier()
	if err := s.cache.Set(ctx, userID, tier); err != nil {
		slog.WarnContext(ctx, "tier cache write failed",
			"user_id", userID,
			"error", err,
		)
	}

	return tier, nil
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	//nolint:errcheck // entry expires on its own
	_ = s.cache.Delete(ctx, id)
	return nil
}

func (s *Service) ListUsers(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	if params.Role != "" {
		role, ok := access.ParseRole(params.Role)
		if !ok {
			return nil, 0, fmt.Errorf(
				"list users: invalid role filter %q: %w",
				params.Role,
				core.ErrInvalidInput,
			)
		}
		params.Role = string(role)
	}

	if params.Tier != "" {
		tier, err := access.ParseTier(params.Tier)
		if err != nil {
			return nil, 0, fmt.Errorf("list users: %w: %w", err, core.ErrInvalidInput)
		}
		params.Tier = string(tier)
	}

	return s.repo.List(ctx, params)
}

// SignupsByRole counts signups in [from, to) for every known role. Roles with
// no signups are present with zero.
func (s *Service) SignupsByRole(
	ctx context.Context,
	from, to time.Time,
) (map[access.Role]int, error) {
	rows, err := s.repo.CountSignupsByRole(ctx, from, to)
	if err != nil {
		return nil, err
	}

	out := make(map[access.Role]int, len(access.Roles()))
	for _, r := range access.Roles() {
		out[r] = 0
	}
	for _, row := range rows {
		if role, ok := access.ParseRole(row.Role); ok {
			out[role] += row.Count
		}
	}
	return out, nil
}

func (s *Service) GetMe(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("get me: %w", core.ErrUnauthorized)
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (s *Service) UpdateMe(
	ctx context.Context,
	userID string,
	req UpdateUserRequest,
) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("update me: %w", core.ErrUnauthorized)
	}

	return s.UpdateUser(ctx, userID, req)
}

func (s *Service) DeleteMe(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("delete me: %w", core.ErrUnauthorized)
	}

	return s.DeleteUser(ctx, userID)
}

func (s *Service) CanDeleteUser(
	ctx context.Context,
	requesterID, targetID string,
) error {
	if requesterID == targetID {
		return nil
	}

	requester, err := s.repo.GetByID(ctx, requesterID)
	if err != nil {
		return err
	}

	if !requester.IsAdmin() {
		return fmt.Errorf("delete user: %w", core.ErrForbidden)
	}

	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return err
	}

	if target.IsAdmin() {
		return fmt.Errorf("cannot delete admin users: %w", core.ErrForbidden)
	}

	return nil
}

func isSignupRole(role access.Role) bool {
	for _, r := range access.SignupRoles() {
		if r == role {
			return true
		}
	}
	return false
}

func toUserInfo(u *User) *auth.UserInfo {
	return &auth.UserInfo{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		Tier:         u.Tier,
		TokenVersion: u.TokenVersion,
	}
}

var _ auth.UserProvider = (*Service)(nil)
