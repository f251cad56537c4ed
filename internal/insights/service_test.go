// AngelaMos | 2026
// service_test.go

package insights

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/marketplace-access/internal/access"
	"github.com/carterperez-dev/marketplace-access/internal/core"
	"github.com/carterperez-dev/marketplace-access/internal/middleware"
)

type windowCounter struct {
	boundary time.Time
	current  map[access.Role]int
	previous map[access.Role]int
	err      error
	calls    [][2]time.Time
}

func (c *windowCounter) SignupsByRole(
	_ context.Context,
	from, to time.Time,
) (map[access.Role]int, error) {
	c.calls = append(c.calls, [2]time.Time{from, to})
	if c.err != nil {
		return nil, c.err
	}
	if from.Equal(c.boundary) {
		return c.current, nil
	}
	return c.previous, nil
}

func TestChangePercent(t *testing.T) {
	tests := []struct {
		name     string
		current  int
		previous int
		want     float64
	}{
		{"growth", 15, 10, 50},
		{"decline", 5, 10, -50},
		{"flat", 10, 10, 0},
		{"rounds to one decimal", 2, 3, -33.3},
		{"rounds up", 5, 3, 66.7},
		{"from zero", 4, 0, 100},
		{"zero to zero", 0, 0, 0},
		{"to zero", 0, 7, -100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ChangePercent(tt.current, tt.previous), 1e-9)
		})
	}
}

func newFixedService(counter *windowCounter, now time.Time) *Service {
	svc := NewService(counter)
	svc.now = func() time.Time { return now }
	return svc
}

func TestSignupTrends(t *testing.T) {
	now := time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC)
	counter := &windowCounter{
		boundary: now.Add(-7 * 24 * time.Hour),
		current:  map[access.Role]int{access.RoleEngineer: 12, access.RoleClient: 3, access.RoleAdmin: 1},
		previous: map[access.Role]int{access.RoleEngineer: 8, access.RoleEnterprise: 2},
	}

	trends, err := newFixedService(counter, now).SignupTrends(context.Background(), 7)
	require.NoError(t, err)

	require.Len(t, counter.calls, 2)
	assert.Equal(t, counter.calls[0][0], counter.calls[1][1], "windows are adjacent")
	assert.Equal(t, 7, trends.WindowDays)

	byRole := make(map[access.Role]RoleTrend)
	for _, rt := range trends.Roles {
		byRole[rt.Role] = rt
	}
	assert.Len(t, byRole, 3, "admins are not a marketplace segment")
	assert.InDelta(t, 50.0, byRole[access.RoleEngineer].ChangePercent, 1e-9)
	assert.InDelta(t, 100.0, byRole[access.RoleClient].ChangePercent, 1e-9)
	assert.InDelta(t, -100.0, byRole[access.RoleEnterprise].ChangePercent, 1e-9)

	assert.Equal(t, 15, trends.Total.Current)
	assert.Equal(t, 10, trends.Total.Previous)
	assert.InDelta(t, 50.0, trends.Total.ChangePercent, 1e-9)
}

func TestSignupTrends_WindowBounds(t *testing.T) {
	svc := NewService(&windowCounter{})

	for _, days := range []int{0, -1, 366} {
		_, err := svc.SignupTrends(context.Background(), days)
		assert.ErrorIs(t, err, core.ErrInvalidInput, "days=%d", days)
	}
}

func TestSignupTrends_CounterError(t *testing.T) {
	boom := errors.New("db down")
	_, err := NewService(&windowCounter{err: boom}).SignupTrends(context.Background(), 30)
	assert.ErrorIs(t, err, boom)
}

func sessionAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := r.Header.Get("X-User"); id != "" {
			ctx = context.WithValue(ctx, middleware.UserIDKey, id)
			ctx = context.WithValue(ctx, middleware.UserRoleKey, r.Header.Get("X-Role"))
			ctx = context.WithValue(ctx, middleware.UserTierKey, r.Header.Get("X-Tier"))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func TestSignupsHandler_GatedByTier(t *testing.T) {
	now := time.Now().UTC()
	counter := &windowCounter{boundary: now, current: map[access.Role]int{}, previous: map[access.Role]int{}}
	h := NewHandler(NewService(counter), access.NewResolver(nil))

	r := chi.NewRouter()
	h.RegisterRoutes(r, sessionAuth)

	tests := []struct {
		name   string
		role   string
		tier   string
		query  string
		status int
	}{
		{"anonymous", "", "", "", http.StatusUnauthorized},
		{"basic engineer locked", "engineer", "basic", "", http.StatusForbidden},
		{"pro client", "client", "pro", "", http.StatusOK},
		{"admin on free", "admin", "free", "", http.StatusOK},
		{"bad days", "client", "pro", "?days=abc", http.StatusBadRequest},
		{"days too large", "client", "enterprise", "?days=400", http.StatusBadRequest},
		{"explicit days", "enterprise", "enterprise", "?days=90", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/insights/signups"+tt.query, nil)
			if tt.role != "" {
				req.Header.Set("X-User", "u1")
				req.Header.Set("X-Role", tt.role)
				req.Header.Set("X-Tier", tt.tier)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status == http.StatusOK {
				var body struct {
					Data SignupTrends `json:"data"`
				}
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.Len(t, body.Data.Roles, 3)
			}
		})
	}
}
