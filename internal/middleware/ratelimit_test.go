// AngelaMos | 2026
// ratelimit_test.go

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/marketplace-access/internal/access"
	"github.com/carterperez-dev/marketplace-access/internal/config"
)

// unreachableRedis forces every limiter onto the in-process fallback.
func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestTierLimitsFromConfig(t *testing.T) {
	limits := TierLimitsFromConfig(config.RateLimitConfig{
		Tiers: map[string]config.TierLimitConfig{
			"free":    {RequestsPerMinute: 60, Burst: 10},
			"PRO":     {RequestsPerMinute: 600, Burst: 100},
			"premium": {RequestsPerMinute: 1, Burst: 1},
		},
	})

	require.Len(t, limits, 2)
	assert.Equal(t, 600, limits[access.TierPro].RequestsPerMinute)
	_, ok := limits[access.Tier("premium")]
	assert.False(t, ok)
}

func TestLimitForTier_FallsBackDownward(t *testing.T) {
	limits := map[access.Tier]TierLimit{
		access.TierFree: {RequestsPerMinute: 60, Burst: 10},
		access.TierPro:  {RequestsPerMinute: 600, Burst: 100},
	}

	assert.Equal(t, 60, limitForTier(limits, access.TierBasic).RequestsPerMinute)
	assert.Equal(t, 600, limitForTier(limits, access.TierEnterprise).RequestsPerMinute)
	assert.Equal(t, 60, limitForTier(limits, access.Tier("gold")).RequestsPerMinute)
}

func TestTieredRateLimiter(t *testing.T) {
	limits := map[access.Tier]TierLimit{
		access.TierFree: {RequestsPerMinute: 1, Burst: 1},
		access.TierPro:  {RequestsPerMinute: 600, Burst: 100},
	}
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := OptionalAuth(newVerifier())(
		TieredRateLimiter(unreachableRedis(t), limits)(ok),
	)

	first := doRequest(h, "weird-tier")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "free", first.Header().Get("X-RateLimit-Tier"))

	second := doRequest(h, "weird-tier")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))

	for range 5 {
		rec := doRequest(h, "client-pro")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "pro", rec.Header().Get("X-RateLimit-Tier"))
	}

	anon := doRequest(h, "")
	assert.Equal(t, http.StatusOK, anon.Code)
	assert.Empty(t, anon.Header().Get("X-RateLimit-Tier"))
}

func TestRateLimiter_ByIP(t *testing.T) {
	rl := NewRateLimiter(unreachableRedis(t), RateLimitConfig{
		Limit:    PerMinute(1, 1),
		FailOpen: true,
	})
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := func(ip string) int {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, req("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, req("10.0.0.1"))
	assert.Equal(t, http.StatusOK, req("10.0.0.2"))
}

func TestKeyByIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-For", "1.1.1.1, 2.2.2.2")
	assert.Equal(t, "ratelimit:ip:2.2.2.2", KeyByIP(r))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "3.3.3.3:1234"
	assert.Equal(t, "ratelimit:ip:3.3.3.3", KeyByIP(r))
}
