// AngelaMos | 2026
// feature_test.go

package middleware

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/marketplace-access/internal/access"
)

func TestRequireFeature(t *testing.T) {
	resolver := access.NewResolver(nil)
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	gated := RequireFeature(resolver, "market-insights")(ok)
	h := OptionalAuth(newVerifier())(gated)

	tests := []struct {
		name   string
		token  string
		status int
		code   string
	}{
		{"anonymous", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"free engineer is locked", "eng-free", http.StatusForbidden, "UPGRADE_REQUIRED"},
		{"pro client", "client-pro", http.StatusOK, ""},
		{"enterprise tier", "enterprise1", http.StatusOK, ""},
		{"admin on free tier", "admin", http.StatusOK, ""},
		{"unknown tier fails closed", "weird-tier", http.StatusForbidden, "UPGRADE_REQUIRED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(h, tt.token)
			assert.Equal(t, tt.status, rec.Code)
			if tt.code != "" {
				assert.Equal(t, tt.code, errorCode(t, rec))
			}
		})
	}
}

func TestRequireFeature_UpgradeDetails(t *testing.T) {
	resolver := access.NewResolver(nil)
	h := OptionalAuth(newVerifier())(
		RequireFeature(resolver, "ai-matching")(http.NotFoundHandler()),
	)

	rec := doRequest(h, "eng-free")
	require.Equal(t, http.StatusForbidden, rec.Code)

	var body struct {
		Error struct {
			Code    string          `json:"code"`
			Details access.Decision `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "UPGRADE_REQUIRED", body.Error.Code)
	assert.Equal(t, access.OutcomeLocked, body.Error.Details.Outcome)
	require.NotNil(t, body.Error.Details.Upgrade)
	assert.Equal(t, "/pricing?plan=pro", body.Error.Details.Upgrade.CTAPath)
}

func TestRequireFeature_RoleNotOffered(t *testing.T) {
	resolver := access.NewResolver(nil)
	h := OptionalAuth(newVerifier())(
		RequireFeature(resolver, "post-job")(http.NotFoundHandler()),
	)

	rec := doRequest(h, "eng-free")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FEATURE_UNAVAILABLE", errorCode(t, rec))
}

func TestRequireFeature_UnknownKeyPanics(t *testing.T) {
	assert.Panics(t, func() {
		RequireFeature(access.NewResolver(nil), "does-not-exist")
	})
}
