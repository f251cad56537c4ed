// AngelaMos | 2026
// handler_test.go

package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/marketplace-access/internal/core"
)

func newTestRouter(t *testing.T) (http.Handler, *memUsers) {
	t.Helper()
	svc, users, _ := newTestService(t)
	r := chi.NewRouter()
	NewHandler(svc).RegisterRoutes(r, func(next http.Handler) http.Handler { return next })
	return r, users
}

func TestRegisterHandler_RoleValidation(t *testing.T) {
	tests := []struct {
		name   string
		role   string
		status int
	}{
		{"engineer", "engineer", http.StatusCreated},
		{"enterprise", "enterprise", http.StatusCreated},
		{"admin cannot self register", "admin", http.StatusBadRequest},
		{"missing role", "", http.StatusBadRequest},
		{"unknown role", "recruiter", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newTestRouter(t)
			body := `{"email":"x@example.com","password":"correct-horse","name":"x","role":"` + tt.role + `"}`

			req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestLoginHandler_ReturnsRedirect(t *testing.T) {
	router, users := newTestRouter(t)
	seedUser(t, users, "u1", "ent@example.com", "enterprise", "enterprise")

	body := `{"email":"ent@example.com","password":"correct-horse","next":"/enterprise/sso"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var envelope struct {
		Data AuthResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	assert.Equal(t, "/enterprise/sso", envelope.Data.RedirectTo)
	assert.Equal(t, "/enterprise", envelope.Data.User.LandingPath)
}

func TestLoginHandler_UnknownStoredRole(t *testing.T) {
	router, users := newTestRouter(t)
	seedUser(t, users, "u1", "odd@example.com", "superuser", "free")

	body := `{"email":"odd@example.com","password":"correct-horse"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRefreshHandler_ReuseRevokesFamily(t *testing.T) {
	router, users := newTestRouter(t)
	seedUser(t, users, "u1", "eng@example.com", "engineer", "free")

	post := func(path, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
		return rec
	}

	rec := post("/auth/login", `{"email":"eng@example.com","password":"correct-horse"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data AuthResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	refresh := fmt.Sprintf(`{"refresh_token":%q}`, envelope.Data.Tokens.RefreshToken)

	assert.Equal(t, http.StatusOK, post("/auth/refresh", refresh).Code)

	rec = post("/auth/refresh", refresh)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "TOKEN_REUSE_DETECTED")

	assert.Equal(t, http.StatusBadRequest, post("/auth/refresh", `{}`).Code)
}

func TestWriteAuthError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{ErrInvalidCredentials, http.StatusUnauthorized},
		{ErrEmailExists, http.StatusConflict},
		{fmt.Errorf("refresh: %w", core.ErrTokenExpired), http.StatusUnauthorized},
		{fmt.Errorf("register: %w", core.ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("logout: %w", core.ErrForbidden), http.StatusForbidden},
		{fmt.Errorf("get user: %w", core.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeAuthError(rec, tt.err)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestClientInfo(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.Header.Set("User-Agent", "accessctl")
	req.RemoteAddr = "10.0.0.9:5123"

	ua, ip := clientInfo(req)
	assert.Equal(t, "accessctl", ua)
	assert.Equal(t, "10.0.0.9", ip)

	req.Header.Set("X-Real-IP", "198.51.100.2")
	_, ip = clientInfo(req)
	assert.Equal(t, "198.51.100.2", ip)

	req.Header.Set("X-Forwarded-For", "203.0.113.5, 192.0.2.1")
	_, ip = clientInfo(req)
	assert.Equal(t, "192.0.2.1", ip)
}
