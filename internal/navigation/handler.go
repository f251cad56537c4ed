// AngelaMos | 2026
// handler.go

package navigation

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/marketplace-access/internal/access"
	"github.com/carterperez-dev/marketplace-access/internal/core"
	"github.com/carterperez-dev/marketplace-access/internal/metrics"
	"github.com/carterperez-dev/marketplace-access/internal/middleware"
)

const maxPathLength = 2048

type Handler struct {
	resolver *access.Resolver
}

func NewHandler(resolver *access.Resolver) *Handler {
	if resolver == nil {
		resolver = access.NewResolver(nil)
	}
	return &Handler{resolver: resolver}
}

type LandingResponse struct {
	Path          string      `json:"path"`
	Authenticated bool        `json:"authenticated"`
	Role          access.Role `json:"role,omitempty"`
	Tier          access.Tier `json:"tier,omitempty"`
}

type NavigationResponse struct {
	Role    access.Role       `json:"role"`
	Tier    access.Tier       `json:"tier"`
	Landing string            `json:"landing"`
	Items   []access.MenuItem `json:"items"`
}

// RegisterRoutes mounts the access API. optionalAuth must attach a session
// when a valid token is present and let anonymous callers through, since
// anonymous callers get redirect answers rather than errors.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	optionalAuth func(http.Handler) http.Handler,
) {
	r.Route("/access", func(r chi.Router) {
		r.Use(optionalAuth)

		r.Get("/landing", h.Landing)
		r.Get("/navigation", h.Navigation)
		r.Get("/resolve", h.Resolve)
		r.Get("/features/{key}", h.Feature)
	})
}

func (h *Handler) Landing(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())
	path := h.resolver.Landing(session)

	outcome := "dashboard"
	if path == access.AuthEntryPath {
		outcome = "auth"
	}
	metrics.RecordAccessDecision("landing", outcome)

	resp := LandingResponse{
		Path:          path,
		Authenticated: session.Authenticated(),
	}
	if session.Authenticated() {
		resp.Role = session.Role
		resp.Tier = session.Tier
	}

	core.OK(w, resp)
}

func (h *Handler) Navigation(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())
	if !session.Authenticated() {
		core.Unauthorized(w, "")
		return
	}

	items := h.resolver.Navigation(session)
	if items == nil {
		items = []access.MenuItem{}
	}

	core.OK(w, NavigationResponse{
		Role:    session.Role,
		Tier:    session.Tier,
		Landing: h.resolver.Landing(session),
		Items:   items,
	})
}

func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if path == "" {
		core.BadRequest(w, "path is required")
		return
	}
	if len(path) > maxPathLength {
		core.BadRequest(w, "path is too long")
		return
	}

	session := middleware.SessionFromContext(r.Context())
	decision := h.resolver.ResolvePath(session, path)
	metrics.RecordAccessDecision("route", string(decision.Outcome))

	core.OK(w, decision)
}

func (h *Handler) Feature(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	session := middleware.SessionFromContext(r.Context())
	if !session.Authenticated() {
		core.Unauthorized(w, "")
		return
	}

	decision, ok := h.resolver.CheckFeature(session, key)
	if !ok {
		core.NotFound(w, "feature")
		return
	}
	metrics.RecordAccessDecision("feature", string(decision.Outcome))

	core.OK(w, decision)
}
