// AngelaMos | 2026
// handler.go

package insights

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/marketplace-access/internal/access"
	"github.com/carterperez-dev/marketplace-access/internal/core"
	"github.com/carterperez-dev/marketplace-access/internal/middleware"
)

const FeatureKey = "market-insights"

type Handler struct {
	service  *Service
	resolver *access.Resolver
}

func NewHandler(service *Service, resolver *access.Resolver) *Handler {
	return &Handler{service: service, resolver: resolver}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/insights", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(middleware.RequireFeature(h.resolver, FeatureKey))

		r.Get("/signups", h.Signups)
	})
}

func (h *Handler) Signups(w http.ResponseWriter, r *http.Request) {
	days := DefaultWindowDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			core.BadRequest(w, "days must be an integer")
			return
		}
		days = parsed
	}

	trends, err := h.service.SignupTrends(r.Context(), days)
	if err != nil {
		if errors.Is(err, core.ErrInvalidInput) {
			core.BadRequest(w, "days must be between 1 and 365")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, trends)
}
