// AngelaMos | 2026
// handler.go

package billing

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/carterperez-dev/marketplace-access/internal/core"
	"github.com/carterperez-dev/marketplace-access/internal/metrics"
	"github.com/carterperez-dev/marketplace-access/internal/middleware"
)

const maxWebhookBody = 1 << 20

type Handler struct {
	service          *Service
	webhookSecret    string
	webhookTolerance time.Duration
}

func NewHandler(
	service *Service,
	webhookSecret string,
	webhookTolerance time.Duration,
) *Handler {
	return &Handler{
		service:          service,
		webhookSecret:    webhookSecret,
		webhookTolerance: webhookTolerance,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/billing", func(r chi.Router) {
		r.Get("/plans", h.ListPlans)
		// Stripe authenticates with the signature header, not a bearer token.
		r.Post("/webhooks/stripe", h.StripeWebhook)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Get("/subscription", h.GetSubscription)
		})
	})
}

func (h *Handler) ListPlans(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, h.service.Plans())
}

func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	view, err := h.service.GetSubscription(r.Context(), userID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, view)
}

func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	if strings.TrimSpace(h.webhookSecret) == "" {
		core.JSONError(w, core.NewAppError(
			nil,
			"stripe webhook not configured",
			http.StatusServiceUnavailable,
			"WEBHOOK_NOT_CONFIGURED",
		))
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		core.BadRequest(w, "missing Stripe-Signature header")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		core.BadRequest(w, "failed to read request body")
		return
	}

	evt, err := webhook.ConstructEventWithTolerance(
		body,
		sigHeader,
		h.webhookSecret,
		h.webhookTolerance,
	)
	if err != nil {
		metrics.RecordWebhookEvent("unknown", "invalid_signature")
		core.BadRequest(w, "invalid signature")
		return
	}

	evtType := string(evt.Type)
	slog.InfoContext(r.Context(), "billing provider event received",
		"provider", ProviderStripe,
		"provider_event_id", evt.ID,
		"event_type", evtType,
		"occurred_at", time.Unix(evt.Created, 0).UTC().Format(time.RFC3339),
	)

	result, err := h.service.HandleStripeEvent(r.Context(), evt, body)
	if err != nil {
		metrics.RecordWebhookEvent(evtType, "error")
		core.InternalServerError(w, err)
		return
	}

	metrics.RecordWebhookEvent(evtType, string(result))
	core.OK(w, map[string]string{"status": string(result)})
}
