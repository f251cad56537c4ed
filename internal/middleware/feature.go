// AngelaMos | 2026
// feature.go

package middleware

import (
	"fmt"
	"net/http"

	"github.com/carterperez-dev/marketplace-access/internal/access"
	"github.com/carterperez-dev/marketplace-access/internal/core"
	"github.com/carterperez-dev/marketplace-access/internal/metrics"
)

// RequireFeature enforces the feature gate on an API route. It runs the same
// evaluation the front end uses to render locked menu items, so the two can
// never disagree. Must be mounted after Authenticator (and RefreshTier when
// billing changes should apply immediately).
func RequireFeature(
	resolver *access.Resolver,
	key string,
) func(http.Handler) http.Handler {
	if _, ok := resolver.Catalog().Feature(key); !ok {
		panic(fmt.Sprintf("middleware: unknown feature %q", key))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := SessionFromContext(r.Context())
			if !session.Authenticated() {
				core.JSONError(
					w,
					core.UnauthorizedError("authentication required"),
				)
				return
			}

			decision, _ := resolver.CheckFeature(session, key)
			metrics.RecordAccessDecision("enforce", string(decision.Outcome))

			switch decision.Outcome {
			case access.OutcomeAllowed:
				next.ServeHTTP(w, r)
			case access.OutcomeLocked:
				core.JSONError(w, core.UpgradeRequiredError(
					decision.Upgrade.Message,
					decision,
				))
			default:
				core.JSONError(w, core.FeatureUnavailableError(key))
			}
		})
	}
}
