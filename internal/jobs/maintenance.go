// AngelaMos | 2026
// maintenance.go

package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/carterperez-dev/marketplace-access/internal/config"
)

const (
	JobPurgeTokens     = "purge-expired-tokens"
	JobDowngradeLapsed = "downgrade-lapsed-subscriptions"
)

type TokenPurger interface {
	PurgeExpiredTokens(ctx context.Context) (int64, error)
}

type LapseDowngrader interface {
	DowngradeLapsed(ctx context.Context, now time.Time) (int, error)
}

// RegisterMaintenance adds the token purge and lapsed subscription jobs.
func RegisterMaintenance(
	s *Scheduler,
	cfg config.JobsConfig,
	tokens TokenPurger,
	billing LapseDowngrader,
) error {
	if err := s.Register(Job{
		Name:     JobPurgeTokens,
		Schedule: cfg.TokenPurgeSchedule,
		Run: func(ctx context.Context) error {
			n, err := tokens.PurgeExpiredTokens(ctx)
			if err != nil {
				return err
			}
			slog.InfoContext(ctx, "expired refresh tokens purged", "count", n)
			return nil
		},
	}); err != nil {
		return err
	}

	return s.Register(Job{
		Name:     JobDowngradeLapsed,
		Schedule: cfg.DowngradeSchedule,
		Run: func(ctx context.Context) error {
			n, err := billing.DowngradeLapsed(ctx, time.Now())
			if err != nil {
				return err
			}
			if n > 0 {
				slog.InfoContext(ctx, "lapsed subscriptions downgraded", "count", n)
			}
			return nil
		},
	})
}
