// AngelaMos | 2026
// service.go

package insights

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/carterperez-dev/marketplace-access/internal/access"
	"github.com/carterperez-dev/marketplace-access/internal/core"
)

const (
	DefaultWindowDays = 30
	MaxWindowDays     = 365
)

type SignupCounter interface {
	SignupsByRole(
		ctx context.Context,
		from, to time.Time,
	) (map[access.Role]int, error)
}

type RoleTrend struct {
	Role          access.Role `json:"role"`
	Current       int         `json:"current"`
	Previous      int         `json:"previous"`
	ChangePercent float64     `json:"change_percent"`
}

type SignupTrends struct {
	WindowDays int         `json:"window_days"`
	From       time.Time   `json:"from"`
	To         time.Time   `json:"to"`
	Roles      []RoleTrend `json:"roles"`
	Total      RoleTotals  `json:"total"`
}

type RoleTotals struct {
	Current       int     `json:"current"`
	Previous      int     `json:"previous"`
	ChangePercent float64 `json:"change_percent"`
}

type Service struct {
	counter SignupCounter
	now     func() time.Time
}

func NewService(counter SignupCounter) *Service {
	return &Service{counter: counter, now: time.Now}
}

// SignupTrends compares signups in the last windowDays against the window
// right before it.
func (s *Service) SignupTrends(
	ctx context.Context,
	windowDays int,
) (*SignupTrends, error) {
	if windowDays < 1 || windowDays > MaxWindowDays {
		return nil, fmt.Errorf(
			"signup trends: window must be 1..%d days: %w",
			MaxWindowDays,
			core.ErrInvalidInput,
		)
	}

	to := s.now().UTC()
	window := time.Duration(windowDays) * 24 * time.Hour
	from := to.Add(-window)
	prevFrom := from.Add(-window)

	current, err := s.counter.SignupsByRole(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("signup trends: %w", err)
	}
	previous, err := s.counter.SignupsByRole(ctx, prevFrom, from)
	if err != nil {
		return nil, fmt.Errorf("signup trends: %w", err)
	}

	trends := &SignupTrends{
		WindowDays: windowDays,
		From:       from,
		To:         to,
	}

	for _, role := range access.SignupRoles() {
		cur, prev := current[role], previous[role]
		trends.Roles = append(trends.Roles, RoleTrend{
			Role:          role,
			Current:       cur,
			Previous:      prev,
			ChangePercent: ChangePercent(cur, prev),
		})
		trends.Total.Current += cur
		trends.Total.Previous += prev
	}
	trends.Total.ChangePercent = ChangePercent(trends.Total.Current, trends.Total.Previous)

	return trends, nil
}

// ChangePercent is (current-previous)/previous*100 rounded to one decimal.
// With no previous value it is 100 when anything happened and 0 otherwise.
func ChangePercent(current, previous int) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	pct := float64(current-previous) / float64(previous) * 100
	return math.Round(pct*10) / 10
}
