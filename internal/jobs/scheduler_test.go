// AngelaMos | 2026
// scheduler_test.go

package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/marketplace-access/internal/config"
	"github.com/carterperez-dev/marketplace-access/internal/core"
)

func noop(context.Context) error { return nil }

func TestRegister_Validation(t *testing.T) {
	s := NewScheduler(nil)

	tests := []struct {
		name string
		job  Job
	}{
		{"missing name", Job{Schedule: "@hourly", Run: noop}},
		{"missing run", Job{Name: "x", Schedule: "@hourly"}},
		{"bad schedule", Job{Name: "x", Schedule: "every tuesday", Run: noop}},
		{"six fields", Job{Name: "x", Schedule: "0 0 * * * *", Run: noop}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, s.Register(tt.job))
		})
	}
}

func TestRegister_Duplicate(t *testing.T) {
	s := NewScheduler(nil)

	require.NoError(t, s.Register(Job{Name: "purge", Schedule: "@hourly", Run: noop}))
	assert.Error(t, s.Register(Job{Name: "purge", Schedule: "@daily", Run: noop}))
}

func TestRunNow(t *testing.T) {
	s := NewScheduler(nil)
	boom := errors.New("boom")

	calls := 0
	require.NoError(t, s.Register(Job{
		Name:     "ok",
		Schedule: "@hourly",
		Run: func(ctx context.Context) error {
			calls++
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			return nil
		},
	}))
	require.NoError(t, s.Register(Job{
		Name:     "fails",
		Schedule: "@hourly",
		Run:      func(context.Context) error { return boom },
	}))

	require.NoError(t, s.RunNow(context.Background(), "ok"))
	assert.Equal(t, 1, calls)

	assert.ErrorIs(t, s.RunNow(context.Background(), "fails"), boom)
	assert.ErrorIs(t, s.RunNow(context.Background(), "missing"), core.ErrNotFound)
}

func TestRunNow_Timeout(t *testing.T) {
	s := NewScheduler(nil)
	require.NoError(t, s.Register(Job{
		Name:     "slow",
		Schedule: "@hourly",
		Timeout:  10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}))

	assert.ErrorIs(t, s.RunNow(context.Background(), "slow"), context.DeadlineExceeded)
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(nil)
	require.NoError(t, s.Register(Job{Name: "purge", Schedule: "@hourly", Run: noop}))

	s.Start()
	s.Start()

	next, ok := s.NextRun("purge")
	require.True(t, ok)
	assert.True(t, next.After(time.Now()))

	_, ok = s.NextRun("missing")
	assert.False(t, ok)

	require.NoError(t, s.Register(Job{Name: "archive", Schedule: "@daily", Run: noop}))
	statuses := s.Jobs()
	require.Len(t, statuses, 2)
	assert.Equal(t, "archive", statuses[0].Name)
	assert.Equal(t, "@daily", statuses[0].Schedule)
	assert.Equal(t, next, statuses[1].NextRun)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
}

type fakePurger struct {
	n   int64
	err error
}

func (f *fakePurger) PurgeExpiredTokens(context.Context) (int64, error) {
	return f.n, f.err
}

type fakeDowngrader struct {
	calls int
	now   time.Time
}

func (f *fakeDowngrader) DowngradeLapsed(_ context.Context, now time.Time) (int, error) {
	f.calls++
	f.now = now
	return 2, nil
}

func TestRegisterMaintenance(t *testing.T) {
	s := NewScheduler(nil)
	purger := &fakePurger{n: 5}
	downgrader := &fakeDowngrader{}

	cfg := config.JobsConfig{
		Enabled:            true,
		TokenPurgeSchedule: "0 3 * * *",
		DowngradeSchedule:  "*/15 * * * *",
	}
	require.NoError(t, RegisterMaintenance(s, cfg, purger, downgrader))

	require.NoError(t, s.RunNow(context.Background(), JobPurgeTokens))
	require.NoError(t, s.RunNow(context.Background(), JobDowngradeLapsed))
	assert.Equal(t, 1, downgrader.calls)
	assert.WithinDuration(t, time.Now(), downgrader.now, time.Minute)

	purger.err = errors.New("db down")
	assert.Error(t, s.RunNow(context.Background(), JobPurgeTokens))
}

func TestRegisterMaintenance_BadSchedule(t *testing.T) {
	cfg := config.JobsConfig{TokenPurgeSchedule: "nope", DowngradeSchedule: "@hourly"}
	assert.Error(t, RegisterMaintenance(NewScheduler(nil), cfg, &fakePurger{}, &fakeDowngrader{}))
}
