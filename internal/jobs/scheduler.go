// AngelaMos | 2026
// scheduler.go

package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/marketplace-access/internal/core"
	"github.com/carterperez-dev/marketplace-access/internal/metrics"
)

const defaultJobTimeout = 5 * time.Minute

type Job struct {
	Name     string
	Schedule string
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs maintenance jobs on cron schedules. A run that is still in
// progress when its next tick fires is skipped, not stacked.
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	mu      sync.Mutex
	jobs    map[string]Job
	entries map[string]cron.EntryID
	running bool
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DiscardLogger),
			cron.SkipIfStillRunning(cron.DiscardLogger),
		)),
		logger:  logger,
		jobs:    make(map[string]Job),
		entries: make(map[string]cron.EntryID),
	}
}

func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("register job: name and run func are required")
	}
	if _, err := cron.ParseStandard(job.Schedule); err != nil {
		return fmt.Errorf("register job %s: invalid schedule: %w", job.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("register job %s: already registered", job.Name)
	}

	id, err := s.cron.AddFunc(job.Schedule, func() {
		//nolint:errcheck // failures are logged and counted inside execute
		_ = s.execute(context.Background(), job)
	})
	if err != nil {
		return fmt.Errorf("register job %s: %w", job.Name, err)
	}

	s.jobs[job.Name] = job
	s.entries[job.Name] = id
	return nil
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	s.logger.Info("job scheduler started", "jobs", len(s.jobs))
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("job scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop scheduler: %w", ctx.Err())
	}
}

// RunNow executes a registered job immediately on the caller's goroutine.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("run job %s: %w", name, core.ErrNotFound)
	}
	return s.execute(ctx, job)
}

// JobStatus describes one registered job for the admin API.
type JobStatus struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	NextRun  time.Time `json:"next_run,omitzero"`
}

// Jobs lists registered jobs sorted by name.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for name, job := range s.jobs {
		out = append(out, JobStatus{
			Name:     name,
			Schedule: job.Schedule,
			NextRun:  s.cron.Entry(s.entries[name]).Next,
		})
	}
	slices.SortFunc(out, func(a, b JobStatus) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// NextRun reports when a job fires next. It is zero before Start.
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

func (s *Scheduler) execute(ctx context.Context, job Job) error {
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx, endSpan := core.StartSpan(ctx, "job."+job.Name,
		attribute.String("job.name", job.Name),
		attribute.String("job.schedule", job.Schedule),
	)
	start := time.Now()
	err := job.Run(ctx)
	duration := time.Since(start)
	endSpan(err)

	if err != nil {
		metrics.RecordJobRun(job.Name, "error", duration)
		s.logger.ErrorContext(ctx, "job failed",
			"job", job.Name,
			"duration", duration,
			"error", err,
		)
		return err
	}

	metrics.RecordJobRun(job.Name, "success", duration)
	s.logger.InfoContext(ctx, "job completed",
		"job", job.Name,
		"duration", duration,
	)
	return nil
}
