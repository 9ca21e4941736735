package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/loomline/designvault/pkg/logger"
	"github.com/loomline/designvault/pkg/metrics"
)

const defaultTick = time.Minute

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Locker   Locker
	Metrics  *metrics.CronJobMetrics
	Tick     time.Duration
	Now      func() time.Time
}

// Service wakes up every tick and runs the jobs whose interval has elapsed.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	locker   Locker
	metrics  *metrics.CronJobMetrics
	tick     time.Duration
	now      func() time.Time

	mu      sync.Mutex
	lastRun map[string]time.Time
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Locker == nil {
		return nil, fmt.Errorf("locker required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	tick := params.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		locker:   params.Locker,
		metrics:  params.Metrics,
		tick:     tick,
		now:      now,
		lastRun:  map[string]time.Time{},
	}, nil
}

// Run starts the cron loop until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.runDue(ctx)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

// runDue runs every entry whose interval elapsed since its last local run.
// A successful run keeps its lease until it expires so the job runs at most
// once per interval across workers; a failed run gives the lease back.
func (s *Service) runDue(ctx context.Context) {
	now := s.now()
	for _, entry := range s.registry.Entries() {
		name := entry.Job.Name()
		s.mu.Lock()
		last, seen := s.lastRun[name]
		s.mu.Unlock()
		if seen && now.Sub(last) < entry.Every {
			continue
		}
		s.runEntry(ctx, entry, now)
	}
}

func (s *Service) runEntry(ctx context.Context, entry Entry, now time.Time) {
	name := entry.Job.Name()
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": name, "event": "cron.job"})

	release, ok, err := s.locker.Acquire(jobCtx, name, entry.Every)
	if err != nil {
		s.logg.Error(jobCtx, "lock acquire failed", err)
		return
	}
	s.mu.Lock()
	s.lastRun[name] = now
	s.mu.Unlock()
	if !ok {
		s.logg.Debug(jobCtx, "job leased by another worker; skipping")
		s.metrics.IncSkipped(name)
		return
	}

	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	err = entry.Job.Run(jobCtx)
	duration := time.Since(start)
	s.metrics.ObserveRun(name, err, duration)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		if relErr := release(ctx); relErr != nil {
			s.logg.Error(jobCtx, "failed to release cron lock", relErr)
		}
		return
	}
	s.logg.Info(jobCtx, "job completed")
}
