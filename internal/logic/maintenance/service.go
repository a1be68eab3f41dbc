package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Service runs the periodic maintenance loop: a batch status reconciliation
// followed by a grant expiry sweep, on a cron schedule with jitter. The same
// two operations stay reachable through the admin API for callers who cannot
// wait for the next tick.
type Service struct {
	logger      *slog.Logger
	instances   Instances
	grants      Grants
	schedule    Schedule
	spec        string
	tz          string
	ready       chan struct{}
	doneCh      chan struct{}
	inShutdown  atomic.Bool
	mu          sync.RWMutex
	lastRunTime time.Time
}

// New creates a new maintenance service.
func New(
	logger *slog.Logger,
	instances Instances,
	grants Grants,
	schedule Schedule,
	spec,
	tz string,
) *Service {
	return &Service{
		logger:    logger,
		instances: instances,
		grants:    grants,
		schedule:  schedule,
		spec:      spec,
		tz:        tz,
		ready:     make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

func (s *Service) Start(ctx context.Context) error {
	if s.inShutdown.Load() {
		s.logger.InfoContext(ctx, "maintenance service is shutting down, skipping start")

		return nil
	}

	go s.RunCommand(ctx)

	return nil
}

// Name returns the name of the server component
func (s *Service) Name() string {
	return "sandboxd-maintenance"
}

func (s *Service) Ping(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ready:
		return nil
	default:
		return fmt.Errorf("maintenance service is not ready")
	}
}

func (s *Service) Shutdown(ctx context.Context) error {
	if !s.inShutdown.CompareAndSwap(false, true) {
		s.logger.ErrorContext(ctx, "maintenance service is already shutting down, skipping shutdown")

		return nil // Already shutting down
	}

	defer func() {
		s.logger.InfoContext(ctx, "maintenance service shut downed")
	}()

	s.logger.InfoContext(ctx, "shutting down maintenance service")

	select {
	case <-ctx.Done():
		return fmt.Errorf("shutdown context done before maintenance loop exited: %w", ctx.Err())
	case <-s.doneCh:
		s.logger.InfoContext(ctx, "maintenance loop exited")
	}

	return nil
}

func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// RunOnceCommand runs one maintenance iteration. Each half runs even when the
// other fails; the first error is returned.
func (s *Service) RunOnceCommand(ctx context.Context) error {
	logger := s.logger.With("maintenance", "RunOnceCommand")

	var firstErr error

	summary, err := s.instances.ReconcileAll(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "batch reconciliation failed", "reason", err)
		firstErr = fmt.Errorf("reconcile all: %w", err)
	} else {
		logger.DebugContext(ctx, "batch reconciliation done",
			"total", summary.Total,
			"updated", summary.Updated,
		)
	}

	swept, err := s.grants.SweepExpired(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "expiry sweep failed", "reason", err)

		if firstErr == nil {
			firstErr = fmt.Errorf("sweep expired: %w", err)
		}
	} else {
		logger.DebugContext(ctx, "expiry sweep done", "swept", swept)
	}

	s.setLastRunTime()

	return firstErr
}

// RunCommand runs the maintenance loop until the context is done, sleeping
// until the next jittered cron occurrence between iterations.
func (s *Service) RunCommand(ctx context.Context) {
	defer close(s.doneCh)

	logger := s.logger.With("maintenance", "RunCommand")

	close(s.ready)

	for {
		if err := s.RunOnceCommand(ctx); err != nil {
			logger.ErrorContext(ctx, "maintenance iteration error", "reason", err)
		}

		next, err := s.schedule.NextAfter(s.spec, s.tz, time.Now())
		if err != nil {
			logger.ErrorContext(ctx, "unusable maintenance schedule, stopping loop",
				"spec", s.spec,
				"reason", err,
			)

			return
		}

		timer := time.NewTimer(time.Until(next))

		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			logger.InfoContext(ctx, "terminating maintenance loop")

			return
		}
	}
}

func (s *Service) LastRunTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastRunTime
}

func (s *Service) setLastRunTime() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastRunTime = time.Now()
}
