package usecase

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"PadaOne/internal/ports"
)

// Sync sources reported in logs.
const (
	SyncSourceCron    = "cron"
	SyncSourceWatcher = "watcher"
	SyncSourceStartup = "startup"
)

type syncer interface {
	Sync(ctx context.Context) (int, error)
}

// Scheduler funnels cron ticks, flag-file events and the startup run into a
// single curation sync. A trigger that arrives while a sync is in flight is
// dropped: the running sync reads the flag tree after it started.
type Scheduler struct {
	driver  ports.Scheduler
	curator syncer
	logger  *slog.Logger
	running atomic.Bool
}

func NewScheduler(driver ports.Scheduler, curator syncer, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{driver: driver, curator: curator, logger: logger}
}

// Start registers the recurring sync with the driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.curator == nil {
		return nil
	}
	return s.driver.Start(ctx, func(tick time.Time) {
		s.logger.Debug("cron tick", "at", tick)
		s.Trigger(ctx, SyncSourceCron)
	})
}

// Trigger runs one sync unless another is already running. It reports whether
// the sync ran and succeeded.
func (s *Scheduler) Trigger(ctx context.Context, source string) bool {
	if s.curator == nil {
		return false
	}
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Debug("curation sync already running, trigger dropped", "source", source)
		return false
	}
	defer s.running.Store(false)

	started := time.Now()
	n, err := s.curator.Sync(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		s.logger.Warn("triggered curation sync failed", "source", source, "error", err)
		return false
	}
	s.logger.Debug("triggered curation sync done", "source", source, "flags", n, "took", time.Since(started))
	return true
}

// Stop tears down the driver; a sync in progress finishes on its own context.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Stop(ctx)
}
