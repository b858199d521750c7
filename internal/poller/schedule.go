package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rewired-gh/placardwatch/internal/logger"
)

// Scheduler runs Watcher.Tick on a fixed interval. A slow cycle delays the next one instead of
// overlapping it.
type Scheduler struct {
	cron    *gocron.Scheduler
	watcher *Watcher
}

// Schedule starts ticking w every interval, with the first cycle after firstRunDelay.
// Cycles run detached from ctx cancellation so that a batch is never cut short; call Stop
// to end the schedule.
func Schedule(ctx context.Context, w *Watcher, interval, firstRunDelay time.Duration) (*Scheduler, error) {
	cron := gocron.NewScheduler(time.UTC)
	cycleCtx := context.WithoutCancel(ctx)

	_, err := cron.Every(interval).
		StartAt(time.Now().Add(firstRunDelay)).
		SingletonMode().
		Do(func() {
			_ = w.Tick(cycleCtx)
		})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule poll job: %w", err)
	}

	cron.StartAsync()
	logger.Info("Poller scheduled (interval: %v, first run in %v)", interval, firstRunDelay)
	return &Scheduler{cron: cron, watcher: w}, nil
}

// Stop cancels future cycles and waits for a running one to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.watcher.stop()
	logger.Info("Poller stopped at watermark %d", s.watcher.Mark())
}
