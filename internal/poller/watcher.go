package poller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rewired-gh/placardwatch/internal/logger"
	"github.com/rewired-gh/placardwatch/internal/metrics"
)

// Alerter is told about the first failed cycle of a run of failures and about the recovery
// that ends it.
type Alerter interface {
	SendError(ctx context.Context, cycleErr error) error
	SendRecovery(ctx context.Context, failureCount int) error
}

// Watcher owns the watermark and runs poll cycles one at a time.
type Watcher struct {
	poller   *Poller
	recorder *metrics.Recorder
	alerter  Alerter

	mu       sync.Mutex // held for the whole cycle
	mark     atomic.Int64
	failures int
	stopped  bool
}

type WatcherOption func(*Watcher)

func WithRecorder(r *metrics.Recorder) WatcherOption {
	return func(w *Watcher) { w.recorder = r }
}

func WithAlerter(a Alerter) WatcherOption {
	return func(w *Watcher) { w.alerter = a }
}

func NewWatcher(p *Poller, opts ...WatcherOption) *Watcher {
	w := &Watcher{poller: p}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Init sets the watermark to the current maximum trade id so that only trades inserted after
// startup are notified.
func (w *Watcher) Init(ctx context.Context) error {
	id, err := w.poller.source.LatestTradeID(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize watermark: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.mark.Store(id)
	w.recorder.SetWatermark(id)
	logger.Info("Watermark initialized at trade %d", id)
	return nil
}

// Mark returns the current watermark.
func (w *Watcher) Mark() Watermark {
	return Watermark(w.mark.Load())
}

// Tick runs one poll cycle. The watermark advances only after the whole batch was handed off.
// After stop, Tick does nothing.
func (w *Watcher) Tick(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}

	cycleID := uuid.NewString()
	from := w.Mark()
	logger.Debug("Starting poll cycle %s from trade %d", cycleID, from)

	next, n, err := w.poller.Poll(ctx, from)
	w.recorder.ObserveCycle(n, err)
	if err != nil {
		w.failures++
		logger.Error("Poll cycle %s failed: %v", cycleID, err)
		if w.failures == 1 && w.alerter != nil {
			if sendErr := w.alerter.SendError(ctx, err); sendErr != nil {
				logger.Warn("Failed to send error notification: %v", sendErr)
			}
		}
		return err
	}

	if w.failures > 0 {
		if w.alerter != nil {
			if sendErr := w.alerter.SendRecovery(ctx, w.failures); sendErr != nil {
				logger.Warn("Failed to send recovery notification: %v", sendErr)
			}
		}
		w.failures = 0
	}

	if next > from {
		w.mark.Store(int64(next))
		w.recorder.SetWatermark(int64(next))
	}
	if n > 0 {
		logger.Info("Poll cycle %s handled %d new trades, watermark %d", cycleID, n, next)
	} else {
		logger.Debug("Poll cycle %s found no new trades", cycleID)
	}
	return nil
}

// stop waits for a running cycle to finish and disables later ones, including cycles already
// dispatched by the scheduler but not yet started.
func (w *Watcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
}
