package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/tallysync/internal/logging"
)

type Mode string

const (
	ModeUnknown Mode = "unknown"
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

const probeTimeout = 3 * time.Second

// Watcher probes on a fixed interval and calls onRegained on every
// offline to online transition. The first observation only sets the mode.
type Watcher struct {
	probe      Probe
	interval   time.Duration
	logger     logging.Logger
	onRegained func()

	mu   sync.RWMutex
	mode Mode
}

func NewWatcher(probe Probe, interval time.Duration, logger logging.Logger, onRegained func()) *Watcher {
	return &Watcher{
		probe:      probe,
		interval:   interval,
		logger:     logger.With("module", "connectivity"),
		onRegained: onRegained,
		mode:       ModeUnknown,
	}
}

func (w *Watcher) Mode() Mode {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.mode
}

// Observe runs one probe and updates the mode.
func (w *Watcher) Observe(ctx context.Context) Mode {
	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	err := w.probe.Check(pctx)
	cancel()

	next := ModeOnline
	if err != nil {
		next = ModeOffline
	}

	w.mu.Lock()
	prev := w.mode
	w.mode = next
	w.mu.Unlock()

	if prev == next {
		return next
	}
	w.logger.Info(ctx, "connectivity changed", "from", prev, "to", next)
	if err != nil {
		w.logger.Debug(ctx, "probe failed", "error", err)
	}
	if prev == ModeOffline && next == ModeOnline && w.onRegained != nil {
		w.onRegained()
	}
	return next
}

// Run probes immediately and then every interval until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	w.Observe(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Observe(ctx)
		case <-ctx.Done():
			return
		}
	}
}
