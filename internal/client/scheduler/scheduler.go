// Package scheduler decides when a sync pass runs: on a fixed interval, when
// connectivity comes back and when the user asks for one. At most one pass
// runs at a time; triggers arriving while a pass is in flight are dropped.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/tallysync/internal/client/syncer"
	"github.com/dmitrijs2005/tallysync/internal/logging"
	"github.com/robfig/cron/v3"
)

// Source names what asked for a sync pass.
type Source string

const (
	TriggerTimer        Source = "timer"
	TriggerConnectivity Source = "connectivity"
	TriggerManual       Source = "manual"
)

type State int32

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// Engine runs one full sync pass.
type Engine interface {
	SyncAll(ctx context.Context, onProgress syncer.ProgressFunc) syncer.Report
}

// Observer is told about every pass the scheduler starts.
type Observer interface {
	Begin()
	Progress(percent int)
	Finish(rep syncer.Report)
}

type Scheduler struct {
	engine   Engine
	observer Observer
	interval time.Duration
	logger   logging.Logger

	state   atomic.Int32
	enabled atomic.Bool

	mu      sync.Mutex
	baseCtx context.Context
	cron    *cron.Cron
	stopped bool
	wg      sync.WaitGroup
}

// New returns an idle scheduler. offlineMode is the initial value of the
// feature flag; while it is false every trigger is a no-op.
func New(engine Engine, observer Observer, interval time.Duration, offlineMode bool, logger logging.Logger) *Scheduler {
	if observer == nil {
		observer = nopObserver{}
	}
	s := &Scheduler{
		engine:   engine,
		observer: observer,
		interval: interval,
		logger:   logger.With("module", "scheduler"),
		baseCtx:  context.Background(),
	}
	s.enabled.Store(offlineMode)
	return s
}

// Start registers the interval trigger. Values of ctx are carried into
// every pass started by a trigger; its cancellation is not.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return fmt.Errorf("scheduler already started")
	}
	s.baseCtx = ctx

	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.Trigger(TriggerTimer)
	}); err != nil {
		return fmt.Errorf("schedule sync every %s: %w", s.interval, err)
	}
	c.Start()
	s.cron = c

	s.logger.Info(ctx, "scheduler started", "interval", s.interval, "offline_mode", s.enabled.Load())
	return nil
}

// Stop stops the interval trigger and waits for an in-flight pass.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	c := s.cron
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	s.wg.Wait()
}

// Trigger starts a pass in the background. It reports false when offline
// mode is disabled, when a pass is already running or after Stop.
func (s *Scheduler) Trigger(source Source) bool {
	s.mu.Lock()
	if s.stopped || !s.acquire(source) {
		s.mu.Unlock()
		return false
	}
	s.wg.Add(1)
	ctx := context.WithoutCancel(s.baseCtx)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.run(ctx, source)
	}()
	return true
}

// RunNow runs a pass on the calling goroutine. The pass is not cancelled
// with ctx.
func (s *Scheduler) RunNow(ctx context.Context, source Source) (syncer.Report, bool) {
	s.mu.Lock()
	if s.stopped || !s.acquire(source) {
		s.mu.Unlock()
		return syncer.Report{}, false
	}
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	return s.run(context.WithoutCancel(ctx), source), true
}

// OnConnectivityRegained is meant to be passed to a connectivity watcher.
func (s *Scheduler) OnConnectivityRegained() {
	s.Trigger(TriggerConnectivity)
}

// SetOfflineMode flips the feature flag. Local writes keep working either
// way; only syncing is affected.
func (s *Scheduler) SetOfflineMode(enabled bool) {
	if s.enabled.Swap(enabled) != enabled {
		s.logger.Info(context.Background(), "offline mode changed", "enabled", enabled)
	}
}

func (s *Scheduler) OfflineMode() bool {
	return s.enabled.Load()
}

func (s *Scheduler) State() State {
	return State(s.state.Load())
}

func (s *Scheduler) acquire(source Source) bool {
	if !s.enabled.Load() {
		s.logger.Debug(context.Background(), "offline mode disabled, trigger ignored", "source", source)
		return false
	}
	if !s.state.CompareAndSwap(int32(Idle), int32(Running)) {
		s.logger.Debug(context.Background(), "sync already running, trigger ignored", "source", source)
		return false
	}
	return true
}

func (s *Scheduler) run(ctx context.Context, source Source) syncer.Report {
	defer s.state.Store(int32(Idle))

	s.logger.Info(ctx, "sync pass started", "source", source)
	s.observer.Begin()
	rep := s.engine.SyncAll(ctx, s.observer.Progress)
	s.observer.Finish(rep)
	return rep
}

type nopObserver struct{}

func (nopObserver) Begin() {}
func (nopObserver) Progress(int) {}
func (nopObserver) Finish(syncer.Report) {}
