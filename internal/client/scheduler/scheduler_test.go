package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/tallysync/internal/client/connectivity"
	"github.com/dmitrijs2005/tallysync/internal/client/syncer"
	"github.com/dmitrijs2005/tallysync/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingEngine counts passes and holds each one until release is closed.
type blockingEngine struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func newBlockingEngine() *blockingEngine {
	return &blockingEngine{started: make(chan struct{}, 10), release: make(chan struct{})}
}

func (e *blockingEngine) SyncAll(ctx context.Context, onProgress syncer.ProgressFunc) syncer.Report {
	e.calls.Add(1)
	e.started <- struct{}{}
	<-e.release
	onProgress(100)
	return syncer.Report{Remaining: 0}
}

type instantEngine struct{ calls atomic.Int32 }

func (e *instantEngine) SyncAll(ctx context.Context, onProgress syncer.ProgressFunc) syncer.Report {
	e.calls.Add(1)
	onProgress(50)
	onProgress(100)
	return syncer.Report{Remaining: 2}
}

type recordingObserver struct {
	mu       sync.Mutex
	events   []string
	progress []int
}

func (o *recordingObserver) Begin() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "begin")
}

func (o *recordingObserver) Progress(p int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.progress = append(o.progress, p)
}

func (o *recordingObserver) Finish(syncer.Report) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "finish")
}

func TestTrigger_WhileRunningIsRejected(t *testing.T) {
	t.Parallel()
	eng := newBlockingEngine()
	s := New(eng, nil, time.Hour, true, logging.Discard())

	require.True(t, s.Trigger(TriggerManual))
	<-eng.started
	assert.Equal(t, Running, s.State())

	assert.False(t, s.Trigger(TriggerManual))
	assert.False(t, s.Trigger(TriggerConnectivity))
	_, ok := s.RunNow(context.Background(), TriggerManual)
	assert.False(t, ok)

	close(eng.release)
	s.Stop()

	assert.Equal(t, int32(1), eng.calls.Load())
	assert.Equal(t, Idle, s.State())
}

func TestTrigger_DisabledIsNoop(t *testing.T) {
	t.Parallel()
	eng := &instantEngine{}
	s := New(eng, nil, time.Second, false, logging.Discard())
	require.NoError(t, s.Start(context.Background()))

	assert.False(t, s.Trigger(TriggerManual))
	assert.False(t, s.Trigger(TriggerConnectivity))
	assert.False(t, s.Trigger(TriggerTimer))
	s.OnConnectivityRegained()
	_, ok := s.RunNow(context.Background(), TriggerManual)
	assert.False(t, ok)

	// let the interval trigger fire at least once
	time.Sleep(1500 * time.Millisecond)
	s.Stop()

	assert.Zero(t, eng.calls.Load())
}

func TestRunNow_ReportsAndNotifiesObserver(t *testing.T) {
	t.Parallel()
	eng := &instantEngine{}
	obs := &recordingObserver{}
	s := New(eng, obs, time.Hour, true, logging.Discard())

	rep, ok := s.RunNow(context.Background(), TriggerManual)
	require.True(t, ok)
	assert.Equal(t, 2, rep.Remaining)
	assert.Equal(t, []string{"begin", "finish"}, obs.events)
	assert.Equal(t, []int{50, 100}, obs.progress)
	assert.Equal(t, Idle, s.State())
}

func TestRunNow_IgnoresCallerCancellation(t *testing.T) {
	t.Parallel()
	eng := &instantEngine{}
	s := New(eng, nil, time.Hour, true, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok := s.RunNow(ctx, TriggerManual)
	assert.True(t, ok)
	assert.Equal(t, int32(1), eng.calls.Load())
}

func TestTimerTriggersPass(t *testing.T) {
	t.Parallel()
	eng := &instantEngine{}
	s := New(eng, nil, time.Second, true, logging.Discard())
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool { return eng.calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestSetOfflineMode(t *testing.T) {
	t.Parallel()
	eng := &instantEngine{}
	s := New(eng, nil, time.Hour, false, logging.Discard())
	assert.False(t, s.OfflineMode())

	s.SetOfflineMode(true)
	assert.True(t, s.OfflineMode())
	_, ok := s.RunNow(context.Background(), TriggerManual)
	assert.True(t, ok)

	s.SetOfflineMode(false)
	_, ok = s.RunNow(context.Background(), TriggerManual)
	assert.False(t, ok)
	assert.Equal(t, int32(1), eng.calls.Load())
}

func TestStartTwice(t *testing.T) {
	t.Parallel()
	s := New(&instantEngine{}, nil, time.Hour, true, logging.Discard())
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	assert.Error(t, s.Start(context.Background()))
}

func TestTrigger_AfterStop(t *testing.T) {
	t.Parallel()
	eng := &instantEngine{}
	s := New(eng, nil, time.Hour, true, logging.Discard())
	s.Stop()
	assert.False(t, s.Trigger(TriggerManual))
	assert.Zero(t, eng.calls.Load())
}

type toggleProbe struct{ err atomic.Pointer[error] }

func (p *toggleProbe) set(err error) { p.err.Store(&err) }

func (p *toggleProbe) Check(context.Context) error {
	if e := p.err.Load(); e != nil {
		return *e
	}
	return nil
}

func TestOnConnectivityRegained_RunsOnePass(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	eng := &instantEngine{}
	obs := &recordingObserver{}
	s := New(eng, obs, time.Hour, true, logging.Discard())

	probe := &toggleProbe{}
	w := connectivity.NewWatcher(probe, time.Hour, logging.Discard(), s.OnConnectivityRegained)

	// first observation only records the mode
	require.Equal(t, connectivity.ModeOnline, w.Observe(ctx))

	probe.set(errors.New("unreachable"))
	require.Equal(t, connectivity.ModeOffline, w.Observe(ctx))

	probe.set(nil)
	require.Equal(t, connectivity.ModeOnline, w.Observe(ctx))
	// still online, no new transition
	require.Equal(t, connectivity.ModeOnline, w.Observe(ctx))

	s.Stop()

	assert.Equal(t, int32(1), eng.calls.Load())
	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, []string{"begin", "finish"}, obs.events)
	assert.Equal(t, Idle, s.State())
}
