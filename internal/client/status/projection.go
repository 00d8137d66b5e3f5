// Package status derives the observable sync state (is a pass running, how
// far along it is) and serves it over HTTP and WebSocket.
package status

import (
	"sync"
	"time"

	"github.com/dmitrijs2005/tallysync/internal/client/syncer"
)

// Snapshot is the state consumers render.
type Snapshot struct {
	Syncing    bool       `json:"syncing"`
	Progress   int        `json:"progress"`
	Remaining  int        `json:"remaining"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
}

// Projection folds scheduler notifications into a Snapshot. It holds no
// control logic.
type Projection struct {
	mu     sync.RWMutex
	snap   Snapshot
	subs   map[int]chan Snapshot
	nextID int
}

func NewProjection() *Projection {
	return &Projection{subs: make(map[int]chan Snapshot)}
}

func (p *Projection) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

// SetRemaining seeds the unsynced count before the first pass.
func (p *Projection) SetRemaining(n int) {
	p.update(func(s *Snapshot) { s.Remaining = n })
}

func (p *Projection) Begin() {
	p.update(func(s *Snapshot) {
		s.Syncing = true
		s.Progress = 0
	})
}

func (p *Projection) Progress(percent int) {
	p.update(func(s *Snapshot) { s.Progress = percent })
}

func (p *Projection) Finish(rep syncer.Report) {
	at := rep.FinishedAt.UTC()
	p.update(func(s *Snapshot) {
		s.Syncing = false
		s.Progress = 100
		s.Remaining = rep.Remaining
		s.LastSyncAt = &at
	})
}

// Subscribe returns a channel that receives the current snapshot and every
// change after it. Slow readers only see the latest value. Call the returned
// func to unsubscribe.
func (p *Projection) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = ch
	ch <- p.snap
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
			close(ch)
		})
	}
}

func (p *Projection) update(fn func(*Snapshot)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fn(&p.snap)
	for _, ch := range p.subs {
		publish(ch, p.snap)
	}
}

func publish(ch chan Snapshot, s Snapshot) {
	select {
	case ch <- s:
		return
	default:
	}
	// drop the stale value, then retry
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}
