// Package syncer drains unsynced records to their remote endpoints.
//
// Records are submitted one at a time, in the order the store returns them.
// A failing record is logged and left unsynced; it never aborts the pass.
// Progress is reported per collection and composed into one overall
// percentage that only ever grows and always ends at exactly 100.
package syncer

import (
	"context"
	"math"
	"time"

	"github.com/dmitrijs2005/tallysync/internal/client/models"
	"github.com/dmitrijs2005/tallysync/internal/client/remote"
	"github.com/dmitrijs2005/tallysync/internal/logging"
)

// Store is the part of the local store the engine depends on.
type Store interface {
	GetUnsynced(ctx context.Context, collection string) ([]*models.Record, error)
	MarkSynced(ctx context.Context, collection, id string, revision int64) (bool, error)
	CountUnsynced(ctx context.Context, collection string) (int, error)
}

// ProgressFunc receives a percentage in 0..100.
type ProgressFunc func(percent int)

// Target binds a collection to the submitter of its remote endpoint.
type Target struct {
	Collection string
	Submitter  remote.Submitter
}

type Engine struct {
	store   Store
	targets []Target
	logger  logging.Logger
	now     func() time.Time
}

func NewEngine(store Store, targets []Target, logger logging.Logger) *Engine {
	return &Engine{
		store:   store,
		targets: targets,
		logger:  logger.With("module", "syncer"),
		now:     time.Now,
	}
}

// SyncCollection submits every record of collection that was unsynced at the
// start of the call. Records edited while the pass runs are not retried here;
// their acknowledgement is dropped and counted as stale.
func (e *Engine) SyncCollection(ctx context.Context, collection string, submitter remote.Submitter, onProgress ProgressFunc) CollectionReport {
	rep := CollectionReport{Collection: collection}
	notify := func(p int) {
		if onProgress != nil {
			onProgress(p)
		}
	}

	pending, err := e.store.GetUnsynced(ctx, collection)
	if err != nil {
		e.logger.Error(ctx, "failed to read unsynced records", "collection", collection, "error", err)
		rep.Err = err
		notify(100)
		return rep
	}
	if len(pending) == 0 {
		notify(100)
		return rep
	}

	total := len(pending)
	for i, rec := range pending {
		rep.Attempted++
		e.submitOne(ctx, submitter, rec, &rep)
		notify(percent(i+1, total))
	}
	return rep
}

func (e *Engine) submitOne(ctx context.Context, submitter remote.Submitter, rec *models.Record, rep *CollectionReport) {
	if err := submitter.Submit(ctx, rec); err != nil {
		rep.Failed++
		e.logger.Warn(ctx, "record submission failed",
			"collection", rec.Collection, "id", rec.ID, "timeout", remote.IsTimeout(err), "error", err)
		return
	}

	ok, err := e.store.MarkSynced(ctx, rec.Collection, rec.ID, rec.Revision)
	switch {
	case err != nil:
		// accepted remotely; the next pass resends it under the same idempotency key
		rep.Failed++
		e.logger.Error(ctx, "failed to mark record synced", "collection", rec.Collection, "id", rec.ID, "error", err)
	case !ok:
		rep.Stale++
		e.logger.Debug(ctx, "record changed during sync", "collection", rec.Collection, "id", rec.ID)
	default:
		rep.Succeeded++
	}
}

// SyncAll runs SyncCollection for every target in order. Each collection gets
// an equal, floored share of the overall percentage; the share is credited in
// full once the collection is done and the pass always finishes at 100.
// SyncAll never fails as a whole: Report.Remaining is the signal of partial
// failure.
func (e *Engine) SyncAll(ctx context.Context, onProgress ProgressFunc) Report {
	rep := Report{StartedAt: e.now()}

	last := 0
	emit := func(p int) {
		p = max(p, last)
		last = p
		if onProgress != nil {
			onProgress(p)
		}
	}

	if len(e.targets) > 0 {
		weight := 100 / len(e.targets)
		acc := 0
		for _, t := range e.targets {
			cr := e.SyncCollection(ctx, t.Collection, t.Submitter, func(pct int) {
				emit(acc + weight*pct/100)
			})
			rep.Collections = append(rep.Collections, cr)
			acc += weight
			emit(acc)
		}
	}
	emit(100)

	rep.Remaining = e.remaining(ctx)
	rep.FinishedAt = e.now()

	attempted, succeeded, failed := rep.Totals()
	e.logger.Info(ctx, "sync pass finished",
		"attempted", attempted, "succeeded", succeeded, "failed", failed,
		"remaining", rep.Remaining, "took", rep.FinishedAt.Sub(rep.StartedAt))
	return rep
}

// Pending returns the number of unsynced records across all targets.
func (e *Engine) Pending(ctx context.Context) int {
	return e.remaining(ctx)
}

func (e *Engine) remaining(ctx context.Context) int {
	n := 0
	for _, t := range e.targets {
		c, err := e.store.CountUnsynced(ctx, t.Collection)
		if err != nil {
			e.logger.Warn(ctx, "failed to count unsynced records", "collection", t.Collection, "error", err)
			continue
		}
		n += c
	}
	return n
}

func percent(completed, total int) int {
	total = max(total, 1)
	return int(math.Round(float64(completed) / float64(total) * 100))
}
