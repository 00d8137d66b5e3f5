package records

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/tallysync/internal/common"
	"github.com/dmitrijs2005/tallysync/internal/server/models"
)

type key struct{ collection, id string }

// MemoryRepository is a Repository kept in a map. The collector falls back
// to it when no database DSN is configured.
type MemoryRepository struct {
	mu   sync.RWMutex
	rows map[key]models.Received
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[key]models.Received)}
}

func (r *MemoryRepository) Upsert(ctx context.Context, rec *models.Received) (models.Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{rec.Collection, rec.ID}
	cur, exists := r.rows[k]
	if exists && cur.IdempotencyKey != "" && cur.IdempotencyKey == rec.IdempotencyKey {
		return models.OutcomeReplayed, nil
	}
	r.rows[k] = *rec
	if exists {
		return models.OutcomeUpdated, nil
	}
	return models.OutcomeCreated, nil
}

func (r *MemoryRepository) Get(ctx context.Context, collection, id string) (*models.Received, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.rows[key{collection, id}]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", common.ErrNotFound, collection, id)
	}
	return &rec, nil
}

func (r *MemoryRepository) Count(ctx context.Context, collection string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for k := range r.rows {
		if k.collection == collection {
			n++
		}
	}
	return n, nil
}

var _ Repository = (*MemoryRepository)(nil)
