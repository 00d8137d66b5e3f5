// Package records stores what clients submit to the collector.
package records

import (
	"context"

	"github.com/dmitrijs2005/tallysync/internal/server/models"
)

// Repository keeps one row per (collection, id); the latest submission wins.
// An upsert carrying the idempotency key already stored for the row is a
// no-op reported as models.OutcomeReplayed.
type Repository interface {
	Upsert(ctx context.Context, rec *models.Received) (models.Outcome, error)
	Get(ctx context.Context, collection, id string) (*models.Received, error)
	Count(ctx context.Context, collection string) (int, error)
}
