package store

import (
	"context"

	"github.com/dmitrijs2005/tallysync/internal/client/models"
)

// Repository is the Local Store contract used by the record mutator and the
// sync engine.
type Repository interface {
	// Add inserts a new record. It fails with common.ErrDuplicateID when the
	// id is already taken in that collection.
	Add(ctx context.Context, collection string, rec *models.Record) (*models.Record, error)

	// Update merges fields into an existing record; a nil value removes the
	// key. It fails with common.ErrNotFound when the record is absent.
	Update(ctx context.Context, collection, id string, fields map[string]any) (*models.Record, error)

	// Delete removes the record outright, or returns common.ErrNotFound.
	Delete(ctx context.Context, collection, id string) error

	Get(ctx context.Context, collection, id string) (*models.Record, error)
	GetAll(ctx context.Context, collection string) ([]*models.Record, error)

	// GetUnsynced returns the records with synced=false, oldest change first.
	GetUnsynced(ctx context.Context, collection string) ([]*models.Record, error)

	CountUnsynced(ctx context.Context, collection string) (int, error)

	// MarkSynced flags the record synced if it is still at revision. It
	// reports false when the record was changed or deleted in the meantime.
	MarkSynced(ctx context.Context, collection, id string, revision int64) (bool, error)
}
