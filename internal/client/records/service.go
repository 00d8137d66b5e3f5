// Package records is the application's only write path into the local store.
// Every mutation goes through the store's stamping, so a record touched here
// is always left unsynced with a fresh updatedAt.
package records

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/tallysync/internal/client/models"
	"github.com/dmitrijs2005/tallysync/internal/client/store"
	"github.com/google/uuid"
)

// Service exposes add/update/delete and read helpers over a store.Repository.
type Service struct {
	repo        store.Repository
	collections *models.CollectionSet
	newID       func() string
}

func NewService(repo store.Repository, collections *models.CollectionSet) *Service {
	return &Service{repo: repo, collections: collections, newID: uuid.NewString}
}

// Add creates a record. A non-empty string "id" in fields is used as the
// record id; otherwise a UUID is generated, which is what makes offline
// creation possible.
func (s *Service) Add(ctx context.Context, collection string, fields map[string]any) (*models.Record, error) {
	spec, err := s.collections.Lookup(collection)
	if err != nil {
		return nil, err
	}

	id, _ := fields[models.FieldID].(string)
	if id == "" {
		id = s.newID()
	}

	clean := models.StripReserved(fields)
	if err := spec.Validate(clean); err != nil {
		return nil, err
	}

	rec, err := s.repo.Add(ctx, collection, &models.Record{ID: id, Fields: clean})
	if err != nil {
		return nil, fmt.Errorf("add %s: %w", collection, err)
	}
	return rec, nil
}

// Update merges fields into the record. A nil value removes a key.
func (s *Service) Update(ctx context.Context, collection, id string, fields map[string]any) (*models.Record, error) {
	if _, err := s.collections.Lookup(collection); err != nil {
		return nil, err
	}
	rec, err := s.repo.Update(ctx, collection, id, fields)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", collection, err)
	}
	return rec, nil
}

// Delete removes the record locally. Deletions are not sent to the remote.
func (s *Service) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.collections.Lookup(collection); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, collection, id); err != nil {
		return fmt.Errorf("delete %s: %w", collection, err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, collection, id string) (*models.Record, error) {
	return s.repo.Get(ctx, collection, id)
}

func (s *Service) List(ctx context.Context, collection string) ([]*models.Record, error) {
	return s.repo.GetAll(ctx, collection)
}

// Pending returns the number of unsynced records per collection, in
// configuration order.
func (s *Service) Pending(ctx context.Context) ([]PendingCount, error) {
	out := make([]PendingCount, 0, len(s.collections.Names()))
	for _, name := range s.collections.Names() {
		n, err := s.repo.CountUnsynced(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", name, err)
		}
		out = append(out, PendingCount{Collection: name, Unsynced: n})
	}
	return out, nil
}

// PendingCount is one line of Pending.
type PendingCount struct {
	Collection string
	Unsynced   int
}
