// Package models defines the client-side data model: records and the closed
// set of collections they belong to.
package models

import (
	"encoding/json"
	"maps"
	"time"
)

// Reserved payload keys. They are owned by the store and never kept in Fields.
const (
	FieldID        = "id"
	FieldUpdatedAt = "updatedAt"
	FieldSynced    = "synced"
)

// Record is one row of a collection.
type Record struct {
	// ID is unique within Collection and never reused.
	ID         string
	Collection string

	// Fields holds the collection-specific values. The sync engine treats
	// them as opaque.
	Fields map[string]any

	// UpdatedAt is the time of the last local mutation, in UTC.
	UpdatedAt time.Time

	// Synced is false while the current field values have not been accepted
	// by the remote endpoint.
	Synced bool

	// Revision increases with every local add/update. A remote
	// acknowledgement only applies to the revision that was submitted.
	Revision int64
}

// Payload renders the full record body sent to the remote endpoint:
// the fields plus id, updatedAt and synced.
func (r *Record) Payload() ([]byte, error) {
	body := make(map[string]any, len(r.Fields)+3)
	maps.Copy(body, r.Fields)
	body[FieldID] = r.ID
	body[FieldUpdatedAt] = r.UpdatedAt.UTC().Format(time.RFC3339Nano)
	body[FieldSynced] = r.Synced
	return json.Marshal(body)
}

// StripReserved returns a copy of fields without the store-owned keys.
func StripReserved(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		switch k {
		case FieldID, FieldUpdatedAt, FieldSynced:
			continue
		}
		out[k] = v
	}
	return out
}
