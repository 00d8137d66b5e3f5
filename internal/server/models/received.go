// Package models holds the collector's data types.
package models

import (
	"encoding/json"
	"time"
)

// Received is the latest version of a record a client submitted.
type Received struct {
	Collection string
	ID         string

	// Payload is the full record body exactly as the client sent it.
	Payload json.RawMessage

	// UpdatedAt is the client's updatedAt, when it parsed as RFC 3339.
	UpdatedAt *time.Time

	IdempotencyKey string
	ReceivedAt     time.Time
}

// Outcome tells what an upsert did.
type Outcome int

const (
	OutcomeCreated Outcome = iota + 1
	OutcomeUpdated
	// OutcomeReplayed means the same idempotency key was already stored.
	OutcomeReplayed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	case OutcomeReplayed:
		return "replayed"
	}
	return "unknown"
}
