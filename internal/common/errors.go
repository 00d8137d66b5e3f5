// Package common defines sentinel errors shared by the tallysync client and
// collector. Callers match them with errors.Is.
package common

import "errors"

var (
	// Local store contract errors.
	ErrNotFound          = errors.New("not found")
	ErrDuplicateID       = errors.New("duplicate id")
	ErrUnknownCollection = errors.New("unknown collection")

	// Record validation.
	ErrValidation = errors.New("validation error")

	// A single record was not accepted by its remote endpoint.
	ErrSubmission = errors.New("submission failed")

	// Configuration is inconsistent or incomplete.
	ErrConfig = errors.New("invalid configuration")

	// Bearer token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
