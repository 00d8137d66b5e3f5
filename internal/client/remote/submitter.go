// Package remote turns a collection's endpoint URL into something that can
// submit one record at a time. http(s) endpoints receive a POST per record;
// s3 endpoints archive each record as an object.
package remote

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/dmitrijs2005/tallysync/internal/client/models"
	"github.com/dmitrijs2005/tallysync/internal/common"
	"golang.org/x/crypto/blake2b"
)

// Submitter delivers a single record to a remote endpoint.
type Submitter interface {
	Submit(ctx context.Context, rec *models.Record) error
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, rec *models.Record) error

func (f SubmitterFunc) Submit(ctx context.Context, rec *models.Record) error {
	return f(ctx, rec)
}

// SubmissionError describes a record the endpoint refused.
type SubmissionError struct {
	Collection string
	ID         string
	StatusCode int
	Body       string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit %s/%s: status %d: %s", e.Collection, e.ID, e.StatusCode, e.Body)
}

func (e *SubmissionError) Unwrap() error { return common.ErrSubmission }

// IdempotencyKey identifies one revision of one record. Re-sending the same
// revision after a lost response produces the same key, so the endpoint can
// recognise the replay.
func IdempotencyKey(rec *models.Record) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(rec.Collection))
	h.Write([]byte{0})
	h.Write([]byte(rec.ID))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(rec.Revision, 10)))
	return hex.EncodeToString(h.Sum(nil))
}

// S3Options carries the object storage settings used by s3:// endpoints.
type S3Options struct {
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
}

// Options configures the submitters built by NewRouter.
type Options struct {
	// Timeout bounds a single submission. A timed out submission is a
	// failure for that record only.
	Timeout time.Duration

	// AuthToken, when set, is sent as a bearer token to http(s) endpoints.
	AuthToken string

	S3 S3Options
}

// NewRouter builds one Submitter per configured collection. An endpoint with
// an unsupported scheme is a configuration error.
func NewRouter(ctx context.Context, specs []models.CollectionSpec, opts Options) (map[string]Submitter, error) {
	out := make(map[string]Submitter, len(specs))
	var s3c objectPutter

	for _, spec := range specs {
		u, err := url.Parse(spec.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("%w: endpoint of %s: %v", common.ErrConfig, spec.Name, err)
		}

		switch u.Scheme {
		case "http", "https":
			out[spec.Name] = NewHTTPSubmitter(spec.Endpoint, opts.Timeout, opts.AuthToken)
		case "s3":
			if s3c == nil {
				s3c, err = newS3Client(ctx, opts.S3)
				if err != nil {
					return nil, err
				}
			}
			out[spec.Name] = NewS3Submitter(s3c, u.Host, u.Path, opts.Timeout)
		default:
			return nil, fmt.Errorf("%w: endpoint of %s: unsupported scheme %q", common.ErrConfig, spec.Name, u.Scheme)
		}
	}
	return out, nil
}

// IsTimeout reports whether err is a deadline or client timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
