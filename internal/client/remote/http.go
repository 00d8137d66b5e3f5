package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/tallysync/internal/client/models"
)

// Header carrying IdempotencyKey on every POST.
const IdempotencyHeader = "Idempotency-Key"

// HTTPSubmitter POSTs the full record body to a fixed URL.
type HTTPSubmitter struct {
	url    string
	token  string
	client *http.Client
}

func NewHTTPSubmitter(url string, timeout time.Duration, token string) *HTTPSubmitter {
	return &HTTPSubmitter{url: url, token: token, client: &http.Client{Timeout: timeout}}
}

func (s *HTTPSubmitter) Submit(ctx context.Context, rec *models.Record) error {
	body, err := rec.Payload()
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", rec.Collection, rec.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(IdempotencyHeader, IdempotencyKey(rec))
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s/%s: %w", rec.Collection, rec.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &SubmissionError{
			Collection: rec.Collection,
			ID:         rec.ID,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(b)),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
