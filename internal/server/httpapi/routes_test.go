package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/tallysync/internal/client/models"
	"github.com/dmitrijs2005/tallysync/internal/client/remote"
	"github.com/dmitrijs2005/tallysync/internal/common"
	"github.com/dmitrijs2005/tallysync/internal/logging"
	"github.com/dmitrijs2005/tallysync/internal/server/auth"
	srvmodels "github.com/dmitrijs2005/tallysync/internal/server/models"
	"github.com/dmitrijs2005/tallysync/internal/server/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var collections = []string{"clients", "accounts", "ledger"}

func newTestHandler(t *testing.T, secret string) (http.Handler, *records.MemoryRepository) {
	t.Helper()
	repo := records.NewMemoryRepository()
	return NewHandler(repo, collections, secret, logging.Discard()).Routes(), repo
}

func post(h http.Handler, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	t.Parallel()
	h, _ := newTestHandler(t, "")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())
}

func TestSubmitRecord(t *testing.T) {
	t.Parallel()
	h, repo := newTestHandler(t, "")
	ctx := context.Background()

	body := `{"id":"c1","name":"Acme","updatedAt":"2026-02-03T04:05:06.000000007Z","synced":false}`
	rr := post(h, "/api/v1/clients", body, map[string]string{"Idempotency-Key": "k1"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"id":"c1","outcome":"created"}`, rr.Body.String())

	got, err := repo.Get(ctx, "clients", "c1")
	require.NoError(t, err)
	assert.JSONEq(t, body, string(got.Payload))
	require.NotNil(t, got.UpdatedAt)
	assert.Equal(t, time.Date(2026, 2, 3, 4, 5, 6, 7, time.UTC), *got.UpdatedAt)

	// same key again: stored once, still 200
	rr = post(h, "/api/v1/clients", body, map[string]string{"Idempotency-Key": "k1"})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"id":"c1","outcome":"replayed"}`, rr.Body.String())

	rr = post(h, "/api/v1/clients", `{"id":"c1","name":"Beta"}`, map[string]string{"Idempotency-Key": "k2"})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"id":"c1","outcome":"updated"}`, rr.Body.String())

	n, err := repo.Count(ctx, "clients")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	get := httptest.NewRecorder()
	h.ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/api/v1/clients/c1", nil))
	assert.Equal(t, http.StatusOK, get.Code)
	assert.JSONEq(t, `{"id":"c1","name":"Beta"}`, get.Body.String())

	count := httptest.NewRecorder()
	h.ServeHTTP(count, httptest.NewRequest(http.MethodGet, "/api/v1/clients", nil))
	assert.JSONEq(t, `{"collection":"clients","count":1}`, count.Body.String())
}

func TestSubmitRecord_Rejects(t *testing.T) {
	t.Parallel()
	h, _ := newTestHandler(t, "")

	tests := []struct {
		name, path, body string
		want             int
	}{
		{"unknown collection", "/api/v1/orders", `{"id":"o1"}`, http.StatusNotFound},
		{"not json", "/api/v1/clients", `hello`, http.StatusBadRequest},
		{"array", "/api/v1/clients", `[1,2]`, http.StatusBadRequest},
		{"null", "/api/v1/clients", `null`, http.StatusBadRequest},
		{"missing id", "/api/v1/clients", `{"name":"x"}`, http.StatusBadRequest},
		{"numeric id", "/api/v1/clients", `{"id":5}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, post(h, tt.path, tt.body, nil).Code)
		})
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/clients/none", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAuth(t *testing.T) {
	t.Parallel()
	h, _ := newTestHandler(t, "secret")
	body := `{"id":"a1","amount":3}`

	assert.Equal(t, http.StatusUnauthorized, post(h, "/api/v1/accounts", body, nil).Code)
	assert.Equal(t, http.StatusUnauthorized,
		post(h, "/api/v1/accounts", body, map[string]string{"Authorization": "Bearer nope"}).Code)

	expired, err := auth.GenerateToken("dev", []byte("secret"), -time.Minute)
	require.NoError(t, err)
	rr := post(h, "/api/v1/accounts", body, map[string]string{"Authorization": "Bearer " + expired})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "token expired")

	tok, err := auth.GenerateToken("dev", []byte("secret"), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated,
		post(h, "/api/v1/accounts", body, map[string]string{"Authorization": "Bearer " + tok}).Code)

	// health stays open
	hr := httptest.NewRecorder()
	h.ServeHTTP(hr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, hr.Code)
}

type failingRepo struct{ records.Repository }

func (failingRepo) Upsert(context.Context, *srvmodels.Received) (srvmodels.Outcome, error) {
	return 0, errors.New("db down")
}

func TestSubmitRecord_StorageError(t *testing.T) {
	t.Parallel()
	h := NewHandler(failingRepo{}, collections, "", logging.Discard()).Routes()
	assert.Equal(t, http.StatusInternalServerError, post(h, "/api/v1/ledger", `{"id":"l1"}`, nil).Code)
}

func TestClientSubmitterAgainstCollector(t *testing.T) {
	t.Parallel()
	h, repo := newTestHandler(t, "secret")
	srv := httptest.NewServer(h)
	defer srv.Close()

	tok, err := auth.GenerateToken("laptop", []byte("secret"), time.Hour)
	require.NoError(t, err)

	sub := remote.NewHTTPSubmitter(srv.URL+"/api/v1/ledger", time.Second, tok)
	rec := &models.Record{
		ID:         "l1",
		Collection: "ledger",
		Fields:     map[string]any{"amount": 10, "type": "credit"},
		UpdatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Revision:   1,
	}

	// a lost response makes the client resend the same revision
	require.NoError(t, sub.Submit(context.Background(), rec))
	require.NoError(t, sub.Submit(context.Background(), rec))

	got, err := repo.Get(context.Background(), "ledger", "l1")
	require.NoError(t, err)
	assert.Equal(t, remote.IdempotencyKey(rec), got.IdempotencyKey)

	unknown := remote.NewHTTPSubmitter(srv.URL+"/api/v1/orders", time.Second, tok)
	err = unknown.Submit(context.Background(), &models.Record{ID: "o1", Collection: "orders"})
	require.ErrorIs(t, err, common.ErrSubmission)
}
