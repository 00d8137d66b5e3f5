// Package httpapi serves the collector's record API: one POST endpoint per
// collection that upserts the submitted record.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/tallysync/internal/common"
	"github.com/dmitrijs2005/tallysync/internal/logging"
	"github.com/dmitrijs2005/tallysync/internal/server/models"
	"github.com/dmitrijs2005/tallysync/internal/server/records"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	idempotencyHeader = "Idempotency-Key"
	maxBodyBytes      = 1 << 20
)

type Handler struct {
	repo        records.Repository
	collections map[string]struct{}
	secret      []byte
	logger      logging.Logger
	now         func() time.Time
}

// NewHandler builds the API. An empty secret disables bearer auth.
func NewHandler(repo records.Repository, collections []string, secret string, logger logging.Logger) *Handler {
	set := make(map[string]struct{}, len(collections))
	for _, c := range collections {
		set[c] = struct{}{}
	}
	return &Handler{
		repo:        repo,
		collections: set,
		secret:      []byte(secret),
		logger:      logger.With("module", "httpapi"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		if len(h.secret) > 0 {
			r.Use(h.authMiddleware)
		}
		r.Post("/{collection}", h.SubmitRecord)
		r.Get("/{collection}", h.CountRecords)
		r.Get("/{collection}/{id}", h.GetRecord)
	})

	return r
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type submitResponse struct {
	ID      string `json:"id"`
	Outcome string `json:"outcome"`
}

// SubmitRecord upserts the posted record. 201 on create, 200 on update or on
// a replay of an idempotency key already stored for the record.
func (h *Handler) SubmitRecord(w http.ResponseWriter, r *http.Request) {
	collection, ok := h.collection(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return
	}

	rec, err := decodeRecord(collection, body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rec.IdempotencyKey = r.Header.Get(idempotencyHeader)
	rec.ReceivedAt = h.now()

	outcome, err := h.repo.Upsert(r.Context(), rec)
	if err != nil {
		h.logger.Error(r.Context(), "failed to store record", "collection", collection, "id", rec.ID, "error", err)
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}

	h.logger.Debug(r.Context(), "record stored",
		"collection", collection, "id", rec.ID, "outcome", outcome, "device", DeviceID(r.Context()))

	code := http.StatusOK
	if outcome == models.OutcomeCreated {
		code = http.StatusCreated
	}
	writeJSON(w, code, submitResponse{ID: rec.ID, Outcome: outcome.String()})
}

func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	collection, ok := h.collection(w, r)
	if !ok {
		return
	}
	rec, err := h.repo.Get(r.Context(), collection, chi.URLParam(r, "id"))
	if errors.Is(err, common.ErrNotFound) {
		http.Error(w, "record not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rec.Payload)
}

func (h *Handler) CountRecords(w http.ResponseWriter, r *http.Request) {
	collection, ok := h.collection(w, r)
	if !ok {
		return
	}
	n, err := h.repo.Count(r.Context(), collection)
	if err != nil {
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"collection": collection, "count": n})
}

func (h *Handler) collection(w http.ResponseWriter, r *http.Request) (string, bool) {
	c := chi.URLParam(r, "collection")
	if _, ok := h.collections[c]; !ok {
		http.Error(w, "unknown collection", http.StatusNotFound)
		return "", false
	}
	return c, true
}

// decodeRecord checks that body is a JSON object with a non-empty string id.
func decodeRecord(collection string, body []byte) (*models.Received, error) {
	var fields map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return nil, errors.New("body must be a JSON object")
	}

	id, _ := fields["id"].(string)
	if id == "" {
		return nil, errors.New("id must be a non-empty string")
	}

	rec := &models.Received{Collection: collection, ID: id, Payload: body}
	if s, ok := fields["updatedAt"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			t = t.UTC()
			rec.UpdatedAt = &t
		}
	}
	return rec, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debug(r.Context(), "request",
			"method", r.Method, "path", r.URL.Path, "status", ww.Status(),
			"took", time.Since(start), "request_id", middleware.GetReqID(r.Context()))
	})
}

type ctxKey string

const deviceIDKey ctxKey = "deviceID"

// DeviceID returns the device a request was authenticated as, if any.
func DeviceID(ctx context.Context) string {
	id, _ := ctx.Value(deviceIDKey).(string)
	return id
}
