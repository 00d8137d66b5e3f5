package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/tallysync/internal/client/scheduler"
	"github.com/dmitrijs2005/tallysync/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

// Controller is the part of the scheduler the HTTP surface drives.
type Controller interface {
	Trigger(source scheduler.Source) bool
	SetOfflineMode(enabled bool)
	OfflineMode() bool
}

type offlineMode struct {
	Enabled bool `json:"enabled"`
}

type syncResponse struct {
	Started bool   `json:"started"`
	Reason  string `json:"reason,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const wsWriteTimeout = 5 * time.Second

// Handler serves the projection and a few scheduler controls.
type Handler struct {
	proj   *Projection
	ctrl   Controller
	logger logging.Logger
}

func NewHandler(proj *Projection, ctrl Controller, logger logging.Logger) *Handler {
	return &Handler{proj: proj, ctrl: ctrl, logger: logger.With("module", "status")}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/status", h.getStatus)
	r.Get("/status/ws", h.streamStatus)
	r.Post("/sync", h.postSync)
	r.Get("/offline-mode", h.getOfflineMode)
	r.Put("/offline-mode", h.putOfflineMode)
	return r
}

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.proj.Snapshot())
}

func (h *Handler) postSync(w http.ResponseWriter, r *http.Request) {
	if !h.ctrl.OfflineMode() {
		writeJSON(w, http.StatusConflict, syncResponse{Reason: "offline mode disabled"})
		return
	}
	if !h.ctrl.Trigger(scheduler.TriggerManual) {
		writeJSON(w, http.StatusConflict, syncResponse{Reason: "sync already running"})
		return
	}
	writeJSON(w, http.StatusAccepted, syncResponse{Started: true})
}

func (h *Handler) getOfflineMode(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, offlineMode{Enabled: h.ctrl.OfflineMode()})
}

func (h *Handler) putOfflineMode(w http.ResponseWriter, r *http.Request) {
	var req offlineMode
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	h.ctrl.SetOfflineMode(req.Enabled)
	writeJSON(w, http.StatusOK, offlineMode{Enabled: h.ctrl.OfflineMode()})
}

// streamStatus pushes every snapshot change until the peer goes away.
func (h *Handler) streamStatus(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// the read loop only exists to notice the peer closing
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	updates, unsubscribe := h.proj.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(snap); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					h.logger.Debug(ctx, "websocket write failed", "error", err)
				}
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
