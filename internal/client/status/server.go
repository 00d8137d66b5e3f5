package status

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// Serve listens on addr until ctx is cancelled.
func (h *Handler) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return h.serve(ctx, lis)
}

func (h *Handler) serve(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{Handler: h.Routes(), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	h.logger.Info(ctx, "status server listening", "addr", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
