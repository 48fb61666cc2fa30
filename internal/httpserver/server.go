// Package httpserver exposes the call initiator, the provider webhook receiver and the admin
// appointment endpoints over HTTP.
package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"callagent/internal/observability"
)

type Server struct {
	Mux         *mux.Router
	AllowOrigin string
}

// New returns a router with request metrics attached. Register handlers on Mux, then serve
// Handler().
func New(allowOrigin string) *Server {
	m := mux.NewRouter()
	m.Use(Metrics(observability.APIRequests))
	return &Server{Mux: m, AllowOrigin: allowOrigin}
}

// Handler wraps the router with request id, access logging and CORS.
func (s *Server) Handler() http.Handler {
	return RequestID(Logging(CORS(s.AllowOrigin)(s.Mux)))
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight requests for up to 10s.
func ListenAndServe(ctx context.Context, name string, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info(name+" listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info(name + " shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
