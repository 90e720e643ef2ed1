package slackbot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ConnectionState is what the health endpoints need to know about the bot.
type ConnectionState interface {
	IsConnected() bool
}

// HealthServer provides HTTP health endpoints for Kubernetes liveness and readiness checks.
type HealthServer struct {
	state  ConnectionState
	server *http.Server
	port   int
	log    *zap.Logger
}

// NewHealthServer creates a new health server for the given bot.
func NewHealthServer(state ConnectionState, port int, log *zap.Logger) *HealthServer {
	return &HealthServer{
		state: state,
		port:  port,
		log:   log.Named("health"),
	}
}

// Handler returns the health mux.
func (h *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()

	// /healthz - liveness check: checks if the bot is connected to Slack
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if h.state.IsConnected() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("disconnected"))
		}
	})

	// /readyz - readiness check: the process is up and configured
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	return mux
}

// Start serves the health endpoints until ctx is canceled.
func (h *HealthServer) Start(ctx context.Context) error {
	h.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", h.port),
		Handler:           h.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	h.log.Info("starting health server", zap.Int("port", h.port))

	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		h.log.Info("shutting down health server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return h.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("health server error: %w", err)
	}
}
