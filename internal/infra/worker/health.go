package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// HealthServer serves the liveness and readiness probes.
//
//   - GET /health always answers 200 while the process runs.
//   - GET /health/ready answers 200 once SetReady(true) was called and,
//     when a staleness limit is set, the last successful cycle is recent
//     enough. Otherwise it answers 503.
type HealthServer struct {
	addr     string
	logger   *slog.Logger
	isReady  atomic.Bool
	maxStale time.Duration
	now      func() time.Time

	mu          sync.Mutex
	lastCycle   *cycleReport
	lastSuccess time.Time
}

type cycleReport struct {
	Status   string    `json:"status"`
	Duration string    `json:"duration"`
	Posted   int       `json:"posted"`
	At       time.Time `json:"at"`
}

type healthResponse struct {
	Status      string       `json:"status"`
	LastCycle   *cycleReport `json:"last_cycle,omitempty"`
	LastSuccess *time.Time   `json:"last_success,omitempty"`
}

// HealthOption configures a HealthServer.
type HealthOption func(*HealthServer)

// WithMaxStaleness makes readiness fail when no cycle has succeeded for d
// after the first success. Zero disables the check.
func WithMaxStaleness(d time.Duration) HealthOption {
	return func(h *HealthServer) { h.maxStale = d }
}

// NewHealthServer creates a server for addr, not ready and not started.
func NewHealthServer(addr string, logger *slog.Logger, opts ...HealthOption) *HealthServer {
	h := &HealthServer{addr: addr, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handler returns the probe routes.
func (h *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.handleLiveness)
	mux.HandleFunc("GET /health/ready", h.handleReadiness)
	return mux
}

// Start serves until ctx is done, then shuts down within five seconds.
// It returns nil after a clean shutdown.
func (h *HealthServer) Start(ctx context.Context) error {
	return serve(ctx, &http.Server{
		Addr:         h.addr,
		Handler:      h.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, "health", h.logger)
}

// SetReady sets the readiness flag.
func (h *HealthServer) SetReady(ready bool) {
	h.isReady.Store(ready)
	h.logger.Info("health server readiness changed", slog.Bool("ready", ready))
}

// RecordCycle remembers the latest cycle for the readiness probe.
func (h *HealthServer) RecordCycle(status string, duration time.Duration, posted int) {
	now := h.now()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastCycle = &cycleReport{Status: status, Duration: duration.String(), Posted: posted, At: now}
	if status == StatusSuccess {
		h.lastSuccess = now
	}
}

func (h *HealthServer) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	h.write(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (h *HealthServer) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	resp := healthResponse{Status: "ok", LastCycle: h.lastCycle}
	if !h.lastSuccess.IsZero() {
		t := h.lastSuccess
		resp.LastSuccess = &t
	}
	stale := h.maxStale > 0 && !h.lastSuccess.IsZero() && h.now().Sub(h.lastSuccess) > h.maxStale
	h.mu.Unlock()

	switch {
	case !h.isReady.Load():
		resp.Status = "not ready"
		h.write(w, http.StatusServiceUnavailable, resp)
	case stale:
		resp.Status = "stale"
		h.write(w, http.StatusServiceUnavailable, resp)
	default:
		h.write(w, http.StatusOK, resp)
	}
}

func (h *HealthServer) write(w http.ResponseWriter, code int, resp healthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode health response", slog.Any("error", err))
	}
}

// serve runs srv until ctx is done.
func serve(ctx context.Context, srv *http.Server, name string, logger *slog.Logger) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info(name+" server starting", slog.String("addr", srv.Addr))
		errChan <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error(name+" server shutdown failed", slog.Any("error", err))
			return err
		}
		logger.Info(name + " server stopped")
		return nil
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logger.Error(name+" server failed", slog.Any("error", err))
		return err
	}
}
