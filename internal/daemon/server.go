package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"drafter/internal/api"
	"drafter/internal/config"
	"drafter/internal/logging"
	"drafter/internal/queue"
	"drafter/internal/services"
)

// WebhookPath is where the provider delivers signed status callbacks.
const WebhookPath = "/webhooks/translation"

type httpServer struct {
	bind   string
	logger *slog.Logger
	engine *api.Engine

	listener net.Listener
	server   *http.Server
}

func newHTTPServer(cfg *config.Config, engine *api.Engine, logger *slog.Logger) (*httpServer, error) {
	if cfg == nil || engine == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.WebhookBind)
	if bind == "" {
		return nil, nil
	}

	mux := http.NewServeMux()
	srv := &httpServer{
		bind:   bind,
		logger: logger,
		engine: engine,
	}

	mux.Handle(WebhookPath, engine.WebhookHandler())
	mux.HandleFunc("/api/health", srv.handleHealth)
	mux.HandleFunc("/api/jobs", srv.handleJobs)
	mux.HandleFunc("/api/jobs/", srv.handleJob)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *httpServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("webhook listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("webhook server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("webhook server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *httpServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *httpServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *httpServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	health, err := s.engine.Health(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{
		"total":      health.Total,
		"pending":    health.Pending,
		"inprogress": health.InProgress,
		"success":    health.Succeeded,
		"failed":     health.Failed,
		"timeout":    health.TimedOut,
		"cancelled":  health.Cancelled,
	})
}

func (s *httpServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var statuses []queue.Status
	for _, raw := range r.URL.Query()["status"] {
		parsed, ok := queue.ParseStatus(raw)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", raw))
			return
		}
		statuses = append(statuses, parsed)
	}
	jobs, err := s.engine.List(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	reports := make([]*api.StatusReport, 0, len(jobs))
	for _, job := range jobs {
		report, err := s.engine.GetStatus(r.Context(), job.JobID)
		if err != nil {
			continue
		}
		reports = append(reports, report)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"jobs": reports})
}

func (s *httpServer) handleJob(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	jobID, action, _ := strings.Cut(rest, "/")
	if jobID == "" {
		s.writeError(w, http.StatusBadRequest, "missing job id")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		report, err := s.engine.GetStatus(r.Context(), jobID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, report)
	case action == "metadata" && r.Method == http.MethodGet:
		record, err := s.engine.GetMetadata(r.Context(), jobID, r.URL.Query().Get("refresh") == "true")
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, record)
	case action == "manifest" && r.Method == http.MethodGet:
		manifest, err := s.engine.GetManifest(r.Context(), jobID, r.URL.Query().Get("refresh") == "true")
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, manifest)
	case action == "retry" && r.Method == http.MethodPost:
		job, err := s.engine.Retry(r.Context(), jobID, r.URL.Query().Get("reset") == "true")
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"jobId": job.JobID, "status": job.Status})
	case action == "cancel" && r.Method == http.MethodPost:
		job, err := s.engine.Cancel(r.Context(), jobID, "cancelled via api")
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"jobId": job.JobID, "status": job.Status})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *httpServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, services.ErrNotReady):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrNotRetryable), errors.Is(err, services.ErrStateViolation):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrValidation):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *httpServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *httpServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *httpServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.NewComponentLogger(s.logger, "webhook-server")
	}
	return logging.NewNop()
}
