// Package webhook receives alert notifications from the external alerting
// system and hands validated remediation tasks to the dispatcher. The
// response to the caller never waits on remediation work.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/semaphore"

	"github.com/ppiankov/driftwatch/internal/audit"
	"github.com/ppiankov/driftwatch/internal/metrics"
	"github.com/ppiankov/driftwatch/internal/remed"
)

// ErrMalformedAlert marks an inbound payload that failed validation.
// Client input error: rejected at the boundary with a 400, never a crash.
var ErrMalformedAlert = errors.New("malformed alert")

// dedupSize caps the debounce cache. Entries expire on the window anyway;
// the cap only bounds memory under pathological label churn.
const dedupSize = 4096

// maxHandlers bounds concurrent alert handlers so an alert storm cannot
// exhaust resources.
const maxHandlers = 32

// maxBodyBytes bounds an inbound webhook body.
const maxBodyBytes = 1 << 20

// Config holds webhook server configuration.
type Config struct {
	Listen         string
	DebounceWindow time.Duration
}

// Server is the alert webhook and metrics HTTP endpoint.
type Server struct {
	cfg        Config
	router     *mux.Router
	dispatcher *remed.Dispatcher
	auditLog   *audit.Log
	dedup      *expirable.LRU[string, time.Time]
	handlers   *semaphore.Weighted
	logger     *slog.Logger
	fatal      chan error
}

// NewServer creates the HTTP surface: POST /alerts, GET /metrics, GET /healthz.
func NewServer(cfg Config, dispatcher *remed.Dispatcher, auditLog *audit.Log, m *metrics.Metrics, logger *slog.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		router:     mux.NewRouter(),
		dispatcher: dispatcher,
		auditLog:   auditLog,
		dedup:      expirable.NewLRU[string, time.Time](dedupSize, nil, cfg.DebounceWindow),
		handlers:   semaphore.NewWeighted(maxHandlers),
		logger:     logger,
		fatal:      make(chan error, 1),
	}

	s.router.HandleFunc("/alerts", s.handleAlerts).Methods(http.MethodPost)
	s.router.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	return s
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled or an audit write fails (which is
// fatal: an audit trail that silently stops recording is worse than a
// crash).
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-s.fatal:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return err
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("webhook: serve: %w", err)
	}
}

// alertmanagerPayload is the inbound webhook body: an array of firing
// alerts, each with a label set and an annotation set.
type alertmanagerPayload struct {
	Alerts []inboundAlert `json:"alerts"`
}

type inboundAlert struct {
	Status      string            `json:"status"`
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
	StartsAt    time.Time         `json:"startsAt"`
}

// receivedPayload is the audit record for an accepted alert.
type receivedPayload struct {
	Alert    string `json:"alert"`
	Severity string `json:"severity"`
	Target   string `json:"target"`
	FiredAt  string `json:"fired_at,omitempty"`
	Evidence string `json:"evidence,omitempty"`
}

type alertsResponse struct {
	Status       string `json:"status"`
	Received     int    `json:"received"`
	Accepted     int    `json:"accepted"`
	Deduplicated int    `json:"deduplicated"`
	Skipped      int    `json:"skipped"`
	Unmatched    int    `json:"unmatched"` // no remediation action configured
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if !s.handlers.TryAcquire(1) {
		writeError(w, http.StatusServiceUnavailable, "alert handler limit reached")
		return
	}
	defer s.handlers.Release(1)

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var payload alertmanagerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%v: %v", ErrMalformedAlert, err))
		return
	}

	// Validate everything before acting on anything.
	for i, a := range payload.Alerts {
		if a.Labels["alertname"] == "" || a.Labels["instance"] == "" {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("%v at index %d: alertname and instance labels are required", ErrMalformedAlert, i))
			return
		}
	}

	resp := alertsResponse{Status: "ok", Received: len(payload.Alerts)}
	for _, a := range payload.Alerts {
		switch s.accept(a) {
		case acceptOK:
			resp.Accepted++
		case acceptDeduplicated:
			resp.Deduplicated++
		case acceptSkipped:
			resp.Skipped++
		case acceptUnmatched:
			resp.Unmatched++
		case acceptFatal:
			writeError(w, http.StatusInternalServerError, "audit trail write failed")
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

type acceptResult int

const (
	acceptOK acceptResult = iota
	acceptDeduplicated
	acceptSkipped
	acceptUnmatched
	acceptFatal
)

// accept processes one validated alert: skip non-firing notifications,
// collapse redeliveries inside the debounce window, audit the receipt,
// and hand the task off without waiting on remediation.
func (s *Server) accept(a inboundAlert) acceptResult {
	alert := remed.Alert{
		Name:     a.Labels["alertname"],
		Severity: a.Labels["severity"],
		Target:   a.Labels["instance"],
		FiredAt:  a.StartsAt,
		Evidence: a.Annotations["description"],
	}

	if a.Status != "" && a.Status != "firing" {
		s.logger.Debug("alert not firing, skipping", "alert", alert.Name, "target", alert.Target, "status", a.Status)
		return acceptSkipped
	}

	key := remed.Key(alert.Target, alert.Name)
	if _, dup := s.dedup.Get(key); dup {
		s.logger.Debug("alert deduplicated", "alert", alert.Name, "target", alert.Target)
		return acceptDeduplicated
	}

	var firedAt string
	if !alert.FiredAt.IsZero() {
		firedAt = alert.FiredAt.UTC().Format(time.RFC3339)
	}
	if _, err := s.auditLog.Append(audit.TypeAlertReceived, receivedPayload{
		Alert:    alert.Name,
		Severity: alert.Severity,
		Target:   alert.Target,
		FiredAt:  firedAt,
		Evidence: alert.Evidence,
	}); err != nil {
		s.logger.Error("audit write failed", "error", err)
		select {
		case s.fatal <- err:
		default:
		}
		return acceptFatal
	}

	task, err := s.dispatcher.Submit(alert)
	switch {
	case errors.Is(err, remed.ErrUnknownAlertType):
		// Configuration gap: surfaced, no task created. The debounce is
		// not armed, so a redelivery after the action table gains the
		// mapping is not dropped.
		s.logger.Warn("no remediation action for alert", "alert", alert.Name, "target", alert.Target)
		return acceptUnmatched
	case err != nil:
		s.logger.Error("audit write failed", "error", err)
		select {
		case s.fatal <- err:
		default:
		}
		return acceptFatal
	}

	s.dedup.Add(key, time.Now())
	s.logger.Info("remediation task created",
		"task_id", task.ID, "alert", alert.Name, "target", alert.Target, "state", task.State)
	return acceptOK
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"audit_seq": s.auditLog.Seq(),
	})
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
