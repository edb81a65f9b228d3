// Package server provides the HTTP server and API handlers for the
// remediation agent: the Alertmanager webhook, the approval endpoints, and
// the read-only incident/config surfaces.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/autopilot-remediation-agent/internal/approval"
	"github.com/invisible-tech/autopilot-remediation-agent/internal/config"
	"github.com/invisible-tech/autopilot-remediation-agent/internal/orchestrator"
	"github.com/invisible-tech/autopilot-remediation-agent/internal/types"
	"github.com/invisible-tech/autopilot-remediation-agent/internal/version"
)

var agentHealthy = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "remediation_agent_healthy",
	Help: "1 while the agent HTTP server is up",
})

func init() {
	prometheus.MustRegister(agentHealthy)
}

// Server is the HTTP server for the remediation agent API.
type Server struct {
	cfg          config.AgentConfig
	orchestrator *orchestrator.Orchestrator
	log          *logrus.Logger
	httpServer   *http.Server
}

// New creates a new HTTP server backed by the given orchestrator.
func New(cfg config.AgentConfig, orch *orchestrator.Orchestrator, log *logrus.Logger) *Server {
	mux := http.NewServeMux()
	s := &Server{cfg: cfg, orchestrator: orch, log: log}
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/webhook", s.handleWebhook)
	mux.HandleFunc("/trigger-test", s.handleTriggerTest)
	mux.HandleFunc("/incidents", s.handleIncidents)
	mux.HandleFunc("/pending", s.handlePending)
	mux.HandleFunc("/approve/", s.handleApprove)
	mux.HandleFunc("/reject/", s.handleReject)
	mux.HandleFunc("/config", s.handleConfig)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// ListenAndServe starts the HTTP server. It blocks until the server is closed.
func (s *Server) ListenAndServe() error {
	s.log.WithField("addr", s.cfg.HTTPAddr).Info("Remediation agent listening")
	agentHealthy.Set(1)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	agentHealthy.Set(0)
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sw := s.orchestrator.Switches()
	writeJSON(w, map[string]interface{}{
		"status":               "healthy",
		"version":              version.Version,
		"auto_action_enabled":  sw.AutoActionEnabled(),
		"confidence_threshold": sw.ConfidenceThreshold(),
		"pending_approvals":    len(s.orchestrator.PendingApprovals()),
	})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var payload types.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	s.processAndRespond(w, r.Context(), payload)
}

// processAndRespond runs the batch and writes the webhook response shape.
// The alerts count is the full batch size, including resolved alerts that
// were skipped without a result.
func (s *Server) processAndRespond(w http.ResponseWriter, ctx context.Context, payload types.WebhookPayload) {
	results := s.orchestrator.ProcessBatch(ctx, payload)
	writeJSON(w, map[string]interface{}{
		"status":  "processed",
		"alerts":  len(payload.Alerts),
		"results": results,
	})
}

// handleTriggerTest synthesizes a firing test alert for the managed target
// and runs it through the normal pipeline.
func (s *Server) handleTriggerTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	payload := types.WebhookPayload{Alerts: []types.WebhookAlert{{
		Status: "firing",
		Labels: map[string]string{
			"alertname": "ManualTest",
			"severity":  "critical",
			"namespace": s.cfg.TargetNamespace,
		},
		Annotations: map[string]string{
			"description": "Manual test alert triggered via API",
		},
	}}}
	s.log.Info("Test alert triggered via API")
	s.processAndRespond(w, r.Context(), payload)
}

func (s *Server) handleIncidents(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}
	writeJSON(w, s.orchestrator.RecentIncidents(limit))
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.orchestrator.PendingApprovals())
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := pathID(w, r.URL.Path, "/approve/")
	if !ok {
		return
	}
	result, err := s.orchestrator.Approve(r.Context(), id)
	if errors.Is(err, approval.ErrNotFound) {
		http.Error(w, "Approval not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := pathID(w, r.URL.Path, "/reject/")
	if !ok {
		return
	}
	action, err := s.orchestrator.Reject(id)
	if errors.Is(err, approval.ErrNotFound) {
		http.Error(w, "Approval not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{
		"status": "rejected",
		"action": action,
	})
}

// configUpdate carries the runtime-adjustable safety settings. Absent
// fields leave the running value untouched.
type configUpdate struct {
	ConfidenceThreshold *float64 `json:"confidence_threshold"`
	AutoActionEnabled   *bool    `json:"auto_action_enabled"`
	RequireApprovalFor  []string `json:"require_approval_for"`
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	sw := s.orchestrator.Switches()
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		var update configUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		if update.ConfidenceThreshold != nil {
			sw.SetConfidenceThreshold(*update.ConfidenceThreshold)
		}
		if update.AutoActionEnabled != nil {
			sw.SetAutoActionEnabled(*update.AutoActionEnabled)
		}
		if update.RequireApprovalFor != nil {
			sw.SetRequireApproval(update.RequireApprovalFor)
		}
		s.log.WithFields(logrus.Fields{
			"auto_action": sw.AutoActionEnabled(),
			"threshold":   sw.ConfidenceThreshold(),
		}).Info("Safety config updated via API")
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]interface{}{
		"confidence_threshold": sw.ConfidenceThreshold(),
		"auto_action_enabled":  sw.AutoActionEnabled(),
		"require_approval_for": sw.RequireApprovalList(),
	})
}

func pathID(w http.ResponseWriter, path, prefix string) (uint64, bool) {
	raw := strings.TrimPrefix(path, prefix)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		http.Error(w, "Invalid approval id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
