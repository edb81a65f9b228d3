// Package types defines shared API types for alerts, proposals, and incident
// records used by the agent HTTP API and internal processing.
package types

import "time"

// Alert is one alert from an Alertmanager webhook payload, flattened to the
// fields the remediation pipeline uses. Immutable once received.
type Alert struct {
	Name        string `json:"alert_name"`
	Severity    string `json:"severity"`
	Namespace   string `json:"namespace"`
	Pod         string `json:"pod"`
	Description string `json:"description"`
	Status      string `json:"status"` // firing | resolved
}

// Firing reports whether the alert should enter the pipeline.
func (a *Alert) Firing() bool {
	return a.Status != "resolved"
}

// WebhookPayload is the Alertmanager webhook request body.
type WebhookPayload struct {
	Alerts []WebhookAlert `json:"alerts"`
}

// WebhookAlert is the raw Alertmanager alert shape.
type WebhookAlert struct {
	Status      string            `json:"status"`
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
}

// Proposal is one recommended action extracted from a recommendation.
// It exists only during orchestration.
type Proposal struct {
	Action    string
	Args      map[string]interface{}
	Rationale string
}

// Recommendation is the structured result of one recommender call. The
// confidence is shared across all proposals it contains.
type Recommendation struct {
	Analysis   string
	Confidence float64
	Proposals  []Proposal
}

// PendingApproval is a queued proposal awaiting a human decision.
type PendingApproval struct {
	ID         uint64                 `json:"id"`
	Action     string                 `json:"action"`
	Args       map[string]interface{} `json:"args,omitempty"`
	Alert      Alert                  `json:"alert"`
	Confidence float64                `json:"confidence"`
	Reason     string                 `json:"reason"`
	EnqueuedAt time.Time              `json:"enqueued_at"`
}

// IncidentRecord is the terminal, immutable summary of one alert's full
// processing lifecycle. The ledger assigns ID at append time.
type IncidentRecord struct {
	ID          uint64    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	AlertName   string    `json:"alert_name"`
	Severity    string    `json:"severity"`
	Namespace   string    `json:"namespace"`
	Pod         string    `json:"pod"`
	Description string    `json:"description"`
	Logs        string    `json:"logs,omitempty"`
	Analysis    string    `json:"analysis,omitempty"`
	Confidence  float64   `json:"confidence"`
	ActionTaken string    `json:"action_taken"`
	Verified    bool      `json:"verified"`
	Status      string    `json:"status"`
}

// BatchResult is the per-alert entry returned from a processed webhook batch.
type BatchResult struct {
	IncidentID uint64  `json:"incident_id"`
	Confidence float64 `json:"confidence"`
	Action     string  `json:"action"`
	Verified   bool    `json:"verified"`
}

// PastIncident is a similar prior incident surfaced to the recommender.
type PastIncident struct {
	AlertName   string
	ActionTaken string
	Verified    bool
	Score       float64
}
