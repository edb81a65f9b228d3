// Package orchestrator coordinates the remediation pipeline: it turns an
// alert plus a recommendation into gated, executed, queued, and verified
// action outcomes, and finalizes exactly one incident record per processed
// alert.
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/autopilot-remediation-agent/internal/approval"
	"github.com/invisible-tech/autopilot-remediation-agent/internal/dispatch"
	"github.com/invisible-tech/autopilot-remediation-agent/internal/ledger"
	"github.com/invisible-tech/autopilot-remediation-agent/internal/policy"
	"github.com/invisible-tech/autopilot-remediation-agent/internal/recommend"
	"github.com/invisible-tech/autopilot-remediation-agent/internal/retrieval"
	"github.com/invisible-tech/autopilot-remediation-agent/internal/types"
	"github.com/invisible-tech/autopilot-remediation-agent/internal/verify"
)

// Prometheus metrics (registered once).
var (
	incidentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remediation_incidents_total",
			Help: "Total incidents processed",
		},
		[]string{"severity", "alert_name"},
	)
	confidenceObserved = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "remediation_confidence",
			Help:    "Recommender confidence scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)
	pendingApprovals = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "remediation_pending_approvals",
			Help: "Number of actions awaiting human approval",
		},
	)
)

func init() {
	prometheus.MustRegister(incidentsTotal)
	prometheus.MustRegister(confidenceObserved)
	prometheus.MustRegister(pendingApprovals)
}

// Target identifies the managed deployment that actions default to and that
// verification always checks.
type Target struct {
	Namespace  string
	Deployment string
}

// Orchestrator is the remediation state machine.
type Orchestrator struct {
	target      Target
	log         *logrus.Logger
	recommender recommend.Recommender
	dispatcher  *dispatch.Dispatcher
	verifier    *verify.Verifier
	queue       *approval.Queue
	ledger      *ledger.Ledger
	switches    *policy.Switches
	logs        retrieval.LogRetriever
	contexts    retrieval.ContextRetriever
	logLimit    int
}

// Deps are the collaborators the orchestrator coordinates. Logs and
// Contexts may be nil; they degrade to no-ops.
type Deps struct {
	Recommender recommend.Recommender
	Dispatcher  *dispatch.Dispatcher
	Verifier    *verify.Verifier
	Queue       *approval.Queue
	Ledger      *ledger.Ledger
	Switches    *policy.Switches
	Logs        retrieval.LogRetriever
	Contexts    retrieval.ContextRetriever
}

// New creates an orchestrator for one managed target.
func New(target Target, deps Deps, log *logrus.Logger) *Orchestrator {
	if deps.Logs == nil {
		deps.Logs = retrieval.NoLogs{}
	}
	if deps.Contexts == nil {
		deps.Contexts = retrieval.NoopContext{}
	}
	return &Orchestrator{
		target:      target,
		log:         log,
		recommender: deps.Recommender,
		dispatcher:  deps.Dispatcher,
		verifier:    deps.Verifier,
		queue:       deps.Queue,
		ledger:      deps.Ledger,
		switches:    deps.Switches,
		logs:        deps.Logs,
		contexts:    deps.Contexts,
		logLimit:    50,
	}
}

// Switches exposes the runtime policy switches for the admin surface.
func (o *Orchestrator) Switches() *policy.Switches { return o.switches }

// PendingApprovals lists queued proposals ordered by id.
func (o *Orchestrator) PendingApprovals() []types.PendingApproval { return o.queue.List() }

// RecentIncidents lists finalized records, most recent first.
func (o *Orchestrator) RecentIncidents(limit int) []types.IncidentRecord {
	return o.ledger.Recent(limit)
}

// ProcessBatch processes every alert in an Alertmanager webhook payload
// sequentially. One alert's failure never blocks the others: each alert
// yields its own result, and resolved alerts are skipped without a record.
func (o *Orchestrator) ProcessBatch(ctx context.Context, payload types.WebhookPayload) []types.BatchResult {
	results := make([]types.BatchResult, 0, len(payload.Alerts))
	for _, raw := range payload.Alerts {
		alert := flatten(raw, o.target.Namespace)
		if !alert.Firing() {
			o.log.WithField("alert", alert.Name).Info("Alert resolved, skipping")
			continue
		}
		results = append(results, o.processAlert(ctx, alert))
	}
	return results
}

func (o *Orchestrator) processAlert(ctx context.Context, alert types.Alert) types.BatchResult {
	o.log.WithFields(logrus.Fields{
		"alert": alert.Name, "severity": alert.Severity, "pod": alert.Pod,
	}).Info("Processing alert")

	logs := o.logs.RecentLogs(ctx, alert.Namespace, alert.Pod, o.logLimit)
	pastContext := retrieval.ContextPrompt(o.contexts.SimilarIncidents(alert))

	var trail []string
	confidence := 0.0
	analysis := ""
	allVerified := true

	rec, err := o.recommender.Recommend(ctx, alert, logs, pastContext)
	if err != nil {
		// Fail open on analysis, fail closed on action: the incident is
		// still recorded, with zero confidence and nothing executed.
		o.log.WithError(err).Warn("Recommender unavailable, recording incident without action")
		trail = append(trail, fmt.Sprintf("analysis unavailable: %v", err))
	} else {
		confidence = rec.Confidence
		analysis = rec.Analysis
		for _, proposal := range rec.Proposals {
			outcome, verified := o.runProposal(ctx, proposal, alert, confidence)
			trail = append(trail, outcome...)
			allVerified = allVerified && verified
		}
	}

	incidentsTotal.WithLabelValues(alert.Severity, alert.Name).Inc()
	confidenceObserved.Observe(confidence)

	actionTaken := "No action taken"
	if len(trail) > 0 {
		actionTaken = strings.Join(trail, ", ")
	}
	record := types.IncidentRecord{
		AlertName:   alert.Name,
		Severity:    alert.Severity,
		Namespace:   alert.Namespace,
		Pod:         alert.Pod,
		Description: alert.Description,
		Logs:        truncate(logs, 2000),
		Analysis:    analysis,
		Confidence:  confidence,
		ActionTaken: actionTaken,
		Verified:    allVerified,
		Status:      "completed",
	}
	id := o.ledger.Append(record)

	o.log.WithFields(logrus.Fields{
		"incident_id": id, "confidence": confidence,
		"action": actionTaken, "verified": allVerified,
	}).Info("Incident recorded")

	return types.BatchResult{
		IncidentID: id,
		Confidence: confidence,
		Action:     actionTaken,
		Verified:   allVerified,
	}
}

// runProposal gates one proposal and either executes (and verifies) it or
// queues it for approval. It returns the outcome trail entries and whether
// this proposal leaves the incident verified.
func (o *Orchestrator) runProposal(ctx context.Context, p types.Proposal, alert types.Alert, confidence float64) ([]string, bool) {
	decision := policy.Decide(p.Action, confidence, o.switches)
	if !decision.AutoExecute {
		id := o.queue.Enqueue(p, alert, confidence, string(decision.Reason))
		pendingApprovals.Set(float64(o.queue.Len()))
		o.log.WithFields(logrus.Fields{
			"action": p.Action, "approval_id": id, "reason": decision.Reason,
		}).Warn("Action queued for approval")
		return []string{fmt.Sprintf("%s: PENDING APPROVAL #%d (%s)", p.Action, id, decision.Reason)}, false
	}

	_, msg := o.dispatcher.Execute(ctx, p.Action, p.Args)
	trail := []string{fmt.Sprintf("%s: %s", p.Action, msg)}

	if !policy.IsMutating(p.Action) {
		return trail, true
	}
	verified, verifyMsg := o.verifier.Verify(ctx, o.target.Namespace, o.target.Deployment)
	if verified {
		trail = append(trail, "VERIFIED: "+verifyMsg)
	} else {
		trail = append(trail, "VERIFICATION FAILED: "+verifyMsg)
	}
	return trail, verified
}

// ApprovalResult is the outcome of resolving a queued action.
type ApprovalResult struct {
	Action       string `json:"action"`
	Success      bool   `json:"success"`
	Result       string `json:"result"`
	Verified     bool   `json:"verified"`
	Verification string `json:"verification,omitempty"`
}

// Approve pops the pending entry and executes it, verifying mutating
// actions. A second Approve or Reject of the same id fails with
// approval.ErrNotFound.
func (o *Orchestrator) Approve(ctx context.Context, id uint64) (ApprovalResult, error) {
	pending, err := o.queue.Approve(id)
	if err != nil {
		return ApprovalResult{}, err
	}
	pendingApprovals.Set(float64(o.queue.Len()))

	o.log.WithFields(logrus.Fields{"approval_id": id, "action": pending.Action}).Info("Approval granted")
	success, msg := o.dispatcher.Execute(ctx, pending.Action, pending.Args)
	result := ApprovalResult{Action: pending.Action, Success: success, Result: msg, Verified: true}
	if policy.IsMutating(pending.Action) {
		result.Verified, result.Verification = o.verifier.Verify(ctx, o.target.Namespace, o.target.Deployment)
	}
	return result, nil
}

// Reject pops the pending entry and discards it, returning the action name.
func (o *Orchestrator) Reject(id uint64) (string, error) {
	action, err := o.queue.Reject(id)
	if err != nil {
		return "", err
	}
	pendingApprovals.Set(float64(o.queue.Len()))
	o.log.WithFields(logrus.Fields{"approval_id": id, "action": action}).Info("Approval rejected")
	return action, nil
}

func flatten(raw types.WebhookAlert, defaultNamespace string) types.Alert {
	alert := types.Alert{
		Name:        raw.Labels["alertname"],
		Severity:    raw.Labels["severity"],
		Namespace:   raw.Labels["namespace"],
		Pod:         raw.Labels["pod"],
		Description: raw.Annotations["description"],
		Status:      raw.Status,
	}
	if alert.Name == "" {
		alert.Name = "Unknown"
	}
	if alert.Severity == "" {
		alert.Severity = "warning"
	}
	if alert.Namespace == "" {
		alert.Namespace = defaultNamespace
	}
	if alert.Status == "" {
		alert.Status = "firing"
	}
	return alert
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
