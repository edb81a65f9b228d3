package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/autopilot-remediation-agent/internal/approval"
	"github.com/invisible-tech/autopilot-remediation-agent/internal/config"
	"github.com/invisible-tech/autopilot-remediation-agent/internal/dispatch"
	"github.com/invisible-tech/autopilot-remediation-agent/internal/ledger"
	"github.com/invisible-tech/autopilot-remediation-agent/internal/orchestrator"
	"github.com/invisible-tech/autopilot-remediation-agent/internal/policy"
	"github.com/invisible-tech/autopilot-remediation-agent/internal/types"
	"github.com/invisible-tech/autopilot-remediation-agent/internal/verify"
)

type fixedRecommender struct {
	rec types.Recommendation
}

func (f fixedRecommender) Recommend(context.Context, types.Alert, string, string) (types.Recommendation, error) {
	return f.rec, nil
}

type readyStatus struct{}

func (readyStatus) ReadHealth(context.Context, string, string) (int32, int32, error) {
	return 1, 1, nil
}

func newTestServer(t *testing.T, rec types.Recommendation) (*httptest.Server, *orchestrator.Orchestrator) {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	d := dispatch.New(log)
	d.Register("restart_deployment", func(ctx context.Context, args map[string]interface{}) (bool, string) {
		return true, "restarted"
	})
	d.Register("rollback_deployment", func(ctx context.Context, args map[string]interface{}) (bool, string) {
		return true, "rolled back"
	})

	orch := orchestrator.New(
		orchestrator.Target{Namespace: "default", Deployment: "demo-app"},
		orchestrator.Deps{
			Recommender: fixedRecommender{rec: rec},
			Dispatcher:  d,
			Verifier:    verify.New(readyStatus{}, time.Millisecond, 10*time.Millisecond, log),
			Queue:       approval.NewQueue(),
			Ledger:      ledger.New(100),
			Switches:    policy.NewSwitches(true, 0.8, nil),
		},
		log,
	)

	s := New(config.AgentConfig{HTTPAddr: ":0", TargetNamespace: "default"}, orch, log)
	ts := httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, orch
}

func webhookBody() string {
	return `{"alerts":[{"status":"firing","labels":{"alertname":"HighErrorRate","severity":"critical","namespace":"default","pod":"demo-app-abc"},"annotations":{"description":"errors"}}]}`
}

func TestHandleHealth(t *testing.T) {
	ts, _ := newTestServer(t, types.Recommendation{})
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "healthy" || body["version"] == "" {
		t.Errorf("body = %v", body)
	}
	if body["confidence_threshold"] != 0.8 {
		t.Errorf("threshold = %v", body["confidence_threshold"])
	}
}

func TestHandleWebhook_ProcessesAlerts(t *testing.T) {
	ts, orch := newTestServer(t, types.Recommendation{
		Confidence: 0.9,
		Proposals:  []types.Proposal{{Action: "restart_deployment"}},
	})
	resp, err := http.Post(ts.URL+"/webhook", "application/json", strings.NewReader(webhookBody()))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		Status  string              `json:"status"`
		Results []types.BatchResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "processed" || len(body.Results) != 1 {
		t.Fatalf("body = %+v", body)
	}
	if !body.Results[0].Verified {
		t.Errorf("result = %+v", body.Results[0])
	}
	if len(orch.RecentIncidents(10)) != 1 {
		t.Error("incident not recorded")
	}
}

// The alerts count covers the whole batch, resolved alerts included, even
// though skipped alerts produce no result entry.
func TestHandleWebhook_AlertCountIncludesResolved(t *testing.T) {
	ts, _ := newTestServer(t, types.Recommendation{Confidence: 0.9})
	body := `{"alerts":[
		{"status":"firing","labels":{"alertname":"A","severity":"critical","namespace":"default"}},
		{"status":"resolved","labels":{"alertname":"B","severity":"critical","namespace":"default"}}
	]}`
	resp, err := http.Post(ts.URL+"/webhook", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var decoded struct {
		Alerts  int                 `json:"alerts"`
		Results []types.BatchResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Alerts != 2 {
		t.Errorf("alerts = %d, want 2", decoded.Alerts)
	}
	if len(decoded.Results) != 1 {
		t.Errorf("got %d results, want 1", len(decoded.Results))
	}
}

func TestHandleTriggerTest(t *testing.T) {
	ts, orch := newTestServer(t, types.Recommendation{Confidence: 0.9})
	resp, err := http.Post(ts.URL+"/trigger-test", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var decoded struct {
		Status  string              `json:"status"`
		Alerts  int                 `json:"alerts"`
		Results []types.BatchResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Status != "processed" || decoded.Alerts != 1 || len(decoded.Results) != 1 {
		t.Fatalf("body = %+v", decoded)
	}
	recs := orch.RecentIncidents(1)
	if len(recs) != 1 || recs[0].AlertName != "ManualTest" {
		t.Errorf("incidents = %+v", recs)
	}
	if recs[0].Namespace != "default" {
		t.Errorf("namespace = %q", recs[0].Namespace)
	}
}

func TestHandleTriggerTest_RejectsGet(t *testing.T) {
	ts, _ := newTestServer(t, types.Recommendation{})
	resp, err := http.Get(ts.URL + "/trigger-test")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestHandleWebhook_RejectsBadJSON(t *testing.T) {
	ts, _ := newTestServer(t, types.Recommendation{})
	resp, err := http.Post(ts.URL+"/webhook", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleWebhook_RejectsGet(t *testing.T) {
	ts, _ := newTestServer(t, types.Recommendation{})
	resp, err := http.Get(ts.URL + "/webhook")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestApprovalFlow(t *testing.T) {
	ts, orch := newTestServer(t, types.Recommendation{
		Confidence: 0.9,
		Proposals:  []types.Proposal{{Action: "rollback_deployment"}},
	})
	if _, err := http.Post(ts.URL+"/webhook", "application/json", strings.NewReader(webhookBody())); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(ts.URL + "/pending")
	if err != nil {
		t.Fatal(err)
	}
	var pending []types.PendingApproval
	if err := json.NewDecoder(resp.Body).Decode(&pending); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(pending) != 1 {
		t.Fatalf("got %d pending, want 1", len(pending))
	}

	resp, err = http.Post(ts.URL+"/approve/1", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve status = %d", resp.StatusCode)
	}
	var result orchestrator.ApprovalResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if !result.Success || result.Action != "rollback_deployment" || !result.Verified {
		t.Errorf("result = %+v", result)
	}

	// The id is gone now.
	resp2, err := http.Post(ts.URL+"/approve/1", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Errorf("second approve status = %d, want 404", resp2.StatusCode)
	}
	if len(orch.PendingApprovals()) != 0 {
		t.Error("queue not empty")
	}
}

func TestHandleReject(t *testing.T) {
	ts, _ := newTestServer(t, types.Recommendation{
		Confidence: 0.9,
		Proposals:  []types.Proposal{{Action: "rollback_deployment"}},
	})
	if _, err := http.Post(ts.URL+"/webhook", "application/json", strings.NewReader(webhookBody())); err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(ts.URL+"/reject/1", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "rejected" || body["action"] != "rollback_deployment" {
		t.Errorf("body = %v", body)
	}
}

func TestHandleApprove_InvalidID(t *testing.T) {
	ts, _ := newTestServer(t, types.Recommendation{})
	resp, err := http.Post(ts.URL+"/approve/abc", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleConfig_GetAndUpdate(t *testing.T) {
	ts, orch := newTestServer(t, types.Recommendation{})

	resp, err := http.Get(ts.URL + "/config")
	if err != nil {
		t.Fatal(err)
	}
	var cfg struct {
		ConfidenceThreshold float64  `json:"confidence_threshold"`
		AutoActionEnabled   bool     `json:"auto_action_enabled"`
		RequireApprovalFor  []string `json:"require_approval_for"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if cfg.ConfidenceThreshold != 0.8 || !cfg.AutoActionEnabled {
		t.Errorf("config = %+v", cfg)
	}

	update := `{"confidence_threshold":0.6,"auto_action_enabled":false,"require_approval_for":["delete_pod"]}`
	resp, err = http.Post(ts.URL+"/config", "application/json", strings.NewReader(update))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	sw := orch.Switches()
	if sw.ConfidenceThreshold() != 0.6 {
		t.Errorf("threshold = %v", sw.ConfidenceThreshold())
	}
	if sw.AutoActionEnabled() {
		t.Error("auto action still enabled")
	}
	if !sw.RequiresApproval("delete_pod") {
		t.Error("delete_pod not on approval list")
	}
}

func TestHandleConfig_PartialUpdate(t *testing.T) {
	ts, orch := newTestServer(t, types.Recommendation{})
	resp, err := http.Post(ts.URL+"/config", "application/json", strings.NewReader(`{"confidence_threshold":0.9}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	sw := orch.Switches()
	if sw.ConfidenceThreshold() != 0.9 {
		t.Errorf("threshold = %v", sw.ConfidenceThreshold())
	}
	if !sw.AutoActionEnabled() {
		t.Error("absent field changed auto-action switch")
	}
}

func TestHandleIncidents(t *testing.T) {
	ts, _ := newTestServer(t, types.Recommendation{Confidence: 0.9})
	if _, err := http.Post(ts.URL+"/webhook", "application/json", strings.NewReader(webhookBody())); err != nil {
		t.Fatal(err)
	}
	resp, err := http.Get(ts.URL + "/incidents?limit=5")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var recs []types.IncidentRecord
	if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d incidents, want 1", len(recs))
	}
	if recs[0].AlertName != "HighErrorRate" || recs[0].Status != "completed" {
		t.Errorf("record = %+v", recs[0])
	}
}
