// Package recommend calls the LLM recommender and turns its reply into a
// structured recommendation: analysis text, a confidence score, and zero or
// more proposed actions.
package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/autopilot-remediation-agent/internal/types"
)

// Recommender produces a remediation recommendation for an alert. It is an
// untrusted collaborator: callers must treat the result as advisory and may
// receive an error.
type Recommender interface {
	Recommend(ctx context.Context, alert types.Alert, logs, pastContext string) (types.Recommendation, error)
}

// GroqConfig configures the Groq (OpenAI-compatible) recommender.
type GroqConfig struct {
	APIKey  string
	BaseURL string // e.g. https://api.groq.com/openai/v1
	Model   string
}

// GroqRecommender calls an OpenAI-compatible chat API with tool definitions
// for the action catalog and parses the structured response.
type GroqRecommender struct {
	client *openai.Client
	model  string
	log    *logrus.Logger
}

// NewGroqRecommender creates the recommender. An empty model defaults to
// llama-3.3-70b-versatile.
func NewGroqRecommender(cfg GroqConfig, log *logrus.Logger) *GroqRecommender {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}
	return &GroqRecommender{client: openai.NewClientWithConfig(clientCfg), model: model, log: log}
}

// Recommend asks the model to analyze the alert and propose actions via tool
// calls. The confidence line in the analysis applies to every proposal.
func (r *GroqRecommender) Recommend(ctx context.Context, alert types.Alert, logs, pastContext string) (types.Recommendation, error) {
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(alert, logs, pastContext)},
		},
		Tools:     actionTools(),
		MaxTokens: 1000,
	})
	if err != nil {
		return types.Recommendation{}, fmt.Errorf("recommender call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return types.Recommendation{}, fmt.Errorf("recommender returned no choices")
	}

	msg := resp.Choices[0].Message
	rec := types.Recommendation{
		Analysis:   msg.Content,
		Confidence: ParseConfidence(msg.Content),
	}
	for _, tc := range msg.ToolCalls {
		args := make(map[string]interface{})
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				r.log.WithError(err).WithField("action", tc.Function.Name).Warn("Unparseable tool arguments, dropping proposal")
				continue
			}
		}
		rec.Proposals = append(rec.Proposals, types.Proposal{
			Action:    tc.Function.Name,
			Args:      args,
			Rationale: extractLine(msg.Content, "ROOT_CAUSE:"),
		})
	}
	return rec, nil
}

func buildPrompt(alert types.Alert, logs, pastContext string) string {
	alertJSON, _ := json.MarshalIndent(alert, "", "  ")
	if logs == "" {
		logs = "No logs available"
	} else if len(logs) > 3000 {
		logs = logs[:3000]
	}
	return fmt.Sprintf(`You are an SRE remediation agent. Analyze this alert and decide on action.

ALERT DATA:
%s

RECENT LOGS:
%s%s

RESPOND IN THIS EXACT FORMAT:
CONFIDENCE: [0.0-1.0 how confident you are in your diagnosis]
ROOT_CAUSE: [brief explanation]
RECOMMENDED_ACTION: [action name]

Then call the appropriate tools. Always send a notification summarizing the incident.`,
		alertJSON, logs, pastContext)
}

// ParseConfidence extracts the CONFIDENCE line from the analysis text.
// Missing or malformed lines yield 0.5; values are clamped to [0,1].
func ParseConfidence(analysis string) float64 {
	confidence := 0.5
	for _, line := range strings.Split(analysis, "\n") {
		if !strings.HasPrefix(strings.TrimSpace(line), "CONFIDENCE:") {
			continue
		}
		raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "CONFIDENCE:"))
		if fields := strings.Fields(raw); len(fields) > 0 {
			if v, err := strconv.ParseFloat(fields[0], 64); err == nil {
				confidence = v
			}
		}
		break
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

func extractLine(analysis, prefix string) string {
	for _, line := range strings.Split(analysis, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
		}
	}
	return ""
}

func actionTools() []openai.Tool {
	fn := func(name, desc string, props map[string]interface{}, required ...string) openai.Tool {
		params := map[string]interface{}{"type": "object", "properties": props}
		if len(required) > 0 {
			params["required"] = required
		}
		return openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        name,
				Description: desc,
				Parameters:  params,
			},
		}
	}
	str := func(desc string) map[string]interface{} {
		return map[string]interface{}{"type": "string", "description": desc}
	}
	integer := func(desc string) map[string]interface{} {
		return map[string]interface{}{"type": "integer", "description": desc}
	}

	return []openai.Tool{
		fn("scale_deployment", "Scale the deployment to handle more load",
			map[string]interface{}{"replicas": integer("Target replica count (1-10)")}, "replicas"),
		fn("restart_deployment", "Restart the deployment to fix crashes or stuck pods", map[string]interface{}{}),
		fn("rollback_deployment", "Rollback to previous version (use when restart doesn't help)", map[string]interface{}{}),
		fn("send_notification", "Send a notification to the admin team",
			map[string]interface{}{"subject": str("Notification subject"), "message": str("Notification body")},
			"subject", "message"),
		fn("get_deployment_status", "Get detailed status of a deployment (replicas, image, health)",
			map[string]interface{}{"namespace": str("Kubernetes namespace"), "deployment": str("Deployment name")}),
		fn("get_pod_events", "Get recent Kubernetes events for a pod",
			map[string]interface{}{"namespace": str("Kubernetes namespace"), "pod_name": str("Pod name (optional)")},
			"namespace"),
		fn("query_prometheus", "Execute a PromQL query to get metrics",
			map[string]interface{}{"query": str("PromQL query string")}, "query"),
		fn("check_node_health", "Check health status of all cluster nodes", map[string]interface{}{}),
		fn("cordon_node", "Mark a node as unschedulable",
			map[string]interface{}{"node_name": str("Name of the node to cordon")}, "node_name"),
		fn("uncordon_node", "Mark a node as schedulable again",
			map[string]interface{}{"node_name": str("Name of the node to uncordon")}, "node_name"),
		fn("delete_pod", "Delete a specific pod (useful for stuck pods)",
			map[string]interface{}{
				"namespace": str("Kubernetes namespace"),
				"pod_name":  str("Pod name to delete"),
				"force":     map[string]interface{}{"type": "boolean", "description": "Force delete without grace period"},
			}, "namespace", "pod_name"),
		fn("update_hpa", "Update HorizontalPodAutoscaler min/max replicas",
			map[string]interface{}{
				"namespace":    str("Kubernetes namespace"),
				"hpa_name":     str("HPA name"),
				"min_replicas": integer("New minimum replicas"),
				"max_replicas": integer("New maximum replicas"),
			}, "namespace", "hpa_name"),
		fn("patch_resource_limits", "Update CPU/memory limits for the deployment",
			map[string]interface{}{
				"namespace":    str("Kubernetes namespace"),
				"deployment":   str("Deployment name"),
				"cpu_limit":    str("e.g. '500m' or '1'"),
				"memory_limit": str("e.g. '256Mi' or '1Gi'"),
			}),
		fn("drain_node", "Drain all pods from a node (for maintenance)",
			map[string]interface{}{"node_name": str("Node to drain")}, "node_name"),
		fn("delete_deployment", "Delete an entire deployment (DESTRUCTIVE)",
			map[string]interface{}{"namespace": str("Kubernetes namespace"), "deployment": str("Deployment name")}),
		fn("exec_in_pod", "Execute a command inside a pod (debugging)",
			map[string]interface{}{
				"namespace": str("Kubernetes namespace"),
				"pod_name":  str("Pod name"),
				"command":   str("Shell command to run"),
			}, "namespace", "pod_name", "command"),
	}
}
