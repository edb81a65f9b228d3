// Package config provides configuration loading from environment and
// defaults for the remediation agent, plus hot reload of the safety-policy
// file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnv returns the value of key from the environment, or defaultValue if unset or empty.
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return defaultValue
}

// GetEnvDuration returns the duration for key, or defaultValue if unset/invalid.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultValue
	}
	return d
}

// GetEnvFloat returns the float for key, or defaultValue if unset/invalid.
func GetEnvFloat(key string, defaultValue float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

// GetEnvBool returns the bool for key, or defaultValue if unset.
func GetEnvBool(key string, defaultValue bool) bool {
	s := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if s == "" {
		return defaultValue
	}
	return s == "true" || s == "1" || s == "yes"
}

// GetEnvInt returns the int for key, or defaultValue if unset/invalid.
func GetEnvInt(key string, defaultValue int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return n
}

// AgentConfig holds configuration for the remediation agent binary.
type AgentConfig struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration

	TargetNamespace  string
	TargetDeployment string

	LokiURL     string
	LokiTimeout time.Duration

	PrometheusURL     string
	PrometheusTimeout time.Duration

	GroqAPIKey  string
	GroqBaseURL string
	GroqModel   string

	SlackWebhookURL string

	ConfidenceThreshold float64
	AutoActionEnabled   bool
	RequireApprovalFor  []string
	PolicyFile          string

	VerifyInterval time.Duration
	VerifyTimeout  time.Duration

	IncidentRetention int
}

// DefaultAgentConfig returns agent config from environment with defaults.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		HTTPAddr:        GetEnv("HTTP_ADDR", ":8080"),
		ShutdownTimeout: GetEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		TargetNamespace:  GetEnv("TARGET_NAMESPACE", "default"),
		TargetDeployment: GetEnv("TARGET_DEPLOYMENT", "demo-app"),

		LokiURL:     GetEnv("LOKI_URL", ""),
		LokiTimeout: GetEnvDuration("LOKI_TIMEOUT", 10*time.Second),

		PrometheusURL:     GetEnv("PROMETHEUS_URL", "http://localhost:9090"),
		PrometheusTimeout: GetEnvDuration("PROMETHEUS_TIMEOUT", 10*time.Second),

		GroqAPIKey:  GetEnv("GROQ_API_KEY", ""),
		GroqBaseURL: GetEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		GroqModel:   GetEnv("GROQ_MODEL", "llama-3.3-70b-versatile"),

		SlackWebhookURL: GetEnv("SLACK_WEBHOOK_URL", ""),

		ConfidenceThreshold: GetEnvFloat("CONFIDENCE_THRESHOLD", 0.8),
		AutoActionEnabled:   GetEnvBool("AUTO_ACTION_ENABLED", true),
		RequireApprovalFor:  SplitList(GetEnv("REQUIRE_APPROVAL_FOR", "rollback_deployment")),
		PolicyFile:          GetEnv("POLICY_FILE", ""),

		VerifyInterval: GetEnvDuration("VERIFY_INTERVAL", 5*time.Second),
		VerifyTimeout:  GetEnvDuration("VERIFY_TIMEOUT", 30*time.Second),

		IncidentRetention: GetEnvInt("INCIDENT_RETENTION", 10000),
	}
}

// SplitList splits a comma-separated list, trimming whitespace and dropping
// empty entries.
func SplitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
