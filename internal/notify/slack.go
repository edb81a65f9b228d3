// Package notify sends incident notifications to the admin team.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Notifier delivers a notification and reports (success, message).
type Notifier interface {
	Send(ctx context.Context, subject, message string) (bool, string)
}

// SlackNotifier posts notifications to a Slack incoming webhook. When no
// webhook URL is configured it degrades to a log-only notifier so the
// send_notification action still succeeds.
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
	log        *logrus.Logger
}

// NewSlackNotifier creates a notifier. Zero timeout defaults to 5s.
func NewSlackNotifier(webhookURL string, timeout time.Duration, log *logrus.Logger) *SlackNotifier {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &SlackNotifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// Send posts the notification to Slack, or logs it when unconfigured.
func (n *SlackNotifier) Send(ctx context.Context, subject, message string) (bool, string) {
	if n.webhookURL == "" {
		n.log.WithFields(logrus.Fields{"subject": subject}).Info("Notification (no webhook configured)")
		return true, "notification logged (no webhook configured)"
	}

	payload, err := json.Marshal(map[string]string{
		"text": fmt.Sprintf("*Remediation Agent: %s*\n%s", subject, message),
	})
	if err != nil {
		return false, fmt.Sprintf("marshal notification: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return false, fmt.Sprintf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return false, fmt.Sprintf("notification failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Sprintf("notification failed: status %d", resp.StatusCode)
	}

	n.log.WithField("subject", subject).Debug("Slack notification sent")
	return true, "notification sent"
}
