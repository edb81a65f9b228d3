// Package retrieval provides best-effort context gathering for the
// recommender: recent logs for the alert target and similar past incidents.
package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LogRetriever fetches recent logs for a pod, or "" when unavailable.
type LogRetriever interface {
	RecentLogs(ctx context.Context, namespace, pod string, limit int) string
}

// LokiClient queries a Loki instance for recent pod logs.
type LokiClient struct {
	baseURL    string
	httpClient *http.Client
	log        *logrus.Logger
}

// NewLokiClient creates a Loki log retriever. Zero timeout defaults to 10s.
func NewLokiClient(baseURL string, timeout time.Duration, log *logrus.Logger) *LokiClient {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &LokiClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

type lokiResponse struct {
	Data struct {
		Result []struct {
			Values [][2]string `json:"values"`
		} `json:"result"`
	} `json:"data"`
}

// RecentLogs returns up to limit log lines from the last five minutes for
// the pod (or the whole namespace when pod is empty). Failures return "".
func (c *LokiClient) RecentLogs(ctx context.Context, namespace, pod string, limit int) string {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`{namespace=%q}`, namespace)
	if pod != "" {
		query = fmt.Sprintf(`{namespace=%q, pod=~"%s.*"}`, namespace, pod)
	}
	now := time.Now()
	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("start", strconv.FormatInt(now.Add(-5*time.Minute).UnixNano(), 10))
	params.Set("end", strconv.FormatInt(now.UnixNano(), 10))

	reqURL := fmt.Sprintf("%s/loki/api/v1/query_range?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return ""
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.WithError(err).Debug("Loki query failed")
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.log.WithField("status", resp.StatusCode).Debug("Loki query returned non-200")
		return ""
	}

	var decoded lokiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return ""
	}
	var lines []string
	for _, stream := range decoded.Data.Result {
		for _, v := range stream.Values {
			lines = append(lines, v[1])
		}
	}
	if len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return strings.Join(lines, "\n")
}
