package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// PrometheusClient executes PromQL instant queries for the recommender's
// query_prometheus action.
type PrometheusClient struct {
	baseURL    string
	httpClient *http.Client
	log        *logrus.Logger
}

// NewPrometheusClient creates a Prometheus query client. Zero timeout
// defaults to 10s.
func NewPrometheusClient(baseURL string, timeout time.Duration, log *logrus.Logger) *PrometheusClient {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &PrometheusClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

type promResponse struct {
	Status string `json:"status"`
	Data   struct {
		Result []struct {
			Metric map[string]string `json:"metric"`
			Value  [2]interface{}    `json:"value"`
		} `json:"result"`
	} `json:"data"`
}

// Query runs an instant PromQL query and renders up to ten series as
// "labels: value" lines. It reports (success, human-readable message).
func (c *PrometheusClient) Query(ctx context.Context, query string) (bool, string) {
	if c.baseURL == "" {
		return false, "prometheus not configured"
	}
	params := url.Values{}
	params.Set("query", query)
	reqURL := fmt.Sprintf("%s/api/v1/query?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false, fmt.Sprintf("create request: %v", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.WithError(err).Debug("Prometheus query failed")
		return false, fmt.Sprintf("query failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Sprintf("query failed: status %d", resp.StatusCode)
	}

	var decoded promResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return false, fmt.Sprintf("decode response: %v", err)
	}
	if decoded.Status != "success" {
		return false, fmt.Sprintf("query failed: status %q", decoded.Status)
	}
	if len(decoded.Data.Result) == 0 {
		return true, "No data returned"
	}

	results := decoded.Data.Result
	if len(results) > 10 {
		results = results[:10]
	}
	var lines []string
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("%v: %v", r.Metric, r.Value[1]))
	}
	return true, strings.Join(lines, "\n")
}
