// Package kube is a minimal Kubernetes apiserver client for the remediation
// agent: typed reads for health/context and the mutating actions the
// dispatcher exposes. It talks REST directly and decodes into k8s.io/api
// types, so the agent does not carry a full client-go dependency.
package kube

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	serviceAccountDir = "/var/run/secrets/kubernetes.io/serviceaccount"

	mergePatch          = "application/merge-patch+json"
	strategicMergePatch = "application/strategic-merge-patch+json"
)

// Config for the apiserver client.
type Config struct {
	// BaseURL of the apiserver, e.g. https://10.0.0.1:443.
	BaseURL string
	// BearerToken for authentication.
	BearerToken string
	// CACert is the PEM-encoded cluster CA. Empty with Insecure false uses
	// the system pool.
	CACert []byte
	// Insecure skips TLS verification (local development only).
	Insecure bool
	Timeout  time.Duration
}

// Client performs REST calls against the Kubernetes apiserver.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *logrus.Logger
}

// NewClient creates a client from explicit config.
func NewClient(cfg Config, log *logrus.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("kube client: base URL required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	tlsCfg := &tls.Config{InsecureSkipVerify: cfg.Insecure} // #nosec G402 -- opt-in for local dev
	if len(cfg.CACert) > 0 {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(cfg.CACert) {
			return nil, fmt.Errorf("kube client: invalid CA certificate")
		}
		tlsCfg.RootCAs = pool
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.BearerToken,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: &http.Transport{TLSClientConfig: tlsCfg},
		},
		log: log,
	}, nil
}

// NewInClusterClient creates a client from the pod's service-account mount,
// falling back to KUBE_API_URL/KUBE_API_TOKEN for out-of-cluster use.
func NewInClusterClient(log *logrus.Logger) (*Client, error) {
	host, port := os.Getenv("KUBERNETES_SERVICE_HOST"), os.Getenv("KUBERNETES_SERVICE_PORT")
	if host != "" && port != "" {
		token, err := os.ReadFile(serviceAccountDir + "/token")
		if err != nil {
			return nil, fmt.Errorf("read service account token: %w", err)
		}
		ca, err := os.ReadFile(serviceAccountDir + "/ca.crt")
		if err != nil {
			return nil, fmt.Errorf("read cluster CA: %w", err)
		}
		return NewClient(Config{
			BaseURL:     fmt.Sprintf("https://%s:%s", host, port),
			BearerToken: strings.TrimSpace(string(token)),
			CACert:      ca,
		}, log)
	}

	if url := os.Getenv("KUBE_API_URL"); url != "" {
		return NewClient(Config{
			BaseURL:     url,
			BearerToken: os.Getenv("KUBE_API_TOKEN"),
			Insecure:    os.Getenv("KUBE_API_INSECURE") == "true",
		}, log)
	}
	return nil, fmt.Errorf("not running in cluster and KUBE_API_URL not set")
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, truncate(string(data), 200))
	}
	return data, nil
}

func (c *Client) get(ctx context.Context, path string, into interface{}) error {
	data, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return err
	}
	if into == nil {
		return nil
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) patch(ctx context.Context, path, contentType string, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal patch: %w", err)
	}
	_, err = c.do(ctx, http.MethodPatch, path, contentType, data)
	return err
}

func (c *Client) delete(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodDelete, path, "", nil)
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
