// Package apiclient provides typed access to the control-plane
// metrics API. The API is polled, never streamed; the tap stream has
// its own client.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/meshtap/meshtap/internal/config"
	"github.com/meshtap/meshtap/internal/metricsexporter"
)

// Client speaks JSON over HTTP to the control-plane API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		return nil, fmt.Errorf("api base url is required")
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: config.APITimeout},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// BaseURL returns the normalized API base.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIError represents an error response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, endpoint, path string, params url.Values, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", config.GetUserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metricsexporter.RecordPollError(endpoint)
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		metricsexporter.RecordPollError(endpoint)
		return APIError{Status: resp.StatusCode, Message: extractError(resp.Body)}
	}

	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		metricsexporter.RecordPollError(endpoint)
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(body io.Reader) string {
	if body == nil {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return ""
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	return strings.TrimSpace(payload.Error)
}

// StatRow is one resource's rollup over the query window.
type StatRow struct {
	Name         string  `json:"name"`
	Namespace    string  `json:"namespace"`
	Kind         string  `json:"kind"`
	MeshedPods   int     `json:"meshedPods"`
	TotalPods    int     `json:"totalPods"`
	RPS          float64 `json:"rps"`
	SuccessRate  float64 `json:"successRate"`
	LatencyMSP50 float64 `json:"latencyMsP50"`
	LatencyMSP95 float64 `json:"latencyMsP95"`
	LatencyMSP99 float64 `json:"latencyMsP99"`
}

// StatsRequest scopes one rollup query.
type StatsRequest struct {
	ResourceType string
	Namespace    string
	Window       string
}

// Stats returns rollup metrics for every resource of one type in a
// namespace.
func (c *Client) Stats(ctx context.Context, req StatsRequest) ([]StatRow, error) {
	params := url.Values{}
	params.Set("resource_type", req.ResourceType)
	params.Set("namespace", req.Namespace)
	if req.Window != "" {
		params.Set("window", req.Window)
	}
	var rows []StatRow
	if err := c.do(ctx, "stats", "/api/stats", params, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// RouteRow is one route's rollup for a resource.
type RouteRow struct {
	Route        string  `json:"route"`
	Authority    string  `json:"authority"`
	RPS          float64 `json:"rps"`
	SuccessRate  float64 `json:"successRate"`
	LatencyMSP50 float64 `json:"latencyMsP50"`
	LatencyMSP95 float64 `json:"latencyMsP95"`
	LatencyMSP99 float64 `json:"latencyMsP99"`
}

// RoutesRequest scopes one per-route query.
type RoutesRequest struct {
	Resource  string
	Namespace string
	Window    string
}

// Routes returns per-route rollup metrics for one resource.
func (c *Client) Routes(ctx context.Context, req RoutesRequest) ([]RouteRow, error) {
	params := url.Values{}
	params.Set("resource", req.Resource)
	params.Set("namespace", req.Namespace)
	if req.Window != "" {
		params.Set("window", req.Window)
	}
	var rows []RouteRow
	if err := c.do(ctx, "routes", "/api/routes", params, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Edge is one observed connection between two workloads.
type Edge struct {
	Source               string `json:"src"`
	SourceNamespace      string `json:"srcNamespace"`
	Destination          string `json:"dst"`
	DestinationNamespace string `json:"dstNamespace"`
	ClientIdentity       string `json:"clientId"`
	ServerIdentity       string `json:"serverId"`
}

// Edges returns the observed connection graph for a namespace.
func (c *Client) Edges(ctx context.Context, namespace string) ([]Edge, error) {
	params := url.Values{}
	params.Set("namespace", namespace)
	var edges []Edge
	if err := c.do(ctx, "edges", "/api/edges", params, &edges); err != nil {
		return nil, err
	}
	return edges, nil
}
