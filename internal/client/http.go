package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/reqgraph/internal/model"
	"github.com/alfredjeanlab/reqgraph/internal/server"
)

// HTTPClient implements GraphClient using the reqgraph HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	opts       options
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080").
func NewHTTPClient(baseURL string, opts ...Option) *HTTPClient {
	o := buildOptions(opts)
	hc := o.httpClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		opts:       o,
		httpClient: hc,
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

func requirementPath(id string, parts ...string) string {
	p := "/v1/requirements/" + url.PathEscape(id)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

// --- Records ---

func (c *HTTPClient) EnsureGraph(ctx context.Context, id string) (*EnsureGraphResponse, error) {
	var resp EnsureGraphResponse
	if err := c.doJSON(ctx, http.MethodPost, requirementPath(id, "graph"), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) GetDependencyView(ctx context.Context, id string) (*model.DependencyView, error) {
	var view model.DependencyView
	if err := c.doJSON(ctx, http.MethodGet, requirementPath(id, "graph"), nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *HTTPClient) SetGraphConfig(ctx context.Context, id string, patch model.GraphConfigPatch) (*model.GraphConfig, error) {
	var cfg model.GraphConfig
	if err := c.doJSON(ctx, http.MethodPut, requirementPath(id, "graph-config"), patch, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *HTTPClient) RefreshCriticalPath(ctx context.Context, id string) ([]string, error) {
	var resp struct {
		CriticalPath []string `json:"critical_path"`
	}
	if err := c.doJSON(ctx, http.MethodPost, requirementPath(id, "critical-path"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.CriticalPath, nil
}

// --- Edges ---

func (c *HTTPClient) AddEdge(ctx context.Context, req *AddEdgeRequest) (*model.GraphEdge, error) {
	body := map[string]any{
		"target":          req.Target,
		"type":            req.Type,
		"source_snapshot": req.SourceSnapshot,
		"target_snapshot": req.TargetSnapshot,
	}
	if req.Reason != "" {
		body["reason"] = req.Reason
	}
	var edge model.GraphEdge
	if err := c.doJSON(ctx, http.MethodPost, requirementPath(req.Source, "edges"), body, &edge); err != nil {
		return nil, err
	}
	return &edge, nil
}

func (c *HTTPClient) RemoveEdge(ctx context.Context, source, target string, edgeType model.EdgeType) error {
	q := url.Values{}
	q.Set("target", target)
	q.Set("type", string(edgeType))
	return c.doJSON(ctx, http.MethodDelete, requirementPath(source, "edges")+"?"+q.Encode(), nil, nil)
}

func (c *HTTPClient) SetParent(ctx context.Context, child, parent string) error {
	body := map[string]string{"parent_id": parent}
	return c.doJSON(ctx, http.MethodPut, requirementPath(child, "parent"), body, nil)
}

func (c *HTTPClient) ClearParent(ctx context.Context, child string) error {
	return c.doJSON(ctx, http.MethodDelete, requirementPath(child, "parent"), nil, nil)
}

func (c *HTTPClient) UpdateSubtaskProgress(ctx context.Context, parent, child string, progress int) error {
	body := map[string]int{"progress": progress}
	return c.doJSON(ctx, http.MethodPut, requirementPath(parent, "subtasks", url.PathEscape(child), "progress"), body, nil)
}

// --- History ---

func (c *HTTPClient) GetHistory(ctx context.Context, id string, filter model.HistoryFilter) ([]*model.HistoryEvent, error) {
	q := url.Values{}
	if len(filter.Actions) > 0 {
		actions := make([]string, len(filter.Actions))
		for i, a := range filter.Actions {
			actions[i] = string(a)
		}
		q.Set("action", strings.Join(actions, ","))
	}
	if filter.OperatorID != "" {
		q.Set("operator", filter.OperatorID)
	}
	if filter.Since != nil {
		q.Set("since", filter.Since.Format(time.RFC3339))
	}
	if filter.Until != nil {
		q.Set("until", filter.Until.Format(time.RFC3339))
	}
	if filter.Limit != 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Ascending {
		q.Set("order", "asc")
	}

	path := requirementPath(id, "history")
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Events []*model.HistoryEvent `json:"events"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *HTTPClient) RecordChange(ctx context.Context, e *model.HistoryEvent) (*model.HistoryEvent, error) {
	if e == nil {
		return nil, fmt.Errorf("record change: event is required")
	}
	var stored model.HistoryEvent
	if err := c.doJSON(ctx, http.MethodPost, requirementPath(e.RequirementID, "history"), e, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded (for DELETE/204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.opts.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.token)
	}
	if c.opts.actor != "" {
		req.Header.Set(server.HeaderActor, c.opts.actor)
	}
	if c.opts.sessionID != "" {
		req.Header.Set(server.HeaderSessionID, c.opts.sessionID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	// 204 No Content: success with no body.
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Code: errResp.Code, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
