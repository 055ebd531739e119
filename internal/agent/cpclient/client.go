// Package cpclient is the agent's HTTP client for the control plane:
// registration, heartbeats, and assignment polling. Grounded on
// nanolog's sdks/go/nanolog/registry.go registration handshake.
package cpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/observix/observix/internal/wire"
)

// Client polls one control plane on behalf of one agent_id. It remembers
// the last ETag it saw so PollAssignments can send a conditional request.
type Client struct {
	baseURL     string
	agentID     string
	region      string
	bearerToken string
	httpClient  *http.Client

	mu   sync.Mutex
	etag string
}

func New(baseURL, agentID, region, bearerToken string) *Client {
	return &Client{
		baseURL:     baseURL,
		agentID:     agentID,
		region:      region,
		bearerToken: bearerToken,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

type registerRequest struct {
	AgentID string `json:"agent_id"`
	Region  string `json:"region"`
}

// Register announces the agent to the control plane. Idempotent: a second
// call for the same agent_id just bumps last_seen_at.
func (c *Client) Register(ctx context.Context) error {
	body, _ := json.Marshal(registerRequest{AgentID: c.agentID, Region: c.region})
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/agents/register", body, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// Heartbeat refreshes the agent's last_seen_at so the control plane's
// liveness sweep doesn't mark it offline.
func (c *Client) Heartbeat(ctx context.Context) error {
	resp, err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/v1/agents/%s/heartbeat", c.agentID), nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// PollAssignments fetches the agent's current assignment view. If the
// control plane's revision hasn't changed since the last successful poll,
// it returns changed=false and a nil view without deserializing a body.
func (c *Client) PollAssignments(ctx context.Context) (view *wire.AssignmentView, changed bool, err error) {
	c.mu.Lock()
	etag := c.etag
	c.mu.Unlock()

	headers := map[string]string{}
	if etag != "" {
		headers["If-None-Match"] = etag
	}

	path := fmt.Sprintf("/v1/agents/%s/assignments?region=%s", c.agentID, url.QueryEscape(c.region))
	resp, err := c.doJSON(ctx, http.MethodGet, path, nil, headers)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return nil, false, nil
	}
	if err := checkStatus(resp); err != nil {
		return nil, false, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, wire.WrapError(wire.CodeStoreError, "read assignments body", err)
	}
	var v wire.AssignmentView
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, false, wire.WrapError(wire.CodeStoreError, "unmarshal assignments body", err)
	}

	if newEtag := resp.Header.Get("ETag"); newEtag != "" {
		c.mu.Lock()
		c.etag = newEtag
		c.mu.Unlock()
	}

	return &v, true, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body []byte, extraHeaders map[string]string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("control plane returned %d: %s", resp.StatusCode, string(body))
}
