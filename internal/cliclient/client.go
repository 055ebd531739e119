// Package cliclient is the thin HTTP wrapper observixctl uses to talk to a
// control plane: one method per operation, returning the decoded body or
// a *wire.Error built from the control plane's {error, message} response.
package cliclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/observix/observix/internal/wire"
)

type Client struct {
	baseURL     string
	bearerToken string
	httpClient  *http.Client
}

func New(baseURL, bearerToken string) *Client {
	return &Client{baseURL: baseURL, bearerToken: bearerToken, httpClient: &http.Client{Timeout: 10 * time.Second}}
}

func (c *Client) ListPipelines(ctx context.Context) ([]wire.Pipeline, error) {
	var out struct {
		Pipelines []wire.Pipeline `json:"pipelines"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/pipelines", nil, &out); err != nil {
		return nil, err
	}
	return out.Pipelines, nil
}

type createPipelineRequest struct {
	Name    string            `json:"name"`
	Spec    wire.PipelineSpec `json:"spec"`
	Enabled *bool             `json:"enabled"`
}

func (c *Client) CreatePipeline(ctx context.Context, name string, spec wire.PipelineSpec, enabled *bool) (wire.Pipeline, error) {
	var out wire.Pipeline
	body, _ := json.Marshal(createPipelineRequest{Name: name, Spec: spec, Enabled: enabled})
	err := c.do(ctx, http.MethodPost, "/v1/pipelines", body, &out)
	return out, err
}

type updatePipelineRequest struct {
	Spec    *wire.PipelineSpec `json:"spec"`
	Enabled *bool              `json:"enabled"`
}

// UpdatePipeline's enabled parameter is a three-state pointer: nil means
// "don't touch enabled," matching observixctl's tri-state --enabled flag.
func (c *Client) UpdatePipeline(ctx context.Context, id string, spec *wire.PipelineSpec, enabled *bool) (wire.Pipeline, error) {
	var out wire.Pipeline
	body, _ := json.Marshal(updatePipelineRequest{Spec: spec, Enabled: enabled})
	err := c.do(ctx, http.MethodPatch, "/v1/pipelines/"+id, body, &out)
	return out, err
}

func (c *Client) DeletePipeline(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/pipelines/"+id, nil, nil)
}

type createAssignmentRequest struct {
	AgentID    string `json:"agent_id"`
	Region     string `json:"region"`
	PipelineID string `json:"pipeline_id"`
}

func (c *Client) CreateAssignment(ctx context.Context, agentID, region, pipelineID string) (wire.Assignment, error) {
	var out wire.Assignment
	body, _ := json.Marshal(createAssignmentRequest{AgentID: agentID, Region: region, PipelineID: pipelineID})
	err := c.do(ctx, http.MethodPost, "/v1/assignments", body, &out)
	return out, err
}

func (c *Client) DeleteAssignment(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/assignments/"+id, nil, nil)
}

func (c *Client) ListAgents(ctx context.Context) ([]wire.Agent, error) {
	var out struct {
		Agents []wire.Agent `json:"agents"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/agents", nil, &out); err != nil {
		return nil, err
	}
	return out.Agents, nil
}

// TransportError marks a failure that never reached the control plane, so
// callers (observixctl) can tell it apart from an HTTP error response and
// exit with the matching code.
type TransportError struct{ cause error }

func (e *TransportError) Error() string { return e.cause.Error() }
func (e *TransportError) Unwrap() error { return e.cause }

func (c *Client) do(ctx context.Context, method, path string, body []byte, dst any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &TransportError{cause: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		json.Unmarshal(respBody, &apiErr)
		if apiErr.Error == "" {
			apiErr.Error = "unknown"
		}
		return wire.NewError(wire.Code(apiErr.Error), apiErr.Message)
	}

	if dst == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, dst); err != nil {
		return &TransportError{cause: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
