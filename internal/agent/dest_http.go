package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/observix/observix/internal/wire"
)

// httpDestination POSTs a batch as a single JSON array to a fixed URL.
// Grounded on observix_agent/destinations/http.py.
type httpDestination struct {
	url    string
	client *http.Client
}

func newHTTPDestination(opts map[string]any) (*httpDestination, error) {
	url := optString(opts, "url", "")
	if url == "" {
		return nil, fmt.Errorf("http destination requires options.url")
	}
	timeoutSeconds := optInt(opts, "timeout_seconds", 5)
	return &httpDestination{
		url:    url,
		client: &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second},
	}, nil
}

type httpDestEventPayload struct {
	Raw  string         `json:"raw"`
	Ts   time.Time      `json:"ts"`
	Meta map[string]any `json:"meta,omitempty"`
}

func (d *httpDestination) send(events []wire.Event) error {
	payload := make([]httpDestEventPayload, 0, len(events))
	for _, e := range events {
		payload = append(payload, httpDestEventPayload{Raw: e.Raw, Ts: e.Ts, Meta: e.Meta})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return wire.WrapError(wire.CodeSendError, "marshal batch", err)
	}

	req, err := http.NewRequest(http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return wire.WrapError(wire.CodeSendError, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return wire.WrapError(wire.CodeSendError, "http post", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return wire.NewError(wire.CodeSendError, fmt.Sprintf("destination returned %d", resp.StatusCode))
	}
	return nil
}

func (d *httpDestination) close() error { return nil }
