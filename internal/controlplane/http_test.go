package controlplane

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/observix/observix/internal/controlplane/store"
	"github.com/observix/observix/internal/wire"
)

func rawSpecForTest() wire.PipelineSpec {
	return wire.PipelineSpec{
		Source:          wire.PipelineSource{Type: wire.SourceSyslogUDP, Options: map[string]any{"port": float64(5514)}},
		Processor:       wire.PipelineProcessor{Mode: wire.ProcessorRaw},
		Destination:     wire.PipelineDestination{Type: wire.DestFile, Options: map[string]any{"path": "/tmp/out.log"}},
		BatchMaxEvents:  10,
		BatchMaxSeconds: 1.0,
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := store.Open("")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewServer(st, &Config{AgentStaleAfterSeconds: 30})
}

func TestRegisterThenHeartbeat(t *testing.T) {
	s := newTestServer(t)

	body, _ := json.Marshal(registerRequest{AgentID: "a1", Region: "us-east"})
	req := httptest.NewRequest("POST", "/v1/agents/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.handleRegister(rec, req)
	if rec.Code != 200 {
		t.Fatalf("expected 200 registering agent, got %d: %s", rec.Code, rec.Body.String())
	}

	req2 := httptest.NewRequest("POST", "/v1/agents/a1/heartbeat", nil)
	rec2 := httptest.NewRecorder()
	s.handleHeartbeat(rec2, req2, "a1")
	if rec2.Code != 204 {
		t.Fatalf("expected 204 on heartbeat, got %d", rec2.Code)
	}
}

func TestHeartbeatUnknownAgentIs404(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest("POST", "/v1/agents/ghost/heartbeat", nil)
	rec := httptest.NewRecorder()
	s.handleHeartbeat(rec, req, "ghost")
	if rec.Code != 404 {
		t.Fatalf("expected 404 for unknown agent, got %d", rec.Code)
	}
}

func TestGetAssignmentsHonorsIfNoneMatch(t *testing.T) {
	s := newTestServer(t)
	s.st.UpsertAgent("a1", "us-east")

	req := httptest.NewRequest("GET", "/v1/agents/a1/assignments?region=us-east", nil)
	rec := httptest.NewRecorder()
	s.handleGetAssignments(rec, req, "a1")
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	etag := rec.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("expected an ETag header")
	}

	req2 := httptest.NewRequest("GET", "/v1/agents/a1/assignments?region=us-east", nil)
	req2.Header.Set("If-None-Match", etag)
	rec2 := httptest.NewRecorder()
	s.handleGetAssignments(rec2, req2, "a1")
	if rec2.Code != 304 {
		t.Fatalf("expected 304 on matching ETag, got %d", rec2.Code)
	}
}

func TestCreatePipelineAndListPipelines(t *testing.T) {
	s := newTestServer(t)

	reqBody, _ := json.Marshal(createPipelineRequest{
		Name: "p1",
		Spec: rawSpecForTest(),
	})
	req := httptest.NewRequest("POST", "/v1/pipelines", bytes.NewReader(reqBody))
	rec := httptest.NewRecorder()
	s.handlePipelines(rec, req)
	if rec.Code != 201 {
		t.Fatalf("expected 201 creating pipeline, got %d: %s", rec.Code, rec.Body.String())
	}

	listReq := httptest.NewRequest("GET", "/v1/pipelines", nil)
	listRec := httptest.NewRecorder()
	s.handlePipelines(listRec, listReq)
	if listRec.Code != 200 {
		t.Fatalf("expected 200 listing pipelines, got %d", listRec.Code)
	}
}
