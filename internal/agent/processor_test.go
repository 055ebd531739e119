package agent

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/observix/observix/internal/wire"
)

func TestRawProcessorIsIdentity(t *testing.T) {
	in := []wire.Event{wire.NewEvent("hello", time.Now())}
	out, err := rawProcessor{}.process(in, newPipelineStats("p"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].Raw != "hello" {
		t.Fatalf("expected identity passthrough, got %+v", out)
	}
}

func TestIndexedProcessorMergesDocFieldsForWholeBatch(t *testing.T) {
	var gotRaw []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req normalizeRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotRaw = req.Raw
		docs := make([]map[string]any, len(req.Raw))
		for i, raw := range req.Raw {
			docs[i] = map[string]any{"level": "ERROR", "raw": raw}
		}
		json.NewEncoder(w).Encode(map[string]any{"docs": docs})
	}))
	defer srv.Close()

	p, err := newIndexedProcessor(map[string]any{
		"indexer_url": srv.URL,
		"profile":     "json_auto",
	})
	if err != nil {
		t.Fatalf("unexpected error building processor: %v", err)
	}

	in := []wire.Event{
		wire.NewEvent(`{"level":"ERROR"}`, time.Now()),
		wire.NewEvent(`{"level":"ERROR"}`, time.Now()),
	}
	stats := newPipelineStats("p")
	out, err := p.process(in, stats)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gotRaw) != 2 {
		t.Fatalf("expected the whole batch posted in one request, got %d raws", len(gotRaw))
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 events, got %d", len(out))
	}
	for _, e := range out {
		if e.Meta["level"] != "ERROR" {
			t.Fatalf("expected extracted level field, got %+v", e.Meta)
		}
	}
	if snap := stats.snapshot(0); snap.FailedBatches != 0 {
		t.Fatalf("expected no failed batches on a clean normalize, got %+v", snap)
	}
}

func TestIndexedProcessorFallsBackToRawOnIndexerDown(t *testing.T) {
	p, err := newIndexedProcessor(map[string]any{
		"indexer_url":     "http://127.0.0.1:1", // nothing listens here
		"profile":         "json_auto",
		"fallback_to_raw": true,
		"timeout_seconds": 1,
	})
	if err != nil {
		t.Fatalf("unexpected error building processor: %v", err)
	}

	in := []wire.Event{wire.NewEvent("line one", time.Now())}
	stats := newPipelineStats("p")
	out, err := p.process(in, stats)
	if err == nil {
		t.Fatalf("expected a non-nil error even though fallback produces output")
	}
	if len(out) != 1 || out[0].Raw != "line one" {
		t.Fatalf("expected fallback to raw passthrough, got %+v", out)
	}

	snap := stats.snapshot(0)
	if snap.FailedBatches != 1 {
		t.Fatalf("expected failed_batches=1 on an indexer outage even with fallback, got %d", snap.FailedBatches)
	}
	if snap.LastErr == "" {
		t.Fatalf("expected last_err to be recorded on an indexer outage")
	}
}

func TestIndexedProcessorDropsOnIndexerDownWithoutFallback(t *testing.T) {
	p, err := newIndexedProcessor(map[string]any{
		"indexer_url":     "http://127.0.0.1:1",
		"profile":         "json_auto",
		"fallback_to_raw": false,
		"timeout_seconds": 1,
	})
	if err != nil {
		t.Fatalf("unexpected error building processor: %v", err)
	}

	in := []wire.Event{wire.NewEvent("line one", time.Now())}
	stats := newPipelineStats("p")
	out, err := p.process(in, stats)
	if err == nil {
		t.Fatalf("expected an error on drop")
	}
	if len(out) != 0 {
		t.Fatalf("expected event dropped, got %+v", out)
	}

	snap := stats.snapshot(0)
	if snap.FailedBatches != 1 {
		t.Fatalf("expected failed_batches=1 on a dropped batch, got %d", snap.FailedBatches)
	}
	if snap.LastErr == "" {
		t.Fatalf("expected last_err to be recorded on a dropped batch")
	}
}

func TestIndexedProcessorRecordsFailureOnDocCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"docs": []map[string]any{{"raw": "only one"}}})
	}))
	defer srv.Close()

	p, err := newIndexedProcessor(map[string]any{
		"indexer_url":     srv.URL,
		"profile":         "json_auto",
		"fallback_to_raw": true,
	})
	if err != nil {
		t.Fatalf("unexpected error building processor: %v", err)
	}

	in := []wire.Event{
		wire.NewEvent("line one", time.Now()),
		wire.NewEvent("line two", time.Now()),
	}
	stats := newPipelineStats("p")
	out, err := p.process(in, stats)
	if err == nil {
		t.Fatalf("expected an error on a doc count mismatch")
	}
	if len(out) != 2 {
		t.Fatalf("expected fallback to the full batch on mismatch, got %+v", out)
	}
	if snap := stats.snapshot(0); snap.FailedBatches != 1 {
		t.Fatalf("expected failed_batches=1 on a doc count mismatch, got %d", snap.FailedBatches)
	}
}
