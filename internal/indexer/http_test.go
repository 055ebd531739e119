package indexer

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
)

type normalizeResponse struct {
	Docs []map[string]any `json:"docs"`
}

func TestHandleNormalizeSingleStringSplitsOnNewline(t *testing.T) {
	s := &Server{cfg: &Config{}}
	body, _ := json.Marshal(map[string]string{"profile": "kv_pairs", "raw": "level=error code=500\nlevel=info code=200"})

	req := httptest.NewRequest("POST", "/v1/normalize", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.handleNormalize(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp normalizeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Docs) != 2 {
		t.Fatalf("expected 2 docs from a 2-line raw string, got %+v", resp.Docs)
	}
	if resp.Docs[0]["level"] != "error" || resp.Docs[0]["raw"] != "level=error code=500" {
		t.Fatalf("unexpected first doc: %+v", resp.Docs[0])
	}
	if resp.Docs[1]["level"] != "info" || resp.Docs[1]["raw"] != "level=info code=200" {
		t.Fatalf("unexpected second doc: %+v", resp.Docs[1])
	}
}

func TestHandleNormalizeSingleStringDropsEmptyLines(t *testing.T) {
	s := &Server{cfg: &Config{}}
	body, _ := json.Marshal(map[string]string{"profile": "passthrough", "raw": "one\n\ntwo\n"})

	req := httptest.NewRequest("POST", "/v1/normalize", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.handleNormalize(rec, req)

	var resp normalizeResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Docs) != 2 {
		t.Fatalf("expected empty lines dropped, got %+v", resp.Docs)
	}
}

func TestHandleNormalizeAcceptsArrayOfStrings(t *testing.T) {
	s := &Server{cfg: &Config{}}
	body, _ := json.Marshal(map[string]any{"profile": "passthrough", "raw": []string{"a", "b", "c"}})

	req := httptest.NewRequest("POST", "/v1/normalize", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.handleNormalize(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp normalizeResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Docs) != 3 {
		t.Fatalf("expected one doc per array entry, got %+v", resp.Docs)
	}
	for i, want := range []string{"a", "b", "c"} {
		if resp.Docs[i]["raw"] != want {
			t.Fatalf("expected doc %d raw=%q, got %+v", i, want, resp.Docs[i])
		}
	}
}

func TestHandleNormalizeEveryDocCarriesRaw(t *testing.T) {
	s := &Server{cfg: &Config{}}
	body, _ := json.Marshal(map[string]any{"profile": "json_auto", "raw": []string{`{"level":"warn"}`, "not json"}})

	req := httptest.NewRequest("POST", "/v1/normalize", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.handleNormalize(rec, req)

	var resp normalizeResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	for _, doc := range resp.Docs {
		raw, ok := doc["raw"].(string)
		if !ok || raw == "" {
			t.Fatalf("expected every doc to carry a non-empty raw field, got %+v", doc)
		}
	}
	if resp.Docs[0]["level"] != "warn" {
		t.Fatalf("expected extracted level field on the json_auto success case, got %+v", resp.Docs[0])
	}
}

func TestHandleNormalizeRejectsUnknownProfile(t *testing.T) {
	s := &Server{cfg: &Config{}}
	body, _ := json.Marshal(map[string]string{"profile": "nope", "raw": "x"})

	req := httptest.NewRequest("POST", "/v1/normalize", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.handleNormalize(rec, req)

	if rec.Code != 400 {
		t.Fatalf("expected 400 for unknown profile, got %d", rec.Code)
	}
}

func TestHandleNormalizeDefaultsToPassthroughProfile(t *testing.T) {
	s := &Server{cfg: &Config{}}
	body, _ := json.Marshal(map[string]string{"raw": "just text"})

	req := httptest.NewRequest("POST", "/v1/normalize", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.handleNormalize(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp normalizeResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Docs) != 1 || resp.Docs[0]["message"] != "just text" {
		t.Fatalf("expected passthrough default, got %+v", resp.Docs)
	}
}

func TestHandleNormalizeRejectsNonStringNonArrayRaw(t *testing.T) {
	s := &Server{cfg: &Config{}}
	body, _ := json.Marshal(map[string]any{"profile": "passthrough", "raw": 42})

	req := httptest.NewRequest("POST", "/v1/normalize", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.handleNormalize(rec, req)

	if rec.Code != 400 {
		t.Fatalf("expected 400 for a raw field that is neither a string nor an array, got %d", rec.Code)
	}
}
