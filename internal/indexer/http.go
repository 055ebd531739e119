// Package indexer is the normalization service: it turns raw lines into
// docs of extracted fields via a named profile, over HTTP.
package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/observix/observix/internal/indexer/profiles"
)

type Server struct {
	cfg *Config
	srv *http.Server
}

func NewServer(cfg *Config) *Server {
	return &Server{cfg: cfg}
}

func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/v1/normalize", s.handleNormalize)

	s.srv = &http.Server{Addr: s.cfg.ListenAddr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// normalizeRequest's Raw field accepts either a single string or an array
// of strings on the wire; json.RawMessage defers the choice to
// parseRawLines.
type normalizeRequest struct {
	Profile string          `json:"profile"`
	Raw     json.RawMessage `json:"raw"`
}

// parseRawLines turns the request's raw field into the lines to normalize.
// A single string is split on "\n" with empty lines dropped; an array is
// used as given.
func parseRawLines(raw json.RawMessage) ([]string, error) {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		var lines []string
		for _, line := range strings.Split(single, "\n") {
			if line != "" {
				lines = append(lines, line)
			}
		}
		return lines, nil
	}

	var multi []string
	if err := json.Unmarshal(raw, &multi); err == nil {
		return multi, nil
	}

	return nil, fmt.Errorf("raw must be a string or an array of strings")
}

func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method_not_allowed"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request_too_large", "message": err.Error()})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_spec", "message": err.Error()})
		return
	}

	var req normalizeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_spec", "message": err.Error()})
		return
	}

	profileName := req.Profile
	if profileName == "" {
		profileName = "passthrough"
	}
	profile, err := profiles.Get(profileName)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_spec", "message": err.Error()})
		return
	}

	lines, err := parseRawLines(req.Raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_spec", "message": err.Error()})
		return
	}

	docs := make([]map[string]any, len(lines))
	for i, line := range lines {
		doc := profile.Normalize(line)
		doc["raw"] = line
		docs[i] = doc
	}
	writeJSON(w, http.StatusOK, map[string]any{"docs": docs})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response body")
	}
}
