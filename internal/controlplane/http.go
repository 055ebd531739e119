package controlplane

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/observix/observix/internal/controlplane/store"
	"github.com/observix/observix/internal/wire"
)

// Server is the control plane's HTTP API, grounded on
// coffersTech-nanolog's IngestServer: one *http.Server, a mux of
// method-dispatching handlers, and an optional bearer-token middleware.
type Server struct {
	st   *store.Store
	cfg  *Config
	auth *bearerAuth
	srv  *http.Server
}

func NewServer(st *store.Store, cfg *Config) *Server {
	return &Server{st: st, cfg: cfg, auth: newBearerAuth(cfg.BearerToken)}
}

// Run starts the HTTP server, the liveness sweep, and blocks until ctx is
// cancelled, at which point it shuts the server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/agents/register", s.handleRegister)
	mux.HandleFunc("/v1/agents/", s.handleAgentSubroutes)
	mux.HandleFunc("/v1/agents", s.handleAgents)
	mux.HandleFunc("/v1/pipelines", s.handlePipelines)
	mux.HandleFunc("/v1/pipelines/", s.handlePipelineItem)
	mux.HandleFunc("/v1/assignments", s.handleAssignments)
	mux.HandleFunc("/v1/assignments/", s.handleAssignmentItem)

	// healthz is exempt from auth even when a bearer token is configured.
	top := http.NewServeMux()
	top.HandleFunc("/healthz", s.handleHealthz)
	top.Handle("/", s.auth.middleware(mux))

	s.srv = &http.Server{Addr: s.cfg.ListenAddr, Handler: top}

	go runLivenessSweep(ctx, s.st, s.cfg.AgentStaleAfter(), s.cfg.LivenessSweepInterval())

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
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type registerRequest struct {
	AgentID string `json:"agent_id"`
	Region  string `json:"region"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_spec", err.Error())
		return
	}
	if req.AgentID == "" {
		writeError(w, http.StatusBadRequest, "invalid_spec", "agent_id is required")
		return
	}
	if err := s.st.UpsertAgent(req.AgentID, req.Region); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"agent_id": req.AgentID})
}

// handleAgentSubroutes dispatches /v1/agents/{id}/heartbeat and
// /v1/agents/{id}/assignments, the only two nested agent routes.
func (s *Server) handleAgentSubroutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/agents/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "not_found", "")
		return
	}
	agentID, sub := parts[0], parts[1]

	switch sub {
	case "heartbeat":
		s.handleHeartbeat(w, r, agentID)
	case "assignments":
		s.handleGetAssignments(w, r, agentID)
	default:
		writeError(w, http.StatusNotFound, "not_found", "")
	}
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request, agentID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	if err := s.st.Heartbeat(agentID); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetAssignments upserts the polling agent (refreshing last_seen_at)
// and serves its assignment view for the region it polls with, honoring If-None-Match against the freshly computed revision
// so an unchanged fleet doesn't pay to re-serialize its pipeline specs every
// poll.
func (s *Server) handleGetAssignments(w http.ResponseWriter, r *http.Request, agentID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	region := r.URL.Query().Get("region")
	if err := s.st.UpsertAgent(agentID, region); err != nil {
		writeStoreError(w, err)
		return
	}
	view, err := s.st.AssignmentsForAgent(agentID, region)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	etag := `"` + view.Revision + `"`
	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	agents, err := s.st.ListAgents(s.cfg.AgentStaleAfter())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": agents})
}

type createPipelineRequest struct {
	Name    string            `json:"name"`
	Spec    wire.PipelineSpec `json:"spec"`
	Enabled *bool             `json:"enabled"`
}

func (s *Server) handlePipelines(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		pipelines, err := s.st.ListPipelines()
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"pipelines": pipelines})
	case http.MethodPost:
		var req createPipelineRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_spec", err.Error())
			return
		}
		enabled := true
		if req.Enabled != nil {
			enabled = *req.Enabled
		}
		p, err := s.st.CreatePipeline(req.Name, req.Spec, enabled)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
	}
}

type updatePipelineRequest struct {
	Spec    *wire.PipelineSpec `json:"spec"`
	Enabled *bool              `json:"enabled"`
}

func (s *Server) handlePipelineItem(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/pipelines/")
	if id == "" {
		writeError(w, http.StatusNotFound, "not_found", "")
		return
	}
	switch r.Method {
	case http.MethodGet:
		p, err := s.st.GetPipeline(id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	case http.MethodPatch, http.MethodPut:
		var req updatePipelineRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_spec", err.Error())
			return
		}
		p, err := s.st.UpdatePipeline(id, req.Spec, req.Enabled)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	case http.MethodDelete:
		if err := s.st.DeletePipeline(id); err != nil {
			writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
	}
}

type createAssignmentRequest struct {
	AgentID    string `json:"agent_id"`
	Region     string `json:"region"`
	PipelineID string `json:"pipeline_id"`
}

func (s *Server) handleAssignments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	var req createAssignmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_spec", err.Error())
		return
	}
	a, err := s.st.CreateAssignment(req.AgentID, req.Region, req.PipelineID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleAssignmentItem(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/assignments/")
	if r.Method != http.MethodDelete || id == "" {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	if err := s.st.DeleteAssignment(id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, dst)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response body")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

func writeStoreError(w http.ResponseWriter, err error) {
	var werr *wire.Error
	if errors.As(err, &werr) {
		writeError(w, werr.HTTPStatus(), string(werr.Code()), werr.Message())
		return
	}
	log.Error().Err(err).Msg("unhandled store error")
	writeError(w, http.StatusInternalServerError, "store_error", "internal error")
}
