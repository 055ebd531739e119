// Package store is the control plane's persistence layer: pipelines,
// agents, and assignments backed by an embedded sqlite database. Grounded
// on heyojules-lotus's internal/duckdb package (database/sql wrapper +
// embedded migration runner) adapted from DuckDB to modernc.org/sqlite,
// since the control plane needs durable small-table CRUD rather than an
// analytical engine.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/observix/observix/internal/wire"
)

// Store owns the sqlite connection and every query the control plane's
// HTTP handlers need.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the sqlite database at path and runs any
// pending migrations. An empty path opens a private in-memory database,
// useful for tests.
func Open(path string) (*Store, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: single writer, avoid SQLITE_BUSY under concurrent handlers

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := newMigrationRunner(db).run(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// CreatePipeline inserts a new pipeline at version 1.
func (s *Store) CreatePipeline(name string, spec wire.PipelineSpec, enabled bool) (wire.Pipeline, error) {
	if werr := spec.Validate(); werr != nil {
		return wire.Pipeline{}, werr
	}
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return wire.Pipeline{}, wire.StoreError(err)
	}

	p := wire.Pipeline{
		PipelineID: uuid.NewString(),
		Name:       name,
		Enabled:    enabled,
		Spec:       spec,
		Version:    1,
		UpdatedAt:  time.Now().UTC(),
	}

	_, err = s.db.Exec(
		`INSERT INTO pipelines (pipeline_id, name, enabled, spec_json, version, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.PipelineID, p.Name, boolToInt(p.Enabled), string(specJSON), p.Version, p.UpdatedAt,
	)
	if err != nil {
		return wire.Pipeline{}, wire.StoreError(err)
	}
	return p, nil
}

// UpdatePipeline replaces a pipeline's spec/enabled flag and bumps its
// version, which is what drives agents to restart the pipeline on their
// next poll.
func (s *Store) UpdatePipeline(id string, spec *wire.PipelineSpec, enabled *bool) (wire.Pipeline, error) {
	existing, err := s.GetPipeline(id)
	if err != nil {
		return wire.Pipeline{}, err
	}

	if spec != nil {
		if werr := spec.Validate(); werr != nil {
			return wire.Pipeline{}, werr
		}
		existing.Spec = *spec
	}
	if enabled != nil {
		existing.Enabled = *enabled
	}
	existing.Version++
	existing.UpdatedAt = time.Now().UTC()

	specJSON, err := json.Marshal(existing.Spec)
	if err != nil {
		return wire.Pipeline{}, wire.StoreError(err)
	}

	_, err = s.db.Exec(
		`UPDATE pipelines SET enabled = ?, spec_json = ?, version = ?, updated_at = ? WHERE pipeline_id = ?`,
		boolToInt(existing.Enabled), string(specJSON), existing.Version, existing.UpdatedAt, id,
	)
	if err != nil {
		return wire.Pipeline{}, wire.StoreError(err)
	}
	return existing, nil
}

// DeletePipeline removes a pipeline and, via ON DELETE CASCADE, every
// assignment referencing it.
func (s *Store) DeletePipeline(id string) error {
	res, err := s.db.Exec(`DELETE FROM pipelines WHERE pipeline_id = ?`, id)
	if err != nil {
		return wire.StoreError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return wire.NotFound(fmt.Sprintf("pipeline %s not found", id))
	}
	return nil
}

func (s *Store) GetPipeline(id string) (wire.Pipeline, error) {
	row := s.db.QueryRow(`SELECT pipeline_id, name, enabled, spec_json, version, updated_at FROM pipelines WHERE pipeline_id = ?`, id)
	p, err := scanPipeline(row)
	if err == sql.ErrNoRows {
		return wire.Pipeline{}, wire.NotFound(fmt.Sprintf("pipeline %s not found", id))
	}
	if err != nil {
		return wire.Pipeline{}, wire.StoreError(err)
	}
	return p, nil
}

func (s *Store) ListPipelines() ([]wire.Pipeline, error) {
	rows, err := s.db.Query(`SELECT pipeline_id, name, enabled, spec_json, version, updated_at FROM pipelines ORDER BY name`)
	if err != nil {
		return nil, wire.StoreError(err)
	}
	defer rows.Close()

	var out []wire.Pipeline
	for rows.Next() {
		p, err := scanPipeline(rows)
		if err != nil {
			return nil, wire.StoreError(err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPipeline(row scanner) (wire.Pipeline, error) {
	var p wire.Pipeline
	var enabledInt int
	var specJSON string
	if err := row.Scan(&p.PipelineID, &p.Name, &enabledInt, &specJSON, &p.Version, &p.UpdatedAt); err != nil {
		return wire.Pipeline{}, err
	}
	p.Enabled = enabledInt != 0
	if err := json.Unmarshal([]byte(specJSON), &p.Spec); err != nil {
		return wire.Pipeline{}, err
	}
	return p, nil
}

// UpsertAgent records a first-seen agent or refreshes last_seen_at for one
// already known, grounded on coffersTech-nanolog's registry.RegisterOrUpdate.
func (s *Store) UpsertAgent(agentID, region string) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO agents (agent_id, region, first_seen_at, last_seen_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(agent_id) DO UPDATE SET region = excluded.region, last_seen_at = excluded.last_seen_at`,
		agentID, region, now, now,
	)
	if err != nil {
		return wire.StoreError(err)
	}
	return nil
}

func (s *Store) Heartbeat(agentID string) error {
	res, err := s.db.Exec(`UPDATE agents SET last_seen_at = ? WHERE agent_id = ?`, time.Now().UTC(), agentID)
	if err != nil {
		return wire.StoreError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return wire.NotFound(fmt.Sprintf("agent %s not registered", agentID))
	}
	return nil
}

// ListAgents returns every known agent with a computed liveness status.
func (s *Store) ListAgents(staleAfter time.Duration) ([]wire.Agent, error) {
	rows, err := s.db.Query(`SELECT agent_id, region, first_seen_at, last_seen_at FROM agents ORDER BY agent_id`)
	if err != nil {
		return nil, wire.StoreError(err)
	}
	defer rows.Close()

	cutoff := time.Now().UTC().Add(-staleAfter)
	var out []wire.Agent
	for rows.Next() {
		var a wire.Agent
		if err := rows.Scan(&a.AgentID, &a.Region, &a.FirstSeenAt, &a.LastSeenAt); err != nil {
			return nil, wire.StoreError(err)
		}
		if a.LastSeenAt.Before(cutoff) {
			a.Status = wire.AgentOffline
		} else {
			a.Status = wire.AgentOnline
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CreateAssignment binds a pipeline to an agent/region. It returns a
// conflict error if that binding already exists
// (UNIQUE(agent_id, region, pipeline_id)).
func (s *Store) CreateAssignment(agentID, region, pipelineID string) (wire.Assignment, error) {
	if _, err := s.GetPipeline(pipelineID); err != nil {
		return wire.Assignment{}, err
	}

	a := wire.Assignment{
		AssignmentID: uuid.NewString(),
		AgentID:      agentID,
		Region:       region,
		PipelineID:   pipelineID,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO assignments (assignment_id, agent_id, region, pipeline_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.AssignmentID, a.AgentID, a.Region, a.PipelineID, a.CreatedAt,
	)
	if err != nil {
		return wire.Assignment{}, wire.Conflict(fmt.Sprintf("assignment for agent %s region %s pipeline %s already exists", agentID, region, pipelineID))
	}
	return a, nil
}

func (s *Store) DeleteAssignment(assignmentID string) error {
	res, err := s.db.Exec(`DELETE FROM assignments WHERE assignment_id = ?`, assignmentID)
	if err != nil {
		return wire.StoreError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return wire.NotFound(fmt.Sprintf("assignment %s not found", assignmentID))
	}
	return nil
}

// AssignmentsForAgent returns the pipelines assigned to agentID within
// region, plus the stable revision computed over them, ready to serve as an
// AssignmentView.
func (s *Store) AssignmentsForAgent(agentID, region string) (wire.AssignmentView, error) {
	rows, err := s.db.Query(`
		SELECT p.pipeline_id, p.version, p.enabled, p.spec_json
		FROM assignments asg
		JOIN pipelines p ON p.pipeline_id = asg.pipeline_id
		WHERE asg.agent_id = ? AND asg.region = ?
		ORDER BY p.pipeline_id`, agentID, region)
	if err != nil {
		return wire.AssignmentView{}, wire.StoreError(err)
	}
	defer rows.Close()

	var pipelines []wire.AssignedPipeline
	var tuples []wire.RevisionTuple
	for rows.Next() {
		var ap wire.AssignedPipeline
		var enabledInt int
		var specJSON string
		if err := rows.Scan(&ap.PipelineID, &ap.Version, &enabledInt, &specJSON); err != nil {
			return wire.AssignmentView{}, wire.StoreError(err)
		}
		ap.Enabled = enabledInt != 0
		if err := json.Unmarshal([]byte(specJSON), &ap.Spec); err != nil {
			return wire.AssignmentView{}, wire.StoreError(err)
		}
		pipelines = append(pipelines, ap)
		tuples = append(tuples, wire.RevisionTuple{PipelineID: ap.PipelineID, Version: ap.Version, Enabled: ap.Enabled})
	}
	if err := rows.Err(); err != nil {
		return wire.AssignmentView{}, wire.StoreError(err)
	}

	return wire.AssignmentView{
		Revision:  wire.ComputeRevision(tuples),
		Pipelines: pipelines,
	}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
