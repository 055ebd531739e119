package store

import (
	"testing"
	"time"

	"github.com/observix/observix/internal/wire"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open("")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func rawSpec() wire.PipelineSpec {
	return wire.PipelineSpec{
		Source:          wire.PipelineSource{Type: wire.SourceSyslogUDP, Options: map[string]any{"port": float64(5514)}},
		Processor:       wire.PipelineProcessor{Mode: wire.ProcessorRaw},
		Destination:     wire.PipelineDestination{Type: wire.DestFile, Options: map[string]any{"path": "/tmp/out.log"}},
		BatchMaxEvents:  10,
		BatchMaxSeconds: 1.0,
	}
}

func TestCreateAndGetPipeline(t *testing.T) {
	st := newTestStore(t)
	p, err := st.CreatePipeline("syslog-in", rawSpec(), true)
	if err != nil {
		t.Fatalf("create pipeline: %v", err)
	}
	if p.Version != 1 {
		t.Fatalf("expected version 1, got %d", p.Version)
	}

	got, err := st.GetPipeline(p.PipelineID)
	if err != nil {
		t.Fatalf("get pipeline: %v", err)
	}
	if got.Name != "syslog-in" || !got.Enabled {
		t.Fatalf("unexpected pipeline: %+v", got)
	}
}

func TestUpdatePipelineBumpsVersion(t *testing.T) {
	st := newTestStore(t)
	p, _ := st.CreatePipeline("p", rawSpec(), true)

	disabled := false
	updated, err := st.UpdatePipeline(p.PipelineID, nil, &disabled)
	if err != nil {
		t.Fatalf("update pipeline: %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("expected version bumped to 2, got %d", updated.Version)
	}
	if updated.Enabled {
		t.Fatalf("expected pipeline disabled")
	}
}

func TestDeletePipelineCascadesAssignments(t *testing.T) {
	st := newTestStore(t)
	p, _ := st.CreatePipeline("p", rawSpec(), true)
	if err := st.UpsertAgent("agent-1", "us-east"); err != nil {
		t.Fatalf("upsert agent: %v", err)
	}
	if _, err := st.CreateAssignment("agent-1", "us-east", p.PipelineID); err != nil {
		t.Fatalf("create assignment: %v", err)
	}

	if err := st.DeletePipeline(p.PipelineID); err != nil {
		t.Fatalf("delete pipeline: %v", err)
	}

	view, err := st.AssignmentsForAgent("agent-1", "us-east")
	if err != nil {
		t.Fatalf("assignments for agent: %v", err)
	}
	if len(view.Pipelines) != 0 {
		t.Fatalf("expected assignment to be cascaded away, got %+v", view.Pipelines)
	}
}

func TestAssignmentsForAgentComputesStableRevision(t *testing.T) {
	st := newTestStore(t)
	p, _ := st.CreatePipeline("p", rawSpec(), true)
	st.UpsertAgent("agent-1", "us-east")
	st.CreateAssignment("agent-1", "us-east", p.PipelineID)

	v1, err := st.AssignmentsForAgent("agent-1", "us-east")
	if err != nil {
		t.Fatalf("assignments: %v", err)
	}
	v2, err := st.AssignmentsForAgent("agent-1", "us-east")
	if err != nil {
		t.Fatalf("assignments: %v", err)
	}
	if v1.Revision != v2.Revision {
		t.Fatalf("expected stable revision across repeated polls")
	}

	enabled := false
	st.UpdatePipeline(p.PipelineID, nil, &enabled)
	v3, err := st.AssignmentsForAgent("agent-1", "us-east")
	if err != nil {
		t.Fatalf("assignments: %v", err)
	}
	if v3.Revision == v1.Revision {
		t.Fatalf("expected revision to change after pipeline update")
	}
}

func TestAssignmentsForAgentFiltersByRegion(t *testing.T) {
	st := newTestStore(t)
	p, _ := st.CreatePipeline("p", rawSpec(), true)
	st.UpsertAgent("agent-1", "us-east")
	if _, err := st.CreateAssignment("agent-1", "us-east", p.PipelineID); err != nil {
		t.Fatalf("create assignment: %v", err)
	}

	view, err := st.AssignmentsForAgent("agent-1", "eu-west")
	if err != nil {
		t.Fatalf("assignments: %v", err)
	}
	if len(view.Pipelines) != 0 {
		t.Fatalf("expected no pipelines for a region with no assignment, got %+v", view.Pipelines)
	}

	view, err = st.AssignmentsForAgent("agent-1", "us-east")
	if err != nil {
		t.Fatalf("assignments: %v", err)
	}
	if len(view.Pipelines) != 1 {
		t.Fatalf("expected 1 pipeline for the assigned region, got %+v", view.Pipelines)
	}
}

func TestListAgentsComputesLivenessStatus(t *testing.T) {
	st := newTestStore(t)
	st.UpsertAgent("stale-agent", "us-east")

	agents, err := st.ListAgents(0) // staleAfter=0 means everything not seen in the last instant is offline
	if err != nil {
		t.Fatalf("list agents: %v", err)
	}
	if len(agents) != 1 {
		t.Fatalf("expected 1 agent, got %d", len(agents))
	}

	fresh, err := st.ListAgents(time.Hour)
	if err != nil {
		t.Fatalf("list agents: %v", err)
	}
	if fresh[0].Status != wire.AgentOnline {
		t.Fatalf("expected online status within stale window, got %s", fresh[0].Status)
	}
}

func TestCreatePipelineRejectsInvalidSpec(t *testing.T) {
	st := newTestStore(t)
	bad := rawSpec()
	bad.BatchMaxEvents = 0
	if _, err := st.CreatePipeline("bad", bad, true); err == nil {
		t.Fatalf("expected invalid_spec error")
	}
}
