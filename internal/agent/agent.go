package agent

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/observix/observix/internal/wire"
)

// Agent is the top-level runtime owning a set of running pipelines and the
// control-plane polling loop that keeps them in sync with assignments.
type Agent struct {
	cfg *Config

	mu        sync.RWMutex
	pipelines map[string]*Pipeline
	revision  string

	ctx    context.Context
	cancel context.CancelFunc
}

// NewAgent constructs an Agent from config with no pipelines running; call
// Start to launch the reconciliation loop.
func NewAgent(cfg *Config) *Agent {
	return &Agent{cfg: cfg, pipelines: make(map[string]*Pipeline)}
}

// Start launches the reconciler loop in the background and blocks until ctx
// is cancelled, at which point every running pipeline is stopped within the
// configured shutdown deadline.
func (a *Agent) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.ctx = runCtx
	a.cancel = cancel

	runReconciler(runCtx, a)

	<-runCtx.Done()
	a.stopAll()
	return nil
}

// Stop cancels the Agent's context, causing Start to return after all
// pipelines wind down.
func (a *Agent) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
}

func (a *Agent) stopAll() {
	a.mu.Lock()
	pipelines := make([]*Pipeline, 0, len(a.pipelines))
	for _, p := range a.pipelines {
		pipelines = append(pipelines, p)
	}
	a.pipelines = make(map[string]*Pipeline)
	a.mu.Unlock()

	deadline := a.cfg.ShutdownDeadline()
	var g errgroup.Group
	for _, p := range pipelines {
		p := p
		g.Go(func() error {
			p.stop(deadline)
			return nil
		})
	}
	g.Wait()
}

// Stats returns a point-in-time snapshot of every running pipeline, keyed
// by pipeline_id, for the agent's own status reporting.
func (a *Agent) Stats() map[string]PipelineStatsSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]PipelineStatsSnapshot, len(a.pipelines))
	for id, p := range a.pipelines {
		out[id] = p.snapshot()
	}
	return out
}

// applyAssignments diffs the desired set of pipelines against what's
// currently running: starts additions, stops removals, and restarts any
// pipeline whose version or enabled flag changed. Stops happen before
// starts so a pipeline that changes its source/destination options never
// holds two bindings (e.g. the same UDP port) at once.
func (a *Agent) applyAssignments(view wire.AssignmentView) {
	desired := make(map[string]wire.AssignedPipeline, len(view.Pipelines))
	for _, ap := range view.Pipelines {
		desired[ap.PipelineID] = ap
	}

	a.mu.Lock()
	var toStop []*Pipeline
	var stopIDs []string
	for id, p := range a.pipelines {
		ap, ok := desired[id]
		if !ok || !ap.Enabled || ap.Version != p.version {
			toStop = append(toStop, p)
			stopIDs = append(stopIDs, id)
		}
	}
	for _, id := range stopIDs {
		delete(a.pipelines, id)
	}
	a.mu.Unlock()

	if len(toStop) > 0 {
		deadline := a.cfg.ShutdownDeadline()
		var g errgroup.Group
		for _, p := range toStop {
			p := p
			g.Go(func() error {
				p.stop(deadline)
				return nil
			})
		}
		g.Wait()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for id, ap := range desired {
		if !ap.Enabled {
			continue
		}
		if _, running := a.pipelines[id]; running {
			continue
		}
		p, err := newPipeline(id, id, ap.Spec, ap.Version)
		if err != nil {
			log.Error().Err(err).Str("pipeline_id", id).Msg("failed to build pipeline, skipping")
			continue
		}
		p.start(a.ctx)
		a.pipelines[id] = p
	}

	a.revision = view.Revision
}

func (a *Agent) currentRevision() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.revision
}
