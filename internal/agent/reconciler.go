package agent

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/observix/observix/internal/agent/cpclient"
)

// runReconciler registers with the control plane, then starts two
// goroutines: a heartbeat loop and a poll loop that applies assignment
// diffs to the running pipeline set. Both stop when ctx is cancelled.
func runReconciler(ctx context.Context, a *Agent) {
	client := cpclient.New(a.cfg.ControlPlane.URL, a.cfg.AgentID, a.cfg.Region, a.cfg.ControlPlane.BearerToken)

	go func() {
		if !registerWithRetry(ctx, client) {
			return
		}
		go runHeartbeatLoop(ctx, a, client)
		runPollLoop(ctx, a, client)
	}()
}

// registerWithRetry blocks with exponential backoff until registration
// succeeds or ctx is cancelled, so neither the heartbeat nor poll loop
// starts talking about an agent_id the control plane hasn't seen yet.
func registerWithRetry(ctx context.Context, client *cpclient.Client) bool {
	for attempt := 0; ; attempt++ {
		err := client.Register(ctx)
		if err == nil {
			return true
		}
		log.Warn().Err(err).Msg("agent registration failed, retrying")
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoffFor(attempt)):
		}
	}
}

func runHeartbeatLoop(ctx context.Context, a *Agent, client *cpclient.Client) {
	ticker := time.NewTicker(jitter(a.cfg.HeartbeatInterval()))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.Heartbeat(ctx); err != nil {
				log.Warn().Err(err).Msg("heartbeat failed")
			}
		}
	}
}

func runPollLoop(ctx context.Context, a *Agent, client *cpclient.Client) {
	ticker := time.NewTicker(jitter(a.cfg.PollInterval()))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			view, changed, err := client.PollAssignments(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("assignment poll failed")
				continue
			}
			if !changed {
				continue
			}
			if view.Revision == a.currentRevision() {
				continue
			}
			log.Info().Str("revision", view.Revision).Int("pipelines", len(view.Pipelines)).Msg("applying new assignment revision")
			a.applyAssignments(*view)
		}
	}
}

// jitter spreads poll/heartbeat intervals by +-20% so a fleet of agents
// restarted together doesn't hammer the control plane in lockstep.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	delta := float64(d) * 0.2
	offset := (rand.Float64()*2 - 1) * delta
	return d + time.Duration(offset)
}

func backoffFor(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt)) * time.Second
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}
