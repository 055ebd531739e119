package controlplane

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/observix/observix/internal/controlplane/store"
	"github.com/observix/observix/internal/wire"
)

// runLivenessSweep periodically recomputes agent online/offline status and
// logs the counts, grounded on coffersTech-nanolog's registry.StartCleanupLoop.
// Status itself is computed lazily on every ListAgents call; the sweep's
// only job is visibility into fleet health without a client asking for it.
func runLivenessSweep(ctx context.Context, st *store.Store, staleAfter, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			agents, err := st.ListAgents(staleAfter)
			if err != nil {
				log.Warn().Err(err).Msg("liveness sweep: list agents failed")
				continue
			}
			online, offline := 0, 0
			for _, a := range agents {
				if a.Status == wire.AgentOnline {
					online++
				} else {
					offline++
				}
			}
			log.Debug().Int("online", online).Int("offline", offline).Msg("liveness sweep")
		}
	}
}
