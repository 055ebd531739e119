package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/observix/observix/internal/agent"
)

func main() {
	configPath := flag.String("config", "/etc/observix/agent.yaml", "path to agent config file")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := agent.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := agent.NewAgent(cfg)
	log.Info().Str("agent_id", cfg.AgentID).Str("control_plane", cfg.ControlPlane.URL).Msg("observix-agent starting")

	if err := a.Start(ctx); err != nil {
		log.Error().Err(err).Msg("agent exited with error")
		os.Exit(1)
	}
	log.Info().Msg("observix-agent exited gracefully")
}
