package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/observix/observix/internal/controlplane"
	"github.com/observix/observix/internal/controlplane/store"
)

func main() {
	configPath := flag.String("config", "/etc/observix/controlplane.yaml", "path to control plane config file")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := controlplane.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := controlplane.NewServer(st, cfg)
	log.Info().Str("listen_addr", cfg.ListenAddr).Msg("observix-controlplane starting")

	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("control plane exited with error")
		os.Exit(1)
	}
	log.Info().Msg("observix-controlplane exited gracefully")
}
