package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/observix/observix/internal/indexer"
)

func main() {
	configPath := flag.String("config", "/etc/observix/indexer.yaml", "path to indexer config file")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := indexer.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := indexer.NewServer(cfg)
	log.Info().Str("listen_addr", cfg.ListenAddr).Msg("observix-indexer starting")

	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("indexer exited with error")
		os.Exit(1)
	}
	log.Info().Msg("observix-indexer exited gracefully")
}
