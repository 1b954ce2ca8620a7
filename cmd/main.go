package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/saeidalz13/battleship-server/api"
	"github.com/saeidalz13/battleship-server/db"
	"github.com/saeidalz13/battleship-server/internal/config"
	"github.com/saeidalz13/battleship-server/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	observability.InitLogger("battleship-server", cfg.Stage, cfg.LogLevel)

	opts := []api.Option{api.WithConfig(cfg)}
	if cfg.DatabaseURL != "" {
		opts = append(opts, api.WithDb(db.MustConnectToDb(cfg.DatabaseURL, cfg.MigrationDir)))
	} else {
		log.Info().Msg("DATABASE_URL not set, game analytics disabled")
	}

	server := api.NewServer(opts...)
	if err := server.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	s := <-sig
	log.Info().Str("signal", s.String()).Msg("shutting down")

	server.Shutdown()
}
