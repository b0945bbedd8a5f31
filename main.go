package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/gridboard/apps/go-server/internal/config"
	"github.com/robalobadob/gridboard/apps/go-server/internal/game"
	"github.com/robalobadob/gridboard/apps/go-server/internal/grid"
	"github.com/robalobadob/gridboard/apps/go-server/internal/httpserver"
	"github.com/robalobadob/gridboard/apps/go-server/internal/hub"
	"github.com/robalobadob/gridboard/apps/go-server/internal/journal"
	"github.com/robalobadob/gridboard/apps/go-server/internal/players"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	setupLogging(cfg)

	store := grid.NewStore(cfg.GridSize)
	reg := players.NewRegistry()
	h := hub.New(cfg.ObserverBuffer)

	opts := game.Options{LockDuration: cfg.LockDuration, Broadcaster: h}
	deps := httpserver.Deps{Players: reg, Hub: h}
	if cfg.JournalDSN != "" {
		j, err := journal.Open(cfg.JournalDSN)
		if err != nil {
			log.Fatal().Err(err).Str("dsn", cfg.JournalDSN).Msg("failed to open journal")
		}
		defer j.Close()
		opts.Journal = j
		deps.Journal = j
	}
	deps.Service = game.NewService(store, reg, opts)

	srv := httpserver.New(deps, httpserver.Options{
		ClientOrigin: cfg.ClientOrigin,
		WriteTimeout: cfg.WriteTimeout,
		PingInterval: cfg.PingInterval,
	})
	httpSrv := srv.HTTPServer(cfg.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Int("cells", cfg.GridSize).Dur("lock", deps.Service.LockDuration()).Msg("starting go-server")
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server exited")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		// Websocket connections are hijacked; closing the hub ends their loops.
		h.Close()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}
}

func setupLogging(cfg config.Config) {
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
