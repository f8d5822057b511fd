package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/ridethebus/bus-server/internal/adapters/http"
	wsignal "github.com/ridethebus/bus-server/internal/adapters/signal"
	"github.com/ridethebus/bus-server/internal/config"
	"github.com/ridethebus/bus-server/internal/core"
	"github.com/ridethebus/bus-server/internal/domain"
	"github.com/ridethebus/bus-server/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	rooms, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open room store")
	}
	defer closeStore()

	hub := wsignal.NewHub(rooms)
	codes := domain.NewCodeGenerator(cfg.CodeLength)
	session := core.NewSession(rooms, hub, codes, cfg.CodeAttempts)
	ctl := wsignal.NewController(cfg, session, hub)

	r := router.SetupRouter(ctx, cfg, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Ride the Bus server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}

// openStore picks the backend: sqlite when a path is configured,
// otherwise the in-process table.
func openStore(cfg *config.Config) (store.RoomStore, func(), error) {
	if cfg.StorePath == "" {
		log.Info().Str("module", "main").Msg("using in-memory room store")
		return store.NewMemoryStore(), func() {}, nil
	}
	s, err := store.OpenSQLite(cfg.StorePath, 0)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("module", "main").Str("path", cfg.StorePath).Msg("using sqlite room store")
	return s, func() {
		if err := s.Close(); err != nil {
			log.Error().Err(err).Msg("store close")
		}
	}, nil
}
