package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/muni-incidencias/backend/internal/actions"
	"github.com/muni-incidencias/backend/internal/auth"
	"github.com/muni-incidencias/backend/internal/backend"
	"github.com/muni-incidencias/backend/internal/config"
	httpapi "github.com/muni-incidencias/backend/internal/http"
	"github.com/muni-incidencias/backend/internal/http/handlers"
	"github.com/muni-incidencias/backend/internal/obs"
	"github.com/muni-incidencias/backend/internal/queries"
	"github.com/muni-incidencias/backend/internal/views"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "incidencias-backend").Logger()

	obs.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := backend.NewPG(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	authClient := auth.NewClient(cfg.BackendURL, cfg.BackendAnonKey, cfg.BackendSvcKey)

	cache := views.NewCache(cfg.ViewCacheTTL)
	reconciler := actions.NewReconciler(logger, 64)
	reconciler.Start(ctx)

	acts := actions.New(store, authClient, authClient, cache, reconciler, logger)
	qsvc := &queries.Service{Store: store, Logger: logger}

	h := &handlers.Handler{
		Queries: qsvc,
		Actions: acts,
		Cache:   cache,
		Pinger:  store,
		Logger:  logger,
	}

	router := httpapi.Router(cfg, h, authClient, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	<-reconciler.Done()
	logger.Info().Msg("server stopped")
}
