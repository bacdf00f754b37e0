package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/PratikDhanave/session-event-api/internal/config"
	"github.com/PratikDhanave/session-event-api/internal/eventstore"
	"github.com/PratikDhanave/session-event-api/internal/httpserver"
	"github.com/PratikDhanave/session-event-api/internal/logger"
	"github.com/PratikDhanave/session-event-api/internal/metrics"
	"github.com/PratikDhanave/session-event-api/internal/store"
)

const (
	bucketInitTimeout = 10 * time.Second
	readHeaderTimeout = 5 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// main boots the service: config → logger → object store → bucket check → HTTP server.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	base, err := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	if err != nil {
		log.Fatal().Err(err).Msg("init logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.NewManager()

	objects, err := store.NewFromConfig(ctx, cfg, config.BucketName)
	if err != nil {
		base.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("open object store")
	}
	defer objects.Close()

	events := eventstore.New(
		store.NewInstrumented(objects, m),
		eventstore.WithLogger(logger.Component(base, "eventstore")),
		eventstore.WithRecorder(m),
	)

	// A missing bucket never stops startup; /ready reports it instead.
	initCtx, cancel := context.WithTimeout(ctx, bucketInitTimeout)
	if err := events.EnsureBucket(initCtx); err != nil {
		m.SetBucketReady(false)
		base.Warn().Err(err).Str("bucket", config.BucketName).Msg("could not create bucket")
	} else {
		m.SetBucketReady(true)
	}
	cancel()

	router := httpserver.NewRouter(events, m, logger.Component(base, "http"))
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	go func() {
		base.Info().Str("addr", cfg.Addr).Str("backend", cfg.Storage.Backend).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			base.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	base.Info().Msg("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		base.Error().Err(err).Msg("graceful shutdown failed")
	}
}
