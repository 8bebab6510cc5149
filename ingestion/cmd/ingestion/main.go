package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/telhawk-systems/sportsagg/common/config"
	"github.com/telhawk-systems/sportsagg/common/logging"
	natsclient "github.com/telhawk-systems/sportsagg/common/messaging/nats"
	"github.com/telhawk-systems/sportsagg/ingestion/internal/scheduler"
	"github.com/telhawk-systems/sportsagg/ingestion/internal/server"
	"github.com/telhawk-systems/sportsagg/ingestion/pkg/publisher"
	"github.com/telhawk-systems/sportsagg/ingestion/pkg/source"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	addr := flag.String("addr", ":8091", "ops listen address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("ingestion"))
	logging.SetDefault(logger)

	if err := run(cfg, *addr, logger); err != nil {
		slog.Error("Ingestion stopped", logging.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, listenAddr string, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Seed 0 picks a random seed.
	faker := gofakeit.New(cfg.Ingestion.Seed)

	sources := make([]source.Source, 0, len(cfg.Ingestion.Sources)+1)
	for _, name := range cfg.Ingestion.Sources {
		src, err := source.New(name, faker)
		if err != nil {
			return err
		}
		sources = append(sources, src)
	}
	var mirror *source.MirrorSource
	if cfg.Ingestion.MirrorEnabled {
		mirror = source.NewMirrorSource(faker, source.DefaultMirrorCapacity)
		sources = append(sources, mirror)
	}

	js, err := natsclient.NewJetStreamClient(natsclient.ConfigFrom(cfg.NATS, "sportsagg-ingestion", logger.Logger))
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer js.Close()
	slog.Info("Connected to NATS", slog.String("url", cfg.NATS.URL))

	streamCfg := natsclient.GamesStream
	streamCfg.Name = cfg.NATS.Stream
	if _, err := js.CreateOrUpdateStream(ctx, streamCfg); err != nil {
		return fmt.Errorf("ensure games stream: %w", err)
	}

	sched := scheduler.New(sources, publisher.New(js, logger.Logger), faker,
		scheduler.Config{Interval: cfg.Ingestion.Interval}, logger.Logger)
	if mirror != nil {
		sched.Observe(mirror.Observe)
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         listenAddr,
		Handler:      server.NewRouter(sched, js),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Ops server listening", slog.String("addr", listenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-serveErr:
		slog.Error("Ops server failed", logging.Error(err))
	}

	if err := sched.Stop(); err != nil {
		slog.Warn("Scheduler stop failed", logging.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Processor.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Ops server shutdown failed", logging.Error(err))
	}
	if err := js.Drain(); err != nil {
		slog.Warn("Failed to drain NATS connection", logging.Error(err))
	}

	for name, st := range sched.Stats() {
		slog.Info("Source totals",
			logging.Source(name),
			slog.Uint64("cycles", st.Cycles),
			slog.Uint64("published", st.Published),
			slog.Uint64("errors", st.Errors))
	}
	return nil
}
