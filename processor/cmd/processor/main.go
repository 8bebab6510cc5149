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
	"time"

	"github.com/telhawk-systems/sportsagg/common/config"
	"github.com/telhawk-systems/sportsagg/common/logging"
	natsclient "github.com/telhawk-systems/sportsagg/common/messaging/nats"
	"github.com/telhawk-systems/sportsagg/common/storage"
	"github.com/telhawk-systems/sportsagg/processor/internal/dedup"
	"github.com/telhawk-systems/sportsagg/processor/internal/dlq"
	"github.com/telhawk-systems/sportsagg/processor/internal/handlers"
	processornats "github.com/telhawk-systems/sportsagg/processor/internal/nats"
	"github.com/telhawk-systems/sportsagg/processor/internal/server"
	"github.com/telhawk-systems/sportsagg/processor/internal/service"
	"github.com/telhawk-systems/sportsagg/processor/internal/sourcestats"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	addr := flag.String("addr", "", "override ops listen address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("processor"))
	logging.SetDefault(logger)

	listenAddr := cfg.Server.Addr()
	if *addr != "" {
		listenAddr = *addr
	}

	if err := run(cfg, listenAddr, logger); err != nil {
		slog.Error("Processor stopped", logging.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, listenAddr string, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting processor",
		slog.String("database_driver", cfg.Database.Driver),
		slog.Int("max_workers", cfg.Processor.MaxWorkers),
		slog.Bool("redis_enabled", cfg.Redis.Enabled),
		slog.Bool("nats_embedded", cfg.NATS.Embedded))

	store, err := storage.Open(ctx, cfg.Database, logger.Logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("Failed to close store", logging.Error(err))
		}
	}()

	checks := []handlers.Check{{Name: "store", Probe: store.Ping}}

	var cache dedup.Cache = dedup.NopCache{}
	var sourceStats *sourcestats.Client
	if cfg.Redis.Enabled {
		client, err := dedup.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			// The store constraint still guarantees correctness without the cache.
			slog.Warn("Failed to connect to Redis (continuing without duplicate cache)",
				slog.String("url", cfg.Redis.URL),
				logging.Error(err))
		} else {
			defer client.Close()
			redisCache := dedup.NewRedisCache(client, dedup.RedisCacheConfigFrom(cfg.Dedup), logger.Logger)
			cache = redisCache
			checks = append(checks, handlers.Check{Name: "cache", Optional: true, Probe: redisCache.Ping})
			sourceStats = sourcestats.NewClient(client, instanceID())
			slog.Info("Connected to Redis", slog.String("url", cfg.Redis.URL))
		}
	} else {
		slog.Info("Duplicate cache disabled")
	}

	oracle := dedup.NewOracle(cache, cfg.Dedup.Window, logger.Logger)
	proc := service.NewProcessor(oracle, store, logger)
	if sourceStats != nil {
		collector := sourcestats.NewCollector(sourceStats, cfg.Redis.StatsFlushInterval, logger.Logger)
		defer collector.Stop()
		proc.UseRecorder(collector)
	}

	natsCfg := natsclient.ConfigFrom(cfg.NATS, "sportsagg-processor", logger.Logger)
	if cfg.NATS.Embedded {
		embedded, err := natsclient.StartEmbedded(natsclient.EmbeddedConfigFrom(cfg.NATS))
		if err != nil {
			return fmt.Errorf("start embedded NATS: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = embedded.Shutdown(shutdownCtx)
		}()
		natsCfg.URL = embedded.ClientURL()
		slog.Info("Started embedded NATS", slog.String("url", natsCfg.URL))
	}

	js, err := natsclient.NewJetStreamClient(natsCfg)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer js.Close()
	slog.Info("Connected to NATS", slog.String("url", natsCfg.URL))
	checks = append(checks, handlers.Check{Name: "nats", Probe: func(context.Context) error {
		if !js.IsConnected() {
			return errors.New("not connected")
		}
		return nil
	}})

	dead, err := dlq.NewJetStreamQueue(ctx, js, logger.Logger)
	if err != nil {
		return err
	}

	// In-flight reports keep their context past the signal so they can settle.
	consumeCtx, abandon := context.WithCancel(context.Background())
	defer abandon()

	natsHandler := processornats.NewHandler(js, proc, dead, processornats.Config{
		Stream:     cfg.NATS.Stream,
		Consumer:   cfg.NATS.Consumer,
		MaxWorkers: cfg.Processor.MaxWorkers,
		AckWait:    cfg.NATS.AckWait,
		MaxDeliver: cfg.NATS.MaxDeliver,
		NakDelay:   cfg.NATS.NakDelay,
	}, logger.Logger)
	if err := natsHandler.Start(consumeCtx); err != nil {
		return err
	}

	ops := handlers.NewOpsHandler(proc, dead, checks...)
	if sourceStats != nil {
		ops.WithSourceStats(sourceStats)
	}

	srv := &http.Server{
		Addr:         listenAddr,
		Handler:      server.NewRouter(ops),
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Processor.ShutdownTimeout)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		natsHandler.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		slog.Warn("In-flight reports did not finish in time, abandoning them for redelivery")
		abandon()
		<-stopped
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Ops server shutdown failed", logging.Error(err))
	}
	if err := js.Drain(); err != nil {
		slog.Warn("Failed to drain NATS connection", logging.Error(err))
	}

	stats := proc.Health()
	slog.Info("Processor stopped",
		slog.Uint64("inserted", stats.Inserted),
		slog.Uint64("conflicted", stats.Conflicted),
		slog.Uint64("skipped", stats.Skipped),
		slog.Uint64("malformed", stats.Malformed),
		slog.Uint64("failed", stats.Failed))
	return nil
}

// instanceID names this process in the shared source stats.
func instanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "processor"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
