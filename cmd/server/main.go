package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"beacon/internal/audit"
	audithandler "beacon/internal/audit/handler"
	auditpg "beacon/internal/audit/store/postgres"
	"beacon/internal/audit/stream"
	"beacon/internal/detector"
	detectorhandler "beacon/internal/detector/handler"
	detectormetrics "beacon/internal/detector/metrics"
	detectorpg "beacon/internal/detector/store/postgres"
	"beacon/internal/notification"
	"beacon/internal/notification/cache"
	notifhandler "beacon/internal/notification/handler"
	notifmetrics "beacon/internal/notification/metrics"
	notifpg "beacon/internal/notification/store/postgres"
	"beacon/internal/platform/config"
	"beacon/internal/platform/httpserver"
	"beacon/internal/platform/logger"
	platformpg "beacon/internal/platform/postgres"
	platformredis "beacon/internal/platform/redis"
	"beacon/pkg/platform/middleware/auth"
	"beacon/pkg/platform/middleware/request"
	"beacon/pkg/platform/middleware/requesttime"
	"beacon/pkg/platform/tx"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal feature packages.
func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := platformpg.Open(ctx, cfg.Postgres.URL)
	if err != nil {
		log.Error("postgres unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := platformpg.RunMigrations(ctx, db, log, platformpg.Migrations()); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	// Stores and services.
	auditStore := auditpg.New(db)
	ledger := audit.NewLedger(auditStore, log)

	notifStore := notifpg.New(db)
	notifOpts := []notification.Option{
		notification.WithMetrics(notifmetrics.New()),
	}

	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		notifOpts = append(notifOpts,
			notification.WithUnreadCache(cache.New(redisClient.Client, cache.WithTTL(cfg.Redis.TTL))))
	}
	notifService := notification.NewService(notifStore, log, notifOpts...)

	triggers := make([]detector.Trigger, 0, len(cfg.Detector.Triggers))
	for _, t := range cfg.Detector.Triggers {
		triggers = append(triggers, detector.Trigger{EntityType: t.EntityType, Status: t.Status})
	}
	runner := detector.NewRunner(
		detectorpg.NewSource(db),
		detectorpg.NewWatermarkStore(db),
		ledger,
		notifService,
		tx.NewSQLRunner(db),
		triggers,
		log,
		detector.WithMetrics(detectormetrics.New()),
		detector.WithLeaseTTL(cfg.Detector.LeaseTTL),
		detector.WithConcurrency(cfg.Detector.Concurrency),
	)

	// HTTP surface.
	validator := auth.NewHMACValidator([]byte(cfg.Server.JWTSigningKey), cfg.Server.JWTIssuer)

	router := chi.NewRouter()
	router.Use(chimiddleware.Recoverer)
	router.Use(request.RequestID)
	router.Use(requesttime.Middleware)
	router.Use(chimiddleware.Timeout(30 * time.Second))

	notifhandler.New(notifService, log, validator).Register(router)
	audithandler.New(ledger, log, validator).Register(router)
	detectorhandler.New(runner, cfg.Server.AdminToken, log).Register(router)

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := httpserver.New(cfg.Server.Addr, router)

	// Background workers.
	go runDetectorLoop(ctx, runner, cfg.Detector.Interval, log)

	if len(cfg.Stream.Brokers) > 0 {
		publisher, err := stream.NewPublisher(ctx, cfg.Stream.Brokers, cfg.Stream.Topic, cfg.Stream.Partitions)
		if err != nil {
			log.Error("audit stream unavailable", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()

		relay := stream.NewRelay(auditStore, publisher, log,
			stream.WithBatchSize(cfg.Stream.BatchSize),
			stream.WithInterval(cfg.Stream.Interval),
			stream.WithMetrics(stream.NewMetrics()),
		)
		go func() {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit stream relay stopped", "error", err)
			}
		}()
	}

	go func() {
		log.Info("starting beacon", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

// runDetectorLoop invokes the detector on a fixed schedule until ctx is
// cancelled. An interval of zero disables scheduled runs; the admin endpoint
// remains available.
func runDetectorLoop(ctx context.Context, runner *detector.Runner, interval time.Duration, log *slog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			summary, err := runner.Run(ctx, detector.RunRequest{})
			if err != nil {
				log.ErrorContext(ctx, "scheduled detector run failed", "error", err)
				continue
			}
			if summary.EntitiesScanned > 0 || summary.Errors > 0 {
				log.InfoContext(ctx, "detector run complete",
					"entities_scanned", summary.EntitiesScanned,
					"audit_entries_written", summary.AuditEntriesWritten,
					"notifications_created", summary.NotificationsCreated,
					"errors", summary.Errors,
					"lease_contention", summary.LeaseContention,
				)
			}
		}
	}
}
