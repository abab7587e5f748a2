// Command server runs the HTTP API and, when Kafka is configured, the
// reconciliation job consumer in the same process.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	companyhandler "github.com/desmedtandreas/companions-app-backend/internal/companies/handler"
	companyservice "github.com/desmedtandreas/companions-app-backend/internal/companies/service"
	companystore "github.com/desmedtandreas/companions-app-backend/internal/companies/store"
	"github.com/desmedtandreas/companions-app-backend/internal/financials/importer"
	"github.com/desmedtandreas/companions-app-backend/internal/financials/metrics"
	"github.com/desmedtandreas/companions-app-backend/internal/financials/nbb"
	finstore "github.com/desmedtandreas/companions-app-backend/internal/financials/store"
	"github.com/desmedtandreas/companions-app-backend/internal/financials/worker"
	"github.com/desmedtandreas/companions-app-backend/internal/platform/config"
	"github.com/desmedtandreas/companions-app-backend/internal/platform/httpserver"
	"github.com/desmedtandreas/companions-app-backend/internal/platform/kafka"
	"github.com/desmedtandreas/companions-app-backend/internal/platform/logger"
	"github.com/desmedtandreas/companions-app-backend/internal/platform/middleware"
	"github.com/desmedtandreas/companions-app-backend/internal/platform/postgres"
	"github.com/desmedtandreas/companions-app-backend/internal/platform/redis"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := logger.New(cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()
	if err := postgres.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	companies := companystore.NewPostgres(db)
	filings := finstore.NewPostgres(db)
	runner := finstore.NewSQLTxRunner(db)
	finMetrics := metrics.New()

	registry := nbb.NewClient(cfg.NBB)
	imp := importer.New(companies, filings, registry, runner, finMetrics, log, cfg.Import.Rebuild)

	g, gctx := errgroup.WithContext(ctx)

	var enqueuer companyservice.Enqueuer
	brokers := splitBrokers(cfg.Kafka.Brokers)
	if len(brokers) > 0 {
		if err := kafka.EnsureTopic(ctx, brokers, cfg.Kafka.Topic, 3); err != nil {
			return fmt.Errorf("ensure topic: %w", err)
		}
		publisher, err := kafka.NewPublisher(brokers)
		if err != nil {
			return err
		}
		defer publisher.Close()
		enqueuer = worker.NewEnqueuer(publisher, cfg.Kafka.Topic)

		var locker worker.Locker = worker.NoopLocker{}
		if redisClient != nil {
			locker = worker.NewRedisLocker(redisClient)
		}
		handler := worker.NewHandler(imp, companies, filings, locker,
			cfg.Import.SettleDelay, cfg.Import.LeaseTTL, log)
		consumer, err := kafka.NewConsumer(brokers, cfg.Kafka.Topic, cfg.Kafka.Group, handler, log)
		if err != nil {
			return err
		}
		defer consumer.Close()

		g.Go(func() error {
			log.Info("job consumer started", "topic", cfg.Kafka.Topic, "group", cfg.Kafka.Group)
			return consumer.Run(gctx)
		})
	}

	svc := companyservice.New(companies, filings, imp, enqueuer, log)

	router := chi.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(log))
	companyhandler.New(svc, log).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	server := httpserver.New(cfg.Server.Addr, router)
	g.Go(func() error {
		log.Info("http server started", "addr", cfg.Server.Addr, "env", cfg.Server.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutdown complete")
	return nil
}

func splitBrokers(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
