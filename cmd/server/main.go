package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	authhandler "amlstat/internal/auth/handler"
	"amlstat/internal/auth/lockout"
	authmetrics "amlstat/internal/auth/metrics"
	authservice "amlstat/internal/auth/service"
	lockoutstore "amlstat/internal/auth/store/lockout"
	"amlstat/internal/compliance/cache"
	compliancehandler "amlstat/internal/compliance/handler"
	compliancemetrics "amlstat/internal/compliance/metrics"
	complianceservice "amlstat/internal/compliance/service"
	"amlstat/internal/jwttoken"
	orghandler "amlstat/internal/organization/handler"
	orgmetrics "amlstat/internal/organization/metrics"
	orgservice "amlstat/internal/organization/service"
	"amlstat/internal/platform/config"
	"amlstat/internal/platform/httpserver"
	"amlstat/internal/platform/kafka"
	"amlstat/internal/platform/logger"
	"amlstat/internal/platform/metrics"
	"amlstat/internal/platform/redis"
	submissionhandler "amlstat/internal/submission/handler"
	submissionmetrics "amlstat/internal/submission/metrics"
	submissionservice "amlstat/internal/submission/service"
	httptransport "amlstat/internal/transport/http"
	"amlstat/pkg/platform/audit/publisher"
	"amlstat/pkg/platform/audit/worker"
)

const (
	auditTopicPartitions  = 3
	auditTopicReplication = 1
)

// cacheInvalidator is what both write-side services need from the
// compliance cache.
type cacheInvalidator interface {
	submissionservice.CacheInvalidator
	orgservice.CacheInvalidator
}

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("amlstat stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("amlstat stopped")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store, err := openStorage(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer store.close()

	var invalidator cacheInvalidator = cache.Noop{}
	var complianceCache complianceservice.Cache = cache.Noop{}
	var lockoutStore lockout.Store = lockoutstore.New()
	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if rc != nil {
		defer func() { _ = rc.Close() }()
		redisCache := cache.NewRedis(rc.Client, cfg.Compliance.CacheTTL)
		invalidator, complianceCache = redisCache, redisCache
		lockoutStore = lockoutstore.NewRedis(rc.Client)
		store.checks["redis"] = rc.Health
	} else {
		log.WarnContext(ctx, "REDIS_URL not set, compliance views are not cached and login lockouts are per instance")
	}
	limiter, err := lockout.New(lockoutStore,
		lockout.WithLogger(log),
		lockout.WithConfig(lockout.Config{
			MaxAttempts:  cfg.Auth.LockoutAttempts,
			Window:       cfg.Auth.LockoutWindow,
			LockDuration: cfg.Auth.LockoutDuration,
		}),
	)
	if err != nil {
		return fmt.Errorf("login lockout: %w", err)
	}

	auditPublisher := publisher.New(store.audit,
		publisher.WithLogger(log),
		publisher.WithMetrics(publisher.NewMetrics(reg)),
	)

	var producer *kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafka.NewProducer(cfg.Kafka, log)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer producer.Close()
		if err := producer.EnsureTopic(ctx, auditTopicPartitions, auditTopicReplication); err != nil {
			return fmt.Errorf("ensure audit topic: %w", err)
		}
		store.checks["kafka"] = producer.Ping
	} else {
		log.WarnContext(ctx, "KAFKA_BROKERS not set, audit events stay in the outbox")
	}

	tokens := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)

	submissionSvc := submissionservice.New(store.submissions, store.orgs,
		submissionservice.WithLogger(log),
		submissionservice.WithMetrics(submissionmetrics.NewWithRegistry(reg)),
		submissionservice.WithAuditPublisher(auditPublisher),
		submissionservice.WithCacheInvalidator(invalidator),
		submissionservice.WithTxRunner(store.tx),
	)
	orgSvc := orgservice.New(store.orgs, store.users, store.submissions,
		orgservice.WithLogger(log),
		orgservice.WithMetrics(orgmetrics.NewWithRegistry(reg)),
		orgservice.WithAuditPublisher(auditPublisher),
		orgservice.WithCacheInvalidator(invalidator),
		orgservice.WithTxRunner(store.tx),
	)
	complianceSvc := complianceservice.New(store.submissions, store.orgs,
		complianceservice.WithLogger(log),
		complianceservice.WithMetrics(compliancemetrics.NewWithRegistry(reg)),
		complianceservice.WithCache(complianceCache),
	)
	authSvc := authservice.New(store.users, store.orgs, tokens,
		authservice.WithLogger(log),
		authservice.WithMetrics(authmetrics.NewWithRegistry(reg)),
		authservice.WithAuditPublisher(auditPublisher),
		authservice.WithTxRunner(store.tx),
		authservice.WithTokenTTL(cfg.Auth.TokenTTL),
		authservice.WithLoginLimiter(limiter),
	)

	if cfg.Bootstrap.AdminEmail != "" {
		created, err := authSvc.BootstrapAdmin(ctx, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword)
		if err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		if created {
			log.InfoContext(ctx, "bootstrap administrator created", "email", cfg.Bootstrap.AdminEmail)
		}
	}

	authH := authhandler.New(authSvc, log)
	router := httptransport.NewRouter(httptransport.Dependencies{
		Logger:       log,
		Tokens:       jwttoken.NewJWTServiceAdapter(tokens),
		Metrics:      metrics.NewWithRegistry(reg),
		Gatherer:     reg,
		HealthChecks: store.checks,
		Public:       []httptransport.PublicRouteRegistrar{authH},
		Modules: []httptransport.RouteRegistrar{
			submissionhandler.New(submissionSvc, log),
			compliancehandler.New(complianceSvc, log),
			orghandler.New(orgSvc, log),
			authH,
		},
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting amlstat", "addr", cfg.Server.Addr, "env", cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if producer != nil {
		relay := worker.NewWorker(store.audit, producer,
			worker.WithLogger(log),
			worker.WithInterval(cfg.Kafka.OutboxPollInterval),
			worker.WithBatchSize(cfg.Kafka.OutboxBatchSize),
		)
		g.Go(func() error {
			if err := relay.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("audit relay: %w", err)
			}
			return nil
		})
	}
	return g.Wait()
}
