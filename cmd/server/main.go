// Command server runs the analytics backend: the sync scheduler that keeps
// the local store current with the upstream marketing platform, and the
// dashboard-facing HTTP API that reads it.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/analytics-sync/backend/infrastructure/cache"
	"github.com/analytics-sync/backend/infrastructure/config"
	"github.com/analytics-sync/backend/infrastructure/db"
	"github.com/analytics-sync/backend/infrastructure/db/migrations"
	"github.com/analytics-sync/backend/infrastructure/logging"
	"github.com/analytics-sync/backend/infrastructure/metrics"
	"github.com/analytics-sync/backend/infrastructure/middleware"
	"github.com/analytics-sync/backend/infrastructure/resilience"
	"github.com/analytics-sync/backend/internal/analytics"
	"github.com/analytics-sync/backend/internal/httpapi"
	"github.com/analytics-sync/backend/internal/repository"
	"github.com/analytics-sync/backend/internal/sync"
	"github.com/analytics-sync/backend/internal/sync/lease"
	"github.com/analytics-sync/backend/internal/upstream"
)

const serviceName = "analytics-api"

func main() {
	logger := logging.NewFromEnv(serviceName)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Error("load config")
		os.Exit(1)
	}

	if err := migrations.Run(cfg.DatabaseURL); err != nil {
		logger.WithError(err).Error("run migrations")
		os.Exit(1)
	}

	dbCfg := db.DefaultConfig(cfg.DatabaseURL)
	dbCfg.MaxOpenConns = cfg.DatabaseMaxOpenConns
	dbCfg.MaxIdleConns = cfg.DatabaseMaxIdleConns

	pool, err := db.Open(dbCfg, logger)
	if err != nil {
		logger.WithError(err).Error("open database pool")
		os.Exit(1)
	}
	defer pool.Close()

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.Init(serviceName)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelStart()
	if err := pool.Ping(startCtx); err != nil {
		logger.WithError(err).Error("ping database")
		os.Exit(1)
	}

	go pool.StartPoolMetrics(context.Background())

	base := repository.NewBase(pool, logger)
	metricRepo := repository.NewMetricRepository(base)
	profileRepo := repository.NewProfileRepository(base)
	eventRepo := repository.NewEventRepository(base)
	campaignRepo := repository.NewCampaignRepository(base)
	flowRepo := repository.NewFlowRepository(base)
	formRepo := repository.NewFormRepository(base)
	segmentRepo := repository.NewSegmentRepository(base)
	aggregatedRepo := repository.NewAggregatedMetricRepository(base)
	syncStatusRepo := repository.NewSyncStatusRepository(base)

	upstreamClient := upstream.New(upstream.Config{
		BaseURL:            cfg.UpstreamBaseURL,
		Credential:         cfg.UpstreamCredential,
		AuthScheme:         cfg.UpstreamAuthScheme,
		APIRevision:        cfg.UpstreamAPIRevision,
		MinRequestInterval: time.Duration(cfg.UpstreamMinIntervalMillis) * time.Millisecond,
		MaxConcurrent:      cfg.UpstreamMaxConcurrent,
		RetryConfig:        resilience.DefaultRetryConfig(),
		BreakerConfig:      resilience.StrictUpstreamCBConfig(logger),
	}, logger)

	leaseMgr := newLeaseManager(cfg, logger)

	orchestrator := sync.NewOrchestrator(leaseMgr, syncStatusRepo, sync.DefaultConfig(), logger)
	orchestrator.Register(sync.NewGenericEntitySyncer("metrics", "/metrics", upstreamClient, metricRepo, sync.TransformMetric, logger))
	orchestrator.Register(sync.NewGenericEntitySyncer("profiles", "/profiles", upstreamClient, profileRepo, sync.TransformProfile, logger))
	orchestrator.Register(sync.NewGenericEntitySyncer("events", "/events", upstreamClient, eventRepo, sync.TransformEvent, logger))
	orchestrator.Register(sync.NewGenericEntitySyncer("campaigns", "/campaigns", upstreamClient, campaignRepo, sync.TransformCampaign, logger))
	orchestrator.Register(sync.NewGenericEntitySyncer("flows", "/flows", upstreamClient, flowRepo, sync.TransformFlow, logger))
	orchestrator.Register(sync.NewGenericEntitySyncer("forms", "/forms", upstreamClient, formRepo, sync.TransformForm, logger))
	orchestrator.Register(sync.NewGenericEntitySyncer("segments", "/segments", upstreamClient, segmentRepo, sync.TransformSegment, logger))

	scheduler := sync.NewScheduler(orchestrator, logger)
	schedulerCtx, cancelScheduler := context.WithCancel(context.Background())
	defer cancelScheduler()
	if err := scheduler.Start(schedulerCtx); err != nil {
		logger.WithError(err).Error("start sync scheduler")
		os.Exit(1)
	}
	ready := true

	cacheCfg := cache.DefaultConfig()
	cacheCfg.DefaultTTL = cfg.CacheDefaultTTL
	respCache := cache.NewTTLCache(cacheCfg)

	healthChecker := middleware.NewHealthChecker(serviceName)
	healthChecker.RegisterCheck("database", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return pool.Ping(ctx)
	})

	srv := &httpapi.Server{
		Cache:          respCache,
		Logger:         logger,
		Metrics:        m,
		DB:             pool.DB,
		Health:         healthChecker,
		Ready:          &ready,
		ServiceName:    serviceName,
		CampaignRepo:   campaignRepo,
		FlowRepo:       flowRepo,
		FormRepo:       formRepo,
		SegmentRepo:    segmentRepo,
		SyncStatusRepo: syncStatusRepo,
		Scheduler:      scheduler,
		Analytics:      analytics.NewEngine(aggregatedRepo, eventRepo),
		StartedAt:      time.Now(),
	}

	var handler http.Handler = srv.Routes()
	handler = middleware.NewCORSMiddleware(&middleware.CORSConfig{AllowedOrigins: corsAllowedOrigins()}).Handler(handler)

	rateLimiter, stopRateLimiter := newRateLimiter(logger)
	if rateLimiter != nil {
		handler = rateLimiter.Handler(handler)
	}

	handler = middleware.NewTimeoutMiddleware(cfg.Timeouts.Service).Handler(handler)
	handler = middleware.NewRecoveryMiddleware(logger).Handler(handler)
	if m != nil {
		handler = middleware.MetricsMiddleware(serviceName, m)(handler)
	}
	handler = middleware.LoggingMiddleware(logger)(handler)

	mux := http.NewServeMux()
	mux.Handle("/", handler)
	if m != nil {
		mux.Handle("/metrics", promhttp.Handler())
	}

	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           mux,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.WithField("addr", httpServer.Addr).Info("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("http server failed")
			os.Exit(2)
		}
	}()

	shutdown := middleware.NewGracefulShutdown(httpServer, 30*time.Second)
	shutdown.OnShutdown(func() {
		scheduler.Stop()
		cancelScheduler()
		if stopRateLimiter != nil {
			stopRateLimiter()
		}
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-sigCh

	logger.Info("shutting down")
	shutdown.Shutdown()
}

func newLeaseManager(cfg *config.Config, logger *logging.Logger) lease.Manager {
	if cfg.RedisAddr == "" {
		return lease.NewLocal()
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	logger.WithField("addr", cfg.RedisAddr).Info("using redis-backed sync leases")
	return lease.NewRedis(client)
}

// newRateLimiter mirrors the gateway's env-driven rate limit toggle:
// RATE_LIMIT_ENABLED/RATE_LIMIT_REQUESTS/RATE_LIMIT_WINDOW/RATE_LIMIT_BURST.
func newRateLimiter(logger *logging.Logger) (*middleware.RateLimiter, func()) {
	if !config.GetEnvBool("RATE_LIMIT_ENABLED", true) {
		return nil, nil
	}
	requests := config.GetEnvInt("RATE_LIMIT_REQUESTS", 100)
	window := config.GetEnvDuration("RATE_LIMIT_WINDOW", time.Minute)
	burst := config.GetEnvInt("RATE_LIMIT_BURST", requests)

	rl := middleware.NewRateLimiterWithWindow(requests, window, burst, logger)
	stop := rl.StartCleanup(5 * time.Minute)
	return rl, stop
}

func corsAllowedOrigins() []string {
	raw := config.GetEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	return config.SplitAndTrimCSV(raw)
}
