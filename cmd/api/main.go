package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	pgRepo "provider-mesh/internal/infra/adapter/persistence/postgres"
	"provider-mesh/internal/infra/db"
	"provider-mesh/internal/infra/notifier"
	"provider-mesh/internal/infra/seed"
	"provider-mesh/internal/observability/logging"
	"provider-mesh/internal/observability/tracing"
	"provider-mesh/internal/resilience/circuitbreaker"
	"provider-mesh/pkg/config"
	"provider-mesh/pkg/ratelimit"

	healthUC "provider-mesh/internal/usecase/health"
	patternUC "provider-mesh/internal/usecase/pattern"
	quotaUC "provider-mesh/internal/usecase/quota"
	remediationUC "provider-mesh/internal/usecase/remediation"
	routingUC "provider-mesh/internal/usecase/routing"
	simulationUC "provider-mesh/internal/usecase/simulation"

	hhttp "provider-mesh/internal/handler/http"
	hhealing "provider-mesh/internal/handler/http/healing"
	"provider-mesh/internal/handler/http/middleware"
	houtcome "provider-mesh/internal/handler/http/outcome"
	"provider-mesh/internal/handler/http/requestid"
	hreview "provider-mesh/internal/handler/http/review"
	hrouting "provider-mesh/internal/handler/http/routing"
	hsimulation "provider-mesh/internal/handler/http/simulation"
	htask "provider-mesh/internal/handler/http/task"
)

func main() {
	logger := initLogger()
	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	seedDefaults(logger, database)

	version := getVersion()
	serverComponents := setupServer(logger, database, version)

	runServer(logger, serverComponents, version)
}

// initLogger initializes the process-wide structured JSON logger.
func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

// initDatabase opens the database connection and runs migrations.
func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	if err := db.MigrateUp(database); err != nil {
		logger.Error("failed to migrate database", slog.Any("error", err))
		os.Exit(1)
	}
	return database
}

// seedDefaults applies the embedded initial state against an empty store.
// A populated store is left untouched.
func seedDefaults(logger *slog.Logger, database *sql.DB) {
	manifest, err := seed.LoadDefaults()
	if err != nil {
		logger.Error("failed to parse seed manifest", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ran, err := seed.Apply(ctx, manifest, seed.Stores{
		Metrics: pgRepo.NewProviderMetricsRepo(database),
		Chains:  pgRepo.NewFallbackChainRepo(database),
		Rules:   pgRepo.NewRemediationRuleRepo(database),
		Tiers:   pgRepo.NewQualityTierRepo(database),
		Quota:   pgRepo.NewTierQuotaRepo(database),
	}, logger)
	if err != nil {
		logger.Error("failed to seed initial state", slog.Any("error", err))
		os.Exit(1)
	}
	if !ran {
		logger.Info("store already seeded, skipping")
	}
}

// getVersion returns the application version from environment or default.
func getVersion() string {
	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}
	return version
}

// ServerComponents holds components needed for server operation and cleanup.
type ServerComponents struct {
	Handler        http.Handler
	IPStore        *ratelimit.InMemoryRateLimitStore
	IPWindow       time.Duration
	OutcomeLimiter *middleware.RateLimiter
	OrderLimiter   *middleware.RateLimiter
}

// setupServer configures and returns the HTTP handler with all routes and middleware.
func setupServer(logger *slog.Logger, database *sql.DB, version string) *ServerComponents {
	metricsRepo := pgRepo.NewProviderMetricsRepo(database)
	requestLog := pgRepo.NewRequestLogRepo(database)
	healingLog := pgRepo.NewHealingLogRepo(database)
	patternRepo := pgRepo.NewErrorPatternRepo(database)
	qualityRepo := pgRepo.NewQualityScoreRepo(database)
	tierRepo := pgRepo.NewQualityTierRepo(database)
	chainRepo := pgRepo.NewFallbackChainRepo(database)
	ruleRepo := pgRepo.NewRemediationRuleRepo(database)
	execRepo := pgRepo.NewRemediationExecutionRepo(database)
	quotaRepo := pgRepo.NewTierQuotaRepo(database)
	simRepo := pgRepo.NewSimulationRepo(database)

	learner := patternUC.NewLearner(patternRepo, healingLog, nil, logger)
	scorer := healthUC.NewScorer(metricsRepo, requestLog, healingLog, learner, nil, logger)
	router := routingUC.NewRouter(metricsRepo, qualityRepo, tierRepo, chainRepo, learner, nil, logger)
	guard := quotaUC.NewGuard(quotaRepo, nil, logger)
	simulator := simulationUC.NewSimulator(simRepo, execRepo, nil, logger)

	// The API process only decides on pending executions; the poll loop
	// lives in the worker. Approvals replay the action, so the engine here
	// still needs the full action dependencies.
	engine := remediationUC.NewEngine(ruleRepo, execRepo, metricsRepo, requestLog, healingLog, router, notifier.FromEnv(logger), nil, logger)

	// Load rate limiting configuration
	rateLimitConfig, err := config.LoadRateLimitConfig()
	if err != nil {
		logger.Error("failed to load rate limit configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Load trusted proxy configuration for IP extraction
	proxyConfig, err := middleware.LoadTrustedProxyConfig()
	if err != nil {
		logger.Error("failed to load trusted proxy configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Create appropriate IPExtractor based on configuration
	var ipExtractor middleware.IPExtractor
	if proxyConfig.Enabled {
		ipExtractor = middleware.NewTrustedProxyExtractor(*proxyConfig)
		logger.Info("rate limiting: trusted proxy mode enabled",
			slog.Int("trusted_proxies_count", len(proxyConfig.AllowedCIDRs)))
	} else {
		ipExtractor = &middleware.RemoteAddrExtractor{}
		logger.Info("rate limiting: using RemoteAddr (secure mode, proxy headers ignored)")
	}

	// Initialize global IP rate limiting (if enabled)
	var ipRateLimiter *middleware.IPRateLimiter
	var ipStore *ratelimit.InMemoryRateLimitStore

	if rateLimitConfig.Enabled {
		ipStore = ratelimit.NewInMemoryRateLimitStore(ratelimit.InMemoryStoreConfig{
			MaxKeys: rateLimitConfig.MaxActiveKeys,
		})

		algorithm := ratelimit.NewSlidingWindowAlgorithm(&ratelimit.SystemClock{})
		rlMetrics := ratelimit.NewPrometheusMetrics()

		ipCircuitBreaker := ratelimit.NewCircuitBreaker(ratelimit.CircuitBreakerConfig{
			FailureThreshold: rateLimitConfig.CircuitBreakerFailureThreshold,
			RecoveryTimeout:  rateLimitConfig.CircuitBreakerResetTimeout,
		})

		ipRateLimiter = middleware.NewIPRateLimiter(
			middleware.IPRateLimiterConfig{
				Limit:   rateLimitConfig.DefaultIPLimit,
				Window:  rateLimitConfig.DefaultIPWindow,
				Enabled: true,
			},
			ipExtractor,
			ipStore,
			algorithm,
			rlMetrics,
			ipCircuitBreaker,
		)

		logger.Info("rate limiting initialized",
			slog.Bool("enabled", true),
			slog.Int("ip_limit", rateLimitConfig.DefaultIPLimit),
			slog.Duration("ip_window", rateLimitConfig.DefaultIPWindow),
			slog.Int("max_keys", rateLimitConfig.MaxActiveKeys))
	} else {
		logger.Warn("rate limiting is DISABLED - not recommended for production")
	}

	// Hot-path endpoint limiters, stricter than the global IP limit.
	// レート制限: 結果報告は1分間に600リクエストまで（アダプタ経由の全試行が通る）
	outcomeLimiter := middleware.NewRateLimiter(600, 1*time.Minute, ipExtractor)
	// レート制限: 順位取得は1分間に300リクエストまで
	orderLimiter := middleware.NewRateLimiter(300, 1*time.Minute, ipExtractor)

	mux := http.NewServeMux()

	// ヘルスチェックエンドポイント
	mux.Handle("/health", &hhttp.HealthHandler{DB: database, Version: version})
	mux.Handle("/ready", &hhttp.ReadyHandler{DB: database, Breaker: circuitbreaker.NewDBCircuitBreaker(database)})
	mux.Handle("/live", &hhttp.LiveHandler{})
	mux.Handle("/metrics", hhttp.MetricsHandler())

	houtcome.Register(mux, scorer, outcomeLimiter)
	hreview.Register(mux, router)
	hrouting.Register(mux, router, orderLimiter)
	htask.Register(mux, guard)
	hhealing.Register(mux, engine)
	hsimulation.Register(mux, simulator)

	handler := applyMiddleware(logger, mux, ipRateLimiter)

	return &ServerComponents{
		Handler:        handler,
		IPStore:        ipStore,
		IPWindow:       rateLimitConfig.DefaultIPWindow,
		OutcomeLimiter: outcomeLimiter,
		OrderLimiter:   orderLimiter,
	}
}

// applyMiddleware wraps the handler with the middleware chain.
// Order: Request ID → Input Validation → IP Rate Limit → Timeout → Recovery → Tracing → Logging → Body Limit → Metrics
func applyMiddleware(logger *slog.Logger, handler http.Handler, ipRateLimiter *middleware.IPRateLimiter) http.Handler {
	middlewareChain := handler

	// Apply in reverse order (innermost to outermost)
	middlewareChain = hhttp.MetricsMiddleware(middlewareChain)
	middlewareChain = hhttp.LimitRequestBody(1 << 20)(middlewareChain) // 1MB limit
	middlewareChain = hhttp.Logging(logger)(middlewareChain)
	middlewareChain = tracing.Middleware(middlewareChain)
	// Recover sits inside Timeout so a panic in the handler goroutine is
	// caught before the timeout watcher sees the channel close.
	middlewareChain = hhttp.Recover(logger)(middlewareChain)
	middlewareChain = hhttp.Timeout(30 * time.Second)(middlewareChain)

	if ipRateLimiter != nil {
		middlewareChain = ipRateLimiter.Middleware()(middlewareChain)
	}

	middlewareChain = hhttp.InputValidation()(middlewareChain)
	middlewareChain = requestid.Middleware(middlewareChain)

	return middlewareChain
}

// runServer starts the HTTP server and handles graceful shutdown.
func runServer(logger *slog.Logger, components *ServerComponents, version string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Background cleanup for rate limit state
	cleanupCfg := hhttp.LoadCleanupConfigFromEnv()

	if components.IPStore != nil {
		go hhttp.StartRateLimitCleanup(ctx, components.IPStore, cleanupCfg.Interval, components.IPWindow, "ip")
		logger.Info("IP rate limit cleanup started",
			slog.Duration("interval", cleanupCfg.Interval),
			slog.Duration("window", components.IPWindow))
	}
	if components.OutcomeLimiter != nil {
		go hhttp.StartRateLimitCleanupLegacy(ctx, components.OutcomeLimiter, cleanupCfg.Interval, "outcome")
	}
	if components.OrderLimiter != nil {
		go hhttp.StartRateLimitCleanupLegacy(ctx, components.OrderLimiter, cleanupCfg.Interval, "order")
	}

	srv := &http.Server{
		Addr:              ":8080",
		Handler:           components.Handler,
		ReadHeaderTimeout: 10 * time.Second, // Prevent Slowloris attacks
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.Info("server starting",
			slog.String("addr", ":8080"),
			slog.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	// Cancel background goroutines (rate limit cleanup)
	cancel()
	logger.Debug("background cleanup goroutines cancelled")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}
	logger.Info("server stopped")
}
