package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/robfig/cron/v3"

	pgRepo "provider-mesh/internal/infra/adapter/persistence/postgres"
	"provider-mesh/internal/infra/db"
	"provider-mesh/internal/infra/notifier"
	workerPkg "provider-mesh/internal/infra/worker"
	"provider-mesh/internal/observability/logging"
	"provider-mesh/internal/usecase/anomaly"
	patternUC "provider-mesh/internal/usecase/pattern"
	remediationUC "provider-mesh/internal/usecase/remediation"
	routingUC "provider-mesh/internal/usecase/routing"
	simulationUC "provider-mesh/internal/usecase/simulation"
)

const sweepInterval = time.Minute

func main() {
	logger := initLogger()
	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load worker configuration (fail-open strategy)
	workerMetrics := workerPkg.NewWorkerMetrics()
	workerMetrics.MustRegister()
	workerConfig, err := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		logger.Error("failed to load worker configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker configuration loaded",
		slog.Duration("poll_interval", workerConfig.PollInterval),
		slog.String("anomaly_schedule", workerConfig.AnomalySchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Duration("cycle_timeout", workerConfig.CycleTimeout),
		slog.Int("health_port", workerConfig.HealthPort))

	notif := notifier.FromEnv(logger)

	startMetricsServer(ctx, logger)

	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()
	logger.Info("health check server started", slog.String("addr", healthAddr))

	// Wire the control loop
	metricsRepo := pgRepo.NewProviderMetricsRepo(database)
	requestLog := pgRepo.NewRequestLogRepo(database)
	healingLog := pgRepo.NewHealingLogRepo(database)
	patternRepo := pgRepo.NewErrorPatternRepo(database)

	learner := patternUC.NewLearner(patternRepo, healingLog, nil, logger)
	router := routingUC.NewRouter(
		metricsRepo,
		pgRepo.NewQualityScoreRepo(database),
		pgRepo.NewQualityTierRepo(database),
		pgRepo.NewFallbackChainRepo(database),
		learner,
		nil,
		logger,
	)

	execRepo := pgRepo.NewRemediationExecutionRepo(database)
	engine := remediationUC.NewEngine(
		pgRepo.NewRemediationRuleRepo(database),
		execRepo,
		metricsRepo,
		requestLog,
		healingLog,
		router,
		notif,
		nil,
		logger,
	)
	engine.PollInterval = workerConfig.PollInterval

	simulator := simulationUC.NewSimulator(pgRepo.NewSimulationRepo(database), execRepo, nil, logger)
	if err := simulator.Rehydrate(ctx); err != nil {
		logger.Error("failed to rehydrate simulations", slog.Any("error", err))
		os.Exit(1)
	}
	go runSimulationSweep(ctx, logger, simulator)

	detector := anomaly.NewDetector(metricsRepo, requestLog, nil, logger)
	cronRunner, err := startAnomalyScan(ctx, logger, workerConfig, detector, notif)
	if err != nil {
		logger.Error("failed to start anomaly scan", slog.Any("error", err))
		os.Exit(1)
	}
	defer cronRunner.Stop()

	healthServer.SetReady(true)
	go runRemediationLoop(ctx, logger, workerConfig, workerMetrics, engine)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down worker...")
	cancel()
	logger.Info("worker stopped")
}

// initLogger initializes the process-wide structured JSON logger.
func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

// initDatabase opens the database connection and waits for migrations to
// complete. Migrations are owned by the API process.
func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	waitForMigrations(logger, database)
	return database
}

func waitForMigrations(logger *slog.Logger, db *sql.DB) {
	const probe = "SELECT 1 FROM provider_metrics LIMIT 1"
	for i := 0; i < 10; i++ {
		if _, err := db.Exec(probe); err == nil {
			return
		}
		logger.Info("waiting for migrations, retrying in 3s", slog.Int("attempt", i+1))
		time.Sleep(3 * time.Second)
	}
	logger.Error("migrations did not complete in time")
	os.Exit(1)
}

// runRemediationLoop drives the rule engine at the configured poll interval.
// Each cycle gets its own deadline so a stuck provider probe cannot block
// the loop forever.
func runRemediationLoop(
	ctx context.Context,
	logger *slog.Logger,
	cfg *workerPkg.WorkerConfig,
	metrics *workerPkg.WorkerMetrics,
	engine *remediationUC.Engine,
) {
	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	logger.Info("remediation loop started", slog.Duration("interval", cfg.PollInterval))
	for {
		select {
		case <-ctx.Done():
			logger.Info("remediation loop stopped")
			return
		case <-ticker.C:
			start := time.Now()
			cycleCtx, cancel := context.WithTimeout(ctx, cfg.CycleTimeout)
			err := engine.RunCycle(cycleCtx)
			cancel()

			metrics.RecordCycleDuration(time.Since(start).Seconds())
			if err != nil {
				metrics.RecordCycleRun("error")
				logger.Error("remediation cycle failed", slog.Any("error", err))
				continue
			}
			metrics.RecordCycleRun("success")
			metrics.RecordLastSuccess()
		}
	}
}

// runSimulationSweep closes out simulations whose window has expired even
// when no operator calls the stop endpoint.
func runSimulationSweep(ctx context.Context, logger *slog.Logger, simulator *simulationUC.Simulator) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := simulator.SweepExpired(ctx); err != nil {
				logger.Error("simulation sweep failed", slog.Any("error", err))
			}
		}
	}
}

// startAnomalyScan schedules the baseline anomaly scan on the configured
// cron expression and forwards findings to the alert channel.
func startAnomalyScan(
	ctx context.Context,
	logger *slog.Logger,
	cfg *workerPkg.WorkerConfig,
	detector *anomaly.Detector,
	notif notifier.Notifier,
) (*cron.Cron, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(cfg.AnomalySchedule, func() {
		anomalies, err := detector.Detect(ctx)
		if err != nil {
			logger.Error("anomaly scan failed", slog.Any("error", err))
			return
		}
		for _, a := range anomalies {
			msg := fmt.Sprintf("anomaly: provider=%s service=%s kind=%s baseline=%.2f observed=%.2f z=%.1f",
				a.Provider, a.ServiceType, a.Kind, a.Baseline, a.Observed, a.ZScore)
			logger.Warn("anomaly detected",
				slog.String("provider", a.Provider),
				slog.String("service_type", string(a.ServiceType)),
				slog.String("kind", string(a.Kind)),
				slog.Float64("z_score", a.ZScore))
			if err := notif.Notify(ctx, notifier.SeverityWarning, msg); err != nil {
				logger.Error("anomaly alert delivery failed", slog.Any("error", err))
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule anomaly scan %q: %w", cfg.AnomalySchedule, err)
	}

	c.Start()
	logger.Info("anomaly scan scheduled",
		slog.String("schedule", cfg.AnomalySchedule),
		slog.String("timezone", cfg.Timezone))
	return c, nil
}
