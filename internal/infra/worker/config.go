package worker

import (
	"fmt"
	"log/slog"
	"time"

	"provider-mesh/internal/pkg/config"
)

// WorkerConfig holds the configuration for the remediation worker.
// This configuration controls the remediation poll interval, the anomaly
// detection schedule, timezone, and other operational parameters for the
// worker service.
//
// Configuration sources:
//   - Environment variables (loaded via LoadConfigFromEnv)
//   - Default values (provided by DefaultConfig)
//
// All fields have sensible defaults and validation rules so the worker can
// operate safely even with invalid or missing configuration.
type WorkerConfig struct {
	// PollInterval is how often the remediation engine evaluates its rules
	// against current provider metrics.
	// Range: 5 seconds to 10 minutes
	// Default: 30 seconds
	PollInterval time.Duration

	// AnomalySchedule is the cron expression for the hourly anomaly scan.
	// Format: "minute hour day month weekday"
	// Example: "0 * * * *" (at the top of every hour)
	// Validation: Must be a valid cron expression (5 fields)
	// Default: "0 * * * *"
	AnomalySchedule string

	// Timezone is the IANA timezone name for cron scheduling.
	// Example: "UTC", "Asia/Tokyo", "America/New_York"
	// Validation: Must be a valid IANA timezone name
	// Default: "UTC"
	Timezone string

	// CycleTimeout is the maximum duration for a single remediation cycle.
	// After this timeout the cycle's context is cancelled and any pending
	// actions are retried on the next poll.
	// Range: 10 seconds to 30 minutes
	// Default: 2 minutes
	CycleTimeout time.Duration

	// HealthPort is the port number for the health check HTTP server.
	// Range: 1024-65535 (avoid privileged ports)
	// Default: 9091
	HealthPort int
}

// DefaultConfig returns a WorkerConfig with production-ready defaults.
// The 30-second poll keeps mean time to detect well under the one-minute
// target while the 2-minute cycle timeout prevents a stuck provider probe
// from blocking the loop.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		PollInterval:    30 * time.Second,
		AnomalySchedule: "0 * * * *", // hourly anomaly scan
		Timezone:        "UTC",
		CycleTimeout:    2 * time.Minute,
		HealthPort:      9091,
	}
}

// Validate checks if the configuration values are valid.
// If multiple fields are invalid, all errors are collected and returned
// together.
//
// Validation rules:
//   - PollInterval: 5s to 10m
//   - AnomalySchedule: Must be a valid cron expression (validated by robfig/cron parser)
//   - Timezone: Must be a valid IANA timezone name (validated by time.LoadLocation)
//   - CycleTimeout: 10s to 30m
//   - HealthPort: Must be between 1024 and 65535
func (c *WorkerConfig) Validate() error {
	var errors []error

	if err := config.ValidateDuration(c.PollInterval, 5*time.Second, 10*time.Minute); err != nil {
		errors = append(errors, fmt.Errorf("poll interval: %w", err))
	}

	if err := config.ValidateCronSchedule(c.AnomalySchedule); err != nil {
		errors = append(errors, fmt.Errorf("anomaly schedule: %w", err))
	}

	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errors = append(errors, fmt.Errorf("timezone: %w", err))
	}

	if err := config.ValidateDuration(c.CycleTimeout, 10*time.Second, 30*time.Minute); err != nil {
		errors = append(errors, fmt.Errorf("cycle timeout: %w", err))
	}

	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errors = append(errors, fmt.Errorf("health port: %w", err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation failed: %v", errors)
	}

	return nil
}

// LoadConfigFromEnv loads worker configuration from environment variables
// with validation and automatic fallback to default values on failure.
//
// This function implements the fail-open strategy:
//  1. Start with DefaultConfig() as base
//  2. Load each field from environment variables
//  3. Validate each loaded value
//  4. If validation fails: use default value, log warning, increment metrics
//  5. Never return error - always return a valid configuration
//
// Environment variables:
//   - REMEDIATION_POLL_INTERVAL: Duration string, e.g., "30s" (default: 30 seconds)
//   - ANOMALY_CRON_SCHEDULE: Cron expression (default: "0 * * * *")
//   - WORKER_TIMEZONE: IANA timezone name (default: "UTC")
//   - REMEDIATION_CYCLE_TIMEOUT: Duration string, e.g., "2m" (default: 2 minutes)
//   - WORKER_HEALTH_PORT: Integer 1024-65535 (default: 9091)
//
// Metrics updated:
//   - ValidationErrorsTotal: Incremented for each validation failure
//   - FallbacksTotal: Incremented for each fallback applied
//   - FallbackActive: Set to 1 if any fallback is active, 0 otherwise
//   - LoadTimestamp: Set to current time after successful load
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*WorkerConfig, error) {
	cfg := DefaultConfig()
	fallbackApplied := false

	result := config.LoadEnvDuration("REMEDIATION_POLL_INTERVAL", cfg.PollInterval, func(d time.Duration) error {
		return config.ValidateDuration(d, 5*time.Second, 10*time.Minute)
	})
	cfg.PollInterval = result.Value.(time.Duration)
	if result.FallbackApplied {
		fallbackApplied = true
		metrics.RecordValidationError("poll_interval")
		metrics.RecordFallback("poll_interval", "default")
		for _, warning := range result.Warnings {
			logger.Warn("Configuration fallback applied",
				slog.String("field", "PollInterval"),
				slog.String("warning", warning))
		}
	}

	result = config.LoadEnvWithFallback("ANOMALY_CRON_SCHEDULE", cfg.AnomalySchedule, config.ValidateCronSchedule)
	cfg.AnomalySchedule = result.Value.(string)
	if result.FallbackApplied {
		fallbackApplied = true
		metrics.RecordValidationError("anomaly_schedule")
		metrics.RecordFallback("anomaly_schedule", "default")
		for _, warning := range result.Warnings {
			logger.Warn("Configuration fallback applied",
				slog.String("field", "AnomalySchedule"),
				slog.String("warning", warning))
		}
	}

	result = config.LoadEnvWithFallback("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone)
	cfg.Timezone = result.Value.(string)
	if result.FallbackApplied {
		fallbackApplied = true
		metrics.RecordValidationError("timezone")
		metrics.RecordFallback("timezone", "default")
		for _, warning := range result.Warnings {
			logger.Warn("Configuration fallback applied",
				slog.String("field", "Timezone"),
				slog.String("warning", warning))
		}
	}

	result = config.LoadEnvDuration("REMEDIATION_CYCLE_TIMEOUT", cfg.CycleTimeout, func(d time.Duration) error {
		return config.ValidateDuration(d, 10*time.Second, 30*time.Minute)
	})
	cfg.CycleTimeout = result.Value.(time.Duration)
	if result.FallbackApplied {
		fallbackApplied = true
		metrics.RecordValidationError("cycle_timeout")
		metrics.RecordFallback("cycle_timeout", "default")
		for _, warning := range result.Warnings {
			logger.Warn("Configuration fallback applied",
				slog.String("field", "CycleTimeout"),
				slog.String("warning", warning))
		}
	}

	result = config.LoadEnvInt("WORKER_HEALTH_PORT", cfg.HealthPort, func(v int) error {
		return config.ValidateIntRange(v, 1024, 65535)
	})
	cfg.HealthPort = result.Value.(int)
	if result.FallbackApplied {
		fallbackApplied = true
		metrics.RecordValidationError("health_port")
		metrics.RecordFallback("health_port", "default")
		for _, warning := range result.Warnings {
			logger.Warn("Configuration fallback applied",
				slog.String("field", "HealthPort"),
				slog.String("warning", warning))
		}
	}

	metrics.SetFallbackActive("", fallbackApplied)
	metrics.RecordLoadTimestamp()

	// Always return valid config (fail-open strategy)
	return &cfg, nil
}
