package worker

import (
	"bytes"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	// Verify all fields have expected default values
	if config.PollInterval != 30*time.Second {
		t.Errorf("Expected PollInterval 30s, got %v", config.PollInterval)
	}

	if config.AnomalySchedule != "0 * * * *" {
		t.Errorf("Expected AnomalySchedule '0 * * * *', got '%s'", config.AnomalySchedule)
	}

	if config.Timezone != "UTC" {
		t.Errorf("Expected Timezone 'UTC', got '%s'", config.Timezone)
	}

	if config.CycleTimeout != 2*time.Minute {
		t.Errorf("Expected CycleTimeout 2m, got %v", config.CycleTimeout)
	}

	if config.HealthPort != 9091 {
		t.Errorf("Expected HealthPort 9091, got %d", config.HealthPort)
	}
}

func TestDefaultConfig_Immutability(t *testing.T) {
	// Each call to DefaultConfig should return a new instance
	config1 := DefaultConfig()
	config2 := DefaultConfig()

	// Modify config1
	config1.AnomalySchedule = "*/30 * * * *"
	config1.PollInterval = 10 * time.Second

	// config2 should still have default values
	if config2.AnomalySchedule != "0 * * * *" {
		t.Error("DefaultConfig returned a shared instance instead of a new one")
	}

	if config2.PollInterval != 30*time.Second {
		t.Error("DefaultConfig returned a shared instance instead of a new one")
	}
}

func TestWorkerConfig_Validate_ValidConfig(t *testing.T) {
	// Default config should be valid
	config := DefaultConfig()

	err := config.Validate()
	if err != nil {
		t.Errorf("DefaultConfig should be valid, got error: %v", err)
	}
}

func TestWorkerConfig_Validate_InvalidAnomalySchedule(t *testing.T) {
	config := DefaultConfig()
	config.AnomalySchedule = "invalid cron"

	err := config.Validate()
	if err == nil {
		t.Error("Expected validation error for invalid anomaly schedule")
	}
}

func TestWorkerConfig_Validate_EmptyAnomalySchedule(t *testing.T) {
	config := DefaultConfig()
	config.AnomalySchedule = ""

	err := config.Validate()
	if err == nil {
		t.Error("Expected validation error for empty anomaly schedule")
	}
}

func TestWorkerConfig_Validate_InvalidTimezone(t *testing.T) {
	config := DefaultConfig()
	config.Timezone = "Invalid/Timezone"

	err := config.Validate()
	if err == nil {
		t.Error("Expected validation error for invalid timezone")
	}
}

func TestWorkerConfig_Validate_PollIntervalBoundary(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		valid    bool
	}{
		{"Min valid (5s)", 5 * time.Second, true},
		{"Max valid (10m)", 10 * time.Minute, true},
		{"Below min (1s)", 1 * time.Second, false},
		{"Zero", 0, false},
		{"Negative", -1 * time.Second, false},
		{"Above max (11m)", 11 * time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			config.PollInterval = tt.interval

			err := config.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid config, got error: %v", err)
			}
			if !tt.valid && err == nil {
				t.Errorf("Expected validation error for interval %v", tt.interval)
			}
		})
	}
}

func TestWorkerConfig_Validate_CycleTimeoutBoundary(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		valid   bool
	}{
		{"Min valid (10s)", 10 * time.Second, true},
		{"Max valid (30m)", 30 * time.Minute, true},
		{"Below min (1s)", 1 * time.Second, false},
		{"Zero", 0, false},
		{"Above max (1h)", 1 * time.Hour, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			config.CycleTimeout = tt.timeout

			err := config.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid config, got error: %v", err)
			}
			if !tt.valid && err == nil {
				t.Errorf("Expected validation error for timeout %v", tt.timeout)
			}
		})
	}
}

func TestWorkerConfig_Validate_HealthPortBoundary(t *testing.T) {
	tests := []struct {
		name  string
		port  int
		valid bool
	}{
		{"Min valid (1024)", 1024, true},
		{"Max valid (65535)", 65535, true},
		{"Below min (1023)", 1023, false},
		{"Above max (65536)", 65536, false},
		{"Zero", 0, false},
		{"Negative", -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			config.HealthPort = tt.port

			err := config.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid port %d, got error: %v", tt.port, err)
			}
			if !tt.valid && err == nil {
				t.Errorf("Expected validation error for port %d", tt.port)
			}
		})
	}
}

func TestWorkerConfig_Validate_MultipleErrors(t *testing.T) {
	// Create config with multiple invalid fields
	config := WorkerConfig{
		PollInterval:    0,              // Invalid (zero)
		AnomalySchedule: "invalid",      // Invalid
		Timezone:        "Invalid/Zone", // Invalid
		CycleTimeout:    0,              // Invalid (zero)
		HealthPort:      100,            // Invalid (too low)
	}

	err := config.Validate()
	if err == nil {
		t.Fatal("Expected validation errors for multiple invalid fields")
	}

	if err.Error() == "" {
		t.Error("Error message should not be empty")
	}

	t.Logf("Validation error (expected): %v", err)
}

func TestWorkerConfig_Validate_ValidCustomConfig(t *testing.T) {
	config := WorkerConfig{
		PollInterval:    10 * time.Second,
		AnomalySchedule: "*/30 * * * *",
		Timezone:        "Asia/Tokyo",
		CycleTimeout:    5 * time.Minute,
		HealthPort:      8080,
	}

	err := config.Validate()
	if err != nil {
		t.Errorf("Expected valid custom config, got error: %v", err)
	}
}

// globalTestMetrics is a shared metrics instance for tests to avoid
// duplicate Prometheus registration errors. In production, metrics are
// created once at startup, so this simulates that behavior.
var globalTestMetrics = NewWorkerMetrics()

// setEnv is a test helper that sets an environment variable and fails the test if it errors
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("Failed to set %s: %v", key, err)
	}
}

// unsetEnv is a test helper that unsets an environment variable and fails the test if it errors
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("Failed to unset %s: %v", key, err)
	}
}

func TestLoadConfigFromEnv_AllEnvVarsValid(t *testing.T) {
	setEnv(t, "REMEDIATION_POLL_INTERVAL", "15s")
	setEnv(t, "ANOMALY_CRON_SCHEDULE", "*/30 * * * *")
	setEnv(t, "WORKER_TIMEZONE", "Asia/Tokyo")
	setEnv(t, "REMEDIATION_CYCLE_TIMEOUT", "5m")
	setEnv(t, "WORKER_HEALTH_PORT", "8080")
	defer func() {
		unsetEnv(t, "REMEDIATION_POLL_INTERVAL")
		unsetEnv(t, "ANOMALY_CRON_SCHEDULE")
		unsetEnv(t, "WORKER_TIMEZONE")
		unsetEnv(t, "REMEDIATION_CYCLE_TIMEOUT")
		unsetEnv(t, "WORKER_HEALTH_PORT")
	}()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	config, err := LoadConfigFromEnv(logger, globalTestMetrics)

	// Should not return error (fail-open strategy)
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}

	// Should load all values from environment
	if config.PollInterval != 15*time.Second {
		t.Errorf("Expected PollInterval 15s, got %v", config.PollInterval)
	}
	if config.AnomalySchedule != "*/30 * * * *" {
		t.Errorf("Expected AnomalySchedule '*/30 * * * *', got '%s'", config.AnomalySchedule)
	}
	if config.Timezone != "Asia/Tokyo" {
		t.Errorf("Expected Timezone 'Asia/Tokyo', got '%s'", config.Timezone)
	}
	if config.CycleTimeout != 5*time.Minute {
		t.Errorf("Expected CycleTimeout 5m, got %v", config.CycleTimeout)
	}
	if config.HealthPort != 8080 {
		t.Errorf("Expected HealthPort 8080, got %d", config.HealthPort)
	}

	// No warnings should be logged
	if buf.Len() > 0 {
		t.Errorf("Expected no warnings, got: %s", buf.String())
	}
}

func TestLoadConfigFromEnv_MissingEnvVars(t *testing.T) {
	unsetEnv(t, "REMEDIATION_POLL_INTERVAL")
	unsetEnv(t, "ANOMALY_CRON_SCHEDULE")
	unsetEnv(t, "WORKER_TIMEZONE")
	unsetEnv(t, "REMEDIATION_CYCLE_TIMEOUT")
	unsetEnv(t, "WORKER_HEALTH_PORT")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	config, err := LoadConfigFromEnv(logger, globalTestMetrics)

	// Should not return error (fail-open strategy)
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}

	// Should use default values
	defaults := DefaultConfig()
	if config.PollInterval != defaults.PollInterval {
		t.Errorf("Expected default PollInterval, got %v", config.PollInterval)
	}
	if config.AnomalySchedule != defaults.AnomalySchedule {
		t.Errorf("Expected default AnomalySchedule, got '%s'", config.AnomalySchedule)
	}
	if config.Timezone != defaults.Timezone {
		t.Errorf("Expected default Timezone, got '%s'", config.Timezone)
	}
	if config.CycleTimeout != defaults.CycleTimeout {
		t.Errorf("Expected default CycleTimeout, got %v", config.CycleTimeout)
	}
	if config.HealthPort != defaults.HealthPort {
		t.Errorf("Expected default HealthPort, got %d", config.HealthPort)
	}

	// No warnings should be logged (missing env vars don't trigger fallback)
	if buf.Len() > 0 {
		t.Errorf("Expected no warnings, got: %s", buf.String())
	}
}

func TestLoadConfigFromEnv_InvalidAnomalySchedule(t *testing.T) {
	setEnv(t, "ANOMALY_CRON_SCHEDULE", "invalid cron")
	defer unsetEnv(t, "ANOMALY_CRON_SCHEDULE")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	config, err := LoadConfigFromEnv(logger, globalTestMetrics)

	// Should not return error (fail-open strategy)
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}

	// Should use default value
	if config.AnomalySchedule != DefaultConfig().AnomalySchedule {
		t.Errorf("Expected default AnomalySchedule, got '%s'", config.AnomalySchedule)
	}

	// Warning should be logged
	logOutput := buf.String()
	if !strings.Contains(logOutput, "Configuration fallback applied") {
		t.Error("Expected fallback warning in logs")
	}
	if !strings.Contains(logOutput, "AnomalySchedule") {
		t.Error("Expected AnomalySchedule field in warning")
	}
}

func TestLoadConfigFromEnv_InvalidPollInterval(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"Zero", "0"},
		{"Negative", "-1s"},
		{"Too short", "1s"},
		{"Too long", "1h"},
		{"Invalid format", "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, "REMEDIATION_POLL_INTERVAL", tt.value)
			defer unsetEnv(t, "REMEDIATION_POLL_INTERVAL")

			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			config, err := LoadConfigFromEnv(logger, globalTestMetrics)

			// Should not return error (fail-open strategy)
			if err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}

			// Should use default value
			if config.PollInterval != DefaultConfig().PollInterval {
				t.Errorf("Expected default PollInterval, got %v", config.PollInterval)
			}

			// Warning should be logged
			logOutput := buf.String()
			if !strings.Contains(logOutput, "Configuration fallback applied") {
				t.Error("Expected fallback warning in logs")
			}
		})
	}
}

func TestLoadConfigFromEnv_InvalidHealthPort(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"Too low", "1023"},
		{"Too high", "65536"},
		{"Zero", "0"},
		{"Negative", "-1"},
		{"Invalid format", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, "WORKER_HEALTH_PORT", tt.value)
			defer unsetEnv(t, "WORKER_HEALTH_PORT")

			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			config, err := LoadConfigFromEnv(logger, globalTestMetrics)

			// Should not return error (fail-open strategy)
			if err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}

			// Should use default value
			if config.HealthPort != DefaultConfig().HealthPort {
				t.Errorf("Expected default HealthPort, got %d", config.HealthPort)
			}

			// Warning should be logged
			logOutput := buf.String()
			if !strings.Contains(logOutput, "Configuration fallback applied") {
				t.Error("Expected fallback warning in logs")
			}
		})
	}
}

func TestLoadConfigFromEnv_PartiallyValid(t *testing.T) {
	// Set some valid and some invalid values
	setEnv(t, "REMEDIATION_POLL_INTERVAL", "10s")  // Valid
	setEnv(t, "WORKER_TIMEZONE", "Invalid/Zone")   // Invalid
	setEnv(t, "ANOMALY_CRON_SCHEDULE", "0 * * * *") // Valid
	setEnv(t, "REMEDIATION_CYCLE_TIMEOUT", "bogus") // Invalid
	setEnv(t, "WORKER_HEALTH_PORT", "8080")         // Valid
	defer func() {
		unsetEnv(t, "REMEDIATION_POLL_INTERVAL")
		unsetEnv(t, "WORKER_TIMEZONE")
		unsetEnv(t, "ANOMALY_CRON_SCHEDULE")
		unsetEnv(t, "REMEDIATION_CYCLE_TIMEOUT")
		unsetEnv(t, "WORKER_HEALTH_PORT")
	}()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	config, err := LoadConfigFromEnv(logger, globalTestMetrics)

	// Should not return error (fail-open strategy)
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}

	// Valid fields should use environment values
	if config.PollInterval != 10*time.Second {
		t.Errorf("Expected PollInterval 10s, got %v", config.PollInterval)
	}
	if config.AnomalySchedule != "0 * * * *" {
		t.Errorf("Expected AnomalySchedule '0 * * * *', got '%s'", config.AnomalySchedule)
	}
	if config.HealthPort != 8080 {
		t.Errorf("Expected HealthPort 8080, got %d", config.HealthPort)
	}

	// Invalid fields should use defaults
	if config.Timezone != DefaultConfig().Timezone {
		t.Errorf("Expected default Timezone, got '%s'", config.Timezone)
	}
	if config.CycleTimeout != DefaultConfig().CycleTimeout {
		t.Errorf("Expected default CycleTimeout, got %v", config.CycleTimeout)
	}

	// Only 2 warnings should be logged (for Timezone and CycleTimeout)
	logOutput := buf.String()
	warningCount := strings.Count(logOutput, "Configuration fallback applied")
	if warningCount != 2 {
		t.Errorf("Expected 2 warnings, got %d", warningCount)
	}
}
