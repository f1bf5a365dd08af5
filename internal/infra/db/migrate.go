package db

import (
	"database/sql"
)

func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS provider_metrics (
    provider            TEXT NOT NULL,
    service_type        VARCHAR(20) NOT NULL,
    is_free_provider    BOOLEAN NOT NULL DEFAULT FALSE,
    cost_per_request    DOUBLE PRECISION NOT NULL DEFAULT 0,
    base_priority       INT NOT NULL DEFAULT 0,
    success_count       BIGINT NOT NULL DEFAULT 0,
    failure_count       BIGINT NOT NULL DEFAULT 0,
    total_requests      BIGINT NOT NULL DEFAULT 0,
    avg_latency_ms      DOUBLE PRECISION NOT NULL DEFAULT 0,
    health_score        DOUBLE PRECISION NOT NULL DEFAULT 100,
    is_healthy          BOOLEAN NOT NULL DEFAULT TRUE,
    priority            INT NOT NULL DEFAULT 0,
    rate_limit_hits     INT NOT NULL DEFAULT 0,
    rate_limit_reset_at TIMESTAMPTZ,
    total_cost          DOUBLE PRECISION NOT NULL DEFAULT 0,
    last_success_at     TIMESTAMPTZ,
    last_failure_at     TIMESTAMPTZ,
    last_error          TEXT NOT NULL DEFAULT '',
    version             BIGINT NOT NULL DEFAULT 0,
    PRIMARY KEY (provider, service_type)
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS provider_requests (
    id            BIGSERIAL PRIMARY KEY,
    provider      TEXT NOT NULL,
    service_type  VARCHAR(20) NOT NULL,
    request_id    TEXT NOT NULL,
    status        VARCHAR(10) NOT NULL,
    latency_ms    BIGINT NOT NULL DEFAULT 0,
    error_code    TEXT NOT NULL DEFAULT '',
    error_message TEXT NOT NULL DEFAULT '',
    cost_incurred DOUBLE PRECISION NOT NULL DEFAULT 0,
    campaign_id   TEXT NOT NULL DEFAULT '',
    content_id    TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (provider, request_id)
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS provider_error_patterns (
    id               BIGSERIAL PRIMARY KEY,
    provider         TEXT NOT NULL,
    service_type     VARCHAR(20) NOT NULL,
    pattern_type     VARCHAR(30) NOT NULL,
    pattern_key      TEXT NOT NULL,
    occurrence_count INT NOT NULL DEFAULT 1,
    confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0.5,
    suggested_fix    TEXT NOT NULL DEFAULT '',
    is_active        BOOLEAN NOT NULL DEFAULT TRUE,
    first_seen_at    TIMESTAMPTZ NOT NULL,
    last_seen_at     TIMESTAMPTZ NOT NULL,
    UNIQUE (provider, pattern_key)
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS provider_fallback_chains (
    id           BIGSERIAL PRIMARY KEY,
    service_type VARCHAR(20) NOT NULL,
    chain_name   TEXT NOT NULL,
    providers    JSONB NOT NULL,
    condition    JSONB,
    is_default   BOOLEAN NOT NULL DEFAULT FALSE,
    UNIQUE (service_type, chain_name)
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS provider_quality_scores (
    provider          TEXT NOT NULL,
    service_type      VARCHAR(20) NOT NULL,
    total_reviews     INT NOT NULL DEFAULT 0,
    total_accepted    INT NOT NULL DEFAULT 0,
    total_rejected    INT NOT NULL DEFAULT 0,
    acceptance_rate   DOUBLE PRECISION NOT NULL DEFAULT 0,
    avg_user_rating   DOUBLE PRECISION NOT NULL DEFAULT 0,
    avg_quality_score DOUBLE PRECISION NOT NULL DEFAULT 50,
    quality_weight    DOUBLE PRECISION NOT NULL DEFAULT 0,
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (provider, service_type)
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS quality_tier_configs (
    tier_name               VARCHAR(20) PRIMARY KEY,
    quality_weight_override DOUBLE PRECISION,
    preferred_providers     JSONB,
    excluded_providers      JSONB,
    prioritize_free         BOOLEAN NOT NULL DEFAULT FALSE,
    min_acceptance_rate     DOUBLE PRECISION NOT NULL DEFAULT 0
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS remediation_rules (
    id                      TEXT PRIMARY KEY,
    name                    TEXT NOT NULL,
    trigger_type            VARCHAR(30) NOT NULL,
    trigger_conditions      JSONB NOT NULL DEFAULT '{}',
    action_type             VARCHAR(30) NOT NULL,
    action_params           JSONB NOT NULL DEFAULT '{}',
    mode                    VARCHAR(10) NOT NULL,
    priority                INT NOT NULL DEFAULT 0,
    cooldown_seconds        BIGINT NOT NULL DEFAULT 0,
    max_executions_per_hour INT NOT NULL DEFAULT 0,
    provider                TEXT NOT NULL DEFAULT '',
    service_type            VARCHAR(20) NOT NULL DEFAULT '',
    is_active               BOOLEAN NOT NULL DEFAULT TRUE
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS remediation_executions (
    id                       TEXT PRIMARY KEY,
    rule_id                  TEXT NOT NULL,
    provider                 TEXT NOT NULL,
    service_type             VARCHAR(20) NOT NULL,
    failure_detected_at      TIMESTAMPTZ NOT NULL,
    remediation_started_at   TIMESTAMPTZ NOT NULL,
    remediation_completed_at TIMESTAMPTZ,
    recovery_confirmed_at    TIMESTAMPTZ,
    trigger_details          TEXT NOT NULL DEFAULT '',
    action_taken             TEXT NOT NULL DEFAULT '',
    status                   VARCHAR(15) NOT NULL,
    was_successful           BOOLEAN NOT NULL DEFAULT FALSE,
    mttd_seconds             DOUBLE PRECISION NOT NULL DEFAULT 0,
    mttr_seconds             DOUBLE PRECISION,
    affected_requests        INT NOT NULL DEFAULT 0,
    recovered_requests       INT NOT NULL DEFAULT 0,
    error_message            TEXT NOT NULL DEFAULT ''
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS healing_actions_log (
    id           BIGSERIAL PRIMARY KEY,
    provider     TEXT NOT NULL,
    service_type VARCHAR(20) NOT NULL,
    action       VARCHAR(40) NOT NULL,
    detail       TEXT NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS failure_simulations (
    id                       TEXT PRIMARY KEY,
    target_provider          TEXT NOT NULL DEFAULT '',
    target_service_type      VARCHAR(20) NOT NULL DEFAULT '',
    failure_type             TEXT NOT NULL,
    error_rate               DOUBLE PRECISION NOT NULL,
    status                   VARCHAR(15) NOT NULL,
    started_at               TIMESTAMPTZ NOT NULL,
    ends_at                  TIMESTAMPTZ NOT NULL,
    duration_seconds         BIGINT NOT NULL,
    detection_time_seconds   DOUBLE PRECISION,
    remediation_time_seconds DOUBLE PRECISION,
    passed_detection         BOOLEAN NOT NULL DEFAULT FALSE,
    passed_remediation       BOOLEAN NOT NULL DEFAULT FALSE,
    overall_score            INT NOT NULL DEFAULT 0
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS runway_tier_config (
    id                  INT PRIMARY KEY CHECK (id = 1),
    tier                INT NOT NULL,
    model_limits        JSONB NOT NULL,
    monthly_spend_limit DOUBLE PRECISION NOT NULL DEFAULT 0
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS runway_concurrent_tasks (
    task_id         TEXT PRIMARY KEY,
    model_type      TEXT NOT NULL,
    campaign_id     TEXT NOT NULL DEFAULT '',
    content_id      TEXT NOT NULL DEFAULT '',
    status          VARCHAR(15) NOT NULL,
    last_checked_at TIMESTAMPTZ NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS runway_api_usage (
    id         BIGSERIAL PRIMARY KEY,
    model_type TEXT NOT NULL,
    task_id    TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	// Trigger evaluation and MTTD accounting scan the request log by
	// provider pair and time range on every poll cycle.
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_provider_requests_pair_created ON provider_requests(provider, service_type, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_provider_requests_failed ON provider_requests(provider, service_type, created_at DESC) WHERE status = 'failed'`,
		`CREATE INDEX IF NOT EXISTS idx_error_patterns_provider_active ON provider_error_patterns(provider) WHERE is_active = TRUE`,
		`CREATE INDEX IF NOT EXISTS idx_executions_rule_started ON remediation_executions(rule_id, remediation_started_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_status ON remediation_executions(status)`,
		`CREATE INDEX IF NOT EXISTS idx_healing_log_created ON healing_actions_log(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_simulations_status ON failure_simulations(status)`,
		`CREATE INDEX IF NOT EXISTS idx_runway_tasks_model ON runway_concurrent_tasks(model_type)`,
		`CREATE INDEX IF NOT EXISTS idx_runway_usage_model_created ON runway_api_usage(model_type, created_at DESC)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	return nil
}

// MigrateDown rolls back the database schema.
// Use with caution: this will delete all data in the affected tables.
func MigrateDown(db *sql.DB) error {
	dropStatements := []string{
		`DROP TABLE IF EXISTS runway_api_usage`,
		`DROP TABLE IF EXISTS runway_concurrent_tasks`,
		`DROP TABLE IF EXISTS runway_tier_config`,
		`DROP TABLE IF EXISTS failure_simulations`,
		`DROP TABLE IF EXISTS healing_actions_log`,
		`DROP TABLE IF EXISTS remediation_executions`,
		`DROP TABLE IF EXISTS remediation_rules`,
		`DROP TABLE IF EXISTS quality_tier_configs`,
		`DROP TABLE IF EXISTS provider_quality_scores`,
		`DROP TABLE IF EXISTS provider_fallback_chains`,
		`DROP TABLE IF EXISTS provider_error_patterns`,
		`DROP TABLE IF EXISTS provider_requests`,
		`DROP TABLE IF EXISTS provider_metrics`,
	}

	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
