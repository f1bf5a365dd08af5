package entity

import (
	"fmt"
	"math"
	"time"
)

// ServiceType identifies the capability a provider implements.
type ServiceType string

// Known service types. A provider row exists per provider×serviceType, so a
// vendor offering both image and video generation has two independent rows.
const (
	ServiceImage  ServiceType = "image"
	ServiceVideo  ServiceType = "video"
	ServiceText   ServiceType = "text"
	ServiceSpeech ServiceType = "speech"
)

// validServiceTypes is the closed set accepted by Validate.
var validServiceTypes = map[ServiceType]bool{
	ServiceImage:  true,
	ServiceVideo:  true,
	ServiceText:   true,
	ServiceSpeech: true,
}

// ValidServiceType reports whether t names a known service type.
func ValidServiceType(t ServiceType) bool {
	return validServiceTypes[t]
}

// ProviderMetrics is the durable aggregate record for one provider×serviceType.
//
// The row is mutated only by the health scorer in response to a reported
// outcome, or by the remediation engine when applying an action. It is never
// deleted; a restart action may zero the cumulative fields.
type ProviderMetrics struct {
	Provider    string
	ServiceType ServiceType

	IsFreeProvider bool
	CostPerRequest float64
	BasePriority   int

	SuccessCount  int64
	FailureCount  int64
	TotalRequests int64
	AvgLatencyMs  float64

	HealthScore float64 // 0-100
	IsHealthy   bool
	Priority    int // derived, 0..BasePriority

	RateLimitHits    int
	RateLimitResetAt *time.Time // quarantine expiry; nil when not cooling down

	TotalCost     float64
	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string

	// Version is the optimistic concurrency token. Incremented on every
	// successful row update; a stale writer gets ErrVersionConflict.
	Version int64
}

// SuccessRate returns the cumulative success rate as a percentage (0-100).
// A row with no traffic reports 100 so that new providers are routable.
func (m *ProviderMetrics) SuccessRate() float64 {
	if m.TotalRequests == 0 {
		return 100
	}
	return float64(m.SuccessCount) / float64(m.TotalRequests) * 100
}

// InCooldown reports whether the provider is inside a non-expired
// rate-limit quarantine window at the given instant.
func (m *ProviderMetrics) InCooldown(now time.Time) bool {
	return m.RateLimitResetAt != nil && now.Before(*m.RateLimitResetAt)
}

// Recompute derives HealthScore, IsHealthy and Priority from the cumulative
// counters. It must be called after every counter mutation that goes through
// the generic scoring path.
//
//	latencyPenalty   = min(avgLatency/10000, 20)
//	rateLimitPenalty = min(rateLimitHits*5, 30)
//	healthScore      = clamp(successRate - latencyPenalty - rateLimitPenalty, 0, 100)
//	isHealthy        = healthScore >= 50 && successRate >= 60
//	priority         = round(basePriority * healthScore/100)
func (m *ProviderMetrics) Recompute() {
	successRate := m.SuccessRate()
	latencyPenalty := math.Min(m.AvgLatencyMs/10000, 20)
	rateLimitPenalty := math.Min(float64(m.RateLimitHits)*5, 30)

	score := successRate - latencyPenalty - rateLimitPenalty
	m.HealthScore = math.Max(0, math.Min(100, score))
	m.IsHealthy = m.HealthScore >= 50 && successRate >= 60
	m.Priority = int(math.Round(float64(m.BasePriority) * m.HealthScore / 100))
}

// Reset zeroes the cumulative fields, restoring the row to its pristine
// state. Identity, cost configuration and base priority are preserved.
func (m *ProviderMetrics) Reset() {
	m.SuccessCount = 0
	m.FailureCount = 0
	m.TotalRequests = 0
	m.AvgLatencyMs = 0
	m.RateLimitHits = 0
	m.RateLimitResetAt = nil
	m.LastError = ""
	m.HealthScore = 100
	m.IsHealthy = true
	m.Priority = m.BasePriority
}

// Validate validates the ProviderMetrics identity and configuration fields.
func (m *ProviderMetrics) Validate() error {
	if m.Provider == "" {
		return &ValidationError{Field: "provider", Message: "is required"}
	}
	if !ValidServiceType(m.ServiceType) {
		return &ValidationError{Field: "serviceType", Message: fmt.Sprintf("unknown service type %q", m.ServiceType)}
	}
	if m.BasePriority < 0 {
		return &ValidationError{Field: "basePriority", Message: "must not be negative"}
	}
	return nil
}
