package entity

import (
	"fmt"
	"time"
)

// RunwayTier is the 1..5 capacity tier of the capacity-managed video vendor.
type RunwayTier int

// ModelLimit is one model's admission limits within a tier.
type ModelLimit struct {
	MaxConcurrent int `json:"max_concurrent" yaml:"max_concurrent"`
	DailyLimit    int `json:"daily_limit" yaml:"daily_limit"` // rolling 24h
}

// TierQuotaConfig is the active tier's per-model concurrency ceilings and
// rolling daily limits, plus the tier-wide monthly spend limit.
//
// A tier upgrade/downgrade rewrites this table; it takes effect on the next
// admission check and never retroactively affects in-flight tasks.
type TierQuotaConfig struct {
	Tier              RunwayTier
	ModelLimits       map[string]ModelLimit
	MonthlySpendLimit float64
}

// LimitFor returns the admission limits for a model type.
func (c *TierQuotaConfig) LimitFor(modelType string) (ModelLimit, error) {
	l, ok := c.ModelLimits[modelType]
	if !ok {
		return ModelLimit{}, fmt.Errorf("no limits configured for model %q at tier %d", modelType, c.Tier)
	}
	return l, nil
}

// Validate checks the tier table shape.
func (c *TierQuotaConfig) Validate() error {
	if c.Tier < 1 || c.Tier > 5 {
		return &ValidationError{Field: "tier", Message: "must be between 1 and 5"}
	}
	if len(c.ModelLimits) == 0 {
		return &ValidationError{Field: "modelLimits", Message: "must not be empty"}
	}
	for model, l := range c.ModelLimits {
		if l.MaxConcurrent < 1 || l.DailyLimit < 1 {
			return &ValidationError{
				Field:   "modelLimits",
				Message: fmt.Sprintf("limits for model %q must be positive", model),
			}
		}
	}
	return nil
}

// TaskStatus is the lifecycle state of one submitted task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskThrottled TaskStatus = "throttled"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Terminal reports whether the status frees the concurrency slot.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// ConcurrentTask is an ephemeral in-flight task row, deleted on terminal
// status. Only pending/running rows count against the concurrency ceiling.
type ConcurrentTask struct {
	TaskID        string
	ModelType     string
	CampaignID    string
	ContentID     string
	Status        TaskStatus
	LastCheckedAt time.Time
	CreatedAt     time.Time
}

// APIUsageRecord is the durable usage row retained for quota accounting
// after the task row is deleted.
type APIUsageRecord struct {
	ID        int64
	ModelType string
	TaskID    string
	CreatedAt time.Time
}

// Admission rejection/throttle reasons.
const (
	ReasonDailyLimit = "daily limit"
	ReasonThrottled  = "concurrency ceiling"
)

// AdmissionDecision is the outcome of a Tier/Quota Guard check.
// Quota exhaustion is a hard stop; a concurrency ceiling is soft
// backpressure, so the caller must queue rather than reject.
type AdmissionDecision struct {
	CanSubmit       bool   `json:"can_submit"`
	WillBeThrottled bool   `json:"will_be_throttled"`
	Reason          string `json:"reason,omitempty"`
}
