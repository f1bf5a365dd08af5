package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// TriggerType names a rule's detection strategy.
type TriggerType string

const (
	TriggerErrorRateThreshold  TriggerType = "error_rate_threshold"
	TriggerConsecutiveFailures TriggerType = "consecutive_failures"
	TriggerRateLimitDetected   TriggerType = "rate_limit_detected"
	TriggerHealthScoreDrop     TriggerType = "health_score_drop"
	TriggerLatencySpike        TriggerType = "latency_spike"
)

// ActionType names a rule's corrective action.
type ActionType string

const (
	ActionRotateToFallback     ActionType = "rotate_to_fallback"
	ActionQuarantineProvider   ActionType = "quarantine_provider"
	ActionScaleCooldown        ActionType = "scale_cooldown"
	ActionClearRateLimit       ActionType = "clear_rate_limit"
	ActionRestartProvider      ActionType = "restart_provider"
	ActionRequeueFailedContent ActionType = "requeue_failed_content"
	ActionRunDiagnostic        ActionType = "run_diagnostic"
	ActionNotifyAdmin          ActionType = "notify_admin"
)

// ExecutionMode selects whether a fired rule acts immediately or waits for
// human approval.
type ExecutionMode string

const (
	ModeAuto     ExecutionMode = "auto"
	ModeSemiAuto ExecutionMode = "semi_auto"
)

// Trigger condition payloads, one per TriggerType. Representing the JSON
// condition column as tagged variants means a rule carrying a payload that
// does not match its trigger type is rejected at decode time instead of
// surfacing as a nil-map lookup during a poll cycle.

// ErrorRateTrigger fires when the failure rate over Window meets Threshold,
// given at least MinSampleSize attempts.
type ErrorRateTrigger struct {
	Threshold     float64       `json:"threshold" yaml:"threshold"`
	Window        time.Duration `json:"window" yaml:"window"`
	MinSampleSize int           `json:"min_sample_size" yaml:"min_sample_size"`
}

// ConsecutiveFailuresTrigger fires when the tail of the request log holds
// Count consecutive failures.
type ConsecutiveFailuresTrigger struct {
	Count int `json:"count" yaml:"count"`
}

// RateLimitTrigger fires while the provider sits inside an active
// rate-limit cooldown window. It carries no parameters.
type RateLimitTrigger struct{}

// HealthScoreTrigger fires when the provider's health score is below Threshold.
type HealthScoreTrigger struct {
	Threshold float64 `json:"threshold" yaml:"threshold"`
}

// LatencySpikeTrigger fires when average latency over Window exceeds
// ThresholdMs, given at least MinSampleSize attempts.
type LatencySpikeTrigger struct {
	ThresholdMs   float64       `json:"threshold_ms" yaml:"threshold_ms"`
	Window        time.Duration `json:"window" yaml:"window"`
	MinSampleSize int           `json:"min_sample_size" yaml:"min_sample_size"`
}

// TriggerConditions is the tagged union of trigger payloads. Exactly the
// variant matching the rule's TriggerType is set.
type TriggerConditions struct {
	ErrorRate           *ErrorRateTrigger           `json:"error_rate,omitempty"`
	ConsecutiveFailures *ConsecutiveFailuresTrigger `json:"consecutive_failures,omitempty"`
	RateLimit           *RateLimitTrigger           `json:"rate_limit,omitempty"`
	HealthScore         *HealthScoreTrigger         `json:"health_score,omitempty"`
	LatencySpike        *LatencySpikeTrigger        `json:"latency_spike,omitempty"`
}

// Validate checks that exactly the variant for t is populated and its
// parameters are sane.
func (c *TriggerConditions) Validate(t TriggerType) error {
	switch t {
	case TriggerErrorRateThreshold:
		if c.ErrorRate == nil {
			return fmt.Errorf("trigger %s: missing error_rate conditions", t)
		}
		if c.ErrorRate.Threshold <= 0 || c.ErrorRate.Threshold > 1 {
			return fmt.Errorf("trigger %s: threshold must be in (0,1]", t)
		}
		if c.ErrorRate.Window <= 0 {
			return fmt.Errorf("trigger %s: window must be positive", t)
		}
	case TriggerConsecutiveFailures:
		if c.ConsecutiveFailures == nil {
			return fmt.Errorf("trigger %s: missing consecutive_failures conditions", t)
		}
		if c.ConsecutiveFailures.Count < 1 {
			return fmt.Errorf("trigger %s: count must be at least 1", t)
		}
	case TriggerRateLimitDetected:
		// no parameters
	case TriggerHealthScoreDrop:
		if c.HealthScore == nil {
			return fmt.Errorf("trigger %s: missing health_score conditions", t)
		}
		if c.HealthScore.Threshold < 0 || c.HealthScore.Threshold > 100 {
			return fmt.Errorf("trigger %s: threshold must be in [0,100]", t)
		}
	case TriggerLatencySpike:
		if c.LatencySpike == nil {
			return fmt.Errorf("trigger %s: missing latency_spike conditions", t)
		}
		if c.LatencySpike.ThresholdMs <= 0 {
			return fmt.Errorf("trigger %s: threshold_ms must be positive", t)
		}
		if c.LatencySpike.Window <= 0 {
			return fmt.Errorf("trigger %s: window must be positive", t)
		}
	default:
		return fmt.Errorf("unknown trigger type %q", t)
	}
	return nil
}

// DecodeTriggerConditions parses the stored JSON conditions column for a
// rule of trigger type t, rejecting mismatched payloads.
func DecodeTriggerConditions(t TriggerType, raw []byte) (TriggerConditions, error) {
	var c TriggerConditions
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &c); err != nil {
			return c, fmt.Errorf("decode trigger conditions: %w", err)
		}
	}
	if t == TriggerRateLimitDetected && c.RateLimit == nil {
		c.RateLimit = &RateLimitTrigger{}
	}
	if err := c.Validate(t); err != nil {
		return c, err
	}
	return c, nil
}

// Action parameter payloads, one per ActionType where parameters exist.

// QuarantineParams configures quarantine_provider and scale_cooldown.
type QuarantineParams struct {
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// RotateParams configures rotate_to_fallback.
type RotateParams struct {
	FreeOnly bool `json:"free_only,omitempty" yaml:"free_only"`
}

// RequeueParams configures requeue_failed_content.
type RequeueParams struct {
	MaxItems int `json:"max_items,omitempty" yaml:"max_items"`
}

// NotifyParams configures notify_admin.
type NotifyParams struct {
	Severity string `json:"severity,omitempty" yaml:"severity"`
}

// ActionParams is the tagged union of action payloads. Actions without
// parameters (clear_rate_limit, restart_provider, run_diagnostic) leave
// every variant nil.
type ActionParams struct {
	Quarantine *QuarantineParams `json:"quarantine,omitempty"`
	Rotate     *RotateParams     `json:"rotate,omitempty"`
	Requeue    *RequeueParams    `json:"requeue,omitempty"`
	Notify     *NotifyParams     `json:"notify,omitempty"`
}

// Validate checks that the populated variant matches the action type a.
func (p *ActionParams) Validate(a ActionType) error {
	switch a {
	case ActionQuarantineProvider, ActionScaleCooldown:
		if p.Quarantine != nil && p.Quarantine.Duration <= 0 {
			return fmt.Errorf("action %s: duration must be positive", a)
		}
	case ActionRotateToFallback, ActionRequeueFailedContent, ActionNotifyAdmin,
		ActionClearRateLimit, ActionRestartProvider, ActionRunDiagnostic:
		// optional or no parameters
	default:
		return fmt.Errorf("unknown action type %q", a)
	}
	return nil
}

// DecodeActionParams parses the stored JSON params column for a rule of
// action type a.
func DecodeActionParams(a ActionType, raw []byte) (ActionParams, error) {
	var p ActionParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return p, fmt.Errorf("decode action params: %w", err)
		}
	}
	if err := p.Validate(a); err != nil {
		return p, err
	}
	return p, nil
}

// RemediationRule is one rule of the control loop: a trigger, an action,
// and the guards that rate-limit the rule's own interventions.
type RemediationRule struct {
	ID                   string
	Name                 string
	TriggerType          TriggerType
	Trigger              TriggerConditions
	ActionType           ActionType
	Action               ActionParams
	Mode                 ExecutionMode
	Priority             int
	Cooldown             time.Duration // re-trigger guard since last firing
	MaxExecutionsPerHour int
	Provider             string      // optional filter; empty matches all
	ServiceType          ServiceType // optional filter; empty matches all
	IsActive             bool
}

// Validate checks the rule end to end, including the tagged payloads.
func (r *RemediationRule) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "ruleId", Message: "is required"}
	}
	if r.Mode != ModeAuto && r.Mode != ModeSemiAuto {
		return &ValidationError{Field: "mode", Message: "must be auto or semi_auto"}
	}
	if r.MaxExecutionsPerHour < 0 {
		return &ValidationError{Field: "maxExecutionsPerHour", Message: "must not be negative"}
	}
	if r.ServiceType != "" && !ValidServiceType(r.ServiceType) {
		return &ValidationError{Field: "serviceType", Message: "unknown service type"}
	}
	if err := r.Trigger.Validate(r.TriggerType); err != nil {
		return err
	}
	return r.Action.Validate(r.ActionType)
}

// Matches reports whether the rule's provider/service filters accept the row.
func (r *RemediationRule) Matches(provider string, serviceType ServiceType) bool {
	if r.Provider != "" && r.Provider != provider {
		return false
	}
	if r.ServiceType != "" && r.ServiceType != serviceType {
		return false
	}
	return true
}

// ExecutionStatus is the state of one remediation execution.
//
//	pending → in_progress → success | failed
//	pending → rolled_back (manual rejection)
type ExecutionStatus string

const (
	ExecutionPending    ExecutionStatus = "pending"
	ExecutionInProgress ExecutionStatus = "in_progress"
	ExecutionSuccess    ExecutionStatus = "success"
	ExecutionFailed     ExecutionStatus = "failed"
	ExecutionRolledBack ExecutionStatus = "rolled_back"
)

// Terminal reports whether the status is final.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecutionSuccess, ExecutionFailed, ExecutionRolledBack:
		return true
	}
	return false
}

// RemediationExecution records one trigger firing and what came of it.
//
// MTTD is measured against the precipitating evidence, not the engine's own
// scheduling jitter: FailureDetectedAt is the time the evidence occurred,
// RemediationStartedAt is when the poll (or approval) acted on it.
type RemediationExecution struct {
	ID                     string
	RuleID                 string
	Provider               string
	ServiceType            ServiceType
	FailureDetectedAt      time.Time
	RemediationStartedAt   time.Time
	RemediationCompletedAt *time.Time
	RecoveryConfirmedAt    *time.Time
	TriggerDetails         string // JSON snapshot of the evidence
	ActionTaken            string
	Status                 ExecutionStatus
	WasSuccessful          bool
	MTTDSeconds            float64
	MTTRSeconds            *float64 // nil until recovery is confirmed
	AffectedRequests       int
	RecoveredRequests      int
	ErrorMessage           string
}

// ConfirmRecovery stamps the recovery confirmation and derives MTTR.
func (e *RemediationExecution) ConfirmRecovery(now time.Time) {
	e.RecoveryConfirmedAt = &now
	mttr := now.Sub(e.RemediationStartedAt).Seconds()
	e.MTTRSeconds = &mttr
}
