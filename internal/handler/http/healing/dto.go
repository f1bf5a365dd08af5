package healing

import (
	"time"

	"provider-mesh/internal/domain/entity"
)

type RuleDTO struct {
	ID                   string                   `json:"id"`
	Name                 string                   `json:"name"`
	TriggerType          string                   `json:"trigger_type"`
	TriggerConditions    entity.TriggerConditions `json:"trigger_conditions"`
	ActionType           string                   `json:"action_type"`
	ActionParams         entity.ActionParams      `json:"action_params"`
	Mode                 string                   `json:"mode"`
	Priority             int                      `json:"priority"`
	CooldownSeconds      int                      `json:"cooldown_seconds"`
	MaxExecutionsPerHour int                      `json:"max_executions_per_hour"`
	Provider             string                   `json:"provider,omitempty"`
	ServiceType          string                   `json:"service_type,omitempty"`
	IsActive             bool                     `json:"is_active"`
}

func toRuleDTO(r *entity.RemediationRule) RuleDTO {
	return RuleDTO{
		ID:                   r.ID,
		Name:                 r.Name,
		TriggerType:          string(r.TriggerType),
		TriggerConditions:    r.Trigger,
		ActionType:           string(r.ActionType),
		ActionParams:         r.Action,
		Mode:                 string(r.Mode),
		Priority:             r.Priority,
		CooldownSeconds:      int(r.Cooldown / time.Second),
		MaxExecutionsPerHour: r.MaxExecutionsPerHour,
		Provider:             r.Provider,
		ServiceType:          string(r.ServiceType),
		IsActive:             r.IsActive,
	}
}

func (d RuleDTO) toEntity() *entity.RemediationRule {
	return &entity.RemediationRule{
		ID:                   d.ID,
		Name:                 d.Name,
		TriggerType:          entity.TriggerType(d.TriggerType),
		Trigger:              d.TriggerConditions,
		ActionType:           entity.ActionType(d.ActionType),
		Action:               d.ActionParams,
		Mode:                 entity.ExecutionMode(d.Mode),
		Priority:             d.Priority,
		Cooldown:             time.Duration(d.CooldownSeconds) * time.Second,
		MaxExecutionsPerHour: d.MaxExecutionsPerHour,
		Provider:             d.Provider,
		ServiceType:          entity.ServiceType(d.ServiceType),
		IsActive:             d.IsActive,
	}
}

type ExecutionDTO struct {
	ID                     string     `json:"id"`
	RuleID                 string     `json:"rule_id"`
	Provider               string     `json:"provider"`
	ServiceType            string     `json:"service_type"`
	Status                 string     `json:"status"`
	ActionTaken            string     `json:"action_taken,omitempty"`
	FailureDetectedAt      time.Time  `json:"failure_detected_at"`
	RemediationStartedAt   time.Time  `json:"remediation_started_at"`
	RemediationCompletedAt *time.Time `json:"remediation_completed_at,omitempty"`
	RecoveryConfirmedAt    *time.Time `json:"recovery_confirmed_at,omitempty"`
	WasSuccessful          bool       `json:"was_successful"`
	MTTDSeconds            float64    `json:"mttd_seconds"`
	MTTRSeconds            *float64   `json:"mttr_seconds,omitempty"`
	ErrorMessage           string     `json:"error_message,omitempty"`
}

func toExecutionDTO(e *entity.RemediationExecution) ExecutionDTO {
	return ExecutionDTO{
		ID:                     e.ID,
		RuleID:                 e.RuleID,
		Provider:               e.Provider,
		ServiceType:            string(e.ServiceType),
		Status:                 string(e.Status),
		ActionTaken:            e.ActionTaken,
		FailureDetectedAt:      e.FailureDetectedAt,
		RemediationStartedAt:   e.RemediationStartedAt,
		RemediationCompletedAt: e.RemediationCompletedAt,
		RecoveryConfirmedAt:    e.RecoveryConfirmedAt,
		WasSuccessful:          e.WasSuccessful,
		MTTDSeconds:            e.MTTDSeconds,
		MTTRSeconds:            e.MTTRSeconds,
		ErrorMessage:           e.ErrorMessage,
	}
}
