package simulation

import (
	"time"

	"provider-mesh/internal/domain/entity"
)

type SimulationDTO struct {
	ID                     string    `json:"id"`
	TargetProvider         string    `json:"target_provider,omitempty"`
	TargetServiceType      string    `json:"target_service_type,omitempty"`
	FailureType            string    `json:"failure_type"`
	ErrorRate              float64   `json:"error_rate"`
	Status                 string    `json:"status"`
	StartedAt              time.Time `json:"started_at"`
	EndsAt                 time.Time `json:"ends_at"`
	DurationSeconds        int       `json:"duration_seconds"`
	DetectionTimeSeconds   *float64  `json:"detection_time_seconds,omitempty"`
	RemediationTimeSeconds *float64  `json:"remediation_time_seconds,omitempty"`
	PassedDetection        bool      `json:"passed_detection"`
	PassedRemediation      bool      `json:"passed_remediation"`
	OverallScore           int       `json:"overall_score"`
}

func toSimulationDTO(s *entity.FailureSimulation) SimulationDTO {
	return SimulationDTO{
		ID:                     s.ID,
		TargetProvider:         s.TargetProvider,
		TargetServiceType:      string(s.TargetServiceType),
		FailureType:            s.FailureType,
		ErrorRate:              s.ErrorRate,
		Status:                 string(s.Status),
		StartedAt:              s.StartedAt,
		EndsAt:                 s.EndsAt,
		DurationSeconds:        int(s.ScheduledDuration / time.Second),
		DetectionTimeSeconds:   s.DetectionTimeSeconds,
		RemediationTimeSeconds: s.RemediationTimeSeconds,
		PassedDetection:        s.PassedDetection,
		PassedRemediation:      s.PassedRemediation,
		OverallScore:           s.OverallScore,
	}
}
