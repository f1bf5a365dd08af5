package entity

import "time"

// SimulationStatus is the lifecycle state of a failure simulation.
type SimulationStatus string

const (
	SimulationRunning   SimulationStatus = "running"
	SimulationCompleted SimulationStatus = "completed"
)

// Scoring gates for simulation post-mortems.
const (
	DetectionPassSeconds   = 60
	RemediationPassSeconds = 300
)

// FailureSimulation is one chaos-testing window: the request path is told to
// synthetically fail for the target provider, and at expiry the remediation
// executions that occurred in-window are scored.
type FailureSimulation struct {
	ID                string
	TargetProvider    string      // empty targets any provider
	TargetServiceType ServiceType // empty targets any service type
	FailureType       string
	ErrorRate         float64 // probability of injecting a failure per call
	Status            SimulationStatus
	StartedAt         time.Time
	EndsAt            time.Time
	ScheduledDuration time.Duration

	// Post-hoc scoring, computed at completion.
	DetectionTimeSeconds   *float64
	RemediationTimeSeconds *float64
	PassedDetection        bool
	PassedRemediation      bool
	OverallScore           int // 0, 50 or 100
}

// Targets reports whether the simulation applies to the given provider and
// service type.
func (s *FailureSimulation) Targets(provider string, serviceType ServiceType) bool {
	if s.TargetProvider != "" && s.TargetProvider != provider {
		return false
	}
	if s.TargetServiceType != "" && s.TargetServiceType != serviceType {
		return false
	}
	return true
}

// Expired reports whether the window has elapsed.
func (s *FailureSimulation) Expired(now time.Time) bool {
	return !now.Before(s.EndsAt)
}

// Score derives the pass/fail verdicts and overall score from the observed
// detection and remediation latencies. Nil latency means the event never
// happened inside the window.
func (s *FailureSimulation) Score(detectionSeconds, remediationSeconds *float64) {
	s.DetectionTimeSeconds = detectionSeconds
	s.RemediationTimeSeconds = remediationSeconds
	s.PassedDetection = detectionSeconds != nil && *detectionSeconds <= DetectionPassSeconds
	s.PassedRemediation = remediationSeconds != nil && *remediationSeconds <= RemediationPassSeconds

	s.OverallScore = 0
	if s.PassedDetection {
		s.OverallScore += 50
	}
	if s.PassedRemediation {
		s.OverallScore += 50
	}
}

// Validate checks the simulation request shape.
func (s *FailureSimulation) Validate() error {
	if s.ErrorRate <= 0 || s.ErrorRate > 1 {
		return &ValidationError{Field: "errorRate", Message: "must be in (0,1]"}
	}
	if s.ScheduledDuration <= 0 {
		return &ValidationError{Field: "durationMinutes", Message: "must be positive"}
	}
	if s.TargetServiceType != "" && !ValidServiceType(s.TargetServiceType) {
		return &ValidationError{Field: "targetServiceType", Message: "unknown service type"}
	}
	return nil
}
