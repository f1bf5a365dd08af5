package entity

import (
	"strings"
	"time"
)

// RequestStatus is the terminal status of a single provider attempt.
type RequestStatus string

const (
	RequestSuccess RequestStatus = "success"
	RequestFailed  RequestStatus = "failed"
)

// RequestRecord is one append-only log row per provider attempt.
// Immutable once written; it is the evidence base for trigger evaluation
// and MTTD/MTTR computation.
type RequestRecord struct {
	ID           int64
	Provider     string
	ServiceType  ServiceType
	RequestID    string // idempotency key supplied by the adapter
	Status       RequestStatus
	LatencyMs    int64
	ErrorCode    string
	ErrorMessage string
	CostIncurred float64
	CampaignID   string
	ContentID    string
	CreatedAt    time.Time
}

// RequestParams carries the request shape relevant to learned-pattern vetoes.
type RequestParams struct {
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	PromptChars     int    `json:"prompt_chars,omitempty"`
	Model           string `json:"model,omitempty"`
}

// RequestOutcome is the inbound report from a provider adapter after every
// attempt, success or failure.
type RequestOutcome struct {
	Provider     string
	ServiceType  ServiceType
	RequestID    string
	Success      bool
	LatencyMs    int64
	ErrorCode    string
	ErrorMessage string
	CostIncurred float64
	CampaignID   string
	ContentID    string
	Params       *RequestParams
}

// Validate checks the outcome identity fields.
func (o *RequestOutcome) Validate() error {
	if o.Provider == "" {
		return &ValidationError{Field: "provider", Message: "is required"}
	}
	if !ValidServiceType(o.ServiceType) {
		return &ValidationError{Field: "serviceType", Message: "unknown service type"}
	}
	if o.RequestID == "" {
		return &ValidationError{Field: "requestId", Message: "is required"}
	}
	return nil
}

// FailureClass partitions failed outcomes by how the control plane reacts.
type FailureClass int

const (
	// FailureNone means the outcome succeeded.
	FailureNone FailureClass = iota

	// FailureTransient covers timeouts and 5xx. Recorded and scored; may
	// trigger rotation but never quarantine on its own.
	FailureTransient

	// FailureRateLimit covers 429 and quota phrasing. Always triggers an
	// immediate short cooldown independent of the scoring loop.
	FailureRateLimit

	// FailureHard covers auth/billing/model-not-found/forbidden. These do
	// not self-heal by waiting and are escalated to an explicit quarantine.
	FailureHard
)

var rateLimitPhrases = []string{
	"rate limit",
	"rate-limit",
	"ratelimit",
	"too many requests",
	"quota exceeded",
	"quota limit",
}

var hardFailurePhrases = []string{
	"unauthorized",
	"invalid api key",
	"authentication",
	"billing",
	"payment required",
	"forbidden",
	"model not found",
	"account suspended",
}

// ClassifyOutcome buckets a failed outcome into a FailureClass using the
// error code first and message phrasing second.
func ClassifyOutcome(o *RequestOutcome) FailureClass {
	if o.Success {
		return FailureNone
	}
	msg := strings.ToLower(o.ErrorMessage)

	if o.ErrorCode == "429" {
		return FailureRateLimit
	}
	for _, p := range rateLimitPhrases {
		if strings.Contains(msg, p) {
			return FailureRateLimit
		}
	}

	switch o.ErrorCode {
	case "401", "402", "403":
		return FailureHard
	}
	for _, p := range hardFailurePhrases {
		if strings.Contains(msg, p) {
			return FailureHard
		}
	}

	return FailureTransient
}
