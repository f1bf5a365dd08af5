package entity

import "time"

// PatternType classifies a recurring failure signature.
type PatternType string

const (
	PatternDurationConstraint PatternType = "duration_constraint"
	PatternRateLimit          PatternType = "rate_limit"
	PatternContentFilter      PatternType = "content_filter"
	PatternPromptLength       PatternType = "prompt_length"
	PatternAPIVersion         PatternType = "api_version"
	PatternQuotaExceeded      PatternType = "quota_exceeded"
	PatternUnknown            PatternType = "unknown"
)

// MaxPatternConfidence caps confidence growth; a pattern is never treated
// as a certainty.
const MaxPatternConfidence = 0.99

// ErrorPattern is one learned failure signature per provider×patternKey.
//
// Created on the first unseen signature with confidence 0.5; repeats
// increment the occurrence count and raise confidence by 0.1 per repeat,
// capped at MaxPatternConfidence.
type ErrorPattern struct {
	ID              int64
	Provider        string
	ServiceType     ServiceType
	PatternType     PatternType
	PatternKey      string // normalized bucketed signature, e.g. "duration:8s"
	OccurrenceCount int
	ConfidenceScore float64 // 0..0.99
	SuggestedFix    string
	IsActive        bool
	FirstSeenAt     time.Time
	LastSeenAt      time.Time
}

// Confidence returns the confidence implied by n observed occurrences:
// 0.5 for the first sighting, +0.1 per repeat, capped.
func Confidence(occurrences int) float64 {
	if occurrences < 1 {
		occurrences = 1
	}
	c := 0.5 + float64(occurrences-1)*0.1
	if c > MaxPatternConfidence {
		return MaxPatternConfidence
	}
	return c
}
