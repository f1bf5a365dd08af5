package entity

import (
	"math"
	"time"
)

// Quality score nudges applied on review feedback, clamped to [0,100].
const (
	QualityAcceptNudge = 2
	QualityRejectNudge = -5
	InitialQuality     = 50
)

// QualityScore is crowd-sourced quality feedback for one provider×serviceType.
// It is updated only by explicit review feedback, never by operational
// outcomes.
type QualityScore struct {
	Provider        string
	ServiceType     ServiceType
	TotalReviews    int
	TotalAccepted   int
	TotalRejected   int
	AcceptanceRate  float64 // 0-100
	AvgUserRating   float64
	AvgQualityScore float64 // 0-100
	QualityWeight   float64
	UpdatedAt       time.Time
}

// ApplyReview folds one review into the score: +2 on acceptance, -5 on
// rejection, clamped; acceptance rate and running rating mean recomputed.
func (q *QualityScore) ApplyReview(accepted bool, rating *float64, now time.Time) {
	q.TotalReviews++
	if accepted {
		q.TotalAccepted++
		q.AvgQualityScore = math.Min(100, q.AvgQualityScore+QualityAcceptNudge)
	} else {
		q.TotalRejected++
		q.AvgQualityScore = math.Max(0, q.AvgQualityScore+QualityRejectNudge)
	}
	q.AcceptanceRate = float64(q.TotalAccepted) / float64(q.TotalReviews) * 100
	if rating != nil {
		n := float64(q.TotalReviews)
		q.AvgUserRating = (q.AvgUserRating*(n-1) + *rating) / n
	}
	q.UpdatedAt = now
}

// QualityTier names a routing profile that controls how much quality
// feedback influences ranking versus raw operational health.
type QualityTier string

const (
	TierDraft      QualityTier = "draft"
	TierProduction QualityTier = "production"
	TierCinematic  QualityTier = "cinematic_4k"
)

// DefaultWeight returns the tier's default quality weight used when the
// tier config carries no override.
func (t QualityTier) DefaultWeight() float64 {
	switch t {
	case TierDraft:
		return 0.3
	case TierProduction:
		return 0.5
	case TierCinematic:
		return 0.7
	default:
		return 0.5
	}
}

// Valid reports whether t names a known tier.
func (t QualityTier) Valid() bool {
	switch t {
	case TierDraft, TierProduction, TierCinematic:
		return true
	}
	return false
}

// QualityTierConfig is static per-tier routing configuration.
type QualityTierConfig struct {
	TierName              QualityTier
	QualityWeightOverride *float64
	PreferredProviders    []string
	ExcludedProviders     []string
	PrioritizeFree        bool
	MinAcceptanceRate     float64 // tier-specific gate, 0 disables
}

// Weight resolves the effective quality weight for the tier.
func (c *QualityTierConfig) Weight() float64 {
	if c.QualityWeightOverride != nil {
		return *c.QualityWeightOverride
	}
	return c.TierName.DefaultWeight()
}
