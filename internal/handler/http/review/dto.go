package review

import (
	"time"

	"provider-mesh/internal/domain/entity"
)

type QualityDTO struct {
	Provider        string    `json:"provider"`
	ServiceType     string    `json:"service_type"`
	TotalReviews    int       `json:"total_reviews"`
	TotalAccepted   int       `json:"total_accepted"`
	TotalRejected   int       `json:"total_rejected"`
	AcceptanceRate  float64   `json:"acceptance_rate"`
	AvgUserRating   float64   `json:"avg_user_rating"`
	AvgQualityScore float64   `json:"avg_quality_score"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toQualityDTO(q *entity.QualityScore) QualityDTO {
	return QualityDTO{
		Provider:        q.Provider,
		ServiceType:     string(q.ServiceType),
		TotalReviews:    q.TotalReviews,
		TotalAccepted:   q.TotalAccepted,
		TotalRejected:   q.TotalRejected,
		AcceptanceRate:  q.AcceptanceRate,
		AvgUserRating:   q.AvgUserRating,
		AvgQualityScore: q.AvgQualityScore,
		UpdatedAt:       q.UpdatedAt,
	}
}
