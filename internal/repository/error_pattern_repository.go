package repository

import (
	"context"

	"provider-mesh/internal/domain/entity"
)

// ErrorPatternRepository persists learned failure signatures, one row per
// provider×patternKey.
type ErrorPatternRepository interface {
	// Get returns the pattern, or nil if unseen.
	Get(ctx context.Context, provider, patternKey string) (*entity.ErrorPattern, error)
	ListActiveByProvider(ctx context.Context, provider string) ([]*entity.ErrorPattern, error)
	Upsert(ctx context.Context, p *entity.ErrorPattern) error
}
