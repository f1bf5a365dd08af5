package repository

import (
	"context"

	"provider-mesh/internal/domain/entity"
)

// ProviderMetricsRepository persists the per-provider×serviceType aggregate
// rows. Implementations must guarantee atomic read-modify-write per row so
// that an outcome report and a remediation action racing on the same
// provider never lose updates.
type ProviderMetricsRepository interface {
	// Get returns the row, or nil if no such provider×serviceType exists.
	Get(ctx context.Context, provider string, serviceType entity.ServiceType) (*entity.ProviderMetrics, error)
	ListByService(ctx context.Context, serviceType entity.ServiceType) ([]*entity.ProviderMetrics, error)
	ListAll(ctx context.Context) ([]*entity.ProviderMetrics, error)
	// Create inserts a new row.
	Create(ctx context.Context, m *entity.ProviderMetrics) error
	// UpdateAtomic applies mutate to a fresh copy of the row under the
	// store's concurrency control and persists the result. The mutated row
	// is returned. Returns entity.ErrNotFound if the row does not exist.
	UpdateAtomic(ctx context.Context, provider string, serviceType entity.ServiceType, mutate func(*entity.ProviderMetrics) error) (*entity.ProviderMetrics, error)
}
