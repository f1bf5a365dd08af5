package repository

import (
	"context"
	"time"

	"provider-mesh/internal/domain/entity"
)

// RequestLogRepository is the append-only per-attempt request log.
// Inserts are never contended; rows are immutable once written.
type RequestLogRepository interface {
	// Append inserts the record unless a row with the same provider and
	// request ID already exists. Returns false on a duplicate so callers
	// can treat the retried report as already applied.
	Append(ctx context.Context, r *entity.RequestRecord) (bool, error)
	// ListSince returns records for provider×serviceType created at or
	// after since, oldest first.
	ListSince(ctx context.Context, provider string, serviceType entity.ServiceType, since time.Time) ([]*entity.RequestRecord, error)
	// Tail returns the most recent n records, newest first.
	Tail(ctx context.Context, provider string, serviceType entity.ServiceType, n int) ([]*entity.RequestRecord, error)
	// ListFailedSince returns failed records since the given time, oldest
	// first. Used by requeue actions to enumerate affected work.
	ListFailedSince(ctx context.Context, provider string, serviceType entity.ServiceType, since time.Time) ([]*entity.RequestRecord, error)
}
