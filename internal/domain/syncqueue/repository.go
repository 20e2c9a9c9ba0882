package syncqueue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence for the durable sync queue
type Repository interface {
	// Enqueue persists a new item at the tail of the tenant's queue
	Enqueue(ctx context.Context, item *SyncItem) error

	// FindByIdempotencyKey returns the queued item for a tenant and key,
	// or shared.ErrNotFound
	FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*SyncItem, error)

	// TenantsWithWork returns distinct tenant IDs that have items due for
	// processing at the given time, up to limit
	TenantsWithWork(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)

	// NextForTenant returns the tenant's oldest due item by sequence, or
	// shared.ErrNotFound when the tenant has nothing due
	NextForTenant(ctx context.Context, tenantID uuid.UUID, now time.Time) (*SyncItem, error)

	// Update persists state transitions of an item
	Update(ctx context.Context, item *SyncItem) error

	// FindDead lists dead-letter items for a tenant with pagination
	FindDead(ctx context.Context, tenantID uuid.UUID, page, pageSize int) ([]SyncItem, int64, error)

	// CountByStatus returns item counts per status for a tenant
	CountByStatus(ctx context.Context, tenantID uuid.UUID) (map[Status]int64, error)
}
