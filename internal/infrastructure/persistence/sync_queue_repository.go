package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/retailcore/backend/internal/domain/shared"
	"github.com/retailcore/backend/internal/domain/syncqueue"
	"gorm.io/gorm"
)

// GormSyncQueueRepository implements the sync queue Repository using GORM.
//
// A tenant's queue is strictly ordered by Sequence. The head item is the
// oldest item that is not completed and not dead; while the head is backing
// off after a failure the whole tenant queue waits, because replaying later
// operations before an earlier one would reorder the terminal's history.
// Dead items are set aside and do not block.
type GormSyncQueueRepository struct {
	db *gorm.DB
}

// NewGormSyncQueueRepository creates a new GormSyncQueueRepository
func NewGormSyncQueueRepository(db *gorm.DB) *GormSyncQueueRepository {
	return &GormSyncQueueRepository{db: db}
}

// Enqueue persists a new item at the tail of the tenant's queue
func (r *GormSyncQueueRepository) Enqueue(ctx context.Context, item *syncqueue.SyncItem) error {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		if isDuplicateKey(err) {
			return shared.NewConflictError("sync item with this idempotency key already exists")
		}
		return err
	}
	return nil
}

// FindByIdempotencyKey returns the queued item for a tenant and key
func (r *GormSyncQueueRepository) FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*syncqueue.SyncItem, error) {
	var item syncqueue.SyncItem
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND idempotency_key = ?", tenantID, key).
		First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// TenantsWithWork returns distinct tenant IDs whose queue head is due
func (r *GormSyncQueueRepository) TenantsWithWork(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	var tenantIDs []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&syncqueue.SyncItem{}).
		Distinct("tenant_id").
		Where("status = ? OR (status = ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?))",
			syncqueue.StatusPending, syncqueue.StatusFailed, now).
		Limit(limit).
		Pluck("tenant_id", &tenantIDs).Error; err != nil {
		return nil, err
	}
	return tenantIDs, nil
}

// NextForTenant returns the tenant's oldest due item by sequence. The head of
// the queue is the oldest non-completed, non-dead item; when that head is not
// yet due the tenant has nothing to process, even if later items are pending.
func (r *GormSyncQueueRepository) NextForTenant(ctx context.Context, tenantID uuid.UUID, now time.Time) (*syncqueue.SyncItem, error) {
	var item syncqueue.SyncItem
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status NOT IN ?", tenantID,
			[]syncqueue.Status{syncqueue.StatusCompleted, syncqueue.StatusDead}).
		Order("sequence ASC").
		First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if !item.Due(now) {
		return nil, shared.ErrNotFound
	}
	return &item, nil
}

// Update persists state transitions of an item
func (r *GormSyncQueueRepository) Update(ctx context.Context, item *syncqueue.SyncItem) error {
	return r.db.WithContext(ctx).
		Model(item).
		Where("id = ?", item.ID).
		Updates(map[string]interface{}{
			"status":          item.Status,
			"attempts":        item.Attempts,
			"last_error":      item.LastError,
			"claimed_at":      item.ClaimedAt,
			"next_attempt_at": item.NextAttemptAt,
			"processed_at":    item.ProcessedAt,
			"updated_at":      item.UpdatedAt,
		}).Error
}

// FindDead lists dead-letter items for a tenant with pagination
func (r *GormSyncQueueRepository) FindDead(ctx context.Context, tenantID uuid.UUID, page, pageSize int) ([]syncqueue.SyncItem, int64, error) {
	query := r.db.WithContext(ctx).Model(&syncqueue.SyncItem{}).
		Where("tenant_id = ? AND status = ?", tenantID, syncqueue.StatusDead)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	var items []syncqueue.SyncItem
	if err := query.
		Order("sequence ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// CountByStatus returns item counts per status for a tenant
func (r *GormSyncQueueRepository) CountByStatus(ctx context.Context, tenantID uuid.UUID) (map[syncqueue.Status]int64, error) {
	type row struct {
		Status syncqueue.Status
		Count  int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&syncqueue.SyncItem{}).
		Select("status, COUNT(*) AS count").
		Where("tenant_id = ?", tenantID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[syncqueue.Status]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// Ensure GormSyncQueueRepository implements Repository
var _ syncqueue.Repository = (*GormSyncQueueRepository)(nil)
