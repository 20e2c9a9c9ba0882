package syncqueue

import (
	"time"

	"github.com/google/uuid"
	"github.com/retailcore/backend/internal/domain/shared"
)

// Status represents the replay state of a queued operation
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusDead       Status = "dead"
)

// OperationType identifies which engine operation a queued item replays
type OperationType string

const (
	OperationSale       OperationType = "sale"
	OperationAdjustment OperationType = "adjustment"
	OperationShiftClose OperationType = "shift_close"
)

// IsValid returns true for a known operation type
func (o OperationType) IsValid() bool {
	switch o {
	case OperationSale, OperationAdjustment, OperationShiftClose:
		return true
	}
	return false
}

// Default retry configuration
const (
	DefaultMaxAttempts = 5
	DefaultBaseBackoff = time.Second
)

// DefaultClaimLease bounds how long a processing claim is honored. A worker
// that crashes after claiming an item never clears it; once the lease runs
// out the item becomes claimable again instead of wedging the tenant queue.
const DefaultClaimLease = 5 * time.Minute

// SyncItem is one operation captured while a terminal was offline, persisted
// durably for replay. Items of a tenant replay strictly in Sequence order;
// the idempotency key makes replay safe even when the operation already
// partially succeeded before the disconnect.
type SyncItem struct {
	shared.BaseEntity
	TenantID       uuid.UUID     `gorm:"type:uuid;not null;index:idx_sync_items_tenant_seq,priority:1"`
	Sequence       int64         `gorm:"autoIncrement;uniqueIndex;index:idx_sync_items_tenant_seq,priority:2"`
	Operation      OperationType `gorm:"type:varchar(30);not null"`
	IdempotencyKey string        `gorm:"type:varchar(100);not null;uniqueIndex:idx_sync_items_tenant_key,priority:2"`
	Payload        []byte        `gorm:"type:jsonb;not null"`
	Status         Status        `gorm:"type:varchar(20);not null;default:'pending';index"`
	Attempts       int           `gorm:"not null;default:0"`
	MaxAttempts    int           `gorm:"not null;default:5"`
	LastError      string        `gorm:"type:text"`
	ClaimedAt      *time.Time
	NextAttemptAt  *time.Time
	ProcessedAt    *time.Time
}

// TableName returns the table name for GORM
func (SyncItem) TableName() string {
	return "sync_items"
}

// NewSyncItem creates a pending queue item
func NewSyncItem(tenantID uuid.UUID, op OperationType, idempotencyKey string, payload []byte) (*SyncItem, error) {
	if !op.IsValid() {
		return nil, shared.NewValidationError("unknown sync operation: " + string(op))
	}
	if idempotencyKey == "" {
		return nil, shared.NewValidationError("idempotency key cannot be empty")
	}
	if len(payload) == 0 {
		return nil, shared.NewValidationError("payload cannot be empty")
	}

	return &SyncItem{
		BaseEntity:     shared.NewBaseEntity(),
		TenantID:       tenantID,
		Operation:      op,
		IdempotencyKey: idempotencyKey,
		Payload:        payload,
		Status:         StatusPending,
		MaxAttempts:    DefaultMaxAttempts,
	}, nil
}

// Due reports whether the item is ready for (re)processing at the given time
func (i *SyncItem) Due(now time.Time) bool {
	switch i.Status {
	case StatusPending:
		return true
	case StatusFailed:
		return i.NextAttemptAt == nil || !i.NextAttemptAt.After(now)
	case StatusProcessing:
		return i.LeaseExpired(now)
	}
	return false
}

// LeaseExpired reports whether a processing claim has gone stale. Items
// written before claims carried a timestamp count as expired.
func (i *SyncItem) LeaseExpired(now time.Time) bool {
	if i.Status != StatusProcessing {
		return false
	}
	return i.ClaimedAt == nil || !i.ClaimedAt.Add(DefaultClaimLease).After(now)
}

// MarkProcessing claims the item for replay. Pending and failed items are
// claimable, as is a processing item whose lease expired, which means the
// worker that claimed it died before recording an outcome.
func (i *SyncItem) MarkProcessing() error {
	now := time.Now()
	switch {
	case i.Status == StatusPending, i.Status == StatusFailed:
	case i.Status == StatusProcessing && i.LeaseExpired(now):
	default:
		return shared.NewConflictError("only pending, failed or abandoned items can start processing")
	}
	i.Status = StatusProcessing
	i.Attempts++
	i.ClaimedAt = &now
	i.UpdatedAt = now
	return nil
}

// MarkCompleted records a successful replay
func (i *SyncItem) MarkCompleted() {
	now := time.Now()
	i.Status = StatusCompleted
	i.ClaimedAt = nil
	i.ProcessedAt = &now
	i.UpdatedAt = now
}

// MarkFailed records a failed attempt. Once attempts are exhausted the item
// moves to the dead-letter state instead of retrying forever; otherwise the
// next attempt is scheduled with exponential backoff.
func (i *SyncItem) MarkFailed(errMsg string) {
	i.LastError = errMsg
	i.ClaimedAt = nil
	i.UpdatedAt = time.Now()

	if i.Attempts >= i.MaxAttempts {
		i.Status = StatusDead
		i.NextAttemptAt = nil
		return
	}

	i.Status = StatusFailed
	// 1s, 2s, 4s, 8s, ...
	backoff := DefaultBaseBackoff * time.Duration(1<<uint(i.Attempts-1))
	next := time.Now().Add(backoff)
	i.NextAttemptAt = &next
}

// ResetForRetry requeues a dead-letter item from scratch
func (i *SyncItem) ResetForRetry() error {
	if i.Status != StatusDead {
		return shared.NewConflictError("only dead items can be requeued")
	}
	i.Status = StatusPending
	i.Attempts = 0
	i.LastError = ""
	i.ClaimedAt = nil
	i.NextAttemptAt = nil
	i.UpdatedAt = time.Now()
	return nil
}

// IsDead returns true when the item has been dead-lettered
func (i *SyncItem) IsDead() bool {
	return i.Status == StatusDead
}
