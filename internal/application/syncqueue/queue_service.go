package syncqueue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	appinventory "github.com/retailcore/backend/internal/application/inventory"
	appsales "github.com/retailcore/backend/internal/application/sales"
	appshift "github.com/retailcore/backend/internal/application/shift"
	"github.com/retailcore/backend/internal/domain/shared"
	"github.com/retailcore/backend/internal/domain/syncqueue"
)

// SyncItemResponse represents a queued operation in API responses
type SyncItemResponse struct {
	ID             uuid.UUID  `json:"id"`
	Sequence       int64      `json:"sequence"`
	Operation      string     `json:"operation"`
	IdempotencyKey string     `json:"idempotency_key"`
	Status         string     `json:"status"`
	Attempts       int        `json:"attempts"`
	MaxAttempts    int        `json:"max_attempts"`
	LastError      string     `json:"last_error,omitempty"`
	NextAttemptAt  *time.Time `json:"next_attempt_at,omitempty"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ToSyncItemResponse converts a domain sync item to a response DTO
func ToSyncItemResponse(item *syncqueue.SyncItem) SyncItemResponse {
	return SyncItemResponse{
		ID:             item.ID,
		Sequence:       item.Sequence,
		Operation:      string(item.Operation),
		IdempotencyKey: item.IdempotencyKey,
		Status:         string(item.Status),
		Attempts:       item.Attempts,
		MaxAttempts:    item.MaxAttempts,
		LastError:      item.LastError,
		NextAttemptAt:  item.NextAttemptAt,
		ProcessedAt:    item.ProcessedAt,
		CreatedAt:      item.CreatedAt,
	}
}

// QueueService accepts operations captured by offline terminals and stores
// them durably for ordered replay. Enqueueing is idempotent on the key: a
// batch uploaded twice after a flaky reconnect yields one queue item per
// operation.
type QueueService struct {
	repo syncqueue.Repository
}

// NewQueueService creates a new QueueService
func NewQueueService(repo syncqueue.Repository) *QueueService {
	return &QueueService{repo: repo}
}

func (s *QueueService) enqueue(ctx context.Context, tenantID uuid.UUID, op syncqueue.OperationType, key string, payload any) (*SyncItemResponse, error) {
	if existing, err := s.repo.FindByIdempotencyKey(ctx, tenantID, key); err == nil {
		response := ToSyncItemResponse(existing)
		return &response, nil
	} else if !shared.IsNotFound(err) {
		return nil, err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	item, err := syncqueue.NewSyncItem(tenantID, op, key, raw)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Enqueue(ctx, item); err != nil {
		// Unique key race with a concurrent upload of the same batch
		if shared.IsConflict(err) {
			if existing, lookupErr := s.repo.FindByIdempotencyKey(ctx, tenantID, key); lookupErr == nil {
				response := ToSyncItemResponse(existing)
				return &response, nil
			}
		}
		return nil, err
	}

	response := ToSyncItemResponse(item)
	return &response, nil
}

// EnqueueSale queues an offline-captured sale for replay. The request must
// carry an idempotency key; without one an offline replay could double-sell.
func (s *QueueService) EnqueueSale(ctx context.Context, tenantID uuid.UUID, req appsales.ProcessSaleRequest) (*SyncItemResponse, error) {
	if req.IdempotencyKey == nil || *req.IdempotencyKey == "" {
		return nil, shared.NewValidationError("offline sales require an idempotency key")
	}
	return s.enqueue(ctx, tenantID, syncqueue.OperationSale, *req.IdempotencyKey, req)
}

// EnqueueAdjustment queues an offline-captured stock adjustment for replay
func (s *QueueService) EnqueueAdjustment(ctx context.Context, tenantID uuid.UUID, key string, req appinventory.AdjustStockRequest) (*SyncItemResponse, error) {
	if key == "" {
		return nil, shared.NewValidationError("offline adjustments require an idempotency key")
	}
	return s.enqueue(ctx, tenantID, syncqueue.OperationAdjustment, key, req)
}

// EnqueueShiftClose queues an offline-captured shift close for replay
func (s *QueueService) EnqueueShiftClose(ctx context.Context, tenantID uuid.UUID, key string, req appshift.CloseShiftRequest) (*SyncItemResponse, error) {
	if key == "" {
		return nil, shared.NewValidationError("offline shift closes require an idempotency key")
	}
	return s.enqueue(ctx, tenantID, syncqueue.OperationShiftClose, key, req)
}

// GetItem returns the queue item for an idempotency key
func (s *QueueService) GetItem(ctx context.Context, tenantID uuid.UUID, key string) (*SyncItemResponse, error) {
	item, err := s.repo.FindByIdempotencyKey(ctx, tenantID, key)
	if err != nil {
		return nil, err
	}
	response := ToSyncItemResponse(item)
	return &response, nil
}

// QueueStatus returns item counts per status for a tenant
func (s *QueueService) QueueStatus(ctx context.Context, tenantID uuid.UUID) (map[string]int64, error) {
	counts, err := s.repo.CountByStatus(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	result := make(map[string]int64, len(counts))
	for status, count := range counts {
		result[string(status)] = count
	}
	return result, nil
}

// ListDeadLetters lists dead-letter items for operator review
func (s *QueueService) ListDeadLetters(ctx context.Context, tenantID uuid.UUID, page, pageSize int) ([]SyncItemResponse, int64, error) {
	items, total, err := s.repo.FindDead(ctx, tenantID, page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	responses := make([]SyncItemResponse, 0, len(items))
	for i := range items {
		responses = append(responses, ToSyncItemResponse(&items[i]))
	}
	return responses, total, nil
}

// RequeueDeadLetter puts a dead-letter item back at its original queue
// position with a fresh attempt budget
func (s *QueueService) RequeueDeadLetter(ctx context.Context, tenantID uuid.UUID, key string) (*SyncItemResponse, error) {
	item, err := s.repo.FindByIdempotencyKey(ctx, tenantID, key)
	if err != nil {
		return nil, err
	}
	if err := item.ResetForRetry(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, item); err != nil {
		return nil, err
	}
	response := ToSyncItemResponse(item)
	return &response, nil
}
