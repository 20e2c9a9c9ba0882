package syncqueue

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	appsales "github.com/retailcore/backend/internal/application/sales"
	"github.com/retailcore/backend/internal/domain/shared"
	"github.com/retailcore/backend/internal/domain/syncqueue"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeQueueRepo is an in-memory implementation of syncqueue.Repository.
// A tenant's queue head blocks replay while it is backing off; dead items
// are set aside and do not block.
type fakeQueueRepo struct {
	mu    sync.Mutex
	items []*syncqueue.SyncItem
	seq   int64
}

func (r *fakeQueueRepo) Enqueue(ctx context.Context, item *syncqueue.SyncItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.TenantID == item.TenantID && existing.IdempotencyKey == item.IdempotencyKey {
			return shared.NewConflictError("idempotency key already queued")
		}
	}
	r.seq++
	item.Sequence = r.seq
	cp := *item
	r.items = append(r.items, &cp)
	return nil
}

func (r *fakeQueueRepo) FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*syncqueue.SyncItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if item.TenantID == tenantID && item.IdempotencyKey == key {
			cp := *item
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeQueueRepo) TenantsWithWork(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[uuid.UUID]bool)
	var tenants []uuid.UUID
	for _, item := range r.items {
		if item.Due(now) && !seen[item.TenantID] {
			seen[item.TenantID] = true
			tenants = append(tenants, item.TenantID)
			if len(tenants) == limit {
				break
			}
		}
	}
	return tenants, nil
}

func (r *fakeQueueRepo) NextForTenant(ctx context.Context, tenantID uuid.UUID, now time.Time) (*syncqueue.SyncItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var head *syncqueue.SyncItem
	for _, item := range r.items {
		if item.TenantID != tenantID {
			continue
		}
		if item.Status == syncqueue.StatusCompleted || item.Status == syncqueue.StatusDead {
			continue
		}
		if head == nil || item.Sequence < head.Sequence {
			head = item
		}
	}
	if head == nil || !head.Due(now) {
		return nil, shared.ErrNotFound
	}
	cp := *head
	return &cp, nil
}

func (r *fakeQueueRepo) Update(ctx context.Context, item *syncqueue.SyncItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.items {
		if existing.ID == item.ID {
			cp := *item
			r.items[i] = &cp
			return nil
		}
	}
	return shared.ErrNotFound
}

func (r *fakeQueueRepo) FindDead(ctx context.Context, tenantID uuid.UUID, page, pageSize int) ([]syncqueue.SyncItem, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var dead []syncqueue.SyncItem
	for _, item := range r.items {
		if item.TenantID == tenantID && item.IsDead() {
			dead = append(dead, *item)
		}
	}
	sort.Slice(dead, func(i, j int) bool { return dead[i].Sequence < dead[j].Sequence })
	return dead, int64(len(dead)), nil
}

func (r *fakeQueueRepo) CountByStatus(ctx context.Context, tenantID uuid.UUID) (map[syncqueue.Status]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[syncqueue.Status]int64)
	for _, item := range r.items {
		if item.TenantID == tenantID {
			counts[item.Status]++
		}
	}
	return counts, nil
}

func (r *fakeQueueRepo) statusOf(t *testing.T, tenantID uuid.UUID, key string) syncqueue.Status {
	t.Helper()
	item, err := r.FindByIdempotencyKey(context.Background(), tenantID, key)
	require.NoError(t, err)
	return item.Status
}

// scriptedDispatcher returns pre-configured errors per idempotency key and
// records dispatch order
type scriptedDispatcher struct {
	mu         sync.Mutex
	failures   map[string][]error
	dispatched []string
}

func newScriptedDispatcher() *scriptedDispatcher {
	return &scriptedDispatcher{failures: make(map[string][]error)}
}

func (d *scriptedDispatcher) failNext(key string, errs ...error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[key] = append(d.failures[key], errs...)
}

func (d *scriptedDispatcher) Dispatch(ctx context.Context, item *syncqueue.SyncItem) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dispatched = append(d.dispatched, item.IdempotencyKey)
	queue := d.failures[item.IdempotencyKey]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	d.failures[item.IdempotencyKey] = queue[1:]
	return err
}

// memoryIdempotencyStore is a map-backed shared.IdempotencyStore
type memoryIdempotencyStore struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{keys: make(map[string]bool)}
}

func (s *memoryIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys[key] {
		return false, nil
	}
	s.keys[key] = true
	return true, nil
}

func (s *memoryIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[key], nil
}

func (s *memoryIdempotencyStore) Close() error { return nil }

type processorFixture struct {
	repo       *fakeQueueRepo
	dispatcher *scriptedDispatcher
	store      *memoryIdempotencyStore
	processor  *Processor
	queue      *QueueService
	tenantID   uuid.UUID
}

func newProcessorFixture() *processorFixture {
	repo := &fakeQueueRepo{}
	dispatcher := newScriptedDispatcher()
	store := newMemoryIdempotencyStore()
	return &processorFixture{
		repo:       repo,
		dispatcher: dispatcher,
		store:      store,
		processor:  NewProcessor(repo, dispatcher, store, DefaultProcessorConfig(), zap.NewNop()),
		queue:      NewQueueService(repo),
		tenantID:   uuid.New(),
	}
}

func (fx *processorFixture) enqueueSale(t *testing.T, key string) {
	t.Helper()
	req := appsales.ProcessSaleRequest{
		LocationID: uuid.New(),
		OperatorID: uuid.New(),
		Lines: []appsales.SaleLineRequest{{
			ProductID: uuid.New(),
			Quantity:  decimal.NewFromInt(1),
		}},
		AmountPaid:     decimal.NewFromInt(100),
		PaymentMethod:  "cash",
		IdempotencyKey: &key,
	}
	_, err := fx.queue.EnqueueSale(context.Background(), fx.tenantID, req)
	require.NoError(t, err)
}

func TestQueueService_Enqueue(t *testing.T) {
	ctx := context.Background()

	t.Run("enqueue is idempotent on the key", func(t *testing.T) {
		fx := newProcessorFixture()
		fx.enqueueSale(t, "batch-1-op-1")
		fx.enqueueSale(t, "batch-1-op-1")

		counts, err := fx.queue.QueueStatus(ctx, fx.tenantID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), counts[string(syncqueue.StatusPending)])
	})

	t.Run("offline sale without a key is rejected", func(t *testing.T) {
		fx := newProcessorFixture()

		_, err := fx.queue.EnqueueSale(ctx, fx.tenantID, appsales.ProcessSaleRequest{
			LocationID:    uuid.New(),
			OperatorID:    uuid.New(),
			Lines:         []appsales.SaleLineRequest{{ProductID: uuid.New(), Quantity: decimal.NewFromInt(1)}},
			PaymentMethod: "cash",
		})
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("payload survives the round trip", func(t *testing.T) {
		fx := newProcessorFixture()
		fx.enqueueSale(t, "key-rt")

		item, err := fx.repo.FindByIdempotencyKey(ctx, fx.tenantID, "key-rt")
		require.NoError(t, err)
		var req appsales.ProcessSaleRequest
		require.NoError(t, json.Unmarshal(item.Payload, &req))
		assert.Equal(t, "cash", req.PaymentMethod)
		require.Len(t, req.Lines, 1)
	})
}

func TestProcessor_DrainTenant(t *testing.T) {
	ctx := context.Background()

	t.Run("replays items strictly in enqueue order", func(t *testing.T) {
		fx := newProcessorFixture()
		fx.enqueueSale(t, "op-1")
		fx.enqueueSale(t, "op-2")
		fx.enqueueSale(t, "op-3")

		fx.processor.drainTenant(ctx, fx.tenantID)

		assert.Equal(t, []string{"op-1", "op-2", "op-3"}, fx.dispatcher.dispatched)
		counts, err := fx.queue.QueueStatus(ctx, fx.tenantID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), counts[string(syncqueue.StatusCompleted)])
	})

	t.Run("transient failure backs off and blocks the tenant queue", func(t *testing.T) {
		fx := newProcessorFixture()
		fx.enqueueSale(t, "op-1")
		fx.enqueueSale(t, "op-2")
		fx.dispatcher.failNext("op-1", shared.NewConflictError("row contention"))

		fx.processor.drainTenant(ctx, fx.tenantID)

		assert.Equal(t, []string{"op-1"}, fx.dispatcher.dispatched,
			"op-2 must not replay before op-1 succeeds")
		assert.Equal(t, syncqueue.StatusFailed, fx.repo.statusOf(t, fx.tenantID, "op-1"))
		assert.Equal(t, syncqueue.StatusPending, fx.repo.statusOf(t, fx.tenantID, "op-2"))

		item, err := fx.repo.FindByIdempotencyKey(ctx, fx.tenantID, "op-1")
		require.NoError(t, err)
		assert.Equal(t, 1, item.Attempts)
		require.NotNil(t, item.NextAttemptAt)
		assert.True(t, item.NextAttemptAt.After(time.Now()), "backoff must schedule the retry in the future")
	})

	t.Run("retry after backoff succeeds and unblocks the queue", func(t *testing.T) {
		fx := newProcessorFixture()
		fx.enqueueSale(t, "op-1")
		fx.enqueueSale(t, "op-2")
		fx.dispatcher.failNext("op-1", shared.NewConflictError("row contention"))

		fx.processor.drainTenant(ctx, fx.tenantID)

		// Simulate the backoff window elapsing
		item, err := fx.repo.FindByIdempotencyKey(ctx, fx.tenantID, "op-1")
		require.NoError(t, err)
		past := time.Now().Add(-time.Second)
		item.NextAttemptAt = &past
		require.NoError(t, fx.repo.Update(ctx, item))

		fx.processor.drainTenant(ctx, fx.tenantID)

		assert.Equal(t, []string{"op-1", "op-1", "op-2"}, fx.dispatcher.dispatched)
		assert.Equal(t, syncqueue.StatusCompleted, fx.repo.statusOf(t, fx.tenantID, "op-1"))
		assert.Equal(t, syncqueue.StatusCompleted, fx.repo.statusOf(t, fx.tenantID, "op-2"))
	})

	t.Run("permanent failure dead-letters immediately without blocking", func(t *testing.T) {
		fx := newProcessorFixture()
		fx.enqueueSale(t, "op-1")
		fx.enqueueSale(t, "op-2")
		fx.dispatcher.failNext("op-1", shared.NewValidationError("unknown product"))

		fx.processor.drainTenant(ctx, fx.tenantID)
		fx.processor.drainTenant(ctx, fx.tenantID)

		assert.Equal(t, syncqueue.StatusDead, fx.repo.statusOf(t, fx.tenantID, "op-1"))
		assert.Equal(t, syncqueue.StatusCompleted, fx.repo.statusOf(t, fx.tenantID, "op-2"))

		dead, total, err := fx.queue.ListDeadLetters(ctx, fx.tenantID, 1, 20)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, dead, 1)
		assert.Equal(t, "op-1", dead[0].IdempotencyKey)
		assert.Contains(t, dead[0].LastError, "unknown product")
	})

	t.Run("exhausted retries dead-letter the item", func(t *testing.T) {
		fx := newProcessorFixture()
		fx.enqueueSale(t, "op-1")
		transient := shared.NewConflictError("row contention")
		fx.dispatcher.failNext("op-1", transient, transient, transient, transient, transient)

		for i := 0; i < syncqueue.DefaultMaxAttempts; i++ {
			item, err := fx.repo.FindByIdempotencyKey(ctx, fx.tenantID, "op-1")
			require.NoError(t, err)
			if item.NextAttemptAt != nil {
				past := time.Now().Add(-time.Second)
				item.NextAttemptAt = &past
				require.NoError(t, fx.repo.Update(ctx, item))
			}
			fx.processor.drainTenant(ctx, fx.tenantID)
		}

		assert.Equal(t, syncqueue.StatusDead, fx.repo.statusOf(t, fx.tenantID, "op-1"))
		assert.Len(t, fx.dispatcher.dispatched, syncqueue.DefaultMaxAttempts)
	})

	t.Run("requeued dead letter replays again", func(t *testing.T) {
		fx := newProcessorFixture()
		fx.enqueueSale(t, "op-1")
		fx.dispatcher.failNext("op-1", shared.NewValidationError("location misconfigured"))

		fx.processor.drainTenant(ctx, fx.tenantID)
		require.Equal(t, syncqueue.StatusDead, fx.repo.statusOf(t, fx.tenantID, "op-1"))

		_, err := fx.queue.RequeueDeadLetter(ctx, fx.tenantID, "op-1")
		require.NoError(t, err)

		fx.processor.drainTenant(ctx, fx.tenantID)
		assert.Equal(t, syncqueue.StatusCompleted, fx.repo.statusOf(t, fx.tenantID, "op-1"))
	})

	t.Run("requeue of a live item conflicts", func(t *testing.T) {
		fx := newProcessorFixture()
		fx.enqueueSale(t, "op-1")

		_, err := fx.queue.RequeueDeadLetter(ctx, fx.tenantID, "op-1")
		assert.True(t, shared.IsConflict(err))
	})

	t.Run("already processed key completes without dispatching", func(t *testing.T) {
		fx := newProcessorFixture()
		fx.enqueueSale(t, "op-1")
		item, err := fx.repo.FindByIdempotencyKey(ctx, fx.tenantID, "op-1")
		require.NoError(t, err)
		_, err = fx.store.MarkProcessed(ctx, fx.processor.storeKey(item), time.Hour)
		require.NoError(t, err)

		fx.processor.drainTenant(ctx, fx.tenantID)

		assert.Empty(t, fx.dispatcher.dispatched, "replay must be a no-op")
		assert.Equal(t, syncqueue.StatusCompleted, fx.repo.statusOf(t, fx.tenantID, "op-1"))
	})
}

func TestProcessor_Poll(t *testing.T) {
	t.Run("tenants drain independently", func(t *testing.T) {
		fx := newProcessorFixture()
		otherTenant := uuid.New()

		fx.enqueueSale(t, "a-1")
		key := "b-1"
		req := appsales.ProcessSaleRequest{
			LocationID:     uuid.New(),
			OperatorID:     uuid.New(),
			Lines:          []appsales.SaleLineRequest{{ProductID: uuid.New(), Quantity: decimal.NewFromInt(1)}},
			AmountPaid:     decimal.NewFromInt(50),
			PaymentMethod:  "cash",
			IdempotencyKey: &key,
		}
		_, err := fx.queue.EnqueueSale(context.Background(), otherTenant, req)
		require.NoError(t, err)

		fx.processor.poll(context.Background())
		fx.processor.wg.Wait()

		assert.Equal(t, syncqueue.StatusCompleted, fx.repo.statusOf(t, fx.tenantID, "a-1"))
		assert.Equal(t, syncqueue.StatusCompleted, fx.repo.statusOf(t, otherTenant, "b-1"))
	})
}
