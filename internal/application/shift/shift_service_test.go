package shift

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/retailcore/backend/internal/domain/sales"
	"github.com/retailcore/backend/internal/domain/shared"
	"github.com/retailcore/backend/internal/domain/shift"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{events: make([]shared.DomainEvent, 0)}
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *MockEventPublisher) GetEventsByType(eventType string) []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]shared.DomainEvent, 0)
	for _, e := range m.events {
		if e.EventType() == eventType {
			result = append(result, e)
		}
	}
	return result
}

// fakeShiftStore backs the shift repository and the cash sum lookup
type fakeShiftStore struct {
	shifts   map[uuid.UUID]*shift.Shift
	cashSums map[uuid.UUID]decimal.Decimal // shift ID -> committed cash sales
}

func newFakeShiftStore() *fakeShiftStore {
	return &fakeShiftStore{
		shifts:   make(map[uuid.UUID]*shift.Shift),
		cashSums: make(map[uuid.UUID]decimal.Decimal),
	}
}

func (f *fakeShiftStore) Shifts() shift.ShiftRepository { return &fakeShiftRepo{f} }
func (f *fakeShiftStore) Sales() sales.SaleRepository   { return &fakeCashSumRepo{f} }

// fakeShiftRepo implements shift.ShiftRepository
type fakeShiftRepo struct{ store *fakeShiftStore }

func (r *fakeShiftRepo) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*shift.Shift, error) {
	s, ok := r.store.shifts[id]
	if !ok || s.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeShiftRepo) FindOpenByOperator(ctx context.Context, tenantID, operatorID uuid.UUID) (*shift.Shift, error) {
	for _, s := range r.store.shifts {
		if s.TenantID == tenantID && s.OperatorID == operatorID && s.IsOpen() {
			cp := *s
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeShiftRepo) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]shift.Shift, error) {
	var result []shift.Shift
	for _, s := range r.store.shifts {
		if s.TenantID == tenantID {
			result = append(result, *s)
		}
	}
	return result, nil
}

func (r *fakeShiftRepo) Create(ctx context.Context, s *shift.Shift) error {
	cp := *s
	r.store.shifts[s.ID] = &cp
	return nil
}

func (r *fakeShiftRepo) SaveWithLock(ctx context.Context, s *shift.Shift) error {
	stored, ok := r.store.shifts[s.ID]
	if !ok || stored.Version != s.Version-1 {
		return shared.NewConflictError("shift was modified by another transaction")
	}
	cp := *s
	r.store.shifts[s.ID] = &cp
	return nil
}

// fakeCashSumRepo implements the one sale repository call the shift flow
// makes; everything else is unreachable from these tests.
type fakeCashSumRepo struct{ store *fakeShiftStore }

func (r *fakeCashSumRepo) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*sales.Sale, error) {
	return nil, shared.ErrNotFound
}

func (r *fakeCashSumRepo) FindByNumber(ctx context.Context, tenantID uuid.UUID, saleNumber string) (*sales.Sale, error) {
	return nil, shared.ErrNotFound
}

func (r *fakeCashSumRepo) FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*sales.Sale, error) {
	return nil, shared.ErrNotFound
}

func (r *fakeCashSumRepo) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]sales.Sale, error) {
	return nil, nil
}

func (r *fakeCashSumRepo) Create(ctx context.Context, sale *sales.Sale) error { return nil }

func (r *fakeCashSumRepo) SaveWithLock(ctx context.Context, sale *sales.Sale) error { return nil }

func (r *fakeCashSumRepo) SumCashByShift(ctx context.Context, tenantID, shiftID uuid.UUID) (decimal.Decimal, error) {
	sum, ok := r.store.cashSums[shiftID]
	if !ok {
		return decimal.Zero, nil
	}
	return sum, nil
}

// fakeScope runs fn directly; shift flows have no partial writes to roll back
// that these tests observe
type fakeScope struct{ store *fakeShiftStore }

func (s *fakeScope) Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s.store)
}

func newTestService() (*ShiftService, *fakeShiftStore, *MockEventPublisher) {
	store := newFakeShiftStore()
	svc := NewShiftService(&fakeScope{store: store}, store.Shifts())
	publisher := NewMockEventPublisher()
	svc.SetEventPublisher(publisher)
	return svc, store, publisher
}

func TestShiftService_OpenShift(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	locationID := uuid.New()

	t.Run("opens a shift with opening cash", func(t *testing.T) {
		svc, _, _ := newTestService()

		resp, err := svc.OpenShift(ctx, tenantID, OpenShiftRequest{
			OperatorID:  uuid.New(),
			LocationID:  locationID,
			OpeningCash: decimal.RequireFromString("100"),
		})
		require.NoError(t, err)
		assert.Equal(t, string(shift.StatusOpen), resp.Status)
		assert.Equal(t, "100", resp.OpeningCash.String())
		assert.False(t, resp.OpenedAt.IsZero())
	})

	t.Run("second open shift for the same operator conflicts", func(t *testing.T) {
		svc, _, _ := newTestService()
		operatorID := uuid.New()

		_, err := svc.OpenShift(ctx, tenantID, OpenShiftRequest{
			OperatorID: operatorID, LocationID: locationID,
			OpeningCash: decimal.Zero,
		})
		require.NoError(t, err)

		_, err = svc.OpenShift(ctx, tenantID, OpenShiftRequest{
			OperatorID: operatorID, LocationID: locationID,
			OpeningCash: decimal.Zero,
		})
		assert.True(t, shared.IsConflict(err))
	})

	t.Run("different operators can hold open shifts side by side", func(t *testing.T) {
		svc, _, _ := newTestService()

		for i := 0; i < 2; i++ {
			_, err := svc.OpenShift(ctx, tenantID, OpenShiftRequest{
				OperatorID: uuid.New(), LocationID: locationID,
				OpeningCash: decimal.Zero,
			})
			require.NoError(t, err)
		}
	})

	t.Run("negative opening cash is rejected", func(t *testing.T) {
		svc, _, _ := newTestService()

		_, err := svc.OpenShift(ctx, tenantID, OpenShiftRequest{
			OperatorID: uuid.New(), LocationID: locationID,
			OpeningCash: decimal.RequireFromString("-1"),
		})
		assert.True(t, shared.IsValidation(err))
	})
}

func TestShiftService_CloseShift(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	locationID := uuid.New()

	open := func(t *testing.T, svc *ShiftService, openingCash string) *ShiftResponse {
		t.Helper()
		resp, err := svc.OpenShift(ctx, tenantID, OpenShiftRequest{
			OperatorID:  uuid.New(),
			LocationID:  locationID,
			OpeningCash: decimal.RequireFromString(openingCash),
		})
		require.NoError(t, err)
		return resp
	}

	t.Run("expected cash is opening cash plus committed cash sales", func(t *testing.T) {
		svc, store, publisher := newTestService()
		opened := open(t, svc, "100")
		store.cashSums[opened.ID] = decimal.RequireFromString("450.50")

		closed, err := svc.CloseShift(ctx, tenantID, CloseShiftRequest{
			ShiftID:     opened.ID,
			ClosingCash: decimal.RequireFromString("545"),
		})
		require.NoError(t, err)

		assert.Equal(t, string(shift.StatusClosed), closed.Status)
		assert.Equal(t, "550.50", closed.ExpectedCash.StringFixed(2))
		assert.Equal(t, "-5.50", closed.CashDifference.StringFixed(2))
		require.NotNil(t, closed.ClosedAt)
		assert.WithinDuration(t, time.Now(), *closed.ClosedAt, time.Minute)

		events := publisher.GetEventsByType(shift.EventTypeShiftClosed)
		assert.Len(t, events, 1)
	})

	t.Run("cash difference never blocks the close", func(t *testing.T) {
		svc, store, _ := newTestService()
		opened := open(t, svc, "100")
		store.cashSums[opened.ID] = decimal.RequireFromString("1000")

		closed, err := svc.CloseShift(ctx, tenantID, CloseShiftRequest{
			ShiftID:     opened.ID,
			ClosingCash: decimal.Zero,
		})
		require.NoError(t, err)
		assert.Equal(t, "-1100.00", closed.CashDifference.StringFixed(2))
	})

	t.Run("closing twice conflicts", func(t *testing.T) {
		svc, _, _ := newTestService()
		opened := open(t, svc, "0")

		req := CloseShiftRequest{ShiftID: opened.ID, ClosingCash: decimal.Zero}
		_, err := svc.CloseShift(ctx, tenantID, req)
		require.NoError(t, err)
		_, err = svc.CloseShift(ctx, tenantID, req)
		assert.True(t, shared.IsConflict(err))
	})

	t.Run("operator can open a new shift after closing", func(t *testing.T) {
		svc, _, _ := newTestService()
		operatorID := uuid.New()

		opened, err := svc.OpenShift(ctx, tenantID, OpenShiftRequest{
			OperatorID: operatorID, LocationID: locationID, OpeningCash: decimal.Zero,
		})
		require.NoError(t, err)
		_, err = svc.CloseShift(ctx, tenantID, CloseShiftRequest{ShiftID: opened.ID, ClosingCash: decimal.Zero})
		require.NoError(t, err)

		_, err = svc.OpenShift(ctx, tenantID, OpenShiftRequest{
			OperatorID: operatorID, LocationID: locationID, OpeningCash: decimal.Zero,
		})
		assert.NoError(t, err)
	})

	t.Run("unknown shift fails with not found", func(t *testing.T) {
		svc, _, _ := newTestService()

		_, err := svc.CloseShift(ctx, tenantID, CloseShiftRequest{ShiftID: uuid.New(), ClosingCash: decimal.Zero})
		assert.True(t, shared.IsNotFound(err))
	})

	t.Run("negative closing cash is rejected", func(t *testing.T) {
		svc, _, _ := newTestService()
		opened := open(t, svc, "0")

		_, err := svc.CloseShift(ctx, tenantID, CloseShiftRequest{
			ShiftID:     opened.ID,
			ClosingCash: decimal.RequireFromString("-10"),
		})
		assert.True(t, shared.IsValidation(err))
	})
}
