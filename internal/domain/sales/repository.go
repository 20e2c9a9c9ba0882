package sales

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/retailcore/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// SaleRepository defines persistence for the Sale aggregate
type SaleRepository interface {
	// FindByID finds a sale (with items) by ID within a tenant
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Sale, error)

	// FindByNumber finds a sale by its sale number within a tenant
	FindByNumber(ctx context.Context, tenantID uuid.UUID, saleNumber string) (*Sale, error)

	// FindByIdempotencyKey finds a previously committed sale for a caller
	// supplied idempotency key. Returns ErrNotFound when no sale exists.
	FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*Sale, error)

	// FindAllForTenant lists sales for a tenant
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Sale, error)

	// Create persists a new sale header plus its items
	Create(ctx context.Context, sale *Sale) error

	// SaveWithLock updates the sale header with an optimistic version check
	SaveWithLock(ctx context.Context, sale *Sale) error

	// SumCashByShift returns the sum of totals of completed cash sales
	// attached to a shift. Used for cash reconciliation at shift close;
	// always computed from the sale rows, never from a running counter.
	SumCashByShift(ctx context.Context, tenantID, shiftID uuid.UUID) (decimal.Decimal, error)
}

// NumberSequenceRepository allocates collision-free sale numbers. The
// allocation must happen inside the same transaction as the sale commit so a
// rollback releases nothing but an unused (gapped) number.
type NumberSequenceRepository interface {
	// Next returns the next sale number for the tenant and day, in the form
	// <prefix>-<YYYYMMDD>-<NNNN>. Two concurrent callers never receive the
	// same number.
	Next(ctx context.Context, tenantID uuid.UUID, prefix string, day time.Time) (string, error)
}
