package inventory

import (
	"context"

	"github.com/google/uuid"
	"github.com/retailcore/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// StockLevelRepository defines persistence for the StockLevel aggregate
type StockLevelRepository interface {
	// FindByID finds a stock level by its ID within a tenant
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*StockLevel, error)

	// FindByLocationAndProduct finds the stock level for a location-product pair
	FindByLocationAndProduct(ctx context.Context, tenantID, locationID, productID uuid.UUID) (*StockLevel, error)

	// FindForUpdate behaves like FindByLocationAndProduct but takes a row lock
	// for the duration of the enclosing transaction where the dialect supports
	// it. Callers outside a transaction must not use it.
	FindForUpdate(ctx context.Context, tenantID, locationID, productID uuid.UUID) (*StockLevel, error)

	// FindBelowReorder returns stock levels at or below their reorder level.
	// A nil locationID means all locations of the tenant.
	FindBelowReorder(ctx context.Context, tenantID uuid.UUID, locationID *uuid.UUID, filter shared.Filter) ([]StockLevel, error)

	// FindByLocation returns all stock levels at a location
	FindByLocation(ctx context.Context, tenantID, locationID uuid.UUID, filter shared.Filter) ([]StockLevel, error)

	// Save creates or updates a stock level
	Save(ctx context.Context, level *StockLevel) error

	// SaveWithLock updates a stock level with an optimistic version check.
	// Returns a conflict error when the row was modified concurrently.
	SaveWithLock(ctx context.Context, level *StockLevel) error
}

// StockMovementRepository defines persistence for the append-only movement ledger
type StockMovementRepository interface {
	// Append persists one or more movements. Movements are immutable; there
	// is deliberately no update or delete.
	Append(ctx context.Context, movements ...*StockMovement) error

	// FindByStock returns the movement history for a location-product pair,
	// oldest first
	FindByStock(ctx context.Context, tenantID, locationID, productID uuid.UUID, filter shared.Filter) ([]StockMovement, error)

	// FindByCorrelation returns all movements sharing a transfer correlation ID
	FindByCorrelation(ctx context.Context, tenantID, correlationID uuid.UUID) ([]StockMovement, error)

	// FindByReference returns all movements originating from a document
	FindByReference(ctx context.Context, tenantID, referenceID uuid.UUID) ([]StockMovement, error)

	// SumDeltas returns the sum of signed quantities for a location-product
	// pair, used for ledger reconciliation against the on-hand quantity
	SumDeltas(ctx context.Context, tenantID, locationID, productID uuid.UUID) (decimal.Decimal, error)
}
