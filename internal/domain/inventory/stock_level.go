package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/retailcore/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// StockLevel tracks stock for a specific product at a specific location.
// It is the aggregate root for all stock mutations; callers never write
// quantities directly. The composite identifier is LocationID + ProductID.
type StockLevel struct {
	shared.TenantAggregateRoot
	LocationID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stock_levels_location_product,priority:2"`
	ProductID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stock_levels_location_product,priority:3"`
	OnHandQuantity   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ReservedQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	AverageCost      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"` // Moving weighted average
	ReorderLevel     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (StockLevel) TableName() string {
	return "stock_levels"
}

// NewStockLevel creates a new stock level for a location-product combination
func NewStockLevel(tenantID, locationID, productID uuid.UUID) (*StockLevel, error) {
	if locationID == uuid.Nil {
		return nil, shared.NewValidationError("location ID cannot be empty")
	}
	if productID == uuid.Nil {
		return nil, shared.NewValidationError("product ID cannot be empty")
	}

	return &StockLevel{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		LocationID:          locationID,
		ProductID:           productID,
		OnHandQuantity:      decimal.Zero,
		ReservedQuantity:    decimal.Zero,
		AverageCost:         decimal.Zero,
		ReorderLevel:        decimal.Zero,
	}, nil
}

// AvailableQuantity is on-hand minus reserved. It is derived and is never
// persisted independently of its inputs.
func (s *StockLevel) AvailableQuantity() decimal.Decimal {
	return s.OnHandQuantity.Sub(s.ReservedQuantity)
}

// Increase adds quantity to on-hand stock and folds the incoming unit cost
// into the moving weighted average. Used for positive adjustments, transfers
// in and sale voids.
func (s *StockLevel) Increase(quantity, unitCost decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewValidationError("quantity must be positive")
	}
	if unitCost.IsNegative() {
		return shared.NewValidationError("unit cost cannot be negative")
	}

	oldQuantity := s.OnHandQuantity
	if oldQuantity.IsZero() || unitCost.IsZero() {
		if oldQuantity.IsZero() && !unitCost.IsZero() {
			s.AverageCost = unitCost
		}
	} else {
		totalValue := oldQuantity.Mul(s.AverageCost).Add(quantity.Mul(unitCost))
		s.AverageCost = totalValue.Div(oldQuantity.Add(quantity)).Round(4)
	}

	s.OnHandQuantity = s.OnHandQuantity.Add(quantity)
	s.touch()

	// A replenishment too small to clear the threshold still leaves the
	// stock in need of reordering.
	if s.IsBelowReorder() {
		s.AddDomainEvent(NewLowStockEvent(s))
	}
	return nil
}

// Decrease removes quantity from on-hand stock. The quantity must not exceed
// what is available (on-hand minus reserved), so reserved stock can never be
// consumed by an unrelated sale.
func (s *StockLevel) Decrease(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewValidationError("quantity must be positive")
	}
	if s.AvailableQuantity().LessThan(quantity) {
		return shared.NewInsufficientStockError(s.ProductID, s.AvailableQuantity(), quantity)
	}

	s.OnHandQuantity = s.OnHandQuantity.Sub(quantity)
	s.touch()

	if s.IsBelowReorder() {
		s.AddDomainEvent(NewLowStockEvent(s))
	}
	return nil
}

// Adjust applies a signed delta to on-hand stock. Positive deltas may carry
// a unit cost for the moving average; negative deltas must not drive either
// on-hand or available below zero.
func (s *StockLevel) Adjust(delta, unitCost decimal.Decimal) error {
	if delta.IsZero() {
		return shared.NewValidationError("adjustment delta cannot be zero")
	}
	if delta.IsPositive() {
		if err := s.Increase(delta, unitCost); err != nil {
			return err
		}
	} else {
		if err := s.Decrease(delta.Neg()); err != nil {
			return err
		}
	}
	return nil
}

// Reserve moves quantity from available to reserved for a pending order
func (s *StockLevel) Reserve(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewValidationError("quantity must be positive")
	}
	if s.AvailableQuantity().LessThan(quantity) {
		return shared.NewInsufficientStockError(s.ProductID, s.AvailableQuantity(), quantity)
	}
	s.ReservedQuantity = s.ReservedQuantity.Add(quantity)
	s.touch()
	return nil
}

// Release returns previously reserved quantity to available
func (s *StockLevel) Release(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewValidationError("quantity must be positive")
	}
	if s.ReservedQuantity.LessThan(quantity) {
		return shared.NewValidationError("cannot release more than is reserved")
	}
	s.ReservedQuantity = s.ReservedQuantity.Sub(quantity)
	s.touch()
	return nil
}

// SetReorderLevel sets the threshold below which low-stock alerts fire
func (s *StockLevel) SetReorderLevel(level decimal.Decimal) error {
	if level.IsNegative() {
		return shared.NewValidationError("reorder level cannot be negative")
	}
	s.ReorderLevel = level
	s.touch()
	return nil
}

// IsBelowReorder returns true when available stock has reached the reorder level
func (s *StockLevel) IsBelowReorder() bool {
	return s.ReorderLevel.IsPositive() && s.AvailableQuantity().LessThanOrEqual(s.ReorderLevel)
}

func (s *StockLevel) touch() {
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
}
