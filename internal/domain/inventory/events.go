package inventory

import (
	"github.com/google/uuid"
	"github.com/retailcore/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Event types emitted by the inventory domain
const (
	EventTypeLowStock      = "stock.low"
	EventTypeStockAdjusted = "stock.adjusted"
	EventTypeStockTransfer = "stock.transferred"
)

// LowStockEvent is emitted when available stock reaches the reorder level
type LowStockEvent struct {
	shared.BaseDomainEvent
	LocationID   uuid.UUID       `json:"location_id"`
	ProductID    uuid.UUID       `json:"product_id"`
	Available    decimal.Decimal `json:"available"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
}

// NewLowStockEvent creates a LowStockEvent from the current aggregate state
func NewLowStockEvent(level *StockLevel) *LowStockEvent {
	return &LowStockEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLowStock, "StockLevel", level.ID, level.TenantID),
		LocationID:      level.LocationID,
		ProductID:       level.ProductID,
		Available:       level.AvailableQuantity(),
		ReorderLevel:    level.ReorderLevel,
	}
}

// StockAdjustedEvent is emitted after a manual adjustment commits
type StockAdjustedEvent struct {
	shared.BaseDomainEvent
	LocationID uuid.UUID       `json:"location_id"`
	ProductID  uuid.UUID       `json:"product_id"`
	Delta      decimal.Decimal `json:"delta"`
	Reason     string          `json:"reason"`
}

// NewStockAdjustedEvent creates a StockAdjustedEvent
func NewStockAdjustedEvent(level *StockLevel, delta decimal.Decimal, reason string) *StockAdjustedEvent {
	return &StockAdjustedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockAdjusted, "StockLevel", level.ID, level.TenantID),
		LocationID:      level.LocationID,
		ProductID:       level.ProductID,
		Delta:           delta,
		Reason:          reason,
	}
}

// StockTransferredEvent is emitted after both sides of a transfer commit
type StockTransferredEvent struct {
	shared.BaseDomainEvent
	FromLocationID uuid.UUID       `json:"from_location_id"`
	ToLocationID   uuid.UUID       `json:"to_location_id"`
	ProductID      uuid.UUID       `json:"product_id"`
	Quantity       decimal.Decimal `json:"quantity"`
	CorrelationID  uuid.UUID       `json:"correlation_id"`
}

// NewStockTransferredEvent creates a StockTransferredEvent
func NewStockTransferredEvent(tenantID, fromLocation, toLocation, productID, correlationID uuid.UUID, quantity decimal.Decimal) *StockTransferredEvent {
	return &StockTransferredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockTransfer, "StockLevel", productID, tenantID),
		FromLocationID:  fromLocation,
		ToLocationID:    toLocation,
		ProductID:       productID,
		Quantity:        quantity,
		CorrelationID:   correlationID,
	}
}
