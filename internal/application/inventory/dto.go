package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/retailcore/backend/internal/domain/inventory"
	"github.com/shopspring/decimal"
)

// AdjustStockRequest represents a manual stock adjustment
type AdjustStockRequest struct {
	LocationID   uuid.UUID       `json:"location_id" binding:"required"`
	ProductID    uuid.UUID       `json:"product_id" binding:"required"`
	Delta        decimal.Decimal `json:"delta" binding:"required"` // Signed; positive receives, negative removes
	UnitCost     decimal.Decimal `json:"unit_cost"`                // Only meaningful for positive deltas
	MovementType string          `json:"movement_type"`            // adjustment (default), damage or opening
	Reason       string          `json:"reason"`
	OperatorID   uuid.UUID       `json:"operator_id" binding:"required"`
	ReferenceID  *uuid.UUID      `json:"reference_id,omitempty"`
}

// TransferStockRequest moves stock between two locations of the same tenant
type TransferStockRequest struct {
	FromLocationID uuid.UUID       `json:"from_location_id" binding:"required"`
	ToLocationID   uuid.UUID       `json:"to_location_id" binding:"required"`
	ProductID      uuid.UUID       `json:"product_id" binding:"required"`
	Quantity       decimal.Decimal `json:"quantity" binding:"required"`
	Reason         string          `json:"reason"`
	OperatorID     uuid.UUID       `json:"operator_id" binding:"required"`
}

// ReserveStockRequest holds quantity against a pending order
type ReserveStockRequest struct {
	LocationID uuid.UUID       `json:"location_id" binding:"required"`
	ProductID  uuid.UUID       `json:"product_id" binding:"required"`
	Quantity   decimal.Decimal `json:"quantity" binding:"required"`
}

// ReleaseStockRequest returns a held quantity to availability
type ReleaseStockRequest struct {
	LocationID uuid.UUID       `json:"location_id" binding:"required"`
	ProductID  uuid.UUID       `json:"product_id" binding:"required"`
	Quantity   decimal.Decimal `json:"quantity" binding:"required"`
}

// SetReorderLevelRequest updates the reorder threshold of a stock level
type SetReorderLevelRequest struct {
	LocationID   uuid.UUID       `json:"location_id" binding:"required"`
	ProductID    uuid.UUID       `json:"product_id" binding:"required"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
}

// StockLevelResponse represents a stock level in API responses
type StockLevelResponse struct {
	ID                uuid.UUID       `json:"id"`
	TenantID          uuid.UUID       `json:"tenant_id"`
	LocationID        uuid.UUID       `json:"location_id"`
	ProductID         uuid.UUID       `json:"product_id"`
	OnHandQuantity    decimal.Decimal `json:"on_hand_quantity"`
	ReservedQuantity  decimal.Decimal `json:"reserved_quantity"`
	AvailableQuantity decimal.Decimal `json:"available_quantity"`
	AverageCost       decimal.Decimal `json:"average_cost"`
	ReorderLevel      decimal.Decimal `json:"reorder_level"`
	IsBelowReorder    bool            `json:"is_below_reorder"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Version           int             `json:"version"`
}

// MovementResponse represents a ledger entry in API responses
type MovementResponse struct {
	ID            uuid.UUID       `json:"id"`
	LocationID    uuid.UUID       `json:"location_id"`
	ProductID     uuid.UUID       `json:"product_id"`
	Type          string          `json:"type"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	ReferenceID   *uuid.UUID      `json:"reference_id,omitempty"`
	CorrelationID *uuid.UUID      `json:"correlation_id,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	CreatedBy     uuid.UUID       `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ReconciliationResponse reports the ledger check for one location-product pair
type ReconciliationResponse struct {
	LocationID uuid.UUID       `json:"location_id"`
	ProductID  uuid.UUID       `json:"product_id"`
	OnHand     decimal.Decimal `json:"on_hand"`
	LedgerSum  decimal.Decimal `json:"ledger_sum"`
	Drift      decimal.Decimal `json:"drift"` // on_hand minus ledger_sum; zero when consistent
	Consistent bool            `json:"consistent"`
}

// ToStockLevelResponse converts a domain stock level to a response DTO
func ToStockLevelResponse(level *inventory.StockLevel) StockLevelResponse {
	return StockLevelResponse{
		ID:                level.ID,
		TenantID:          level.TenantID,
		LocationID:        level.LocationID,
		ProductID:         level.ProductID,
		OnHandQuantity:    level.OnHandQuantity,
		ReservedQuantity:  level.ReservedQuantity,
		AvailableQuantity: level.AvailableQuantity(),
		AverageCost:       level.AverageCost,
		ReorderLevel:      level.ReorderLevel,
		IsBelowReorder:    level.IsBelowReorder(),
		UpdatedAt:         level.UpdatedAt,
		Version:           level.Version,
	}
}

// ToMovementResponse converts a domain movement to a response DTO
func ToMovementResponse(m *inventory.StockMovement) MovementResponse {
	return MovementResponse{
		ID:            m.ID,
		LocationID:    m.LocationID,
		ProductID:     m.ProductID,
		Type:          m.Type.String(),
		Quantity:      m.Quantity,
		UnitCost:      m.UnitCost,
		ReferenceID:   m.ReferenceID,
		CorrelationID: m.CorrelationID,
		Reason:        m.Reason,
		CreatedBy:     m.CreatedBy,
		CreatedAt:     m.CreatedAt,
	}
}
