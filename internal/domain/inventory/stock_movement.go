package inventory

import (
	"github.com/google/uuid"
	"github.com/retailcore/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// MovementType classifies a stock movement in the audit ledger
type MovementType string

const (
	// MovementTypeSale is a stock decrement caused by a committed sale
	MovementTypeSale MovementType = "sale"
	// MovementTypeAdjustment is a manual stock correction (either sign)
	MovementTypeAdjustment MovementType = "adjustment"
	// MovementTypeDamage is a write-off of damaged stock
	MovementTypeDamage MovementType = "damage"
	// MovementTypeReturn is stock coming back in (sale void/refund)
	MovementTypeReturn MovementType = "return"
	// MovementTypeTransferOut is the source side of a location transfer
	MovementTypeTransferOut MovementType = "transfer_out"
	// MovementTypeTransferIn is the destination side of a location transfer
	MovementTypeTransferIn MovementType = "transfer_in"
	// MovementTypeOpening is the initial stock entry for a location-product
	MovementTypeOpening MovementType = "opening"
)

// String returns the string representation of MovementType
func (t MovementType) String() string {
	return string(t)
}

// IsValid returns true if the movement type is known
func (t MovementType) IsValid() bool {
	switch t {
	case MovementTypeSale,
		MovementTypeAdjustment,
		MovementTypeDamage,
		MovementTypeReturn,
		MovementTypeTransferOut,
		MovementTypeTransferIn,
		MovementTypeOpening:
		return true
	}
	return false
}

// StockMovement is one append-only row in the stock audit ledger. The signed
// Quantity is the delta applied to on-hand stock; for any location-product
// pair the sum of all deltas equals the current on-hand quantity. Movements
// are never updated or deleted - reversals append compensating rows.
type StockMovement struct {
	shared.BaseEntity
	TenantID      uuid.UUID       `gorm:"type:uuid;not null;index:idx_stock_movements_stock,priority:1"`
	LocationID    uuid.UUID       `gorm:"type:uuid;not null;index:idx_stock_movements_stock,priority:2"`
	ProductID     uuid.UUID       `gorm:"type:uuid;not null;index:idx_stock_movements_stock,priority:3"`
	Type          MovementType    `gorm:"type:varchar(20);not null"`
	Quantity      decimal.Decimal `gorm:"type:decimal(18,4);not null"` // Signed delta
	UnitCost      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ReferenceID   *uuid.UUID      `gorm:"type:uuid;index"` // Originating sale or document
	CorrelationID *uuid.UUID      `gorm:"type:uuid;index"` // Shared by both sides of a transfer
	Reason        string          `gorm:"type:varchar(255)"`
	CreatedBy     uuid.UUID       `gorm:"type:uuid;not null"`
}

// TableName returns the table name for GORM
func (StockMovement) TableName() string {
	return "stock_movements"
}

// NewStockMovement creates a new stock movement entry
func NewStockMovement(
	tenantID, locationID, productID uuid.UUID,
	movementType MovementType,
	quantity decimal.Decimal,
	createdBy uuid.UUID,
) (*StockMovement, error) {
	if !movementType.IsValid() {
		return nil, shared.NewValidationError("unknown movement type: " + string(movementType))
	}
	if quantity.IsZero() {
		return nil, shared.NewValidationError("movement quantity cannot be zero")
	}

	return &StockMovement{
		BaseEntity: shared.NewBaseEntity(),
		TenantID:   tenantID,
		LocationID: locationID,
		ProductID:  productID,
		Type:       movementType,
		Quantity:   quantity,
		CreatedBy:  createdBy,
	}, nil
}

// WithUnitCost attaches the unit cost the movement was valued at
func (m *StockMovement) WithUnitCost(cost decimal.Decimal) *StockMovement {
	m.UnitCost = cost
	return m
}

// WithReference links the movement to its originating document
func (m *StockMovement) WithReference(id uuid.UUID) *StockMovement {
	m.ReferenceID = &id
	return m
}

// WithCorrelation tags the movement with a transfer correlation ID
func (m *StockMovement) WithCorrelation(id uuid.UUID) *StockMovement {
	m.CorrelationID = &id
	return m
}

// WithReason records the free-form reason for the movement
func (m *StockMovement) WithReason(reason string) *StockMovement {
	m.Reason = reason
	return m
}
