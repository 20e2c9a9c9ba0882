package sales

import (
	"github.com/google/uuid"
	"github.com/retailcore/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Event types emitted by the sales domain
const (
	EventTypeSaleCompleted = "sale.completed"
	EventTypeSaleVoided    = "sale.voided"
)

// SaleCompletedEvent is emitted when a sale commits
type SaleCompletedEvent struct {
	shared.BaseDomainEvent
	SaleNumber    string          `json:"sale_number"`
	LocationID    uuid.UUID       `json:"location_id"`
	OperatorID    uuid.UUID       `json:"operator_id"`
	ShiftID       *uuid.UUID      `json:"shift_id,omitempty"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	ItemCount     int             `json:"item_count"`
}

// NewSaleCompletedEvent creates a SaleCompletedEvent
func NewSaleCompletedEvent(sale *Sale) *SaleCompletedEvent {
	return &SaleCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSaleCompleted, "Sale", sale.ID, sale.TenantID),
		SaleNumber:      sale.SaleNumber,
		LocationID:      sale.LocationID,
		OperatorID:      sale.OperatorID,
		ShiftID:         sale.ShiftID,
		Total:           sale.Total,
		PaymentMethod:   sale.PaymentMethod,
		ItemCount:       len(sale.Items),
	}
}

// SaleVoidedEvent is emitted when a completed sale is voided
type SaleVoidedEvent struct {
	shared.BaseDomainEvent
	SaleNumber string `json:"sale_number"`
	Reason     string `json:"reason"`
}

// NewSaleVoidedEvent creates a SaleVoidedEvent
func NewSaleVoidedEvent(sale *Sale, reason string) *SaleVoidedEvent {
	return &SaleVoidedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSaleVoided, "Sale", sale.ID, sale.TenantID),
		SaleNumber:      sale.SaleNumber,
		Reason:          reason,
	}
}
