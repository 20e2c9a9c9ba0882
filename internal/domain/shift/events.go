package shift

import (
	"github.com/google/uuid"
	"github.com/retailcore/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// EventTypeShiftClosed is emitted when a shift closes
const EventTypeShiftClosed = "shift.closed"

// ShiftClosedEvent carries the cash reconciliation outcome of a closed shift
type ShiftClosedEvent struct {
	shared.BaseDomainEvent
	OperatorID     uuid.UUID       `json:"operator_id"`
	LocationID     uuid.UUID       `json:"location_id"`
	ExpectedCash   decimal.Decimal `json:"expected_cash"`
	ClosingCash    decimal.Decimal `json:"closing_cash"`
	CashDifference decimal.Decimal `json:"cash_difference"`
}

// NewShiftClosedEvent creates a ShiftClosedEvent
func NewShiftClosedEvent(s *Shift) *ShiftClosedEvent {
	return &ShiftClosedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeShiftClosed, "Shift", s.ID, s.TenantID),
		OperatorID:      s.OperatorID,
		LocationID:      s.LocationID,
		ExpectedCash:    s.ExpectedCash,
		ClosingCash:     s.ClosingCash,
		CashDifference:  s.CashDifference,
	}
}
