package shift

import (
	"time"

	"github.com/google/uuid"
	"github.com/retailcore/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Status represents the shift lifecycle: OPEN -> CLOSED, closed is terminal.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Shift is one operator work session at a location, used for cash
// reconciliation. An operator has at most one open shift at any time.
type Shift struct {
	shared.TenantAggregateRoot
	OperatorID     uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:idx_shifts_operator_open,where:status = 'open'"`
	LocationID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Status         Status          `gorm:"type:varchar(20);not null;default:'open'"`
	OpeningCash    decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	ClosingCash    decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
	ExpectedCash   decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
	CashDifference decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"` // Informational, never blocking
	OpenedAt       time.Time       `gorm:"not null"`
	ClosedAt       *time.Time
	Notes          string `gorm:"type:varchar(255)"`
}

// TableName returns the table name for GORM
func (Shift) TableName() string {
	return "shifts"
}

// Open starts a new shift for an operator at a location
func Open(tenantID, operatorID, locationID uuid.UUID, openingCash decimal.Decimal) (*Shift, error) {
	if operatorID == uuid.Nil {
		return nil, shared.NewValidationError("operator ID cannot be empty")
	}
	if locationID == uuid.Nil {
		return nil, shared.NewValidationError("location ID cannot be empty")
	}
	if openingCash.IsNegative() {
		return nil, shared.NewValidationError("opening cash cannot be negative")
	}

	return &Shift{
		TenantAggregateRoot: shared.NewTenantAggregateRootWithCreator(tenantID, operatorID),
		OperatorID:          operatorID,
		LocationID:          locationID,
		Status:              StatusOpen,
		OpeningCash:         openingCash,
		OpenedAt:            time.Now(),
	}, nil
}

// IsOpen returns true while the shift has not been closed
func (s *Shift) IsOpen() bool {
	return s.Status == StatusOpen
}

// Close transitions the shift to CLOSED. expectedCash must be recomputed by
// the caller from committed cash-method sale rows plus the opening cash; the
// cash difference is recorded as informational output only.
func (s *Shift) Close(closingCash, expectedCash decimal.Decimal) error {
	if s.Status == StatusClosed {
		return shared.NewConflictError("shift is already closed")
	}
	if closingCash.IsNegative() {
		return shared.NewValidationError("closing cash cannot be negative")
	}

	now := time.Now()
	s.Status = StatusClosed
	s.ClosingCash = closingCash
	s.ExpectedCash = expectedCash
	s.CashDifference = closingCash.Sub(expectedCash)
	s.ClosedAt = &now
	s.UpdatedAt = now
	s.IncrementVersion()

	s.AddDomainEvent(NewShiftClosedEvent(s))
	return nil
}
