package shift

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/retailcore/backend/internal/domain/shared"
	"github.com/retailcore/backend/internal/domain/shift"
	"github.com/shopspring/decimal"
)

// OpenShiftRequest starts a work session for an operator
type OpenShiftRequest struct {
	OperatorID  uuid.UUID       `json:"operator_id" binding:"required"`
	LocationID  uuid.UUID       `json:"location_id" binding:"required"`
	OpeningCash decimal.Decimal `json:"opening_cash"`
	Notes       string          `json:"notes"`
}

// CloseShiftRequest closes a work session with the counted cash
type CloseShiftRequest struct {
	ShiftID     uuid.UUID       `json:"shift_id" binding:"required"`
	ClosingCash decimal.Decimal `json:"closing_cash"`
	Notes       string          `json:"notes"`
}

// ShiftResponse represents a shift in API responses
type ShiftResponse struct {
	ID             uuid.UUID       `json:"id"`
	OperatorID     uuid.UUID       `json:"operator_id"`
	LocationID     uuid.UUID       `json:"location_id"`
	Status         string          `json:"status"`
	OpeningCash    decimal.Decimal `json:"opening_cash"`
	ClosingCash    decimal.Decimal `json:"closing_cash"`
	ExpectedCash   decimal.Decimal `json:"expected_cash"`
	CashDifference decimal.Decimal `json:"cash_difference"`
	OpenedAt       time.Time       `json:"opened_at"`
	ClosedAt       *time.Time      `json:"closed_at,omitempty"`
	Notes          string          `json:"notes,omitempty"`
}

// ToShiftResponse converts a domain shift to a response DTO
func ToShiftResponse(s *shift.Shift) ShiftResponse {
	return ShiftResponse{
		ID:             s.ID,
		OperatorID:     s.OperatorID,
		LocationID:     s.LocationID,
		Status:         string(s.Status),
		OpeningCash:    s.OpeningCash,
		ClosingCash:    s.ClosingCash,
		ExpectedCash:   s.ExpectedCash,
		CashDifference: s.CashDifference,
		OpenedAt:       s.OpenedAt,
		ClosedAt:       s.ClosedAt,
		Notes:          s.Notes,
	}
}

// ShiftService handles operator work sessions and cash reconciliation
type ShiftService struct {
	scope          TransactionScope
	shiftRepo      shift.ShiftRepository
	eventPublisher shared.EventPublisher
}

// NewShiftService creates a new ShiftService
func NewShiftService(scope TransactionScope, shiftRepo shift.ShiftRepository) *ShiftService {
	return &ShiftService{scope: scope, shiftRepo: shiftRepo}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *ShiftService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *ShiftService) publishEvents(ctx context.Context, events ...shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	_ = s.eventPublisher.Publish(ctx, events...)
}

// OpenShift opens a shift for an operator. An operator can hold at most one
// open shift; a second open attempt fails with Conflict.
func (s *ShiftService) OpenShift(ctx context.Context, tenantID uuid.UUID, req OpenShiftRequest) (*ShiftResponse, error) {
	var opened *shift.Shift
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		_, err := repos.Shifts().FindOpenByOperator(ctx, tenantID, req.OperatorID)
		if err == nil {
			return shared.NewConflictError("operator already has an open shift")
		}
		if !shared.IsNotFound(err) {
			return err
		}

		opened, err = shift.Open(tenantID, req.OperatorID, req.LocationID, req.OpeningCash)
		if err != nil {
			return err
		}
		opened.Notes = req.Notes
		return repos.Shifts().Create(ctx, opened)
	})
	if err != nil {
		return nil, err
	}

	response := ToShiftResponse(opened)
	return &response, nil
}

// CloseShift closes a shift. Expected cash is always recomputed inside the
// transaction as opening cash plus the sum of committed cash sales attached
// to the shift; a cash difference is recorded but never blocks the close.
func (s *ShiftService) CloseShift(ctx context.Context, tenantID uuid.UUID, req CloseShiftRequest) (*ShiftResponse, error) {
	var (
		closed *shift.Shift
		events []shared.DomainEvent
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		found, err := repos.Shifts().FindByID(ctx, tenantID, req.ShiftID)
		if err != nil {
			return err
		}

		cashSales, err := repos.Sales().SumCashByShift(ctx, tenantID, found.ID)
		if err != nil {
			return err
		}
		expectedCash := found.OpeningCash.Add(cashSales)

		if err := found.Close(req.ClosingCash, expectedCash); err != nil {
			return err
		}
		if req.Notes != "" {
			found.Notes = req.Notes
		}
		if err := repos.Shifts().SaveWithLock(ctx, found); err != nil {
			return err
		}

		closed = found
		events = found.GetDomainEvents()
		found.ClearDomainEvents()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvents(ctx, events...)

	response := ToShiftResponse(closed)
	return &response, nil
}

// GetShift returns a shift by ID
func (s *ShiftService) GetShift(ctx context.Context, tenantID, shiftID uuid.UUID) (*ShiftResponse, error) {
	found, err := s.shiftRepo.FindByID(ctx, tenantID, shiftID)
	if err != nil {
		return nil, err
	}
	response := ToShiftResponse(found)
	return &response, nil
}

// GetOpenShift returns the operator's open shift, or NotFound
func (s *ShiftService) GetOpenShift(ctx context.Context, tenantID, operatorID uuid.UUID) (*ShiftResponse, error) {
	found, err := s.shiftRepo.FindOpenByOperator(ctx, tenantID, operatorID)
	if err != nil {
		return nil, err
	}
	response := ToShiftResponse(found)
	return &response, nil
}

// ListShifts lists shifts for a tenant
func (s *ShiftService) ListShifts(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]ShiftResponse, error) {
	found, err := s.shiftRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	responses := make([]ShiftResponse, 0, len(found))
	for i := range found {
		responses = append(responses, ToShiftResponse(&found[i]))
	}
	return responses, nil
}
