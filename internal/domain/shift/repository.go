package shift

import (
	"context"

	"github.com/google/uuid"
	"github.com/retailcore/backend/internal/domain/shared"
)

// ShiftRepository defines persistence for shifts
type ShiftRepository interface {
	// FindByID finds a shift by ID within a tenant
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Shift, error)

	// FindOpenByOperator returns the operator's open shift, or ErrNotFound
	// when the operator has none
	FindOpenByOperator(ctx context.Context, tenantID, operatorID uuid.UUID) (*Shift, error)

	// FindAllForTenant lists shifts for a tenant
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Shift, error)

	// Create persists a newly opened shift
	Create(ctx context.Context, s *Shift) error

	// SaveWithLock updates a shift with an optimistic version check
	SaveWithLock(ctx context.Context, s *Shift) error
}
