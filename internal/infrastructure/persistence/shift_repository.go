package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/retailcore/backend/internal/domain/shared"
	"github.com/retailcore/backend/internal/domain/shift"
	"gorm.io/gorm"
)

// GormShiftRepository implements ShiftRepository using GORM
type GormShiftRepository struct {
	db *gorm.DB
}

// NewGormShiftRepository creates a new GormShiftRepository
func NewGormShiftRepository(db *gorm.DB) *GormShiftRepository {
	return &GormShiftRepository{db: db}
}

// FindByID finds a shift by ID within a tenant
func (r *GormShiftRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*shift.Shift, error) {
	var s shift.Shift
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// FindOpenByOperator returns the operator's open shift
func (r *GormShiftRepository) FindOpenByOperator(ctx context.Context, tenantID, operatorID uuid.UUID) (*shift.Shift, error) {
	var s shift.Shift
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND operator_id = ? AND status = ?", tenantID, operatorID, shift.StatusOpen).
		First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// FindAllForTenant lists shifts for a tenant
func (r *GormShiftRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]shift.Shift, error) {
	query := r.db.WithContext(ctx).Model(&shift.Shift{}).
		Where("tenant_id = ?", tenantID)

	for key, value := range filter.Filters {
		switch key {
		case "operator_id":
			query = query.Where("operator_id = ?", value)
		case "location_id":
			query = query.Where("location_id = ?", value)
		case "status":
			query = query.Where("status = ?", value)
		}
	}

	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.Limit())
	}
	if filter.OrderBy != "" {
		field := ValidateSortField(filter.OrderBy, ShiftSortFields, "opened_at")
		orderDir := "ASC"
		if strings.ToLower(filter.OrderDir) == "desc" {
			orderDir = "DESC"
		}
		query = query.Order(field + " " + orderDir)
	} else {
		query = query.Order("opened_at DESC")
	}

	var shifts []shift.Shift
	if err := query.Find(&shifts).Error; err != nil {
		return nil, err
	}
	return shifts, nil
}

// Create persists a newly opened shift
func (r *GormShiftRepository) Create(ctx context.Context, s *shift.Shift) error {
	return r.db.WithContext(ctx).Create(s).Error
}

// SaveWithLock updates a shift with optimistic locking (checks version)
func (r *GormShiftRepository) SaveWithLock(ctx context.Context, s *shift.Shift) error {
	result := r.db.WithContext(ctx).
		Model(s).
		Where("id = ? AND version = ?", s.ID, s.Version-1).
		Updates(map[string]interface{}{
			"status":          s.Status,
			"closing_cash":    s.ClosingCash,
			"expected_cash":   s.ExpectedCash,
			"cash_difference": s.CashDifference,
			"closed_at":       s.ClosedAt,
			"notes":           s.Notes,
			"version":         s.Version,
			"updated_at":      s.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewConflictError("shift was modified by another transaction")
	}
	return nil
}

// Ensure GormShiftRepository implements ShiftRepository
var _ shift.ShiftRepository = (*GormShiftRepository)(nil)
