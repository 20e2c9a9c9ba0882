package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/retailcore/backend/internal/domain/sales"
	"github.com/retailcore/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormSaleRepository implements SaleRepository using GORM
type GormSaleRepository struct {
	db *gorm.DB
}

// NewGormSaleRepository creates a new GormSaleRepository
func NewGormSaleRepository(db *gorm.DB) *GormSaleRepository {
	return &GormSaleRepository{db: db}
}

// FindByID finds a sale (with items) by ID within a tenant
func (r *GormSaleRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*sales.Sale, error) {
	var sale sales.Sale
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&sale).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &sale, nil
}

// FindByNumber finds a sale by its sale number within a tenant
func (r *GormSaleRepository) FindByNumber(ctx context.Context, tenantID uuid.UUID, saleNumber string) (*sales.Sale, error) {
	var sale sales.Sale
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("tenant_id = ? AND sale_number = ?", tenantID, saleNumber).
		First(&sale).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &sale, nil
}

// FindByIdempotencyKey finds a previously committed sale for an idempotency key
func (r *GormSaleRepository) FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*sales.Sale, error) {
	var sale sales.Sale
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("tenant_id = ? AND idempotency_key = ?", tenantID, key).
		First(&sale).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &sale, nil
}

// FindAllForTenant lists sales for a tenant
func (r *GormSaleRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]sales.Sale, error) {
	query := r.db.WithContext(ctx).Model(&sales.Sale{}).
		Preload("Items").
		Where("tenant_id = ?", tenantID)

	for key, value := range filter.Filters {
		switch key {
		case "location_id":
			query = query.Where("location_id = ?", value)
		case "operator_id":
			query = query.Where("operator_id = ?", value)
		case "shift_id":
			query = query.Where("shift_id = ?", value)
		case "status":
			query = query.Where("status = ?", value)
		case "payment_method":
			query = query.Where("payment_method = ?", value)
		case "from":
			query = query.Where("created_at >= ?", value)
		case "to":
			query = query.Where("created_at < ?", value)
		}
	}

	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.Limit())
	}
	if filter.OrderBy != "" {
		field := ValidateSortField(filter.OrderBy, SaleSortFields, "created_at")
		orderDir := "ASC"
		if strings.ToLower(filter.OrderDir) == "desc" {
			orderDir = "DESC"
		}
		query = query.Order(field + " " + orderDir)
	} else {
		query = query.Order("created_at DESC")
	}

	var result []sales.Sale
	if err := query.Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

// Create persists a new sale header plus its items. A unique index violation
// on the sale number or idempotency key surfaces as a conflict so the caller
// can re-check and retry.
func (r *GormSaleRepository) Create(ctx context.Context, sale *sales.Sale) error {
	if err := r.db.WithContext(ctx).Create(sale).Error; err != nil {
		if isDuplicateKey(err) {
			return shared.NewConflictError("sale with this number or idempotency key already exists")
		}
		return err
	}
	return nil
}

// SaveWithLock updates the sale header with optimistic locking (checks version)
func (r *GormSaleRepository) SaveWithLock(ctx context.Context, sale *sales.Sale) error {
	result := r.db.WithContext(ctx).
		Model(sale).
		Where("id = ? AND version = ?", sale.ID, sale.Version-1).
		Updates(map[string]interface{}{
			"status":      sale.Status,
			"voided_at":   sale.VoidedAt,
			"void_reason": sale.VoidReason,
			"version":     sale.Version,
			"updated_at":  sale.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewConflictError("sale was modified by another transaction")
	}
	return nil
}

// SumCashByShift returns the sum of totals of completed cash sales for a shift
func (r *GormSaleRepository) SumCashByShift(ctx context.Context, tenantID, shiftID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	if err := r.db.WithContext(ctx).
		Model(&sales.Sale{}).
		Select("COALESCE(SUM(total), 0)").
		Where("tenant_id = ? AND shift_id = ? AND status = ? AND payment_method = ?",
			tenantID, shiftID, sales.SaleStatusCompleted, sales.PaymentMethodCash).
		Scan(&sum).Error; err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

// isDuplicateKey reports whether an error is a unique index violation. GORM
// translates these for some dialects; the string checks cover postgres and
// sqlite when translation is off.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}

// Ensure GormSaleRepository implements SaleRepository
var _ sales.SaleRepository = (*GormSaleRepository)(nil)
