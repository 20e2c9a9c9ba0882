package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/retailcore/backend/internal/domain/inventory"
	"github.com/retailcore/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormStockMovementRepository implements StockMovementRepository using GORM.
// Movements are append-only; the repository exposes no update or delete.
type GormStockMovementRepository struct {
	db *gorm.DB
}

// NewGormStockMovementRepository creates a new GormStockMovementRepository
func NewGormStockMovementRepository(db *gorm.DB) *GormStockMovementRepository {
	return &GormStockMovementRepository{db: db}
}

// Append persists one or more movements
func (r *GormStockMovementRepository) Append(ctx context.Context, movements ...*inventory.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(movements).Error
}

// FindByStock returns the movement history for a location-product pair, oldest first
func (r *GormStockMovementRepository) FindByStock(ctx context.Context, tenantID, locationID, productID uuid.UUID, filter shared.Filter) ([]inventory.StockMovement, error) {
	query := r.db.WithContext(ctx).Model(&inventory.StockMovement{}).
		Where("tenant_id = ? AND location_id = ? AND product_id = ?", tenantID, locationID, productID).
		Order("created_at ASC, id ASC")

	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.Limit())
	}

	var movements []inventory.StockMovement
	if err := query.Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

// FindByCorrelation returns all movements sharing a transfer correlation ID
func (r *GormStockMovementRepository) FindByCorrelation(ctx context.Context, tenantID, correlationID uuid.UUID) ([]inventory.StockMovement, error) {
	var movements []inventory.StockMovement
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND correlation_id = ?", tenantID, correlationID).
		Order("created_at ASC").
		Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

// FindByReference returns all movements originating from a document
func (r *GormStockMovementRepository) FindByReference(ctx context.Context, tenantID, referenceID uuid.UUID) ([]inventory.StockMovement, error) {
	var movements []inventory.StockMovement
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND reference_id = ?", tenantID, referenceID).
		Order("created_at ASC").
		Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

// SumDeltas returns the sum of signed quantities for a location-product pair
func (r *GormStockMovementRepository) SumDeltas(ctx context.Context, tenantID, locationID, productID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	if err := r.db.WithContext(ctx).
		Model(&inventory.StockMovement{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("tenant_id = ? AND location_id = ? AND product_id = ?", tenantID, locationID, productID).
		Scan(&sum).Error; err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

// Ensure GormStockMovementRepository implements StockMovementRepository
var _ inventory.StockMovementRepository = (*GormStockMovementRepository)(nil)
