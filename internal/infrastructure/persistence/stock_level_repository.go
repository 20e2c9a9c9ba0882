package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/retailcore/backend/internal/domain/inventory"
	"github.com/retailcore/backend/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStockLevelRepository implements StockLevelRepository using GORM
type GormStockLevelRepository struct {
	db *gorm.DB
}

// NewGormStockLevelRepository creates a new GormStockLevelRepository
func NewGormStockLevelRepository(db *gorm.DB) *GormStockLevelRepository {
	return &GormStockLevelRepository{db: db}
}

// FindByID finds a stock level by its ID within a tenant
func (r *GormStockLevelRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*inventory.StockLevel, error) {
	var level inventory.StockLevel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&level).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &level, nil
}

// FindByLocationAndProduct finds the stock level for a location-product pair
func (r *GormStockLevelRepository) FindByLocationAndProduct(ctx context.Context, tenantID, locationID, productID uuid.UUID) (*inventory.StockLevel, error) {
	var level inventory.StockLevel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND location_id = ? AND product_id = ?", tenantID, locationID, productID).
		First(&level).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &level, nil
}

// FindForUpdate finds the stock level and takes a row lock for the enclosing
// transaction. SQLite has no row locks; its single-writer model serializes
// writers anyway.
func (r *GormStockLevelRepository) FindForUpdate(ctx context.Context, tenantID, locationID, productID uuid.UUID) (*inventory.StockLevel, error) {
	query := r.db.WithContext(ctx)
	if r.db.Dialector.Name() != "sqlite" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var level inventory.StockLevel
	if err := query.
		Where("tenant_id = ? AND location_id = ? AND product_id = ?", tenantID, locationID, productID).
		First(&level).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &level, nil
}

// FindBelowReorder returns stock levels at or below their reorder level
func (r *GormStockLevelRepository) FindBelowReorder(ctx context.Context, tenantID uuid.UUID, locationID *uuid.UUID, filter shared.Filter) ([]inventory.StockLevel, error) {
	query := r.db.WithContext(ctx).Model(&inventory.StockLevel{}).
		Where("tenant_id = ? AND reorder_level > 0 AND (on_hand_quantity - reserved_quantity) <= reorder_level", tenantID)
	if locationID != nil {
		query = query.Where("location_id = ?", *locationID)
	}

	var levels []inventory.StockLevel
	if err := r.applyFilter(query, filter, StockLevelSortFields).Find(&levels).Error; err != nil {
		return nil, err
	}
	return levels, nil
}

// FindByLocation returns all stock levels at a location
func (r *GormStockLevelRepository) FindByLocation(ctx context.Context, tenantID, locationID uuid.UUID, filter shared.Filter) ([]inventory.StockLevel, error) {
	query := r.db.WithContext(ctx).Model(&inventory.StockLevel{}).
		Where("tenant_id = ? AND location_id = ?", tenantID, locationID)

	var levels []inventory.StockLevel
	if err := r.applyFilter(query, filter, StockLevelSortFields).Find(&levels).Error; err != nil {
		return nil, err
	}
	return levels, nil
}

// Save creates or updates a stock level
func (r *GormStockLevelRepository) Save(ctx context.Context, level *inventory.StockLevel) error {
	return r.db.WithContext(ctx).Save(level).Error
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormStockLevelRepository) SaveWithLock(ctx context.Context, level *inventory.StockLevel) error {
	result := r.db.WithContext(ctx).
		Model(level).
		Where("id = ? AND version = ?", level.ID, level.Version-1).
		Updates(map[string]interface{}{
			"on_hand_quantity":  level.OnHandQuantity,
			"reserved_quantity": level.ReservedQuantity,
			"average_cost":      level.AverageCost,
			"reorder_level":     level.ReorderLevel,
			"version":           level.Version,
			"updated_at":        level.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewConflictError("stock level was modified by another transaction")
	}
	return nil
}

// applyFilter applies pagination and ordering to a query
func (r *GormStockLevelRepository) applyFilter(query *gorm.DB, filter shared.Filter, allowed map[string]bool) *gorm.DB {
	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.Limit())
	}

	if filter.OrderBy != "" {
		field := ValidateSortField(filter.OrderBy, allowed, "created_at")
		orderDir := "ASC"
		if strings.ToLower(filter.OrderDir) == "desc" {
			orderDir = "DESC"
		}
		query = query.Order(field + " " + orderDir)
	} else {
		query = query.Order("created_at DESC")
	}

	return query
}

// Ensure GormStockLevelRepository implements StockLevelRepository
var _ inventory.StockLevelRepository = (*GormStockLevelRepository)(nil)
