package persistence

import (
	"context"

	appinv "github.com/retailcore/backend/internal/application/inventory"
	appsales "github.com/retailcore/backend/internal/application/sales"
	appshift "github.com/retailcore/backend/internal/application/shift"
	"github.com/retailcore/backend/internal/domain/inventory"
	"github.com/retailcore/backend/internal/domain/sales"
	"github.com/retailcore/backend/internal/domain/shift"
	"gorm.io/gorm"
)

// gormTxRepositories binds every repository the application services reach
// through a transaction scope to one *gorm.DB transaction handle. The same
// type backs all three scopes; each scope interface just narrows the view.
type gormTxRepositories struct {
	tx *gorm.DB
}

// StockLevels returns the stock level repository scoped to the current transaction
func (r *gormTxRepositories) StockLevels() inventory.StockLevelRepository {
	return NewGormStockLevelRepository(r.tx)
}

// StockMovements returns the movement ledger repository scoped to the current transaction
func (r *gormTxRepositories) StockMovements() inventory.StockMovementRepository {
	return NewGormStockMovementRepository(r.tx)
}

// Sales returns the sale repository scoped to the current transaction
func (r *gormTxRepositories) Sales() sales.SaleRepository {
	return NewGormSaleRepository(r.tx)
}

// SaleNumbers returns the sale number allocator scoped to the current transaction
func (r *gormTxRepositories) SaleNumbers() sales.NumberSequenceRepository {
	return NewGormSaleNumberSequenceRepository(r.tx)
}

// Shifts returns the shift repository scoped to the current transaction
func (r *gormTxRepositories) Shifts() shift.ShiftRepository {
	return NewGormShiftRepository(r.tx)
}

// GormInventoryTransactionScope implements the inventory TransactionScope
// using GORM transactions.
type GormInventoryTransactionScope struct {
	db *gorm.DB
}

// NewGormInventoryTransactionScope creates a new GormInventoryTransactionScope
func NewGormInventoryTransactionScope(db *gorm.DB) *GormInventoryTransactionScope {
	return &GormInventoryTransactionScope{db: db}
}

// Execute runs the given function within a database transaction
func (s *GormInventoryTransactionScope) Execute(ctx context.Context, fn func(repos appinv.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTxRepositories{tx: tx})
	})
}

// GormSaleTransactionScope implements the sales TransactionScope using GORM
// transactions.
type GormSaleTransactionScope struct {
	db *gorm.DB
}

// NewGormSaleTransactionScope creates a new GormSaleTransactionScope
func NewGormSaleTransactionScope(db *gorm.DB) *GormSaleTransactionScope {
	return &GormSaleTransactionScope{db: db}
}

// Execute runs the given function within a database transaction
func (s *GormSaleTransactionScope) Execute(ctx context.Context, fn func(repos appsales.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTxRepositories{tx: tx})
	})
}

// GormShiftTransactionScope implements the shift TransactionScope using GORM
// transactions.
type GormShiftTransactionScope struct {
	db *gorm.DB
}

// NewGormShiftTransactionScope creates a new GormShiftTransactionScope
func NewGormShiftTransactionScope(db *gorm.DB) *GormShiftTransactionScope {
	return &GormShiftTransactionScope{db: db}
}

// Execute runs the given function within a database transaction
func (s *GormShiftTransactionScope) Execute(ctx context.Context, fn func(repos appshift.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTxRepositories{tx: tx})
	})
}

// Ensure the scopes implement their application interfaces
var (
	_ appinv.TransactionScope   = (*GormInventoryTransactionScope)(nil)
	_ appsales.TransactionScope = (*GormSaleTransactionScope)(nil)
	_ appshift.TransactionScope = (*GormShiftTransactionScope)(nil)

	_ appinv.TransactionalRepositories   = (*gormTxRepositories)(nil)
	_ appsales.TransactionalRepositories = (*gormTxRepositories)(nil)
	_ appshift.TransactionalRepositories = (*gormTxRepositories)(nil)
)
