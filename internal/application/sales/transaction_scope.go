package sales

import (
	"context"

	"github.com/retailcore/backend/internal/domain/inventory"
	"github.com/retailcore/backend/internal/domain/sales"
)

// TransactionScope provides transactional access to the repositories a sale
// commit touches. The sale header, its items, the stock decrements and the
// ledger movements all commit or roll back as one unit.
type TransactionScope interface {
	// Execute runs fn within a database transaction. A non-nil error from fn
	// rolls the transaction back; otherwise it is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the repositories scoped to
// the current transaction.
type TransactionalRepositories interface {
	// Sales returns the sale repository bound to the transaction
	Sales() sales.SaleRepository
	// SaleNumbers returns the sale number allocator bound to the transaction
	SaleNumbers() sales.NumberSequenceRepository
	// StockLevels returns the stock level repository bound to the transaction
	StockLevels() inventory.StockLevelRepository
	// StockMovements returns the movement ledger repository bound to the transaction
	StockMovements() inventory.StockMovementRepository
}
