package inventory

import (
	"context"

	"github.com/retailcore/backend/internal/domain/inventory"
)

// TransactionScope provides transactional access to inventory repositories.
// All repository operations performed inside Execute share one database
// transaction and commit or roll back atomically.
type TransactionScope interface {
	// Execute runs fn within a database transaction. A non-nil error from fn
	// rolls the transaction back; otherwise it is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the inventory repositories
// scoped to the current transaction.
type TransactionalRepositories interface {
	// StockLevels returns the stock level repository bound to the transaction
	StockLevels() inventory.StockLevelRepository
	// StockMovements returns the movement ledger repository bound to the transaction
	StockMovements() inventory.StockMovementRepository
}
