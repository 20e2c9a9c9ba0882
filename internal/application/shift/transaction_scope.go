package shift

import (
	"context"

	"github.com/retailcore/backend/internal/domain/sales"
	"github.com/retailcore/backend/internal/domain/shift"
)

// TransactionScope provides transactional access to the repositories a shift
// close touches. The expected cash query and the status flip run in one
// transaction so a sale committing in between cannot skew the count.
type TransactionScope interface {
	// Execute runs fn within a database transaction. A non-nil error from fn
	// rolls the transaction back; otherwise it is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the repositories scoped to
// the current transaction.
type TransactionalRepositories interface {
	// Shifts returns the shift repository bound to the transaction
	Shifts() shift.ShiftRepository
	// Sales returns the sale repository bound to the transaction
	Sales() sales.SaleRepository
}
