package inventory

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/retailcore/backend/internal/domain/catalog"
	"github.com/retailcore/backend/internal/domain/inventory"
	"github.com/retailcore/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// InventoryService handles stock-related business operations
type InventoryService struct {
	scope          TransactionScope
	levelRepo      inventory.StockLevelRepository
	movementRepo   inventory.StockMovementRepository
	productRepo    catalog.ProductRepository
	eventPublisher shared.EventPublisher
}

// NewInventoryService creates a new InventoryService
func NewInventoryService(
	scope TransactionScope,
	levelRepo inventory.StockLevelRepository,
	movementRepo inventory.StockMovementRepository,
	productRepo catalog.ProductRepository,
) *InventoryService {
	return &InventoryService{
		scope:        scope,
		levelRepo:    levelRepo,
		movementRepo: movementRepo,
		productRepo:  productRepo,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *InventoryService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// publishEvents publishes domain events best-effort after a commit. Event
// delivery failures must never surface into an already committed operation.
func (s *InventoryService) publishEvents(ctx context.Context, events ...shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	_ = s.eventPublisher.Publish(ctx, events...)
}

// AdjustStock applies a signed manual correction to a stock level and appends
// the matching ledger movement in the same transaction. Positive deltas with
// a unit cost fold into the moving average cost; negative deltas beyond the
// available quantity fail with InsufficientStockError.
func (s *InventoryService) AdjustStock(ctx context.Context, tenantID uuid.UUID, req AdjustStockRequest) (*StockLevelResponse, error) {
	movementType := inventory.MovementTypeAdjustment
	if req.MovementType != "" {
		movementType = inventory.MovementType(req.MovementType)
	}
	switch movementType {
	case inventory.MovementTypeAdjustment, inventory.MovementTypeOpening:
	case inventory.MovementTypeDamage:
		if !req.Delta.IsNegative() {
			return nil, shared.NewValidationError("damage adjustments must decrease stock")
		}
	default:
		return nil, shared.NewValidationError("movement type not allowed for adjustments: " + string(movementType))
	}
	if req.Delta.IsZero() {
		return nil, shared.NewValidationError("adjustment delta cannot be zero")
	}
	if req.UnitCost.IsNegative() {
		return nil, shared.NewValidationError("unit cost cannot be negative")
	}

	var (
		level  *inventory.StockLevel
		events []shared.DomainEvent
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		found, err := repos.StockLevels().FindForUpdate(ctx, tenantID, req.LocationID, req.ProductID)
		switch {
		case err == nil:
			level = found
		case shared.IsNotFound(err):
			if req.Delta.IsNegative() {
				return &shared.InsufficientStockError{
					ProductID: req.ProductID,
					Available: decimal.Zero,
					Requested: req.Delta.Neg(),
				}
			}
			level, err = inventory.NewStockLevel(tenantID, req.LocationID, req.ProductID)
			if err != nil {
				return err
			}
			if err := s.seedReorderLevel(ctx, level); err != nil {
				return err
			}
			// Insert the empty row first so the optimistic update below
			// has a version to compare against.
			if err := repos.StockLevels().Save(ctx, level); err != nil {
				return err
			}
		default:
			return err
		}

		if err := level.Adjust(req.Delta, req.UnitCost); err != nil {
			return err
		}
		if err := repos.StockLevels().SaveWithLock(ctx, level); err != nil {
			return err
		}

		movement, err := inventory.NewStockMovement(tenantID, req.LocationID, req.ProductID, movementType, req.Delta, req.OperatorID)
		if err != nil {
			return err
		}
		movement.WithUnitCost(req.UnitCost).WithReason(req.Reason)
		if req.ReferenceID != nil {
			movement.WithReference(*req.ReferenceID)
		}
		if err := repos.StockMovements().Append(ctx, movement); err != nil {
			return err
		}

		events = append(level.GetDomainEvents(), inventory.NewStockAdjustedEvent(level, req.Delta, req.Reason))
		level.ClearDomainEvents()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvents(ctx, events...)

	response := ToStockLevelResponse(level)
	return &response, nil
}

// TransferStock moves stock between two locations atomically. Both stock
// levels and the paired transfer_out/transfer_in movements commit or roll
// back together; the two movements share one correlation ID.
func (s *InventoryService) TransferStock(ctx context.Context, tenantID uuid.UUID, req TransferStockRequest) error {
	if !req.Quantity.IsPositive() {
		return shared.NewValidationError("transfer quantity must be positive")
	}
	if req.FromLocationID == req.ToLocationID {
		return shared.NewValidationError("transfer source and destination must differ")
	}

	correlationID := uuid.New()
	var events []shared.DomainEvent

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		source, dest, err := s.lockTransferPair(ctx, repos, tenantID, req)
		if err != nil {
			return err
		}

		unitCost := source.AverageCost
		if err := source.Decrease(req.Quantity); err != nil {
			return err
		}
		if err := dest.Increase(req.Quantity, unitCost); err != nil {
			return err
		}
		if err := repos.StockLevels().SaveWithLock(ctx, source); err != nil {
			return err
		}
		if err := repos.StockLevels().SaveWithLock(ctx, dest); err != nil {
			return err
		}

		out, err := inventory.NewStockMovement(tenantID, req.FromLocationID, req.ProductID,
			inventory.MovementTypeTransferOut, req.Quantity.Neg(), req.OperatorID)
		if err != nil {
			return err
		}
		in, err := inventory.NewStockMovement(tenantID, req.ToLocationID, req.ProductID,
			inventory.MovementTypeTransferIn, req.Quantity, req.OperatorID)
		if err != nil {
			return err
		}
		out.WithUnitCost(unitCost).WithCorrelation(correlationID).WithReason(req.Reason)
		in.WithUnitCost(unitCost).WithCorrelation(correlationID).WithReason(req.Reason)
		if err := repos.StockMovements().Append(ctx, out, in); err != nil {
			return err
		}

		events = append(source.GetDomainEvents(),
			inventory.NewStockTransferredEvent(tenantID, req.FromLocationID, req.ToLocationID, req.ProductID, correlationID, req.Quantity))
		source.ClearDomainEvents()
		dest.ClearDomainEvents()
		return nil
	})
	if err != nil {
		return err
	}

	s.publishEvents(ctx, events...)
	return nil
}

// lockTransferPair locks both stock levels of a transfer in a deterministic
// order so two opposing transfers cannot deadlock. The source must exist;
// the destination is created on first use.
func (s *InventoryService) lockTransferPair(
	ctx context.Context,
	repos TransactionalRepositories,
	tenantID uuid.UUID,
	req TransferStockRequest,
) (source, dest *inventory.StockLevel, err error) {
	lockSourceFirst := strings.Compare(req.FromLocationID.String(), req.ToLocationID.String()) < 0

	lockSource := func() error {
		found, err := repos.StockLevels().FindForUpdate(ctx, tenantID, req.FromLocationID, req.ProductID)
		if shared.IsNotFound(err) {
			return &shared.InsufficientStockError{
				ProductID: req.ProductID,
				Available: decimal.Zero,
				Requested: req.Quantity,
			}
		}
		source = found
		return err
	}
	lockDest := func() error {
		found, err := repos.StockLevels().FindForUpdate(ctx, tenantID, req.ToLocationID, req.ProductID)
		if shared.IsNotFound(err) {
			created, cerr := inventory.NewStockLevel(tenantID, req.ToLocationID, req.ProductID)
			if cerr != nil {
				return cerr
			}
			if cerr := s.seedReorderLevel(ctx, created); cerr != nil {
				return cerr
			}
			if cerr := repos.StockLevels().Save(ctx, created); cerr != nil {
				return cerr
			}
			dest = created
			return nil
		}
		dest = found
		return err
	}

	if lockSourceFirst {
		if err = lockSource(); err != nil {
			return nil, nil, err
		}
		if err = lockDest(); err != nil {
			return nil, nil, err
		}
	} else {
		if err = lockDest(); err != nil {
			return nil, nil, err
		}
		if err = lockSource(); err != nil {
			return nil, nil, err
		}
	}
	return source, dest, nil
}

// seedReorderLevel copies the product's default reorder threshold onto a
// newly created stock level. Stock tracked for a product missing from the
// catalog keeps a zero threshold.
func (s *InventoryService) seedReorderLevel(ctx context.Context, level *inventory.StockLevel) error {
	product, err := s.productRepo.FindByID(ctx, level.TenantID, level.ProductID)
	switch {
	case err == nil:
		return level.SetReorderLevel(product.ReorderLevel)
	case shared.IsNotFound(err):
		return nil
	default:
		return err
	}
}

// ReserveStock holds quantity for a pending order. The hold reduces what
// sales can consume without moving on-hand stock, so the ledger is untouched.
func (s *InventoryService) ReserveStock(ctx context.Context, tenantID uuid.UUID, req ReserveStockRequest) (*StockLevelResponse, error) {
	var level *inventory.StockLevel
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		found, err := repos.StockLevels().FindForUpdate(ctx, tenantID, req.LocationID, req.ProductID)
		if shared.IsNotFound(err) {
			return &shared.InsufficientStockError{
				ProductID: req.ProductID,
				Available: decimal.Zero,
				Requested: req.Quantity,
			}
		}
		if err != nil {
			return err
		}
		if err := found.Reserve(req.Quantity); err != nil {
			return err
		}
		level = found
		return repos.StockLevels().SaveWithLock(ctx, found)
	})
	if err != nil {
		return nil, err
	}
	response := ToStockLevelResponse(level)
	return &response, nil
}

// ReleaseStock returns a previously held quantity to availability
func (s *InventoryService) ReleaseStock(ctx context.Context, tenantID uuid.UUID, req ReleaseStockRequest) (*StockLevelResponse, error) {
	var level *inventory.StockLevel
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		found, err := repos.StockLevels().FindForUpdate(ctx, tenantID, req.LocationID, req.ProductID)
		if err != nil {
			return err
		}
		if err := found.Release(req.Quantity); err != nil {
			return err
		}
		level = found
		return repos.StockLevels().SaveWithLock(ctx, found)
	})
	if err != nil {
		return nil, err
	}
	response := ToStockLevelResponse(level)
	return &response, nil
}

// SetReorderLevel updates the reorder threshold for a stock level
func (s *InventoryService) SetReorderLevel(ctx context.Context, tenantID uuid.UUID, req SetReorderLevelRequest) (*StockLevelResponse, error) {
	var level *inventory.StockLevel
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		found, err := repos.StockLevels().FindForUpdate(ctx, tenantID, req.LocationID, req.ProductID)
		if err != nil {
			return err
		}
		if err := found.SetReorderLevel(req.ReorderLevel); err != nil {
			return err
		}
		level = found
		return repos.StockLevels().SaveWithLock(ctx, found)
	})
	if err != nil {
		return nil, err
	}
	response := ToStockLevelResponse(level)
	return &response, nil
}

// GetStockLevel returns the stock level for a location-product pair
func (s *InventoryService) GetStockLevel(ctx context.Context, tenantID, locationID, productID uuid.UUID) (*StockLevelResponse, error) {
	level, err := s.levelRepo.FindByLocationAndProduct(ctx, tenantID, locationID, productID)
	if err != nil {
		return nil, err
	}
	response := ToStockLevelResponse(level)
	return &response, nil
}

// ListByLocation returns all stock levels at a location
func (s *InventoryService) ListByLocation(ctx context.Context, tenantID, locationID uuid.UUID, filter shared.Filter) ([]StockLevelResponse, error) {
	levels, err := s.levelRepo.FindByLocation(ctx, tenantID, locationID, filter)
	if err != nil {
		return nil, err
	}
	responses := make([]StockLevelResponse, 0, len(levels))
	for i := range levels {
		responses = append(responses, ToStockLevelResponse(&levels[i]))
	}
	return responses, nil
}

// GetReorderList returns stock levels at or below their reorder threshold.
// A nil locationID covers all locations of the tenant.
func (s *InventoryService) GetReorderList(ctx context.Context, tenantID uuid.UUID, locationID *uuid.UUID, filter shared.Filter) ([]StockLevelResponse, error) {
	levels, err := s.levelRepo.FindBelowReorder(ctx, tenantID, locationID, filter)
	if err != nil {
		return nil, err
	}
	responses := make([]StockLevelResponse, 0, len(levels))
	for i := range levels {
		responses = append(responses, ToStockLevelResponse(&levels[i]))
	}
	return responses, nil
}

// GetMovementHistory returns the ledger entries for a location-product pair,
// oldest first
func (s *InventoryService) GetMovementHistory(ctx context.Context, tenantID, locationID, productID uuid.UUID, filter shared.Filter) ([]MovementResponse, error) {
	movements, err := s.movementRepo.FindByStock(ctx, tenantID, locationID, productID, filter)
	if err != nil {
		return nil, err
	}
	responses := make([]MovementResponse, 0, len(movements))
	for i := range movements {
		responses = append(responses, ToMovementResponse(&movements[i]))
	}
	return responses, nil
}

// ReconcileLedger checks that the sum of ledger deltas for a location-product
// pair equals the aggregate's on-hand quantity. Drift indicates rows written
// outside the transactional paths and warrants investigation, not repair.
func (s *InventoryService) ReconcileLedger(ctx context.Context, tenantID, locationID, productID uuid.UUID) (*ReconciliationResponse, error) {
	level, err := s.levelRepo.FindByLocationAndProduct(ctx, tenantID, locationID, productID)
	if err != nil {
		return nil, err
	}
	sum, err := s.movementRepo.SumDeltas(ctx, tenantID, locationID, productID)
	if err != nil {
		return nil, err
	}
	drift := level.OnHandQuantity.Sub(sum)
	return &ReconciliationResponse{
		LocationID: locationID,
		ProductID:  productID,
		OnHand:     level.OnHandQuantity,
		LedgerSum:  sum,
		Drift:      drift,
		Consistent: drift.IsZero(),
	}, nil
}
