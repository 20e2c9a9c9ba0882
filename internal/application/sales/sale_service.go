package sales

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/retailcore/backend/internal/domain/catalog"
	"github.com/retailcore/backend/internal/domain/inventory"
	"github.com/retailcore/backend/internal/domain/sales"
	"github.com/retailcore/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

const (
	// DefaultNumberPrefix prefixes generated sale numbers
	DefaultNumberPrefix = "POS"

	// maxCommitAttempts bounds the retry loop around optimistic lock
	// conflicts before the Conflict is surfaced to the caller
	maxCommitAttempts = 3
)

// SaleService handles checkout, voiding and sale lookups
type SaleService struct {
	scope          TransactionScope
	saleRepo       sales.SaleRepository
	productRepo    catalog.ProductRepository
	eventPublisher shared.EventPublisher
	numberPrefix   string
	defaultTaxMode sales.TaxMode
}

// NewSaleService creates a new SaleService
func NewSaleService(
	scope TransactionScope,
	saleRepo sales.SaleRepository,
	productRepo catalog.ProductRepository,
) *SaleService {
	return &SaleService{
		scope:          scope,
		saleRepo:       saleRepo,
		productRepo:    productRepo,
		numberPrefix:   DefaultNumberPrefix,
		defaultTaxMode: sales.TaxInclusive,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *SaleService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetNumberPrefix overrides the sale number prefix
func (s *SaleService) SetNumberPrefix(prefix string) {
	if prefix != "" {
		s.numberPrefix = prefix
	}
}

// SetDefaultTaxMode overrides the tax mode applied to requests that omit one
func (s *SaleService) SetDefaultTaxMode(mode sales.TaxMode) {
	if mode.IsValid() {
		s.defaultTaxMode = mode
	}
}

func (s *SaleService) publishEvents(ctx context.Context, events ...shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	_ = s.eventPublisher.Publish(ctx, events...)
}

// resolvedLine pairs a normalized cart line with its product snapshot
type resolvedLine struct {
	cart    sales.CartLine
	product *catalog.Product
}

// ProcessSale commits a checkout atomically: totals are recomputed server
// side, stock is decremented with per-row locks, sale movements are appended
// to the ledger and a collision-free sale number is allocated, all in one
// transaction. A request carrying an idempotency key that was already
// committed returns the existing sale unchanged. Lock conflicts are retried
// a bounded number of times before Conflict reaches the caller.
func (s *SaleService) ProcessSale(ctx context.Context, tenantID uuid.UUID, req ProcessSaleRequest) (*SaleResponse, error) {
	taxMode := s.defaultTaxMode
	if req.TaxMode != "" {
		taxMode = sales.TaxMode(req.TaxMode)
	}
	if !taxMode.IsValid() {
		return nil, shared.NewValidationError("unknown tax mode: " + req.TaxMode)
	}
	paymentMethod := sales.PaymentMethod(req.PaymentMethod)
	if !paymentMethod.IsValid() {
		return nil, shared.NewValidationError("unknown payment method: " + req.PaymentMethod)
	}
	if len(req.Lines) == 0 {
		return nil, shared.NewValidationError("sale must contain at least one line")
	}

	if req.IdempotencyKey != nil {
		existing, err := s.saleRepo.FindByIdempotencyKey(ctx, tenantID, *req.IdempotencyKey)
		if err == nil {
			response := ToSaleResponse(existing)
			return &response, nil
		}
		if !shared.IsNotFound(err) {
			return nil, err
		}
	}

	resolved, err := s.resolveLines(ctx, tenantID, req.Lines)
	if err != nil {
		return nil, err
	}

	cartLines := make([]sales.CartLine, 0, len(resolved))
	for _, rl := range resolved {
		cartLines = append(cartLines, rl.cart)
	}
	totals, err := sales.ComputeTotals(cartLines, taxMode)
	if err != nil {
		return nil, err
	}

	var (
		sale   *sales.Sale
		events []shared.DomainEvent
	)
	commit := func() error {
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			saleNumber, err := repos.SaleNumbers().Next(ctx, tenantID, s.numberPrefix, time.Now())
			if err != nil {
				return err
			}

			unitCosts, err := s.decrementStock(ctx, repos, tenantID, req.LocationID, req.OperatorID, resolved)
			if err != nil {
				return err
			}

			// Payment is checked after stock so a cart failing both reports
			// the stock shortage first.
			if req.AmountPaid.LessThan(totals.Total) {
				return shared.NewInsufficientPaymentError(req.AmountPaid, totals.Total)
			}

			items := make([]sales.SaleItem, 0, len(resolved))
			for _, rl := range resolved {
				amounts, err := sales.ComputeLine(rl.cart, taxMode)
				if err != nil {
					return err
				}
				items = append(items, sales.NewSaleItem(rl.cart, amounts, rl.product.Name, rl.product.SKU, unitCosts[rl.cart.ProductID]))
			}

			sale, err = sales.NewSale(sales.NewSaleParams{
				TenantID:       tenantID,
				SaleNumber:     saleNumber,
				LocationID:     req.LocationID,
				OperatorID:     req.OperatorID,
				ShiftID:        req.ShiftID,
				TaxMode:        taxMode,
				Totals:         totals,
				AmountPaid:     req.AmountPaid,
				PaymentMethod:  paymentMethod,
				IdempotencyKey: req.IdempotencyKey,
				Items:          items,
			})
			if err != nil {
				return err
			}
			if err := repos.Sales().Create(ctx, sale); err != nil {
				return err
			}

			if err := s.appendSaleMovements(ctx, repos, sale, resolved, unitCosts); err != nil {
				return err
			}

			events = sale.GetDomainEvents()
			sale.ClearDomainEvents()
			return nil
		})
	}

	for attempt := 1; ; attempt++ {
		err = commit()
		if err == nil {
			break
		}
		if !shared.IsConflict(err) || attempt >= maxCommitAttempts {
			return nil, err
		}
		// A concurrent request with the same idempotency key may have won
		// the unique index race; return its sale instead of retrying.
		if req.IdempotencyKey != nil {
			if existing, lookupErr := s.saleRepo.FindByIdempotencyKey(ctx, tenantID, *req.IdempotencyKey); lookupErr == nil {
				response := ToSaleResponse(existing)
				return &response, nil
			}
		}
		time.Sleep(time.Duration(5+rand.Intn(20)) * time.Millisecond)
	}

	s.publishEvents(ctx, events...)

	response := ToSaleResponse(sale)
	return &response, nil
}

// resolveLines loads the products behind the cart and normalizes each line:
// catalog price unless overridden, server-side tax rate, active products only.
func (s *SaleService) resolveLines(ctx context.Context, tenantID uuid.UUID, lines []SaleLineRequest) ([]resolvedLine, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	products, err := s.productRepo.FindByIDs(ctx, tenantID, ids)
	if err != nil {
		return nil, err
	}

	resolved := make([]resolvedLine, 0, len(lines))
	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok {
			return nil, shared.NewDomainError("NOT_FOUND", "product not found: "+line.ProductID.String())
		}
		if !product.IsActive() {
			return nil, shared.NewValidationError("product is inactive: " + product.SKU)
		}
		unitPrice := product.SellPrice
		if line.UnitPrice != nil {
			unitPrice = *line.UnitPrice
		}
		resolved = append(resolved, resolvedLine{
			cart: sales.CartLine{
				ProductID:      line.ProductID,
				Quantity:       line.Quantity,
				UnitPrice:      unitPrice,
				DiscountAmount: line.DiscountAmount,
				TaxRate:        product.TaxRate,
			},
			product: product,
		})
	}
	return resolved, nil
}

// decrementStock locks and decrements the stock level of every distinct
// product in the cart, in product ID order so concurrent sales cannot
// deadlock. It returns the unit cost snapshot per product, taken before the
// decrement.
func (s *SaleService) decrementStock(
	ctx context.Context,
	repos TransactionalRepositories,
	tenantID, locationID, operatorID uuid.UUID,
	resolved []resolvedLine,
) (map[uuid.UUID]decimal.Decimal, error) {
	quantities := make(map[uuid.UUID]decimal.Decimal)
	costs := make(map[uuid.UUID]decimal.Decimal)
	order := make([]uuid.UUID, 0, len(resolved))
	for _, rl := range resolved {
		id := rl.cart.ProductID
		if _, seen := quantities[id]; !seen {
			order = append(order, id)
		}
		quantities[id] = quantities[id].Add(rl.cart.Quantity)
		costs[id] = rl.product.CostPrice
	}
	sort.Slice(order, func(i, j int) bool {
		return order[i].String() < order[j].String()
	})

	for _, productID := range order {
		level, err := repos.StockLevels().FindForUpdate(ctx, tenantID, locationID, productID)
		if shared.IsNotFound(err) {
			return nil, shared.NewInsufficientStockError(productID, decimal.Zero, quantities[productID])
		}
		if err != nil {
			return nil, err
		}
		if level.AverageCost.IsPositive() {
			costs[productID] = level.AverageCost
		}
		if err := level.Decrease(quantities[productID]); err != nil {
			return nil, err
		}
		if err := repos.StockLevels().SaveWithLock(ctx, level); err != nil {
			return nil, err
		}
	}
	return costs, nil
}

// appendSaleMovements writes one negative ledger entry per distinct product,
// referencing the committed sale.
func (s *SaleService) appendSaleMovements(
	ctx context.Context,
	repos TransactionalRepositories,
	sale *sales.Sale,
	resolved []resolvedLine,
	unitCosts map[uuid.UUID]decimal.Decimal,
) error {
	quantities := make(map[uuid.UUID]decimal.Decimal)
	order := make([]uuid.UUID, 0, len(resolved))
	for _, rl := range resolved {
		id := rl.cart.ProductID
		if _, seen := quantities[id]; !seen {
			order = append(order, id)
		}
		quantities[id] = quantities[id].Add(rl.cart.Quantity)
	}

	movements := make([]*inventory.StockMovement, 0, len(order))
	for _, productID := range order {
		movement, err := inventory.NewStockMovement(sale.TenantID, sale.LocationID, productID,
			inventory.MovementTypeSale, quantities[productID].Neg(), sale.OperatorID)
		if err != nil {
			return err
		}
		movement.WithUnitCost(unitCosts[productID]).WithReference(sale.ID)
		movements = append(movements, movement)
	}
	return repos.StockMovements().Append(ctx, movements...)
}

// VoidSale reverses a committed sale. The header flips to voided and a
// compensating return movement per product restores stock; the frozen sale
// items are never touched.
func (s *SaleService) VoidSale(ctx context.Context, tenantID uuid.UUID, req VoidSaleRequest) (*SaleResponse, error) {
	if req.Reason == "" {
		return nil, shared.NewValidationError("void reason is required")
	}

	var (
		sale   *sales.Sale
		events []shared.DomainEvent
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		found, err := repos.Sales().FindByID(ctx, tenantID, req.SaleID)
		if err != nil {
			return err
		}
		if err := found.Void(req.Reason); err != nil {
			return err
		}
		if err := repos.Sales().SaveWithLock(ctx, found); err != nil {
			return err
		}

		for i := range found.Items {
			item := &found.Items[i]
			if err := s.restoreItemStock(ctx, repos, found, item, req); err != nil {
				return err
			}
		}

		sale = found
		events = found.GetDomainEvents()
		found.ClearDomainEvents()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvents(ctx, events...)

	response := ToSaleResponse(sale)
	return &response, nil
}

func (s *SaleService) restoreItemStock(
	ctx context.Context,
	repos TransactionalRepositories,
	sale *sales.Sale,
	item *sales.SaleItem,
	req VoidSaleRequest,
) error {
	level, err := repos.StockLevels().FindForUpdate(ctx, sale.TenantID, sale.LocationID, item.ProductID)
	if shared.IsNotFound(err) {
		level, err = inventory.NewStockLevel(sale.TenantID, sale.LocationID, item.ProductID)
		if err != nil {
			return err
		}
		if err := repos.StockLevels().Save(ctx, level); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if err := level.Increase(item.Quantity, item.UnitCost); err != nil {
		return err
	}
	if err := repos.StockLevels().SaveWithLock(ctx, level); err != nil {
		return err
	}

	movement, err := inventory.NewStockMovement(sale.TenantID, sale.LocationID, item.ProductID,
		inventory.MovementTypeReturn, item.Quantity, req.OperatorID)
	if err != nil {
		return err
	}
	movement.WithUnitCost(item.UnitCost).WithReference(sale.ID).WithReason(req.Reason)
	return repos.StockMovements().Append(ctx, movement)
}

// GetSale returns a sale with its items
func (s *SaleService) GetSale(ctx context.Context, tenantID, saleID uuid.UUID) (*SaleResponse, error) {
	sale, err := s.saleRepo.FindByID(ctx, tenantID, saleID)
	if err != nil {
		return nil, err
	}
	response := ToSaleResponse(sale)
	return &response, nil
}

// GetSaleByNumber returns a sale by its sale number
func (s *SaleService) GetSaleByNumber(ctx context.Context, tenantID uuid.UUID, saleNumber string) (*SaleResponse, error) {
	sale, err := s.saleRepo.FindByNumber(ctx, tenantID, saleNumber)
	if err != nil {
		return nil, err
	}
	response := ToSaleResponse(sale)
	return &response, nil
}

// GetSaleByIdempotencyKey returns the sale previously committed for a key
func (s *SaleService) GetSaleByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*SaleResponse, error) {
	sale, err := s.saleRepo.FindByIdempotencyKey(ctx, tenantID, key)
	if err != nil {
		return nil, err
	}
	response := ToSaleResponse(sale)
	return &response, nil
}

// ListSales lists sales for a tenant
func (s *SaleService) ListSales(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]SaleResponse, error) {
	found, err := s.saleRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	responses := make([]SaleResponse, 0, len(found))
	for i := range found {
		responses = append(responses, ToSaleResponse(&found[i]))
	}
	return responses, nil
}
