package syncqueue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	appinventory "github.com/retailcore/backend/internal/application/inventory"
	appsales "github.com/retailcore/backend/internal/application/sales"
	appshift "github.com/retailcore/backend/internal/application/shift"
	"github.com/retailcore/backend/internal/domain/shared"
	"github.com/retailcore/backend/internal/domain/syncqueue"
	"go.uber.org/zap"
)

// Dispatcher replays one queued operation against the online engine
type Dispatcher interface {
	Dispatch(ctx context.Context, item *syncqueue.SyncItem) error
}

// ServiceDispatcher dispatches queue items to the application services
type ServiceDispatcher struct {
	saleService      *appsales.SaleService
	inventoryService *appinventory.InventoryService
	shiftService     *appshift.ShiftService
}

// NewServiceDispatcher creates a dispatcher over the three replayable services
func NewServiceDispatcher(
	saleService *appsales.SaleService,
	inventoryService *appinventory.InventoryService,
	shiftService *appshift.ShiftService,
) *ServiceDispatcher {
	return &ServiceDispatcher{
		saleService:      saleService,
		inventoryService: inventoryService,
		shiftService:     shiftService,
	}
}

// Dispatch decodes the payload and replays it. The item's idempotency key is
// forced onto the sale request so the engine-side unique index holds even if
// the captured payload predates key assignment.
func (d *ServiceDispatcher) Dispatch(ctx context.Context, item *syncqueue.SyncItem) error {
	switch item.Operation {
	case syncqueue.OperationSale:
		var req appsales.ProcessSaleRequest
		if err := json.Unmarshal(item.Payload, &req); err != nil {
			return shared.NewValidationError("malformed sale payload: " + err.Error())
		}
		key := item.IdempotencyKey
		req.IdempotencyKey = &key
		_, err := d.saleService.ProcessSale(ctx, item.TenantID, req)
		return err

	case syncqueue.OperationAdjustment:
		var req appinventory.AdjustStockRequest
		if err := json.Unmarshal(item.Payload, &req); err != nil {
			return shared.NewValidationError("malformed adjustment payload: " + err.Error())
		}
		_, err := d.inventoryService.AdjustStock(ctx, item.TenantID, req)
		return err

	case syncqueue.OperationShiftClose:
		var req appshift.CloseShiftRequest
		if err := json.Unmarshal(item.Payload, &req); err != nil {
			return shared.NewValidationError("malformed shift close payload: " + err.Error())
		}
		_, err := d.shiftService.CloseShift(ctx, item.TenantID, req)
		// Replaying an already closed shift is a success, not a failure
		if shared.IsConflict(err) {
			return nil
		}
		return err
	}
	return shared.NewValidationError("unknown sync operation: " + string(item.Operation))
}

// ProcessorConfig holds configuration for the sync queue processor
type ProcessorConfig struct {
	PollInterval   time.Duration
	TenantBatch    int // Max tenants picked up per poll
	MaxConcurrency int // Max tenants replaying at once
	IdempotencyTTL time.Duration
}

// DefaultProcessorConfig returns default configuration
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		PollInterval:   2 * time.Second,
		TenantBatch:    32,
		MaxConcurrency: 8,
		IdempotencyTTL: 24 * time.Hour,
	}
}

// Processor drains the durable sync queue in the background. Items of one
// tenant replay strictly in sequence order on a single worker; different
// tenants replay concurrently up to MaxConcurrency.
type Processor struct {
	repo        syncqueue.Repository
	dispatcher  Dispatcher
	idempotency shared.IdempotencyStore
	config      ProcessorConfig
	logger      *zap.Logger

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	inFlight map[uuid.UUID]bool
	sem      chan struct{}
}

// NewProcessor creates a new sync queue processor
func NewProcessor(
	repo syncqueue.Repository,
	dispatcher Dispatcher,
	idempotency shared.IdempotencyStore,
	config ProcessorConfig,
	logger *zap.Logger,
) *Processor {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 1
	}
	return &Processor{
		repo:        repo,
		dispatcher:  dispatcher,
		idempotency: idempotency,
		config:      config,
		logger:      logger,
		inFlight:    make(map[uuid.UUID]bool),
		sem:         make(chan struct{}, config.MaxConcurrency),
	}
}

// Start starts the background polling loop
func (p *Processor) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.pollLoop(ctx)

	p.logger.Info("sync queue processor started",
		zap.Duration("poll_interval", p.config.PollInterval),
		zap.Int("max_concurrency", p.config.MaxConcurrency),
	)
	return nil
}

// Stop gracefully stops the processor, waiting for in-flight replays
func (p *Processor) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("sync queue processor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Processor) pollLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// poll picks up tenants with due work and hands each to a drain worker. A
// tenant already being drained is skipped so its ordering guarantee holds.
func (p *Processor) poll(ctx context.Context) {
	tenants, err := p.repo.TenantsWithWork(ctx, time.Now(), p.config.TenantBatch)
	if err != nil {
		p.logger.Error("failed to query tenants with pending sync work", zap.Error(err))
		return
	}

	for _, tenantID := range tenants {
		p.mu.Lock()
		if p.inFlight[tenantID] {
			p.mu.Unlock()
			continue
		}
		p.inFlight[tenantID] = true
		p.mu.Unlock()

		select {
		case p.sem <- struct{}{}:
		case <-ctx.Done():
			p.release(tenantID)
			return
		}

		p.wg.Add(1)
		go func(tenantID uuid.UUID) {
			defer p.wg.Done()
			defer func() { <-p.sem }()
			defer p.release(tenantID)
			p.drainTenant(ctx, tenantID)
		}(tenantID)
	}
}

func (p *Processor) release(tenantID uuid.UUID) {
	p.mu.Lock()
	delete(p.inFlight, tenantID)
	p.mu.Unlock()
}

// drainTenant replays the tenant's due items oldest first until the queue is
// empty, an item needs backoff, or the context is cancelled
func (p *Processor) drainTenant(ctx context.Context, tenantID uuid.UUID) {
	for {
		if ctx.Err() != nil {
			return
		}
		item, err := p.repo.NextForTenant(ctx, tenantID, time.Now())
		if shared.IsNotFound(err) {
			return
		}
		if err != nil {
			p.logger.Error("failed to fetch next sync item",
				zap.String("tenant_id", tenantID.String()), zap.Error(err))
			return
		}
		if !p.processItem(ctx, item) {
			// The item failed and is backing off; stop so replay order holds
			return
		}
	}
}

// processItem replays one item. It returns true when the tenant's drain can
// continue with the next item.
func (p *Processor) processItem(ctx context.Context, item *syncqueue.SyncItem) bool {
	log := p.logger.With(
		zap.String("tenant_id", item.TenantID.String()),
		zap.String("operation", string(item.Operation)),
		zap.String("idempotency_key", item.IdempotencyKey),
		zap.Int64("sequence", item.Sequence),
	)

	if processed, err := p.idempotency.IsProcessed(ctx, p.storeKey(item)); err == nil && processed {
		item.MarkCompleted()
		if err := p.repo.Update(ctx, item); err != nil {
			log.Error("failed to complete replayed sync item", zap.Error(err))
			return false
		}
		log.Debug("sync item already replayed, skipped")
		return true
	}

	if err := item.MarkProcessing(); err != nil {
		log.Warn("sync item not in a processable state", zap.Error(err))
		return false
	}
	if err := p.repo.Update(ctx, item); err != nil {
		log.Error("failed to claim sync item", zap.Error(err))
		return false
	}

	if err := p.dispatcher.Dispatch(ctx, item); err != nil {
		if isPermanent(err) {
			// No retry can fix a validation or not-found failure
			item.Attempts = item.MaxAttempts
		}
		item.MarkFailed(err.Error())
		if updateErr := p.repo.Update(ctx, item); updateErr != nil {
			log.Error("failed to record sync item failure", zap.Error(updateErr))
			return false
		}
		if item.IsDead() {
			log.Error("sync item dead-lettered", zap.Error(err), zap.Int("attempts", item.Attempts))
		} else {
			log.Warn("sync item replay failed, will retry", zap.Error(err), zap.Int("attempts", item.Attempts))
		}
		return false
	}

	item.MarkCompleted()
	if err := p.repo.Update(ctx, item); err != nil {
		log.Error("failed to complete sync item", zap.Error(err))
		return false
	}
	if _, err := p.idempotency.MarkProcessed(ctx, p.storeKey(item), p.config.IdempotencyTTL); err != nil {
		log.Warn("failed to record idempotency key", zap.Error(err))
	}
	log.Info("sync item replayed")
	return true
}

func (p *Processor) storeKey(item *syncqueue.SyncItem) string {
	return "sync:" + item.TenantID.String() + ":" + item.IdempotencyKey
}

// isPermanent classifies failures no retry can repair
func isPermanent(err error) bool {
	if shared.IsValidation(err) || shared.IsNotFound(err) {
		return true
	}
	var stockErr *shared.InsufficientStockError
	var paymentErr *shared.InsufficientPaymentError
	return errors.As(err, &stockErr) || errors.As(err, &paymentErr)
}
