package inventory

import (
	"context"

	"github.com/retailcore/backend/internal/domain/inventory"
	"github.com/retailcore/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// LowStockAlertHandler reacts to low stock events by emitting a structured
// alert log line. Replenishment stays a human decision, the handler only
// makes the condition visible.
type LowStockAlertHandler struct {
	logger *zap.Logger
}

// NewLowStockAlertHandler creates a new LowStockAlertHandler
func NewLowStockAlertHandler(logger *zap.Logger) *LowStockAlertHandler {
	return &LowStockAlertHandler{logger: logger}
}

// Handle processes a low stock event
func (h *LowStockAlertHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	lowStock, ok := event.(*inventory.LowStockEvent)
	if !ok {
		return nil
	}

	h.logger.Warn("stock at or below reorder level",
		zap.String("tenant_id", lowStock.TenantID().String()),
		zap.String("location_id", lowStock.LocationID.String()),
		zap.String("product_id", lowStock.ProductID.String()),
		zap.String("available", lowStock.Available.String()),
		zap.String("reorder_level", lowStock.ReorderLevel.String()),
	)
	return nil
}

// EventTypes returns the event types this handler subscribes to
func (h *LowStockAlertHandler) EventTypes() []string {
	return []string{inventory.EventTypeLowStock}
}
