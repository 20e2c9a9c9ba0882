package event

import (
	"context"

	"github.com/retailcore/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// IdempotentHandler deduplicates event deliveries for the handler it wraps.
// The bus delivers at least once; the wrapper claims the event ID in the
// idempotency store before handing it on, so a redelivered event is a no-op.
type IdempotentHandler struct {
	inner  shared.EventHandler
	store  shared.IdempotencyStore
	config shared.IdempotencyConfig
	logger *zap.Logger
}

// IdempotentHandlerOption configures an IdempotentHandler
type IdempotentHandlerOption func(*IdempotentHandler)

// WithIdempotencyConfig overrides the default TTL and enablement
func WithIdempotencyConfig(config shared.IdempotencyConfig) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.config = config
	}
}

// NewIdempotentHandler wraps handler with delivery deduplication
func NewIdempotentHandler(
	handler shared.EventHandler,
	store shared.IdempotencyStore,
	logger *zap.Logger,
	opts ...IdempotentHandlerOption,
) *IdempotentHandler {
	h := &IdempotentHandler{
		inner:  handler,
		store:  store,
		config: shared.DefaultIdempotencyConfig(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// EventTypes delegates to the wrapped handler
func (h *IdempotentHandler) EventTypes() []string {
	return h.inner.EventTypes()
}

// Handle claims the event and runs the wrapped handler exactly once per TTL
// window. When the store is unreachable the event is processed anyway; a
// possible duplicate side effect beats a dropped low-stock alert. A failed
// handler keeps its claim, so redeliveries inside the TTL stay silent.
func (h *IdempotentHandler) Handle(ctx context.Context, evt shared.DomainEvent) error {
	if !h.config.Enabled {
		return h.inner.Handle(ctx, evt)
	}

	eventID := evt.EventID().String()
	fresh, err := h.store.MarkProcessed(ctx, eventID, h.config.TTL)
	switch {
	case err != nil:
		h.logger.Warn("idempotency store unavailable, handling event without dedup",
			zap.String("event_id", eventID),
			zap.String("event_type", evt.EventType()),
			zap.Error(err),
		)
	case !fresh:
		h.logger.Debug("event already handled, skipping redelivery",
			zap.String("event_id", eventID),
			zap.String("event_type", evt.EventType()),
			zap.String("tenant_id", evt.TenantID().String()),
		)
		return nil
	}

	return h.inner.Handle(ctx, evt)
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
