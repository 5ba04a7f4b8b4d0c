package pdp

import (
	"context"
	"fmt"
	"time"

	"github.com/facturio/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// IdempotentConnector wraps a Connector with an idempotency store so each
// document reaches the platform at most once. Rejected transmissions are
// not marked, so a corrected document can be resubmitted.
type IdempotentConnector struct {
	inner  Connector
	store  shared.IdempotencyStore
	ttl    time.Duration
	logger *zap.Logger
}

var _ Connector = (*IdempotentConnector)(nil)

// IdempotentConnectorOption is a functional option for IdempotentConnector
type IdempotentConnectorOption func(*IdempotentConnector)

// WithTransmissionTTL sets how long a transmission mark is retained
func WithTransmissionTTL(ttl time.Duration) IdempotentConnectorOption {
	return func(c *IdempotentConnector) {
		c.ttl = ttl
	}
}

// WithIdempotentLogger sets a custom logger
func WithIdempotentLogger(logger *zap.Logger) IdempotentConnectorOption {
	return func(c *IdempotentConnector) {
		c.logger = logger
	}
}

// NewIdempotentConnector decorates the inner connector with duplicate
// suppression backed by the given store.
func NewIdempotentConnector(inner Connector, store shared.IdempotencyStore, opts ...IdempotentConnectorOption) *IdempotentConnector {
	c := &IdempotentConnector{
		inner:  inner,
		store:  store,
		ttl:    shared.DefaultIdempotencyConfig().TTL,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements Connector
func (c *IdempotentConnector) Name() string {
	return c.inner.Name()
}

// Transmit implements Connector. A document already handed to this platform
// returns ErrAlreadyTransmitted without touching the platform again.
func (c *IdempotentConnector) Transmit(ctx context.Context, doc Document) (Receipt, error) {
	key := c.transmissionKey(doc)

	processed, err := c.store.IsProcessed(ctx, key)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to check transmission idempotency: %w", err)
	}
	if processed {
		c.logger.Debug("Suppressing duplicate PDP transmission",
			zap.String("connector", c.inner.Name()),
			zap.String("number", doc.Number),
		)
		return Receipt{}, ErrAlreadyTransmitted
	}

	receipt, err := c.inner.Transmit(ctx, doc)
	if err != nil {
		return Receipt{}, err
	}

	// Only successful handovers count; rejections may be corrected and retried
	if receipt.Status != StatusRejected {
		if _, err := c.store.MarkProcessed(ctx, key, c.ttl); err != nil {
			c.logger.Warn("Failed to record transmission mark, duplicates possible",
				zap.String("connector", c.inner.Name()),
				zap.String("number", doc.Number),
				zap.Error(err),
			)
		}
	}

	return receipt, nil
}

// Status implements Connector
func (c *IdempotentConnector) Status(ctx context.Context, receiptID string) (Receipt, error) {
	return c.inner.Status(ctx, receiptID)
}

func (c *IdempotentConnector) transmissionKey(doc Document) string {
	return fmt.Sprintf("pdp:%s:%s", c.inner.Name(), doc.InvoiceID)
}
