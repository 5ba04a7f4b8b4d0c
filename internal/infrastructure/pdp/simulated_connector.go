package pdp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/facturio/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// SimulatedConnector behaves like a platform for development and tests:
// it validates the document shape, assigns deterministic receipt ids, and
// remembers every transmission in memory so Status can be queried later.
type SimulatedConnector struct {
	platformID string
	logger     *zap.Logger

	mu       sync.RWMutex
	receipts map[string]Receipt
}

var _ Connector = (*SimulatedConnector)(nil)

// SimulatedConnectorOption is a functional option for SimulatedConnector
type SimulatedConnectorOption func(*SimulatedConnector)

// WithSimulatedLogger sets a custom logger
func WithSimulatedLogger(logger *zap.Logger) SimulatedConnectorOption {
	return func(c *SimulatedConnector) {
		c.logger = logger
	}
}

// NewSimulatedConnector creates an in-memory platform simulation
func NewSimulatedConnector(platformID string, opts ...SimulatedConnectorOption) *SimulatedConnector {
	if platformID == "" {
		platformID = "PDP-SIMU"
	}
	c := &SimulatedConnector{
		platformID: platformID,
		logger:     zap.NewNop(),
		receipts:   make(map[string]Receipt),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements Connector
func (c *SimulatedConnector) Name() string {
	return "simulated"
}

// Transmit implements Connector. Malformed documents come back rejected
// with a receipt, the way a real platform reports validation failures;
// only transport-level problems surface as errors.
func (c *SimulatedConnector) Transmit(_ context.Context, doc Document) (Receipt, error) {
	receipt := Receipt{
		ID:            c.receiptID(doc),
		PlatformID:    c.platformID,
		Status:        StatusAccepted,
		TransmittedAt: time.Now(),
	}

	switch {
	case doc.Number == "":
		receipt.Status = StatusRejected
		receipt.Message = "document has no legal number"
	case len(doc.Payload) == 0:
		receipt.Status = StatusRejected
		receipt.Message = "document payload is empty"
	}

	c.mu.Lock()
	c.receipts[receipt.ID] = receipt
	c.mu.Unlock()

	c.logger.Info("Simulated PDP transmission",
		zap.String("platform_id", c.platformID),
		zap.String("receipt_id", receipt.ID),
		zap.String("number", doc.Number),
		zap.String("status", receipt.Status.String()),
	)

	return receipt, nil
}

// Status implements Connector
func (c *SimulatedConnector) Status(_ context.Context, receiptID string) (Receipt, error) {
	c.mu.RLock()
	receipt, ok := c.receipts[receiptID]
	c.mu.RUnlock()

	if !ok {
		return Receipt{}, shared.ErrNotFound
	}
	return receipt, nil
}

// Transmissions returns the number of recorded transmissions (for tests)
func (c *SimulatedConnector) Transmissions() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.receipts)
}

// receiptID derives a stable receipt id from the platform and document
// identity, so retransmissions of the same document are observable.
func (c *SimulatedConnector) receiptID(doc Document) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s/%s/%s", c.platformID, doc.InvoiceID, doc.Number)))
	return "sim-" + hex.EncodeToString(sum[:8])
}
