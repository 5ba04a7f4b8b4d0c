package pdp

import (
	"context"
	"time"

	"github.com/facturio/backend/internal/domain/shared"
)

// NoopConnector accepts every document without keeping any state.
// It is the default connector for deployments that do not transmit yet
// (the mandate phases in by company size).
type NoopConnector struct {
	platformID string
}

var _ Connector = (*NoopConnector)(nil)

// NewNoopConnector creates a connector that accepts everything
func NewNoopConnector(platformID string) *NoopConnector {
	if platformID == "" {
		platformID = "PDP-NOOP"
	}
	return &NoopConnector{platformID: platformID}
}

// Name implements Connector
func (c *NoopConnector) Name() string {
	return "noop"
}

// Transmit implements Connector. The receipt id reuses the invoice id so
// repeated calls for the same document produce the same receipt.
func (c *NoopConnector) Transmit(_ context.Context, doc Document) (Receipt, error) {
	if doc.Number == "" {
		return Receipt{}, shared.NewDomainError("INVALID_DOCUMENT", "Cannot transmit a document without a legal number")
	}
	return Receipt{
		ID:            "noop-" + doc.InvoiceID.String(),
		PlatformID:    c.platformID,
		Status:        StatusAccepted,
		TransmittedAt: time.Now(),
	}, nil
}

// Status implements Connector. The noop connector keeps no state, so every
// receipt reads as accepted.
func (c *NoopConnector) Status(_ context.Context, receiptID string) (Receipt, error) {
	if receiptID == "" {
		return Receipt{}, shared.ErrNotFound
	}
	return Receipt{
		ID:         receiptID,
		PlatformID: c.platformID,
		Status:     StatusAccepted,
	}, nil
}
