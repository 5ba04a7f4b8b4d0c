package invoicing

import (
	"context"
	"errors"
	"fmt"

	"github.com/facturio/backend/internal/domain/invoicing"
	"github.com/facturio/backend/internal/domain/shared"
	"github.com/facturio/backend/internal/infrastructure/pdp"
	"github.com/facturio/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

var _ shared.EventHandler = (*TransmissionHandler)(nil)

// DocumentBuilder renders a finalized invoice as a structured e-invoice
// payload. facturx.Builder satisfies it.
type DocumentBuilder interface {
	Build(inv *invoicing.Invoice) ([]byte, error)
}

// TransmissionHandler subscribes to invoice finalizations and hands B2B
// documents to the dematerialization platform as Factur-X. B2C and export
// sales never transit the platform as structured invoices; they are covered
// by the periodic e-reporting summaries instead.
type TransmissionHandler struct {
	service   *InvoiceService
	builder   DocumentBuilder
	connector pdp.Connector
	logger    *zap.Logger
	metrics   *telemetry.BusinessMetrics
}

// TransmissionHandlerOption is a functional option for TransmissionHandler
type TransmissionHandlerOption func(*TransmissionHandler)

// WithTransmissionLogger sets a custom logger
func WithTransmissionLogger(logger *zap.Logger) TransmissionHandlerOption {
	return func(h *TransmissionHandler) {
		h.logger = logger
	}
}

// WithTransmissionMetrics enables transmission outcome metrics
func WithTransmissionMetrics(metrics *telemetry.BusinessMetrics) TransmissionHandlerOption {
	return func(h *TransmissionHandler) {
		h.metrics = metrics
	}
}

// NewTransmissionHandler creates the finalization subscriber
func NewTransmissionHandler(
	service *InvoiceService,
	builder DocumentBuilder,
	connector pdp.Connector,
	opts ...TransmissionHandlerOption,
) *TransmissionHandler {
	h := &TransmissionHandler{
		service:   service,
		builder:   builder,
		connector: connector,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// EventTypes implements shared.EventHandler
func (h *TransmissionHandler) EventTypes() []string {
	return []string{"InvoiceFinalized"}
}

// Handle implements shared.EventHandler. Rejections are terminal for this
// delivery; the document stays FINALIZED and can be corrected and resent.
// Transport errors are returned so the outbox retries the delivery.
func (h *TransmissionHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	ev, ok := event.(*invoicing.InvoiceFinalizedEvent)
	if !ok {
		return nil
	}
	if ev.Category != invoicing.TransactionCategoryB2B {
		return nil
	}

	inv, err := h.service.Get(ctx, ev.InvoiceID)
	if err != nil {
		return fmt.Errorf("load invoice %s: %w", ev.InvoiceID, err)
	}

	payload, err := h.builder.Build(inv)
	if err != nil {
		return fmt.Errorf("render invoice %s: %w", inv.Number, err)
	}

	receipt, err := h.connector.Transmit(ctx, pdp.Document{
		InvoiceID:    inv.ID,
		CompanyID:    inv.CompanyID,
		Number:       inv.Number,
		DocumentType: inv.DocumentType,
		Payload:      payload,
		ContentType:  "application/xml",
	})
	if err != nil {
		if errors.Is(err, pdp.ErrAlreadyTransmitted) {
			h.logger.Debug("Invoice already transmitted",
				zap.String("invoice_id", inv.ID.String()),
				zap.String("number", inv.Number),
			)
			return nil
		}
		h.recordOutcome(ctx, telemetry.TransmissionOutcomeFailed)
		return fmt.Errorf("transmit invoice %s: %w", inv.Number, err)
	}

	if receipt.Status == pdp.StatusRejected {
		h.recordOutcome(ctx, telemetry.TransmissionOutcomeRejected)
		h.logger.Warn("Platform rejected invoice",
			zap.String("invoice_id", inv.ID.String()),
			zap.String("number", inv.Number),
			zap.String("receipt_id", receipt.ID),
			zap.String("message", receipt.Message),
		)
		return nil
	}

	h.recordOutcome(ctx, telemetry.TransmissionOutcomeAccepted)

	if _, err := h.service.MarkSent(ctx, inv.ID); err != nil {
		return fmt.Errorf("mark invoice %s sent: %w", inv.Number, err)
	}

	h.logger.Info("Invoice transmitted",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("number", inv.Number),
		zap.String("platform_id", receipt.PlatformID),
		zap.String("receipt_id", receipt.ID),
	)

	return nil
}

func (h *TransmissionHandler) recordOutcome(ctx context.Context, outcome telemetry.TransmissionOutcome) {
	if h.metrics != nil {
		h.metrics.RecordPDPTransmission(ctx, h.connector.Name(), outcome)
	}
}
