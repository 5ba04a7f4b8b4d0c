// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BusinessMetrics provides business metrics for the invoicing system.
// It tracks invoice lifecycle activity, number generation, and the
// health of the transactional outbox.
type BusinessMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	invoiceFinalizedTotal *Counter
	invoiceAmountTotal    *Counter
	numberGeneratedTotal  *Counter
	pdpTransmissionTotal  *Counter

	// Histogram metrics
	sequenceLockWait *Histogram

	// Gauge metrics (point-in-time values)
	outboxBacklog *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	// Data provider for periodic collection
	outboxProvider OutboxMetricsProvider
}

// OutboxMetricsProvider provides outbox backlog data for periodic metrics
// collection. The interface keeps the telemetry layer from depending on
// the event infrastructure directly.
type OutboxMetricsProvider interface {
	// CountByStatus returns the number of outbox entries per status
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// BusinessMetricsConfig holds configuration for business metrics.
type BusinessMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 1 minute
	OutboxProvider  OutboxMetricsProvider
}

// NewBusinessMetrics creates a new BusinessMetrics instance.
func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BusinessMetrics{
		meter:          cfg.Meter,
		logger:         logger,
		stopChan:       make(chan struct{}),
		outboxProvider: cfg.OutboxProvider,
	}

	var err error

	// Invoice metrics
	bm.invoiceFinalizedTotal, err = NewCounter(
		cfg.Meter,
		"facturio_invoice_finalized_total",
		"Total number of invoices finalized",
		"{invoices}",
	)
	if err != nil {
		return nil, err
	}

	bm.invoiceAmountTotal, err = NewCounter(
		cfg.Meter,
		"facturio_invoice_amount_total",
		"Total finalized invoice amount in cents",
		"{cents}",
	)
	if err != nil {
		return nil, err
	}

	// Numbering metrics
	bm.numberGeneratedTotal, err = NewCounter(
		cfg.Meter,
		"facturio_number_generated_total",
		"Total number of sequential invoice numbers issued",
		"{numbers}",
	)
	if err != nil {
		return nil, err
	}

	bm.sequenceLockWait, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "facturio_sequence_lock_wait_seconds",
		Description: "Time spent waiting on the fiscal year sequence row lock",
		Unit:        "s",
		Boundaries:  SmallDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	// Transmission metrics
	bm.pdpTransmissionTotal, err = NewCounter(
		cfg.Meter,
		"facturio_pdp_transmission_total",
		"Total number of document transmissions to the e-invoicing platform",
		"{transmissions}",
	)
	if err != nil {
		return nil, err
	}

	// Outbox gauge metrics
	bm.outboxBacklog, err = NewGauge(
		cfg.Meter,
		"facturio_outbox_backlog",
		"Current number of outbox entries per status",
		"{entries}",
	)
	if err != nil {
		return nil, err
	}

	return bm, nil
}

// =============================================================================
// Invoice Metrics
// =============================================================================

// RecordInvoiceFinalized records an invoice finalization event.
// This should be called from the application layer once the number is assigned.
func (bm *BusinessMetrics) RecordInvoiceFinalized(ctx context.Context, companyID *uuid.UUID, documentType string) {
	bm.invoiceFinalizedTotal.Inc(ctx,
		AttrCompanyID.String(companyLabel(companyID)),
		AttrDocumentType.String(documentType),
	)
}

// RecordInvoiceAmount records the finalized amount.
// Amount should be in the smallest currency unit (cents).
func (bm *BusinessMetrics) RecordInvoiceAmount(ctx context.Context, companyID *uuid.UUID, documentType string, amountCents int64) {
	bm.invoiceAmountTotal.Add(ctx, amountCents,
		AttrCompanyID.String(companyLabel(companyID)),
		AttrDocumentType.String(documentType),
	)
}

// RecordInvoiceFinalizedWithAmount is a convenience method that records both
// the finalization count and the amount.
func (bm *BusinessMetrics) RecordInvoiceFinalizedWithAmount(ctx context.Context, companyID *uuid.UUID, documentType string, totalTTC decimal.Decimal) {
	bm.RecordInvoiceFinalized(ctx, companyID, documentType)

	amountCents := totalTTC.Mul(decimal.NewFromInt(100)).IntPart()
	bm.RecordInvoiceAmount(ctx, companyID, documentType, amountCents)
}

// =============================================================================
// Numbering Metrics
// =============================================================================

// RecordNumberGenerated records the issuance of one sequential number.
func (bm *BusinessMetrics) RecordNumberGenerated(ctx context.Context, companyID *uuid.UUID, documentType string, fiscalYear int) {
	bm.numberGeneratedTotal.Inc(ctx,
		AttrCompanyID.String(companyLabel(companyID)),
		AttrDocumentType.String(documentType),
		AttrFiscalYear.Int(fiscalYear),
	)
}

// RecordSequenceLockWait records how long a finalization waited for the
// sequence row lock. Sustained growth here means finalizations are contending.
func (bm *BusinessMetrics) RecordSequenceLockWait(ctx context.Context, documentType string, wait time.Duration) {
	bm.sequenceLockWait.RecordDuration(ctx, wait,
		AttrDocumentType.String(documentType),
	)
}

// =============================================================================
// Transmission Metrics
// =============================================================================

// TransmissionOutcome represents the outcome of a PDP transmission for metrics labeling.
type TransmissionOutcome string

const (
	TransmissionOutcomeAccepted TransmissionOutcome = "accepted"
	TransmissionOutcomeRejected TransmissionOutcome = "rejected"
	TransmissionOutcomeFailed   TransmissionOutcome = "failed"
)

// RecordPDPTransmission records a document transmission attempt.
func (bm *BusinessMetrics) RecordPDPTransmission(ctx context.Context, provider string, outcome TransmissionOutcome) {
	bm.pdpTransmissionTotal.Inc(ctx,
		AttrPDPProvider.String(provider),
		AttrTransmissionStatus.String(string(outcome)),
	)
}

// =============================================================================
// Outbox Metrics
// =============================================================================

// RecordOutboxBacklog records the current outbox entry count for a status.
// This is a gauge metric that should be updated periodically.
func (bm *BusinessMetrics) RecordOutboxBacklog(ctx context.Context, status string, count int64) {
	bm.outboxBacklog.Record(ctx, count,
		AttrOutboxStatus.String(status),
	)
}

// =============================================================================
// Periodic Collection
// =============================================================================

// StartPeriodicCollection starts periodic collection of gauge metrics.
// It collects the outbox backlog every interval (default: 1 minute).
// This is non-blocking - use Stop() to stop collection.
func (bm *BusinessMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	bm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = time.Minute
		}

		go bm.runPeriodicCollection(ctx, interval)
	})
}

// runPeriodicCollection runs the periodic collection loop.
func (bm *BusinessMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	bm.collectOutboxMetrics(ctx)

	for {
		select {
		case <-bm.stopChan:
			bm.logger.Info("Stopping periodic business metrics collection")
			return
		case <-ctx.Done():
			bm.logger.Info("Context cancelled, stopping periodic business metrics collection")
			return
		case <-ticker.C:
			bm.collectOutboxMetrics(ctx)
		}
	}
}

// collectOutboxMetrics records the outbox backlog per status.
func (bm *BusinessMetrics) collectOutboxMetrics(ctx context.Context) {
	if bm.outboxProvider == nil {
		bm.logger.Debug("No outbox provider configured, skipping outbox metrics collection")
		return
	}

	counts, err := bm.outboxProvider.CountByStatus(ctx)
	if err != nil {
		bm.logger.Error("Failed to collect outbox backlog", zap.Error(err))
		return
	}

	for status, count := range counts {
		bm.RecordOutboxBacklog(ctx, status, count)
	}
}

// Stop stops the periodic collection.
func (bm *BusinessMetrics) Stop() {
	bm.stopOnce.Do(func() {
		close(bm.stopChan)
	})
}

// companyLabel renders a nullable company ID for metric attributes.
// A nil ID is the mono-company deployment and is labeled "default".
func companyLabel(companyID *uuid.UUID) string {
	if companyID == nil {
		return "default"
	}
	return companyID.String()
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBusinessMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
