package reporting

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/facturio/backend/internal/domain/fiscal"
	"github.com/facturio/backend/internal/domain/invoicing"
	"github.com/facturio/backend/internal/domain/reporting"
	"github.com/facturio/backend/internal/domain/shared"
	"github.com/facturio/backend/internal/infrastructure/pdp"
	"github.com/facturio/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SummaryView decorates a period summary with its submission state as of the
// time of the query
type SummaryView struct {
	*reporting.Summary
	Label   string `json:"label"`
	Overdue bool   `json:"overdue"`
}

// EReportingService aggregates B2C and export transactions into per-period
// VAT summaries and submits them to the dematerialization platform. B2B sales
// are excluded: they reach the tax authority through e-invoicing instead.
type EReportingService struct {
	invoices  invoicing.InvoiceRepository
	connector pdp.Connector
	frequency fiscal.Frequency
	logger    *zap.Logger
}

// EReportingServiceOption is a functional option for EReportingService
type EReportingServiceOption func(*EReportingService)

// WithEReportingLogger sets a custom logger
func WithEReportingLogger(logger *zap.Logger) EReportingServiceOption {
	return func(s *EReportingService) {
		s.logger = logger
	}
}

// NewEReportingService creates the e-reporting aggregator. An invalid
// frequency falls back to monthly.
func NewEReportingService(
	invoices invoicing.InvoiceRepository,
	connector pdp.Connector,
	frequency fiscal.Frequency,
	opts ...EReportingServiceOption,
) *EReportingService {
	if !frequency.IsValid() {
		frequency = fiscal.FrequencyMonthly
	}
	s := &EReportingService{
		invoices:  invoices,
		connector: connector,
		frequency: frequency,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Frequency returns the configured reporting frequency
func (s *EReportingService) Frequency() fiscal.Frequency {
	return s.frequency
}

// BuildSummaries aggregates the reportable transactions issued in
// [from, until] into per-period summaries with overdue status
func (s *EReportingService) BuildSummaries(ctx context.Context, companyID *uuid.UUID, from, until time.Time) ([]SummaryView, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reporting", "build_summaries")
	defer span.End()

	transactions, err := s.reportableTransactions(ctx, companyID, from, until)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	summaries, err := reporting.Aggregate(transactions, s.frequency)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := time.Now()
	views := make([]SummaryView, len(summaries))
	for i, summary := range summaries {
		views[i] = SummaryView{
			Summary: summary,
			Label:   summary.Label(),
			Overdue: summary.IsOverdue(now),
		}
	}
	return views, nil
}

// SubmitPeriod aggregates the period containing referenceDate and hands the
// summary to the platform. Periods without any reportable transaction are
// submitted empty; the obligation covers them too.
func (s *EReportingService) SubmitPeriod(ctx context.Context, companyID *uuid.UUID, referenceDate time.Time) (*reporting.Summary, pdp.Receipt, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reporting", "submit_period")
	defer span.End()

	period := fiscal.PeriodFor(referenceDate, s.frequency)

	transactions, err := s.reportableTransactions(ctx, companyID, period.Start, period.End)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, pdp.Receipt{}, err
	}

	summary, err := s.summarize(transactions, referenceDate)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, pdp.Receipt{}, err
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, pdp.Receipt{}, fmt.Errorf("encode summary: %w", err)
	}

	receipt, err := s.connector.Transmit(ctx, pdp.Document{
		InvoiceID:   uuid.New(),
		CompanyID:   companyID,
		Number:      submissionReference(period),
		Payload:     payload,
		ContentType: "application/json",
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, pdp.Receipt{}, fmt.Errorf("submit summary %s: %w", period.Label(), err)
	}

	if receipt.Status == pdp.StatusRejected {
		s.logger.Warn("Platform rejected e-reporting summary",
			zap.String("period", period.Label()),
			zap.String("receipt_id", receipt.ID),
			zap.String("message", receipt.Message),
		)
		return summary, receipt, nil
	}

	summary.MarkSubmitted(receipt.TransmittedAt)

	s.logger.Info("E-reporting summary submitted",
		zap.String("period", period.Label()),
		zap.Int("transactions", summary.Count),
		zap.String("total_ttc", summary.TotalTTC.String()),
		zap.String("receipt_id", receipt.ID),
	)

	return summary, receipt, nil
}

// reportableTransactions flattens the finalized documents of the range and
// keeps those under the e-reporting obligation
func (s *EReportingService) reportableTransactions(ctx context.Context, companyID *uuid.UUID, from, until time.Time) ([]reporting.Transaction, error) {
	invoices, err := s.invoices.FindFinalizedBetween(ctx, companyID, from, until)
	if err != nil {
		return nil, fmt.Errorf("load finalized documents: %w", err)
	}

	transactions := make([]reporting.Transaction, 0, len(invoices))
	for _, inv := range invoices {
		tx, err := reporting.NewTransactionFromInvoice(inv)
		if err != nil {
			return nil, err
		}
		if tx.RequiresEReporting() {
			transactions = append(transactions, tx)
		}
	}
	return transactions, nil
}

// summarize folds the transactions of one period into a single summary,
// yielding an empty summary when there are none
func (s *EReportingService) summarize(transactions []reporting.Transaction, referenceDate time.Time) (*reporting.Summary, error) {
	if len(transactions) == 0 {
		return reporting.NewSummary(referenceDate, s.frequency)
	}
	summaries, err := reporting.Aggregate(transactions, s.frequency)
	if err != nil {
		return nil, err
	}
	if len(summaries) != 1 {
		return nil, shared.NewDomainError("OUT_OF_PERIOD", "Transactions span more than one reporting period")
	}
	return summaries[0], nil
}

// submissionReference derives the platform-facing reference of a period
// submission, e.g. EREP-20250301
func submissionReference(period fiscal.ReportingPeriod) string {
	return "EREP-" + period.Start.Format("20060102")
}
