package reporting

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/facturio/backend/internal/domain/invoicing"
	"github.com/facturio/backend/internal/domain/shared"
	"github.com/facturio/backend/internal/infrastructure/fec"
	"github.com/facturio/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// FECContentType is the content type of archived FEC files
const FECContentType = "text/plain; charset=ISO-8859-15"

// DefaultDownloadExpiry is how long generated download links stay valid
const DefaultDownloadExpiry = 15 * time.Minute

// FECExport describes one generated and archived FEC file
type FECExport struct {
	FiscalYear  int             `json:"fiscal_year"`
	FileName    string          `json:"file_name"`
	StorageKey  string          `json:"storage_key"`
	Documents   int             `json:"documents"`
	Lines       int             `json:"lines"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	DownloadURL string          `json:"download_url"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

// FECExportService renders the accounting entries of one fiscal year as a
// FEC file and archives it to object storage. The statutory file must stay
// retrievable for audits, so the archive is written before any URL is
// handed out.
type FECExportService struct {
	invoices  invoicing.InvoiceRepository
	companies invoicing.CompanyProvider
	storage   ArchiveStorage
	expiry    time.Duration
	logger    *zap.Logger
}

// FECExportServiceOption is a functional option for FECExportService
type FECExportServiceOption func(*FECExportService)

// WithFECLogger sets a custom logger
func WithFECLogger(logger *zap.Logger) FECExportServiceOption {
	return func(s *FECExportService) {
		s.logger = logger
	}
}

// WithDownloadExpiry overrides the download link lifetime
func WithDownloadExpiry(expiry time.Duration) FECExportServiceOption {
	return func(s *FECExportService) {
		if expiry > 0 {
			s.expiry = expiry
		}
	}
}

// NewFECExportService creates a new FECExportService
func NewFECExportService(
	invoices invoicing.InvoiceRepository,
	companies invoicing.CompanyProvider,
	storage ArchiveStorage,
	opts ...FECExportServiceOption,
) *FECExportService {
	s := &FECExportService{
		invoices:  invoices,
		companies: companies,
		storage:   storage,
		expiry:    DefaultDownloadExpiry,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExportFiscalYear generates, archives and links the FEC file covering the
// company's fiscal year
func (s *FECExportService) ExportFiscalYear(ctx context.Context, companyID *uuid.UUID, fiscalYear int) (*FECExport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reporting", "export_fec")
	defer span.End()

	telemetry.SetAttributes(span, telemetry.SpanAttrFiscalYear, fiscalYear)

	var export *FECExport
	var opErr error
	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels("export_fec", nil), func(c context.Context) {
		export, opErr = s.exportFiscalYear(c, companyID, fiscalYear)
	})
	if opErr != nil {
		telemetry.RecordError(span, opErr)
		return nil, opErr
	}
	return export, nil
}

func (s *FECExportService) exportFiscalYear(ctx context.Context, companyID *uuid.UUID, fiscalYear int) (*FECExport, error) {
	company, err := s.companies.Resolve(ctx, companyID)
	if err != nil {
		return nil, err
	}
	siren := company.LegalEntity.SIREN
	if siren == "" {
		return nil, shared.NewDomainError("MISSING_SIREN", "FEC export requires the company SIREN")
	}

	start, end := company.FiscalConfig.YearBounds(fiscalYear)

	invoices, err := s.invoices.FindFinalizedBetween(ctx, companyID, start, end)
	if err != nil {
		return nil, fmt.Errorf("load finalized documents: %w", err)
	}

	entries, err := fec.BuildEntries(invoices)
	if err != nil {
		return nil, fmt.Errorf("build accounting entries: %w", err)
	}

	var buf bytes.Buffer
	if err := fec.Encode(&buf, entries); err != nil {
		return nil, fmt.Errorf("encode fec file: %w", err)
	}

	fileName := fec.FileName(siren, end)
	storageKey := fmt.Sprintf("fec/%d/%s", fiscalYear, fileName)

	if err := s.storage.Upload(ctx, storageKey, buf.Bytes(), FECContentType); err != nil {
		return nil, fmt.Errorf("archive fec file: %w", err)
	}

	url, expiresAt, err := s.storage.GenerateDownloadURL(ctx, storageKey, s.expiry)
	if err != nil {
		return nil, fmt.Errorf("generate download url: %w", err)
	}

	debit, credit := fec.Balance(entries)

	s.logger.Info("FEC file exported",
		zap.Int("fiscal_year", fiscalYear),
		zap.String("file_name", fileName),
		zap.Int("documents", len(invoices)),
		zap.Int("lines", len(entries)),
		zap.String("total_debit", debit.String()),
	)

	return &FECExport{
		FiscalYear:  fiscalYear,
		FileName:    fileName,
		StorageKey:  storageKey,
		Documents:   len(invoices),
		Lines:       len(entries),
		TotalDebit:  debit,
		TotalCredit: credit,
		DownloadURL: url,
		ExpiresAt:   expiresAt,
	}, nil
}
