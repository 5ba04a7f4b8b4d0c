package invoicing

import (
	"context"
	"fmt"
	"time"

	"github.com/facturio/backend/internal/domain/invoicing"
	"github.com/facturio/backend/internal/domain/shared"
	"github.com/facturio/backend/internal/domain/shared/valueobject"
	"github.com/facturio/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TransactionManager runs a function inside one database transaction.
// persistence.Database satisfies it.
type TransactionManager interface {
	Transaction(fn func(tx *gorm.DB) error) error
}

// Repositories hands out repositories bound to a transaction.
// persistence.GormRepositories satisfies it.
type Repositories interface {
	Invoices(tx *gorm.DB) invoicing.InvoiceRepository
	Sequences(tx *gorm.DB) invoicing.SequenceRepository
}

// EventPublisher writes domain events to the transactional outbox.
// event.OutboxPublisher satisfies it.
type EventPublisher interface {
	PublishWithTx(ctx context.Context, tx *gorm.DB, events ...shared.DomainEvent) error
}

// InvoiceService drives the invoice lifecycle: draft editing, finalization
// under a legal number, payment and cancellation. Every state change runs in
// one transaction together with its outbox events, and finalization holds the
// sequence row lock until the numbered document is committed.
type InvoiceService struct {
	txm       TransactionManager
	repos     Repositories
	invoices  invoicing.InvoiceRepository
	companies invoicing.CompanyProvider
	publisher EventPublisher
	metrics   *telemetry.BusinessMetrics
	logger    *zap.Logger
	padding   int
}

// InvoiceServiceOption is a functional option for InvoiceService
type InvoiceServiceOption func(*InvoiceService)

// WithBusinessMetrics enables business metric recording
func WithBusinessMetrics(metrics *telemetry.BusinessMetrics) InvoiceServiceOption {
	return func(s *InvoiceService) {
		s.metrics = metrics
	}
}

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) InvoiceServiceOption {
	return func(s *InvoiceService) {
		s.logger = logger
	}
}

// WithSequencePadding overrides the minimum width of the sequence part of
// legal numbers
func WithSequencePadding(padding int) InvoiceServiceOption {
	return func(s *InvoiceService) {
		if padding > 0 {
			s.padding = padding
		}
	}
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	txm TransactionManager,
	repos Repositories,
	invoices invoicing.InvoiceRepository,
	companies invoicing.CompanyProvider,
	publisher EventPublisher,
	opts ...InvoiceServiceOption,
) *InvoiceService {
	s := &InvoiceService{
		txm:       txm,
		repos:     repos,
		invoices:  invoices,
		companies: companies,
		publisher: publisher,
		logger:    zap.NewNop(),
		padding:   invoicing.DefaultSequencePadding,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LineRequest describes one billed item
type LineRequest struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	VATRate     valueobject.VATRate
}

// PartyRequest identifies a customer. Registration numbers are validated on
// construction; a SIRET implies its SIREN.
type PartyRequest struct {
	Name        string
	SIREN       string
	SIRET       string
	VATNumber   string
	AddressLine string
	PostalCode  string
	City        string
	CountryCode string
}

// CreateDraftRequest carries everything needed to open a draft invoice.
// The supplier is always the issuing company's legal entity.
type CreateDraftRequest struct {
	CompanyID    *uuid.UUID
	DocumentType invoicing.DocumentType
	Category     invoicing.TransactionCategory
	Customer     PartyRequest
	IssueDate    time.Time
	DueDate      *time.Time
	Remark       string
	Lines        []LineRequest
}

// UpdateDraftRequest carries the mutable header fields of a draft.
// Nil fields are left untouched.
type UpdateDraftRequest struct {
	IssueDate *time.Time
	DueDate   *time.Time
	Remark    *string
	Customer  *PartyRequest
}

// CreditNoteRequest opens a draft credit note correcting a numbered invoice
type CreditNoteRequest struct {
	OriginalID uuid.UUID
	IssueDate  time.Time
	Remark     string
	Lines      []LineRequest
}

// CreateDraft opens a new draft invoice for the resolved company
func (s *InvoiceService) CreateDraft(ctx context.Context, req CreateDraftRequest) (*invoicing.Invoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoicing", "create_draft")
	defer span.End()

	company, err := s.resolveActiveCompany(ctx, req.CompanyID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	customer, err := buildParty(req.Customer)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	docType := req.DocumentType
	if docType == "" {
		docType = invoicing.DocumentTypeInvoice
	}

	inv, err := invoicing.NewInvoice(req.CompanyID, docType, req.Category, company.LegalEntity, customer, req.IssueDate)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	inv.DueDate = req.DueDate
	inv.Remark = req.Remark

	for _, line := range req.Lines {
		if err := inv.AddLine(line.Description, line.Quantity, line.UnitPrice, line.VATRate); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	}

	err = s.txm.Transaction(func(tx *gorm.DB) error {
		if err := s.repos.Invoices(tx).Save(ctx, inv); err != nil {
			return fmt.Errorf("save invoice: %w", err)
		}
		return s.flushEvents(ctx, tx, inv)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, inv.ID.String(),
		telemetry.SpanAttrDocumentType, docType.String(),
	)
	s.logger.Info("Draft invoice created",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("document_type", docType.String()),
	)

	return inv, nil
}

// CreateCreditNote opens a draft credit note referencing the corrected
// invoice's legal number
func (s *InvoiceService) CreateCreditNote(ctx context.Context, req CreditNoteRequest) (*invoicing.Invoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoicing", "create_credit_note")
	defer span.End()

	original, err := s.invoices.FindByID(ctx, req.OriginalID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("load original invoice: %w", err)
	}

	cn, err := invoicing.NewCreditNote(original, req.IssueDate)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	cn.Remark = req.Remark

	for _, line := range req.Lines {
		if err := cn.AddLine(line.Description, line.Quantity, line.UnitPrice, line.VATRate); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	}

	err = s.txm.Transaction(func(tx *gorm.DB) error {
		if err := s.repos.Invoices(tx).Save(ctx, cn); err != nil {
			return fmt.Errorf("save credit note: %w", err)
		}
		return s.flushEvents(ctx, tx, cn)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Draft credit note created",
		zap.String("invoice_id", cn.ID.String()),
		zap.String("related_number", cn.RelatedNumber),
	)

	return cn, nil
}

// UpdateDraft edits the header fields of a draft
func (s *InvoiceService) UpdateDraft(ctx context.Context, id uuid.UUID, req UpdateDraftRequest) (*invoicing.Invoice, error) {
	return s.mutate(ctx, id, func(inv *invoicing.Invoice) error {
		if !inv.Status.IsMutable() {
			return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot modify invoice in %s status", inv.Status))
		}
		if req.IssueDate != nil {
			if req.IssueDate.IsZero() {
				return shared.NewDomainError("INVALID_ISSUE_DATE", "Issue date is required")
			}
			inv.IssueDate = *req.IssueDate
		}
		if req.DueDate != nil {
			inv.DueDate = req.DueDate
		}
		if req.Remark != nil {
			inv.Remark = *req.Remark
		}
		if req.Customer != nil {
			customer, err := buildParty(*req.Customer)
			if err != nil {
				return err
			}
			if inv.Category == invoicing.TransactionCategoryB2B && !customer.IsBusiness() {
				return shared.NewDomainError("INVALID_CUSTOMER", "B2B customer requires a SIREN, SIRET or VAT number")
			}
			inv.Customer = invoicing.PartyJSON{Party: customer}
		}
		inv.UpdatedAt = time.Now()
		return nil
	})
}

// AddLine appends a billed item to a draft
func (s *InvoiceService) AddLine(ctx context.Context, id uuid.UUID, line LineRequest) (*invoicing.Invoice, error) {
	return s.mutate(ctx, id, func(inv *invoicing.Invoice) error {
		return inv.AddLine(line.Description, line.Quantity, line.UnitPrice, line.VATRate)
	})
}

// RemoveLine deletes a line from a draft
func (s *InvoiceService) RemoveLine(ctx context.Context, id, lineID uuid.UUID) (*invoicing.Invoice, error) {
	return s.mutate(ctx, id, func(inv *invoicing.Invoice) error {
		return inv.RemoveLine(lineID)
	})
}

// Finalize assigns the next legal number to a draft and freezes it. The
// sequence row stays locked until the transaction commits, so the issued
// number and the numbered document are atomic; on rollback the slot is
// released and the next caller receives the same number.
func (s *InvoiceService) Finalize(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoicing", "finalize_invoice")
	defer span.End()

	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceID, id.String())

	var inv *invoicing.Invoice
	var opErr error
	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels("finalize_invoice", nil), func(c context.Context) {
		inv, opErr = s.finalize(c, id)
	})
	if opErr != nil {
		telemetry.RecordError(span, opErr)
		return nil, opErr
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceNumber, inv.Number,
		telemetry.SpanAttrFiscalYear, inv.FiscalYear,
	)
	return inv, nil
}

func (s *InvoiceService) finalize(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	var inv *invoicing.Invoice
	var lockWait time.Duration

	err := s.txm.Transaction(func(tx *gorm.DB) error {
		repo := s.repos.Invoices(tx)

		loaded, err := repo.FindByID(ctx, id)
		if err != nil {
			return fmt.Errorf("load invoice: %w", err)
		}

		// Obviously unfinalizable drafts are rejected before the sequence
		// lock is even taken
		if loaded.Status != invoicing.InvoiceStatusDraft {
			return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot finalize invoice in %s status", loaded.Status))
		}
		if len(loaded.Lines) == 0 {
			return shared.NewDomainError("EMPTY_INVOICE", "Cannot finalize an invoice without lines")
		}

		company, err := s.resolveActiveCompany(ctx, loaded.CompanyID)
		if err != nil {
			return err
		}

		generator := invoicing.NewNumberGenerator(s.repos.Sequences(tx), company.FiscalConfig).
			WithPadding(s.padding)

		lockStart := time.Now()
		number, err := generator.Next(ctx, loaded.CompanyID, loaded.DocumentType, loaded.IssueDate)
		lockWait = time.Since(lockStart)
		if err != nil {
			return fmt.Errorf("generate legal number: %w", err)
		}

		fiscalYear := company.FiscalConfig.YearOf(loaded.IssueDate)
		if err := loaded.Finalize(number, fiscalYear); err != nil {
			return err
		}

		if err := repo.Update(ctx, loaded); err != nil {
			return fmt.Errorf("persist finalized invoice: %w", err)
		}
		if err := s.flushEvents(ctx, tx, loaded); err != nil {
			return err
		}

		inv = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		docType := inv.DocumentType.String()
		s.metrics.RecordInvoiceFinalizedWithAmount(ctx, inv.CompanyID, docType, inv.TotalTTC)
		s.metrics.RecordNumberGenerated(ctx, inv.CompanyID, docType, inv.FiscalYear)
		s.metrics.RecordSequenceLockWait(ctx, docType, lockWait)
	}

	s.logger.Info("Invoice finalized",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("number", inv.Number),
		zap.Int("fiscal_year", inv.FiscalYear),
		zap.Duration("lock_wait", lockWait),
	)

	return inv, nil
}

// MarkSent records transmission of a finalized document
func (s *InvoiceService) MarkSent(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	return s.mutate(ctx, id, func(inv *invoicing.Invoice) error {
		return inv.MarkSent()
	})
}

// RecordPayment settles a finalized or sent document in full
func (s *InvoiceService) RecordPayment(ctx context.Context, id uuid.UUID, reference string) (*invoicing.Invoice, error) {
	inv, err := s.mutate(ctx, id, func(inv *invoicing.Invoice) error {
		return inv.MarkPaid(reference)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Invoice paid",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("number", inv.Number),
		zap.String("payment_reference", reference),
	)
	return inv, nil
}

// Cancel abandons a draft. Numbered documents are corrected with a credit
// note instead, so the sequence stays gapless.
func (s *InvoiceService) Cancel(ctx context.Context, id uuid.UUID, reason string) (*invoicing.Invoice, error) {
	return s.mutate(ctx, id, func(inv *invoicing.Invoice) error {
		return inv.Cancel(reason)
	})
}

// Get retrieves an invoice by id
func (s *InvoiceService) Get(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	return s.invoices.FindByID(ctx, id)
}

// GetByNumber retrieves an invoice by its legal number
func (s *InvoiceService) GetByNumber(ctx context.Context, companyID *uuid.UUID, number string) (*invoicing.Invoice, error) {
	return s.invoices.FindByNumber(ctx, companyID, number)
}

// List retrieves invoices matching the filter along with the total count
func (s *InvoiceService) List(ctx context.Context, filter invoicing.InvoiceFilter) ([]*invoicing.Invoice, int64, error) {
	invoices, err := s.invoices.FindAll(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	count, err := s.invoices.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return invoices, count, nil
}

// mutate loads an invoice, applies fn, and persists the result together with
// its outbox events in one transaction
func (s *InvoiceService) mutate(ctx context.Context, id uuid.UUID, fn func(inv *invoicing.Invoice) error) (*invoicing.Invoice, error) {
	var inv *invoicing.Invoice
	err := s.txm.Transaction(func(tx *gorm.DB) error {
		repo := s.repos.Invoices(tx)
		loaded, err := repo.FindByID(ctx, id)
		if err != nil {
			return fmt.Errorf("load invoice: %w", err)
		}
		if err := fn(loaded); err != nil {
			return err
		}
		if err := repo.Update(ctx, loaded); err != nil {
			return fmt.Errorf("persist invoice: %w", err)
		}
		if err := s.flushEvents(ctx, tx, loaded); err != nil {
			return err
		}
		inv = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// flushEvents writes the aggregate's pending events to the outbox within tx
func (s *InvoiceService) flushEvents(ctx context.Context, tx *gorm.DB, inv *invoicing.Invoice) error {
	events := inv.GetDomainEvents()
	if len(events) == 0 {
		return nil
	}
	if err := s.publisher.PublishWithTx(ctx, tx, events...); err != nil {
		return fmt.Errorf("publish domain events: %w", err)
	}
	inv.ClearDomainEvents()
	return nil
}

// resolveActiveCompany resolves the company and rejects deactivated ones
func (s *InvoiceService) resolveActiveCompany(ctx context.Context, companyID *uuid.UUID) (*invoicing.Company, error) {
	company, err := s.companies.Resolve(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if !company.Active {
		return nil, shared.NewDomainError("COMPANY_INACTIVE", "Company can no longer issue documents")
	}
	return company, nil
}

// buildParty constructs a validated party from the request fields
func buildParty(req PartyRequest) (invoicing.Party, error) {
	party, err := invoicing.NewParty(req.Name)
	if err != nil {
		return invoicing.Party{}, err
	}
	if req.SIRET != "" {
		if party, err = party.WithSIRET(req.SIRET); err != nil {
			return invoicing.Party{}, err
		}
	} else if req.SIREN != "" {
		if party, err = party.WithSIREN(req.SIREN); err != nil {
			return invoicing.Party{}, err
		}
	}
	party.VATNumber = req.VATNumber
	party.AddressLine = req.AddressLine
	party.PostalCode = req.PostalCode
	party.City = req.City
	if req.CountryCode != "" {
		party.CountryCode = req.CountryCode
	}
	return party, nil
}
