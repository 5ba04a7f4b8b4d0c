package invoicing

import (
	"context"
	"time"

	"github.com/facturio/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// InvoiceFilter defines filtering options for invoice queries
type InvoiceFilter struct {
	shared.Filter
	CompanyID    *uuid.UUID
	DocumentType *DocumentType
	Status       *InvoiceStatus
	Category     *TransactionCategory
	FiscalYear   *int
	CustomerName *string
	IssuedFrom   *time.Time
	IssuedUntil  *time.Time
}

// InvoiceRepository defines the persistence interface for invoices
type InvoiceRepository interface {
	// Save persists a new invoice
	Save(ctx context.Context, invoice *Invoice) error

	// Update persists changes to an existing invoice
	Update(ctx context.Context, invoice *Invoice) error

	// FindByID retrieves an invoice by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// FindByNumber retrieves an invoice by its legal number
	FindByNumber(ctx context.Context, companyID *uuid.UUID, number string) (*Invoice, error)

	// FindAll retrieves invoices matching the filter
	FindAll(ctx context.Context, filter InvoiceFilter) ([]*Invoice, error)

	// Count returns the number of invoices matching the filter
	Count(ctx context.Context, filter InvoiceFilter) (int64, error)

	// FindFinalizedBetween retrieves numbered documents with an issue date in
	// [from, until], ordered by number. Used by exports and e-reporting.
	FindFinalizedBetween(ctx context.Context, companyID *uuid.UUID, from, until time.Time) ([]*Invoice, error)
}

// CompanyRepository defines the persistence interface for companies
type CompanyRepository interface {
	// Save persists a new company
	Save(ctx context.Context, company *Company) error

	// Update persists changes to an existing company
	Update(ctx context.Context, company *Company) error

	// FindByID retrieves a company by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Company, error)

	// FindAll retrieves all companies
	FindAll(ctx context.Context, filter shared.Filter) ([]*Company, error)
}
