package invoicing

import (
	"time"

	"github.com/facturio/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceCreatedEvent is raised when a new draft invoice is created
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	InvoiceID    uuid.UUID           `json:"invoice_id"`
	DocumentType DocumentType        `json:"document_type"`
	Category     TransactionCategory `json:"category"`
	CustomerName string              `json:"customer_name"`
	IssueDate    time.Time           `json:"issue_date"`
}

// EventType returns the event type name
func (e *InvoiceCreatedEvent) EventType() string {
	return "InvoiceCreated"
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("InvoiceCreated", "Invoice", inv.ID, inv.CompanyID),
		InvoiceID:       inv.ID,
		DocumentType:    inv.DocumentType,
		Category:        inv.Category,
		CustomerName:    inv.Customer.Name,
		IssueDate:       inv.IssueDate,
	}
}

// InvoiceFinalizedEvent is raised when a draft receives its legal number.
// Downstream consumers use it to trigger PDP transmission and e-reporting.
type InvoiceFinalizedEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID           `json:"invoice_id"`
	Number        string              `json:"number"`
	DocumentType  DocumentType        `json:"document_type"`
	Category      TransactionCategory `json:"category"`
	FiscalYear    int                 `json:"fiscal_year"`
	IssueDate     time.Time           `json:"issue_date"`
	CustomerName  string              `json:"customer_name"`
	CustomerSIREN string              `json:"customer_siren,omitempty"`
	TotalHT       decimal.Decimal     `json:"total_ht"`
	TotalVAT      decimal.Decimal     `json:"total_vat"`
	TotalTTC      decimal.Decimal     `json:"total_ttc"`
	RelatedNumber string              `json:"related_number,omitempty"`
}

// EventType returns the event type name
func (e *InvoiceFinalizedEvent) EventType() string {
	return "InvoiceFinalized"
}

// NewInvoiceFinalizedEvent creates a new InvoiceFinalizedEvent
func NewInvoiceFinalizedEvent(inv *Invoice) *InvoiceFinalizedEvent {
	return &InvoiceFinalizedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("InvoiceFinalized", "Invoice", inv.ID, inv.CompanyID),
		InvoiceID:       inv.ID,
		Number:          inv.Number,
		DocumentType:    inv.DocumentType,
		Category:        inv.Category,
		FiscalYear:      inv.FiscalYear,
		IssueDate:       inv.IssueDate,
		CustomerName:    inv.Customer.Name,
		CustomerSIREN:   inv.Customer.SIREN,
		TotalHT:         inv.TotalHT,
		TotalVAT:        inv.TotalVAT,
		TotalTTC:        inv.TotalTTC,
		RelatedNumber:   inv.RelatedNumber,
	}
}

// InvoiceSentEvent is raised when a finalized invoice is transmitted
type InvoiceSentEvent struct {
	shared.BaseDomainEvent
	InvoiceID uuid.UUID `json:"invoice_id"`
	Number    string    `json:"number"`
	SentAt    time.Time `json:"sent_at"`
}

// EventType returns the event type name
func (e *InvoiceSentEvent) EventType() string {
	return "InvoiceSent"
}

// NewInvoiceSentEvent creates a new InvoiceSentEvent
func NewInvoiceSentEvent(inv *Invoice) *InvoiceSentEvent {
	sentAt := time.Now()
	if inv.SentAt != nil {
		sentAt = *inv.SentAt
	}
	return &InvoiceSentEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("InvoiceSent", "Invoice", inv.ID, inv.CompanyID),
		InvoiceID:       inv.ID,
		Number:          inv.Number,
		SentAt:          sentAt,
	}
}

// InvoicePaidEvent is raised when an invoice is settled in full
type InvoicePaidEvent struct {
	shared.BaseDomainEvent
	InvoiceID        uuid.UUID       `json:"invoice_id"`
	Number           string          `json:"number"`
	TotalTTC         decimal.Decimal `json:"total_ttc"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	PaidAt           time.Time       `json:"paid_at"`
}

// EventType returns the event type name
func (e *InvoicePaidEvent) EventType() string {
	return "InvoicePaid"
}

// NewInvoicePaidEvent creates a new InvoicePaidEvent
func NewInvoicePaidEvent(inv *Invoice) *InvoicePaidEvent {
	paidAt := time.Now()
	if inv.PaidAt != nil {
		paidAt = *inv.PaidAt
	}
	return &InvoicePaidEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent("InvoicePaid", "Invoice", inv.ID, inv.CompanyID),
		InvoiceID:        inv.ID,
		Number:           inv.Number,
		TotalTTC:         inv.TotalTTC,
		PaymentReference: inv.PaymentReference,
		PaidAt:           paidAt,
	}
}

// InvoiceCancelledEvent is raised when a draft is abandoned
type InvoiceCancelledEvent struct {
	shared.BaseDomainEvent
	InvoiceID    uuid.UUID `json:"invoice_id"`
	CancelReason string    `json:"cancel_reason"`
}

// EventType returns the event type name
func (e *InvoiceCancelledEvent) EventType() string {
	return "InvoiceCancelled"
}

// NewInvoiceCancelledEvent creates a new InvoiceCancelledEvent
func NewInvoiceCancelledEvent(inv *Invoice) *InvoiceCancelledEvent {
	return &InvoiceCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("InvoiceCancelled", "Invoice", inv.ID, inv.CompanyID),
		InvoiceID:       inv.ID,
		CancelReason:    inv.CancelReason,
	}
}
