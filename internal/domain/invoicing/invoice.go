package invoicing

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/facturio/backend/internal/domain/shared"
	"github.com/facturio/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the lifecycle state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "DRAFT"     // Mutable, carries no legal number
	InvoiceStatusFinalized InvoiceStatus = "FINALIZED" // Numbered and immutable
	InvoiceStatusSent      InvoiceStatus = "SENT"      // Transmitted to the customer or PDP
	InvoiceStatusPaid      InvoiceStatus = "PAID"      // Settled in full
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED" // Draft abandoned before numbering
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusFinalized, InvoiceStatusSent,
		InvoiceStatusPaid, InvoiceStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsMutable returns true while line items and parties may still change.
// Once a legal number is assigned the document content is frozen; corrections
// go through a credit note instead.
func (s InvoiceStatus) IsMutable() bool {
	return s == InvoiceStatusDraft
}

// IsTerminal returns true if no further transition is possible
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusCancelled
}

// TransactionCategory classifies the sale for VAT e-reporting purposes
type TransactionCategory string

const (
	TransactionCategoryB2B    TransactionCategory = "B2B"    // Domestic business to business
	TransactionCategoryB2C    TransactionCategory = "B2C"    // Domestic business to consumer
	TransactionCategoryExport TransactionCategory = "EXPORT" // Outside France, zero-rated
)

// IsValid checks if the category is a valid TransactionCategory
func (c TransactionCategory) IsValid() bool {
	switch c {
	case TransactionCategoryB2B, TransactionCategoryB2C, TransactionCategoryExport:
		return true
	}
	return false
}

// String returns the string representation of TransactionCategory
func (c TransactionCategory) String() string {
	return string(c)
}

// InvoiceLine is one billed item within the Invoice aggregate, stored as JSONB
type InvoiceLine struct {
	ID          uuid.UUID           `json:"id"`
	Description string              `json:"description"`
	Quantity    decimal.Decimal     `json:"quantity"`
	UnitPrice   decimal.Decimal     `json:"unit_price"` // Net of VAT, per unit
	VATRate     valueobject.VATRate `json:"vat_rate"`
}

// NewInvoiceLine creates a validated line
func NewInvoiceLine(description string, quantity, unitPrice decimal.Decimal, rate valueobject.VATRate) (*InvoiceLine, error) {
	if description == "" {
		return nil, shared.NewDomainError("INVALID_LINE", "Line description is required")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_LINE", "Line quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return nil, shared.NewDomainError("INVALID_LINE", "Line unit price cannot be negative")
	}
	if !rate.IsValid() {
		return nil, shared.NewDomainError("INVALID_LINE", "Line VAT rate is not valid")
	}
	return &InvoiceLine{
		ID:          uuid.New(),
		Description: description,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		VATRate:     rate,
	}, nil
}

// NetAmount returns quantity * unit price rounded to the cent
func (l *InvoiceLine) NetAmount() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice).Round(2)
}

// VATAmount returns the VAT due on the line, rounded to the cent
func (l *InvoiceLine) VATAmount() decimal.Decimal {
	return l.NetAmount().Mul(l.VATRate.Percentage()).Div(decimal.NewFromInt(100)).Round(2)
}

// InvoiceLines implements GORM Scanner/Valuer for JSONB storage
type InvoiceLines []InvoiceLine

// Value implements driver.Valuer interface for GORM to store as JSONB
func (l InvoiceLines) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (l *InvoiceLines) Scan(value interface{}) error {
	if value == nil {
		*l = InvoiceLines{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan InvoiceLines: unsupported type")
	}

	if len(bytes) == 0 {
		*l = InvoiceLines{}
		return nil
	}

	return json.Unmarshal(bytes, l)
}

// PartyJSON wraps Party with GORM Scanner/Valuer for JSONB storage
type PartyJSON struct {
	Party
}

// Value implements driver.Valuer for GORM
func (p PartyJSON) Value() (driver.Value, error) {
	return json.Marshal(p.Party)
}

// Scan implements sql.Scanner for GORM
func (p *PartyJSON) Scan(value interface{}) error {
	if value == nil {
		p.Party = Party{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan Party: unsupported type")
	}
	return json.Unmarshal(bytes, &p.Party)
}

// VATBreakdownEntry is the per-rate subtotal used in e-reporting and Factur-X
type VATBreakdownEntry struct {
	Rate      valueobject.VATRate `json:"rate"`
	NetAmount decimal.Decimal     `json:"net_amount"`
	VATAmount decimal.Decimal     `json:"vat_amount"`
}

// Invoice is the invoicing aggregate root. It starts life as a mutable draft
// and becomes an immutable legal document on finalization, when it receives
// its sequential number. Credit notes are invoices of DocumentTypeCreditNote
// referencing the number of the document they correct.
type Invoice struct {
	shared.CompanyAggregateRoot
	Number           string              `json:"number"` // Empty until finalized
	DocumentType     DocumentType        `json:"document_type"`
	Status           InvoiceStatus       `json:"status"`
	Category         TransactionCategory `json:"category"`
	Supplier         PartyJSON           `json:"supplier"`
	Customer         PartyJSON           `json:"customer"`
	IssueDate        time.Time           `json:"issue_date"` // Drives the fiscal year and the number
	DueDate          *time.Time          `json:"due_date"`
	FiscalYear       int                 `json:"fiscal_year"` // Set at finalization
	Lines            InvoiceLines        `json:"lines"`
	TotalHT          decimal.Decimal     `json:"total_ht"`  // Net of VAT
	TotalVAT         decimal.Decimal     `json:"total_vat"` // Sum of per-line VAT
	TotalTTC         decimal.Decimal     `json:"total_ttc"` // Including VAT
	RelatedNumber    string              `json:"related_number,omitempty"` // Corrected invoice, credit notes only
	PaymentReference string              `json:"payment_reference,omitempty"`
	Remark           string              `json:"remark,omitempty"`
	FinalizedAt      *time.Time          `json:"finalized_at"`
	SentAt           *time.Time          `json:"sent_at"`
	PaidAt           *time.Time          `json:"paid_at"`
	CancelledAt      *time.Time          `json:"cancelled_at"`
	CancelReason     string              `json:"cancel_reason,omitempty"`
}

// NewInvoice creates a draft invoice with no lines and no legal number
func NewInvoice(
	companyID *uuid.UUID,
	docType DocumentType,
	category TransactionCategory,
	supplier Party,
	customer Party,
	issueDate time.Time,
) (*Invoice, error) {
	if !docType.IsValid() {
		return nil, shared.NewDomainError("INVALID_DOCUMENT_TYPE", "Document type is not valid")
	}
	if !category.IsValid() {
		return nil, shared.NewDomainError("INVALID_CATEGORY", "Transaction category is not valid")
	}
	if supplier.Name == "" {
		return nil, shared.NewDomainError("INVALID_SUPPLIER", "Supplier is required")
	}
	if customer.Name == "" {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer is required")
	}
	if issueDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_ISSUE_DATE", "Issue date is required")
	}
	if category == TransactionCategoryB2B && !customer.IsBusiness() {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "B2B customer requires a SIREN, SIRET or VAT number")
	}

	inv := &Invoice{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(companyID),
		DocumentType:         docType,
		Status:               InvoiceStatusDraft,
		Category:             category,
		Supplier:             PartyJSON{Party: supplier},
		Customer:             PartyJSON{Party: customer},
		IssueDate:            issueDate,
		Lines:                InvoiceLines{},
		TotalHT:              decimal.Zero,
		TotalVAT:             decimal.Zero,
		TotalTTC:             decimal.Zero,
	}

	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv))

	return inv, nil
}

// NewCreditNote creates a draft credit note correcting the given invoice.
// Parties, category and company scope are inherited from the original.
func NewCreditNote(original *Invoice, issueDate time.Time) (*Invoice, error) {
	if original == nil {
		return nil, shared.NewDomainError("INVALID_INVOICE", "Original invoice is required")
	}
	if original.Number == "" {
		return nil, shared.NewDomainError("INVALID_STATE", "Cannot credit an invoice that has no legal number")
	}
	if original.DocumentType != DocumentTypeInvoice {
		return nil, shared.NewDomainError("INVALID_DOCUMENT_TYPE", "Only invoices can be corrected by a credit note")
	}

	cn, err := NewInvoice(original.CompanyID, DocumentTypeCreditNote, original.Category,
		original.Supplier.Party, original.Customer.Party, issueDate)
	if err != nil {
		return nil, err
	}
	cn.RelatedNumber = original.Number
	return cn, nil
}

// AddLine appends a billed item to a draft
func (i *Invoice) AddLine(description string, quantity, unitPrice decimal.Decimal, rate valueobject.VATRate) error {
	if !i.Status.IsMutable() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot modify invoice in %s status", i.Status))
	}
	line, err := NewInvoiceLine(description, quantity, unitPrice, rate)
	if err != nil {
		return err
	}
	if i.Category == TransactionCategoryExport && rate != valueobject.VATRateZero {
		return shared.NewDomainError("INVALID_LINE", "Export invoices must use the zero VAT rate")
	}

	i.Lines = append(i.Lines, *line)
	i.recalculateTotals()
	i.UpdatedAt = time.Now()

	return nil
}

// RemoveLine deletes a line from a draft by id
func (i *Invoice) RemoveLine(lineID uuid.UUID) error {
	if !i.Status.IsMutable() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot modify invoice in %s status", i.Status))
	}
	for idx, line := range i.Lines {
		if line.ID == lineID {
			i.Lines = append(i.Lines[:idx], i.Lines[idx+1:]...)
			i.recalculateTotals()
			i.UpdatedAt = time.Now()
			return nil
		}
	}
	return shared.ErrNotFound
}

// recalculateTotals derives the document totals from the lines.
// VAT is computed per line and summed, not recomputed on the document total,
// so rounding matches what each line displays.
func (i *Invoice) recalculateTotals() {
	totalHT := decimal.Zero
	totalVAT := decimal.Zero
	for idx := range i.Lines {
		totalHT = totalHT.Add(i.Lines[idx].NetAmount())
		totalVAT = totalVAT.Add(i.Lines[idx].VATAmount())
	}
	i.TotalHT = totalHT
	i.TotalVAT = totalVAT
	i.TotalTTC = totalHT.Add(totalVAT)
}

// VATBreakdown returns per-rate subtotals, ordered by descending rate
func (i *Invoice) VATBreakdown() []VATBreakdownEntry {
	entries := make([]VATBreakdownEntry, 0, len(valueobject.AllVATRates()))
	for _, rate := range valueobject.AllVATRates() {
		net := decimal.Zero
		vat := decimal.Zero
		found := false
		for idx := range i.Lines {
			if i.Lines[idx].VATRate == rate {
				net = net.Add(i.Lines[idx].NetAmount())
				vat = vat.Add(i.Lines[idx].VATAmount())
				found = true
			}
		}
		if found {
			entries = append(entries, VATBreakdownEntry{Rate: rate, NetAmount: net, VATAmount: vat})
		}
	}
	return entries
}

// Finalize freezes the draft under its assigned legal number. The caller
// obtains the number from the NumberGenerator within the same transaction
// that persists this state change.
func (i *Invoice) Finalize(number string, fiscalYear int) error {
	if i.Status != InvoiceStatusDraft {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot finalize invoice in %s status", i.Status))
	}
	if number == "" {
		return shared.NewDomainError("INVALID_NUMBER", "Legal number is required")
	}
	if len(i.Lines) == 0 {
		return shared.NewDomainError("EMPTY_INVOICE", "Cannot finalize an invoice without lines")
	}

	now := time.Now()
	i.Number = number
	i.FiscalYear = fiscalYear
	i.Status = InvoiceStatusFinalized
	i.FinalizedAt = &now
	i.UpdatedAt = now
	i.IncrementVersion()

	i.AddDomainEvent(NewInvoiceFinalizedEvent(i))

	return nil
}

// MarkSent records transmission to the customer or the PDP
func (i *Invoice) MarkSent() error {
	if i.Status != InvoiceStatusFinalized {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot send invoice in %s status", i.Status))
	}
	now := time.Now()
	i.Status = InvoiceStatusSent
	i.SentAt = &now
	i.UpdatedAt = now
	i.IncrementVersion()

	i.AddDomainEvent(NewInvoiceSentEvent(i))

	return nil
}

// MarkPaid records full settlement
func (i *Invoice) MarkPaid(reference string) error {
	if i.Status != InvoiceStatusFinalized && i.Status != InvoiceStatusSent {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot pay invoice in %s status", i.Status))
	}
	now := time.Now()
	i.Status = InvoiceStatusPaid
	i.PaymentReference = reference
	i.PaidAt = &now
	i.UpdatedAt = now
	i.IncrementVersion()

	i.AddDomainEvent(NewInvoicePaidEvent(i))

	return nil
}

// Cancel abandons a draft. Numbered documents can never be cancelled;
// they are corrected with a credit note so the sequence stays gapless.
func (i *Invoice) Cancel(reason string) error {
	if i.Status != InvoiceStatusDraft {
		return shared.NewDomainError("INVALID_STATE", "Only draft invoices can be cancelled; issue a credit note instead")
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Cancel reason is required")
	}
	now := time.Now()
	i.Status = InvoiceStatusCancelled
	i.CancelledAt = &now
	i.CancelReason = reason
	i.UpdatedAt = now
	i.IncrementVersion()

	i.AddDomainEvent(NewInvoiceCancelledEvent(i))

	return nil
}

// GetTotalTTCMoney returns the gross total as Money
func (i *Invoice) GetTotalTTCMoney() valueobject.Money {
	return valueobject.NewMoneyEUR(i.TotalTTC)
}

// GetTotalHTMoney returns the net total as Money
func (i *Invoice) GetTotalHTMoney() valueobject.Money {
	return valueobject.NewMoneyEUR(i.TotalHT)
}
