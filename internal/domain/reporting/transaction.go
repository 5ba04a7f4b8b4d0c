package reporting

import (
	"time"

	"github.com/facturio/backend/internal/domain/invoicing"
	"github.com/facturio/backend/internal/domain/shared"
	"github.com/facturio/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is the flattened view of a finalized document used by the
// reporting aggregator. Credit notes carry the same positive amounts as
// invoices; the aggregator applies the sign.
type Transaction struct {
	InvoiceID    uuid.UUID                       `json:"invoice_id"`
	Number       string                          `json:"number"`
	DocumentType invoicing.DocumentType          `json:"document_type"`
	Category     invoicing.TransactionCategory   `json:"category"`
	Date         time.Time                       `json:"date"`
	TotalHT      decimal.Decimal                 `json:"total_ht"`
	TotalVAT     decimal.Decimal                 `json:"total_vat"`
	TotalTTC     decimal.Decimal                 `json:"total_ttc"`
	VATBreakdown []invoicing.VATBreakdownEntry   `json:"vat_breakdown"`
}

// NewTransactionFromInvoice flattens a finalized invoice for aggregation
func NewTransactionFromInvoice(inv *invoicing.Invoice) (Transaction, error) {
	if inv == nil {
		return Transaction{}, shared.NewDomainError("INVALID_INVOICE", "Invoice is required")
	}
	if inv.Number == "" {
		return Transaction{}, shared.NewDomainError("INVALID_STATE", "Only numbered documents enter reporting")
	}
	return Transaction{
		InvoiceID:    inv.ID,
		Number:       inv.Number,
		DocumentType: inv.DocumentType,
		Category:     inv.Category,
		Date:         inv.IssueDate,
		TotalHT:      inv.TotalHT,
		TotalVAT:     inv.TotalVAT,
		TotalTTC:     inv.TotalTTC,
		VATBreakdown: inv.VATBreakdown(),
	}, nil
}

// Sign returns +1 for invoices and -1 for credit notes
func (t Transaction) Sign() decimal.Decimal {
	if t.DocumentType == invoicing.DocumentTypeCreditNote {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// SignedHT returns the net amount with the document sign applied
func (t Transaction) SignedHT() decimal.Decimal {
	return t.TotalHT.Mul(t.Sign())
}

// SignedVAT returns the VAT amount with the document sign applied
func (t Transaction) SignedVAT() decimal.Decimal {
	return t.TotalVAT.Mul(t.Sign())
}

// SignedTTC returns the gross amount with the document sign applied
func (t Transaction) SignedTTC() decimal.Decimal {
	return t.TotalTTC.Mul(t.Sign())
}

// RequiresEReporting reports whether the transaction falls under the VAT
// e-reporting obligation: B2C and export sales, which never transit a PDP
// as structured invoices.
func (t Transaction) RequiresEReporting() bool {
	return t.Category == invoicing.TransactionCategoryB2C ||
		t.Category == invoicing.TransactionCategoryExport
}

// RateTotal accumulates net and VAT amounts for one rate
type RateTotal struct {
	Rate      valueobject.VATRate `json:"rate"`
	NetAmount decimal.Decimal     `json:"net_amount"`
	VATAmount decimal.Decimal     `json:"vat_amount"`
}
