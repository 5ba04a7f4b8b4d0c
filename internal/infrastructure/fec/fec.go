// Package fec generates the Fichier des Écritures Comptables, the ledger
// export French companies must hand to the tax administration on audit
// (article A47 A-1 LPF). Output is tab-separated, one line per ledger
// entry line, encoded ISO-8859-15.
package fec

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/facturio/backend/internal/domain/invoicing"
	"github.com/facturio/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Journal codes for sales documents
const (
	JournalSales       = "VE" // ventes
	JournalCreditNotes = "AV" // avoirs
)

// Account numbers used for the sales entries. The chart of accounts is the
// French plan comptable général; revenue and collected VAT are split per
// rate line so the entry balances against the client account.
const (
	AccountClients      = "411000"
	AccountClientsLib   = "Clients"
	AccountRevenue      = "706000"
	AccountRevenueLib   = "Prestations de services"
	AccountVATCollected = "445710"
	AccountVATLib       = "TVA collectée"
)

// Columns lists the 18 mandatory FEC columns in their statutory order.
var Columns = []string{
	"JournalCode", "JournalLib", "EcritureNum", "EcritureDate",
	"CompteNum", "CompteLib", "CompAuxNum", "CompAuxLib",
	"PieceRef", "PieceDate", "EcritureLib", "Debit", "Credit",
	"EcritureLet", "DateLet", "ValidDate", "Montantdevise", "Idevise",
}

// Line is one ledger entry line. An entry groups the lines sharing an
// EcritureNum; within an entry debits and credits balance.
type Line struct {
	JournalCode  string
	JournalLib   string
	EcritureNum  string
	EcritureDate time.Time
	CompteNum    string
	CompteLib    string
	CompAuxNum   string
	CompAuxLib   string
	PieceRef     string
	PieceDate    time.Time
	EcritureLib  string
	Debit        decimal.Decimal
	Credit       decimal.Decimal
	ValidDate    time.Time
}

// BuildEntries converts finalized documents into balanced ledger entries.
// Each document yields one entry: the client account carries the gross
// amount, revenue and collected VAT are credited per rate. Credit notes
// post the same lines with debit and credit swapped.
func BuildEntries(invoices []*invoicing.Invoice) ([]Line, error) {
	lines := make([]Line, 0, len(invoices)*3)
	for _, inv := range invoices {
		entry, err := buildEntry(inv)
		if err != nil {
			return nil, err
		}
		lines = append(lines, entry...)
	}
	return lines, nil
}

func buildEntry(inv *invoicing.Invoice) ([]Line, error) {
	if inv == nil {
		return nil, shared.NewDomainError("INVALID_INVOICE", "Invoice is required")
	}
	if inv.Number == "" {
		return nil, shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Document %s has no legal number", inv.ID))
	}

	journalCode := JournalSales
	journalLib := "Ventes"
	if inv.DocumentType == invoicing.DocumentTypeCreditNote {
		journalCode = JournalCreditNotes
		journalLib = "Avoirs"
	}
	reversed := inv.DocumentType == invoicing.DocumentTypeCreditNote

	base := Line{
		JournalCode:  journalCode,
		JournalLib:   journalLib,
		EcritureNum:  inv.Number,
		EcritureDate: inv.IssueDate,
		PieceRef:     inv.Number,
		PieceDate:    inv.IssueDate,
		EcritureLib:  entryLabel(inv),
		ValidDate:    validDate(inv),
	}

	lines := make([]Line, 0, 2+len(inv.Lines))

	// Client line for the gross amount
	client := base
	client.CompteNum = AccountClients
	client.CompteLib = AccountClientsLib
	client.CompAuxNum = inv.Customer.SIREN
	client.CompAuxLib = inv.Customer.Name
	client.Debit, client.Credit = orient(inv.TotalTTC, reversed)
	lines = append(lines, client)

	// Revenue and VAT lines per rate
	for _, entry := range inv.VATBreakdown() {
		revenue := base
		revenue.CompteNum = AccountRevenue
		revenue.CompteLib = AccountRevenueLib
		revenue.Credit, revenue.Debit = orient(entry.NetAmount, reversed)
		lines = append(lines, revenue)

		if !entry.VATAmount.IsZero() {
			vat := base
			vat.CompteNum = AccountVATCollected
			vat.CompteLib = AccountVATLib
			vat.Credit, vat.Debit = orient(entry.VATAmount, reversed)
			lines = append(lines, vat)
		}
	}

	return lines, nil
}

// orient places the amount on the first leg unless the entry is reversed
func orient(amount decimal.Decimal, reversed bool) (first, second decimal.Decimal) {
	if reversed {
		return decimal.Zero, amount
	}
	return amount, decimal.Zero
}

func entryLabel(inv *invoicing.Invoice) string {
	if inv.DocumentType == invoicing.DocumentTypeCreditNote {
		if inv.RelatedNumber != "" {
			return fmt.Sprintf("Avoir %s sur %s - %s", inv.Number, inv.RelatedNumber, inv.Customer.Name)
		}
		return fmt.Sprintf("Avoir %s - %s", inv.Number, inv.Customer.Name)
	}
	return fmt.Sprintf("Facture %s - %s", inv.Number, inv.Customer.Name)
}

func validDate(inv *invoicing.Invoice) time.Time {
	if inv.FinalizedAt != nil {
		return *inv.FinalizedAt
	}
	return inv.IssueDate
}

// FileName returns the statutory export file name {SIREN}FEC{YYYYMMDD}.txt,
// dated at the fiscal year closing date.
func FileName(siren string, closingDate time.Time) string {
	return fmt.Sprintf("%sFEC%s.txt", siren, closingDate.Format("20060102"))
}

// Encode writes the header row and all lines to w, tab-separated and
// transcoded to ISO-8859-15. Characters outside the charset would make the
// file non-compliant and abort the export.
func Encode(w io.Writer, lines []Line) error {
	enc := transform.NewWriter(w, charmap.ISO8859_15.NewEncoder())

	if _, err := enc.Write([]byte(strings.Join(Columns, "\t") + "\r\n")); err != nil {
		return fmt.Errorf("failed to write FEC header: %w", err)
	}

	for i := range lines {
		if _, err := enc.Write([]byte(formatLine(&lines[i]) + "\r\n")); err != nil {
			return fmt.Errorf("failed to write FEC line %s: %w", lines[i].EcritureNum, err)
		}
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to flush FEC encoder: %w", err)
	}
	return nil
}

func formatLine(l *Line) string {
	fields := []string{
		l.JournalCode,
		l.JournalLib,
		l.EcritureNum,
		formatDate(l.EcritureDate),
		l.CompteNum,
		l.CompteLib,
		l.CompAuxNum,
		l.CompAuxLib,
		l.PieceRef,
		formatDate(l.PieceDate),
		l.EcritureLib,
		FormatAmount(l.Debit),
		FormatAmount(l.Credit),
		"", // EcritureLet, lettering is not tracked
		"", // DateLet
		formatDate(l.ValidDate),
		"", // Montantdevise, all documents are in EUR
		"", // Idevise
	}
	return strings.Join(fields, "\t")
}

func formatDate(t time.Time) string {
	return t.Format("20060102")
}

// FormatAmount renders a decimal with two digits and the statutory comma
// decimal separator.
func FormatAmount(d decimal.Decimal) string {
	return strings.Replace(d.StringFixed(2), ".", ",", 1)
}

// Balance returns the debit and credit totals of the lines. A well-formed
// export has them equal.
func Balance(lines []Line) (debit, credit decimal.Decimal) {
	debit = decimal.Zero
	credit = decimal.Zero
	for i := range lines {
		debit = debit.Add(lines[i].Debit)
		credit = credit.Add(lines[i].Credit)
	}
	return debit, credit
}
