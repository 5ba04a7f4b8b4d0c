package invoicing

// DocumentType represents the kind of fiscal document being numbered
type DocumentType string

const (
	DocumentTypeInvoice    DocumentType = "INVOICE"
	DocumentTypeCreditNote DocumentType = "CREDIT_NOTE"
)

// IsValid checks if the document type is a valid DocumentType
func (t DocumentType) IsValid() bool {
	return t == DocumentTypeInvoice || t == DocumentTypeCreditNote
}

// String returns the string representation of DocumentType
func (t DocumentType) String() string {
	return string(t)
}

// Prefix returns the legal number prefix: FA for invoices (factures),
// AV for credit notes (avoirs)
func (t DocumentType) Prefix() string {
	if t == DocumentTypeCreditNote {
		return "AV"
	}
	return "FA"
}

// FacturXTypeCode returns the UNTDID 1001 document type code used in
// Factur-X: 380 commercial invoice, 381 credit note
func (t DocumentType) FacturXTypeCode() string {
	if t == DocumentTypeCreditNote {
		return "381"
	}
	return "380"
}
