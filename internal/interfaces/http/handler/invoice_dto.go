package handler

// PartyRequest identifies one side of an invoice in API requests
type PartyRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=200" example:"Client SARL"`
	SIREN       string `json:"siren" binding:"omitempty,len=9,numeric" example:"552100554"`
	SIRET       string `json:"siret" binding:"omitempty,len=14,numeric" example:"55210055400013"`
	VATNumber   string `json:"vat_number" binding:"max=20" example:"FR40303265045"`
	AddressLine string `json:"address_line" binding:"max=500" example:"12 rue de la Paix"`
	PostalCode  string `json:"postal_code" binding:"max=20" example:"75002"`
	City        string `json:"city" binding:"max=100" example:"Paris"`
	CountryCode string `json:"country_code" binding:"omitempty,len=2" example:"FR"`
}

// LineRequest represents one billed item in API requests
type LineRequest struct {
	Description string  `json:"description" binding:"required,min=1,max=500" example:"Prestation de conseil"`
	Quantity    float64 `json:"quantity" binding:"required,gt=0" example:"2"`
	UnitPrice   float64 `json:"unit_price" binding:"gte=0" example:"500.00"`
	VATRate     string  `json:"vat_rate" binding:"required,oneof=STANDARD INTERMEDIATE REDUCED SUPER_REDUCED ZERO" example:"STANDARD"`
}

// CreateInvoiceRequest represents a request to open a draft invoice
type CreateInvoiceRequest struct {
	DocumentType string        `json:"document_type" binding:"omitempty,oneof=INVOICE CREDIT_NOTE" example:"INVOICE"`
	Category     string        `json:"category" binding:"required,oneof=B2B B2C EXPORT" example:"B2B"`
	Customer     PartyRequest  `json:"customer" binding:"required"`
	IssueDate    string        `json:"issue_date" binding:"required,datetime=2006-01-02" example:"2026-03-14"`
	DueDate      string        `json:"due_date" binding:"omitempty,datetime=2006-01-02" example:"2026-04-13"`
	Remark       string        `json:"remark" binding:"max=1000" example:"Conditions de paiement: 30 jours"`
	Lines        []LineRequest `json:"lines" binding:"omitempty,dive"`
}

// UpdateInvoiceRequest represents a request to update a draft invoice
type UpdateInvoiceRequest struct {
	IssueDate *string       `json:"issue_date" binding:"omitempty,datetime=2006-01-02" example:"2026-03-20"`
	DueDate   *string       `json:"due_date" binding:"omitempty,datetime=2006-01-02" example:"2026-04-19"`
	Remark    *string       `json:"remark" binding:"omitempty,max=1000" example:"Acompte de 30% versé"`
	Customer  *PartyRequest `json:"customer"`
}

// CreateCreditNoteRequest represents a request to open a draft credit note
type CreateCreditNoteRequest struct {
	OriginalID string        `json:"original_id" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	IssueDate  string        `json:"issue_date" binding:"required,datetime=2006-01-02" example:"2026-03-20"`
	Remark     string        `json:"remark" binding:"max=1000" example:"Avoir sur facture FA-2026-0012"`
	Lines      []LineRequest `json:"lines" binding:"omitempty,dive"`
}

// RecordPaymentRequest represents a request to record a payment
type RecordPaymentRequest struct {
	Reference string `json:"reference" binding:"max=200" example:"VIR-2026-889"`
}

// CancelInvoiceRequest represents a request to cancel a draft
type CancelInvoiceRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500" example:"Commande annulée par le client"`
}

// ListInvoicesRequest represents invoice list query parameters
type ListInvoicesRequest struct {
	Page         int    `form:"page" binding:"omitempty,min=1"`
	PageSize     int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	DocumentType string `form:"document_type" binding:"omitempty,oneof=INVOICE CREDIT_NOTE"`
	Status       string `form:"status" binding:"omitempty,oneof=DRAFT FINALIZED SENT PAID CANCELLED"`
	Category     string `form:"category" binding:"omitempty,oneof=B2B B2C EXPORT"`
	FiscalYear   int    `form:"fiscal_year" binding:"omitempty,min=2000,max=2200"`
	CustomerName string `form:"customer_name" binding:"omitempty,max=200"`
	IssuedFrom   string `form:"issued_from" binding:"omitempty,datetime=2006-01-02"`
	IssuedUntil  string `form:"issued_until" binding:"omitempty,datetime=2006-01-02"`
}
