package handler

import (
	"net/http"
	"time"

	invoicingapp "github.com/facturio/backend/internal/application/invoicing"
	"github.com/facturio/backend/internal/domain/invoicing"
	"github.com/facturio/backend/internal/domain/shared/valueobject"
	"github.com/facturio/backend/internal/infrastructure/facturx"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceHandler handles invoice lifecycle API endpoints
type InvoiceHandler struct {
	BaseHandler
	invoiceService *invoicingapp.InvoiceService
	facturxBuilder *facturx.Builder
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoiceService *invoicingapp.InvoiceService, facturxBuilder *facturx.Builder) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
		facturxBuilder: facturxBuilder,
	}
}

// Create opens a new draft invoice. The supplier is always the issuing
// company's legal entity; only the customer is taken from the request.
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	issueDate, err := parseDate(req.IssueDate)
	if err != nil {
		h.BadRequest(c, "Invalid issue date")
		return
	}

	appReq := invoicingapp.CreateDraftRequest{
		CompanyID:    getCompanyID(c),
		DocumentType: invoicing.DocumentType(req.DocumentType),
		Category:     invoicing.TransactionCategory(req.Category),
		Customer:     toAppParty(req.Customer),
		IssueDate:    issueDate,
		Remark:       req.Remark,
		Lines:        toAppLines(req.Lines),
	}
	if req.DueDate != "" {
		dueDate, err := parseDate(req.DueDate)
		if err != nil {
			h.BadRequest(c, "Invalid due date")
			return
		}
		appReq.DueDate = &dueDate
	}

	inv, err := h.invoiceService.CreateDraft(c.Request.Context(), appReq)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, inv)
}

// CreateCreditNote opens a draft credit note correcting a finalized invoice
func (h *InvoiceHandler) CreateCreditNote(c *gin.Context) {
	var req CreateCreditNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	originalID, err := uuid.Parse(req.OriginalID)
	if err != nil {
		h.BadRequest(c, "Invalid original invoice ID format")
		return
	}
	issueDate, err := parseDate(req.IssueDate)
	if err != nil {
		h.BadRequest(c, "Invalid issue date")
		return
	}

	cn, err := h.invoiceService.CreateCreditNote(c.Request.Context(), invoicingapp.CreditNoteRequest{
		OriginalID: originalID,
		IssueDate:  issueDate,
		Remark:     req.Remark,
		Lines:      toAppLines(req.Lines),
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, cn)
}

// GetByID retrieves an invoice by its ID
func (h *InvoiceHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	inv, err := h.invoiceService.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, inv)
}

// GetByNumber retrieves an invoice by its legal number
func (h *InvoiceHandler) GetByNumber(c *gin.Context) {
	number := c.Param("number")
	if number == "" {
		h.BadRequest(c, "Invoice number is required")
		return
	}

	inv, err := h.invoiceService.GetByNumber(c.Request.Context(), getCompanyID(c), number)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, inv)
}

// List retrieves invoices matching the query filters
func (h *InvoiceHandler) List(c *gin.Context) {
	var req ListInvoicesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter, err := toInvoiceFilter(c, req)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	invoices, total, err := h.invoiceService.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, invoices, total, filter.Page, filter.PageSize)
}

// Update modifies the header fields of a draft invoice
func (h *InvoiceHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	var req UpdateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	appReq := invoicingapp.UpdateDraftRequest{
		Remark: req.Remark,
	}
	if req.IssueDate != nil {
		issueDate, err := parseDate(*req.IssueDate)
		if err != nil {
			h.BadRequest(c, "Invalid issue date")
			return
		}
		appReq.IssueDate = &issueDate
	}
	if req.DueDate != nil {
		dueDate, err := parseDate(*req.DueDate)
		if err != nil {
			h.BadRequest(c, "Invalid due date")
			return
		}
		appReq.DueDate = &dueDate
	}
	if req.Customer != nil {
		customer := toAppParty(*req.Customer)
		appReq.Customer = &customer
	}

	inv, err := h.invoiceService.UpdateDraft(c.Request.Context(), id, appReq)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, inv)
}

// AddLine appends a billed item to a draft invoice
func (h *InvoiceHandler) AddLine(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	var req LineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	inv, err := h.invoiceService.AddLine(c.Request.Context(), id, toAppLine(req))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, inv)
}

// RemoveLine removes a billed item from a draft invoice
func (h *InvoiceHandler) RemoveLine(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}
	lineID, err := uuid.Parse(c.Param("lineId"))
	if err != nil {
		h.BadRequest(c, "Invalid line ID format")
		return
	}

	inv, err := h.invoiceService.RemoveLine(c.Request.Context(), id, lineID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, inv)
}

// Finalize assigns the next sequential legal number and freezes the document
func (h *InvoiceHandler) Finalize(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	inv, err := h.invoiceService.Finalize(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, inv)
}

// MarkSent records the transmission of a finalized document
func (h *InvoiceHandler) MarkSent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	inv, err := h.invoiceService.MarkSent(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, inv)
}

// RecordPayment records the settlement of a finalized or sent invoice
func (h *InvoiceHandler) RecordPayment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	inv, err := h.invoiceService.RecordPayment(c.Request.Context(), id, req.Reference)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, inv)
}

// Cancel abandons a draft invoice. Numbered documents cannot be cancelled,
// they are corrected by credit notes.
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	var req CancelInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	inv, err := h.invoiceService.Cancel(c.Request.Context(), id, req.Reason)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, inv)
}

// DownloadFacturX returns the Factur-X XML for a finalized invoice
func (h *InvoiceHandler) DownloadFacturX(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	inv, err := h.invoiceService.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	payload, err := h.facturxBuilder.Build(inv)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+inv.Number+`.xml"`)
	c.Data(http.StatusOK, "application/xml", payload)
}

func parseDate(value string) (time.Time, error) {
	return time.Parse("2006-01-02", value)
}

func toAppParty(req PartyRequest) invoicingapp.PartyRequest {
	return invoicingapp.PartyRequest{
		Name:        req.Name,
		SIREN:       req.SIREN,
		SIRET:       req.SIRET,
		VATNumber:   req.VATNumber,
		AddressLine: req.AddressLine,
		PostalCode:  req.PostalCode,
		City:        req.City,
		CountryCode: req.CountryCode,
	}
}

func toAppLine(req LineRequest) invoicingapp.LineRequest {
	return invoicingapp.LineRequest{
		Description: req.Description,
		Quantity:    decimal.NewFromFloat(req.Quantity),
		UnitPrice:   decimal.NewFromFloat(req.UnitPrice),
		VATRate:     valueobject.VATRate(req.VATRate),
	}
}

func toAppLines(reqs []LineRequest) []invoicingapp.LineRequest {
	if len(reqs) == 0 {
		return nil
	}
	lines := make([]invoicingapp.LineRequest, 0, len(reqs))
	for _, req := range reqs {
		lines = append(lines, toAppLine(req))
	}
	return lines
}

func toInvoiceFilter(c *gin.Context, req ListInvoicesRequest) (invoicing.InvoiceFilter, error) {
	filter := invoicing.InvoiceFilter{}
	filter.Page = req.Page
	if filter.Page == 0 {
		filter.Page = 1
	}
	filter.PageSize = req.PageSize
	if filter.PageSize == 0 {
		filter.PageSize = 20
	}
	filter.CompanyID = getCompanyID(c)

	if req.DocumentType != "" {
		docType := invoicing.DocumentType(req.DocumentType)
		filter.DocumentType = &docType
	}
	if req.Status != "" {
		status := invoicing.InvoiceStatus(req.Status)
		filter.Status = &status
	}
	if req.Category != "" {
		category := invoicing.TransactionCategory(req.Category)
		filter.Category = &category
	}
	if req.FiscalYear != 0 {
		fiscalYear := req.FiscalYear
		filter.FiscalYear = &fiscalYear
	}
	if req.CustomerName != "" {
		name := req.CustomerName
		filter.CustomerName = &name
	}
	if req.IssuedFrom != "" {
		from, err := parseDate(req.IssuedFrom)
		if err != nil {
			return filter, err
		}
		filter.IssuedFrom = &from
	}
	if req.IssuedUntil != "" {
		until, err := parseDate(req.IssuedUntil)
		if err != nil {
			return filter, err
		}
		filter.IssuedUntil = &until
	}
	return filter, nil
}
