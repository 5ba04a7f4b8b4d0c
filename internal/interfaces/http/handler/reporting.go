package handler

import (
	"strconv"

	reportingapp "github.com/facturio/backend/internal/application/reporting"
	"github.com/facturio/backend/internal/infrastructure/pdp"
	"github.com/gin-gonic/gin"
)

// ReportingHandler handles e-reporting and fiscal export API endpoints
type ReportingHandler struct {
	BaseHandler
	ereportingService *reportingapp.EReportingService
	fecService        *reportingapp.FECExportService
}

// NewReportingHandler creates a new ReportingHandler
func NewReportingHandler(ereportingService *reportingapp.EReportingService, fecService *reportingapp.FECExportService) *ReportingHandler {
	return &ReportingHandler{
		ereportingService: ereportingService,
		fecService:        fecService,
	}
}

// ListSummaries returns per-period e-reporting summaries for B2C and export
// transactions issued between the two dates
func (h *ReportingHandler) ListSummaries(c *gin.Context) {
	var req ListSummariesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	from, err := parseDate(req.From)
	if err != nil {
		h.BadRequest(c, "Invalid from date")
		return
	}
	until, err := parseDate(req.Until)
	if err != nil {
		h.BadRequest(c, "Invalid until date")
		return
	}
	if until.Before(from) {
		h.BadRequest(c, "Until date must not be before from date")
		return
	}

	summaries, err := h.ereportingService.BuildSummaries(c.Request.Context(), getCompanyID(c), from, until)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, summaries)
}

// SubmitPeriod transmits the summary of the period containing the reference
// date to the e-invoicing platform
func (h *ReportingHandler) SubmitPeriod(c *gin.Context) {
	var req SubmitPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	referenceDate, err := parseDate(req.ReferenceDate)
	if err != nil {
		h.BadRequest(c, "Invalid reference date")
		return
	}

	summary, receipt, err := h.ereportingService.SubmitPeriod(c.Request.Context(), getCompanyID(c), referenceDate)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, SubmitPeriodResponse{
		Summary: summary,
		Receipt: toReceiptResponse(receipt),
	})
}

// ExportFEC builds the FEC archive for a closed fiscal year and returns its
// download location
func (h *ReportingHandler) ExportFEC(c *gin.Context) {
	fiscalYear, err := strconv.Atoi(c.Param("year"))
	if err != nil || fiscalYear < 2000 || fiscalYear > 2200 {
		h.BadRequest(c, "Invalid fiscal year")
		return
	}

	export, err := h.fecService.ExportFiscalYear(c.Request.Context(), getCompanyID(c), fiscalYear)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, export)
}

func toReceiptResponse(receipt pdp.Receipt) TransmissionReceiptResponse {
	return TransmissionReceiptResponse{
		ID:            receipt.ID,
		PlatformID:    receipt.PlatformID,
		Status:        string(receipt.Status),
		Message:       receipt.Message,
		TransmittedAt: receipt.TransmittedAt,
	}
}
