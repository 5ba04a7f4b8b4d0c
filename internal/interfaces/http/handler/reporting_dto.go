package handler

import (
	"time"

	"github.com/facturio/backend/internal/domain/reporting"
)

// ListSummariesRequest represents e-reporting summary query parameters
type ListSummariesRequest struct {
	From  string `form:"from" binding:"required,datetime=2006-01-02"`
	Until string `form:"until" binding:"required,datetime=2006-01-02"`
}

// SubmitPeriodRequest represents a request to submit a reporting period
type SubmitPeriodRequest struct {
	ReferenceDate string `json:"reference_date" binding:"required,datetime=2006-01-02" example:"2026-03-14"`
}

// TransmissionReceiptResponse is the platform acknowledgement of a submission
type TransmissionReceiptResponse struct {
	ID            string    `json:"id"`
	PlatformID    string    `json:"platform_id"`
	Status        string    `json:"status"`
	Message       string    `json:"message,omitempty"`
	TransmittedAt time.Time `json:"transmitted_at"`
}

// SubmitPeriodResponse pairs the submitted summary with the platform receipt
type SubmitPeriodResponse struct {
	Summary *reporting.Summary          `json:"summary"`
	Receipt TransmissionReceiptResponse `json:"receipt"`
}
