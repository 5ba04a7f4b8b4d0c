package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	invoicingapp "github.com/facturio/backend/internal/application/invoicing"
	"github.com/facturio/backend/internal/domain/fiscal"
	"github.com/facturio/backend/internal/domain/invoicing"
	"github.com/facturio/backend/internal/domain/shared"
	"github.com/facturio/backend/internal/infrastructure/facturx"
	"github.com/facturio/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// =============================================================================
// In-memory fakes
// =============================================================================

type handlerTxManager struct{}

func (m *handlerTxManager) Transaction(fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type handlerInvoiceRepo struct {
	mu       sync.Mutex
	invoices map[uuid.UUID]invoicing.Invoice
}

func newHandlerInvoiceRepo() *handlerInvoiceRepo {
	return &handlerInvoiceRepo{invoices: make(map[uuid.UUID]invoicing.Invoice)}
}

func (r *handlerInvoiceRepo) Save(_ context.Context, inv *invoicing.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.invoices[inv.ID]; ok {
		return shared.ErrAlreadyExists
	}
	r.invoices[inv.ID] = *inv
	return nil
}

func (r *handlerInvoiceRepo) Update(_ context.Context, inv *invoicing.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.invoices[inv.ID]; !ok {
		return shared.ErrNotFound
	}
	r.invoices[inv.ID] = *inv
	return nil
}

func (r *handlerInvoiceRepo) FindByID(_ context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := inv
	return &copied, nil
}

func (r *handlerInvoiceRepo) FindByNumber(_ context.Context, _ *uuid.UUID, number string) (*invoicing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invoices {
		if inv.Number == number {
			copied := inv
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *handlerInvoiceRepo) FindAll(_ context.Context, _ invoicing.InvoiceFilter) ([]*invoicing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*invoicing.Invoice, 0, len(r.invoices))
	for _, inv := range r.invoices {
		copied := inv
		out = append(out, &copied)
	}
	return out, nil
}

func (r *handlerInvoiceRepo) Count(_ context.Context, _ invoicing.InvoiceFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.invoices)), nil
}

func (r *handlerInvoiceRepo) FindFinalizedBetween(_ context.Context, _ *uuid.UUID, from, until time.Time) ([]*invoicing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*invoicing.Invoice
	for _, inv := range r.invoices {
		if inv.Number != "" && !inv.IssueDate.Before(from) && !inv.IssueDate.After(until) {
			copied := inv
			out = append(out, &copied)
		}
	}
	return out, nil
}

type handlerSequenceKey struct {
	fiscalYear int
	docType    invoicing.DocumentType
}

type handlerSequenceRepo struct {
	mu       sync.Mutex
	counters map[handlerSequenceKey]int64
}

func newHandlerSequenceRepo() *handlerSequenceRepo {
	return &handlerSequenceRepo{counters: make(map[handlerSequenceKey]int64)}
}

func (r *handlerSequenceRepo) FindOrCreate(_ context.Context, _ *uuid.UUID, fiscalYear int, docType invoicing.DocumentType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := handlerSequenceKey{fiscalYear, docType}
	if _, ok := r.counters[key]; !ok {
		r.counters[key] = 0
	}
	return nil
}

func (r *handlerSequenceRepo) LockForUpdate(_ context.Context, companyID *uuid.UUID, fiscalYear int, docType invoicing.DocumentType) (*invoicing.FiscalYearSequence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	last, ok := r.counters[handlerSequenceKey{fiscalYear, docType}]
	if !ok {
		return nil, shared.ErrNotFound
	}
	seq, err := invoicing.NewFiscalYearSequence(companyID, fiscalYear, docType)
	if err != nil {
		return nil, err
	}
	seq.LastNumber = last
	return seq, nil
}

func (r *handlerSequenceRepo) Increment(_ context.Context, seq *invoicing.FiscalYearSequence) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[handlerSequenceKey{seq.FiscalYear, seq.DocumentType}] = seq.LastNumber
	return nil
}

type handlerRepos struct {
	invoices  *handlerInvoiceRepo
	sequences *handlerSequenceRepo
}

func (f *handlerRepos) Invoices(_ *gorm.DB) invoicing.InvoiceRepository {
	return f.invoices
}

func (f *handlerRepos) Sequences(_ *gorm.DB) invoicing.SequenceRepository {
	return f.sequences
}

type handlerPublisher struct{}

func (p *handlerPublisher) PublishWithTx(_ context.Context, _ *gorm.DB, _ ...shared.DomainEvent) error {
	return nil
}

// =============================================================================
// Fixture
// =============================================================================

type invoiceAPIFixture struct {
	router *gin.Engine
}

func newInvoiceAPIFixture(t *testing.T) *invoiceAPIFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	legalEntity, err := invoicing.NewParty("Atelier Dupont")
	require.NoError(t, err)
	legalEntity, err = legalEntity.WithSIREN("732829320")
	require.NoError(t, err)

	company, err := invoicing.NewCompany("Atelier Dupont", legalEntity, fiscal.DefaultYearConfig())
	require.NoError(t, err)

	invoices := newHandlerInvoiceRepo()
	sequences := newHandlerSequenceRepo()
	service := invoicingapp.NewInvoiceService(
		&handlerTxManager{},
		&handlerRepos{invoices: invoices, sequences: sequences},
		invoices,
		invoicing.NewStaticCompanyProvider(company),
		&handlerPublisher{},
	)

	h := NewInvoiceHandler(service, facturx.NewBuilder())

	router := gin.New()
	v1 := router.Group("/api/v1")
	{
		v1.POST("/invoices", h.Create)
		v1.GET("/invoices", h.List)
		v1.GET("/invoices/:id", h.GetByID)
		v1.PUT("/invoices/:id", h.Update)
		v1.POST("/invoices/:id/lines", h.AddLine)
		v1.DELETE("/invoices/:id/lines/:lineId", h.RemoveLine)
		v1.POST("/invoices/:id/finalize", h.Finalize)
		v1.POST("/invoices/:id/send", h.MarkSent)
		v1.POST("/invoices/:id/payment", h.RecordPayment)
		v1.POST("/invoices/:id/cancel", h.Cancel)
		v1.GET("/invoices/:id/facturx", h.DownloadFacturX)
		v1.GET("/invoices/number/:number", h.GetByNumber)
		v1.POST("/credit-notes", h.CreateCreditNote)
	}

	return &invoiceAPIFixture{router: router}
}

func (f *invoiceAPIFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func invoiceData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Data)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	return data
}

func createRequestBody() map[string]any {
	return map[string]any{
		"category": "B2B",
		"customer": map[string]any{
			"name":  "Client SARL",
			"siren": "552100554",
		},
		"issue_date": "2026-03-14",
		"lines": []map[string]any{
			{
				"description": "Prestation de conseil",
				"quantity":    2,
				"unit_price":  500.0,
				"vat_rate":    "STANDARD",
			},
		},
	}
}

func (f *invoiceAPIFixture) createDraft(t *testing.T) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/v1/invoices", createRequestBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return invoiceData(t, w)["id"].(string)
}

func (f *invoiceAPIFixture) finalize(t *testing.T, id string) map[string]interface{} {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/v1/invoices/"+id+"/finalize", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return invoiceData(t, w)
}

// =============================================================================
// Tests
// =============================================================================

func TestInvoiceHandler_Create(t *testing.T) {
	t.Run("creates a draft invoice", func(t *testing.T) {
		f := newInvoiceAPIFixture(t)

		w := f.do(t, http.MethodPost, "/api/v1/invoices", createRequestBody())
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		data := invoiceData(t, w)
		assert.Equal(t, "DRAFT", data["status"])
		assert.Equal(t, "INVOICE", data["document_type"])
		assert.Empty(t, data["number"])
		assert.Equal(t, "1200", data["total_ttc"])

		supplier := data["supplier"].(map[string]interface{})
		assert.Equal(t, "Atelier Dupont", supplier["name"])
	})

	t.Run("rejects missing category", func(t *testing.T) {
		f := newInvoiceAPIFixture(t)

		body := createRequestBody()
		delete(body, "category")
		w := f.do(t, http.MethodPost, "/api/v1/invoices", body)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		assert.False(t, resp.Success)
		assert.Equal(t, dto.ErrCodeBadRequest, resp.Error.Code)
	})

	t.Run("rejects malformed issue date", func(t *testing.T) {
		f := newInvoiceAPIFixture(t)

		body := createRequestBody()
		body["issue_date"] = "14/03/2026"
		w := f.do(t, http.MethodPost, "/api/v1/invoices", body)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects invalid customer SIREN checksum", func(t *testing.T) {
		f := newInvoiceAPIFixture(t)

		body := createRequestBody()
		body["customer"] = map[string]any{"name": "Client SARL", "siren": "123456789"}
		w := f.do(t, http.MethodPost, "/api/v1/invoices", body)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodeInvalidInput, resp.Error.Code)
	})
}

func TestInvoiceHandler_GetByID(t *testing.T) {
	f := newInvoiceAPIFixture(t)
	id := f.createDraft(t)

	t.Run("returns the invoice", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/v1/invoices/"+id, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, id, invoiceData(t, w)["id"])
	})

	t.Run("returns 404 for unknown id", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/v1/invoices/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("returns 400 for malformed id", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/v1/invoices/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestInvoiceHandler_Finalize(t *testing.T) {
	t.Run("assigns the first sequential number", func(t *testing.T) {
		f := newInvoiceAPIFixture(t)
		id := f.createDraft(t)

		data := f.finalize(t, id)
		assert.Equal(t, "FINALIZED", data["status"])
		assert.Equal(t, "FA-2026-0001", data["number"])
	})

	t.Run("numbers consecutive invoices gaplessly", func(t *testing.T) {
		f := newInvoiceAPIFixture(t)

		for i := 1; i <= 3; i++ {
			id := f.createDraft(t)
			data := f.finalize(t, id)
			assert.Equal(t, fmt.Sprintf("FA-2026-%04d", i), data["number"])
		}
	})

	t.Run("rejects finalizing twice", func(t *testing.T) {
		f := newInvoiceAPIFixture(t)
		id := f.createDraft(t)
		f.finalize(t, id)

		w := f.do(t, http.MethodPost, "/api/v1/invoices/"+id+"/finalize", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodeInvalidState, resp.Error.Code)
	})
}

func TestInvoiceHandler_Lifecycle(t *testing.T) {
	t.Run("send then payment", func(t *testing.T) {
		f := newInvoiceAPIFixture(t)
		id := f.createDraft(t)
		f.finalize(t, id)

		w := f.do(t, http.MethodPost, "/api/v1/invoices/"+id+"/send", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "SENT", invoiceData(t, w)["status"])

		w = f.do(t, http.MethodPost, "/api/v1/invoices/"+id+"/payment", map[string]any{"reference": "VIR-2026-889"})
		require.Equal(t, http.StatusOK, w.Code)
		data := invoiceData(t, w)
		assert.Equal(t, "PAID", data["status"])
		assert.Equal(t, "VIR-2026-889", data["payment_reference"])
	})

	t.Run("cancel a draft", func(t *testing.T) {
		f := newInvoiceAPIFixture(t)
		id := f.createDraft(t)

		w := f.do(t, http.MethodPost, "/api/v1/invoices/"+id+"/cancel", map[string]any{"reason": "Commande annulée"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "CANCELLED", invoiceData(t, w)["status"])
	})

	t.Run("cancel requires a reason", func(t *testing.T) {
		f := newInvoiceAPIFixture(t)
		id := f.createDraft(t)

		w := f.do(t, http.MethodPost, "/api/v1/invoices/"+id+"/cancel", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("cannot cancel a numbered invoice", func(t *testing.T) {
		f := newInvoiceAPIFixture(t)
		id := f.createDraft(t)
		f.finalize(t, id)

		w := f.do(t, http.MethodPost, "/api/v1/invoices/"+id+"/cancel", map[string]any{"reason": "Erreur"})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestInvoiceHandler_Lines(t *testing.T) {
	f := newInvoiceAPIFixture(t)
	id := f.createDraft(t)

	w := f.do(t, http.MethodPost, "/api/v1/invoices/"+id+"/lines", map[string]any{
		"description": "Formation",
		"quantity":    1,
		"unit_price":  300.0,
		"vat_rate":    "REDUCED",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data := invoiceData(t, w)
	lines := data["lines"].([]interface{})
	require.Len(t, lines, 2)

	lineID := lines[1].(map[string]interface{})["id"].(string)
	w = f.do(t, http.MethodDelete, "/api/v1/invoices/"+id+"/lines/"+lineID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, invoiceData(t, w)["lines"].([]interface{}), 1)
}

func TestInvoiceHandler_List(t *testing.T) {
	f := newInvoiceAPIFixture(t)
	f.createDraft(t)
	f.createDraft(t)

	w := f.do(t, http.MethodGet, "/api/v1/invoices?page=1&page_size=10", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(2), resp.Meta.Total)
	assert.Equal(t, 1, resp.Meta.Page)
	assert.Equal(t, 10, resp.Meta.PageSize)

	t.Run("rejects oversized page size", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/v1/invoices?page_size=5000", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestInvoiceHandler_GetByNumber(t *testing.T) {
	f := newInvoiceAPIFixture(t)
	id := f.createDraft(t)
	data := f.finalize(t, id)
	number := data["number"].(string)

	w := f.do(t, http.MethodGet, "/api/v1/invoices/number/"+number, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, invoiceData(t, w)["id"])

	w = f.do(t, http.MethodGet, "/api/v1/invoices/number/FA-2026-9999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvoiceHandler_CreditNote(t *testing.T) {
	f := newInvoiceAPIFixture(t)
	id := f.createDraft(t)
	data := f.finalize(t, id)

	t.Run("creates a draft credit note against the original", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/v1/credit-notes", map[string]any{
			"original_id": id,
			"issue_date":  "2026-03-20",
			"remark":      "Avoir sur " + data["number"].(string),
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		cn := invoiceData(t, w)
		assert.Equal(t, "CREDIT_NOTE", cn["document_type"])
		assert.Equal(t, "DRAFT", cn["status"])
		assert.Equal(t, data["number"], cn["related_number"])
	})

	t.Run("rejects a draft original", func(t *testing.T) {
		draftID := f.createDraft(t)
		w := f.do(t, http.MethodPost, "/api/v1/credit-notes", map[string]any{
			"original_id": draftID,
			"issue_date":  "2026-03-20",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestInvoiceHandler_DownloadFacturX(t *testing.T) {
	f := newInvoiceAPIFixture(t)
	id := f.createDraft(t)

	t.Run("rejects a draft", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/v1/invoices/"+id+"/facturx", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("returns the XML for a numbered invoice", func(t *testing.T) {
		data := f.finalize(t, id)

		w := f.do(t, http.MethodGet, "/api/v1/invoices/"+id+"/facturx", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/xml", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), data["number"].(string))
		assert.True(t, strings.Contains(w.Body.String(), "CrossIndustryInvoice"))
	})
}

func TestInvoiceHandler_Update(t *testing.T) {
	f := newInvoiceAPIFixture(t)
	id := f.createDraft(t)

	remark := "Acompte de 30% versé"
	w := f.do(t, http.MethodPut, "/api/v1/invoices/"+id, map[string]any{
		"remark":   remark,
		"due_date": "2026-04-19",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data := invoiceData(t, w)
	assert.Equal(t, remark, data["remark"])
	assert.Contains(t, data["due_date"], "2026-04-19")
}
