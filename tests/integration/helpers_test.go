package integration

import (
	"testing"
	"time"

	invoicingapp "github.com/facturio/backend/internal/application/invoicing"
	"github.com/facturio/backend/internal/domain/fiscal"
	"github.com/facturio/backend/internal/domain/invoicing"
	"github.com/facturio/backend/internal/domain/shared/valueobject"
	"github.com/facturio/backend/internal/infrastructure/event"
	"github.com/facturio/backend/internal/infrastructure/persistence"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	testSupplierSIREN = "732829320"
	testCustomerSIREN = "552100554"
)

// newTestCompany builds the implicit mono-company used by the flow tests,
// with a calendar fiscal year
func newTestCompany(t *testing.T) *invoicing.Company {
	t.Helper()

	legalEntity, err := invoicing.NewParty("Facturio SARL")
	require.NoError(t, err)
	legalEntity, err = legalEntity.WithSIREN(testSupplierSIREN)
	require.NoError(t, err)

	company, err := invoicing.NewCompany("Facturio SARL", legalEntity, fiscal.DefaultYearConfig())
	require.NoError(t, err)
	return company
}

// newInvoiceService wires a real InvoiceService on top of the test database,
// with the transactional outbox as event publisher
func newInvoiceService(t *testing.T, tdb *TestDB, company *invoicing.Company) *invoicingapp.InvoiceService {
	t.Helper()

	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)

	return invoicingapp.NewInvoiceService(
		&persistence.Database{DB: tdb.DB},
		persistence.NewGormRepositories(),
		persistence.NewGormInvoiceRepository(tdb.DB),
		invoicing.NewStaticCompanyProvider(company),
		event.NewOutboxPublisher(serializer),
	)
}

// draftRequest builds a one-line B2C draft request for the implicit company
func draftRequest(customerName string, issueDate time.Time) invoicingapp.CreateDraftRequest {
	return invoicingapp.CreateDraftRequest{
		Category:  invoicing.TransactionCategoryB2C,
		Customer:  invoicingapp.PartyRequest{Name: customerName},
		IssueDate: issueDate,
		Lines: []invoicingapp.LineRequest{
			{
				Description: "Prestation de conseil",
				Quantity:    decimal.NewFromInt(1),
				UnitPrice:   decimal.NewFromInt(100),
				VATRate:     valueobject.VATRateStandard,
			},
		},
	}
}

// newDraftInvoice builds an unsaved one-line B2C draft aggregate for
// repository-level tests
func newDraftInvoice(t *testing.T, customerName string, issueDate time.Time) *invoicing.Invoice {
	t.Helper()

	supplier, err := invoicing.NewParty("Facturio SARL")
	require.NoError(t, err)
	supplier, err = supplier.WithSIREN(testSupplierSIREN)
	require.NoError(t, err)

	customer, err := invoicing.NewParty(customerName)
	require.NoError(t, err)

	inv, err := invoicing.NewInvoice(nil, invoicing.DocumentTypeInvoice,
		invoicing.TransactionCategoryB2C, supplier, customer, issueDate)
	require.NoError(t, err)

	err = inv.AddLine("Prestation de conseil", decimal.NewFromInt(1), decimal.NewFromInt(100), valueobject.VATRateStandard)
	require.NoError(t, err)

	inv.ClearDomainEvents()
	return inv
}

// newFinalizedInvoice builds an unsaved finalized invoice carrying the given
// legal number
func newFinalizedInvoice(t *testing.T, customerName, number string, issueDate time.Time) *invoicing.Invoice {
	t.Helper()

	inv := newDraftInvoice(t, customerName, issueDate)
	err := inv.Finalize(number, issueDate.Year())
	require.NoError(t, err)

	inv.ClearDomainEvents()
	return inv
}
