package reporting

import (
	"testing"
	"time"

	"github.com/facturio/backend/internal/domain/fiscal"
	"github.com/facturio/backend/internal/domain/invoicing"
	"github.com/facturio/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTransaction(docType invoicing.DocumentType, category invoicing.TransactionCategory, date time.Time, ht, vat string) Transaction {
	htDec, _ := decimal.NewFromString(ht)
	vatDec, _ := decimal.NewFromString(vat)
	return Transaction{
		InvoiceID:    uuid.New(),
		Number:       "FA-2025-0001",
		DocumentType: docType,
		Category:     category,
		Date:         date,
		TotalHT:      htDec,
		TotalVAT:     vatDec,
		TotalTTC:     htDec.Add(vatDec),
		VATBreakdown: []invoicing.VATBreakdownEntry{
			{Rate: valueobject.VATRateStandard, NetAmount: htDec, VATAmount: vatDec},
		},
	}
}

func TestSummary_Add(t *testing.T) {
	march := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	t.Run("accumulates signed totals", func(t *testing.T) {
		s, err := NewSummary(march, fiscal.FrequencyMonthly)
		require.NoError(t, err)

		require.NoError(t, s.Add(testTransaction(invoicing.DocumentTypeInvoice, invoicing.TransactionCategoryB2C, march, "100.00", "20.00")))
		require.NoError(t, s.Add(testTransaction(invoicing.DocumentTypeCreditNote, invoicing.TransactionCategoryB2C, march, "30.00", "6.00")))

		assert.Equal(t, 2, s.Count)
		assert.Equal(t, 1, s.CountByType[invoicing.DocumentTypeInvoice])
		assert.Equal(t, 1, s.CountByType[invoicing.DocumentTypeCreditNote])
		assert.Equal(t, "70.00", s.TotalHT.StringFixed(2))
		assert.Equal(t, "14.00", s.TotalVAT.StringFixed(2))
		assert.Equal(t, "84.00", s.TotalTTC.StringFixed(2))

		require.Len(t, s.TotalsByRate, 1)
		assert.Equal(t, valueobject.VATRateStandard, s.TotalsByRate[0].Rate)
		assert.Equal(t, "70.00", s.TotalsByRate[0].NetAmount.StringFixed(2))
		assert.Equal(t, "14.00", s.TotalsByRate[0].VATAmount.StringFixed(2))
	})

	t.Run("rejects out-of-period transaction", func(t *testing.T) {
		s, err := NewSummary(march, fiscal.FrequencyMonthly)
		require.NoError(t, err)

		err = s.Add(testTransaction(invoicing.DocumentTypeInvoice, invoicing.TransactionCategoryB2C,
			time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), "100.00", "20.00"))
		assert.Error(t, err)
		assert.Zero(t, s.Count)
	})

	t.Run("quarterly period spans three months", func(t *testing.T) {
		s, err := NewSummary(march, fiscal.FrequencyQuarterly)
		require.NoError(t, err)

		require.NoError(t, s.Add(testTransaction(invoicing.DocumentTypeInvoice, invoicing.TransactionCategoryB2C,
			time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), "50.00", "10.00")))
		assert.Equal(t, "Q1 2025", s.Label())
	})
}

func TestSummary_IsOverdue(t *testing.T) {
	january := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	s, err := NewSummary(january, fiscal.FrequencyMonthly)
	require.NoError(t, err)

	// Deadline for January 2025 is 2025-02-28
	assert.False(t, s.IsOverdue(time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)))
	assert.True(t, s.IsOverdue(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)))

	s.MarkSubmitted(time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC))
	assert.False(t, s.IsOverdue(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.NotNil(t, s.SubmittedAt)
}

func TestAggregate(t *testing.T) {
	t.Run("buckets transactions by period in chronological order", func(t *testing.T) {
		txs := []Transaction{
			testTransaction(invoicing.DocumentTypeInvoice, invoicing.TransactionCategoryB2C,
				time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), "100.00", "20.00"),
			testTransaction(invoicing.DocumentTypeInvoice, invoicing.TransactionCategoryB2C,
				time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC), "200.00", "40.00"),
			testTransaction(invoicing.DocumentTypeInvoice, invoicing.TransactionCategoryB2C,
				time.Date(2025, 3, 28, 0, 0, 0, 0, time.UTC), "50.00", "10.00"),
		}

		summaries, err := Aggregate(txs, fiscal.FrequencyMonthly)
		require.NoError(t, err)
		require.Len(t, summaries, 2)

		assert.Equal(t, "January 2025", summaries[0].Label())
		assert.Equal(t, 1, summaries[0].Count)
		assert.Equal(t, "March 2025", summaries[1].Label())
		assert.Equal(t, 2, summaries[1].Count)
		assert.Equal(t, "150.00", summaries[1].TotalHT.StringFixed(2))
	})

	t.Run("rejects invalid frequency", func(t *testing.T) {
		_, err := Aggregate(nil, fiscal.Frequency("WEEKLY"))
		assert.Error(t, err)
	})

	t.Run("empty input yields no summaries", func(t *testing.T) {
		summaries, err := Aggregate(nil, fiscal.FrequencyMonthly)
		require.NoError(t, err)
		assert.Empty(t, summaries)
	})
}

func TestNewTransactionFromInvoice(t *testing.T) {
	supplier, _ := invoicing.NewParty("Facturio SAS")
	customer, _ := invoicing.NewParty("Jean Dupont")

	inv, err := invoicing.NewInvoice(nil, invoicing.DocumentTypeInvoice, invoicing.TransactionCategoryB2C,
		supplier, customer, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, inv.AddLine("Abonnement", decimal.NewFromInt(1), decimal.NewFromFloat(100), valueobject.VATRateStandard))

	t.Run("rejects unnumbered draft", func(t *testing.T) {
		_, err := NewTransactionFromInvoice(inv)
		assert.Error(t, err)
	})

	t.Run("flattens a finalized invoice", func(t *testing.T) {
		require.NoError(t, inv.Finalize("FA-2025-0001", 2025))

		tx, err := NewTransactionFromInvoice(inv)
		require.NoError(t, err)
		assert.Equal(t, "FA-2025-0001", tx.Number)
		assert.Equal(t, "120.00", tx.TotalTTC.StringFixed(2))
		assert.True(t, tx.RequiresEReporting())
		require.Len(t, tx.VATBreakdown, 1)
	})
}
