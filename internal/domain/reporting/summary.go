package reporting

import (
	"sort"
	"time"

	"github.com/facturio/backend/internal/domain/fiscal"
	"github.com/facturio/backend/internal/domain/invoicing"
	"github.com/facturio/backend/internal/domain/shared"
	"github.com/facturio/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Summary aggregates the transactions of one reporting period. Credit notes
// enter the totals negatively, so a period where sales were fully credited
// sums to zero.
type Summary struct {
	Period       fiscal.ReportingPeriod                 `json:"period"`
	Count        int                                    `json:"count"`
	CountByType  map[invoicing.DocumentType]int         `json:"count_by_type"`
	TotalHT      decimal.Decimal                        `json:"total_ht"`
	TotalVAT     decimal.Decimal                        `json:"total_vat"`
	TotalTTC     decimal.Decimal                        `json:"total_ttc"`
	TotalsByRate []RateTotal                            `json:"totals_by_rate"`
	Submitted    bool                                   `json:"submitted"`
	SubmittedAt  *time.Time                             `json:"submitted_at,omitempty"`
}

// NewSummary creates an empty summary for the period containing referenceDate
func NewSummary(referenceDate time.Time, frequency fiscal.Frequency) (*Summary, error) {
	if !frequency.IsValid() {
		return nil, shared.NewDomainError("INVALID_FREQUENCY", "Reporting frequency is not valid")
	}
	return &Summary{
		Period:      fiscal.PeriodFor(referenceDate, frequency),
		CountByType: make(map[invoicing.DocumentType]int),
		TotalHT:     decimal.Zero,
		TotalVAT:    decimal.Zero,
		TotalTTC:    decimal.Zero,
	}, nil
}

// Add accumulates a transaction into the summary. Transactions dated outside
// the period are rejected; the aggregator routes each transaction to the
// summary of its own period.
func (s *Summary) Add(tx Transaction) error {
	if !s.Period.ContainsDate(tx.Date) {
		return shared.NewDomainError("OUT_OF_PERIOD", "Transaction date is outside the reporting period")
	}

	s.Count++
	s.CountByType[tx.DocumentType]++
	s.TotalHT = s.TotalHT.Add(tx.SignedHT())
	s.TotalVAT = s.TotalVAT.Add(tx.SignedVAT())
	s.TotalTTC = s.TotalTTC.Add(tx.SignedTTC())

	sign := tx.Sign()
	for _, entry := range tx.VATBreakdown {
		s.addRateTotal(entry.Rate, entry.NetAmount.Mul(sign), entry.VATAmount.Mul(sign))
	}

	return nil
}

func (s *Summary) addRateTotal(rate valueobject.VATRate, net, vat decimal.Decimal) {
	for i := range s.TotalsByRate {
		if s.TotalsByRate[i].Rate == rate {
			s.TotalsByRate[i].NetAmount = s.TotalsByRate[i].NetAmount.Add(net)
			s.TotalsByRate[i].VATAmount = s.TotalsByRate[i].VATAmount.Add(vat)
			return
		}
	}
	s.TotalsByRate = append(s.TotalsByRate, RateTotal{Rate: rate, NetAmount: net, VATAmount: vat})
}

// MarkSubmitted records the e-reporting submission
func (s *Summary) MarkSubmitted(at time.Time) {
	s.Submitted = true
	s.SubmittedAt = &at
}

// IsOverdue reports whether the submission deadline has passed without a
// submission
func (s *Summary) IsOverdue(now time.Time) bool {
	return !s.Submitted && s.Period.IsOverdueAt(now)
}

// Label returns the human-readable period label, e.g. "March 2025" or "Q1 2025"
func (s *Summary) Label() string {
	return s.Period.Label()
}

// Aggregate buckets transactions into per-period summaries for the given
// frequency. Summaries are returned in chronological period order.
func Aggregate(transactions []Transaction, frequency fiscal.Frequency) ([]*Summary, error) {
	if !frequency.IsValid() {
		return nil, shared.NewDomainError("INVALID_FREQUENCY", "Reporting frequency is not valid")
	}

	byStart := make(map[time.Time]*Summary)
	order := make([]time.Time, 0)

	for _, tx := range transactions {
		period := fiscal.PeriodFor(tx.Date, frequency)
		summary, ok := byStart[period.Start]
		if !ok {
			summary = &Summary{
				Period:      period,
				CountByType: make(map[invoicing.DocumentType]int),
				TotalHT:     decimal.Zero,
				TotalVAT:    decimal.Zero,
				TotalTTC:    decimal.Zero,
			}
			byStart[period.Start] = summary
			order = append(order, period.Start)
		}
		if err := summary.Add(tx); err != nil {
			return nil, err
		}
	}

	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })

	summaries := make([]*Summary, 0, len(order))
	for _, start := range order {
		summaries = append(summaries, byStart[start])
	}
	return summaries, nil
}
