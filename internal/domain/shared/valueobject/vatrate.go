package valueobject

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// VATRate represents a French VAT rate category (article 278 sq. CGI).
// The code is stored, the percentage is derived; this keeps persisted data
// stable if a statutory rate changes for new documents.
type VATRate string

const (
	VATRateStandard     VATRate = "STANDARD"      // 20% - default rate
	VATRateIntermediate VATRate = "INTERMEDIATE"  // 10% - restauration, transport
	VATRateReduced      VATRate = "REDUCED"       // 5.5% - essential goods
	VATRateSuperReduced VATRate = "SUPER_REDUCED" // 2.1% - press, medication
	VATRateZero         VATRate = "ZERO"          // 0% - exports, intra-EU
)

// IsValid checks if the rate is a valid VATRate
func (r VATRate) IsValid() bool {
	switch r {
	case VATRateStandard, VATRateIntermediate, VATRateReduced, VATRateSuperReduced, VATRateZero:
		return true
	}
	return false
}

// String returns the string representation of VATRate
func (r VATRate) String() string {
	return string(r)
}

// Percentage returns the statutory percentage for the rate
func (r VATRate) Percentage() decimal.Decimal {
	switch r {
	case VATRateStandard:
		return decimal.NewFromFloat(20)
	case VATRateIntermediate:
		return decimal.NewFromFloat(10)
	case VATRateReduced:
		return decimal.NewFromFloat(5.5)
	case VATRateSuperReduced:
		return decimal.NewFromFloat(2.1)
	default:
		return decimal.Zero
	}
}

// VATAmount computes the VAT due on a net (HT) amount, rounded to the cent
func (r VATRate) VATAmount(net Money) Money {
	return net.CalculatePercentage(r.Percentage()).Round(2)
}

// AllVATRates returns every valid rate, standard first
func AllVATRates() []VATRate {
	return []VATRate{VATRateStandard, VATRateIntermediate, VATRateReduced, VATRateSuperReduced, VATRateZero}
}

// VATRateFromPercentage maps a percentage back to its rate category
func VATRateFromPercentage(pct decimal.Decimal) (VATRate, error) {
	for _, r := range AllVATRates() {
		if r.Percentage().Equal(pct) {
			return r, nil
		}
	}
	return "", fmt.Errorf("no French VAT rate for percentage %s", pct)
}
