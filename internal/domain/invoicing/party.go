package invoicing

import (
	"strings"

	"github.com/facturio/backend/internal/domain/shared"
)

// Party identifies one side of an invoice: the issuing company or the
// customer. French legal entities carry a SIREN (9 digits) or a SIRET
// (14 digits, SIREN + establishment code); foreign or B2C parties may
// carry neither.
type Party struct {
	Name        string `json:"name"`
	SIREN       string `json:"siren,omitempty"`
	SIRET       string `json:"siret,omitempty"`
	VATNumber   string `json:"vat_number,omitempty"`
	AddressLine string `json:"address_line,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	City        string `json:"city,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
}

// NewParty creates a party, validating any registration numbers present
func NewParty(name string) (Party, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Party{}, shared.NewDomainError("INVALID_PARTY", "Party name is required")
	}
	return Party{Name: name, CountryCode: "FR"}, nil
}

// WithSIRET attaches a SIRET (and its implied SIREN) to the party
func (p Party) WithSIRET(siret string) (Party, error) {
	siret = normalizeDigits(siret)
	if !ValidSIRET(siret) {
		return Party{}, shared.NewDomainError("INVALID_SIRET", "SIRET must be 14 digits with a valid checksum")
	}
	p.SIRET = siret
	p.SIREN = siret[:9]
	return p, nil
}

// WithSIREN attaches a SIREN to the party
func (p Party) WithSIREN(siren string) (Party, error) {
	siren = normalizeDigits(siren)
	if !ValidSIREN(siren) {
		return Party{}, shared.NewDomainError("INVALID_SIREN", "SIREN must be 9 digits with a valid checksum")
	}
	p.SIREN = siren
	return p, nil
}

// IsBusiness reports whether the party carries a French business registration
func (p Party) IsBusiness() bool {
	return p.SIREN != "" || p.SIRET != "" || p.VATNumber != ""
}

// ValidSIREN checks a 9-digit SIREN using the Luhn algorithm
func ValidSIREN(siren string) bool {
	return len(siren) == 9 && allDigits(siren) && luhnValid(siren)
}

// ValidSIRET checks a 14-digit SIRET using the Luhn algorithm.
// La Poste establishments (SIREN 356000000) use a plain digit-sum rule
// instead of Luhn.
func ValidSIRET(siret string) bool {
	if len(siret) != 14 || !allDigits(siret) {
		return false
	}
	if strings.HasPrefix(siret, "356000000") {
		sum := 0
		for _, c := range siret {
			sum += int(c - '0')
		}
		return sum%5 == 0
	}
	return luhnValid(siret)
}

func luhnValid(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}

func normalizeDigits(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), " ", "")
}
