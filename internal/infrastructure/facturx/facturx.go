// Package facturx builds the EN 16931 structured XML (CrossIndustryInvoice,
// BASIC profile) for finalized documents. The XML is the machine-readable
// half of a Factur-X document; PDF embedding and XSD validation are external
// collaborators.
package facturx

import (
	"encoding/xml"
	"fmt"

	"github.com/facturio/backend/internal/domain/invoicing"
	"github.com/facturio/backend/internal/domain/shared"
	"github.com/facturio/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// UNTDID 1001 document type codes
const (
	TypeCodeInvoice    = "380"
	TypeCodeCreditNote = "381"
)

// GuidelineBasic is the EN 16931 BASIC profile identifier
const GuidelineBasic = "urn:cen.eu:en16931:2017#compliant#urn:factur-x.eu:1p0:basic"

// dateFormat102 is the UNECE qualifier for CCYYMMDD date strings
const dateFormat102 = "102"

// CrossIndustryInvoice is the document root. Namespace prefixes follow the
// UN/CEFACT convention (rsm/ram/udt) so the output matches what downstream
// Factur-X tooling expects.
type CrossIndustryInvoice struct {
	XMLName      xml.Name `xml:"rsm:CrossIndustryInvoice"`
	RsmNamespace string   `xml:"xmlns:rsm,attr"`
	RamNamespace string   `xml:"xmlns:ram,attr"`
	UdtNamespace string   `xml:"xmlns:udt,attr"`

	Context     ExchangedDocumentContext    `xml:"rsm:ExchangedDocumentContext"`
	Document    ExchangedDocument           `xml:"rsm:ExchangedDocument"`
	Transaction SupplyChainTradeTransaction `xml:"rsm:SupplyChainTradeTransaction"`
}

type ExchangedDocumentContext struct {
	Guideline DocumentContextParameter `xml:"ram:GuidelineSpecifiedDocumentContextParameter"`
}

type DocumentContextParameter struct {
	ID string `xml:"ram:ID"`
}

type ExchangedDocument struct {
	ID            string        `xml:"ram:ID"`
	TypeCode      string        `xml:"ram:TypeCode"`
	IssueDateTime IssueDateTime `xml:"ram:IssueDateTime"`
}

type IssueDateTime struct {
	DateTimeString DateTimeString `xml:"udt:DateTimeString"`
}

type DateTimeString struct {
	Format string `xml:"format,attr"`
	Value  string `xml:",chardata"`
}

type SupplyChainTradeTransaction struct {
	LineItems  []TradeLineItem       `xml:"ram:IncludedSupplyChainTradeLineItem"`
	Agreement  HeaderTradeAgreement  `xml:"ram:ApplicableHeaderTradeAgreement"`
	Delivery   HeaderTradeDelivery   `xml:"ram:ApplicableHeaderTradeDelivery"`
	Settlement HeaderTradeSettlement `xml:"ram:ApplicableHeaderTradeSettlement"`
}

type TradeLineItem struct {
	LineDocument LineDocument       `xml:"ram:AssociatedDocumentLineDocument"`
	Product      TradeProduct       `xml:"ram:SpecifiedTradeProduct"`
	Agreement    LineTradeAgreement `xml:"ram:SpecifiedLineTradeAgreement"`
	Delivery     LineTradeDelivery  `xml:"ram:SpecifiedLineTradeDelivery"`
	Settlement   LineTradeSettlement `xml:"ram:SpecifiedLineTradeSettlement"`
}

type LineDocument struct {
	LineID int `xml:"ram:LineID"`
}

type TradeProduct struct {
	Name string `xml:"ram:Name"`
}

type LineTradeAgreement struct {
	NetPrice TradePrice `xml:"ram:NetPriceProductTradePrice"`
}

type TradePrice struct {
	ChargeAmount string `xml:"ram:ChargeAmount"`
}

type LineTradeDelivery struct {
	BilledQuantity string `xml:"ram:BilledQuantity"`
}

type LineTradeSettlement struct {
	TradeTax  LineTradeTax         `xml:"ram:ApplicableTradeTax"`
	Summation LineMonetarySummation `xml:"ram:SpecifiedTradeSettlementLineMonetarySummation"`
}

type LineTradeTax struct {
	TypeCode              string `xml:"ram:TypeCode"`
	CategoryCode          string `xml:"ram:CategoryCode"`
	RateApplicablePercent string `xml:"ram:RateApplicablePercent"`
}

type LineMonetarySummation struct {
	LineTotalAmount string `xml:"ram:LineTotalAmount"`
}

type HeaderTradeAgreement struct {
	Seller TradeParty `xml:"ram:SellerTradeParty"`
	Buyer  TradeParty `xml:"ram:BuyerTradeParty"`
}

type TradeParty struct {
	Name              string             `xml:"ram:Name"`
	LegalOrganization *LegalOrganization `xml:"ram:SpecifiedLegalOrganization,omitempty"`
	Address           *TradeAddress      `xml:"ram:PostalTradeAddress,omitempty"`
	TaxRegistration   *TaxRegistration   `xml:"ram:SpecifiedTaxRegistration,omitempty"`
}

type LegalOrganization struct {
	ID SchemeID `xml:"ram:ID"`
}

// SchemeID carries an identifier with its ISO 6523 scheme. 0002 is the
// SIREN scheme, 0009 the SIRET scheme.
type SchemeID struct {
	SchemeID string `xml:"schemeID,attr"`
	Value    string `xml:",chardata"`
}

type TradeAddress struct {
	PostcodeCode string `xml:"ram:PostcodeCode,omitempty"`
	LineOne      string `xml:"ram:LineOne,omitempty"`
	CityName     string `xml:"ram:CityName,omitempty"`
	CountryID    string `xml:"ram:CountryID,omitempty"`
}

type TaxRegistration struct {
	ID SchemeID `xml:"ram:ID"`
}

type HeaderTradeDelivery struct{}

type HeaderTradeSettlement struct {
	CurrencyCode       string                  `xml:"ram:InvoiceCurrencyCode"`
	TradeTaxes         []HeaderTradeTax        `xml:"ram:ApplicableTradeTax"`
	ReferencedDocument *ReferencedDocument     `xml:"ram:InvoiceReferencedDocument,omitempty"`
	Summation          HeaderMonetarySummation `xml:"ram:SpecifiedTradeSettlementHeaderMonetarySummation"`
}

type HeaderTradeTax struct {
	CalculatedAmount      string `xml:"ram:CalculatedAmount"`
	TypeCode              string `xml:"ram:TypeCode"`
	BasisAmount           string `xml:"ram:BasisAmount"`
	CategoryCode          string `xml:"ram:CategoryCode"`
	RateApplicablePercent string `xml:"ram:RateApplicablePercent"`
}

type ReferencedDocument struct {
	IssuerAssignedID string `xml:"ram:IssuerAssignedID"`
}

type HeaderMonetarySummation struct {
	LineTotalAmount     string         `xml:"ram:LineTotalAmount"`
	TaxBasisTotalAmount string         `xml:"ram:TaxBasisTotalAmount"`
	TaxTotalAmount      CurrencyAmount `xml:"ram:TaxTotalAmount"`
	GrandTotalAmount    string         `xml:"ram:GrandTotalAmount"`
	DuePayableAmount    string         `xml:"ram:DuePayableAmount"`
}

type CurrencyAmount struct {
	CurrencyID string `xml:"currencyID,attr"`
	Value      string `xml:",chardata"`
}

// Builder assembles CrossIndustryInvoice documents from finalized invoices.
type Builder struct{}

// NewBuilder creates a Factur-X builder
func NewBuilder() *Builder {
	return &Builder{}
}

// BuildDocument maps a finalized invoice to the CrossIndustryInvoice model.
func (b *Builder) BuildDocument(inv *invoicing.Invoice) (*CrossIndustryInvoice, error) {
	if inv == nil {
		return nil, shared.NewDomainError("INVALID_INVOICE", "Invoice is required")
	}
	if inv.Number == "" {
		return nil, shared.NewDomainError("INVALID_STATE", "Only numbered documents can be rendered as Factur-X")
	}

	typeCode := TypeCodeInvoice
	if inv.DocumentType == invoicing.DocumentTypeCreditNote {
		typeCode = TypeCodeCreditNote
	}

	doc := &CrossIndustryInvoice{
		RsmNamespace: "urn:un:unece:uncefact:data:standard:CrossIndustryInvoice:100",
		RamNamespace: "urn:un:unece:uncefact:data:standard:ReusableAggregateBusinessInformationEntity:100",
		UdtNamespace: "urn:un:unece:uncefact:data:standard:UnqualifiedDataType:100",
		Context: ExchangedDocumentContext{
			Guideline: DocumentContextParameter{ID: GuidelineBasic},
		},
		Document: ExchangedDocument{
			ID:       inv.Number,
			TypeCode: typeCode,
			IssueDateTime: IssueDateTime{
				DateTimeString: DateTimeString{
					Format: dateFormat102,
					Value:  inv.IssueDate.Format("20060102"),
				},
			},
		},
		Transaction: SupplyChainTradeTransaction{
			LineItems: buildLineItems(inv),
			Agreement: HeaderTradeAgreement{
				Seller: buildTradeParty(inv.Supplier.Party),
				Buyer:  buildTradeParty(inv.Customer.Party),
			},
			Settlement: buildSettlement(inv),
		},
	}

	return doc, nil
}

// Build renders the invoice as indented XML with the standard header.
func (b *Builder) Build(inv *invoicing.Invoice) ([]byte, error) {
	doc, err := b.BuildDocument(inv)
	if err != nil {
		return nil, err
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Factur-X document: %w", err)
	}

	return append([]byte(xml.Header), body...), nil
}

func buildLineItems(inv *invoicing.Invoice) []TradeLineItem {
	items := make([]TradeLineItem, 0, len(inv.Lines))
	for idx := range inv.Lines {
		line := &inv.Lines[idx]
		items = append(items, TradeLineItem{
			LineDocument: LineDocument{LineID: idx + 1},
			Product:      TradeProduct{Name: line.Description},
			Agreement: LineTradeAgreement{
				NetPrice: TradePrice{ChargeAmount: amount(line.UnitPrice)},
			},
			Delivery: LineTradeDelivery{BilledQuantity: line.Quantity.String()},
			Settlement: LineTradeSettlement{
				TradeTax: LineTradeTax{
					TypeCode:              "VAT",
					CategoryCode:          categoryCode(line.VATRate),
					RateApplicablePercent: rate(line.VATRate),
				},
				Summation: LineMonetarySummation{LineTotalAmount: amount(line.NetAmount())},
			},
		})
	}
	return items
}

func buildTradeParty(p invoicing.Party) TradeParty {
	party := TradeParty{Name: p.Name}

	if p.SIRET != "" {
		party.LegalOrganization = &LegalOrganization{ID: SchemeID{SchemeID: "0009", Value: p.SIRET}}
	} else if p.SIREN != "" {
		party.LegalOrganization = &LegalOrganization{ID: SchemeID{SchemeID: "0002", Value: p.SIREN}}
	}

	if p.AddressLine != "" || p.City != "" || p.PostalCode != "" || p.CountryCode != "" {
		party.Address = &TradeAddress{
			PostcodeCode: p.PostalCode,
			LineOne:      p.AddressLine,
			CityName:     p.City,
			CountryID:    p.CountryCode,
		}
	}

	if p.VATNumber != "" {
		party.TaxRegistration = &TaxRegistration{ID: SchemeID{SchemeID: "VA", Value: p.VATNumber}}
	}

	return party
}

func buildSettlement(inv *invoicing.Invoice) HeaderTradeSettlement {
	breakdown := inv.VATBreakdown()
	taxes := make([]HeaderTradeTax, 0, len(breakdown))
	for _, entry := range breakdown {
		taxes = append(taxes, HeaderTradeTax{
			CalculatedAmount:      amount(entry.VATAmount),
			TypeCode:              "VAT",
			BasisAmount:           amount(entry.NetAmount),
			CategoryCode:          categoryCode(entry.Rate),
			RateApplicablePercent: rate(entry.Rate),
		})
	}

	settlement := HeaderTradeSettlement{
		CurrencyCode: "EUR",
		TradeTaxes:   taxes,
		Summation: HeaderMonetarySummation{
			LineTotalAmount:     amount(inv.TotalHT),
			TaxBasisTotalAmount: amount(inv.TotalHT),
			TaxTotalAmount:      CurrencyAmount{CurrencyID: "EUR", Value: amount(inv.TotalVAT)},
			GrandTotalAmount:    amount(inv.TotalTTC),
			DuePayableAmount:    amount(inv.TotalTTC),
		},
	}

	// Credit notes reference the corrected document
	if inv.RelatedNumber != "" {
		settlement.ReferencedDocument = &ReferencedDocument{IssuerAssignedID: inv.RelatedNumber}
	}

	return settlement
}

// categoryCode maps the rate to its UNTDID 5305 VAT category.
// S = standard rated, Z = zero rated.
func categoryCode(r valueobject.VATRate) string {
	if r == valueobject.VATRateZero {
		return "Z"
	}
	return "S"
}

func rate(r valueobject.VATRate) string {
	return r.Percentage().StringFixed(2)
}

func amount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
