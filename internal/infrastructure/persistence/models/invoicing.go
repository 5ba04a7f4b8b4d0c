package models

import (
	"time"

	"github.com/facturio/backend/internal/domain/fiscal"
	"github.com/facturio/backend/internal/domain/invoicing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FiscalYearSequenceModel is the persistence model for the legal numbering
// counter. The composite unique index is the concurrency backstop: two
// transactions racing to create the same triple collide on it, and the loser
// treats the duplicate-key error as success.
type FiscalYearSequenceModel struct {
	BaseModel
	CompanyID    *uuid.UUID             `gorm:"type:uuid;uniqueIndex:idx_sequence_triple,priority:1"`
	FiscalYear   int                    `gorm:"not null;uniqueIndex:idx_sequence_triple,priority:2"`
	DocumentType invoicing.DocumentType `gorm:"type:varchar(20);not null;uniqueIndex:idx_sequence_triple,priority:3"`
	LastNumber   int64                  `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (FiscalYearSequenceModel) TableName() string {
	return "fiscal_year_sequences"
}

// ToDomain converts the persistence model to a domain FiscalYearSequence
func (m *FiscalYearSequenceModel) ToDomain() *invoicing.FiscalYearSequence {
	return &invoicing.FiscalYearSequence{
		BaseEntity:   m.BaseModel.ToDomain(),
		CompanyID:    m.CompanyID,
		FiscalYear:   m.FiscalYear,
		DocumentType: m.DocumentType,
		LastNumber:   m.LastNumber,
	}
}

// FromDomain populates the persistence model from a domain FiscalYearSequence
func (m *FiscalYearSequenceModel) FromDomain(s *invoicing.FiscalYearSequence) {
	m.FromDomainBaseEntity(s.BaseEntity)
	m.CompanyID = s.CompanyID
	m.FiscalYear = s.FiscalYear
	m.DocumentType = s.DocumentType
	m.LastNumber = s.LastNumber
}

// InvoiceModel is the persistence model for the Invoice aggregate.
// The legal number carries a partial unique index (numbers are assigned only
// at finalization, drafts store the empty string as NULL).
type InvoiceModel struct {
	CompanyAggregateModel
	Number           *string                         `gorm:"type:varchar(30);uniqueIndex:idx_invoice_number,where:number IS NOT NULL"`
	DocumentType     invoicing.DocumentType          `gorm:"type:varchar(20);not null;index"`
	Status           invoicing.InvoiceStatus         `gorm:"type:varchar(20);not null;index"`
	Category         invoicing.TransactionCategory   `gorm:"type:varchar(10);not null"`
	Supplier         invoicing.PartyJSON             `gorm:"type:jsonb;not null"`
	Customer         invoicing.PartyJSON             `gorm:"type:jsonb;not null"`
	IssueDate        time.Time                       `gorm:"not null;index"`
	DueDate          *time.Time
	FiscalYear       int                             `gorm:"index"`
	Lines            invoicing.InvoiceLines          `gorm:"type:jsonb;not null"`
	TotalHT          decimal.Decimal                 `gorm:"type:decimal(14,2);not null"`
	TotalVAT         decimal.Decimal                 `gorm:"type:decimal(14,2);not null"`
	TotalTTC         decimal.Decimal                 `gorm:"type:decimal(14,2);not null"`
	RelatedNumber    string                          `gorm:"type:varchar(30)"`
	PaymentReference string                          `gorm:"type:varchar(100)"`
	Remark           string                          `gorm:"type:text"`
	FinalizedAt      *time.Time
	SentAt           *time.Time
	PaidAt           *time.Time
	CancelledAt      *time.Time
	CancelReason     string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *invoicing.Invoice {
	inv := &invoicing.Invoice{
		DocumentType:     m.DocumentType,
		Status:           m.Status,
		Category:         m.Category,
		Supplier:         m.Supplier,
		Customer:         m.Customer,
		IssueDate:        m.IssueDate,
		DueDate:          m.DueDate,
		FiscalYear:       m.FiscalYear,
		Lines:            m.Lines,
		TotalHT:          m.TotalHT,
		TotalVAT:         m.TotalVAT,
		TotalTTC:         m.TotalTTC,
		RelatedNumber:    m.RelatedNumber,
		PaymentReference: m.PaymentReference,
		Remark:           m.Remark,
		FinalizedAt:      m.FinalizedAt,
		SentAt:           m.SentAt,
		PaidAt:           m.PaidAt,
		CancelledAt:      m.CancelledAt,
		CancelReason:     m.CancelReason,
	}
	if m.Number != nil {
		inv.Number = *m.Number
	}
	m.PopulateCompanyAggregateRoot(&inv.CompanyAggregateRoot)
	return inv
}

// FromDomain populates the persistence model from a domain Invoice
func (m *InvoiceModel) FromDomain(inv *invoicing.Invoice) {
	m.FromDomainCompanyAggregateRoot(inv.CompanyAggregateRoot)
	if inv.Number != "" {
		number := inv.Number
		m.Number = &number
	} else {
		m.Number = nil
	}
	m.DocumentType = inv.DocumentType
	m.Status = inv.Status
	m.Category = inv.Category
	m.Supplier = inv.Supplier
	m.Customer = inv.Customer
	m.IssueDate = inv.IssueDate
	m.DueDate = inv.DueDate
	m.FiscalYear = inv.FiscalYear
	m.Lines = inv.Lines
	m.TotalHT = inv.TotalHT
	m.TotalVAT = inv.TotalVAT
	m.TotalTTC = inv.TotalTTC
	m.RelatedNumber = inv.RelatedNumber
	m.PaymentReference = inv.PaymentReference
	m.Remark = inv.Remark
	m.FinalizedAt = inv.FinalizedAt
	m.SentAt = inv.SentAt
	m.PaidAt = inv.PaidAt
	m.CancelledAt = inv.CancelledAt
	m.CancelReason = inv.CancelReason
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice
func InvoiceModelFromDomain(inv *invoicing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// CompanyModel is the persistence model for issuing companies
type CompanyModel struct {
	BaseModel
	Name           string              `gorm:"type:varchar(255);not null"`
	LegalEntity    invoicing.PartyJSON `gorm:"type:jsonb;not null"`
	YearStartMonth int                 `gorm:"not null;default:1"`
	YearStartDay   int                 `gorm:"not null;default:1"`
	Active         bool                `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (CompanyModel) TableName() string {
	return "companies"
}

// ToDomain converts the persistence model to a domain Company
func (m *CompanyModel) ToDomain() *invoicing.Company {
	return &invoicing.Company{
		BaseEntity:  m.BaseModel.ToDomain(),
		Name:        m.Name,
		LegalEntity: m.LegalEntity.Party,
		FiscalConfig: fiscal.YearConfig{
			StartMonth: time.Month(m.YearStartMonth),
			StartDay:   m.YearStartDay,
		},
		Active: m.Active,
	}
}

// FromDomain populates the persistence model from a domain Company
func (m *CompanyModel) FromDomain(c *invoicing.Company) {
	m.FromDomainBaseEntity(c.BaseEntity)
	m.Name = c.Name
	m.LegalEntity = invoicing.PartyJSON{Party: c.LegalEntity}
	m.YearStartMonth = int(c.FiscalConfig.StartMonth)
	m.YearStartDay = c.FiscalConfig.StartDay
	m.Active = c.Active
}
