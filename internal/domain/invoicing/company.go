package invoicing

import (
	"context"
	"time"

	"github.com/facturio/backend/internal/domain/fiscal"
	"github.com/facturio/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Company is an issuing legal entity. Each company owns its own invoice
// sequences and fiscal year configuration. In mono-company deployments a
// single implicit company is used and CompanyID stays nil on documents.
type Company struct {
	shared.BaseEntity
	Name         string            `json:"name"`
	LegalEntity  Party             `json:"legal_entity"`
	FiscalConfig fiscal.YearConfig `json:"fiscal_config"`
	Active       bool              `json:"active"`
}

// NewCompany creates an active company with the given identity
func NewCompany(name string, legalEntity Party, cfg fiscal.YearConfig) (*Company, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_COMPANY", "Company name is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Company{
		BaseEntity:   shared.NewBaseEntity(),
		Name:         name,
		LegalEntity:  legalEntity,
		FiscalConfig: cfg,
		Active:       true,
	}, nil
}

// Deactivate stops the company from issuing new documents
func (c *Company) Deactivate() {
	c.Active = false
	c.UpdatedAt = time.Now()
}

// CompanyProvider resolves the company context a document belongs to.
// A nil id addresses the implicit company of a mono-company deployment.
type CompanyProvider interface {
	// Resolve returns the company for the given id, or the implicit company
	// when id is nil. Returns shared.ErrUnknownCompany for ids that do not
	// resolve to an active company.
	Resolve(ctx context.Context, id *uuid.UUID) (*Company, error)
}

// StaticCompanyProvider serves a single fixed company for mono-company
// deployments, typically built from configuration at startup.
type StaticCompanyProvider struct {
	company *Company
}

var _ CompanyProvider = (*StaticCompanyProvider)(nil)

// NewStaticCompanyProvider wraps one company as the implicit company
func NewStaticCompanyProvider(company *Company) *StaticCompanyProvider {
	return &StaticCompanyProvider{company: company}
}

// Resolve implements CompanyProvider. Only the nil id or the wrapped
// company's own id resolve.
func (p *StaticCompanyProvider) Resolve(_ context.Context, id *uuid.UUID) (*Company, error) {
	if p.company == nil {
		return nil, shared.ErrUnknownCompany
	}
	if id == nil || *id == p.company.ID {
		return p.company, nil
	}
	return nil, shared.ErrUnknownCompany
}
