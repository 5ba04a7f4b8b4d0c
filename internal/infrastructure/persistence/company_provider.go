package persistence

import (
	"context"
	"errors"

	"github.com/facturio/backend/internal/domain/invoicing"
	"github.com/facturio/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// GormCompanyProvider resolves companies from the database for multi-company
// deployments. Documents always carry an explicit company id in this mode;
// the implicit nil id is a configuration error.
type GormCompanyProvider struct {
	companies invoicing.CompanyRepository
}

var _ invoicing.CompanyProvider = (*GormCompanyProvider)(nil)

// NewGormCompanyProvider creates a provider over the company repository
func NewGormCompanyProvider(companies invoicing.CompanyRepository) *GormCompanyProvider {
	return &GormCompanyProvider{companies: companies}
}

// Resolve implements invoicing.CompanyProvider
func (p *GormCompanyProvider) Resolve(ctx context.Context, id *uuid.UUID) (*invoicing.Company, error) {
	if id == nil {
		return nil, shared.ErrUnknownCompany
	}
	company, err := p.companies.FindByID(ctx, *id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrUnknownCompany
		}
		return nil, err
	}
	if !company.Active {
		return nil, shared.ErrUnknownCompany
	}
	return company, nil
}
