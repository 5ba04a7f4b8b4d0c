package persistence

import (
	"context"
	"errors"

	"github.com/facturio/backend/internal/domain/invoicing"
	"github.com/facturio/backend/internal/domain/shared"
	"github.com/facturio/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// companySortFields contains allowed sort fields for companies
var companySortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"name":       true,
}

// GormCompanyRepository implements invoicing.CompanyRepository using GORM
type GormCompanyRepository struct {
	db *gorm.DB
}

// NewGormCompanyRepository creates a new GormCompanyRepository
func NewGormCompanyRepository(db *gorm.DB) *GormCompanyRepository {
	return &GormCompanyRepository{db: db}
}

// Save persists a new company
func (r *GormCompanyRepository) Save(ctx context.Context, company *invoicing.Company) error {
	model := &models.CompanyModel{}
	model.FromDomain(company)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicateKey(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Update persists changes to an existing company
func (r *GormCompanyRepository) Update(ctx context.Context, company *invoicing.Company) error {
	model := &models.CompanyModel{}
	model.FromDomain(company)
	result := r.db.WithContext(ctx).Save(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByID retrieves a company by its ID
func (r *GormCompanyRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.Company, error) {
	var model models.CompanyModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll retrieves all companies
func (r *GormCompanyRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*invoicing.Company, error) {
	var companyModels []models.CompanyModel
	query := r.db.WithContext(ctx).Model(&models.CompanyModel{})

	if filter.Search != "" {
		query = query.Where("name ILIKE ?", "%"+filter.Search+"%")
	}

	orderBy := ValidateSortField(filter.OrderBy, companySortFields, "name")
	orderDir := ValidateSortOrder(filter.OrderDir)
	query = query.Order(orderBy + " " + orderDir)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	if err := query.Find(&companyModels).Error; err != nil {
		return nil, err
	}

	companies := make([]*invoicing.Company, len(companyModels))
	for i := range companyModels {
		companies[i] = companyModels[i].ToDomain()
	}
	return companies, nil
}

// Ensure GormCompanyRepository implements CompanyRepository
var _ invoicing.CompanyRepository = (*GormCompanyRepository)(nil)
