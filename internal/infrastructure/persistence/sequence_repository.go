package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/facturio/backend/internal/domain/invoicing"
	"github.com/facturio/backend/internal/domain/shared"
	"github.com/facturio/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSequenceRepository implements invoicing.SequenceRepository using GORM.
//
// The repository only operates inside a caller-owned transaction: the legal
// number and the document that carries it must commit or roll back together.
// Use WithTx to bind an instance to the transaction; calls on an unbound
// instance fail with shared.ErrNoActiveTransaction instead of silently
// issuing numbers without lock protection.
type GormSequenceRepository struct {
	db   *gorm.DB
	inTx bool
}

// NewGormSequenceRepository creates a new GORM-based sequence repository.
// The returned instance is unbound; bind it with WithTx before use.
func NewGormSequenceRepository(db *gorm.DB) *GormSequenceRepository {
	return &GormSequenceRepository{db: db}
}

// WithTx returns a new repository instance bound to the given transaction
func (r *GormSequenceRepository) WithTx(tx *gorm.DB) *GormSequenceRepository {
	return &GormSequenceRepository{db: tx, inTx: true}
}

// FindOrCreate ensures a sequence row exists for the triple. Concurrent
// creators race on the unique index over (company_id, fiscal_year,
// document_type); losers hit the conflict and treat it as success.
func (r *GormSequenceRepository) FindOrCreate(ctx context.Context, companyID *uuid.UUID, fiscalYear int, docType invoicing.DocumentType) error {
	if !r.inTx {
		return shared.ErrNoActiveTransaction
	}

	seq, err := invoicing.NewFiscalYearSequence(companyID, fiscalYear, docType)
	if err != nil {
		return err
	}

	model := &models.FiscalYearSequenceModel{}
	model.FromDomain(seq)

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(model).Error
	if err != nil && !isDuplicateKey(err) {
		return err
	}
	return nil
}

// LockForUpdate acquires an exclusive, blocking row lock (SELECT ... FOR
// UPDATE) on the sequence row for the duration of the transaction and returns
// the current state. Lock waits aborted by the database surface as
// shared.ErrConcurrencyConflict so callers can retry the whole numbering
// operation.
func (r *GormSequenceRepository) LockForUpdate(ctx context.Context, companyID *uuid.UUID, fiscalYear int, docType invoicing.DocumentType) (*invoicing.FiscalYearSequence, error) {
	if !r.inTx {
		return nil, shared.ErrNoActiveTransaction
	}

	var model models.FiscalYearSequenceModel
	query := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("fiscal_year = ? AND document_type = ?", fiscalYear, docType)
	query = scopeCompany(query, companyID)

	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, translateLockError(err)
	}

	return model.ToDomain(), nil
}

// Increment persists the advanced counter on the already-locked row within
// the same transaction
func (r *GormSequenceRepository) Increment(ctx context.Context, seq *invoicing.FiscalYearSequence) error {
	if !r.inTx {
		return shared.ErrNoActiveTransaction
	}

	query := r.db.WithContext(ctx).
		Model(&models.FiscalYearSequenceModel{}).
		Where("fiscal_year = ? AND document_type = ?", seq.FiscalYear, seq.DocumentType)
	query = scopeCompany(query, seq.CompanyID)

	result := query.Update("last_number", seq.LastNumber)
	if result.Error != nil {
		return translateLockError(result.Error)
	}
	if result.RowsAffected == 0 {
		// The row was locked a moment ago; it disappearing mid-transaction
		// means the counters were tampered with.
		return shared.ErrSequenceCorrupted
	}
	return nil
}

// scopeCompany adds the company predicate; NULL identifies mono-company rows
func scopeCompany(query *gorm.DB, companyID *uuid.UUID) *gorm.DB {
	if companyID == nil {
		return query.Where("company_id IS NULL")
	}
	return query.Where("company_id = ?", *companyID)
}

// isDuplicateKey recognizes unique-constraint violations across drivers
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "23505")
}

// translateLockError maps database lock failures to the retryable sentinel
func translateLockError(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "deadlock") || strings.Contains(msg, "lock timeout") ||
		strings.Contains(msg, "could not obtain lock") {
		return shared.ErrConcurrencyConflict
	}
	return err
}

// Ensure GormSequenceRepository implements SequenceRepository
var _ invoicing.SequenceRepository = (*GormSequenceRepository)(nil)
