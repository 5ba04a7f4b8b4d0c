package invoicing

import (
	"context"

	"github.com/facturio/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// FiscalYearSequence is the persisted counter behind legal invoice numbering.
// At most one row exists per (company, fiscal year, document type) triple;
// LastNumber only ever increases and the next issued number is LastNumber+1.
// Rows are created lazily with LastNumber=0 on the first numbering request
// and are never deleted during normal operation.
type FiscalYearSequence struct {
	shared.BaseEntity
	CompanyID    *uuid.UUID   `json:"company_id"`
	FiscalYear   int          `json:"fiscal_year"`
	DocumentType DocumentType `json:"document_type"`
	LastNumber   int64        `json:"last_number"`
}

// NewFiscalYearSequence creates a fresh counter starting at zero
func NewFiscalYearSequence(companyID *uuid.UUID, fiscalYear int, docType DocumentType) (*FiscalYearSequence, error) {
	if !docType.IsValid() {
		return nil, shared.NewDomainError("INVALID_DOCUMENT_TYPE", "Document type is not valid")
	}
	if fiscalYear < 1900 || fiscalYear > 9999 {
		return nil, shared.NewDomainError("INVALID_FISCAL_YEAR", "Fiscal year is out of range")
	}
	return &FiscalYearSequence{
		BaseEntity:   shared.NewBaseEntity(),
		CompanyID:    companyID,
		FiscalYear:   fiscalYear,
		DocumentType: docType,
		LastNumber:   0,
	}, nil
}

// NextNumber returns the number the next caller will be issued.
// Only meaningful while the row is exclusively locked: unlocked reads are
// stale by definition and must never be used to predict a number.
func (s *FiscalYearSequence) NextNumber() int64 {
	return s.LastNumber + 1
}

// Advance consumes one sequence slot
func (s *FiscalYearSequence) Advance() int64 {
	s.LastNumber++
	return s.LastNumber
}

// SequenceRepository is the durable counter store. Implementations must keep
// the uniqueness constraint on (company, fiscal year, document type) and
// provide transaction-scoped pessimistic locking on single rows.
//
// All three operations are only safe inside an active write transaction;
// implementations should reject calls made outside one.
type SequenceRepository interface {
	// FindOrCreate ensures a sequence row exists for the triple, creating it
	// with LastNumber=0 if absent. Concurrent creation of the same triple is
	// resolved by the storage uniqueness constraint: losers treat the
	// duplicate-key failure as success.
	FindOrCreate(ctx context.Context, companyID *uuid.UUID, fiscalYear int, docType DocumentType) error

	// LockForUpdate acquires an exclusive, blocking lock on the sequence row
	// for the duration of the enclosing transaction and returns the current
	// row. Returns shared.ErrNotFound if the row does not exist.
	LockForUpdate(ctx context.Context, companyID *uuid.UUID, fiscalYear int, docType DocumentType) (*FiscalYearSequence, error)

	// Increment persists LastNumber+1 on the already-locked row. The write is
	// flushed within the same transaction that holds the lock.
	Increment(ctx context.Context, seq *FiscalYearSequence) error
}
