package invoicing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/facturio/backend/internal/domain/fiscal"
	"github.com/facturio/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// DefaultSequencePadding is the minimum width of the sequential part of a
// legal number. Numbers beyond the padding keep their full width.
const DefaultSequencePadding = 4

// NumberGenerator issues gapless sequential legal numbers of the form
// PREFIX-FISCALYEAR-SEQUENCE, e.g. FA-2024-0001. Each call consumes exactly
// one slot of the per-(company, fiscal year, document type) counter.
//
// The generator must run inside a write transaction: it locks the counter row
// exclusively until the caller's transaction commits, so that the issued
// number and the document persisting it are atomic. A rollback releases the
// slot and the next caller receives the same number again.
type NumberGenerator struct {
	sequences  SequenceRepository
	yearConfig fiscal.YearConfig
	padding    int
}

// NewNumberGenerator creates a generator over the given counter store.
// The fiscal year configuration decides which counter a document date maps to.
func NewNumberGenerator(sequences SequenceRepository, yearConfig fiscal.YearConfig) *NumberGenerator {
	return &NumberGenerator{
		sequences:  sequences,
		yearConfig: yearConfig,
		padding:    DefaultSequencePadding,
	}
}

// WithPadding overrides the minimum sequence width
func (g *NumberGenerator) WithPadding(padding int) *NumberGenerator {
	if padding > 0 {
		g.padding = padding
	}
	return g
}

// Next issues the next legal number for a document of the given type dated
// documentDate. Must be called within the transaction that persists the
// document carrying the number.
func (g *NumberGenerator) Next(ctx context.Context, companyID *uuid.UUID, docType DocumentType, documentDate time.Time) (string, error) {
	if !docType.IsValid() {
		return "", shared.NewDomainError("INVALID_DOCUMENT_TYPE", "Document type is not valid")
	}
	if documentDate.IsZero() {
		return "", shared.NewDomainError("INVALID_DOCUMENT_DATE", "Document date is required")
	}

	// The fiscal year is resolved once and drives both the row lookup and the
	// formatted number, so the two can never disagree.
	fiscalYear := g.yearConfig.YearOf(documentDate)

	if err := g.sequences.FindOrCreate(ctx, companyID, fiscalYear, docType); err != nil {
		return "", fmt.Errorf("ensure sequence row: %w", err)
	}

	seq, err := g.sequences.LockForUpdate(ctx, companyID, fiscalYear, docType)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// The row was just created or already present; it vanishing here
			// means someone deleted counters out from under us.
			return "", shared.ErrSequenceCorrupted
		}
		return "", fmt.Errorf("lock sequence row: %w", err)
	}

	number := seq.Advance()
	if err := g.sequences.Increment(ctx, seq); err != nil {
		return "", fmt.Errorf("advance sequence: %w", err)
	}

	return FormatNumber(docType, fiscalYear, number, g.padding), nil
}

// FormatNumber renders a legal number from its parts
func FormatNumber(docType DocumentType, fiscalYear int, number int64, padding int) string {
	return fmt.Sprintf("%s-%d-%0*d", docType.Prefix(), fiscalYear, padding, number)
}
