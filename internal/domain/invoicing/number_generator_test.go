package invoicing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/facturio/backend/internal/domain/fiscal"
	"github.com/facturio/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memorySequenceRepository is a single-threaded in-memory SequenceRepository
// for exercising the generator without a database
type memorySequenceRepository struct {
	rows       map[string]*FiscalYearSequence
	failLock   bool
	dropOnLock bool
}

func newMemorySequenceRepository() *memorySequenceRepository {
	return &memorySequenceRepository{rows: make(map[string]*FiscalYearSequence)}
}

func seqKey(companyID *uuid.UUID, fiscalYear int, docType DocumentType) string {
	company := "mono"
	if companyID != nil {
		company = companyID.String()
	}
	return fmt.Sprintf("%s/%d/%s", company, fiscalYear, docType)
}

func (r *memorySequenceRepository) FindOrCreate(_ context.Context, companyID *uuid.UUID, fiscalYear int, docType DocumentType) error {
	key := seqKey(companyID, fiscalYear, docType)
	if _, ok := r.rows[key]; ok {
		return nil
	}
	seq, err := NewFiscalYearSequence(companyID, fiscalYear, docType)
	if err != nil {
		return err
	}
	r.rows[key] = seq
	return nil
}

func (r *memorySequenceRepository) LockForUpdate(_ context.Context, companyID *uuid.UUID, fiscalYear int, docType DocumentType) (*FiscalYearSequence, error) {
	if r.failLock {
		return nil, fmt.Errorf("lock wait timeout")
	}
	if r.dropOnLock {
		return nil, shared.ErrNotFound
	}
	seq, ok := r.rows[seqKey(companyID, fiscalYear, docType)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return seq, nil
}

func (r *memorySequenceRepository) Increment(_ context.Context, seq *FiscalYearSequence) error {
	r.rows[seqKey(seq.CompanyID, seq.FiscalYear, seq.DocumentType)] = seq
	return nil
}

func TestNumberGenerator_Next(t *testing.T) {
	ctx := context.Background()
	march := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	t.Run("issues gapless numbers starting at one", func(t *testing.T) {
		gen := NewNumberGenerator(newMemorySequenceRepository(), fiscal.DefaultYearConfig())

		for i := 1; i <= 3; i++ {
			number, err := gen.Next(ctx, nil, DocumentTypeInvoice, march)
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("FA-2024-%04d", i), number)
		}
	})

	t.Run("separate counters per document type", func(t *testing.T) {
		gen := NewNumberGenerator(newMemorySequenceRepository(), fiscal.DefaultYearConfig())

		inv, err := gen.Next(ctx, nil, DocumentTypeInvoice, march)
		require.NoError(t, err)
		cn, err := gen.Next(ctx, nil, DocumentTypeCreditNote, march)
		require.NoError(t, err)

		assert.Equal(t, "FA-2024-0001", inv)
		assert.Equal(t, "AV-2024-0001", cn)
	})

	t.Run("separate counters per fiscal year", func(t *testing.T) {
		gen := NewNumberGenerator(newMemorySequenceRepository(), fiscal.DefaultYearConfig())

		n1, err := gen.Next(ctx, nil, DocumentTypeInvoice, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		n2, err := gen.Next(ctx, nil, DocumentTypeInvoice, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)

		assert.Equal(t, "FA-2023-0001", n1)
		assert.Equal(t, "FA-2024-0001", n2)
	})

	t.Run("separate counters per company", func(t *testing.T) {
		gen := NewNumberGenerator(newMemorySequenceRepository(), fiscal.DefaultYearConfig())
		companyA := uuid.New()
		companyB := uuid.New()

		n1, err := gen.Next(ctx, &companyA, DocumentTypeInvoice, march)
		require.NoError(t, err)
		n2, err := gen.Next(ctx, &companyB, DocumentTypeInvoice, march)
		require.NoError(t, err)

		assert.Equal(t, "FA-2024-0001", n1)
		assert.Equal(t, "FA-2024-0001", n2)
	})

	t.Run("shifted fiscal year drives the number", func(t *testing.T) {
		cfg, err := fiscal.NewYearConfig(time.November, 1)
		require.NoError(t, err)
		gen := NewNumberGenerator(newMemorySequenceRepository(), cfg)

		// 2024-12-15 falls in the fiscal year starting 2024-11-01
		number, err := gen.Next(ctx, nil, DocumentTypeInvoice, time.Date(2024, 12, 15, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Equal(t, "FA-2024-0001", number)

		// 2024-10-31 still belongs to fiscal year 2023
		number, err = gen.Next(ctx, nil, DocumentTypeInvoice, time.Date(2024, 10, 31, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Equal(t, "FA-2023-0001", number)
	})

	t.Run("padding grows past its width", func(t *testing.T) {
		repo := newMemorySequenceRepository()
		gen := NewNumberGenerator(repo, fiscal.DefaultYearConfig())

		require.NoError(t, repo.FindOrCreate(ctx, nil, 2024, DocumentTypeInvoice))
		repo.rows[seqKey(nil, 2024, DocumentTypeInvoice)].LastNumber = 9999

		number, err := gen.Next(ctx, nil, DocumentTypeInvoice, march)
		require.NoError(t, err)
		assert.Equal(t, "FA-2024-10000", number)
	})

	t.Run("custom padding", func(t *testing.T) {
		gen := NewNumberGenerator(newMemorySequenceRepository(), fiscal.DefaultYearConfig()).WithPadding(6)

		number, err := gen.Next(ctx, nil, DocumentTypeInvoice, march)
		require.NoError(t, err)
		assert.Equal(t, "FA-2024-000001", number)
	})

	t.Run("rejects invalid document type", func(t *testing.T) {
		gen := NewNumberGenerator(newMemorySequenceRepository(), fiscal.DefaultYearConfig())
		_, err := gen.Next(ctx, nil, DocumentType("QUOTE"), march)
		assert.Error(t, err)
	})

	t.Run("rejects zero document date", func(t *testing.T) {
		gen := NewNumberGenerator(newMemorySequenceRepository(), fiscal.DefaultYearConfig())
		_, err := gen.Next(ctx, nil, DocumentTypeInvoice, time.Time{})
		assert.Error(t, err)
	})

	t.Run("row vanishing after create is corruption", func(t *testing.T) {
		repo := newMemorySequenceRepository()
		repo.dropOnLock = true
		gen := NewNumberGenerator(repo, fiscal.DefaultYearConfig())

		_, err := gen.Next(ctx, nil, DocumentTypeInvoice, march)
		assert.ErrorIs(t, err, shared.ErrSequenceCorrupted)
	})

	t.Run("lock failure is propagated", func(t *testing.T) {
		repo := newMemorySequenceRepository()
		repo.failLock = true
		gen := NewNumberGenerator(repo, fiscal.DefaultYearConfig())

		_, err := gen.Next(ctx, nil, DocumentTypeInvoice, march)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, shared.ErrSequenceCorrupted)
	})
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "FA-2024-0001", FormatNumber(DocumentTypeInvoice, 2024, 1, 4))
	assert.Equal(t, "AV-2024-0042", FormatNumber(DocumentTypeCreditNote, 2024, 42, 4))
	assert.Equal(t, "FA-2024-12345", FormatNumber(DocumentTypeInvoice, 2024, 12345, 4))
}

func TestFiscalYearSequence(t *testing.T) {
	t.Run("advance consumes one slot", func(t *testing.T) {
		seq, err := NewFiscalYearSequence(nil, 2024, DocumentTypeInvoice)
		require.NoError(t, err)

		assert.Equal(t, int64(1), seq.NextNumber())
		assert.Equal(t, int64(1), seq.Advance())
		assert.Equal(t, int64(2), seq.NextNumber())
	})

	t.Run("rejects invalid document type", func(t *testing.T) {
		_, err := NewFiscalYearSequence(nil, 2024, DocumentType("QUOTE"))
		assert.Error(t, err)
	})

	t.Run("rejects out of range fiscal year", func(t *testing.T) {
		_, err := NewFiscalYearSequence(nil, 123, DocumentTypeInvoice)
		assert.Error(t, err)
	})
}
