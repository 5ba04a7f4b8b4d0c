package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/facturio/backend/internal/domain/invoicing"
	"github.com/facturio/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockSequenceRepository creates a transaction-bound GormSequenceRepository
// with a mocked SQL connection
func newMockSequenceRepository(t *testing.T) (*GormSequenceRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormSequenceRepository(gormDB).WithTx(gormDB), mock, mockDB
}

func TestGormSequenceRepository_RequiresTransaction(t *testing.T) {
	mockDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	dialector := postgres.New(postgres.Config{Conn: mockDB, DriverName: "postgres"})
	gormDB, err := gorm.Open(dialector, &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	repo := NewGormSequenceRepository(gormDB)

	t.Run("FindOrCreate rejects unbound repository", func(t *testing.T) {
		err := repo.FindOrCreate(context.Background(), nil, 2025, invoicing.DocumentTypeInvoice)
		assert.ErrorIs(t, err, shared.ErrNoActiveTransaction)
	})

	t.Run("LockForUpdate rejects unbound repository", func(t *testing.T) {
		seq, err := repo.LockForUpdate(context.Background(), nil, 2025, invoicing.DocumentTypeInvoice)
		assert.Nil(t, seq)
		assert.ErrorIs(t, err, shared.ErrNoActiveTransaction)
	})

	t.Run("Increment rejects unbound repository", func(t *testing.T) {
		seq, seqErr := invoicing.NewFiscalYearSequence(nil, 2025, invoicing.DocumentTypeInvoice)
		require.NoError(t, seqErr)
		err := repo.Increment(context.Background(), seq)
		assert.ErrorIs(t, err, shared.ErrNoActiveTransaction)
	})
}

func TestGormSequenceRepository_FindOrCreate(t *testing.T) {
	t.Run("inserts new sequence row", func(t *testing.T) {
		repo, mock, mockDB := newMockSequenceRepository(t)
		defer mockDB.Close()

		mock.ExpectExec(`INSERT INTO "fiscal_year_sequences" .* ON CONFLICT DO NOTHING`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.FindOrCreate(context.Background(), nil, 2025, invoicing.DocumentTypeInvoice)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("treats conflict with existing row as success", func(t *testing.T) {
		repo, mock, mockDB := newMockSequenceRepository(t)
		defer mockDB.Close()

		mock.ExpectExec(`INSERT INTO "fiscal_year_sequences" .* ON CONFLICT DO NOTHING`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.FindOrCreate(context.Background(), nil, 2025, invoicing.DocumentTypeInvoice)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects invalid document type", func(t *testing.T) {
		repo, _, mockDB := newMockSequenceRepository(t)
		defer mockDB.Close()

		err := repo.FindOrCreate(context.Background(), nil, 2025, invoicing.DocumentType("QUOTE"))

		assert.Error(t, err)
	})
}

func TestGormSequenceRepository_LockForUpdate(t *testing.T) {
	t.Run("locks mono-company row with FOR UPDATE", func(t *testing.T) {
		repo, mock, mockDB := newMockSequenceRepository(t)
		defer mockDB.Close()

		now := time.Now()
		rows := sqlmock.NewRows([]string{"id", "created_at", "updated_at", "company_id", "fiscal_year", "document_type", "last_number"}).
			AddRow(uuid.New(), now, now, nil, 2025, "INVOICE", int64(41))

		mock.ExpectQuery(`SELECT \* FROM "fiscal_year_sequences" WHERE \(fiscal_year = \$1 AND document_type = \$2\) AND company_id IS NULL ORDER BY .* LIMIT .* FOR UPDATE`).
			WithArgs(2025, invoicing.DocumentTypeInvoice, 1).
			WillReturnRows(rows)

		seq, err := repo.LockForUpdate(context.Background(), nil, 2025, invoicing.DocumentTypeInvoice)

		assert.NoError(t, err)
		require.NotNil(t, seq)
		assert.Equal(t, int64(41), seq.LastNumber)
		assert.Nil(t, seq.CompanyID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("scopes to company when company is set", func(t *testing.T) {
		repo, mock, mockDB := newMockSequenceRepository(t)
		defer mockDB.Close()

		companyID := uuid.New()
		now := time.Now()
		rows := sqlmock.NewRows([]string{"id", "created_at", "updated_at", "company_id", "fiscal_year", "document_type", "last_number"}).
			AddRow(uuid.New(), now, now, companyID, 2025, "CREDIT_NOTE", int64(3))

		mock.ExpectQuery(`SELECT \* FROM "fiscal_year_sequences" WHERE \(fiscal_year = \$1 AND document_type = \$2\) AND company_id = \$3 ORDER BY .* LIMIT .* FOR UPDATE`).
			WithArgs(2025, invoicing.DocumentTypeCreditNote, companyID, 1).
			WillReturnRows(rows)

		seq, err := repo.LockForUpdate(context.Background(), &companyID, 2025, invoicing.DocumentTypeCreditNote)

		assert.NoError(t, err)
		require.NotNil(t, seq)
		require.NotNil(t, seq.CompanyID)
		assert.Equal(t, companyID, *seq.CompanyID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrNotFound for missing row", func(t *testing.T) {
		repo, mock, mockDB := newMockSequenceRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "fiscal_year_sequences"`).
			WillReturnError(gorm.ErrRecordNotFound)

		seq, err := repo.LockForUpdate(context.Background(), nil, 2025, invoicing.DocumentTypeInvoice)

		assert.Nil(t, seq)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("passes through unrelated query errors", func(t *testing.T) {
		repo, mock, mockDB := newMockSequenceRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "fiscal_year_sequences"`).
			WillReturnError(assert.AnError)

		_, err := repo.LockForUpdate(context.Background(), nil, 2025, invoicing.DocumentTypeInvoice)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, shared.ErrConcurrencyConflict)
	})
}

func TestGormSequenceRepository_Increment(t *testing.T) {
	t.Run("persists advanced counter", func(t *testing.T) {
		repo, mock, mockDB := newMockSequenceRepository(t)
		defer mockDB.Close()

		seq, err := invoicing.NewFiscalYearSequence(nil, 2025, invoicing.DocumentTypeInvoice)
		require.NoError(t, err)
		seq.LastNumber = 41
		seq.Advance()

		mock.ExpectExec(`UPDATE "fiscal_year_sequences" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err = repo.Increment(context.Background(), seq)

		assert.NoError(t, err)
		assert.Equal(t, int64(42), seq.LastNumber)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports corruption when the locked row vanished", func(t *testing.T) {
		repo, mock, mockDB := newMockSequenceRepository(t)
		defer mockDB.Close()

		seq, err := invoicing.NewFiscalYearSequence(nil, 2025, invoicing.DocumentTypeInvoice)
		require.NoError(t, err)
		seq.Advance()

		mock.ExpectExec(`UPDATE "fiscal_year_sequences" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err = repo.Increment(context.Background(), seq)

		assert.ErrorIs(t, err, shared.ErrSequenceCorrupted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTranslateLockError(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		conflict bool
	}{
		{"deadlock detected", "ERROR: deadlock detected (SQLSTATE 40P01)", true},
		{"lock timeout", "ERROR: canceling statement due to lock timeout", true},
		{"nowait failure", "ERROR: could not obtain lock on row", true},
		{"unrelated error", "ERROR: relation does not exist", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := translateLockError(errSQL(tt.message))
			if tt.conflict {
				assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
			} else {
				assert.NotErrorIs(t, err, shared.ErrConcurrencyConflict)
			}
		})
	}
}

type errSQL string

func (e errSQL) Error() string { return string(e) }
