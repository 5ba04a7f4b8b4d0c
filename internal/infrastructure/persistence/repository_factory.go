package persistence

import (
	"github.com/facturio/backend/internal/domain/invoicing"
	"gorm.io/gorm"
)

// GormRepositories hands out repositories bound to a single transaction, so
// a use case can cover the invoice write, the sequence advance and the outbox
// insert atomically. Application services receive this factory instead of
// pre-built repositories for their transactional paths.
type GormRepositories struct{}

// NewGormRepositories creates the transaction-scoped repository factory
func NewGormRepositories() *GormRepositories {
	return &GormRepositories{}
}

// Invoices returns an invoice repository bound to tx
func (GormRepositories) Invoices(tx *gorm.DB) invoicing.InvoiceRepository {
	return NewGormInvoiceRepository(tx)
}

// Sequences returns a sequence repository bound to tx
func (GormRepositories) Sequences(tx *gorm.DB) invoicing.SequenceRepository {
	return NewGormSequenceRepository(tx)
}
