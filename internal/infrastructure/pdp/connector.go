// Package pdp holds the connectors towards Plateformes de Dématérialisation
// Partenaires, the accredited platforms that relay structured invoices under
// the French e-invoicing mandate. Only simulated connectors are provided;
// the real network protocol belongs to a platform-specific integration.
package pdp

import (
	"context"
	"time"

	"github.com/facturio/backend/internal/domain/invoicing"
	"github.com/facturio/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// TransmissionStatus is the platform-side lifecycle of a transmission
type TransmissionStatus string

const (
	StatusPending  TransmissionStatus = "PENDING"  // Handed over, awaiting platform processing
	StatusAccepted TransmissionStatus = "ACCEPTED" // Platform validated and routed the document
	StatusRejected TransmissionStatus = "REJECTED" // Platform refused the document
)

// IsValid checks if the status is a valid TransmissionStatus
func (s TransmissionStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// String returns the string representation of TransmissionStatus
func (s TransmissionStatus) String() string {
	return string(s)
}

// Document is the transmission unit handed to a platform: document identity
// plus the structured payload (Factur-X XML for invoices, the JSON summary
// for e-reporting).
type Document struct {
	InvoiceID    uuid.UUID
	CompanyID    *uuid.UUID
	Number       string
	DocumentType invoicing.DocumentType
	Payload      []byte
	ContentType  string
}

// Receipt is the platform acknowledgement for one transmission
type Receipt struct {
	ID            string
	PlatformID    string
	Status        TransmissionStatus
	Message       string
	TransmittedAt time.Time
}

// Connector is the capability interface towards one platform.
type Connector interface {
	// Name identifies the connector for logs and metrics
	Name() string

	// Transmit hands a document to the platform and returns its receipt
	Transmit(ctx context.Context, doc Document) (Receipt, error)

	// Status returns the current receipt for a prior transmission.
	// Returns shared.ErrNotFound for unknown receipt ids.
	Status(ctx context.Context, receiptID string) (Receipt, error)
}

// ErrAlreadyTransmitted signals that the document was already handed to the
// platform; the legal mandate forbids duplicate submissions.
var ErrAlreadyTransmitted = shared.NewDomainError("ALREADY_TRANSMITTED", "Document was already transmitted to this platform")
