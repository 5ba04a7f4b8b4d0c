package event

import (
	"github.com/facturio/backend/internal/domain/invoicing"
)

// RegisterAllEvents registers all domain event types with the serializer
// This is required for the OutboxProcessor to deserialize events from the outbox table
func RegisterAllEvents(serializer *EventSerializer) {
	// Invoice lifecycle events
	serializer.Register("InvoiceCreated", &invoicing.InvoiceCreatedEvent{})
	serializer.Register("InvoiceFinalized", &invoicing.InvoiceFinalizedEvent{})
	serializer.Register("InvoiceSent", &invoicing.InvoiceSentEvent{})
	serializer.Register("InvoicePaid", &invoicing.InvoicePaidEvent{})
	serializer.Register("InvoiceCancelled", &invoicing.InvoiceCancelledEvent{})
}
