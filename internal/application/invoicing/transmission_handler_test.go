package invoicing

import (
	"context"
	"testing"

	"github.com/facturio/backend/internal/domain/invoicing"
	"github.com/facturio/backend/internal/domain/shared"
	"github.com/facturio/backend/internal/infrastructure/cache"
	"github.com/facturio/backend/internal/infrastructure/facturx"
	"github.com/facturio/backend/internal/infrastructure/pdp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func finalizedEvent(t *testing.T, f *serviceFixture) (*invoicing.Invoice, *invoicing.InvoiceFinalizedEvent) {
	t.Helper()
	ctx := context.Background()

	inv, err := f.service.CreateDraft(ctx, draftRequest())
	require.NoError(t, err)
	inv, err = f.service.Finalize(ctx, inv.ID)
	require.NoError(t, err)

	for _, ev := range f.publisher.events {
		if typed, ok := ev.(*invoicing.InvoiceFinalizedEvent); ok && typed.InvoiceID == inv.ID {
			return inv, typed
		}
	}
	t.Fatal("finalized event not published")
	return nil, nil
}

func TestTransmissionHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("event types", func(t *testing.T) {
		f := newServiceFixture(t)
		handler := NewTransmissionHandler(f.service, facturx.NewBuilder(), pdp.NewSimulatedConnector(""))
		assert.Equal(t, []string{"InvoiceFinalized"}, handler.EventTypes())
	})

	t.Run("transmits B2B invoices and marks them sent", func(t *testing.T) {
		f := newServiceFixture(t)
		connector := pdp.NewSimulatedConnector("PDP-SIMU")
		handler := NewTransmissionHandler(f.service, facturx.NewBuilder(), connector)

		inv, ev := finalizedEvent(t, f)
		require.NoError(t, handler.Handle(ctx, ev))

		assert.Equal(t, 1, connector.Transmissions())
		sent, err := f.service.Get(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, invoicing.InvoiceStatusSent, sent.Status)
	})

	t.Run("skips non-B2B documents", func(t *testing.T) {
		f := newServiceFixture(t)
		connector := pdp.NewSimulatedConnector("PDP-SIMU")
		handler := NewTransmissionHandler(f.service, facturx.NewBuilder(), connector)

		req := draftRequest()
		req.Category = invoicing.TransactionCategoryB2C
		req.Customer = PartyRequest{Name: "Particulier"}
		inv, err := f.service.CreateDraft(ctx, req)
		require.NoError(t, err)
		inv, err = f.service.Finalize(ctx, inv.ID)
		require.NoError(t, err)

		var ev *invoicing.InvoiceFinalizedEvent
		for _, published := range f.publisher.events {
			if typed, ok := published.(*invoicing.InvoiceFinalizedEvent); ok {
				ev = typed
			}
		}
		require.NotNil(t, ev)

		require.NoError(t, handler.Handle(ctx, ev))
		assert.Zero(t, connector.Transmissions())

		unchanged, err := f.service.Get(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, invoicing.InvoiceStatusFinalized, unchanged.Status)
	})

	t.Run("ignores foreign events", func(t *testing.T) {
		f := newServiceFixture(t)
		connector := pdp.NewSimulatedConnector("PDP-SIMU")
		handler := NewTransmissionHandler(f.service, facturx.NewBuilder(), connector)

		inv, err := f.service.CreateDraft(ctx, draftRequest())
		require.NoError(t, err)
		ev := invoicing.NewInvoiceCreatedEvent(inv)

		require.NoError(t, handler.Handle(ctx, ev))
		assert.Zero(t, connector.Transmissions())
	})

	t.Run("duplicate delivery transmits once", func(t *testing.T) {
		f := newServiceFixture(t)
		store := cache.NewInMemoryIdempotencyStore()
		t.Cleanup(func() { _ = store.Close() })
		inner := pdp.NewSimulatedConnector("PDP-SIMU")
		connector := pdp.NewIdempotentConnector(inner, store)
		handler := NewTransmissionHandler(f.service, facturx.NewBuilder(), connector)

		_, ev := finalizedEvent(t, f)
		require.NoError(t, handler.Handle(ctx, ev))
		require.NoError(t, handler.Handle(ctx, ev), "redelivery is absorbed, not an error")
		assert.Equal(t, 1, inner.Transmissions())
	})

	t.Run("missing invoice surfaces for retry", func(t *testing.T) {
		f := newServiceFixture(t)
		handler := NewTransmissionHandler(f.service, facturx.NewBuilder(), pdp.NewSimulatedConnector(""))

		_, ev := finalizedEvent(t, f)
		orphan := *ev
		orphan.InvoiceID = uuid.New()
		err := handler.Handle(ctx, &orphan)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}
