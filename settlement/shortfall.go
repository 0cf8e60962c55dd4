/*
shortfall.go - Balancing-invoice creation and top-up

PURPOSE:
  When a party's invoices are exhausted before the due amount is covered,
  the remainder is carried as a single "negative" balancing invoice per
  party (reserved number "Negatywna"). The resolver tops up the existing
  one rather than creating a second: at most one balancing invoice exists
  per party at any time. Finding two is fatal and is surfaced for manual
  reconciliation, never repaired by picking one.

  Query-then-create-or-update runs under the engine's per-party lock, so
  two settlements for the same party cannot race into two balancing
  invoices.
*/
package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ShortfallResolver maintains the per-party balancing invoice.
type ShortfallResolver struct {
	Invoices InvoiceStore

	// Now stamps newly created balancing invoices. Overridable for tests.
	Now func() time.Time
}

func NewShortfallResolver(invoices InvoiceStore) *ShortfallResolver {
	return &ShortfallResolver{Invoices: invoices, Now: time.Now}
}

// Resolve records a positive shortfall on the party's balancing invoice,
// creating it when absent. Both Value and AmountToUse move further
// negative by the shortfall.
func (r *ShortfallResolver) Resolve(ctx context.Context, party PartyRef, shortfall Money) (*Invoice, error) {
	existing, err := r.Invoices.BalancingInvoice(ctx, party.ID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		existing.Value = existing.Value.Sub(shortfall)
		existing.AmountToUse = existing.AmountToUse.Sub(shortfall)
		if err := r.Invoices.SaveInvoice(ctx, existing); err != nil {
			return nil, &PersistenceError{Op: "top up balancing invoice", Err: err}
		}
		return existing, nil
	}

	inv := &Invoice{
		ID:          InvoiceID(uuid.NewString()),
		PartyID:     party.ID,
		Number:      BalancingInvoiceNumber,
		Value:       shortfall.Neg(),
		AmountToUse: shortfall.Neg(),
		IssuedOn:    r.Now(),
	}
	if err := r.Invoices.SaveInvoice(ctx, inv); err != nil {
		return nil, &PersistenceError{Op: "create balancing invoice", Err: err}
	}
	return inv, nil
}
