/*
ledger.go - Store interfaces and the in-call invoice ledger view

PURPOSE:
  Defines what the engine needs from persistence, and the mutable view it
  borrows over a party's open invoices for the duration of one settlement
  call.

CRASH CONSISTENCY:
  Every invoice mutation is durably saved before the next one is
  attempted. A crash mid-settlement therefore leaves a consistent partial
  state: already-consumed invoices stay consumed, and re-running
  settlement with the residual due amount resumes instead of
  double-charging.

IMPLEMENTATIONS:
  - store/sqlite: production store
  - settlement/store: in-memory store for tests

SEE ALSO:
  - engine.go: holds the view for the call, never beyond it
*/
package settlement

import "context"

// =============================================================================
// STORE INTERFACES
// =============================================================================

// InvoiceStore is the persistence collaborator for invoices.
type InvoiceStore interface {
	// OpenInvoices returns the party's invoices with AmountToUse > 0,
	// ordered oldest-first by issuance. FIFO order is a product decision
	// and must be preserved exactly. Balancing invoices never match the
	// predicate (their AmountToUse is <= 0).
	OpenInvoices(ctx context.Context, partyID PartyID) ([]*Invoice, error)

	// BalancingInvoice returns the party's balancing invoice, or nil when
	// none exists. Finding more than one is an InvariantViolationError.
	BalancingInvoice(ctx context.Context, partyID PartyID) (*Invoice, error)

	// SaveInvoice durably writes one invoice (insert or update). Each call
	// is atomic and durable on its own.
	SaveInvoice(ctx context.Context, inv *Invoice) error
}

// CommentStore persists order comments.
type CommentStore interface {
	SaveComment(ctx context.Context, c *Comment) error
}

// =============================================================================
// LEDGER VIEW - Mutable view borrowed for one settlement call
// =============================================================================

// LedgerView is an ordered, mutable view over a party's open invoices.
// The engine borrows it under the per-party lock and releases it when the
// call returns; mutations are immediately visible to subsequent reads in
// the same call and persisted one by one.
type LedgerView struct {
	store    InvoiceStore
	invoices []*Invoice
}

// BorrowLedger loads the party's open invoices into a view.
func BorrowLedger(ctx context.Context, store InvoiceStore, partyID PartyID) (*LedgerView, error) {
	invoices, err := store.OpenInvoices(ctx, partyID)
	if err != nil {
		return nil, &PersistenceError{Op: "load open invoices", Err: err}
	}
	return &LedgerView{store: store, invoices: invoices}, nil
}

func (v *LedgerView) Len() int          { return len(v.invoices) }
func (v *LedgerView) At(i int) *Invoice { return v.invoices[i] }

// Reduce lowers the invoice's remaining amount by `by` and persists it.
// The invoice stays open. by must not exceed the current AmountToUse.
func (v *LedgerView) Reduce(ctx context.Context, inv *Invoice, by Money) error {
	inv.AmountToUse = inv.AmountToUse.Sub(by)
	if err := v.store.SaveInvoice(ctx, inv); err != nil {
		return &PersistenceError{Op: "reduce invoice " + string(inv.ID), Err: err}
	}
	return nil
}

// MarkFullyConsumed zeroes the invoice's remaining amount, flags it used
// and persists it.
func (v *LedgerView) MarkFullyConsumed(ctx context.Context, inv *Invoice) error {
	inv.AmountToUse = Zero()
	inv.Used = true
	if err := v.store.SaveInvoice(ctx, inv); err != nil {
		return &PersistenceError{Op: "consume invoice " + string(inv.ID), Err: err}
	}
	return nil
}
