/*
Package settlement is the core trade settlement engine.

PURPOSE:
  Given a party (buyer or supplier), an amount due, and that party's
  unconsumed invoices in issuance order, the engine decides how much of
  each invoice to consume, when to stop, and how to represent any amount
  that could not be covered (a shortfall becomes a single negative
  balancing invoice per party).

KEY CONCEPTS IN THIS FILE (types.go):
  - Money:            exact 2-decimal amounts (see money.go)
  - Invoice:          a credit/debit document with a remaining usable amount
  - PartyRef:         buyer/supplier identity; one generic engine is
                      parameterized by the role tag instead of duplicating
                      buyer and supplier code paths
  - ConsumptionEvent: one allocation step, recorded as structured data
  - Result:           events + shortfall for a single settlement call

DESIGN PRINCIPLES:
  1. Determinism: FIFO consumption, oldest invoice first. The ordering is
     a product decision; changing it changes financial outcomes.
  2. Auditability: every allocation is an explicit event; the narrative
     comment is a pure rendering of the event list (audit.go).
  3. Monotonic consumption: a real invoice's AmountToUse only decreases;
     only the balancing invoice may grow in magnitude (shortfall.go).

SEE ALSO:
  - engine.go: the allocation algorithm
  - ledger.go: store interfaces and the in-call ledger view
*/
package settlement

import (
	"time"
)

// =============================================================================
// IDENTIFIERS AND ROLES
// =============================================================================

type PartyID string
type InvoiceID string

// Role tags which side of a trade a party is on. A document of value is
// issued to exactly one side, never both.
type Role string

const (
	RoleBuyer    Role = "buyer"
	RoleSupplier Role = "supplier"
)

// PartyRef carries the data the engine needs about a party: identity for
// locking and invoice lookup, name for the audit narrative, role for
// reporting. The engine itself is role-agnostic.
type PartyRef struct {
	ID   PartyID
	Name string
	Role Role
}

// =============================================================================
// INVOICE
// =============================================================================

// BalancingInvoiceNumber is the reserved invoice number denoting an
// engine-created balancing invoice. It is persisted data, not UI text,
// and must not be reused for real invoices.
const BalancingInvoiceNumber = "Negatywna"

// Invoice is a document of value issued to one party.
//
// Lifecycle: created externally (real invoices) or by the ShortfallResolver
// (balancing invoices); mutated only by the engine; never deleted, only
// marked fully consumed.
//
// Invariants:
//   - real invoice: 0 <= AmountToUse <= Value, AmountToUse decreases
//     monotonically toward zero
//   - balancing invoice: Value and AmountToUse are <= 0 and may grow in
//     magnitude when topped up
type Invoice struct {
	ID          InvoiceID
	PartyID     PartyID
	Number      string
	Value       Money
	AmountToUse Money
	Used        bool
	IssuedOn    time.Time
}

// IsBalancing reports whether this is the party's synthetic shortfall
// invoice.
func (i *Invoice) IsBalancing() bool {
	return i.Number == BalancingInvoiceNumber
}

// =============================================================================
// CONSUMPTION EVENTS
// =============================================================================

type ConsumptionKind string

const (
	// ConsumedFully: the invoice's entire remaining amount was applied and
	// the invoice was marked used.
	ConsumedFully ConsumptionKind = "full"

	// ConsumedPartially: part of the invoice funded the settlement and the
	// invoice stays open for future settlements. At most one partial
	// consumption occurs per settlement call.
	ConsumedPartially ConsumptionKind = "partial"
)

// ConsumptionEvent records one allocation step: which invoice funded the
// settlement and by how much.
type ConsumptionEvent struct {
	InvoiceID     InvoiceID
	InvoiceNumber string
	Applied       Money
	Kind          ConsumptionKind
}

// =============================================================================
// SETTLEMENT RESULT
// =============================================================================

// Result is the outcome of one settlement call.
//
// Conservation holds exactly: sum of Applied over Events plus Shortfall
// equals the due amount, with no rounding drift.
type Result struct {
	Events    []ConsumptionEvent
	Shortfall Money

	// Balancing is the invoice created or topped up to carry the
	// shortfall; nil when the due amount was fully covered.
	Balancing *Invoice

	// AuditErr reports a failed audit-comment write. Audit writes are
	// best-effort: their failure is surfaced here, separately, and must
	// not be mistaken for settlement failure.
	AuditErr error
}

// Applied returns the total amount covered by invoices in this call.
func (r Result) Applied() Money {
	total := Zero()
	for _, ev := range r.Events {
		total = total.Add(ev.Applied)
	}
	return total
}

// =============================================================================
// COMMENT - The settlement target's narrative annotation
// =============================================================================

// Comment holds the two free-text fields attached to an order: the
// system-authored audit narrative and the user-authored note. The system
// narrative is append-only within a settlement call.
type Comment struct {
	ID         string
	SystemText string
	UserText   string
}
