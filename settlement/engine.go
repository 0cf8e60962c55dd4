/*
engine.go - The settlement/allocation algorithm

PURPOSE:
  Applies a due amount against a party's open invoices, oldest first, and
  hands any uncovered remainder to the ShortfallResolver. This is the only
  part of the repository with non-trivial invariant-preserving logic;
  everything else is plumbing around it.

ALGORITHM (single pass, early exit):
  remaining := due
  for each invoice, with v := invoice.AmountToUse:
    v >  remaining: partial consumption of `remaining`; invoice stays
                    open; stop. At most one partial per call.
    v <  remaining: full consumption of v; remaining -= v; continue.
    v == remaining: full consumption; stop.
  Exhausted with remaining > 0: shortfall = remaining.

  A remaining of zero at loop entry marks the current invoice consumed
  with a zero applied amount and stops. The branch should be unreachable,
  since every branch that zeroes remaining also stops the pass.

CONCURRENCY:
  Settlement for one party is serialized by a per-party mutex held from
  reading the candidate invoices through writing the shortfall resolution
  and audit comment. Different parties settle in parallel. There is no
  cancellation mid-call: partial progress already persisted stays valid,
  and a retry resumes against the residual amount.

SEE ALSO:
  - audit.go: narrative projection of the consumption events
  - shortfall.go: balancing-invoice creation and top-up
*/
package settlement

import (
	"context"
	"errors"
	"sync"
	"time"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine allocates due amounts against invoice ledgers.
type Engine struct {
	invoices InvoiceStore
	comments CommentStore
	resolver *ShortfallResolver
	audit    AuditTrailBuilder

	mu    sync.Mutex
	locks map[PartyID]*sync.Mutex
}

// NewEngine wires an engine over the given stores.
func NewEngine(invoices InvoiceStore, comments CommentStore) *Engine {
	return &Engine{
		invoices: invoices,
		comments: comments,
		resolver: NewShortfallResolver(invoices),
		locks:    make(map[PartyID]*sync.Mutex),
	}
}

// SetClock overrides the timestamp source for balancing invoices.
func (e *Engine) SetClock(now func() time.Time) {
	e.resolver.Now = now
}

// lockParty acquires the party's settlement lock, creating it on first use.
func (e *Engine) lockParty(id PartyID) *sync.Mutex {
	e.mu.Lock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	e.mu.Unlock()
	l.Lock()
	return l
}

// =============================================================================
// SETTLE - One settlement call for one (party, due amount)
// =============================================================================

// Settle consumes the party's open invoices against due, oldest first,
// annotating comment with the audit narrative as it goes. Callers settle
// each side of an order independently, once per (order, side).
//
// due may be zero (no-op) or positive; a negative due is rejected before
// any mutation. An empty candidate list is not an error: the full amount
// becomes the shortfall.
//
// On a persistence failure mid-pass the events recorded so far are
// returned alongside the error; the persisted state is consistent and a
// retry with the residual amount resumes the settlement.
func (e *Engine) Settle(ctx context.Context, party PartyRef, due Money, comment *Comment) (Result, error) {
	if due.IsNegative() {
		return Result{}, &InvalidAmountError{PartyID: party.ID, Amount: due}
	}
	if due.IsZero() {
		// Nothing owed: no events, no mutation, no shortfall.
		return Result{Shortfall: Zero()}, nil
	}

	lock := e.lockParty(party.ID)
	defer lock.Unlock()

	view, err := BorrowLedger(ctx, e.invoices, party.ID)
	if err != nil {
		return Result{}, err
	}

	result := Result{Shortfall: Zero()}
	remaining := due

	for i := 0; i < view.Len(); i++ {
		inv := view.At(i)
		v := inv.AmountToUse

		if remaining.IsZero() {
			// Unreachable: every branch that zeroes remaining stops the
			// pass. Kept as a guard so a future edit cannot overdraw.
			if err := view.MarkFullyConsumed(ctx, inv); err != nil {
				return result, err
			}
			result.Events = append(result.Events, ConsumptionEvent{
				InvoiceID:     inv.ID,
				InvoiceNumber: inv.Number,
				Applied:       Zero(),
				Kind:          ConsumedFully,
			})
			break
		}

		switch v.Cmp(remaining) {
		case 1: // invoice covers the rest and stays open
			applied := remaining
			if err := view.Reduce(ctx, inv, applied); err != nil {
				return result, err
			}
			ev := ConsumptionEvent{
				InvoiceID:     inv.ID,
				InvoiceNumber: inv.Number,
				Applied:       applied,
				Kind:          ConsumedPartially,
			}
			result.Events = append(result.Events, ev)
			e.annotate(ctx, party, comment, &result, ev)
			remaining = Zero()

		case -1: // invoice insufficient, fully used, keep going
			applied := v
			if err := view.MarkFullyConsumed(ctx, inv); err != nil {
				return result, err
			}
			ev := ConsumptionEvent{
				InvoiceID:     inv.ID,
				InvoiceNumber: inv.Number,
				Applied:       applied,
				Kind:          ConsumedFully,
			}
			result.Events = append(result.Events, ev)
			e.annotate(ctx, party, comment, &result, ev)
			remaining = remaining.Sub(applied)
			continue

		default: // exact match
			applied := v
			if err := view.MarkFullyConsumed(ctx, inv); err != nil {
				return result, err
			}
			ev := ConsumptionEvent{
				InvoiceID:     inv.ID,
				InvoiceNumber: inv.Number,
				Applied:       applied,
				Kind:          ConsumedFully,
			}
			result.Events = append(result.Events, ev)
			e.annotate(ctx, party, comment, &result, ev)
			remaining = Zero()
		}
		break // cases 1 and the exact match terminate the pass
	}

	result.Shortfall = remaining

	if remaining.IsPositive() {
		balancing, err := e.resolver.Resolve(ctx, party, remaining)
		if err != nil {
			return result, err
		}
		result.Balancing = balancing
		e.annotateShortfall(ctx, comment, &result, remaining)
	}

	return result, nil
}

// =============================================================================
// AUDIT ANNOTATION - best-effort, surfaced via Result.AuditErr
// =============================================================================

func (e *Engine) annotate(ctx context.Context, party PartyRef, comment *Comment, result *Result, ev ConsumptionEvent) {
	if comment == nil {
		return
	}
	if len(result.Events) == 1 {
		e.audit.AppendOpening(comment, party.Name, ev)
	} else {
		e.audit.AppendClause(comment, ev)
	}
	e.saveComment(ctx, comment, result)
}

func (e *Engine) annotateShortfall(ctx context.Context, comment *Comment, result *Result, shortfall Money) {
	if comment == nil {
		return
	}
	e.audit.AppendShortfall(comment, shortfall)
	e.saveComment(ctx, comment, result)
}

func (e *Engine) saveComment(ctx context.Context, comment *Comment, result *Result) {
	if e.comments == nil {
		return
	}
	if err := e.comments.SaveComment(ctx, comment); err != nil {
		result.AuditErr = errors.Join(result.AuditErr, &PersistenceError{Op: "save comment", Err: err})
	}
}
