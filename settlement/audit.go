/*
audit.go - Narrative projection of consumption events

PURPOSE:
  Turns consumption events into the human-readable, append-only system
  comment attached to an order. The comment is required for financial
  audit: a complete, ordered narrative of exactly which invoices funded a
  settlement and in what amounts.

POLICY:
  The first event of a call establishes the sentence
      "<party>: deducted <amount> from invoice <number>"
  (appended after any narrative a previous call left on the same order).
  Every later event appends
      ", <amount> from invoice <number>"
  and an uncovered remainder appends
      ", missing <amount>"
  Existing clauses are never overwritten: read, modify, append.

  Rendering is a pure projection of the event list, so amounts and
  invoice references stay independently testable.
*/
package settlement

import "fmt"

// AuditTrailBuilder renders consumption events into comment clauses.
// The zero value is ready to use.
type AuditTrailBuilder struct{}

// Opening renders the initial sentence for a settlement call.
func (AuditTrailBuilder) Opening(partyName string, ev ConsumptionEvent) string {
	return fmt.Sprintf("%s: deducted %s from invoice %s", partyName, ev.Applied, ev.InvoiceNumber)
}

// Clause renders a follow-up consumption clause.
func (AuditTrailBuilder) Clause(ev ConsumptionEvent) string {
	return fmt.Sprintf(", %s from invoice %s", ev.Applied, ev.InvoiceNumber)
}

// ShortfallClause renders the uncovered-remainder clause.
func (AuditTrailBuilder) ShortfallClause(shortfall Money) string {
	return fmt.Sprintf(", missing %s", shortfall)
}

// AppendOpening appends the call's initial sentence to the comment. When a
// previous settlement already left a narrative on the order, the sentence
// is chained after it rather than replacing it.
func (b AuditTrailBuilder) AppendOpening(c *Comment, partyName string, ev ConsumptionEvent) {
	sentence := b.Opening(partyName, ev)
	if c.SystemText == "" {
		c.SystemText = sentence
		return
	}
	c.SystemText += ", " + sentence
}

// AppendClause appends a follow-up consumption clause.
func (b AuditTrailBuilder) AppendClause(c *Comment, ev ConsumptionEvent) {
	c.SystemText += b.Clause(ev)
}

// AppendShortfall appends the shortfall clause.
func (b AuditTrailBuilder) AppendShortfall(c *Comment, shortfall Money) {
	c.SystemText += b.ShortfallClause(shortfall)
}

// Render projects a full settlement call to its narrative, independent of
// any comment state. Useful for verifying what a call will write.
func (b AuditTrailBuilder) Render(partyName string, r Result) string {
	out := ""
	for i, ev := range r.Events {
		if i == 0 {
			out = b.Opening(partyName, ev)
			continue
		}
		out += b.Clause(ev)
	}
	if r.Shortfall.IsPositive() {
		out += b.ShortfallClause(r.Shortfall)
	}
	return out
}
