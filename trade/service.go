/*
service.go - Order settlement orchestration

PURPOSE:
  Drives one order through settlement: compute the due sum for each side,
  persist the sums, then run the engine once per (order, side). The buyer
  and supplier sides are independent settlements against different
  invoice ledgers that happen to annotate the same order comment.

ERROR FLOW:
  A missing price aborts before any settlement starts. A settlement
  failure on the buyer side leaves the supplier side untouched; the
  partial state already persisted is valid and the call can be retried
  with the residual amounts (the engine resumes, it does not restart).
  Audit-comment failures are logged and reported, never escalated to
  settlement failure.
*/
package trade

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/warp/trade-settlement/settlement"
)

// Summary is the outcome of settling both sides of an order.
type Summary struct {
	Order    *Order
	Buyer    settlement.Result
	Supplier settlement.Result
}

// OrderService creates and settles orders.
type OrderService struct {
	Orders  OrderStore
	Parties PartyStore
	Pricing *Pricing
	Engine  *settlement.Engine
	Log     zerolog.Logger
}

func NewOrderService(orders OrderStore, parties PartyStore, pricing *Pricing, engine *settlement.Engine, log zerolog.Logger) *OrderService {
	return &OrderService{
		Orders:  orders,
		Parties: parties,
		Pricing: pricing,
		Engine:  engine,
		Log:     log.With().Str("component", "orders").Logger(),
	}
}

// CreateOrder persists a new order, filling in id, comment id and
// placement date when absent.
func (s *OrderService) CreateOrder(ctx context.Context, o *Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Comment.ID == "" {
		o.Comment.ID = uuid.NewString()
	}
	if o.PlacedOn.IsZero() {
		o.PlacedOn = time.Now()
	}
	if o.Quantity.IsNegative() {
		return fmt.Errorf("order quantity %s: %w", o.Quantity, settlement.ErrInvalidInput)
	}
	return s.Orders.SaveOrder(ctx, o)
}

// SettleOrder computes both sides' due sums and settles each against the
// owning party's invoices. Callable once per order under normal flow; a
// retry after a mid-settlement failure resumes against whatever the
// ledger still owes.
func (s *OrderService) SettleOrder(ctx context.Context, orderID string) (*Summary, error) {
	o, err := s.Orders.Order(ctx, orderID)
	if err != nil {
		return nil, err
	}

	buyer, err := s.Parties.Party(ctx, o.BuyerID)
	if err != nil {
		return nil, err
	}
	supplier, err := s.Parties.Party(ctx, o.SupplierID)
	if err != nil {
		return nil, err
	}

	// Both due amounts are computed up front: a missing price on either
	// side aborts before any invoice is touched.
	buyerDue, err := s.Pricing.DueAmount(ctx, o, settlement.RoleBuyer)
	if err != nil {
		return nil, err
	}
	supplierDue, err := s.Pricing.DueAmount(ctx, o, settlement.RoleSupplier)
	if err != nil {
		return nil, err
	}

	o.BuyerSum = buyerDue
	o.SupplierSum = supplierDue
	if err := s.Orders.SaveOrder(ctx, o); err != nil {
		return nil, &settlement.PersistenceError{Op: "save order sums", Err: err}
	}

	summary := &Summary{Order: o}

	summary.Buyer, err = s.Engine.Settle(ctx, buyer.Ref(), buyerDue, &o.Comment)
	if err != nil {
		return summary, fmt.Errorf("settle buyer side of order %s: %w", o.ID, err)
	}
	s.logResult(o.ID, buyer.Ref(), summary.Buyer)

	summary.Supplier, err = s.Engine.Settle(ctx, supplier.Ref(), supplierDue, &o.Comment)
	if err != nil {
		return summary, fmt.Errorf("settle supplier side of order %s: %w", o.ID, err)
	}
	s.logResult(o.ID, supplier.Ref(), summary.Supplier)

	return summary, nil
}

func (s *OrderService) logResult(orderID string, party settlement.PartyRef, r settlement.Result) {
	ev := s.Log.Info().
		Str("order", orderID).
		Str("party", string(party.ID)).
		Str("role", string(party.Role)).
		Int("events", len(r.Events)).
		Stringer("shortfall", r.Shortfall)
	ev.Msg("side settled")

	if r.AuditErr != nil {
		// Audit failure is not settlement failure; keep them apart.
		s.Log.Warn().
			Str("order", orderID).
			Str("party", string(party.ID)).
			Err(r.AuditErr).
			Msg("audit comment write failed")
	}
}
