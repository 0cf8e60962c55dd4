/*
Package trade is the domain layer over the settlement engine.

PURPOSE:
  Orders, parties, products, prices and costs: the entities the trading
  business manipulates. The package computes due amounts (quantity x unit
  price), drives the settlement engine once per order side, and aggregates
  month/year reports. All invariant-preserving logic lives in the
  settlement package; this layer is plumbing around it.

KEY CONCEPTS IN THIS FILE (types.go):
  - Party:  a buyer or supplier holding a running set of invoices
  - Order:  one trade of a product quantity between a buyer and a supplier;
            owns a due sum per side and the audit comment
  - Price:  the unit price a party trades a product at
  - Cost:   an operating cost, reported against yearly income

SEE ALSO:
  - pricing.go: due-amount computation
  - service.go: order settlement orchestration
  - reports.go: month/year aggregates
*/
package trade

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/trade-settlement/settlement"
)

// =============================================================================
// ENTITIES
// =============================================================================

// Party is a buyer or supplier.
type Party struct {
	ID        settlement.PartyID
	Name      string
	Role      settlement.Role
	CreatedAt time.Time
}

// Ref adapts the party for the settlement engine.
func (p *Party) Ref() settlement.PartyRef {
	return settlement.PartyRef{ID: p.ID, Name: p.Name, Role: p.Role}
}

// Product is a traded good.
type Product struct {
	ID   string
	Name string
}

// Price is the unit price one party trades one product at. Buyers and
// suppliers each have their own price rows.
type Price struct {
	PartyID   settlement.PartyID
	ProductID string
	Value     settlement.Money
}

// Order is one trade: a quantity of a product bought from a supplier and
// sold to a buyer. It is the settlement target: each side's due sum is
// settled independently against that party's invoices, and the comment
// collects the audit narrative for both sides.
type Order struct {
	ID         string
	BuyerID    settlement.PartyID
	SupplierID settlement.PartyID
	ProductID  string
	Quantity   decimal.Decimal

	// TypedPrice overrides the buyer price list for this order when
	// positive; zero means "use the price list".
	TypedPrice settlement.Money

	BuyerSum    settlement.Money
	SupplierSum settlement.Money
	Comment     settlement.Comment
	PlacedOn    time.Time
}

// Cost is an operating expense, aggregated in reports.
type Cost struct {
	ID          string
	Description string
	Value       settlement.Money
	IncurredOn  time.Time
}

// =============================================================================
// STORE INTERFACES - implemented by store/sqlite
// =============================================================================

type PartyStore interface {
	SaveParty(ctx context.Context, p *Party) error
	// Party returns settlement.ErrNotFound (wrapped) for an unknown id.
	Party(ctx context.Context, id settlement.PartyID) (*Party, error)
	// ListParties filters by role; an empty role lists everyone.
	ListParties(ctx context.Context, role settlement.Role) ([]*Party, error)
}

type ProductStore interface {
	SaveProduct(ctx context.Context, p *Product) error
	ListProducts(ctx context.Context) ([]*Product, error)
}

type PriceStore interface {
	SavePrice(ctx context.Context, p *Price) error
	// Price returns (value, true) when a price row exists.
	Price(ctx context.Context, partyID settlement.PartyID, productID string) (settlement.Money, bool, error)
}

type OrderStore interface {
	SaveOrder(ctx context.Context, o *Order) error
	Order(ctx context.Context, id string) (*Order, error)
	// OrdersInRange returns orders with PlacedOn in [from, to).
	OrdersInRange(ctx context.Context, from, to time.Time) ([]*Order, error)
	// PartyOrders narrows OrdersInRange to orders the party took part in,
	// on either side.
	PartyOrders(ctx context.Context, partyID settlement.PartyID, from, to time.Time) ([]*Order, error)
}

type CostStore interface {
	SaveCost(ctx context.Context, c *Cost) error
	CostsInRange(ctx context.Context, from, to time.Time) ([]*Cost, error)
}
