/*
pricing.go - Due-amount computation

PURPOSE:
  Computes what a party owes or is owed for an order: quantity x unit
  price, rounded half-up to 2 digits. The engine never decides the due
  amount; it arrives here and nowhere else.

PRICE RESOLUTION:
  Buyer side: a positive typed price on the order overrides the price
  list. Supplier side: always the price list. A missing price is an
  error (MissingPriceError) and settlement never starts.
*/
package trade

import (
	"context"
	"fmt"

	"github.com/warp/trade-settlement/settlement"
)

// MissingPriceError reports that no unit price exists for a party/product
// pair, so no due amount can be computed.
type MissingPriceError struct {
	PartyID   settlement.PartyID
	ProductID string
	Role      settlement.Role
}

func (e *MissingPriceError) Error() string {
	return fmt.Sprintf("%s %s has no price for product %s", e.Role, e.PartyID, e.ProductID)
}

func (e *MissingPriceError) Unwrap() error { return settlement.ErrMissingPrice }

// Pricing resolves unit prices and computes order due amounts.
type Pricing struct {
	Prices PriceStore
}

// DueAmount computes the amount due for one side of the order.
func (p *Pricing) DueAmount(ctx context.Context, o *Order, role settlement.Role) (settlement.Money, error) {
	partyID := o.SupplierID
	if role == settlement.RoleBuyer {
		partyID = o.BuyerID
	}

	price, err := p.resolvePrice(ctx, o, partyID, role)
	if err != nil {
		return settlement.Zero(), err
	}
	return price.Mul(o.Quantity), nil
}

func (p *Pricing) resolvePrice(ctx context.Context, o *Order, partyID settlement.PartyID, role settlement.Role) (settlement.Money, error) {
	if role == settlement.RoleBuyer && o.TypedPrice.IsPositive() {
		return o.TypedPrice, nil
	}

	price, ok, err := p.Prices.Price(ctx, partyID, o.ProductID)
	if err != nil {
		return settlement.Zero(), err
	}
	if !ok {
		return settlement.Zero(), &MissingPriceError{PartyID: partyID, ProductID: o.ProductID, Role: role}
	}
	return price, nil
}
