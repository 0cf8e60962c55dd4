package trade_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/trade-settlement/settlement"
	"github.com/warp/trade-settlement/trade"
)

func TestDueAmount_QuantityTimesPrice_HalfUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedParty(t, "buyer-1", "Acme", settlement.RoleBuyer)
	f.seedPrice(t, "buyer-1", "timber", "10.01")

	pricing := &trade.Pricing{Prices: f.store}
	due, err := pricing.DueAmount(ctx, &trade.Order{
		BuyerID:   "buyer-1",
		ProductID: "timber",
		Quantity:  qty("2.5"),
	}, settlement.RoleBuyer)

	require.NoError(t, err)
	assert.Equal(t, "25.03", due.String(), "25.025 must round half-up")
}

func TestDueAmount_TypedPriceOverridesBuyerPriceList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedParty(t, "buyer-1", "Acme", settlement.RoleBuyer)
	f.seedPrice(t, "buyer-1", "timber", "10.00")

	pricing := &trade.Pricing{Prices: f.store}
	due, err := pricing.DueAmount(ctx, &trade.Order{
		BuyerID:    "buyer-1",
		ProductID:  "timber",
		Quantity:   qty("10"),
		TypedPrice: settlement.MustMoney("12.00"),
	}, settlement.RoleBuyer)

	require.NoError(t, err)
	assert.Equal(t, "120.00", due.String())
}

func TestDueAmount_TypedPriceIgnoredOnSupplierSide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedParty(t, "supplier-1", "Bolt", settlement.RoleSupplier)
	f.seedPrice(t, "supplier-1", "timber", "8.00")

	pricing := &trade.Pricing{Prices: f.store}
	due, err := pricing.DueAmount(ctx, &trade.Order{
		SupplierID: "supplier-1",
		ProductID:  "timber",
		Quantity:   qty("10"),
		TypedPrice: settlement.MustMoney("12.00"),
	}, settlement.RoleSupplier)

	require.NoError(t, err)
	assert.Equal(t, "80.00", due.String())
}

func TestDueAmount_MissingPrice(t *testing.T) {
	f := newFixture(t)

	pricing := &trade.Pricing{Prices: f.store}
	_, err := pricing.DueAmount(context.Background(), &trade.Order{
		BuyerID:   "buyer-1",
		ProductID: "timber",
		Quantity:  qty("10"),
	}, settlement.RoleBuyer)

	require.Error(t, err)
	assert.ErrorIs(t, err, settlement.ErrMissingPrice)

	var missing *trade.MissingPriceError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, settlement.PartyID("buyer-1"), missing.PartyID)
	assert.Equal(t, "timber", missing.ProductID)
}
