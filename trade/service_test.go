package trade_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/trade-settlement/settlement"
	"github.com/warp/trade-settlement/store/sqlite"
	"github.com/warp/trade-settlement/trade"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	store   *sqlite.Store
	service *trade.OrderService
	reports *trade.ReportService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	engine := settlement.NewEngine(store, store)
	pricing := &trade.Pricing{Prices: store}

	return &fixture{
		store:   store,
		service: trade.NewOrderService(store, store, pricing, engine, zerolog.Nop()),
		reports: &trade.ReportService{Orders: store, Costs: store, Parties: store, Invoices: store},
	}
}

func (f *fixture) seedParty(t *testing.T, id, name string, role settlement.Role) *trade.Party {
	t.Helper()
	p := &trade.Party{ID: settlement.PartyID(id), Name: name, Role: role, CreatedAt: time.Now()}
	require.NoError(t, f.store.SaveParty(context.Background(), p))
	return p
}

func (f *fixture) seedPrice(t *testing.T, partyID, productID, value string) {
	t.Helper()
	// Price rows reference products; make sure the product exists.
	require.NoError(t, f.store.SaveProduct(context.Background(), &trade.Product{
		ID:   productID,
		Name: productID,
	}))
	require.NoError(t, f.store.SavePrice(context.Background(), &trade.Price{
		PartyID:   settlement.PartyID(partyID),
		ProductID: productID,
		Value:     settlement.MustMoney(value),
	}))
}

func (f *fixture) seedInvoice(t *testing.T, partyID, id, number, amount string, issued time.Time) {
	t.Helper()
	require.NoError(t, f.store.SaveInvoice(context.Background(), &settlement.Invoice{
		ID:          settlement.InvoiceID(id),
		PartyID:     settlement.PartyID(partyID),
		Number:      number,
		Value:       settlement.MustMoney(amount),
		AmountToUse: settlement.MustMoney(amount),
		IssuedOn:    issued,
	}))
}

func qty(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// =============================================================================
// ORDER SETTLEMENT END TO END
// =============================================================================

func TestSettleOrder_BothSides(t *testing.T) {
	// GIVEN: buyer pays 10.00/unit, supplier gets 8.00/unit, quantity 10
	//        buyer holds a 60.00 invoice, supplier holds a 100.00 invoice
	// WHEN: settling the order
	// THEN: buyer side consumes 60.00 and carries a 40.00 shortfall,
	//       supplier side partially consumes 80.00 of the 100.00 invoice

	f := newFixture(t)
	ctx := context.Background()
	jan1 := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	f.seedParty(t, "buyer-1", "Acme", settlement.RoleBuyer)
	f.seedParty(t, "supplier-1", "Bolt", settlement.RoleSupplier)
	f.seedPrice(t, "buyer-1", "timber", "10.00")
	f.seedPrice(t, "supplier-1", "timber", "8.00")
	f.seedInvoice(t, "buyer-1", "inv-b1", "FV-1", "60.00", jan1)
	f.seedInvoice(t, "supplier-1", "inv-s1", "FV-9", "100.00", jan1)

	order := &trade.Order{
		BuyerID:    "buyer-1",
		SupplierID: "supplier-1",
		ProductID:  "timber",
		Quantity:   qty("10"),
		PlacedOn:   time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, f.service.CreateOrder(ctx, order))

	summary, err := f.service.SettleOrder(ctx, order.ID)
	require.NoError(t, err)

	// Due sums persisted on the order.
	stored, err := f.store.Order(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", stored.BuyerSum.String())
	assert.Equal(t, "80.00", stored.SupplierSum.String())

	// Buyer side: full consumption plus shortfall.
	assert.Len(t, summary.Buyer.Events, 1)
	assert.Equal(t, "40.00", summary.Buyer.Shortfall.String())
	require.NotNil(t, summary.Buyer.Balancing)
	assert.Equal(t, "-40.00", summary.Buyer.Balancing.AmountToUse.String())

	// Supplier side: one partial consumption, invoice stays open at 20.00.
	require.Len(t, summary.Supplier.Events, 1)
	assert.Equal(t, settlement.ConsumedPartially, summary.Supplier.Events[0].Kind)
	assert.Equal(t, "80.00", summary.Supplier.Events[0].Applied.String())
	open, err := f.store.OpenInvoices(ctx, "supplier-1")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "20.00", open[0].AmountToUse.String())

	// The comment narrates both sides in order.
	want := "Acme: deducted 60.00 from invoice FV-1, missing 40.00" +
		", Bolt: deducted 80.00 from invoice FV-9"
	assert.Equal(t, want, stored.Comment.SystemText)
}

func TestSettleOrder_MissingSupplierPrice_NothingSettled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	jan1 := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	f.seedParty(t, "buyer-1", "Acme", settlement.RoleBuyer)
	f.seedParty(t, "supplier-1", "Bolt", settlement.RoleSupplier)
	f.seedPrice(t, "buyer-1", "timber", "10.00")
	// no supplier price
	f.seedInvoice(t, "buyer-1", "inv-b1", "FV-1", "60.00", jan1)

	order := &trade.Order{
		BuyerID:    "buyer-1",
		SupplierID: "supplier-1",
		ProductID:  "timber",
		Quantity:   qty("10"),
	}
	require.NoError(t, f.service.CreateOrder(ctx, order))

	_, err := f.service.SettleOrder(ctx, order.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, settlement.ErrMissingPrice)

	// Propagated before any mutation: the buyer invoice is untouched.
	open, err := f.store.OpenInvoices(ctx, "buyer-1")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "60.00", open[0].AmountToUse.String())
}

func TestSettleOrder_FIFOAcrossIssueDates(t *testing.T) {
	// The store must hand invoices to the engine oldest first; the newer
	// invoice is only touched once the older one is exhausted.

	f := newFixture(t)
	ctx := context.Background()

	f.seedParty(t, "buyer-1", "Acme", settlement.RoleBuyer)
	f.seedParty(t, "supplier-1", "Bolt", settlement.RoleSupplier)
	f.seedPrice(t, "buyer-1", "timber", "10.00")
	f.seedPrice(t, "supplier-1", "timber", "1.00")
	f.seedInvoice(t, "supplier-1", "inv-s1", "FV-S", "100.00", time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))

	// Newer invoice seeded first: issue date, not insertion, decides order.
	f.seedInvoice(t, "buyer-1", "inv-new", "FV-2", "50.00", time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC))
	f.seedInvoice(t, "buyer-1", "inv-old", "FV-1", "30.00", time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))

	order := &trade.Order{
		BuyerID:    "buyer-1",
		SupplierID: "supplier-1",
		ProductID:  "timber",
		Quantity:   qty("4"),
	}
	require.NoError(t, f.service.CreateOrder(ctx, order))

	summary, err := f.service.SettleOrder(ctx, order.ID)
	require.NoError(t, err)

	// Due 40.00: the January invoice (30.00) goes first, then 10.00 off
	// the February one.
	require.Len(t, summary.Buyer.Events, 2)
	assert.Equal(t, "FV-1", summary.Buyer.Events[0].InvoiceNumber)
	assert.Equal(t, "30.00", summary.Buyer.Events[0].Applied.String())
	assert.Equal(t, "FV-2", summary.Buyer.Events[1].InvoiceNumber)
	assert.Equal(t, "10.00", summary.Buyer.Events[1].Applied.String())
}

func TestCreateOrder_NegativeQuantity_Rejected(t *testing.T) {
	f := newFixture(t)

	err := f.service.CreateOrder(context.Background(), &trade.Order{
		BuyerID:    "buyer-1",
		SupplierID: "supplier-1",
		ProductID:  "timber",
		Quantity:   qty("-1"),
	})
	assert.ErrorIs(t, err, settlement.ErrInvalidInput)
}

// =============================================================================
// RETRY / RESUME
// =============================================================================

func TestSettleOrder_RepeatedSettlement_DoesNotDoubleCharge(t *testing.T) {
	// Settling the same order twice charges the ledger twice by contract
	// (settle is once per order side). This test pins the resume rule at
	// the engine boundary instead: a second settlement of the residual
	// leaves the same ledger as a single full settlement.

	f := newFixture(t)
	ctx := context.Background()
	jan1 := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	f.seedParty(t, "buyer-1", "Acme", settlement.RoleBuyer)
	f.seedInvoice(t, "buyer-1", "inv-1", "FV-1", "60.00", jan1)
	f.seedInvoice(t, "buyer-1", "inv-2", "FV-2", "50.00", jan1.AddDate(0, 0, 1))

	engine := settlement.NewEngine(f.store, f.store)
	buyer := settlement.PartyRef{ID: "buyer-1", Name: "Acme", Role: settlement.RoleBuyer}

	_, err := engine.Settle(ctx, buyer, settlement.MustMoney("60.00"), nil)
	require.NoError(t, err)
	_, err = engine.Settle(ctx, buyer, settlement.MustMoney("40.00"), nil)
	require.NoError(t, err)

	open, err := f.store.OpenInvoices(ctx, "buyer-1")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "10.00", open[0].AmountToUse.String())
}
