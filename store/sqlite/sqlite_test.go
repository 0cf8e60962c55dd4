package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/trade-settlement/settlement"
	"github.com/warp/trade-settlement/store/sqlite"
	"github.com/warp/trade-settlement/trade"
)

func qty(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func saveParty(t *testing.T, store *sqlite.Store, id, name string, role settlement.Role) {
	t.Helper()
	require.NoError(t, store.SaveParty(context.Background(), &trade.Party{
		ID: settlement.PartyID(id), Name: name, Role: role, CreatedAt: time.Now(),
	}))
}

func saveOrder(t *testing.T, store *sqlite.Store, id, buyerID, supplierID, userText string, placed time.Time) {
	t.Helper()
	require.NoError(t, store.SaveOrder(context.Background(), &trade.Order{
		ID:         id,
		BuyerID:    settlement.PartyID(buyerID),
		SupplierID: settlement.PartyID(supplierID),
		ProductID:  "timber",
		Quantity:   qty("10"),
		Comment:    settlement.Comment{ID: "comment-" + id, UserText: userText},
		PlacedOn:   placed,
	}))
}

// An in-memory store is a single shared database: order queries that run
// while iterating another result set must still see every table.
func TestOrdersInRange_InMemory_LoadsComments(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	saveParty(t, store, "buyer-1", "Acme", settlement.RoleBuyer)
	saveParty(t, store, "supplier-1", "Bolt", settlement.RoleSupplier)
	saveOrder(t, store, "order-1", "buyer-1", "supplier-1", "rush delivery",
		time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC))
	saveOrder(t, store, "order-2", "buyer-1", "supplier-1", "",
		time.Date(2025, time.April, 5, 0, 0, 0, 0, time.UTC))

	orders, err := store.OrdersInRange(ctx,
		time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, orders, 2)

	assert.Equal(t, "order-1", orders[0].ID)
	assert.Equal(t, "rush delivery", orders[0].Comment.UserText)
	assert.Equal(t, "comment-order-2", orders[1].Comment.ID)
}

func TestPartyOrders_FiltersByPartyOnEitherSide(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	saveParty(t, store, "buyer-1", "Acme", settlement.RoleBuyer)
	saveParty(t, store, "buyer-2", "Crux", settlement.RoleBuyer)
	saveParty(t, store, "supplier-1", "Bolt", settlement.RoleSupplier)

	march := time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC)
	saveOrder(t, store, "order-1", "buyer-1", "supplier-1", "", march)
	saveOrder(t, store, "order-2", "buyer-2", "supplier-1", "", march.AddDate(0, 0, 1))

	from := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

	orders, err := store.PartyOrders(ctx, "buyer-1", from, to)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "order-1", orders[0].ID)

	// The supplier sees both: party match applies to either side.
	orders, err = store.PartyOrders(ctx, "supplier-1", from, to)
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}
