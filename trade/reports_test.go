package trade_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/trade-settlement/settlement"
	"github.com/warp/trade-settlement/trade"
)

func (f *fixture) seedSettledOrder(t *testing.T, buyerSum, supplierSum, quantity string, placed time.Time) {
	t.Helper()
	require.NoError(t, f.store.SaveOrder(context.Background(), &trade.Order{
		ID:          uuid.NewString(),
		BuyerID:     "buyer-1",
		SupplierID:  "supplier-1",
		ProductID:   "timber",
		Quantity:    qty(quantity),
		BuyerSum:    settlement.MustMoney(buyerSum),
		SupplierSum: settlement.MustMoney(supplierSum),
		Comment:     settlement.Comment{ID: uuid.NewString()},
		PlacedOn:    placed,
	}))
}

func TestYearReport_Aggregates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedParty(t, "buyer-1", "Acme", settlement.RoleBuyer)
	f.seedParty(t, "supplier-1", "Bolt", settlement.RoleSupplier)

	f.seedSettledOrder(t, "60.00", "48.00", "1", time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC))
	f.seedSettledOrder(t, "40.05", "32.00", "1", time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC))
	// Outside the year: ignored.
	f.seedSettledOrder(t, "999.00", "999.00", "1", time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC))

	require.NoError(t, f.store.SaveCost(ctx, &trade.Cost{
		ID: "cost-1", Description: "transport", Value: settlement.MustMoney("15.00"),
		IncurredOn: time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
	}))

	// Buyer owes 25.00, carried on a balancing invoice.
	require.NoError(t, f.store.SaveInvoice(ctx, &settlement.Invoice{
		ID: "neg-1", PartyID: "buyer-1", Number: settlement.BalancingInvoiceNumber,
		Value: settlement.MustMoney("-25.00"), AmountToUse: settlement.MustMoney("-25.00"),
		IssuedOn: time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
	}))

	report, err := f.reports.YearReport(ctx, 2025)
	require.NoError(t, err)

	assert.Equal(t, "2025", report.Type)
	assert.Equal(t, "100.05", report.SoldValue.String())
	assert.Equal(t, "80.00", report.BoughtValue.String())
	assert.Equal(t, "20.05", report.Income.String())
	assert.Equal(t, "2", report.SoldQuantity.String())

	// 100.05 / 2 = 50.025 -> half-to-even -> 50.02 (half-up would say 50.03)
	assert.Equal(t, "50.02", report.AverageSold.String())
	assert.Equal(t, "40.00", report.AveragePurchase.String())
	assert.Equal(t, "10.02", report.AverageEarningsPerUnit.String())

	assert.Equal(t, "15.00", report.SumCosts.String())
	assert.Equal(t, "25.00", report.BuyersUnpaid.String())
}

func TestMonthReport_FiltersByMonth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedParty(t, "buyer-1", "Acme", settlement.RoleBuyer)
	f.seedParty(t, "supplier-1", "Bolt", settlement.RoleSupplier)

	f.seedSettledOrder(t, "60.00", "48.00", "6", time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC))
	f.seedSettledOrder(t, "40.00", "32.00", "4", time.Date(2025, time.April, 5, 0, 0, 0, 0, time.UTC))

	report, err := f.reports.MonthReport(ctx, 2025, time.March)
	require.NoError(t, err)

	assert.Equal(t, "2025-03", report.Type)
	assert.Equal(t, "60.00", report.SoldValue.String())
	assert.Equal(t, "48.00", report.BoughtValue.String())
	assert.Equal(t, "6", report.SoldQuantity.String())
}

func TestYearReport_EmptyPeriod_NoDivision(t *testing.T) {
	f := newFixture(t)

	report, err := f.reports.YearReport(context.Background(), 2030)
	require.NoError(t, err)

	assert.True(t, report.SoldValue.IsZero())
	assert.True(t, report.AverageSold.IsZero())
	assert.True(t, report.Income.IsZero())
}

func TestYearReport_ZeroQuantityWithOrders_SurfacesDivisionError(t *testing.T) {
	f := newFixture(t)

	f.seedParty(t, "buyer-1", "Acme", settlement.RoleBuyer)
	f.seedParty(t, "supplier-1", "Bolt", settlement.RoleSupplier)
	f.seedSettledOrder(t, "60.00", "48.00", "0", time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC))

	_, err := f.reports.YearReport(context.Background(), 2025)
	require.Error(t, err)
	assert.ErrorIs(t, err, settlement.ErrDivisionByZero)
}
