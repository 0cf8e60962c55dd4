/*
reports.go - Month and year aggregates

PURPOSE:
  Rolls orders, costs and outstanding balances up into the figures the
  business reads: sold/bought value, income, average prices per unit and
  what buyers still owe. Reading only; no report ever mutates an invoice.

ROUNDING:
  Averages divide with half-to-even rounding so long-run figures do not
  drift. A period with orders but zero total quantity surfaces
  ErrDivisionByZero rather than pretending the average is zero.
*/
package trade

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/trade-settlement/settlement"
)

// Report is one aggregated period.
type Report struct {
	Type         string // "2025" or "2025-03"
	SoldValue    settlement.Money
	BoughtValue  settlement.Money
	Income       settlement.Money
	SoldQuantity decimal.Decimal

	AverageSold            settlement.Money
	AveragePurchase        settlement.Money
	AverageEarningsPerUnit settlement.Money

	SumCosts     settlement.Money
	BuyersUnpaid settlement.Money
}

// ReportService aggregates settled orders into period reports.
type ReportService struct {
	Orders   OrderStore
	Costs    CostStore
	Parties  PartyStore
	Invoices settlement.InvoiceStore
}

// YearReport aggregates one calendar year.
func (s *ReportService) YearReport(ctx context.Context, year int) (*Report, error) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return s.build(ctx, fmt.Sprintf("%d", year), from, from.AddDate(1, 0, 0))
}

// MonthReport aggregates one calendar month.
func (s *ReportService) MonthReport(ctx context.Context, year int, month time.Month) (*Report, error) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return s.build(ctx, fmt.Sprintf("%d-%02d", year, month), from, from.AddDate(0, 1, 0))
}

func (s *ReportService) build(ctx context.Context, label string, from, to time.Time) (*Report, error) {
	report := &Report{Type: label, SoldQuantity: decimal.Zero}

	orders, err := s.Orders.OrdersInRange(ctx, from, to)
	if err != nil {
		return nil, err
	}

	for _, o := range orders {
		report.SoldValue = report.SoldValue.Add(o.BuyerSum)
		report.BoughtValue = report.BoughtValue.Add(o.SupplierSum)
		report.SoldQuantity = report.SoldQuantity.Add(o.Quantity)
	}
	report.Income = report.SoldValue.Sub(report.BoughtValue)

	if len(orders) > 0 {
		report.AverageSold, err = report.SoldValue.Div(report.SoldQuantity)
		if err != nil {
			return nil, fmt.Errorf("average sold price for %s: %w", label, err)
		}
		report.AveragePurchase, err = report.BoughtValue.Div(report.SoldQuantity)
		if err != nil {
			return nil, fmt.Errorf("average purchase price for %s: %w", label, err)
		}
		report.AverageEarningsPerUnit = report.AverageSold.Sub(report.AveragePurchase)
	}

	costs, err := s.Costs.CostsInRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	for _, c := range costs {
		report.SumCosts = report.SumCosts.Add(c.Value)
	}

	report.BuyersUnpaid, err = s.buyersUnpaid(ctx)
	if err != nil {
		return nil, err
	}

	return report, nil
}

// buyersUnpaid sums what buyers still owe: the magnitude of each buyer's
// balancing invoice, if any.
func (s *ReportService) buyersUnpaid(ctx context.Context) (settlement.Money, error) {
	buyers, err := s.Parties.ListParties(ctx, settlement.RoleBuyer)
	if err != nil {
		return settlement.Zero(), err
	}

	unpaid := settlement.Zero()
	for _, b := range buyers {
		balancing, err := s.Invoices.BalancingInvoice(ctx, b.ID)
		if err != nil {
			return settlement.Zero(), err
		}
		if balancing != nil {
			unpaid = unpaid.Add(balancing.AmountToUse.Neg())
		}
	}
	return unpaid, nil
}
