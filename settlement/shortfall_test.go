package settlement_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/warp/trade-settlement/settlement"
	"github.com/warp/trade-settlement/settlement/store"
)

func TestResolver_NoBalancingInvoice_CreatesOne(t *testing.T) {
	mem := store.NewMemory()
	resolver := settlement.NewShortfallResolver(mem)
	issued := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	resolver.Now = func() time.Time { return issued }

	inv, err := resolver.Resolve(context.Background(), acme, money("70.00"))
	if err != nil {
		t.Fatal(err)
	}

	if inv.Number != settlement.BalancingInvoiceNumber {
		t.Errorf("number = %q, want %q", inv.Number, settlement.BalancingInvoiceNumber)
	}
	if !inv.Value.Equal(money("-70.00")) || !inv.AmountToUse.Equal(money("-70.00")) {
		t.Errorf("value=%s amountToUse=%s, want -70.00 both", inv.Value, inv.AmountToUse)
	}
	if !inv.IssuedOn.Equal(issued) {
		t.Errorf("issued on %s, want %s", inv.IssuedOn, issued)
	}
}

func TestResolver_ExistingBalancingInvoice_ToppedUp(t *testing.T) {
	// GIVEN: an existing balancing invoice at -10.00
	// WHEN: resolving a 5.00 shortfall
	// THEN: the same invoice moves to -15.00; no second one appears

	ctx := context.Background()
	mem := store.NewMemory()
	resolver := settlement.NewShortfallResolver(mem)
	seedInvoice(t, mem, acme.ID, "neg-1", settlement.BalancingInvoiceNumber, "-10.00", 1)

	inv, err := resolver.Resolve(ctx, acme, money("5.00"))
	if err != nil {
		t.Fatal(err)
	}

	if inv.ID != "neg-1" {
		t.Errorf("resolver created a new invoice %s instead of topping up neg-1", inv.ID)
	}
	if !inv.Value.Equal(money("-15.00")) || !inv.AmountToUse.Equal(money("-15.00")) {
		t.Errorf("value=%s amountToUse=%s, want -15.00 both", inv.Value, inv.AmountToUse)
	}
	if got := len(mem.PartyInvoices(acme.ID)); got != 1 {
		t.Errorf("%d invoices for party, want 1", got)
	}
}

// =============================================================================
// AUDIT FAILURE IS NOT SETTLEMENT FAILURE
// =============================================================================

type failingComments struct{}

func (failingComments) SaveComment(context.Context, *settlement.Comment) error {
	return errors.New("comment table unavailable")
}

func TestSettle_CommentWriteFailure_SurfacedSeparately(t *testing.T) {
	// A failed audit write must not fail the settlement; it is reported
	// on the result instead.

	mem := store.NewMemory()
	engine := settlement.NewEngine(mem, failingComments{})
	seedInvoice(t, mem, acme.ID, "inv-1", "FV-1", "60.00", 1)

	result, err := engine.Settle(context.Background(), acme, money("60.00"), &settlement.Comment{ID: "c-1"})
	if err != nil {
		t.Fatalf("settlement failed on audit error: %v", err)
	}
	if result.AuditErr == nil {
		t.Fatal("expected AuditErr to be set")
	}
	if !mem.Invoice("inv-1").Used {
		t.Error("invoice consumption should have gone through")
	}
}
