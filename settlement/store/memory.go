// Package store provides in-memory implementations of the settlement
// store interfaces, for tests and local development.
package store

import (
	"context"
	"sync"

	"github.com/warp/trade-settlement/settlement"
)

// =============================================================================
// MEMORY STORE - In-memory InvoiceStore/CommentStore
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	invoices map[settlement.InvoiceID]*settlement.Invoice
	order    map[settlement.PartyID][]settlement.InvoiceID // insertion = issuance order
	comments map[string]*settlement.Comment
}

func NewMemory() *Memory {
	return &Memory{
		invoices: make(map[settlement.InvoiceID]*settlement.Invoice),
		order:    make(map[settlement.PartyID][]settlement.InvoiceID),
		comments: make(map[string]*settlement.Comment),
	}
}

// OpenInvoices returns copies of the party's invoices with AmountToUse > 0,
// in issuance order. Copies keep callers from mutating canonical state
// without going through SaveInvoice.
func (m *Memory) OpenInvoices(_ context.Context, partyID settlement.PartyID) ([]*settlement.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*settlement.Invoice
	for _, id := range m.order[partyID] {
		inv := m.invoices[id]
		if inv.AmountToUse.IsPositive() {
			cp := *inv
			result = append(result, &cp)
		}
	}
	return result, nil
}

// BalancingInvoice returns a copy of the party's balancing invoice, nil
// when none exists, and an invariant error when more than one is found.
func (m *Memory) BalancingInvoice(_ context.Context, partyID settlement.PartyID) (*settlement.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var found []*settlement.Invoice
	for _, id := range m.order[partyID] {
		if inv := m.invoices[id]; inv.IsBalancing() {
			found = append(found, inv)
		}
	}
	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		cp := *found[0]
		return &cp, nil
	default:
		return nil, &settlement.InvariantViolationError{PartyID: partyID, Count: len(found)}
	}
}

// SaveInvoice inserts or updates an invoice.
func (m *Memory) SaveInvoice(_ context.Context, inv *settlement.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.invoices[inv.ID]; !exists {
		m.order[inv.PartyID] = append(m.order[inv.PartyID], inv.ID)
	}
	cp := *inv
	m.invoices[inv.ID] = &cp
	return nil
}

// SaveComment inserts or updates a comment.
func (m *Memory) SaveComment(_ context.Context, c *settlement.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *c
	m.comments[c.ID] = &cp
	return nil
}

// Comment returns the stored comment for tests; nil when absent.
func (m *Memory) Comment(id string) *settlement.Comment {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.comments[id]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

// Invoice returns the stored invoice for tests; nil when absent.
func (m *Memory) Invoice(id settlement.InvoiceID) *settlement.Invoice {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inv, ok := m.invoices[id]
	if !ok {
		return nil
	}
	cp := *inv
	return &cp
}

// PartyInvoices returns all of the party's invoices in issuance order,
// including consumed and balancing ones.
func (m *Memory) PartyInvoices(partyID settlement.PartyID) []*settlement.Invoice {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*settlement.Invoice
	for _, id := range m.order[partyID] {
		cp := *m.invoices[id]
		result = append(result, &cp)
	}
	return result
}
