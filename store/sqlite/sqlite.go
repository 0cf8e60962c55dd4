/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements settlement.InvoiceStore, settlement.CommentStore and the
  trade store interfaces (parties, products, prices, orders, costs) on a
  single SQLite database. In production the same patterns apply to
  PostgreSQL; only SQL dialect details differ.

KEY TABLES:
  parties         buyers and suppliers
  invoices        documents of value; remaining amount mutated by the
                  settlement engine, rows never deleted
  prices          unit price per (party, product)
  orders          trades; due sums per side, comment reference
  order_comments  system narrative + user note
  costs           operating expenses for reports

INVARIANT ENFORCEMENT:
  idx_unique_balancing is a partial unique index: at most one invoice
  numbered "Negatywna" per party can be inserted. BalancingInvoice still
  counts rows and surfaces an invariant error if corrupt data predates
  the index.

FIFO ORDER:
  Open invoices are returned ordered by (issued_on, rowid). The rowid
  tiebreak keeps same-day invoices in insertion order; settlement outcome
  depends on this ordering.

AMOUNT STORAGE:
  Monetary amounts are stored as fixed-scale TEXT and parsed back into
  decimals; SQL never does monetary arithmetic. The one CAST in the open
  invoice query is a sign filter only.

WAL MODE:
  The database is opened with WAL for better read concurrency and crash
  recovery, and a sync.RWMutex serializes writers in-process.

SEE ALSO:
  - settlement/ledger.go: interface contracts
  - settlement/store/memory.go: in-memory equivalent for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/trade-settlement/settlement"
	"github.com/warp/trade-settlement/trade"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every pooled connection to ":memory:" is a distinct empty database;
	// pin the pool to one connection so they all see the same data.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS parties (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('buyer', 'supplier')),
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		party_id TEXT NOT NULL REFERENCES parties(id),
		number TEXT NOT NULL,
		value TEXT NOT NULL,
		amount_to_use TEXT NOT NULL,
		used INTEGER NOT NULL DEFAULT 0,
		issued_on TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_invoices_party_issued
		ON invoices(party_id, issued_on);

	-- At most one balancing invoice per party, enforced at the schema level.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_balancing
		ON invoices(party_id)
		WHERE number = 'Negatywna';

	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS prices (
		party_id TEXT NOT NULL REFERENCES parties(id),
		product_id TEXT NOT NULL REFERENCES products(id),
		value TEXT NOT NULL,
		PRIMARY KEY (party_id, product_id)
	);

	CREATE TABLE IF NOT EXISTS order_comments (
		id TEXT PRIMARY KEY,
		system_text TEXT NOT NULL DEFAULT '',
		user_text TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		buyer_id TEXT NOT NULL REFERENCES parties(id),
		supplier_id TEXT NOT NULL REFERENCES parties(id),
		product_id TEXT NOT NULL,
		quantity TEXT NOT NULL,
		typed_price TEXT NOT NULL DEFAULT '0.00',
		buyer_sum TEXT NOT NULL DEFAULT '0.00',
		supplier_sum TEXT NOT NULL DEFAULT '0.00',
		comment_id TEXT NOT NULL REFERENCES order_comments(id),
		placed_on TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_orders_placed ON orders(placed_on);
	CREATE INDEX IF NOT EXISTS idx_orders_buyer ON orders(buyer_id);
	CREATE INDEX IF NOT EXISTS idx_orders_supplier ON orders(supplier_id);

	CREATE TABLE IF NOT EXISTS costs (
		id TEXT PRIMARY KEY,
		description TEXT NOT NULL DEFAULT '',
		value TEXT NOT NULL,
		incurred_on TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_costs_incurred ON costs(incurred_on);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

const timeFormat = time.RFC3339

func scanMoney(s string) (settlement.Money, error) {
	return settlement.ParseMoney(s)
}

func scanTime(s string) (time.Time, error) {
	return time.Parse(timeFormat, s)
}

// =============================================================================
// settlement.InvoiceStore
// =============================================================================

const invoiceColumns = "id, party_id, number, value, amount_to_use, used, issued_on"

func (s *Store) scanInvoice(row interface{ Scan(...any) error }) (*settlement.Invoice, error) {
	var (
		inv                   settlement.Invoice
		value, amount, issued string
		used                  int
	)
	if err := row.Scan(&inv.ID, &inv.PartyID, &inv.Number, &value, &amount, &used, &issued); err != nil {
		return nil, err
	}

	var err error
	if inv.Value, err = scanMoney(value); err != nil {
		return nil, err
	}
	if inv.AmountToUse, err = scanMoney(amount); err != nil {
		return nil, err
	}
	if inv.IssuedOn, err = scanTime(issued); err != nil {
		return nil, err
	}
	inv.Used = used != 0
	return &inv, nil
}

// OpenInvoices returns the party's invoices with a positive remaining
// amount, oldest first. The CAST filters sign only; amounts are parsed
// back into decimals for arithmetic.
func (s *Store) OpenInvoices(ctx context.Context, partyID settlement.PartyID) ([]*settlement.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE party_id = ? AND used = 0 AND CAST(amount_to_use AS REAL) > 0
		ORDER BY issued_on, rowid`, partyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []*settlement.Invoice
	for rows.Next() {
		inv, err := s.scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// BalancingInvoice returns the party's balancing invoice, nil when none
// exists, and an invariant error when more than one is found.
func (s *Store) BalancingInvoice(ctx context.Context, partyID settlement.PartyID) (*settlement.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE party_id = ? AND number = ?
		ORDER BY issued_on, rowid`, partyID, settlement.BalancingInvoiceNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var found []*settlement.Invoice
	for rows.Next() {
		inv, err := s.scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return found[0], nil
	default:
		return nil, &settlement.InvariantViolationError{PartyID: partyID, Count: len(found)}
	}
}

// SaveInvoice inserts or updates an invoice. Each call is a single
// durable statement.
func (s *Store) SaveInvoice(ctx context.Context, inv *settlement.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	used := 0
	if inv.Used {
		used = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invoices (id, party_id, number, value, amount_to_use, used, issued_on)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			value = excluded.value,
			amount_to_use = excluded.amount_to_use,
			used = excluded.used`,
		inv.ID, inv.PartyID, inv.Number, inv.Value.String(), inv.AmountToUse.String(), used,
		inv.IssuedOn.UTC().Format(timeFormat))
	return err
}

// PartyInvoices returns all of the party's invoices, consumed ones
// included, oldest first.
func (s *Store) PartyInvoices(ctx context.Context, partyID settlement.PartyID) ([]*settlement.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE party_id = ?
		ORDER BY issued_on, rowid`, partyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []*settlement.Invoice
	for rows.Next() {
		inv, err := s.scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// =============================================================================
// settlement.CommentStore
// =============================================================================

func (s *Store) SaveComment(ctx context.Context, c *settlement.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO order_comments (id, system_text, user_text)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			system_text = excluded.system_text,
			user_text = excluded.user_text`,
		c.ID, c.SystemText, c.UserText)
	return err
}

func (s *Store) comment(ctx context.Context, id string) (*settlement.Comment, error) {
	c := &settlement.Comment{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT system_text, user_text FROM order_comments WHERE id = ?`, id).
		Scan(&c.SystemText, &c.UserText)
	if errors.Is(err, sql.ErrNoRows) {
		// Order saved before its comment was ever written.
		return c, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// =============================================================================
// trade.PartyStore
// =============================================================================

func (s *Store) SaveParty(ctx context.Context, p *trade.Party) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO parties (id, name, role, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		p.ID, p.Name, p.Role, p.CreatedAt.UTC().Format(timeFormat))
	return err
}

func (s *Store) Party(ctx context.Context, id settlement.PartyID) (*trade.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		p       trade.Party
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, role, created_at FROM parties WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Role, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("party %s: %w", id, settlement.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if p.CreatedAt, err = scanTime(created); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListParties(ctx context.Context, role settlement.Role) ([]*trade.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, name, role, created_at FROM parties ORDER BY name`
	args := []any{}
	if role != "" {
		query = `SELECT id, name, role, created_at FROM parties WHERE role = ? ORDER BY name`
		args = append(args, role)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parties []*trade.Party
	for rows.Next() {
		var (
			p       trade.Party
			created string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Role, &created); err != nil {
			return nil, err
		}
		if p.CreatedAt, err = scanTime(created); err != nil {
			return nil, err
		}
		parties = append(parties, &p)
	}
	return parties, rows.Err()
}

// =============================================================================
// trade.ProductStore
// =============================================================================

func (s *Store) SaveProduct(ctx context.Context, p *trade.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		p.ID, p.Name)
	return err
}

func (s *Store) ListProducts(ctx context.Context) ([]*trade.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []*trade.Product
	for rows.Next() {
		var p trade.Product
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		products = append(products, &p)
	}
	return products, rows.Err()
}

// =============================================================================
// trade.PriceStore
// =============================================================================

func (s *Store) SavePrice(ctx context.Context, p *trade.Price) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prices (party_id, product_id, value) VALUES (?, ?, ?)
		ON CONFLICT(party_id, product_id) DO UPDATE SET value = excluded.value`,
		p.PartyID, p.ProductID, p.Value.String())
	return err
}

func (s *Store) Price(ctx context.Context, partyID settlement.PartyID, productID string) (settlement.Money, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM prices WHERE party_id = ? AND product_id = ?`, partyID, productID).
		Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return settlement.Zero(), false, nil
	}
	if err != nil {
		return settlement.Zero(), false, err
	}
	m, err := scanMoney(value)
	if err != nil {
		return settlement.Zero(), false, err
	}
	return m, true, nil
}

// =============================================================================
// trade.OrderStore
// =============================================================================

const orderColumns = "id, buyer_id, supplier_id, product_id, quantity, typed_price, buyer_sum, supplier_sum, comment_id, placed_on"

// scanOrder reads one order row. The comment is not fetched here: the
// caller attaches it once its own cursor is closed, so no query ever
// nests inside another.
func (s *Store) scanOrder(row interface{ Scan(...any) error }) (*trade.Order, string, error) {
	var (
		o                                      trade.Order
		quantity, typed, buyerSum, supplierSum string
		commentID, placed                      string
	)
	err := row.Scan(&o.ID, &o.BuyerID, &o.SupplierID, &o.ProductID,
		&quantity, &typed, &buyerSum, &supplierSum, &commentID, &placed)
	if err != nil {
		return nil, "", err
	}

	if o.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return nil, "", err
	}
	if o.TypedPrice, err = scanMoney(typed); err != nil {
		return nil, "", err
	}
	if o.BuyerSum, err = scanMoney(buyerSum); err != nil {
		return nil, "", err
	}
	if o.SupplierSum, err = scanMoney(supplierSum); err != nil {
		return nil, "", err
	}
	if o.PlacedOn, err = scanTime(placed); err != nil {
		return nil, "", err
	}
	return &o, commentID, nil
}

func (s *Store) SaveOrder(ctx context.Context, o *trade.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The comment row must exist before the order can reference it.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO order_comments (id, system_text, user_text)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			system_text = excluded.system_text,
			user_text = excluded.user_text`,
		o.Comment.ID, o.Comment.SystemText, o.Comment.UserText)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (id, buyer_id, supplier_id, product_id, quantity,
			typed_price, buyer_sum, supplier_sum, comment_id, placed_on)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			quantity = excluded.quantity,
			typed_price = excluded.typed_price,
			buyer_sum = excluded.buyer_sum,
			supplier_sum = excluded.supplier_sum`,
		o.ID, o.BuyerID, o.SupplierID, o.ProductID, o.Quantity.String(),
		o.TypedPrice.String(), o.BuyerSum.String(), o.SupplierSum.String(),
		o.Comment.ID, o.PlacedOn.UTC().Format(timeFormat))
	return err
}

func (s *Store) Order(ctx context.Context, id string) (*trade.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	o, commentID, err := s.scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", id, settlement.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	comment, err := s.comment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	o.Comment = *comment
	return o, nil
}

func (s *Store) OrdersInRange(ctx context.Context, from, to time.Time) ([]*trade.Order, error) {
	return s.queryOrders(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE placed_on >= ? AND placed_on < ?
		ORDER BY placed_on, rowid`,
		from.UTC().Format(timeFormat), to.UTC().Format(timeFormat))
}

func (s *Store) PartyOrders(ctx context.Context, partyID settlement.PartyID, from, to time.Time) ([]*trade.Order, error) {
	return s.queryOrders(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE (buyer_id = ? OR supplier_id = ?) AND placed_on >= ? AND placed_on < ?
		ORDER BY placed_on, rowid`,
		partyID, partyID, from.UTC().Format(timeFormat), to.UTC().Format(timeFormat))
}

func (s *Store) queryOrders(ctx context.Context, query string, args ...any) ([]*trade.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		orders     []*trade.Order
		commentIDs []string
	)
	for rows.Next() {
		o, commentID, err := s.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
		commentIDs = append(commentIDs, commentID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	// Fetched after the cursor is closed: a nested query would run on a
	// second pooled connection, which in :memory: mode is a different
	// database.
	for i, o := range orders {
		comment, err := s.comment(ctx, commentIDs[i])
		if err != nil {
			return nil, err
		}
		o.Comment = *comment
	}
	return orders, nil
}

// =============================================================================
// trade.CostStore
// =============================================================================

func (s *Store) SaveCost(ctx context.Context, c *trade.Cost) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO costs (id, description, value, incurred_on)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			description = excluded.description,
			value = excluded.value`,
		c.ID, c.Description, c.Value.String(), c.IncurredOn.UTC().Format(timeFormat))
	return err
}

func (s *Store) CostsInRange(ctx context.Context, from, to time.Time) ([]*trade.Cost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, description, value, incurred_on FROM costs
		WHERE incurred_on >= ? AND incurred_on < ?
		ORDER BY incurred_on, rowid`,
		from.UTC().Format(timeFormat), to.UTC().Format(timeFormat))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var costs []*trade.Cost
	for rows.Next() {
		var (
			c               trade.Cost
			value, incurred string
		)
		if err := rows.Scan(&c.ID, &c.Description, &value, &incurred); err != nil {
			return nil, err
		}
		if c.Value, err = scanMoney(value); err != nil {
			return nil, err
		}
		if c.IncurredOn, err = scanTime(incurred); err != nil {
			return nil, err
		}
		costs = append(costs, &c)
	}
	return costs, rows.Err()
}
