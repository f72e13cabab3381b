/*
Package sqlite provides a SQLite-backed implementation of ledger.TxStore.

PURPOSE:
  Durable storage for the accounting core: chart of accounts, journal,
  inventory lots, products and the business records the processors keep.

APPEND-ONLY ENFORCEMENT:
  - journal_entries and journal_entry_lines are only ever INSERTed
  - inventory_lots only has quantity_remaining UPDATEd, guarded by a
    CHECK constraint keeping it within [0, quantity_purchased]
  - accounts are never DELETEd, only deactivated

KEY TABLES:
  accounts:            Chart of accounts with running balances
  journal_entries:     Entry headers with totals
  journal_entry_lines: Ordered lines, (entry_id, position) primary key
  inventory_lots:      FIFO lots per product
  products:            On-hand quantity and current cost price
  sales, purchases:    Business records with their items
  cash_transactions:   Payments, expenses, investments, write-offs

NUMBERS AND TIMES:
  Money is stored as TEXT decimal strings (shopspring/decimal implements
  sql.Scanner and driver.Valuer). Times are stored as fixed-width UTC
  strings so lexical order equals chronological order.

CONCURRENCY:
  Single writer. The pool is capped at one connection and a RWMutex
  serialises access. WithTx holds the write lock for the whole unit of
  work and hands fn a session bound to the *sql.Tx that does not lock
  again, so reads inside a transaction see its own writes.

USAGE:
  store, err := sqlite.New("./data/pos.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  books := ledger.NewBooks(store)

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/pos-engine/ledger"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z"

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rwLocker interface {
	Lock()
	Unlock()
	RLock()
	RUnlock()
}

type nopLock struct{}

func (nopLock) Lock()    {}
func (nopLock) Unlock()  {}
func (nopLock) RLock()   {}
func (nopLock) RUnlock() {}

// Store implements ledger.TxStore using SQLite.
type Store struct {
	*session
	db *sql.DB
	mu sync.RWMutex
}

// session runs queries against either the pool or an open transaction.
type session struct {
	q    querier
	lock rwLocker
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases alive across calls and
	// makes the single-writer rule physical.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	store.session = &session{q: db, lock: &store.mu}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&session{q: sqlTx, lock: nopLock{}}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_code TEXT NOT NULL UNIQUE,
		account_name TEXT NOT NULL UNIQUE,
		account_type TEXT NOT NULL,
		balance TEXT NOT NULL DEFAULT '0',
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	-- Journal (append-only)
	CREATE TABLE IF NOT EXISTS journal_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		journal_type TEXT NOT NULL,
		reference_no TEXT,
		description TEXT,
		date TEXT NOT NULL,
		total_debit TEXT NOT NULL,
		total_credit TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_journal_entries_date
		ON journal_entries(date, id);
	CREATE INDEX IF NOT EXISTS idx_journal_entries_type
		ON journal_entries(journal_type);

	CREATE TABLE IF NOT EXISTS journal_entry_lines (
		entry_id INTEGER NOT NULL REFERENCES journal_entries(id),
		position INTEGER NOT NULL,
		account_name TEXT NOT NULL,
		debit_amount TEXT NOT NULL,
		credit_amount TEXT NOT NULL,
		description TEXT,
		PRIMARY KEY (entry_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_journal_lines_account
		ON journal_entry_lines(account_name);

	-- Products and parties
	CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		sku TEXT,
		cost_price TEXT NOT NULL DEFAULT '0',
		selling_price TEXT NOT NULL DEFAULT '0',
		quantity INTEGER NOT NULL DEFAULT 0,
		reorder_level INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS customers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		credit_limit TEXT NOT NULL DEFAULT '0',
		balance TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS suppliers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		balance TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	-- Purchases
	CREATE TABLE IF NOT EXISTS purchases (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		supplier_id INTEGER REFERENCES suppliers(id),
		total_amount TEXT NOT NULL,
		paid_amount TEXT NOT NULL DEFAULT '0',
		payment_type TEXT NOT NULL,
		reference_no TEXT,
		date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS purchase_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		purchase_id INTEGER NOT NULL REFERENCES purchases(id),
		product_id INTEGER NOT NULL REFERENCES products(id),
		quantity INTEGER NOT NULL,
		unit_cost TEXT NOT NULL
	);

	-- Inventory lots (FIFO)
	CREATE TABLE IF NOT EXISTS inventory_lots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id INTEGER NOT NULL REFERENCES products(id),
		purchase_id INTEGER REFERENCES purchases(id),
		source TEXT NOT NULL,
		quantity_purchased INTEGER NOT NULL,
		quantity_remaining INTEGER NOT NULL,
		cost_per_unit TEXT NOT NULL,
		date_acquired TEXT NOT NULL,
		created_at TEXT NOT NULL,
		CHECK (quantity_remaining >= 0 AND quantity_remaining <= quantity_purchased)
	);

	-- Hot path: FIFO walk per product
	CREATE INDEX IF NOT EXISTS idx_lots_product_fifo
		ON inventory_lots(product_id, date_acquired, id);
	CREATE INDEX IF NOT EXISTS idx_lots_purchase
		ON inventory_lots(purchase_id) WHERE purchase_id IS NOT NULL;

	-- Sales
	CREATE TABLE IF NOT EXISTS sales (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_id INTEGER REFERENCES customers(id),
		subtotal TEXT NOT NULL,
		discount TEXT NOT NULL DEFAULT '0',
		tax TEXT NOT NULL DEFAULT '0',
		total_amount TEXT NOT NULL,
		paid_amount TEXT NOT NULL DEFAULT '0',
		cost_amount TEXT NOT NULL DEFAULT '0',
		payment_type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'completed',
		reference_no TEXT,
		date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sales_outstanding
		ON sales(payment_type, status);

	CREATE TABLE IF NOT EXISTS sale_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sale_id INTEGER NOT NULL REFERENCES sales(id),
		product_id INTEGER NOT NULL REFERENCES products(id),
		quantity INTEGER NOT NULL,
		unit_price TEXT NOT NULL,
		unit_cost TEXT NOT NULL DEFAULT '0'
	);

	-- Create-only facts
	CREATE TABLE IF NOT EXISTS inventory_adjustments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id INTEGER NOT NULL REFERENCES products(id),
		direction TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		value TEXT NOT NULL,
		reason TEXT,
		reference_no TEXT,
		date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS purchase_returns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		purchase_id INTEGER REFERENCES purchases(id),
		product_id INTEGER NOT NULL REFERENCES products(id),
		quantity INTEGER NOT NULL,
		unit_cost TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		reason TEXT,
		reference_no TEXT,
		date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sales_returns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sale_id INTEGER REFERENCES sales(id),
		product_id INTEGER NOT NULL REFERENCES products(id),
		quantity INTEGER NOT NULL,
		unit_price TEXT NOT NULL,
		unit_cost TEXT NOT NULL,
		refund_amount TEXT NOT NULL,
		reason TEXT,
		reference_no TEXT,
		date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sales_returns_sale
		ON sales_returns(sale_id) WHERE sale_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS cash_transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		payment_type TEXT,
		category TEXT,
		customer_id INTEGER REFERENCES customers(id),
		supplier_id INTEGER REFERENCES suppliers(id),
		sale_id INTEGER REFERENCES sales(id),
		purchase_id INTEGER REFERENCES purchases(id),
		description TEXT,
		reference_no TEXT,
		date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (s *session) CreateAccount(ctx context.Context, a ledger.Account) (int64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO accounts (account_code, account_name, account_type, balance, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.Code, a.Name, string(a.Type), a.Balance, a.Active, formatTime(a.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return 0, fmt.Errorf("%w: %s %s", ledger.ErrDuplicateAccount, a.Code, a.Name)
		}
		return 0, fmt.Errorf("failed to insert account: %w", err)
	}
	return res.LastInsertId()
}

const accountColumns = `id, account_code, account_name, account_type, balance, is_active, created_at`

func (s *session) GetAccount(ctx context.Context, name string) (*ledger.Account, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	row := s.q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE account_name = ?`, name)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", name, err)
	}
	return &a, nil
}

func (s *session) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	rows, err := s.q.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY account_code`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var out []ledger.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *session) SetAccountBalance(ctx context.Context, name string, balance decimal.Decimal) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return expectOne(s.q.ExecContext(ctx, `UPDATE accounts SET balance = ? WHERE account_name = ?`, balance, name))(ledger.ErrAccountNotFound)
}

func (s *session) SetAccountActive(ctx context.Context, name string, active bool) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return expectOne(s.q.ExecContext(ctx, `UPDATE accounts SET is_active = ? WHERE account_name = ?`, active, name))(ledger.ErrAccountNotFound)
}

func scanAccount(r scanner) (ledger.Account, error) {
	var a ledger.Account
	var typ, created string
	if err := r.Scan(&a.ID, &a.Code, &a.Name, &typ, &a.Balance, &a.Active, &created); err != nil {
		return a, err
	}
	a.Type = ledger.AccountType(typ)
	a.CreatedAt = parseTime(created)
	return a, nil
}

// =============================================================================
// JOURNAL
// =============================================================================

func (s *session) InsertEntry(ctx context.Context, e ledger.JournalEntry) (int64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO journal_entries (journal_type, reference_no, description, date, total_debit, total_credit, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(e.Type), nullString(e.Reference), nullString(e.Description),
		formatTime(e.Date), e.TotalDebit, e.TotalCredit, formatTime(e.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert journal entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for i, l := range e.Lines {
		pos := l.Position
		if pos == 0 {
			pos = i + 1
		}
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO journal_entry_lines (entry_id, position, account_name, debit_amount, credit_amount, description)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, pos, l.Account, l.Debit, l.Credit, nullString(l.Description),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert journal line %d: %w", pos, err)
		}
	}
	return id, nil
}

const entryColumns = `id, journal_type, reference_no, description, date, total_debit, total_credit, created_at`

func (s *session) GetEntry(ctx context.Context, id int64) (*ledger.JournalEntry, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	e, err := scanEntry(s.q.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ledger.ErrEntryNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	lines, err := s.queryLines(ctx, postedLineQuery+` WHERE l.entry_id = ? ORDER BY l.position`, id)
	if err != nil {
		return nil, err
	}
	e.Lines = toJournalLines(lines)
	return &e, nil
}

func (s *session) ListEntries(ctx context.Context, f ledger.EntryFilter) ([]ledger.JournalEntry, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	var where []string
	var args []any
	if f.Type != "" {
		where = append(where, "journal_type = ?")
		args = append(args, string(f.Type))
	}
	if !f.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, formatTime(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, formatTime(f.To))
	}
	tail := ""
	if len(where) > 0 {
		tail += " WHERE " + strings.Join(where, " AND ")
	}
	tail += " ORDER BY date, id"
	if f.Limit > 0 {
		tail += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.q.QueryContext(ctx, `SELECT `+entryColumns+` FROM journal_entries`+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal entries: %w", err)
	}
	var entries []ledger.JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		entries = append(entries, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return entries, nil
	}

	// Lines are loaded after the header cursor is closed; the pool has a
	// single connection.
	all, err := s.queryLines(ctx,
		postedLineQuery+` WHERE l.entry_id IN (SELECT id FROM journal_entries`+tail+`)
		ORDER BY l.entry_id, l.position`, args...)
	if err != nil {
		return nil, err
	}
	byEntry := make(map[int64][]ledger.PostedLine)
	for _, l := range all {
		byEntry[l.EntryID] = append(byEntry[l.EntryID], l)
	}
	for i := range entries {
		entries[i].Lines = toJournalLines(byEntry[entries[i].ID])
	}
	return entries, nil
}

func (s *session) CountEntries(ctx context.Context) (int, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	var n int
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM journal_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count journal entries: %w", err)
	}
	return n, nil
}

const postedLineQuery = `
	SELECT e.id, l.position, e.journal_type, e.reference_no, e.date,
	       l.account_name, l.debit_amount, l.credit_amount, l.description
	FROM journal_entry_lines l JOIN journal_entries e ON e.id = l.entry_id`

func (s *session) LinesForAccount(ctx context.Context, account string) ([]ledger.PostedLine, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.queryLines(ctx, postedLineQuery+` WHERE l.account_name = ? ORDER BY e.date, e.id, l.position`, account)
}

func (s *session) AllLines(ctx context.Context) ([]ledger.PostedLine, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.queryLines(ctx, postedLineQuery+` ORDER BY e.date, e.id, l.position`)
}

func (s *session) queryLines(ctx context.Context, query string, args ...any) ([]ledger.PostedLine, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal lines: %w", err)
	}
	defer rows.Close()

	var out []ledger.PostedLine
	for rows.Next() {
		var l ledger.PostedLine
		var typ, date string
		var ref, desc sql.NullString
		if err := rows.Scan(&l.EntryID, &l.Position, &typ, &ref, &date,
			&l.Account, &l.Debit, &l.Credit, &desc); err != nil {
			return nil, err
		}
		l.Type = ledger.JournalType(typ)
		l.Reference = ref.String
		l.Date = parseTime(date)
		l.Description = desc.String
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanEntry(r scanner) (ledger.JournalEntry, error) {
	var e ledger.JournalEntry
	var typ, date, created string
	var ref, desc sql.NullString
	if err := r.Scan(&e.ID, &typ, &ref, &desc, &date, &e.TotalDebit, &e.TotalCredit, &created); err != nil {
		return e, err
	}
	e.Type = ledger.JournalType(typ)
	e.Reference = ref.String
	e.Description = desc.String
	e.Date = parseTime(date)
	e.CreatedAt = parseTime(created)
	return e, nil
}

func toJournalLines(posted []ledger.PostedLine) []ledger.JournalLine {
	lines := make([]ledger.JournalLine, 0, len(posted))
	for _, p := range posted {
		lines = append(lines, ledger.JournalLine{
			EntryID:     p.EntryID,
			Position:    p.Position,
			Account:     p.Account,
			Debit:       p.Debit,
			Credit:      p.Credit,
			Description: p.Description,
		})
	}
	return lines
}

// =============================================================================
// PRODUCTS & LOTS
// =============================================================================

func (s *session) CreateProduct(ctx context.Context, p ledger.Product) (int64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO products (name, sku, cost_price, selling_price, quantity, reorder_level, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Name, nullString(p.SKU), p.CostPrice, p.SellingPrice, p.Quantity, p.ReorderLevel, formatTime(p.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert product: %w", err)
	}
	return res.LastInsertId()
}

const productColumns = `id, name, sku, cost_price, selling_price, quantity, reorder_level, created_at`

func (s *session) GetProduct(ctx context.Context, id int64) (*ledger.Product, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	p, err := scanProduct(s.q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ledger.ErrProductNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *session) ListProducts(ctx context.Context) ([]ledger.Product, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	rows, err := s.q.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var out []ledger.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *session) SetProductQuantity(ctx context.Context, id int64, quantity int64) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return expectOne(s.q.ExecContext(ctx, `UPDATE products SET quantity = ? WHERE id = ?`, quantity, id))(ledger.ErrProductNotFound)
}

func (s *session) SetProductCostPrice(ctx context.Context, id int64, cost decimal.Decimal) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return expectOne(s.q.ExecContext(ctx, `UPDATE products SET cost_price = ? WHERE id = ?`, cost, id))(ledger.ErrProductNotFound)
}

func scanProduct(r scanner) (ledger.Product, error) {
	var p ledger.Product
	var sku sql.NullString
	var created string
	if err := r.Scan(&p.ID, &p.Name, &sku, &p.CostPrice, &p.SellingPrice, &p.Quantity, &p.ReorderLevel, &created); err != nil {
		return p, err
	}
	p.SKU = sku.String
	p.CreatedAt = parseTime(created)
	return p, nil
}

func (s *session) InsertLot(ctx context.Context, l ledger.Lot) (int64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO inventory_lots (product_id, purchase_id, source, quantity_purchased, quantity_remaining,
		                            cost_per_unit, date_acquired, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ProductID, nullInt(l.PurchaseID), string(l.Source), l.QuantityPurchased, l.QuantityRemaining,
		l.UnitCost, formatTime(l.AcquiredAt), formatTime(l.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert lot: %w", err)
	}
	return res.LastInsertId()
}

const lotColumns = `id, product_id, purchase_id, source, quantity_purchased, quantity_remaining,
	cost_per_unit, date_acquired, created_at`

func (s *session) GetLot(ctx context.Context, id int64) (*ledger.Lot, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	l, err := scanLot(s.q.QueryRowContext(ctx, `SELECT `+lotColumns+` FROM inventory_lots WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ledger.ErrLotNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *session) OpenLots(ctx context.Context, productID int64) ([]ledger.Lot, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.queryLots(ctx, `SELECT `+lotColumns+` FROM inventory_lots
		WHERE product_id = ? AND quantity_remaining > 0
		ORDER BY date_acquired ASC, id ASC`, productID)
}

func (s *session) OpenLotsByPurchase(ctx context.Context, purchaseID int64) ([]ledger.Lot, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.queryLots(ctx, `SELECT `+lotColumns+` FROM inventory_lots
		WHERE purchase_id = ? AND quantity_remaining > 0
		ORDER BY date_acquired ASC, id ASC`, purchaseID)
}

func (s *session) AllOpenLots(ctx context.Context) ([]ledger.Lot, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.queryLots(ctx, `SELECT `+lotColumns+` FROM inventory_lots
		WHERE quantity_remaining > 0
		ORDER BY product_id, date_acquired ASC, id ASC`)
}

func (s *session) SetLotRemaining(ctx context.Context, lotID int64, remaining int64) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	res, err := s.q.ExecContext(ctx, `UPDATE inventory_lots SET quantity_remaining = ? WHERE id = ?`, remaining, lotID)
	if err != nil {
		if isCheckConstraintError(err) {
			return fmt.Errorf("%w: lot %d remaining %d", ledger.ErrLotOverdrawn, lotID, remaining)
		}
		return fmt.Errorf("failed to update lot: %w", err)
	}
	return expectOne(res, nil)(ledger.ErrLotNotFound)
}

func (s *session) queryLots(ctx context.Context, query string, args ...any) ([]ledger.Lot, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lots: %w", err)
	}
	defer rows.Close()

	var out []ledger.Lot
	for rows.Next() {
		l, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanLot(r scanner) (ledger.Lot, error) {
	var l ledger.Lot
	var purchaseID sql.NullInt64
	var source, acquired, created string
	if err := r.Scan(&l.ID, &l.ProductID, &purchaseID, &source, &l.QuantityPurchased, &l.QuantityRemaining,
		&l.UnitCost, &acquired, &created); err != nil {
		return l, err
	}
	l.PurchaseID = intPtr(purchaseID)
	l.Source = ledger.LotSource(source)
	l.AcquiredAt = parseTime(acquired)
	l.CreatedAt = parseTime(created)
	return l, nil
}

// =============================================================================
// CUSTOMERS & SUPPLIERS
// =============================================================================

func (s *session) CreateCustomer(ctx context.Context, c ledger.Customer) (int64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO customers (name, email, phone, credit_limit, balance, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.Name, nullString(c.Email), nullString(c.Phone), c.CreditLimit, c.Balance, formatTime(c.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert customer: %w", err)
	}
	return res.LastInsertId()
}

func (s *session) GetCustomer(ctx context.Context, id int64) (*ledger.Customer, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	var c ledger.Customer
	var email, phone sql.NullString
	var created string
	err := s.q.QueryRowContext(ctx, `
		SELECT id, name, email, phone, credit_limit, balance, created_at FROM customers WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &email, &phone, &c.CreditLimit, &c.Balance, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ledger.ErrCustomerNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	c.Email = email.String
	c.Phone = phone.String
	c.CreatedAt = parseTime(created)
	return &c, nil
}

func (s *session) SetCustomerBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return expectOne(s.q.ExecContext(ctx, `UPDATE customers SET balance = ? WHERE id = ?`, balance, id))(ledger.ErrCustomerNotFound)
}

func (s *session) CreateSupplier(ctx context.Context, sup ledger.Supplier) (int64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO suppliers (name, email, phone, balance, created_at) VALUES (?, ?, ?, ?, ?)`,
		sup.Name, nullString(sup.Email), nullString(sup.Phone), sup.Balance, formatTime(sup.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert supplier: %w", err)
	}
	return res.LastInsertId()
}

func (s *session) GetSupplier(ctx context.Context, id int64) (*ledger.Supplier, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	var sup ledger.Supplier
	var email, phone sql.NullString
	var created string
	err := s.q.QueryRowContext(ctx, `
		SELECT id, name, email, phone, balance, created_at FROM suppliers WHERE id = ?`, id,
	).Scan(&sup.ID, &sup.Name, &email, &phone, &sup.Balance, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ledger.ErrSupplierNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	sup.Email = email.String
	sup.Phone = phone.String
	sup.CreatedAt = parseTime(created)
	return &sup, nil
}

func (s *session) SetSupplierBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return expectOne(s.q.ExecContext(ctx, `UPDATE suppliers SET balance = ? WHERE id = ?`, balance, id))(ledger.ErrSupplierNotFound)
}

// =============================================================================
// SALES
// =============================================================================

func (s *session) InsertSale(ctx context.Context, sale ledger.Sale) (int64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO sales (customer_id, subtotal, discount, tax, total_amount, paid_amount, cost_amount,
		                   payment_type, status, reference_no, date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullInt(sale.CustomerID), sale.Subtotal, sale.Discount, sale.Tax, sale.Total, sale.Paid, sale.Cost,
		string(sale.PaymentType), string(sale.Status), nullString(sale.Reference),
		formatTime(sale.Date), formatTime(sale.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert sale: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for _, it := range sale.Items {
		if _, err := s.q.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, quantity, unit_price, unit_cost) VALUES (?, ?, ?, ?, ?)`,
			id, it.ProductID, it.Quantity, it.UnitPrice, it.UnitCost,
		); err != nil {
			return 0, fmt.Errorf("failed to insert sale item: %w", err)
		}
	}
	return id, nil
}

const saleColumns = `id, customer_id, subtotal, discount, tax, total_amount, paid_amount, cost_amount,
	payment_type, status, reference_no, date, created_at`

func (s *session) GetSale(ctx context.Context, id int64) (*ledger.Sale, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	sale, err := scanSale(s.q.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ledger.ErrSaleNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	items, err := s.saleItems(ctx, id)
	if err != nil {
		return nil, err
	}
	sale.Items = items
	return &sale, nil
}

func (s *session) ListSales(ctx context.Context, f ledger.SaleFilter) ([]ledger.Sale, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	var where []string
	var args []any
	if f.CustomerID != nil {
		where = append(where, "customer_id = ?")
		args = append(args, *f.CustomerID)
	}
	if f.PaymentType != "" {
		where = append(where, "payment_type = ?")
		args = append(args, string(f.PaymentType))
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	query := `SELECT ` + saleColumns + ` FROM sales`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	var out []ledger.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, sale)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		items, err := s.saleItems(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

func (s *session) UpdateSale(ctx context.Context, sale ledger.Sale) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return expectOne(s.q.ExecContext(ctx, `
		UPDATE sales SET status = ?, paid_amount = ?, cost_amount = ?, reference_no = ? WHERE id = ?`,
		string(sale.Status), sale.Paid, sale.Cost, nullString(sale.Reference), sale.ID,
	))(ledger.ErrSaleNotFound)
}

func (s *session) saleItems(ctx context.Context, saleID int64) ([]ledger.SaleItem, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT product_id, quantity, unit_price, unit_cost FROM sale_items WHERE sale_id = ? ORDER BY id`, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sale items: %w", err)
	}
	defer rows.Close()

	var out []ledger.SaleItem
	for rows.Next() {
		var it ledger.SaleItem
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.UnitPrice, &it.UnitCost); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func scanSale(r scanner) (ledger.Sale, error) {
	var sale ledger.Sale
	var customerID sql.NullInt64
	var payment, status, date, created string
	var ref sql.NullString
	if err := r.Scan(&sale.ID, &customerID, &sale.Subtotal, &sale.Discount, &sale.Tax, &sale.Total,
		&sale.Paid, &sale.Cost, &payment, &status, &ref, &date, &created); err != nil {
		return sale, err
	}
	sale.CustomerID = intPtr(customerID)
	sale.PaymentType = ledger.PaymentType(payment)
	sale.Status = ledger.SaleStatus(status)
	sale.Reference = ref.String
	sale.Date = parseTime(date)
	sale.CreatedAt = parseTime(created)
	return sale, nil
}

// =============================================================================
// PURCHASES
// =============================================================================

func (s *session) InsertPurchase(ctx context.Context, p ledger.Purchase) (int64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO purchases (supplier_id, total_amount, paid_amount, payment_type, reference_no, date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nullInt(p.SupplierID), p.Total, p.Paid, string(p.PaymentType), nullString(p.Reference),
		formatTime(p.Date), formatTime(p.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert purchase: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for _, it := range p.Items {
		if _, err := s.q.ExecContext(ctx, `
			INSERT INTO purchase_items (purchase_id, product_id, quantity, unit_cost) VALUES (?, ?, ?, ?)`,
			id, it.ProductID, it.Quantity, it.UnitCost,
		); err != nil {
			return 0, fmt.Errorf("failed to insert purchase item: %w", err)
		}
	}
	return id, nil
}

const purchaseColumns = `id, supplier_id, total_amount, paid_amount, payment_type, reference_no, date, created_at`

func (s *session) GetPurchase(ctx context.Context, id int64) (*ledger.Purchase, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	p, err := scanPurchase(s.q.QueryRowContext(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ledger.ErrPurchaseNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	items, err := s.purchaseItems(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Items = items
	return &p, nil
}

func (s *session) ListPurchases(ctx context.Context, f ledger.PurchaseFilter) ([]ledger.Purchase, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	var where []string
	var args []any
	if f.SupplierID != nil {
		where = append(where, "supplier_id = ?")
		args = append(args, *f.SupplierID)
	}
	if f.PaymentType != "" {
		where = append(where, "payment_type = ?")
		args = append(args, string(f.PaymentType))
	}
	query := `SELECT ` + purchaseColumns + ` FROM purchases`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases: %w", err)
	}
	var out []ledger.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		items, err := s.purchaseItems(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

func (s *session) SetPurchasePaid(ctx context.Context, id int64, paid decimal.Decimal) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return expectOne(s.q.ExecContext(ctx, `UPDATE purchases SET paid_amount = ? WHERE id = ?`, paid, id))(ledger.ErrPurchaseNotFound)
}

func (s *session) purchaseItems(ctx context.Context, purchaseID int64) ([]ledger.PurchaseItem, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT product_id, quantity, unit_cost FROM purchase_items WHERE purchase_id = ? ORDER BY id`, purchaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchase items: %w", err)
	}
	defer rows.Close()

	var out []ledger.PurchaseItem
	for rows.Next() {
		var it ledger.PurchaseItem
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.UnitCost); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func scanPurchase(r scanner) (ledger.Purchase, error) {
	var p ledger.Purchase
	var supplierID sql.NullInt64
	var payment, date, created string
	var ref sql.NullString
	if err := r.Scan(&p.ID, &supplierID, &p.Total, &p.Paid, &payment, &ref, &date, &created); err != nil {
		return p, err
	}
	p.SupplierID = intPtr(supplierID)
	p.PaymentType = ledger.PaymentType(payment)
	p.Reference = ref.String
	p.Date = parseTime(date)
	p.CreatedAt = parseTime(created)
	return p, nil
}

// =============================================================================
// CREATE-ONLY FACTS
// =============================================================================

func (s *session) InsertAdjustment(ctx context.Context, a ledger.Adjustment) (int64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return insertID(s.q.ExecContext(ctx, `
		INSERT INTO inventory_adjustments (product_id, direction, quantity, value, reason, reference_no, date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ProductID, string(a.Direction), a.Quantity, a.Value, nullString(a.Reason), nullString(a.Reference),
		formatTime(a.Date), formatTime(a.CreatedAt),
	))
}

func (s *session) InsertPurchaseReturn(ctx context.Context, r ledger.PurchaseReturn) (int64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return insertID(s.q.ExecContext(ctx, `
		INSERT INTO purchase_returns (purchase_id, product_id, quantity, unit_cost, total_amount, reason,
		                              reference_no, date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullInt(r.PurchaseID), r.ProductID, r.Quantity, r.UnitCost, r.Total, nullString(r.Reason),
		nullString(r.Reference), formatTime(r.Date), formatTime(r.CreatedAt),
	))
}

func (s *session) InsertSalesReturn(ctx context.Context, r ledger.SalesReturn) (int64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return insertID(s.q.ExecContext(ctx, `
		INSERT INTO sales_returns (sale_id, product_id, quantity, unit_price, unit_cost, refund_amount, reason,
		                           reference_no, date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullInt(r.SaleID), r.ProductID, r.Quantity, r.UnitPrice, r.UnitCost, r.Refund, nullString(r.Reason),
		nullString(r.Reference), formatTime(r.Date), formatTime(r.CreatedAt),
	))
}

func (s *session) SalesReturnsForSale(ctx context.Context, saleID int64) ([]ledger.SalesReturn, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	rows, err := s.q.QueryContext(ctx, `
		SELECT id, sale_id, product_id, quantity, unit_price, unit_cost, refund_amount, reason,
		       reference_no, date, created_at
		FROM sales_returns WHERE sale_id = ? ORDER BY id`, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales returns: %w", err)
	}
	defer rows.Close()

	var out []ledger.SalesReturn
	for rows.Next() {
		var r ledger.SalesReturn
		var sale sql.NullInt64
		var reason, ref sql.NullString
		var date, created string
		if err := rows.Scan(&r.ID, &sale, &r.ProductID, &r.Quantity, &r.UnitPrice, &r.UnitCost, &r.Refund,
			&reason, &ref, &date, &created); err != nil {
			return nil, err
		}
		r.SaleID = intPtr(sale)
		r.Reason = reason.String
		r.Reference = ref.String
		r.Date = parseTime(date)
		r.CreatedAt = parseTime(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *session) InsertCashTransaction(ctx context.Context, c ledger.CashTransaction) (int64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return insertID(s.q.ExecContext(ctx, `
		INSERT INTO cash_transactions (kind, amount, payment_type, category, customer_id, supplier_id, sale_id,
		                               purchase_id, description, reference_no, date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(c.Kind), c.Amount, nullString(string(c.PaymentType)), nullString(c.Category),
		nullInt(c.CustomerID), nullInt(c.SupplierID), nullInt(c.SaleID), nullInt(c.PurchaseID),
		nullString(c.Description), nullString(c.Reference), formatTime(c.Date), formatTime(c.CreatedAt),
	))
}

// referenceTables maps record kinds to the tables holding their reference_no.
var referenceTables = map[ledger.RecordKind]string{
	ledger.RecordPurchase:        "purchases",
	ledger.RecordAdjustment:      "inventory_adjustments",
	ledger.RecordPurchaseReturn:  "purchase_returns",
	ledger.RecordSalesReturn:     "sales_returns",
	ledger.RecordCashTransaction: "cash_transactions",
}

func (s *session) SetReference(ctx context.Context, kind ledger.RecordKind, id int64, reference string) error {
	table, ok := referenceTables[kind]
	if !ok {
		return fmt.Errorf("unknown record kind %q", kind)
	}
	notFound := fmt.Errorf("%w: %s %d", ledger.ErrRecordNotFound, kind, id)
	if kind == ledger.RecordPurchase {
		notFound = fmt.Errorf("%w: %d", ledger.ErrPurchaseNotFound, id)
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	return expectOne(s.q.ExecContext(ctx, `UPDATE `+table+` SET reference_no = ? WHERE id = ?`, reference, id))(notFound)
}

// =============================================================================
// HELPERS
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func intPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func insertID(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, fmt.Errorf("failed to insert: %w", err)
	}
	return res.LastInsertId()
}

// expectOne turns a zero-row UPDATE into the given not-found error.
func expectOne(res sql.Result, err error) func(notFound error) error {
	return func(notFound error) error {
		if err != nil {
			return fmt.Errorf("failed to update: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return notFound
		}
		return nil
	}
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func isCheckConstraintError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintCheck
	}
	return false
}

var _ ledger.TxStore = (*Store)(nil)
