/*
store.go - Persistence interface for the accounting core

PURPOSE:
  Defines the boundary between the engine and the database. The engine
  never holds a connection itself; it is handed a Store (or a TxStore for
  atomic work) at construction.

KEY INTERFACES:
  AccountStore:   Chart of Accounts rows and running balances
  JournalStore:   Append-only journal headers and lines
  InventoryStore: Products and inventory lots
  RecordStore:    Sales, purchases, parties and other business facts
  TxStore:        Store + WithTx unit of work

APPEND-ONLY CONTRACT:
  Journal entries have no update or delete method. Lots can only have
  their remaining quantity lowered. Accounts can be deactivated, never
  removed.

UNIT OF WORK:
  WithTx runs fn against a transaction-bound Store. If fn returns an
  error every write made through that Store is rolled back. Reads made
  through the bound Store see the uncommitted writes.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Durable SQLite
  - ledger/store/memory.go: In-memory for tests and demos
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE - Split by concern, composed below
// =============================================================================

type AccountStore interface {
	// CreateAccount fails with ErrDuplicateAccount if code or name exists.
	CreateAccount(ctx context.Context, a Account) (int64, error)

	// GetAccount returns ErrAccountNotFound for unknown names.
	GetAccount(ctx context.Context, name string) (*Account, error)

	// ListAccounts returns every account ordered by code.
	ListAccounts(ctx context.Context) ([]Account, error)

	// SetAccountBalance overwrites the stored running balance.
	SetAccountBalance(ctx context.Context, name string, balance decimal.Decimal) error

	// SetAccountActive soft-(de)activates an account.
	SetAccountActive(ctx context.Context, name string, active bool) error
}

type JournalStore interface {
	// InsertEntry writes the header and all lines, returning the entry id.
	InsertEntry(ctx context.Context, e JournalEntry) (int64, error)

	// GetEntry returns ErrEntryNotFound for unknown ids.
	GetEntry(ctx context.Context, id int64) (*JournalEntry, error)

	// ListEntries returns entries with lines, ordered by date then id.
	ListEntries(ctx context.Context, f EntryFilter) ([]JournalEntry, error)

	// CountEntries is the number of journal headers.
	CountEntries(ctx context.Context) (int, error)

	// LinesForAccount returns every posted line against an account,
	// ordered by entry date, entry id, then position.
	LinesForAccount(ctx context.Context, account string) ([]PostedLine, error)

	// AllLines returns every posted line in the journal.
	AllLines(ctx context.Context) ([]PostedLine, error)
}

type InventoryStore interface {
	CreateProduct(ctx context.Context, p Product) (int64, error)
	GetProduct(ctx context.Context, id int64) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	SetProductQuantity(ctx context.Context, id int64, quantity int64) error
	SetProductCostPrice(ctx context.Context, id int64, cost decimal.Decimal) error

	InsertLot(ctx context.Context, l Lot) (int64, error)
	GetLot(ctx context.Context, id int64) (*Lot, error)

	// OpenLots returns lots with remaining > 0 for a product, oldest
	// acquisition first, lower id first on equal dates.
	OpenLots(ctx context.Context, productID int64) ([]Lot, error)

	// OpenLotsByPurchase is OpenLots restricted to one purchase.
	OpenLotsByPurchase(ctx context.Context, purchaseID int64) ([]Lot, error)

	// AllOpenLots returns every lot with remaining > 0, in FIFO order per product.
	AllOpenLots(ctx context.Context) ([]Lot, error)

	SetLotRemaining(ctx context.Context, lotID int64, remaining int64) error
}

type RecordStore interface {
	CreateCustomer(ctx context.Context, c Customer) (int64, error)
	GetCustomer(ctx context.Context, id int64) (*Customer, error)
	SetCustomerBalance(ctx context.Context, id int64, balance decimal.Decimal) error

	CreateSupplier(ctx context.Context, s Supplier) (int64, error)
	GetSupplier(ctx context.Context, id int64) (*Supplier, error)
	SetSupplierBalance(ctx context.Context, id int64, balance decimal.Decimal) error

	// InsertSale writes the sale and its items.
	InsertSale(ctx context.Context, s Sale) (int64, error)
	GetSale(ctx context.Context, id int64) (*Sale, error)
	ListSales(ctx context.Context, f SaleFilter) ([]Sale, error)
	// UpdateSale rewrites status, paid amount, cost and reference.
	UpdateSale(ctx context.Context, s Sale) error

	InsertPurchase(ctx context.Context, p Purchase) (int64, error)
	GetPurchase(ctx context.Context, id int64) (*Purchase, error)
	// ListPurchases returns matching purchases with items, ordered by id.
	ListPurchases(ctx context.Context, f PurchaseFilter) ([]Purchase, error)
	SetPurchasePaid(ctx context.Context, id int64, paid decimal.Decimal) error

	InsertAdjustment(ctx context.Context, a Adjustment) (int64, error)
	InsertPurchaseReturn(ctx context.Context, r PurchaseReturn) (int64, error)
	InsertSalesReturn(ctx context.Context, r SalesReturn) (int64, error)
	// SalesReturnsForSale returns the returns recorded against one sale.
	SalesReturnsForSale(ctx context.Context, saleID int64) ([]SalesReturn, error)
	InsertCashTransaction(ctx context.Context, c CashTransaction) (int64, error)

	// SetReference stamps a record once its id is known. Unknown ids
	// return ErrRecordNotFound (ErrPurchaseNotFound for purchases).
	SetReference(ctx context.Context, kind RecordKind, id int64, reference string) error
}

// Store is everything the engine persists.
type Store interface {
	AccountStore
	JournalStore
	InventoryStore
	RecordStore
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
