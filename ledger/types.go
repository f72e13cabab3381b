/*
Package ledger provides the double-entry accounting core of the POS engine.

PURPOSE:
  Turns business events into balanced journal entries, keeps per-account
  running balances, and costs outgoing stock with first-in-first-out lot
  consumption. Everything that touches money or stock quantities lives here;
  the pos package only decides WHICH lines to post.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: a named bucket with a normal-balance side
  - JournalEntry / JournalLine: immutable balanced postings
  - Lot: one acquisition batch of a product at one unit cost
  - Consumption / FIFOQuote: a plan for taking stock out of lots

DESIGN PRINCIPLES:
  1. Precision: all money is decimal.Decimal, quantities are int64
  2. Immutability: journal entries are never edited, only offset
  3. Named records: no positional row access anywhere in the engine

SEE ALSO:
  - chart.go: Chart of Accounts and the sign convention
  - inventory.go: Lot ledger and FIFO
  - journal.go: Posting
  - reports.go: Read-only queries
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tolerance is the largest debit/credit difference still considered balanced.
var Tolerance = decimal.New(1, -2)

// =============================================================================
// ACCOUNTS
// =============================================================================

type AccountType string

const (
	AccountAsset     AccountType = "asset"
	AccountLiability AccountType = "liability"
	AccountEquity    AccountType = "equity"
	AccountRevenue   AccountType = "revenue"
	AccountExpense   AccountType = "expense"
)

// DebitNormal reports whether the account type increases on the debit side.
func (t AccountType) DebitNormal() bool {
	return t == AccountAsset || t == AccountExpense
}

// Structural reports whether the type belongs on the balance sheet.
func (t AccountType) Structural() bool {
	return t == AccountAsset || t == AccountLiability || t == AccountEquity
}

func (t AccountType) Valid() bool {
	switch t {
	case AccountAsset, AccountLiability, AccountEquity, AccountRevenue, AccountExpense:
		return true
	}
	return false
}

// SignedDelta converts a debit/credit pair into the change of a balance
// carried on this type's normal side.
func (t AccountType) SignedDelta(debit, credit decimal.Decimal) decimal.Decimal {
	if t.DebitNormal() {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

// Account is one entry in the Chart of Accounts.
// Balance is mutated only by the Journal Engine.
type Account struct {
	ID        int64
	Code      string
	Name      string
	Type      AccountType
	Balance   decimal.Decimal
	Active    bool
	CreatedAt time.Time
}

// =============================================================================
// JOURNAL
// =============================================================================

type JournalType string

const (
	JournalSale             JournalType = "sale"
	JournalPurchase         JournalType = "purchase"
	JournalCashReceipt      JournalType = "cash_receipt"
	JournalCashDisbursement JournalType = "cash_disbursement"
	JournalAccountsPayable  JournalType = "accounts_payable"
	JournalGeneral          JournalType = "general"
)

func (t JournalType) Valid() bool {
	switch t {
	case JournalSale, JournalPurchase, JournalCashReceipt, JournalCashDisbursement,
		JournalAccountsPayable, JournalGeneral:
		return true
	}
	return false
}

// JournalEntry is an immutable, balanced set of lines recording one event.
type JournalEntry struct {
	ID          int64
	Type        JournalType
	Reference   string
	Description string
	Date        time.Time
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	CreatedAt   time.Time
	Lines       []JournalLine
}

// JournalLine is identified by (EntryID, Position). Account is a lookup by
// name into the Chart of Accounts, not an ownership link.
type JournalLine struct {
	EntryID     int64
	Position    int
	Account     string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

// Debit builds a debit line.
func Debit(account string, amount decimal.Decimal, description string) JournalLine {
	return JournalLine{Account: account, Debit: amount, Credit: decimal.Zero, Description: description}
}

// Credit builds a credit line.
func Credit(account string, amount decimal.Decimal, description string) JournalLine {
	return JournalLine{Account: account, Debit: decimal.Zero, Credit: amount, Description: description}
}

// PostedLine is a journal line joined with its entry header, as read back
// for ledgers and summaries.
type PostedLine struct {
	EntryID     int64
	Position    int
	Type        JournalType
	Reference   string
	Date        time.Time
	Account     string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

// EntryFilter narrows journal listings. Zero values mean "no filter".
type EntryFilter struct {
	Type  JournalType
	From  time.Time
	To    time.Time
	Limit int
}

// Matches reports whether an entry passes the filter, ignoring Limit.
func (f EntryFilter) Matches(e JournalEntry) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if !f.From.IsZero() && e.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Date.After(f.To) {
		return false
	}
	return true
}

// =============================================================================
// INVENTORY
// =============================================================================

// LotSource records how stock entered the system.
type LotSource string

const (
	LotPurchase    LotSource = "purchase"
	LotBeginning   LotSource = "beginning"
	LotAdjustment  LotSource = "adjustment"
	LotSalesReturn LotSource = "sales_return"
)

// Lot is one acquisition batch. QuantityRemaining only ever decreases and
// stays within [0, QuantityPurchased]. Lots are never deleted.
type Lot struct {
	ID                int64
	ProductID         int64
	PurchaseID        *int64 // nil for anything that is not a supplier purchase
	Source            LotSource
	QuantityPurchased int64
	QuantityRemaining int64
	UnitCost          decimal.Decimal
	AcquiredAt        time.Time
	CreatedAt         time.Time
}

// Value is the cost of what is left in the lot.
func (l Lot) Value() decimal.Decimal {
	return l.UnitCost.Mul(decimal.NewFromInt(l.QuantityRemaining))
}

// Product is consulted by the engine; only Quantity and CostPrice are
// written, and Quantity only through lot operations.
type Product struct {
	ID           int64
	Name         string
	SKU          string
	CostPrice    decimal.Decimal
	SellingPrice decimal.Decimal
	Quantity     int64
	ReorderLevel int64
	CreatedAt    time.Time
}

// Consumption is one step of a FIFO plan.
type Consumption struct {
	LotID     int64
	ProductID int64
	Quantity  int64
	UnitCost  decimal.Decimal
}

func (c Consumption) Cost() decimal.Decimal {
	return c.UnitCost.Mul(decimal.NewFromInt(c.Quantity))
}

// FIFOQuote is the result of walking a product's lots oldest first.
type FIFOQuote struct {
	ProductID int64
	Quantity  int64
	TotalCost decimal.Decimal
	Plan      []Consumption
}
