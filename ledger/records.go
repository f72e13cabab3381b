package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BUSINESS RECORDS
// =============================================================================
// Facts the transaction processors keep alongside the journal. Only Sale has
// a lifecycle; everything else is create-only.

type PaymentType string

const (
	PaymentCash   PaymentType = "cash"
	PaymentCredit PaymentType = "credit"
)

func (p PaymentType) Valid() bool {
	return p == PaymentCash || p == PaymentCredit
}

type SaleStatus string

const (
	SalePending    SaleStatus = "pending"
	SaleCompleted  SaleStatus = "completed"
	SaleWrittenOff SaleStatus = "written_off"
)

// CanTransition reports whether a sale may move from s to next.
// written_off is terminal.
func (s SaleStatus) CanTransition(next SaleStatus) bool {
	switch s {
	case SalePending:
		return next == SaleCompleted
	case SaleCompleted:
		return next == SaleWrittenOff
	}
	return false
}

type Sale struct {
	ID          int64
	CustomerID  *int64
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	Tax         decimal.Decimal
	Total       decimal.Decimal
	Paid        decimal.Decimal
	Cost        decimal.Decimal
	PaymentType PaymentType
	Status      SaleStatus
	Reference   string
	Date        time.Time
	CreatedAt   time.Time
	Items       []SaleItem
}

// Outstanding is what the customer still owes on a credit sale.
func (s Sale) Outstanding() decimal.Decimal {
	if s.PaymentType != PaymentCredit || s.Status != SaleCompleted {
		return decimal.Zero
	}
	out := s.Total.Sub(s.Paid)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

type SaleItem struct {
	ProductID int64
	Quantity  int64
	UnitPrice decimal.Decimal
	UnitCost  decimal.Decimal // FIFO cost per unit at checkout
}

func (i SaleItem) Total() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(i.Quantity))
}

// SaleFilter narrows sale listings. Nil/zero fields are ignored.
type SaleFilter struct {
	CustomerID  *int64
	PaymentType PaymentType
	Status      SaleStatus
}

func (f SaleFilter) Matches(s Sale) bool {
	if f.CustomerID != nil && (s.CustomerID == nil || *s.CustomerID != *f.CustomerID) {
		return false
	}
	if f.PaymentType != "" && s.PaymentType != f.PaymentType {
		return false
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	return true
}

type Purchase struct {
	ID          int64
	SupplierID  *int64
	Total       decimal.Decimal
	Paid        decimal.Decimal
	PaymentType PaymentType
	Reference   string
	Date        time.Time
	CreatedAt   time.Time
	Items       []PurchaseItem
}

// Outstanding is what the business still owes on a credit purchase.
func (p Purchase) Outstanding() decimal.Decimal {
	if p.PaymentType != PaymentCredit {
		return decimal.Zero
	}
	out := p.Total.Sub(p.Paid)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// PurchaseFilter narrows purchase listings. Nil/zero fields are ignored.
type PurchaseFilter struct {
	SupplierID  *int64
	PaymentType PaymentType
}

func (f PurchaseFilter) Matches(p Purchase) bool {
	if f.SupplierID != nil && (p.SupplierID == nil || *p.SupplierID != *f.SupplierID) {
		return false
	}
	if f.PaymentType != "" && p.PaymentType != f.PaymentType {
		return false
	}
	return true
}

type PurchaseItem struct {
	ProductID int64
	Quantity  int64
	UnitCost  decimal.Decimal
}

func (i PurchaseItem) Total() decimal.Decimal {
	return i.UnitCost.Mul(decimal.NewFromInt(i.Quantity))
}

type Customer struct {
	ID          int64
	Name        string
	Email       string
	Phone       string
	CreditLimit decimal.Decimal
	Balance     decimal.Decimal
	CreatedAt   time.Time
}

type Supplier struct {
	ID        int64
	Name      string
	Email     string
	Phone     string
	Balance   decimal.Decimal
	CreatedAt time.Time
}

type AdjustmentDirection string

const (
	AdjustIncrease AdjustmentDirection = "increase"
	AdjustDecrease AdjustmentDirection = "decrease"
)

type Adjustment struct {
	ID        int64
	ProductID int64
	Direction AdjustmentDirection
	Quantity  int64
	Value     decimal.Decimal
	Reason    string
	Reference string
	Date      time.Time
	CreatedAt time.Time
}

type PurchaseReturn struct {
	ID         int64
	PurchaseID *int64
	ProductID  int64
	Quantity   int64
	UnitCost   decimal.Decimal
	Total      decimal.Decimal
	Reason     string
	Reference  string
	Date       time.Time
	CreatedAt  time.Time
}

type SalesReturn struct {
	ID        int64
	SaleID    *int64
	ProductID int64
	Quantity  int64
	UnitPrice decimal.Decimal
	UnitCost  decimal.Decimal
	Refund    decimal.Decimal
	Reason    string
	Reference string
	Date      time.Time
	CreatedAt time.Time
}

// RecordKind names a table of business records that carry a reference.
type RecordKind string

const (
	RecordPurchase        RecordKind = "purchase"
	RecordAdjustment      RecordKind = "adjustment"
	RecordPurchaseReturn  RecordKind = "purchase_return"
	RecordSalesReturn     RecordKind = "sales_return"
	RecordCashTransaction RecordKind = "cash_transaction"
)

// CashKind tags money movements that are not sales or purchases.
type CashKind string

const (
	CashCustomerPayment CashKind = "customer_payment"
	CashSupplierPayment CashKind = "supplier_payment"
	CashExpense         CashKind = "expense"
	CashInvestment      CashKind = "investment"
	CashBadDebt         CashKind = "bad_debt"
)

type CashTransaction struct {
	ID          int64
	Kind        CashKind
	Amount      decimal.Decimal
	PaymentType PaymentType
	Category    string
	CustomerID  *int64
	SupplierID  *int64
	SaleID      *int64
	PurchaseID  *int64
	Description string
	Reference   string
	Date        time.Time
	CreatedAt   time.Time
}
