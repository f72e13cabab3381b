/*
Package pos turns retail business events into inventory movements and
balanced journal entries.

Each processor method is one unit of work: FIFO quotes, lot commits,
business records and the journal post all happen inside a single
ledger.Books.Do call, so a failure at any step leaves no trace.

EVENTS:
  ┌──────────────────────┬──────────────────────────────────────────────┐
  │ Sale                 │ Dr Cash|AR / Cr Revenue (+Tax)               │
  │                      │ Dr COGS / Cr Inventory (FIFO)                │
  │ Purchase             │ Dr Inventory / Cr Cash|AP                    │
  │ BeginningInventory   │ Dr Inventory / Cr Owner Capital              │
  │ Expense              │ Dr <mapped expense> / Cr Cash|AP             │
  │ CustomerPayment      │ Dr Cash / Cr AR                              │
  │ SupplierPayment      │ Dr AP / Cr Cash                              │
  │ Adjust (decrease)    │ Dr Operating Expenses / Cr Inventory         │
  │ Adjust (increase)    │ Dr Inventory / Cr Other Income               │
  │ PurchaseReturn       │ Dr Cash|AP (original terms) / Cr Inventory   │
  │ SalesReturn          │ Dr Sales Returns, Dr Inventory               │
  │                      │ Cr COGS, Cr Cash                             │
  │ WriteOff             │ Dr Bad Debt Expense / Cr AR                  │
  │ CashInvestment       │ Dr Cash / Cr Owner Capital                   │
  └──────────────────────┴──────────────────────────────────────────────┘

REFERENCES:
  Every reference carries the id of the row that records the event:
  SALE-<sale id>, PUR-<purchase id>, BEG-<lot id>, BD-<sale id>,
  ADJ-<adjustment id>, PR-<purchase return id>, SR-<sales return id>.
  Cash movements use their cash transaction id: EXP-, CUST-PMT-,
  SUPP-PMT-, INV-. Caller-supplied payment references are kept as given.

SEE ALSO:
  - ledger/books.go: Books.Do unit of work
  - ledger/inventory.go: QuoteFIFO / CommitPlan
*/
package pos

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/pos-engine/ledger"
)

// AdjustmentValuation selects how a stock decrease is valued.
type AdjustmentValuation string

const (
	// ValuationFIFO values shrinkage at the cost of the lots it consumes.
	ValuationFIFO AdjustmentValuation = "fifo"
	// ValuationCurrentCost values shrinkage at the product's cost price.
	ValuationCurrentCost AdjustmentValuation = "current_cost"
)

func (v AdjustmentValuation) Valid() bool {
	return v == ValuationFIFO || v == ValuationCurrentCost
}

// Options tune the processors.
type Options struct {
	// TaxRate is a flat percentage applied to the discounted subtotal,
	// e.g. 12 for 12%. Zero disables tax.
	TaxRate decimal.Decimal

	AdjustmentValuation AdjustmentValuation
}

// Processor records business events against a set of books.
type Processor struct {
	books *ledger.Books
	opts  Options
	log   *slog.Logger
}

func NewProcessor(books *ledger.Books, opts Options) *Processor {
	if !opts.AdjustmentValuation.Valid() {
		opts.AdjustmentValuation = ValuationFIFO
	}
	if opts.TaxRate.IsNegative() {
		opts.TaxRate = decimal.Zero
	}
	return &Processor{
		books: books,
		opts:  opts,
		log:   books.Logger().With(slog.String("component", "pos")),
	}
}

func (p *Processor) Books() *ledger.Books { return p.books }
func (p *Processor) Options() Options     { return p.opts }

// =============================================================================
// MASTER DATA
// =============================================================================

type ProductInput struct {
	Name         string
	SKU          string
	CostPrice    decimal.Decimal
	SellingPrice decimal.Decimal
	ReorderLevel int64
}

// RegisterProduct creates a product with no stock. Stock only arrives
// through lots (purchase, beginning inventory, adjustment, return).
func (p *Processor) RegisterProduct(ctx context.Context, in ProductInput) (int64, error) {
	if strings.TrimSpace(in.Name) == "" {
		return 0, ledger.Invalid("name", "is required")
	}
	if in.CostPrice.IsNegative() || in.SellingPrice.IsNegative() {
		return 0, ledger.Invalid("price", "must not be negative")
	}
	if in.ReorderLevel < 0 {
		return 0, ledger.Invalid("reorder_level", "must not be negative")
	}
	var id int64
	err := p.books.Do(ctx, func(u *ledger.Unit) error {
		var err error
		id, err = u.Inventory.CreateProduct(ctx, ledger.Product{
			Name:         in.Name,
			SKU:          in.SKU,
			CostPrice:    in.CostPrice,
			SellingPrice: in.SellingPrice,
			ReorderLevel: in.ReorderLevel,
			CreatedAt:    u.Now,
		})
		return err
	})
	return id, err
}

type CustomerInput struct {
	Name        string
	Email       string
	Phone       string
	CreditLimit decimal.Decimal // zero means no limit
}

func (p *Processor) RegisterCustomer(ctx context.Context, in CustomerInput) (int64, error) {
	if strings.TrimSpace(in.Name) == "" {
		return 0, ledger.Invalid("name", "is required")
	}
	if in.CreditLimit.IsNegative() {
		return 0, ledger.Invalid("credit_limit", "must not be negative")
	}
	var id int64
	err := p.books.Do(ctx, func(u *ledger.Unit) error {
		var err error
		id, err = u.Records.CreateCustomer(ctx, ledger.Customer{
			Name:        in.Name,
			Email:       in.Email,
			Phone:       in.Phone,
			CreditLimit: in.CreditLimit,
			Balance:     decimal.Zero,
			CreatedAt:   u.Now,
		})
		return err
	})
	return id, err
}

type SupplierInput struct {
	Name  string
	Email string
	Phone string
}

func (p *Processor) RegisterSupplier(ctx context.Context, in SupplierInput) (int64, error) {
	if strings.TrimSpace(in.Name) == "" {
		return 0, ledger.Invalid("name", "is required")
	}
	var id int64
	err := p.books.Do(ctx, func(u *ledger.Unit) error {
		var err error
		id, err = u.Records.CreateSupplier(ctx, ledger.Supplier{
			Name:      in.Name,
			Email:     in.Email,
			Phone:     in.Phone,
			Balance:   decimal.Zero,
			CreatedAt: u.Now,
		})
		return err
	})
	return id, err
}

// =============================================================================
// HELPERS
// =============================================================================

// Result is what every posting processor hands back.
type Result struct {
	EntryID   int64
	Reference string
	Amount    decimal.Decimal
}

func paymentOrDefault(pt ledger.PaymentType) (ledger.PaymentType, error) {
	if pt == "" {
		return ledger.PaymentCash, nil
	}
	if !pt.Valid() {
		return "", ledger.Invalid("payment_type", "unknown payment type %q", pt)
	}
	return pt, nil
}

// settlementAccount is Cash for cash terms, the given credit account otherwise.
func settlementAccount(pt ledger.PaymentType, onCredit string) string {
	if pt == ledger.PaymentCredit {
		return onCredit
	}
	return ledger.AcctCash
}

func positive(field string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ledger.Invalid(field, "must be greater than zero")
	}
	return nil
}

func dateOr(d, now time.Time) time.Time {
	if d.IsZero() {
		return now
	}
	return d.UTC()
}

func ref(prefix string, id int64) string {
	return fmt.Sprintf("%s-%d", prefix, id)
}

// post records in unless every line is zero, in which case units moved at
// zero cost and there is nothing to journal. The entry id is then 0.
func post(ctx context.Context, u *ledger.Unit, in ledger.PostInput) (int64, error) {
	for _, l := range in.Lines {
		if l.Debit.IsPositive() || l.Credit.IsPositive() {
			return u.Journal.Post(ctx, in)
		}
	}
	return 0, nil
}

func qty(n int64) decimal.Decimal { return decimal.NewFromInt(n) }
