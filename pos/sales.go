package pos

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/pos-engine/ledger"
)

// =============================================================================
// SALE
// =============================================================================

type SaleItemInput struct {
	ProductID int64
	Quantity  int64
	// UnitPrice defaults to the product's selling price when zero.
	UnitPrice decimal.Decimal
}

type SaleInput struct {
	CustomerID  *int64
	PaymentType ledger.PaymentType // cash when empty
	Discount    decimal.Decimal
	Items       []SaleItemInput
	Date        time.Time
}

type SaleResult struct {
	Result
	SaleID   int64
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Cost     decimal.Decimal
}

// Sale checks out a basket. Every product is quoted before anything is
// consumed; a single shortage aborts the whole sale.
func (p *Processor) Sale(ctx context.Context, in SaleInput) (*SaleResult, error) {
	pt, err := paymentOrDefault(in.PaymentType)
	if err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, ledger.Invalid("items", "a sale needs at least one item")
	}
	if pt == ledger.PaymentCredit && in.CustomerID == nil {
		return nil, ledger.Invalid("customer_id", "credit sales need a customer")
	}
	if in.Discount.IsNegative() {
		return nil, ledger.Invalid("discount", "must not be negative")
	}

	var res *SaleResult
	err = p.books.Do(ctx, func(u *ledger.Unit) error {
		date := dateOr(in.Date, u.Now)

		// Price the basket and fold repeated products into one quote.
		items := make([]ledger.SaleItem, 0, len(in.Items))
		wanted := make(map[int64]int64)
		var order []int64
		subtotal := decimal.Zero
		for i, it := range in.Items {
			if it.Quantity <= 0 {
				return ledger.Invalid(fmt.Sprintf("items[%d].quantity", i), "must be greater than zero")
			}
			if it.UnitPrice.IsNegative() {
				return ledger.Invalid(fmt.Sprintf("items[%d].unit_price", i), "must not be negative")
			}
			prod, err := u.Inventory.Product(ctx, it.ProductID)
			if err != nil {
				return err
			}
			price := it.UnitPrice
			if price.IsZero() {
				price = prod.SellingPrice
			}
			item := ledger.SaleItem{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: price}
			items = append(items, item)
			subtotal = subtotal.Add(item.Total())
			if _, seen := wanted[it.ProductID]; !seen {
				order = append(order, it.ProductID)
			}
			wanted[it.ProductID] += it.Quantity
		}
		if in.Discount.GreaterThan(subtotal) {
			return ledger.Invalid("discount", "exceeds the subtotal %s", subtotal.StringFixed(2))
		}

		quotes := make(map[int64]*ledger.FIFOQuote, len(order))
		for _, productID := range order {
			q, err := u.Inventory.QuoteFIFO(ctx, productID, wanted[productID])
			if err != nil {
				return err
			}
			quotes[productID] = q
		}

		net := subtotal.Sub(in.Discount)
		tax := p.tax(net)
		total := net.Add(tax)

		if in.CustomerID != nil {
			c, err := u.Records.GetCustomer(ctx, *in.CustomerID)
			if err != nil {
				return err
			}
			if pt == ledger.PaymentCredit && c.CreditLimit.IsPositive() &&
				c.Balance.Add(total).GreaterThan(c.CreditLimit) {
				return ledger.Invalid("customer_id", "credit limit %s exceeded", c.CreditLimit.StringFixed(2))
			}
		}

		cost := decimal.Zero
		for _, productID := range order {
			q := quotes[productID]
			if err := u.Inventory.CommitPlan(ctx, q); err != nil {
				return err
			}
			cost = cost.Add(q.TotalCost)
		}
		for i := range items {
			q := quotes[items[i].ProductID]
			items[i].UnitCost = q.TotalCost.DivRound(qty(q.Quantity), 4)
		}

		sale := ledger.Sale{
			CustomerID:  in.CustomerID,
			Subtotal:    subtotal,
			Discount:    in.Discount,
			Tax:         tax,
			Total:       total,
			Paid:        decimal.Zero,
			Cost:        cost,
			PaymentType: pt,
			Status:      ledger.SalePending,
			Date:        date,
			CreatedAt:   u.Now,
			Items:       items,
		}
		if pt == ledger.PaymentCash {
			sale.Paid = total
		}
		saleID, err := u.Records.InsertSale(ctx, sale)
		if err != nil {
			return fmt.Errorf("insert sale: %w", err)
		}
		sale.ID = saleID
		sale.Reference = ref("SALE", saleID)

		entryID, err := post(ctx, u, ledger.PostInput{
			Type:        ledger.JournalSale,
			Reference:   sale.Reference,
			Description: fmt.Sprintf("Sale #%d - %s sale (FIFO)", saleID, pt),
			Date:        date,
			Lines: []ledger.JournalLine{
				ledger.Debit(settlementAccount(pt, ledger.AcctAccountsReceivable), total, fmt.Sprintf("Sale #%d", saleID)),
				ledger.Credit(ledger.AcctSalesRevenue, net, fmt.Sprintf("Revenue from sale #%d", saleID)),
				ledger.Credit(ledger.AcctSalesTaxPayable, tax, fmt.Sprintf("Tax on sale #%d", saleID)),
				ledger.Debit(ledger.AcctCOGS, cost, fmt.Sprintf("COGS for sale #%d", saleID)),
				ledger.Credit(ledger.AcctInventory, cost, fmt.Sprintf("Inventory reduction for sale #%d", saleID)),
			},
		})
		if err != nil {
			return err
		}

		if !sale.Status.CanTransition(ledger.SaleCompleted) {
			return ledger.Invalid("status", "sale %d cannot complete from %s", saleID, sale.Status)
		}
		sale.Status = ledger.SaleCompleted
		if err := u.Records.UpdateSale(ctx, sale); err != nil {
			return err
		}
		if pt == ledger.PaymentCredit {
			if err := adjustCustomer(ctx, u, *in.CustomerID, total); err != nil {
				return err
			}
		}

		res = &SaleResult{
			Result:   Result{EntryID: entryID, Reference: sale.Reference, Amount: total},
			SaleID:   saleID,
			Subtotal: subtotal,
			Discount: in.Discount,
			Tax:      tax,
			Cost:     cost,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.log.Info("sale recorded",
		slog.Int64("sale_id", res.SaleID),
		slog.String("payment_type", string(pt)),
		slog.String("total", res.Amount.String()),
		slog.String("cost", res.Cost.String()))
	return res, nil
}

func (p *Processor) tax(net decimal.Decimal) decimal.Decimal {
	if p.opts.TaxRate.IsZero() {
		return decimal.Zero
	}
	return net.Mul(p.opts.TaxRate).Div(decimal.NewFromInt(100)).Round(2)
}

func adjustCustomer(ctx context.Context, u *ledger.Unit, id int64, delta decimal.Decimal) error {
	c, err := u.Records.GetCustomer(ctx, id)
	if err != nil {
		return err
	}
	return u.Records.SetCustomerBalance(ctx, id, c.Balance.Add(delta))
}

// =============================================================================
// CUSTOMER PAYMENT
// =============================================================================

type CustomerPaymentInput struct {
	CustomerID int64
	// SaleID, when set, applies the payment to that credit sale. Otherwise
	// the payment settles the customer's open credit sales oldest first.
	SaleID      *int64
	Amount      decimal.Decimal
	Reference   string
	Description string
	Date        time.Time
}

// CustomerPayment collects on receivables: Dr Cash / Cr Accounts Receivable.
// A payment can never exceed what the customer owes.
func (p *Processor) CustomerPayment(ctx context.Context, in CustomerPaymentInput) (*Result, error) {
	if err := positive("amount", in.Amount); err != nil {
		return nil, err
	}
	var res *Result
	err := p.books.Do(ctx, func(u *ledger.Unit) error {
		date := dateOr(in.Date, u.Now)
		c, err := u.Records.GetCustomer(ctx, in.CustomerID)
		if err != nil {
			return err
		}
		if in.Amount.GreaterThan(c.Balance) {
			return ledger.Invalid("amount", "exceeds customer balance %s", c.Balance.StringFixed(2))
		}
		if in.SaleID != nil {
			sale, err := u.Records.GetSale(ctx, *in.SaleID)
			if err != nil {
				return err
			}
			if sale.CustomerID == nil || *sale.CustomerID != c.ID {
				return ledger.Invalid("sale_id", "sale %d does not belong to customer %d", sale.ID, c.ID)
			}
			if in.Amount.GreaterThan(sale.Outstanding()) {
				return ledger.Invalid("amount", "exceeds outstanding %s on sale %d", sale.Outstanding().StringFixed(2), sale.ID)
			}
			sale.Paid = sale.Paid.Add(in.Amount)
			if err := u.Records.UpdateSale(ctx, *sale); err != nil {
				return err
			}
		} else if err := settleCreditSales(ctx, u, c.ID, in.Amount); err != nil {
			return err
		}

		cashID, err := u.Records.InsertCashTransaction(ctx, ledger.CashTransaction{
			Kind:        ledger.CashCustomerPayment,
			Amount:      in.Amount,
			PaymentType: ledger.PaymentCash,
			CustomerID:  &c.ID,
			SaleID:      in.SaleID,
			Description: in.Description,
			Reference:   in.Reference,
			Date:        date,
			CreatedAt:   u.Now,
		})
		if err != nil {
			return err
		}
		reference := in.Reference
		if reference == "" {
			reference = ref("CUST-PMT", cashID)
			if err := u.Records.SetReference(ctx, ledger.RecordCashTransaction, cashID, reference); err != nil {
				return err
			}
		}
		entryID, err := post(ctx, u, ledger.PostInput{
			Type:        ledger.JournalCashReceipt,
			Reference:   reference,
			Description: fmt.Sprintf("Customer payment - %s", c.Name),
			Date:        date,
			Lines: []ledger.JournalLine{
				ledger.Debit(ledger.AcctCash, in.Amount, "Customer payment - "+in.Description),
				ledger.Credit(ledger.AcctAccountsReceivable, in.Amount, "Payment received from customer"),
			},
		})
		if err != nil {
			return err
		}
		if err := u.Records.SetCustomerBalance(ctx, c.ID, c.Balance.Sub(in.Amount)); err != nil {
			return err
		}
		res = &Result{EntryID: entryID, Reference: reference, Amount: in.Amount}
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.log.Info("customer payment recorded",
		slog.Int64("customer_id", in.CustomerID),
		slog.String("amount", in.Amount.String()))
	return res, nil
}

// settleCreditSales spreads amount over the customer's open credit sales,
// oldest sale date first. Whatever is left after the last open sale stays
// on the customer balance only.
func settleCreditSales(ctx context.Context, u *ledger.Unit, customerID int64, amount decimal.Decimal) error {
	sales, err := u.Records.ListSales(ctx, ledger.SaleFilter{
		CustomerID:  &customerID,
		PaymentType: ledger.PaymentCredit,
		Status:      ledger.SaleCompleted,
	})
	if err != nil {
		return err
	}
	sort.SliceStable(sales, func(i, j int) bool { return sales[i].Date.Before(sales[j].Date) })

	left := amount
	for _, sale := range sales {
		if !left.IsPositive() {
			break
		}
		due := sale.Outstanding()
		if !due.IsPositive() {
			continue
		}
		applied := decimal.Min(due, left)
		sale.Paid = sale.Paid.Add(applied)
		if err := u.Records.UpdateSale(ctx, sale); err != nil {
			return err
		}
		left = left.Sub(applied)
	}
	return nil
}

// =============================================================================
// BAD DEBT WRITE-OFF
// =============================================================================

type WriteOffInput struct {
	SaleID      int64
	Amount      decimal.Decimal
	Description string
	Date        time.Time
}

// WriteOff gives up on a credit sale: Dr Bad Debt Expense / Cr Accounts
// Receivable. The sale becomes written_off and leaves the outstanding list.
func (p *Processor) WriteOff(ctx context.Context, in WriteOffInput) (*Result, error) {
	var res *Result
	err := p.books.Do(ctx, func(u *ledger.Unit) error {
		date := dateOr(in.Date, u.Now)
		sale, err := u.Records.GetSale(ctx, in.SaleID)
		if err != nil {
			return ledger.Invalid("sale_id", "sale %d not found", in.SaleID)
		}
		if sale.PaymentType != ledger.PaymentCredit {
			return ledger.Invalid("sale_id", "sale %d is not a credit sale", sale.ID)
		}
		if !sale.Status.CanTransition(ledger.SaleWrittenOff) {
			return ledger.Invalid("sale_id", "sale %d is not an open credit sale (%s)", sale.ID, sale.Status)
		}
		due := sale.Outstanding()
		if !due.IsPositive() {
			return ledger.Invalid("sale_id", "sale %d has nothing outstanding", sale.ID)
		}
		if !in.Amount.IsPositive() || in.Amount.GreaterThan(due) {
			return ledger.Invalid("amount", "must be greater than zero and at most %s", due.StringFixed(2))
		}

		reference := ref("BD", sale.ID)
		entryID, err := post(ctx, u, ledger.PostInput{
			Type:        ledger.JournalGeneral,
			Reference:   reference,
			Description: fmt.Sprintf("Bad debt write-off for sale #%d", sale.ID),
			Date:        date,
			Lines: []ledger.JournalLine{
				ledger.Debit(ledger.AcctBadDebtExpense, in.Amount, fmt.Sprintf("Bad debt write-off for sale #%d - %s", sale.ID, in.Description)),
				ledger.Credit(ledger.AcctAccountsReceivable, in.Amount, fmt.Sprintf("Receivable reduction for sale #%d", sale.ID)),
			},
		})
		if err != nil {
			return err
		}
		sale.Status = ledger.SaleWrittenOff
		if err := u.Records.UpdateSale(ctx, *sale); err != nil {
			return err
		}
		if sale.CustomerID != nil {
			if err := adjustCustomer(ctx, u, *sale.CustomerID, in.Amount.Neg()); err != nil {
				return err
			}
		}
		if _, err := u.Records.InsertCashTransaction(ctx, ledger.CashTransaction{
			Kind:        ledger.CashBadDebt,
			Amount:      in.Amount,
			PaymentType: ledger.PaymentCredit,
			CustomerID:  sale.CustomerID,
			SaleID:      &sale.ID,
			Description: in.Description,
			Reference:   reference,
			Date:        date,
			CreatedAt:   u.Now,
		}); err != nil {
			return err
		}
		res = &Result{EntryID: entryID, Reference: reference, Amount: in.Amount}
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.log.Info("bad debt written off",
		slog.Int64("sale_id", in.SaleID),
		slog.String("amount", in.Amount.String()))
	return res, nil
}

// OutstandingCreditSales lists completed credit sales that still have a
// balance, optionally for one customer.
func (p *Processor) OutstandingCreditSales(ctx context.Context, customerID *int64) ([]ledger.Sale, error) {
	sales, err := p.books.Store().ListSales(ctx, ledger.SaleFilter{
		CustomerID:  customerID,
		PaymentType: ledger.PaymentCredit,
		Status:      ledger.SaleCompleted,
	})
	if err != nil {
		return nil, err
	}
	out := make([]ledger.Sale, 0, len(sales))
	for _, s := range sales {
		if s.Outstanding().IsPositive() {
			out = append(out, s)
		}
	}
	return out, nil
}

// =============================================================================
// SALES RETURN
// =============================================================================

type SalesReturnInput struct {
	// SaleID, when set, prices the return from the original sale line.
	SaleID    *int64
	ProductID int64
	Quantity  int64
	// UnitPrice overrides the refund price per unit.
	UnitPrice decimal.Decimal
	Reason    string
	Date      time.Time
}

type SalesReturnResult struct {
	Result
	ReturnID int64
	LotID    int64
	Cost     decimal.Decimal
}

// SalesReturn takes goods back and refunds in cash. Revenue and cost are
// both reversed and the units go back on the shelf as a new lot.
func (p *Processor) SalesReturn(ctx context.Context, in SalesReturnInput) (*SalesReturnResult, error) {
	if in.Quantity <= 0 {
		return nil, ledger.Invalid("quantity", "must be greater than zero")
	}
	if in.UnitPrice.IsNegative() {
		return nil, ledger.Invalid("unit_price", "must not be negative")
	}
	var res *SalesReturnResult
	err := p.books.Do(ctx, func(u *ledger.Unit) error {
		date := dateOr(in.Date, u.Now)
		prod, err := u.Inventory.Product(ctx, in.ProductID)
		if err != nil {
			return err
		}
		price, cost := prod.SellingPrice, prod.CostPrice
		if in.SaleID != nil {
			sale, err := u.Records.GetSale(ctx, *in.SaleID)
			if err != nil {
				return err
			}
			line, sold := saleLine(sale, in.ProductID)
			if sold == 0 {
				return ledger.Invalid("product_id", "product %d was not part of sale %d", in.ProductID, sale.ID)
			}
			prior, err := u.Records.SalesReturnsForSale(ctx, sale.ID)
			if err != nil {
				return err
			}
			left := sold - returnedQuantity(prior, in.ProductID)
			if in.Quantity > left {
				return ledger.Invalid("quantity", "only %d of %d sold on sale %d can still be returned", left, sold, sale.ID)
			}
			price, cost = line.UnitPrice, line.UnitCost
		}
		if !in.UnitPrice.IsZero() {
			price = in.UnitPrice
		}
		refund := price.Mul(qty(in.Quantity))
		restored := cost.Mul(qty(in.Quantity))

		lotID, err := u.Inventory.AddLot(ctx, ledger.LotInput{
			ProductID:  in.ProductID,
			Source:     ledger.LotSalesReturn,
			Quantity:   in.Quantity,
			UnitCost:   cost,
			AcquiredAt: date,
		})
		if err != nil {
			return err
		}

		returnID, err := u.Records.InsertSalesReturn(ctx, ledger.SalesReturn{
			SaleID:    in.SaleID,
			ProductID: in.ProductID,
			Quantity:  in.Quantity,
			UnitPrice: price,
			UnitCost:  cost,
			Refund:    refund,
			Reason:    in.Reason,
			Date:      date,
			CreatedAt: u.Now,
		})
		if err != nil {
			return err
		}
		reference := ref("SR", returnID)
		if err := u.Records.SetReference(ctx, ledger.RecordSalesReturn, returnID, reference); err != nil {
			return err
		}
		entryID, err := post(ctx, u, ledger.PostInput{
			Type:        ledger.JournalCashDisbursement,
			Reference:   reference,
			Description: fmt.Sprintf("Sales return - %s (%d units)", prod.Name, in.Quantity),
			Date:        date,
			Lines: []ledger.JournalLine{
				ledger.Debit(ledger.AcctSalesReturns, refund, "Return - "+in.Reason),
				ledger.Debit(ledger.AcctInventory, restored, "Returned goods - "+prod.Name),
				ledger.Credit(ledger.AcctCOGS, restored, "Cost reversal - "+prod.Name),
				ledger.Credit(ledger.AcctCash, refund, "Refund"),
			},
		})
		if err != nil {
			return err
		}
		res = &SalesReturnResult{
			Result:   Result{EntryID: entryID, Reference: reference, Amount: refund},
			ReturnID: returnID,
			LotID:    lotID,
			Cost:     restored,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.log.Info("sales return recorded",
		slog.Int64("product_id", in.ProductID),
		slog.Int64("quantity", in.Quantity),
		slog.String("refund", res.Amount.String()))
	return res, nil
}

// saleLine returns the first line for productID and the total quantity of
// that product on the sale.
func saleLine(s *ledger.Sale, productID int64) (ledger.SaleItem, int64) {
	var first ledger.SaleItem
	var sold int64
	for _, it := range s.Items {
		if it.ProductID != productID {
			continue
		}
		if sold == 0 {
			first = it
		}
		sold += it.Quantity
	}
	return first, sold
}

// returnedQuantity sums the units of productID already taken back.
func returnedQuantity(returns []ledger.SalesReturn, productID int64) int64 {
	var n int64
	for _, r := range returns {
		if r.ProductID == productID {
			n += r.Quantity
		}
	}
	return n
}
