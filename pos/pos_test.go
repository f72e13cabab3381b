package pos_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/pos-engine/ledger"
	"github.com/warp/pos-engine/ledger/store"
	"github.com/warp/pos-engine/pos"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var fixedNow = time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	mem   *store.Memory
	books *ledger.Books
	proc  *pos.Processor
}

func newFixture(t *testing.T, opts pos.Options) *fixture {
	t.Helper()
	mem := store.NewMemory()
	books := ledger.NewBooks(mem, ledger.WithClock(func() time.Time { return fixedNow }))
	_, err := books.Chart().Seed(context.Background(), ledger.DefaultChart())
	require.NoError(t, err)
	return &fixture{t: t, ctx: context.Background(), mem: mem, books: books, proc: pos.NewProcessor(books, opts)}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *fixture) assertBalance(account, want string) {
	f.t.Helper()
	got, err := f.books.Chart().Balance(f.ctx, account)
	require.NoError(f.t, err)
	assert.True(f.t, dec(want).Equal(got), "%s: want %s, got %s", account, want, got)
}

func (f *fixture) assertBalanced() {
	f.t.Helper()
	ok, err := f.books.Reports().ValidateTrialBalance(f.ctx)
	require.NoError(f.t, err)
	assert.True(f.t, ok, "trial balance out of balance")
	rec, err := f.books.Reports().InventoryReconciliation(f.ctx)
	require.NoError(f.t, err)
	assert.True(f.t, rec.Balanced, "inventory account %s vs lots %s", rec.AccountBalance, rec.LotValuation)
}

func (f *fixture) product(cost, price string) int64 {
	f.t.Helper()
	id, err := f.proc.RegisterProduct(f.ctx, pos.ProductInput{
		Name:         "Rice 5kg",
		CostPrice:    dec(cost),
		SellingPrice: dec(price),
	})
	require.NoError(f.t, err)
	return id
}

func (f *fixture) stock(productID int64, qty int64, cost string) {
	f.t.Helper()
	_, err := f.proc.BeginningInventory(f.ctx, pos.BeginningInventoryInput{
		ProductID: productID, Quantity: qty, UnitCost: dec(cost),
	})
	require.NoError(f.t, err)
}

func (f *fixture) customer(limit string) int64 {
	f.t.Helper()
	id, err := f.proc.RegisterCustomer(f.ctx, pos.CustomerInput{Name: "Ana Cruz", CreditLimit: dec(limit)})
	require.NoError(f.t, err)
	return id
}

func (f *fixture) supplier() int64 {
	f.t.Helper()
	id, err := f.proc.RegisterSupplier(f.ctx, pos.SupplierInput{Name: "Acme Wholesale"})
	require.NoError(f.t, err)
	return id
}

func (f *fixture) onHand(productID int64) int64 {
	f.t.Helper()
	p, err := f.books.Inventory().Product(f.ctx, productID)
	require.NoError(f.t, err)
	return p.Quantity
}

// =============================================================================
// END TO END
// =============================================================================

func TestScenario_BeginningInventoryThenCashSale(t *testing.T) {
	// GIVEN: A product costing 10 and selling at 15 with no stock
	f := newFixture(t, pos.Options{})
	rice := f.product("10", "15")

	// WHEN: 20 units are brought in as beginning inventory
	beg, err := f.proc.BeginningInventory(f.ctx, pos.BeginningInventoryInput{ProductID: rice, Quantity: 20, UnitCost: dec("10")})
	require.NoError(t, err)

	// THEN: Inventory and Owner Capital both carry 200
	assert.Equal(t, "BEG-1", beg.Reference)
	f.assertBalance(ledger.AcctInventory, "200")
	f.assertBalance(ledger.AcctOwnerCapital, "200")

	// WHEN: 5 units sell for cash at 15
	sale, err := f.proc.Sale(f.ctx, pos.SaleInput{
		PaymentType: ledger.PaymentCash,
		Items:       []pos.SaleItemInput{{ProductID: rice, Quantity: 5, UnitPrice: dec("15")}},
	})
	require.NoError(t, err)

	// THEN: Revenue and cost sides are both booked
	assert.Equal(t, "SALE-1", sale.Reference)
	assert.True(t, dec("75").Equal(sale.Amount))
	assert.True(t, dec("50").Equal(sale.Cost))
	f.assertBalance(ledger.AcctCash, "75")
	f.assertBalance(ledger.AcctSalesRevenue, "75")
	f.assertBalance(ledger.AcctCOGS, "50")
	f.assertBalance(ledger.AcctInventory, "150")
	assert.Equal(t, int64(15), f.onHand(rice))
	f.assertBalanced()

	stored, err := f.books.Store().GetSale(f.ctx, sale.SaleID)
	require.NoError(t, err)
	assert.Equal(t, ledger.SaleCompleted, stored.Status)
	assert.Equal(t, "SALE-1", stored.Reference)
	assert.True(t, dec("75").Equal(stored.Paid))
}

func TestScenario_TrialBalanceRoundTrip(t *testing.T) {
	// GIVEN: A mixed sequence of every kind of event
	f := newFixture(t, pos.Options{TaxRate: dec("12")})
	rice := f.product("10", "15")
	soap := f.product("2", "3.50")
	sup := f.supplier()
	cust := f.customer("0")

	f.stock(rice, 10, "10")
	_, err := f.proc.Purchase(f.ctx, pos.PurchaseInput{
		SupplierID: &sup, PaymentType: ledger.PaymentCredit,
		Items: []pos.PurchaseItemInput{
			{ProductID: rice, Quantity: 5, UnitCost: dec("11")},
			{ProductID: soap, Quantity: 40, UnitCost: dec("2.10")},
		},
	})
	require.NoError(t, err)
	_, err = f.proc.CashInvestment(f.ctx, pos.InvestmentInput{Amount: dec("500")})
	require.NoError(t, err)
	sale, err := f.proc.Sale(f.ctx, pos.SaleInput{
		CustomerID: &cust, PaymentType: ledger.PaymentCredit, Discount: dec("1"),
		Items: []pos.SaleItemInput{
			{ProductID: rice, Quantity: 12},
			{ProductID: soap, Quantity: 7},
		},
	})
	require.NoError(t, err)
	_, err = f.proc.SalesReturn(f.ctx, pos.SalesReturnInput{SaleID: &sale.SaleID, ProductID: soap, Quantity: 2, Reason: "damaged"})
	require.NoError(t, err)
	_, err = f.proc.PurchaseReturn(f.ctx, pos.PurchaseReturnInput{ProductID: soap, Quantity: 3, Reason: "expired"})
	require.NoError(t, err)
	_, err = f.proc.Adjust(f.ctx, pos.AdjustmentInput{ProductID: soap, Direction: ledger.AdjustDecrease, Quantity: 1, Reason: "breakage"})
	require.NoError(t, err)
	_, err = f.proc.Adjust(f.ctx, pos.AdjustmentInput{ProductID: rice, Direction: ledger.AdjustIncrease, Quantity: 2, Reason: "recount"})
	require.NoError(t, err)
	_, err = f.proc.Expense(f.ctx, pos.ExpenseInput{Category: "utilities", Amount: dec("45.25")})
	require.NoError(t, err)
	_, err = f.proc.CustomerPayment(f.ctx, pos.CustomerPaymentInput{CustomerID: cust, SaleID: &sale.SaleID, Amount: dec("50")})
	require.NoError(t, err)
	_, err = f.proc.SupplierPayment(f.ctx, pos.SupplierPaymentInput{SupplierID: sup, Amount: dec("40")})
	require.NoError(t, err)

	// THEN: Debits equal credits and the Inventory account matches the lots
	f.assertBalanced()
	totals, err := f.books.Reports().Totals(f.ctx)
	require.NoError(t, err)
	assert.True(t, totals.Balanced)
}

// =============================================================================
// SALE
// =============================================================================

func TestSale_ShortageOnSecondItemAbortsEverything(t *testing.T) {
	// GIVEN: Two products, the second with only 2 units
	f := newFixture(t, pos.Options{})
	rice := f.product("10", "15")
	soap := f.product("2", "3")
	f.stock(rice, 10, "10")
	f.stock(soap, 2, "2")
	before := f.mem.Snapshot()
	riceLots, err := f.books.Inventory().ListLots(f.ctx, rice)
	require.NoError(t, err)

	// WHEN: The basket asks for 3 of the second product
	_, err = f.proc.Sale(f.ctx, pos.SaleInput{Items: []pos.SaleItemInput{
		{ProductID: rice, Quantity: 4},
		{ProductID: soap, Quantity: 3},
	}})

	// THEN: Nothing moved for either item
	require.ErrorIs(t, err, ledger.ErrInsufficientStock)
	assert.Equal(t, ledger.KindInsufficientStock, ledger.Classify(err))
	var stockErr *ledger.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, soap, stockErr.ProductID)
	assert.Equal(t, int64(2), stockErr.Available)

	assert.Equal(t, before, f.mem.Snapshot())
	after, err := f.books.Inventory().ListLots(f.ctx, rice)
	require.NoError(t, err)
	assert.Equal(t, riceLots, after)
	assert.Equal(t, int64(10), f.onHand(rice))
	f.assertBalance(ledger.AcctCash, "0")
}

func TestSale_RepeatedProductIsQuotedAsOne(t *testing.T) {
	// GIVEN: 5 units on hand
	f := newFixture(t, pos.Options{})
	rice := f.product("10", "15")
	f.stock(rice, 5, "10")

	// WHEN: Two lines of 3 each are sold
	_, err := f.proc.Sale(f.ctx, pos.SaleInput{Items: []pos.SaleItemInput{
		{ProductID: rice, Quantity: 3},
		{ProductID: rice, Quantity: 3},
	}})

	// THEN: The combined 6 is short
	require.ErrorIs(t, err, ledger.ErrInsufficientStock)
	assert.Equal(t, int64(5), f.onHand(rice))
}

func TestSale_FIFOCostAcrossLots(t *testing.T) {
	f := newFixture(t, pos.Options{})
	rice := f.product("10", "20")
	_, err := f.proc.BeginningInventory(f.ctx, pos.BeginningInventoryInput{
		ProductID: rice, Quantity: 5, UnitCost: dec("10"), Date: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	_, err = f.proc.Purchase(f.ctx, pos.PurchaseInput{
		Date:  time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		Items: []pos.PurchaseItemInput{{ProductID: rice, Quantity: 3, UnitCost: dec("12")}},
	})
	require.NoError(t, err)

	sale, err := f.proc.Sale(f.ctx, pos.SaleInput{Items: []pos.SaleItemInput{{ProductID: rice, Quantity: 7}}})
	require.NoError(t, err)

	assert.True(t, dec("74").Equal(sale.Cost))
	assert.True(t, dec("140").Equal(sale.Amount), "unit price falls back to the selling price")
	lots, err := f.books.Inventory().ListLots(f.ctx, rice)
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.Equal(t, int64(1), lots[0].QuantityRemaining)
	f.assertBalance(ledger.AcctInventory, "12")
}

func TestSale_TaxAndDiscount(t *testing.T) {
	// GIVEN: A 12% flat tax
	f := newFixture(t, pos.Options{TaxRate: dec("12")})
	rice := f.product("10", "55")
	f.stock(rice, 2, "10")

	// WHEN: Two units sell with a 10 discount
	sale, err := f.proc.Sale(f.ctx, pos.SaleInput{
		Discount: dec("10"),
		Items:    []pos.SaleItemInput{{ProductID: rice, Quantity: 2}},
	})
	require.NoError(t, err)

	// THEN: Revenue is net of discount and tax goes to the liability
	assert.True(t, dec("110").Equal(sale.Subtotal))
	assert.True(t, dec("12").Equal(sale.Tax))
	assert.True(t, dec("112").Equal(sale.Amount))
	f.assertBalance(ledger.AcctCash, "112")
	f.assertBalance(ledger.AcctSalesRevenue, "100")
	f.assertBalance(ledger.AcctSalesTaxPayable, "12")
	f.assertBalanced()
}

func TestSale_Validation(t *testing.T) {
	f := newFixture(t, pos.Options{})
	rice := f.product("10", "15")
	f.stock(rice, 10, "10")
	cust := f.customer("20")

	tests := []struct {
		name string
		in   pos.SaleInput
	}{
		{"no items", pos.SaleInput{}},
		{"bad payment type", pos.SaleInput{PaymentType: "barter", Items: []pos.SaleItemInput{{ProductID: rice, Quantity: 1}}}},
		{"credit without customer", pos.SaleInput{PaymentType: ledger.PaymentCredit, Items: []pos.SaleItemInput{{ProductID: rice, Quantity: 1}}}},
		{"zero quantity", pos.SaleInput{Items: []pos.SaleItemInput{{ProductID: rice, Quantity: 0}}}},
		{"discount above subtotal", pos.SaleInput{Discount: dec("16"), Items: []pos.SaleItemInput{{ProductID: rice, Quantity: 1}}}},
		{"credit limit", pos.SaleInput{CustomerID: &cust, PaymentType: ledger.PaymentCredit, Items: []pos.SaleItemInput{{ProductID: rice, Quantity: 2}}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.proc.Sale(f.ctx, tc.in)
			assert.ErrorIs(t, err, ledger.ErrValidation)
		})
	}
	assert.Equal(t, int64(10), f.onHand(rice))
}

// =============================================================================
// CREDIT SALES
// =============================================================================

func TestCreditSale_PaymentAndWriteOff(t *testing.T) {
	// GIVEN: A credit sale of 75
	f := newFixture(t, pos.Options{})
	rice := f.product("10", "15")
	f.stock(rice, 20, "10")
	cust := f.customer("0")
	sale, err := f.proc.Sale(f.ctx, pos.SaleInput{
		CustomerID: &cust, PaymentType: ledger.PaymentCredit,
		Items: []pos.SaleItemInput{{ProductID: rice, Quantity: 5}},
	})
	require.NoError(t, err)
	f.assertBalance(ledger.AcctAccountsReceivable, "75")

	open, err := f.proc.OutstandingCreditSales(f.ctx, &cust)
	require.NoError(t, err)
	require.Len(t, open, 1)

	// WHEN: The customer pays 25 against it
	pmt, err := f.proc.CustomerPayment(f.ctx, pos.CustomerPaymentInput{CustomerID: cust, SaleID: &sale.SaleID, Amount: dec("25")})
	require.NoError(t, err)
	assert.Equal(t, "CUST-PMT-1", pmt.Reference)
	f.assertBalance(ledger.AcctCash, "25")
	f.assertBalance(ledger.AcctAccountsReceivable, "50")

	// WHEN: The rest is written off
	wo, err := f.proc.WriteOff(f.ctx, pos.WriteOffInput{SaleID: sale.SaleID, Amount: dec("50"), Description: "customer left town"})
	require.NoError(t, err)

	// THEN: Receivable is cleared and the sale is terminal
	assert.Equal(t, "BD-1", wo.Reference)
	f.assertBalance(ledger.AcctBadDebtExpense, "50")
	f.assertBalance(ledger.AcctAccountsReceivable, "0")
	stored, err := f.books.Store().GetSale(f.ctx, sale.SaleID)
	require.NoError(t, err)
	assert.Equal(t, ledger.SaleWrittenOff, stored.Status)

	c, err := f.books.Store().GetCustomer(f.ctx, cust)
	require.NoError(t, err)
	assert.True(t, c.Balance.IsZero())

	open, err = f.proc.OutstandingCreditSales(f.ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, open)

	// A second write-off is no longer valid.
	_, err = f.proc.WriteOff(f.ctx, pos.WriteOffInput{SaleID: sale.SaleID, Amount: dec("1")})
	assert.ErrorIs(t, err, ledger.ErrValidation)
	f.assertBalanced()
}

func TestCustomerPayment_WithoutSaleSettlesOldestFirst(t *testing.T) {
	// GIVEN: Two credit sales to one customer, 75 then 30
	f := newFixture(t, pos.Options{})
	rice := f.product("10", "15")
	f.stock(rice, 20, "10")
	cust := f.customer("0")
	older, err := f.proc.Sale(f.ctx, pos.SaleInput{
		CustomerID: &cust, PaymentType: ledger.PaymentCredit, Date: fixedNow.AddDate(0, 0, -1),
		Items: []pos.SaleItemInput{{ProductID: rice, Quantity: 5}},
	})
	require.NoError(t, err)
	newer, err := f.proc.Sale(f.ctx, pos.SaleInput{
		CustomerID: &cust, PaymentType: ledger.PaymentCredit,
		Items: []pos.SaleItemInput{{ProductID: rice, Quantity: 2}},
	})
	require.NoError(t, err)

	// WHEN: The customer pays 75 with no sale named
	_, err = f.proc.CustomerPayment(f.ctx, pos.CustomerPaymentInput{CustomerID: cust, Amount: dec("75")})
	require.NoError(t, err)

	// THEN: The older sale is settled and drops off the open list
	open, err := f.proc.OutstandingCreditSales(f.ctx, &cust)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, newer.SaleID, open[0].ID)
	stored, err := f.books.Store().GetSale(f.ctx, older.SaleID)
	require.NoError(t, err)
	assert.True(t, dec("75").Equal(stored.Paid))

	// A settled sale can no longer be written off.
	_, err = f.proc.WriteOff(f.ctx, pos.WriteOffInput{SaleID: older.SaleID, Amount: dec("75")})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	// Paying more than the customer owes is refused.
	_, err = f.proc.CustomerPayment(f.ctx, pos.CustomerPaymentInput{CustomerID: cust, Amount: dec("500")})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	f.assertBalance(ledger.AcctAccountsReceivable, "30")
	c, err := f.books.Store().GetCustomer(f.ctx, cust)
	require.NoError(t, err)
	assert.True(t, dec("30").Equal(c.Balance))
	f.assertBalanced()
}

func TestWriteOff_LimitedToOutstanding(t *testing.T) {
	// GIVEN: A credit sale of 75 with 25 already paid
	f := newFixture(t, pos.Options{})
	rice := f.product("10", "15")
	f.stock(rice, 20, "10")
	cust := f.customer("0")
	sale, err := f.proc.Sale(f.ctx, pos.SaleInput{
		CustomerID: &cust, PaymentType: ledger.PaymentCredit,
		Items: []pos.SaleItemInput{{ProductID: rice, Quantity: 5}},
	})
	require.NoError(t, err)
	_, err = f.proc.CustomerPayment(f.ctx, pos.CustomerPaymentInput{CustomerID: cust, SaleID: &sale.SaleID, Amount: dec("25")})
	require.NoError(t, err)

	// WHEN: The full sale total is written off
	_, err = f.proc.WriteOff(f.ctx, pos.WriteOffInput{SaleID: sale.SaleID, Amount: dec("75")})

	// THEN: It is refused and receivables are untouched
	assert.ErrorIs(t, err, ledger.ErrValidation)
	f.assertBalance(ledger.AcctAccountsReceivable, "50")
	f.assertBalance(ledger.AcctBadDebtExpense, "0")
}

func TestWriteOff_Validation(t *testing.T) {
	f := newFixture(t, pos.Options{})
	rice := f.product("10", "15")
	f.stock(rice, 20, "10")
	cust := f.customer("0")
	cash, err := f.proc.Sale(f.ctx, pos.SaleInput{Items: []pos.SaleItemInput{{ProductID: rice, Quantity: 1}}})
	require.NoError(t, err)
	credit, err := f.proc.Sale(f.ctx, pos.SaleInput{
		CustomerID: &cust, PaymentType: ledger.PaymentCredit,
		Items: []pos.SaleItemInput{{ProductID: rice, Quantity: 2}},
	})
	require.NoError(t, err)

	tests := []struct {
		name string
		in   pos.WriteOffInput
	}{
		{"unknown sale", pos.WriteOffInput{SaleID: 999, Amount: dec("1")}},
		{"cash sale", pos.WriteOffInput{SaleID: cash.SaleID, Amount: dec("1")}},
		{"zero amount", pos.WriteOffInput{SaleID: credit.SaleID, Amount: dec("0")}},
		{"above outstanding", pos.WriteOffInput{SaleID: credit.SaleID, Amount: dec("30.01")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.proc.WriteOff(f.ctx, tc.in)
			assert.ErrorIs(t, err, ledger.ErrValidation)
			assert.Equal(t, ledger.KindValidation, ledger.Classify(err))
		})
	}
	f.assertBalance(ledger.AcctBadDebtExpense, "0")
}

func TestCustomerPayment_CannotExceedOutstanding(t *testing.T) {
	f := newFixture(t, pos.Options{})
	rice := f.product("10", "15")
	f.stock(rice, 5, "10")
	cust := f.customer("0")
	sale, err := f.proc.Sale(f.ctx, pos.SaleInput{
		CustomerID: &cust, PaymentType: ledger.PaymentCredit,
		Items: []pos.SaleItemInput{{ProductID: rice, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = f.proc.CustomerPayment(f.ctx, pos.CustomerPaymentInput{CustomerID: cust, SaleID: &sale.SaleID, Amount: dec("15.01")})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	_, err = f.proc.CustomerPayment(f.ctx, pos.CustomerPaymentInput{CustomerID: 42, Amount: dec("1")})
	assert.ErrorIs(t, err, ledger.ErrCustomerNotFound)
	f.assertBalance(ledger.AcctCash, "0")
}

// =============================================================================
// PURCHASES
// =============================================================================

func TestPurchase_CreditUpdatesSupplierAndCostPrice(t *testing.T) {
	f := newFixture(t, pos.Options{})
	rice := f.product("10", "15")
	sup := f.supplier()

	res, err := f.proc.Purchase(f.ctx, pos.PurchaseInput{
		SupplierID: &sup, PaymentType: ledger.PaymentCredit,
		Items: []pos.PurchaseItemInput{{ProductID: rice, Quantity: 10, UnitCost: dec("11.50")}},
	})
	require.NoError(t, err)

	assert.Equal(t, "PUR-1", res.Reference)
	require.Len(t, res.LotIDs, 1)
	f.assertBalance(ledger.AcctInventory, "115")
	f.assertBalance(ledger.AcctAccountsPayable, "115")
	assert.Equal(t, int64(10), f.onHand(rice))

	p, err := f.books.Inventory().Product(f.ctx, rice)
	require.NoError(t, err)
	assert.True(t, dec("11.50").Equal(p.CostPrice))
	s, err := f.books.Store().GetSupplier(f.ctx, sup)
	require.NoError(t, err)
	assert.True(t, dec("115").Equal(s.Balance))

	entry, err := f.books.Journal().Entry(f.ctx, res.EntryID)
	require.NoError(t, err)
	assert.Equal(t, ledger.JournalAccountsPayable, entry.Type)

	_, err = f.proc.Purchase(f.ctx, pos.PurchaseInput{
		PaymentType: ledger.PaymentCredit,
		Items:       []pos.PurchaseItemInput{{ProductID: rice, Quantity: 1, UnitCost: dec("1")}},
	})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestPurchaseReturn_FollowsOriginalPaymentType(t *testing.T) {
	// GIVEN: One cash and one credit purchase of the same product
	f := newFixture(t, pos.Options{})
	rice := f.product("10", "15")
	sup := f.supplier()
	cashBuy, err := f.proc.Purchase(f.ctx, pos.PurchaseInput{
		PaymentType: ledger.PaymentCash,
		Items:       []pos.PurchaseItemInput{{ProductID: rice, Quantity: 10, UnitCost: dec("5")}},
	})
	require.NoError(t, err)
	creditBuy, err := f.proc.Purchase(f.ctx, pos.PurchaseInput{
		SupplierID: &sup, PaymentType: ledger.PaymentCredit,
		Items: []pos.PurchaseItemInput{{ProductID: rice, Quantity: 10, UnitCost: dec("6")}},
	})
	require.NoError(t, err)
	f.assertBalance(ledger.AcctCash, "-50")
	f.assertBalance(ledger.AcctAccountsPayable, "60")

	// WHEN: 4 units go back against the credit purchase
	res, err := f.proc.PurchaseReturn(f.ctx, pos.PurchaseReturnInput{
		PurchaseID: &creditBuy.PurchaseID, ProductID: rice, Quantity: 4, Reason: "wrong grade",
		PaymentType: ledger.PaymentCash, // ignored, the purchase decides
	})
	require.NoError(t, err)

	// THEN: Payables drop at that purchase's cost; cash is untouched
	assert.Equal(t, ledger.PaymentCredit, res.PaymentType)
	assert.True(t, dec("24").Equal(res.Amount))
	f.assertBalance(ledger.AcctAccountsPayable, "36")
	f.assertBalance(ledger.AcctCash, "-50")
	s, err := f.books.Store().GetSupplier(f.ctx, sup)
	require.NoError(t, err)
	assert.True(t, dec("36").Equal(s.Balance))

	// WHEN: 2 units go back against the cash purchase
	res, err = f.proc.PurchaseReturn(f.ctx, pos.PurchaseReturnInput{
		PurchaseID: &cashBuy.PurchaseID, ProductID: rice, Quantity: 2,
	})
	require.NoError(t, err)

	// THEN: Cash comes back
	assert.Equal(t, ledger.PaymentCash, res.PaymentType)
	f.assertBalance(ledger.AcctCash, "-40")
	f.assertBalance(ledger.AcctInventory, "76")
	assert.Equal(t, int64(14), f.onHand(rice))
	f.assertBalanced()

	// More than the purchase still holds is refused.
	_, err = f.proc.PurchaseReturn(f.ctx, pos.PurchaseReturnInput{
		PurchaseID: &cashBuy.PurchaseID, ProductID: rice, Quantity: 9,
	})
	assert.ErrorIs(t, err, ledger.ErrInsufficientStock)

	_, err = f.proc.PurchaseReturn(f.ctx, pos.PurchaseReturnInput{
		PurchaseID: ptr(int64(99)), ProductID: rice, Quantity: 1,
	})
	assert.ErrorIs(t, err, ledger.ErrPurchaseNotFound)
}

func TestSupplierPayment(t *testing.T) {
	// GIVEN: 100 cash and a credit purchase of 50
	f := newFixture(t, pos.Options{})
	rice := f.product("10", "15")
	sup := f.supplier()
	_, err := f.proc.CashInvestment(f.ctx, pos.InvestmentInput{Amount: dec("100")})
	require.NoError(t, err)
	_, err = f.proc.Purchase(f.ctx, pos.PurchaseInput{
		SupplierID: &sup, PaymentType: ledger.PaymentCredit,
		Items: []pos.PurchaseItemInput{{ProductID: rice, Quantity: 5, UnitCost: dec("10")}},
	})
	require.NoError(t, err)

	// WHEN: 30 is paid
	res, err := f.proc.SupplierPayment(f.ctx, pos.SupplierPaymentInput{SupplierID: sup, Amount: dec("30")})
	require.NoError(t, err)

	// THEN: Cash and payables both drop
	assert.Equal(t, "SUPP-PMT-2", res.Reference)
	f.assertBalance(ledger.AcctCash, "70")
	f.assertBalance(ledger.AcctAccountsPayable, "20")
	f.assertBalance(ledger.AcctOwnerCapital, "100")

	_, err = f.proc.SupplierPayment(f.ctx, pos.SupplierPaymentInput{SupplierID: sup, Amount: dec("-1")})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestSupplierPayment_SettlesOldestPurchaseFirst(t *testing.T) {
	// GIVEN: Two credit purchases from one supplier, 40 then 60
	f := newFixture(t, pos.Options{})
	rice := f.product("10", "15")
	sup := f.supplier()
	first, err := f.proc.Purchase(f.ctx, pos.PurchaseInput{
		SupplierID: &sup, PaymentType: ledger.PaymentCredit, Date: fixedNow.AddDate(0, 0, -2),
		Items: []pos.PurchaseItemInput{{ProductID: rice, Quantity: 4, UnitCost: dec("10")}},
	})
	require.NoError(t, err)
	second, err := f.proc.Purchase(f.ctx, pos.PurchaseInput{
		SupplierID: &sup, PaymentType: ledger.PaymentCredit, Date: fixedNow.AddDate(0, 0, -1),
		Items: []pos.PurchaseItemInput{{ProductID: rice, Quantity: 6, UnitCost: dec("10")}},
	})
	require.NoError(t, err)

	open, err := f.proc.OutstandingCreditPurchases(f.ctx, &sup)
	require.NoError(t, err)
	require.Len(t, open, 2)

	// WHEN: 50 is paid with no purchase named
	_, err = f.proc.SupplierPayment(f.ctx, pos.SupplierPaymentInput{SupplierID: sup, Amount: dec("50")})
	require.NoError(t, err)

	// THEN: The first purchase is settled and 10 went to the second
	open, err = f.proc.OutstandingCreditPurchases(f.ctx, nil)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, second.PurchaseID, open[0].ID)
	assert.True(t, dec("50").Equal(open[0].Outstanding()), open[0].Outstanding().String())
	stored, err := f.books.Store().GetPurchase(f.ctx, first.PurchaseID)
	require.NoError(t, err)
	assert.True(t, dec("40").Equal(stored.Paid))

	// WHEN: The rest is paid against the second purchase by id
	_, err = f.proc.SupplierPayment(f.ctx, pos.SupplierPaymentInput{
		SupplierID: sup, PurchaseID: &second.PurchaseID, Amount: dec("50"),
	})
	require.NoError(t, err)

	// THEN: Nothing is owed and a further payment is refused
	open, err = f.proc.OutstandingCreditPurchases(f.ctx, &sup)
	require.NoError(t, err)
	assert.Empty(t, open)
	f.assertBalance(ledger.AcctAccountsPayable, "0")

	_, err = f.proc.SupplierPayment(f.ctx, pos.SupplierPaymentInput{SupplierID: sup, Amount: dec("1")})
	assert.ErrorIs(t, err, ledger.ErrValidation)
	f.assertBalance(ledger.AcctAccountsPayable, "0")
	f.assertBalanced()
}

func TestSupplierPayment_PurchaseMustBelongToSupplierAndBeOpen(t *testing.T) {
	f := newFixture(t, pos.Options{})
	rice := f.product("10", "15")
	sup := f.supplier()
	other := f.supplier()
	credit, err := f.proc.Purchase(f.ctx, pos.PurchaseInput{
		SupplierID: &sup, PaymentType: ledger.PaymentCredit,
		Items: []pos.PurchaseItemInput{{ProductID: rice, Quantity: 2, UnitCost: dec("10")}},
	})
	require.NoError(t, err)
	_, err = f.proc.Purchase(f.ctx, pos.PurchaseInput{
		SupplierID: &other, PaymentType: ledger.PaymentCredit,
		Items: []pos.PurchaseItemInput{{ProductID: rice, Quantity: 1, UnitCost: dec("10")}},
	})
	require.NoError(t, err)

	tests := []struct {
		name string
		in   pos.SupplierPaymentInput
	}{
		{"someone else's purchase", pos.SupplierPaymentInput{SupplierID: other, PurchaseID: &credit.PurchaseID, Amount: dec("5")}},
		{"above purchase outstanding", pos.SupplierPaymentInput{SupplierID: sup, PurchaseID: &credit.PurchaseID, Amount: dec("20.01")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.proc.SupplierPayment(f.ctx, tc.in)
			assert.ErrorIs(t, err, ledger.ErrValidation)
		})
	}
	f.assertBalance(ledger.AcctAccountsPayable, "30")
}

func TestPurchaseReturn_SettlesCreditPurchase(t *testing.T) {
	// GIVEN: A credit purchase of 10 units at 6
	f := newFixture(t, pos.Options{})
	rice := f.product("6", "15")
	sup := f.supplier()
	buy, err := f.proc.Purchase(f.ctx, pos.PurchaseInput{
		SupplierID: &sup, PaymentType: ledger.PaymentCredit,
		Items: []pos.PurchaseItemInput{{ProductID: rice, Quantity: 10, UnitCost: dec("6")}},
	})
	require.NoError(t, err)

	// WHEN: 4 units go back against it
	res, err := f.proc.PurchaseReturn(f.ctx, pos.PurchaseReturnInput{PurchaseID: &buy.PurchaseID, ProductID: rice, Quantity: 4})
	require.NoError(t, err)

	// THEN: The purchase owes 36 and the return is referenced by its row
	assert.Equal(t, "PR-1", res.Reference)
	open, err := f.proc.OutstandingCreditPurchases(f.ctx, &sup)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.True(t, dec("36").Equal(open[0].Outstanding()))
	f.assertBalance(ledger.AcctAccountsPayable, "36")
}

// =============================================================================
// RETURNS AND ADJUSTMENTS
// =============================================================================

func TestSalesReturn_ReversesRevenueAndCost(t *testing.T) {
	// GIVEN: 5 units sold for cash at 15 with a FIFO cost of 10
	f := newFixture(t, pos.Options{})
	rice := f.product("10", "15")
	f.stock(rice, 20, "10")
	sale, err := f.proc.Sale(f.ctx, pos.SaleInput{Items: []pos.SaleItemInput{{ProductID: rice, Quantity: 5}}})
	require.NoError(t, err)

	// WHEN: 2 units come back
	res, err := f.proc.SalesReturn(f.ctx, pos.SalesReturnInput{SaleID: &sale.SaleID, ProductID: rice, Quantity: 2, Reason: "torn bag"})
	require.NoError(t, err)

	// THEN: Four lines reverse both sides
	assert.True(t, dec("30").Equal(res.Amount))
	assert.True(t, dec("20").Equal(res.Cost))
	entry, err := f.books.Journal().Entry(f.ctx, res.EntryID)
	require.NoError(t, err)
	assert.Len(t, entry.Lines, 4)
	f.assertBalance(ledger.AcctSalesReturns, "-30")
	f.assertBalance(ledger.AcctCash, "45")
	f.assertBalance(ledger.AcctCOGS, "30")
	f.assertBalance(ledger.AcctInventory, "170")
	assert.Equal(t, int64(17), f.onHand(rice))

	lot, err := f.books.Store().GetLot(f.ctx, res.LotID)
	require.NoError(t, err)
	assert.Equal(t, ledger.LotSalesReturn, lot.Source)
	assert.Nil(t, lot.PurchaseID)

	income, err := f.books.Reports().IncomeSummary(f.ctx)
	require.NoError(t, err)
	assert.True(t, dec("45").Equal(income.NetSales))
	assert.True(t, dec("15").Equal(income.GrossProfit))
	f.assertBalanced()

	// Returning more than was sold is refused.
	_, err = f.proc.SalesReturn(f.ctx, pos.SalesReturnInput{SaleID: &sale.SaleID, ProductID: rice, Quantity: 6})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestSalesReturn_SameUnitsOnlyOnce(t *testing.T) {
	// GIVEN: A cash sale of 5 units at 15
	f := newFixture(t, pos.Options{})
	rice := f.product("10", "15")
	f.stock(rice, 20, "10")
	sale, err := f.proc.Sale(f.ctx, pos.SaleInput{Items: []pos.SaleItemInput{{ProductID: rice, Quantity: 5}}})
	require.NoError(t, err)

	// WHEN: All 5 come back
	first, err := f.proc.SalesReturn(f.ctx, pos.SalesReturnInput{SaleID: &sale.SaleID, ProductID: rice, Quantity: 5})
	require.NoError(t, err)

	// THEN: The same units cannot be refunded again, in full or in part
	for _, n := range []int64{5, 1} {
		_, err = f.proc.SalesReturn(f.ctx, pos.SalesReturnInput{SaleID: &sale.SaleID, ProductID: rice, Quantity: n})
		assert.ErrorIs(t, err, ledger.ErrValidation, "quantity %d", n)
	}
	assert.Equal(t, "SR-1", first.Reference)
	f.assertBalance(ledger.AcctCash, "0")
	assert.Equal(t, int64(20), f.onHand(rice))
	f.assertBalanced()
}

func TestSalesReturn_PartialReturnsAddUp(t *testing.T) {
	// GIVEN: A cash sale of 5 units
	f := newFixture(t, pos.Options{})
	rice := f.product("10", "15")
	f.stock(rice, 20, "10")
	sale, err := f.proc.Sale(f.ctx, pos.SaleInput{Items: []pos.SaleItemInput{{ProductID: rice, Quantity: 5}}})
	require.NoError(t, err)

	// WHEN: 2 and then 3 units come back
	a, err := f.proc.SalesReturn(f.ctx, pos.SalesReturnInput{SaleID: &sale.SaleID, ProductID: rice, Quantity: 2})
	require.NoError(t, err)
	b, err := f.proc.SalesReturn(f.ctx, pos.SalesReturnInput{SaleID: &sale.SaleID, ProductID: rice, Quantity: 3})
	require.NoError(t, err)

	// THEN: Each return has its own reference and nothing is left to return
	assert.Equal(t, "SR-1", a.Reference)
	assert.Equal(t, "SR-2", b.Reference)
	_, err = f.proc.SalesReturn(f.ctx, pos.SalesReturnInput{SaleID: &sale.SaleID, ProductID: rice, Quantity: 1})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestAdjust_DecreaseValuation(t *testing.T) {
	tests := []struct {
		name      string
		valuation pos.AdjustmentValuation
		wantLoss  string
	}{
		{"fifo consumes the oldest lot cost", pos.ValuationFIFO, "20"},
		{"current cost uses the product price", pos.ValuationCurrentCost, "24"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// GIVEN: An old lot at 10 and a product cost price of 12
			f := newFixture(t, pos.Options{AdjustmentValuation: tc.valuation})
			rice := f.product("12", "15")
			f.stock(rice, 5, "10")

			// WHEN: 2 units are written down
			res, err := f.proc.Adjust(f.ctx, pos.AdjustmentInput{
				ProductID: rice, Direction: ledger.AdjustDecrease, Quantity: 2, Reason: "spoiled",
			})
			require.NoError(t, err)

			// THEN
			assert.True(t, dec(tc.wantLoss).Equal(res.Amount))
			assert.Equal(t, "ADJ-1", res.Reference)
			f.assertBalance(ledger.AcctOperatingExpenses, tc.wantLoss)
			assert.Equal(t, int64(3), f.onHand(rice))
		})
	}
}

func TestAdjust_IncreaseAddsLotAndOtherIncome(t *testing.T) {
	f := newFixture(t, pos.Options{})
	rice := f.product("12", "15")

	res, err := f.proc.Adjust(f.ctx, pos.AdjustmentInput{
		ProductID: rice, Direction: ledger.AdjustIncrease, Quantity: 3, Reason: "found in back room",
	})
	require.NoError(t, err)

	f.assertBalance(ledger.AcctInventory, "36")
	f.assertBalance(ledger.AcctOtherIncome, "36")
	lot, err := f.books.Store().GetLot(f.ctx, res.LotID)
	require.NoError(t, err)
	assert.Equal(t, ledger.LotAdjustment, lot.Source)
	f.assertBalanced()

	_, err = f.proc.Adjust(f.ctx, pos.AdjustmentInput{ProductID: rice, Direction: "sideways", Quantity: 1})
	assert.ErrorIs(t, err, ledger.ErrValidation)
	_, err = f.proc.Adjust(f.ctx, pos.AdjustmentInput{ProductID: rice, Direction: ledger.AdjustDecrease, Quantity: 4})
	assert.ErrorIs(t, err, ledger.ErrInsufficientStock)
}

// =============================================================================
// CASH
// =============================================================================

func TestExpenseAccount_Mapping(t *testing.T) {
	tests := map[string]string{
		"rent":            ledger.AcctRentExpense,
		"Utilities":       ledger.AcctUtilitiesExpense,
		"office_supplies": ledger.AcctOfficeSuppliesExpense,
		"advertising":     ledger.AcctAdvertisingExpense,
		"general":         ledger.AcctOperatingExpenses,
		"coffee":          ledger.AcctOperatingExpenses,
		"":                ledger.AcctOperatingExpenses,
	}
	for category, want := range tests {
		assert.Equal(t, want, pos.ExpenseAccount(category), category)
	}
}

func TestExpense_CreditGoesToPayables(t *testing.T) {
	f := newFixture(t, pos.Options{})

	res, err := f.proc.Expense(f.ctx, pos.ExpenseInput{
		Category: "rent", Amount: dec("800"), PaymentType: ledger.PaymentCredit, Description: "March rent",
	})
	require.NoError(t, err)

	assert.Equal(t, "EXP-1", res.Reference)
	f.assertBalance(ledger.AcctRentExpense, "800")
	f.assertBalance(ledger.AcctAccountsPayable, "800")
	f.assertBalance(ledger.AcctCash, "0")

	_, err = f.proc.Expense(f.ctx, pos.ExpenseInput{Category: "rent", Amount: dec("0")})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t, pos.Options{})

	_, err := f.proc.RegisterProduct(f.ctx, pos.ProductInput{Name: " "})
	assert.ErrorIs(t, err, ledger.ErrValidation)
	_, err = f.proc.RegisterProduct(f.ctx, pos.ProductInput{Name: "Rice", CostPrice: dec("-1")})
	assert.ErrorIs(t, err, ledger.ErrValidation)
	_, err = f.proc.RegisterCustomer(f.ctx, pos.CustomerInput{})
	assert.ErrorIs(t, err, ledger.ErrValidation)
	_, err = f.proc.RegisterSupplier(f.ctx, pos.SupplierInput{})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func ptr[T any](v T) *T { return &v }
