/*
handlers_test.go - HTTP tests for the API handlers

Tests drive the full router against an in-memory SQLite database:
- Checkout flow and the books it leaves behind
- Error mapping (400 request shape, 404, 409 stock, 422 rules)
- Credit sale lifecycle over HTTP
- Rate limiting
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/pos-engine/ledger"
	"github.com/warp/pos-engine/pos"
	"github.com/warp/pos-engine/store/sqlite"
)

var testNow = time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

type testServer struct {
	t      *testing.T
	books  *ledger.Books
	router http.Handler
}

func newTestServer(t *testing.T, opts RouterOptions) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	books := ledger.NewBooks(store, ledger.WithClock(func() time.Time { return testNow }))
	_, err = books.Chart().Seed(context.Background(), ledger.DefaultChart())
	require.NoError(t, err)

	proc := pos.NewProcessor(books, pos.Options{})
	return &testServer{t: t, books: books, router: NewRouter(NewHandler(proc), opts)}
}

// do sends a request and returns the recorder.
func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// expect asserts the status and decodes the body into dst.
func (s *testServer) expect(rec *httptest.ResponseRecorder, status int, dst any) {
	s.t.Helper()
	require.Equal(s.t, status, rec.Code, rec.Body.String())
	if dst != nil {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), dst))
	}
}

// stockedProduct registers a product and opens it with stock.
func (s *testServer) stockedProduct(cost, price string, qty int64) int64 {
	s.t.Helper()
	var created CreatedDTO
	s.expect(s.do("POST", "/api/products", map[string]any{
		"name": "Widget", "sku": "W-1", "cost_price": cost, "selling_price": price,
	}), http.StatusCreated, &created)
	if qty > 0 {
		s.expect(s.do("POST", "/api/inventory/beginning", map[string]any{
			"product_id": created.ID, "quantity": qty,
		}), http.StatusCreated, nil)
	}
	return created.ID
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

// =============================================================================
// CHECKOUT
// =============================================================================

func TestAPI_CashSaleUpdatesBooks(t *testing.T) {
	// GIVEN: A product with 20 units opened at 10.00
	s := newTestServer(t, RouterOptions{})
	id := s.stockedProduct("10", "15", 20)

	// WHEN: 5 units are sold for cash
	var res SaleResultDTO
	s.expect(s.do("POST", "/api/sales", map[string]any{
		"items": []map[string]any{{"product_id": id, "quantity": 5}},
	}), http.StatusCreated, &res)

	// THEN: The sale is posted at the selling price and FIFO cost
	assert.Equal(t, "SALE-1", res.Reference)
	assert.True(t, dec("75").Equal(res.Amount), res.Amount.String())
	assert.True(t, dec("50").Equal(res.Cost), res.Cost.String())

	var sale SaleDTO
	s.expect(s.do("GET", "/api/sales/1", nil), http.StatusOK, &sale)
	assert.Equal(t, "completed", sale.Status)
	require.Len(t, sale.Items, 1)
	assert.True(t, dec("10").Equal(sale.Items[0].UnitCost))

	var product ProductDTO
	s.expect(s.do("GET", "/api/products/1", nil), http.StatusOK, &product)
	assert.Equal(t, int64(15), product.Quantity)

	var tb TrialBalanceDTO
	s.expect(s.do("GET", "/api/reports/trial-balance", nil), http.StatusOK, &tb)
	assert.True(t, tb.Balanced)
	assert.True(t, dec("325").Equal(tb.TotalDebits), tb.TotalDebits.String())

	var cash []LedgerRowDTO
	s.expect(s.do("GET", "/api/accounts/Cash/ledger", nil), http.StatusOK, &cash)
	require.Len(t, cash, 1)
	assert.Equal(t, "SALE-1", cash[0].Reference)
	assert.True(t, dec("75").Equal(cash[0].Balance))

	var rec ReconciliationDTO
	s.expect(s.do("GET", "/api/reports/inventory", nil), http.StatusOK, &rec)
	assert.True(t, rec.Balanced)
	assert.True(t, dec("150").Equal(rec.LotValuation), rec.LotValuation.String())
}

func TestAPI_AccountNameWithSpaces(t *testing.T) {
	// GIVEN: Opening stock booked against Owner Capital
	s := newTestServer(t, RouterOptions{})
	s.stockedProduct("10", "15", 20)

	// WHEN: The summary is requested with an encoded name
	var summary AccountSummaryDTO
	s.expect(s.do("GET", "/api/accounts/Owner%20Capital/summary", nil), http.StatusOK, &summary)

	// THEN: The equity balance is visible
	assert.Equal(t, "3001", summary.Code)
	assert.True(t, dec("200").Equal(summary.Balance))
	assert.Equal(t, 1, summary.TransactionCount)
}

func TestAPI_AccountNameWithPercentSign(t *testing.T) {
	// GIVEN: An account whose name contains a literal percent sign
	s := newTestServer(t, RouterOptions{})
	_, err := s.books.Chart().Register(context.Background(), ledger.Account{
		Code: "6990", Name: "Shrinkage 5%", Type: ledger.AccountExpense,
	})
	require.NoError(t, err)
	s.expect(s.do("POST", "/api/journal", map[string]any{
		"description": "Count loss",
		"lines": []map[string]any{
			{"account": "Shrinkage 5%", "debit": "12"},
			{"account": ledger.AcctCash, "credit": "12"},
		},
	}), http.StatusCreated, nil)

	// WHEN: Its balance is requested with the name percent-encoded once
	var bal BalanceDTO
	s.expect(s.do("GET", "/api/accounts/Shrinkage%205%25/balance", nil), http.StatusOK, &bal)

	// THEN: The name is decoded exactly once
	assert.Equal(t, "Shrinkage 5%", bal.Account)
	assert.True(t, dec("12").Equal(bal.Balance), bal.Balance.String())
}

func TestAPI_JournalFilter(t *testing.T) {
	// GIVEN: A beginning-inventory entry and a sale entry
	s := newTestServer(t, RouterOptions{})
	id := s.stockedProduct("10", "15", 20)
	s.expect(s.do("POST", "/api/sales", map[string]any{
		"items": []map[string]any{{"product_id": id, "quantity": 1}},
	}), http.StatusCreated, nil)

	// WHEN: Entries are filtered by type
	var entries []EntryDTO
	s.expect(s.do("GET", "/api/journal?type=sale", nil), http.StatusOK, &entries)

	// THEN: Only the sale is returned, with its lines in order
	require.Len(t, entries, 1)
	assert.Equal(t, "SALE-1", entries[0].Reference)
	assert.Equal(t, ledger.AcctCash, entries[0].Lines[0].Account)

	s.expect(s.do("GET", "/api/journal?type=bogus", nil), http.StatusBadRequest, nil)
	s.expect(s.do("GET", "/api/journal?from=03-01-2025", nil), http.StatusBadRequest, nil)
}

func TestAPI_ManualJournalEntry(t *testing.T) {
	s := newTestServer(t, RouterOptions{})

	// GIVEN: A balanced owner drawing
	var entry EntryDTO
	s.expect(s.do("POST", "/api/journal", map[string]any{
		"description": "Owner drawing",
		"lines": []map[string]any{
			{"account": ledger.AcctOwnerDrawings, "debit": "30"},
			{"account": ledger.AcctCash, "credit": "30"},
		},
	}), http.StatusCreated, &entry)

	// THEN: It is posted as general with both lines
	assert.Equal(t, "general", entry.Type)
	require.Len(t, entry.Lines, 2)

	var bal BalanceDTO
	s.expect(s.do("GET", "/api/accounts/Cash/balance", nil), http.StatusOK, &bal)
	assert.True(t, dec("-30").Equal(bal.Balance), bal.Balance.String())

	// WHEN: An unbalanced entry is sent
	var resp ErrorResponse
	s.expect(s.do("POST", "/api/journal", map[string]any{
		"description": "Typo",
		"lines": []map[string]any{
			{"account": ledger.AcctOwnerDrawings, "debit": "30"},
			{"account": ledger.AcctCash, "credit": "3"},
		},
	}), http.StatusUnprocessableEntity, &resp)

	// THEN: It is rejected as unbalanced and the journal still balances
	assert.Equal(t, "unbalanced", resp.Code)
	var valid map[string]bool
	s.expect(s.do("GET", "/api/reports/validate", nil), http.StatusOK, &valid)
	assert.True(t, valid["balanced"])

	// Unknown accounts read as zero
	s.expect(s.do("GET", "/api/accounts/Petty%20Cash/balance", nil), http.StatusOK, &bal)
	assert.True(t, bal.Balance.IsZero())
}

func TestAPI_QuoteDoesNotConsume(t *testing.T) {
	// GIVEN: Two lots, 5 at 10 then 5 at 12
	s := newTestServer(t, RouterOptions{})
	id := s.stockedProduct("10", "15", 5)
	s.expect(s.do("POST", "/api/purchases", map[string]any{
		"items": []map[string]any{{"product_id": id, "quantity": 5, "unit_cost": "12"}},
	}), http.StatusCreated, nil)

	// WHEN: 7 units are quoted
	var quote QuoteDTO
	s.expect(s.do("GET", "/api/products/1/quote?quantity=7", nil), http.StatusOK, &quote)

	// THEN: The plan spans both lots and nothing moved
	assert.True(t, dec("74").Equal(quote.TotalCost), quote.TotalCost.String())
	require.Len(t, quote.Plan, 2)
	assert.Equal(t, int64(5), quote.Plan[0].Quantity)
	assert.Equal(t, int64(2), quote.Plan[1].Quantity)

	var lots []LotDTO
	s.expect(s.do("GET", "/api/products/1/lots", nil), http.StatusOK, &lots)
	require.Len(t, lots, 2)
	assert.Equal(t, int64(5), lots[0].QuantityRemaining)

	s.expect(s.do("GET", "/api/products/1/quote?quantity=11", nil), http.StatusConflict, nil)
	s.expect(s.do("GET", "/api/products/1/quote", nil), http.StatusBadRequest, nil)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestAPI_InsufficientStockIsConflict(t *testing.T) {
	// GIVEN: A product with 2 units
	s := newTestServer(t, RouterOptions{})
	id := s.stockedProduct("10", "15", 2)

	// WHEN: 3 units are sold
	var resp ErrorResponse
	s.expect(s.do("POST", "/api/sales", map[string]any{
		"items": []map[string]any{{"product_id": id, "quantity": 3}},
	}), http.StatusConflict, &resp)

	// THEN: The shortage is described and nothing was consumed
	assert.Equal(t, "insufficient_stock", resp.Code)
	details, ok := resp.Details.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 2, details["available"])
	assert.EqualValues(t, 3, details["requested"])

	var product ProductDTO
	s.expect(s.do("GET", "/api/products/1", nil), http.StatusOK, &product)
	assert.Equal(t, int64(2), product.Quantity)
}

func TestAPI_RequestShapeIsBadRequest(t *testing.T) {
	s := newTestServer(t, RouterOptions{})

	tests := []struct {
		name string
		path string
		body any
	}{
		{"malformed json", "/api/sales", `{"items": [`},
		{"no items", "/api/sales", map[string]any{"items": []any{}}},
		{"unknown payment type", "/api/sales", map[string]any{
			"payment_type": "barter",
			"items":        []map[string]any{{"product_id": 1, "quantity": 1}},
		}},
		{"zero quantity", "/api/purchases", map[string]any{
			"items": []map[string]any{{"product_id": 1, "quantity": 0, "unit_cost": "5"}},
		}},
		{"bad date", "/api/investments", map[string]any{"amount": "10", "date": "yesterday"}},
		{"bad direction", "/api/inventory/adjustments", map[string]any{
			"product_id": 1, "direction": "sideways", "quantity": 1,
		}},
		{"missing name", "/api/customers", map[string]any{"email": "a@b.c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.t = t
			s.expect(s.do("POST", tt.path, tt.body), http.StatusBadRequest, nil)
		})
	}
}

func TestAPI_BusinessRulesAreUnprocessable(t *testing.T) {
	// GIVEN: A credit sale without a customer and a negative investment
	s := newTestServer(t, RouterOptions{})
	id := s.stockedProduct("10", "15", 5)

	var resp ErrorResponse
	s.expect(s.do("POST", "/api/sales", map[string]any{
		"payment_type": "credit",
		"items":        []map[string]any{{"product_id": id, "quantity": 1}},
	}), http.StatusUnprocessableEntity, &resp)
	assert.Equal(t, "validation", resp.Code)

	s.expect(s.do("POST", "/api/investments", map[string]any{"amount": "-5"}),
		http.StatusUnprocessableEntity, nil)
}

func TestAPI_UnknownRecordsAreNotFound(t *testing.T) {
	s := newTestServer(t, RouterOptions{})

	for _, path := range []string{
		"/api/sales/99",
		"/api/products/99",
		"/api/customers/99",
		"/api/suppliers/99",
		"/api/journal/99",
		"/api/accounts/Petty%20Cash/ledger",
	} {
		var resp ErrorResponse
		s.expect(s.do("GET", path, nil), http.StatusNotFound, &resp)
		assert.Equal(t, "not_found", resp.Code, path)
	}
	s.expect(s.do("GET", "/api/sales/abc", nil), http.StatusBadRequest, nil)
}

// =============================================================================
// CREDIT LIFECYCLE
// =============================================================================

func TestAPI_CreditSalePaymentAndWriteOff(t *testing.T) {
	// GIVEN: A customer who bought 4 units on credit
	s := newTestServer(t, RouterOptions{})
	id := s.stockedProduct("10", "25", 10)
	var customer CreatedDTO
	s.expect(s.do("POST", "/api/customers", map[string]any{"name": "Ana", "email": "ana@example.com"}),
		http.StatusCreated, &customer)
	var sale SaleResultDTO
	s.expect(s.do("POST", "/api/sales", map[string]any{
		"customer_id":  customer.ID,
		"payment_type": "credit",
		"items":        []map[string]any{{"product_id": id, "quantity": 4}},
	}), http.StatusCreated, &sale)

	// WHEN: The customer pays 40 and the rest is written off
	s.expect(s.do("POST", "/api/payments/customers", map[string]any{
		"customer_id": customer.ID, "sale_id": sale.SaleID, "amount": "40",
	}), http.StatusCreated, nil)

	var open []SaleDTO
	s.expect(s.do("GET", "/api/customers/1/outstanding", nil), http.StatusOK, &open)
	require.Len(t, open, 1)
	assert.True(t, dec("60").Equal(open[0].Outstanding), open[0].Outstanding.String())

	var wo ResultDTO
	s.expect(s.do("POST", "/api/sales/1/write-off", map[string]any{"amount": "60"}),
		http.StatusCreated, &wo)
	assert.Equal(t, "BD-1", wo.Reference)

	// THEN: Nothing is outstanding and receivables are clear
	s.expect(s.do("GET", "/api/sales/outstanding", nil), http.StatusOK, &open)
	assert.Empty(t, open)

	var c CustomerDTO
	s.expect(s.do("GET", "/api/customers/1", nil), http.StatusOK, &c)
	assert.True(t, c.Balance.IsZero(), c.Balance.String())

	var income IncomeSummaryDTO
	s.expect(s.do("GET", "/api/reports/income", nil), http.StatusOK, &income)
	assert.True(t, dec("100").Equal(income.Revenue))
	assert.True(t, dec("60").Equal(income.Expenses), income.Expenses.String())

	var report IntegrityReport
	s.expect(s.do("GET", "/api/reports/integrity", nil), http.StatusOK, &report)
	assert.True(t, report.Healthy())
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func TestAPI_RateLimitPerClient(t *testing.T) {
	// GIVEN: A limit of 2 requests per minute
	s := newTestServer(t, RouterOptions{RateLimit: 2})

	// WHEN: A third request arrives from the same address
	s.expect(s.do("GET", "/healthz", nil), http.StatusOK, nil)
	s.expect(s.do("GET", "/healthz", nil), http.StatusOK, nil)
	rec := s.do("GET", "/healthz", nil)

	// THEN: It is rejected
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestAPI_CORSPreflight(t *testing.T) {
	s := newTestServer(t, RouterOptions{CORSOrigins: []string{"http://till.local"}})

	req := httptest.NewRequest("OPTIONS", "/api/sales", nil)
	req.Header.Set("Origin", "http://till.local")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, "http://till.local", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAPI_OutstandingPurchases(t *testing.T) {
	// GIVEN: A credit purchase of 8 units at 5 from one supplier
	s := newTestServer(t, RouterOptions{})
	id := s.stockedProduct("5", "9", 0)
	var supplier CreatedDTO
	s.expect(s.do("POST", "/api/suppliers", map[string]any{"name": "Acme"}), http.StatusCreated, &supplier)
	var purchase PurchaseResultDTO
	s.expect(s.do("POST", "/api/purchases", map[string]any{
		"supplier_id":  supplier.ID,
		"payment_type": "credit",
		"items":        []map[string]any{{"product_id": id, "quantity": 8, "unit_cost": "5"}},
	}), http.StatusCreated, &purchase)

	var open []PurchaseDTO
	s.expect(s.do("GET", "/api/purchases/outstanding?supplier_id=1", nil), http.StatusOK, &open)
	require.Len(t, open, 1)
	assert.True(t, dec("40").Equal(open[0].Outstanding), open[0].Outstanding.String())
	assert.Equal(t, "PUR-1", open[0].Reference)

	// WHEN: Part is paid against the purchase
	s.expect(s.do("POST", "/api/payments/suppliers", map[string]any{
		"supplier_id": supplier.ID, "purchase_id": purchase.PurchaseID, "amount": "15",
	}), http.StatusCreated, nil)

	// THEN: The open balance follows
	s.expect(s.do("GET", "/api/purchases/outstanding", nil), http.StatusOK, &open)
	require.Len(t, open, 1)
	assert.True(t, dec("15").Equal(open[0].Paid))
	assert.True(t, dec("25").Equal(open[0].Outstanding))

	// Overpaying the supplier is a business rule failure.
	s.expect(s.do("POST", "/api/payments/suppliers", map[string]any{
		"supplier_id": supplier.ID, "amount": "26",
	}), http.StatusUnprocessableEntity, nil)
	s.expect(s.do("GET", "/api/purchases/outstanding?supplier_id=abc", nil), http.StatusBadRequest, nil)
}
