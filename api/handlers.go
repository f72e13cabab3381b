/*
handlers.go - HTTP API handlers for the point-of-sale books

PURPOSE:
  Exposes the accounting engine and the transaction processors via REST.
  Handles HTTP request/response, JSON serialization and request shape
  validation, then delegates to the pos and ledger packages.

ENDPOINTS:
  Master data:
    GET    /api/products                   List products with on-hand stock
    POST   /api/products                   Register product
    GET    /api/products/{id}              Product details
    GET    /api/products/{id}/lots         Lots, FIFO order
    GET    /api/products/{id}/quote?quantity=N  FIFO cost quote, nothing consumed
    POST   /api/customers                  Register customer
    GET    /api/customers/{id}             Customer with receivable balance
    GET    /api/customers/{id}/outstanding Open credit sales
    POST   /api/suppliers                  Register supplier
    GET    /api/suppliers/{id}             Supplier with payable balance

  Transactions:
    POST   /api/sales                      Checkout
    GET    /api/sales/{id}                 Sale with items
    POST   /api/sales/{id}/write-off       Write off a credit sale
    GET    /api/sales/outstanding          Open credit sales, all customers
    POST   /api/sales/returns              Customer return
    POST   /api/purchases                  Receive stock
    POST   /api/purchases/returns          Return stock to supplier
    GET    /api/purchases/outstanding      Open credit purchases (?supplier_id=)
    POST   /api/inventory/beginning        Opening stock
    POST   /api/inventory/adjustments      Stock count correction
    POST   /api/inventory/sync             Reset product quantities from lots
    POST   /api/expenses                   Operating expense
    POST   /api/investments                Owner cash investment
    POST   /api/payments/customers         Customer settles receivable
    POST   /api/payments/suppliers         Pay supplier

  Books:
    GET    /api/accounts                   Chart of accounts
    GET    /api/accounts/{name}/balance    Stored balance (0 when unknown)
    GET    /api/accounts/{name}/ledger     Account ledger, running balance
    GET    /api/accounts/{name}/summary    Account totals
    GET    /api/journal                    Entries (?type=&from=&to=&limit=)
    POST   /api/journal                    Post a manual entry
    GET    /api/journal/{id}               One entry with lines
    GET    /api/reports/trial-balance      Trial balance
    GET    /api/reports/validate           Does the journal balance
    GET    /api/reports/income             Income summary
    GET    /api/reports/inventory          Inventory reconciliation
    GET    /api/reports/integrity          Run integrity checks now

ERROR HANDLING:
  Errors are returned as ErrorResponse with the ledger.Kind as code:
  - 400: Malformed JSON, failed request validation
  - 404: not_found
  - 409: insufficient_stock
  - 422: validation, unbalanced
  - 500: internal

SECURITY NOTE:
  No authentication. Run behind the till network only.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - scheduler.go: Periodic integrity checks
*/
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/warp/pos-engine/ledger"
	"github.com/warp/pos-engine/pos"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	proc     *pos.Processor
	books    *ledger.Books
	validate *validator.Validate
	log      *slog.Logger
}

// NewHandler creates a handler over the processor and its books.
func NewHandler(proc *pos.Processor) *Handler {
	books := proc.Books()
	return &Handler{
		proc:     proc,
		books:    books,
		validate: validator.New(),
		log:      books.Logger().With("component", "api"),
	}
}

// =============================================================================
// PRODUCT HANDLERS
// =============================================================================

// ListProducts returns all products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.books.Inventory().Products(r.Context())
	if err != nil {
		h.fail(w, "Failed to list products", err)
		return
	}
	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = toProductDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateProduct registers a product with no stock.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if !h.decode(w, r, &req) {
		return
	}
	id, err := h.proc.RegisterProduct(r.Context(), pos.ProductInput{
		Name:         req.Name,
		SKU:          req.SKU,
		CostPrice:    req.CostPrice,
		SellingPrice: req.SellingPrice,
		ReorderLevel: req.ReorderLevel,
	})
	if err != nil {
		h.fail(w, "Failed to create product", err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedDTO{ID: id})
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	p, err := h.books.Inventory().Product(r.Context(), id)
	if err != nil {
		h.fail(w, "Product not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(*p))
}

// ListLots returns a product's lots in consumption order.
func (h *Handler) ListLots(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	lots, err := h.books.Inventory().ListLots(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to list lots", err)
		return
	}
	dtos := make([]LotDTO, len(lots))
	for i, l := range lots {
		dtos[i] = toLotDTO(l)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// QuoteFIFO prices a quantity against the product's lots without
// consuming anything.
// GET /api/products/{id}/quote?quantity=3
func (h *Handler) QuoteFIFO(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	qty, err := strconv.ParseInt(r.URL.Query().Get("quantity"), 10, 64)
	if err != nil || qty <= 0 {
		writeError(w, http.StatusBadRequest, "quantity must be a positive integer", err)
		return
	}
	q, err := h.books.Inventory().QuoteFIFO(r.Context(), id, qty)
	if err != nil {
		h.fail(w, "Quote failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toQuoteDTO(*q))
}

// SyncQuantities resets every product's quantity to the sum of its lots.
// POST /api/inventory/sync
func (h *Handler) SyncQuantities(w http.ResponseWriter, r *http.Request) {
	fixed, err := h.books.Inventory().SyncQuantities(r.Context())
	if err != nil {
		h.fail(w, "Sync failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"fixed": fixed})
}

// =============================================================================
// CUSTOMER & SUPPLIER HANDLERS
// =============================================================================

func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if !h.decode(w, r, &req) {
		return
	}
	id, err := h.proc.RegisterCustomer(r.Context(), pos.CustomerInput{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		CreditLimit: req.CreditLimit,
	})
	if err != nil {
		h.fail(w, "Failed to create customer", err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedDTO{ID: id})
}

func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	c, err := h.books.Store().GetCustomer(r.Context(), id)
	if err != nil {
		h.fail(w, "Customer not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(*c))
}

// CustomerOutstanding lists one customer's unpaid credit sales.
func (h *Handler) CustomerOutstanding(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	h.writeOutstanding(w, r, &id)
}

// Outstanding lists every unpaid credit sale.
func (h *Handler) Outstanding(w http.ResponseWriter, r *http.Request) {
	h.writeOutstanding(w, r, nil)
}

func (h *Handler) writeOutstanding(w http.ResponseWriter, r *http.Request, customerID *int64) {
	sales, err := h.proc.OutstandingCreditSales(r.Context(), customerID)
	if err != nil {
		h.fail(w, "Failed to list outstanding sales", err)
		return
	}
	dtos := make([]SaleDTO, len(sales))
	for i, s := range sales {
		dtos[i] = toSaleDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req CreateSupplierRequest
	if !h.decode(w, r, &req) {
		return
	}
	id, err := h.proc.RegisterSupplier(r.Context(), pos.SupplierInput{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	})
	if err != nil {
		h.fail(w, "Failed to create supplier", err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedDTO{ID: id})
}

func (h *Handler) GetSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	s, err := h.books.Store().GetSupplier(r.Context(), id)
	if err != nil {
		h.fail(w, "Supplier not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toSupplierDTO(*s))
}

// =============================================================================
// SALES HANDLERS
// =============================================================================

// CreateSale checks out a basket.
// POST /api/sales
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req SaleRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.proc.Sale(r.Context(), req.toInput())
	if err != nil {
		h.fail(w, "Sale failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, SaleResultDTO{
		ResultDTO: toResultDTO(res.Result),
		SaleID:    res.SaleID,
		Subtotal:  res.Subtotal,
		Discount:  res.Discount,
		Tax:       res.Tax,
		Cost:      res.Cost,
	})
}

func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	s, err := h.books.Store().GetSale(r.Context(), id)
	if err != nil {
		h.fail(w, "Sale not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTO(*s))
}

// WriteOff gives up on a credit sale.
// POST /api/sales/{id}/write-off
func (h *Handler) WriteOff(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req WriteOffRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.proc.WriteOff(r.Context(), pos.WriteOffInput{
		SaleID:      id,
		Amount:      req.Amount,
		Description: req.Description,
		Date:        parseDate(req.Date),
	})
	if err != nil {
		h.fail(w, "Write-off failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, toResultDTO(*res))
}

// SalesReturn takes goods back and refunds in cash.
// POST /api/sales/returns
func (h *Handler) SalesReturn(w http.ResponseWriter, r *http.Request) {
	var req SalesReturnRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.proc.SalesReturn(r.Context(), pos.SalesReturnInput{
		SaleID:    req.SaleID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		UnitPrice: req.UnitPrice,
		Reason:    req.Reason,
		Date:      parseDate(req.Date),
	})
	if err != nil {
		h.fail(w, "Sales return failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, LotResultDTO{
		ResultDTO: toResultDTO(res.Result),
		LotID:     res.LotID,
		RecordID:  res.ReturnID,
	})
}

// CustomerPayment settles a receivable.
// POST /api/payments/customers
func (h *Handler) CustomerPayment(w http.ResponseWriter, r *http.Request) {
	var req CustomerPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.proc.CustomerPayment(r.Context(), pos.CustomerPaymentInput{
		CustomerID:  req.CustomerID,
		SaleID:      req.SaleID,
		Amount:      req.Amount,
		Reference:   req.Reference,
		Description: req.Description,
		Date:        parseDate(req.Date),
	})
	if err != nil {
		h.fail(w, "Customer payment failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, toResultDTO(*res))
}

// =============================================================================
// PURCHASE & INVENTORY HANDLERS
// =============================================================================

// CreatePurchase receives stock.
// POST /api/purchases
func (h *Handler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	var req PurchaseRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.proc.Purchase(r.Context(), req.toInput())
	if err != nil {
		h.fail(w, "Purchase failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, PurchaseResultDTO{
		ResultDTO:  toResultDTO(res.Result),
		PurchaseID: res.PurchaseID,
		LotIDs:     res.LotIDs,
	})
}

// PurchaseReturn sends stock back to the supplier.
// POST /api/purchases/returns
func (h *Handler) PurchaseReturn(w http.ResponseWriter, r *http.Request) {
	var req PurchaseReturnRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.proc.PurchaseReturn(r.Context(), pos.PurchaseReturnInput{
		PurchaseID:  req.PurchaseID,
		ProductID:   req.ProductID,
		Quantity:    req.Quantity,
		PaymentType: ledger.PaymentType(req.PaymentType),
		Reason:      req.Reason,
		Date:        parseDate(req.Date),
	})
	if err != nil {
		h.fail(w, "Purchase return failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, LotResultDTO{
		ResultDTO: toResultDTO(res.Result),
		RecordID:  res.ReturnID,
	})
}

// BeginningInventory records opening stock as owner capital.
// POST /api/inventory/beginning
func (h *Handler) BeginningInventory(w http.ResponseWriter, r *http.Request) {
	var req BeginningInventoryRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.proc.BeginningInventory(r.Context(), pos.BeginningInventoryInput{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		UnitCost:  req.UnitCost,
		Date:      parseDate(req.Date),
	})
	if err != nil {
		h.fail(w, "Beginning inventory failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, LotResultDTO{ResultDTO: toResultDTO(res.Result), LotID: res.LotID})
}

// Adjust corrects stock after a count.
// POST /api/inventory/adjustments
func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req AdjustmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.proc.Adjust(r.Context(), pos.AdjustmentInput{
		ProductID: req.ProductID,
		Direction: ledger.AdjustmentDirection(req.Direction),
		Quantity:  req.Quantity,
		UnitCost:  req.UnitCost,
		Reason:    req.Reason,
		Date:      parseDate(req.Date),
	})
	if err != nil {
		h.fail(w, "Adjustment failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, LotResultDTO{
		ResultDTO: toResultDTO(res.Result),
		LotID:     res.LotID,
		RecordID:  res.AdjustmentID,
	})
}

// OutstandingPurchases lists unpaid credit purchases, optionally for one
// supplier.
// GET /api/purchases/outstanding
func (h *Handler) OutstandingPurchases(w http.ResponseWriter, r *http.Request) {
	var supplierID *int64
	if raw := r.URL.Query().Get("supplier_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid supplier_id", err)
			return
		}
		supplierID = &id
	}
	purchases, err := h.proc.OutstandingCreditPurchases(r.Context(), supplierID)
	if err != nil {
		h.fail(w, "Failed to list outstanding purchases", err)
		return
	}
	dtos := make([]PurchaseDTO, len(purchases))
	for i, p := range purchases {
		dtos[i] = toPurchaseDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SupplierPayment settles a payable.
// POST /api/payments/suppliers
func (h *Handler) SupplierPayment(w http.ResponseWriter, r *http.Request) {
	var req SupplierPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.proc.SupplierPayment(r.Context(), pos.SupplierPaymentInput{
		SupplierID:  req.SupplierID,
		PurchaseID:  req.PurchaseID,
		Amount:      req.Amount,
		Reference:   req.Reference,
		Description: req.Description,
		Date:        parseDate(req.Date),
	})
	if err != nil {
		h.fail(w, "Supplier payment failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, toResultDTO(*res))
}

// =============================================================================
// CASH HANDLERS
// =============================================================================

// POST /api/expenses
func (h *Handler) Expense(w http.ResponseWriter, r *http.Request) {
	var req ExpenseRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.proc.Expense(r.Context(), pos.ExpenseInput{
		Category:    req.Category,
		Amount:      req.Amount,
		PaymentType: ledger.PaymentType(req.PaymentType),
		Description: req.Description,
		Date:        parseDate(req.Date),
	})
	if err != nil {
		h.fail(w, "Expense failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, toResultDTO(*res))
}

// POST /api/investments
func (h *Handler) Investment(w http.ResponseWriter, r *http.Request) {
	var req InvestmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.proc.CashInvestment(r.Context(), pos.InvestmentInput{
		Amount:      req.Amount,
		Description: req.Description,
		Date:        parseDate(req.Date),
	})
	if err != nil {
		h.fail(w, "Investment failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, toResultDTO(*res))
}

// =============================================================================
// BOOKS HANDLERS
// =============================================================================

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.books.Chart().Accounts(r.Context())
	if err != nil {
		h.fail(w, "Failed to list accounts", err)
		return
	}
	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = toAccountDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GET /api/accounts/{name}/balance
func (h *Handler) AccountBalance(w http.ResponseWriter, r *http.Request) {
	name, ok := nameParam(w, r)
	if !ok {
		return
	}
	balance, err := h.books.Chart().Balance(r.Context(), name)
	if err != nil {
		h.fail(w, "Failed to read balance", err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{Account: name, Balance: balance})
}

// AccountLedger returns every line against an account with running balance.
// GET /api/accounts/{name}/ledger
func (h *Handler) AccountLedger(w http.ResponseWriter, r *http.Request) {
	name, ok := nameParam(w, r)
	if !ok {
		return
	}
	if _, err := h.books.Chart().Account(r.Context(), name); err != nil {
		h.fail(w, "Account not found", err)
		return
	}
	rows, err := h.books.Reports().AccountLedger(r.Context(), name)
	if err != nil {
		h.fail(w, "Failed to read ledger", err)
		return
	}
	dtos := make([]LedgerRowDTO, len(rows))
	for i, row := range rows {
		dtos[i] = LedgerRowDTO{
			EntryID:     row.EntryID,
			Reference:   row.Reference,
			Type:        string(row.Type),
			Date:        row.Date.Format(dateLayout),
			Debit:       row.Debit,
			Credit:      row.Credit,
			Description: row.Description,
			Balance:     row.Balance,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GET /api/accounts/{name}/summary
func (h *Handler) AccountSummary(w http.ResponseWriter, r *http.Request) {
	name, ok := nameParam(w, r)
	if !ok {
		return
	}
	s, err := h.books.Reports().AccountSummary(r.Context(), name)
	if err != nil {
		h.fail(w, "Account not found", err)
		return
	}
	writeJSON(w, http.StatusOK, AccountSummaryDTO{
		Code:             s.Code,
		Name:             s.Name,
		Type:             string(s.Type),
		Balance:          s.Balance,
		TotalDebits:      s.TotalDebits,
		TotalCredits:     s.TotalCredits,
		TransactionCount: s.TransactionCount,
	})
}

// ListEntries returns journal entries, optionally filtered.
// GET /api/journal?type=sale&from=2025-01-01&to=2025-01-31&limit=50
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ledger.EntryFilter{Type: ledger.JournalType(q.Get("type"))}
	if f.Type != "" && !f.Type.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown journal type", nil)
		return
	}
	var err error
	if f.From, err = queryDate(q, "from"); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date", err)
		return
	}
	if f.To, err = queryDate(q, "to"); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date", err)
		return
	}
	if !f.To.IsZero() {
		// to is inclusive of the whole day
		f.To = f.To.Add(24*time.Hour - time.Nanosecond)
	}
	if s := q.Get("limit"); s != "" {
		if f.Limit, err = strconv.Atoi(s); err != nil || f.Limit < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
	}

	entries, err := h.books.Journal().Entries(r.Context(), f)
	if err != nil {
		h.fail(w, "Failed to list entries", err)
		return
	}
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// PostEntry writes a manual entry, general unless a type is given.
// POST /api/journal
func (h *Handler) PostEntry(w http.ResponseWriter, r *http.Request) {
	var req PostEntryRequest
	if !h.decode(w, r, &req) {
		return
	}
	id, err := h.books.Journal().Post(r.Context(), req.toInput())
	if err != nil {
		h.fail(w, "Entry rejected", err)
		return
	}
	e, err := h.books.Journal().Entry(r.Context(), id)
	if err != nil {
		h.fail(w, "Entry posted but could not be read back", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(*e))
}

func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	e, err := h.books.Journal().Entry(r.Context(), id)
	if err != nil {
		h.fail(w, "Entry not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(*e))
}

// GET /api/reports/trial-balance
func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	reports := h.books.Reports()
	rows, err := reports.TrialBalance(r.Context())
	if err != nil {
		h.fail(w, "Failed to build trial balance", err)
		return
	}
	totals, err := reports.Totals(r.Context())
	if err != nil {
		h.fail(w, "Failed to total journal", err)
		return
	}
	dto := TrialBalanceDTO{
		Rows:         make([]TrialBalanceRowDTO, len(rows)),
		TotalDebits:  totals.Debits,
		TotalCredits: totals.Credits,
		Balanced:     totals.Balanced,
	}
	for i, row := range rows {
		dto.Rows[i] = TrialBalanceRowDTO{Code: row.Code, Name: row.Name, Type: string(row.Type), Balance: row.Balance}
	}
	writeJSON(w, http.StatusOK, dto)
}

// GET /api/reports/validate
func (h *Handler) ValidateTrialBalance(w http.ResponseWriter, r *http.Request) {
	ok, err := h.books.Reports().ValidateTrialBalance(r.Context())
	if err != nil {
		h.fail(w, "Failed to validate trial balance", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"balanced": ok})
}

// GET /api/reports/income
func (h *Handler) IncomeSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.books.Reports().IncomeSummary(r.Context())
	if err != nil {
		h.fail(w, "Failed to build income summary", err)
		return
	}
	writeJSON(w, http.StatusOK, IncomeSummaryDTO{
		Revenue:     s.Revenue,
		Returns:     s.Returns,
		NetSales:    s.NetSales,
		COGS:        s.COGS,
		GrossProfit: s.GrossProfit,
		Expenses:    s.Expenses,
		NetIncome:   s.NetIncome,
	})
}

// GET /api/reports/inventory
func (h *Handler) InventoryReconciliation(w http.ResponseWriter, r *http.Request) {
	rec, err := h.books.Reports().InventoryReconciliation(r.Context())
	if err != nil {
		h.fail(w, "Failed to reconcile inventory", err)
		return
	}
	writeJSON(w, http.StatusOK, ReconciliationDTO{
		AccountBalance: rec.AccountBalance,
		LotValuation:   rec.LotValuation,
		Difference:     rec.Difference,
		Balanced:       rec.Balanced,
	})
}

// Integrity runs the trial balance and inventory checks on demand.
// GET /api/reports/integrity
func (h *Handler) Integrity(w http.ResponseWriter, r *http.Request) {
	report, err := CheckIntegrity(r.Context(), h.books)
	if err != nil {
		h.fail(w, "Integrity check failed", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps an engine error class onto an HTTP status.
func statusFor(kind ledger.Kind) int {
	switch kind {
	case ledger.KindInsufficientStock:
		return http.StatusConflict
	case ledger.KindValidation, ledger.KindUnbalanced:
		return http.StatusUnprocessableEntity
	case ledger.KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// fail writes an engine error. Internal errors are logged and their detail
// is withheld from the client.
func (h *Handler) fail(w http.ResponseWriter, message string, err error) {
	kind := ledger.Classify(err)
	status := statusFor(kind)
	resp := ErrorResponse{Error: message, Code: string(kind)}
	if status == http.StatusInternalServerError {
		h.log.Error(message, slog.Any("error", err))
	} else {
		resp.Details = err.Error()
	}
	var short *ledger.InsufficientStockError
	if errors.As(err, &short) {
		resp.Details = map[string]any{
			"product_id": short.ProductID,
			"requested":  short.Requested,
			"available":  short.Available,
		}
	}
	writeJSON(w, status, resp)
}

// decode reads and validates a JSON body. It writes the 400 itself and
// reports whether the handler should continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Namespace()] = fe.Tag()
			}
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "Invalid request",
				Code:    string(ledger.KindValidation),
				Details: fields,
			})
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return false
	}
	return true
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return 0, false
	}
	return id, true
}

// nameParam reads an account name. chi matches against the decoded path
// unless the request carries a distinct raw path (an escaped "/"), and only
// then is the parameter still percent-encoded.
func nameParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := chi.URLParam(r, "name")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(name)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid account name", err)
			return "", false
		}
		name = unescaped
	}
	if name == "" {
		writeError(w, http.StatusBadRequest, "Invalid account name", nil)
		return "", false
	}
	return name, true
}

func queryDate(q url.Values, key string) (time.Time, error) {
	s := q.Get(key)
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, s)
}
