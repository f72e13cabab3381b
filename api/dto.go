/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types keep the
  ledger and pos packages free of JSON tags and let the wire format evolve
  separately from the engine.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Master data:
    ProductDTO, CreateProductRequest, CustomerDTO, CreateCustomerRequest,
    SupplierDTO, CreateSupplierRequest, LotDTO

  Transactions:
    SaleRequest, SaleDTO, SaleResultDTO, PurchaseRequest, PurchaseDTO,
    PurchaseResultDTO, BeginningInventoryRequest, AdjustmentRequest,
    PurchaseReturnRequest, SalesReturnRequest, ExpenseRequest,
    InvestmentRequest, CustomerPaymentRequest, SupplierPaymentRequest,
    WriteOffRequest, ResultDTO, LotResultDTO

  Reports:
    AccountDTO, BalanceDTO, EntryDTO, LineDTO, PostEntryRequest,
    LedgerRowDTO, TrialBalanceDTO, AccountSummaryDTO, IncomeSummaryDTO,
    ReconciliationDTO, QuoteDTO

VALIDATION:
  Request shape (required fields, enums, date layout) is checked with
  validate tags before the handler runs. Money rules (positive amounts,
  stock, balancing) are enforced by the pos and ledger packages.

MONEY:
  Amounts are decimal.Decimal, encoded as JSON strings ("12.50") and
  accepted as strings or numbers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/pos-engine/ledger"
	"github.com/warp/pos-engine/pos"
)

// dateLayout is the calendar date format accepted on requests.
const dateLayout = "2006-01-02"

// =============================================================================
// MASTER DATA
// =============================================================================

type CreateProductRequest struct {
	Name         string          `json:"name" validate:"required"`
	SKU          string          `json:"sku"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	ReorderLevel int64           `json:"reorder_level" validate:"gte=0"`
}

type ProductDTO struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	SKU          string          `json:"sku,omitempty"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Quantity     int64           `json:"quantity"`
	ReorderLevel int64           `json:"reorder_level"`
	LowStock     bool            `json:"low_stock"`
}

func toProductDTO(p ledger.Product) ProductDTO {
	return ProductDTO{
		ID:           p.ID,
		Name:         p.Name,
		SKU:          p.SKU,
		CostPrice:    p.CostPrice,
		SellingPrice: p.SellingPrice,
		Quantity:     p.Quantity,
		ReorderLevel: p.ReorderLevel,
		LowStock:     p.ReorderLevel > 0 && p.Quantity <= p.ReorderLevel,
	}
}

type LotDTO struct {
	ID                int64           `json:"id"`
	PurchaseID        *int64          `json:"purchase_id,omitempty"`
	Source            string          `json:"source"`
	QuantityPurchased int64           `json:"quantity_purchased"`
	QuantityRemaining int64           `json:"quantity_remaining"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	Value             decimal.Decimal `json:"value"`
	AcquiredAt        string          `json:"acquired_at"`
}

func toLotDTO(l ledger.Lot) LotDTO {
	return LotDTO{
		ID:                l.ID,
		PurchaseID:        l.PurchaseID,
		Source:            string(l.Source),
		QuantityPurchased: l.QuantityPurchased,
		QuantityRemaining: l.QuantityRemaining,
		UnitCost:          l.UnitCost,
		Value:             l.Value(),
		AcquiredAt:        l.AcquiredAt.Format(time.RFC3339),
	}
}

type CreateCustomerRequest struct {
	Name        string          `json:"name" validate:"required"`
	Email       string          `json:"email" validate:"omitempty,email"`
	Phone       string          `json:"phone"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
}

type CustomerDTO struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Email       string          `json:"email,omitempty"`
	Phone       string          `json:"phone,omitempty"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
	Balance     decimal.Decimal `json:"balance"`
}

func toCustomerDTO(c ledger.Customer) CustomerDTO {
	return CustomerDTO{
		ID:          c.ID,
		Name:        c.Name,
		Email:       c.Email,
		Phone:       c.Phone,
		CreditLimit: c.CreditLimit,
		Balance:     c.Balance,
	}
}

type CreateSupplierRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone"`
}

type SupplierDTO struct {
	ID      int64           `json:"id"`
	Name    string          `json:"name"`
	Email   string          `json:"email,omitempty"`
	Phone   string          `json:"phone,omitempty"`
	Balance decimal.Decimal `json:"balance"`
}

func toSupplierDTO(s ledger.Supplier) SupplierDTO {
	return SupplierDTO{ID: s.ID, Name: s.Name, Email: s.Email, Phone: s.Phone, Balance: s.Balance}
}

// CreatedDTO is returned by every create endpoint.
type CreatedDTO struct {
	ID int64 `json:"id"`
}

// =============================================================================
// SALES
// =============================================================================

type SaleItemRequest struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  int64           `json:"quantity" validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type SaleRequest struct {
	CustomerID  *int64            `json:"customer_id" validate:"omitempty,gt=0"`
	PaymentType string            `json:"payment_type" validate:"omitempty,oneof=cash credit"`
	Discount    decimal.Decimal   `json:"discount"`
	Items       []SaleItemRequest `json:"items" validate:"required,min=1,dive"`
	Date        string            `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

func (r SaleRequest) toInput() pos.SaleInput {
	items := make([]pos.SaleItemInput, len(r.Items))
	for i, it := range r.Items {
		items[i] = pos.SaleItemInput{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}
	return pos.SaleInput{
		CustomerID:  r.CustomerID,
		PaymentType: ledger.PaymentType(r.PaymentType),
		Discount:    r.Discount,
		Items:       items,
		Date:        parseDate(r.Date),
	}
}

type SaleItemDTO struct {
	ProductID int64           `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Total     decimal.Decimal `json:"total"`
}

type SaleDTO struct {
	ID          int64           `json:"id"`
	CustomerID  *int64          `json:"customer_id,omitempty"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Discount    decimal.Decimal `json:"discount"`
	Tax         decimal.Decimal `json:"tax"`
	Total       decimal.Decimal `json:"total"`
	Paid        decimal.Decimal `json:"paid"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Cost        decimal.Decimal `json:"cost"`
	PaymentType string          `json:"payment_type"`
	Status      string          `json:"status"`
	Reference   string          `json:"reference"`
	Date        string          `json:"date"`
	Items       []SaleItemDTO   `json:"items,omitempty"`
}

func toSaleDTO(s ledger.Sale) SaleDTO {
	items := make([]SaleItemDTO, len(s.Items))
	for i, it := range s.Items {
		items[i] = SaleItemDTO{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			UnitCost:  it.UnitCost,
			Total:     it.Total(),
		}
	}
	return SaleDTO{
		ID:          s.ID,
		CustomerID:  s.CustomerID,
		Subtotal:    s.Subtotal,
		Discount:    s.Discount,
		Tax:         s.Tax,
		Total:       s.Total,
		Paid:        s.Paid,
		Outstanding: s.Outstanding(),
		Cost:        s.Cost,
		PaymentType: string(s.PaymentType),
		Status:      string(s.Status),
		Reference:   s.Reference,
		Date:        s.Date.Format(dateLayout),
		Items:       items,
	}
}

type SaleResultDTO struct {
	ResultDTO
	SaleID   int64           `json:"sale_id"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Tax      decimal.Decimal `json:"tax"`
	Cost     decimal.Decimal `json:"cost"`
}

type CustomerPaymentRequest struct {
	CustomerID  int64           `json:"customer_id" validate:"required,gt=0"`
	SaleID      *int64          `json:"sale_id" validate:"omitempty,gt=0"`
	Amount      decimal.Decimal `json:"amount"`
	Reference   string          `json:"reference"`
	Description string          `json:"description"`
	Date        string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type WriteOffRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Date        string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type SalesReturnRequest struct {
	SaleID    *int64          `json:"sale_id" validate:"omitempty,gt=0"`
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  int64           `json:"quantity" validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Reason    string          `json:"reason"`
	Date      string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// =============================================================================
// PURCHASES & INVENTORY
// =============================================================================

type PurchaseItemRequest struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  int64           `json:"quantity" validate:"required,gt=0"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

type PurchaseRequest struct {
	SupplierID  *int64                `json:"supplier_id" validate:"omitempty,gt=0"`
	PaymentType string                `json:"payment_type" validate:"omitempty,oneof=cash credit"`
	Items       []PurchaseItemRequest `json:"items" validate:"required,min=1,dive"`
	Date        string                `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

func (r PurchaseRequest) toInput() pos.PurchaseInput {
	items := make([]pos.PurchaseItemInput, len(r.Items))
	for i, it := range r.Items {
		items[i] = pos.PurchaseItemInput{ProductID: it.ProductID, Quantity: it.Quantity, UnitCost: it.UnitCost}
	}
	return pos.PurchaseInput{
		SupplierID:  r.SupplierID,
		PaymentType: ledger.PaymentType(r.PaymentType),
		Items:       items,
		Date:        parseDate(r.Date),
	}
}

type PurchaseItemDTO struct {
	ProductID int64           `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Total     decimal.Decimal `json:"total"`
}

type PurchaseDTO struct {
	ID          int64             `json:"id"`
	SupplierID  *int64            `json:"supplier_id,omitempty"`
	Total       decimal.Decimal   `json:"total"`
	Paid        decimal.Decimal   `json:"paid"`
	Outstanding decimal.Decimal   `json:"outstanding"`
	PaymentType string            `json:"payment_type"`
	Reference   string            `json:"reference"`
	Date        string            `json:"date"`
	Items       []PurchaseItemDTO `json:"items,omitempty"`
}

func toPurchaseDTO(p ledger.Purchase) PurchaseDTO {
	items := make([]PurchaseItemDTO, len(p.Items))
	for i, it := range p.Items {
		items[i] = PurchaseItemDTO{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitCost:  it.UnitCost,
			Total:     it.Total(),
		}
	}
	return PurchaseDTO{
		ID:          p.ID,
		SupplierID:  p.SupplierID,
		Total:       p.Total,
		Paid:        p.Paid,
		Outstanding: p.Outstanding(),
		PaymentType: string(p.PaymentType),
		Reference:   p.Reference,
		Date:        p.Date.Format(dateLayout),
		Items:       items,
	}
}

type PurchaseResultDTO struct {
	ResultDTO
	PurchaseID int64   `json:"purchase_id"`
	LotIDs     []int64 `json:"lot_ids"`
}

type BeginningInventoryRequest struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  int64           `json:"quantity" validate:"required,gt=0"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Date      string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type AdjustmentRequest struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Direction string          `json:"direction" validate:"required,oneof=increase decrease"`
	Quantity  int64           `json:"quantity" validate:"required,gt=0"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Reason    string          `json:"reason"`
	Date      string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type PurchaseReturnRequest struct {
	PurchaseID  *int64 `json:"purchase_id" validate:"omitempty,gt=0"`
	ProductID   int64  `json:"product_id" validate:"required,gt=0"`
	Quantity    int64  `json:"quantity" validate:"required,gt=0"`
	PaymentType string `json:"payment_type" validate:"omitempty,oneof=cash credit"`
	Reason      string `json:"reason"`
	Date        string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type SupplierPaymentRequest struct {
	SupplierID  int64           `json:"supplier_id" validate:"required,gt=0"`
	PurchaseID  *int64          `json:"purchase_id" validate:"omitempty,gt=0"`
	Amount      decimal.Decimal `json:"amount"`
	Reference   string          `json:"reference"`
	Description string          `json:"description"`
	Date        string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// LotResultDTO is returned by operations that create a lot.
type LotResultDTO struct {
	ResultDTO
	LotID int64 `json:"lot_id,omitempty"`
	// RecordID is the adjustment or return row, when one was written.
	RecordID int64 `json:"record_id,omitempty"`
}

// =============================================================================
// CASH
// =============================================================================

type ExpenseRequest struct {
	Category    string          `json:"category" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentType string          `json:"payment_type" validate:"omitempty,oneof=cash credit"`
	Description string          `json:"description"`
	Date        string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type InvestmentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Date        string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// ResultDTO is the common shape of a posted transaction.
type ResultDTO struct {
	EntryID   int64           `json:"entry_id,omitempty"`
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
}

func toResultDTO(r pos.Result) ResultDTO {
	return ResultDTO{EntryID: r.EntryID, Reference: r.Reference, Amount: r.Amount}
}

// =============================================================================
// ACCOUNTS & REPORTS
// =============================================================================

type AccountDTO struct {
	Code    string          `json:"code"`
	Name    string          `json:"name"`
	Type    string          `json:"type"`
	Balance decimal.Decimal `json:"balance"`
	Active  bool            `json:"active"`
}

func toAccountDTO(a ledger.Account) AccountDTO {
	return AccountDTO{Code: a.Code, Name: a.Name, Type: string(a.Type), Balance: a.Balance, Active: a.Active}
}

type LineDTO struct {
	Position    int             `json:"position"`
	Account     string          `json:"account"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description,omitempty"`
}

type EntryDTO struct {
	ID          int64           `json:"id"`
	Type        string          `json:"type"`
	Reference   string          `json:"reference"`
	Description string          `json:"description"`
	Date        string          `json:"date"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	Lines       []LineDTO       `json:"lines"`
}

func toEntryDTO(e ledger.JournalEntry) EntryDTO {
	lines := make([]LineDTO, len(e.Lines))
	for i, l := range e.Lines {
		lines[i] = LineDTO{
			Position:    l.Position,
			Account:     l.Account,
			Debit:       l.Debit,
			Credit:      l.Credit,
			Description: l.Description,
		}
	}
	return EntryDTO{
		ID:          e.ID,
		Type:        string(e.Type),
		Reference:   e.Reference,
		Description: e.Description,
		Date:        e.Date.Format(dateLayout),
		TotalDebit:  e.TotalDebit,
		TotalCredit: e.TotalCredit,
		Lines:       lines,
	}
}

type PostLineRequest struct {
	Account     string          `json:"account" validate:"required"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description"`
}

// PostEntryRequest is a manual journal entry, typically a general one.
type PostEntryRequest struct {
	Type        string            `json:"type" validate:"omitempty,oneof=sale purchase cash_receipt cash_disbursement accounts_payable general"`
	Reference   string            `json:"reference"`
	Description string            `json:"description" validate:"required"`
	Date        string            `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Lines       []PostLineRequest `json:"lines" validate:"required,min=2,dive"`
}

func (r PostEntryRequest) toInput() ledger.PostInput {
	lines := make([]ledger.JournalLine, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = ledger.JournalLine{Account: l.Account, Debit: l.Debit, Credit: l.Credit, Description: l.Description}
	}
	t := ledger.JournalType(r.Type)
	if t == "" {
		t = ledger.JournalGeneral
	}
	return ledger.PostInput{
		Type:        t,
		Reference:   r.Reference,
		Description: r.Description,
		Date:        parseDate(r.Date),
		Lines:       lines,
	}
}

type LedgerRowDTO struct {
	EntryID     int64           `json:"entry_id"`
	Reference   string          `json:"reference"`
	Type        string          `json:"type"`
	Date        string          `json:"date"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description,omitempty"`
	Balance     decimal.Decimal `json:"balance"`
}

type BalanceDTO struct {
	Account string          `json:"account"`
	Balance decimal.Decimal `json:"balance"`
}

type ConsumptionDTO struct {
	LotID    int64           `json:"lot_id"`
	Quantity int64           `json:"quantity"`
	UnitCost decimal.Decimal `json:"unit_cost"`
	Cost     decimal.Decimal `json:"cost"`
}

// QuoteDTO is a FIFO plan that has not been committed.
type QuoteDTO struct {
	ProductID int64            `json:"product_id"`
	Quantity  int64            `json:"quantity"`
	TotalCost decimal.Decimal  `json:"total_cost"`
	Plan      []ConsumptionDTO `json:"plan"`
}

func toQuoteDTO(q ledger.FIFOQuote) QuoteDTO {
	plan := make([]ConsumptionDTO, len(q.Plan))
	for i, c := range q.Plan {
		plan[i] = ConsumptionDTO{LotID: c.LotID, Quantity: c.Quantity, UnitCost: c.UnitCost, Cost: c.Cost()}
	}
	return QuoteDTO{ProductID: q.ProductID, Quantity: q.Quantity, TotalCost: q.TotalCost, Plan: plan}
}

type TrialBalanceRowDTO struct {
	Code    string          `json:"code"`
	Name    string          `json:"name"`
	Type    string          `json:"type"`
	Balance decimal.Decimal `json:"balance"`
}

type TrialBalanceDTO struct {
	Rows         []TrialBalanceRowDTO `json:"rows"`
	TotalDebits  decimal.Decimal      `json:"total_debits"`
	TotalCredits decimal.Decimal      `json:"total_credits"`
	Balanced     bool                 `json:"balanced"`
}

type AccountSummaryDTO struct {
	Code             string          `json:"code"`
	Name             string          `json:"name"`
	Type             string          `json:"type"`
	Balance          decimal.Decimal `json:"balance"`
	TotalDebits      decimal.Decimal `json:"total_debits"`
	TotalCredits     decimal.Decimal `json:"total_credits"`
	TransactionCount int             `json:"transaction_count"`
}

type IncomeSummaryDTO struct {
	Revenue     decimal.Decimal `json:"revenue"`
	Returns     decimal.Decimal `json:"returns"`
	NetSales    decimal.Decimal `json:"net_sales"`
	COGS        decimal.Decimal `json:"cogs"`
	GrossProfit decimal.Decimal `json:"gross_profit"`
	Expenses    decimal.Decimal `json:"expenses"`
	NetIncome   decimal.Decimal `json:"net_income"`
}

type ReconciliationDTO struct {
	AccountBalance decimal.Decimal `json:"account_balance"`
	LotValuation   decimal.Decimal `json:"lot_valuation"`
	Difference     decimal.Decimal `json:"difference"`
	Balanced       bool            `json:"balanced"`
}

// =============================================================================
// ERRORS
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// parseDate reads an already validated request date. Empty means "today",
// which the processors resolve against the books clock.
func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
