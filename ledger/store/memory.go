// Package store provides in-memory ledger.TxStore implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/pos-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type rwLocker interface {
	Lock()
	Unlock()
	RLock()
	RUnlock()
}

// nopLock is used by the transaction view; WithTx already holds the lock.
type nopLock struct{}

func (nopLock) Lock()    {}
func (nopLock) Unlock()  {}
func (nopLock) RLock()   {}
func (nopLock) RUnlock() {}

type state struct {
	seq map[string]int64

	accounts  map[string]ledger.Account
	entries   []ledger.JournalEntry
	products  map[int64]ledger.Product
	lots      map[int64]ledger.Lot
	customers map[int64]ledger.Customer
	suppliers map[int64]ledger.Supplier
	sales     map[int64]ledger.Sale
	purchases map[int64]ledger.Purchase

	adjustments     []ledger.Adjustment
	purchaseReturns []ledger.PurchaseReturn
	salesReturns    []ledger.SalesReturn
	cash            []ledger.CashTransaction
}

func newState() *state {
	return &state{
		seq:       make(map[string]int64),
		accounts:  make(map[string]ledger.Account),
		products:  make(map[int64]ledger.Product),
		lots:      make(map[int64]ledger.Lot),
		customers: make(map[int64]ledger.Customer),
		suppliers: make(map[int64]ledger.Supplier),
		sales:     make(map[int64]ledger.Sale),
		purchases: make(map[int64]ledger.Purchase),
	}
}

// clone copies every table. Records are stored by value and their nested
// slices (entry lines, sale items) are never mutated after insert, so a
// shallow copy per table is enough.
func (st *state) clone() *state {
	c := newState()
	for k, v := range st.seq {
		c.seq[k] = v
	}
	for k, v := range st.accounts {
		c.accounts[k] = v
	}
	for k, v := range st.products {
		c.products[k] = v
	}
	for k, v := range st.lots {
		c.lots[k] = v
	}
	for k, v := range st.customers {
		c.customers[k] = v
	}
	for k, v := range st.suppliers {
		c.suppliers[k] = v
	}
	for k, v := range st.sales {
		c.sales[k] = v
	}
	for k, v := range st.purchases {
		c.purchases[k] = v
	}
	c.entries = append([]ledger.JournalEntry(nil), st.entries...)
	c.adjustments = append([]ledger.Adjustment(nil), st.adjustments...)
	c.purchaseReturns = append([]ledger.PurchaseReturn(nil), st.purchaseReturns...)
	c.salesReturns = append([]ledger.SalesReturn(nil), st.salesReturns...)
	c.cash = append([]ledger.CashTransaction(nil), st.cash...)
	return c
}

func (st *state) next(table string) int64 {
	st.seq[table]++
	return st.seq[table]
}

// Memory is a ledger.TxStore kept entirely in process memory.
type Memory struct {
	*session
	mu sync.RWMutex
	st *state
}

func NewMemory() *Memory {
	m := &Memory{st: newState()}
	m.session = &session{m: m, lock: &m.mu}
	return m
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(&session{m: m, lock: nopLock{}}); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

// Snapshot counts rows per table. Tests use it to assert nothing changed.
func (m *Memory) Snapshot() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]int{
		"accounts":         len(m.st.accounts),
		"journal_entries":  len(m.st.entries),
		"products":         len(m.st.products),
		"lots":             len(m.st.lots),
		"sales":            len(m.st.sales),
		"purchases":        len(m.st.purchases),
		"adjustments":      len(m.st.adjustments),
		"purchase_returns": len(m.st.purchaseReturns),
		"sales_returns":    len(m.st.salesReturns),
		"cash":             len(m.st.cash),
	}
}

// session carries the locking discipline: the root session locks, the
// transaction view does not.
type session struct {
	m    *Memory
	lock rwLocker
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (s *session) CreateAccount(_ context.Context, a ledger.Account) (int64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	st := s.m.st
	for _, existing := range st.accounts {
		if existing.Code == a.Code || existing.Name == a.Name {
			return 0, fmt.Errorf("%w: %s %s", ledger.ErrDuplicateAccount, a.Code, a.Name)
		}
	}
	a.ID = st.next("accounts")
	st.accounts[a.Name] = a
	return a.ID, nil
}

func (s *session) GetAccount(_ context.Context, name string) (*ledger.Account, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	a, ok := s.m.st.accounts[name]
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}
	return &a, nil
}

func (s *session) ListAccounts(_ context.Context) ([]ledger.Account, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	out := make([]ledger.Account, 0, len(s.m.st.accounts))
	for _, a := range s.m.st.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *session) SetAccountBalance(_ context.Context, name string, balance decimal.Decimal) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	a, ok := s.m.st.accounts[name]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	a.Balance = balance
	s.m.st.accounts[name] = a
	return nil
}

func (s *session) SetAccountActive(_ context.Context, name string, active bool) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	a, ok := s.m.st.accounts[name]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	a.Active = active
	s.m.st.accounts[name] = a
	return nil
}

// =============================================================================
// JOURNAL
// =============================================================================

func (s *session) InsertEntry(_ context.Context, e ledger.JournalEntry) (int64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	e.ID = s.m.st.next("journal_entries")
	lines := make([]ledger.JournalLine, len(e.Lines))
	for i, l := range e.Lines {
		l.EntryID = e.ID
		if l.Position == 0 {
			l.Position = i + 1
		}
		lines[i] = l
	}
	e.Lines = lines
	s.m.st.entries = append(s.m.st.entries, e)
	return e.ID, nil
}

func (s *session) GetEntry(_ context.Context, id int64) (*ledger.JournalEntry, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	for _, e := range s.m.st.entries {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, ledger.ErrEntryNotFound
}

func (s *session) ListEntries(_ context.Context, f ledger.EntryFilter) ([]ledger.JournalEntry, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	var out []ledger.JournalEntry
	for _, e := range s.sortedEntries() {
		if !f.Matches(e) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (s *session) CountEntries(_ context.Context) (int, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.m.st.entries), nil
}

func (s *session) LinesForAccount(_ context.Context, account string) ([]ledger.PostedLine, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	var out []ledger.PostedLine
	for _, e := range s.sortedEntries() {
		for _, l := range e.Lines {
			if l.Account == account {
				out = append(out, posted(e, l))
			}
		}
	}
	return out, nil
}

func (s *session) AllLines(_ context.Context) ([]ledger.PostedLine, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	var out []ledger.PostedLine
	for _, e := range s.sortedEntries() {
		for _, l := range e.Lines {
			out = append(out, posted(e, l))
		}
	}
	return out, nil
}

// sortedEntries orders by date then id. Caller holds the lock.
func (s *session) sortedEntries() []ledger.JournalEntry {
	out := append([]ledger.JournalEntry(nil), s.m.st.entries...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func posted(e ledger.JournalEntry, l ledger.JournalLine) ledger.PostedLine {
	return ledger.PostedLine{
		EntryID:     e.ID,
		Position:    l.Position,
		Type:        e.Type,
		Reference:   e.Reference,
		Date:        e.Date,
		Account:     l.Account,
		Debit:       l.Debit,
		Credit:      l.Credit,
		Description: l.Description,
	}
}

// =============================================================================
// INVENTORY
// =============================================================================

func (s *session) CreateProduct(_ context.Context, p ledger.Product) (int64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	p.ID = s.m.st.next("products")
	s.m.st.products[p.ID] = p
	return p.ID, nil
}

func (s *session) GetProduct(_ context.Context, id int64) (*ledger.Product, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	p, ok := s.m.st.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ledger.ErrProductNotFound, id)
	}
	return &p, nil
}

func (s *session) ListProducts(_ context.Context) ([]ledger.Product, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	out := make([]ledger.Product, 0, len(s.m.st.products))
	for _, p := range s.m.st.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *session) SetProductQuantity(_ context.Context, id int64, quantity int64) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	p, ok := s.m.st.products[id]
	if !ok {
		return fmt.Errorf("%w: %d", ledger.ErrProductNotFound, id)
	}
	p.Quantity = quantity
	s.m.st.products[id] = p
	return nil
}

func (s *session) SetProductCostPrice(_ context.Context, id int64, cost decimal.Decimal) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	p, ok := s.m.st.products[id]
	if !ok {
		return fmt.Errorf("%w: %d", ledger.ErrProductNotFound, id)
	}
	p.CostPrice = cost
	s.m.st.products[id] = p
	return nil
}

func (s *session) InsertLot(_ context.Context, l ledger.Lot) (int64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, ok := s.m.st.products[l.ProductID]; !ok {
		return 0, fmt.Errorf("%w: %d", ledger.ErrProductNotFound, l.ProductID)
	}
	l.ID = s.m.st.next("lots")
	s.m.st.lots[l.ID] = l
	return l.ID, nil
}

func (s *session) GetLot(_ context.Context, id int64) (*ledger.Lot, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	l, ok := s.m.st.lots[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ledger.ErrLotNotFound, id)
	}
	return &l, nil
}

func (s *session) OpenLots(_ context.Context, productID int64) ([]ledger.Lot, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.openLots(func(l ledger.Lot) bool { return l.ProductID == productID }), nil
}

func (s *session) OpenLotsByPurchase(_ context.Context, purchaseID int64) ([]ledger.Lot, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.openLots(func(l ledger.Lot) bool {
		return l.PurchaseID != nil && *l.PurchaseID == purchaseID
	}), nil
}

func (s *session) AllOpenLots(_ context.Context) ([]ledger.Lot, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.openLots(func(ledger.Lot) bool { return true }), nil
}

// openLots filters lots with stock left and sorts them FIFO.
func (s *session) openLots(keep func(ledger.Lot) bool) []ledger.Lot {
	var out []ledger.Lot
	for _, l := range s.m.st.lots {
		if l.QuantityRemaining > 0 && keep(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		if !out[i].AcquiredAt.Equal(out[j].AcquiredAt) {
			return out[i].AcquiredAt.Before(out[j].AcquiredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *session) SetLotRemaining(_ context.Context, lotID int64, remaining int64) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	l, ok := s.m.st.lots[lotID]
	if !ok {
		return fmt.Errorf("%w: %d", ledger.ErrLotNotFound, lotID)
	}
	if remaining < 0 || remaining > l.QuantityPurchased {
		return fmt.Errorf("%w: lot %d remaining %d", ledger.ErrLotOverdrawn, lotID, remaining)
	}
	l.QuantityRemaining = remaining
	s.m.st.lots[lotID] = l
	return nil
}

// =============================================================================
// RECORDS
// =============================================================================

func (s *session) CreateCustomer(_ context.Context, c ledger.Customer) (int64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	c.ID = s.m.st.next("customers")
	s.m.st.customers[c.ID] = c
	return c.ID, nil
}

func (s *session) GetCustomer(_ context.Context, id int64) (*ledger.Customer, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	c, ok := s.m.st.customers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ledger.ErrCustomerNotFound, id)
	}
	return &c, nil
}

func (s *session) SetCustomerBalance(_ context.Context, id int64, balance decimal.Decimal) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	c, ok := s.m.st.customers[id]
	if !ok {
		return fmt.Errorf("%w: %d", ledger.ErrCustomerNotFound, id)
	}
	c.Balance = balance
	s.m.st.customers[id] = c
	return nil
}

func (s *session) CreateSupplier(_ context.Context, sup ledger.Supplier) (int64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	sup.ID = s.m.st.next("suppliers")
	s.m.st.suppliers[sup.ID] = sup
	return sup.ID, nil
}

func (s *session) GetSupplier(_ context.Context, id int64) (*ledger.Supplier, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	sup, ok := s.m.st.suppliers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ledger.ErrSupplierNotFound, id)
	}
	return &sup, nil
}

func (s *session) SetSupplierBalance(_ context.Context, id int64, balance decimal.Decimal) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	sup, ok := s.m.st.suppliers[id]
	if !ok {
		return fmt.Errorf("%w: %d", ledger.ErrSupplierNotFound, id)
	}
	sup.Balance = balance
	s.m.st.suppliers[id] = sup
	return nil
}

func (s *session) InsertSale(_ context.Context, sale ledger.Sale) (int64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	sale.ID = s.m.st.next("sales")
	sale.Items = append([]ledger.SaleItem(nil), sale.Items...)
	s.m.st.sales[sale.ID] = sale
	return sale.ID, nil
}

func (s *session) GetSale(_ context.Context, id int64) (*ledger.Sale, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	sale, ok := s.m.st.sales[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ledger.ErrSaleNotFound, id)
	}
	return &sale, nil
}

func (s *session) ListSales(_ context.Context, f ledger.SaleFilter) ([]ledger.Sale, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	var out []ledger.Sale
	for _, sale := range s.m.st.sales {
		if f.Matches(sale) {
			out = append(out, sale)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *session) UpdateSale(_ context.Context, sale ledger.Sale) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	cur, ok := s.m.st.sales[sale.ID]
	if !ok {
		return fmt.Errorf("%w: %d", ledger.ErrSaleNotFound, sale.ID)
	}
	cur.Status = sale.Status
	cur.Paid = sale.Paid
	cur.Cost = sale.Cost
	cur.Reference = sale.Reference
	s.m.st.sales[sale.ID] = cur
	return nil
}

func (s *session) InsertPurchase(_ context.Context, p ledger.Purchase) (int64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	p.ID = s.m.st.next("purchases")
	p.Items = append([]ledger.PurchaseItem(nil), p.Items...)
	s.m.st.purchases[p.ID] = p
	return p.ID, nil
}

func (s *session) GetPurchase(_ context.Context, id int64) (*ledger.Purchase, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	p, ok := s.m.st.purchases[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ledger.ErrPurchaseNotFound, id)
	}
	return &p, nil
}

func (s *session) ListPurchases(_ context.Context, f ledger.PurchaseFilter) ([]ledger.Purchase, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	var out []ledger.Purchase
	for _, p := range s.m.st.purchases {
		if f.Matches(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *session) SetPurchasePaid(_ context.Context, id int64, paid decimal.Decimal) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	p, ok := s.m.st.purchases[id]
	if !ok {
		return fmt.Errorf("%w: %d", ledger.ErrPurchaseNotFound, id)
	}
	p.Paid = paid
	s.m.st.purchases[id] = p
	return nil
}

func (s *session) InsertAdjustment(_ context.Context, a ledger.Adjustment) (int64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	a.ID = s.m.st.next("adjustments")
	s.m.st.adjustments = append(s.m.st.adjustments, a)
	return a.ID, nil
}

func (s *session) InsertPurchaseReturn(_ context.Context, r ledger.PurchaseReturn) (int64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	r.ID = s.m.st.next("purchase_returns")
	s.m.st.purchaseReturns = append(s.m.st.purchaseReturns, r)
	return r.ID, nil
}

func (s *session) InsertSalesReturn(_ context.Context, r ledger.SalesReturn) (int64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	r.ID = s.m.st.next("sales_returns")
	s.m.st.salesReturns = append(s.m.st.salesReturns, r)
	return r.ID, nil
}

func (s *session) SalesReturnsForSale(_ context.Context, saleID int64) ([]ledger.SalesReturn, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	var out []ledger.SalesReturn
	for _, r := range s.m.st.salesReturns {
		if r.SaleID != nil && *r.SaleID == saleID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *session) InsertCashTransaction(_ context.Context, c ledger.CashTransaction) (int64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	c.ID = s.m.st.next("cash_transactions")
	s.m.st.cash = append(s.m.st.cash, c)
	return c.ID, nil
}

func (s *session) SetReference(_ context.Context, kind ledger.RecordKind, id int64, reference string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	st := s.m.st
	switch kind {
	case ledger.RecordPurchase:
		p, ok := st.purchases[id]
		if !ok {
			return fmt.Errorf("%w: %d", ledger.ErrPurchaseNotFound, id)
		}
		p.Reference = reference
		st.purchases[id] = p
		return nil
	case ledger.RecordAdjustment:
		for i := range st.adjustments {
			if st.adjustments[i].ID == id {
				st.adjustments[i].Reference = reference
				return nil
			}
		}
	case ledger.RecordPurchaseReturn:
		for i := range st.purchaseReturns {
			if st.purchaseReturns[i].ID == id {
				st.purchaseReturns[i].Reference = reference
				return nil
			}
		}
	case ledger.RecordSalesReturn:
		for i := range st.salesReturns {
			if st.salesReturns[i].ID == id {
				st.salesReturns[i].Reference = reference
				return nil
			}
		}
	case ledger.RecordCashTransaction:
		for i := range st.cash {
			if st.cash[i].ID == id {
				st.cash[i].Reference = reference
				return nil
			}
		}
	default:
		return fmt.Errorf("unknown record kind %q", kind)
	}
	return fmt.Errorf("%w: %s %d", ledger.ErrRecordNotFound, kind, id)
}

var _ ledger.TxStore = (*Memory)(nil)
