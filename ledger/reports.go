/*
reports.go - Read-only reporting queries

PURPOSE:
  Derives trial balances, account ledgers and summaries from persisted
  journal lines and account balances. Nothing here writes.

RUNNING BALANCES:
  AccountLedger recomputes its running balance from the full line history
  on every call, accumulating debit - credit in date then entry-id order.
  It is a display balance and is independent of the stored Account.Balance.
*/
package ledger

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// Reports is the query component.
type Reports struct {
	scope
}

// =============================================================================
// TRIAL BALANCE
// =============================================================================

type TrialBalanceRow struct {
	Code    string
	Name    string
	Type    AccountType
	Balance decimal.Decimal
}

// TrialBalance lists accounts with a non-zero balance plus every
// asset/liability/equity account, ordered by code.
func (r *Reports) TrialBalance(ctx context.Context) ([]TrialBalanceRow, error) {
	accounts, err := r.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(accounts, func(i, j int) bool { return accounts[i].Code < accounts[j].Code })

	rows := make([]TrialBalanceRow, 0, len(accounts))
	for _, a := range accounts {
		if a.Balance.IsZero() && !a.Type.Structural() {
			continue
		}
		rows = append(rows, TrialBalanceRow{Code: a.Code, Name: a.Name, Type: a.Type, Balance: a.Balance})
	}
	return rows, nil
}

// JournalTotals sums every debit and credit ever posted.
type JournalTotals struct {
	Debits   decimal.Decimal
	Credits  decimal.Decimal
	Balanced bool
}

func (r *Reports) Totals(ctx context.Context) (JournalTotals, error) {
	lines, err := r.store.AllLines(ctx)
	if err != nil {
		return JournalTotals{}, err
	}
	t := JournalTotals{Debits: decimal.Zero, Credits: decimal.Zero}
	for _, l := range lines {
		t.Debits = t.Debits.Add(l.Debit)
		t.Credits = t.Credits.Add(l.Credit)
	}
	t.Balanced = t.Debits.Sub(t.Credits).Abs().LessThanOrEqual(Tolerance)
	return t, nil
}

// ValidateTrialBalance reports whether the whole journal balances.
func (r *Reports) ValidateTrialBalance(ctx context.Context) (bool, error) {
	t, err := r.Totals(ctx)
	if err != nil {
		return false, err
	}
	return t.Balanced, nil
}

// =============================================================================
// ACCOUNT LEDGER & SUMMARY
// =============================================================================

// LedgerRow is one posted line plus the running balance after it.
type LedgerRow struct {
	PostedLine
	Balance decimal.Decimal
}

// AccountLedger returns every line against the account in chronological
// order with a freshly computed running balance.
func (r *Reports) AccountLedger(ctx context.Context, name string) ([]LedgerRow, error) {
	lines, err := r.store.LinesForAccount(ctx, name)
	if err != nil {
		return nil, err
	}
	rows := make([]LedgerRow, 0, len(lines))
	running := decimal.Zero
	for _, l := range lines {
		running = running.Add(l.Debit).Sub(l.Credit)
		rows = append(rows, LedgerRow{PostedLine: l, Balance: running})
	}
	return rows, nil
}

type AccountSummary struct {
	Code             string
	Name             string
	Type             AccountType
	Balance          decimal.Decimal
	TotalDebits      decimal.Decimal
	TotalCredits     decimal.Decimal
	TransactionCount int
}

// AccountSummary returns ErrAccountNotFound for unknown accounts.
func (r *Reports) AccountSummary(ctx context.Context, name string) (*AccountSummary, error) {
	a, err := r.store.GetAccount(ctx, name)
	if err != nil {
		return nil, err
	}
	lines, err := r.store.LinesForAccount(ctx, name)
	if err != nil {
		return nil, err
	}
	s := &AccountSummary{
		Code:             a.Code,
		Name:             a.Name,
		Type:             a.Type,
		Balance:          a.Balance,
		TotalDebits:      decimal.Zero,
		TotalCredits:     decimal.Zero,
		TransactionCount: len(lines),
	}
	for _, l := range lines {
		s.TotalDebits = s.TotalDebits.Add(l.Debit)
		s.TotalCredits = s.TotalCredits.Add(l.Credit)
	}
	return s, nil
}

// =============================================================================
// INCOME & INVENTORY
// =============================================================================

type IncomeSummary struct {
	Revenue     decimal.Decimal
	Returns     decimal.Decimal
	NetSales    decimal.Decimal
	COGS        decimal.Decimal
	GrossProfit decimal.Decimal
	Expenses    decimal.Decimal
	NetIncome   decimal.Decimal
}

// IncomeSummary rolls revenue and expense balances into a profit figure.
// Sales Returns is a contra-revenue account and is reported separately.
func (r *Reports) IncomeSummary(ctx context.Context) (*IncomeSummary, error) {
	accounts, err := r.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	s := &IncomeSummary{
		Revenue:  decimal.Zero,
		Returns:  decimal.Zero,
		COGS:     decimal.Zero,
		Expenses: decimal.Zero,
	}
	for _, a := range accounts {
		switch {
		case a.Name == AcctSalesReturns:
			s.Returns = s.Returns.Add(a.Balance.Neg())
		case a.Name == AcctCOGS:
			s.COGS = s.COGS.Add(a.Balance)
		case a.Type == AccountRevenue:
			s.Revenue = s.Revenue.Add(a.Balance)
		case a.Type == AccountExpense:
			s.Expenses = s.Expenses.Add(a.Balance)
		}
	}
	s.NetSales = s.Revenue.Sub(s.Returns)
	s.GrossProfit = s.NetSales.Sub(s.COGS)
	s.NetIncome = s.GrossProfit.Sub(s.Expenses)
	return s, nil
}

type InventoryReconciliation struct {
	AccountBalance decimal.Decimal
	LotValuation   decimal.Decimal
	Difference     decimal.Decimal
	Balanced       bool
}

// InventoryReconciliation compares the Inventory account with the cost of
// the stock still sitting in lots.
func (r *Reports) InventoryReconciliation(ctx context.Context) (*InventoryReconciliation, error) {
	balance, err := (&Chart{scope: r.scope}).Balance(ctx, AcctInventory)
	if err != nil {
		return nil, err
	}
	value, err := (&Inventory{scope: r.scope}).Valuation(ctx)
	if err != nil {
		return nil, err
	}
	diff := balance.Sub(value)
	return &InventoryReconciliation{
		AccountBalance: balance,
		LotValuation:   value,
		Difference:     diff,
		Balanced:       diff.Abs().LessThanOrEqual(Tolerance),
	}, nil
}
