/*
chart.go - Chart of Accounts

PURPOSE:
  Registry of named accounts and the normal-balance sign convention.
  The stored running balance of an account moves only through ApplyDelta,
  which only the Journal Engine calls.

SIGN CONVENTION:
  asset, expense                 (debit-normal):  balance += debit - credit
  liability, equity, revenue     (credit-normal): balance += credit - debit

  Dr Cash 100 / Cr Sales Revenue 100 raises BOTH balances by 100.

UNKNOWN ACCOUNTS:
  Balance() of an unknown account is 0 with a warning.
  ApplyDelta() on an unknown account depends on AccountMode:
    strict  -> *UnknownAccountError
    lenient -> warning, no mutation, nil error
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
)

// Account names used by the transaction processors.
const (
	AcctCash                    = "Cash"
	AcctAccountsReceivable      = "Accounts Receivable"
	AcctInventory               = "Inventory"
	AcctEquipment               = "Equipment"
	AcctAccumulatedDepreciation = "Accumulated Depreciation"
	AcctAccountsPayable         = "Accounts Payable"
	AcctUnearnedRevenue         = "Unearned Revenue"
	AcctSalesTaxPayable         = "Sales Tax Payable"
	AcctOwnerCapital            = "Owner Capital"
	AcctOwnerDrawings           = "Owner Drawings"
	AcctRetainedEarnings        = "Retained Earnings"
	AcctSalesRevenue            = "Sales Revenue"
	AcctServiceRevenue          = "Service Revenue"
	AcctSalesReturns            = "Sales Returns"
	AcctOtherIncome             = "Other Income"
	AcctCOGS                    = "Cost of Goods Sold"
	AcctOperatingExpenses       = "Operating Expenses"
	AcctDepreciationExpense     = "Depreciation Expense"
	AcctRentExpense             = "Rent Expense"
	AcctUtilitiesExpense        = "Utilities Expense"
	AcctAdvertisingExpense      = "Advertising Expense"
	AcctOfficeSuppliesExpense   = "Office Supplies Expense"
	AcctBadDebtExpense          = "Bad Debt Expense"
)

// DefaultChart is the standard retail chart seeded on a fresh database.
func DefaultChart() []Account {
	acct := func(code, name string, t AccountType) Account {
		return Account{Code: code, Name: name, Type: t, Balance: decimal.Zero, Active: true}
	}
	return []Account{
		acct("1001", AcctCash, AccountAsset),
		acct("1002", AcctAccountsReceivable, AccountAsset),
		acct("1003", AcctInventory, AccountAsset),
		acct("1004", AcctEquipment, AccountAsset),
		acct("1005", AcctAccumulatedDepreciation, AccountAsset),
		acct("2001", AcctAccountsPayable, AccountLiability),
		acct("2002", AcctUnearnedRevenue, AccountLiability),
		acct("2003", AcctSalesTaxPayable, AccountLiability),
		acct("3001", AcctOwnerCapital, AccountEquity),
		acct("3002", AcctOwnerDrawings, AccountEquity),
		acct("3003", AcctRetainedEarnings, AccountEquity),
		acct("4001", AcctSalesRevenue, AccountRevenue),
		acct("4002", AcctServiceRevenue, AccountRevenue),
		acct("4003", AcctSalesReturns, AccountRevenue),
		acct("4004", AcctOtherIncome, AccountRevenue),
		acct("5001", AcctCOGS, AccountExpense),
		acct("5002", AcctOperatingExpenses, AccountExpense),
		acct("5003", AcctDepreciationExpense, AccountExpense),
		acct("6100", AcctRentExpense, AccountExpense),
		acct("6200", AcctUtilitiesExpense, AccountExpense),
		acct("6300", AcctAdvertisingExpense, AccountExpense),
		acct("6400", AcctOfficeSuppliesExpense, AccountExpense),
		acct("6600", AcctBadDebtExpense, AccountExpense),
	}
}

// Chart is the Chart of Accounts component.
type Chart struct {
	scope
}

// Balance returns the stored balance, or zero for an unknown account.
func (c *Chart) Balance(ctx context.Context, name string) (decimal.Decimal, error) {
	a, err := c.store.GetAccount(ctx, name)
	if errors.Is(err, ErrAccountNotFound) {
		c.log.Warn("balance requested for unknown account", slog.String("account", name))
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return a.Balance, nil
}

// Account looks up one account. Returns ErrAccountNotFound if missing.
func (c *Chart) Account(ctx context.Context, name string) (*Account, error) {
	return c.store.GetAccount(ctx, name)
}

func (c *Chart) Accounts(ctx context.Context) ([]Account, error) {
	return c.store.ListAccounts(ctx)
}

// ApplyDelta moves an account's running balance by one line's debit and
// credit using the account type's sign convention.
func (c *Chart) ApplyDelta(ctx context.Context, name string, debit, credit decimal.Decimal) error {
	a, err := c.store.GetAccount(ctx, name)
	if errors.Is(err, ErrAccountNotFound) {
		if c.mode == AccountModeLenient {
			c.log.Warn("skipping balance update for unknown account",
				slog.String("account", name),
				slog.String("debit", debit.String()),
				slog.String("credit", credit.String()))
			return nil
		}
		return &UnknownAccountError{Account: name}
	}
	if err != nil {
		return err
	}
	next := a.Balance.Add(a.Type.SignedDelta(debit, credit))
	if err := c.store.SetAccountBalance(ctx, name, next); err != nil {
		return fmt.Errorf("update balance of %s: %w", name, err)
	}
	return nil
}

// Register adds one account with a zero balance.
func (c *Chart) Register(ctx context.Context, a Account) (int64, error) {
	if a.Code == "" {
		return 0, Invalid("code", "account code is required")
	}
	if a.Name == "" {
		return 0, Invalid("name", "account name is required")
	}
	if !a.Type.Valid() {
		return 0, Invalid("type", "unknown account type %q", a.Type)
	}
	a.Balance = decimal.Zero
	a.Active = true
	a.CreatedAt = c.clock()
	return c.store.CreateAccount(ctx, a)
}

// Seed registers every account that is not already present by name.
// Safe to call on every start.
func (c *Chart) Seed(ctx context.Context, accounts []Account) (int, error) {
	created := 0
	err := c.atomic(ctx, func(s Store) error {
		bound := &Chart{scope: c.within(s)}
		for _, a := range accounts {
			_, err := s.GetAccount(ctx, a.Name)
			if err == nil {
				continue
			}
			if !errors.Is(err, ErrAccountNotFound) {
				return err
			}
			if _, err := bound.Register(ctx, a); err != nil {
				return fmt.Errorf("seed %s %s: %w", a.Code, a.Name, err)
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// Deactivate hides an account from new use. It is never deleted.
func (c *Chart) Deactivate(ctx context.Context, name string) error {
	return c.store.SetAccountActive(ctx, name, false)
}

// resolve checks every name exists. Used by strict posting before writes.
func (c *Chart) resolve(ctx context.Context, names []string) error {
	for _, name := range names {
		_, err := c.store.GetAccount(ctx, name)
		if errors.Is(err, ErrAccountNotFound) {
			return &UnknownAccountError{Account: name}
		}
		if err != nil {
			return err
		}
	}
	return nil
}
