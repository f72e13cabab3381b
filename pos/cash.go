package pos

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/pos-engine/ledger"
)

// expenseAccounts maps expense categories to chart accounts. Anything
// else lands in Operating Expenses.
var expenseAccounts = map[string]string{
	"rent":            ledger.AcctRentExpense,
	"utilities":       ledger.AcctUtilitiesExpense,
	"office_supplies": ledger.AcctOfficeSuppliesExpense,
	"advertising":     ledger.AcctAdvertisingExpense,
	"depreciation":    ledger.AcctDepreciationExpense,
	"general":         ledger.AcctOperatingExpenses,
}

// ExpenseAccount resolves an expense category to its account name.
func ExpenseAccount(category string) string {
	if acct, ok := expenseAccounts[strings.ToLower(strings.TrimSpace(category))]; ok {
		return acct
	}
	return ledger.AcctOperatingExpenses
}

type ExpenseInput struct {
	Category    string
	Amount      decimal.Decimal
	PaymentType ledger.PaymentType // cash when empty
	Description string
	Date        time.Time
}

// Expense records an operating cost: Dr <expense> / Cr Cash or Accounts Payable.
func (p *Processor) Expense(ctx context.Context, in ExpenseInput) (*Result, error) {
	pt, err := paymentOrDefault(in.PaymentType)
	if err != nil {
		return nil, err
	}
	if err := positive("amount", in.Amount); err != nil {
		return nil, err
	}
	account := ExpenseAccount(in.Category)
	description := in.Description
	if description == "" {
		description = account
	}

	var res *Result
	err = p.books.Do(ctx, func(u *ledger.Unit) error {
		date := dateOr(in.Date, u.Now)
		cashID, err := u.Records.InsertCashTransaction(ctx, ledger.CashTransaction{
			Kind:        ledger.CashExpense,
			Amount:      in.Amount,
			PaymentType: pt,
			Category:    in.Category,
			Description: description,
			Date:        date,
			CreatedAt:   u.Now,
		})
		if err != nil {
			return err
		}
		reference := ref("EXP", cashID)
		if err := u.Records.SetReference(ctx, ledger.RecordCashTransaction, cashID, reference); err != nil {
			return err
		}
		journalType := ledger.JournalCashDisbursement
		if pt == ledger.PaymentCredit {
			journalType = ledger.JournalAccountsPayable
		}
		entryID, err := u.Journal.Post(ctx, ledger.PostInput{
			Type:        journalType,
			Reference:   reference,
			Description: description,
			Date:        date,
			Lines: []ledger.JournalLine{
				ledger.Debit(account, in.Amount, description),
				ledger.Credit(settlementAccount(pt, ledger.AcctAccountsPayable), in.Amount, "Payment for "+description),
			},
		})
		if err != nil {
			return err
		}
		res = &Result{EntryID: entryID, Reference: reference, Amount: in.Amount}
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.log.Info("expense recorded",
		slog.String("account", account),
		slog.String("amount", in.Amount.String()))
	return res, nil
}

type InvestmentInput struct {
	Amount      decimal.Decimal
	Description string
	Date        time.Time
}

// CashInvestment books owner money put into the business: Dr Cash / Cr Owner Capital.
func (p *Processor) CashInvestment(ctx context.Context, in InvestmentInput) (*Result, error) {
	if err := positive("amount", in.Amount); err != nil {
		return nil, err
	}
	var res *Result
	err := p.books.Do(ctx, func(u *ledger.Unit) error {
		date := dateOr(in.Date, u.Now)
		cashID, err := u.Records.InsertCashTransaction(ctx, ledger.CashTransaction{
			Kind:        ledger.CashInvestment,
			Amount:      in.Amount,
			PaymentType: ledger.PaymentCash,
			Description: in.Description,
			Date:        date,
			CreatedAt:   u.Now,
		})
		if err != nil {
			return err
		}
		reference := ref("INV", cashID)
		if err := u.Records.SetReference(ctx, ledger.RecordCashTransaction, cashID, reference); err != nil {
			return err
		}
		entryID, err := u.Journal.Post(ctx, ledger.PostInput{
			Type:        ledger.JournalCashReceipt,
			Reference:   reference,
			Description: "Owner cash investment",
			Date:        date,
			Lines: []ledger.JournalLine{
				ledger.Debit(ledger.AcctCash, in.Amount, in.Description),
				ledger.Credit(ledger.AcctOwnerCapital, in.Amount, "Owner investment"),
			},
		})
		if err != nil {
			return err
		}
		res = &Result{EntryID: entryID, Reference: reference, Amount: in.Amount}
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.log.Info("cash investment recorded", slog.String("amount", in.Amount.String()))
	return res, nil
}
