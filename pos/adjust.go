package pos

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/pos-engine/ledger"
)

type AdjustmentInput struct {
	ProductID int64
	Direction ledger.AdjustmentDirection
	Quantity  int64
	// UnitCost prices found stock; the product's cost price when zero.
	UnitCost decimal.Decimal
	Reason   string
	Date     time.Time
}

type AdjustmentResult struct {
	Result
	AdjustmentID int64
	LotID        int64 // increases only
}

// Adjust corrects on-hand stock after a count.
//
// A decrease consumes lots oldest first and books the loss as Dr Operating
// Expenses / Cr Inventory. The loss is valued at the consumed lots' cost,
// or at the product's cost price under ValuationCurrentCost.
//
// An increase adds a lot and books Dr Inventory / Cr Other Income.
func (p *Processor) Adjust(ctx context.Context, in AdjustmentInput) (*AdjustmentResult, error) {
	if in.Quantity <= 0 {
		return nil, ledger.Invalid("quantity", "must be greater than zero")
	}
	if in.Direction != ledger.AdjustIncrease && in.Direction != ledger.AdjustDecrease {
		return nil, ledger.Invalid("direction", "must be increase or decrease")
	}
	if in.UnitCost.IsNegative() {
		return nil, ledger.Invalid("unit_cost", "must not be negative")
	}

	var res *AdjustmentResult
	err := p.books.Do(ctx, func(u *ledger.Unit) error {
		date := dateOr(in.Date, u.Now)
		prod, err := u.Inventory.Product(ctx, in.ProductID)
		if err != nil {
			return err
		}

		var (
			value decimal.Decimal
			lotID int64
			lines []ledger.JournalLine
		)
		switch in.Direction {
		case ledger.AdjustDecrease:
			quote, err := u.Inventory.QuoteFIFO(ctx, in.ProductID, in.Quantity)
			if err != nil {
				return err
			}
			if err := u.Inventory.CommitPlan(ctx, quote); err != nil {
				return err
			}
			value = quote.TotalCost
			if p.opts.AdjustmentValuation == ValuationCurrentCost {
				value = prod.CostPrice.Mul(qty(in.Quantity))
			}
			lines = []ledger.JournalLine{
				ledger.Debit(ledger.AcctOperatingExpenses, value, "Inventory adjustment - "+in.Reason),
				ledger.Credit(ledger.AcctInventory, value, "Inventory reduction - "+prod.Name),
			}
		case ledger.AdjustIncrease:
			cost := in.UnitCost
			if cost.IsZero() {
				cost = prod.CostPrice
			}
			lotID, err = u.Inventory.AddLot(ctx, ledger.LotInput{
				ProductID:  in.ProductID,
				Source:     ledger.LotAdjustment,
				Quantity:   in.Quantity,
				UnitCost:   cost,
				AcquiredAt: date,
			})
			if err != nil {
				return err
			}
			value = cost.Mul(qty(in.Quantity))
			lines = []ledger.JournalLine{
				ledger.Debit(ledger.AcctInventory, value, "Inventory addition - "+prod.Name),
				ledger.Credit(ledger.AcctOtherIncome, value, "Inventory found - "+in.Reason),
			}
		}

		adjID, err := u.Records.InsertAdjustment(ctx, ledger.Adjustment{
			ProductID: in.ProductID,
			Direction: in.Direction,
			Quantity:  in.Quantity,
			Value:     value,
			Reason:    in.Reason,
			Date:      date,
			CreatedAt: u.Now,
		})
		if err != nil {
			return err
		}
		reference := ref("ADJ", adjID)
		if err := u.Records.SetReference(ctx, ledger.RecordAdjustment, adjID, reference); err != nil {
			return err
		}
		entryID, err := post(ctx, u, ledger.PostInput{
			Type:        ledger.JournalGeneral,
			Reference:   reference,
			Description: fmt.Sprintf("Inventory adjustment - %s (%s %d)", prod.Name, in.Direction, in.Quantity),
			Date:        date,
			Lines:       lines,
		})
		if err != nil {
			return err
		}
		res = &AdjustmentResult{
			Result:       Result{EntryID: entryID, Reference: reference, Amount: value},
			AdjustmentID: adjID,
			LotID:        lotID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.log.Info("inventory adjusted",
		slog.Int64("product_id", in.ProductID),
		slog.String("direction", string(in.Direction)),
		slog.Int64("quantity", in.Quantity),
		slog.String("value", res.Amount.String()))
	return res, nil
}
