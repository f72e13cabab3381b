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
// PURCHASE
// =============================================================================

type PurchaseItemInput struct {
	ProductID int64
	Quantity  int64
	UnitCost  decimal.Decimal
}

type PurchaseInput struct {
	SupplierID  *int64
	PaymentType ledger.PaymentType // cash when empty
	Items       []PurchaseItemInput
	Date        time.Time
}

type PurchaseResult struct {
	Result
	PurchaseID int64
	LotIDs     []int64
}

// Purchase receives stock from a supplier. Each item becomes a lot tied to
// the purchase, and the product's cost price follows the latest receipt.
func (p *Processor) Purchase(ctx context.Context, in PurchaseInput) (*PurchaseResult, error) {
	pt, err := paymentOrDefault(in.PaymentType)
	if err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, ledger.Invalid("items", "a purchase needs at least one item")
	}
	if pt == ledger.PaymentCredit && in.SupplierID == nil {
		return nil, ledger.Invalid("supplier_id", "credit purchases need a supplier")
	}
	items := make([]ledger.PurchaseItem, 0, len(in.Items))
	total := decimal.Zero
	for i, it := range in.Items {
		if it.Quantity <= 0 {
			return nil, ledger.Invalid(fmt.Sprintf("items[%d].quantity", i), "must be greater than zero")
		}
		if it.UnitCost.IsNegative() {
			return nil, ledger.Invalid(fmt.Sprintf("items[%d].unit_cost", i), "must not be negative")
		}
		item := ledger.PurchaseItem{ProductID: it.ProductID, Quantity: it.Quantity, UnitCost: it.UnitCost}
		items = append(items, item)
		total = total.Add(item.Total())
	}

	var res *PurchaseResult
	err = p.books.Do(ctx, func(u *ledger.Unit) error {
		date := dateOr(in.Date, u.Now)
		if in.SupplierID != nil {
			if _, err := u.Records.GetSupplier(ctx, *in.SupplierID); err != nil {
				return err
			}
		}
		paid := total
		if pt == ledger.PaymentCredit {
			paid = decimal.Zero
		}
		purchaseID, err := u.Records.InsertPurchase(ctx, ledger.Purchase{
			SupplierID:  in.SupplierID,
			Total:       total,
			Paid:        paid,
			PaymentType: pt,
			Date:        date,
			CreatedAt:   u.Now,
			Items:       items,
		})
		if err != nil {
			return fmt.Errorf("insert purchase: %w", err)
		}

		lots := make([]int64, 0, len(items))
		for _, it := range items {
			lotID, err := u.Inventory.AddLot(ctx, ledger.LotInput{
				ProductID:  it.ProductID,
				PurchaseID: &purchaseID,
				Quantity:   it.Quantity,
				UnitCost:   it.UnitCost,
				AcquiredAt: date,
			})
			if err != nil {
				return err
			}
			if err := u.Inventory.SetCostPrice(ctx, it.ProductID, it.UnitCost); err != nil {
				return err
			}
			lots = append(lots, lotID)
		}

		reference := ref("PUR", purchaseID)
		if err := u.Records.SetReference(ctx, ledger.RecordPurchase, purchaseID, reference); err != nil {
			return err
		}
		journalType := ledger.JournalCashDisbursement
		if pt == ledger.PaymentCredit {
			journalType = ledger.JournalAccountsPayable
		}
		description := fmt.Sprintf("Inventory purchase #%d", purchaseID)
		entryID, err := post(ctx, u, ledger.PostInput{
			Type:        journalType,
			Reference:   reference,
			Description: description,
			Date:        date,
			Lines: []ledger.JournalLine{
				ledger.Debit(ledger.AcctInventory, total, description),
				ledger.Credit(settlementAccount(pt, ledger.AcctAccountsPayable), total, "Payment for "+description),
			},
		})
		if err != nil {
			return err
		}
		if pt == ledger.PaymentCredit {
			if err := adjustSupplier(ctx, u, *in.SupplierID, total); err != nil {
				return err
			}
		}
		res = &PurchaseResult{
			Result:     Result{EntryID: entryID, Reference: reference, Amount: total},
			PurchaseID: purchaseID,
			LotIDs:     lots,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.log.Info("purchase recorded",
		slog.Int64("purchase_id", res.PurchaseID),
		slog.String("payment_type", string(pt)),
		slog.String("total", total.String()))
	return res, nil
}

func adjustSupplier(ctx context.Context, u *ledger.Unit, id int64, delta decimal.Decimal) error {
	s, err := u.Records.GetSupplier(ctx, id)
	if err != nil {
		return err
	}
	return u.Records.SetSupplierBalance(ctx, id, s.Balance.Add(delta))
}

// =============================================================================
// BEGINNING INVENTORY
// =============================================================================

type BeginningInventoryInput struct {
	ProductID int64
	Quantity  int64
	// UnitCost defaults to the product's cost price when zero.
	UnitCost decimal.Decimal
	Date     time.Time
}

type LotResult struct {
	Result
	LotID int64
}

// BeginningInventory books stock the owner brings in as capital:
// Dr Inventory / Cr Owner Capital. The lot carries no purchase id.
func (p *Processor) BeginningInventory(ctx context.Context, in BeginningInventoryInput) (*LotResult, error) {
	if in.Quantity <= 0 {
		return nil, ledger.Invalid("quantity", "must be greater than zero")
	}
	if in.UnitCost.IsNegative() {
		return nil, ledger.Invalid("unit_cost", "must not be negative")
	}
	var res *LotResult
	err := p.books.Do(ctx, func(u *ledger.Unit) error {
		date := dateOr(in.Date, u.Now)
		prod, err := u.Inventory.Product(ctx, in.ProductID)
		if err != nil {
			return err
		}
		cost := in.UnitCost
		if cost.IsZero() {
			cost = prod.CostPrice
		}
		lotID, err := u.Inventory.AddLot(ctx, ledger.LotInput{
			ProductID:  in.ProductID,
			Source:     ledger.LotBeginning,
			Quantity:   in.Quantity,
			UnitCost:   cost,
			AcquiredAt: date,
		})
		if err != nil {
			return err
		}
		value := cost.Mul(qty(in.Quantity))
		reference := ref("BEG", lotID)
		description := fmt.Sprintf("Beginning inventory - %s", prod.Name)
		entryID, err := post(ctx, u, ledger.PostInput{
			Type:        ledger.JournalGeneral,
			Reference:   reference,
			Description: description,
			Date:        date,
			Lines: []ledger.JournalLine{
				ledger.Debit(ledger.AcctInventory, value, description),
				ledger.Credit(ledger.AcctOwnerCapital, value, "Owner contribution of inventory"),
			},
		})
		if err != nil {
			return err
		}
		res = &LotResult{
			Result: Result{EntryID: entryID, Reference: reference, Amount: value},
			LotID:  lotID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.log.Info("beginning inventory recorded",
		slog.Int64("product_id", in.ProductID),
		slog.Int64("lot_id", res.LotID),
		slog.String("value", res.Amount.String()))
	return res, nil
}

// =============================================================================
// PURCHASE RETURN
// =============================================================================

type PurchaseReturnInput struct {
	// PurchaseID ties the return to the original purchase. Its payment
	// terms decide the debit side and only its lots are consumed.
	PurchaseID *int64
	ProductID  int64
	Quantity   int64
	// PaymentType is only read when PurchaseID is nil; credit when empty.
	PaymentType ledger.PaymentType
	Reason      string
	Date        time.Time
}

type PurchaseReturnResult struct {
	Result
	ReturnID    int64
	PaymentType ledger.PaymentType
}

// PurchaseReturn sends stock back: Dr Cash (cash purchase) or Dr Accounts
// Payable (credit purchase) / Cr Inventory, at the FIFO cost of the
// returned units.
func (p *Processor) PurchaseReturn(ctx context.Context, in PurchaseReturnInput) (*PurchaseReturnResult, error) {
	if in.Quantity <= 0 {
		return nil, ledger.Invalid("quantity", "must be greater than zero")
	}
	var res *PurchaseReturnResult
	err := p.books.Do(ctx, func(u *ledger.Unit) error {
		date := dateOr(in.Date, u.Now)
		prod, err := u.Inventory.Product(ctx, in.ProductID)
		if err != nil {
			return err
		}

		pt := ledger.PaymentCredit
		var supplierID *int64
		var purchase *ledger.Purchase
		var quote *ledger.FIFOQuote
		if in.PurchaseID != nil {
			purchase, err = u.Records.GetPurchase(ctx, *in.PurchaseID)
			if err != nil {
				return err
			}
			pt, supplierID = purchase.PaymentType, purchase.SupplierID
			quote, err = u.Inventory.QuotePurchase(ctx, purchase.ID, in.ProductID, in.Quantity)
			if err != nil {
				return err
			}
		} else {
			if in.PaymentType != "" {
				if !in.PaymentType.Valid() {
					return ledger.Invalid("payment_type", "unknown payment type %q", in.PaymentType)
				}
				pt = in.PaymentType
			}
			quote, err = u.Inventory.QuoteFIFO(ctx, in.ProductID, in.Quantity)
			if err != nil {
				return err
			}
		}
		if err := u.Inventory.CommitPlan(ctx, quote); err != nil {
			return err
		}

		value := quote.TotalCost
		returnID, err := u.Records.InsertPurchaseReturn(ctx, ledger.PurchaseReturn{
			PurchaseID: in.PurchaseID,
			ProductID:  in.ProductID,
			Quantity:   in.Quantity,
			UnitCost:   value.DivRound(qty(in.Quantity), 4),
			Total:      value,
			Reason:     in.Reason,
			Date:       date,
			CreatedAt:  u.Now,
		})
		if err != nil {
			return err
		}
		reference := ref("PR", returnID)
		if err := u.Records.SetReference(ctx, ledger.RecordPurchaseReturn, returnID, reference); err != nil {
			return err
		}
		journalType := ledger.JournalCashReceipt
		if pt == ledger.PaymentCredit {
			journalType = ledger.JournalAccountsPayable
		}
		entryID, err := post(ctx, u, ledger.PostInput{
			Type:        journalType,
			Reference:   reference,
			Description: fmt.Sprintf("Purchase return - %s (%d units)", prod.Name, in.Quantity),
			Date:        date,
			Lines: []ledger.JournalLine{
				ledger.Debit(settlementAccount(pt, ledger.AcctAccountsPayable), value, "Return - "+in.Reason),
				ledger.Credit(ledger.AcctInventory, value, "Returned to supplier - "+prod.Name),
			},
		})
		if err != nil {
			return err
		}
		if pt == ledger.PaymentCredit && supplierID != nil {
			if err := adjustSupplier(ctx, u, *supplierID, value.Neg()); err != nil {
				return err
			}
		}
		// Goods sent back against a credit purchase settle what is still
		// owed on it.
		if purchase != nil && purchase.Outstanding().IsPositive() {
			settled := decimal.Min(value, purchase.Outstanding())
			if err := u.Records.SetPurchasePaid(ctx, purchase.ID, purchase.Paid.Add(settled)); err != nil {
				return err
			}
		}
		res = &PurchaseReturnResult{
			Result:      Result{EntryID: entryID, Reference: reference, Amount: value},
			ReturnID:    returnID,
			PaymentType: pt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.log.Info("purchase return recorded",
		slog.Int64("product_id", in.ProductID),
		slog.Int64("quantity", in.Quantity),
		slog.String("payment_type", string(res.PaymentType)),
		slog.String("value", res.Amount.String()))
	return res, nil
}

// =============================================================================
// SUPPLIER PAYMENT
// =============================================================================

type SupplierPaymentInput struct {
	SupplierID int64
	// PurchaseID, when set, applies the payment to that credit purchase.
	// Otherwise the payment settles the supplier's open credit purchases
	// oldest first.
	PurchaseID  *int64
	Amount      decimal.Decimal
	Reference   string
	Description string
	Date        time.Time
}

// SupplierPayment settles payables: Dr Accounts Payable / Cr Cash.
// A payment can never exceed what is owed to the supplier.
func (p *Processor) SupplierPayment(ctx context.Context, in SupplierPaymentInput) (*Result, error) {
	if err := positive("amount", in.Amount); err != nil {
		return nil, err
	}
	var res *Result
	err := p.books.Do(ctx, func(u *ledger.Unit) error {
		date := dateOr(in.Date, u.Now)
		s, err := u.Records.GetSupplier(ctx, in.SupplierID)
		if err != nil {
			return err
		}
		if in.Amount.GreaterThan(s.Balance) {
			return ledger.Invalid("amount", "exceeds supplier balance %s", s.Balance.StringFixed(2))
		}
		if in.PurchaseID != nil {
			purchase, err := u.Records.GetPurchase(ctx, *in.PurchaseID)
			if err != nil {
				return err
			}
			if purchase.SupplierID == nil || *purchase.SupplierID != s.ID {
				return ledger.Invalid("purchase_id", "purchase %d does not belong to supplier %d", purchase.ID, s.ID)
			}
			if in.Amount.GreaterThan(purchase.Outstanding()) {
				return ledger.Invalid("amount", "exceeds outstanding %s on purchase %d", purchase.Outstanding().StringFixed(2), purchase.ID)
			}
			if err := u.Records.SetPurchasePaid(ctx, purchase.ID, purchase.Paid.Add(in.Amount)); err != nil {
				return err
			}
		} else if err := settleCreditPurchases(ctx, u, s.ID, in.Amount); err != nil {
			return err
		}

		cashID, err := u.Records.InsertCashTransaction(ctx, ledger.CashTransaction{
			Kind:        ledger.CashSupplierPayment,
			Amount:      in.Amount,
			PaymentType: ledger.PaymentCash,
			SupplierID:  &s.ID,
			PurchaseID:  in.PurchaseID,
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
			reference = ref("SUPP-PMT", cashID)
			if err := u.Records.SetReference(ctx, ledger.RecordCashTransaction, cashID, reference); err != nil {
				return err
			}
		}
		entryID, err := post(ctx, u, ledger.PostInput{
			Type:        ledger.JournalCashDisbursement,
			Reference:   reference,
			Description: fmt.Sprintf("Supplier payment - %s", s.Name),
			Date:        date,
			Lines: []ledger.JournalLine{
				ledger.Debit(ledger.AcctAccountsPayable, in.Amount, "Supplier payment - "+in.Description),
				ledger.Credit(ledger.AcctCash, in.Amount, "Payment made to supplier"),
			},
		})
		if err != nil {
			return err
		}
		if err := u.Records.SetSupplierBalance(ctx, s.ID, s.Balance.Sub(in.Amount)); err != nil {
			return err
		}
		res = &Result{EntryID: entryID, Reference: reference, Amount: in.Amount}
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.log.Info("supplier payment recorded",
		slog.Int64("supplier_id", in.SupplierID),
		slog.String("amount", in.Amount.String()))
	return res, nil
}

// settleCreditPurchases spreads amount over the supplier's open credit
// purchases, oldest purchase date first.
func settleCreditPurchases(ctx context.Context, u *ledger.Unit, supplierID int64, amount decimal.Decimal) error {
	purchases, err := u.Records.ListPurchases(ctx, ledger.PurchaseFilter{
		SupplierID:  &supplierID,
		PaymentType: ledger.PaymentCredit,
	})
	if err != nil {
		return err
	}
	sort.SliceStable(purchases, func(i, j int) bool { return purchases[i].Date.Before(purchases[j].Date) })

	left := amount
	for _, purchase := range purchases {
		if !left.IsPositive() {
			break
		}
		due := purchase.Outstanding()
		if !due.IsPositive() {
			continue
		}
		applied := decimal.Min(due, left)
		if err := u.Records.SetPurchasePaid(ctx, purchase.ID, purchase.Paid.Add(applied)); err != nil {
			return err
		}
		left = left.Sub(applied)
	}
	return nil
}

// OutstandingCreditPurchases lists credit purchases that still have a
// balance, optionally for one supplier.
func (p *Processor) OutstandingCreditPurchases(ctx context.Context, supplierID *int64) ([]ledger.Purchase, error) {
	purchases, err := p.books.Store().ListPurchases(ctx, ledger.PurchaseFilter{
		SupplierID:  supplierID,
		PaymentType: ledger.PaymentCredit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]ledger.Purchase, 0, len(purchases))
	for _, pu := range purchases {
		if pu.Outstanding().IsPositive() {
			out = append(out, pu)
		}
	}
	return out, nil
}
