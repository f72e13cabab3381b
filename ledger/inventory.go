/*
inventory.go - Inventory lot ledger with FIFO costing

PURPOSE:
  Tracks stock as a per-product queue of acquisition lots and values
  outgoing units at the cost of the oldest remaining lots first.

FIFO ORDER:
  Lots are walked by AcquiredAt ascending; equal dates fall back to the
  lower lot id.

QUOTE THEN COMMIT:
  QuoteFIFO is read-only and either covers the full quantity or fails
  with *InsufficientStockError. Nothing is partially reserved. Commit
  applies a plan. Callers that need both steps together use Consume or
  run both inside Books.Do so nothing interleaves between them.

  Example: lots (5 @ 10, Jan 1) and (3 @ 12, Jan 2), request 7
    -> plan [lot1 x5 @10, lot2 x2 @12], total cost 74
    -> after commit lot1 remaining 0, lot2 remaining 1

PRODUCT QUANTITY:
  Product.Quantity mirrors the sum of remaining lot quantity. AddLot
  raises it, Commit lowers it, SyncQuantities repairs drift.
*/
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

// Inventory is the lot ledger component.
type Inventory struct {
	scope
}

// LotInput describes stock entering the system.
type LotInput struct {
	ProductID  int64
	PurchaseID *int64
	Source     LotSource // defaults from PurchaseID when empty
	Quantity   int64
	UnitCost   decimal.Decimal
	AcquiredAt time.Time // defaults to now
}

// AddLot creates a lot with remaining = quantity and raises the product's
// on-hand quantity by the same amount.
func (inv *Inventory) AddLot(ctx context.Context, in LotInput) (int64, error) {
	if in.Quantity <= 0 {
		return 0, Invalid("quantity", "must be greater than zero")
	}
	if in.UnitCost.IsNegative() {
		return 0, Invalid("unit_cost", "must not be negative")
	}
	if in.Source == "" {
		in.Source = LotBeginning
		if in.PurchaseID != nil {
			in.Source = LotPurchase
		}
	}
	if in.Source == LotPurchase && in.PurchaseID == nil {
		return 0, Invalid("purchase_id", "purchase lots need a purchase id")
	}
	if in.Source != LotPurchase && in.PurchaseID != nil {
		return 0, Invalid("purchase_id", "only purchase lots carry a purchase id")
	}
	now := inv.clock()
	if in.AcquiredAt.IsZero() {
		in.AcquiredAt = now
	}

	var lotID int64
	err := inv.atomic(ctx, func(s Store) error {
		p, err := s.GetProduct(ctx, in.ProductID)
		if err != nil {
			return err
		}
		lotID, err = s.InsertLot(ctx, Lot{
			ProductID:         in.ProductID,
			PurchaseID:        in.PurchaseID,
			Source:            in.Source,
			QuantityPurchased: in.Quantity,
			QuantityRemaining: in.Quantity,
			UnitCost:          in.UnitCost,
			AcquiredAt:        in.AcquiredAt.UTC(),
			CreatedAt:         now,
		})
		if err != nil {
			return fmt.Errorf("insert lot: %w", err)
		}
		return s.SetProductQuantity(ctx, p.ID, p.Quantity+in.Quantity)
	})
	if err != nil {
		return 0, err
	}
	inv.log.Debug("lot added",
		slog.Int64("lot_id", lotID),
		slog.Int64("product_id", in.ProductID),
		slog.Int64("quantity", in.Quantity),
		slog.String("unit_cost", in.UnitCost.String()))
	return lotID, nil
}

// ListLots returns the product's lots that still hold stock, in FIFO order.
func (inv *Inventory) ListLots(ctx context.Context, productID int64) ([]Lot, error) {
	return inv.store.OpenLots(ctx, productID)
}

// OnHand sums remaining quantity across the product's lots.
func (inv *Inventory) OnHand(ctx context.Context, productID int64) (int64, error) {
	lots, err := inv.store.OpenLots(ctx, productID)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, l := range lots {
		total += l.QuantityRemaining
	}
	return total, nil
}

// QuoteFIFO plans taking qty units of a product out of its oldest lots.
// If the lots cannot cover qty it returns *InsufficientStockError and a
// nil quote.
func (inv *Inventory) QuoteFIFO(ctx context.Context, productID, qty int64) (*FIFOQuote, error) {
	if qty <= 0 {
		return nil, Invalid("quantity", "must be greater than zero")
	}
	lots, err := inv.store.OpenLots(ctx, productID)
	if err != nil {
		return nil, err
	}
	return planFIFO(productID, qty, lots)
}

// QuotePurchase is QuoteFIFO restricted to the lots of one purchase.
func (inv *Inventory) QuotePurchase(ctx context.Context, purchaseID, productID, qty int64) (*FIFOQuote, error) {
	if qty <= 0 {
		return nil, Invalid("quantity", "must be greater than zero")
	}
	lots, err := inv.store.OpenLotsByPurchase(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	var mine []Lot
	for _, l := range lots {
		if l.ProductID == productID {
			mine = append(mine, l)
		}
	}
	return planFIFO(productID, qty, mine)
}

func planFIFO(productID, qty int64, lots []Lot) (*FIFOQuote, error) {
	quote := &FIFOQuote{ProductID: productID, Quantity: qty, TotalCost: decimal.Zero}
	need := qty
	var available int64
	for _, l := range lots {
		available += l.QuantityRemaining
		if need == 0 {
			continue
		}
		take := min(need, l.QuantityRemaining)
		if take <= 0 {
			continue
		}
		c := Consumption{LotID: l.ID, ProductID: productID, Quantity: take, UnitCost: l.UnitCost}
		quote.Plan = append(quote.Plan, c)
		quote.TotalCost = quote.TotalCost.Add(c.Cost())
		need -= take
	}
	if need > 0 {
		return nil, &InsufficientStockError{ProductID: productID, Requested: qty, Available: available}
	}
	return quote, nil
}

// Commit applies one consumption: the lot's remaining quantity and the
// product's on-hand quantity both drop by c.Quantity.
func (inv *Inventory) Commit(ctx context.Context, c Consumption) error {
	return inv.atomic(ctx, func(s Store) error {
		return commitOne(ctx, s, c)
	})
}

// CommitPlan applies every step of a quote atomically.
func (inv *Inventory) CommitPlan(ctx context.Context, q *FIFOQuote) error {
	if q == nil {
		return Invalid("quote", "nothing to commit")
	}
	return inv.atomic(ctx, func(s Store) error {
		for _, c := range q.Plan {
			if err := commitOne(ctx, s, c); err != nil {
				return err
			}
		}
		return nil
	})
}

func commitOne(ctx context.Context, s Store, c Consumption) error {
	if c.Quantity <= 0 {
		return Invalid("quantity", "consumption must be greater than zero")
	}
	lot, err := s.GetLot(ctx, c.LotID)
	if err != nil {
		return err
	}
	if lot.QuantityRemaining < c.Quantity {
		return fmt.Errorf("%w: lot %d has %d, requested %d",
			ErrLotOverdrawn, lot.ID, lot.QuantityRemaining, c.Quantity)
	}
	if err := s.SetLotRemaining(ctx, lot.ID, lot.QuantityRemaining-c.Quantity); err != nil {
		return fmt.Errorf("update lot %d: %w", lot.ID, err)
	}
	p, err := s.GetProduct(ctx, lot.ProductID)
	if err != nil {
		return err
	}
	return s.SetProductQuantity(ctx, p.ID, p.Quantity-c.Quantity)
}

// Consume quotes and commits in one step.
func (inv *Inventory) Consume(ctx context.Context, productID, qty int64) (*FIFOQuote, error) {
	var quote *FIFOQuote
	err := inv.atomic(ctx, func(s Store) error {
		bound := &Inventory{scope: inv.within(s)}
		q, err := bound.QuoteFIFO(ctx, productID, qty)
		if err != nil {
			return err
		}
		if err := bound.CommitPlan(ctx, q); err != nil {
			return err
		}
		quote = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return quote, nil
}

// Valuation is the cost of all remaining stock.
func (inv *Inventory) Valuation(ctx context.Context) (decimal.Decimal, error) {
	lots, err := inv.store.AllOpenLots(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, l := range lots {
		total = total.Add(l.Value())
	}
	return total, nil
}

// SyncQuantities resets every product's on-hand quantity to the sum of
// its remaining lots. Returns how many products were corrected.
func (inv *Inventory) SyncQuantities(ctx context.Context) (int, error) {
	fixed := 0
	err := inv.atomic(ctx, func(s Store) error {
		products, err := s.ListProducts(ctx)
		if err != nil {
			return err
		}
		lots, err := s.AllOpenLots(ctx)
		if err != nil {
			return err
		}
		onHand := make(map[int64]int64, len(products))
		for _, l := range lots {
			onHand[l.ProductID] += l.QuantityRemaining
		}
		for _, p := range products {
			want := onHand[p.ID]
			if p.Quantity == want {
				continue
			}
			inv.log.Info("product quantity out of sync with lots",
				slog.Int64("product_id", p.ID),
				slog.Int64("recorded", p.Quantity),
				slog.Int64("lots", want))
			if err := s.SetProductQuantity(ctx, p.ID, want); err != nil {
				return err
			}
			fixed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return fixed, nil
}

// =============================================================================
// PRODUCTS
// =============================================================================

// CreateProduct stores a product. Quantity always starts at zero; stock
// arrives through AddLot.
func (inv *Inventory) CreateProduct(ctx context.Context, p Product) (int64, error) {
	p.Quantity = 0
	if p.CreatedAt.IsZero() {
		p.CreatedAt = inv.clock()
	}
	return inv.store.CreateProduct(ctx, p)
}

func (inv *Inventory) Product(ctx context.Context, id int64) (*Product, error) {
	return inv.store.GetProduct(ctx, id)
}

func (inv *Inventory) Products(ctx context.Context) ([]Product, error) {
	return inv.store.ListProducts(ctx)
}

// SetCostPrice records the latest acquisition cost. Lot costs are untouched.
func (inv *Inventory) SetCostPrice(ctx context.Context, id int64, cost decimal.Decimal) error {
	if cost.IsNegative() {
		return Invalid("cost_price", "must not be negative")
	}
	return inv.store.SetProductCostPrice(ctx, id, cost)
}
