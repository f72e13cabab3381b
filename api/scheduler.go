/*
scheduler.go - Periodic books integrity checks

PURPOSE:
  Periodically verifies that the journal still balances and that the
  Inventory account agrees with the cost sitting in open lots, and repairs
  product quantities that drifted from their lots.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on start
  - Never posts journal entries; an imbalance is logged at error level
    for a person to investigate
  - Last() exposes the most recent report; GET /api/reports/integrity
    runs a fresh check on demand

CONFIGURATION:
  - CheckInterval: How often to check (POS_INTEGRITY_INTERVAL, default 1h)
  - Enabled: Whether scheduler is active (false when the interval is zero)

USAGE:
  scheduler := NewIntegrityScheduler(books, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - ledger/reports.go: ValidateTrialBalance, InventoryReconciliation
  - ledger/inventory.go: SyncQuantities
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/pos-engine/ledger"
)

// IntegrityReport is the outcome of one check.
type IntegrityReport struct {
	CheckedAt           time.Time       `json:"checked_at"`
	JournalBalanced     bool            `json:"journal_balanced"`
	TotalDebits         decimal.Decimal `json:"total_debits"`
	TotalCredits        decimal.Decimal `json:"total_credits"`
	InventoryBalanced   bool            `json:"inventory_balanced"`
	InventoryDifference decimal.Decimal `json:"inventory_difference"`
	QuantitiesFixed     int             `json:"quantities_fixed"`
}

// Healthy reports whether both the journal and inventory reconcile.
func (r IntegrityReport) Healthy() bool {
	return r.JournalBalanced && r.InventoryBalanced
}

// CheckIntegrity runs every check once against the books.
func CheckIntegrity(ctx context.Context, books *ledger.Books) (*IntegrityReport, error) {
	reports := books.Reports()
	totals, err := reports.Totals(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := reports.InventoryReconciliation(ctx)
	if err != nil {
		return nil, err
	}
	fixed, err := books.Inventory().SyncQuantities(ctx)
	if err != nil {
		return nil, err
	}
	return &IntegrityReport{
		CheckedAt:           books.Now(),
		JournalBalanced:     totals.Balanced,
		TotalDebits:         totals.Debits,
		TotalCredits:        totals.Credits,
		InventoryBalanced:   rec.Balanced,
		InventoryDifference: rec.Difference,
		QuantitiesFixed:     fixed,
	}, nil
}

// IntegrityScheduler runs CheckIntegrity on a ticker.
type IntegrityScheduler struct {
	Books         *ledger.Books
	CheckInterval time.Duration
	Enabled       bool

	log    *slog.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	last   *IntegrityReport
}

// NewIntegrityScheduler creates a new scheduler.
func NewIntegrityScheduler(books *ledger.Books, logger *slog.Logger) *IntegrityScheduler {
	if logger == nil {
		logger = books.Logger()
	}
	return &IntegrityScheduler{
		Books:         books,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		log:           logger.With("component", "integrity"),
	}
}

// Start begins the scheduler.
func (s *IntegrityScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled || s.CheckInterval <= 0 {
		s.log.Info("integrity scheduler disabled")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	s.log.Info("integrity scheduler started", slog.Duration("interval", s.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight check.
func (s *IntegrityScheduler) Stop() {
	s.mu.Lock()
	ticker, stop := s.ticker, s.stop
	s.ticker = nil
	s.mu.Unlock()

	if ticker != nil {
		ticker.Stop()
		close(stop)
		s.wg.Wait()
		s.log.Info("integrity scheduler stopped")
	}
}

func (s *IntegrityScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	// Run immediately on start
	s.RunNow(context.Background())

	for {
		select {
		case <-ticker.C:
			s.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow performs a check immediately and records the result.
func (s *IntegrityScheduler) RunNow(ctx context.Context) *IntegrityReport {
	report, err := CheckIntegrity(ctx, s.Books)
	if err != nil {
		s.log.Error("integrity check failed", slog.Any("error", err))
		return nil
	}

	attrs := []any{
		slog.String("debits", report.TotalDebits.String()),
		slog.String("credits", report.TotalCredits.String()),
		slog.String("inventory_difference", report.InventoryDifference.String()),
		slog.Int("quantities_fixed", report.QuantitiesFixed),
	}
	if report.Healthy() {
		s.log.Info("integrity check passed", attrs...)
	} else {
		s.log.Error("integrity check found an imbalance", attrs...)
	}

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()
	return report
}

// Last returns the most recent report, or nil before the first check.
func (s *IntegrityScheduler) Last() *IntegrityReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
