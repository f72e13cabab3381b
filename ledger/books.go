/*
books.go - Engine wiring and the unit of work

PURPOSE:
  Books owns the storage session and hands out the four core components
  (Chart, Inventory, Journal, Reports). Every multi-step business event
  runs inside Books.Do, which opens exactly one storage transaction and
  gives the caller transaction-bound components. Either everything the
  callback wrote commits, or nothing does.

EXAMPLE:
  books := ledger.NewBooks(store, ledger.WithLogger(logger))
  err := books.Do(ctx, func(u *ledger.Unit) error {
      quote, err := u.Inventory.QuoteFIFO(ctx, productID, 3)
      if err != nil {
          return err
      }
      if err := u.Inventory.CommitPlan(ctx, quote); err != nil {
          return err
      }
      _, err = u.Journal.Post(ctx, ledger.PostInput{...})
      return err
  })

NESTING:
  Components obtained from a Unit never open a second transaction; their
  own atomic steps run inside the Unit's transaction.
*/
package ledger

import (
	"context"
	"log/slog"
	"time"
)

// AccountMode controls how postings against unregistered accounts behave.
type AccountMode string

const (
	// AccountModeStrict rejects the whole post.
	AccountModeStrict AccountMode = "strict"
	// AccountModeLenient records the line, logs a warning, and skips the
	// balance update.
	AccountModeLenient AccountMode = "lenient"
)

func (m AccountMode) Valid() bool {
	return m == AccountModeStrict || m == AccountModeLenient
}

// Option configures Books.
type Option func(*Books)

func WithLogger(l *slog.Logger) Option {
	return func(b *Books) {
		if l != nil {
			b.log = l
		}
	}
}

func WithAccountMode(m AccountMode) Option {
	return func(b *Books) {
		if m.Valid() {
			b.mode = m
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Books) {
		if now != nil {
			b.now = now
		}
	}
}

// Books is the entry point of the accounting core.
type Books struct {
	store TxStore
	log   *slog.Logger
	mode  AccountMode
	now   func() time.Time
}

func NewBooks(store TxStore, opts ...Option) *Books {
	b := &Books{
		store: store,
		log:   slog.Default(),
		mode:  AccountModeStrict,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Books) Mode() AccountMode   { return b.mode }
func (b *Books) Logger() *slog.Logger { return b.log }
func (b *Books) Now() time.Time       { return b.now().UTC() }

// Store exposes the underlying store for read-only record lookups.
func (b *Books) Store() Store { return b.store }

func (b *Books) root() scope {
	return scope{
		store:  b.store,
		atomic: b.store.WithTx,
		log:    b.log,
		mode:   b.mode,
		now:    b.now,
	}
}

func (b *Books) Chart() *Chart         { return &Chart{scope: b.root()} }
func (b *Books) Inventory() *Inventory { return &Inventory{scope: b.root()} }
func (b *Books) Journal() *Journal     { return &Journal{scope: b.root()} }
func (b *Books) Reports() *Reports     { return &Reports{scope: b.root()} }

// Unit is the set of components bound to one open transaction.
type Unit struct {
	Chart     *Chart
	Inventory *Inventory
	Journal   *Journal
	Reports   *Reports
	Records   RecordStore
	Now       time.Time
}

// Do runs fn as one unit of work. ctx is checked before the transaction
// opens; once fn starts it runs to completion or rolls back.
func (b *Books) Do(ctx context.Context, fn func(u *Unit) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.store.WithTx(ctx, func(s Store) error {
		sc := b.root().within(s)
		return fn(&Unit{
			Chart:     &Chart{scope: sc},
			Inventory: &Inventory{scope: sc},
			Journal:   &Journal{scope: sc},
			Reports:   &Reports{scope: sc},
			Records:   s,
			Now:       b.Now(),
		})
	})
}

// =============================================================================
// SCOPE - Store binding shared by all components
// =============================================================================

type scope struct {
	store  Store
	atomic func(ctx context.Context, fn func(Store) error) error
	log    *slog.Logger
	mode   AccountMode
	now    func() time.Time
}

// within rebinds the scope to an already-open transaction.
func (sc scope) within(s Store) scope {
	sc.store = s
	sc.atomic = func(_ context.Context, fn func(Store) error) error { return fn(s) }
	return sc
}

func (sc scope) clock() time.Time { return sc.now().UTC() }
