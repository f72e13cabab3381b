/*
journal.go - Journal Engine

PURPOSE:
  Validates and persists balanced multi-line journal entries, then
  pushes every line into its account's running balance.

POST SEQUENCE (one unit of work):
  1. Validate lines: no negative amounts, drop zero/zero lines, at
     least one line left, |debits - credits| <= Tolerance
  2. Strict mode: every account must exist
  3. Insert header (with computed totals) and lines
  4. Chart.ApplyDelta for each line

  Any failure in 3-4 rolls back everything, including earlier lines.
  Failures in 1-2 happen before any write.

IMMUTABILITY:
  There is no update or delete. Corrections are new offsetting entries.
*/
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

// Journal is the posting component.
type Journal struct {
	scope
}

// PostInput is one journal entry to be written.
type PostInput struct {
	Type        JournalType
	Reference   string
	Description string
	Lines       []JournalLine
	Date        time.Time // defaults to now
}

// Post validates and writes an entry, returning its id.
func (j *Journal) Post(ctx context.Context, in PostInput) (int64, error) {
	entry, err := j.prepare(in)
	if err != nil {
		return 0, err
	}

	var id int64
	err = j.atomic(ctx, func(s Store) error {
		chart := &Chart{scope: j.within(s)}
		if j.mode == AccountModeStrict {
			if err := chart.resolve(ctx, accountNames(entry.Lines)); err != nil {
				return err
			}
		}

		var err error
		id, err = s.InsertEntry(ctx, entry)
		if err != nil {
			return fmt.Errorf("insert journal entry: %w", err)
		}
		for _, line := range entry.Lines {
			if err := chart.ApplyDelta(ctx, line.Account, line.Debit, line.Credit); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	j.log.Info("journal entry posted",
		slog.Int64("entry_id", id),
		slog.String("type", string(entry.Type)),
		slog.String("reference", entry.Reference),
		slog.String("total", entry.TotalDebit.StringFixed(2)))
	return id, nil
}

// prepare runs every check that needs no storage.
func (j *Journal) prepare(in PostInput) (JournalEntry, error) {
	if !in.Type.Valid() {
		return JournalEntry{}, Invalid("type", "unknown journal type %q", in.Type)
	}

	lines := make([]JournalLine, 0, len(in.Lines))
	debits, credits := decimal.Zero, decimal.Zero
	for i, line := range in.Lines {
		if line.Account == "" {
			return JournalEntry{}, Invalid(fmt.Sprintf("lines[%d].account", i), "account is required")
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return JournalEntry{}, Invalid(fmt.Sprintf("lines[%d]", i), "amounts must not be negative")
		}
		if line.Debit.IsZero() && line.Credit.IsZero() {
			continue
		}
		line.Position = len(lines) + 1
		lines = append(lines, line)
		debits = debits.Add(line.Debit)
		credits = credits.Add(line.Credit)
	}
	if len(lines) == 0 {
		return JournalEntry{}, Invalid("lines", "entry has no non-zero lines")
	}
	if debits.Sub(credits).Abs().GreaterThan(Tolerance) {
		return JournalEntry{}, &UnbalancedError{TotalDebit: debits, TotalCredit: credits}
	}

	now := j.clock()
	date := in.Date
	if date.IsZero() {
		date = now
	}
	return JournalEntry{
		Type:        in.Type,
		Reference:   in.Reference,
		Description: in.Description,
		Date:        date.UTC(),
		TotalDebit:  debits,
		TotalCredit: credits,
		CreatedAt:   now,
		Lines:       lines,
	}, nil
}

func accountNames(lines []JournalLine) []string {
	seen := make(map[string]bool, len(lines))
	var names []string
	for _, l := range lines {
		if !seen[l.Account] {
			seen[l.Account] = true
			names = append(names, l.Account)
		}
	}
	return names
}

// Entry returns one entry with its lines.
func (j *Journal) Entry(ctx context.Context, id int64) (*JournalEntry, error) {
	return j.store.GetEntry(ctx, id)
}

// Entries lists entries matching f, oldest first.
func (j *Journal) Entries(ctx context.Context, f EntryFilter) ([]JournalEntry, error) {
	return j.store.ListEntries(ctx, f)
}

// Count is the number of posted entries.
func (j *Journal) Count(ctx context.Context) (int, error) {
	return j.store.CountEntries(ctx)
}
