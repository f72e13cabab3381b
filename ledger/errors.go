/*
errors.go - Centralized error types for the accounting core

PURPOSE:
  All error types in one place so callers can classify failures without
  string matching. Every structured error unwraps to a sentinel.

ERROR CATEGORIES:
  1. Validation - caller-correctable input problems (incl. unbalanced lines)
  2. Stock      - not enough lot quantity to cover a request
  3. Lookup     - referenced record does not exist
  4. Storage    - anything else; always surfaced, never retried here

USAGE:
  if errors.Is(err, ledger.ErrInsufficientStock) {
      // ask the cashier to reduce quantity
  }

  switch ledger.Classify(err) {
  case ledger.KindValidation: ...
  }

SEE ALSO:
  - journal.go: ValidationError / UnbalancedError
  - inventory.go: InsufficientStockError
  - api/handlers.go: maps Kind to HTTP status
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation marks caller-correctable input problems.
	ErrValidation = errors.New("validation failed")

	// ErrUnbalanced is returned when total debits and credits differ by more
	// than Tolerance. Also matches ErrValidation.
	ErrUnbalanced = errors.New("unbalanced entry")

	// ErrInsufficientStock is returned when lots cannot cover a request.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrUnknownAccount is returned in strict mode for lines naming an
	// account that is not in the chart.
	ErrUnknownAccount = errors.New("unknown account")

	// ErrLotOverdrawn is returned when a commit would take a lot below zero.
	ErrLotOverdrawn = errors.New("lot quantity would go negative")

	// ErrNotFound is the parent of every lookup failure below.
	ErrNotFound = errors.New("not found")

	ErrAccountNotFound  = fmt.Errorf("account %w", ErrNotFound)
	ErrEntryNotFound    = fmt.Errorf("journal entry %w", ErrNotFound)
	ErrProductNotFound  = fmt.Errorf("product %w", ErrNotFound)
	ErrLotNotFound      = fmt.Errorf("lot %w", ErrNotFound)
	ErrSaleNotFound     = fmt.Errorf("sale %w", ErrNotFound)
	ErrPurchaseNotFound = fmt.Errorf("purchase %w", ErrNotFound)
	ErrCustomerNotFound = fmt.Errorf("customer %w", ErrNotFound)
	ErrSupplierNotFound = fmt.Errorf("supplier %w", ErrNotFound)
	ErrRecordNotFound   = fmt.Errorf("record %w", ErrNotFound)

	// ErrDuplicateAccount is returned when an account code or name is taken.
	ErrDuplicateAccount = errors.New("duplicate account")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes one rejected field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Invalid is shorthand for a *ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// UnbalancedError carries the totals of a rejected entry.
type UnbalancedError struct {
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

func (e *UnbalancedError) Error() string {
	return fmt.Sprintf("unbalanced entry: debits %s, credits %s, difference %s",
		e.TotalDebit.StringFixed(2), e.TotalCredit.StringFixed(2),
		e.TotalDebit.Sub(e.TotalCredit).Abs().StringFixed(2))
}

// Is lets an unbalanced entry match both ErrUnbalanced and ErrValidation.
func (e *UnbalancedError) Is(target error) bool {
	return target == ErrUnbalanced || target == ErrValidation
}

// InsufficientStockError provides details about a stock shortage.
type InsufficientStockError struct {
	ProductID int64
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// UnknownAccountError names the account a strict post could not resolve.
type UnknownAccountError struct {
	Account string
}

func (e *UnknownAccountError) Error() string {
	return fmt.Sprintf("unknown account %q", e.Account)
}

func (e *UnknownAccountError) Unwrap() error {
	return ErrUnknownAccount
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// Kind groups errors by what the person at the till can do about them.
type Kind string

const (
	KindNone              Kind = ""
	KindInsufficientStock Kind = "insufficient_stock"
	KindValidation        Kind = "validation"
	KindUnbalanced        Kind = "unbalanced"
	KindNotFound          Kind = "not_found"
	KindInternal          Kind = "internal"
)

// Classify maps an error onto a Kind. Unbalanced is checked before
// validation because an UnbalancedError matches both.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInsufficientStock):
		return KindInsufficientStock
	case errors.Is(err, ErrUnbalanced):
		return KindUnbalanced
	case errors.Is(err, ErrValidation), errors.Is(err, ErrUnknownAccount), errors.Is(err, ErrDuplicateAccount):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	}
	return KindInternal
}
