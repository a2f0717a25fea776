package loan

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrBalanceExceeded    = errors.New("payment exceeds current balance")
	ErrInvariantViolation = errors.New("loan invariant violated")
	ErrNotFound           = errors.New("loan not found")
	ErrConflict           = errors.New("loan was modified concurrently")
)

// ValidationError carries the offending input field.
type ValidationError struct {
	Field   string
	Message string
}

func newValidationError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type BalanceExceededError struct {
	Payment decimal.Decimal
	Balance decimal.Decimal
}

func (e *BalanceExceededError) Error() string {
	return fmt.Sprintf("payment amount (%s) cannot exceed current balance (%s)",
		e.Payment.StringFixed(amountScale), e.Balance.StringFixed(amountScale))
}

func (e *BalanceExceededError) Is(target error) bool { return target == ErrBalanceExceeded }

func errInvariant(l *Loan) error {
	return fmt.Errorf("%w: loan %s has balance %s outside [0, %s]",
		ErrInvariantViolation, l.id, l.currentBalance.StringFixed(amountScale), l.amount.StringFixed(amountScale))
}
