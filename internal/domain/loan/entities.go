package loan

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"loan-tracker/pkg/id"
)

type Status string

const (
	StatusActive Status = "active"
	StatusPaid   Status = "paid"
)

const (
	MinApplicantNameLen = 2
	MaxApplicantNameLen = 100

	// amounts are stored as decimal(18,2)
	amountScale = 2
)

// Loan is the aggregate root. Fields are unexported so that id, amount,
// applicant name and creation time can only be set when the loan is built.
type Loan struct {
	id             uuid.UUID
	amount         decimal.Decimal
	currentBalance decimal.Decimal
	applicantName  string
	status         Status
	createdAt      time.Time
	updatedAt      time.Time
	version        int64
}

// New validates the input and returns an active loan whose balance equals
// the principal. Nothing is persisted.
func New(amount decimal.Decimal, applicantName string) (*Loan, error) {
	if err := validateAmount("amount", "loan amount", amount); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(applicantName)
	if name == "" {
		return nil, newValidationError("applicantName", "applicant name is required")
	}
	if n := utf8.RuneCountInString(name); n < MinApplicantNameLen || n > MaxApplicantNameLen {
		return nil, newValidationError("applicantName", "applicant name must be between 2 and 100 characters")
	}

	now := nowUTC()
	return &Loan{
		id:             id.New(),
		amount:         amount,
		currentBalance: amount,
		applicantName:  name,
		status:         StatusActive,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// Restore rebuilds a loan from persisted state. Status is derived from the
// balance; the stored value is not trusted.
func Restore(loanID uuid.UUID, amount, currentBalance decimal.Decimal, applicantName string,
	createdAt, updatedAt time.Time, version int64) (*Loan, error) {
	l := &Loan{
		id:             loanID,
		amount:         amount,
		currentBalance: currentBalance,
		applicantName:  applicantName,
		createdAt:      createdAt.UTC(),
		updatedAt:      updatedAt.UTC(),
		version:        version,
	}
	if !l.IsValid() {
		return nil, errInvariant(l)
	}
	l.status = deriveStatus(currentBalance)
	return l, nil
}

// ApplyPayment debits the balance. A payment larger than the balance is
// rejected and leaves the loan untouched, which also covers paid loans.
func (l *Loan) ApplyPayment(amount decimal.Decimal) error {
	if err := validateAmount("amount", "payment amount", amount); err != nil {
		return err
	}
	if amount.GreaterThan(l.currentBalance) {
		return &BalanceExceededError{Payment: amount, Balance: l.currentBalance}
	}

	prev := *l
	l.currentBalance = l.currentBalance.Sub(amount)
	l.status = deriveStatus(l.currentBalance)
	l.updatedAt = nowUTC()

	if !l.IsValid() {
		err := errInvariant(l)
		*l = prev
		return err
	}
	return nil
}

// IsValid reports whether 0 <= currentBalance <= amount.
func (l *Loan) IsValid() bool {
	return !l.currentBalance.IsNegative() && l.currentBalance.LessThanOrEqual(l.amount)
}

func (l *Loan) ID() uuid.UUID                   { return l.id }
func (l *Loan) Amount() decimal.Decimal         { return l.amount }
func (l *Loan) CurrentBalance() decimal.Decimal { return l.currentBalance }
func (l *Loan) ApplicantName() string           { return l.applicantName }
func (l *Loan) Status() Status                  { return l.status }
func (l *Loan) CreatedAt() time.Time            { return l.createdAt }
func (l *Loan) UpdatedAt() time.Time            { return l.updatedAt }
func (l *Loan) Version() int64                  { return l.version }

// SetVersion is called by repositories after a successful write.
func (l *Loan) SetVersion(v int64) { l.version = v }

func deriveStatus(balance decimal.Decimal) Status {
	if balance.LessThanOrEqual(decimal.Zero) {
		return StatusPaid
	}
	return StatusActive
}

func validateAmount(field, label string, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return newValidationError(field, label+" must be greater than zero")
	}
	if !amount.Equal(amount.Round(amountScale)) {
		return newValidationError(field, label+" must have at most 2 decimal places")
	}
	return nil
}

var nowUTC = func() time.Time { return time.Now().UTC() }
