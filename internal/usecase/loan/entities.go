package loan

import (
	"time"

	"github.com/shopspring/decimal"

	domain "loan-tracker/internal/domain/loan"
)

type CreateLoanInput struct {
	Amount        decimal.Decimal
	ApplicantName string
}

type PaymentInput struct {
	Amount decimal.Decimal
}

// LoanDTO is the external view of a loan.
type LoanDTO struct {
	ID             string          `json:"id"`
	Amount         decimal.Decimal `json:"amount"`
	CurrentBalance decimal.Decimal `json:"currentBalance"`
	ApplicantName  string          `json:"applicantName"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

func toDTO(l *domain.Loan) LoanDTO {
	return LoanDTO{
		ID:             l.ID().String(),
		Amount:         l.Amount(),
		CurrentBalance: l.CurrentBalance(),
		ApplicantName:  l.ApplicantName(),
		Status:         string(l.Status()),
		CreatedAt:      l.CreatedAt(),
		UpdatedAt:      l.UpdatedAt(),
	}
}
