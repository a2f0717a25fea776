package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	domain "loan-tracker/internal/domain/loan"
)

type Usecase struct {
	repo domain.Repository
	log  *slog.Logger
}

func NewUsecase(r domain.Repository, logger *slog.Logger) *Usecase {
	if logger == nil {
		logger = slog.Default()
	}
	return &Usecase{repo: r, log: logger}
}

func (u *Usecase) Create(ctx context.Context, in CreateLoanInput) (*LoanDTO, error) {
	u.log.InfoContext(ctx, "creating loan", "applicant", in.ApplicantName, "amount", in.Amount.StringFixed(2))

	l, err := domain.New(in.Amount, in.ApplicantName)
	if err != nil {
		return nil, err
	}

	stored, err := u.repo.Insert(ctx, l)
	if err != nil {
		return nil, fmt.Errorf("insert loan: %w", err)
	}
	u.log.InfoContext(ctx, "loan created", "loan_id", stored.ID(), "applicant", stored.ApplicantName())

	dto := toDTO(stored)
	return &dto, nil
}

// Get reports found=false when the loan does not exist; that is not an error.
func (u *Usecase) Get(ctx context.Context, loanID uuid.UUID) (*LoanDTO, bool, error) {
	l, err := u.repo.GetByID(ctx, loanID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		u.log.WarnContext(ctx, "loan not found", "loan_id", loanID)
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("get loan %s: %w", loanID, err)
	}
	dto := toDTO(l)
	return &dto, true, nil
}

// List returns every loan, newest first.
func (u *Usecase) List(ctx context.Context) ([]LoanDTO, error) {
	loans, err := u.repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	sort.SliceStable(loans, func(i, j int) bool {
		return loans[i].CreatedAt().After(loans[j].CreatedAt())
	})

	out := make([]LoanDTO, 0, len(loans))
	for _, l := range loans {
		out = append(out, toDTO(l))
	}
	u.log.DebugContext(ctx, "listed loans", "count", len(out))
	return out, nil
}

// ProcessPayment loads the loan, applies the payment and persists it. Nothing
// is written when the payment is rejected.
func (u *Usecase) ProcessPayment(ctx context.Context, loanID uuid.UUID, in PaymentInput) (*LoanDTO, error) {
	u.log.InfoContext(ctx, "processing payment", "loan_id", loanID, "amount", in.Amount.StringFixed(2))

	l, err := u.repo.GetByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			u.log.WarnContext(ctx, "payment failed: loan not found", "loan_id", loanID)
			return nil, fmt.Errorf("loan with id %s: %w", loanID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get loan %s: %w", loanID, err)
	}

	prevBalance, prevStatus := l.CurrentBalance(), l.Status()
	if err := l.ApplyPayment(in.Amount); err != nil {
		if errors.Is(err, domain.ErrInvariantViolation) {
			u.log.ErrorContext(ctx, "payment broke loan invariant", "loan_id", loanID, "err", err)
		}
		return nil, err
	}

	if err := u.repo.Update(ctx, l); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			u.log.WarnContext(ctx, "payment lost a concurrent update", "loan_id", loanID)
		}
		return nil, fmt.Errorf("update loan %s: %w", loanID, err)
	}

	u.log.InfoContext(ctx, "payment processed",
		"loan_id", loanID,
		"prev_balance", prevBalance.StringFixed(2),
		"new_balance", l.CurrentBalance().StringFixed(2),
		"prev_status", prevStatus,
		"new_status", l.Status(),
	)
	dto := toDTO(l)
	return &dto, nil
}

func (u *Usecase) Delete(ctx context.Context, loanID uuid.UUID) error {
	if err := u.repo.Delete(ctx, loanID); err != nil {
		return fmt.Errorf("delete loan %s: %w", loanID, err)
	}
	u.log.InfoContext(ctx, "loan deleted", "loan_id", loanID)
	return nil
}
