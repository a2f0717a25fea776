package loanmock

import (
	"context"
	"errors"

	"github.com/google/uuid"

	domain "loan-tracker/internal/domain/loan"
)

var _ domain.Repository = (*Repo)(nil)

var ErrUnimplemented = errors.New("loanmock: method not implemented")

// Repo is a function-backed mock that satisfies domain.Repository.
// Reads default to ErrUnimplemented, writes to a no-op success.
type Repo struct {
	GetByIDFn func(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error)
	GetAllFn  func(ctx context.Context) ([]*domain.Loan, error)
	InsertFn  func(ctx context.Context, l *domain.Loan) (*domain.Loan, error)
	UpdateFn  func(ctx context.Context, l *domain.Loan) error
	DeleteFn  func(ctx context.Context, loanID uuid.UUID) error
}

func (m *Repo) GetByID(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, loanID)
	}
	return nil, ErrUnimplemented
}

func (m *Repo) GetAll(ctx context.Context) ([]*domain.Loan, error) {
	if m.GetAllFn != nil {
		return m.GetAllFn(ctx)
	}
	return nil, ErrUnimplemented
}

func (m *Repo) Insert(ctx context.Context, l *domain.Loan) (*domain.Loan, error) {
	if m.InsertFn != nil {
		return m.InsertFn(ctx, l)
	}
	return l, nil
}

func (m *Repo) Update(ctx context.Context, l *domain.Loan) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, l)
	}
	return nil
}

func (m *Repo) Delete(ctx context.Context, loanID uuid.UUID) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, loanID)
	}
	return nil
}

// Returning wraps fixed loans into a GetByIDFn keyed by id.
func Returning(loans ...*domain.Loan) func(context.Context, uuid.UUID) (*domain.Loan, error) {
	byID := make(map[uuid.UUID]*domain.Loan, len(loans))
	for _, l := range loans {
		byID[l.ID()] = l
	}
	return func(_ context.Context, loanID uuid.UUID) (*domain.Loan, error) {
		if l, ok := byID[loanID]; ok {
			return l, nil
		}
		return nil, domain.ErrNotFound
	}
}
