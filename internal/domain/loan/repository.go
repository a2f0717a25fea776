package loan

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// GetByID returns ErrNotFound when no live loan has the id.
	GetByID(ctx context.Context, loanID uuid.UUID) (*Loan, error)
	// GetAll returns loans newest-created first.
	GetAll(ctx context.Context) ([]*Loan, error)
	Insert(ctx context.Context, l *Loan) (*Loan, error)
	// Update persists balance/status/updatedAt if the stored version still
	// matches l.Version(); ErrConflict otherwise.
	Update(ctx context.Context, l *Loan) error
	Delete(ctx context.Context, loanID uuid.UUID) error
}
