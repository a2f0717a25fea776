package gormrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	domain "loan-tracker/internal/domain/loan"
)

// Table: loans
type loanRecord struct {
	ID             string          `gorm:"column:id;type:char(36);primaryKey"`
	Amount         decimal.Decimal `gorm:"column:amount;type:decimal(18,2);not null"`
	CurrentBalance decimal.Decimal `gorm:"column:current_balance;type:decimal(18,2);not null"`
	ApplicantName  string          `gorm:"column:applicant_name;size:100;not null;index:idx_loans_applicant_name"`
	Status         string          `gorm:"column:status;size:15;not null;default:active;index:idx_loans_status"`
	Version        int64           `gorm:"column:version;not null;default:1"`
	CreatedAt      time.Time       `gorm:"column:created_at;not null;index:idx_loans_created_at"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;not null"`
	DeletedAt      gorm.DeletedAt  `gorm:"column:deleted_at;index"`
}

func (loanRecord) TableName() string { return "loans" }

// Migrate creates or updates the loans table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&loanRecord{})
}

type LoanRepository struct{ db *gorm.DB }

func NewLoanRepository(db *gorm.DB) *LoanRepository { return &LoanRepository{db: db} }

var _ domain.Repository = (*LoanRepository)(nil)

func (r *LoanRepository) GetByID(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	var rec loanRecord
	err := r.db.WithContext(ctx).Where("id = ?", loanID.String()).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.toDomain()
}

func (r *LoanRepository) GetAll(ctx context.Context) ([]*domain.Loan, error) {
	var recs []loanRecord
	if err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Loan, 0, len(recs))
	for i := range recs {
		l, err := recs[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func (r *LoanRepository) Insert(ctx context.Context, l *domain.Loan) (*domain.Loan, error) {
	rec := fromDomain(l)
	rec.Version = 1
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, err
	}
	l.SetVersion(rec.Version)
	return rec.toDomain()
}

func (r *LoanRepository) Update(ctx context.Context, l *domain.Loan) error {
	res := r.db.WithContext(ctx).
		Model(&loanRecord{}).
		Where("id = ? AND version = ?", l.ID().String(), l.Version()).
		UpdateColumns(map[string]any{
			"current_balance": l.CurrentBalance(),
			"status":          string(l.Status()),
			"updated_at":      l.UpdatedAt(),
			"version":         gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.missOrConflict(ctx, l.ID())
	}
	l.SetVersion(l.Version() + 1)
	return nil
}

func (r *LoanRepository) Delete(ctx context.Context, loanID uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", loanID.String()).Delete(&loanRecord{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// missOrConflict explains a guarded update that touched no rows.
func (r *LoanRepository) missOrConflict(ctx context.Context, loanID uuid.UUID) error {
	var n int64
	if err := r.db.WithContext(ctx).Model(&loanRecord{}).Where("id = ?", loanID.String()).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}

func fromDomain(l *domain.Loan) loanRecord {
	return loanRecord{
		ID:             l.ID().String(),
		Amount:         l.Amount(),
		CurrentBalance: l.CurrentBalance(),
		ApplicantName:  l.ApplicantName(),
		Status:         string(l.Status()),
		Version:        l.Version(),
		CreatedAt:      l.CreatedAt(),
		UpdatedAt:      l.UpdatedAt(),
	}
}

func (rec loanRecord) toDomain() (*domain.Loan, error) {
	loanID, err := uuid.Parse(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("loan row has bad id %q: %w", rec.ID, err)
	}
	return domain.Restore(loanID, rec.Amount, rec.CurrentBalance, rec.ApplicantName,
		rec.CreatedAt, rec.UpdatedAt, rec.Version)
}
