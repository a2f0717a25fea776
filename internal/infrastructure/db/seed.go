package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"loan-tracker/internal/domain/loan"
)

type seedLoan struct {
	id        string
	amount    string
	balance   string
	applicant string
	createdAt time.Time
	updatedAt time.Time
}

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

var demoLoans = []seedLoan{
	{"11111111-1111-1111-1111-111111111111", "25000.00", "18750.00", "John Doe", day(2025, 7, 1), day(2025, 12, 1)},
	{"22222222-2222-2222-2222-222222222222", "15000.00", "0.00", "Jane Smith", day(2025, 1, 1), day(2025, 11, 1)},
	{"33333333-3333-3333-3333-333333333333", "50000.00", "32500.00", "Robert Johnson", day(2025, 5, 1), day(2025, 12, 17)},
	{"44444444-4444-4444-4444-444444444444", "10000.00", "0.00", "Emily Williams", day(2024, 7, 1), day(2025, 9, 1)},
	{"55555555-5555-5555-5555-555555555555", "75000.00", "72000.00", "Michael Brown", day(2025, 10, 1), day(2026, 1, 2)},
}

// Seed inserts the demo loans when the store holds none. It reports how
// many loans were inserted.
func Seed(ctx context.Context, repo loan.Repository) (int, error) {
	existing, err := repo.GetAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("seed: list loans: %w", err)
	}
	if len(existing) > 0 {
		slog.InfoContext(ctx, "seed: store not empty, skipping", "loans", len(existing))
		return 0, nil
	}

	for _, s := range demoLoans {
		l, err := loan.Restore(uuid.MustParse(s.id), decimal.RequireFromString(s.amount),
			decimal.RequireFromString(s.balance), s.applicant, s.createdAt, s.updatedAt, 0)
		if err != nil {
			return 0, fmt.Errorf("seed: %s: %w", s.applicant, err)
		}
		if _, err := repo.Insert(ctx, l); err != nil {
			return 0, fmt.Errorf("seed: insert %s: %w", s.applicant, err)
		}
	}
	slog.InfoContext(ctx, "seed: inserted demo loans", "loans", len(demoLoans))
	return len(demoLoans), nil
}
