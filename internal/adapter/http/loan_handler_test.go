package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	domain "loan-tracker/internal/domain/loan"
	loanmock "loan-tracker/internal/testutil/loanmock"
	uc "loan-tracker/internal/usecase/loan"
)

// -------- helpers --------

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// memRepo backs a loanmock.Repo with a map so request sequences see their
// own writes.
func memRepo(t *testing.T, seed ...*domain.Loan) *loanmock.Repo {
	t.Helper()
	var mu sync.Mutex
	store := map[uuid.UUID]*domain.Loan{}
	for _, l := range seed {
		store[l.ID()] = l
	}
	return &loanmock.Repo{
		GetByIDFn: func(_ context.Context, loanID uuid.UUID) (*domain.Loan, error) {
			mu.Lock()
			defer mu.Unlock()
			if l, ok := store[loanID]; ok {
				return l, nil
			}
			return nil, domain.ErrNotFound
		},
		GetAllFn: func(context.Context) ([]*domain.Loan, error) {
			mu.Lock()
			defer mu.Unlock()
			out := make([]*domain.Loan, 0, len(store))
			for _, l := range store {
				out = append(out, l)
			}
			return out, nil
		},
		InsertFn: func(_ context.Context, l *domain.Loan) (*domain.Loan, error) {
			mu.Lock()
			defer mu.Unlock()
			l.SetVersion(1)
			store[l.ID()] = l
			return l, nil
		},
		DeleteFn: func(_ context.Context, loanID uuid.UUID) error {
			mu.Lock()
			defer mu.Unlock()
			if _, ok := store[loanID]; !ok {
				return domain.ErrNotFound
			}
			delete(store, loanID)
			return nil
		},
	}
}

func newTestRouter(repo domain.Repository) *echo.Echo {
	lh := NewLoanHandler(uc.NewUsecase(repo, quiet), quiet)
	return NewRouter(NewHandler(nil), lh, RouterOptions{Logger: quiet})
}

func restoredLoan(t *testing.T, amount, balance string) *domain.Loan {
	t.Helper()
	ts := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	l, err := domain.Restore(uuid.New(), decimal.RequireFromString(amount), decimal.RequireFromString(balance),
		"John Doe", ts, ts, 1)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	return l
}

func do(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type loanView struct {
	ID             string      `json:"id"`
	Amount         json.Number `json:"amount"`
	CurrentBalance json.Number `json:"currentBalance"`
	ApplicantName  string      `json:"applicantName"`
	Status         string      `json:"status"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

func decodeLoan(t *testing.T, rec *httptest.ResponseRecorder) loanView {
	t.Helper()
	dec := json.NewDecoder(rec.Body)
	dec.UseNumber()
	var v loanView
	if err := dec.Decode(&v); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	return v
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &er); err != nil {
		t.Fatalf("bad json: %v; raw=%s", err, rec.Body.String())
	}
	return er
}

func mustEqualNum(t *testing.T, got json.Number, want string) {
	t.Helper()
	g, err := decimal.NewFromString(got.String())
	if err != nil {
		t.Fatalf("not a number: %q", got)
	}
	if !g.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("number = %s, want %s", got, want)
	}
}

// -------- tests --------

func TestCreateLoan_Success(t *testing.T) {
	e := newTestRouter(memRepo(t))

	rec := do(t, e, stdhttp.MethodPost, "/api/loans", `{"amount": 10000.00, "applicantName": "  John Doe "}`)
	if rec.Code != stdhttp.StatusCreated {
		t.Fatalf("status = %d, want 201; body=%s", rec.Code, rec.Body.String())
	}
	got := decodeLoan(t, rec)
	if _, err := uuid.Parse(got.ID); err != nil {
		t.Fatalf("id %q is not a uuid", got.ID)
	}
	if loc := rec.Header().Get(echo.HeaderLocation); loc != "/api/loans/"+got.ID {
		t.Fatalf("Location = %q", loc)
	}
	mustEqualNum(t, got.Amount, "10000")
	mustEqualNum(t, got.CurrentBalance, "10000")
	if got.ApplicantName != "John Doe" || got.Status != "active" {
		t.Fatalf("unexpected dto: %+v", got)
	}
	if got.CreatedAt.IsZero() || !got.CreatedAt.Equal(got.UpdatedAt) {
		t.Fatalf("timestamps not set: %+v", got)
	}
}

func TestCreateLoan_ValidationErrors(t *testing.T) {
	e := newTestRouter(&loanmock.Repo{
		InsertFn: func(context.Context, *domain.Loan) (*domain.Loan, error) {
			t.Fatal("Insert must not be called")
			return nil, nil
		},
	})

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"zero amount", `{"amount": 0, "applicantName": "John"}`, "amount"},
		{"negative amount", `{"amount": -5.00, "applicantName": "John"}`, "amount"},
		{"missing amount", `{"applicantName": "John"}`, "amount"},
		{"three decimals", `{"amount": 10.005, "applicantName": "John"}`, "amount"},
		{"over cap", `{"amount": 1000000.01, "applicantName": "John"}`, "amount"},
		{"missing name", `{"amount": 100}`, "applicantName"},
		{"short name", `{"amount": 100, "applicantName": "J"}`, "applicantName"},
		{"whitespace name", `{"amount": 100, "applicantName": "    "}`, "applicantName"},
		{"wrong case keys", `{"Amount": 100, "ApplicantName": "John"}`, "amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, e, stdhttp.MethodPost, "/api/loans", tt.body)
			if rec.Code != stdhttp.StatusBadRequest {
				t.Fatalf("status = %d, want 400; body=%s", rec.Code, rec.Body.String())
			}
			er := decodeError(t, rec)
			if er.Message == "" {
				t.Fatal("message must be set")
			}
			found := false
			for _, d := range er.Details {
				if d.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Fatalf("want detail for %s, got %+v", tt.field, er.Details)
			}
		})
	}
}

func TestCreateLoan_InvalidBody(t *testing.T) {
	e := newTestRouter(memRepo(t))

	for _, body := range []string{`{"amount":`, `"text"`, `{"amount": "ten"}`} {
		rec := do(t, e, stdhttp.MethodPost, "/api/loans", body)
		if rec.Code != stdhttp.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", body, rec.Code)
		}
		if er := decodeError(t, rec); er.Message != "invalid body" {
			t.Fatalf("%s: message = %q", body, er.Message)
		}
	}
}

func TestCreateLoan_StoreFailureIs500(t *testing.T) {
	e := newTestRouter(&loanmock.Repo{
		InsertFn: func(context.Context, *domain.Loan) (*domain.Loan, error) { return nil, errors.New("disk full") },
	})

	rec := do(t, e, stdhttp.MethodPost, "/api/loans", `{"amount": 10, "applicantName": "Ann"}`)
	if rec.Code != stdhttp.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if er := decodeError(t, rec); er.Message != "internal server error" {
		t.Fatalf("message = %q", er.Message)
	}
}

func TestGetLoan(t *testing.T) {
	l := restoredLoan(t, "25000.00", "18750.00")
	e := newTestRouter(memRepo(t, l))

	rec := do(t, e, stdhttp.MethodGet, "/api/loans/"+l.ID().String(), "")
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	got := decodeLoan(t, rec)
	mustEqualNum(t, got.CurrentBalance, "18750")
	if got.ID != l.ID().String() || got.Status != "active" {
		t.Fatalf("unexpected: %+v", got)
	}
}

func TestGetLoan_NotFound(t *testing.T) {
	e := newTestRouter(memRepo(t))
	absent := uuid.New().String()

	for _, raw := range []string{absent, "not-a-uuid", "12345"} {
		rec := do(t, e, stdhttp.MethodGet, "/api/loans/"+raw, "")
		if rec.Code != stdhttp.StatusNotFound {
			t.Fatalf("%s: status = %d, want 404", raw, rec.Code)
		}
		if er := decodeError(t, rec); !strings.Contains(er.Message, raw) {
			t.Fatalf("%s: message = %q", raw, er.Message)
		}
	}
}

func TestListLoans_NewestFirst(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var seed []*domain.Loan
	for i := 0; i < 3; i++ {
		ts := base.Add(time.Duration(i) * time.Hour)
		l, err := domain.Restore(uuid.New(), decimal.NewFromInt(100), decimal.NewFromInt(100), "Ann", ts, ts, 1)
		if err != nil {
			t.Fatal(err)
		}
		seed = append(seed, l)
	}
	e := newTestRouter(memRepo(t, seed...))

	rec := do(t, e, stdhttp.MethodGet, "/api/loans", "")
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []loanView
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if len(got) != 3 || got[0].ID != seed[2].ID().String() || got[2].ID != seed[0].ID().String() {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestListLoans_EmptyArray(t *testing.T) {
	e := newTestRouter(memRepo(t))

	rec := do(t, e, stdhttp.MethodGet, "/api/loans", "")
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Fatalf("body = %s, want []", body)
	}
}

func TestProcessPayment_SequenceToPaid(t *testing.T) {
	l := restoredLoan(t, "10000.00", "10000.00")
	e := newTestRouter(memRepo(t, l))
	path := "/api/loans/" + l.ID().String() + "/payment"

	wants := []struct{ pay, balance, status string }{
		{"3000.00", "7000", "active"},
		{"2000.00", "5000", "active"},
		{"5000.00", "0", "paid"},
	}
	for _, w := range wants {
		rec := do(t, e, stdhttp.MethodPost, path, `{"amount": `+w.pay+`}`)
		if rec.Code != stdhttp.StatusOK {
			t.Fatalf("pay %s: status = %d; body=%s", w.pay, rec.Code, rec.Body.String())
		}
		got := decodeLoan(t, rec)
		mustEqualNum(t, got.CurrentBalance, w.balance)
		if got.Status != w.status {
			t.Fatalf("pay %s: status = %s, want %s", w.pay, got.Status, w.status)
		}
	}

	// paid loans accept nothing
	rec := do(t, e, stdhttp.MethodPost, path, `{"amount": 0.01}`)
	if rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("payment on paid loan: status = %d, want 400", rec.Code)
	}
}

func TestProcessPayment_ExceedsBalance(t *testing.T) {
	l := restoredLoan(t, "10000.00", "3000.00")
	e := newTestRouter(memRepo(t, l))

	rec := do(t, e, stdhttp.MethodPost, "/api/loans/"+l.ID().String()+"/payment", `{"amount": 5000.00}`)
	if rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	er := decodeError(t, rec)
	if !strings.Contains(er.Message, "5000.00") || !strings.Contains(er.Message, "3000.00") {
		t.Fatalf("message = %q", er.Message)
	}
	if !l.CurrentBalance().Equal(decimal.RequireFromString("3000")) {
		t.Fatalf("balance changed to %s", l.CurrentBalance())
	}
}

func TestProcessPayment_InvalidAmount(t *testing.T) {
	l := restoredLoan(t, "100", "100")
	e := newTestRouter(memRepo(t, l))
	path := "/api/loans/" + l.ID().String() + "/payment"

	for _, body := range []string{`{"amount": 0}`, `{"amount": -1}`, `{"amount": 0.001}`, `{}`} {
		rec := do(t, e, stdhttp.MethodPost, path, body)
		if rec.Code != stdhttp.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestProcessPayment_NotFound(t *testing.T) {
	e := newTestRouter(memRepo(t))

	for _, raw := range []string{uuid.New().String(), "nope"} {
		rec := do(t, e, stdhttp.MethodPost, "/api/loans/"+raw+"/payment", `{"amount": 10}`)
		if rec.Code != stdhttp.StatusNotFound {
			t.Fatalf("%s: status = %d, want 404", raw, rec.Code)
		}
	}
}

func TestProcessPayment_ConflictIs409(t *testing.T) {
	l := restoredLoan(t, "100", "100")
	repo := memRepo(t, l)
	repo.UpdateFn = func(context.Context, *domain.Loan) error { return domain.ErrConflict }
	e := newTestRouter(repo)

	rec := do(t, e, stdhttp.MethodPost, "/api/loans/"+l.ID().String()+"/payment", `{"amount": 10}`)
	if rec.Code != stdhttp.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestDeleteLoan(t *testing.T) {
	l := restoredLoan(t, "100", "100")
	e := newTestRouter(memRepo(t, l))
	path := "/api/loans/" + l.ID().String()

	if rec := do(t, e, stdhttp.MethodDelete, path, ""); rec.Code != stdhttp.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if rec := do(t, e, stdhttp.MethodGet, path, ""); rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("after delete: status = %d, want 404", rec.Code)
	}
	if rec := do(t, e, stdhttp.MethodDelete, path, ""); rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("second delete: status = %d, want 404", rec.Code)
	}
}
