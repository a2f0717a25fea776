package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	domain "loan-tracker/internal/domain/loan"
	"loan-tracker/internal/usecase/loan"
	"loan-tracker/pkg/id"
)

const loansPath = "/api/loans"

type LoanHandler struct {
	uc  *loan.Usecase
	log *slog.Logger
}

func NewLoanHandler(uc *loan.Usecase, logger *slog.Logger) *LoanHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoanHandler{uc: uc, log: logger}
}

type createLoanReq struct {
	Amount        decimal.Decimal `json:"amount" validate:"gt=0,lte=1000000,dec2"`
	ApplicantName string          `json:"applicantName" validate:"required,min=2,max=100"`
}

type paymentReq struct {
	Amount decimal.Decimal `json:"amount" validate:"gt=0,dec2"`
}

// Register mounts the loan routes on g. Extra middleware (idempotency) only
// wraps the mutating routes.
func (h *LoanHandler) Register(g *echo.Group, mutating ...echo.MiddlewareFunc) {
	g.GET("", h.ListLoans)
	g.GET("/:id", h.GetLoan)
	g.POST("", h.CreateLoan, mutating...)
	g.POST("/:id/payment", h.ProcessPayment, mutating...)
	g.DELETE("/:id", h.DeleteLoan, mutating...)
}

func (h *LoanHandler) ListLoans(c echo.Context) error {
	out, err := h.uc.List(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *LoanHandler) GetLoan(c echo.Context) error {
	raw := c.Param("id")
	loanID, err := id.Parse(raw)
	if err != nil {
		return notFound(c, raw)
	}
	dto, found, err := h.uc.Get(c.Request().Context(), loanID)
	if err != nil {
		return h.fail(c, err)
	}
	if !found {
		return notFound(c, raw)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) CreateLoan(c echo.Context) error {
	var req createLoanReq
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, validationResponse(ToFieldErrors(err)))
	}

	dto, err := h.uc.Create(c.Request().Context(), loan.CreateLoanInput{
		Amount:        req.Amount,
		ApplicantName: req.ApplicantName,
	})
	if err != nil {
		return h.fail(c, err)
	}
	c.Response().Header().Set(echo.HeaderLocation, loansPath+"/"+dto.ID)
	return c.JSON(http.StatusCreated, dto)
}

func (h *LoanHandler) ProcessPayment(c echo.Context) error {
	raw := c.Param("id")
	loanID, err := id.Parse(raw)
	if err != nil {
		return notFound(c, raw)
	}
	var req paymentReq
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, validationResponse(ToFieldErrors(err)))
	}

	dto, err := h.uc.ProcessPayment(c.Request().Context(), loanID, loan.PaymentInput{Amount: req.Amount})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return notFound(c, raw)
		}
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) DeleteLoan(c echo.Context) error {
	raw := c.Param("id")
	loanID, err := id.Parse(raw)
	if err != nil {
		return notFound(c, raw)
	}
	if err := h.uc.Delete(c.Request().Context(), loanID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return notFound(c, raw)
		}
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// fail maps usecase errors onto status codes.
func (h *LoanHandler) fail(c echo.Context, err error) error {
	ctx := c.Request().Context()
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: ve.Message,
			Details: []FieldError{{Field: ve.Field, Message: ve.Message}},
		})
	case errors.Is(err, domain.ErrBalanceExceeded):
		return message(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return message(c, http.StatusNotFound, "loan not found")
	case errors.Is(err, domain.ErrConflict):
		return message(c, http.StatusConflict, "loan was modified by another request, retry")
	case errors.Is(err, domain.ErrInvariantViolation):
		h.log.ErrorContext(ctx, "loan invariant violated", "err", err)
		return message(c, http.StatusInternalServerError, "internal server error")
	default:
		h.log.ErrorContext(ctx, "request failed", "path", c.Path(), "err", err)
		return message(c, http.StatusInternalServerError, "internal server error")
	}
}

func message(c echo.Context, code int, msg string) error {
	return c.JSON(code, ErrorResponse{Message: msg})
}

func notFound(c echo.Context, raw string) error {
	return message(c, http.StatusNotFound, fmt.Sprintf("Loan with ID %s not found", raw))
}

func invalidBody(c echo.Context) error { return message(c, http.StatusBadRequest, "invalid body") }
