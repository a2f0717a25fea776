package http

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

func init() {
	// money leaves the API as a JSON number
	decimal.MarshalJSONWithoutQuotes = true
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct{ db Pinger }

// NewHandler builds the health handler. db may be nil.
func NewHandler(db Pinger) *Handler { return &Handler{db: db} }

func (h *Handler) Health(c echo.Context) error {
	body := map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339Nano),
	}
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			body["status"] = "degraded"
			return c.JSON(http.StatusServiceUnavailable, body)
		}
	}
	return c.JSON(http.StatusOK, body)
}
