package http

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	mw "loan-tracker/internal/adapter/middleware"
)

type RouterOptions struct {
	AllowedOrigins []string
	Logger         *slog.Logger
	Metrics        *mw.HTTPMetrics
	// MetricsHandler is served on GET /metrics when set.
	MetricsHandler http.Handler
	// Idempotency wraps the mutating loan routes when set.
	Idempotency echo.MiddlewareFunc
}

// NewRouter assembles the echo instance with every route and middleware.
func NewRouter(h *Handler, lh *LoanHandler, opts RouterOptions) *echo.Echo {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = StrictJSONSerializer{}
	e.Validator = NewValidator()

	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  opts.AllowedOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderContentType, echo.HeaderAccept, mw.HeaderIdempotencyKey},
		ExposeHeaders: []string{echo.HeaderLocation},
	}))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				log.ErrorContext(c.Request().Context(), "request", append(attrs, "err", v.Error)...)
				return nil
			}
			log.InfoContext(c.Request().Context(), "request", attrs...)
			return nil
		},
	}))
	if opts.Metrics != nil {
		e.Use(opts.Metrics.Middleware())
	}

	e.GET("/health", h.Health)
	if opts.MetricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(opts.MetricsHandler))
	}

	var mutating []echo.MiddlewareFunc
	if opts.Idempotency != nil {
		mutating = append(mutating, opts.Idempotency)
	}
	lh.Register(e.Group(loansPath), mutating...)
	return e
}
