package middleware

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"

	// How long the "in-progress" lock lives if the handler never finishes.
	provisionalLockTTL = 60 * time.Second
	storeTimeout       = 2 * time.Second
)

type idempEntry struct {
	InProgress bool      `json:"in_progress"`
	Code       int       `json:"code"`
	Body       []byte    `json:"body"`
	Location   string    `json:"location,omitempty"`
	BodySHA256 string    `json:"body_sha256"`
	Key        string    `json:"key"`
	CreatedAt  time.Time `json:"created_at"`
}

type respRecorder struct {
	w    http.ResponseWriter
	buf  *bytes.Buffer
	code int
}

func (r *respRecorder) Header() http.Header { return r.w.Header() }
func (r *respRecorder) Write(b []byte) (int, error) {
	if r.buf != nil {
		r.buf.Write(b)
	}
	return r.w.Write(b)
}
func (r *respRecorder) WriteHeader(statusCode int) { r.code = statusCode; r.w.WriteHeader(statusCode) }

func jsonMessage(c echo.Context, code int, msg string) error {
	return c.JSON(code, map[string]string{"message": msg})
}

// Idempotency de-duplicates mutating requests that carry an Idempotency-Key.
// The key is scoped by method and request path, so the same key may be reused
// against different loans. Requests without the header pass straight through.
func Idempotency(rdb redis.Cmdable, ttl time.Duration, log *slog.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = slog.Default()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			switch req.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			idemKey := strings.TrimSpace(req.Header.Get(HeaderIdempotencyKey))
			if idemKey == "" {
				return next(c)
			}
			if !validKey(idemKey) {
				return jsonMessage(c, http.StatusBadRequest, "invalid Idempotency-Key format")
			}
			idemKey = strings.ToLower(idemKey)

			var body []byte
			if req.Body != nil {
				var err error
				if body, err = io.ReadAll(req.Body); err != nil {
					return jsonMessage(c, http.StatusBadRequest, "invalid body")
				}
			}
			req.Body = io.NopCloser(bytes.NewReader(body))
			bhash := bodyHash(body)

			key := buildKey(req.Method, req.URL.Path, idemKey)
			ctx, cancel := context.WithTimeout(req.Context(), storeTimeout)
			defer cancel()

			ok, err := provisionalSet(ctx, rdb, key, idempEntry{
				InProgress: true,
				BodySHA256: bhash,
				Key:        idemKey,
				CreatedAt:  nowUTC(),
			})
			if err != nil {
				log.ErrorContext(ctx, "idempotency store unavailable", "key", key, "err", err)
				return jsonMessage(c, http.StatusServiceUnavailable, "idempotency store unavailable")
			}
			if !ok {
				cur, errLoad := loadEntry(ctx, rdb, key)
				if errLoad != nil {
					log.WarnContext(ctx, "idempotency entry unreadable", "key", key, "err", errLoad)
				}
				if cur.BodySHA256 != "" && cur.BodySHA256 != bhash {
					return jsonMessage(c, http.StatusConflict, "Idempotency-Key reused with different body")
				}
				if !cur.InProgress && cur.Code != 0 {
					if cur.Location != "" {
						c.Response().Header().Set(echo.HeaderLocation, cur.Location)
					}
					return c.Blob(cur.Code, echo.MIMEApplicationJSONCharsetUTF8, cur.Body)
				}
				return jsonMessage(c, http.StatusConflict, "request is already in progress")
			}

			rec := &respRecorder{w: c.Response().Writer, buf: &bytes.Buffer{}, code: http.StatusOK}
			c.Response().Writer = rec
			if err := next(c); err != nil {
				c.Error(err)
			}

			// detached from the request: the client may already be gone
			saveCtx, saveCancel := context.WithTimeout(context.Background(), storeTimeout)
			defer saveCancel()

			if rec.code >= http.StatusInternalServerError {
				// let the client retry a failed attempt
				if err := rdb.Del(saveCtx, key).Err(); err != nil {
					log.WarnContext(saveCtx, "idempotency release failed", "key", key, "err", err)
				}
				return nil
			}
			final := idempEntry{
				Code:       rec.code,
				Body:       rec.buf.Bytes(),
				Location:   rec.Header().Get(echo.HeaderLocation),
				BodySHA256: bhash,
				Key:        idemKey,
				CreatedAt:  nowUTC(),
			}
			if err := saveFinal(saveCtx, rdb, key, final, ttl); err != nil {
				log.WarnContext(saveCtx, "idempotency save failed", "key", key, "err", err)
			}
			return nil
		}
	}
}
