package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/blockdoc/blockdoc/common/ratelimit"
)

// UploadRateLimitMiddleware bounds per-client document submissions. On a
// limiter error the request is allowed through: rate limiting protects the
// chain account from drain, it must not take the service down with it.
func UploadRateLimitMiddleware(limiter *ratelimit.RateLimiter, limit int64, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			result, err := limiter.CheckUploadLimit(c.Request().Context(), c.RealIP(), limit, window)
			if err != nil {
				return next(c)
			}

			if !result.Allowed {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":       "rate_limit_exceeded",
					"message":     "Too many uploads, please try again later.",
					"retry_after": result.RetryAfterSeconds,
				})
			}

			return next(c)
		}
	}
}
