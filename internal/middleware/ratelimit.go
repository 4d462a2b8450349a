package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/ticketon/backend/internal/config"
)

// RateLimit returns a fixed-window rate limiter backed by Redis.
// Each client key gets cfg.Limit requests per cfg.Window; the counter
// is an INCR with an EXPIRE set on the first hit of the window.  With
// a nil client or disabled config the middleware passes everything
// through, so the API stays up when Redis is down.
func RateLimit(rdb *redis.Client, cfg config.RateLimitConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if rdb == nil || !cfg.Enabled {
				return next(c)
			}
			ctx := c.Request().Context()
			window := time.Now().UTC().Unix() / int64(cfg.Window/time.Second)
			key := cfg.Prefix + ":" + clientKey(c) + ":" + strconv.FormatInt(window, 10)

			n, err := rdb.Incr(ctx, key).Result()
			if err != nil {
				// Redis trouble never blocks traffic.
				return next(c)
			}
			if n == 1 {
				rdb.Expire(ctx, key, cfg.Window)
			}
			if n > int64(cfg.Limit) {
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(cfg.Window/time.Second)))
				return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "rate limit exceeded"})
			}
			return next(c)
		}
	}
}
