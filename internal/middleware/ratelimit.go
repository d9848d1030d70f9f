package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/gym-credit-booking/internal/config"
)

// RateLimit returns a fixed-window request limiter backed by Redis.  Each
// client gets cfg.Limit requests per cfg.Window, keyed by authenticated user
// when available and by remote IP otherwise.  When the limiter is disabled
// or Redis is unreachable the middleware passes every request through; the
// API stays up even if the limiter's backing store is down.
func RateLimit(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passthrough
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := rateKey(cfg.Prefix, c)

			n, err := rdb.Incr(ctx, key).Result()
			if err != nil {
				// Fail open on Redis errors.
				return next(c)
			}
			if n == 1 {
				_ = rdb.Expire(ctx, key, cfg.Window).Err()
			}

			remaining := int64(cfg.Limit) - n
			if remaining < 0 {
				remaining = 0
			}
			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if n > int64(cfg.Limit) {
				ttl, err := rdb.TTL(ctx, key).Result()
				if err == nil && ttl > 0 {
					c.Response().Header().Set("Retry-After", strconv.Itoa(int(ttl.Seconds()+0.5)))
				}
				return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "rate limit exceeded"})
			}
			return next(c)
		}
	}
}

func passthrough(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error { return next(c) }
}

// rateKey scopes the counter to the caller.  Authenticated requests are
// limited per user id so clients behind shared NATs do not starve each
// other; anonymous requests fall back to the remote IP.
func rateKey(prefix string, c echo.Context) string {
	who := "ip:" + c.RealIP()
	if v := c.Get("user_id"); v != nil {
		switch id := v.(type) {
		case string:
			who = "user:" + id
		case float64:
			who = "user:" + strconv.FormatUint(uint64(id), 10)
		case uint64:
			who = "user:" + strconv.FormatUint(id, 10)
		}
	}
	return strings.Join([]string{prefix, who, c.Request().Method, c.Path()}, ":")
}
