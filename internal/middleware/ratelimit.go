package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/concert-reservation/internal/config"
)

// gcraScript implements the generic cell rate algorithm.  KEYS[1] holds the
// theoretical arrival time (TAT) of the next request in milliseconds; a
// request is admitted while TAT stays within burst emissions of now.  The
// key expires once the bucket would be full again.
//
// ARGV: now_ms, emission_ms, burst.  Returns {allowed, remaining, retry_ms}.
var gcraScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local emission = tonumber(ARGV[2])
local burst = tonumber(ARGV[3])

local tat = tonumber(redis.call('GET', KEYS[1])) or now
if tat < now then
	tat = now
end

local next_tat = tat + emission
local allow_at = next_tat - burst * emission
if now < allow_at then
	return {0, 0, allow_at - now}
end

redis.call('SET', KEYS[1], next_tat, 'PX', next_tat - now)
return {1, math.floor((now - allow_at) / emission), 0}
`)

// limitDecision is the outcome of charging one request to a bucket.
type limitDecision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// NewTokenBucket limits requests per bucket, named by key under cfg.Prefix.
// Without Redis, or when disabled, it passes every request through; a
// Redis error on a single request also lets it through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, key RateKeyFunc) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	emission := cfg.Emission()
	limit := strconv.Itoa(cfg.Capacity)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			bucket := cfg.Prefix + ":" + key(c)
			d, err := take(c, rdb, bucket, emission, cfg.Capacity)
			if err != nil {
				c.Logger().Warnf("ratelimit: %s: %v", bucket, err)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", bucket)
			}
			if d.Allowed {
				return next(c)
			}

			secs := retryAfterSeconds(d.RetryAfter)
			h.Set("Retry-After", strconv.Itoa(secs))
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"statusCode": http.StatusTooManyRequests,
				"message":    "Too many requests, retry in " + strconv.Itoa(secs) + "s",
				"error":      http.StatusText(http.StatusTooManyRequests),
			})
		}
	}
}

func take(c echo.Context, rdb *redis.Client, bucket string, emission time.Duration, burst int) (limitDecision, error) {
	res, err := gcraScript.Run(c.Request().Context(), rdb, []string{bucket},
		time.Now().UnixMilli(), emission.Milliseconds(), burst).Int64Slice()
	if err != nil {
		return limitDecision{}, err
	}
	if len(res) != 3 {
		return limitDecision{}, fmt.Errorf("unexpected script reply %v", res)
	}
	return limitDecision{
		Allowed:    res[0] == 1,
		Remaining:  res[1],
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}

// retryAfterSeconds rounds d up to whole seconds, at least one.
func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	return max(secs, 1)
}
