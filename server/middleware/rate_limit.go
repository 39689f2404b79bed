package middleware

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	apierrors "github.com/hrygo/bizcache/server/internal/errors"
)

const (
	// DefaultRPS is the sustained request rate allowed per client.
	DefaultRPS = 10
	// DefaultBurst is the number of requests a client may send at once.
	DefaultBurst = 20

	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
)

// RateLimiter keeps one token bucket per client key. Limits are held in process
// memory, so every instance enforces its own budget.
type RateLimiter struct {
	mu     sync.Mutex
	limits map[string]*client
	rps    rate.Limit
	burst  int
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter. Non-positive values fall back to the defaults.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		rps = DefaultRPS
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	return &RateLimiter{
		limits: make(map[string]*client),
		rps:    rate.Limit(rps),
		burst:  burst,
	}
}

// getLimiter gets or creates a limiter for the given key.
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if c, ok := rl.limits[key]; ok {
		c.lastSeen = now
		return c.limiter
	}
	c := &client{limiter: rate.NewLimiter(rl.rps, rl.burst), lastSeen: now}
	rl.limits[key] = c
	return c.limiter
}

// Allow checks if a request is allowed for the given key.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

// Wait waits for a request to be allowed.
// Returns error if the context is cancelled or rate limit exceeded.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	return rl.getLimiter(key).Wait(ctx)
}

// Len returns the number of tracked clients.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limits)
}

// Prune forgets clients not seen since before. A forgotten client starts again
// with a full bucket.
func (rl *RateLimiter) Prune(before time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for key, c := range rl.limits {
		if c.lastSeen.Before(before) {
			delete(rl.limits, key)
			removed++
		}
	}
	return removed
}

// Run prunes clients idle for longer than idle every interval until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.Prune(now.Add(-idle))
		}
	}
}

// Middleware rejects requests over the budget of their client IP with 429.
// onReject, when set, is called for every rejected request.
func (rl *RateLimiter) Middleware(onReject func()) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			limiter := rl.getLimiter(c.RealIP())
			allowed := limiter.Allow()

			header := c.Response().Header()
			header.Set(HeaderRateLimitLimit, strconv.Itoa(rl.burst))
			header.Set(HeaderRateLimitRemaining, strconv.Itoa(int(math.Max(0, math.Floor(limiter.Tokens())))))

			if !allowed {
				retryAfter := math.Ceil(1 / float64(rl.rps))
				header.Set(echo.HeaderRetryAfter, strconv.Itoa(int(retryAfter)))
				if onReject != nil {
					onReject()
				}
				return apierrors.RateLimitExceeded("too many requests")
			}
			return next(c)
		}
	}
}
