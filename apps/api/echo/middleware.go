package echoapi

import (
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

const maxLimiters = 10000

// validIDs responds 404 to path parameters that are not UUIDs.
func validIDs(params ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			for _, p := range params {
				if _, err := uuid.Parse(ctx.Param(p)); err != nil {
					return errHttpNotFound
				}
			}
			return next(ctx)
		}
	}
}

// userRateLimiter keeps one token bucket per user.
type userRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func (rl *userRateLimiter) allow(userID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.limiters[userID]
	if !ok {
		if len(rl.limiters) >= maxLimiters {
			rl.limiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[userID] = limiter
	}
	return limiter.Allow()
}

// aiRateLimitMiddleware limits AI generations per user; perMinute <= 0 disables it.
// It must run after authMiddleware.
func aiRateLimitMiddleware(perMinute float64, burst int) echo.MiddlewareFunc {
	if perMinute <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if burst < 1 {
		burst = 1
	}
	rl := &userRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(perMinute / 60),
		burst:    burst,
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return err
			}
			if !rl.allow(usr.ID) {
				return errTooManyAIRequests
			}
			return next(ctx)
		}
	}
}
