package prismacloud

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/logger"
)

// minRemainingBuffer is the headroom kept under the server-advertised quota.
// When the remaining allowance drops below it, the limiter sleeps until the
// advertised reset instead of spending the last requests.
const minRemainingBuffer = 5

// RateLimiter throttles API traffic two ways: a client-side token bucket
// caps the sustained request rate, and the X-RateLimit-* response headers,
// when the platform sends them, trigger a wait once the remaining allowance
// runs low.
type RateLimiter struct {
	bucket *rate.Limiter

	mu        sync.Mutex
	limit     int
	remaining int
	resetTime time.Time
}

// NewRateLimiter builds a limiter allowing perSecond sustained requests
// with a burst of the same size. perSecond <= 0 disables the bucket.
func NewRateLimiter(perSecond float64) *RateLimiter {
	rl := &RateLimiter{remaining: -1}
	if perSecond > 0 {
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		rl.bucket = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
	return rl
}

// Wait blocks until the next request is allowed or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	remaining := r.remaining
	reset := r.resetTime
	r.mu.Unlock()

	if remaining >= 0 && remaining < minRemainingBuffer {
		if wait := time.Until(reset); wait > 0 {
			logger.L().Warn("api quota nearly exhausted, waiting for reset",
				zap.Int("remaining", remaining),
				zap.Duration("wait", wait))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if r.bucket == nil {
		return ctx.Err()
	}
	return r.bucket.Wait(ctx)
}

// UpdateFromResponse records the platform's rate-limit headers, if present.
func (r *RateLimiter) UpdateFromResponse(resp *http.Response) {
	if resp == nil {
		return
	}
	limit := headerInt(resp, "X-RateLimit-Limit")
	remaining := headerInt(resp, "X-RateLimit-Remaining")
	reset := headerInt(resp, "X-RateLimit-Reset")
	if limit < 0 && remaining < 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if limit >= 0 {
		r.limit = limit
	}
	if remaining >= 0 {
		r.remaining = remaining
	}
	if reset > 0 {
		r.resetTime = time.Unix(int64(reset), 0)
	}
}

// Remaining reports the last advertised allowance, -1 when unknown.
func (r *RateLimiter) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remaining
}

func headerInt(resp *http.Response, name string) int {
	v := resp.Header.Get(name)
	if v == "" {
		return -1
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}
