package signal

import (
	"sync"
	"time"

	"github.com/dkeye/meetrelay/internal/core"
	"golang.org/x/time/rate"
)

// RateLimiter gives every connection its own token bucket of limit events per interval.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[core.SessionID]*rate.Limiter
	limit    int
	interval time.Duration
}

func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets:  make(map[core.SessionID]*rate.Limiter),
		limit:    limit,
		interval: interval,
	}
}

func (rl *RateLimiter) Allow(sid core.SessionID) bool {
	if rl.limit <= 0 || rl.interval <= 0 {
		return true
	}
	rl.mu.Lock()
	b, ok := rl.buckets[sid]
	if !ok {
		b = rate.NewLimiter(rate.Every(rl.interval/time.Duration(rl.limit)), rl.limit)
		rl.buckets[sid] = b
	}
	rl.mu.Unlock()
	return b.Allow()
}

// Forget drops the bucket of a closed connection.
func (rl *RateLimiter) Forget(sid core.SessionID) {
	rl.mu.Lock()
	delete(rl.buckets, sid)
	rl.mu.Unlock()
}
