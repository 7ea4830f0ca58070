package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Keyed hands out one token bucket per key (player id, client IP).
// Buckets idle for longer than the eviction window are dropped on the next sweep.
type Keyed struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	idle     time.Duration
	buckets  map[string]*bucket
	lastScan time.Time
	now      func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// PerHour builds a limiter allowing n events per hour with a burst of n.
func PerHour(n int) *Keyed {
	return New(rate.Limit(float64(n)/3600), n)
}

// PerMinute builds a limiter allowing n events per minute with a burst of n.
func PerMinute(n int) *Keyed {
	return New(rate.Limit(float64(n)/60), n)
}

func New(limit rate.Limit, burst int) *Keyed {
	if burst < 1 {
		burst = 1
	}
	return &Keyed{
		limit:   limit,
		burst:   burst,
		idle:    time.Hour,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow consumes one token for key. A nil limiter allows everything.
func (k *Keyed) Allow(key string) bool {
	if k == nil {
		return true
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	if now.Sub(k.lastScan) > k.idle {
		for key, b := range k.buckets {
			if now.Sub(b.lastSeen) > k.idle {
				delete(k.buckets, key)
			}
		}
		k.lastScan = now
	}

	b, ok := k.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}
