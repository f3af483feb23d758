package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter checks whether a request should be allowed for an identity.
type RateLimiter interface {
	Allow(ctx context.Context, identity *Identity) error
}

// TierConfig holds rate limit settings for a service tier.
type TierConfig struct {
	RequestsPerMinute int
	Burst             int
}

// InProcessLimiter keeps one token bucket per subject and tier. Buckets idle
// for longer than the eviction window are dropped on the next sweep.
type InProcessLimiter struct {
	tiers       map[string]TierConfig
	defaultTier TierConfig

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const bucketIdleEviction = 10 * time.Minute

// NewInProcessLimiter creates a rate limiter with per-tier configuration.
func NewInProcessLimiter(tiers map[string]TierConfig, defaultRPM int) *InProcessLimiter {
	return &InProcessLimiter{
		tiers:       tiers,
		defaultTier: TierConfig{RequestsPerMinute: defaultRPM},
		buckets:     make(map[string]*bucket),
		now:         time.Now,
	}
}

// Allow reports ErrTooManyRequests when the identity's bucket is empty.
func (l *InProcessLimiter) Allow(_ context.Context, identity *Identity) error {
	tier := tierOf(identity)
	tc := l.defaultTier
	if c, ok := l.tiers[tier]; ok {
		tc = c
	}
	if tc.RequestsPerMinute <= 0 {
		return nil
	}
	burst := tc.Burst
	if burst <= 0 {
		burst = tc.RequestsPerMinute
	}

	key := identity.Subject + ":" + tier
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > bucketIdleEviction {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > bucketIdleEviction {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(float64(tc.RequestsPerMinute)/60.0), burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	if !b.limiter.AllowN(now, 1) {
		return ErrTooManyRequests
	}
	return nil
}
