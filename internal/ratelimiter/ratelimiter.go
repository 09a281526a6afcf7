package ratelimiter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// pruneThreshold is the number of tracked keys above which idle buckets are
// dropped on the next Allow.
const pruneThreshold = 1024

// KeyedLimiter rate limits events per key using one token bucket per key.
//
// The FTP adapter keys it by client host to throttle login attempts, so a
// client guessing passwords is slowed down without affecting other clients.
//
// Buckets that have been idle long enough to refill completely are dropped,
// which keeps memory bounded by the number of recently active keys.
//
// Thread safety:
// All methods are safe for concurrent use. A nil *KeyedLimiter allows
// everything.
type KeyedLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*bucket

	// now is replaced in tests
	now func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a KeyedLimiter allowing perMinute events per key on average,
// with bursts of up to burst events.
//
// Special cases:
//   - perMinute = 0: no limiting, New returns nil
//   - burst = 0: burst defaults to 1
func New(perMinute, burst uint) *KeyedLimiter {
	if perMinute == 0 {
		return nil
	}
	if burst == 0 {
		burst = 1
	}

	return &KeyedLimiter{
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   int(burst),
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow reports whether an event for key may happen now, consuming a token
// if so.
func (l *KeyedLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := l.now()
	return l.get(key, now).AllowN(now, 1)
}

// Delay returns how long key has to wait before its next event is allowed.
// It consumes nothing.
func (l *KeyedLimiter) Delay(key string) time.Duration {
	if l == nil {
		return 0
	}
	now := l.now()
	tokens := l.get(key, now).TokensAt(now)
	if tokens >= 1 {
		return 0
	}
	return time.Duration((1 - tokens) / float64(l.limit) * float64(time.Second))
}

// Len returns the number of tracked keys.
func (l *KeyedLimiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *KeyedLimiter) get(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= pruneThreshold {
			l.prune(now)
		}
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

// prune drops buckets idle for longer than a full refill. Such a bucket is
// indistinguishable from a fresh one. Caller holds mu.
func (l *KeyedLimiter) prune(now time.Time) {
	refill := time.Duration(float64(l.burst) / float64(l.limit) * float64(time.Second))
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > refill {
			delete(l.buckets, key)
		}
	}
}
