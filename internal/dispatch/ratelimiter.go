package dispatch

import "sync"

// DefaultRateLimit is the source default of 100 requests/second/agent
// with a burst equal to the steady-state rate (spec.md §4.4).
const DefaultRateLimit = 100

// Decision is RateLimiter.TryConsume's result.
type Decision int

const (
	Allowed Decision = iota
	Denied
)

// RateLimiter is the per-agent token-bucket interface checked on the host
// side at dispatch time (not submit time), so its cost is paid in bulk
// rather than on every agent-thread submit.
type RateLimiter interface {
	// TryConsume attempts to take one token for agentID at monotonic time
	// now (nanoseconds). A capacity or refill rate of 0 disables limiting
	// entirely — TryConsume then always returns Allowed.
	TryConsume(agentID string, now int64) Decision
	// SetLimits reconfigures capacity (burst) and refillPerSecond. The
	// new limits apply to every agent from the next TryConsume on; an
	// existing bucket keeps its token count until its next refill, which
	// clamps it to the new capacity.
	SetLimits(capacity, refillPerSecond float64)
}

type bucketState struct {
	tokens     float64
	lastRefill int64 // nanoseconds
}

// TokenBucketLimiter is the in-memory per-agent token bucket RateLimiter
// implementation spec.md §4.4 describes. It is the fabric's default;
// RedisLimiter (ratelimit_redis.go) is an opt-in alternative for hosts
// that run more than one dispatch process against a shared agent
// population.
type TokenBucketLimiter struct {
	mu              sync.Mutex
	capacity        float64
	refillPerSecond float64
	buckets         map[string]*bucketState
}

// NewTokenBucketLimiter constructs a limiter. capacity == refillPerSecond
// == 0 disables limiting; the source default is
// DefaultRateLimit/DefaultRateLimit.
func NewTokenBucketLimiter(capacity, refillPerSecond float64) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		capacity:        capacity,
		refillPerSecond: refillPerSecond,
		buckets:         make(map[string]*bucketState),
	}
}

// TryConsume implements RateLimiter.
func (l *TokenBucketLimiter) TryConsume(agentID string, now int64) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.refillPerSecond <= 0 || l.capacity <= 0 {
		return Allowed
	}

	b, ok := l.buckets[agentID]
	if !ok {
		b = &bucketState{tokens: l.capacity, lastRefill: now}
		l.buckets[agentID] = b
	}

	elapsedSeconds := float64(now-b.lastRefill) / 1e9
	if elapsedSeconds > 0 {
		b.tokens += elapsedSeconds * l.refillPerSecond
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return Allowed
	}
	return Denied
}

// SetLimits implements RateLimiter.
func (l *TokenBucketLimiter) SetLimits(capacity, refillPerSecond float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.capacity = capacity
	l.refillPerSecond = refillPerSecond
}

// Reset forgets all per-agent bucket state, e.g. after a configuration
// change that should not carry over stale token counts.
func (l *TokenBucketLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets = make(map[string]*bucketState)
}
