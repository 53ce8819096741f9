package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a token bucket guarding a single connection's inbound message
// stream against flooding.
type Limiter struct {
	rate       float64
	burst      int
	tokens     float64
	lastUpdate time.Time
	mu         sync.Mutex
}

func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		rate:       rate,
		burst:      burst,
		tokens:     float64(burst),
		lastUpdate: time.Now(),
	}
}

func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(l.lastUpdate).Seconds()
	l.lastUpdate = now

	l.tokens += elapsed * l.rate
	if l.tokens > float64(l.burst) {
		l.tokens = float64(l.burst)
	}

	if l.tokens >= 1 {
		l.tokens--
		return true
	}

	return false
}

// Throttle is a per-connection minimum-interval gate for high-frequency
// events such as cursor movement. Rejected samples are dropped outright,
// never buffered; this protects fan-out and persistence, not correctness.
type Throttle struct {
	interval time.Duration
	last     map[string]int64 // connection id -> last accepted unix millis
	mu       sync.Mutex
}

// NewThrottle creates a throttle with the given minimum interval between
// accepted events per connection.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{
		interval: interval,
		last:     make(map[string]int64),
	}
}

// Allow reports whether an event at nowMillis should be accepted for the
// connection. The first event is always accepted; after that an event is
// accepted only if at least the configured interval has elapsed since the
// last accepted one. Accepting records nowMillis; rejecting records nothing.
func (t *Throttle) Allow(connID string, nowMillis int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.last[connID]
	if ok && nowMillis-last < t.interval.Milliseconds() {
		return false
	}
	t.last[connID] = nowMillis
	return true
}

// Forget drops the connection's entry. Called on disconnect to bound memory.
func (t *Throttle) Forget(connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.last, connID)
}

// Len returns the number of tracked connections
func (t *Throttle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.last)
}
