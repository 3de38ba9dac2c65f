package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// callerIdleTTL is how long an unused per-caller bucket is kept. A full
// bucket refills well within it, so dropping it loses no state.
const callerIdleTTL = 10 * time.Minute

type callerBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces per-caller and global request rate limits with token
// buckets. Idle per-caller buckets are evicted after callerIdleTTL.
type RateLimiter struct {
	mu        sync.Mutex
	global    *rate.Limiter // nil when there is no global limit
	callers   map[string]*callerBucket
	perCaller rate.Limit // 0 when there is no per-caller limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter creates a limiter. globalRPM is the total requests/minute
// across all callers and perCallerRPM applies to each caller. Zero disables
// either limit.
func NewRateLimiter(globalRPM, perCallerRPM int) *RateLimiter {
	rl := &RateLimiter{
		callers: make(map[string]*callerBucket),
		burst:   max(perCallerRPM, 1),
		now:     time.Now,
	}
	if perCallerRPM > 0 {
		rl.perCaller = rate.Limit(float64(perCallerRPM) / 60.0)
	}
	if globalRPM > 0 {
		rl.global = rate.NewLimiter(rate.Limit(float64(globalRPM)/60.0), globalRPM)
	}
	rl.lastSweep = rl.now()
	return rl
}

// Allow reports whether a request from caller may proceed.
func (rl *RateLimiter) Allow(caller string) bool {
	if rl.global != nil && !rl.global.Allow() {
		return false
	}
	if rl.perCaller == 0 {
		return true
	}

	rl.mu.Lock()
	now := rl.now()
	if now.Sub(rl.lastSweep) >= callerIdleTTL {
		rl.sweep(now)
	}
	b, ok := rl.callers[caller]
	if !ok {
		b = &callerBucket{limiter: rate.NewLimiter(rl.perCaller, rl.burst)}
		rl.callers[caller] = b
	}
	b.lastSeen = now
	rl.mu.Unlock()
	return b.limiter.AllowN(now, 1)
}

// sweep drops buckets idle for callerIdleTTL. Callers must hold rl.mu.
func (rl *RateLimiter) sweep(now time.Time) {
	for name, b := range rl.callers {
		if now.Sub(b.lastSeen) >= callerIdleTTL {
			delete(rl.callers, name)
		}
	}
	rl.lastSweep = now
}

// tracked returns the number of per-caller buckets held.
func (rl *RateLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.callers)
}
