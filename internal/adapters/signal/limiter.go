package signal

import (
	"sync"
	"time"

	"github.com/ridethebus/bus-server/internal/domain"
)

// AttemptLimiter bounds create/join attempts per connection with a
// sliding window, so one socket cannot grind passwords or churn codes.
type AttemptLimiter struct {
	mu       sync.Mutex
	history  map[domain.ConnectionID][]time.Time
	limit    int
	interval time.Duration
}

func NewAttemptLimiter(limit int, interval time.Duration) *AttemptLimiter {
	return &AttemptLimiter{
		history:  make(map[domain.ConnectionID][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

func (rl *AttemptLimiter) Allow(id domain.ConnectionID) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[id]
	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[id] = fresh
		return false
	}

	fresh = append(fresh, now)
	rl.history[id] = fresh
	return true
}

// Forget drops a connection's history once its transport is gone.
func (rl *AttemptLimiter) Forget(id domain.ConnectionID) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.history, id)
}
