package orch

import (
	"sync"
	"time"

	"github.com/dkeye/VoiceClient/internal/domain"
)

// sendLimiter caps outgoing messages per conversation within a sliding window.
type sendLimiter struct {
	mu       sync.Mutex
	history  map[string][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

func newSendLimiter(limit int, interval time.Duration) *sendLimiter {
	return &sendLimiter{
		history:  make(map[string][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

// Allow records an attempt for ref and reports whether it fits the window.
// A non-positive limit disables the check.
func (l *sendLimiter) Allow(ref domain.ConversationRef) bool {
	if l.limit <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	windowStart := now.Add(-l.interval)
	key := ref.Key()

	attempts := l.history[key]
	fresh := attempts[:0]
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) >= l.limit {
		l.history[key] = fresh
		return false
	}
	l.history[key] = append(fresh, now)
	return true
}
