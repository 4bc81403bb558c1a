package rpc

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL = 15 * time.Minute
	sweepInterval  = time.Minute
)

type sourceEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// sourceLimiter keeps one token bucket per client address. Idle buckets are
// swept on access.
type sourceLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu        sync.Mutex
	sources   map[string]*sourceEntry
	lastSweep time.Time
}

func newSourceLimiter(perMinute, burst int) *sourceLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = perMinute
	}
	return &sourceLimiter{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   burst,
		now:     time.Now,
		sources: make(map[string]*sourceEntry),
	}
}

func (l *sourceLimiter) allow(source string) bool {
	if l == nil {
		return true
	}
	if source == "" {
		source = "unknown"
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= sweepInterval {
		for key, entry := range l.sources {
			if now.Sub(entry.lastSeen) > limiterIdleTTL {
				delete(l.sources, key)
			}
		}
		l.lastSweep = now
	}
	entry, ok := l.sources[source]
	if !ok {
		entry = &sourceEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.sources[source] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}
