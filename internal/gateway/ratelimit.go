package gateway

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// turnLimiter bounds turns per guest with one token bucket per user id.
type turnLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	maxKeys int
	idle    time.Duration
	users   map[string]*userLimiter
	now     func() time.Time
}

type userLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

const (
	turnLimiterMaxUsers = 10000
	turnLimiterIdle     = 10 * time.Minute
)

// newTurnLimiter allows perMinute turns per user with the given burst.
// perMinute <= 0 disables limiting.
func newTurnLimiter(perMinute, burst int) *turnLimiter {
	l := &turnLimiter{
		limit:   rate.Inf,
		burst:   burst,
		maxKeys: turnLimiterMaxUsers,
		idle:    turnLimiterIdle,
		users:   make(map[string]*userLimiter),
		now:     time.Now,
	}
	if perMinute > 0 {
		l.limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	if l.burst <= 0 {
		l.burst = 1
	}
	return l
}

// allow reports whether userID may run a turn now. When it may not, the
// returned duration is how long until a token frees up.
func (l *turnLimiter) allow(userID string) (bool, time.Duration) {
	if l.limit == rate.Inf {
		return true, 0
	}
	now := l.now()

	l.mu.Lock()
	u, ok := l.users[userID]
	if !ok {
		if len(l.users) >= l.maxKeys {
			l.evict(now)
		}
		u = &userLimiter{lim: rate.NewLimiter(l.limit, l.burst)}
		l.users[userID] = u
	}
	u.seen = now
	l.mu.Unlock()

	r := u.lim.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// evict drops idle users, or the least recently seen one when none are idle.
// Callers hold l.mu.
func (l *turnLimiter) evict(now time.Time) {
	var oldestID string
	var oldest time.Time
	for id, u := range l.users {
		if now.Sub(u.seen) > l.idle {
			delete(l.users, id)
			continue
		}
		if oldestID == "" || u.seen.Before(oldest) {
			oldestID, oldest = id, u.seen
		}
	}
	if len(l.users) >= l.maxKeys && oldestID != "" {
		delete(l.users, oldestID)
	}
}

func (l *turnLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.users)
}

// authRateLimiter tracks failed auth attempts per IP to prevent brute-force attacks.
type authRateLimiter struct {
	mu       sync.Mutex
	failures map[string][]time.Time
}

const (
	authRateWindow   = 5 * time.Minute
	authRateMaxFails = 10
	authRateMaxIPs   = 10000 // max tracked IPs to prevent memory exhaustion
)

func newAuthRateLimiter() *authRateLimiter {
	return &authRateLimiter{failures: make(map[string][]time.Time)}
}

func remoteHost(remoteAddr string) string {
	host, _, _ := net.SplitHostPort(remoteAddr)
	if host == "" {
		host = remoteAddr
	}
	return host
}

func (l *authRateLimiter) allow(remoteAddr string) bool {
	host := remoteHost(remoteAddr)

	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-authRateWindow)
	recent := l.failures[host]
	filtered := recent[:0]
	for _, t := range recent {
		if t.After(cutoff) {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) == 0 {
		delete(l.failures, host)
		return true
	}
	l.failures[host] = filtered
	return len(filtered) < authRateMaxFails
}

func (l *authRateLimiter) recordFailure(remoteAddr string) {
	host := remoteHost(remoteAddr)

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.failures[host]; !exists && len(l.failures) >= authRateMaxIPs {
		var oldestIP string
		var oldestTime time.Time
		for ip, times := range l.failures {
			if len(times) > 0 && (oldestIP == "" || times[0].Before(oldestTime)) {
				oldestIP = ip
				oldestTime = times[0]
			}
		}
		if oldestIP != "" {
			delete(l.failures, oldestIP)
		}
	}

	l.failures[host] = append(l.failures[host], time.Now())
}
