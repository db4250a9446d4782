package server

import (
	"sync"
	"time"

	"github.com/lawnchairsociety/ascend/server/internal/config"
)

const (
	// Entries idle this long, and not locked, are forgotten.
	limiterIdleTTL = 10 * time.Minute
	// Idle entries are swept at most this often, piggybacking on failures.
	limiterSweepEvery = 5 * time.Minute
)

// LoginRateLimiter counts failed logins per client address. Every
// MaxAttempts failures lock the address out; each further lockout doubles
// the previous one up to MaxLockoutSeconds.
type LoginRateLimiter struct {
	mu          sync.Mutex
	entries     map[string]*loginStrikes
	maxAttempts int
	lockout     time.Duration
	maxLockout  time.Duration
	now         func() time.Time
	lastSweep   time.Time
}

type loginStrikes struct {
	failures    int
	lockouts    int
	lockedUntil time.Time
	lastFailure time.Time
}

func NewLoginRateLimiter(cfg config.RateLimitConfig) *LoginRateLimiter {
	return newLoginRateLimiter(cfg, time.Now)
}

func newLoginRateLimiter(cfg config.RateLimitConfig, now func() time.Time) *LoginRateLimiter {
	rl := &LoginRateLimiter{
		entries:     make(map[string]*loginStrikes),
		maxAttempts: cfg.MaxAttempts,
		lockout:     time.Duration(cfg.LockoutSeconds) * time.Second,
		maxLockout:  time.Duration(cfg.MaxLockoutSeconds) * time.Second,
		now:         now,
		lastSweep:   now(),
	}
	if rl.maxAttempts <= 0 {
		rl.maxAttempts = 5
	}
	if rl.lockout <= 0 {
		rl.lockout = 30 * time.Second
	}
	if rl.maxLockout <= 0 {
		rl.maxLockout = 300 * time.Second
	}
	rl.maxLockout = max(rl.maxLockout, rl.lockout)
	return rl
}

// IsLocked reports whether ip is locked out and the time left.
func (rl *LoginRateLimiter) IsLocked(ip string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.lockedLocked(rl.entries[ip], rl.now())
}

func (rl *LoginRateLimiter) lockedLocked(e *loginStrikes, now time.Time) (bool, time.Duration) {
	if e == nil || !now.Before(e.lockedUntil) {
		return false, 0
	}
	return true, e.lockedUntil.Sub(now)
}

// RecordFailure counts a failed login and reports whether ip is now locked
// out. Failures during a lockout do not count toward the next one.
func (rl *LoginRateLimiter) RecordFailure(ip string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) >= limiterSweepEvery {
		rl.sweepLocked(now)
	}

	e := rl.entries[ip]
	if e == nil {
		e = &loginStrikes{}
		rl.entries[ip] = e
	}
	e.lastFailure = now
	if locked, left := rl.lockedLocked(e, now); locked {
		return true, left
	}

	if e.failures++; e.failures < rl.maxAttempts {
		return false, 0
	}
	e.failures = 0
	e.lockouts++
	d := rl.backoff(e.lockouts)
	e.lockedUntil = now.Add(d)
	return true, d
}

// backoff is the lockout for the nth lockout in a row.
func (rl *LoginRateLimiter) backoff(n int) time.Duration {
	d := rl.lockout
	for ; n > 1 && d < rl.maxLockout; n-- {
		d *= 2
	}
	return min(d, rl.maxLockout)
}

// RecordSuccess forgets ip.
func (rl *LoginRateLimiter) RecordSuccess(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.entries, ip)
}

// Attempts is the failure count toward ip's next lockout.
func (rl *LoginRateLimiter) Attempts(ip string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if e := rl.entries[ip]; e != nil {
		return e.failures
	}
	return 0
}

func (rl *LoginRateLimiter) sweepLocked(now time.Time) {
	cutoff := now.Add(-limiterIdleTTL)
	for ip, e := range rl.entries {
		if e.lockedUntil.Before(cutoff) && e.lastFailure.Before(cutoff) {
			delete(rl.entries, ip)
		}
	}
	rl.lastSweep = now
}
