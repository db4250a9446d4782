package server

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawnchairsociety/ascend/server/internal/config"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(attempts, lockout, maxLockout int) (*LoginRateLimiter, *fakeClock) {
	clock := newFakeClock()
	return newLoginRateLimiter(config.RateLimitConfig{
		MaxAttempts:       attempts,
		LockoutSeconds:    lockout,
		MaxLockoutSeconds: maxLockout,
	}, clock.Now), clock
}

func TestLoginRateLimiter_LocksAfterMaxAttempts(t *testing.T) {
	rl, clock := newTestLimiter(3, 1, 10)
	const ip = "10.0.0.1"

	for i := 1; i < 3; i++ {
		locked, _ := rl.RecordFailure(ip)
		require.False(t, locked, "failure %d", i)
		assert.Equal(t, i, rl.Attempts(ip))
	}

	locked, d := rl.RecordFailure(ip)
	assert.True(t, locked)
	assert.Equal(t, time.Second, d)
	assert.Zero(t, rl.Attempts(ip), "counter resets once locked")

	locked, _ = rl.IsLocked(ip)
	assert.True(t, locked)
	locked, _ = rl.IsLocked("10.0.0.2")
	assert.False(t, locked, "other addresses are unaffected")

	clock.Advance(time.Second)
	locked, _ = rl.IsLocked(ip)
	assert.False(t, locked)
}

func TestLoginRateLimiter_SuccessForgets(t *testing.T) {
	rl, _ := newTestLimiter(3, 1, 10)
	const ip = "10.0.0.1"

	rl.RecordFailure(ip)
	rl.RecordFailure(ip)
	rl.RecordSuccess(ip)

	assert.Zero(t, rl.Attempts(ip))
	locked, _ := rl.RecordFailure(ip)
	assert.False(t, locked)
}

func TestLoginRateLimiter_Backoff(t *testing.T) {
	rl, clock := newTestLimiter(1, 1, 10)
	const ip = "10.0.0.1"

	for i, want := range []time.Duration{1, 2, 4, 8, 10, 10} {
		locked, d := rl.RecordFailure(ip)
		require.True(t, locked, "lockout %d", i+1)
		assert.Equal(t, want*time.Second, d, "lockout %d", i+1)
		clock.Advance(d)
	}
}

func TestLoginRateLimiter_FailureWhileLocked(t *testing.T) {
	rl, clock := newTestLimiter(1, 30, 300)
	const ip = "10.0.0.1"

	rl.RecordFailure(ip)
	clock.Advance(10 * time.Second)

	locked, left := rl.RecordFailure(ip)
	assert.True(t, locked)
	assert.Equal(t, 20*time.Second, left)
}

func TestLoginRateLimiter_Defaults(t *testing.T) {
	rl := NewLoginRateLimiter(config.RateLimitConfig{LockoutSeconds: 600, MaxLockoutSeconds: 60})
	assert.Equal(t, 5, rl.maxAttempts)
	assert.Equal(t, 600*time.Second, rl.lockout)
	assert.Equal(t, rl.lockout, rl.maxLockout, "max lockout never below the base")
}

func TestLoginRateLimiter_Sweep(t *testing.T) {
	rl, clock := newTestLimiter(1, 30, 300)

	rl.RecordFailure("10.0.0.1")
	clock.Advance(limiterSweepEvery)
	rl.RecordFailure("10.0.0.2")
	assert.Len(t, rl.entries, 2, "recent entries survive a sweep")

	clock.Advance(limiterIdleTTL + time.Minute)
	rl.RecordFailure("10.0.0.3")
	assert.NotContains(t, rl.entries, "10.0.0.1")
	assert.NotContains(t, rl.entries, "10.0.0.2")
	assert.Contains(t, rl.entries, "10.0.0.3")
}

func TestLoginRateLimiter_Concurrent(t *testing.T) {
	rl := NewLoginRateLimiter(config.RateLimitConfig{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			ip := fmt.Sprintf("10.0.0.%d", id%10)
			for j := 0; j < 50; j++ {
				switch j % 4 {
				case 0:
					rl.IsLocked(ip)
				case 1:
					rl.RecordFailure(ip)
				case 2:
					rl.Attempts(ip)
				case 3:
					rl.RecordSuccess(ip)
				}
			}
		}(i)
	}
	wg.Wait()
}
