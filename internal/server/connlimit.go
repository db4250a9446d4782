package server

import (
	"errors"
	"sync"

	"github.com/lawnchairsociety/ascend/server/internal/config"
)

var (
	errServerFull = errors.New("server socket limit reached")
	errIPFull     = errors.New("per-address socket limit reached")
)

// ConnStats is a point-in-time view of open sockets.
type ConnStats struct {
	Total     int `json:"total"`
	UniqueIPs int `json:"unique_ips"`
	MaxTotal  int `json:"max_total,omitempty"`
	MaxPerIP  int `json:"max_per_ip,omitempty"`
}

// ConnLimiter bounds open push sockets per client address and overall.
// A zero limit is unbounded.
type ConnLimiter struct {
	mu       sync.Mutex
	perIP    map[string]int
	open     int
	maxPerIP int
	maxTotal int
}

func NewConnLimiter(cfg config.ConnectionsConfig) *ConnLimiter {
	return &ConnLimiter{
		perIP:    make(map[string]int),
		maxPerIP: cfg.MaxPerIP,
		maxTotal: cfg.MaxTotal,
	}
}

// Acquire takes a slot for ip. The returned release gives it back and may be
// called any number of times.
func (c *ConnLimiter) Acquire(ip string) (release func(), err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.maxTotal > 0 && c.open >= c.maxTotal:
		return nil, errServerFull
	case c.maxPerIP > 0 && c.perIP[ip] >= c.maxPerIP:
		return nil, errIPFull
	}
	c.perIP[ip]++
	c.open++

	var once sync.Once
	return func() { once.Do(func() { c.release(ip) }) }, nil
}

func (c *ConnLimiter) release(ip string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.perIP[ip] <= 1 {
		delete(c.perIP, ip)
	} else {
		c.perIP[ip]--
	}
	c.open--
}

func (c *ConnLimiter) Stats() ConnStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ConnStats{
		Total:     c.open,
		UniqueIPs: len(c.perIP),
		MaxTotal:  c.maxTotal,
		MaxPerIP:  c.maxPerIP,
	}
}
