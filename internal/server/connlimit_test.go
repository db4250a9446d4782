package server

import (
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawnchairsociety/ascend/server/internal/config"
)

func TestConnLimiter_Limits(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.ConnectionsConfig
		ips     []string
		next    string
		wantErr error
	}{
		{"per ip", config.ConnectionsConfig{MaxPerIP: 2, MaxTotal: 100}, []string{"10.0.0.1", "10.0.0.1"}, "10.0.0.1", errIPFull},
		{"other ip unaffected", config.ConnectionsConfig{MaxPerIP: 2, MaxTotal: 100}, []string{"10.0.0.1", "10.0.0.1"}, "10.0.0.2", nil},
		{"total", config.ConnectionsConfig{MaxPerIP: 10, MaxTotal: 3}, []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}, "10.0.0.4", errServerFull},
		{"unbounded", config.ConnectionsConfig{}, []string{"10.0.0.1", "10.0.0.1", "10.0.0.1"}, "10.0.0.1", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cl := NewConnLimiter(tt.cfg)
			for _, ip := range tt.ips {
				_, err := cl.Acquire(ip)
				require.NoError(t, err)
			}
			_, err := cl.Acquire(tt.next)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConnLimiter_ReleaseFreesSlot(t *testing.T) {
	cl := NewConnLimiter(config.ConnectionsConfig{MaxPerIP: 1, MaxTotal: 1})

	release, err := cl.Acquire("10.0.0.1")
	require.NoError(t, err)
	_, err = cl.Acquire("10.0.0.2")
	require.ErrorIs(t, err, errServerFull)

	release()
	release()
	assert.Equal(t, ConnStats{MaxTotal: 1, MaxPerIP: 1}, cl.Stats())

	_, err = cl.Acquire("10.0.0.2")
	assert.NoError(t, err)
}

func TestConnLimiter_Stats(t *testing.T) {
	cl := NewConnLimiter(config.ConnectionsConfig{MaxPerIP: 10, MaxTotal: 100})

	var releases []func()
	for _, ip := range []string{"10.0.0.1", "10.0.0.1", "10.0.0.2"} {
		release, err := cl.Acquire(ip)
		require.NoError(t, err)
		releases = append(releases, release)
	}
	assert.Equal(t, ConnStats{Total: 3, UniqueIPs: 2, MaxTotal: 100, MaxPerIP: 10}, cl.Stats())

	releases[0]()
	assert.Equal(t, 2, cl.Stats().UniqueIPs)
	releases[1]()
	assert.Equal(t, 1, cl.Stats().UniqueIPs)
}

func TestConnLimiter_Concurrent(t *testing.T) {
	cl := NewConnLimiter(config.ConnectionsConfig{MaxTotal: 100, MaxPerIP: 10})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			ip := fmt.Sprintf("10.0.0.%d", id%10)
			for j := 0; j < 50; j++ {
				if release, err := cl.Acquire(ip); err == nil {
					release()
				}
			}
		}(i)
	}
	wg.Wait()

	stats := cl.Stats()
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.UniqueIPs)
}

func TestExtractIP(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"192.168.1.1:12345", "192.168.1.1"},
		{"[::1]:12345", "::1"},
		{"localhost:4000", "localhost"},
		{"192.168.1.1", "192.168.1.1"},
	}

	for _, tt := range tests {
		if result := extractIP(tt.input); result != tt.expected {
			t.Errorf("extractIP(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestGetRealIP(t *testing.T) {
	tests := []struct {
		name       string
		trust      bool
		xff        string
		xri        string
		remoteAddr string
		expected   string
	}{
		{
			name:       "X-Forwarded-For single IP",
			trust:      true,
			xff:        "203.0.113.50",
			remoteAddr: "10.0.0.1:12345",
			expected:   "203.0.113.50",
		},
		{
			name:       "X-Forwarded-For multiple IPs",
			trust:      true,
			xff:        "203.0.113.50, 70.41.3.18, 150.172.238.178",
			remoteAddr: "10.0.0.1:12345",
			expected:   "203.0.113.50",
		},
		{
			name:       "X-Real-IP",
			trust:      true,
			xri:        "203.0.113.50",
			remoteAddr: "10.0.0.1:12345",
			expected:   "203.0.113.50",
		},
		{
			name:       "X-Forwarded-For takes precedence over X-Real-IP",
			trust:      true,
			xff:        "203.0.113.50",
			xri:        "198.51.100.25",
			remoteAddr: "10.0.0.1:12345",
			expected:   "203.0.113.50",
		},
		{
			name:       "No headers - use RemoteAddr",
			trust:      true,
			remoteAddr: "192.168.1.100:54321",
			expected:   "192.168.1.100",
		},
		{
			name:       "Untrusted headers are ignored",
			xff:        "203.0.113.50",
			xri:        "198.51.100.25",
			remoteAddr: "192.168.1.100:54321",
			expected:   "192.168.1.100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &http.Request{
				RemoteAddr: tt.remoteAddr,
				Header:     make(http.Header),
			}
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}

			if result := getRealIP(req, tt.trust); result != tt.expected {
				t.Errorf("getRealIP() = %q, want %q", result, tt.expected)
			}
		})
	}
}
