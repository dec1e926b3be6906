package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Limiter implements a simple in-memory sliding window rate limiter
type Limiter struct {
	mu       sync.RWMutex
	counters map[string]*counter
	window   time.Duration
	max      int
}

type counter struct {
	count     int
	expiresAt time.Time
}

// NewLimiter creates a new rate limiter with the specified window and max requests
func NewLimiter(window time.Duration, max int) *Limiter {
	l := &Limiter{
		counters: make(map[string]*counter),
		window:   window,
		max:      max,
	}
	go l.cleanup()
	return l
}

// Allow checks if a request for the given key is allowed
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	c, exists := l.counters[key]

	if !exists || now.After(c.expiresAt) {
		l.counters[key] = &counter{
			count:     1,
			expiresAt: now.Add(l.window),
		}
		return true
	}

	if c.count >= l.max {
		return false
	}

	c.count++
	return true
}

// GetRemaining returns the number of remaining requests for the given key
func (l *Limiter) GetRemaining(key string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	now := time.Now()
	c, exists := l.counters[key]

	if !exists || now.After(c.expiresAt) {
		return l.max
	}

	remaining := l.max - c.count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// cleanup periodically removes expired counters
func (l *Limiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		now := time.Now()
		for key, c := range l.counters {
			if now.After(c.expiresAt) {
				delete(l.counters, key)
			}
		}
		l.mu.Unlock()
	}
}

// ErrLimited is returned when a key exhausted its window.
var ErrLimited = errors.New("rate limit exceeded")

// Config holds the request budgets of the public endpoints.
type Config struct {
	TrackPerMinute        int `mapstructure:"track_per_minute"`
	VisitorTrackPerMinute int `mapstructure:"visitor_track_per_minute"`
	ReportsPerHour        int `mapstructure:"reports_per_hour"`
}

// DefaultConfig returns the default budgets.
func DefaultConfig() Config {
	return Config{
		TrackPerMinute:        120,
		VisitorTrackPerMinute: 60,
		ReportsPerHour:        30,
	}
}

// MultiKeyLimiter manages multiple rate limiters for different types of operations
type MultiKeyLimiter struct {
	limiters map[string]*Limiter
	mu       sync.RWMutex
}

// NewMultiKeyLimiter creates a multi-key limiter. Zero budgets fall back to
// the defaults.
func NewMultiKeyLimiter(c Config) *MultiKeyLimiter {
	d := DefaultConfig()
	if c.TrackPerMinute <= 0 {
		c.TrackPerMinute = d.TrackPerMinute
	}
	if c.VisitorTrackPerMinute <= 0 {
		c.VisitorTrackPerMinute = d.VisitorTrackPerMinute
	}
	if c.ReportsPerHour <= 0 {
		c.ReportsPerHour = d.ReportsPerHour
	}
	return &MultiKeyLimiter{
		limiters: map[string]*Limiter{
			"ip_track":      NewLimiter(time.Minute, c.TrackPerMinute),
			"visitor_track": NewLimiter(time.Minute, c.VisitorTrackPerMinute),
			"ip_report":     NewLimiter(time.Hour, c.ReportsPerHour),
		},
	}
}

// CheckTrack verifies if a tracking event is accepted from the given IP and visitor
func (m *MultiKeyLimiter) CheckTrack(ip, visitorId string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.limiters["ip_track"].Allow(ip) {
		return fmt.Errorf("too many events from this IP address: %w", ErrLimited)
	}

	if visitorId != "" && !m.limiters["visitor_track"].Allow(visitorId) {
		return fmt.Errorf("too many events from this visitor: %w", ErrLimited)
	}

	return nil
}

// CheckReport verifies if a report run can be started from the given IP
func (m *MultiKeyLimiter) CheckReport(ip string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.limiters["ip_report"].Allow(ip) {
		return fmt.Errorf("too many report runs, please try again later: %w", ErrLimited)
	}

	return nil
}

// GetTrackLimits returns remaining tracking requests for IP and visitor
func (m *MultiKeyLimiter) GetTrackLimits(ip, visitorId string) (ipRemaining, visitorRemaining int) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ipRemaining = m.limiters["ip_track"].GetRemaining(ip)
	if visitorId != "" {
		visitorRemaining = m.limiters["visitor_track"].GetRemaining(visitorId)
	} else {
		visitorRemaining = -1 // not applicable
	}

	return ipRemaining, visitorRemaining
}
