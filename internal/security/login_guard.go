package security

import (
	"sync"
	"time"
)

// LoginGuardConfig holds the failed login lockout options
type LoginGuardConfig struct {
	// Maximum number of failed attempts per key within window, 0 disables the guard
	MaxAttempts int
	// Time window for counting attempts
	Window time.Duration
	// Lockout duration after exceeding max attempts
	Lockout time.Duration
}

// LoginGuard locks out a login key after repeated failures
type LoginGuard struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	config   LoginGuardConfig
	now      func() time.Time
}

// NewLoginGuard creates a login guard
func NewLoginGuard(config LoginGuardConfig) *LoginGuard {
	return &LoginGuard{
		attempts: make(map[string][]time.Time),
		config:   config,
		now:      time.Now,
	}
}

// RecordFailure records a failed attempt for key
func (g *LoginGuard) RecordFailure(key string) {
	if g.config.MaxAttempts <= 0 {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.attempts[key] = append(g.prune(g.attempts[key], now), now)
}

// Blocked reports whether key is locked out and until when
func (g *LoginGuard) Blocked(key string) (bool, time.Time) {
	if g.config.MaxAttempts <= 0 {
		return false, time.Time{}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	attempts := g.prune(g.attempts[key], now)
	if len(attempts) == 0 {
		delete(g.attempts, key)
		return false, time.Time{}
	}
	g.attempts[key] = attempts

	last := attempts[len(attempts)-1]
	windowStart := last.Add(-g.config.Window)
	count := 0
	for _, t := range attempts {
		if t.After(windowStart) {
			count++
		}
	}
	if count < g.config.MaxAttempts {
		return false, time.Time{}
	}

	until := last.Add(g.config.Lockout)
	return now.Before(until), until
}

// Reset forgets the failures recorded for key
func (g *LoginGuard) Reset(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.attempts, key)
}

// prune drops attempts that can no longer count towards a lockout
func (g *LoginGuard) prune(attempts []time.Time, now time.Time) []time.Time {
	keep := g.config.Window
	if g.config.Lockout > keep {
		keep = g.config.Lockout
	}

	cutoff := now.Add(-keep)
	i := 0
	for i < len(attempts) && !attempts[i].After(cutoff) {
		i++
	}
	return attempts[i:]
}
