// picobot - Telegram command bot with pluggable, permission-gated commands
// License: MIT
//
// Copyright (c) 2026 PicoBot contributors

// Package ratelimit throttles command traffic per sender with token buckets.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type Config struct {
	Enabled           bool
	CommandsPerMinute int
	Burst             int
}

func DefaultConfig() Config {
	return Config{
		Enabled:           false,
		CommandsPerMinute: 20,
		Burst:             5,
	}
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter holds one bucket per user. A disabled or nil Limiter allows
// everything.
type Limiter struct {
	config Config
	now    func() time.Time

	mu    sync.Mutex
	users map[int64]*entry
}

func NewLimiter(config Config) *Limiter {
	if config.CommandsPerMinute <= 0 {
		config.CommandsPerMinute = DefaultConfig().CommandsPerMinute
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	return &Limiter{
		config: config,
		now:    time.Now,
		users:  make(map[int64]*entry),
	}
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.config.Enabled
}

// Allow takes one token from userID's bucket.
func (l *Limiter) Allow(userID int64) bool {
	if !l.Enabled() {
		return true
	}
	now := l.now()

	l.mu.Lock()
	e, ok := l.users[userID]
	if !ok {
		every := time.Minute / time.Duration(l.config.CommandsPerMinute)
		e = &entry{limiter: rate.NewLimiter(rate.Every(every), l.config.Burst)}
		l.users[userID] = e
	}
	e.lastSeen = now
	l.mu.Unlock()

	return e.limiter.AllowN(now, 1)
}

// Cleanup forgets users idle for longer than maxAge.
func (l *Limiter) Cleanup(maxAge time.Duration) int {
	if l == nil {
		return 0
	}
	cutoff := l.now().Add(-maxAge)

	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for id, e := range l.users {
		if e.lastSeen.Before(cutoff) {
			delete(l.users, id)
			removed++
		}
	}
	return removed
}

func (l *Limiter) Reset() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.users = make(map[int64]*entry)
}

// Tracked returns the number of users with a live bucket.
func (l *Limiter) Tracked() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.users)
}
