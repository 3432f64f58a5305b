package models

import (
	"strings"
	"time"
)

// Lockout tracks failed logins for one email and client address within a
// fixed window that starts at the first failure.
type Lockout struct {
	Key          string     `json:"key"`
	FailureCount int        `json:"failure_count"`
	WindowStart  time.Time  `json:"window_start"`
	LockedUntil  *time.Time `json:"locked_until,omitempty"`
}

// LockoutKey builds the store key for a login identity. ':' is escaped so a
// crafted email cannot collide with another address's key.
func LockoutKey(address, clientIP string) string {
	return "login:" + sanitizeKeySegment(strings.ToLower(address)) + ":" + sanitizeKeySegment(clientIP)
}

func sanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

func (l *Lockout) IsLockedAt(now time.Time) bool {
	return l.LockedUntil != nil && now.Before(*l.LockedUntil)
}

// IsExpiredAt reports whether the failure window has passed and no lock
// is holding the record open.
func (l *Lockout) IsExpiredAt(now time.Time, window time.Duration) bool {
	return !l.IsLockedAt(now) && !now.Before(l.WindowStart.Add(window))
}

func (l *Lockout) ShouldLock(maxAttempts int) bool {
	return l.LockedUntil == nil && l.FailureCount >= maxAttempts
}

func (l *Lockout) ApplyLock(duration time.Duration, now time.Time) {
	until := now.Add(duration)
	l.LockedUntil = &until
}
