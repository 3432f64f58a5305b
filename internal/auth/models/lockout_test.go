package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLockoutKey(t *testing.T) {
	assert.Equal(t, "login:officer@bank.example:10.0.0.1", LockoutKey("Officer@Bank.example", "10.0.0.1"))
	// IPv6 colons and crafted addresses cannot shift segments.
	assert.Equal(t, "login:a_b@x.example:__1", LockoutKey("a:b@x.example", "::1"))
}

func TestLockoutWindow(t *testing.T) {
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	l := &Lockout{Key: "k", FailureCount: 4, WindowStart: start}

	assert.False(t, l.IsExpiredAt(start.Add(14*time.Minute), 15*time.Minute))
	assert.True(t, l.IsExpiredAt(start.Add(15*time.Minute), 15*time.Minute))
	assert.False(t, l.ShouldLock(5))

	l.FailureCount = 5
	assert.True(t, l.ShouldLock(5))
	l.ApplyLock(30*time.Minute, start.Add(10*time.Minute))
	assert.False(t, l.ShouldLock(5), "already locked")
	assert.True(t, l.IsLockedAt(start.Add(39*time.Minute)))
	assert.False(t, l.IsExpiredAt(start.Add(39*time.Minute), 15*time.Minute), "lock outlives the window")
	assert.False(t, l.IsLockedAt(start.Add(40*time.Minute)))
	assert.True(t, l.IsExpiredAt(start.Add(40*time.Minute), 15*time.Minute))
}
