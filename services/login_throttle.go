package services

import (
	"math"
	"sync"
	"time"
)

const ThrottleCooldownCapSeconds = 30

type throttleEntry struct {
	failCount     int
	cooldownUntil time.Time
}

// LoginThrottle tracks failed /login attempts per Telegram user.
// After the n-th consecutive failure the user waits min(30, 2^n) seconds.
type LoginThrottle struct {
	mu      sync.Mutex
	entries map[int64]*throttleEntry
}

func NewLoginThrottle() *LoginThrottle {
	return &LoginThrottle{entries: make(map[int64]*throttleEntry)}
}

// WaitSeconds returns how many seconds the user must wait before trying again (0 if no cooldown).
func (t *LoginThrottle) WaitSeconds(tgUserID int64, now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[tgUserID]
	if !ok || !now.Before(e.cooldownUntil) {
		return 0
	}
	return int(e.cooldownUntil.Sub(now).Seconds()) + 1 // round up
}

// RecordFailed increments the fail count and starts the cooldown.
func (t *LoginThrottle) RecordFailed(tgUserID int64, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[tgUserID]
	if !ok {
		e = &throttleEntry{}
		t.entries[tgUserID] = e
	}
	e.failCount++
	e.cooldownUntil = now.Add(time.Duration(CooldownSecondsForFailCount(e.failCount)) * time.Second)
}

// RecordSuccess forgets the user's failures.
func (t *LoginThrottle) RecordSuccess(tgUserID int64) {
	t.mu.Lock()
	delete(t.entries, tgUserID)
	t.mu.Unlock()
}

// CooldownSecondsForFailCount returns min(30, 2^failCount).
func CooldownSecondsForFailCount(failCount int) int {
	s := int(math.Pow(2, float64(failCount)))
	if s > ThrottleCooldownCapSeconds {
		return ThrottleCooldownCapSeconds
	}
	return s
}
