package services

import (
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// AdminSet decides who may enter admin flows. It starts from the configured ids
// and grows when someone logs in with the admin password.
type AdminSet struct {
	mu        sync.RWMutex
	static    map[int64]struct{}
	granted   map[int64]struct{}
	loginHash []byte
	throttle  *LoginThrottle
	now       func() time.Time
}

// NewAdminSet takes the configured admin ids and an optional bcrypt hash for /login.
func NewAdminSet(ids []int64, loginHash string) *AdminSet {
	a := &AdminSet{
		static:   make(map[int64]struct{}, len(ids)),
		granted:  make(map[int64]struct{}),
		throttle: NewLoginThrottle(),
		now:      time.Now,
	}
	for _, id := range ids {
		a.static[id] = struct{}{}
	}
	if loginHash != "" {
		a.loginHash = []byte(loginHash)
	}
	return a
}

// SetClock is used by tests to drive the login cooldown.
func (a *AdminSet) SetClock(now func() time.Time) { a.now = now }

func (a *AdminSet) IsAdmin(id int64) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if _, ok := a.static[id]; ok {
		return true
	}
	_, ok := a.granted[id]
	return ok
}

// IDs returns every admin, sorted, for notification fan-out.
func (a *AdminSet) IDs() []int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]int64, 0, len(a.static)+len(a.granted))
	for id := range a.static {
		out = append(out, id)
	}
	for id := range a.granted {
		if _, dup := a.static[id]; !dup {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Login grants admin rights for the life of the process when password matches
// the configured hash. While a cooldown is running it returns ErrLoginThrottled
// and the remaining wait in seconds, without checking the password.
func (a *AdminSet) Login(id int64, password string) (int, error) {
	if len(a.loginHash) == 0 {
		return 0, ErrLoginDisabled
	}
	now := a.now()
	if wait := a.throttle.WaitSeconds(id, now); wait > 0 {
		return wait, ErrLoginThrottled
	}
	if err := bcrypt.CompareHashAndPassword(a.loginHash, []byte(password)); err != nil {
		a.throttle.RecordFailed(id, now)
		return 0, ErrBadPassword
	}
	a.throttle.RecordSuccess(id)
	a.mu.Lock()
	a.granted[id] = struct{}{}
	a.mu.Unlock()
	return 0, nil
}
