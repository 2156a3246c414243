// Package lockout counts failed logins per username and locks an account
// for a fixed window once the threshold is reached.
//
// Failures count from the first one in a window. A locked entry clears on a
// successful login or when its window has elapsed; an unlocked entry whose
// window has elapsed is forgotten. Either way the next failure starts a new
// count at 1.
package lockout

import (
	"sync"
	"time"

	"github.com/hnrobert/gatekeep/internal/auth"
)

const (
	DefaultMaxAttempts = 5
	DefaultDuration    = 15 * time.Minute
)

type Config struct {
	MaxAttempts int
	Duration    time.Duration
}

func DefaultConfig() Config {
	return Config{MaxAttempts: DefaultMaxAttempts, Duration: DefaultDuration}
}

type entry struct {
	failures    int
	windowStart time.Time
	lockedAt    time.Time // zero until failures reaches MaxAttempts
}

func (e *entry) locked() bool { return !e.lockedAt.IsZero() }

// Tracker is safe for concurrent use.
type Tracker struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	settled  *sync.Cond
	entries  map[string]*entry
	inflight map[string]int
}

// New returns a Tracker. Zero or negative config fields fall back to the
// defaults.
func New(cfg Config) *Tracker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Duration <= 0 {
		cfg.Duration = DefaultDuration
	}
	t := &Tracker{
		cfg:      cfg,
		now:      time.Now,
		entries:  make(map[string]*entry),
		inflight: make(map[string]int),
	}
	t.settled = sync.NewCond(&t.mu)
	return t
}

// WithClock swaps the time source. It returns t for chaining in tests.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.mu.Lock()
	t.now = now
	t.mu.Unlock()
	return t
}

func (t *Tracker) Config() Config { return t.cfg }

func (t *Tracker) expired(e *entry, now time.Time) bool {
	start := e.windowStart
	if e.locked() {
		start = e.lockedAt
	}
	return !now.Before(start.Add(t.cfg.Duration))
}

// current returns the live entry for username, dropping it if its window
// has elapsed. Callers hold t.mu.
func (t *Tracker) current(username string, now time.Time) *entry {
	e, ok := t.entries[username]
	if !ok {
		return nil
	}
	if t.expired(e, now) {
		delete(t.entries, username)
		return nil
	}
	return e
}

func (t *Tracker) lockedError(e *entry, now time.Time) error {
	return &auth.AccountLockedError{Remaining: e.lockedAt.Add(t.cfg.Duration).Sub(now)}
}

// Check returns *auth.AccountLockedError while username is locked. An
// expired lock is cleared before returning nil.
func (t *Tracker) Check(username string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if e := t.current(username, now); e != nil && e.locked() {
		return t.lockedError(e, now)
	}
	return nil
}

// Begin reserves one attempt for username and must be paired with Done.
// It fails like Check while the account is locked. When the attempts
// already in flight could reach the threshold on their own, Begin waits for
// one of them to settle so concurrent guesses cannot outrun the lock.
func (t *Tracker) Begin(username string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for {
		now := t.now()
		failures := 0
		if e := t.current(username, now); e != nil {
			if e.locked() {
				return t.lockedError(e, now)
			}
			failures = e.failures
		}
		if failures+t.inflight[username] < t.cfg.MaxAttempts {
			break
		}
		t.settled.Wait()
	}
	t.inflight[username]++
	return nil
}

// Done releases a reservation taken by Begin. Call it after RecordFailure or
// Clear so that waiting attempts see the outcome.
func (t *Tracker) Done(username string) {
	t.mu.Lock()
	if n := t.inflight[username]; n <= 1 {
		delete(t.inflight, username)
	} else {
		t.inflight[username] = n - 1
	}
	t.mu.Unlock()
	t.settled.Broadcast()
}

// RecordFailure counts one failed attempt and reports whether the account
// is now locked.
func (t *Tracker) RecordFailure(username string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	e := t.current(username, now)
	if e == nil {
		e = &entry{windowStart: now}
		t.entries[username] = e
	}
	e.failures++
	if !e.locked() && e.failures >= t.cfg.MaxAttempts {
		e.lockedAt = now
	}
	return e.locked()
}

// Clear forgets every failure recorded for username.
func (t *Tracker) Clear(username string) {
	t.mu.Lock()
	delete(t.entries, username)
	t.mu.Unlock()
}

// Failures returns the current count for username.
func (t *Tracker) Failures(username string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e := t.current(username, t.now()); e != nil {
		return e.failures
	}
	return 0
}

// Prune drops every entry whose window has elapsed, locked or not, and
// returns how many it removed.
func (t *Tracker) Prune() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	n := 0
	for name, e := range t.entries {
		if t.expired(e, now) {
			delete(t.entries, name)
			n++
		}
	}
	return n
}

// Len is the number of usernames with recorded failures.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
