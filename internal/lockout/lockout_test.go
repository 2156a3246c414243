package lockout

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hnrobert/gatekeep/internal/auth"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestNew_Defaults(t *testing.T) {
	tr := New(Config{})
	assert.Equal(t, DefaultConfig(), tr.Config())
	assert.Equal(t, 5, tr.Config().MaxAttempts)
	assert.Equal(t, 15*time.Minute, tr.Config().Duration)
}

func TestLocksAtThreshold(t *testing.T) {
	clock := newFakeClock()
	tr := New(DefaultConfig()).WithClock(clock.Now)

	for i := 1; i < 5; i++ {
		assert.False(t, tr.RecordFailure("alice"), "attempt %d", i)
		assert.NoError(t, tr.Check("alice"))
	}
	assert.True(t, tr.RecordFailure("alice"))

	err := tr.Check("alice")
	require.Error(t, err)
	assert.True(t, errors.Is(err, auth.ErrAccountLocked))

	var locked *auth.AccountLockedError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, 15*time.Minute, locked.Remaining)
	assert.Equal(t, 15, locked.RemainingMinutes())

	assert.NoError(t, tr.Check("bob"), "other users unaffected")
}

func TestRemainingCountsDown(t *testing.T) {
	clock := newFakeClock()
	tr := New(Config{MaxAttempts: 2, Duration: 10 * time.Minute}).WithClock(clock.Now)
	tr.RecordFailure("u")
	tr.RecordFailure("u")

	clock.Advance(9*time.Minute + 30*time.Second)
	var locked *auth.AccountLockedError
	require.ErrorAs(t, tr.Check("u"), &locked)
	assert.Equal(t, 30*time.Second, locked.Remaining)
	assert.Equal(t, 1, locked.RemainingMinutes())
}

func TestExpiryClearsAndRestartsCount(t *testing.T) {
	clock := newFakeClock()
	tr := New(DefaultConfig()).WithClock(clock.Now)
	for i := 0; i < 5; i++ {
		tr.RecordFailure("alice")
	}
	require.Error(t, tr.Check("alice"))

	clock.Advance(15 * time.Minute)
	assert.NoError(t, tr.Check("alice"))
	assert.Equal(t, 0, tr.Failures("alice"))

	assert.False(t, tr.RecordFailure("alice"))
	assert.Equal(t, 1, tr.Failures("alice"), "count restarts at 1 after expiry")
}

func TestFailureAfterExpiryWithoutCheck(t *testing.T) {
	clock := newFakeClock()
	tr := New(Config{MaxAttempts: 3, Duration: time.Minute}).WithClock(clock.Now)
	for i := 0; i < 3; i++ {
		tr.RecordFailure("x")
	}
	clock.Advance(2 * time.Minute)

	assert.False(t, tr.RecordFailure("x"))
	assert.Equal(t, 1, tr.Failures("x"))
}

func TestFailuresWhileLockedDoNotExtend(t *testing.T) {
	clock := newFakeClock()
	tr := New(Config{MaxAttempts: 2, Duration: 10 * time.Minute}).WithClock(clock.Now)
	tr.RecordFailure("u")
	tr.RecordFailure("u")

	clock.Advance(5 * time.Minute)
	assert.True(t, tr.RecordFailure("u"))

	clock.Advance(5 * time.Minute)
	assert.NoError(t, tr.Check("u"), "lock measured from the first time the threshold was reached")
}

func TestClear(t *testing.T) {
	tr := New(DefaultConfig())
	for i := 0; i < 5; i++ {
		tr.RecordFailure("alice")
	}
	tr.Clear("alice")
	assert.NoError(t, tr.Check("alice"))
	assert.Equal(t, 0, tr.Len())
}

func TestPrune(t *testing.T) {
	clock := newFakeClock()
	tr := New(Config{MaxAttempts: 2, Duration: time.Minute}).WithClock(clock.Now)
	tr.RecordFailure("locked")
	tr.RecordFailure("locked")
	tr.RecordFailure("stale")

	clock.Advance(30 * time.Second)
	tr.RecordFailure("counting")

	assert.Equal(t, 0, tr.Prune())
	clock.Advance(30 * time.Second)
	assert.Equal(t, 2, tr.Prune())
	assert.Equal(t, 1, tr.Len())
	assert.Equal(t, 1, tr.Failures("counting"))
}

func TestCountingWindowElapses(t *testing.T) {
	clock := newFakeClock()
	tr := New(Config{MaxAttempts: 3, Duration: 10 * time.Minute}).WithClock(clock.Now)
	tr.RecordFailure("u")
	tr.RecordFailure("u")

	clock.Advance(10 * time.Minute)
	assert.Equal(t, 0, tr.Failures("u"))
	assert.False(t, tr.RecordFailure("u"), "an old window does not carry over")
	assert.Equal(t, 1, tr.Failures("u"))
}

func TestBeginRefusesWhileLocked(t *testing.T) {
	tr := New(Config{MaxAttempts: 2, Duration: time.Minute})
	tr.RecordFailure("u")
	tr.RecordFailure("u")

	err := tr.Begin("u")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrAccountLocked)
}

func TestBeginHoldsAttemptsBeyondThreshold(t *testing.T) {
	tr := New(Config{MaxAttempts: 2, Duration: time.Minute})
	require.NoError(t, tr.Begin("u"))
	require.NoError(t, tr.Begin("u"))

	third := make(chan error, 1)
	go func() { third <- tr.Begin("u") }()

	select {
	case <-third:
		t.Fatal("third attempt started while two were in flight")
	case <-time.After(50 * time.Millisecond):
	}

	tr.RecordFailure("u")
	tr.Done("u")
	select {
	case <-third:
		t.Fatal("third attempt started before the second settled")
	case <-time.After(50 * time.Millisecond):
	}

	tr.RecordFailure("u")
	tr.Done("u")
	select {
	case err := <-third:
		assert.ErrorIs(t, err, auth.ErrAccountLocked)
	case <-time.After(time.Second):
		t.Fatal("waiting attempt never settled")
	}
}

func TestBeginReleasedBySuccess(t *testing.T) {
	tr := New(Config{MaxAttempts: 1, Duration: time.Minute})
	require.NoError(t, tr.Begin("u"))

	next := make(chan error, 1)
	go func() { next <- tr.Begin("u") }()

	tr.Clear("u")
	tr.Done("u")
	select {
	case err := <-next:
		require.NoError(t, err)
		tr.Done("u")
	case <-time.After(time.Second):
		t.Fatal("waiting attempt never settled")
	}
}

func TestConcurrentFailures(t *testing.T) {
	tr := New(Config{MaxAttempts: 100, Duration: time.Minute})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.RecordFailure("race")
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, tr.Failures("race"))
}
