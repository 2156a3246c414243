// Package session issues, validates and revokes opaque bearer tokens.
//
// Sessions live only in memory; a restart logs everyone out. Expiry is
// checked lazily in Validate, and Sweep reclaims what nobody asked about.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/hnrobert/gatekeep/internal/auth"
	"github.com/hnrobert/gatekeep/internal/lockout"
	"github.com/hnrobert/gatekeep/internal/logger"
)

const (
	DefaultTTL               = 24 * time.Hour
	DefaultMinPasswordLength = 6
)

// CredentialStore is the subset of credstore.Store the manager needs.
type CredentialStore interface {
	Lookup(username string) (string, bool)
	SetHash(username, hash string) error
}

// PasswordHasher is implemented by *auth.Hasher.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, stored string) bool
	NeedsUpgrade(stored string) bool
	Dummy(plaintext string)
}

// Session is one logged-in client. ID is safe to log; Token is not.
type Session struct {
	ID        ulid.ULID
	Token     string
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Grant is what a successful Login hands back to the caller.
type Grant struct {
	Token     string
	Username  string
	ExpiresAt time.Time
}

type Options struct {
	TTL               time.Duration
	MinPasswordLength int
}

// Manager is safe for concurrent use. Password hashing runs outside its lock.
type Manager struct {
	store    CredentialStore
	hasher   PasswordHasher
	lockouts *lockout.Tracker
	opts     Options
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(store CredentialStore, hasher PasswordHasher, lockouts *lockout.Tracker, opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MinPasswordLength <= 0 {
		opts.MinPasswordLength = DefaultMinPasswordLength
	}
	return &Manager{
		store:    store,
		hasher:   hasher,
		lockouts: lockouts,
		opts:     opts,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// WithClock swaps the time source for sessions. The lockout tracker keeps
// its own clock.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
	return m
}

// Login authenticates username and opens a session. Unknown users and wrong
// passwords both return auth.ErrInvalidCredentials and both count toward
// the lockout. Attempts for one username beyond what the lockout still
// allows wait for earlier ones to settle.
func (m *Manager) Login(username, password string) (Grant, error) {
	if err := m.lockouts.Begin(username); err != nil {
		logger.Warn("Login refused for user %s: %v", username, err)
		return Grant{}, err
	}
	defer m.lockouts.Done(username)

	stored, ok := m.store.Lookup(username)
	if !ok {
		m.hasher.Dummy(password)
		m.fail(username)
		return Grant{}, auth.ErrInvalidCredentials
	}
	if !m.hasher.Verify(password, stored) {
		m.fail(username)
		return Grant{}, auth.ErrInvalidCredentials
	}

	if m.hasher.NeedsUpgrade(stored) {
		m.upgrade(username, password)
	}
	m.lockouts.Clear(username)

	token, err := auth.NewToken()
	if err != nil {
		return Grant{}, fmt.Errorf("mint session token: %w", err)
	}

	m.mu.Lock()
	now := m.now()
	s := &Session{
		ID:        ulid.Make(),
		Token:     token,
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(m.opts.TTL),
	}
	m.sessions[token] = s
	m.mu.Unlock()

	logger.Info("User logged in: %s (session %s)", username, s.ID)
	return Grant{Token: token, Username: username, ExpiresAt: s.ExpiresAt}, nil
}

func (m *Manager) fail(username string) {
	if m.lockouts.RecordFailure(username) {
		logger.Warn("Account locked due to multiple failed attempts: %s", username)
		return
	}
	logger.Warn("Login failed for user %s", username)
}

// upgrade rewrites a verified weak hash. Failure is logged and the login
// proceeds on the old hash.
func (m *Manager) upgrade(username, password string) {
	h, err := m.hasher.Hash(password)
	if err != nil {
		logger.Warn("Could not rehash password for %s: %v", username, err)
		return
	}
	if err := m.store.SetHash(username, h); err != nil {
		logger.Error("Could not persist upgraded hash for %s: %v", username, err)
		return
	}
	logger.Info("Migrated user %s to bcrypt", username)
}

// Validate returns the session for token. An expired session is removed and
// reported as absent.
func (m *Manager) Validate(token string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[token]
	if !ok {
		return Session{}, false
	}
	if m.now().After(s.ExpiresAt) {
		delete(m.sessions, token)
		logger.Info("Session %s expired for user: %s", s.ID, s.Username)
		return Session{}, false
	}
	return *s, true
}

// Logout removes the session if present. It reports whether one was removed;
// either way the caller should treat logout as successful.
func (m *Manager) Logout(token string) bool {
	m.mu.Lock()
	s, ok := m.sessions[token]
	if ok {
		delete(m.sessions, token)
	}
	m.mu.Unlock()

	if ok {
		logger.Info("User logged out: %s (session %s)", s.Username, s.ID)
	}
	return ok
}

// ChangePassword replaces username's hash after checking oldPassword.
// Sessions already issued stay valid.
func (m *Manager) ChangePassword(username, oldPassword, newPassword string) error {
	stored, ok := m.store.Lookup(username)
	if !ok {
		m.hasher.Dummy(oldPassword)
		logger.Warn("Password change failed for user %s: unknown user", username)
		return auth.ErrInvalidCredentials
	}
	if !m.hasher.Verify(oldPassword, stored) {
		logger.Warn("Password change failed for user %s: current password is incorrect", username)
		return auth.ErrInvalidCredentials
	}
	if utf8.RuneCountInString(newPassword) < m.opts.MinPasswordLength {
		return &auth.WeakPasswordError{Reason: fmt.Sprintf("must be at least %d characters", m.opts.MinPasswordLength)}
	}

	h, err := m.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := m.store.SetHash(username, h); err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	logger.Info("Password changed for user: %s", username)
	return nil
}

// Sweep drops expired sessions and expired lockouts. It returns the number of
// sessions removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	now := m.now()
	n := 0
	for token, s := range m.sessions {
		if now.After(s.ExpiresAt) {
			delete(m.sessions, token)
			n++
		}
	}
	m.mu.Unlock()

	m.lockouts.Prune()
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				logger.Info("Swept %d expired sessions", n)
			}
		}
	}
}

// Count is the number of sessions currently held, expired ones included
// until they are validated or swept.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) TTL() time.Duration { return m.opts.TTL }
