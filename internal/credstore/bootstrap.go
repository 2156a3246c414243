package credstore

import (
	"fmt"

	"github.com/hnrobert/gatekeep/internal/auth"
	"github.com/hnrobert/gatekeep/internal/datafs"
	"github.com/hnrobert/gatekeep/internal/logger"
)

// PasswordHasher produces the stored form of a new password.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
}

// Deliverer hands freshly generated credentials to the operator.
type Deliverer interface {
	Deliver(username, password string) error
}

// EnsureBootstrapUser creates one random user when the store is empty and
// passes its plaintext password to d. It holds an exclusive lock on
// users.txt.lock and re-reads the file first, so concurrent processes create
// at most one user. If delivery fails the user is removed again.
func (s *Store) EnsureBootstrapUser(h PasswordHasher, d Deliverer) (bool, error) {
	s.bootMu.Lock()
	defer s.bootMu.Unlock()

	lock, err := datafs.Lock(s.path)
	if err != nil {
		return false, fmt.Errorf("lock %s: %w", s.path, err)
	}
	defer func() { _ = lock.Unlock() }()

	if err := s.Load(); err != nil {
		return false, err
	}
	if s.Len() > 0 {
		return false, nil
	}

	username, err := GenerateUsername()
	if err != nil {
		return false, fmt.Errorf("generate username: %w", err)
	}
	password, err := auth.NewPassword()
	if err != nil {
		return false, fmt.Errorf("generate password: %w", err)
	}
	hash, err := h.Hash(password)
	if err != nil {
		return false, fmt.Errorf("hash bootstrap password: %w", err)
	}
	if err := s.updateLocked(setHash(username, hash)); err != nil {
		return false, err
	}

	if err := d.Deliver(username, password); err != nil {
		if rbErr := s.updateLocked(deleteUser(username)); rbErr != nil {
			logger.Error("Rolling back bootstrap user %s failed: %v", username, rbErr)
		}
		return false, fmt.Errorf("deliver bootstrap credentials: %w", err)
	}
	logger.Info("Created bootstrap user %s", username)
	return true, nil
}
