package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"sync"

	"github.com/GehirnInc/crypt"
	"github.com/GehirnInc/crypt/md5_crypt"
	"github.com/GehirnInc/crypt/sha256_crypt"
	"github.com/GehirnInc/crypt/sha512_crypt"
	"golang.org/x/crypto/bcrypt"

	"github.com/hnrobert/gatekeep/internal/logger"
)

// DefaultCost is the bcrypt work factor for every hash gatekeep writes.
const DefaultCost = 12

// bcrypt ignores input past 72 bytes; longer passwords are refused instead.
const maxPasswordBytes = 72

var crypters = map[string]func() crypt.Crypter{
	"1": md5_crypt.New,
	"5": sha256_crypt.New,
	"6": sha512_crypt.New,
}

// Hasher hashes new passwords with bcrypt and verifies every stored format.
type Hasher struct {
	cost int

	dummyOnce sync.Once
	dummy     []byte
}

func NewHasher() *Hasher {
	return &Hasher{cost: DefaultCost}
}

// NewHasherWithCost exists for tests and tooling; production code uses
// NewHasher.
func NewHasherWithCost(cost int) *Hasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{cost: cost}
}

func (h *Hasher) Cost() int { return h.cost }

// Hash returns a fresh bcrypt hash with a random salt.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", &WeakPasswordError{Reason: "must be at most 72 bytes"}
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether plaintext matches stored. Malformed hashes never
// match; the reason is logged, the hash itself is not.
func (h *Hasher) Verify(plaintext, stored string) bool {
	f, err := ParseHash(stored)
	if err != nil {
		logger.Warn("Password verification skipped: %v", err)
		return false
	}
	switch f := f.(type) {
	case LegacyHash:
		sum := sha256.Sum256([]byte(plaintext))
		return subtle.ConstantTimeCompare(sum[:], f.Digest[:]) == 1
	case BcryptHash:
		err := bcrypt.CompareHashAndPassword([]byte(f.Encoded), []byte(plaintext))
		if err != nil && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			logger.Warn("Password verification error (%s): %v", f.Scheme(), err)
		}
		return err == nil
	case CryptHash:
		newCrypter, ok := crypters[f.Algorithm]
		if !ok {
			return false
		}
		err := newCrypter().Verify(f.Encoded, []byte(plaintext))
		if err != nil && !errors.Is(err, crypt.ErrKeyMismatch) {
			logger.Warn("Password verification error (%s): %v", f.Scheme(), err)
		}
		return err == nil
	}
	return false
}

// NeedsUpgrade reports whether a verified hash should be rewritten with Hash.
func (h *Hasher) NeedsUpgrade(stored string) bool {
	f, err := ParseHash(stored)
	if err != nil {
		return false
	}
	switch f := f.(type) {
	case BcryptHash:
		return f.Cost < h.cost
	default:
		return true
	}
}

// Dummy spends one bcrypt comparison at the hasher's cost, so a login for an
// unknown user takes as long as one with a wrong password.
func (h *Hasher) Dummy(plaintext string) {
	h.dummyOnce.Do(func() {
		h.dummy, _ = bcrypt.GenerateFromPassword([]byte("gatekeep-timing-equaliser"), h.cost)
	})
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(plaintext))
}
