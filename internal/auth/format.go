package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// HashFormat is one parsed stored hash. The concrete types are LegacyHash,
// BcryptHash and CryptHash; ParseHash is the only constructor.
type HashFormat interface {
	// Scheme names the family for logs: "legacy-sha256", "bcrypt", "sha512-crypt", ...
	Scheme() string
	isHashFormat()
}

// LegacyHash is an unsalted SHA-256 digest stored as 64 hex characters.
type LegacyHash struct {
	Digest [sha256.Size]byte
}

func (LegacyHash) Scheme() string { return "legacy-sha256" }
func (LegacyHash) isHashFormat()  {}

// BcryptHash is a modular-crypt bcrypt string: $2b$<cost>$<22 salt><31 digest>.
type BcryptHash struct {
	Algorithm string // "2a", "2b" or "2y"
	Cost      int
	Salt      string
	Digest    string
	Encoded   string
}

func (BcryptHash) Scheme() string { return "bcrypt" }
func (BcryptHash) isHashFormat()  {}

// CryptHash is a crypt(3) string: $1$salt$digest, $5$[rounds=N$]salt$digest
// or $6$[rounds=N$]salt$digest.
type CryptHash struct {
	Algorithm string // "1", "5" or "6"
	Rounds    int
	Salt      string
	Digest    string
	Encoded   string
}

func (h CryptHash) Scheme() string {
	switch h.Algorithm {
	case "1":
		return "md5-crypt"
	case "5":
		return "sha256-crypt"
	default:
		return "sha512-crypt"
	}
}
func (CryptHash) isHashFormat() {}

const (
	legacyLen       = 2 * sha256.Size
	bcryptSaltLen   = 22
	bcryptDigestLen = 31

	shaCryptDefaultRounds = 5000
	md5CryptRounds        = 1000
)

// IsLegacy applies the historical detection rule: exactly 64 characters and
// no "$" prefix. It does not check that the characters are hex.
func IsLegacy(stored string) bool {
	return len(stored) == legacyLen && !strings.HasPrefix(stored, "$")
}

// ParseHash turns a stored hash string into its tagged variant.
func ParseHash(stored string) (HashFormat, error) {
	if IsLegacy(stored) {
		b, err := hex.DecodeString(stored)
		if err != nil {
			return nil, fmt.Errorf("%w: legacy digest is not hex", ErrUnsupportedHash)
		}
		var h LegacyHash
		copy(h.Digest[:], b)
		return h, nil
	}
	switch {
	case strings.HasPrefix(stored, "$2a$"), strings.HasPrefix(stored, "$2b$"), strings.HasPrefix(stored, "$2y$"):
		return parseBcrypt(stored)
	case strings.HasPrefix(stored, "$1$"), strings.HasPrefix(stored, "$5$"), strings.HasPrefix(stored, "$6$"):
		return parseCrypt(stored)
	}
	return nil, fmt.Errorf("%w: unrecognised prefix %q", ErrUnsupportedHash, prefixOf(stored))
}

func parseBcrypt(s string) (HashFormat, error) {
	parts := strings.Split(s, "$")
	if len(parts) != 4 {
		return nil, fmt.Errorf("%w: malformed bcrypt hash", ErrUnsupportedHash)
	}
	cost, err := strconv.Atoi(parts[2])
	if err != nil || len(parts[2]) != 2 || cost < 4 || cost > 31 {
		return nil, fmt.Errorf("%w: bad bcrypt cost %q", ErrUnsupportedHash, parts[2])
	}
	rest := parts[3]
	if len(rest) != bcryptSaltLen+bcryptDigestLen {
		return nil, fmt.Errorf("%w: bcrypt payload has length %d", ErrUnsupportedHash, len(rest))
	}
	return BcryptHash{
		Algorithm: parts[1],
		Cost:      cost,
		Salt:      rest[:bcryptSaltLen],
		Digest:    rest[bcryptSaltLen:],
		Encoded:   s,
	}, nil
}

func parseCrypt(s string) (HashFormat, error) {
	parts := strings.Split(s[1:], "$")
	h := CryptHash{Algorithm: parts[0], Encoded: s, Rounds: shaCryptDefaultRounds}
	if h.Algorithm == "1" {
		h.Rounds = md5CryptRounds
	}
	fields := parts[1:]
	if h.Algorithm != "1" && len(fields) == 3 && strings.HasPrefix(fields[0], "rounds=") {
		n, err := strconv.Atoi(strings.TrimPrefix(fields[0], "rounds="))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: bad rounds in %s hash", ErrUnsupportedHash, h.Scheme())
		}
		h.Rounds = n
		fields = fields[1:]
	}
	if len(fields) != 2 || fields[0] == "" || fields[1] == "" {
		return nil, fmt.Errorf("%w: malformed %s hash", ErrUnsupportedHash, h.Scheme())
	}
	h.Salt, h.Digest = fields[0], fields[1]
	return h, nil
}

// prefixOf keeps error messages free of hash material.
func prefixOf(s string) string {
	if len(s) > 4 {
		return s[:4] + "..."
	}
	return s
}
