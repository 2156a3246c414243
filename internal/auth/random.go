package auth

import (
	"crypto/rand"
	"encoding/base64"
)

const (
	// TokenBytes gives session tokens 256 bits of entropy.
	TokenBytes = 32
	// PasswordBytes encodes to a 20 character password (120 bits).
	PasswordBytes = 15
)

// RandomURLSafe returns n random bytes from crypto/rand as unpadded base64url.
func RandomURLSafe(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func NewToken() (string, error) {
	return RandomURLSafe(TokenBytes)
}

func NewPassword() (string, error) {
	return RandomURLSafe(PasswordBytes)
}
