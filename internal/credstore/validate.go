package credstore

import (
	"errors"
	"strings"
)

var ErrInvalidUsername = errors.New("invalid username")

// ValidUsername reports whether name can be written to users.txt and read
// back unchanged. A leading '#' would turn the line into a comment.
func ValidUsername(name string) bool {
	if name == "" || strings.TrimSpace(name) != name || isComment(name) {
		return false
	}
	return !strings.ContainsAny(name, ":\r\n")
}

func validHash(hash string) bool {
	if hash == "" || strings.TrimSpace(hash) != hash {
		return false
	}
	return !strings.ContainsAny(hash, "\r\n")
}
