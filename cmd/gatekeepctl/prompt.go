package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/term"
)

var errNotTerminal = errors.New("password prompts need an interactive terminal")

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// promptNewPassword asks for a password twice on in without echo.
func promptNewPassword(in *os.File, w io.Writer, minLen int) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return "", errNotTerminal
	}

	first, err := promptSecret(fd, w, "New password: ")
	if err != nil {
		return "", err
	}
	if utf8.RuneCountInString(first) < minLen {
		return "", fmt.Errorf("password must be at least %d characters", minLen)
	}
	second, err := promptSecret(fd, w, "Repeat password: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("passwords do not match")
	}
	return first, nil
}

func promptSecret(fd int, w io.Writer, prompt string) (string, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return "", err
	}
	b, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
