package domain

import (
	"net/mail"
	"strings"
)

// NormalizeEmail trims the address and lowercases its domain part. The local
// part is preserved as given.
func NormalizeEmail(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidEmail
	}
	parsed, err := mail.ParseAddress(trimmed)
	if err != nil || parsed.Address != trimmed {
		return "", ErrInvalidEmail
	}

	at := strings.LastIndex(trimmed, "@")
	if at <= 0 || at == len(trimmed)-1 {
		return "", ErrInvalidEmail
	}
	return trimmed[:at] + "@" + strings.ToLower(trimmed[at+1:]), nil
}
