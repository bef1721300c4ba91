package users

import "strings"

// NormalizeUsername returns the canonical stored form of a username.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeEmail returns the canonical stored form of an email.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeLogin canonicalizes a login that may be a username or an email.
func NormalizeLogin(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsEmailLogin reports whether a normalized login can only be an email.
// Usernames never contain "@".
func IsEmailLogin(login string) bool {
	return strings.Contains(login, "@")
}
