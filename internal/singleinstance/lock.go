// Package singleinstance enforces one rxoverlay daemon per user
// session through a named kernel mutex. The kernel drops the mutex
// when the owning process dies, so a crashed daemon never wedges the
// next launch.
package singleinstance

import (
	"errors"
	"os"
	"strings"
)

// ErrAlreadyRunning is returned by TryLock when another instance
// holds the mutex.
var ErrAlreadyRunning = errors.New("another instance is already running")

// DefaultMutexName returns the per-user mutex name, scoped the same
// way as the control pipe name.
func DefaultMutexName() string {
	user := os.Getenv("USERNAME")
	if user == "" {
		user = os.Getenv("USER")
	}
	if user == "" {
		user = "default"
	}
	return `Global\rxoverlay-` + sanitize(user)
}

// sanitize keeps the name a single object-namespace component; a
// backslash in a domain-qualified username would otherwise split it.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '.', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
