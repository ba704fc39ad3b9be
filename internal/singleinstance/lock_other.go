//go:build !windows

package singleinstance

// Lock is a no-op off Windows.
type Lock struct{}

// TryLock always succeeds off Windows.
func TryLock(_ string) (*Lock, error) { return &Lock{}, nil }

// Release is a no-op off Windows.
func (l *Lock) Release() error { return nil }
