// Package focus queries the foreground window and best-effort forces
// another window to take its place, working around the OS's
// foreground-lock restrictions.
//
// Every operation is soft: a failed OS call degrades to "no window" or
// "not focused" rather than an error.
package focus

// Handle is an opaque OS window identifier. Zero means no window.
type Handle uintptr
