//go:build !windows

// Package ipc stubs the transport off Windows so client tooling still
// compiles there.
package ipc

import (
	"errors"
	"net"
	"time"
)

var errTransportUnsupported = errors.New("named pipe transport requires windows")

// Listen is unavailable off Windows.
func Listen(pipeName string) (net.Listener, error) {
	return nil, errTransportUnsupported
}

func dialTransport(pipeName string, timeout time.Duration) (net.Conn, error) {
	return nil, errTransportUnsupported
}
