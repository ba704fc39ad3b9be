//go:build windows

// Package ipc provides the Windows named pipe transport.
//
// The listener creates one pipe instance per Accept and blocks until a
// client connects to it, which maps CreateNamedPipeW's instance model
// onto net.Listener. Security is left at the pipe default, which grants
// access to the creating user only.
package ipc

import (
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/sys/windows"
)

// pipeBufferSize sizes the pipe's in and out buffers.
const pipeBufferSize = 64 * 1024

// Listen creates a named pipe listener at the given pipe path, e.g.
// \\.\pipe\rxoverlay-alice.
func Listen(pipeName string) (net.Listener, error) {
	return &pipeListener{name: pipeName}, nil
}

// pipeListener implements net.Listener over CreateNamedPipeW.
type pipeListener struct {
	name string

	mu      sync.Mutex
	pending windows.Handle
	closed  bool
}

// Accept waits for and returns the next connection
func (l *pipeListener) Accept() (net.Conn, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, net.ErrClosed
	}
	l.mu.Unlock()

	name, err := windows.UTF16PtrFromString(l.name)
	if err != nil {
		return nil, fmt.Errorf("pipe name: %w", err)
	}

	handle, err := windows.CreateNamedPipe(
		name,
		windows.PIPE_ACCESS_DUPLEX,
		windows.PIPE_TYPE_MESSAGE|windows.PIPE_READMODE_MESSAGE|windows.PIPE_WAIT,
		windows.PIPE_UNLIMITED_INSTANCES,
		pipeBufferSize,
		pipeBufferSize,
		0,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create pipe: %w", err)
	}

	// Publish the instance so Close can unblock ConnectNamedPipe.
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		windows.CloseHandle(handle)
		return nil, net.ErrClosed
	}
	l.pending = handle
	l.mu.Unlock()

	err = windows.ConnectNamedPipe(handle, nil)

	l.mu.Lock()
	l.pending = 0
	closed := l.closed
	l.mu.Unlock()

	if closed {
		windows.CloseHandle(handle)
		return nil, net.ErrClosed
	}
	if err != nil && err != windows.ERROR_PIPE_CONNECTED {
		windows.CloseHandle(handle)
		return nil, fmt.Errorf("connect pipe: %w", err)
	}

	return &namedPipeConn{handle: handle, name: l.name}, nil
}

// Close closes the listener, unblocking a pending Accept.
func (l *pipeListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	if l.pending != 0 {
		windows.CloseHandle(l.pending)
		l.pending = 0
	}
	return nil
}

// Addr returns the listener's pipe path
func (l *pipeListener) Addr() net.Addr {
	return pipeAddr(l.name)
}

// dialTransport connects to the daemon's pipe, retrying while every
// instance is busy. A missing pipe means no daemon is listening.
func dialTransport(pipeName string, timeout time.Duration) (net.Conn, error) {
	name, err := windows.UTF16PtrFromString(pipeName)
	if err != nil {
		return nil, fmt.Errorf("pipe name: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		handle, err := windows.CreateFile(
			name,
			windows.GENERIC_READ|windows.GENERIC_WRITE,
			0,
			nil,
			windows.OPEN_EXISTING,
			0,
			0,
		)
		if err == nil {
			return &namedPipeConn{handle: handle, name: pipeName}, nil
		}

		if err == windows.ERROR_FILE_NOT_FOUND {
			return nil, ErrNotRunning
		}
		if err != windows.ERROR_PIPE_BUSY || time.Now().After(deadline) {
			return nil, fmt.Errorf("open pipe: %w", err)
		}

		time.Sleep(100 * time.Millisecond)
	}
}

// namedPipeConn implements net.Conn over a named pipe handle.
type namedPipeConn struct {
	handle windows.Handle
	name   string
}

// Read reads data from the connection
func (c *namedPipeConn) Read(b []byte) (int, error) {
	var n uint32
	err := windows.ReadFile(c.handle, b, &n, nil)
	if err == windows.ERROR_BROKEN_PIPE {
		return int(n), io.EOF
	}
	return int(n), err
}

// Write writes data to the connection
func (c *namedPipeConn) Write(b []byte) (int, error) {
	var n uint32
	err := windows.WriteFile(c.handle, b, &n, nil)
	return int(n), err
}

// Close closes the connection
func (c *namedPipeConn) Close() error {
	windows.DisconnectNamedPipe(c.handle)
	return windows.CloseHandle(c.handle)
}

// LocalAddr returns the pipe path
func (c *namedPipeConn) LocalAddr() net.Addr {
	return pipeAddr(c.name)
}

// RemoteAddr returns the pipe path
func (c *namedPipeConn) RemoteAddr() net.Addr {
	return pipeAddr(c.name)
}

// Deadlines would need overlapped I/O; the framing layer bounds
// exchanges with request timeouts and keepalives instead.
func (c *namedPipeConn) SetDeadline(t time.Time) error      { return nil }
func (c *namedPipeConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *namedPipeConn) SetWriteDeadline(t time.Time) error { return nil }

// pipeAddr implements net.Addr for named pipes
type pipeAddr string

// Network returns the address's network name
func (a pipeAddr) Network() string { return "pipe" }

// String returns the pipe path
func (a pipeAddr) String() string { return string(a) }
