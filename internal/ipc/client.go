package ipc

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Common errors
var (
	ErrNotConnected   = errors.New("not connected to daemon")
	ErrConnectionLost = errors.New("connection to daemon lost")
	ErrTimeout        = errors.New("request timeout")
	ErrNotRunning     = errors.New("daemon is not running")
)

// readIdle is how long the read loop waits before probing the server
// with a keepalive ping.
const readIdle = 60 * time.Second

// ClientConfig configures the dialing side of the control pipe.
type ClientConfig struct {
	// PipeName is the full named pipe path to dial.
	PipeName string

	ConnectTimeout time.Duration
	RequestTimeout time.Duration

	// Dialer overrides the platform transport. Tests use it to connect
	// over an in-memory pipe.
	Dialer func() (net.Conn, error)
}

// DefaultClientConfig returns a config with the standard timeouts.
func DefaultClientConfig(pipeName string) ClientConfig {
	return ClientConfig{
		PipeName:       pipeName,
		ConnectTimeout: 5 * time.Second,
		RequestTimeout: 10 * time.Second,
	}
}

// Client is the dialing side of the control pipe. It correlates
// responses to requests by ID, so callers may issue requests from
// multiple goroutines over the one connection.
type Client struct {
	cfg ClientConfig

	mu    sync.RWMutex
	conn  net.Conn
	alive atomic.Bool

	inflight waiters
	reqID    atomic.Uint32

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewClient creates a client. Zero timeouts fall back to the defaults.
func NewClient(cfg ClientConfig) *Client {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}

	return &Client{
		cfg:  cfg,
		done: make(chan struct{}),
	}
}

// Connect dials the daemon and starts the response reader.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.alive.Load() {
		return nil
	}

	dial := c.cfg.Dialer
	if dial == nil {
		dial = func() (net.Conn, error) {
			return dialTransport(c.cfg.PipeName, c.cfg.ConnectTimeout)
		}
	}

	conn, err := dial()
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	c.conn = conn
	c.alive.Store(true)

	c.wg.Add(1)
	go c.readLoop()
	return nil
}

// Close tears the connection down and waits briefly for the reader to
// drain.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	c.teardown()

	idle := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(idle)
	}()

	select {
	case <-idle:
	case <-time.After(2 * time.Second):
	}
	return nil
}

// teardown drops the connection and wakes every in-flight request with
// a connection-lost result.
func (c *Client) teardown() {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()
	c.alive.Store(false)

	c.inflight.failAll()
}

// IsConnected reports whether the client currently holds a connection.
func (c *Client) IsConnected() bool {
	return c.alive.Load()
}

func (c *Client) currentConn() net.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

func (c *Client) request(msgType MessageType, payload any) (*Message, error) {
	return c.roundTrip(msgType, payload, c.cfg.RequestTimeout)
}

// roundTrip writes one request frame and blocks until its response
// arrives, the timeout lapses, or the connection dies.
func (c *Client) roundTrip(msgType MessageType, payload any, timeout time.Duration) (*Message, error) {
	if !c.alive.Load() {
		return nil, ErrNotConnected
	}

	var body []byte
	if payload != nil {
		var err error
		if body, err = Encode(payload); err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
	}

	id := c.reqID.Add(1)
	ch := c.inflight.add(id)
	defer c.inflight.drop(id)

	conn := c.currentConn()
	if conn == nil {
		return nil, ErrNotConnected
	}

	conn.SetWriteDeadline(time.Now().Add(timeout))
	if err := NewMessage(msgType, id, body).Write(conn); err != nil {
		c.teardown()
		return nil, fmt.Errorf("write message: %w", err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrConnectionLost
		}
		return resp, nil
	case <-time.After(timeout):
		return nil, ErrTimeout
	case <-c.done:
		return nil, ErrConnectionLost
	}
}

// readLoop owns the receive side of the connection until shutdown.
func (c *Client) readLoop() {
	defer c.wg.Done()

	for {
		conn := c.currentConn()
		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(readIdle))
		msg, err := ReadMessage(conn)
		if err == nil {
			c.dispatch(msg)
			continue
		}

		select {
		case <-c.done:
			return
		default:
		}

		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			c.keepalive(conn)
			continue
		}

		c.teardown()
		return
	}
}

func (c *Client) dispatch(msg *Message) {
	if msg.Header.Type == MsgPing {
		// Server-side liveness probe; answer it and move on.
		if conn := c.currentConn(); conn != nil {
			NewMessage(MsgPong, msg.Header.RequestID, nil).Write(conn)
		}
		return
	}

	// Everything else answers one of our requests. Pongs for keepalive
	// pings have no waiter and fall out here.
	c.inflight.resolve(msg.Header.RequestID, msg)
}

func (c *Client) keepalive(conn net.Conn) {
	ping := NewMessage(MsgPing, c.reqID.Add(1), nil)
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	ping.Write(conn)
}

// waiters tracks in-flight requests awaiting their response frame.
type waiters struct {
	mu sync.Mutex
	m  map[uint32]chan *Message
}

func (w *waiters) add(id uint32) chan *Message {
	ch := make(chan *Message, 1)
	w.mu.Lock()
	if w.m == nil {
		w.m = make(map[uint32]chan *Message)
	}
	w.m[id] = ch
	w.mu.Unlock()
	return ch
}

func (w *waiters) drop(id uint32) {
	w.mu.Lock()
	delete(w.m, id)
	w.mu.Unlock()
}

// resolve hands msg to the waiter for id, if one is still registered.
func (w *waiters) resolve(id uint32, msg *Message) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if ch, ok := w.m[id]; ok {
		select {
		case ch <- msg:
		default:
		}
	}
}

// failAll closes every waiter channel, waking blocked callers.
func (w *waiters) failAll() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for id, ch := range w.m {
		close(ch)
		delete(w.m, id)
	}
}

// decodeResponse checks the response type and decodes the payload.
// An MsgError frame is turned into an error regardless of the expected
// type.
func decodeResponse(resp *Message, want MessageType, v any) error {
	if resp.Header.Type == MsgError {
		var errResp ErrorResponse
		if err := Decode(resp.Payload, &errResp); err != nil {
			return fmt.Errorf("daemon error (undecodable): %w", err)
		}
		return fmt.Errorf("daemon error: %s", errResp.Message)
	}

	if resp.Header.Type != want {
		return fmt.Errorf("unexpected response type: %#04x", uint16(resp.Header.Type))
	}

	if v != nil {
		return Decode(resp.Payload, v)
	}
	return nil
}

// ack issues a request whose response carries only a success flag and
// an optional error string.
func (c *Client) ack(req, want MessageType, op string) error {
	resp, err := c.request(req, nil)
	if err != nil {
		return err
	}

	var result struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := decodeResponse(resp, want, &result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("%s failed: %s", op, result.Error)
	}
	return nil
}

// Ping checks that the daemon is responsive.
func (c *Client) Ping() error {
	resp, err := c.roundTrip(MsgPing, nil, 5*time.Second)
	if err != nil {
		return err
	}
	return decodeResponse(resp, MsgPong, nil)
}

// Status fetches the daemon's status report.
func (c *Client) Status(includeMetrics bool) (*StatusResponse, error) {
	resp, err := c.request(MsgStatusRequest, &StatusRequest{IncludeMetrics: includeMetrics})
	if err != nil {
		return nil, err
	}

	var status StatusResponse
	if err := decodeResponse(resp, MsgStatusResponse, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Toggle flips the daemon's enabled state and returns the new state.
func (c *Client) Toggle() (*ToggleResponse, error) {
	resp, err := c.request(MsgToggle, nil)
	if err != nil {
		return nil, err
	}

	var result ToggleResponse
	if err := decodeResponse(resp, MsgToggleResp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Show asks the daemon to show the overlay.
func (c *Client) Show() error {
	return c.ack(MsgShow, MsgShowResp, "show")
}

// Hide asks the daemon to hide the overlay.
func (c *Client) Hide() error {
	return c.ack(MsgHide, MsgHideResp, "hide")
}

// Exit asks the daemon to shut down.
func (c *Client) Exit() error {
	return c.ack(MsgExit, MsgExitResp, "exit")
}

// ReloadConfig asks the daemon to reload its configuration file.
func (c *Client) ReloadConfig() error {
	return c.ack(MsgReloadConfig, MsgReloadConfigResp, "reload")
}

// History fetches recent action history, newest first.
func (c *Client) History(limit int) (*GetHistoryResponse, error) {
	resp, err := c.request(MsgGetHistory, &GetHistoryRequest{Limit: limit})
	if err != nil {
		return nil, err
	}

	var result GetHistoryResponse
	if err := decodeResponse(resp, MsgGetHistoryResp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
