// Package ipc provides the server side of the control pipe.
package ipc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Handler processes control requests decoded off the pipe.
type Handler interface {
	// HandleMessage turns one request frame into its response frame.
	HandleMessage(ctx context.Context, msg *Message) (*Message, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, msg *Message) (*Message, error)

func (f HandlerFunc) HandleMessage(ctx context.Context, msg *Message) (*Message, error) {
	return f(ctx, msg)
}

// ServerConfig configures the listening side of the control pipe. Zero
// fields fall back to defaults.
type ServerConfig struct {
	MaxConnections int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	Logger         *slog.Logger
}

// Server accepts connections from a listener and feeds framed requests
// through a Handler. The listener is supplied by the caller, so the
// same server runs over a Windows named pipe in the daemon and over an
// in-memory pipe in tests.
type Server struct {
	handler Handler
	logger  *slog.Logger

	maxConns     int
	readTimeout  time.Duration
	writeTimeout time.Duration

	mu       sync.Mutex
	listener net.Listener
	conns    map[*pipeConn]struct{}

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool

	connSeq atomic.Uint64
	pingSeq atomic.Uint32
}

// pipeConn is one accepted client connection.
type pipeConn struct {
	id   uint64
	conn net.Conn

	// writeMu serializes frames; the request loop and the keepalive
	// path both write.
	writeMu sync.Mutex
}

func (pc *pipeConn) write(msg *Message, timeout time.Duration) error {
	pc.writeMu.Lock()
	defer pc.writeMu.Unlock()

	pc.conn.SetWriteDeadline(time.Now().Add(timeout))
	return msg.Write(pc.conn)
}

// NewServer creates a server that dispatches to handler.
func NewServer(cfg ServerConfig, handler Handler) *Server {
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 4
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		handler:      handler,
		logger:       logger.With("component", "ipc"),
		maxConns:     cfg.MaxConnections,
		readTimeout:  cfg.ReadTimeout,
		writeTimeout: cfg.WriteTimeout,
		conns:        make(map[*pipeConn]struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start begins accepting connections from listener.
func (s *Server) Start(listener net.Listener) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("server already running")
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.wg.Add(1)
	go s.accept(listener)

	s.logger.Info("control pipe listening", "addr", listener.Addr().String())
	return nil
}

// Stop closes the listener and every live connection, then waits for
// the connection goroutines to wind down.
func (s *Server) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	s.cancel()

	s.mu.Lock()
	if s.listener != nil {
		s.listener.Close()
	}
	for pc := range s.conns {
		pc.conn.Close()
	}
	s.mu.Unlock()

	idle := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(idle)
	}()

	select {
	case <-idle:
	case <-time.After(5 * time.Second):
		s.logger.Warn("control pipe shutdown timed out")
	}

	s.logger.Info("control pipe stopped")
	return nil
}

func (s *Server) accept(listener net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}

		pc, ok := s.track(conn)
		if !ok {
			s.logger.Warn("connection limit reached, rejecting client")
			conn.Close()
			continue
		}

		s.logger.Debug("client connected", "client", pc.id)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serve(pc)
		}()
	}
}

// track registers conn unless the connection limit is met.
func (s *Server) track(conn net.Conn) (*pipeConn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.conns) >= s.maxConns {
		return nil, false
	}

	pc := &pipeConn{id: s.connSeq.Add(1), conn: conn}
	s.conns[pc] = struct{}{}
	return pc, true
}

func (s *Server) untrack(pc *pipeConn) {
	s.mu.Lock()
	delete(s.conns, pc)
	s.mu.Unlock()
	pc.conn.Close()
}

// serve reads frames off one connection until it closes or the server
// shuts down.
func (s *Server) serve(pc *pipeConn) {
	defer func() {
		s.untrack(pc)
		s.logger.Debug("client disconnected", "client", pc.id)
	}()

	for s.ctx.Err() == nil {
		pc.conn.SetReadDeadline(time.Now().Add(s.readTimeout))

		msg, err := ReadMessage(pc.conn)
		if err != nil {
			var ne net.Error
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
				return
			case errors.As(err, &ne) && ne.Timeout():
				// Idle client; probe it instead of hanging up.
				pc.write(NewMessage(MsgPing, s.pingSeq.Add(1), nil), s.writeTimeout)
				continue
			default:
				s.logger.Debug("read failed", "client", pc.id, "error", err)
				return
			}
		}

		if resp := s.respond(msg); resp != nil {
			if err := pc.write(resp, s.writeTimeout); err != nil {
				return
			}
		}
	}
}

// respond produces the response frame for msg. Pings and pongs are
// answered here; everything else goes through the handler. A nil
// return means there is nothing to send.
func (s *Server) respond(msg *Message) *Message {
	switch msg.Header.Type {
	case MsgPing:
		return NewMessage(MsgPong, msg.Header.RequestID, nil)
	case MsgPong:
		// Client answered our keepalive.
		return nil
	}

	if s.handler == nil {
		return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "no handler")
	}

	resp, err := s.handler.HandleMessage(s.ctx, msg)
	if err != nil {
		return NewErrorMessage(msg.Header.RequestID, ErrInternalError, err.Error())
	}
	return resp
}
