// Package server accepts TCP connections and answers each one on a worker pool.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vnykmshr/workq/pkg/common/validation"
	"github.com/vnykmshr/workq/pkg/scheduling/workerpool"
)

const (
	statusLine  = "HTTP/1.1 200 OK"
	slowBody    = "Slow Response\n"
	fastBody    = "Fast Response\n"
	slowRequest = "GET /sleep HTTP/1.1\r\n"
	defaultAddr = "127.0.0.1:7878"
	defaultRead = 1024
)

// Config holds server configuration.
type Config struct {
	// Addr is the TCP address to listen on (default 127.0.0.1:7878)
	Addr string

	// SleepDelay is how long a /sleep request is held before replying.
	// Zero replies at once; the command-line default of 5s comes from config.
	SleepDelay time.Duration

	// ReadBuffer caps how many request bytes are read (default 1024)
	ReadBuffer int

	// Logger receives connection logs. If nil, logging is disabled.
	Logger *zap.Logger
}

// Server hands every accepted connection to a worker pool.
type Server struct {
	config Config
	pool   *workerpool.Pool
	logger *zap.Logger

	mu       sync.Mutex
	listener net.Listener
}

// New creates a server that runs connections on pool.
func New(cfg Config, pool *workerpool.Pool) (*Server, error) {
	if err := validation.ValidateNotNil("server", "pool", pool); err != nil {
		return nil, err
	}
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	if cfg.ReadBuffer == 0 {
		cfg.ReadBuffer = defaultRead
	}
	if err := validation.ValidatePositive("server", "read_buffer", cfg.ReadBuffer); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegativeDuration("server", "sleep_delay", cfg.SleepDelay); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Server{
		config: cfg,
		pool:   pool,
		logger: logger.With(zap.String("component", "server")),
	}, nil
}

// Listen binds the configured address. It is called by ListenAndServe;
// call it directly to learn the bound address before serving.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return fmt.Errorf("server already listening on %s", s.listener.Addr())
	}

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ListenAndServe binds the configured address and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve accepts connections until ctx is cancelled, then closes the listener
// and returns nil. Accept errors are logged and the loop goes on. If the pool
// refuses a connection because it is closed, the connection is dropped and
// Serve returns the pool's error.
//
// Connections already handed to the pool are finished by the pool's Close.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return fmt.Errorf("server is not listening, call Listen first")
	}

	s.logger.Info("server running",
		zap.String("addr", ln.Addr().String()),
		zap.Int("workers", s.pool.Size()),
	)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.logger.Info("shutting down")
				return nil
			}
			s.logger.Warn("accept failed", zap.Error(err))
			continue
		}

		id := uuid.NewString()
		s.logger.Debug("new connection established",
			zap.String("conn_id", id),
			zap.String("remote", conn.RemoteAddr().String()),
		)

		if err := s.pool.TryExecute(func() { s.handle(id, conn) }); err != nil {
			_ = conn.Close()
			return fmt.Errorf("failed to dispatch connection: %w", err)
		}
	}
}

func (s *Server) handle(id string, conn net.Conn) {
	defer conn.Close()
	HandleConnection(conn, s.config.ReadBuffer, s.config.SleepDelay, s.logger.With(zap.String("conn_id", id)))
}

// HandleConnection reads one request of at most readBuffer bytes from conn
// and writes the matching response. A request starting with
// "GET /sleep HTTP/1.1\r\n" is answered after sleepDelay. Read and write
// errors are logged and end the exchange. The caller closes conn.
func HandleConnection(conn net.Conn, readBuffer int, sleepDelay time.Duration, logger *zap.Logger) {
	buf := make([]byte, readBuffer)
	n, err := conn.Read(buf)
	if err != nil {
		logger.Error("failed to read from stream", zap.Error(err))
		return
	}
	request := buf[:n]
	logger.Debug("request", zap.ByteString("request", request))

	body := fastBody
	if IsSlowRequest(request) {
		time.Sleep(sleepDelay)
		body = slowBody
	}

	if _, err := conn.Write(Response(body)); err != nil {
		logger.Error("failed to write response", zap.Error(err))
	}
}

// IsSlowRequest reports whether request asks for the delayed response.
func IsSlowRequest(request []byte) bool {
	return bytes.HasPrefix(request, []byte(slowRequest))
}

// Response formats body as a minimal HTTP/1.1 200 response.
func Response(body string) []byte {
	var b bytes.Buffer
	b.Grow(len(statusLine) + len(body) + 32)
	b.WriteString(statusLine)
	b.WriteString("\r\nContent-Length: ")
	b.WriteString(strconv.Itoa(len(body)))
	b.WriteString("\r\n\r\n")
	b.WriteString(body)
	return b.Bytes()
}
