package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/netutil"
)

// Server defaults.
const (
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultIdleTimeout       = 60 * time.Second
)

// Config configures a Server.
type Config struct {
	// Address is the TCP listen address, e.g. ":8080". Required.
	Address string

	// Handler serves every request. Required.
	Handler http.Handler

	// MaxConnections caps concurrently open connections. Zero means no
	// limit.
	MaxConnections int

	ReadHeaderTimeout time.Duration

	// ShutdownTimeout is how long in-flight downloads may keep running
	// after the context is cancelled. Connections still open after it
	// are closed.
	ShutdownTimeout time.Duration

	// Logger is the structured logger. Required.
	Logger *slog.Logger
}

// Server serves HTTP on a TCP listener. Serve blocks until the context
// is cancelled and active requests drain.
//
// There is no write timeout: a download may legitimately stream for as
// long as the transfer deadline allows.
type Server struct {
	address           string
	handler           http.Handler
	logger            *slog.Logger
	maxConnections    int
	readHeaderTimeout time.Duration
	shutdownTimeout   time.Duration

	// ready is closed once the listener is bound.
	ready chan struct{}
	addr  net.Addr
}

// New creates a server for cfg. Call Serve to start accepting connections.
func New(cfg Config) *Server {
	if cfg.Address == "" {
		panic("server.New: Address is required")
	}
	if cfg.Handler == nil {
		panic("server.New: Handler is required")
	}
	if cfg.Logger == nil {
		panic("server.New: Logger is required")
	}

	s := &Server{
		address:           cfg.Address,
		handler:           cfg.Handler,
		logger:            cfg.Logger,
		maxConnections:    cfg.MaxConnections,
		readHeaderTimeout: cfg.ReadHeaderTimeout,
		shutdownTimeout:   cfg.ShutdownTimeout,
		ready:             make(chan struct{}),
	}
	if s.readHeaderTimeout == 0 {
		s.readHeaderTimeout = DefaultReadHeaderTimeout
	}
	if s.shutdownTimeout == 0 {
		s.shutdownTimeout = DefaultShutdownTimeout
	}
	return s
}

// Ready returns a channel that is closed once the server is bound and
// accepting connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the resolved listen address. Only valid after Ready is
// closed.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Serve accepts connections until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.address, err)
	}
	s.addr = listener.Addr()
	if s.maxConnections > 0 {
		listener = netutil.LimitListener(listener, s.maxConnections)
	}
	close(s.ready)

	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.readHeaderTimeout,
		IdleTimeout:       DefaultIdleTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	s.logger.Info("http server listening", "address", s.addr.String(), "max_connections", s.maxConnections)

	serveDone := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveDone <- err
		}
		close(serveDone)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("http server shutting down")
	case err := <-serveDone:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		// Downloads outlived the grace period; drop them.
		s.logger.Warn("http server shutdown timed out, closing connections", "error", err)
		if cerr := server.Close(); cerr != nil {
			return fmt.Errorf("http server close: %w", cerr)
		}
		return nil
	}

	s.logger.Info("http server stopped")
	return nil
}
