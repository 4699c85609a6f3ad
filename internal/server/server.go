// Package server wires the accept loop, the worker pool and the shutdown
// controller around a connection handler.
//
// One goroutine accepts connections and appends them to the pool's queue;
// a fixed set of workers serve them synchronously, one connection each at a
// time. Shutdown stops accepting, drains every queued connection and then
// returns. The queue is unbounded: accepting never blocks on worker load.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"go.uber.org/multierr"

	"github.com/conneroisu/omnigrid/internal/config"
	serveerrors "github.com/conneroisu/omnigrid/internal/errors"
	"github.com/conneroisu/omnigrid/internal/handler"
	"github.com/conneroisu/omnigrid/internal/logging"
)

// Server serves static files from a single root directory.
type Server struct {
	config   *config.Config
	handler  ConnHandler
	shutdown *ShutdownController
	pool     *WorkerPool
	logger   logging.Logger
	listener net.Listener
}

// Option configures a Server.
type Option func(*Server)

// WithListener makes the server accept on l instead of binding its own socket.
func WithListener(l net.Listener) Option {
	return func(s *Server) {
		s.listener = l
	}
}

// WithHandler replaces the connection handler.
func WithHandler(h ConnHandler) Option {
	return func(s *Server) {
		s.handler = h
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a server for cfg. It does not bind any socket.
func New(cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		config:   cfg,
		shutdown: NewShutdownController(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewNopLogger()
	}
	if s.handler == nil {
		s.handler = handler.New(cfg.Root,
			handler.WithReadTimeout(cfg.ReadTimeout),
			handler.WithLogger(s.logger))
	}
	s.pool = NewWorkerPool(cfg.Workers, s.handler, s.shutdown, s.logger)

	return s
}

// Listen binds the listening socket unless one was supplied. Failure is a
// startup error.
func (s *Server) Listen() error {
	if s.listener == nil {
		addr := net.JoinHostPort(s.config.Host, strconv.Itoa(int(s.config.Port)))
		l, err := net.Listen("tcp", addr)
		if err != nil {
			return serveerrors.NewStartupError(serveerrors.ErrCodeListenFailed,
				fmt.Sprintf("failed to listen on %s", addr), err)
		}
		s.listener = l
	}
	s.shutdown.Attach(s.listener)

	return nil
}

// Addr returns the listening address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown begins a graceful shutdown: no new connections are accepted and
// Serve returns once queued connections have been served.
func (s *Server) Shutdown() {
	if s.shutdown.Trigger() {
		s.logger.Info(context.Background(), "shutdown requested")
	}
}

// Pending returns the number of accepted connections waiting for a worker.
func (s *Server) Pending() int {
	return s.pool.Pending()
}

// Served returns the number of connections handled so far.
func (s *Server) Served() int64 {
	return s.pool.Served()
}

// ListenAndServe binds the socket and serves until ctx is cancelled or
// Shutdown is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve runs the accept loop on the bound listener until shutdown, then
// drains the worker pool. Cancelling ctx triggers shutdown.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return serveerrors.NewStartupError(serveerrors.ErrCodeListenFailed, "serve called before listen", nil)
	}

	s.logger.Info(ctx, "serving static files",
		"addr", s.listener.Addr().String(),
		"root", s.config.Root,
		"workers", s.pool.Size())

	s.pool.Start(ctx)

	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case <-ctx.Done():
			s.Shutdown()
		case <-stopWatch:
		}
	}()

	s.acceptLoop(ctx)

	s.shutdown.Trigger()
	s.pool.WakeAll()
	var err error
	if closeErr := s.shutdown.closeListener(); closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
		err = multierr.Append(err, fmt.Errorf("closing listener: %w", closeErr))
	}
	err = multierr.Append(err, s.pool.Wait())

	s.logger.Info(ctx, "server stopped", "served", s.pool.Served())

	return err
}

func (s *Server) acceptLoop(ctx context.Context) {
	logger := s.logger.WithComponent("accept")
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.shutdown.ShuttingDown() {
				return
			}
			if errors.Is(err, net.ErrClosed) {
				logger.Warn(ctx, err, "listener closed outside shutdown")
				return
			}
			logger.Warn(ctx, err, "accept failed")
			continue
		}
		s.pool.Enqueue(conn)
	}
}
