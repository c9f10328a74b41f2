// Package server accepts TCP connections and runs one supervisor per
// connection until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"static-server/metrics"
	"static-server/protocol"
)

const (
	defaultReadBufferSize  = 4 << 10
	defaultWriteBufferSize = 32 << 10

	limiterCleanupInterval = time.Minute
	limiterMaxIdle         = 10 * time.Minute
)

// Config configures a Server. Handler is required; zero values elsewhere
// select defaults.
type Config struct {
	Addr    string
	Handler protocol.Handler
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Limiter, when set, closes connections over the per-client rate
	// right after accept.
	Limiter *RateLimiter

	MaxLineBytes    int
	ReadBufferSize  int
	WriteBufferSize int

	// ConnState is called on every supervisor state transition.
	ConnState func(net.Conn, ConnState)
}

// Server is the accept loop and shutdown coordinator.
type Server struct {
	addr            string
	handler         protocol.Handler
	log             *slog.Logger
	metrics         *metrics.Metrics
	limiter         *RateLimiter
	maxLineBytes    int
	readBufferSize  int
	writeBufferSize int
	connState       func(net.Conn, ConnState)

	ln net.Listener
	wg sync.WaitGroup
}

func New(cfg Config) *Server {
	s := &Server{
		addr:            cfg.Addr,
		handler:         cfg.Handler,
		log:             cfg.Logger,
		metrics:         cfg.Metrics,
		limiter:         cfg.Limiter,
		maxLineBytes:    cfg.MaxLineBytes,
		readBufferSize:  cfg.ReadBufferSize,
		writeBufferSize: cfg.WriteBufferSize,
		connState:       cfg.ConnState,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.maxLineBytes <= 0 {
		s.maxLineBytes = protocol.DefaultMaxLineBytes
	}
	if s.readBufferSize <= 0 {
		s.readBufferSize = defaultReadBufferSize
	}
	if s.writeBufferSize <= 0 {
		s.writeBufferSize = defaultWriteBufferSize
	}
	return s
}

// Listen binds the listening socket.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.addr, err)
	}
	s.ln = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts connections until ctx is cancelled. Cancellation closes
// the listener at once; Serve then waits for every connection to finish
// its in-flight response and close, and returns nil. Listen is called
// first if it has not been.
func (s *Server) Serve(ctx context.Context) error {
	if s.handler == nil {
		return errors.New("server: nil handler")
	}
	if s.ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	stop := context.AfterFunc(ctx, func() {
		s.ln.Close()
	})
	defer stop()

	if s.limiter != nil {
		go s.limiter.Run(ctx, limiterCleanupInterval, limiterMaxIdle)
	}

	s.log.Info("listening", "addr", s.ln.Addr().String())
	err := s.acceptLoop(ctx)

	s.log.Info("stopped accepting connections, waiting for open connections")
	s.wg.Wait()
	s.log.Info("all connections closed")
	return err
}

// ListenAndServe binds and serves.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

func (s *Server) acceptLoop(ctx context.Context) error {
	var tempDelay time.Duration
	for {
		rwc, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("accept: %w", err)
			}
			if tempDelay == 0 {
				tempDelay = 5 * time.Millisecond
			} else {
				tempDelay *= 2
			}
			if tempDelay > time.Second {
				tempDelay = time.Second
			}
			s.log.Warn("accept failed", "error", err, "retry_in", tempDelay)
			select {
			case <-time.After(tempDelay):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		tempDelay = 0

		if ctx.Err() != nil {
			rwc.Close()
			return nil
		}
		if s.limiter != nil && !s.limiter.AllowAddr(rwc.RemoteAddr()) {
			s.metrics.ConnectionRejected()
			s.log.Debug("connection rejected by rate limiter", "remote", clientAddr(rwc.RemoteAddr()))
			rwc.Close()
			continue
		}

		s.metrics.ConnectionAccepted()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.newConn(rwc).serve(ctx)
		}()
	}
}
