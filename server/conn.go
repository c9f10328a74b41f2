package server

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"static-server/protocol"
)

// ConnState is the lifecycle state of a client connection.
type ConnState int

const (
	// StateAwaitingRequest: waiting for the next request or end of stream.
	StateAwaitingRequest ConnState = iota
	// StateDispatching: a request is being resolved and its response written.
	StateDispatching
	// StateClosed is terminal. The socket is closed.
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateAwaitingRequest:
		return "awaiting-request"
	case StateDispatching:
		return "dispatching"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

type parseResult struct {
	req *protocol.Request
	err error
}

// conn supervises one accepted connection. It is owned by a single
// goroutine; only the pending parse shares its reader.
type conn struct {
	srv    *Server
	rwc    net.Conn
	remote string
	rr     *protocol.RequestReader
	bw     *bufio.Writer
	log    *slog.Logger

	req     *protocol.Request
	pending chan parseResult
	served  int
}

type stateFunc func(ctx context.Context, c *conn) stateFunc

func (s *Server) newConn(rwc net.Conn) *conn {
	remote := clientAddr(rwc.RemoteAddr())
	rr := protocol.NewRequestReader(bufio.NewReaderSize(rwc, s.readBufferSize))
	rr.MaxLineBytes = s.maxLineBytes
	return &conn{
		srv:    s,
		rwc:    rwc,
		remote: remote,
		rr:     rr,
		bw:     bufio.NewWriterSize(rwc, s.writeBufferSize),
		log:    s.log.With("remote", remote),
	}
}

// serve runs the state machine until the connection is closed.
func (c *conn) serve(ctx context.Context) {
	c.log.Debug("connection accepted")
	for state := awaitRequest; state != nil; {
		state = state(ctx, c)
	}
}

func (c *conn) setState(st ConnState) {
	if hook := c.srv.connState; hook != nil {
		hook(c.rwc, st)
	}
}

func awaitRequest(ctx context.Context, c *conn) stateFunc {
	// Shutdown is only observed here, between requests.
	if ctx.Err() != nil {
		c.log.Debug("closing idle connection", "reason", "shutdown")
		return closeConn
	}
	c.setState(StateAwaitingRequest)

	results := make(chan parseResult, 1)
	c.pending = results
	go func() {
		req, err := c.rr.ReadRequest()
		results <- parseResult{req: req, err: err}
	}()

	select {
	case <-ctx.Done():
		c.log.Debug("closing idle connection", "reason", "shutdown")
		return closeConn
	case r := <-results:
		c.pending = nil
		switch {
		case r.err == nil:
			c.req = r.req
			return dispatch
		case errors.Is(r.err, protocol.ErrConnectionClosed):
			c.log.Debug("connection closed by peer", "requests", c.served)
		case errors.Is(r.err, protocol.ErrMalformedRequest):
			c.srv.metrics.MalformedRequest()
			c.log.Warn("failed to parse request", "error", r.err)
		default:
			c.log.Error("failed to read request", "error", r.err)
		}
		return closeConn
	}
}

func dispatch(ctx context.Context, c *conn) stateFunc {
	c.setState(StateDispatching)
	req := c.req
	c.req = nil

	// Only the exact lowercase token closes the connection.
	v, _ := req.Headers.Get("Connection")
	closeAfter := v == "close"

	start := time.Now()
	hctx := protocol.WithRemoteAddr(context.WithoutCancel(ctx), c.remote)
	res, err := c.srv.handler.Handle(hctx, req)
	if err != nil {
		c.log.Warn("closing connection after handler error", "path", req.Path, "error", err)
		return closeConn
	}

	n, err := protocol.WriteResponse(c.bw, res)
	if cerr := res.Close(); cerr != nil {
		c.log.Debug("failed to release response body", "path", req.Path, "error", cerr)
	}
	if err != nil {
		c.log.Error("failed to write response", "path", req.Path, "bytes", n, "error", err)
		return closeConn
	}
	c.served++
	c.srv.metrics.ResponseWritten(res.Status.Code(), n, time.Since(start))

	if closeAfter {
		c.log.Debug("closing connection", "reason", "connection: close")
		return closeConn
	}
	return awaitRequest
}

func closeConn(_ context.Context, c *conn) stateFunc {
	if err := c.rwc.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		c.log.Debug("failed to close connection", "error", err)
	}
	// Closing the socket unblocks the pending read.
	if c.pending != nil {
		<-c.pending
		c.pending = nil
	}
	c.srv.metrics.ConnectionClosed()
	c.log.Debug("connection closed", "requests", c.served)
	c.setState(StateClosed)
	return nil
}

func clientAddr(addr net.Addr) string {
	if addr == nil {
		return "unknown"
	}
	return addr.String()
}
