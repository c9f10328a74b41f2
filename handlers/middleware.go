package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"static-server/protocol"
)

// Middleware wraps a handler with additional behavior.
type Middleware func(next protocol.Handler) protocol.Handler

// Chain applies mws so the first one is outermost.
func Chain(h protocol.Handler, mws ...Middleware) protocol.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// LoggingMiddleware logs every resolved request with its outcome.
func LoggingMiddleware(log *slog.Logger) Middleware {
	return func(next protocol.Handler) protocol.Handler {
		return protocol.HandlerFunc(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			start := time.Now()
			res, err := next.Handle(ctx, req)
			duration := time.Since(start)

			if err != nil {
				log.Error("failed to handle request",
					"remote", protocol.RemoteAddr(ctx),
					"method", string(req.Method),
					"path", req.Path,
					"duration", duration,
					"error", err,
				)
				return nil, err
			}

			attrs := []any{
				"remote", protocol.RemoteAddr(ctx),
				"method", string(req.Method),
				"path", req.Path,
				"status", res.Status.Code(),
				"duration", duration,
			}
			if cl := res.ContentLength(); cl >= 0 {
				attrs = append(attrs, "size", humanize.Bytes(uint64(cl)))
			}
			log.Info("request", attrs...)
			return res, nil
		})
	}
}

// RecoveryMiddleware turns a panic in the wrapped handler into an error so
// only the offending connection is dropped.
func RecoveryMiddleware(log *slog.Logger) Middleware {
	return func(next protocol.Handler) protocol.Handler {
		return protocol.HandlerFunc(func(ctx context.Context, req *protocol.Request) (res *protocol.Response, err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered", "path", req.Path, "panic", r)
					res, err = nil, fmt.Errorf("handler panic: %v", r)
				}
			}()
			return next.Handle(ctx, req)
		})
	}
}
