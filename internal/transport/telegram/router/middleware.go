package router

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	logx "crosspromo/pkg/logx"
)

type HandlerFunc func(ctx context.Context, req *Request) error

type Middleware func(next HandlerFunc) HandlerFunc

// Chain wraps h so that m[0] runs outermost.
func Chain(h HandlerFunc, m ...Middleware) HandlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

// Recover turns a handler panic into an error.
func Recover() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (err error) {
			defer func() {
				if r := recover(); r != nil {
					req.Logger.Error("handler panicked", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
					err = fmt.Errorf("panic: %v", r)
				}
			}()
			return next(ctx, req)
		}
	}
}

// slowRequest promotes the completion log line from debug to info.
const slowRequest = 750 * time.Millisecond

// Log records each request's outcome and duration.
func Log() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			start := time.Now()
			err := next(ctx, req)
			took := time.Since(start)
			switch {
			case err != nil:
				req.Logger.Warn("request failed", logx.Duration("took", took), logx.Err(err))
			case took >= slowRequest:
				req.Logger.Info("request done (slow)", logx.Duration("took", took))
			default:
				req.Logger.Debug("request done", logx.Duration("took", took))
			}
			return err
		}
	}
}

// ReplyErrors tells the operator about a failed handler. The reply gets
// its own deadline since the handler context may already be spent.
func ReplyErrors() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			err := next(ctx, req)
			if err == nil || errors.Is(err, context.Canceled) {
				return err
			}
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			_ = req.Reply(rctx, "error: "+err.Error())
			return err
		}
	}
}

// Timeout bounds the handler; d <= 0 leaves ctx alone.
func Timeout(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		if d <= 0 {
			return next
		}
		return func(ctx context.Context, req *Request) error {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, req)
		}
	}
}
