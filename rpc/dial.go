package rpc

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Retry bounds connection establishment against a worker that may still be
// starting up.
type Retry struct {
	StartupDelay time.Duration
	MaxAttempts  int
	RetryDelay   time.Duration
}

// DefaultRetry waits 10ms, then tries up to 1000 times 5ms apart.
func DefaultRetry() Retry {
	return Retry{
		StartupDelay: 10 * time.Millisecond,
		MaxAttempts:  1000,
		RetryDelay:   5 * time.Millisecond,
	}
}

// Dial connects to addr over TCP, retrying per r. Exhausted attempts and
// context cancellation both report ErrConnection.
func Dial(ctx context.Context, addr string, r Retry) (net.Conn, error) {
	if r.MaxAttempts < 1 {
		r.MaxAttempts = 1
	}
	if err := sleepCtx(ctx, r.StartupDelay); err != nil {
		return nil, fmt.Errorf("dial %s: %v: %w", addr, err, ErrConnection)
	}
	var d net.Dialer
	var lastErr error
	for attempt := 0; attempt < r.MaxAttempts; attempt++ {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			if tc, ok := conn.(*net.TCPConn); ok {
				_ = tc.SetNoDelay(true)
			}
			return conn, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if err := sleepCtx(ctx, r.RetryDelay); err != nil {
			break
		}
	}
	return nil, fmt.Errorf("dial %s after %d attempts: %v: %w", addr, r.MaxAttempts, lastErr, ErrConnection)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
