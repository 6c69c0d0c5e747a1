package numserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"
)

// ErrIdleTimeout is returned by Run when no client connected in time.
var ErrIdleTimeout = errors.New("numserver: no client connected before timeout")

// Options configures Run.
type Options struct {
	Host       string
	EigenPort  int
	BridgePort int
	// Timeout bounds the wait for the first client connection. Zero waits
	// forever.
	Timeout time.Duration
	Seed    uint64
}

// DefaultOptions listens on the loopback ports 9009 (eigen) and 9008 (bridge).
func DefaultOptions() Options {
	return Options{
		Host:       "127.0.0.1",
		EigenPort:  9009,
		BridgePort: 9008,
		Timeout:    5 * time.Second,
		Seed:       1,
	}
}

// Run serves both sockets until ctx is cancelled or stdin reaches EOF, which
// is how a parent signals that the worker has been orphaned.
func Run(ctx context.Context, opts Options, stdin io.Reader) error {
	eln, err := net.Listen("tcp", net.JoinHostPort(opts.Host, strconv.Itoa(opts.EigenPort)))
	if err != nil {
		return fmt.Errorf("eigen listener: %w", err)
	}
	bln, err := net.Listen("tcp", net.JoinHostPort(opts.Host, strconv.Itoa(opts.BridgePort)))
	if err != nil {
		eln.Close()
		return fmt.Errorf("bridge listener: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := New(opts.Seed)
	connected := make(chan struct{})
	var once sync.Once
	srv.Accepted = func(string) { once.Do(func() { close(connected) }) }

	errc := make(chan error, 2)
	go func() { errc <- srv.ServeEigen(eln) }()
	go func() { errc <- srv.ServeBridge(bln) }()
	defer srv.Close()

	if stdin != nil {
		go func() {
			_, _ = io.Copy(io.Discard, stdin)
			cancel()
		}()
	}

	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		select {
		case <-connected:
		case <-ctx.Done():
			return nil
		case err := <-errc:
			return err
		case <-timer.C:
			return ErrIdleTimeout
		}
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errc:
		return err
	}
}
