package worker

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/cwbudde/algo-modal/numserver"
	"github.com/cwbudde/algo-modal/rpc"
	"gonum.org/v1/gonum/mat"
)

// TestHelperProcess is not a real test: the service tests re-exec the test
// binary with GO_WANT_HELPER_PROCESS=1 to stand in for the worker.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) > 0 {
		args = args[1:]
	}

	switch os.Getenv("HELPER_MODE") {
	case "exit":
		fmt.Println("ready")
		fmt.Fprintln(os.Stderr, "warning")
		os.Exit(3)
	case "serve":
		fs := flag.NewFlagSet("helper", flag.ContinueOnError)
		opts := numserver.DefaultOptions()
		fs.StringVar(&opts.Host, "host", opts.Host, "")
		fs.IntVar(&opts.EigenPort, "eigen-port", opts.EigenPort, "")
		fs.IntVar(&opts.BridgePort, "bridge-port", opts.BridgePort, "")
		fs.DurationVar(&opts.Timeout, "timeout", opts.Timeout, "")
		if err := fs.Parse(args); err != nil {
			os.Exit(2)
		}
		fmt.Println("serving")
		if err := numserver.Run(context.Background(), opts, os.Stdin); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	}
	os.Exit(2)
}

type recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *recorder) observe(m Message) {
	r.mu.Lock()
	r.msgs = append(r.msgs, m)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}

func helperConfig(mode string, rec *recorder) Config {
	cfg := DefaultConfig()
	cfg.Path = os.Args[0]
	cfg.Args = []string{"-test.run=TestHelperProcess", "--"}
	cfg.Env = []string{"GO_WANT_HELPER_PROCESS=1", "HELPER_MODE=" + mode}
	cfg.Retry = rpc.Retry{StartupDelay: 5 * time.Millisecond, MaxAttempts: 400, RetryDelay: 5 * time.Millisecond}
	cfg.Observe = rec.observe
	return cfg
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func waitDone(t *testing.T, s *Service) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(10 * time.Second):
		t.Fatalf("worker did not exit")
	}
}

func TestExitedCarriesCode(t *testing.T) {
	rec := &recorder{}
	s := New(helperConfig("exit", rec))
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, s)

	msgs := rec.snapshot()
	if len(msgs) == 0 {
		t.Fatalf("no messages observed")
	}
	var sawOut, sawErr bool
	for _, m := range msgs[:len(msgs)-1] {
		switch m := m.(type) {
		case Output:
			sawOut = sawOut || m.Text == "ready"
		case Error:
			sawErr = sawErr || m.Text == "warning"
		case Exited:
			t.Fatalf("Exited must be the last message")
		}
	}
	if !sawOut || !sawErr {
		t.Fatalf("missing output lines in %v", msgs)
	}
	exit, ok := msgs[len(msgs)-1].(Exited)
	if !ok || exit.Code != 3 {
		t.Fatalf("last message = %#v, want Exited{Code: 3}", msgs[len(msgs)-1])
	}
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown after exit: %v", err)
	}
}

func TestAcquireAndShutdownViaStdin(t *testing.T) {
	rec := &recorder{}
	cfg := helperConfig("serve", rec)
	cfg.EigenPort = freePort(t)
	cfg.BridgePort = freePort(t)
	s := New(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	eig, bridge, err := s.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	eig2, bridge2, err := s.Acquire(ctx)
	if err != nil || eig2 != eig || bridge2 != bridge {
		t.Fatalf("second Acquire must return the same handles (err=%v)", err)
	}

	res, err := eig.Solve(ctx, mat.NewSymDense(2, []float64{2, 0, 0, 1}))
	if err != nil {
		t.Fatalf("eigen Solve: %v", err)
	}
	if res.Real[0] != 1 || res.Real[1] != 2 {
		t.Fatalf("eigenvalues = %v, want [1 2]", res.Real)
	}
	idx, err := bridge.ArgSort([]float64{0.5, -1})
	if err != nil || idx[0] != 1 {
		t.Fatalf("ArgSort = %v, %v", idx, err)
	}

	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	msgs := rec.snapshot()
	exit, ok := msgs[len(msgs)-1].(Exited)
	if !ok || exit.Code != 0 {
		t.Fatalf("last message = %#v, want Exited{Code: 0}", msgs[len(msgs)-1])
	}
	if _, _, err := s.Acquire(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("Acquire after Shutdown: got %v, want ErrClosed", err)
	}
}

func TestAcquireAfterExitFailsFast(t *testing.T) {
	rec := &recorder{}
	cfg := helperConfig("serve", rec)
	cfg.EigenPort = freePort(t)
	cfg.BridgePort = freePort(t)
	s := New(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, bridge, err := s.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := s.cmd.Process.Kill(); err != nil {
		t.Fatalf("kill worker: %v", err)
	}
	waitDone(t, s)

	if _, _, err := s.Acquire(ctx); !errors.Is(err, ErrExited) {
		t.Fatalf("Acquire after exit: got %v, want ErrExited", err)
	}
	if _, err := bridge.ArgSort([]float64{1, 0}); err == nil {
		t.Fatalf("bridge to a dead worker still answered")
	}
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown after exit: %v", err)
	}
}

func TestStartIsOnce(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Path = "/nonexistent/modal-worker"
	s := New(cfg)
	err1 := s.Start()
	if err1 == nil {
		t.Fatalf("expected start failure for missing binary")
	}
	if err2 := s.Start(); err2 != err1 {
		t.Fatalf("second Start returned %v, want first error %v", err2, err1)
	}
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown of failed service: %v", err)
	}
}

func TestShutdownBeforeStart(t *testing.T) {
	s := New(DefaultConfig())
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := s.Start(); !errors.Is(err, ErrClosed) {
		t.Fatalf("Start after Shutdown: got %v, want ErrClosed", err)
	}
}
