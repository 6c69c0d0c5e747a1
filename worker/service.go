// Package worker owns the external numeric worker process: it spawns it once,
// hands out connected clients and tears it down.
package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/cwbudde/algo-modal/rpc"
)

// ErrClosed is returned by Start and Acquire after Shutdown.
var ErrClosed = errors.New("worker: service shut down")

// ErrExited is returned by Acquire once the worker process has exited. The
// worker is spawned once per service and is not restarted.
var ErrExited = errors.New("worker: process exited")

// Config describes how to launch and reach the worker.
type Config struct {
	// Path is the worker executable. Args are passed before the generated
	// -host/-eigen-port/-bridge-port/-timeout flags.
	Path string
	Args []string
	Env  []string

	Host       string
	EigenPort  int
	BridgePort int
	// Timeout is handed to the worker: it exits when no client connects
	// within this window.
	Timeout time.Duration
	Retry   rpc.Retry

	Logger *slog.Logger
	// Observe, if set, receives every message after it has been logged.
	Observe func(Message)
}

// DefaultConfig matches the worker's default flags.
func DefaultConfig() Config {
	return Config{
		Path:       "modal-worker",
		Host:       "127.0.0.1",
		EigenPort:  9009,
		BridgePort: 9008,
		Timeout:    5 * time.Second,
		Retry:      rpc.DefaultRetry(),
	}
}

// EigenAddr returns host:port of the eigen socket.
func (c Config) EigenAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.EigenPort))
}

// BridgeAddr returns host:port of the bridge socket.
func (c Config) BridgeAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.BridgePort))
}

func (c Config) args() []string {
	args := append([]string(nil), c.Args...)
	return append(args,
		"-host", c.Host,
		"-eigen-port", strconv.Itoa(c.EigenPort),
		"-bridge-port", strconv.Itoa(c.BridgePort),
		"-timeout", c.Timeout.String(),
	)
}

// Service is the lifecycle handle for one worker process.
type Service struct {
	cfg Config
	log *slog.Logger

	mu       sync.Mutex
	started  bool
	startErr error
	closed   bool
	exited   bool

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	msgs   chan Message
	drain  sync.WaitGroup
	done   chan struct{}
	bridge *rpc.Bridge
	eigen  *rpc.EigenClient
}

// New returns an idle service. Nothing is spawned until Start or Acquire.
func New(cfg Config) *Service {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{cfg: cfg, log: log.With("component", "worker")}
}

// Start spawns the worker exactly once. Later calls return the first result.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked()
}

func (s *Service) startLocked() error {
	if s.closed {
		return ErrClosed
	}
	if s.started {
		return s.startErr
	}
	s.started = true
	s.startErr = s.spawn()
	return s.startErr
}

func (s *Service) spawn() error {
	cmd := exec.Command(s.cfg.Path, s.cfg.args()...)
	cmd.Env = append(os.Environ(), s.cfg.Env...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("worker stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("worker stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start worker %s: %w", s.cfg.Path, err)
	}
	s.log.Info("worker started", "path", s.cfg.Path, "pid", cmd.Process.Pid,
		"eigen", s.cfg.EigenAddr(), "bridge", s.cfg.BridgeAddr())

	s.cmd = cmd
	s.stdin = stdin
	s.msgs = make(chan Message, 64)
	s.done = make(chan struct{})
	s.eigen = &rpc.EigenClient{Addr: s.cfg.EigenAddr(), Retry: s.cfg.Retry}

	s.drain.Add(2)
	go s.drainLines(stdout, func(t string) Message { return Output{Text: t} })
	go s.drainLines(stderr, func(t string) Message { return Error{Text: t} })
	go s.wait()
	go s.supervise()
	return nil
}

func (s *Service) drainLines(r io.Reader, wrap func(string) Message) {
	defer s.drain.Done()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		s.msgs <- wrap(sc.Text())
	}
}

// wait reaps the process once both pipes are drained and publishes Exited.
func (s *Service) wait() {
	s.drain.Wait()
	err := s.cmd.Wait()
	code := s.cmd.ProcessState.ExitCode()
	s.msgs <- Exited{Code: code, Err: err}
	close(s.msgs)
}

func (s *Service) supervise() {
	defer close(s.done)
	for m := range s.msgs {
		switch m := m.(type) {
		case Output:
			s.log.Debug("worker output", "text", m.Text)
		case Error:
			s.log.Warn("worker error output", "text", m.Text)
		case Exited:
			s.dropBridge()
			if m.Code == 0 {
				s.log.Info("worker exited", "code", m.Code)
			} else {
				s.log.Error("worker exited", "code", m.Code, "err", m.Err)
			}
		}
		if s.cfg.Observe != nil {
			s.cfg.Observe(m)
		}
	}
}

// dropBridge marks the process gone and closes the cached bridge.
func (s *Service) dropBridge() {
	s.mu.Lock()
	s.exited = true
	b := s.bridge
	s.bridge = nil
	s.mu.Unlock()
	if b != nil {
		_ = b.Close()
	}
}

// Acquire starts the worker if needed and returns the eigen client and the
// shared bridge connection.
func (s *Service) Acquire(ctx context.Context) (*rpc.EigenClient, *rpc.Bridge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.startLocked(); err != nil {
		return nil, nil, err
	}
	if s.exited {
		return nil, nil, ErrExited
	}
	if s.bridge == nil {
		b, err := rpc.DialBridge(ctx, s.cfg.BridgeAddr(), s.cfg.Retry)
		if err != nil {
			return nil, nil, fmt.Errorf("worker bridge: %w", err)
		}
		s.bridge = b
	}
	return s.eigen, s.bridge, nil
}

// Done is closed once the worker has exited and all of its output has been
// consumed. It is nil before the worker is started.
func (s *Service) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Shutdown closes the bridge, closes the worker's stdin and waits for it to
// exit. If ctx expires first the process is killed.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	started := s.started && s.startErr == nil
	bridge := s.bridge
	s.bridge = nil
	s.mu.Unlock()

	if !started {
		return nil
	}
	if bridge != nil {
		_ = bridge.Close()
	}
	_ = s.stdin.Close()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		s.log.Warn("worker did not exit in time, killing", "pid", s.cmd.Process.Pid)
		_ = s.cmd.Process.Kill()
		<-s.done
		return ctx.Err()
	}
}
