// Package numserver is the numeric worker: it answers eigen requests and JSON
// bridge calls on two TCP listeners.
package numserver

import (
	"errors"
	"math/rand/v2"
	"net"
	"sync"

	"github.com/cwbudde/algo-modal/rpc"
)

// Server answers requests on the eigen and bridge sockets.
type Server struct {
	mu     sync.Mutex
	src    *rand.PCG
	lns    []net.Listener
	conns  map[net.Conn]struct{}
	wg     sync.WaitGroup
	closed bool

	// Accepted, if set, is called once per accepted connection.
	Accepted func(kind string)
}

// New returns a server whose random functions are seeded with seed.
func New(seed uint64) *Server {
	return &Server{
		src:   rand.NewPCG(seed, seed^0x9e3779b97f4a7c15),
		conns: make(map[net.Conn]struct{}),
	}
}

// ServeEigen accepts eigen connections on ln until ln is closed.
func (s *Server) ServeEigen(ln net.Listener) error {
	return s.serve(ln, "eigen", s.eigenConn)
}

// ServeBridge accepts bridge connections on ln until ln is closed.
func (s *Server) ServeBridge(ln net.Listener) error {
	return s.serve(ln, "bridge", s.bridgeConn)
}

// Close stops all listeners, drops open connections and waits for the
// handlers to return.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	for _, ln := range s.lns {
		_ = ln.Close()
	}
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

func (s *Server) serve(ln net.Listener, kind string, handle func(net.Conn)) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return net.ErrClosed
	}
	s.lns = append(s.lns, ln)
	s.mu.Unlock()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		if !s.track(conn) {
			_ = conn.Close()
			return nil
		}
		if s.Accepted != nil {
			s.Accepted(kind)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			handle(conn)
		}()
	}
}

func (s *Server) track(c net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	_ = c.Close()
}

// eigenConn answers frames until the peer disconnects. A request that cannot
// be solved closes the connection without a reply.
func (s *Server) eigenConn(conn net.Conn) {
	for {
		payload, err := rpc.ReadFrame(conn)
		if err != nil {
			return
		}
		reply, err := SolveEigen(payload)
		if err != nil {
			return
		}
		if err := rpc.WriteFrame(conn, reply); err != nil {
			return
		}
	}
}

func (s *Server) bridgeConn(conn net.Conn) {
	for {
		payload, err := rpc.ReadFrame(conn)
		if err != nil {
			return
		}
		reply, err := s.Dispatch(payload)
		if err != nil {
			return
		}
		if err := rpc.WriteFrame(conn, reply); err != nil {
			return
		}
	}
}
