// Package testserver provides an in-process NimbusDB server speaking
// the wire framing, scripted per test. It backs the connection and
// end-to-end authentication tests.
package testserver

import (
	"crypto/tls"
	"errors"
	"net"
	"sync"

	"github.com/nimbusdb/nimbus-go/pkg/conn"
	"github.com/nimbusdb/nimbus-go/pkg/wire"
)

// ErrDrop instructs the server to close the client connection without
// replying, simulating a transport failure mid-conversation.
var ErrDrop = errors.New("drop connection")

// ErrNoReply instructs the server to leave the request unanswered and
// keep the connection open, leaving the client's future pending.
var ErrNoReply = errors.New("no reply")

// Handler produces the reply body for one request. Returning ErrDrop
// closes the connection; any other error encodes as a failed command
// result.
type Handler func(req *wire.Request) (any, error)

// Server is a scripted single-purpose NimbusDB server.
type Server struct {
	ln      net.Listener
	handler Handler

	mu     sync.Mutex
	conns  []net.Conn
	closed bool

	wg sync.WaitGroup
}

// Start listens on an ephemeral loopback port and serves connections
// with the handler.
func Start(handler Handler) (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	return serveListener(ln, handler), nil
}

// StartTLS is Start behind a TLS listener.
func StartTLS(handler Handler, cfg *tls.Config) (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	return serveListener(tls.NewListener(ln, cfg), handler), nil
}

func serveListener(ln net.Listener, handler Handler) *Server {
	s := &Server{ln: ln, handler: handler}
	s.wg.Add(1)
	go s.acceptLoop()
	return s
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Close stops the listener and every open connection.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()

	s.ln.Close()
	for _, c := range conns {
		c.Close()
	}
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		nc, err := s.ln.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			nc.Close()
			return
		}
		s.conns = append(s.conns, nc)
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serve(nc)
	}
}

func (s *Server) serve(nc net.Conn) {
	defer s.wg.Done()
	defer nc.Close()

	fr := conn.NewFrameReader(nc, 0)
	fw := conn.NewFrameWriter(nc, 0)

	for {
		frame, err := fr.ReadFrame()
		if err != nil {
			return
		}

		req, err := wire.DecodeRequest(frame)
		if err != nil {
			return
		}

		body, err := s.handler(req)
		if errors.Is(err, ErrDrop) {
			return
		}
		if errors.Is(err, ErrNoReply) {
			continue
		}
		if err != nil {
			body = &wire.CommandResult{OK: 0, Code: 1, ErrMsg: err.Error()}
		}

		raw, err := wire.Marshal(body)
		if err != nil {
			return
		}
		data, err := wire.EncodeReply(&wire.Reply{RequestID: req.RequestID, Body: raw})
		if err != nil {
			return
		}
		if err := fw.WriteFrame(data); err != nil {
			return
		}
	}
}
