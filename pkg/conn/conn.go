package conn

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nimbusdb/nimbus-go/pkg/auth"
	"github.com/nimbusdb/nimbus-go/pkg/future"
	"github.com/nimbusdb/nimbus-go/pkg/wire"
)

// Connection errors.
var (
	// ErrConnClosed is the outcome of every submission pending when the
	// connection closes, and of submissions made afterwards.
	ErrConnClosed = errors.New("connection is closed")
)

// Config holds connection settings.
type Config struct {
	// Addr is the server address (host:port).
	Addr string

	// TLS enables TLS when non-nil.
	TLS *tls.Config

	// MaxMessageSize caps frame sizes in both directions.
	// Zero means DefaultMaxMessageSize.
	MaxMessageSize uint32

	// DialTimeout bounds connection establishment. Zero means no
	// timeout beyond the dial context.
	DialTimeout time.Duration

	// Logger for debug output (optional)
	Logger *slog.Logger
}

// Conn is an asynchronous connection to a NimbusDB server. All methods
// are safe for concurrent use.
type Conn struct {
	id     string
	nc     net.Conn
	fw     *FrameWriter
	logger *slog.Logger

	nextRequestID atomic.Uint32

	mu       sync.Mutex
	pending  map[uint32]*future.Future[wire.CommandResult]
	closed   bool
	closeErr error
}

// Dial establishes a connection and starts its read loop.
func Dial(ctx context.Context, cfg Config) (*Conn, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("address must not be empty")
	}

	dialer := &net.Dialer{Timeout: cfg.DialTimeout}
	nc, err := dialer.DialContext(ctx, "tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", cfg.Addr, err)
	}

	if cfg.TLS != nil {
		tlsConn := tls.Client(nc, cfg.TLS)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			nc.Close()
			return nil, fmt.Errorf("TLS handshake with %s failed: %w", cfg.Addr, err)
		}
		nc = tlsConn
	}

	c := &Conn{
		id:      uuid.NewString(),
		nc:      nc,
		fw:      NewFrameWriter(nc, cfg.MaxMessageSize),
		logger:  cfg.Logger,
		pending: make(map[uint32]*future.Future[wire.CommandResult]),
	}

	if c.logger != nil {
		c.logger.Debug("connected", "connId", c.id, "addr", nc.RemoteAddr())
	}

	go c.readLoop(NewFrameReader(nc, cfg.MaxMessageSize))
	return c, nil
}

// ID returns the connection's unique identifier.
func (c *Conn) ID() string {
	return c.id
}

// RemoteAddr returns the server's network address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.nc.RemoteAddr()
}

// Submit sends a command to the given database and returns a future
// that settles with the decoded result. Submit never blocks on the
// server; it only performs the framed write. A failed result document
// (ok != 1) settles the future with a *wire.ServerError.
func (c *Conn) Submit(database string, command any) *future.Future[wire.CommandResult] {
	fut := future.New[wire.CommandResult]()

	req, err := wire.NewRequest(c.nextID(), database, command)
	if err != nil {
		fut.Settle(nil, err)
		return fut
	}
	data, err := wire.EncodeRequest(req)
	if err != nil {
		fut.Settle(nil, err)
		return fut
	}

	c.mu.Lock()
	if c.closed {
		err := c.closeErr
		c.mu.Unlock()
		fut.Settle(nil, err)
		return fut
	}
	c.pending[req.RequestID] = fut
	c.mu.Unlock()

	if err := c.fw.WriteFrame(data); err != nil {
		c.mu.Lock()
		delete(c.pending, req.RequestID)
		c.mu.Unlock()
		fut.Settle(nil, fmt.Errorf("failed to send request %d: %w", req.RequestID, err))
		return fut
	}

	return fut
}

// Authenticate runs a challenge-response negotiation for the credential
// over this connection, blocking until it completes or ctx expires. A
// nil factory selects the built-in mechanisms by credential name.
func (c *Conn) Authenticate(ctx context.Context, cred auth.Credential, factory auth.MechanismFactory) (*wire.CommandResult, error) {
	if factory == nil {
		factory = auth.NewMechanism
	}
	a, err := auth.NewAuthenticator(cred, factory, c, c.logger)
	if err != nil {
		return nil, err
	}

	fut := future.New[wire.CommandResult]()
	a.Authenticate(func(res *wire.CommandResult, err error) {
		if err != nil {
			fut.Settle(nil, err)
			return
		}
		fut.Settle(res, nil)
	})

	res, err := fut.Await(ctx)
	if err != nil {
		return nil, unwrapExecution(err)
	}
	return res, nil
}

// Ping checks connectivity, blocking until the server replies or ctx
// expires.
func (c *Conn) Ping(ctx context.Context) error {
	if _, err := c.Submit("admin", wire.NewPing()).Await(ctx); err != nil {
		return unwrapExecution(err)
	}
	return nil
}

// Close tears down the connection and fails every pending submission
// with ErrConnClosed.
func (c *Conn) Close() error {
	c.fail(ErrConnClosed)
	return c.nc.Close()
}

// nextID returns the next request id, skipping the reserved 0.
func (c *Conn) nextID() uint32 {
	for {
		if id := c.nextRequestID.Add(1); id != 0 {
			return id
		}
	}
}

// readLoop decodes server replies and settles the matching pending
// future. It exits when the underlying stream fails or closes.
func (c *Conn) readLoop(fr *FrameReader) {
	for {
		frame, err := fr.ReadFrame()
		if err != nil {
			c.fail(fmt.Errorf("%w: %v", ErrConnClosed, err))
			return
		}

		rep, err := wire.DecodeReply(frame)
		if err != nil {
			if c.logger != nil {
				c.logger.Warn("dropping undecodable reply", "connId", c.id, "error", err)
			}
			continue
		}

		c.mu.Lock()
		fut, pending := c.pending[rep.RequestID]
		delete(c.pending, rep.RequestID)
		c.mu.Unlock()

		if !pending {
			if c.logger != nil {
				c.logger.Debug("dropping reply with no pending request",
					"connId", c.id, "requestId", rep.RequestID)
			}
			continue
		}

		var result wire.CommandResult
		if err := wire.Unmarshal(rep.Body, &result); err != nil {
			fut.Settle(nil, fmt.Errorf("failed to decode result for request %d: %w", rep.RequestID, err))
			continue
		}

		// Settle can lose to a caller-side Cancel; that is fine, the
		// caller gave up on the result.
		if srvErr := result.AsError(); srvErr != nil {
			fut.Settle(nil, srvErr)
		} else {
			fut.Settle(&result, nil)
		}
	}
}

// fail marks the connection closed and fails all pending futures.
// Only the first call records the cause.
func (c *Conn) fail(cause error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.closeErr = cause
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.Debug("connection closed", "connId", c.id, "pending", len(pending), "cause", cause)
	}
	for _, fut := range pending {
		fut.Settle(nil, cause)
	}
}

// unwrapExecution strips the future's failure wrapper so callers see
// the original submission error.
func unwrapExecution(err error) error {
	var execErr *future.ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Cause
	}
	return err
}

// Compile-time interface satisfaction check.
var _ auth.Submitter = (*Conn)(nil)
