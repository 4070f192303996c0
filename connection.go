package dbtclickhouse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ConnState is the lifecycle state of a Connection.
type ConnState int

const (
	// StateInit is the state before the first Open.
	StateInit ConnState = iota
	// StateOpen means the connection holds a live session.
	StateOpen
	// StateFail means the last Open attempt failed.
	StateFail
	// StateClosed means the session has been released. A closed connection
	// may be re-opened.
	StateClosed
)

// String returns the state name.
func (s ConnState) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateOpen:
		return "open"
	case StateFail:
		return "fail"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// session is the subset of the native driver connection the adapter uses.
// Production code passes a real driver.Conn; tests inject a mock.
type session interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, query string, args ...any) (driver.Rows, error)
	Exec(ctx context.Context, query string, args ...any) error
	Close() error
}

// dialFunc opens a native session from validated credentials.
type dialFunc func(creds *Credentials) (session, error)

// dialNative dials the server with the native protocol driver.
func dialNative(creds *Credentials) (session, error) {
	return clickhouse.Open(creds.clientOptions())
}

// Connection wraps one native driver session and tracks its lifecycle state.
//
// A Connection belongs to one worker goroutine: no two statements may run on
// it concurrently. Cancel and Release are the exception and are safe to call
// from another goroutine.
type Connection struct {
	name   string
	creds  *Credentials
	logger *slog.Logger
	dial   dialFunc

	mu     sync.Mutex
	state  ConnState
	handle session
}

// ConnectionOption configures a Connection at construction.
type ConnectionOption func(*Connection)

// WithLogger injects the logger used for the connection's diagnostic output.
// Log lines are emitted at debug level and never change control flow.
func WithLogger(logger *slog.Logger) ConnectionOption {
	return func(c *Connection) {
		c.logger = logger
	}
}

// NewConnection creates a connection in StateInit. The credentials must have
// been validated; they are shared read-only and never mutated.
func NewConnection(name string, creds *Credentials, opts ...ConnectionOption) *Connection {
	c := &Connection{
		name:   name,
		creds:  creds,
		logger: slog.Default(),
		dial:   dialNative,
		state:  StateInit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the connection's identifier.
func (c *Connection) Name() string {
	return c.name
}

// Credentials returns the credentials the connection was created with.
func (c *Connection) Credentials() *Credentials {
	return c.creds
}

// State returns the current lifecycle state.
func (c *Connection) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Open establishes the session. Opening an already-open connection is a
// side-effect-free no-op. On failure the connection moves to StateFail, any
// partial session is discarded, and ErrConnection carries the server's
// message.
func (c *Connection) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateOpen {
		c.logger.Debug("connection is already open, skipping open", "connection", c.name)
		return nil
	}

	handle, err := c.dial(c.creds)
	if err != nil {
		c.state = StateFail
		c.handle = nil
		c.logger.Debug("failed to open clickhouse connection", "connection", c.name, "error", err)
		return connectError(err)
	}

	// The native driver dials lazily. Ping forces the handshake, bounded by
	// the sync request timeout, so connect failures surface here rather
	// than on the first statement.
	pingCtx, cancel := context.WithTimeout(ctx, c.creds.syncRequestTimeout())
	defer cancel()
	if err := handle.Ping(pingCtx); err != nil {
		_ = handle.Close()
		c.state = StateFail
		c.handle = nil
		c.logger.Debug("failed to open clickhouse connection", "connection", c.name, "error", err)
		return connectError(err)
	}

	c.handle = handle
	c.state = StateOpen
	return nil
}

// Cancel forcibly disconnects the underlying session and moves the
// connection to StateClosed, so a later Open re-dials instead of trusting a
// dead handle. It is meant to be called from another goroutine to interrupt
// an in-flight statement: the blocked caller observes the disconnect as a
// failure surfaced through the error boundary.
func (c *Connection) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Debug("cancelling query", "connection", c.name)
	if err := c.releaseLocked(); err != nil {
		c.logger.Debug("failed to disconnect session", "connection", c.name, "error", err)
	}
	c.logger.Debug("cancelled query", "connection", c.name)
}

// Release closes the underlying session if one exists and moves the
// connection to StateClosed. It is safe to call repeatedly and safe to call
// when no session was ever established.
func (c *Connection) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.releaseLocked()
}

func (c *Connection) releaseLocked() error {
	var err error
	if c.handle != nil {
		err = c.handle.Close()
		c.handle = nil
	}
	c.state = StateClosed
	return err
}

// acquire returns the live session for statement execution. The mutex is not
// held during execution, so a concurrent Cancel can close the session out
// from under a blocked statement.
func (c *Connection) acquire() (session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen || c.handle == nil {
		return nil, fmt.Errorf("%w: connection %q (state %s)", ErrNotOpen, c.name, c.state)
	}
	return c.handle, nil
}

// withErrorBoundary runs op and translates its failure into the adapter's
// error taxonomy. Every failure path releases the connection, so a handle is
// left reusable only after a clean return.
func (c *Connection) withErrorBoundary(query string, op func() error) error {
	err := op()
	if err == nil {
		return nil
	}

	var ex *clickhouse.Exception
	if errors.As(err, &ex) {
		c.logger.Debug("clickhouse server error", "connection", c.name, "error", ex.Message)
		if relErr := c.Release(); relErr != nil {
			// Best effort: the release failure must not mask the
			// original server error.
			c.logger.Debug("failed to release connection", "connection", c.name, "error", relErr)
		}
		return fmt.Errorf("%w: %s", ErrQuery, strings.TrimSpace(ex.Message))
	}

	c.logger.Debug("error running SQL", "connection", c.name, "sql", truncateForLog(query))
	c.logger.Debug("rolling back transaction", "connection", c.name)
	if relErr := c.Release(); relErr != nil {
		c.logger.Debug("failed to release connection", "connection", c.name, "error", relErr)
	}
	if isAdapterError(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrRuntime, err)
}

// connectError shapes a dial or handshake failure into ErrConnection,
// preserving the server's message text.
func connectError(err error) error {
	var ex *clickhouse.Exception
	if errors.As(err, &ex) {
		return fmt.Errorf("%w: %s", ErrConnection, strings.TrimSpace(ex.Message))
	}
	return fmt.Errorf("%w: %s", ErrConnection, strings.TrimSpace(err.Error()))
}
