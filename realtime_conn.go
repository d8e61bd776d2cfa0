package authgate

import (
	"context"
	"net/url"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/gorilla/websocket"
)

// ConnState is the lifecycle state of a managed realtime connection.
type ConnState int

const (
	ConnStateIdle ConnState = iota
	ConnStateConnecting
	ConnStateConnected
	// ConnStateDisconnected is terminal: the manager will not dial again.
	ConnStateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case ConnStateConnecting:
		return "connecting"
	case ConnStateConnected:
		return "connected"
	case ConnStateDisconnected:
		return "disconnected"
	default:
		return "idle"
	}
}

// TokenSource yields a connect token. Called once per dial attempt, never
// cached: realtime tokens expire faster than a retry schedule can run.
type TokenSource interface {
	RealtimeToken(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to the TokenSource interface.
type TokenSourceFunc func(ctx context.Context) (string, error)

func (f TokenSourceFunc) RealtimeToken(ctx context.Context) (string, error) {
	return f(ctx)
}

// SocketConn is the subset of the websocket connection the manager owns.
type SocketConn interface {
	Close() error
}

// DialFunc opens the realtime connection with the given token.
type DialFunc func(ctx context.Context, token string) (SocketConn, error)

// WebsocketDial builds a DialFunc over gorilla's dialer, carrying the token
// in the named query parameter.
func WebsocketDial(endpoint, tokenParam string) DialFunc {
	if tokenParam == "" {
		tokenParam = "token"
	}

	return func(ctx context.Context, token string) (SocketConn, error) {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid realtime endpoint")
		}

		q := u.Query()
		q.Set(tokenParam, token)
		u.RawQuery = q.Encode()

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
		if err != nil {
			return nil, err
		}

		return conn, nil
	}
}

// ConnManager dials and owns one realtime connection. Each attempt fetches a
// fresh token from the source; retries back off exponentially up to a bound,
// and once the budget is spent the manager parks in the terminal
// disconnected state.
type ConnManager struct {
	mu    sync.Mutex
	state ConnState
	conn  SocketConn

	tokens TokenSource
	dial   DialFunc
	logger Logger

	initialBackoff time.Duration
	maxBackoff     time.Duration
	maxAttempts    int
}

type ConnManagerOption func(*ConnManager)

func WithConnLogger(logger Logger) ConnManagerOption {
	return func(m *ConnManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithConnBackoff(initial, max time.Duration) ConnManagerOption {
	return func(m *ConnManager) {
		if initial > 0 {
			m.initialBackoff = initial
		}
		if max > 0 {
			m.maxBackoff = max
		}
	}
}

func WithConnMaxAttempts(attempts int) ConnManagerOption {
	return func(m *ConnManager) {
		if attempts > 0 {
			m.maxAttempts = attempts
		}
	}
}

func NewConnManager(tokens TokenSource, dial DialFunc, opts ...ConnManagerOption) (*ConnManager, error) {
	if tokens == nil {
		return nil, goerrors.New("conn manager requires a token source", goerrors.CategoryBadInput)
	}
	if dial == nil {
		return nil, goerrors.New("conn manager requires a dial function", goerrors.CategoryBadInput)
	}

	m := &ConnManager{
		state:          ConnStateIdle,
		tokens:         tokens,
		dial:           dial,
		logger:         defLogger{},
		initialBackoff: 500 * time.Millisecond,
		maxBackoff:     30 * time.Second,
		maxAttempts:    5,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

func (m *ConnManager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *ConnManager) IsConnected() bool {
	return m.State() == ConnStateConnected
}

// Connect dials until connected, the retry budget runs out, or the context
// is cancelled. Safe to call once; after a terminal disconnect it refuses.
func (m *ConnManager) Connect(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case ConnStateConnected:
		m.mu.Unlock()
		return nil
	case ConnStateConnecting:
		m.mu.Unlock()
		return goerrors.New("connection attempt already in progress", goerrors.CategoryConflict)
	case ConnStateDisconnected:
		m.mu.Unlock()
		return goerrors.New("connection manager is disconnected", goerrors.CategoryOperation)
	}
	m.state = ConnStateConnecting
	m.mu.Unlock()

	backoff := m.initialBackoff
	var lastErr error

	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			m.park()
			return err
		}

		token, err := m.tokens.RealtimeToken(ctx)
		if err != nil {
			lastErr = err
			m.logger.Warn("realtime token fetch failed on attempt %d: %v", attempt, err)
		} else {
			conn, err := m.dial(ctx, token)
			if err == nil {
				m.mu.Lock()
				m.conn = conn
				m.state = ConnStateConnected
				m.mu.Unlock()
				return nil
			}

			lastErr = err
			m.logger.Warn("realtime dial failed on attempt %d: %v", attempt, err)
		}

		if attempt == m.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			m.park()
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > m.maxBackoff {
			backoff = m.maxBackoff
		}
	}

	m.park()

	return goerrors.Wrap(lastErr, goerrors.CategoryOperation, "realtime connection attempts exhausted").
		WithMetadata(map[string]any{"attempts": m.maxAttempts})
}

// Disconnect closes the connection and parks the manager for good.
func (m *ConnManager) Disconnect() error {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.state = ConnStateDisconnected
	m.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (m *ConnManager) park() {
	m.mu.Lock()
	m.state = ConnStateDisconnected
	m.mu.Unlock()
}
