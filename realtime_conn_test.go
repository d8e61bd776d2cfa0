package authgate_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	authgate "github.com/telar-labs/authgate"
)

type fakeSocketConn struct {
	closed bool
}

func (c *fakeSocketConn) Close() error {
	c.closed = true
	return nil
}

// countingTokenSource hands out a distinct token per call so tests can see
// that every dial attempt carries a fresh one.
type countingTokenSource struct {
	calls int
}

func (s *countingTokenSource) RealtimeToken(ctx context.Context) (string, error) {
	s.calls++
	return fmt.Sprintf("token-%d", s.calls), nil
}

func TestConnManagerConnect(t *testing.T) {
	ctx := context.Background()

	t.Run("retries with a fresh token each attempt", func(t *testing.T) {
		tokens := &countingTokenSource{}
		conn := &fakeSocketConn{}

		var dialed []string
		dial := authgate.DialFunc(func(ctx context.Context, token string) (authgate.SocketConn, error) {
			dialed = append(dialed, token)
			if len(dialed) < 3 {
				return nil, errors.New("connection refused")
			}
			return conn, nil
		})

		m, err := authgate.NewConnManager(tokens, dial,
			authgate.WithConnLogger(testLogger{}),
			authgate.WithConnBackoff(time.Millisecond, 2*time.Millisecond))
		require.NoError(t, err)

		require.NoError(t, m.Connect(ctx))

		assert.Equal(t, authgate.ConnStateConnected, m.State())
		assert.True(t, m.IsConnected())
		assert.Equal(t, []string{"token-1", "token-2", "token-3"}, dialed)
	})

	t.Run("connect when already connected is a no-op", func(t *testing.T) {
		tokens := &countingTokenSource{}
		dial := authgate.DialFunc(func(ctx context.Context, token string) (authgate.SocketConn, error) {
			return &fakeSocketConn{}, nil
		})

		m, err := authgate.NewConnManager(tokens, dial, authgate.WithConnLogger(testLogger{}))
		require.NoError(t, err)

		require.NoError(t, m.Connect(ctx))
		require.NoError(t, m.Connect(ctx))

		assert.Equal(t, 1, tokens.calls)
	})

	t.Run("retry budget exhaustion is terminal", func(t *testing.T) {
		tokens := &countingTokenSource{}
		dial := authgate.DialFunc(func(ctx context.Context, token string) (authgate.SocketConn, error) {
			return nil, errors.New("connection refused")
		})

		m, err := authgate.NewConnManager(tokens, dial,
			authgate.WithConnLogger(testLogger{}),
			authgate.WithConnBackoff(time.Millisecond, 2*time.Millisecond),
			authgate.WithConnMaxAttempts(2))
		require.NoError(t, err)

		err = m.Connect(ctx)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "realtime connection attempts exhausted")
		assert.Equal(t, 2, tokens.calls)
		assert.Equal(t, authgate.ConnStateDisconnected, m.State())

		// parked managers refuse to dial again
		err = m.Connect(ctx)
		require.Error(t, err)
		assert.Equal(t, 2, tokens.calls)
	})

	t.Run("context cancellation during backoff", func(t *testing.T) {
		tokens := &countingTokenSource{}
		dial := authgate.DialFunc(func(ctx context.Context, token string) (authgate.SocketConn, error) {
			return nil, errors.New("connection refused")
		})

		m, err := authgate.NewConnManager(tokens, dial,
			authgate.WithConnLogger(testLogger{}),
			authgate.WithConnBackoff(time.Hour, time.Hour))
		require.NoError(t, err)

		cancelCtx, cancel := context.WithCancel(ctx)
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		err = m.Connect(cancelCtx)

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, authgate.ConnStateDisconnected, m.State())
	})

	t.Run("token source failure counts as an attempt", func(t *testing.T) {
		tokenErr := errors.New("issuer unavailable")
		tokens := authgate.TokenSourceFunc(func(ctx context.Context) (string, error) {
			return "", tokenErr
		})

		dialed := false
		dial := authgate.DialFunc(func(ctx context.Context, token string) (authgate.SocketConn, error) {
			dialed = true
			return &fakeSocketConn{}, nil
		})

		m, err := authgate.NewConnManager(tokens, dial,
			authgate.WithConnLogger(testLogger{}),
			authgate.WithConnBackoff(time.Millisecond, time.Millisecond),
			authgate.WithConnMaxAttempts(2))
		require.NoError(t, err)

		err = m.Connect(ctx)

		require.Error(t, err)
		assert.ErrorIs(t, err, tokenErr)
		assert.False(t, dialed)
	})
}

func TestConnManagerDisconnect(t *testing.T) {
	ctx := context.Background()

	tokens := &countingTokenSource{}
	conn := &fakeSocketConn{}
	dial := authgate.DialFunc(func(ctx context.Context, token string) (authgate.SocketConn, error) {
		return conn, nil
	})

	m, err := authgate.NewConnManager(tokens, dial, authgate.WithConnLogger(testLogger{}))
	require.NoError(t, err)

	require.NoError(t, m.Connect(ctx))
	require.NoError(t, m.Disconnect())

	assert.True(t, conn.closed)
	assert.Equal(t, authgate.ConnStateDisconnected, m.State())

	// terminal: no redial after an explicit disconnect
	assert.Error(t, m.Connect(ctx))
}

func TestNewConnManagerValidation(t *testing.T) {
	dial := authgate.DialFunc(func(ctx context.Context, token string) (authgate.SocketConn, error) {
		return &fakeSocketConn{}, nil
	})

	t.Run("missing token source", func(t *testing.T) {
		m, err := authgate.NewConnManager(nil, dial)
		assert.Nil(t, m)
		assert.Error(t, err)
	})

	t.Run("missing dial func", func(t *testing.T) {
		m, err := authgate.NewConnManager(&countingTokenSource{}, nil)
		assert.Nil(t, m)
		assert.Error(t, err)
	})
}

func TestConnStateString(t *testing.T) {
	assert.Equal(t, "idle", authgate.ConnStateIdle.String())
	assert.Equal(t, "connecting", authgate.ConnStateConnecting.String())
	assert.Equal(t, "connected", authgate.ConnStateConnected.String())
	assert.Equal(t, "disconnected", authgate.ConnStateDisconnected.String())
}
