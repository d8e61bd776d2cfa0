package authgate_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	authgate "github.com/telar-labs/authgate"
)

func TestWithAudit(t *testing.T) {
	ctx := context.Background()

	t.Run("emits the event only after success", func(t *testing.T) {
		sink := &capturingSink{}

		op := authgate.WithAudit(authgate.AuditEventUserRegistered, sink, testLogger{},
			func(ctx context.Context, msg string) error {
				return nil
			})

		require.NoError(t, op(ctx, "payload"))
		require.Len(t, sink.events, 1)
		assert.Equal(t, authgate.AuditEventUserRegistered, sink.events[0].EventType)
		assert.Equal(t, authgate.AuditOutcomeSuccess, sink.events[0].Outcome)
		assert.False(t, sink.events[0].OccurredAt.IsZero())
	})

	t.Run("a failed operation emits nothing", func(t *testing.T) {
		sink := &capturingSink{}
		opErr := errors.New("boom")

		op := authgate.WithAudit(authgate.AuditEventUserRegistered, sink, testLogger{},
			func(ctx context.Context, msg string) error {
				return opErr
			})

		assert.ErrorIs(t, op(ctx, "payload"), opErr)
		assert.Empty(t, sink.events)
	})

	t.Run("a failing sink never fails the operation", func(t *testing.T) {
		sink := authgate.AuditSinkFunc(func(ctx context.Context, event authgate.AuditEvent) error {
			return errors.New("sink is down")
		})

		op := authgate.WithAudit(authgate.AuditEventUserRegistered, sink, testLogger{},
			func(ctx context.Context, msg string) error {
				return nil
			})

		assert.NoError(t, op(ctx, "payload"))
	})

	t.Run("nil sink is a noop", func(t *testing.T) {
		op := authgate.WithAudit[struct{}](authgate.AuditEventUserRegistered, nil, nil,
			func(ctx context.Context, msg struct{}) error {
				return nil
			})

		assert.NoError(t, op(ctx, struct{}{}))
	})
}

func TestWithAudit_ActorDefaults(t *testing.T) {
	noop := func(ctx context.Context, msg string) error { return nil }

	t.Run("actor comes from the context when present", func(t *testing.T) {
		sink := &capturingSink{}
		actor := authgate.ActorRef{ID: "admin-7", Type: "admin"}
		ctx := authgate.WithActorContext(context.Background(), actor)

		op := authgate.WithAudit(authgate.AuditEventUserStatusChanged, sink, testLogger{}, noop)
		require.NoError(t, op(ctx, "x"))

		require.Len(t, sink.events, 1)
		assert.Equal(t, actor, sink.events[0].Actor)
	})

	t.Run("falls back to the system actor", func(t *testing.T) {
		sink := &capturingSink{}

		op := authgate.WithAudit(authgate.AuditEventUserStatusChanged, sink, testLogger{}, noop)
		require.NoError(t, op(context.Background(), "x"))

		require.Len(t, sink.events, 1)
		assert.Equal(t, authgate.ActorRef{Type: "system"}, sink.events[0].Actor)
	})
}

func TestAuditSinkFunc(t *testing.T) {
	var got authgate.AuditEvent
	sink := authgate.AuditSinkFunc(func(ctx context.Context, event authgate.AuditEvent) error {
		got = event
		return nil
	})

	evt := authgate.AuditEvent{EventType: authgate.AuditEventLoginSuccess, UserID: "u1"}
	require.NoError(t, sink.Record(context.Background(), evt))
	assert.Equal(t, evt, got)

	var nilSink authgate.AuditSinkFunc
	assert.NoError(t, nilSink.Record(context.Background(), evt))
}
