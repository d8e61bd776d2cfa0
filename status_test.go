package authgate_test

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	authgate "github.com/telar-labs/authgate"
)

type stubStatusUpdater struct {
	calls []authgate.UserStatus
	err   error
}

func (s *stubStatusUpdater) UpdateStatus(ctx context.Context, id uuid.UUID, status authgate.UserStatus) (*authgate.User, error) {
	s.calls = append(s.calls, status)
	if s.err != nil {
		return nil, s.err
	}
	return &authgate.User{ID: id, Status: status}, nil
}

func TestLifecycleManager_Transition(t *testing.T) {
	ctx := context.Background()
	actor := authgate.ActorRef{ID: "admin-1", Type: "admin"}

	t.Run("active to suspended", func(t *testing.T) {
		store := &stubStatusUpdater{}
		sink := &capturingSink{}
		manager := authgate.NewLifecycleManager(store).
			WithAuditSink(sink).
			WithLogger(testLogger{})

		user := &authgate.User{ID: uuid.New(), Status: authgate.UserStatusActive}

		updated, err := manager.Suspend(ctx, actor, user)
		require.NoError(t, err)
		assert.Equal(t, authgate.UserStatusSuspended, updated.Status)
		assert.Equal(t, []authgate.UserStatus{authgate.UserStatusSuspended}, store.calls)

		require.Len(t, sink.events, 1)
		evt := sink.events[0]
		assert.Equal(t, authgate.AuditEventUserStatusChanged, evt.EventType)
		assert.Equal(t, actor, evt.Actor)
		assert.Equal(t, user.ID.String(), evt.UserID)
		assert.Equal(t, authgate.UserStatusActive, evt.FromStatus)
		assert.Equal(t, authgate.UserStatusSuspended, evt.ToStatus)
		assert.False(t, evt.OccurredAt.IsZero())
	})

	t.Run("suspended back to active", func(t *testing.T) {
		store := &stubStatusUpdater{}
		manager := authgate.NewLifecycleManager(store).WithLogger(testLogger{})

		user := &authgate.User{ID: uuid.New(), Status: authgate.UserStatusSuspended}

		updated, err := manager.Reinstate(ctx, actor, user)
		require.NoError(t, err)
		assert.Equal(t, authgate.UserStatusActive, updated.Status)
	})

	t.Run("disabled is terminal", func(t *testing.T) {
		store := &stubStatusUpdater{}
		manager := authgate.NewLifecycleManager(store).WithLogger(testLogger{})

		user := &authgate.User{ID: uuid.New(), Status: authgate.UserStatusDisabled}

		_, err := manager.Reinstate(ctx, actor, user)
		require.Error(t, err)

		var richErr *goerrors.Error
		require.True(t, goerrors.As(err, &richErr))
		assert.Equal(t, "INVALID_STATUS_TRANSITION", richErr.TextCode)
		assert.Empty(t, store.calls)
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		store := &stubStatusUpdater{}
		sink := &capturingSink{}
		manager := authgate.NewLifecycleManager(store).
			WithAuditSink(sink).
			WithLogger(testLogger{})

		user := &authgate.User{ID: uuid.New(), Status: authgate.UserStatusActive}

		updated, err := manager.Transition(ctx, actor, user, authgate.UserStatusActive)
		require.NoError(t, err)
		assert.Same(t, user, updated)
		assert.Empty(t, store.calls)
		assert.Empty(t, sink.events)
	})

	t.Run("empty status is treated as active", func(t *testing.T) {
		store := &stubStatusUpdater{}
		manager := authgate.NewLifecycleManager(store).WithLogger(testLogger{})

		user := &authgate.User{ID: uuid.New()}

		updated, err := manager.Suspend(ctx, actor, user)
		require.NoError(t, err)
		assert.Equal(t, authgate.UserStatusSuspended, updated.Status)
	})

	t.Run("nil user is rejected", func(t *testing.T) {
		manager := authgate.NewLifecycleManager(&stubStatusUpdater{}).WithLogger(testLogger{})

		_, err := manager.Suspend(ctx, actor, nil)
		assert.Error(t, err)
	})
}
