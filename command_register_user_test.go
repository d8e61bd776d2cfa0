package authgate_test

import (
	"context"
	"database/sql"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	authgate "github.com/telar-labs/authgate"
	"github.com/uptrace/bun"
)

func TestRegisterUserHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("successful registration", func(t *testing.T) {
		repo := new(MockRepositoryManager)
		users := new(MockUsers)
		sink := &capturingSink{}

		repo.On("Users").Return(users)
		repo.On("RunInTx", mock.Anything, (*sql.TxOptions)(nil), mock.Anything).
			Return(nil).
			Run(func(args mock.Arguments) {
				fn := args.Get(2).(func(context.Context, bun.Tx) error)
				var tx bun.Tx
				require.NoError(t, fn(args.Get(0).(context.Context), tx))
			}).Once()

		created := &authgate.User{
			ID:       uuid.New(),
			Email:    "new@example.com",
			Username: "new",
			Role:     authgate.RoleAdmin,
		}
		users.On("RegisterTx", mock.Anything, mock.Anything, mock.MatchedBy(func(u *authgate.User) bool {
			return u.Email == "new@example.com" &&
				u.Username == "new" &&
				u.Role == authgate.RoleAdmin &&
				u.PasswordHash != "" &&
				u.PasswordHash != "password123"
		})).Return(created, nil).Once()

		handler := authgate.NewRegisterUserHandler(repo).
			WithLogger(testLogger{}).
			WithAuditSink(sink)

		err := handler.Execute(ctx, authgate.RegisterUserMessage{
			Email:    "New@Example.com",
			Role:     authgate.RoleAdmin,
			Password: "password123",
		})

		require.NoError(t, err)
		users.AssertExpectations(t)

		require.Len(t, sink.events, 1)
		assert.Equal(t, authgate.AuditEventUserRegistered, sink.events[0].EventType)
		assert.Equal(t, "new@example.com", sink.events[0].Metadata["email"])
	})

	t.Run("duplicate email", func(t *testing.T) {
		repo := new(MockRepositoryManager)
		users := new(MockUsers)
		sink := &capturingSink{}

		dupErr := authgate.ErrDuplicateEmail.Clone()

		repo.On("Users").Return(users)
		repo.On("RunInTx", mock.Anything, (*sql.TxOptions)(nil), mock.Anything).
			Return(dupErr).
			Run(func(args mock.Arguments) {
				fn := args.Get(2).(func(context.Context, bun.Tx) error)
				var tx bun.Tx
				assert.Error(t, fn(args.Get(0).(context.Context), tx))
			}).Once()

		users.On("RegisterTx", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, dupErr).Once()

		handler := authgate.NewRegisterUserHandler(repo).
			WithLogger(testLogger{}).
			WithAuditSink(sink)

		err := handler.Execute(ctx, authgate.RegisterUserMessage{
			Email:    "taken@example.com",
			Password: "password123",
		})

		require.Error(t, err)
		assert.True(t, authgate.IsDuplicateEmailError(err))
		assert.Empty(t, sink.events)
	})

	t.Run("invalid role rejected before the store is touched", func(t *testing.T) {
		repo := new(MockRepositoryManager)
		users := new(MockUsers)

		var txErr error
		repo.On("Users").Return(users)
		repo.On("RunInTx", mock.Anything, (*sql.TxOptions)(nil), mock.Anything).
			Return(nil).
			Run(func(args mock.Arguments) {
				fn := args.Get(2).(func(context.Context, bun.Tx) error)
				var tx bun.Tx
				txErr = fn(args.Get(0).(context.Context), tx)
			}).Once()

		handler := authgate.NewRegisterUserHandler(repo).WithLogger(testLogger{})

		_ = handler.Execute(ctx, authgate.RegisterUserMessage{
			Email:    "new@example.com",
			Role:     "superuser",
			Password: "password123",
		})

		require.Error(t, txErr)
		var richErr *goerrors.Error
		require.ErrorAs(t, txErr, &richErr)
		assert.Equal(t, goerrors.CategoryBadInput, richErr.Category)
		users.AssertNotCalled(t, "RegisterTx", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("username defaults to the email local part", func(t *testing.T) {
		repo := new(MockRepositoryManager)
		users := new(MockUsers)

		repo.On("Users").Return(users)
		repo.On("RunInTx", mock.Anything, (*sql.TxOptions)(nil), mock.Anything).
			Return(nil).
			Run(func(args mock.Arguments) {
				fn := args.Get(2).(func(context.Context, bun.Tx) error)
				var tx bun.Tx
				require.NoError(t, fn(args.Get(0).(context.Context), tx))
			}).Once()

		users.On("RegisterTx", mock.Anything, mock.Anything, mock.MatchedBy(func(u *authgate.User) bool {
			return u.Username == "someone"
		})).Return(&authgate.User{ID: uuid.New(), Email: "someone@example.com", Username: "someone"}, nil).Once()

		handler := authgate.NewRegisterUserHandler(repo).WithLogger(testLogger{})

		err := handler.Execute(ctx, authgate.RegisterUserMessage{
			Email:    "someone@example.com",
			Password: "password123",
		})

		require.NoError(t, err)
		users.AssertExpectations(t)
	})

	t.Run("cancelled context", func(t *testing.T) {
		repo := new(MockRepositoryManager)
		handler := authgate.NewRegisterUserHandler(repo).WithLogger(testLogger{})

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		err := handler.Execute(cancelled, authgate.RegisterUserMessage{
			Email:    "new@example.com",
			Password: "password123",
		})

		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
