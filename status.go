package authgate

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// ErrInvalidStatusTransition is returned for lifecycle moves the table below
// does not allow.
var ErrInvalidStatusTransition = goerrors.New("invalid account status transition", goerrors.CategoryValidation).
	WithTextCode("INVALID_STATUS_TRANSITION").
	WithCode(goerrors.CodeBadRequest)

// statusAuthError maps a lifecycle status to the login-blocking error for it,
// or nil when the status allows authentication.
func statusAuthError(status UserStatus) error {
	switch status {
	case "", UserStatusActive:
		return nil
	case UserStatusSuspended:
		return ErrAccountSuspended
	case UserStatusDisabled:
		return ErrAccountDisabled
	default:
		return ErrAccountDisabled
	}
}

// allowedStatusTransitions is the lifecycle table. Disabled is terminal.
var allowedStatusTransitions = map[UserStatus]map[UserStatus]struct{}{
	UserStatusActive: {
		UserStatusSuspended: {},
		UserStatusDisabled:  {},
	},
	UserStatusSuspended: {
		UserStatusActive:   {},
		UserStatusDisabled: {},
	},
}

// StatusUpdater is the persistence seam for lifecycle transitions.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status UserStatus) (*User, error)
}

// LifecycleManager applies account status transitions and publishes audit
// events for them.
type LifecycleManager struct {
	store  StatusUpdater
	audit  AuditSink
	logger Logger
	now    func() time.Time
}

// NewLifecycleManager creates a LifecycleManager over the given store.
func NewLifecycleManager(store StatusUpdater) *LifecycleManager {
	return &LifecycleManager{
		store:  store,
		audit:  noopAuditSink{},
		logger: defLogger{},
		now:    time.Now,
	}
}

// WithAuditSink sets the sink lifecycle events are published to.
func (m *LifecycleManager) WithAuditSink(sink AuditSink) *LifecycleManager {
	m.audit = normalizeAuditSink(sink)
	return m
}

// WithLogger overrides the manager's logger.
func (m *LifecycleManager) WithLogger(logger Logger) *LifecycleManager {
	m.logger = normalizeLogger(logger)
	return m
}

// Transition moves the user to the target status if the lifecycle table
// allows it, persists the change, then emits a status-changed audit event.
func (m *LifecycleManager) Transition(ctx context.Context, actor ActorRef, user *User, target UserStatus) (*User, error) {
	if user == nil {
		return nil, goerrors.New("user is required", goerrors.CategoryBadInput)
	}

	user.EnsureStatus()
	from := user.Status

	if from == target {
		return user, nil
	}

	if _, ok := allowedStatusTransitions[from][target]; !ok {
		return nil, ErrInvalidStatusTransition.Clone().WithMetadata(map[string]any{
			"from": from,
			"to":   target,
		})
	}

	updated, err := m.store.UpdateStatus(ctx, user.ID, target)
	if err != nil {
		return nil, err
	}

	recordAuditEvent(ctx, m.audit, m.logger, AuditEvent{
		EventType:  AuditEventUserStatusChanged,
		Actor:      actor,
		UserID:     user.ID.String(),
		FromStatus: from,
		ToStatus:   target,
		OccurredAt: m.now(),
	})

	return updated, nil
}

// Suspend moves the user to suspended.
func (m *LifecycleManager) Suspend(ctx context.Context, actor ActorRef, user *User) (*User, error) {
	return m.Transition(ctx, actor, user, UserStatusSuspended)
}

// Reinstate moves the user back to active.
func (m *LifecycleManager) Reinstate(ctx context.Context, actor ActorRef, user *User) (*User, error) {
	return m.Transition(ctx, actor, user, UserStatusActive)
}
