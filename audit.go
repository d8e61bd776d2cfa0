package authgate

import (
	"context"
	"time"
)

// AuditEventType enumerates audited action categories.
type AuditEventType string

const (
	AuditEventLoginSuccess          AuditEventType = "auth.login.success"
	AuditEventLoginFailure          AuditEventType = "auth.login.failure"
	AuditEventImpersonationSuccess  AuditEventType = "auth.impersonation.success"
	AuditEventImpersonationFailure  AuditEventType = "auth.impersonation.failure"
	AuditEventUserRegistered        AuditEventType = "user.registered"
	AuditEventUserStatusChanged     AuditEventType = "user.status.changed"
	AuditEventPasswordResetRequest  AuditEventType = "auth.password.reset_requested"
	AuditEventPasswordResetSuccess  AuditEventType = "auth.password.reset"
	AuditEventRealtimeConnectOK     AuditEventType = "realtime.connect.accepted"
	AuditEventRealtimeConnectDenied AuditEventType = "realtime.connect.refused"
)

// Audit outcomes. Events describe completed actions; there is no "intent"
// outcome on purpose.
const (
	AuditOutcomeSuccess = "success"
	AuditOutcomeFailure = "failure"
)

// ActorRef identifies who or what performed an audited action.
type ActorRef struct {
	ID   string
	Type string
}

// AuditEvent is an append-only record of a completed action.
type AuditEvent struct {
	EventType  AuditEventType
	Actor      ActorRef
	UserID     string
	Outcome    string
	FromStatus UserStatus
	ToStatus   UserStatus
	Metadata   map[string]any
	OccurredAt time.Time
}

// AuditSink consumes audit events. Implementations append somewhere durable;
// they never update or delete.
type AuditSink interface {
	Record(ctx context.Context, event AuditEvent) error
}

// AuditSinkFunc adapts a function to the AuditSink interface.
type AuditSinkFunc func(ctx context.Context, event AuditEvent) error

// Record implements AuditSink.
func (f AuditSinkFunc) Record(ctx context.Context, event AuditEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopAuditSink struct{}

func (noopAuditSink) Record(context.Context, AuditEvent) error {
	return nil
}

func normalizeAuditSink(s AuditSink) AuditSink {
	if s == nil {
		return noopAuditSink{}
	}
	return s
}

// recordAuditEvent fills defaults and records best-effort: sink failures go
// to the logger, never to the caller.
func recordAuditEvent(ctx context.Context, sink AuditSink, logger Logger, event AuditEvent) {
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	if event.Outcome == "" {
		event.Outcome = AuditOutcomeSuccess
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	if event.Actor == (ActorRef{}) {
		if actor, ok := ActorFromContext(ctx); ok {
			event.Actor = actor
		} else {
			event.Actor = ActorRef{Type: "system"}
		}
	}

	if err := normalizeAuditSink(sink).Record(ctx, event); err != nil {
		normalizeLogger(logger).Warn("audit sink record error", "event", string(event.EventType), "error", err)
	}
}

// Operation is any context-bound unit of work eligible for audit wrapping.
type Operation[T any] func(ctx context.Context, msg T) error

// WithAudit binds an event name to an operation: the returned operation emits
// the event only after the wrapped one succeeds. Failures of the operation
// emit nothing; failures of the sink are logged and never propagated, so an
// audit outage cannot fail or roll back the operation it describes.
func WithAudit[T any](event AuditEventType, sink AuditSink, logger Logger, op Operation[T]) Operation[T] {
	sink = normalizeAuditSink(sink)
	logger = normalizeLogger(logger)

	return func(ctx context.Context, msg T) error {
		if err := op(ctx, msg); err != nil {
			return err
		}

		recordAuditEvent(ctx, sink, logger, AuditEvent{
			EventType: event,
			Outcome:   AuditOutcomeSuccess,
		})

		return nil
	}
}
