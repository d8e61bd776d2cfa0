package authgate

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type FinalizePasswordResetMessage struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (p FinalizePasswordResetMessage) Type() string { return "user.password_reset_finalize" }

// FinalizePasswordResetHandler consumes a reset token and swaps the password
// in one transaction. A token finalizes at most one reset, even under
// concurrent attempts.
type FinalizePasswordResetHandler struct {
	repo   RepositoryManager
	audit  AuditSink
	logger Logger
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(repo RepositoryManager) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		repo:   repo,
		audit:  noopAuditSink{},
		logger: defLogger{},
	}
}

// WithAuditSink sets the sink used to emit password reset events.
func (h *FinalizePasswordResetHandler) WithAuditSink(sink AuditSink) *FinalizePasswordResetHandler {
	h.audit = normalizeAuditSink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	var reset *PasswordReset

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	token, err := uuid.Parse(event.Token)
	if err != nil {
		return ErrTokenNotFound.Clone()
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error

		// Consume before touching the password so a spent token never
		// reaches the hash swap.
		reset, err = h.repo.PasswordResets().ConsumeTx(ctx, tx, token)
		if err != nil {
			return err
		}

		if reset.UserID == nil {
			return goerrors.New("password reset record is not associated with a user", goerrors.CategoryInternal)
		}

		passwordHash, err := HashPassword(event.Password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
		}

		if err := h.repo.Users().ResetPasswordTx(ctx, tx, *reset.UserID, passwordHash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user password in database")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password reset")
	}

	h.recordAudit(ctx, reset)

	return nil
}

func (h *FinalizePasswordResetHandler) recordAudit(ctx context.Context, reset *PasswordReset) {
	if reset == nil || reset.UserID == nil {
		return
	}

	recordAuditEvent(ctx, h.audit, h.logger, AuditEvent{
		EventType: AuditEventPasswordResetSuccess,
		Actor: ActorRef{
			ID:   reset.UserID.String(),
			Type: "user",
		},
		UserID:  reset.UserID.String(),
		Outcome: AuditOutcomeSuccess,
		Metadata: map[string]any{
			"password_reset_id": reset.ID.String(),
		},
	})
}
