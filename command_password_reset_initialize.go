package authgate

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type InitializePasswordResetMessage struct {
	Stage      string `json:"stage"`
	Email      string `json:"email"`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset" }

type InitializePasswordResetResponse struct {
	Reset   *PasswordReset
	Stage   string
	Success bool
}

// InitializePasswordResetHandler issues a reset token for a known email and
// reports the same outcome for unknown emails, so the endpoint cannot be
// used to enumerate accounts.
type InitializePasswordResetHandler struct {
	repo   RepositoryManager
	mailer Mailer
	audit  AuditSink
	logger Logger
}

func NewInitializePasswordResetHandler(repo RepositoryManager) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:   repo,
		mailer: stdoutMailer{},
		audit:  noopAuditSink{},
		logger: defLogger{},
	}
}

func (h *InitializePasswordResetHandler) WithMailer(m Mailer) *InitializePasswordResetHandler {
	h.mailer = normalizeMailer(m)
	return h
}

func (h *InitializePasswordResetHandler) WithAuditSink(sink AuditSink) *InitializePasswordResetHandler {
	h.audit = normalizeAuditSink(sink)
	return h
}

func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	resp := &InitializePasswordResetResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Stage != ResetInit {
		return goerrors.New("unknown or invalid stage for password reset initialization", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"stage": event.Stage})
	}

	var user *User

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = h.repo.Users().GetByEmailTx(ctx, tx, event.Email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				// same stage as the happy path, unknown emails stay unknown
				resp.Stage = AccountVerification
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
		}

		reset, err := h.repo.PasswordResets().CreateForUserTx(ctx, tx, user)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create password reset record")
		}

		resp.Reset = reset
		resp.Stage = AccountVerification
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	if resp.Reset != nil {
		if err := h.mailer.SendResetPasswordEmail(ctx, resp.Reset.Email, resp.Reset.ID.String()); err != nil {
			h.logger.Error("failed to send password reset email: %v", err)
		}

		recordAuditEvent(ctx, h.audit, h.logger, AuditEvent{
			EventType: AuditEventPasswordResetRequest,
			UserID:    user.ID.String(),
			Outcome:   AuditOutcomeSuccess,
			Metadata: map[string]any{
				"password_reset_id": resp.Reset.ID.String(),
			},
		})
	}

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
