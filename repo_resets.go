package authgate

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// PasswordResets stores single-use reset tokens. The record's uuid primary
// key doubles as the opaque token handed to the user.
type PasswordResets interface {
	repository.Repository[*PasswordReset]

	CreateForUser(ctx context.Context, user *User) (*PasswordReset, error)
	CreateForUserTx(ctx context.Context, tx bun.IDB, user *User) (*PasswordReset, error)

	ConsumeTx(ctx context.Context, tx bun.IDB, token uuid.UUID) (*PasswordReset, error)
}

type passwordResets struct {
	repository.Repository[*PasswordReset]
	db *bun.DB
}

var _ PasswordResets = (*passwordResets)(nil)

func NewPasswordResetsRepository(db *bun.DB) PasswordResets {
	handlers := repository.ModelHandlers[*PasswordReset]{
		NewRecord: func() *PasswordReset {
			return &PasswordReset{}
		},
		GetID: func(record *PasswordReset) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *PasswordReset, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "email"
		},
	}

	return &passwordResets{
		Repository: repository.NewRepository(db, handlers),
		db:         db,
	}
}

func (r *passwordResets) CreateForUser(ctx context.Context, user *User) (*PasswordReset, error) {
	return r.CreateForUserTx(ctx, r.db, user)
}

// CreateForUserTx issues a fresh reset token and retires any token still live
// for the same user, so at most one token can finalize a reset.
func (r *passwordResets) CreateForUserTx(ctx context.Context, tx bun.IDB, user *User) (*PasswordReset, error) {
	_, err := tx.NewUpdate().
		Model((*PasswordReset)(nil)).
		Set("status = ?", ResetExpiredStatus).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("user_id = ?", user.ID).
		Where("status = ?", ResetRequestedStatus).
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(ResetTokenTTL)
	record := &PasswordReset{
		ID:        uuid.New(),
		UserID:    &user.ID,
		Email:     user.Email,
		Status:    ResetRequestedStatus,
		ExpiresAt: &expiresAt,
	}

	return r.Repository.CreateTx(ctx, tx, record)
}

// ConsumeTx marks a token as used, exactly once. The caller runs it inside a
// transaction; the conditional UPDATE is what makes concurrent finalize
// attempts lose cleanly instead of double-spending.
func (r *passwordResets) ConsumeTx(ctx context.Context, tx bun.IDB, token uuid.UUID) (*PasswordReset, error) {
	record := &PasswordReset{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", token).
		Where("?TableAlias.deleted_at IS NULL").
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrTokenNotFound.Clone().WithMetadata(map[string]any{
				"token": token.String(),
			})
		}
		return nil, err
	}

	switch record.Status {
	case ResetRequestedStatus:
	case ResetChangedStatus:
		return nil, ErrTokenAlreadyUsed.Clone()
	default:
		return nil, ErrTokenExpired.Clone()
	}

	now := time.Now()
	if record.ExpiresAt == nil || now.After(*record.ExpiresAt) {
		return nil, ErrTokenExpired.Clone()
	}

	res, err := tx.NewUpdate().
		Model((*PasswordReset)(nil)).
		Set("status = ?", ResetChangedStatus).
		Set("reseted_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", token).
		Where("status = ?", ResetRequestedStatus).
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	// 0 rows means another transaction consumed the token between our read
	// and this write.
	if affected == 0 {
		return nil, ErrTokenAlreadyUsed.Clone()
	}

	record.Status = ResetChangedStatus
	record.ResetedAt = &now

	return record, nil
}
