package authgate

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's global role.
type UserRole = string

const (
	// RoleGuest can only view public resources.
	RoleGuest UserRole = "guest"
	// RoleMember can view and edit.
	RoleMember UserRole = "member"
	// RoleAdmin can view, edit, and create.
	RoleAdmin UserRole = "admin"
	// RoleOwner can do everything, including delete.
	RoleOwner UserRole = "owner"
)

// UserStatus is the account lifecycle state.
type UserStatus = string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusDisabled  UserStatus = "disabled"
)

// User is the credential store's identity record.
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role           UserRole       `bun:"user_role,notnull" json:"user_role,omitempty"`
	Status         UserStatus     `bun:"status" json:"status,omitempty"`
	FirstName      string         `bun:"first_name" json:"first_name,omitempty"`
	LastName       string         `bun:"last_name" json:"last_name,omitempty"`
	Username       string         `bun:"username,notnull,unique" json:"username,omitempty"`
	Email          string         `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone          string         `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash   string         `bun:"password_hash" json:"password_hash,omitempty"`
	LoginAttempts  int            `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time     `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt     *time.Time     `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	SuspendedAt    *time.Time     `bun:"suspended_at,nullzero" json:"suspended_at,omitempty"`
	Metadata       map[string]any `bun:"metadata" json:"metadata,omitempty"`
	CreatedAt      *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time     `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// DisplayName is what UI surfaces render for the user.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	return u.Username
}

// EnsureStatus backfills the zero value for rows created before the status
// column existed.
func (u *User) EnsureStatus() {
	if u.Status == "" {
		u.Status = UserStatusActive
	}
}

// NormalizeEmail lower-cases and trims an email so lookups and the unique
// index agree on case-insensitive matching.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PasswordResetStep is the stage the reset flow is in, as rendered back to
// the client.
type PasswordResetStep = string

const (
	// ResetUnknown covers tokens we cannot vouch for.
	ResetUnknown PasswordResetStep = "unknown"
	// ResetInit is the initial step
	ResetInit PasswordResetStep = "show-reset"
	// AccountVerification means the notification went out.
	AccountVerification PasswordResetStep = "email-sent"
	// ChangingPassword means the user holds a live token.
	ChangingPassword PasswordResetStep = "change-password"
	// ChangeFinalized means the password was swapped.
	ChangeFinalized PasswordResetStep = "password-changed"
)

const (
	// ResetRequestedStatus marks a live, unconsumed reset token.
	ResetRequestedStatus = "requested"
	// ResetChangedStatus marks a consumed token.
	ResetChangedStatus = "changed"
	// ResetExpiredStatus marks a token invalidated by expiry or supersession.
	ResetExpiredStatus = "expired"
)

// ResetTokenTTL is the fixed validity window for password reset tokens.
const ResetTokenTTL = time.Hour

// PasswordReset is a single-use password reset token. The record ID is the
// opaque token value delivered in the reset link.
type PasswordReset struct {
	bun.BaseModel `bun:"table:password_reset,alias:pwdr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        *uuid.UUID `bun:"user_id,notnull" json:"user_id,omitempty"`
	User          *User      `bun:"rel:has-one,join:user_id=id" json:"user,omitempty"`
	Status        string     `bun:"status,notnull" json:"status,omitempty"`
	Email         string     `bun:"email,notnull" json:"email,omitempty"`
	ExpiresAt     *time.Time `bun:"expires_at,nullzero" json:"expires_at,omitempty"`
	ResetedAt     *time.Time `bun:"reseted_at,nullzero" json:"reseted_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// IsLive reports whether the token is still consumable at the given instant.
func (r *PasswordReset) IsLive(now time.Time) bool {
	if r.Status != ResetRequestedStatus {
		return false
	}
	if r.ExpiresAt == nil {
		return false
	}
	return now.Before(*r.ExpiresAt)
}
