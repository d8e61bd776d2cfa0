package authgate

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthClaims is the structured view of a validated token.
type AuthClaims interface {
	Subject() string
	UserID() string
	Role() string
	CanRead(resource string) bool
	CanEdit(resource string) bool
	CanCreate(resource string) bool
	CanDelete(resource string) bool
	HasRole(role string) bool
	IsAtLeast(minRole string) bool
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete claims payload we sign.
type JWTClaims struct {
	jwt.RegisteredClaims
	UID       string            `json:"uid,omitempty"`
	UserRole  string            `json:"role,omitempty"`
	Resources map[string]string `json:"res,omitempty"`
	Metadata  map[string]any    `json:"metadata,omitempty"`
	Scopes    []string          `json:"scopes,omitempty"`
}

var _ AuthClaims = (*JWTClaims)(nil)

func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Role returns the role embedded at signing time. The authoritative resolver
// re-fetches the role from the store; this value serves advisory checks only.
func (c *JWTClaims) Role() string {
	return c.UserRole
}

func (c *JWTClaims) CanRead(resource string) bool {
	if resourceRole, ok := c.Resources[resource]; ok {
		return RoleCanRead(resourceRole)
	}
	return RoleCanRead(c.UserRole)
}

func (c *JWTClaims) CanEdit(resource string) bool {
	if resourceRole, ok := c.Resources[resource]; ok {
		return RoleCanEdit(resourceRole)
	}
	return RoleCanEdit(c.UserRole)
}

func (c *JWTClaims) CanCreate(resource string) bool {
	if resourceRole, ok := c.Resources[resource]; ok {
		return RoleCanCreate(resourceRole)
	}
	return RoleCanCreate(c.UserRole)
}

func (c *JWTClaims) CanDelete(resource string) bool {
	if resourceRole, ok := c.Resources[resource]; ok {
		return RoleCanDelete(resourceRole)
	}
	return RoleCanDelete(c.UserRole)
}

// HasRole checks the global role and any resource-scoped role.
func (c *JWTClaims) HasRole(role string) bool {
	if c.UserRole == role {
		return true
	}
	for _, resourceRole := range c.Resources {
		if resourceRole == role {
			return true
		}
	}
	return false
}

func (c *JWTClaims) IsAtLeast(minRole string) bool {
	return RoleIsAtLeast(c.UserRole, minRole)
}

func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// ResourceRoles exposes resource-scoped roles for context enrichment.
func (c *JWTClaims) ResourceRoles() map[string]string {
	return c.Resources
}

// ClaimsMetadata exposes metadata extensions for context enrichment.
func (c *JWTClaims) ClaimsMetadata() map[string]any {
	return c.Metadata
}

// ensureTokenID assigns a jti if the claims do not carry one.
func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
