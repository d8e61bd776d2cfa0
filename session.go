package authgate

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ Session = &SessionObject{}
var _ RoleValidator = &SessionObject{}

// SessionObject is the session view carried between the token layer and the
// HTTP/realtime layers.
type SessionObject struct {
	UserID         string         `json:"user_id,omitempty"`
	Audience       []string       `json:"audience,omitempty"`
	Issuer         string         `json:"issuer,omitempty"`
	IssuedAt       *time.Time     `json:"issued_at,omitempty"`
	ExpirationDate *time.Time     `json:"expiration_date,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}

func (s *SessionObject) GetUserID() string {
	return s.UserID
}

func (s *SessionObject) GetUserUUID() (uuid.UUID, error) {
	return uuid.Parse(s.UserID)
}

func (s *SessionObject) GetAudience() []string {
	return s.Audience
}

func (s *SessionObject) GetIssuer() string {
	return s.Issuer
}

func (s *SessionObject) GetIssuedAt() *time.Time {
	return s.IssuedAt
}

func (s *SessionObject) GetData() map[string]any {
	return s.Data
}

func (s *SessionObject) resourceRole(resource string) (UserRole, bool) {
	if s.Data == nil {
		return "", false
	}

	resourceRoles, exists := s.Data["resources"]
	if !exists {
		return "", false
	}

	switch roleMap := resourceRoles.(type) {
	case map[string]any:
		if raw, ok := roleMap[resource]; ok {
			if role, ok := raw.(string); ok {
				return UserRole(role), true
			}
		}
	case map[string]string:
		if role, ok := roleMap[resource]; ok {
			return UserRole(role), true
		}
	}

	return "", false
}

// globalRole reads the role from session data, defaulting to guest.
func (s *SessionObject) globalRole() UserRole {
	if s.Data != nil {
		if raw, exists := s.Data["role"]; exists {
			if roleStr, ok := raw.(string); ok {
				if role, valid := ParseRole(roleStr); valid {
					return role
				}
			}
		}
	}
	return RoleGuest
}

func (s *SessionObject) CanRead(resource string) bool {
	if role, ok := s.resourceRole(resource); ok {
		return RoleCanRead(role)
	}
	return RoleCanRead(s.globalRole())
}

func (s *SessionObject) CanEdit(resource string) bool {
	if role, ok := s.resourceRole(resource); ok {
		return RoleCanEdit(role)
	}
	return RoleCanEdit(s.globalRole())
}

func (s *SessionObject) CanCreate(resource string) bool {
	if role, ok := s.resourceRole(resource); ok {
		return RoleCanCreate(role)
	}
	return RoleCanCreate(s.globalRole())
}

func (s *SessionObject) CanDelete(resource string) bool {
	if role, ok := s.resourceRole(resource); ok {
		return RoleCanDelete(role)
	}
	return RoleCanDelete(s.globalRole())
}

func (s *SessionObject) HasRole(role string) bool {
	return string(s.globalRole()) == role
}

func (s *SessionObject) IsAtLeast(minRole UserRole) bool {
	return RoleIsAtLeast(s.globalRole(), minRole)
}

func (s SessionObject) String() string {
	issuedAt := "<nil>"
	if s.IssuedAt != nil {
		issuedAt = s.IssuedAt.Format(time.RFC1123)
	}
	return fmt.Sprintf(
		"user=%s aud=%v iss=%s iat=%s",
		s.UserID,
		s.Audience,
		s.Issuer,
		issuedAt,
	)
}

// sessionFromAuthClaims maps validated claims into a SessionObject.
func sessionFromAuthClaims(claims AuthClaims) (*SessionObject, error) {
	if claims == nil {
		return nil, ErrTokenMalformed
	}

	data := make(map[string]any)
	data["role"] = claims.Role()

	var audience []string
	issuer := claims.Subject()

	if jwtClaims, ok := claims.(*JWTClaims); ok {
		if len(jwtClaims.Resources) > 0 {
			data["resources"] = jwtClaims.Resources
		}
		if len(jwtClaims.Metadata) > 0 {
			data["metadata"] = jwtClaims.Metadata
		}
		audience = append(audience, jwtClaims.RegisteredClaims.Audience...)
		if jwtClaims.RegisteredClaims.Issuer != "" {
			issuer = jwtClaims.RegisteredClaims.Issuer
		}
	}

	issuedAt := claims.IssuedAt()
	expiresAt := claims.Expires()

	return &SessionObject{
		UserID:         claims.UserID(),
		Audience:       audience,
		Issuer:         issuer,
		Data:           data,
		IssuedAt:       &issuedAt,
		ExpirationDate: &expiresAt,
	}, nil
}
