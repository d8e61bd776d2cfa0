package jwtware

import (
	"github.com/golang-jwt/jwt/v5"
)

// keyfuncValidator is the fallback TokenValidator: it verifies the signature
// with the configured keyfunc and exposes the map claims through the
// AuthClaims interface.
type keyfuncValidator struct {
	keyFunc jwt.Keyfunc
}

func (v keyfuncValidator) Validate(tokenString string) (AuthClaims, error) {
	token, err := jwt.Parse(tokenString, v.keyFunc)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrJWTMissingOrMalformed
	}

	return mapClaims(claims), nil
}

// mapClaims adapts raw jwt.MapClaims to the AuthClaims interface, with the
// same role hierarchy the engine uses.
type mapClaims jwt.MapClaims

func (m mapClaims) Subject() string {
	if sub, ok := m["sub"].(string); ok {
		return sub
	}
	return ""
}

func (m mapClaims) UserID() string {
	if uid, ok := m["uid"].(string); ok {
		return uid
	}
	return m.Subject()
}

func (m mapClaims) Role() string {
	if role, ok := m["role"].(string); ok {
		return role
	}
	return ""
}

func (m mapClaims) resourceRole(resource string) (string, bool) {
	raw, ok := m["res"]
	if !ok {
		return "", false
	}

	if resources, ok := raw.(map[string]any); ok {
		if role, ok := resources[resource].(string); ok {
			return role, true
		}
	}

	return "", false
}

func (m mapClaims) effectiveRole(resource string) string {
	if role, ok := m.resourceRole(resource); ok {
		return role
	}
	return m.Role()
}

func (m mapClaims) CanRead(resource string) bool {
	return roleRank(m.effectiveRole(resource)) >= 0
}

func (m mapClaims) CanEdit(resource string) bool {
	return roleRank(m.effectiveRole(resource)) >= 1
}

func (m mapClaims) CanCreate(resource string) bool {
	return roleRank(m.effectiveRole(resource)) >= 2
}

func (m mapClaims) CanDelete(resource string) bool {
	return roleRank(m.effectiveRole(resource)) >= 3
}

func (m mapClaims) HasRole(role string) bool {
	return m.Role() == role
}

func (m mapClaims) IsAtLeast(minRole string) bool {
	have := roleRank(m.Role())
	want := roleRank(minRole)
	if have < 0 || want < 0 {
		return false
	}
	return have >= want
}

func roleRank(role string) int {
	switch role {
	case "guest":
		return 0
	case "member":
		return 1
	case "admin":
		return 2
	case "owner":
		return 3
	default:
		return -1
	}
}
