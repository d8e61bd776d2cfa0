package authgate

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// Audience tags keep session and realtime tokens from being interchangeable:
// a stolen session cookie cannot open a socket, and a leaked socket token
// cannot ride the request path.
const (
	AudienceSession  = "authgate:session"
	AudienceRealtime = "authgate:realtime"
)

// Default TTLs apply when the config does not set one.
const (
	DefaultSessionTokenTTL  = 7 * 24 * time.Hour
	DefaultRealtimeTokenTTL = 5 * time.Minute
)

// TokenService mints and validates the signed tokens issued by this engine.
type TokenService interface {
	// Generate mints a session token for the identity.
	Generate(identity Identity, resourceRoles map[string]string) (string, error)
	// GenerateRealtime mints a short-lived socket token and reports its expiry.
	GenerateRealtime(identity Identity) (string, time.Time, error)
	// SignClaims signs arbitrary claims with the configured key.
	SignClaims(claims *JWTClaims) (string, error)
	// Validate checks a session token.
	Validate(tokenString string) (AuthClaims, error)
	// ValidateRealtime checks a socket token.
	ValidateRealtime(tokenString string) (AuthClaims, error)
}

// TokenServiceImpl implements TokenService over HMAC-signed JWTs.
type TokenServiceImpl struct {
	signingKey      []byte
	tokenExpiration time.Duration
	realtimeTTL     time.Duration
	issuer          string
	logger          Logger
}

// NewTokenService creates a TokenService. tokenExpiration is the session
// TTL. Either TTL falls back to its default when unset, so a zero-valued
// config never mints tokens that are expired at issuance.
func NewTokenService(signingKey []byte, tokenExpiration, realtimeTTL time.Duration, issuer string, logger Logger) *TokenServiceImpl {
	if tokenExpiration == 0 {
		tokenExpiration = DefaultSessionTokenTTL
	}
	if realtimeTTL <= 0 {
		realtimeTTL = DefaultRealtimeTokenTTL
	}
	return &TokenServiceImpl{
		signingKey:      signingKey,
		tokenExpiration: tokenExpiration,
		realtimeTTL:     realtimeTTL,
		issuer:          issuer,
		logger:          normalizeLogger(logger),
	}
}

func tokenServiceFromConfig(cfg Config, logger Logger) *TokenServiceImpl {
	sessionTTL := time.Duration(cfg.GetTokenExpiration()) * time.Hour
	realtimeTTL := time.Duration(cfg.GetRealtimeTokenDuration()) * time.Minute
	return NewTokenService([]byte(cfg.GetSigningKey()), sessionTTL, realtimeTTL, cfg.GetIssuer(), logger)
}

// Generate mints a session token carrying the identity's current role and any
// resource-scoped roles.
func (ts *TokenServiceImpl) Generate(identity Identity, resourceRoles map[string]string) (string, error) {
	if identity == nil {
		return "", goerrors.New("identity is required", goerrors.CategoryBadInput)
	}
	claims := ts.newClaims(identity, AudienceSession, ts.tokenExpiration)
	claims.Resources = resourceRoles
	return ts.SignClaims(claims)
}

// GenerateRealtime mints a socket token. Short expiry by design: every
// reconnection pays for a fresh one.
func (ts *TokenServiceImpl) GenerateRealtime(identity Identity) (string, time.Time, error) {
	if identity == nil {
		return "", time.Time{}, goerrors.New("identity is required", goerrors.CategoryBadInput)
	}
	claims := ts.newClaims(identity, AudienceRealtime, ts.realtimeTTL)
	token, err := ts.SignClaims(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, claims.Expires(), nil
}

// SignClaims signs the claims with the configured signing key.
func (ts *TokenServiceImpl) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and validates a session token.
func (ts *TokenServiceImpl) Validate(tokenString string) (AuthClaims, error) {
	return ts.validate(tokenString, AudienceSession)
}

// ValidateRealtime parses and validates a socket token. A session token
// presented here fails the audience check.
func (ts *TokenServiceImpl) ValidateRealtime(tokenString string) (AuthClaims, error) {
	return ts.validate(tokenString, AudienceRealtime)
}

func (ts *TokenServiceImpl) validate(tokenString, audience string) (AuthClaims, error) {
	parserOptions := []jwt.ParserOption{jwt.WithAudience(audience)}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("token validation hit unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("token validation could not decode claims")
	return nil, ErrTokenMalformed
}

func (ts *TokenServiceImpl) newClaims(identity Identity, audience string, ttl time.Duration) *JWTClaims {
	now := time.Now()

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UID:      identity.ID(),
		UserRole: identity.Role(),
	}

	ensureTokenID(&claims.RegisteredClaims)

	return claims
}

// RealtimeTokenOptions controls MintRealtimeToken overrides.
type RealtimeTokenOptions struct {
	// TTL overrides the service's realtime TTL when positive.
	TTL time.Duration
	// IssuedAt overrides the issuance time. Zero uses time.Now().
	IssuedAt time.Time
	// Scopes sets the optional scopes claim.
	Scopes []string
}

// MintRealtimeToken mints a socket token with optional overrides, for callers
// that need per-connection scopes or test clocks.
func MintRealtimeToken(ts *TokenServiceImpl, identity Identity, opts RealtimeTokenOptions) (string, time.Time, error) {
	if ts == nil {
		return "", time.Time{}, goerrors.New("token service is required", goerrors.CategoryBadInput)
	}
	if identity == nil {
		return "", time.Time{}, goerrors.New("identity is required", goerrors.CategoryBadInput)
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = ts.realtimeTTL
	}

	issuedAt := opts.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now()
	}
	expiresAt := issuedAt.Add(ttl)

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			Audience:  jwt.ClaimStrings{AudienceRealtime},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UID:      identity.ID(),
		UserRole: identity.Role(),
	}

	if len(opts.Scopes) > 0 {
		claims.Scopes = append([]string(nil), opts.Scopes...)
	}

	ensureTokenID(&claims.RegisteredClaims)

	token, err := ts.SignClaims(claims)
	if err != nil {
		return "", time.Time{}, err
	}

	return token, expiresAt, nil
}
