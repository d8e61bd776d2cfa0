package authgate

import (
	"context"
	"reflect"
)

// Auther is the authoritative authenticator: it verifies credentials, mints
// session tokens, and resolves presented tokens back into identities.
type Auther struct {
	provider        IdentityProvider
	tokenService    TokenService
	tokenValidator  TokenValidator
	logger          Logger
	auditSink       AuditSink
	claimsDecorator ClaimsDecorator
}

// NewAuthenticator returns an Auther configured from cfg.
func NewAuthenticator(provider IdentityProvider, cfg Config) *Auther {
	return &Auther{
		provider:        provider,
		tokenService:    tokenServiceFromConfig(cfg, nil),
		logger:          defLogger{},
		auditSink:       noopAuditSink{},
		claimsDecorator: noopClaimsDecorator{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger)
	return s
}

// WithAuditSink configures the sink auth events are emitted to.
func (s *Auther) WithAuditSink(sink AuditSink) *Auther {
	s.auditSink = normalizeAuditSink(sink)
	return s
}

// WithClaimsDecorator configures a ClaimsDecorator for enriching JWTs.
func (s *Auther) WithClaimsDecorator(decorator ClaimsDecorator) *Auther {
	s.claimsDecorator = normalizeClaimsDecorator(decorator)
	return s
}

// WithTokenValidator sets a custom validator for externally issued tokens.
func (s *Auther) WithTokenValidator(validator TokenValidator) *Auther {
	s.tokenValidator = validator
	return s
}

// WithTokenService replaces the token service, mainly for tests that need a
// fixed clock or TTL.
func (s *Auther) WithTokenService(ts TokenService) *Auther {
	if ts != nil {
		s.tokenService = ts
	}
	return s
}

// TokenService returns the TokenService used by this authenticator.
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login verifies the credentials and returns a signed session token. The
// error is the generic invalid-credentials value for both unknown email and
// wrong password.
func (s *Auther) Login(ctx context.Context, identifier, password string) (string, error) {
	identity, err := s.provider.VerifyIdentity(ctx, identifier, password)
	if err != nil {
		s.logger.Error("login verify identity error", "error", err)
		s.emitAuthEvent(ctx, AuditEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return "", err
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Error("login identity is nil or zero value")
		s.emitAuthEvent(ctx, AuditEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": identifier,
			"error":      ErrInvalidCredentials.Error(),
		})
		return "", ErrInvalidCredentials
	}

	if status, err := s.ensureIdentityActive(identity); err != nil {
		s.logger.Warn("login blocked due to account status", "status", status, "error", err)
		s.emitAuthEvent(ctx, AuditEventLoginFailure, s.actorFromIdentity(identity), identity.ID(), map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
			"status":     status,
		})
		return "", err
	}

	token, err := s.generateJWT(ctx, identity)
	if err != nil {
		s.emitAuthEvent(ctx, AuditEventLoginFailure, s.actorFromIdentity(identity), identity.ID(), map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return "", err
	}

	s.emitAuthEvent(ctx, AuditEventLoginSuccess, s.actorFromIdentity(identity), identity.ID(), map[string]any{
		"identifier": identifier,
	})

	return token, nil
}

// Impersonate mints a session token for the identity without a password
// check. Privileged operation; every call is audited.
func (s *Auther) Impersonate(ctx context.Context, identifier string) (string, error) {
	identity, err := s.provider.FindIdentityByIdentifier(ctx, identifier)
	if err != nil {
		s.logger.Error("impersonate find identity error", "error", err)
		s.emitAuthEvent(ctx, AuditEventImpersonationFailure, ActorRef{Type: "system"}, "", map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return "", err
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.emitAuthEvent(ctx, AuditEventImpersonationFailure, ActorRef{Type: "system"}, "", map[string]any{
			"identifier": identifier,
			"error":      ErrInvalidCredentials.Error(),
		})
		return "", ErrInvalidCredentials
	}

	if status, err := s.ensureIdentityActive(identity); err != nil {
		s.logger.Warn("impersonation blocked due to account status", "status", status, "error", err)
		s.emitAuthEvent(ctx, AuditEventImpersonationFailure, ActorRef{Type: "system"}, identity.ID(), map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
			"status":     status,
		})
		return "", err
	}

	token, err := s.generateJWT(ctx, identity)
	if err != nil {
		s.emitAuthEvent(ctx, AuditEventImpersonationFailure, ActorRef{Type: "system"}, identity.ID(), map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return "", err
	}

	s.emitAuthEvent(ctx, AuditEventImpersonationSuccess, ActorRef{Type: "system"}, identity.ID(), map[string]any{
		"identifier": identifier,
	})

	return token, nil
}

// SessionFromToken validates a raw session token and returns its session
// view. No store access happens here.
func (s *Auther) SessionFromToken(raw string) (Session, error) {
	validator := s.tokenValidator
	if validator == nil {
		validator = TokenValidatorFunc(s.tokenService.Validate)
	}

	claims, err := validator.Validate(raw)
	if err != nil {
		s.logger.Debug("session token validation failed", "error", err)
		return nil, err
	}

	session, err := sessionFromAuthClaims(claims)
	if err != nil {
		s.logger.Error("failed to build session from claims", "error", err)
		return nil, err
	}

	return session, nil
}

// IdentityFromSession re-fetches the identity referenced by the session.
func (s *Auther) IdentityFromSession(ctx context.Context, session Session) (Identity, error) {
	identity, err := s.provider.FindIdentityByIdentifier(ctx, session.GetUserID())
	if err != nil {
		s.logger.Error("identity lookup from session failed", "error", err)
		return nil, err
	}

	return identity, nil
}

// Resolve is the authoritative check for a presented token: signature and
// expiry first, then a store re-fetch so role changes take effect without
// waiting for token expiry. The role claim embedded in the token is never
// trusted here. Absent or invalid credentials yield ErrUnauthenticated;
// role sufficiency is the call site's decision (RequireRole).
func (s *Auther) Resolve(ctx context.Context, raw string) (Identity, error) {
	if raw == "" {
		return nil, ErrUnauthenticated
	}

	session, err := s.SessionFromToken(raw)
	if err != nil {
		if IsTokenExpiredError(err) {
			return nil, ErrTokenExpired
		}
		return nil, ErrUnauthenticated
	}

	identity, err := s.IdentityFromSession(ctx, session)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		return nil, ErrUnauthenticated
	}

	if _, err := s.ensureIdentityActive(identity); err != nil {
		return nil, err
	}

	return identity, nil
}

func (s *Auther) generateJWT(ctx context.Context, identity Identity) (string, error) {
	ts, ok := s.tokenService.(*TokenServiceImpl)
	if !ok {
		return s.tokenService.Generate(identity, nil)
	}

	claims := ts.newClaims(identity, AudienceSession, ts.tokenExpiration)
	snapshot := captureImmutableClaims(claims)

	decorator := normalizeClaimsDecorator(s.claimsDecorator)
	if err := decorator.Decorate(ctx, identity, claims); err != nil {
		s.logger.Error("claims decorator failed", "error", err)
		return "", err
	}

	if err := snapshot.validate(claims); err != nil {
		s.logger.Error("claims decorator mutated immutable claims", "error", err)
		return "", err
	}

	return ts.SignClaims(claims)
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType AuditEventType, actor ActorRef, userID string, metadata map[string]any) {
	outcome := AuditOutcomeSuccess
	switch eventType {
	case AuditEventLoginFailure, AuditEventImpersonationFailure, AuditEventRealtimeConnectDenied:
		outcome = AuditOutcomeFailure
	}

	recordAuditEvent(ctx, s.auditSink, s.logger, AuditEvent{
		EventType: eventType,
		Actor:     actor,
		UserID:    userID,
		Outcome:   outcome,
		Metadata:  metadata,
	})
}

func (s *Auther) actorFromIdentity(identity Identity) ActorRef {
	if identity == nil {
		return ActorRef{Type: "unknown"}
	}
	return ActorRef{ID: identity.ID(), Type: "user"}
}

type statusAwareIdentity interface {
	Status() UserStatus
}

func (s *Auther) ensureIdentityActive(identity Identity) (UserStatus, error) {
	sa, ok := identity.(statusAwareIdentity)
	if !ok {
		return "", nil
	}

	status := sa.Status()
	if status == "" {
		status = UserStatusActive
	}

	if err := statusAuthError(status); err != nil {
		return status, err
	}

	return status, nil
}

var _ Authenticator = (*Auther)(nil)
