package authgate

import (
	"context"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/gorilla/websocket"
)

// SocketTokenValidator validates a realtime connection token. A TokenService
// satisfies this directly.
type SocketTokenValidator interface {
	ValidateRealtime(tokenString string) (AuthClaims, error)
}

var _ SocketTokenValidator = (*TokenServiceImpl)(nil)

// SocketHandler runs after a successful handshake, owning the connection.
type SocketHandler func(ctx context.Context, session Session, conn *websocket.Conn)

// SocketGateConfig configures the realtime handshake gate.
type SocketGateConfig struct {
	Validator SocketTokenValidator
	Handler   SocketHandler
	Logger    Logger
	AuditSink AuditSink

	// TokenQueryParam is where the connect token travels. Browsers cannot
	// set headers on websocket dials, so query param is the default carrier.
	TokenQueryParam string

	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// SocketGate authenticates realtime connections. The token is verified
// before the protocol upgrade: a rejected caller gets a plain HTTP status,
// never an open socket.
type SocketGate struct {
	validator SocketTokenValidator
	handler   SocketHandler
	logger    Logger
	audit     AuditSink
	upgrader  websocket.Upgrader
	tokenKey  string
}

func NewSocketGate(cfg SocketGateConfig) (*SocketGate, error) {
	if cfg.Validator == nil {
		return nil, goerrors.New("socket gate requires a token validator", goerrors.CategoryBadInput)
	}

	if cfg.Handler == nil {
		return nil, goerrors.New("socket gate requires a connection handler", goerrors.CategoryBadInput)
	}

	tokenKey := cfg.TokenQueryParam
	if tokenKey == "" {
		tokenKey = "token"
	}

	return &SocketGate{
		validator: cfg.Validator,
		handler:   cfg.Handler,
		logger:    normalizeLogger(cfg.Logger),
		audit:     normalizeAuditSink(cfg.AuditSink),
		tokenKey:  tokenKey,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     cfg.CheckOrigin,
		},
	}, nil
}

// ServeHTTP implements the handshake endpoint.
func (g *SocketGate) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := g.extractToken(r)

	claims, err := g.validator.ValidateRealtime(token)
	if err != nil {
		g.refuse(w, r, err)
		return
	}

	session, err := sessionFromAuthClaims(claims)
	if err != nil {
		g.refuse(w, r, err)
		return
	}

	g.recordConnect(r, AuditEventRealtimeConnectOK, session.GetUserID(), nil)

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade writes its own error response.
		g.logger.Error("websocket upgrade failed: %v", err)
		return
	}

	g.handler(r.Context(), session, conn)
}

func (g *SocketGate) extractToken(r *http.Request) string {
	if token := r.URL.Query().Get(g.tokenKey); token != "" {
		return token
	}

	// Fallback for non-browser clients that can set headers.
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}

	return ""
}

func (g *SocketGate) refuse(w http.ResponseWriter, r *http.Request, cause error) {
	status := http.StatusUnauthorized
	reason := "invalid token"

	switch {
	case IsTokenExpiredError(cause):
		reason = "token expired"
	case goerrors.Is(cause, ErrForbidden):
		status = http.StatusForbidden
		reason = "forbidden"
	}

	g.logger.Info("realtime connect refused", "reason", reason, "remote", r.RemoteAddr)

	g.recordConnect(r, AuditEventRealtimeConnectDenied, "", map[string]any{
		"reason": reason,
	})

	http.Error(w, reason, status)
}

func (g *SocketGate) recordConnect(r *http.Request, eventType AuditEventType, userID string, metadata map[string]any) {
	outcome := AuditOutcomeSuccess
	if eventType == AuditEventRealtimeConnectDenied {
		outcome = AuditOutcomeFailure
	}

	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["remote_addr"] = r.RemoteAddr

	recordAuditEvent(r.Context(), g.audit, g.logger, AuditEvent{
		EventType: eventType,
		UserID:    userID,
		Outcome:   outcome,
		Metadata:  metadata,
	})
}
