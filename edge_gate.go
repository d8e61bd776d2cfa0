package authgate

import (
	"encoding/base64"
	"path"
	"strings"
)

// EdgeDecision is the verdict of the cheap perimeter check.
type EdgeDecision int

const (
	// EdgeAllow lets the request continue to the authoritative resolver.
	EdgeAllow EdgeDecision = iota
	// EdgeRedirectLogin sends the visitor to the login surface.
	EdgeRedirectLogin
	// EdgeRedirectHome sends an already-authenticated visitor off the auth
	// surface and back home.
	EdgeRedirectHome
)

func (d EdgeDecision) String() string {
	switch d {
	case EdgeRedirectLogin:
		return "redirect-login"
	case EdgeRedirectHome:
		return "redirect-home"
	default:
		return "allow"
	}
}

// edgeArea is the path classification the gate decides over.
type edgeArea int

const (
	areaProtected edgeArea = iota
	areaPublic
	areaAuth
)

// EdgeGate classifies request paths and screens bearer material by shape
// only. It never validates signatures and never returns errors: anything it
// cannot vouch for is a redirect, and the real resolver runs behind it.
type EdgeGate struct {
	loginPath      string
	homePath       string
	authPrefixes   []string
	publicPrefixes []string
	assetPrefixes  []string
}

type EdgeGateOption func(*EdgeGate)

func WithPublicPrefixes(prefixes ...string) EdgeGateOption {
	return func(g *EdgeGate) {
		g.publicPrefixes = append(g.publicPrefixes, normalizePrefixes(prefixes)...)
	}
}

func WithAssetPrefixes(prefixes ...string) EdgeGateOption {
	return func(g *EdgeGate) {
		g.assetPrefixes = append(g.assetPrefixes, normalizePrefixes(prefixes)...)
	}
}

// WithAuthPrefixes extends the login/signup surface: paths an authenticated
// visitor gets redirected away from.
func WithAuthPrefixes(prefixes ...string) EdgeGateOption {
	return func(g *EdgeGate) {
		g.authPrefixes = append(g.authPrefixes, normalizePrefixes(prefixes)...)
	}
}

func WithLoginPath(p string) EdgeGateOption {
	return func(g *EdgeGate) {
		if p != "" {
			g.loginPath = normalizePath(p)
		}
	}
}

func WithHomePath(p string) EdgeGateOption {
	return func(g *EdgeGate) {
		if p != "" {
			g.homePath = normalizePath(p)
		}
	}
}

func NewEdgeGate(opts ...EdgeGateOption) *EdgeGate {
	gate := &EdgeGate{
		loginPath:      "/login",
		homePath:       "/",
		authPrefixes:   []string{"/login", "/register", "/signup"},
		publicPrefixes: []string{"/password-reset"},
		assetPrefixes:  []string{"/static", "/assets", "/favicon.ico"},
	}

	for _, opt := range opts {
		opt(gate)
	}

	return gate
}

// LoginPath is the redirect target for rejected requests.
func (g *EdgeGate) LoginPath() string {
	return g.loginPath
}

// HomePath is the redirect target for authenticated visitors on the auth
// surface.
func (g *EdgeGate) HomePath() string {
	return g.homePath
}

// RedirectTo maps a redirect decision to its target. Empty for EdgeAllow.
func (g *EdgeGate) RedirectTo(d EdgeDecision) string {
	switch d {
	case EdgeRedirectLogin:
		return g.loginPath
	case EdgeRedirectHome:
		return g.homePath
	default:
		return ""
	}
}

// IsPublic reports whether the path can be served without any credential.
func (g *EdgeGate) IsPublic(reqPath string) bool {
	return g.classify(reqPath) != areaProtected
}

func (g *EdgeGate) classify(reqPath string) edgeArea {
	p := normalizePath(reqPath)

	if p == g.loginPath || hasAnyPrefix(p, g.authPrefixes) {
		return areaAuth
	}

	if hasAnyPrefix(p, g.publicPrefixes) || hasAnyPrefix(p, g.assetPrefixes) {
		return areaPublic
	}

	return areaProtected
}

// Decide screens a request at the perimeter. Protected paths need a token
// that at least looks signed; auth-surface paths bounce visitors who already
// carry one. The authoritative check happens downstream either way.
func (g *EdgeGate) Decide(reqPath, token string) EdgeDecision {
	switch g.classify(reqPath) {
	case areaAuth:
		if looksLikeSessionToken(token) {
			return EdgeRedirectHome
		}
		return EdgeAllow
	case areaPublic:
		return EdgeAllow
	default:
		if looksLikeSessionToken(token) {
			return EdgeAllow
		}
		return EdgeRedirectLogin
	}
}

// looksLikeSessionToken checks shape only: three non-empty dot-separated
// segments, each valid raw base64url. It deliberately accepts forged tokens;
// those die at the resolver.
func looksLikeSessionToken(token string) bool {
	if token == "" {
		return false
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}

	for _, part := range parts {
		if part == "" {
			return false
		}
		if _, err := base64.RawURLEncoding.DecodeString(part); err != nil {
			return false
		}
	}

	return true
}

func hasAnyPrefix(p string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}
	return false
}

func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

func normalizePrefixes(prefixes []string) []string {
	out := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if p == "" {
			continue
		}
		out = append(out, normalizePath(p))
	}
	return out
}
