// Package authgate implements the session and access-control boundary shared
// by our web properties: credential storage, signed session tokens, a cheap
// edge authorization gate, the authoritative session resolver, the realtime
// connection handshake, and the audit emission hook.
//
// The package is transport-agnostic where it can be: HTTP integration goes
// through goliatone/go-router, persistence through uptrace/bun, and the
// realtime layer only gates accept/reject while the caller's transport handles
// framing.
package authgate
