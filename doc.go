// Package authcore provides an authentication and authorization engine with JWT session
// tokens, Redis-backed lockout and IP-ban tracking, role-based permission evaluation,
// OTP-driven email verification, and compensated registration and password-reset flows.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config], and value types
// (LoginResult, AuthResult, SessionInfo, etc.). Internal coordination — lockout counters,
// ban records, random material, audit dispatch — lives under internal/ and is never
// exported. Persistence of principals, roles, and audit rows is delegated to caller-supplied
// implementations of [CredentialStore], [RoleStore], and [AuditSink]; a PostgreSQL
// implementation ships under stores/postgres.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its public API.
//   - Perform I/O outside of Engine methods (construction via Builder is allocation-only
//     until Build).
//   - Import any sub-package that re-imports authcore (no import cycles).
//
// # Performance contract
//
// ValidateToken is the hot path. It verifies signature and expiry only and must complete
// without a Redis round-trip. Login, registration, and reset flows are allowed store
// round-trips per call; session persistence and audit emission are fire-and-forget and
// never extend a request's critical path.
package authcore
