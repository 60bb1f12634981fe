package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zvincent07/authcore/internal"
	"github.com/zvincent07/authcore/internal/limiters"
	"github.com/zvincent07/authcore/jwt"
	"github.com/zvincent07/authcore/password"
	"github.com/zvincent07/authcore/permission"
	"github.com/zvincent07/authcore/session"
)

// backgroundTimeout bounds fire-and-forget store writes spawned off the request path.
const backgroundTimeout = 10 * time.Second

// Engine orchestrates every authentication and authorization flow. Construct it through
// [Builder.Build]; a zero Engine is not usable. All methods are safe for concurrent use
// after Build returns.
type Engine struct {
	cfg      Config
	users    CredentialStore
	roles    RoleStore
	email    EmailSender
	geo      GeoEnricher
	ua       UAParser
	perms    *permission.Model
	sessions *session.Store
	lockout  *limiters.LockoutTracker
	bans     *limiters.BanList
	tokens   *jwt.Manager
	hasher   *password.Argon2
	policy   password.Policy
	audit    *auditDispatcher
	metrics  *Metrics

	bg     sync.WaitGroup
	closed atomic.Bool
}

// Close flushes background work: it waits for in-flight fire-and-forget store writes
// and drains the audit dispatcher. Idempotent; flows started after Close fail with
// ErrEngineNotReady.
func (e *Engine) Close() error {
	if e == nil {
		return nil
	}
	if e.closed.Swap(true) {
		return nil
	}
	e.bg.Wait()
	e.audit.Close()
	return nil
}

func (e *Engine) ready() error {
	if e == nil || e.users == nil || e.tokens == nil {
		return ErrEngineNotReady
	}
	if e.closed.Load() {
		return ErrEngineNotReady
	}
	return nil
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

// MetricsSnapshot describes the metrics snapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when
// the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// AuditDropped reports how many audit events were discarded because the dispatcher
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.Dropped()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// isPrivilegedEmail classifies the lockout target by address shape, not by any stored
// account attribute, so unknown addresses probing admin mailboxes get the tighter
// threshold too.
func (e *Engine) isPrivilegedEmail(email string) bool {
	lowered := normalizeEmail(email)
	for _, prefix := range e.cfg.Lockout.PrivilegedPrefixes {
		if prefix != "" && strings.HasPrefix(lowered, prefix) {
			return true
		}
	}
	return false
}

/*
====================================
TOKEN VALIDATION
====================================
*/

// ValidateToken verifies a session token's signature and temporal claims and returns the
// identity it asserts. It performs no store round-trip: a token remains valid until its
// expiry even if the session record behind it has been evicted or terminated.
func (e *Engine) ValidateToken(ctx context.Context, token string) (*AuthResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	start := time.Now()
	claims, err := e.tokens.Parse(token)
	if err != nil {
		e.metricInc(MetricTokenRejected)
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	e.metricInc(MetricTokenValidated)
	e.metrics.Observe(HistogramValidateLatency, time.Since(start))
	return &AuthResult{
		UserID:    claims.UserID,
		RoleName:  claims.Role,
		SessionID: claims.SessionID,
	}, nil
}

// MarkSessionActivity advances the last-active time of the session behind res, off the
// request path. Missing records are ignored; validation outcomes never depend on this.
func (e *Engine) MarkSessionActivity(ctx context.Context, res *AuthResult) {
	if e.ready() != nil || e.sessions == nil || res == nil || res.SessionID == "" {
		return
	}
	e.spawn(func(bgCtx context.Context) {
		_ = e.sessions.Touch(bgCtx, res.SessionID)
	})
}

/*
====================================
LOGOUT
====================================
*/

// Logout closes the session identified by the token. The token's signature must verify
// but its expiry is ignored, so a client can always log out, even with a token that
// lapsed hours ago. The session record is deactivated off the request path; the call
// itself succeeds without any store round-trip.
func (e *Engine) Logout(ctx context.Context, token string) error {
	if err := e.ready(); err != nil {
		return err
	}
	claims, err := e.tokens.ParseAllowExpired(token)
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrTokenInvalid, err)
		e.emitAudit(ctx, auditEventLogout, false, "", "", "", wrapped, nil)
		return wrapped
	}
	if e.sessions != nil && claims.SessionID != "" {
		userID, sessionID := claims.UserID, claims.SessionID
		e.spawn(func(bgCtx context.Context) {
			_ = e.sessions.Deactivate(bgCtx, userID, []string{sessionID})
		})
	}
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, claims.UserID, "", claims.SessionID, nil, nil)
	return nil
}

/*
====================================
PERMISSION EVALUATION
====================================
*/

// HasPermission reports whether the principal holds the permission key. The super-admin
// role passes unconditionally; ordinary principals are evaluated against their populated
// role relation only.
func (e *Engine) HasPermission(p *Principal, key string) bool {
	if e == nil {
		return false
	}
	return e.perms.Has(p.subject(), key)
}

// RequirePermission describes the require permission operation and its observable behavior.
//
// RequirePermission may return an error when input validation, dependency calls, or
// security checks fail. RequirePermission does not mutate shared global state and can be
// used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RequirePermission(ctx context.Context, p *Principal, key, label string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := e.perms.Require(p.subject(), key, label); err != nil {
		e.metricInc(MetricPermissionDenied)
		e.emitAudit(ctx, auditEventPermissionDenied, false, principalID(p), "", "", err, func() map[string]string {
			return map[string]string{"permission": key}
		})
		return err
	}
	return nil
}

// CanAccessResource reports whether the principal may touch a resource owned by ownerID:
// holding the permission key and owning the resource are each sufficient.
func (e *Engine) CanAccessResource(p *Principal, ownerID, key string) bool {
	if e == nil {
		return false
	}
	return e.perms.CanAccess(p.subject(), ownerID, key)
}

// Authorize resolves res into a full principal (with its role relation populated) and
// requires the permission key. Middleware uses it to guard routes.
func (e *Engine) Authorize(ctx context.Context, res *AuthResult, key, label string) (*Principal, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if res == nil {
		return nil, &PermissionDeniedError{Key: key, Label: label}
	}
	p, err := e.users.FindByID(ctx, res.UserID, LookupOptions{PopulateRole: true})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, &PermissionDeniedError{Key: key, Label: label}
		}
		return nil, err
	}
	if !p.IsActive {
		return nil, ErrAccountInactive
	}
	if err := e.RequirePermission(ctx, p, key, label); err != nil {
		return nil, err
	}
	return p, nil
}

/*
====================================
SHARED FLOW HELPERS
====================================
*/

func principalID(p *Principal) string {
	if p == nil {
		return ""
	}
	return p.ID
}

// spawn runs fn on a detached, deadline-bounded context, tracked so Close can wait for
// it. Request cancellation must not abort background persistence.
func (e *Engine) spawn(fn func(ctx context.Context)) {
	e.bg.Add(1)
	go func() {
		defer e.bg.Done()
		bgCtx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		fn(bgCtx)
	}()
}

// issueLogin mints the session token for a successful authentication, stamps last-login,
// and schedules the session record write. Store failures past this point are recorded
// but never fail the login.
func (e *Engine) issueLogin(ctx context.Context, p *Principal, rememberMe bool) (*LoginResult, error) {
	sessionID, err := internal.NewSessionID()
	if err != nil {
		return nil, fmt.Errorf("issue session id: %w", err)
	}
	token, expiresAt, err := e.tokens.Issue(p.ID, sessionID, p.RoleName, rememberMe)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	p.LastLogin = &now
	if err := e.users.UpdateByID(ctx, p.ID, p); err != nil {
		e.emitAudit(ctx, auditEventSessionRecordFailure, false, p.ID, p.Email, sessionID, err, func() map[string]string {
			return map[string]string{"stage": "last_login"}
		})
	}

	e.scheduleSessionRecord(ctx, p, sessionID, now)
	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		UserID:    p.ID,
		Email:     p.Email,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		RoleName:  p.RoleName,
		SessionID: sessionID,
	}, nil
}

// scheduleSessionRecord enriches and persists the session record off the request path.
// Evictions forced by the per-user cap are surfaced as audit events.
func (e *Engine) scheduleSessionRecord(ctx context.Context, p *Principal, sessionID string, now time.Time) {
	if e.sessions == nil {
		return
	}
	ip := clientIPFromContext(ctx)
	rawUA := userAgentFromContext(ctx)
	userID, email := p.ID, p.Email
	e.spawn(func(bgCtx context.Context) {
		bgCtx = WithUserAgent(WithClientIP(bgCtx, ip), rawUA)
		record := &session.Session{
			SessionID:  sessionID,
			UserID:     userID,
			IP:         ip,
			UserAgent:  rawUA,
			IsActive:   true,
			CreatedAt:  now,
			LastActive: now,
		}
		if e.ua != nil && rawUA != "" {
			device := e.ua.Parse(rawUA)
			record.Platform = device.Platform
			record.Browser = device.Browser
			record.Device = device.Device
		}
		if e.geo != nil && ip != "" {
			record.Location = e.geo.Locate(bgCtx, ip)
		}
		evicted, err := e.sessions.Save(bgCtx, record)
		if err != nil {
			e.emitAudit(bgCtx, auditEventSessionRecordFailure, false, userID, email, sessionID, err, nil)
			return
		}
		e.metricInc(MetricSessionCreated)
		for _, old := range evicted {
			e.metricInc(MetricSessionEvicted)
			e.emitAudit(bgCtx, auditEventSessionEvicted, true, userID, email, old, nil, nil)
		}
	})
}
