package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zvincent07/authcore/internal/limiters"
)

// Login authenticates an email/password pair and issues a session token.
//
// The flow is ordered so that abuse controls run before credential work: the caller's IP
// is checked against the ban list first, and every credential miss (unknown email, wrong
// password, or a password attempt against an OAuth-only account) feeds the per-(ip,
// email) lockout counter. Crossing the lockout threshold bans the IP and returns
// ErrAccountLocked. Account-state gates (inactive, unverified) run only after the
// password matched and do not count toward lockout. A match resets the pair's counter,
// so a later streak starts from one.
//
// Session-record persistence and audit are fire-and-forget; their failures never fail a
// login that produced a valid token.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	start := time.Now()
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}
	ip := clientIPFromContext(ctx)

	if err := e.checkIPBan(ctx, ip, email); err != nil {
		return nil, err
	}

	p, err := e.users.FindByEmail(ctx, email, LookupOptions{IncludeSecrets: true, PopulateRole: true})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, e.failLogin(ctx, ip, email, "", "unknown_email")
		}
		return nil, err
	}

	if p.PasswordHash == "" {
		if p.Provider == ProviderOAuth {
			// A password attempt against an OAuth-only account is still a guess at
			// this mailbox; it counts toward lockout like any other miss.
			if lockErr := e.failLogin(ctx, ip, email, p.ID, "social_login_only"); errors.Is(lockErr, ErrAccountLocked) {
				return nil, lockErr
			}
			return nil, ErrSocialLoginOnly
		}
		e.emitAudit(ctx, auditEventLoginFailure, false, p.ID, email, "", ErrPasswordResetRequired, nil)
		return nil, ErrPasswordResetRequired
	}

	match, err := e.hasher.Verify(req.Password, p.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !match {
		return nil, e.failLogin(ctx, ip, email, p.ID, "password_mismatch")
	}

	if err := e.lockout.Reset(ctx, ip, email); err != nil {
		e.emitAudit(ctx, auditEventLoginFailure, false, p.ID, email, "", err, func() map[string]string {
			return map[string]string{"stage": "lockout_reset"}
		})
	}

	if !p.IsActive {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginBlocked, false, p.ID, email, "", ErrAccountInactive, nil)
		return nil, ErrAccountInactive
	}
	if !p.IsEmailVerified {
		e.metricInc(MetricLoginFailure)
		verr := &EmailNotVerifiedError{UserID: p.ID}
		e.emitAudit(ctx, auditEventLoginBlocked, false, p.ID, email, "", verr, nil)
		return nil, verr
	}

	result, err := e.issueLogin(ctx, p, req.RememberMe)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricLoginSuccess)
	e.metrics.Observe(HistogramLoginLatency, time.Since(start))
	e.emitAudit(ctx, auditEventLoginSuccess, true, p.ID, email, result.SessionID, nil, func() map[string]string {
		return map[string]string{"remember_me": fmt.Sprintf("%t", req.RememberMe)}
	})
	return result, nil
}

// checkIPBan rejects requests from currently banned addresses before any credential or
// store work happens.
func (e *Engine) checkIPBan(ctx context.Context, ip, email string) error {
	banned, err := e.bans.IsBanned(ctx, ip)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if banned {
		e.metricInc(MetricLoginBlocked)
		e.emitAudit(ctx, auditEventLoginBlocked, false, "", email, "", ErrIPBanned, nil)
		return ErrIPBanned
	}
	return nil
}

// failLogin records one credential miss for the (ip, email) pair and returns the error
// the caller should surface: ErrAccountLocked when the streak crossed its threshold and
// the IP was banned, otherwise InvalidCredentialsError with the remaining attempt count.
// Privileged targets use the tighter threshold and longer ban.
func (e *Engine) failLogin(ctx context.Context, ip, email, userID, reason string) error {
	e.metricInc(MetricLoginFailure)

	privileged := e.isPrivilegedEmail(email)
	count, err := e.lockout.RecordFailure(ctx, ip, email)
	if err != nil {
		// Lockout bookkeeping being down must not reveal anything extra; the
		// caller still sees a credential failure.
		e.emitAudit(ctx, auditEventLoginFailure, false, userID, email, "", err, nil)
		return &InvalidCredentialsError{Remaining: int(e.lockout.Threshold(privileged))}
	}

	threshold := e.lockout.Threshold(privileged)
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, email, "", ErrInvalidCredentials, func() map[string]string {
		return map[string]string{
			"reason":     reason,
			"attempts":   fmt.Sprintf("%d", count),
			"privileged": fmt.Sprintf("%t", privileged),
		}
	})

	if count >= threshold && ip != "" {
		banReason := limiters.BanReasonFailedLogins
		if privileged {
			banReason = limiters.BanReasonFailedAdminLogins
		}
		evidence := fmt.Sprintf("%d failed logins for %s", count, email)
		if err := e.bans.Ban(ctx, ip, banReason, evidence, e.lockout.BanDuration(privileged)); err != nil {
			e.emitAudit(ctx, auditEventIPBanned, false, userID, email, "", err, nil)
		} else {
			e.metricInc(MetricIPBanned)
			e.emitAudit(ctx, auditEventIPBanned, true, userID, email, "", nil, func() map[string]string {
				return map[string]string{"reason": string(banReason)}
			})
		}
		return ErrAccountLocked
	}

	remaining := int(threshold - count)
	if remaining < 0 {
		remaining = 0
	}
	return &InvalidCredentialsError{Remaining: remaining}
}
