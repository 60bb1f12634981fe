package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zvincent07/authcore/internal"
)

// ForgotPassword issues a password-reset challenge and mails the reset link. Only the
// SHA-256 of the token is stored; the raw token exists in the email alone.
//
// Unknown addresses return success so the endpoint cannot be used to enumerate
// accounts. Two deliberate exceptions: a deactivated account returns
// ErrAccountInactive, since the administrative gate outranks the reset flow, and an
// OAuth-only account (no password to reset) returns ErrSocialLoginOnly, pointing the
// user at their provider instead of a reset that can never work.
//
// A dispatch failure compensates by clearing the just-stored challenge, so no orphaned
// token hash outlives a mail that never went out.
func (e *Engine) ForgotPassword(ctx context.Context, email string) error {
	if err := e.ready(); err != nil {
		return err
	}
	email = normalizeEmail(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}

	p, err := e.users.FindByEmail(ctx, email, LookupOptions{IncludeSecrets: true})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.emitAudit(ctx, auditEventResetRequested, true, "", email, "", nil, func() map[string]string {
				return map[string]string{"outcome": "no_account"}
			})
			return nil
		}
		return err
	}
	if !p.IsActive {
		e.emitAudit(ctx, auditEventResetFailure, false, p.ID, email, "", ErrAccountInactive, nil)
		return ErrAccountInactive
	}
	if p.PasswordHash == "" && p.Provider == ProviderOAuth {
		e.emitAudit(ctx, auditEventResetFailure, false, p.ID, email, "", ErrSocialLoginOnly, nil)
		return ErrSocialLoginOnly
	}

	raw, err := internal.NewResetToken()
	if err != nil {
		return err
	}
	p.Reset = &ResetChallenge{
		TokenHash: internal.HashToken(raw),
		ExpiresAt: time.Now().Add(e.cfg.Reset.TokenTTL),
	}
	if err := e.users.UpdateByID(ctx, p.ID, p); err != nil {
		return err
	}

	resetURL := e.cfg.Reset.URLBase + raw
	if err := e.email.SendPasswordReset(ctx, p.Email, p.FullName(), resetURL); err != nil {
		// Clear the challenge so the stored hash cannot outlive the failed mail.
		p.Reset = nil
		if clrErr := e.users.UpdateByID(ctx, p.ID, p); clrErr != nil {
			e.emitAudit(ctx, auditEventResetRollback, false, p.ID, email, "", clrErr, nil)
		} else {
			e.emitAudit(ctx, auditEventResetRollback, true, p.ID, email, "", ErrEmailDispatch, nil)
		}
		return fmt.Errorf("%w: %v", ErrEmailDispatch, err)
	}

	e.metricInc(MetricResetRequested)
	e.emitAudit(ctx, auditEventResetRequested, true, p.ID, email, "", nil, nil)
	return nil
}

// ResetPassword consumes a reset token and installs a new password, then issues a
// session token so the user lands logged in.
//
// The token is located by its hash and must not be expired. A successful reset also
// settles account state proven by possession of the mailbox: an unverified email becomes
// verified and any pending OTP challenge is cleared alongside the consumed reset
// challenge.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrResetTokenInvalid
	}

	p, err := e.users.FindByResetTokenHash(ctx, internal.HashToken(token))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricResetRejected)
			e.emitAudit(ctx, auditEventResetFailure, false, "", "", "", ErrResetTokenInvalid, nil)
			return nil, ErrResetTokenInvalid
		}
		return nil, err
	}
	if p.Reset == nil || time.Now().After(p.Reset.ExpiresAt) {
		e.metricInc(MetricResetRejected)
		e.emitAudit(ctx, auditEventResetFailure, false, p.ID, p.Email, "", ErrResetTokenInvalid, nil)
		return nil, ErrResetTokenInvalid
	}
	if !p.IsActive {
		e.metricInc(MetricResetRejected)
		e.emitAudit(ctx, auditEventResetFailure, false, p.ID, p.Email, "", ErrAccountInactive, nil)
		return nil, ErrAccountInactive
	}

	// Token possession is settled before the new password is judged, so an invalid
	// token never elicits a policy response.
	if err := e.policy.Check(newPassword); err != nil {
		return nil, err
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	p.PasswordHash = hash
	p.Reset = nil
	p.OTP = nil
	p.IsEmailVerified = true
	if err := e.users.UpdateByID(ctx, p.ID, p); err != nil {
		return nil, err
	}

	result, err := e.issueLogin(ctx, p, false)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricResetCompleted)
	e.emitAudit(ctx, auditEventResetCompleted, true, p.ID, p.Email, result.SessionID, nil, nil)
	return result, nil
}
