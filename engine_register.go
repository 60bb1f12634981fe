package authcore

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/zvincent07/authcore/internal"
)

// Register creates a principal with the default role and an email verification
// challenge, then dispatches the challenge code.
//
// The flow compensates on dispatch failure: a principal whose verification mail could
// not be sent is soft-deleted again, so the address stays free for a retry instead of
// being stuck behind an unreachable account. Registration never issues a token; the
// account stays unusable until VerifyOTP succeeds.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrValidation)
	}
	if ip := clientIPFromContext(ctx); ip != "" {
		if err := e.checkIPBan(ctx, ip, email); err != nil {
			return nil, err
		}
	}
	if err := e.policy.Check(req.Password); err != nil {
		return nil, err
	}

	if _, err := e.users.FindByEmail(ctx, email, LookupOptions{}); err == nil {
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", email, "", ErrEmailExists, nil)
		return nil, ErrEmailExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	role, err := e.roles.FindByName(ctx, e.cfg.Account.DefaultRole)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrRoleSeedMissing, e.cfg.Account.DefaultRole)
		}
		return nil, err
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	code, err := internal.NewOTP(e.cfg.OTP.Digits)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	created, err := e.users.Create(ctx, &Principal{
		Email:           email,
		PasswordHash:    hash,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		RoleID:          role.ID,
		RoleName:        role.Name,
		Provider:        ProviderLocal,
		IsActive:        true,
		IsEmailVerified: false,
		OTP: &OTPChallenge{
			Code:      code,
			ExpiresAt: now.Add(e.cfg.OTP.TTL),
		},
	})
	if err != nil {
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", email, "", err, nil)
		return nil, err
	}

	if err := e.email.SendOTP(ctx, email, created.FullName(), code, ""); err != nil {
		// Dispatch failed after the row landed: roll the account back so the
		// address is immediately registerable again.
		if delErr := e.users.SoftDelete(ctx, created.ID); delErr != nil {
			e.emitAudit(ctx, auditEventRegisterRollback, false, created.ID, email, "", delErr, nil)
		} else {
			e.metricInc(MetricRegisterRollback)
			e.emitAudit(ctx, auditEventRegisterRollback, true, created.ID, email, "", ErrEmailDispatch, nil)
		}
		return nil, fmt.Errorf("%w: %v", ErrEmailDispatch, err)
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, created.ID, email, "", nil, nil)
	return &RegisterResult{
		UserID:               created.ID,
		Email:                email,
		RequiresVerification: true,
	}, nil
}

// VerifyOTP confirms the pending email challenge for a principal and, on success, marks
// the address verified, consumes the challenge, and issues a session token so the user
// lands logged in.
//
// A wrong code does not consume the challenge; the user may retry until the code
// expires. Comparison is constant-time.
func (e *Engine) VerifyOTP(ctx context.Context, userID, code string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	p, err := e.users.FindByID(ctx, userID, LookupOptions{IncludeSecrets: true, PopulateRole: true})
	if err != nil {
		return nil, err
	}
	if p.IsEmailVerified {
		return nil, e.otpFailure(ctx, p, ErrAlreadyVerified)
	}
	if p.OTP == nil || p.OTP.Code == "" {
		return nil, e.otpFailure(ctx, p, ErrOTPMissing)
	}
	if time.Now().After(p.OTP.ExpiresAt) {
		return nil, e.otpFailure(ctx, p, ErrOTPExpired)
	}
	if subtle.ConstantTimeCompare([]byte(p.OTP.Code), []byte(code)) != 1 {
		return nil, e.otpFailure(ctx, p, ErrOTPMismatch)
	}

	p.IsEmailVerified = true
	p.OTP = nil
	if err := e.users.UpdateByID(ctx, p.ID, p); err != nil {
		return nil, err
	}

	result, err := e.issueLogin(ctx, p, false)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricOTPVerified)
	e.emitAudit(ctx, auditEventOTPVerified, true, p.ID, p.Email, result.SessionID, nil, nil)
	return result, nil
}

// ResendOTP replaces the pending verification challenge with a fresh code and
// dispatches it. The previous code stops working immediately. A dispatch failure leaves
// the new challenge in place; the user can request another resend.
func (e *Engine) ResendOTP(ctx context.Context, userID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	p, err := e.users.FindByID(ctx, userID, LookupOptions{IncludeSecrets: true})
	if err != nil {
		return err
	}
	if p.IsEmailVerified {
		return e.otpFailure(ctx, p, ErrAlreadyVerified)
	}

	code, err := internal.NewOTP(e.cfg.OTP.Digits)
	if err != nil {
		return err
	}
	p.OTP = &OTPChallenge{
		Code:      code,
		ExpiresAt: time.Now().Add(e.cfg.OTP.TTL),
	}
	if err := e.users.UpdateByID(ctx, p.ID, p); err != nil {
		return err
	}

	if err := e.email.SendOTP(ctx, p.Email, p.FullName(), code, ""); err != nil {
		e.emitAudit(ctx, auditEventOTPResent, false, p.ID, p.Email, "", ErrEmailDispatch, nil)
		return fmt.Errorf("%w: %v", ErrEmailDispatch, err)
	}
	e.metricInc(MetricOTPResent)
	e.emitAudit(ctx, auditEventOTPResent, true, p.ID, p.Email, "", nil, nil)
	return nil
}

// ProvisionAccount creates an active principal on behalf of an administrator with a
// generated temporary password, and mails that password alongside the verification
// code. The caller must hold the users:write permission.
func (e *Engine) ProvisionAccount(ctx context.Context, actor *Principal, req RegisterRequest, roleName string) (*RegisterResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.RequirePermission(ctx, actor, "users:write", "create users"); err != nil {
		return nil, err
	}
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrValidation)
	}
	if _, err := e.users.FindByEmail(ctx, email, LookupOptions{}); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	role, err := e.roles.FindByName(ctx, roleName)
	if err != nil {
		return nil, err
	}

	tempPassword, err := internal.NewResetToken()
	if err != nil {
		return nil, err
	}
	hash, err := e.hasher.Hash(tempPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	code, err := internal.NewOTP(e.cfg.OTP.Digits)
	if err != nil {
		return nil, err
	}

	created, err := e.users.Create(ctx, &Principal{
		Email:           email,
		PasswordHash:    hash,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		RoleID:          role.ID,
		RoleName:        role.Name,
		Provider:        ProviderLocal,
		IsActive:        true,
		IsEmailVerified: false,
		OTP: &OTPChallenge{
			Code:      code,
			ExpiresAt: time.Now().Add(e.cfg.OTP.TTL),
		},
	})
	if err != nil {
		return nil, err
	}

	if err := e.email.SendOTP(ctx, email, created.FullName(), code, tempPassword); err != nil {
		if delErr := e.users.SoftDelete(ctx, created.ID); delErr != nil {
			e.emitAudit(ctx, auditEventRegisterRollback, false, created.ID, email, "", delErr, nil)
		} else {
			e.metricInc(MetricRegisterRollback)
			e.emitAudit(ctx, auditEventRegisterRollback, true, created.ID, email, "", ErrEmailDispatch, nil)
		}
		return nil, fmt.Errorf("%w: %v", ErrEmailDispatch, err)
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, created.ID, email, "", nil, func() map[string]string {
		return map[string]string{"provisioned_by": principalID(actor), "role": role.Name}
	})
	return &RegisterResult{UserID: created.ID, Email: email, RequiresVerification: true}, nil
}

// RestoreAccount reverses a soft delete. The caller must hold the users:delete
// permission.
func (e *Engine) RestoreAccount(ctx context.Context, actor *Principal, userID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.RequirePermission(ctx, actor, "users:delete", "restore users"); err != nil {
		return err
	}
	if err := e.users.Restore(ctx, userID); err != nil {
		return err
	}
	e.emitAudit(ctx, auditEventAccountRestored, true, userID, "", "", nil, func() map[string]string {
		return map[string]string{"restored_by": principalID(actor)}
	})
	return nil
}

func (e *Engine) otpFailure(ctx context.Context, p *Principal, cause error) error {
	e.metricInc(MetricOTPRejected)
	e.emitAudit(ctx, auditEventOTPFailure, false, principalID(p), p.Email, "", cause, nil)
	return cause
}
