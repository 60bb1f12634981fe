package authcore

import (
	"context"
	"errors"
)

// Audit event types emitted by the engine flows.
const (
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventLoginBlocked         = "login_blocked"
	auditEventIPBanned             = "ip_banned"
	auditEventRegisterSuccess      = "register_success"
	auditEventRegisterRollback     = "register_rollback"
	auditEventRegisterFailure      = "register_failure"
	auditEventOTPVerified          = "otp_verified"
	auditEventOTPResent            = "otp_resent"
	auditEventOTPFailure           = "otp_failure"
	auditEventResetRequested       = "password_reset_requested"
	auditEventResetRollback        = "password_reset_rollback"
	auditEventResetCompleted       = "password_reset_completed"
	auditEventResetFailure         = "password_reset_failure"
	auditEventOAuthLogin           = "oauth_login"
	auditEventLogout               = "logout"
	auditEventSessionEvicted       = "session_evicted"
	auditEventSessionTerminated    = "session_terminated"
	auditEventSessionsTerminated   = "sessions_terminated"
	auditEventBotDetected          = "bot_detected"
	auditEventPermissionDenied     = "permission_denied"
	auditEventAccountRestored      = "account_restored"
	auditEventSessionRecordFailure = "session_record_failure"
)

// AuditErrorCode defines a public type used by authcore APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type AuditErrorCode string

// Stable error codes recorded on failed audit events.
const (
	AuditErrNone               AuditErrorCode = ""
	AuditErrValidation         AuditErrorCode = "validation"
	AuditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	AuditErrIPBanned           AuditErrorCode = "ip_banned"
	AuditErrAccountLocked      AuditErrorCode = "account_locked"
	AuditErrAccountInactive    AuditErrorCode = "account_inactive"
	AuditErrEmailUnverified    AuditErrorCode = "email_unverified"
	AuditErrEmailExists        AuditErrorCode = "email_exists"
	AuditErrUserNotFound       AuditErrorCode = "user_not_found"
	AuditErrOTP                AuditErrorCode = "otp_rejected"
	AuditErrResetToken         AuditErrorCode = "reset_token_rejected"
	AuditErrSocialLoginOnly    AuditErrorCode = "social_login_only"
	AuditErrPasswordReset      AuditErrorCode = "password_reset_required"
	AuditErrEmailDispatch      AuditErrorCode = "email_dispatch"
	AuditErrTokenInvalid       AuditErrorCode = "token_invalid"
	AuditErrStoreUnavailable   AuditErrorCode = "store_unavailable"
	AuditErrInternal           AuditErrorCode = "internal"
)

func auditErrorCode(err error) AuditErrorCode {
	switch {
	case err == nil:
		return AuditErrNone
	case errors.Is(err, ErrValidation):
		return AuditErrValidation
	case errors.Is(err, ErrInvalidCredentials):
		return AuditErrInvalidCredentials
	case errors.Is(err, ErrIPBanned):
		return AuditErrIPBanned
	case errors.Is(err, ErrAccountLocked):
		return AuditErrAccountLocked
	case errors.Is(err, ErrAccountInactive):
		return AuditErrAccountInactive
	case errors.Is(err, ErrEmailUnverified):
		return AuditErrEmailUnverified
	case errors.Is(err, ErrEmailExists):
		return AuditErrEmailExists
	case errors.Is(err, ErrUserNotFound):
		return AuditErrUserNotFound
	case errors.Is(err, ErrOTPMissing), errors.Is(err, ErrOTPExpired),
		errors.Is(err, ErrOTPMismatch), errors.Is(err, ErrAlreadyVerified):
		return AuditErrOTP
	case errors.Is(err, ErrResetTokenInvalid):
		return AuditErrResetToken
	case errors.Is(err, ErrSocialLoginOnly):
		return AuditErrSocialLoginOnly
	case errors.Is(err, ErrPasswordResetRequired):
		return AuditErrPasswordReset
	case errors.Is(err, ErrEmailDispatch):
		return AuditErrEmailDispatch
	case errors.Is(err, ErrTokenInvalid):
		return AuditErrTokenInvalid
	case errors.Is(err, ErrStoreUnavailable):
		return AuditErrStoreUnavailable
	default:
		return AuditErrInternal
	}
}

// emitAudit builds and enqueues one event. metadataBuilder is invoked only when a
// dispatcher is attached, so flows pay nothing for metadata when audit is disabled.
func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, userID, email, sessionID string, err error, metadataBuilder func() map[string]string) {
	if e == nil || e.audit == nil {
		return
	}
	event := AuditEvent{
		EventType: eventType,
		UserID:    userID,
		Email:     email,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		ErrorCode: auditErrorCode(err),
	}
	if metadataBuilder != nil {
		event.Metadata = metadataBuilder()
	}
	e.audit.Emit(event)
}
