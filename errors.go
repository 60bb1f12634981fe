package authcore

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is an exported constant or variable used by the authentication engine.
	ErrValidation = errors.New("validation failed")

	// ErrEmailExists is an exported constant or variable used by the authentication engine.
	ErrEmailExists = errors.New("email already registered")

	// ErrRoleExists is an exported constant or variable used by the authentication engine.
	ErrRoleExists = errors.New("role already exists")

	// ErrUserNotFound is an exported constant or variable used by the authentication engine.
	ErrUserNotFound = errors.New("user not found")

	// ErrRoleNotFound is an exported constant or variable used by the authentication engine.
	ErrRoleNotFound = errors.New("role not found")

	// ErrRoleSeedMissing is an exported constant or variable used by the authentication engine.
	ErrRoleSeedMissing = errors.New("default role not seeded")

	// ErrSessionNotFound is an exported constant or variable used by the authentication engine.
	ErrSessionNotFound = errors.New("session not found")

	// ErrCurrentSessionNotFound is an exported constant or variable used by the authentication engine.
	ErrCurrentSessionNotFound = errors.New("current session not found")

	// ErrInvalidCredentials is an exported constant or variable used by the authentication engine.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrIPBanned is an exported constant or variable used by the authentication engine.
	ErrIPBanned = errors.New("ip address banned")

	// ErrAccountLocked is an exported constant or variable used by the authentication engine.
	ErrAccountLocked = errors.New("account locked")

	// ErrAccountInactive is an exported constant or variable used by the authentication engine.
	ErrAccountInactive = errors.New("account inactive")

	// ErrEmailUnverified is an exported constant or variable used by the authentication engine.
	ErrEmailUnverified = errors.New("email not verified")

	// ErrOTPMissing is an exported constant or variable used by the authentication engine.
	ErrOTPMissing = errors.New("no verification code pending")

	// ErrOTPExpired is an exported constant or variable used by the authentication engine.
	ErrOTPExpired = errors.New("verification code expired")

	// ErrOTPMismatch is an exported constant or variable used by the authentication engine.
	ErrOTPMismatch = errors.New("verification code mismatch")

	// ErrAlreadyVerified is an exported constant or variable used by the authentication engine.
	ErrAlreadyVerified = errors.New("email already verified")

	// ErrResetTokenInvalid is an exported constant or variable used by the authentication engine.
	ErrResetTokenInvalid = errors.New("reset token invalid or expired")

	// ErrSocialLoginOnly is an exported constant or variable used by the authentication engine.
	ErrSocialLoginOnly = errors.New("account uses social login")

	// ErrPasswordResetRequired is an exported constant or variable used by the authentication engine.
	ErrPasswordResetRequired = errors.New("password reset required")

	// ErrEmailDispatch is an exported constant or variable used by the authentication engine.
	ErrEmailDispatch = errors.New("email dispatch failed")

	// ErrTokenInvalid is an exported constant or variable used by the authentication engine.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrStoreUnavailable is an exported constant or variable used by the authentication engine.
	ErrStoreUnavailable = errors.New("backing store unavailable")

	// ErrEngineNotReady is an exported constant or variable used by the authentication engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// InvalidCredentialsError is the failure returned for a wrong password or unknown email.
// Remaining reports how many further attempts the (ip, email) pair has before lockout.
//
// InvalidCredentialsError matches ErrInvalidCredentials under errors.Is.
type InvalidCredentialsError struct {
	Remaining int
}

// Error describes the error operation and its observable behavior.
//
// Error does not mutate shared global state and can be used concurrently when the
// receiver and dependencies are concurrently safe.
func (e *InvalidCredentialsError) Error() string {
	if e.Remaining == 1 {
		return fmt.Sprintf("%v: 1 attempt remaining", ErrInvalidCredentials)
	}
	return fmt.Sprintf("%v: %d attempts remaining", ErrInvalidCredentials, e.Remaining)
}

// Unwrap describes the unwrap operation and its observable behavior.
//
// Unwrap does not mutate shared global state and can be used concurrently when the
// receiver and dependencies are concurrently safe.
func (e *InvalidCredentialsError) Unwrap() error { return ErrInvalidCredentials }

// EmailNotVerifiedError is the failure returned when a credential match hits an
// unverified mailbox. UserID lets callers start the resend-OTP flow without a second
// lookup.
//
// EmailNotVerifiedError matches ErrEmailUnverified under errors.Is.
type EmailNotVerifiedError struct {
	UserID string
}

// Error describes the error operation and its observable behavior.
//
// Error does not mutate shared global state and can be used concurrently when the
// receiver and dependencies are concurrently safe.
func (e *EmailNotVerifiedError) Error() string {
	return fmt.Sprintf("%v: user %s", ErrEmailUnverified, e.UserID)
}

// Unwrap describes the unwrap operation and its observable behavior.
//
// Unwrap does not mutate shared global state and can be used concurrently when the
// receiver and dependencies are concurrently safe.
func (e *EmailNotVerifiedError) Unwrap() error { return ErrEmailUnverified }
