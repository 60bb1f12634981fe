package authcore

import (
	"context"
	"time"

	"github.com/zvincent07/authcore/password"
	"github.com/zvincent07/authcore/permission"
	"github.com/zvincent07/authcore/session"
)

// Provider identifies how a principal authenticates.
//
// Provider instances are intended to be configured during initialization and then treated
// as immutable unless documented otherwise.
type Provider string

// Supported credential providers.
const (
	ProviderLocal Provider = "local"
	ProviderOAuth Provider = "oauth"
)

// OTPChallenge defines a public type used by authcore APIs.
//
// OTPChallenge instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type OTPChallenge struct {
	Code      string
	ExpiresAt time.Time
}

// ResetChallenge defines a public type used by authcore APIs.
//
// ResetChallenge instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise. TokenHash holds the hex-encoded
// SHA-256 of the issued token; the raw token is never persisted.
type ResetChallenge struct {
	TokenHash string
	ExpiresAt time.Time
}

// Role defines a public type used by authcore APIs.
//
// Role instances are intended to be configured during initialization and then treated as
// immutable unless documented otherwise.
type Role struct {
	ID          string
	Name        string
	Description string
	Permissions []string
}

// Principal is the canonical account record exchanged between the engine and a
// CredentialStore implementation.
//
// Secret-bearing fields (PasswordHash, OTP, Reset) are populated only when the lookup
// requested them via LookupOptions.IncludeSecrets. Role carries the populated role
// relation when LookupOptions.PopulateRole was set; RoleName is always present and is
// the value embedded in issued tokens.
type Principal struct {
	ID              string
	Email           string
	PasswordHash    string
	FirstName       string
	LastName        string
	RoleID          string
	RoleName        string
	Role            *Role
	Provider        Provider
	ExternalID      string
	AvatarURL       string
	IsActive        bool
	IsEmailVerified bool
	OTP             *OTPChallenge
	Reset           *ResetChallenge
	LastLogin       *time.Time
	DeletedAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FullName describes the full name operation and its observable behavior.
//
// FullName does not mutate shared global state and can be used concurrently when the
// receiver and dependencies are concurrently safe.
func (p *Principal) FullName() string {
	if p == nil {
		return ""
	}
	if p.FirstName == "" {
		return p.LastName
	}
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// subject projects the principal into the shape the permission model evaluates.
// Permissions stays nil when the role relation was not populated.
func (p *Principal) subject() *permission.Subject {
	if p == nil {
		return nil
	}
	s := &permission.Subject{ID: p.ID, RoleName: p.RoleName}
	if p.Role != nil {
		s.RoleName = p.Role.Name
		s.Permissions = p.Role.Permissions
	}
	return s
}

// LookupOptions defines a public type used by authcore APIs.
//
// LookupOptions instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type LookupOptions struct {
	// IncludeSecrets asks the store to populate PasswordHash, OTP, and Reset.
	IncludeSecrets bool
	// PopulateRole asks the store to resolve the role relation into Principal.Role.
	PopulateRole bool
	// IncludeDeleted includes soft-deleted principals in the lookup.
	IncludeDeleted bool
}

// CredentialFilter defines a public type used by authcore APIs.
//
// CredentialFilter instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type CredentialFilter struct {
	RoleName       string
	ActiveOnly     bool
	IncludeDeleted bool
}

// CredentialStore persists principals. Implementations must be safe for concurrent use.
//
// Lookups that match no record return ErrUserNotFound (never a nil principal with a nil
// error). Soft-deleted principals are invisible to every lookup unless
// LookupOptions.IncludeDeleted is set. Create must reject duplicate emails with
// ErrEmailExists, where "duplicate" is evaluated case-insensitively against non-deleted
// rows. Infrastructure failures are reported wrapped in ErrStoreUnavailable.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string, opts LookupOptions) (*Principal, error)
	FindByID(ctx context.Context, id string, opts LookupOptions) (*Principal, error)
	FindByExternalID(ctx context.Context, externalID string) (*Principal, error)
	FindByResetTokenHash(ctx context.Context, tokenHash string) (*Principal, error)
	Create(ctx context.Context, p *Principal) (*Principal, error)
	UpdateByID(ctx context.Context, id string, p *Principal) error
	SoftDelete(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) error
	Count(ctx context.Context, filter CredentialFilter) (int64, error)
}

// RoleStore resolves role records seeded by the embedding application.
//
// FindByName returns ErrRoleNotFound when no role carries the given name.
type RoleStore interface {
	FindByName(ctx context.Context, name string) (*Role, error)
	FindByIDs(ctx context.Context, ids []string) ([]Role, error)
	FindAll(ctx context.Context) ([]Role, error)
}

// EmailSender delivers transactional mail. Delivery failures are returned to the engine,
// which compensates (registration rollback, reset-challenge clearing) before surfacing
// ErrEmailDispatch to the caller.
type EmailSender interface {
	// SendOTP delivers a verification code. temporaryPassword is non-empty only for
	// administratively provisioned accounts and is included in the same message.
	SendOTP(ctx context.Context, email, name, code, temporaryPassword string) error
	SendPasswordReset(ctx context.Context, email, name, resetURL string) error
}

// Location is the geo enrichment attached to session records.
type Location = session.Location

// DeviceInfo defines a public type used by authcore APIs.
//
// DeviceInfo instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type DeviceInfo struct {
	Platform string
	Browser  string
	Device   string
}

// GeoEnricher resolves an IP address into a coarse location for session records.
// Implementations never fail; unknown addresses yield a zero Location.
type GeoEnricher interface {
	Locate(ctx context.Context, ip string) Location
}

// UAParser extracts device metadata from a raw User-Agent string.
type UAParser interface {
	Parse(userAgent string) DeviceInfo
}

// RegisterRequest defines a public type used by authcore APIs.
//
// RegisterRequest instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type RegisterRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// RegisterResult defines a public type used by authcore APIs.
//
// RegisterResult instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type RegisterResult struct {
	UserID               string
	Email                string
	RequiresVerification bool
}

// LoginRequest defines a public type used by authcore APIs.
//
// LoginRequest instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise. Client IP and User-Agent travel on
// the context via WithClientIP and WithUserAgent.
type LoginRequest struct {
	Email      string
	Password   string
	RememberMe bool
}

// LoginResult defines a public type used by authcore APIs.
//
// LoginResult instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	UserID    string
	Email     string
	FirstName string
	LastName  string
	RoleName  string
	SessionID string
}

// ExternalIdentity is a completed, verified assertion from an upstream OAuth or OIDC
// handshake. The embedding application performs the handshake; the engine only links or
// creates a principal from the result.
type ExternalIdentity struct {
	ProviderID string
	Email      string
	FirstName  string
	LastName   string
	AvatarURL  string
}

// AuthResult defines a public type used by authcore APIs.
//
// AuthResult instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type AuthResult struct {
	UserID    string
	RoleName  string
	SessionID string
}

// SessionInfo is the read model returned by Engine.Sessions.
type SessionInfo = session.Info

// PermissionDeniedError reports a failed permission check together with the
// human-readable label of the action that was denied.
type PermissionDeniedError = permission.DeniedError

// PasswordPolicyError itemizes every password policy rule the candidate violated.
type PasswordPolicyError = password.PolicyError
