package authcore

import (
	"errors"
	"strings"
	"time"
)

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig defines a public type used by authcore APIs.
//
// TokenConfig instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type TokenConfig struct {
	// SigningMethod selects the JWT algorithm: "ed25519" or "hs256".
	SigningMethod string

	// PrivateKey signs tokens. For hs256 it is the shared secret (min 32 bytes).
	// For ed25519 it is a raw seed, raw private key, or PEM-encoded PKCS#8 key.
	PrivateKey []byte

	// PublicKey verifies ed25519 tokens. Ignored for hs256.
	PublicKey []byte

	// Issuer is embedded in and required of every token when non-empty.
	Issuer string

	// DefaultTTL is the token lifetime for ordinary logins.
	DefaultTTL time.Duration

	// RememberMeTTL is the token lifetime when the caller opted into remember-me.
	// Only the lifetime differs; claims are otherwise identical.
	RememberMeTTL time.Duration

	// Leeway tolerates clock skew during validation.
	Leeway time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by authcore APIs.
//
// SessionConfig instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type SessionConfig struct {
	// RedisPrefix namespaces every session key. The store derives its record and
	// per-user index keyspaces from it.
	RedisPrefix string

	// MaxActivePerUser caps concurrent sessions per principal. When a save would
	// exceed the cap, the sessions with the smallest last-active timestamps are
	// deactivated first.
	MaxActivePerUser int

	// Retention keeps deactivated session records readable for this long.
	Retention time.Duration
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig defines a public type used by authcore APIs.
//
// LockoutConfig instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type LockoutConfig struct {
	// Window bounds how long a failure streak is remembered.
	Window time.Duration

	// OrdinaryThreshold is the attempt count at which an ordinary (ip, email) pair
	// trips a ban.
	OrdinaryThreshold int

	// OrdinaryBanDuration is the IP ban length for ordinary targets.
	OrdinaryBanDuration time.Duration

	// PrivilegedThreshold is the tighter attempt count for privileged targets.
	PrivilegedThreshold int

	// PrivilegedBanDuration is the longer IP ban for privileged targets.
	PrivilegedBanDuration time.Duration

	// PrivilegedPrefixes marks an email as privileged when its lowercase form starts
	// with any entry.
	PrivilegedPrefixes []string
}

/*
====================================
BOT DETECTION CONFIG
====================================
*/

// BotDetectConfig defines a public type used by authcore APIs.
//
// BotDetectConfig instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type BotDetectConfig struct {
	Enabled bool

	// BanThreshold is the score (0-100) at or above which the reporting IP is banned.
	BanThreshold int

	// BanDuration is the ban length applied on detection.
	BanDuration time.Duration
}

/*
====================================
CHALLENGE CONFIG
====================================
*/

// OTPConfig defines a public type used by authcore APIs.
//
// OTPConfig instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type OTPConfig struct {
	Digits int
	TTL    time.Duration
}

// ResetConfig defines a public type used by authcore APIs.
//
// ResetConfig instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type ResetConfig struct {
	TokenTTL time.Duration

	// URLBase is prepended to the raw token when composing the emailed reset link.
	URLBase string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by authcore APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type PasswordConfig struct {
	// Argon2id cost parameters.
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	// Policy rules checked before hashing.
	MinLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

// AccountConfig defines a public type used by authcore APIs.
//
// AccountConfig instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type AccountConfig struct {
	// DefaultRole is assigned to self-registered and OAuth-created principals.
	// The role must exist in the RoleStore at flow time.
	DefaultRole string
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// AuditConfig defines a public type used by authcore APIs.
//
// AuditConfig instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int

	// DropIfFull drops events instead of blocking the caller when the buffer is full.
	DropIfFull bool
}

// MetricsConfig defines a public type used by authcore APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
ROOT CONFIG
====================================
*/

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated
// as immutable unless documented otherwise.
type Config struct {
	Token     TokenConfig
	Session   SessionConfig
	Lockout   LockoutConfig
	BotDetect BotDetectConfig
	OTP       OTPConfig
	Reset     ResetConfig
	Password  PasswordConfig
	Account   AccountConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

// DefaultConfig describes the default config operation and its observable behavior.
//
// DefaultConfig does not mutate shared global state and can be used concurrently when the
// receiver and dependencies are concurrently safe.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			SigningMethod: "ed25519",
			DefaultTTL:    7 * 24 * time.Hour,
			RememberMeTTL: 30 * 24 * time.Hour,
			Leeway:        30 * time.Second,
		},
		Session: SessionConfig{
			RedisPrefix:      "as",
			MaxActivePerUser: 20,
			Retention:        30 * 24 * time.Hour,
		},
		Lockout: LockoutConfig{
			Window:                time.Hour,
			OrdinaryThreshold:     10,
			OrdinaryBanDuration:   30 * time.Minute,
			PrivilegedThreshold:   5,
			PrivilegedBanDuration: time.Hour,
			PrivilegedPrefixes:    []string{"admin@"},
		},
		BotDetect: BotDetectConfig{
			Enabled:      true,
			BanThreshold: 80,
			BanDuration:  24 * time.Hour,
		},
		OTP: OTPConfig{
			Digits: 6,
			TTL:    10 * time.Minute,
		},
		Reset: ResetConfig{
			TokenTTL: 10 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:       64 * 1024,
			Iterations:   3,
			Parallelism:  2,
			SaltLength:   16,
			KeyLength:    32,
			MinLength:    8,
			RequireUpper:   true,
			RequireLower:   true,
			RequireDigit:   true,
			RequireSpecial: true,
		},
		Account: AccountConfig{
			DefaultRole: "user",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security
// checks fail. Validate does not mutate shared global state and can be used concurrently
// when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Token.SigningMethod) {
	case "ed25519", "hs256":
	default:
		return errors.New("Token SigningMethod must be ed25519 or hs256")
	}
	if len(c.Token.PrivateKey) == 0 {
		return errors.New("Token PrivateKey must be set")
	}
	if strings.ToLower(c.Token.SigningMethod) == "hs256" && len(c.Token.PrivateKey) < 32 {
		return errors.New("Token PrivateKey must be at least 32 bytes for hs256")
	}
	if c.Token.DefaultTTL <= 0 {
		return errors.New("Token DefaultTTL must be > 0")
	}
	if c.Token.RememberMeTTL < c.Token.DefaultTTL {
		return errors.New("Token RememberMeTTL must be >= DefaultTTL")
	}
	if c.Token.Leeway < 0 {
		return errors.New("Token Leeway must be >= 0")
	}
	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix must be set")
	}
	if c.Session.MaxActivePerUser <= 0 {
		return errors.New("Session MaxActivePerUser must be > 0")
	}
	if c.Session.Retention <= 0 {
		return errors.New("Session Retention must be > 0")
	}
	if c.Lockout.Window <= 0 {
		return errors.New("Lockout Window must be > 0")
	}
	if c.Lockout.OrdinaryThreshold <= 0 || c.Lockout.PrivilegedThreshold <= 0 {
		return errors.New("Lockout thresholds must be > 0")
	}
	if c.Lockout.PrivilegedThreshold > c.Lockout.OrdinaryThreshold {
		return errors.New("Lockout PrivilegedThreshold must be <= OrdinaryThreshold")
	}
	if c.Lockout.OrdinaryBanDuration <= 0 || c.Lockout.PrivilegedBanDuration <= 0 {
		return errors.New("Lockout ban durations must be > 0")
	}
	if c.BotDetect.Enabled {
		if c.BotDetect.BanThreshold <= 0 || c.BotDetect.BanThreshold > 100 {
			return errors.New("BotDetect BanThreshold must be in (0, 100]")
		}
		if c.BotDetect.BanDuration <= 0 {
			return errors.New("BotDetect BanDuration must be > 0")
		}
	}
	if c.OTP.Digits < 4 || c.OTP.Digits > 10 {
		return errors.New("OTP Digits must be in [4, 10]")
	}
	if c.OTP.TTL <= 0 {
		return errors.New("OTP TTL must be > 0")
	}
	if c.Reset.TokenTTL <= 0 {
		return errors.New("Reset TokenTTL must be > 0")
	}
	if c.Password.Memory == 0 || c.Password.Iterations == 0 || c.Password.Parallelism == 0 {
		return errors.New("Password argon2 parameters must be > 0")
	}
	if c.Password.SaltLength < 8 || c.Password.KeyLength < 16 {
		return errors.New("Password SaltLength must be >= 8 and KeyLength >= 16")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Account.DefaultRole == "" {
		return errors.New("Account DefaultRole must be set")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	return nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// cloneConfig deep-copies the mutable reference fields so the engine's view cannot be
// altered after Build.
func cloneConfig(c Config) Config {
	c.Token.PrivateKey = cloneBytes(c.Token.PrivateKey)
	c.Token.PublicKey = cloneBytes(c.Token.PublicKey)
	c.Lockout.PrivilegedPrefixes = cloneStrings(c.Lockout.PrivilegedPrefixes)
	return c
}
