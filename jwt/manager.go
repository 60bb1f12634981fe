package jwt

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenInvalid is an exported constant or variable used by the authentication engine.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrKeyMalformed is an exported constant or variable used by the authentication engine.
	ErrKeyMalformed = errors.New("signing key malformed")
)

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated
// as immutable unless documented otherwise.
type Config struct {
	// SigningMethod is "ed25519" or "hs256".
	SigningMethod string

	// PrivateKey signs tokens. For hs256 it is the shared secret. For ed25519 it
	// accepts a raw 32-byte seed, a raw 64-byte private key, or a PEM PKCS#8 block.
	PrivateKey []byte

	// PublicKey verifies ed25519 tokens; derived from PrivateKey when empty.
	PublicKey []byte

	Issuer string

	// DefaultTTL and RememberMeTTL select the token lifetime. Remember-me changes
	// the lifetime only; the claim set is identical either way.
	DefaultTTL    time.Duration
	RememberMeTTL time.Duration

	Leeway time.Duration
}

// SessionClaims is the claim set carried by every issued token.
//
// SessionClaims instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type SessionClaims struct {
	UserID    string `json:"uid"`
	SessionID string `json:"sid"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// Manager defines a public type used by authcore APIs.
//
// Manager instances are intended to be configured during initialization and then treated
// as immutable unless documented otherwise.
type Manager struct {
	cfg       Config
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	parser    *jwt.Parser
	lenient   *jwt.Parser
}

// NewManager describes the new manager operation and its observable behavior.
//
// NewManager may return an error when input validation, dependency calls, or security
// checks fail. NewManager does not mutate shared global state and can be used
// concurrently when the receiver and dependencies are concurrently safe.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.DefaultTTL <= 0 {
		return nil, errors.New("jwt default ttl must be > 0")
	}
	if cfg.RememberMeTTL <= 0 {
		cfg.RememberMeTTL = cfg.DefaultTTL
	}
	m := &Manager{cfg: cfg}
	switch strings.ToLower(cfg.SigningMethod) {
	case "hs256":
		if len(cfg.PrivateKey) < 32 {
			return nil, fmt.Errorf("%w: hs256 secret must be at least 32 bytes", ErrKeyMalformed)
		}
		m.method = jwt.SigningMethodHS256
		m.signKey = cfg.PrivateKey
		m.verifyKey = cfg.PrivateKey
	case "ed25519":
		priv, err := parseEdPrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		m.method = jwt.SigningMethodEdDSA
		m.signKey = priv
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			m.verifyKey = pub
		} else {
			m.verifyKey = priv.Public()
		}
	default:
		return nil, fmt.Errorf("%w: unsupported signing method %q", ErrKeyMalformed, cfg.SigningMethod)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	m.parser = jwt.NewParser(opts...)
	m.lenient = jwt.NewParser(
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	return m, nil
}

// Issue describes the issue operation and its observable behavior.
//
// Issue may return an error when input validation, dependency calls, or security checks
// fail. Issue does not mutate shared global state and can be used concurrently when the
// receiver and dependencies are concurrently safe.
func (m *Manager) Issue(userID, sessionID, role string, rememberMe bool) (string, time.Time, error) {
	ttl := m.cfg.DefaultTTL
	if rememberMe {
		ttl = m.cfg.RememberMeTTL
	}
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := SessionClaims{
		UserID:    userID,
		SessionID: sessionID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.cfg.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(m.method, claims).SignedString(m.signKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expiresAt, nil
}

// Parse verifies signature and temporal claims and returns the claim set.
func (m *Manager) Parse(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	parsed, err := m.parser.ParseWithClaims(token, claims, m.keyfunc)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	return claims, nil
}

// ParseAllowExpired verifies the signature but skips temporal validation. Logout uses it
// so an expired token can still identify the session being closed.
func (m *Manager) ParseAllowExpired(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if _, err := m.lenient.ParseWithClaims(token, claims, m.keyfunc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	return claims, nil
}

func (m *Manager) keyfunc(t *jwt.Token) (any, error) {
	return m.verifyKey, nil
}

func parseEdPrivateKey(raw []byte) (ed25519.PrivateKey, error) {
	switch len(raw) {
	case 0:
		return nil, fmt.Errorf("%w: ed25519 private key is empty", ErrKeyMalformed)
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("%w: ed25519 private key is neither raw nor PEM", ErrKeyMalformed)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyMalformed, err)
	}
	priv, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: PEM block does not contain an ed25519 key", ErrKeyMalformed)
	}
	return priv, nil
}

func parseEdPublicKey(raw []byte) (ed25519.PublicKey, error) {
	if len(raw) == ed25519.PublicKeySize {
		return ed25519.PublicKey(raw), nil
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("%w: ed25519 public key is neither raw nor PEM", ErrKeyMalformed)
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyMalformed, err)
	}
	pub, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: PEM block does not contain an ed25519 key", ErrKeyMalformed)
	}
	return pub, nil
}
