package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	// ErrHashMalformed is an exported constant or variable used by the authentication engine.
	ErrHashMalformed = errors.New("password hash malformed")

	// ErrUnsupportedVariant is an exported constant or variable used by the authentication engine.
	ErrUnsupportedVariant = errors.New("unsupported argon2 variant")
)

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated
// as immutable unless documented otherwise.
type Config struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Argon2 hashes and verifies passwords with argon2id. Output follows the PHC string
// format:
//
//	$argon2id$v=19$m=65536,t=3,p=2$<salt-b64>$<hash-b64>
//
// Verify accepts hashes produced with any cost parameters; the parameters encoded in the
// stored string win, so costs can be raised without invalidating existing hashes.
type Argon2 struct {
	cfg Config
}

// NewArgon2 describes the new argon2 operation and its observable behavior.
//
// NewArgon2 may return an error when input validation, dependency calls, or security
// checks fail. NewArgon2 does not mutate shared global state and can be used concurrently
// when the receiver and dependencies are concurrently safe.
func NewArgon2(cfg Config) (*Argon2, error) {
	if cfg.Memory == 0 || cfg.Iterations == 0 || cfg.Parallelism == 0 {
		return nil, errors.New("argon2 cost parameters must be > 0")
	}
	if cfg.SaltLength < 8 {
		return nil, errors.New("argon2 salt length must be >= 8")
	}
	if cfg.KeyLength < 16 {
		return nil, errors.New("argon2 key length must be >= 16")
	}
	return &Argon2{cfg: cfg}, nil
}

// Hash describes the hash operation and its observable behavior.
//
// Hash may return an error when input validation, dependency calls, or security checks
// fail. Hash does not mutate shared global state and can be used concurrently when the
// receiver and dependencies are concurrently safe.
func (a *Argon2) Hash(plain string) (string, error) {
	salt := make([]byte, a.cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt entropy: %w", err)
	}
	key := argon2.IDKey([]byte(plain), salt, a.cfg.Iterations, a.cfg.Memory, a.cfg.Parallelism, a.cfg.KeyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		a.cfg.Memory,
		a.cfg.Iterations,
		a.cfg.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify describes the verify operation and its observable behavior.
//
// Verify may return an error when input validation, dependency calls, or security checks
// fail. Verify does not mutate shared global state and can be used concurrently when the
// receiver and dependencies are concurrently safe.
func (a *Argon2) Verify(plain, encoded string) (bool, error) {
	params, salt, key, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	candidate := argon2.IDKey([]byte(plain), salt, params.Iterations, params.Memory, params.Parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(candidate, key) == 1, nil
}

// NeedsUpgrade reports whether a stored hash was produced with weaker cost parameters
// than the current configuration.
func (a *Argon2) NeedsUpgrade(encoded string) (bool, error) {
	params, _, key, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	if params.Memory < a.cfg.Memory || params.Iterations < a.cfg.Iterations {
		return true, nil
	}
	if params.Parallelism < a.cfg.Parallelism || uint32(len(key)) < a.cfg.KeyLength {
		return true, nil
	}
	return false, nil
}

func parsePHC(encoded string) (Config, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return Config{}, nil, nil, ErrHashMalformed
	}
	if parts[1] != "argon2id" {
		return Config{}, nil, nil, ErrUnsupportedVariant
	}
	if !strings.HasPrefix(parts[2], "v=") {
		return Config{}, nil, nil, ErrHashMalformed
	}
	version, err := strconv.Atoi(parts[2][2:])
	if err != nil || version != argon2.Version {
		return Config{}, nil, nil, ErrHashMalformed
	}
	params, err := parseParams(parts[3])
	if err != nil {
		return Config{}, nil, nil, err
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return Config{}, nil, nil, ErrHashMalformed
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return Config{}, nil, nil, ErrHashMalformed
	}
	return params, salt, key, nil
}

func parseParams(s string) (Config, error) {
	var cfg Config
	for _, field := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(field, "=")
		if !ok {
			return Config{}, ErrHashMalformed
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return Config{}, ErrHashMalformed
		}
		switch k {
		case "m":
			cfg.Memory = uint32(n)
		case "t":
			cfg.Iterations = uint32(n)
		case "p":
			if n > 255 {
				return Config{}, ErrHashMalformed
			}
			cfg.Parallelism = uint8(n)
		default:
			return Config{}, ErrHashMalformed
		}
	}
	if cfg.Memory == 0 || cfg.Iterations == 0 || cfg.Parallelism == 0 {
		return Config{}, ErrHashMalformed
	}
	return cfg, nil
}
