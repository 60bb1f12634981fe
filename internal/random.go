// Package internal holds cryptographic random material shared by the engine flows.
package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
)

const sessionIDBytes = 16

const resetTokenBytes = 32

// NewSessionID returns a 128-bit random identifier encoded as unpadded base64url.
func NewSessionID() (string, error) {
	var buf [sessionIDBytes]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("session id entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf[:]), nil
}

// NewOTP returns a numeric one-time code with the given digit count. Every digit is
// drawn independently so leading zeros are as likely as any other digit.
func NewOTP(digits int) (string, error) {
	if digits <= 0 {
		return "", fmt.Errorf("otp digits must be > 0, got %d", digits)
	}
	out := make([]byte, digits)
	max := big.NewInt(10)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("otp entropy: %w", err)
		}
		out[i] = byte('0' + n.Int64())
	}
	return string(out), nil
}

// NewResetToken returns a 256-bit random token encoded as unpadded base64url. Only
// HashToken of the returned value is ever persisted.
func NewResetToken() (string, error) {
	var buf [resetTokenBytes]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("reset token entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf[:]), nil
}

// HashToken returns the hex-encoded SHA-256 of a raw token.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
