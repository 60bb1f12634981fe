package limiters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLockoutUnavailable is an exported constant or variable used by the authentication engine.
var ErrLockoutUnavailable = errors.New("lockout store unavailable")

// LockoutConfig defines a public type used by authcore APIs.
//
// LockoutConfig instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type LockoutConfig struct {
	Window                time.Duration
	OrdinaryThreshold     int
	OrdinaryBanDuration   time.Duration
	PrivilegedThreshold   int
	PrivilegedBanDuration time.Duration
}

// LockoutTracker counts failed login attempts per (ip, email) pair in a rolling window.
// The window starts at the first failure; a successful login resets the pair so a fresh
// streak starts from one.
type LockoutTracker struct {
	redis  redis.UniversalClient
	prefix string
	cfg    LockoutConfig
}

// NewLockoutTracker describes the new lockout tracker operation and its observable behavior.
//
// NewLockoutTracker does not mutate shared global state and can be used concurrently when
// the receiver and dependencies are concurrently safe.
func NewLockoutTracker(client redis.UniversalClient, prefix string, cfg LockoutConfig) *LockoutTracker {
	if prefix == "" {
		prefix = "alk"
	}
	return &LockoutTracker{redis: client, prefix: prefix, cfg: cfg}
}

func (t *LockoutTracker) key(ip, email string) string {
	return t.prefix + ":" + ip + ":" + strings.ToLower(strings.TrimSpace(email))
}

// RecordFailure increments the pair's failure count and returns the new total. The
// window TTL is armed only when the increment created the key, so the streak expires
// relative to its first failure.
func (t *LockoutTracker) RecordFailure(ctx context.Context, ip, email string) (int64, error) {
	if t == nil || t.redis == nil || ip == "" {
		return 0, nil
	}
	key := t.key(ip, email)
	count, err := t.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	if count == 1 && t.cfg.Window > 0 {
		if err := t.redis.Expire(ctx, key, t.cfg.Window).Err(); err != nil {
			return count, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
		}
	}
	return count, nil
}

// Reset clears the pair's failure streak.
func (t *LockoutTracker) Reset(ctx context.Context, ip, email string) error {
	if t == nil || t.redis == nil || ip == "" {
		return nil
	}
	if err := t.redis.Del(ctx, t.key(ip, email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}

// Attempts returns the pair's current failure count; zero when no streak exists.
func (t *LockoutTracker) Attempts(ctx context.Context, ip, email string) (int64, error) {
	if t == nil || t.redis == nil || ip == "" {
		return 0, nil
	}
	count, err := t.redis.Get(ctx, t.key(ip, email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return count, nil
}

// Threshold returns the attempt count that trips a ban for the given target class.
func (t *LockoutTracker) Threshold(privileged bool) int64 {
	if privileged {
		return int64(t.cfg.PrivilegedThreshold)
	}
	return int64(t.cfg.OrdinaryThreshold)
}

// BanDuration returns the IP ban length applied when the threshold trips.
func (t *LockoutTracker) BanDuration(privileged bool) time.Duration {
	if privileged {
		return t.cfg.PrivilegedBanDuration
	}
	return t.cfg.OrdinaryBanDuration
}
