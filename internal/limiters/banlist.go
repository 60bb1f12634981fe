package limiters

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrBanListUnavailable is an exported constant or variable used by the authentication engine.
	ErrBanListUnavailable = errors.New("ban list store unavailable")

	// ErrNotBanned is an exported constant or variable used by the authentication engine.
	ErrNotBanned = errors.New("ip not banned")
)

// BanReason defines a public type used by authcore APIs.
//
// BanReason instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type BanReason string

// Ban reasons recorded on ban entries.
const (
	BanReasonFailedLogins      BanReason = "failed-logins"
	BanReasonFailedAdminLogins BanReason = "failed-admin-logins"
	BanReasonBot               BanReason = "bot-detected"
	BanReasonManual            BanReason = "manual"
)

// BannedIP is the stored ban record for one address.
//
// BannedIP instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type BannedIP struct {
	IP        string
	Reason    BanReason
	Evidence  string
	BannedAt  time.Time
	ExpiresAt time.Time
	Attempts  int64
}

// BanList is the Redis-backed set of banned IP addresses. One record exists per address:
// banning an already-banned IP updates the reason and evidence in place, pushes the
// expiry out, and increments the attempt counter instead of creating a second record.
type BanList struct {
	redis  redis.UniversalClient
	prefix string
}

// NewBanList describes the new ban list operation and its observable behavior.
//
// NewBanList does not mutate shared global state and can be used concurrently when the
// receiver and dependencies are concurrently safe.
func NewBanList(client redis.UniversalClient, prefix string) *BanList {
	if prefix == "" {
		prefix = "abn"
	}
	return &BanList{redis: client, prefix: prefix}
}

func (b *BanList) key(ip string) string {
	return b.prefix + ":" + ip
}

// Ban upserts the ban record for ip and arms its expiry to now+duration.
func (b *BanList) Ban(ctx context.Context, ip string, reason BanReason, evidence string, duration time.Duration) error {
	if b == nil || b.redis == nil || ip == "" || duration <= 0 {
		return nil
	}
	key := b.key(ip)
	now := time.Now()
	_, err := b.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"reason", string(reason),
			"evidence", evidence,
			"banned_at", now.Unix(),
			"expires_at", now.Add(duration).Unix(),
		)
		pipe.HIncrBy(ctx, key, "attempts", 1)
		pipe.Expire(ctx, key, duration)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBanListUnavailable, err)
	}
	return nil
}

// IsBanned reports whether ip currently has a live ban record. Expiry is enforced by the
// key TTL, so existence alone is the answer.
func (b *BanList) IsBanned(ctx context.Context, ip string) (bool, error) {
	if b == nil || b.redis == nil || ip == "" {
		return false, nil
	}
	n, err := b.redis.Exists(ctx, b.key(ip)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBanListUnavailable, err)
	}
	return n > 0, nil
}

// Lookup returns the full ban record for ip, or ErrNotBanned.
func (b *BanList) Lookup(ctx context.Context, ip string) (*BannedIP, error) {
	if b == nil || b.redis == nil || ip == "" {
		return nil, ErrNotBanned
	}
	fields, err := b.redis.HGetAll(ctx, b.key(ip)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBanListUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotBanned
	}
	record := &BannedIP{
		IP:       ip,
		Reason:   BanReason(fields["reason"]),
		Evidence: fields["evidence"],
	}
	if v, err := strconv.ParseInt(fields["banned_at"], 10, 64); err == nil {
		record.BannedAt = time.Unix(v, 0)
	}
	if v, err := strconv.ParseInt(fields["expires_at"], 10, 64); err == nil {
		record.ExpiresAt = time.Unix(v, 0)
	}
	if v, err := strconv.ParseInt(fields["attempts"], 10, 64); err == nil {
		record.Attempts = v
	}
	return record, nil
}

// Unban removes the ban record for ip.
func (b *BanList) Unban(ctx context.Context, ip string) error {
	if b == nil || b.redis == nil || ip == "" {
		return nil
	}
	if err := b.redis.Del(ctx, b.key(ip)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBanListUnavailable, err)
	}
	return nil
}
