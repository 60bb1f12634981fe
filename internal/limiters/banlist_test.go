package limiters

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBanAndLookup(t *testing.T) {
	_, client := newTestRedis(t)
	bans := NewBanList(client, "abn")
	ctx := context.Background()

	if err := bans.Ban(ctx, "10.0.0.5", BanReasonFailedLogins, "10 failed logins", 30*time.Minute); err != nil {
		t.Fatalf("Ban: %v", err)
	}

	banned, err := bans.IsBanned(ctx, "10.0.0.5")
	if err != nil {
		t.Fatalf("IsBanned: %v", err)
	}
	if !banned {
		t.Fatal("expected ip to be banned")
	}

	record, err := bans.Lookup(ctx, "10.0.0.5")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if record.Reason != BanReasonFailedLogins || record.Attempts != 1 {
		t.Fatalf("unexpected record: %+v", record)
	}
	if record.ExpiresAt.Before(record.BannedAt) {
		t.Fatalf("expiry %v before ban time %v", record.ExpiresAt, record.BannedAt)
	}
}

func TestBanUpsertIsIdempotent(t *testing.T) {
	_, client := newTestRedis(t)
	bans := NewBanList(client, "abn")
	ctx := context.Background()

	_ = bans.Ban(ctx, "10.0.0.5", BanReasonFailedLogins, "first", 30*time.Minute)
	_ = bans.Ban(ctx, "10.0.0.5", BanReasonBot, "second", 24*time.Hour)

	record, err := bans.Lookup(ctx, "10.0.0.5")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	// One record per ip: reason and evidence updated in place, attempts counted up.
	if record.Reason != BanReasonBot || record.Evidence != "second" {
		t.Fatalf("record not updated in place: %+v", record)
	}
	if record.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", record.Attempts)
	}
}

func TestBanExpires(t *testing.T) {
	mr, client := newTestRedis(t)
	bans := NewBanList(client, "abn")
	ctx := context.Background()

	_ = bans.Ban(ctx, "10.0.0.5", BanReasonManual, "", time.Minute)
	mr.FastForward(2 * time.Minute)

	banned, err := bans.IsBanned(ctx, "10.0.0.5")
	if err != nil {
		t.Fatalf("IsBanned: %v", err)
	}
	if banned {
		t.Fatal("ban should have expired")
	}
	if _, err := bans.Lookup(ctx, "10.0.0.5"); !errors.Is(err, ErrNotBanned) {
		t.Fatalf("expected ErrNotBanned, got %v", err)
	}
}

func TestUnban(t *testing.T) {
	_, client := newTestRedis(t)
	bans := NewBanList(client, "abn")
	ctx := context.Background()

	_ = bans.Ban(ctx, "10.0.0.5", BanReasonManual, "", time.Hour)
	if err := bans.Unban(ctx, "10.0.0.5"); err != nil {
		t.Fatalf("Unban: %v", err)
	}
	banned, _ := bans.IsBanned(ctx, "10.0.0.5")
	if banned {
		t.Fatal("expected ip to be unbanned")
	}
}

func TestNotBannedByDefault(t *testing.T) {
	_, client := newTestRedis(t)
	bans := NewBanList(client, "abn")
	banned, err := bans.IsBanned(context.Background(), "203.0.113.9")
	if err != nil || banned {
		t.Fatalf("IsBanned = (%t, %v), want (false, nil)", banned, err)
	}
}
