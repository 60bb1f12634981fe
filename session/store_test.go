package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func testSession(sid, uid string, lastActive time.Time) *Session {
	return &Session{
		SessionID:  sid,
		UserID:     uid,
		IP:         "192.0.2.10",
		Platform:   "linux",
		Browser:    "firefox",
		IsActive:   true,
		CreatedAt:  lastActive,
		LastActive: lastActive,
	}
}

func TestSaveAndGet(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client, "as", 20, 24*time.Hour)
	ctx := context.Background()

	now := time.Now().Truncate(time.Millisecond)
	evicted, err := store.Save(ctx, testSession("s1", "u1", now))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(evicted) != 0 {
		t.Fatalf("unexpected evictions: %v", evicted)
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UserID != "u1" || !got.IsActive || got.Browser != "firefox" {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestGetMissing(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client, "as", 20, 24*time.Hour)
	if _, err := store.Get(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCapEvictsLeastRecentlyActive(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client, "as", 3, 24*time.Hour)
	ctx := context.Background()

	base := time.Now()
	// s2 is oldest by activity even though s1 was created first; eviction must pick
	// by last-active, not insertion order.
	if _, err := store.Save(ctx, testSession("s1", "u1", base.Add(2*time.Minute))); err != nil {
		t.Fatalf("Save s1: %v", err)
	}
	if _, err := store.Save(ctx, testSession("s2", "u1", base.Add(1*time.Minute))); err != nil {
		t.Fatalf("Save s2: %v", err)
	}
	if _, err := store.Save(ctx, testSession("s3", "u1", base.Add(3*time.Minute))); err != nil {
		t.Fatalf("Save s3: %v", err)
	}

	evicted, err := store.Save(ctx, testSession("s4", "u1", base.Add(4*time.Minute)))
	if err != nil {
		t.Fatalf("Save s4: %v", err)
	}
	if len(evicted) != 1 || evicted[0] != "s2" {
		t.Fatalf("evicted = %v, want [s2]", evicted)
	}

	count, err := store.CountActive(ctx, "u1")
	if err != nil {
		t.Fatalf("CountActive: %v", err)
	}
	if count != 3 {
		t.Fatalf("active count = %d, want 3", count)
	}

	// The evicted record stays readable, marked inactive.
	old, err := store.Get(ctx, "s2")
	if err != nil {
		t.Fatalf("Get evicted: %v", err)
	}
	if old.IsActive {
		t.Fatal("evicted session should be inactive")
	}
}

func TestCapTwenty(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client, "as", 20, 24*time.Hour)
	ctx := context.Background()

	base := time.Now()
	for i := 0; i < 25; i++ {
		sid := fmt.Sprintf("s%02d", i)
		if _, err := store.Save(ctx, testSession(sid, "u1", base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("Save %s: %v", sid, err)
		}
	}
	count, _ := store.CountActive(ctx, "u1")
	if count != 20 {
		t.Fatalf("active count = %d, want 20", count)
	}
	oldest, err := store.OldestActive(ctx, "u1", 1)
	if err != nil {
		t.Fatalf("OldestActive: %v", err)
	}
	if len(oldest) != 1 || oldest[0] != "s05" {
		t.Fatalf("oldest surviving = %v, want [s05]", oldest)
	}
}

func TestTouchPromotes(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client, "as", 3, 24*time.Hour)
	ctx := context.Background()

	base := time.Now()
	for i, sid := range []string{"s1", "s2", "s3"} {
		if _, err := store.Save(ctx, testSession(sid, "u1", base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Save %s: %v", sid, err)
		}
	}
	// s1 is oldest; touching it should shift eviction pressure onto s2.
	if err := store.Touch(ctx, "s1"); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	evicted, err := store.Save(ctx, testSession("s4", "u1", time.Now()))
	if err != nil {
		t.Fatalf("Save s4: %v", err)
	}
	if len(evicted) != 1 || evicted[0] != "s2" {
		t.Fatalf("evicted = %v, want [s2]", evicted)
	}
}

func TestTouchMissingIsNoOp(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client, "as", 3, 24*time.Hour)
	if err := store.Touch(context.Background(), "ghost"); err != nil {
		t.Fatalf("Touch missing: %v", err)
	}
}

func TestListForUserNewestFirst(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client, "as", 20, 24*time.Hour)
	ctx := context.Background()

	base := time.Now()
	for i, sid := range []string{"s1", "s2", "s3"} {
		if _, err := store.Save(ctx, testSession(sid, "u1", base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Save %s: %v", sid, err)
		}
	}
	records, err := store.ListForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(records) != 3 || records[0].SessionID != "s3" || records[2].SessionID != "s1" {
		ids := make([]string, len(records))
		for i, r := range records {
			ids[i] = r.SessionID
		}
		t.Fatalf("order = %v, want [s3 s2 s1]", ids)
	}

	infos := Infos(records, "s2")
	if !infos[1].Current || infos[0].Current {
		t.Fatalf("current flag misplaced: %+v", infos)
	}
}

func TestTerminateEnforcesOwnership(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client, "as", 20, 24*time.Hour)
	ctx := context.Background()

	if _, err := store.Save(ctx, testSession("s1", "u1", time.Now())); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := store.Terminate(ctx, "u2", "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign terminate = %v, want ErrNotFound", err)
	}
	if err := store.Terminate(ctx, "u1", "s1"); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	record, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.IsActive {
		t.Fatal("terminated session should be inactive")
	}
	// Terminating again fails: already inactive.
	if err := store.Terminate(ctx, "u1", "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("repeat terminate = %v, want ErrNotFound", err)
	}
}

func TestTerminateAllExcept(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client, "as", 20, 24*time.Hour)
	ctx := context.Background()

	base := time.Now()
	for i, sid := range []string{"s1", "s2", "s3"} {
		if _, err := store.Save(ctx, testSession(sid, "u1", base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Save %s: %v", sid, err)
		}
	}

	closed, err := store.TerminateAllExcept(ctx, "u1", "s2")
	if err != nil {
		t.Fatalf("TerminateAllExcept: %v", err)
	}
	if closed != 2 {
		t.Fatalf("closed = %d, want 2", closed)
	}
	count, _ := store.CountActive(ctx, "u1")
	if count != 1 {
		t.Fatalf("active count = %d, want 1", count)
	}
	anchor, err := store.Get(ctx, "s2")
	if err != nil || !anchor.IsActive {
		t.Fatalf("anchor session damaged: %+v, %v", anchor, err)
	}
}

func TestTerminateAllExceptRequiresLiveAnchor(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client, "as", 20, 24*time.Hour)
	ctx := context.Background()

	if _, err := store.Save(ctx, testSession("s1", "u1", time.Now())); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := store.TerminateAllExcept(ctx, "u1", "ghost"); !errors.Is(err, ErrCurrentNotFound) {
		t.Fatalf("missing anchor = %v, want ErrCurrentNotFound", err)
	}
	// Someone else's session cannot anchor the wipe either.
	if _, err := store.TerminateAllExcept(ctx, "u2", "s1"); !errors.Is(err, ErrCurrentNotFound) {
		t.Fatalf("foreign anchor = %v, want ErrCurrentNotFound", err)
	}
	count, _ := store.CountActive(ctx, "u1")
	if count != 1 {
		t.Fatalf("sessions were closed despite failed anchor check: %d", count)
	}
}

func TestRetentionExpiry(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewStore(client, "as", 20, time.Hour)
	ctx := context.Background()

	if _, err := store.Save(ctx, testSession("s1", "u1", time.Now())); err != nil {
		t.Fatalf("Save: %v", err)
	}
	mr.FastForward(2 * time.Hour)

	if _, err := store.Get(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected record to lapse, got %v", err)
	}
	records, err := store.ListForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("lapsed records still listed: %d", len(records))
	}
}
